// Package server exposes the curation engine over HTTP for the dashboard
// layer: launch a run, poll its status, health-check the store.
package server

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/curatorhq/curator/internal/config"
	"github.com/curatorhq/curator/internal/core"
	"github.com/curatorhq/curator/internal/core/model"
	"github.com/curatorhq/curator/internal/store"
)

type runRecord struct {
	ID        string            `json:"id"`
	State     string            `json:"state"` // running, done, aborted
	StartedAt time.Time         `json:"started_at"`
	Error     string            `json:"error,omitempty"`
	Summary   *model.RunSummary `json:"summary,omitempty"`
}

type Server struct {
	cfg     *config.Config
	curator *core.Curator
	store   store.EntryStore
	log     *zap.SugaredLogger

	mu   sync.Mutex
	runs map[string]*runRecord
}

func NewServer(cfg *config.Config, curator *core.Curator, st store.EntryStore, log *zap.SugaredLogger) *Server {
	return &Server{
		cfg:     cfg,
		curator: curator,
		store:   st,
		log:     log,
		runs:    make(map[string]*runRecord),
	}
}

func (s *Server) SetupRouter() *gin.Engine {
	r := gin.Default()

	r.POST("/runs", s.StartRun)
	r.GET("/runs/:id", s.GetRun)
	r.GET("/health", s.Health)

	return r
}

type startRunRequest struct {
	ResumeID string `json:"resume_id,omitempty"`
	DryRun   bool   `json:"dry_run,omitempty"`
}

// StartRun launches a curation run in the background and returns its id.
// The engine's advisory lock rejects a second concurrent run; that failure
// surfaces as a conflict on the run record, not here.
func (s *Server) StartRun(c *gin.Context) {
	var req startRunRequest
	if err := c.ShouldBindJSON(&req); err != nil && c.Request.ContentLength > 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
		return
	}

	id := req.ResumeID
	if id == "" {
		id = uuid.New().String()
	}

	cur := s.curator
	if req.DryRun && !s.cfg.Engine.DryRun {
		cfg := *s.cfg
		cfg.Engine.DryRun = true
		cur = cur.WithConfig(&cfg)
	}

	rec := &runRecord{ID: id, State: "running", StartedAt: time.Now().UTC()}
	s.mu.Lock()
	s.runs[id] = rec
	s.mu.Unlock()

	go func() {
		sum, err := cur.Run(context.Background(), id)

		s.mu.Lock()
		defer s.mu.Unlock()
		rec.Summary = sum
		if err != nil {
			rec.State = "aborted"
			rec.Error = err.Error()
			s.log.Errorw("run failed", "run", id, "err", err)
		} else {
			rec.State = "done"
		}
	}()

	c.JSON(http.StatusAccepted, gin.H{"run_id": id})
}

func (s *Server) GetRun(c *gin.Context) {
	id := c.Param("id")
	s.mu.Lock()
	rec, ok := s.runs[id]
	var snapshot runRecord
	if ok {
		snapshot = *rec
	}
	s.mu.Unlock()
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "unknown run"})
		return
	}
	c.JSON(http.StatusOK, snapshot)
}

func (s *Server) Health(c *gin.Context) {
	if err := s.store.Ping(c.Request.Context()); err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "store unreachable", "error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}
