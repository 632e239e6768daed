// Command curator runs the curation engine from the command line: a full
// round-looped run against the configured store, or seeding sample entries
// for smoke testing.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/curatorhq/curator/internal/audit"
	"github.com/curatorhq/curator/internal/config"
	"github.com/curatorhq/curator/internal/core"
	"github.com/curatorhq/curator/internal/core/model"
)

var (
	flagConfig        string
	flagDryRun        bool
	flagResume        string
	flagMaxRounds     int
	flagMinSimilarity float64
	flagAutoDedup     float64
	flagConcurrency   int
	flagRefreshCache  bool
)

func main() {
	root := &cobra.Command{
		Use:           "curator",
		Short:         "Dedup-and-curation engine for free-text knowledge entries",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVarP(&flagConfig, "config", "c", "", "path to TOML config file")

	run := &cobra.Command{
		Use:   "run",
		Short: "Execute one curation run until convergence or the round cap",
		RunE:  runCmd,
	}
	run.Flags().BoolVar(&flagDryRun, "dry-run", false, "redirect all writes to artifacts, leave the store untouched")
	run.Flags().StringVar(&flagResume, "resume", "", "resume the run with this id from its checkpoint")
	run.Flags().IntVar(&flagMaxRounds, "max-rounds", 0, "override the round cap")
	run.Flags().Float64Var(&flagMinSimilarity, "min-similarity", 0, "override the edge materialization threshold")
	run.Flags().Float64Var(&flagAutoDedup, "auto-dedup", 0, "override the auto-dedup threshold")
	run.Flags().IntVar(&flagConcurrency, "concurrency", 0, "override the agent call concurrency limit")
	run.Flags().BoolVar(&flagRefreshCache, "refresh-cache", false, "ignore cached neighbor lists and re-query the vector index")
	root.AddCommand(run)

	seed := &cobra.Command{
		Use:   "seed [file.json]",
		Short: "Load entries from a JSON file into the store for smoke testing",
		Args:  cobra.ExactArgs(1),
		RunE:  seedCmd,
	}
	root.AddCommand(seed)

	lineage := &cobra.Command{
		Use:   "lineage [run-id] [entry-id]",
		Short: "Reconstruct an entry's merge/split ancestry from a run's audit log",
		Args:  cobra.ExactArgs(2),
		RunE:  lineageCmd,
	}
	root.AddCommand(lineage)

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func setup() (*config.Config, *zap.SugaredLogger, error) {
	logger, err := zap.NewProduction()
	if err != nil {
		return nil, nil, err
	}
	log := logger.Sugar()

	if err := godotenv.Load(); err != nil {
		log.Debug("no .env file found")
	}
	cfg, err := config.Load(flagConfig)
	if err != nil {
		return nil, nil, err
	}
	return cfg, log, nil
}

func runCmd(cmd *cobra.Command, args []string) error {
	cfg, log, err := setup()
	if err != nil {
		return err
	}

	if flagDryRun {
		cfg.Engine.DryRun = true
	}
	if flagMaxRounds > 0 {
		cfg.Engine.MaxRounds = flagMaxRounds
	}
	if flagMinSimilarity > 0 {
		cfg.Engine.MinSimilarity = flagMinSimilarity
	}
	if flagAutoDedup > 0 {
		cfg.Engine.AutoDedupThreshold = flagAutoDedup
	}
	if flagConcurrency > 0 {
		cfg.Engine.Concurrency = flagConcurrency
	}
	if flagRefreshCache {
		cfg.Cache.Refresh = true
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	curator, _, closeFn, err := core.Bootstrap(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer closeFn()

	start := time.Now()
	sum, err := curator.Run(ctx, flagResume)
	if sum != nil {
		fmt.Println(audit.RenderSummary(sum))
	}
	if err != nil {
		return err
	}
	log.Infow("run finished", "run", sum.RunID, "elapsed", time.Since(start).Round(time.Second))
	return nil
}

type seedEntry struct {
	Category string `json:"category"`
	Section  string `json:"section"`
	Title    string `json:"title"`
	Body     string `json:"body"`
	Context  string `json:"context,omitempty"`
	Author   string `json:"author,omitempty"`
}

func seedCmd(cmd *cobra.Command, args []string) error {
	cfg, log, err := setup()
	if err != nil {
		return err
	}

	data, err := os.ReadFile(args[0])
	if err != nil {
		return err
	}
	var seeds []seedEntry
	if err := json.Unmarshal(data, &seeds); err != nil {
		return fmt.Errorf("parse %s: %w", args[0], err)
	}

	ctx := context.Background()
	_, st, closeFn, err := core.Bootstrap(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer closeFn()

	now := time.Now().UTC()
	for _, s := range seeds {
		e := &model.Entry{
			ID:         uuid.New().String(),
			Category:   s.Category,
			Section:    model.Section(s.Section),
			Title:      s.Title,
			Body:       s.Body,
			Context:    s.Context,
			Author:     s.Author,
			EmbedState: model.EmbedPending,
			Status:     model.StatusActive,
			CreatedAt:  now,
			UpdatedAt:  now,
		}
		if err := st.Put(ctx, e); err != nil {
			return fmt.Errorf("save %q: %w", s.Title, err)
		}
	}
	log.Infow("seeded entries", "count", len(seeds))
	return nil
}

func lineageCmd(cmd *cobra.Command, args []string) error {
	cfg, _, err := setup()
	if err != nil {
		return err
	}
	runID, entryID := args[0], args[1]

	records, err := audit.Lineage(filepath.Join(cfg.Artifacts.Dir, runID), entryID)
	if err != nil {
		return err
	}
	if len(records) == 0 {
		fmt.Printf("no lineage recorded for %s in run %s\n", entryID, runID)
		return nil
	}
	for _, rec := range records {
		fmt.Printf("r%-2d %-10s parents=%v children=%v at %s\n",
			rec.Round, rec.Op, rec.Parents, rec.Children, rec.CreatedAt.Format(time.RFC3339))
	}
	return nil
}
