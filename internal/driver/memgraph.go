package driver

import (
	"context"
	"fmt"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
	"go.uber.org/zap"
)

type MemgraphDriver struct {
	Driver neo4j.DriverWithContext
	log    *zap.SugaredLogger

	// EmbeddingDim sizes the vector index; must match the embedding model.
	EmbeddingDim int
}

func NewMemgraphDriver(uri, username, password string, embeddingDim int, log *zap.SugaredLogger) (*MemgraphDriver, error) {
	d, err := neo4j.NewDriverWithContext(uri, neo4j.BasicAuth(username, password, ""))
	if err != nil {
		return nil, err
	}
	if err := d.VerifyConnectivity(context.Background()); err != nil {
		return nil, err
	}
	log.Infow("connected to memgraph", "uri", uri)
	return &MemgraphDriver{Driver: d, log: log, EmbeddingDim: embeddingDim}, nil
}

func (d *MemgraphDriver) Close(ctx context.Context) error {
	return d.Driver.Close(ctx)
}

func (d *MemgraphDriver) ExecuteQuery(ctx context.Context, query string, params map[string]interface{}) (neo4j.EagerResult, error) {
	result, err := neo4j.ExecuteQuery(ctx, d.Driver, query, params, neo4j.EagerResultTransformer)
	if err != nil {
		return neo4j.EagerResult{}, fmt.Errorf("failed to execute query: %w", err)
	}
	return *result, nil
}

func (d *MemgraphDriver) BuildIndices(ctx context.Context) error {
	queries := []string{
		"CREATE INDEX ON :Entry(id);",
		"CREATE INDEX ON :Entry(category);",
		"CREATE INDEX ON :Entry(status);",
		"CREATE INDEX ON :Provenance(id);",
		"CREATE INDEX ON :Decision(id);",
	}
	if d.EmbeddingDim > 0 {
		queries = append(queries, fmt.Sprintf(
			`CALL vector_search.create_index("entry_embedding", "Entry", "embedding", %d, "cos");`,
			d.EmbeddingDim))
	}

	for _, q := range queries {
		if _, err := d.ExecuteQuery(ctx, q, nil); err != nil {
			// Index may already exist; Memgraph errors instead of no-op.
			d.log.Debugw("index creation skipped", "query", q, "err", err)
		}
	}
	return nil
}
