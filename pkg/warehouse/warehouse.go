// Package warehouse executes governed read-only SQL against the demo
// warehouse and reports its physical schema. The engine fronts exactly one
// warehouse at a time, selected by configuration: the default "postgres"
// adapter runs the star schema inside the engine database, "mssql" targets
// an external SQL Server.
package warehouse

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/netsight-ai/netsight-engine/pkg/config"
	"github.com/netsight-ai/netsight-engine/pkg/database"
	"github.com/netsight-ai/netsight-engine/pkg/masking"
	"github.com/netsight-ai/netsight-engine/pkg/models"
	"github.com/netsight-ai/netsight-engine/pkg/semantic"
)

// Supported adapter names.
const (
	DialectPostgres = "postgres"
	DialectMSSQL    = "mssql"
)

// MaxQueryLimit is the hard cap on rows returned by a single governed query,
// applied even when the caller requests more.
const MaxQueryLimit = 10000

// Adapter executes governed queries against one warehouse backend.
//
// Query and QueryWithParams wrap the statement in a bounded subselect, so
// callers never receive more than limit rows (or MaxQueryLimit when limit is
// zero or out of range). Results report Truncated when the bound was hit.
type Adapter interface {
	// Dialect returns the SQL dialect name ("postgres" or "mssql"), used
	// to steer LLM SQL generation and verified-query compatibility checks.
	Dialect() string

	// Query runs a read-only SELECT and returns bounded results.
	Query(ctx context.Context, sqlQuery string, limit int) (*models.QueryResult, error)

	// QueryWithParams runs a parameterized SELECT. Placeholders use the
	// $1, $2, ... positional style regardless of dialect; the adapter
	// translates where the backend needs it.
	QueryWithParams(ctx context.Context, sqlQuery string, params []any, limit int) (*models.QueryResult, error)

	// Schema returns the live physical schema (tables, views, and their
	// columns) for semantic model validation.
	Schema(ctx context.Context) (semantic.PhysicalSchema, error)

	// DescribeColumns lists every user column for the masking detector scan.
	DescribeColumns(ctx context.Context) ([]masking.TableColumn, error)

	// Close releases backend resources owned by the adapter.
	Close() error
}

// NewFromConfig builds the configured warehouse adapter. The postgres
// adapter reuses the engine's own connection pool; mssql opens a dedicated
// connection to the configured SQL Server.
func NewFromConfig(cfg *config.WarehouseConfig, db *database.DB, logger *zap.Logger) (Adapter, error) {
	switch cfg.Adapter {
	case "", DialectPostgres:
		return NewPostgresAdapter(db, logger), nil
	case DialectMSSQL:
		return NewMSSQLAdapter(&cfg.MSSQL, logger)
	default:
		return nil, fmt.Errorf("unsupported warehouse adapter: %s", cfg.Adapter)
	}
}

// effectiveLimit clamps a requested row limit into (0, MaxQueryLimit].
func effectiveLimit(limit int) int {
	if limit <= 0 || limit > MaxQueryLimit {
		return MaxQueryLimit
	}
	return limit
}
