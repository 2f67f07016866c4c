package warehouse

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"github.com/netsight-ai/netsight-engine/pkg/database"
	"github.com/netsight-ai/netsight-engine/pkg/masking"
	"github.com/netsight-ai/netsight-engine/pkg/models"
	"github.com/netsight-ai/netsight-engine/pkg/semantic"
)

// pgQuerier is satisfied by both *pgxpool.Pool and *pgxpool.Conn.
type pgQuerier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

// postgresAdapter runs governed queries against the engine's own Postgres
// database, where the demo star schema lives. When the context carries a
// role scope it queries through the scoped connection so row-level security
// policies see the caller's role; otherwise it falls back to the shared pool.
type postgresAdapter struct {
	db     *database.DB
	logger *zap.Logger
}

// NewPostgresAdapter creates the in-database warehouse adapter.
func NewPostgresAdapter(db *database.DB, logger *zap.Logger) Adapter {
	return &postgresAdapter{db: db, logger: logger}
}

var _ Adapter = (*postgresAdapter)(nil)

func (a *postgresAdapter) Dialect() string {
	return DialectPostgres
}

// querier prefers the role-scoped connection from context over the pool.
func (a *postgresAdapter) querier(ctx context.Context) pgQuerier {
	if scope, ok := database.GetRoleScope(ctx); ok && scope.Conn != nil {
		return scope.Conn
	}
	return a.db.Pool
}

func (a *postgresAdapter) Query(ctx context.Context, sqlQuery string, limit int) (*models.QueryResult, error) {
	return a.QueryWithParams(ctx, sqlQuery, nil, limit)
}

func (a *postgresAdapter) QueryWithParams(ctx context.Context, sqlQuery string, params []any, limit int) (*models.QueryResult, error) {
	bound := effectiveLimit(limit)

	// Fetch one row past the bound so the result can report truncation.
	queryToRun := fmt.Sprintf("SELECT * FROM (%s) AS _limited LIMIT %d", sqlQuery, bound+1)

	start := time.Now()
	rows, err := a.querier(ctx).Query(ctx, queryToRun, params...)
	if err != nil {
		return nil, fmt.Errorf("execute query: %w", err)
	}
	defer rows.Close()

	fieldDescs := rows.FieldDescriptions()
	columns := make([]models.ResultColumn, len(fieldDescs))
	for i, fd := range fieldDescs {
		columns[i] = models.ResultColumn{
			Name: string(fd.Name),
			Type: pgTypeNameFromOID(fd.DataTypeOID),
		}
	}

	resultRows := make([][]any, 0)
	for rows.Next() {
		values, err := rows.Values()
		if err != nil {
			return nil, fmt.Errorf("read row values: %w", err)
		}
		row := make([]any, len(values))
		copy(row, values)
		resultRows = append(resultRows, row)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate rows: %w", err)
	}

	truncated := false
	if len(resultRows) > bound {
		resultRows = resultRows[:bound]
		truncated = true
	}

	return &models.QueryResult{
		Columns:    columns,
		Rows:       resultRows,
		RowCount:   len(resultRows),
		Truncated:  truncated,
		DurationMs: time.Since(start).Milliseconds(),
	}, nil
}

// Schema returns every user table and view with its columns, keyed by
// lowercased "schema.table".
func (a *postgresAdapter) Schema(ctx context.Context) (semantic.PhysicalSchema, error) {
	const query = `
		SELECT table_schema, table_name, column_name
		FROM information_schema.columns
		WHERE table_schema NOT IN ('pg_catalog', 'information_schema', 'pg_toast')
		ORDER BY table_schema, table_name, ordinal_position`

	rows, err := a.querier(ctx).Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("query columns: %w", err)
	}
	defer rows.Close()

	schema := make(semantic.PhysicalSchema)
	for rows.Next() {
		var schemaName, tableName, columnName string
		if err := rows.Scan(&schemaName, &tableName, &columnName); err != nil {
			return nil, fmt.Errorf("scan column: %w", err)
		}
		key := strings.ToLower(schemaName + "." + tableName)
		schema[key] = append(schema[key], strings.ToLower(columnName))
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate columns: %w", err)
	}

	return schema, nil
}

// DescribeColumns lists columns of user base tables for the masking scan.
// Engine metadata tables are excluded; masking governs warehouse data only.
func (a *postgresAdapter) DescribeColumns(ctx context.Context) ([]masking.TableColumn, error) {
	const query = `
		SELECT c.table_schema, c.table_name, c.column_name
		FROM information_schema.columns c
		JOIN information_schema.tables t
			ON t.table_schema = c.table_schema AND t.table_name = c.table_name
		WHERE t.table_type = 'BASE TABLE'
		  AND c.table_schema NOT IN ('pg_catalog', 'information_schema', 'pg_toast')
		  AND c.table_name NOT LIKE 'engine\_%'
		  AND c.table_name NOT LIKE 'schema\_migrations%'
		ORDER BY c.table_schema, c.table_name, c.ordinal_position`

	rows, err := a.querier(ctx).Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("query columns: %w", err)
	}
	defer rows.Close()

	var columns []masking.TableColumn
	for rows.Next() {
		var col masking.TableColumn
		if err := rows.Scan(&col.Schema, &col.Table, &col.Column); err != nil {
			return nil, fmt.Errorf("scan column: %w", err)
		}
		columns = append(columns, col)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate columns: %w", err)
	}

	return columns, nil
}

// Close is a no-op: the pool belongs to the engine, not the adapter.
func (a *postgresAdapter) Close() error {
	return nil
}
