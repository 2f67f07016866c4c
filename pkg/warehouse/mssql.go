package warehouse

import (
	"context"
	"database/sql"
	"fmt"
	"net/url"
	"regexp"
	"strings"
	"time"

	_ "github.com/microsoft/go-mssqldb"
	"go.uber.org/zap"

	"github.com/netsight-ai/netsight-engine/pkg/config"
	"github.com/netsight-ai/netsight-engine/pkg/masking"
	"github.com/netsight-ai/netsight-engine/pkg/models"
	"github.com/netsight-ai/netsight-engine/pkg/semantic"
)

// mssqlAdapter runs governed queries against an external SQL Server.
// SQL Server has no equivalent of the Postgres role-scope session setting,
// so masking is the only per-role control on this backend.
type mssqlAdapter struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewMSSQLAdapter opens a connection pool to the configured SQL Server.
func NewMSSQLAdapter(cfg *config.MSSQLConfig, logger *zap.Logger) (Adapter, error) {
	if cfg.Host == "" {
		return nil, fmt.Errorf("mssql warehouse selected but MSSQL_HOST is not set")
	}

	db, err := sql.Open("sqlserver", mssqlConnectionString(cfg))
	if err != nil {
		return nil, fmt.Errorf("open sqlserver connection: %w", err)
	}
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(30 * time.Minute)

	return &mssqlAdapter{db: db, logger: logger}, nil
}

var _ Adapter = (*mssqlAdapter)(nil)

func mssqlConnectionString(cfg *config.MSSQLConfig) string {
	query := url.Values{}
	query.Add("database", cfg.Database)
	query.Add("encrypt", cfg.Encrypt)

	u := &url.URL{
		Scheme:   "sqlserver",
		User:     url.UserPassword(cfg.User, cfg.Password),
		Host:     fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		RawQuery: query.Encode(),
	}
	return u.String()
}

func (a *mssqlAdapter) Dialect() string {
	return DialectMSSQL
}

// positionalParamRegex matches $1, $2, ... placeholders outside any context
// awareness; governed SQL never contains dollar-quoted literals.
var positionalParamRegex = regexp.MustCompile(`\$(\d+)`)

// convertPositionalParams rewrites $1, $2, ... placeholders into SQL
// Server's @p1, @p2, ... named form.
func convertPositionalParams(sqlQuery string) string {
	return positionalParamRegex.ReplaceAllString(sqlQuery, "@p$1")
}

func (a *mssqlAdapter) Query(ctx context.Context, sqlQuery string, limit int) (*models.QueryResult, error) {
	return a.QueryWithParams(ctx, sqlQuery, nil, limit)
}

func (a *mssqlAdapter) QueryWithParams(ctx context.Context, sqlQuery string, params []any, limit int) (*models.QueryResult, error) {
	bound := effectiveLimit(limit)

	converted := convertPositionalParams(sqlQuery)
	// Fetch one row past the bound so the result can report truncation.
	queryToRun := fmt.Sprintf("SELECT TOP (%d) * FROM (%s) AS _limited", bound+1, converted)

	namedParams := make([]any, len(params))
	for i, param := range params {
		namedParams[i] = sql.Named(fmt.Sprintf("p%d", i+1), param)
	}

	start := time.Now()
	rows, err := a.db.QueryContext(ctx, queryToRun, namedParams...)
	if err != nil {
		return nil, fmt.Errorf("execute query: %w", err)
	}
	defer rows.Close()

	columnNames, err := rows.Columns()
	if err != nil {
		return nil, fmt.Errorf("get columns: %w", err)
	}
	columnTypes, err := rows.ColumnTypes()
	if err != nil {
		return nil, fmt.Errorf("get column types: %w", err)
	}

	columns := make([]models.ResultColumn, len(columnNames))
	for i, name := range columnNames {
		columns[i] = models.ResultColumn{
			Name: name,
			Type: mapSQLServerType(columnTypes[i].DatabaseTypeName()),
		}
	}

	resultRows := make([][]any, 0)
	for rows.Next() {
		values := make([]any, len(columnNames))
		valuePtrs := make([]any, len(columnNames))
		for i := range values {
			valuePtrs[i] = &values[i]
		}
		if err := rows.Scan(valuePtrs...); err != nil {
			return nil, fmt.Errorf("scan row: %w", err)
		}

		for i, val := range values {
			// database/sql returns text columns as []byte
			if b, ok := val.([]byte); ok && isStringType(columnTypes[i].DatabaseTypeName()) {
				values[i] = string(b)
			}
		}
		resultRows = append(resultRows, values)
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
func (a *mssqlAdapter) Schema(ctx context.Context) (semantic.PhysicalSchema, error) {
	const query = `
		SELECT TABLE_SCHEMA, TABLE_NAME, COLUMN_NAME
		FROM INFORMATION_SCHEMA.COLUMNS
		WHERE TABLE_SCHEMA NOT IN ('sys', 'INFORMATION_SCHEMA')
		ORDER BY TABLE_SCHEMA, TABLE_NAME, ORDINAL_POSITION`

	rows, err := a.db.QueryContext(ctx, query)
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
func (a *mssqlAdapter) DescribeColumns(ctx context.Context) ([]masking.TableColumn, error) {
	const query = `
		SELECT c.TABLE_SCHEMA, c.TABLE_NAME, c.COLUMN_NAME
		FROM INFORMATION_SCHEMA.COLUMNS c
		JOIN INFORMATION_SCHEMA.TABLES t
			ON t.TABLE_SCHEMA = c.TABLE_SCHEMA AND t.TABLE_NAME = c.TABLE_NAME
		WHERE t.TABLE_TYPE = 'BASE TABLE'
		  AND c.TABLE_SCHEMA NOT IN ('sys', 'INFORMATION_SCHEMA')
		ORDER BY c.TABLE_SCHEMA, c.TABLE_NAME, c.ORDINAL_POSITION`

	rows, err := a.db.QueryContext(ctx, query)
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

func (a *mssqlAdapter) Close() error {
	return a.db.Close()
}

// isStringType reports whether a SQL Server type name holds text.
func isStringType(typeName string) bool {
	switch strings.ToUpper(typeName) {
	case "CHAR", "NCHAR", "VARCHAR", "NVARCHAR", "TEXT", "NTEXT", "XML":
		return true
	default:
		return false
	}
}

// mapSQLServerType maps SQL Server type names to the standard names used
// across adapters, so masking and result rendering see one vocabulary.
func mapSQLServerType(sqlServerType string) string {
	switch strings.ToUpper(sqlServerType) {
	case "TINYINT":
		return "TINYINT"
	case "SMALLINT":
		return "SMALLINT"
	case "INT":
		return "INTEGER"
	case "BIGINT":
		return "BIGINT"
	case "DECIMAL", "NUMERIC":
		return "NUMERIC"
	case "MONEY", "SMALLMONEY":
		return "MONEY"
	case "FLOAT":
		return "DOUBLE PRECISION"
	case "REAL":
		return "REAL"
	case "CHAR", "NCHAR":
		return "CHAR"
	case "VARCHAR", "NVARCHAR":
		return "VARCHAR"
	case "TEXT", "NTEXT":
		return "TEXT"
	case "BINARY", "VARBINARY":
		return "BYTEA"
	case "DATE":
		return "DATE"
	case "TIME":
		return "TIME"
	case "DATETIME", "DATETIME2", "SMALLDATETIME":
		return "TIMESTAMP"
	case "DATETIMEOFFSET":
		return "TIMESTAMP WITH TIME ZONE"
	case "BIT":
		return "BOOLEAN"
	case "UNIQUEIDENTIFIER":
		return "UUID"
	case "JSON":
		return "JSON"
	case "XML":
		return "XML"
	default:
		return strings.ToUpper(sqlServerType)
	}
}
