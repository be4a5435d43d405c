package warehouse

import (
	"context"
	"crypto/tls"
	"fmt"
	"reflect"
	"strings"
	"time"

	"github.com/ClickHouse/clickhouse-go/v2"
	"github.com/ClickHouse/clickhouse-go/v2/lib/driver"

	"github.com/lookwise/insight-agent/internal/agent/model"
	errx "github.com/lookwise/insight-agent/internal/core/error"
	logx "github.com/lookwise/insight-agent/pkg/logger"
)

// Runner executes SQL against ClickHouse and describes table schemas.
type Runner struct {
	conn         driver.Conn
	database     string
	queryTimeout time.Duration
}

// NewRunner opens a ClickHouse connection pool and verifies it with a ping.
func NewRunner(ctx context.Context, cfg model.WarehouseConfig) (*Runner, error) {
	opts := &clickhouse.Options{
		Addr: []string{cfg.Addr},
		Auth: clickhouse.Auth{
			Database: cfg.Database,
			Username: cfg.Username,
			Password: cfg.Password,
		},
		DialTimeout:     time.Duration(cfg.DialTimeout) * time.Second,
		MaxOpenConns:    10,
		MaxIdleConns:    5,
		ConnMaxLifetime: time.Hour,
	}
	if cfg.Secure {
		opts.TLS = &tls.Config{}
	}

	conn, err := clickhouse.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open clickhouse connection: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, time.Duration(cfg.DialTimeout)*time.Second)
	defer cancel()
	if err := conn.Ping(pingCtx); err != nil {
		return nil, fmt.Errorf("ping clickhouse: %w", err)
	}

	logx.Info().Str("addr", cfg.Addr).Str("database", cfg.Database).Msg("Connected to ClickHouse")

	return &Runner{
		conn:         conn,
		database:     cfg.Database,
		queryTimeout: time.Duration(cfg.QueryTimeout) * time.Second,
	}, nil
}

// Close releases the connection pool.
func (r *Runner) Close() error {
	return r.conn.Close()
}

// Execute runs an arbitrary SELECT and collects all rows. Column values are
// scanned through the driver's reported scan types, so any projection works
// without a predeclared row struct. Zero rows is a valid success.
func (r *Runner) Execute(ctx context.Context, sql string) (*model.QueryResults, error) {
	sql = strings.TrimSuffix(strings.TrimSpace(sql), ";")

	queryCtx := ctx
	if r.queryTimeout > 0 {
		var cancel context.CancelFunc
		queryCtx, cancel = context.WithTimeout(ctx, r.queryTimeout)
		defer cancel()
	}

	start := time.Now()
	rows, err := r.conn.Query(queryCtx, sql)
	if err != nil {
		return nil, errx.WrapWarehouse(err)
	}
	defer rows.Close()

	columnTypes := rows.ColumnTypes()
	columns := make([]string, len(columnTypes))
	for i, ct := range columnTypes {
		columns[i] = ct.Name()
	}

	var resultRows [][]any
	for rows.Next() {
		values := make([]any, len(columnTypes))
		for i, ct := range columnTypes {
			values[i] = reflect.New(ct.ScanType()).Interface()
		}
		if err := rows.Scan(values...); err != nil {
			return nil, errx.WrapWarehouse(err)
		}

		row := make([]any, len(values))
		for i, v := range values {
			row[i] = reflect.ValueOf(v).Elem().Interface()
		}
		resultRows = append(resultRows, row)
	}
	if err := rows.Err(); err != nil {
		return nil, errx.WrapWarehouse(err)
	}

	logx.Debug().
		Int("rows", len(resultRows)).
		Int("columns", len(columns)).
		Dur("elapsed", time.Since(start)).
		Msg("Query executed")

	return &model.QueryResults{Columns: columns, Rows: resultRows}, nil
}

// DescribeTable fetches the ordered column descriptors for one table from
// system.columns.
func (r *Runner) DescribeTable(ctx context.Context, table string) ([]model.FieldDescriptor, error) {
	const q = `
		SELECT name, type, comment
		FROM system.columns
		WHERE database = ? AND table = ?
		ORDER BY position`

	rows, err := r.conn.Query(ctx, q, r.database, table)
	if err != nil {
		return nil, errx.WrapWarehouse(err)
	}
	defer rows.Close()

	var fields []model.FieldDescriptor
	for rows.Next() {
		var f model.FieldDescriptor
		if err := rows.Scan(&f.Name, &f.Type, &f.Description); err != nil {
			return nil, errx.WrapWarehouse(err)
		}
		fields = append(fields, f)
	}
	if err := rows.Err(); err != nil {
		return nil, errx.WrapWarehouse(err)
	}
	if len(fields) == 0 {
		return nil, fmt.Errorf("table %q not found in database %q", table, r.database)
	}
	return fields, nil
}

var (
	_ model.QueryExecutor  = (*Runner)(nil)
	_ model.TableDescriber = (*Runner)(nil)
)
