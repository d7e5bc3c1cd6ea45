package postgres

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/pv/tb-telemetry-export-go/internal/export"
)

// Sink складывает телеметрию в PostgreSQL в длинном формате
// (device_id, key, ts, value), по одной транзакции на интервал.
type Sink struct {
	pool   *pgxpool.Pool
	device string
}

type Config struct {
	ConnString string
	Device     string
	MaxConns   int32
}

func New(ctx context.Context, cfg Config) (*Sink, error) {
	if cfg.ConnString == "" {
		return nil, fmt.Errorf("postgres sink: connection string is empty")
	}
	if cfg.Device == "" {
		return nil, fmt.Errorf("postgres sink: device id is empty")
	}
	poolCfg, err := pgxpool.ParseConfig(cfg.ConnString)
	if err != nil {
		return nil, fmt.Errorf("postgres sink: parse config: %w", err)
	}
	if cfg.MaxConns > 0 {
		poolCfg.MaxConns = cfg.MaxConns
	}
	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("postgres sink: create pool: %w", err)
	}
	if _, err := pool.Exec(ctx, schemaSQL); err != nil {
		pool.Close()
		return nil, fmt.Errorf("postgres sink: init schema: %w", err)
	}
	return &Sink{pool: pool, device: cfg.Device}, nil
}

func (s *Sink) Close() {
	if s.pool != nil {
		s.pool.Close()
	}
}

// Write вставляет строки интервала через CopyFrom — для суточного
// интервала это десятки тысяч строк, построчный INSERT слишком медленный.
func (s *Sink) Write(ctx context.Context, table *export.Table, _ bool) error {
	if len(table.Rows) == 0 {
		return nil
	}
	rows := make([][]any, 0, len(table.Rows)*len(table.Columns))
	for _, row := range table.Rows {
		for i, cell := range row.Cells {
			if !cell.Valid {
				continue
			}
			rows = append(rows, []any{s.device, table.Columns[i], row.TS, cell.Value})
		}
	}
	if len(rows) == 0 {
		return nil
	}
	_, err := s.pool.CopyFrom(ctx,
		pgx.Identifier{"telemetry"},
		[]string{"device_id", "key", "ts", "value"},
		pgx.CopyFromRows(rows))
	if err != nil {
		return fmt.Errorf("postgres sink: copy %d rows: %w", len(rows), err)
	}
	return nil
}

const schemaSQL = `
CREATE TABLE IF NOT EXISTS telemetry(
	device_id TEXT NOT NULL,
	key       TEXT NOT NULL,
	ts        BIGINT NOT NULL,
	value     TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS telemetry_device_key_ts ON telemetry(device_id, key, ts);
`

func IsPostgresURL(db string) bool {
	return strings.HasPrefix(db, "postgres://") || strings.HasPrefix(db, "postgresql://")
}
