package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	_ "modernc.org/sqlite"

	"github.com/pv/tb-telemetry-export-go/internal/export"
)

// Sink складывает телеметрию в локальную базу SQLite в длинном формате:
// (device_id, key, ts, value). Удобно, когда выгрузка нужна для
// последующих SQL-запросов, а не для табличного файла.
type Sink struct {
	db     *sql.DB
	device string
}

type Config struct {
	Source string
	Device string // id устройства, которым помечаются строки
}

func New(ctx context.Context, cfg Config) (*Sink, error) {
	if cfg.Source == "" {
		return nil, fmt.Errorf("sqlite sink: database path is empty")
	}
	if cfg.Device == "" {
		return nil, fmt.Errorf("sqlite sink: device id is empty")
	}
	db, err := sql.Open("sqlite", cfg.Source)
	if err != nil {
		return nil, fmt.Errorf("sqlite sink: open: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("sqlite sink: ping: %w", err)
	}
	if _, err := db.ExecContext(ctx, schemaSQL); err != nil {
		db.Close()
		return nil, fmt.Errorf("sqlite sink: init schema: %w", err)
	}
	return &Sink{db: db, device: cfg.Device}, nil
}

func (s *Sink) Close() {
	if s.db != nil {
		s.db.Close()
	}
}

// Write вставляет строки интервала одной транзакцией. Флаг header
// смысла для базы не имеет и игнорируется.
func (s *Sink) Write(ctx context.Context, table *export.Table, _ bool) error {
	if len(table.Rows) == 0 {
		return nil
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("sqlite sink: begin tx: %w", err)
	}
	stmt, err := tx.PrepareContext(ctx, `INSERT INTO telemetry(device_id, key, ts, value) VALUES (?, ?, ?, ?)`)
	if err != nil {
		tx.Rollback()
		return fmt.Errorf("sqlite sink: prepare insert: %w", err)
	}
	for _, row := range table.Rows {
		for i, cell := range row.Cells {
			if !cell.Valid {
				continue
			}
			if _, err := stmt.ExecContext(ctx, s.device, table.Columns[i], row.TS, cell.Value); err != nil {
				stmt.Close()
				tx.Rollback()
				return fmt.Errorf("sqlite sink: insert %s ts=%d: %w", table.Columns[i], row.TS, err)
			}
		}
	}
	stmt.Close()
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("sqlite sink: commit: %w", err)
	}
	return nil
}

const schemaSQL = `
CREATE TABLE IF NOT EXISTS telemetry(
	device_id TEXT NOT NULL,
	key       TEXT NOT NULL,
	ts        INTEGER NOT NULL,
	value     TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS telemetry_device_key_ts ON telemetry(device_id, key, ts);
`

func IsSource(src string) bool {
	if src == "" {
		return false
	}
	lower := strings.ToLower(src)
	switch {
	case strings.HasPrefix(lower, "sqlite://"),
		strings.HasPrefix(lower, "file:"),
		strings.HasSuffix(lower, ".db"),
		src == ":memory:":
		return true
	default:
		return false
	}
}

func NormalizeSource(src string) string {
	if strings.HasPrefix(src, "sqlite://") {
		return strings.TrimPrefix(src, "sqlite://")
	}
	return src
}
