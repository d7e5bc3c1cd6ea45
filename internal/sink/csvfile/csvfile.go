package csvfile

import (
	"context"
	"encoding/csv"
	"fmt"
	"os"
	"strconv"

	"github.com/pv/tb-telemetry-export-go/internal/export"
)

// индексная колонка wide-таблицы в заголовке
const tsColumn = "ts"

// Sink пишет wide-таблицу в CSV-файл. Файл не держится открытым между
// интервалами: каждая запись — отдельный цикл open/write/close. Первая
// запись (header=true) пересоздаёт файл, остальные дописывают в конец,
// поэтому после аварийного завершения остаётся валидный CSV, усечённый
// по границе последнего записанного интервала. Пока не было ни одной
// записи, файл не создаётся вовсе.
type Sink struct {
	Path string
}

func (s *Sink) Write(_ context.Context, table *export.Table, header bool) error {
	if s.Path == "" {
		return fmt.Errorf("csv sink: path is empty")
	}

	flags := os.O_CREATE | os.O_WRONLY
	if header {
		flags |= os.O_TRUNC
	} else {
		flags |= os.O_APPEND
	}
	f, err := os.OpenFile(s.Path, flags, 0o644)
	if err != nil {
		return fmt.Errorf("csv sink: open %s: %w", s.Path, err)
	}

	w := csv.NewWriter(f)
	if header {
		record := make([]string, 0, len(table.Columns)+1)
		record = append(record, tsColumn)
		record = append(record, table.Columns...)
		if err := w.Write(record); err != nil {
			f.Close()
			return fmt.Errorf("csv sink: write header: %w", err)
		}
	}
	record := make([]string, len(table.Columns)+1)
	for _, row := range table.Rows {
		record[0] = strconv.FormatInt(row.TS, 10)
		for i, cell := range row.Cells {
			if cell.Valid {
				record[i+1] = cell.Value
			} else {
				record[i+1] = ""
			}
		}
		if err := w.Write(record); err != nil {
			f.Close()
			return fmt.Errorf("csv sink: write row ts=%d: %w", row.TS, err)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		f.Close()
		return fmt.Errorf("csv sink: flush: %w", err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("csv sink: close %s: %w", s.Path, err)
	}
	return nil
}
