package export

import (
	"context"
	"fmt"
	"time"
)

// DefaultChunk — размер интервала по умолчанию (сутки, как в выгрузке по дням).
const DefaultChunk = 24 * time.Hour

// Entity — адресуемая сущность платформы. Экспортёр не интерпретирует ID,
// для него это непрозрачный ключ.
type Entity struct {
	ID   string
	Type string
	Name string
}

// Source — внешний поставщик телеметрии.
type Source interface {
	// FetchWindow возвращает wide-таблицу за интервал.
	// (nil, nil) означает «данных нет» — это не ошибка.
	FetchWindow(ctx context.Context, entity Entity, keys []string, from, to time.Time) (*Table, error)
}

// Sink принимает строки готовой таблицы. header=true только при первой
// успешной записи в рамках одной выгрузки.
type Sink interface {
	Write(ctx context.Context, table *Table, header bool) error
}

// Progress — событие о ходе выгрузки одного интервала.
type Progress struct {
	Index   int
	Total   int
	From    time.Time
	To      time.Time
	Rows    int
	Skipped bool
}

// Exporter выгружает телеметрию по интервалам и инкрементально пишет её в sink.
// Вся таблица целиком в памяти не держится: один интервал — одна запись.
type Exporter struct {
	Source Source
	Chunk  time.Duration
	// OnProgress вызывается после обработки каждого интервала (nil — молча).
	OnProgress func(Progress)
}

// Run скачивает телеметрию entity по ключам keys за период [from, to].
// Пустой keys — нечего выгружать, завершаемся без ошибки. from > to —
// ноль итераций, sink не трогаем. Любая ошибка запроса или записи
// фатальна для всей выгрузки: интервалы не пропускаются и не повторяются.
func (e *Exporter) Run(ctx context.Context, entity Entity, keys []string, from, to time.Time, sink Sink) error {
	if e.Source == nil || sink == nil {
		return fmt.Errorf("export: source and sink must be set")
	}
	if len(keys) == 0 {
		return nil
	}
	seen := make(map[string]bool, len(keys))
	for _, k := range keys {
		if seen[k] {
			return fmt.Errorf("export: duplicate key %q", k)
		}
		seen[k] = true
	}

	chunk := e.Chunk
	if chunk == 0 {
		chunk = DefaultChunk
	}
	windows, err := NewWindows(from, to, chunk)
	if err != nil {
		return err
	}
	total := windows.Total()

	wroteHeader := false
	index := 0
	for {
		win, ok := windows.Next()
		if !ok {
			return nil
		}
		index++

		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		table, err := e.Source.FetchWindow(ctx, entity, keys, win.Start, win.End)
		if err != nil {
			return &WindowError{Entity: entity, From: win.Start, To: win.End, Err: err}
		}
		if table == nil || len(table.Rows) == 0 {
			e.notify(Progress{Index: index, Total: total, From: win.Start, To: win.End, Skipped: true})
			continue
		}

		selected, err := table.Select(keys)
		if err != nil {
			return &WindowError{Entity: entity, From: win.Start, To: win.End, Err: err}
		}
		if err := sink.Write(ctx, selected, !wroteHeader); err != nil {
			return &WindowError{Entity: entity, From: win.Start, To: win.End, Err: err}
		}
		wroteHeader = true
		e.notify(Progress{Index: index, Total: total, From: win.Start, To: win.End, Rows: len(selected.Rows)})
	}
}

func (e *Exporter) notify(p Progress) {
	if e.OnProgress != nil {
		e.OnProgress(p)
	}
}
