package export

import (
	"fmt"
	"time"
)

// Window — один интервал выгрузки.
type Window struct {
	Start time.Time
	End   time.Time
}

// Windows нарезает период [from, to] на интервалы фиксированной длины.
// Условие продолжения проверяется по началу интервала, поэтому конец
// последнего интервала может выходить за to: сервер игнорирует данные
// вне запрошенного периода, обрезать здесь нечего.
type Windows struct {
	from   time.Time
	to     time.Time
	chunk  time.Duration
	cursor time.Time
}

// NewWindows создаёт итератор интервалов. chunk должен быть > 0.
func NewWindows(from, to time.Time, chunk time.Duration) (*Windows, error) {
	if chunk <= 0 {
		return nil, fmt.Errorf("export: chunk must be > 0, got %s", chunk)
	}
	return &Windows{from: from, to: to, chunk: chunk, cursor: from}, nil
}

// Next возвращает следующий интервал. Курсор сдвигается ровно на chunk
// на каждой итерации, независимо от того, были ли данные в интервале.
func (w *Windows) Next() (Window, bool) {
	if w.cursor.After(w.to) {
		return Window{}, false
	}
	win := Window{Start: w.cursor, End: w.cursor.Add(w.chunk)}
	w.cursor = win.End
	return win, true
}

// Reset возвращает курсор к началу периода.
func (w *Windows) Reset() {
	w.cursor = w.from
}

// Total — сколько интервалов выдаст итератор: ноль при from > to,
// иначе floor((to-from)/chunk)+1 (последний интервал начинается не позже to).
func (w *Windows) Total() int {
	if w.from.After(w.to) {
		return 0
	}
	return int(w.to.Sub(w.from)/w.chunk) + 1
}
