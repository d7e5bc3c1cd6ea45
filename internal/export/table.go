package export

import (
	"sort"
)

// Point — одно значение временного ряда: timestamp в миллисекундах эпохи
// и значение в том виде, в каком его отдал сервер.
type Point struct {
	TS    int64
	Value string
}

// Cell — значение колонки в строке wide-таблицы. Valid=false означает,
// что для этого timestamp у ключа нет значения (разреженный ряд).
type Cell struct {
	Value string
	Valid bool
}

// Row — одна строка wide-таблицы.
type Row struct {
	TS    int64
	Cells []Cell
}

// Table — timestamp-индексированная таблица: одна колонка на ключ телеметрии,
// строки отсортированы по возрастанию timestamp.
type Table struct {
	Columns []string
	Rows    []Row
}

// Merge собирает wide-таблицу из независимых рядов (full outer join по ts).
// Порядок колонок: сначала ключи из keys, присутствующие в series, затем
// лишние ключи series в алфавитном порядке. Отсутствие ключа в series не
// ошибка на этом уровне — решение принимает экспортёр при записи.
func Merge(keys []string, series map[string][]Point) *Table {
	columns := make([]string, 0, len(series))
	seen := make(map[string]bool, len(series))
	for _, k := range keys {
		if _, ok := series[k]; ok && !seen[k] {
			columns = append(columns, k)
			seen[k] = true
		}
	}
	var extra []string
	for k := range series {
		if !seen[k] {
			extra = append(extra, k)
		}
	}
	sort.Strings(extra)
	columns = append(columns, extra...)

	index := make(map[int64][]Cell)
	stamps := make([]int64, 0, 64)
	for ci, k := range columns {
		for _, p := range series[k] {
			cells, ok := index[p.TS]
			if !ok {
				cells = make([]Cell, len(columns))
				index[p.TS] = cells
				stamps = append(stamps, p.TS)
			}
			cells[ci] = Cell{Value: p.Value, Valid: true}
		}
	}
	sort.Slice(stamps, func(i, j int) bool { return stamps[i] < stamps[j] })

	table := &Table{Columns: columns, Rows: make([]Row, 0, len(stamps))}
	for _, ts := range stamps {
		table.Rows = append(table.Rows, Row{TS: ts, Cells: index[ts]})
	}
	return table
}

// Select возвращает таблицу, ограниченную колонками keys в их порядке.
// Лишние колонки отбрасываются. Если какой-то ключ в таблице отсутствует,
// возвращается SchemaDriftError: молча выкинуть или сфабриковать колонку
// нельзя — ломается контракт на число колонок в выходном файле.
func (t *Table) Select(keys []string) (*Table, error) {
	pos := make(map[string]int, len(t.Columns))
	for i, c := range t.Columns {
		pos[c] = i
	}

	idx := make([]int, 0, len(keys))
	var missing []string
	for _, k := range keys {
		i, ok := pos[k]
		if !ok {
			missing = append(missing, k)
			continue
		}
		idx = append(idx, i)
	}
	if len(missing) > 0 {
		return nil, &SchemaDriftError{Missing: missing}
	}

	out := &Table{Columns: append([]string(nil), keys...), Rows: make([]Row, 0, len(t.Rows))}
	for _, row := range t.Rows {
		cells := make([]Cell, len(idx))
		for n, i := range idx {
			cells[n] = row.Cells[i]
		}
		out.Rows = append(out.Rows, Row{TS: row.TS, Cells: cells})
	}
	return out, nil
}
