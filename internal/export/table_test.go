package export

import (
	"errors"
	"reflect"
	"testing"
)

func TestMergeOuterJoin(t *testing.T) {
	series := map[string][]Point{
		"a": {{TS: 100, Value: "1.0"}},
		"b": {{TS: 100, Value: "2.0"}, {TS: 200, Value: "3.0"}},
	}
	table := Merge([]string{"a", "b"}, series)

	if !reflect.DeepEqual(table.Columns, []string{"a", "b"}) {
		t.Fatalf("columns mismatch: %#v", table.Columns)
	}
	if len(table.Rows) != 2 {
		t.Fatalf("expected 2 rows, got %d", len(table.Rows))
	}
	r0, r1 := table.Rows[0], table.Rows[1]
	if r0.TS != 100 || r0.Cells[0] != (Cell{Value: "1.0", Valid: true}) || r0.Cells[1] != (Cell{Value: "2.0", Valid: true}) {
		t.Fatalf("row 0 mismatch: %#v", r0)
	}
	if r1.TS != 200 || r1.Cells[0].Valid || r1.Cells[1] != (Cell{Value: "3.0", Valid: true}) {
		t.Fatalf("row 1 mismatch: %#v", r1)
	}
}

func TestMergeSortsTimestampsAndKeepsKeyOrder(t *testing.T) {
	series := map[string][]Point{
		"temp": {{TS: 300, Value: "3"}, {TS: 100, Value: "1"}},
		"hum":  {{TS: 200, Value: "2"}},
	}
	table := Merge([]string{"hum", "temp"}, series)
	if !reflect.DeepEqual(table.Columns, []string{"hum", "temp"}) {
		t.Fatalf("columns mismatch: %#v", table.Columns)
	}
	var stamps []int64
	for _, row := range table.Rows {
		stamps = append(stamps, row.TS)
	}
	if !reflect.DeepEqual(stamps, []int64{100, 200, 300}) {
		t.Fatalf("timestamps not sorted: %v", stamps)
	}
}

func TestMergeExtraSeriesAppended(t *testing.T) {
	series := map[string][]Point{
		"a":     {{TS: 1, Value: "1"}},
		"zzz":   {{TS: 1, Value: "z"}},
		"extra": {{TS: 2, Value: "x"}},
	}
	table := Merge([]string{"a"}, series)
	// Лишние ключи уходят в хвост по алфавиту, порядок запрошенных не трогаем.
	if !reflect.DeepEqual(table.Columns, []string{"a", "extra", "zzz"}) {
		t.Fatalf("columns mismatch: %#v", table.Columns)
	}
}

func TestSelectDropsExtraColumns(t *testing.T) {
	table := Merge([]string{"a", "b"}, map[string][]Point{
		"a": {{TS: 1, Value: "1"}},
		"b": {{TS: 1, Value: "2"}},
		"c": {{TS: 1, Value: "3"}},
	})
	selected, err := table.Select([]string{"a", "b"})
	if err != nil {
		t.Fatalf("Select error: %v", err)
	}
	if !reflect.DeepEqual(selected.Columns, []string{"a", "b"}) {
		t.Fatalf("columns mismatch: %#v", selected.Columns)
	}
	if len(selected.Rows) != 1 || len(selected.Rows[0].Cells) != 2 {
		t.Fatalf("rows mismatch: %#v", selected.Rows)
	}
}

func TestSelectMissingKeyIsSchemaDrift(t *testing.T) {
	table := Merge([]string{"a"}, map[string][]Point{
		"a": {{TS: 1, Value: "1"}},
	})
	_, err := table.Select([]string{"a", "gone"})
	var drift *SchemaDriftError
	if !errors.As(err, &drift) {
		t.Fatalf("expected SchemaDriftError, got %v", err)
	}
	if !reflect.DeepEqual(drift.Missing, []string{"gone"}) {
		t.Fatalf("missing mismatch: %#v", drift.Missing)
	}
}
