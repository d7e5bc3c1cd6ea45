package export

import (
	"fmt"
	"strings"
	"time"
)

// SchemaDriftError — в полученной таблице нет одной или нескольких
// запрошенных колонок: набор ключей разошёлся с тем, что отдаёт сервер.
type SchemaDriftError struct {
	Missing []string
}

func (e *SchemaDriftError) Error() string {
	return fmt.Sprintf("export: response is missing keys: %s", strings.Join(e.Missing, ", "))
}

// WindowError — фатальная ошибка выгрузки одного интервала.
// Несёт сущность и границы интервала, чтобы вызывающий мог понять,
// где именно всё остановилось.
type WindowError struct {
	Entity Entity
	From   time.Time
	To     time.Time
	Err    error
}

func (e *WindowError) Error() string {
	return fmt.Sprintf("export %s %s: window %s → %s: %v",
		e.Entity.Type, e.Entity.ID, e.From.Format(time.RFC3339), e.To.Format(time.RFC3339), e.Err)
}

func (e *WindowError) Unwrap() error {
	return e.Err
}
