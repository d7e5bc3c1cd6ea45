package thingsboard

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/pv/tb-telemetry-export-go/internal/export"
)

// TelemetrySource адаптирует клиент к интерфейсу export.Source:
// забирает ряды по ключам и сшивает их в wide-таблицу.
type TelemetrySource struct {
	Client *Client
	Limit  int
}

func (s *TelemetrySource) FetchWindow(ctx context.Context, entity export.Entity, keys []string, from, to time.Time) (*export.Table, error) {
	if s.Client == nil {
		return nil, fmt.Errorf("thingsboard: client is not set")
	}
	id, err := ParseEntity(entity)
	if err != nil {
		return nil, err
	}

	series, err := s.Client.Timeseries(ctx, id, keys, from, to, s.Limit)
	if err != nil {
		return nil, err
	}
	if len(series) == 0 {
		return nil, nil
	}

	points := make(map[string][]export.Point, len(series))
	for key, values := range series {
		column := make([]export.Point, 0, len(values))
		for _, v := range values {
			column = append(column, export.Point{TS: v.TS, Value: v.Value})
		}
		points[key] = column
	}
	return export.Merge(keys, points), nil
}

// ParseEntity восстанавливает EntityID из непрозрачной ссылки экспортёра.
func ParseEntity(entity export.Entity) (EntityID, error) {
	id, err := uuid.Parse(entity.ID)
	if err != nil {
		return EntityID{}, fmt.Errorf("thingsboard: invalid entity id %q: %w", entity.ID, err)
	}
	if entity.Type == "" {
		return EntityID{}, fmt.Errorf("thingsboard: entity type is empty")
	}
	return EntityID{ID: id, EntityType: entity.Type}, nil
}

// ExportEntity — ссылка на устройство для экспортёра.
func (d Device) ExportEntity() export.Entity {
	return export.Entity{
		ID:   d.ID.ID.String(),
		Type: d.ID.EntityType,
		Name: d.Name,
	}
}
