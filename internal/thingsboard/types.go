package thingsboard

import (
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
)

// EntityID — идентификатор сущности платформы: UUID плюс тип
// (DEVICE, ASSET, CUSTOMER и т.д.).
type EntityID struct {
	ID         uuid.UUID `json:"id"`
	EntityType string    `json:"entityType"`
}

// Device — устройство, как его отдаёт REST API (нужные нам поля).
type Device struct {
	ID    EntityID `json:"id"`
	Name  string   `json:"name"`
	Type  string   `json:"type"`
	Label string   `json:"label"`
}

// Asset — asset платформы.
type Asset struct {
	ID   EntityID `json:"id"`
	Name string   `json:"name"`
	Type string   `json:"type"`
}

// DevicePage — страница устройств из paged-ответа.
type DevicePage struct {
	Data          []Device `json:"data"`
	TotalElements int64    `json:"totalElements"`
	HasNext       bool     `json:"hasNext"`
}

// AssetPage — страница asset-ов.
type AssetPage struct {
	Data          []Asset `json:"data"`
	TotalElements int64   `json:"totalElements"`
	HasNext       bool    `json:"hasNext"`
}

// Relation — связь между сущностями (/api/relations).
type Relation struct {
	From EntityID `json:"from"`
	To   EntityID `json:"to"`
	Type string   `json:"type"`
}

// Attribute — атрибут сущности.
type Attribute struct {
	Key          string `json:"key"`
	Value        any    `json:"value"`
	LastUpdateTs int64  `json:"lastUpdateTs"`
}

// TsValue — точка временного ряда: timestamp в миллисекундах и значение.
// API отдаёт value строкой, числом или bool — храним текстовое
// представление как есть, без преобразований.
type TsValue struct {
	TS    int64
	Value string
}

func (v *TsValue) UnmarshalJSON(data []byte) error {
	var raw struct {
		TS    int64           `json:"ts"`
		Value json.RawMessage `json:"value"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("thingsboard: decode ts value: %w", err)
	}
	v.TS = raw.TS
	v.Value = rawScalar(raw.Value)
	return nil
}

// rawScalar превращает JSON-скаляр в строку: строки разэкранируются,
// числа и bool остаются в исходной записи, null — пустая строка.
func rawScalar(raw json.RawMessage) string {
	if len(raw) == 0 || string(raw) == "null" {
		return ""
	}
	if raw[0] == '"' {
		var s string
		if err := json.Unmarshal(raw, &s); err == nil {
			return s
		}
	}
	return string(raw)
}
