package entry

import (
	"time"

	"github.com/google/uuid"
)

// Entry - одно записанное событие (настроение, заметка, геопозиция и т.д.).
// Поле synced сюда намеренно не входит: это локальная бухгалтерия клиента.
type Entry struct {
	ID         uuid.UUID `json:"id" doc:"UUID записи, ключ идемпотентного upsert"`
	OccurredAt time.Time `json:"timestamp" doc:"Время события"`
	RecordedAt time.Time `json:"recorded_at" doc:"Время фиксации записи на устройстве"`
	Source     Source    `json:"source"`
	DeviceID   string    `json:"device_id" doc:"Идентификатор устройства"`
	Category   *string   `json:"category,omitempty" doc:"Категория (открытое множество)"`
	Payload    Payload   `json:"payload"`
}

// Payload - полезная нагрузка записи.
type Payload struct {
	Text        *string      `json:"text,omitempty"`
	Measurement *Measurement `json:"measurement,omitempty"`
	Location    *Location    `json:"location,omitempty"`
	Tags        []string     `json:"tags,omitempty"`
}

// Measurement - единственное именованное числовое измерение.
type Measurement struct {
	Name     string   `json:"name"`
	Value    float64  `json:"value"`
	Unit     *string  `json:"unit,omitempty"`
	ScaleMin *float64 `json:"scale_min,omitempty"`
	ScaleMax *float64 `json:"scale_max,omitempty"`
}

// Location - географическая точка.
type Location struct {
	Latitude  float64  `json:"latitude"`
	Longitude float64  `json:"longitude"`
	Accuracy  *float64 `json:"accuracy,omitempty"`
	Altitude  *float64 `json:"altitude,omitempty"`
	PlaceName *string  `json:"place_name,omitempty"`
}

// Filter - параметры выборки записей. Границы Since/Until включительные.
type Filter struct {
	Since    *time.Time
	Until    *time.Time
	Category string
	Source   Source
	Limit    int
	Offset   int
}

// New создает запись с новым UUID и текущим временем фиксации.
func New(source Source, deviceID string, occurredAt time.Time) Entry {
	return Entry{
		ID:         uuid.New(),
		OccurredAt: occurredAt.UTC(),
		RecordedAt: time.Now().UTC(),
		Source:     source,
		DeviceID:   deviceID,
	}
}

// Normalize приводит запись к виду, который переживает передачу по сети:
// время в UTC, пустой набор тегов равен nil.
func (e Entry) Normalize() Entry {
	e.OccurredAt = e.OccurredAt.UTC()
	e.RecordedAt = e.RecordedAt.UTC()
	if len(e.Payload.Tags) == 0 {
		e.Payload.Tags = nil
	}
	return e
}

// CategoryOrEmpty возвращает категорию или пустую строку.
func (e Entry) CategoryOrEmpty() string {
	if e.Category == nil {
		return ""
	}
	return *e.Category
}

// Text возвращает текст записи или пустую строку.
func (e Entry) Text() string {
	if e.Payload.Text == nil {
		return ""
	}
	return *e.Payload.Text
}
