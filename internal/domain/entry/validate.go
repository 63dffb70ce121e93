package entry

import (
	"strings"

	"github.com/google/uuid"
)

// Validate проверяет обязательные поля записи до любого сетевого вызова
// или записи в хранилище.
func (e Entry) Validate() error {
	if e.ID == uuid.Nil {
		return missing("id")
	}
	if e.OccurredAt.IsZero() {
		return missing("timestamp")
	}
	if e.RecordedAt.IsZero() {
		return missing("recorded_at")
	}
	if e.Source == "" {
		return missing("source")
	}
	if e.Source.Validate() != nil {
		return invalid("source")
	}
	if strings.TrimSpace(e.DeviceID) == "" {
		return missing("device_id")
	}
	return e.Payload.validate()
}

func (p Payload) validate() error {
	if m := p.Measurement; m != nil {
		if strings.TrimSpace(m.Name) == "" {
			return missing("payload.measurement.name")
		}
		if m.ScaleMin != nil && m.ScaleMax != nil && *m.ScaleMin > *m.ScaleMax {
			return invalid("payload.measurement.scale_min")
		}
	}
	if l := p.Location; l != nil {
		if l.Latitude < -90 || l.Latitude > 90 {
			return invalid("payload.location.latitude")
		}
		if l.Longitude < -180 || l.Longitude > 180 {
			return invalid("payload.location.longitude")
		}
	}
	return nil
}

// ValidateBatch проверяет пакет целиком; пустой пакет - ошибка.
func ValidateBatch(entries []Entry) error {
	if len(entries) == 0 {
		return ErrEmptyBatch
	}
	for _, e := range entries {
		if err := e.Validate(); err != nil {
			return err
		}
	}
	return nil
}
