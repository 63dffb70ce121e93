package entry

import (
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func ptr[T any](v T) *T {
	return &v
}

func fullEntry() Entry {
	return Entry{
		ID:         uuid.MustParse("7f1c9a52-3f0e-4d38-9a43-1c1f6f0f9d10"),
		OccurredAt: time.Date(2024, 3, 10, 8, 30, 0, 0, time.UTC),
		RecordedAt: time.Date(2024, 3, 10, 9, 0, 0, 0, time.UTC),
		Source:     SourceWatch,
		DeviceID:   "watch-01",
		Category:   ptr("mood"),
		Payload: Payload{
			Text: ptr("утро"),
			Measurement: &Measurement{
				Name:     "mood",
				Value:    7,
				Unit:     ptr("points"),
				ScaleMin: ptr(1.0),
				ScaleMax: ptr(10.0),
			},
			Location: &Location{
				Latitude:  55.75,
				Longitude: 37.61,
				Accuracy:  ptr(12.5),
				Altitude:  ptr(150.0),
				PlaceName: ptr("Moscow"),
			},
			Tags: []string{"morning", "coffee"},
		},
	}
}

func TestEntry_WireRoundTrip(t *testing.T) {
	original := fullEntry()

	data, err := json.Marshal(original)
	require.NoError(t, err)

	var decoded Entry
	require.NoError(t, json.Unmarshal(data, &decoded))

	assert.Equal(t, original, decoded)
}

func TestEntry_NormalizeSurvivesWire(t *testing.T) {
	original := fullEntry()
	original.Payload.Tags = []string{}
	original.OccurredAt = time.Date(2024, 3, 10, 11, 30, 0, 0, time.FixedZone("MSK", 3*60*60))
	original = original.Normalize()

	assert.Nil(t, original.Payload.Tags)
	assert.Equal(t, time.UTC, original.OccurredAt.Location())

	data, err := json.Marshal(original)
	require.NoError(t, err)

	var decoded Entry
	require.NoError(t, json.Unmarshal(data, &decoded))

	assert.Equal(t, original, decoded)
}

func TestEntry_WireFieldNames(t *testing.T) {
	data, err := json.Marshal(fullEntry())
	require.NoError(t, err)

	var raw map[string]any
	require.NoError(t, json.Unmarshal(data, &raw))

	for _, key := range []string{"id", "timestamp", "recorded_at", "source", "device_id", "category", "payload"} {
		assert.Contains(t, raw, key)
	}
	assert.NotContains(t, raw, "synced")
	assert.NotContains(t, raw, "RecordedAt")

	payload := raw["payload"].(map[string]any)
	measurement := payload["measurement"].(map[string]any)
	assert.Contains(t, measurement, "scale_min")
	assert.Contains(t, measurement, "scale_max")
	location := payload["location"].(map[string]any)
	assert.Contains(t, location, "place_name")
}

func TestEntry_OptionalFieldsOmitted(t *testing.T) {
	e := New(SourcePhone, "phone-1", time.Now())

	data, err := json.Marshal(e)
	require.NoError(t, err)

	var raw map[string]any
	require.NoError(t, json.Unmarshal(data, &raw))
	assert.NotContains(t, raw, "category")
	assert.Equal(t, map[string]any{}, raw["payload"])
}

func TestEntry_Validate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(e *Entry)
		field   string
		missing bool
	}{
		{name: "valid", mutate: func(e *Entry) {}},
		{name: "no id", mutate: func(e *Entry) { e.ID = uuid.Nil }, field: "id", missing: true},
		{name: "no timestamp", mutate: func(e *Entry) { e.OccurredAt = time.Time{} }, field: "timestamp", missing: true},
		{name: "no recorded_at", mutate: func(e *Entry) { e.RecordedAt = time.Time{} }, field: "recorded_at", missing: true},
		{name: "no source", mutate: func(e *Entry) { e.Source = "" }, field: "source", missing: true},
		{name: "unknown source", mutate: func(e *Entry) { e.Source = "tablet" }, field: "source"},
		{name: "blank device", mutate: func(e *Entry) { e.DeviceID = "  " }, field: "device_id", missing: true},
		{name: "measurement without name", mutate: func(e *Entry) { e.Payload.Measurement.Name = "" }, field: "payload.measurement.name", missing: true},
		{name: "inverted scale", mutate: func(e *Entry) { e.Payload.Measurement.ScaleMin = ptr(11.0) }, field: "payload.measurement.scale_min"},
		{name: "latitude out of range", mutate: func(e *Entry) { e.Payload.Location.Latitude = 91 }, field: "payload.location.latitude"},
		{name: "longitude out of range", mutate: func(e *Entry) { e.Payload.Location.Longitude = -181 }, field: "payload.location.longitude"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := fullEntry()
			tt.mutate(&e)

			err := e.Validate()
			if tt.field == "" {
				assert.NoError(t, err)
				return
			}

			var vErr *ValidationError
			require.True(t, errors.As(err, &vErr))
			assert.Equal(t, tt.field, vErr.Field)
			assert.Equal(t, tt.missing, vErr.Missing)
			assert.ErrorIs(t, err, ErrInvalidEntry)
		})
	}
}

func TestValidateBatch(t *testing.T) {
	assert.ErrorIs(t, ValidateBatch(nil), ErrEmptyBatch)

	bad := fullEntry()
	bad.DeviceID = ""
	err := ValidateBatch([]Entry{fullEntry(), bad})
	assert.EqualError(t, err, "missing required field: device_id")

	assert.NoError(t, ValidateBatch([]Entry{fullEntry()}))
}

func TestFilter_Match(t *testing.T) {
	e := fullEntry()
	before := e.OccurredAt.Add(-time.Hour)
	after := e.OccurredAt.Add(time.Hour)

	assert.True(t, Filter{}.Match(e))
	assert.True(t, Filter{Since: &e.OccurredAt, Until: &e.OccurredAt}.Match(e), "bounds are inclusive")
	assert.False(t, Filter{Since: &after}.Match(e))
	assert.False(t, Filter{Until: &before}.Match(e))
	assert.False(t, Filter{Category: "note"}.Match(e))
	assert.True(t, Filter{Category: "mood", Source: SourceWatch}.Match(e))
	assert.False(t, Filter{Source: SourcePhone}.Match(e))
}

func TestNormalizeFilter(t *testing.T) {
	assert.Equal(t, DefaultLimit, NormalizeFilter(Filter{}).Limit)
	assert.Equal(t, MaxLimit, NormalizeFilter(Filter{Limit: 5000}).Limit)
	assert.Equal(t, 20, NormalizeFilter(Filter{Limit: 20}).Limit)
	assert.Equal(t, 0, NormalizeFilter(Filter{Offset: -3}).Offset)
}
