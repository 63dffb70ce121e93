package entry

import (
	"fmt"

	"github.com/danielgtaylor/huma/v2"
)

// Source - тег происхождения записи. Информационный, не участвует в идентичности.
type Source string

const (
	SourcePhone Source = "phone"
	SourceWatch Source = "watch"
	SourceCLI   Source = "cli"
)

func (Source) Schema(huma.Registry) *huma.Schema {
	return &huma.Schema{
		Type: "string",
		Enum: []any{
			string(SourcePhone),
			string(SourceWatch),
			string(SourceCLI),
		},
		Description: "Источник записи",
		Examples:    []any{SourcePhone},
	}
}

// Validate проверяет, что источник входит в фиксированный набор.
func (s Source) Validate() error {
	switch s {
	case SourcePhone, SourceWatch, SourceCLI:
		return nil
	}
	return fmt.Errorf("неизвестный источник: %q", string(s))
}

func (s Source) String() string {
	return string(s)
}

// ParseSource разбирает строку в Source.
func ParseSource(s string) (Source, error) {
	src := Source(s)
	if err := src.Validate(); err != nil {
		return "", err
	}
	return src, nil
}
