// Package cmdutil - общие помощники команд CLI.
package cmdutil

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"lifelog/internal/app/client"
)

type appKey struct{}

// WithApp кладет приложение в контекст команды.
func WithApp(ctx context.Context, app *client.App) context.Context {
	return context.WithValue(ctx, appKey{}, app)
}

// App достает приложение, созданное корневой командой.
func App(cmd *cobra.Command) (*client.App, error) {
	app, ok := cmd.Context().Value(appKey{}).(*client.App)
	if !ok || app == nil {
		return nil, errors.New("приложение не инициализировано")
	}
	return app, nil
}

func PrintJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// ParseID разбирает UUID записи из аргумента команды.
func ParseID(arg string) (uuid.UUID, error) {
	id, err := uuid.Parse(arg)
	if err != nil {
		return uuid.Nil, errors.New("id записи должен быть UUID")
	}
	return id, nil
}

// ParseTime принимает RFC 3339 или дату вида 2006-01-02 в локальной зоне.
func ParseTime(value string) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, value); err == nil {
		return t, nil
	}
	t, err := time.ParseInLocation(time.DateOnly, value, time.Local)
	if err != nil {
		return time.Time{}, errors.New("время должно быть в формате RFC 3339 или YYYY-MM-DD")
	}
	return t, nil
}

const timeLayout = "2006-01-02 15:04:05"

// FormatTime печатает время в локальной зоне пользователя.
func FormatTime(t time.Time) string {
	return t.Local().Format(timeLayout)
}
