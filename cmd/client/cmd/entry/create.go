package entry

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"lifelog/cmd/client/cmd/cmdutil"
	"lifelog/internal/app/client"
	"lifelog/internal/domain/entry"
)

var (
	text      string
	category  string
	tags      []string
	measure   string
	unit      string
	scaleMin  float64
	scaleMax  float64
	latitude  float64
	longitude float64
	place     string
	at        string
)

var CreateCmd = &cobra.Command{
	Use:   "create",
	Short: "Создать новую запись",
	Long: `Создание новой записи. Запись сохраняется локально и выгружается
на сервер при следующей синхронизации.

Примеры:
  lifelog entry create --text "утренняя пробежка" --category exercise --tag outdoor
  lifelog entry create --category mood --measure mood=7 --scale-min 1 --scale-max 10
  lifelog entry create --text "кофе" --lat 52.52 --lon 13.405 --place "Берлин"`,
	RunE: func(cmd *cobra.Command, args []string) error {
		app, err := cmdutil.App(cmd)
		if err != nil {
			return err
		}

		req := client.CreateEntryRequest{
			Text:     text,
			Category: category,
			Tags:     tags,
		}

		if at != "" {
			if req.OccurredAt, err = cmdutil.ParseTime(at); err != nil {
				return err
			}
		}

		if measure != "" {
			if req.Measurement, err = parseMeasurement(cmd, measure); err != nil {
				return err
			}
		}

		latSet, lonSet := cmd.Flags().Changed("lat"), cmd.Flags().Changed("lon")
		if latSet != lonSet {
			return fmt.Errorf("--lat и --lon задаются вместе")
		}
		if latSet {
			req.Location = &entry.Location{Latitude: latitude, Longitude: longitude}
			if place != "" {
				req.Location.PlaceName = &place
			}
		}

		if req.Text == "" && req.Measurement == nil && req.Location == nil && len(req.Tags) == 0 {
			return fmt.Errorf("запись пуста: укажите --text, --measure, --lat/--lon или --tag")
		}

		e, err := app.CreateEntry(cmd.Context(), req)
		if err != nil {
			return fmt.Errorf("ошибка создания записи: %w", err)
		}

		fmt.Printf("✓ Запись создана: %s\n", e.ID)
		return nil
	},
}

// parseMeasurement разбирает --measure name=value и сопутствующие флаги шкалы.
func parseMeasurement(cmd *cobra.Command, raw string) (*entry.Measurement, error) {
	name, value, ok := strings.Cut(raw, "=")
	if !ok {
		return nil, fmt.Errorf("--measure ожидает формат name=value")
	}

	v, err := strconv.ParseFloat(strings.TrimSpace(value), 64)
	if err != nil {
		return nil, fmt.Errorf("значение измерения %q не является числом", value)
	}

	m := &entry.Measurement{Name: strings.TrimSpace(name), Value: v}
	if unit != "" {
		m.Unit = &unit
	}
	if cmd.Flags().Changed("scale-min") {
		m.ScaleMin = &scaleMin
	}
	if cmd.Flags().Changed("scale-max") {
		m.ScaleMax = &scaleMax
	}
	return m, nil
}

func init() {
	CreateCmd.Flags().StringVar(&text, "text", "", "текст записи")
	CreateCmd.Flags().StringVar(&category, "category", "", "категория (mood, food, exercise, ...)")
	CreateCmd.Flags().StringSliceVar(&tags, "tag", nil, "тег, можно указать несколько раз")
	CreateCmd.Flags().StringVar(&measure, "measure", "", "измерение в формате name=value")
	CreateCmd.Flags().StringVar(&unit, "unit", "", "единица измерения")
	CreateCmd.Flags().Float64Var(&scaleMin, "scale-min", 0, "нижняя граница шкалы")
	CreateCmd.Flags().Float64Var(&scaleMax, "scale-max", 0, "верхняя граница шкалы")
	CreateCmd.Flags().Float64Var(&latitude, "lat", 0, "широта")
	CreateCmd.Flags().Float64Var(&longitude, "lon", 0, "долгота")
	CreateCmd.Flags().StringVar(&place, "place", "", "название места")
	CreateCmd.Flags().StringVar(&at, "at", "", "время события (RFC 3339 или YYYY-MM-DD), по умолчанию сейчас")
}
