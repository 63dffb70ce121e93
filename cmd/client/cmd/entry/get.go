package entry

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"lifelog/cmd/client/cmd/cmdutil"
	"lifelog/internal/app/client"
	"lifelog/internal/domain/entry"
)

var (
	remote    bool
	getFormat string
)

var GetCmd = &cobra.Command{
	Use:   "get <id>",
	Short: "Показать запись",
	Long:  `Показывает запись из локального хранилища или, с флагом --remote, с сервера.`,
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		app, err := cmdutil.App(cmd)
		if err != nil {
			return err
		}

		id, err := cmdutil.ParseID(args[0])
		if err != nil {
			return err
		}

		if remote {
			e, err := app.FetchRemote(cmd.Context(), id)
			if errors.Is(err, client.ErrNotFound) {
				return fmt.Errorf("запись %s не найдена на сервере", id)
			}
			if err != nil {
				return fmt.Errorf("ошибка получения записи с сервера: %w", err)
			}
			return show(e, nil)
		}

		le, err := app.GetEntry(cmd.Context(), id)
		if err != nil {
			return fmt.Errorf("ошибка получения записи: %w", err)
		}
		return show(&le.Entry, &le.Synced)
	},
}

func show(e *entry.Entry, synced *bool) error {
	if getFormat == "json" {
		return cmdutil.PrintJSON(e)
	}

	fmt.Printf("ID:          %s\n", e.ID)
	fmt.Printf("Время:       %s\n", cmdutil.FormatTime(e.OccurredAt))
	fmt.Printf("Записано:    %s\n", cmdutil.FormatTime(e.RecordedAt))
	fmt.Printf("Источник:    %s (%s)\n", e.Source, e.DeviceID)
	if c := e.CategoryOrEmpty(); c != "" {
		fmt.Printf("Категория:   %s\n", c)
	}
	if t := e.Text(); t != "" {
		fmt.Printf("Текст:       %s\n", t)
	}
	if m := e.Payload.Measurement; m != nil {
		fmt.Printf("Измерение:   %s = %g", m.Name, m.Value)
		if m.Unit != nil {
			fmt.Printf(" %s", *m.Unit)
		}
		if m.ScaleMin != nil && m.ScaleMax != nil {
			fmt.Printf(" (шкала %g..%g)", *m.ScaleMin, *m.ScaleMax)
		}
		fmt.Println()
	}
	if l := e.Payload.Location; l != nil {
		fmt.Printf("Место:       %.6f, %.6f", l.Latitude, l.Longitude)
		if l.PlaceName != nil {
			fmt.Printf(" (%s)", *l.PlaceName)
		}
		fmt.Println()
	}
	if len(e.Payload.Tags) > 0 {
		fmt.Printf("Теги:        %v\n", e.Payload.Tags)
	}
	if synced != nil {
		fmt.Printf("Синхронизирована: %v\n", *synced)
	}
	return nil
}

func init() {
	GetCmd.Flags().BoolVar(&remote, "remote", false, "получить запись с сервера")
	GetCmd.Flags().StringVar(&getFormat, "format", "simple", "формат вывода: simple, json")
}
