package entry

import (
	"fmt"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"lifelog/cmd/client/cmd/cmdutil"
	"lifelog/internal/app/client"
	"lifelog/internal/domain/entry"
)

var (
	onlyUnsynced bool
	onlySynced   bool
	listCategory string
	listSource   string
	since        string
	until        string
	limit        int
	offset       int
	listFormat   string
)

var ListCmd = &cobra.Command{
	Use:   "list",
	Short: "Список записей",
	Long: `Просмотр локальных записей, новые сверху.

Поддерживается фильтрация по состоянию синхронизации, категории, источнику
и времени события, а также пагинация через --limit и --offset.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		app, err := cmdutil.App(cmd)
		if err != nil {
			return err
		}

		filter, err := buildFilter()
		if err != nil {
			return err
		}

		entries, err := app.ListEntries(cmd.Context(), filter)
		if err != nil {
			return fmt.Errorf("ошибка получения списка записей: %w", err)
		}

		switch listFormat {
		case "json":
			return cmdutil.PrintJSON(entries)
		case "table":
			return printTable(entries)
		default:
			printSimple(entries)
			return nil
		}
	},
}

func buildFilter() (client.LocalFilter, error) {
	filter := client.LocalFilter{
		Category: listCategory,
		Limit:    limit,
		Offset:   offset,
	}

	switch {
	case onlySynced && onlyUnsynced:
		return filter, fmt.Errorf("--synced и --unsynced взаимоисключающие")
	case onlySynced:
		v := true
		filter.Synced = &v
	case onlyUnsynced:
		v := false
		filter.Synced = &v
	}

	if listSource != "" {
		src, err := entry.ParseSource(listSource)
		if err != nil {
			return filter, err
		}
		filter.Source = src
	}

	if since != "" {
		t, err := cmdutil.ParseTime(since)
		if err != nil {
			return filter, err
		}
		filter.Since = &t
	}
	if until != "" {
		t, err := cmdutil.ParseTime(until)
		if err != nil {
			return filter, err
		}
		filter.Until = &t
	}

	return filter, nil
}

func syncMark(le *client.LocalEntry) string {
	if le.Synced {
		return "✓"
	}
	return "•"
}

func summary(le *client.LocalEntry) string {
	var parts []string
	if t := le.Text(); t != "" {
		parts = append(parts, t)
	}
	if m := le.Payload.Measurement; m != nil {
		parts = append(parts, fmt.Sprintf("%s=%g", m.Name, m.Value))
	}
	if l := le.Payload.Location; l != nil {
		if l.PlaceName != nil {
			parts = append(parts, "@"+*l.PlaceName)
		} else {
			parts = append(parts, fmt.Sprintf("@%.4f,%.4f", l.Latitude, l.Longitude))
		}
	}
	if len(le.Payload.Tags) > 0 {
		parts = append(parts, "#"+strings.Join(le.Payload.Tags, " #"))
	}
	return strings.Join(parts, " ")
}

func printSimple(entries []*client.LocalEntry) {
	if len(entries) == 0 {
		fmt.Println("Записи не найдены")
		return
	}

	fmt.Printf("Найдено записей: %d\n\n", len(entries))
	for _, le := range entries {
		fmt.Printf("%s %s  %-10s %s\n", syncMark(le), cmdutil.FormatTime(le.OccurredAt), le.CategoryOrEmpty(), summary(le))
		fmt.Printf("   %s\n", le.ID)
	}
	fmt.Println()
	fmt.Println("✓ - синхронизирована, • - ожидает выгрузки")
}

func printTable(entries []*client.LocalEntry) error {
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tВРЕМЯ\tКАТЕГОРИЯ\tИСТОЧНИК\tSYNC\tСОДЕРЖИМОЕ")
	for _, le := range entries {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\n",
			le.ID, cmdutil.FormatTime(le.OccurredAt), le.CategoryOrEmpty(), le.Source, syncMark(le), summary(le))
	}
	return w.Flush()
}

func init() {
	ListCmd.Flags().BoolVar(&onlyUnsynced, "unsynced", false, "только ожидающие выгрузки")
	ListCmd.Flags().BoolVar(&onlySynced, "synced", false, "только синхронизированные")
	ListCmd.Flags().StringVar(&listCategory, "category", "", "фильтр по категории")
	ListCmd.Flags().StringVar(&listSource, "source", "", "фильтр по источнику (phone, watch, cli)")
	ListCmd.Flags().StringVar(&since, "since", "", "не раньше (RFC 3339 или YYYY-MM-DD)")
	ListCmd.Flags().StringVar(&until, "until", "", "не позже (RFC 3339 или YYYY-MM-DD)")
	ListCmd.Flags().IntVar(&limit, "limit", 50, "максимум записей")
	ListCmd.Flags().IntVar(&offset, "offset", 0, "пропустить записей")
	ListCmd.Flags().StringVar(&listFormat, "format", "simple", "формат вывода: simple, table, json")
}
