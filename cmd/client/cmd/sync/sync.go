package sync

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cheggaaa/pb/v3"
	"github.com/spf13/cobra"

	"lifelog/cmd/client/cmd/cmdutil"
	"lifelog/internal/app/client"
)

var (
	uploadOnly   bool
	downloadOnly bool
	syncStatus   bool
	watch        bool
)

var SyncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Синхронизация с сервером",
	Long: `Синхронизация записей между устройством и сервером.

Сначала несинхронизированные записи выгружаются пачками по 50, затем
с сервера загружаются записи, появившиеся после последней синхронизации.
При совпадении id серверная копия заменяет локальную.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		app, err := cmdutil.App(cmd)
		if err != nil {
			return err
		}

		switch {
		case uploadOnly && downloadOnly:
			return errors.New("--upload-only и --download-only взаимоисключающие")
		case syncStatus:
			return showSyncStatus(cmd.Context(), app)
		case watch:
			return runWatch(cmd.Context(), app)
		}

		return runSync(cmd.Context(), app)
	},
}

func runSync(ctx context.Context, app *client.App) error {
	fmt.Println("=== Синхронизация данных ===")

	if !app.Config().HasCredentials() {
		fmt.Println("⚠️  Токен API не задан, синхронизация пропущена. Выполните: lifelog init")
		return nil
	}

	svc := app.GetSyncService()

	var bar *pb.ProgressBar
	svc.OnProgress(func(done, total int) {
		if bar == nil {
			bar = pb.StartNew(total)
		}
		bar.SetCurrent(int64(done))
	})
	var (
		result *client.SyncResult
		err    error
	)
	switch {
	case uploadOnly:
		result, err = svc.Upload(ctx)
	case downloadOnly:
		result, err = svc.Download(ctx)
	default:
		result, err = svc.Sync(ctx)
	}

	if bar != nil {
		bar.Finish()
		bar = nil
	}

	if err != nil {
		return explain(err)
	}
	if result.Skipped {
		fmt.Printf("Синхронизация пропущена: %s\n", result.SkipReason)
		return nil
	}

	fmt.Println()
	fmt.Println("✅ Синхронизация завершена!")
	fmt.Printf("Время выполнения: %v\n", result.Duration.Round(time.Millisecond))
	if !downloadOnly {
		fmt.Printf("Выгружено на сервер: %d записей (%d пачек)\n", result.Uploaded, result.Batches)
	}
	if !uploadOnly {
		fmt.Printf("Загружено с сервера: %d записей (новых %d, обновлено %d)\n",
			result.Downloaded, result.Inserted, result.Updated)
		if result.SkippedDeleted > 0 {
			fmt.Printf("Пропущено удаленных локально: %d\n", result.SkippedDeleted)
		}
	}

	return nil
}

func showSyncStatus(ctx context.Context, app *client.App) error {
	fmt.Println("=== Статус синхронизации ===")

	total, pending, err := app.Counts(ctx)
	if err != nil {
		return err
	}

	cfg := app.Config()
	fmt.Println("📊 Локальное хранилище:")
	fmt.Printf("  Всего записей: %d\n", total)
	fmt.Printf("  Ожидают выгрузки: %d\n", pending)

	if last, ok := app.GetSyncService().LastSyncTime(); ok {
		fmt.Printf("  Последняя синхронизация: %s\n", cmdutil.FormatTime(last))
	} else {
		fmt.Println("  Последняя синхронизация: никогда")
	}

	fmt.Printf("\n⚙️  Конфигурация:\n")
	fmt.Printf("  Сервер: %s\n", cfg.ServerURL)
	fmt.Printf("  Устройство: %s (%s)\n", cfg.DeviceID, cfg.Source)
	fmt.Printf("  Размер пачки: %d записей\n", cfg.BatchSize)
	fmt.Printf("  Интервал автосинхронизации: %v\n", cfg.SyncInterval)
	fmt.Printf("  Токен: %v\n", cfg.HasCredentials())

	// Проверяем соединение с сервером
	fmt.Printf("\n🌐 Соединение с сервером: ")
	if err := app.CheckConnection(ctx); err != nil {
		fmt.Printf("❌ Ошибка: %v\n", err)
	} else {
		fmt.Printf("✅ OK\n")
	}

	return nil
}

func runWatch(ctx context.Context, app *client.App) error {
	fmt.Printf("Автосинхронизация каждые %v, Ctrl+C для остановки\n", app.Config().SyncInterval)

	if err := app.GetSyncService().StartAutoSync(ctx); err != nil {
		return explain(err)
	}

	stats := app.GetSyncService().GetStats()
	fmt.Printf("\nВсего синхронизаций: %d, с ошибками: %d\n", stats.TotalSyncs, stats.FailedSyncs)
	fmt.Printf("Выгружено: %d, загружено: %d\n", stats.TotalUploaded, stats.TotalDownloaded)
	return nil
}

// explain добавляет к ошибке подсказку, что делать пользователю.
func explain(err error) error {
	switch {
	case errors.Is(err, client.ErrUnauthorized):
		return fmt.Errorf("%w\nТокен отклонен сервером. Обновите его: lifelog init", err)
	case errors.Is(err, client.ErrConnectivity), errors.Is(err, client.ErrTimeout):
		return fmt.Errorf("%w\nСервер недоступен, записи останутся в очереди до следующей синхронизации", err)
	default:
		return fmt.Errorf("ошибка синхронизации: %w", err)
	}
}

func init() {
	SyncCmd.Flags().BoolVar(&uploadOnly, "upload-only", false, "только выгрузить локальные записи")
	SyncCmd.Flags().BoolVar(&downloadOnly, "download-only", false, "только загрузить записи с сервера")
	SyncCmd.Flags().BoolVar(&syncStatus, "status", false, "показать статус синхронизации")
	SyncCmd.Flags().BoolVar(&watch, "watch", false, "синхронизировать периодически до прерывания")
}
