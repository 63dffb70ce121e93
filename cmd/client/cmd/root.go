package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"golang.org/x/exp/slog"

	"lifelog/cmd/client/cmd/cmdutil"
	"lifelog/cmd/client/cmd/entry"
	"lifelog/cmd/client/cmd/sync"
	"lifelog/internal/app/client"
	"lifelog/internal/app/client/config"
	"lifelog/internal/utils/logger"
)

var (
	debug     bool
	serverURL string

	cfg *config.Config
	log *slog.Logger
	app *client.App
)

var rootCmd = &cobra.Command{
	Use:   "lifelog",
	Short: "lifelog - журнал событий с синхронизацией между устройствами",
	Long: `lifelog записывает небольшие структурированные события (заметки,
измерения, геопозиции) в локальное хранилище устройства и синхронизирует
их с сервером.

Записи создаются офлайн и выгружаются командой sync.`,
	PersistentPreRunE:  setupApp,
	PersistentPostRunE: closeApp,
	SilenceUsage:       true,
	SilenceErrors:      true,
}

func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Ошибка: %v\n", err)
		stop()
		os.Exit(1)
	}
}

func setupApp(cmd *cobra.Command, _ []string) error {
	// Загружаем конфигурацию
	var err error
	cfg, err = config.Load()
	if err != nil {
		return fmt.Errorf("ошибка загрузки конфигурации: %w", err)
	}

	// Переопределяем настройки из флагов командной строки
	if serverURL != "" {
		cfg.ServerURL = serverURL
	}

	// Логи пишутся в файл, чтобы не смешиваться с выводом команд
	if debug {
		log = logger.New(config.EnvLocal)
	} else {
		log = logger.NewWithFile(cfg.Env, cfg.LogPath)
	}

	app, err = client.New(cfg, log)
	if err != nil {
		return fmt.Errorf("ошибка инициализации приложения: %w", err)
	}

	cmd.SetContext(cmdutil.WithApp(cmd.Context(), app))
	return nil
}

func closeApp(_ *cobra.Command, _ []string) error {
	if app == nil {
		return nil
	}
	return app.Close()
}

func init() {
	// Глобальные флаги
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "выводить отладочные логи в консоль")
	rootCmd.PersistentFlags().StringVar(&serverURL, "server", "", "URL сервера lifelog")

	rootCmd.AddCommand(initCmd)

	rootCmd.AddCommand(entry.EntryCmd)
	entry.EntryCmd.AddCommand(entry.CreateCmd)
	entry.EntryCmd.AddCommand(entry.ListCmd)
	entry.EntryCmd.AddCommand(entry.GetCmd)
	entry.EntryCmd.AddCommand(entry.DeleteCmd)
	entry.EntryCmd.AddCommand(entry.ReceiveCmd)

	rootCmd.AddCommand(sync.SyncCmd)
}
