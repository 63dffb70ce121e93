package cmd

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"lifelog/internal/app/client"
	"lifelog/internal/domain/entry"
)

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Настроить клиент lifelog",
	Long: `Команда init выполняет первоначальную настройку клиента:
	1. Запрашивает адрес сервера, идентификатор устройства и источник
	2. Запрашивает токен API (ввод не отображается)
	3. Сохраняет настройки в config.yaml в каталоге конфигурации
	4. Проверяет соединение с сервером

Переменные окружения SERVER_URL, API_TOKEN, DEVICE_ID и SOURCE имеют
приоритет над файлом.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		in := bufio.NewReader(os.Stdin)

		fmt.Println("=== Настройка lifelog ===")
		fmt.Println()

		cfg.ServerURL = prompt(in, "Адрес сервера", cfg.ServerURL)
		cfg.DeviceID = prompt(in, "Идентификатор устройства", cfg.DeviceID)

		source, err := entry.ParseSource(prompt(in, "Источник (phone, watch, cli)", cfg.Source.String()))
		if err != nil {
			return err
		}
		cfg.Source = source

		fmt.Print("Токен API (Enter - оставить текущий): ")
		token, err := term.ReadPassword(int(os.Stdin.Fd()))
		if err != nil {
			return fmt.Errorf("ошибка чтения токена: %w", err)
		}
		fmt.Println()
		if t := strings.TrimSpace(string(token)); t != "" {
			cfg.Token = t
		}

		if err := cfg.Save(); err != nil {
			return err
		}
		fmt.Printf("✓ Настройки сохранены в %s\n", cfg.ConfigFile)

		if !cfg.HasCredentials() {
			fmt.Println("⚠️  Токен не задан: синхронизация будет пропускаться.")
		}

		// Проверяем соединение с сервером
		fmt.Println("Проверка соединения с сервером...")
		transport := client.NewHTTPClient(cfg.ServerURL, cfg.Token, cfg.RequestTimeout, log)
		if err := transport.HealthCheck(cmd.Context()); err != nil {
			fmt.Printf("⚠️  Предупреждение: %v\n", err)
			fmt.Println("Записи можно создавать офлайн, они будут выгружены при следующей синхронизации.")
		} else {
			fmt.Println("✓ Соединение с сервером установлено")
		}

		fmt.Println()
		fmt.Println("Что дальше:")
		fmt.Println("1. Создайте запись: lifelog entry create --text \"...\"")
		fmt.Println("2. Синхронизируйте: lifelog sync")

		return nil
	},
}

func prompt(in *bufio.Reader, label, current string) string {
	if current != "" {
		fmt.Printf("%s [%s]: ", label, current)
	} else {
		fmt.Printf("%s: ", label)
	}

	line, err := in.ReadString('\n')
	if err != nil {
		return current
	}
	if v := strings.TrimSpace(line); v != "" {
		return v
	}
	return current
}
