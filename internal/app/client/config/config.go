package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"lifelog/internal/domain/entry"
)

const (
	EnvLocal = "local"
	EnvDev   = "dev"
	EnvProd  = "prod"
)

const (
	defaultServerURL      = "http://localhost:8080"
	defaultEnv            = EnvLocal
	defaultConfigDir      = ".lifelog"
	defaultRequestTimeout = 30
	defaultSyncInterval   = 300
	defaultBatchSize      = 50

	configName = "config"
	configType = "yaml"
)

type Config struct {
	Env            string
	ServerURL      string
	Token          string
	DeviceID       string
	Source         entry.Source
	ConfigDir      string
	ConfigFile     string
	DataPath       string
	MetadataPath   string
	LogPath        string
	RequestTimeout time.Duration
	SyncInterval   time.Duration
	BatchSize      int
}

// Load читает .env, переменные окружения и config.yaml из каталога конфигурации.
// Переменные окружения важнее файла.
func Load() (*Config, error) {
	// Загружаем .env файл если существует
	envPath := ".env"
	if _, err := os.Stat(envPath); err == nil {
		if err := godotenv.Load(envPath); err != nil {
			return nil, fmt.Errorf("ошибка загрузки .env файла: %w", err)
		}
	}

	v := viper.New()
	v.AutomaticEnv()

	v.SetDefault("app_env", defaultEnv)
	v.SetDefault("server_url", defaultServerURL)
	v.SetDefault("source", string(entry.SourceCLI))
	v.SetDefault("request_timeout_seconds", defaultRequestTimeout)
	v.SetDefault("sync_interval_seconds", defaultSyncInterval)
	v.SetDefault("batch_size", defaultBatchSize)

	configDir, err := resolveConfigDir(v.GetString("config_dir"))
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(configDir, 0o700); err != nil {
		return nil, fmt.Errorf("ошибка создания директории конфигурации: %w", err)
	}

	v.SetConfigName(configName)
	v.SetConfigType(configType)
	v.AddConfigPath(configDir)
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("ошибка чтения %s: %w", filepath.Join(configDir, configName+"."+configType), err)
		}
	}

	deviceID := v.GetString("device_id")
	if deviceID == "" {
		deviceID, _ = os.Hostname()
	}

	source, err := entry.ParseSource(v.GetString("source"))
	if err != nil {
		return nil, fmt.Errorf("некорректный SOURCE: %w", err)
	}

	cfg := &Config{
		Env:            v.GetString("app_env"),
		ServerURL:      strings.TrimRight(v.GetString("server_url"), "/"),
		Token:          v.GetString("api_token"),
		DeviceID:       deviceID,
		Source:         source,
		ConfigDir:      configDir,
		ConfigFile:     filepath.Join(configDir, configName+"."+configType),
		DataPath:       filepath.Join(configDir, "entries.db"),
		MetadataPath:   filepath.Join(configDir, "sync.json"),
		LogPath:        filepath.Join(configDir, "client.log"),
		RequestTimeout: time.Duration(v.GetInt("request_timeout_seconds")) * time.Second,
		SyncInterval:   time.Duration(v.GetInt("sync_interval_seconds")) * time.Second,
		BatchSize:      v.GetInt("batch_size"),
	}

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("ошибка конфигурации: %w", err)
	}

	return cfg, nil
}

// MustLoad загружает конфигурацию клиента
func MustLoad() *Config {
	cfg, err := Load()
	if err != nil {
		panic(err)
	}
	return cfg
}

// Save записывает в config.yaml настройки, задаваемые командой init.
func (c *Config) Save() error {
	v := viper.New()
	v.Set("server_url", c.ServerURL)
	v.Set("api_token", c.Token)
	v.Set("device_id", c.DeviceID)
	v.Set("source", string(c.Source))

	if err := v.WriteConfigAs(c.ConfigFile); err != nil {
		return fmt.Errorf("ошибка записи %s: %w", c.ConfigFile, err)
	}

	// Файл хранит токен.
	return os.Chmod(c.ConfigFile, 0o600)
}

func (c *Config) validate() error {
	u, err := url.Parse(c.ServerURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("server_url должен быть абсолютным URL, получено %q", c.ServerURL)
	}
	if c.DeviceID == "" {
		return errors.New("device_id не может быть пустым")
	}
	if c.BatchSize <= 0 || c.BatchSize > defaultBatchSize {
		return fmt.Errorf("batch_size должен быть от 1 до %d", defaultBatchSize)
	}
	if c.RequestTimeout <= 0 {
		return errors.New("request_timeout_seconds должен быть положительным")
	}
	return nil
}

// HasCredentials сообщает, настроен ли токен.
func (c *Config) HasCredentials() bool {
	return c.Token != ""
}

func resolveConfigDir(dir string) (string, error) {
	if dir != "" {
		return dir, nil
	}

	// Получаем домашнюю директорию пользователя
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("не удалось определить домашнюю директорию: %w", err)
	}
	return filepath.Join(homeDir, defaultConfigDir), nil
}
