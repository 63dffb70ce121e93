package config

import (
	"log"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const (
	envPath = ".env"

	EnvLocal = "local"
	EnvDev   = "dev"
	EnvProd  = "prod"

	StoragePostgres = "postgres"
	StorageMemory   = "memory"
)

type Config struct {
	Env     string
	Storage string
	DB      DB
	Server  Server
	Logger  Logger
	Auth    Auth
}

type DB struct {
	DatabaseURI string `env:"DATABASE_URI"`
	Migrations  string `env:"MIGRATIONS_PATH"`
}

type Server struct {
	RunAddress   string        `env:"RUN_ADDRESS"`
	ReadTimeout  time.Duration `env:"READ_TIMEOUT"`
	MaxBodyBytes int64         `env:"MAX_BODY_BYTES"`
}

type Logger struct {
	LogLevel string `env:"LOG_LEVEL" envDefault:"info"`
}

// Auth - единственный bearer-токен API. Пустой токен означает,
// что сервер не настроен и все защищенные вызовы отклоняются.
type Auth struct {
	Token string `env:"API_TOKEN"`
}

func MustLoad() *Config {
	if err := godotenv.Load(envPath); err != nil {
		log.Println("No .env file found, relying on environment variables")
	}

	viper.AutomaticEnv()
	viper.SetDefault("app_env", EnvLocal)
	viper.SetDefault("run_address", ":8080")
	viper.SetDefault("storage", StoragePostgres)
	viper.SetDefault("log_level", "info")
	viper.SetDefault("read_timeout", 15*time.Second)
	viper.SetDefault("max_body_bytes", 4<<20)

	config := Config{
		Env:     viper.GetString("app_env"),
		Storage: viper.GetString("storage"),
		DB: DB{
			DatabaseURI: viper.GetString("database_uri"),
			Migrations:  viper.GetString("migrations_path"),
		},
		Server: Server{
			RunAddress:   viper.GetString("run_address"),
			ReadTimeout:  viper.GetDuration("read_timeout"),
			MaxBodyBytes: viper.GetInt64("max_body_bytes"),
		},
		Logger: Logger{LogLevel: viper.GetString("log_level")},
		Auth:   Auth{Token: viper.GetString("api_token")},
	}

	if config.Storage == StoragePostgres && config.DB.DatabaseURI == "" {
		log.Fatalln("DATABASE_URI is required for postgres storage")
	}

	return &config
}
