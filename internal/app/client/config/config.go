package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const (
	defaultServerAddress    = "localhost:8080"
	defaultEnv              = "local"
	defaultConfigDir        = ".plantkeeper"
	defaultSyncInterval     = 30 * time.Second
	defaultSyncStatusWindow = 3 * time.Second
	defaultRequestTimeout   = 10 * time.Second
)

type Config struct {
	Env              string        `mapstructure:"app_env"`
	ServerAddress    string        `mapstructure:"server_address"`
	EnableTLS        bool          `mapstructure:"enable_tls"`
	ConfigDir        string        `mapstructure:"config_dir"`
	DataPath         string        `mapstructure:"data_path"`
	LogPath          string        `mapstructure:"log_path"`
	SyncInterval     time.Duration `mapstructure:"sync_interval"`
	SyncStatusWindow time.Duration `mapstructure:"sync_status_window"`
	RequestTimeout   time.Duration `mapstructure:"request_timeout"`
	MetricsAddress   string        `mapstructure:"metrics_address"`
}

// MustLoad загружает конфигурацию клиента
func MustLoad() *Config {
	cfg, err := Load(viper.New())
	if err != nil {
		panic(fmt.Sprintf("Ошибка конфигурации: %v", err))
	}
	return cfg
}

// Load читает .env, переменные окружения и (если задан) файл конфигурации из v.
func Load(v *viper.Viper) (*Config, error) {
	// Определяем путь к .env файлу (относительно места запуска)
	envPath := ".env"
	if _, err := os.Stat(envPath); os.IsNotExist(err) {
		envPath = "../.env"
	}
	if _, err := os.Stat(envPath); err == nil {
		if err := godotenv.Load(envPath); err != nil {
			fmt.Printf("Ошибка загрузки .env файла: %v\n", err)
		}
	}

	v.AutomaticEnv()

	v.SetDefault("APP_ENV", defaultEnv)
	v.SetDefault("SERVER_ADDRESS", defaultServerAddress)
	v.SetDefault("ENABLE_TLS", false)
	v.SetDefault("CONFIG_DIR", defaultConfigDir)
	v.SetDefault("SYNC_INTERVAL", defaultSyncInterval)
	v.SetDefault("SYNC_STATUS_WINDOW", defaultSyncStatusWindow)
	v.SetDefault("REQUEST_TIMEOUT", defaultRequestTimeout)
	v.SetDefault("METRICS_ADDRESS", "")

	if v.ConfigFileUsed() != "" {
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("ошибка чтения файла конфигурации: %w", err)
		}
	}

	homeDir, err := os.UserHomeDir()
	if err != nil {
		homeDir = "."
	}

	configDir := v.GetString("CONFIG_DIR")
	if configDir == defaultConfigDir {
		configDir = filepath.Join(homeDir, configDir)
	}

	if err := os.MkdirAll(configDir, 0700); err != nil {
		return nil, fmt.Errorf("ошибка создания директории конфигурации: %w", err)
	}

	dataPath := v.GetString("DATA_PATH")
	if dataPath == "" {
		dataPath = filepath.Join(configDir, "plantkeeper.db")
	}
	logPath := v.GetString("LOG_PATH")
	if logPath == "" {
		logPath = filepath.Join(configDir, "client.log")
	}

	cfg := &Config{
		Env:              v.GetString("APP_ENV"),
		ServerAddress:    v.GetString("SERVER_ADDRESS"),
		EnableTLS:        v.GetBool("ENABLE_TLS"),
		ConfigDir:        configDir,
		DataPath:         dataPath,
		LogPath:          logPath,
		SyncInterval:     v.GetDuration("SYNC_INTERVAL"),
		SyncStatusWindow: v.GetDuration("SYNC_STATUS_WINDOW"),
		RequestTimeout:   v.GetDuration("REQUEST_TIMEOUT"),
		MetricsAddress:   v.GetString("METRICS_ADDRESS"),
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	if c.ServerAddress == "" {
		return fmt.Errorf("server_address не может быть пустым")
	}
	if c.SyncInterval <= 0 {
		return fmt.Errorf("sync_interval должен быть положительным")
	}
	if c.SyncStatusWindow < 0 {
		return fmt.Errorf("sync_status_window не может быть отрицательным")
	}
	if c.RequestTimeout <= 0 {
		return fmt.Errorf("request_timeout должен быть положительным")
	}
	return nil
}

// BaseURL возвращает адрес сервера со схемой.
func (c *Config) BaseURL() string {
	scheme := "http"
	if c.EnableTLS {
		scheme = "https"
	}
	return scheme + "://" + c.ServerAddress
}

// WebsocketURL возвращает адрес presence-канала.
func (c *Config) WebsocketURL() string {
	scheme := "ws"
	if c.EnableTLS {
		scheme = "wss"
	}
	return scheme + "://" + c.ServerAddress + "/api/v1/ws"
}

// StatePath путь к файлу состояния (текущий пользователь и токен).
func (c *Config) StatePath() string {
	return filepath.Join(c.ConfigDir, "state.json")
}

// IsProd проверяет, prod ли окружение
func (c *Config) IsProd() bool {
	return c.Env == "prod"
}

// IsLocal проверяет, local ли окружение
func (c *Config) IsLocal() bool {
	return c.Env == "local" || c.Env == ""
}
