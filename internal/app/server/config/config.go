package config

import (
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const (
	envPath  = ".env"
	EnvLocal = "local"
	EnvDev   = "dev"
	EnvProd  = "prod"
)

type Config struct {
	Env     string
	DB      DB
	Server  Server
	Logger  Logger
	Blob    Blob
	Session Session
}

type DB struct {
	DatabaseURI string `env:"DATABASE_URI"`
	Migrations  string `env:"MIGRATIONS_PATH"`
}

type Server struct {
	RunAddress      string        `env:"RUN_ADDRESS"`
	ShutdownTimeout time.Duration `env:"SHUTDOWN_TIMEOUT"`
	// PresenceInterval is the heartbeat period of the presence websocket.
	PresenceInterval time.Duration `env:"PRESENCE_INTERVAL"`
}

type Logger struct {
	LogLevel string `env:"LOG_LEVEL" envDefault:"info"`
}

type Blob struct {
	Driver      string `env:"BLOB_DRIVER"`
	FSRoot      string `env:"BLOB_FS_ROOT"`
	S3Bucket    string `env:"BLOB_S3_BUCKET"`
	S3Region    string `env:"BLOB_S3_REGION"`
	S3Endpoint  string `env:"BLOB_S3_ENDPOINT"`
	S3PathStyle bool   `env:"BLOB_S3_PATH_STYLE"`
}

type Session struct {
	TTL time.Duration `env:"SESSION_TTL"`
}

func MustLoad() *Config {
	cfg, err := Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	return cfg
}

func Load() (*Config, error) {
	if err := godotenv.Load(envPath); err != nil {
		log.Println("No .env file found, relying on environment variables")
	}

	v := viper.New()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetDefault("app_env", EnvLocal)
	v.SetDefault("run_address", ":8080")
	v.SetDefault("migrations_path", "migrations")
	v.SetDefault("log_level", "info")
	v.SetDefault("shutdown_timeout", 10*time.Second)
	v.SetDefault("presence_interval", 10*time.Second)
	v.SetDefault("blob_driver", "fs")
	v.SetDefault("blob_fs_root", "./blobdata")
	v.SetDefault("session_ttl", 24*time.Hour)

	cfg := &Config{
		Env: v.GetString("app_env"),
		DB: DB{
			DatabaseURI: v.GetString("database_uri"),
			Migrations:  v.GetString("migrations_path"),
		},
		Server: Server{
			RunAddress:       v.GetString("run_address"),
			ShutdownTimeout:  v.GetDuration("shutdown_timeout"),
			PresenceInterval: v.GetDuration("presence_interval"),
		},
		Logger: Logger{LogLevel: v.GetString("log_level")},
		Blob: Blob{
			Driver:      v.GetString("blob_driver"),
			FSRoot:      v.GetString("blob_fs_root"),
			S3Bucket:    v.GetString("blob_s3_bucket"),
			S3Region:    v.GetString("blob_s3_region"),
			S3Endpoint:  v.GetString("blob_s3_endpoint"),
			S3PathStyle: v.GetBool("blob_s3_path_style"),
		},
		Session: Session{TTL: v.GetDuration("session_ttl")},
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	if c.DB.DatabaseURI == "" {
		return fmt.Errorf("DATABASE_URI is required")
	}
	switch c.Env {
	case EnvLocal, EnvDev, EnvProd:
	default:
		return fmt.Errorf("unknown APP_ENV %q", c.Env)
	}
	if c.Server.PresenceInterval <= 0 {
		return fmt.Errorf("PRESENCE_INTERVAL must be positive")
	}
	return nil
}
