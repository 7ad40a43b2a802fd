package logger

import (
	"io"
	"os"

	"golang.org/x/exp/slog"
	"gopkg.in/natefinch/lumberjack.v2"

	"plantkeeper/internal/utils/logger/handlers/slogpretty"
)

const (
	envLocal = "local"
	envDev   = "dev"
	envProd  = "prod"
)

// New создает логгер в зависимости от окружения и пишет в stdout
func New(env string) *slog.Logger {
	return NewWithWriter(env, os.Stdout)
}

// NewWithWriter создает логгер, пишущий в произвольный writer
func NewWithWriter(env string, out io.Writer) *slog.Logger {
	var log *slog.Logger

	switch env {
	case envLocal, "":
		log = setupPrettySlogTo(out)
	case envDev:
		log = slog.New(
			slog.NewJSONHandler(out, &slog.HandlerOptions{Level: slog.LevelDebug}),
		)
	case envProd:
		log = slog.New(
			slog.NewJSONHandler(out, &slog.HandlerOptions{Level: slog.LevelInfo}),
		)
	default:
		log = slog.New(
			slog.NewJSONHandler(out, &slog.HandlerOptions{Level: slog.LevelInfo}),
		)
	}

	return log
}

// NewFile создает логгер клиента с ротацией файла, чтобы не засорять вывод CLI
func NewFile(env, path string) *slog.Logger {
	rotator := &lumberjack.Logger{
		Filename:   path,
		MaxSize:    10, // мегабайты
		MaxBackups: 3,
		MaxAge:     28, // дни
		Compress:   true,
	}

	if env == envLocal || env == "" {
		// в файл цветной вывод не нужен
		return slog.New(slog.NewTextHandler(rotator, &slog.HandlerOptions{Level: slog.LevelDebug}))
	}

	return NewWithWriter(env, rotator)
}

// Discard возвращает логгер, который ничего не пишет (для тестов)
func Discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func setupPrettySlog() *slog.Logger {
	return setupPrettySlogTo(os.Stdout)
}

func setupPrettySlogTo(out io.Writer) *slog.Logger {
	opts := slogpretty.PrettyHandlerOptions{
		SlogOpts: &slog.HandlerOptions{
			Level: slog.LevelDebug,
		},
	}

	handler := opts.NewPrettyHandler(out)

	return slog.New(handler)
}
