// Package types содержит общее для команд CLI: ключ приложения в контексте и вывод.
package types

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"plantkeeper/internal/app/client"
)

type ctxKey string

// ClientAppKey - ключ, под которым root кладет *client.App в контекст команды.
const ClientAppKey ctxKey = "app"

// TimeFormat формат дат в выводе CLI
const TimeFormat = "2006-01-02 15:04"

var (
	okColor   = color.New(color.FgGreen, color.Bold)
	warnColor = color.New(color.FgYellow)
	errColor  = color.New(color.FgRed, color.Bold)
	dimColor  = color.New(color.Faint)
)

// App достает приложение из контекста команды.
func App(cmd *cobra.Command) (*client.App, error) {
	app, ok := cmd.Context().Value(ClientAppKey).(*client.App)
	if !ok || app == nil {
		return nil, errors.New("приложение не инициализировано")
	}
	return app, nil
}

// WithApp кладет приложение в контекст.
func WithApp(ctx context.Context, app *client.App) context.Context {
	return context.WithValue(ctx, ClientAppKey, app)
}

func Success(format string, args ...any) {
	okColor.Printf("✓ "+format+"\n", args...)
}

func Warn(format string, args ...any) {
	warnColor.Printf("⚠️  "+format+"\n", args...)
}

func Fail(format string, args ...any) {
	errColor.Printf("✗ "+format+"\n", args...)
}

func Dim(format string, args ...any) string {
	return dimColor.Sprintf(format, args...)
}

// PendingMark помечает неотправленные на сервер записи.
func PendingMark(pending bool) string {
	if !pending {
		return ""
	}
	return warnColor.Sprint(" [ожидает синхронизации]")
}

// FormatTime печатает время или прочерк.
func FormatTime(t *time.Time) string {
	if t == nil || t.IsZero() {
		return "-"
	}
	return t.Local().Format(TimeFormat)
}

// OfflineNotice сообщает, что изменение сохранено локально.
func OfflineNotice(ctx context.Context, app *client.App) {
	if app.IsOnline() {
		return
	}
	Warn("нет связи с сервером: изменение сохранено локально (в очереди: %d)", app.PendingCount(ctx))
}

// Value разыменовывает необязательную строку.
func Value(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

// Pluralf - простое склонение для счетчиков.
func Pluralf(n int, one, few, many string) string {
	mod10, mod100 := n%10, n%100
	switch {
	case mod10 == 1 && mod100 != 11:
		return fmt.Sprintf("%d %s", n, one)
	case mod10 >= 2 && mod10 <= 4 && (mod100 < 10 || mod100 >= 20):
		return fmt.Sprintf("%d %s", n, few)
	default:
		return fmt.Sprintf("%d %s", n, many)
	}
}
