package sync

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"plantkeeper/cmd/client/cmd/types"
	"plantkeeper/internal/app/client"
	"plantkeeper/internal/app/client/queue"
	"plantkeeper/internal/app/client/store"
	clientsync "plantkeeper/internal/app/client/sync"
)

var (
	syncStatus bool
	dropID     string
)

var SyncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Синхронизация с сервером",
	Long: `Отправка на сервер изменений, сделанных без связи.

Изменения отправляются в порядке зависимостей: место создается раньше
растений, которые в нем стоят. Отклоненные сервером изменения остаются
в очереди и повторяются при следующей синхронизации. Такое изменение
можно отбросить: plantkeeper sync --drop <id> (id видны в sync --status).`,
	RunE: func(cmd *cobra.Command, _ []string) error {
		app, err := types.App(cmd)
		if err != nil {
			return err
		}
		if syncStatus {
			return showSyncStatus(cmd, app)
		}
		if dropID != "" {
			return dropMutation(cmd, app, dropID)
		}
		return runSync(cmd, app)
	},
}

func runSync(cmd *cobra.Command, app *client.App) error {
	ctx := cmd.Context()
	fmt.Println("=== Синхронизация данных ===")

	pending := app.PendingCount(ctx)
	fmt.Printf("В очереди: %s\n", types.Pluralf(pending, "изменение", "изменения", "изменений"))

	result, err := app.SyncNow(ctx)
	switch {
	case errors.Is(err, store.ErrNoUser):
		return fmt.Errorf("требуется вход. Выполните: plantkeeper auth login")
	case errors.Is(err, client.ErrOffline):
		types.Warn("нет связи с сервером, изменения будут отправлены позже")
		return nil
	case err != nil:
		return fmt.Errorf("ошибка синхронизации: %w", err)
	}

	if result.Status == clientsync.StatusSyncing {
		types.Warn("синхронизация уже выполняется")
		return nil
	}

	fmt.Println()
	if result.Status == clientsync.StatusSuccess {
		types.Success("Синхронизация завершена!")
	} else {
		types.Fail("Синхронизация завершена с ошибками")
	}
	fmt.Printf("Время выполнения: %v\n", result.Duration.Round(time.Millisecond))
	fmt.Printf("Отправлено: %d\n", result.Applied)
	if result.Dropped > 0 {
		fmt.Printf("Пропущено (порядок мест): %d\n", result.Dropped)
	}

	if len(result.Errors) > 0 {
		fmt.Printf("Ошибок: %d (отклонено %d, ждут зависимостей %d)\n", len(result.Errors), result.Failed, result.Blocked)
		for i, e := range result.Errors {
			if i == 3 { // Показываем только первые 3 ошибки
				fmt.Printf("  ... и еще %d\n", len(result.Errors)-3)
				break
			}
			fmt.Printf("  • %s %s %s: %s\n", e.Action, e.EntityType, e.EntityID, e.Err)
		}
	}
	fmt.Printf("Осталось в очереди: %d\n", result.Remaining)
	return nil
}

func showSyncStatus(cmd *cobra.Command, app *client.App) error {
	ctx := cmd.Context()
	ws, err := app.Workspace(ctx)
	if err != nil {
		if errors.Is(err, store.ErrNoUser) {
			return fmt.Errorf("требуется вход. Выполните: plantkeeper auth login")
		}
		return err
	}

	fmt.Println("=== Статус синхронизации ===")
	fmt.Printf("Статус: %s\n", ws.Sync.Status())
	fmt.Printf("В очереди: %d\n", ws.Queue.Count())
	if ws.Queue.Degraded() || ws.Cache.Degraded() {
		types.Warn("локальное хранилище недоступно, данные хранятся только в памяти")
	}

	for _, m := range ws.Queue.All() {
		line := fmt.Sprintf("  • %s %s %s %s", m.ID, m.Action, m.EntityType, m.EntityID)
		if m.Attempts > 0 {
			line += types.Dim(" (попыток: %d, ошибка: %s)", m.Attempts, m.LastError)
		}
		fmt.Println(line)
	}
	return nil
}

func dropMutation(cmd *cobra.Command, app *client.App, id string) error {
	err := app.Discard(cmd.Context(), id)
	switch {
	case errors.Is(err, store.ErrNoUser):
		return fmt.Errorf("требуется вход. Выполните: plantkeeper auth login")
	case errors.Is(err, queue.ErrNotFound):
		return fmt.Errorf("изменение %s не найдено в очереди", id)
	case err != nil:
		return err
	}

	types.Success("Изменение %s отброшено", id)
	if !app.IsOnline() {
		types.Warn("нет связи с сервером: список обновится после следующей загрузки")
	}
	return nil
}

func init() {
	SyncCmd.Flags().BoolVarP(&syncStatus, "status", "s", false, "показать очередь без синхронизации")
	SyncCmd.Flags().StringVar(&dropID, "drop", "", "отбросить изменение из очереди по id")
}
