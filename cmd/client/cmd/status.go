package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"plantkeeper/cmd/client/cmd/types"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Состояние клиента",
	RunE: func(cmd *cobra.Command, _ []string) error {
		app, err := types.App(cmd)
		if err != nil {
			return err
		}
		ctx := cmd.Context()

		fmt.Printf("Сервер: %s\n", app.Config().BaseURL())
		if app.IsOnline() {
			types.Success("Онлайн")
		} else {
			types.Warn("Офлайн")
		}

		login, ok := app.CurrentUser()
		if !ok {
			fmt.Println("Пользователь: не выполнен вход")
			return nil
		}
		fmt.Printf("Пользователь: %s\n", login)
		fmt.Printf("Синхронизация: %s\n", app.SyncStatus(ctx))
		fmt.Printf("Ожидают отправки: %s\n", types.Pluralf(app.PendingCount(ctx), "изменение", "изменения", "изменений"))
		return nil
	},
}
