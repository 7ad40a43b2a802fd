package auth

import (
	"fmt"

	"github.com/spf13/cobra"

	"plantkeeper/cmd/client/cmd/types"
)

var forceLogout bool

var LogoutCmd = &cobra.Command{
	Use:   "logout",
	Short: "Выйти из PlantKeeper",
	Long: `Выход удаляет локальный кэш и очередь неотправленных изменений
текущего пользователя.`,
	RunE: func(cmd *cobra.Command, _ []string) error {
		app, err := types.App(cmd)
		if err != nil {
			return err
		}

		if n := app.PendingCount(cmd.Context()); n > 0 && !forceLogout {
			return fmt.Errorf("есть неотправленные изменения (%d): выполните plantkeeper sync или повторите с --force", n)
		}

		if err := app.SignOut(cmd.Context()); err != nil {
			return fmt.Errorf("ошибка выхода: %w", err)
		}
		types.Success("Вы вышли из системы")
		return nil
	},
}

func init() {
	LogoutCmd.Flags().BoolVarP(&forceLogout, "force", "f", false, "выйти, даже если есть неотправленные изменения")
}
