package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"plantkeeper/cmd/client/cmd/types"
	"plantkeeper/internal/app/client"
	"plantkeeper/internal/app/client/remote"
	"plantkeeper/internal/domain/user"
)

var loginName string

var LoginCmd = &cobra.Command{
	Use:   "login",
	Short: "Войти в PlantKeeper",
	Long: `Аутентификация на сервере PlantKeeper.

Токен сохраняется локально. Если до входа остались неотправленные
изменения этого пользователя, они будут синхронизированы.`,
	RunE: func(cmd *cobra.Command, _ []string) error {
		app, err := types.App(cmd)
		if err != nil {
			return err
		}

		fmt.Println("=== Вход в систему ===")
		fmt.Println()

		login := loginName
		if login == "" {
			fmt.Print("Логин: ")
			_, _ = fmt.Scanln(&login)
		}

		password, err := readPassword("Пароль: ")
		if err != nil {
			return err
		}

		fmt.Println("Аутентификация...")
		ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
		defer cancel()

		err = app.Login(ctx, user.Credentials{Login: login, Password: password})
		if err != nil {
			if remote.IsConnectivity(err) {
				return fmt.Errorf("сервер недоступен, вход возможен только онлайн: %w", err)
			}
			return fmt.Errorf("ошибка аутентификации: %w", err)
		}

		fmt.Println()
		types.Success("Вход выполнен успешно!")

		// Отправляем накопленные изменения и подтягиваем данные
		if n := app.PendingCount(ctx); n > 0 {
			fmt.Printf("Синхронизация: %s в очереди...\n", types.Pluralf(n, "изменение", "изменения", "изменений"))
			result, err := app.SyncNow(ctx)
			switch {
			case errors.Is(err, client.ErrOffline):
				types.Warn("нет связи, изменения отправятся позже")
			case err != nil:
				types.Warn("ошибка синхронизации: %v", err)
			case result.Failed > 0 || result.Blocked > 0:
				types.Warn("синхронизация завершена с ошибками (%d)", len(result.Errors))
			default:
				types.Success("Данные синхронизированы")
			}
		}
		if err := app.Refetch(ctx); err != nil {
			types.Warn("не удалось загрузить данные: %v", err)
		}

		return nil
	},
}

func init() {
	LoginCmd.Flags().StringVarP(&loginName, "login", "l", "", "логин пользователя")
}
