package auth

import (
	"fmt"

	"github.com/spf13/cobra"

	"plantkeeper/cmd/client/cmd/types"
	"plantkeeper/internal/domain/user"
)

var RegisterCmd = &cobra.Command{
	Use:   "register",
	Short: "Зарегистрировать нового пользователя",
	Long: `Регистрация нового пользователя на сервере PlantKeeper.

После регистрации войдите: plantkeeper auth login`,
	RunE: func(cmd *cobra.Command, _ []string) error {
		app, err := types.App(cmd)
		if err != nil {
			return err
		}

		fmt.Println("=== Регистрация нового пользователя ===")
		fmt.Println()

		fmt.Print("Логин: ")
		var login string
		_, _ = fmt.Scanln(&login)

		password, err := readPassword("Пароль: ")
		if err != nil {
			return err
		}
		passwordConfirm, err := readPassword("Повторите пароль: ")
		if err != nil {
			return err
		}

		if password != passwordConfirm {
			return fmt.Errorf("пароли не совпадают")
		}
		if len(password) < 8 {
			return fmt.Errorf("пароль должен содержать минимум 8 символов")
		}

		fmt.Println("Регистрация...")
		if err := app.Register(cmd.Context(), user.Credentials{Login: login, Password: password}); err != nil {
			return fmt.Errorf("ошибка регистрации: %w", err)
		}

		fmt.Println()
		types.Success("Регистрация успешно завершена!")
		fmt.Println("Теперь вы можете войти в систему: plantkeeper auth login")
		return nil
	},
}
