package cmd

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"plantkeeper/cmd/client/cmd/types"
	"plantkeeper/internal/app/client/store"
)

var daemonCmd = &cobra.Command{
	Use:   "daemon",
	Short: "Фоновая синхронизация",
	Long: `Держит соединение с сервером, отправляет очередь при появлении связи
и периодически (SYNC_INTERVAL). При заданном METRICS_ADDRESS отдает
метрики Prometheus.`,
	RunE: func(cmd *cobra.Command, _ []string) error {
		app, err := types.App(cmd)
		if err != nil {
			return err
		}

		fmt.Println("Фоновая синхронизация запущена, Ctrl+C для остановки")
		if err := app.Run(cmd.Context()); err != nil {
			if errors.Is(err, store.ErrNoUser) {
				return fmt.Errorf("требуется вход. Выполните: plantkeeper auth login")
			}
			return err
		}
		fmt.Println("Остановлено")
		return nil
	},
}
