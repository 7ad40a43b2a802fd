package plant

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"plantkeeper/cmd/client/cmd/types"
	"plantkeeper/internal/app/client/store"
)

var careAt string

var WaterCmd = &cobra.Command{
	Use:   "water <id>",
	Short: "Отметить полив",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return care(cmd, args[0], "Полив отмечен", (*store.PlantStore).Water)
	},
}

var FertilizeCmd = &cobra.Command{
	Use:   "fertilize <id>",
	Short: "Отметить подкормку",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return care(cmd, args[0], "Подкормка отмечена", (*store.PlantStore).Fertilize)
	},
}

type careAction func(s *store.PlantStore, ctx context.Context, id string, at time.Time) (store.Plant, error)

func care(cmd *cobra.Command, id, done string, action careAction) error {
	app, err := types.App(cmd)
	if err != nil {
		return err
	}
	ctx := cmd.Context()

	at := time.Now()
	if careAt != "" {
		at, err = time.ParseInLocation(types.TimeFormat, careAt, time.Local)
		if err != nil {
			return fmt.Errorf("неверная дата %q, ожидается формат %s", careAt, types.TimeFormat)
		}
	}

	plants, err := loadPlants(ctx, app)
	if err != nil {
		return err
	}
	p, err := action(plants, ctx, id, at)
	if err != nil {
		return fmt.Errorf("ошибка сохранения: %w", err)
	}

	types.Success("%s: %s%s", done, p.Name, types.PendingMark(p.PendingSync))
	types.OfflineNotice(ctx, app)
	return nil
}

func init() {
	for _, c := range []*cobra.Command{WaterCmd, FertilizeCmd} {
		c.Flags().StringVar(&careAt, "at", "", "время ("+types.TimeFormat+"), по умолчанию сейчас")
	}
}
