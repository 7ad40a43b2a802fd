package plant

import (
	"fmt"

	"github.com/spf13/cobra"

	"plantkeeper/cmd/client/cmd/types"
)

var RemoveCmd = &cobra.Command{
	Use:     "rm <id>",
	Aliases: []string{"delete"},
	Short:   "Удалить растение",
	Args:    cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		app, err := types.App(cmd)
		if err != nil {
			return err
		}
		ctx := cmd.Context()

		plants, err := loadPlants(ctx, app)
		if err != nil {
			return err
		}
		if err := plants.Delete(ctx, args[0]); err != nil {
			return fmt.Errorf("ошибка удаления растения: %w", err)
		}

		types.Success("Растение удалено")
		types.OfflineNotice(ctx, app)
		return nil
	},
}
