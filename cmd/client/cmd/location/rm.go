package location

import (
	"fmt"

	"github.com/spf13/cobra"

	"plantkeeper/cmd/client/cmd/types"
)

var RemoveCmd = &cobra.Command{
	Use:     "rm <id|название>",
	Aliases: []string{"delete"},
	Short:   "Удалить место",
	Long:    `Растения, стоявшие в этом месте, остаются без места.`,
	Args:    cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		app, err := types.App(cmd)
		if err != nil {
			return err
		}
		ctx := cmd.Context()

		// растения нужны локально, чтобы снять с них ссылку на место
		plants, err := app.Plants(ctx)
		if err != nil {
			return err
		}
		_, _ = plants.Fetch(ctx)

		locations, err := loadLocations(ctx, app)
		if err != nil {
			return err
		}
		id, err := resolve(locations, args[0])
		if err != nil {
			return err
		}
		if err := locations.Delete(ctx, id); err != nil {
			return fmt.Errorf("ошибка удаления места: %w", err)
		}

		types.Success("Место удалено")
		types.OfflineNotice(ctx, app)
		return nil
	},
}
