package location

import (
	"fmt"

	"github.com/spf13/cobra"

	"plantkeeper/cmd/client/cmd/types"
	"plantkeeper/internal/domain/location"
)

var (
	editName        string
	editDescription string
)

var EditCmd = &cobra.Command{
	Use:   "edit <id|название>",
	Short: "Изменить место",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		app, err := types.App(cmd)
		if err != nil {
			return err
		}
		ctx := cmd.Context()

		locations, err := loadLocations(ctx, app)
		if err != nil {
			return err
		}
		id, err := resolve(locations, args[0])
		if err != nil {
			return err
		}

		var patch location.UpdateRequest
		if cmd.Flags().Changed("name") {
			patch.Name = &editName
		}
		if cmd.Flags().Changed("description") {
			patch.Description = &editDescription
		}
		if patch.IsEmpty() {
			return fmt.Errorf("нечего изменять: укажите --name или --description")
		}

		l, err := locations.Update(ctx, id, patch)
		if err != nil {
			return fmt.Errorf("ошибка изменения места: %w", err)
		}
		types.Success("Место %q обновлено%s", l.Name, types.PendingMark(l.PendingSync))
		types.OfflineNotice(ctx, app)
		return nil
	},
}

func init() {
	EditCmd.Flags().StringVar(&editName, "name", "", "новое название")
	EditCmd.Flags().StringVarP(&editDescription, "description", "d", "", "описание")
}
