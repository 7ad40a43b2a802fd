package location

import (
	"fmt"

	"github.com/spf13/cobra"

	"plantkeeper/cmd/client/cmd/types"
	"plantkeeper/internal/domain/location"
)

var addDescription string

var AddCmd = &cobra.Command{
	Use:   "add <название>",
	Short: "Добавить место",
	Long:  `Название места должно быть уникальным. Новое место встает в конец списка.`,
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
		l, err := locations.Create(ctx, location.CreateRequest{Name: args[0], Description: addDescription})
		if err != nil {
			return fmt.Errorf("ошибка добавления места: %w", err)
		}

		types.Success("Место %q добавлено (ID: %s)%s", l.Name, l.ID, types.PendingMark(l.PendingSync))
		types.OfflineNotice(ctx, app)
		return nil
	},
}

func init() {
	AddCmd.Flags().StringVarP(&addDescription, "description", "d", "", "описание")
}
