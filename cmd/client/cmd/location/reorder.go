package location

import (
	"fmt"

	"github.com/spf13/cobra"

	"plantkeeper/cmd/client/cmd/types"
)

var ReorderCmd = &cobra.Command{
	Use:   "reorder <id|название>...",
	Short: "Задать порядок мест",
	Long: `Перечисленные места встают в начало списка в указанном порядке,
остальные сохраняют прежний порядок.

Без связи новый порядок сохраняется только локально и на сервер не отправляется.`,
	Args: cobra.MinimumNArgs(1),
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
		ids := make([]string, 0, len(args))
		for _, ref := range args {
			id, err := resolve(locations, ref)
			if err != nil {
				return err
			}
			ids = append(ids, id)
		}

		if err := locations.Reorder(ctx, ids); err != nil {
			return fmt.Errorf("ошибка изменения порядка: %w", err)
		}
		types.Success("Порядок мест обновлен")
		if !app.IsOnline() {
			types.Warn("нет связи: порядок сохранен только на этом устройстве")
		}
		return nil
	},
}
