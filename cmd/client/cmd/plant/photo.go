package plant

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"plantkeeper/cmd/client/cmd/types"
)

var photoOut string

var PhotoCmd = &cobra.Command{
	Use:   "photo <id>",
	Short: "Сохранить фото растения в файл",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		app, err := types.App(cmd)
		if err != nil {
			return err
		}
		ctx := cmd.Context()

		if _, err := loadPlants(ctx, app); err != nil {
			return err
		}
		data, contentType, err := app.PlantPhoto(ctx, args[0])
		if err != nil {
			return fmt.Errorf("ошибка получения фото: %w", err)
		}

		out := photoOut
		if out == "" {
			out = args[0] + extension(contentType)
		}
		if err := os.WriteFile(out, data, 0600); err != nil {
			return fmt.Errorf("ошибка записи файла: %w", err)
		}
		types.Success("Фото сохранено: %s (%d байт)", out, len(data))
		return nil
	},
}

func extension(contentType string) string {
	switch contentType {
	case "image/png":
		return ".png"
	case "image/webp":
		return ".webp"
	case "image/gif":
		return ".gif"
	default:
		return ".jpg"
	}
}

func init() {
	PhotoCmd.Flags().StringVarP(&photoOut, "out", "o", "", "файл для сохранения")
}
