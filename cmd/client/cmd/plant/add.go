package plant

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"plantkeeper/cmd/client/cmd/types"
	"plantkeeper/internal/domain/plant"
)

var (
	addSpecies     string
	addLocation    string
	addNotes       string
	addWatering    int
	addFertilizing int
	addPhoto       string
)

var AddCmd = &cobra.Command{
	Use:   "add <название>",
	Short: "Добавить растение",
	Long: `Добавление растения. Без связи растение сохраняется локально
и получит постоянный идентификатор после синхронизации.

Интервалы по умолчанию: полив раз в 7 дней, подкормка раз в 30 дней.`,
	Args: cobra.ExactArgs(1),
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

		req := plant.CreateRequest{
			Name:                    args[0],
			Species:                 addSpecies,
			Notes:                   addNotes,
			WateringIntervalDays:    addWatering,
			FertilizingIntervalDays: addFertilizing,
		}
		if addLocation != "" {
			id, err := resolveLocation(ctx, app, addLocation)
			if err != nil {
				return err
			}
			req.LocationID = &id
		}
		if addPhoto != "" {
			// фото уже сжато: клиент передает байты как есть
			data, err := os.ReadFile(addPhoto)
			if err != nil {
				return fmt.Errorf("ошибка чтения фото: %w", err)
			}
			req.Photo = data
		}

		p, err := plants.Create(ctx, req)
		if err != nil {
			return fmt.Errorf("ошибка добавления растения: %w", err)
		}

		types.Success("Растение %q добавлено (ID: %s)%s", p.Name, p.ID, types.PendingMark(p.PendingSync))
		types.OfflineNotice(ctx, app)
		return nil
	},
}

func init() {
	AddCmd.Flags().StringVarP(&addSpecies, "species", "s", "", "вид растения")
	AddCmd.Flags().StringVarP(&addLocation, "location", "l", "", "место (id или название)")
	AddCmd.Flags().StringVarP(&addNotes, "notes", "n", "", "заметки")
	AddCmd.Flags().IntVar(&addWatering, "water-every", 0, "интервал полива, дней")
	AddCmd.Flags().IntVar(&addFertilizing, "fertilize-every", 0, "интервал подкормки, дней")
	AddCmd.Flags().StringVar(&addPhoto, "photo", "", "путь к сжатому фото")
}
