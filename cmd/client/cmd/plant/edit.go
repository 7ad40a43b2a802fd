package plant

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"plantkeeper/cmd/client/cmd/types"
	"plantkeeper/internal/domain/plant"
)

var (
	editName        string
	editSpecies     string
	editLocation    string
	editNotes       string
	editWatering    int
	editFertilizing int
	editPhoto       string
	editNoLocation  bool
)

var EditCmd = &cobra.Command{
	Use:   "edit <id>",
	Short: "Изменить растение",
	Long:  `Изменяются только переданные флагами поля.`,
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		app, err := types.App(cmd)
		if err != nil {
			return err
		}
		ctx := cmd.Context()
		flags := cmd.Flags()

		plants, err := loadPlants(ctx, app)
		if err != nil {
			return err
		}

		var patch plant.UpdateRequest
		if flags.Changed("name") {
			patch.Name = &editName
		}
		if flags.Changed("species") {
			patch.Species = &editSpecies
		}
		if flags.Changed("notes") {
			patch.Notes = &editNotes
		}
		if flags.Changed("water-every") {
			patch.WateringIntervalDays = &editWatering
		}
		if flags.Changed("fertilize-every") {
			patch.FertilizingIntervalDays = &editFertilizing
		}
		switch {
		case editNoLocation:
			empty := ""
			patch.LocationID = &empty
		case flags.Changed("location"):
			id, err := resolveLocation(ctx, app, editLocation)
			if err != nil {
				return err
			}
			patch.LocationID = &id
		}
		if editPhoto != "" {
			data, err := os.ReadFile(editPhoto)
			if err != nil {
				return fmt.Errorf("ошибка чтения фото: %w", err)
			}
			patch.Photo = data
		}

		if patch.IsEmpty() {
			return fmt.Errorf("нечего изменять: укажите хотя бы один флаг")
		}

		p, err := plants.Update(ctx, args[0], patch)
		if err != nil {
			return fmt.Errorf("ошибка изменения растения: %w", err)
		}

		types.Success("Растение %q обновлено%s", p.Name, types.PendingMark(p.PendingSync))
		types.OfflineNotice(ctx, app)
		return nil
	},
}

func init() {
	EditCmd.Flags().StringVar(&editName, "name", "", "новое название")
	EditCmd.Flags().StringVarP(&editSpecies, "species", "s", "", "вид растения")
	EditCmd.Flags().StringVarP(&editLocation, "location", "l", "", "место (id или название)")
	EditCmd.Flags().BoolVar(&editNoLocation, "no-location", false, "убрать растение с места")
	EditCmd.Flags().StringVarP(&editNotes, "notes", "n", "", "заметки")
	EditCmd.Flags().IntVar(&editWatering, "water-every", 0, "интервал полива, дней")
	EditCmd.Flags().IntVar(&editFertilizing, "fertilize-every", 0, "интервал подкормки, дней")
	EditCmd.Flags().StringVar(&editPhoto, "photo", "", "путь к сжатому фото")
}
