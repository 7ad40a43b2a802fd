package plant

import (
	"encoding/json"
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"plantkeeper/cmd/client/cmd/types"
	"plantkeeper/internal/app/client/store"
)

var listFormat string

var ListCmd = &cobra.Command{
	Use:     "list",
	Aliases: []string{"ls"},
	Short:   "Список растений",
	Long: `Список растений со статусом ухода.

Без связи показываются данные из локального кэша вместе с
изменениями, которые еще ждут синхронизации.`,
	RunE: func(cmd *cobra.Command, _ []string) error {
		app, err := types.App(cmd)
		if err != nil {
			return err
		}
		ctx := cmd.Context()

		plants, err := loadPlants(ctx, app)
		if err != nil {
			return err
		}
		if !app.IsOnline() {
			types.Warn("офлайн: показаны локальные данные")
		}

		views := plants.Views(time.Now())
		switch listFormat {
		case "json":
			return printPlantsJSON(views)
		default:
			printPlantsTable(views, locationNames(ctx, app))
			return nil
		}
	},
}

func printPlantsTable(views []store.PlantView, locations map[string]string) {
	if len(views) == 0 {
		fmt.Println("Растений пока нет. Добавьте: plantkeeper plant add <название>")
		return
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tНАЗВАНИЕ\tМЕСТО\tПОЛИВ\tПОДКОРМКА\tСТАТУС")
	for _, v := range views {
		status := "ок"
		switch {
		case v.Care.NeedsWater && v.Care.NeedsFertilizer:
			status = "полить и подкормить"
		case v.Care.NeedsWater:
			status = "полить"
		case v.Care.NeedsFertilizer:
			status = "подкормить"
		}
		fmt.Fprintf(w, "%s\t%s%s\t%s\t%s\t%s\t%s\n",
			v.ID,
			v.Name,
			types.PendingMark(v.PendingSync),
			locations[types.Value(v.LocationID)],
			types.FormatTime(v.Care.NextWatering),
			types.FormatTime(v.Care.NextFertilizing),
			status,
		)
	}
	_ = w.Flush()
}

func printPlantsJSON(views []store.PlantView) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(views)
}

func init() {
	ListCmd.Flags().StringVarP(&listFormat, "format", "f", "table", "формат вывода: table, json")
}
