package plant

import (
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"plantkeeper/cmd/client/cmd/types"
)

var DueCmd = &cobra.Command{
	Use:   "due",
	Short: "Напоминания: кого полить и подкормить",
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

		due := plants.Due(time.Now())
		if len(due) == 0 {
			types.Success("Все растения в порядке")
			return nil
		}

		locations := locationNames(ctx, app)
		w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "ID\tНАЗВАНИЕ\tМЕСТО\tНУЖНО\tПРОСРОЧЕНО, ДН.")
		for _, v := range due {
			need := "полить"
			switch {
			case v.Care.NeedsWater && v.Care.NeedsFertilizer:
				need = "полить, подкормить"
			case v.Care.NeedsFertilizer:
				need = "подкормить"
			}
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%d\n",
				v.ID, v.Name, locations[types.Value(v.LocationID)], need, v.Care.DaysOverdue)
		}
		return w.Flush()
	},
}
