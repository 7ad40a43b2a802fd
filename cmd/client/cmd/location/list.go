package location

import (
	"encoding/json"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"plantkeeper/cmd/client/cmd/types"
)

var listFormat string

var ListCmd = &cobra.Command{
	Use:     "list",
	Aliases: []string{"ls"},
	Short:   "Список мест",
	RunE: func(cmd *cobra.Command, _ []string) error {
		app, err := types.App(cmd)
		if err != nil {
			return err
		}
		ctx := cmd.Context()

		locations, err := loadLocations(ctx, app)
		if err != nil {
			return err
		}
		if !app.IsOnline() {
			types.Warn("офлайн: показаны локальные данные")
		}

		items := locations.Entities()
		if listFormat == "json" {
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(items)
		}

		if len(items) == 0 {
			fmt.Println("Мест пока нет. Добавьте: plantkeeper location add <название>")
			return nil
		}
		w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "#\tID\tНАЗВАНИЕ\tОПИСАНИЕ")
		for _, l := range items {
			fmt.Fprintf(w, "%d\t%s\t%s%s\t%s\n", l.SortIndex, l.ID, l.Name, types.PendingMark(l.PendingSync), l.Description)
		}
		return w.Flush()
	},
}

func init() {
	ListCmd.Flags().StringVarP(&listFormat, "format", "f", "table", "формат вывода: table, json")
}
