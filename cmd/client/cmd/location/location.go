package location

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"plantkeeper/internal/app/client"
	"plantkeeper/internal/app/client/store"
)

// LocationCmd - родительская команда для работы с местами
var LocationCmd = &cobra.Command{
	Use:     "location",
	Aliases: []string{"locations", "loc"},
	Short:   "Места, где стоят растения",
	Long:    `Добавление, просмотр, изменение, удаление и упорядочивание мест.`,
}

// loadLocations загружает места: с сервера, если есть связь, иначе из кэша.
func loadLocations(ctx context.Context, app *client.App) (*store.LocationStore, error) {
	locations, err := app.Locations(ctx)
	if err != nil {
		if errors.Is(err, store.ErrNoUser) {
			return nil, fmt.Errorf("требуется вход. Выполните: plantkeeper auth login")
		}
		return nil, err
	}
	if _, err := locations.Fetch(ctx); err != nil && !errors.Is(err, store.ErrNoOfflineData) {
		return nil, fmt.Errorf("ошибка загрузки мест: %w", err)
	}
	return locations, nil
}

// resolve принимает id или название места.
func resolve(locations *store.LocationStore, ref string) (string, error) {
	for _, l := range locations.Entities() {
		if l.ID == ref || strings.EqualFold(l.Name, ref) {
			return l.ID, nil
		}
	}
	return "", fmt.Errorf("место %q не найдено", ref)
}
