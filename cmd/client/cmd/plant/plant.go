package plant

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"plantkeeper/internal/app/client"
	"plantkeeper/internal/app/client/store"
)

// PlantCmd - родительская команда для работы с растениями
var PlantCmd = &cobra.Command{
	Use:     "plant",
	Aliases: []string{"plants"},
	Short:   "Растения",
	Long:    `Добавление, просмотр, изменение и удаление растений, отметки о поливе и подкормке.`,
}

// loadPlants загружает растения: с сервера, если есть связь, иначе из кэша.
func loadPlants(ctx context.Context, app *client.App) (*store.PlantStore, error) {
	plants, err := app.Plants(ctx)
	if err != nil {
		return nil, authError(err)
	}
	if _, err := plants.Fetch(ctx); err != nil && !errors.Is(err, store.ErrNoOfflineData) {
		return nil, fmt.Errorf("ошибка загрузки растений: %w", err)
	}
	return plants, nil
}

// resolveLocation принимает id или название места. Пустая строка - без места.
func resolveLocation(ctx context.Context, app *client.App, ref string) (string, error) {
	if ref == "" {
		return "", nil
	}
	locations, err := app.Locations(ctx)
	if err != nil {
		return "", authError(err)
	}
	if _, err := locations.Fetch(ctx); err != nil && !errors.Is(err, store.ErrNoOfflineData) {
		return "", fmt.Errorf("ошибка загрузки мест: %w", err)
	}
	for _, l := range locations.Entities() {
		if l.ID == ref || strings.EqualFold(l.Name, ref) {
			return l.ID, nil
		}
	}
	return "", fmt.Errorf("место %q не найдено", ref)
}

func locationNames(ctx context.Context, app *client.App) map[string]string {
	names := make(map[string]string)
	locations, err := app.Locations(ctx)
	if err != nil {
		return names
	}
	for _, l := range locations.Entities() {
		names[l.ID] = l.Name
	}
	return names
}

func authError(err error) error {
	if errors.Is(err, store.ErrNoUser) {
		return fmt.Errorf("требуется вход. Выполните: plantkeeper auth login")
	}
	return err
}
