package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"golang.org/x/exp/slog"

	"plantkeeper/internal/domain/plant"
)

const plantColumns = `id::text, user_id, location_id::text, name, species, notes,
	watering_interval_days, fertilizing_interval_days, last_watered_at, last_fertilized_at,
	photo_key, created_at, updated_at`

type PlantRepository struct {
	db  *Storage
	log *slog.Logger
}

func NewPlantRepository(db *Storage, log *slog.Logger) *PlantRepository {
	return &PlantRepository{
		db:  db,
		log: log.With("component", "plant_repository"),
	}
}

func (r *PlantRepository) List(ctx context.Context, userID int) ([]plant.Plant, error) {
	rows, err := r.db.Pool().Query(ctx,
		`SELECT `+plantColumns+` FROM plants WHERE user_id = $1 ORDER BY created_at, id`, userID)
	if err != nil {
		return nil, fmt.Errorf("select plants: %w", err)
	}

	plants, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (plant.Plant, error) {
		return scanPlant(row)
	})
	if err != nil {
		return nil, fmt.Errorf("scan plants: %w", err)
	}
	return plants, nil
}

func (r *PlantRepository) Get(ctx context.Context, userID int, id string) (*plant.Plant, error) {
	row := r.db.Pool().QueryRow(ctx,
		`SELECT `+plantColumns+` FROM plants WHERE user_id = $1 AND id = $2`, userID, id)

	p, err := scanPlant(row)
	if err != nil {
		if isNotFound(err) {
			return nil, plant.ErrNotFound
		}
		return nil, fmt.Errorf("select plant: %w", err)
	}
	return &p, nil
}

func (r *PlantRepository) Create(ctx context.Context, p *plant.Plant, idempotencyKey string) (*plant.Plant, error) {
	// a replayed key returns the row created by the first attempt
	row := r.db.Pool().QueryRow(ctx,
		`INSERT INTO plants (user_id, location_id, name, species, notes,
			watering_interval_days, fertilizing_interval_days, last_watered_at, last_fertilized_at,
			photo_key, idempotency_key)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		ON CONFLICT (user_id, idempotency_key) DO UPDATE SET idempotency_key = EXCLUDED.idempotency_key
		RETURNING `+plantColumns,
		p.UserID, p.LocationID, p.Name, p.Species, p.Notes,
		p.WateringIntervalDays, p.FertilizingIntervalDays, p.LastWateredAt, p.LastFertilizedAt,
		p.PhotoKey, nullIfEmpty(idempotencyKey))

	created, err := scanPlant(row)
	if err != nil {
		if pgCode(err) == codeForeignKeyViolation {
			return nil, plant.ErrUnknownLocation
		}
		return nil, fmt.Errorf("insert plant: %w", err)
	}
	return &created, nil
}

func (r *PlantRepository) Update(ctx context.Context, p *plant.Plant) (*plant.Plant, error) {
	row := r.db.Pool().QueryRow(ctx,
		`UPDATE plants SET location_id = $3, name = $4, species = $5, notes = $6,
			watering_interval_days = $7, fertilizing_interval_days = $8,
			last_watered_at = $9, last_fertilized_at = $10, photo_key = $11, updated_at = NOW()
		WHERE user_id = $1 AND id = $2
		RETURNING `+plantColumns,
		p.UserID, p.ID, p.LocationID, p.Name, p.Species, p.Notes,
		p.WateringIntervalDays, p.FertilizingIntervalDays,
		p.LastWateredAt, p.LastFertilizedAt, p.PhotoKey)

	updated, err := scanPlant(row)
	if err != nil {
		switch {
		case isNotFound(err):
			return nil, plant.ErrNotFound
		case pgCode(err) == codeForeignKeyViolation:
			return nil, plant.ErrUnknownLocation
		}
		return nil, fmt.Errorf("update plant: %w", err)
	}
	return &updated, nil
}

func (r *PlantRepository) Delete(ctx context.Context, userID int, id string) error {
	tag, err := r.db.Pool().Exec(ctx, `DELETE FROM plants WHERE user_id = $1 AND id = $2`, userID, id)
	if err != nil {
		if isNotFound(err) {
			return plant.ErrNotFound
		}
		return fmt.Errorf("delete plant: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return plant.ErrNotFound
	}
	return nil
}

func (r *PlantRepository) LocationExists(ctx context.Context, userID int, locationID string) (bool, error) {
	var exists bool
	err := r.db.Pool().QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM locations WHERE user_id = $1 AND id = $2)`,
		userID, locationID).Scan(&exists)
	if err != nil {
		if isNotFound(err) {
			return false, nil
		}
		return false, fmt.Errorf("check location: %w", err)
	}
	return exists, nil
}

func scanPlant(row pgx.Row) (plant.Plant, error) {
	var p plant.Plant
	err := row.Scan(&p.ID, &p.UserID, &p.LocationID, &p.Name, &p.Species, &p.Notes,
		&p.WateringIntervalDays, &p.FertilizingIntervalDays, &p.LastWateredAt, &p.LastFertilizedAt,
		&p.PhotoKey, &p.CreatedAt, &p.UpdatedAt)
	return p, err
}
