package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"golang.org/x/exp/slog"

	"plantkeeper/internal/domain/location"
)

const locationColumns = `id::text, user_id, name, description, sort_index, created_at, updated_at`

type LocationRepository struct {
	db  *Storage
	log *slog.Logger
}

func NewLocationRepository(db *Storage, log *slog.Logger) *LocationRepository {
	return &LocationRepository{
		db:  db,
		log: log.With("component", "location_repository"),
	}
}

func (r *LocationRepository) List(ctx context.Context, userID int) ([]location.Location, error) {
	rows, err := r.db.Pool().Query(ctx,
		`SELECT `+locationColumns+` FROM locations WHERE user_id = $1 ORDER BY sort_index, created_at`, userID)
	if err != nil {
		return nil, fmt.Errorf("select locations: %w", err)
	}

	locations, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (location.Location, error) {
		return scanLocation(row)
	})
	if err != nil {
		return nil, fmt.Errorf("scan locations: %w", err)
	}
	return locations, nil
}

func (r *LocationRepository) Get(ctx context.Context, userID int, id string) (*location.Location, error) {
	l, err := scanLocation(r.db.Pool().QueryRow(ctx,
		`SELECT `+locationColumns+` FROM locations WHERE user_id = $1 AND id = $2`, userID, id))
	if err != nil {
		if isNotFound(err) {
			return nil, location.ErrNotFound
		}
		return nil, fmt.Errorf("select location: %w", err)
	}
	return &l, nil
}

func (r *LocationRepository) Create(ctx context.Context, l *location.Location, idempotencyKey string) (*location.Location, error) {
	created, err := scanLocation(r.db.Pool().QueryRow(ctx,
		`INSERT INTO locations (user_id, name, description, sort_index, idempotency_key)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (user_id, idempotency_key) DO UPDATE SET idempotency_key = EXCLUDED.idempotency_key
		RETURNING `+locationColumns,
		l.UserID, l.Name, l.Description, l.SortIndex, nullIfEmpty(idempotencyKey)))
	if err != nil {
		if pgCode(err) == codeUniqueViolation {
			return nil, location.ErrDuplicateName
		}
		return nil, fmt.Errorf("insert location: %w", err)
	}
	return &created, nil
}

func (r *LocationRepository) Update(ctx context.Context, l *location.Location) (*location.Location, error) {
	updated, err := scanLocation(r.db.Pool().QueryRow(ctx,
		`UPDATE locations SET name = $3, description = $4, sort_index = $5, updated_at = NOW()
		WHERE user_id = $1 AND id = $2
		RETURNING `+locationColumns,
		l.UserID, l.ID, l.Name, l.Description, l.SortIndex))
	if err != nil {
		switch {
		case isNotFound(err):
			return nil, location.ErrNotFound
		case pgCode(err) == codeUniqueViolation:
			return nil, location.ErrDuplicateName
		}
		return nil, fmt.Errorf("update location: %w", err)
	}
	return &updated, nil
}

func (r *LocationRepository) Delete(ctx context.Context, userID int, id string) error {
	tag, err := r.db.Pool().Exec(ctx, `DELETE FROM locations WHERE user_id = $1 AND id = $2`, userID, id)
	if err != nil {
		if isNotFound(err) {
			return location.ErrNotFound
		}
		return fmt.Errorf("delete location: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return location.ErrNotFound
	}
	return nil
}

func (r *LocationRepository) NextSortIndex(ctx context.Context, userID int) (int, error) {
	var next int
	err := r.db.Pool().QueryRow(ctx,
		`SELECT COALESCE(MAX(sort_index) + 1, 0) FROM locations WHERE user_id = $1`, userID).Scan(&next)
	if err != nil {
		return 0, fmt.Errorf("next sort index: %w", err)
	}
	return next, nil
}

func scanLocation(row pgx.Row) (location.Location, error) {
	var l location.Location
	err := row.Scan(&l.ID, &l.UserID, &l.Name, &l.Description, &l.SortIndex, &l.CreatedAt, &l.UpdatedAt)
	return l, err
}
