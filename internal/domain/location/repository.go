package location

import "context"

type Repository interface {
	// List returns the user's locations ordered by sort index.
	List(ctx context.Context, userID int) ([]Location, error)
	Get(ctx context.Context, userID int, id string) (*Location, error)
	Create(ctx context.Context, l *Location, idempotencyKey string) (*Location, error)
	Update(ctx context.Context, l *Location) (*Location, error)
	Delete(ctx context.Context, userID int, id string) error
	NextSortIndex(ctx context.Context, userID int) (int, error)
}
