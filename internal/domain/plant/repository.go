package plant

import "context"

type Repository interface {
	List(ctx context.Context, userID int) ([]Plant, error)
	Get(ctx context.Context, userID int, id string) (*Plant, error)
	// Create inserts p. When idempotencyKey was already used by this user,
	// the previously created row is returned instead of inserting a new one.
	Create(ctx context.Context, p *Plant, idempotencyKey string) (*Plant, error)
	Update(ctx context.Context, p *Plant) (*Plant, error)
	Delete(ctx context.Context, userID int, id string) error
	LocationExists(ctx context.Context, userID int, locationID string) (bool, error)
}

// PhotoStore keeps photo bytes outside the database.
type PhotoStore interface {
	Put(ctx context.Context, key string, data []byte, contentType string) error
	Get(ctx context.Context, key string) ([]byte, string, error)
	Delete(ctx context.Context, key string) error
}
