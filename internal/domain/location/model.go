package location

import "time"

type Location struct {
	ID          string    `json:"id"`
	UserID      int       `json:"-"`
	Name        string    `json:"name"`
	Description string    `json:"description,omitempty"`
	SortIndex   int       `json:"sort_index"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}
