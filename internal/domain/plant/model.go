package plant

import "time"

// Plant is a plant row as stored by the remote store.
type Plant struct {
	ID                      string     `json:"id"`
	UserID                  int        `json:"-"`
	Name                    string     `json:"name"`
	Species                 string     `json:"species,omitempty"`
	LocationID              *string    `json:"location_id,omitempty"`
	Notes                   string     `json:"notes,omitempty"`
	WateringIntervalDays    int        `json:"watering_interval_days"`
	FertilizingIntervalDays int        `json:"fertilizing_interval_days"`
	LastWateredAt           *time.Time `json:"last_watered_at,omitempty"`
	LastFertilizedAt        *time.Time `json:"last_fertilized_at,omitempty"`
	PhotoKey                string     `json:"photo_key,omitempty"`
	CreatedAt               time.Time  `json:"created_at"`
	UpdatedAt               time.Time  `json:"updated_at"`
}

// HasLocation reports whether the plant is assigned to a location.
func (p Plant) HasLocation() bool {
	return p.LocationID != nil && *p.LocationID != ""
}
