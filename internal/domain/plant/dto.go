package plant

import "time"

// CreateRequest describes a new plant. An empty LocationID means "no location".
type CreateRequest struct {
	Name                    string     `json:"name" doc:"Plant name" minLength:"1" maxLength:"120"`
	Species                 string     `json:"species,omitempty" doc:"Species" maxLength:"120"`
	LocationID              *string    `json:"location_id,omitempty" doc:"Location id"`
	Notes                   string     `json:"notes,omitempty" doc:"Free-form notes"`
	WateringIntervalDays    int        `json:"watering_interval_days,omitempty" doc:"Days between waterings" minimum:"0"`
	FertilizingIntervalDays int        `json:"fertilizing_interval_days,omitempty" doc:"Days between fertilizings" minimum:"0"`
	LastWateredAt           *time.Time `json:"last_watered_at,omitempty"`
	LastFertilizedAt        *time.Time `json:"last_fertilized_at,omitempty"`
	Photo                   []byte     `json:"photo,omitempty" doc:"Compressed photo bytes (base64 in JSON)"`
}

// UpdateRequest is a partial update: nil fields are left untouched.
// A non-nil LocationID pointing to "" clears the location.
type UpdateRequest struct {
	Name                    *string    `json:"name,omitempty" minLength:"1" maxLength:"120"`
	Species                 *string    `json:"species,omitempty" maxLength:"120"`
	LocationID              *string    `json:"location_id,omitempty"`
	Notes                   *string    `json:"notes,omitempty"`
	WateringIntervalDays    *int       `json:"watering_interval_days,omitempty" minimum:"0"`
	FertilizingIntervalDays *int       `json:"fertilizing_interval_days,omitempty" minimum:"0"`
	LastWateredAt           *time.Time `json:"last_watered_at,omitempty"`
	LastFertilizedAt        *time.Time `json:"last_fertilized_at,omitempty"`
	Photo                   []byte     `json:"photo,omitempty"`
}

// IsEmpty reports whether the update changes nothing.
func (u UpdateRequest) IsEmpty() bool {
	return u.Name == nil && u.Species == nil && u.LocationID == nil && u.Notes == nil &&
		u.WateringIntervalDays == nil && u.FertilizingIntervalDays == nil &&
		u.LastWateredAt == nil && u.LastFertilizedAt == nil && len(u.Photo) == 0
}

// Apply copies the set fields of u onto p. Photo bytes are not part of the row and are ignored.
func (u UpdateRequest) Apply(p *Plant) {
	if u.Name != nil {
		p.Name = *u.Name
	}
	if u.Species != nil {
		p.Species = *u.Species
	}
	if u.LocationID != nil {
		if *u.LocationID == "" {
			p.LocationID = nil
		} else {
			id := *u.LocationID
			p.LocationID = &id
		}
	}
	if u.Notes != nil {
		p.Notes = *u.Notes
	}
	if u.WateringIntervalDays != nil {
		p.WateringIntervalDays = *u.WateringIntervalDays
	}
	if u.FertilizingIntervalDays != nil {
		p.FertilizingIntervalDays = *u.FertilizingIntervalDays
	}
	if u.LastWateredAt != nil {
		t := *u.LastWateredAt
		p.LastWateredAt = &t
	}
	if u.LastFertilizedAt != nil {
		t := *u.LastFertilizedAt
		p.LastFertilizedAt = &t
	}
}

// Merge folds u into a pending create request.
func (u UpdateRequest) Merge(c *CreateRequest) {
	if u.Name != nil {
		c.Name = *u.Name
	}
	if u.Species != nil {
		c.Species = *u.Species
	}
	if u.LocationID != nil {
		if *u.LocationID == "" {
			c.LocationID = nil
		} else {
			id := *u.LocationID
			c.LocationID = &id
		}
	}
	if u.Notes != nil {
		c.Notes = *u.Notes
	}
	if u.WateringIntervalDays != nil {
		c.WateringIntervalDays = *u.WateringIntervalDays
	}
	if u.FertilizingIntervalDays != nil {
		c.FertilizingIntervalDays = *u.FertilizingIntervalDays
	}
	if u.LastWateredAt != nil {
		c.LastWateredAt = u.LastWateredAt
	}
	if u.LastFertilizedAt != nil {
		c.LastFertilizedAt = u.LastFertilizedAt
	}
	if len(u.Photo) > 0 {
		c.Photo = u.Photo
	}
}

// Build materialises a create request into a plant row with the given id.
func (c CreateRequest) Build(id string, now time.Time) Plant {
	p := Plant{
		ID:                      id,
		Name:                    c.Name,
		Species:                 c.Species,
		Notes:                   c.Notes,
		WateringIntervalDays:    c.WateringIntervalDays,
		FertilizingIntervalDays: c.FertilizingIntervalDays,
		LastWateredAt:           c.LastWateredAt,
		LastFertilizedAt:        c.LastFertilizedAt,
		CreatedAt:               now,
		UpdatedAt:               now,
	}
	if c.LocationID != nil && *c.LocationID != "" {
		id := *c.LocationID
		p.LocationID = &id
	}
	return p
}
