package plant

import (
	"math"
	"time"
)

const (
	DefaultWateringIntervalDays    = 7
	DefaultFertilizingIntervalDays = 30
)

const day = 24 * time.Hour

// CareStatus is derived from a plant at read time and never stored.
type CareStatus struct {
	NextWatering    *time.Time `json:"next_watering,omitempty"`
	NextFertilizing *time.Time `json:"next_fertilizing,omitempty"`
	NeedsWater      bool       `json:"needs_water"`
	NeedsFertilizer bool       `json:"needs_fertilizer"`
	DaysOverdue     int        `json:"days_overdue"`
}

// Care computes the care status of p at now. A plant that was never watered
// (or fertilized) is due immediately.
func Care(p Plant, now time.Time) CareStatus {
	var cs CareStatus

	water := intervalOr(p.WateringIntervalDays, DefaultWateringIntervalDays)
	fert := intervalOr(p.FertilizingIntervalDays, DefaultFertilizingIntervalDays)

	waterOverdue := 0
	if p.LastWateredAt == nil {
		cs.NeedsWater = true
	} else {
		next := p.LastWateredAt.Add(time.Duration(water) * day)
		cs.NextWatering = &next
		cs.NeedsWater = !now.Before(next)
		waterOverdue = overdueDays(next, now)
	}

	fertOverdue := 0
	if p.LastFertilizedAt == nil {
		cs.NeedsFertilizer = true
	} else {
		next := p.LastFertilizedAt.Add(time.Duration(fert) * day)
		cs.NextFertilizing = &next
		cs.NeedsFertilizer = !now.Before(next)
		fertOverdue = overdueDays(next, now)
	}

	cs.DaysOverdue = max(waterOverdue, fertOverdue)
	return cs
}

// NeedsCare reports whether any care action is due.
func (cs CareStatus) NeedsCare() bool {
	return cs.NeedsWater || cs.NeedsFertilizer
}

func intervalOr(v, def int) int {
	if v <= 0 {
		return def
	}
	return v
}

func overdueDays(due, now time.Time) int {
	if !now.After(due) {
		return 0
	}
	return int(math.Floor(now.Sub(due).Hours() / 24))
}
