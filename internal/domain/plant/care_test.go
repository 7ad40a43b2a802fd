package plant

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCare(t *testing.T) {
	now := time.Date(2024, 5, 20, 12, 0, 0, 0, time.UTC)
	at := func(daysAgo int) *time.Time {
		t := now.Add(-time.Duration(daysAgo) * day)
		return &t
	}

	tests := []struct {
		name         string
		plant        Plant
		needsWater   bool
		needsFert    bool
		daysOverdue  int
		nextWatering *time.Time
	}{
		{
			name:       "never cared for",
			plant:      Plant{},
			needsWater: true,
			needsFert:  true,
		},
		{
			name:         "watered yesterday with default interval",
			plant:        Plant{LastWateredAt: at(1), LastFertilizedAt: at(1)},
			nextWatering: at(1 - DefaultWateringIntervalDays),
		},
		{
			name:        "watering overdue by three days",
			plant:       Plant{WateringIntervalDays: 2, LastWateredAt: at(5), LastFertilizedAt: at(0)},
			needsWater:  true,
			daysOverdue: 3,
		},
		{
			name:       "due exactly now",
			plant:      Plant{WateringIntervalDays: 3, LastWateredAt: at(3), LastFertilizedAt: at(0)},
			needsWater: true,
		},
		{
			name:        "fertilizer overdue dominates",
			plant:       Plant{LastWateredAt: at(0), FertilizingIntervalDays: 10, LastFertilizedAt: at(25)},
			needsFert:   true,
			daysOverdue: 15,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cs := Care(tt.plant, now)
			assert.Equal(t, tt.needsWater, cs.NeedsWater)
			assert.Equal(t, tt.needsFert, cs.NeedsFertilizer)
			assert.Equal(t, tt.daysOverdue, cs.DaysOverdue)
			assert.Equal(t, tt.needsWater || tt.needsFert, cs.NeedsCare())
			if tt.nextWatering != nil {
				require.NotNil(t, cs.NextWatering)
				assert.True(t, tt.nextWatering.Equal(*cs.NextWatering))
			}
		})
	}
}

func TestUpdateRequest_ApplyAndMerge(t *testing.T) {
	loc := "loc-1"
	empty := ""
	name := "Monstera"

	p := Plant{Name: "old", LocationID: &loc}
	UpdateRequest{Name: &name, LocationID: &empty}.Apply(&p)
	assert.Equal(t, "Monstera", p.Name)
	assert.Nil(t, p.LocationID)

	c := CreateRequest{Name: "old"}
	UpdateRequest{Name: &name, LocationID: &loc, Photo: []byte{1}}.Merge(&c)
	assert.Equal(t, "Monstera", c.Name)
	require.NotNil(t, c.LocationID)
	assert.Equal(t, "loc-1", *c.LocationID)
	assert.Equal(t, []byte{1}, c.Photo)

	assert.True(t, UpdateRequest{}.IsEmpty())
	assert.False(t, UpdateRequest{Name: &name}.IsEmpty())
}
