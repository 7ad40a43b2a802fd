package location

import "time"

type CreateRequest struct {
	Name        string `json:"name" doc:"Location name, unique per user" minLength:"1" maxLength:"120"`
	Description string `json:"description,omitempty" doc:"Description"`
	// SortIndex defaults to the end of the list.
	SortIndex *int `json:"sort_index,omitempty" doc:"Display position" minimum:"0"`
}

type UpdateRequest struct {
	Name        *string `json:"name,omitempty" minLength:"1" maxLength:"120"`
	Description *string `json:"description,omitempty"`
	SortIndex   *int    `json:"sort_index,omitempty" minimum:"0"`
}

func (u UpdateRequest) IsEmpty() bool {
	return u.Name == nil && u.Description == nil && u.SortIndex == nil
}

func (u UpdateRequest) Apply(l *Location) {
	if u.Name != nil {
		l.Name = *u.Name
	}
	if u.Description != nil {
		l.Description = *u.Description
	}
	if u.SortIndex != nil {
		l.SortIndex = *u.SortIndex
	}
}

func (u UpdateRequest) Merge(c *CreateRequest) {
	if u.Name != nil {
		c.Name = *u.Name
	}
	if u.Description != nil {
		c.Description = *u.Description
	}
	if u.SortIndex != nil {
		idx := *u.SortIndex
		c.SortIndex = &idx
	}
}

func (c CreateRequest) Build(id string, sortIndex int, now time.Time) Location {
	if c.SortIndex != nil {
		sortIndex = *c.SortIndex
	}
	return Location{
		ID:          id,
		Name:        c.Name,
		Description: c.Description,
		SortIndex:   sortIndex,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
}
