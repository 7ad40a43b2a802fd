package queue

import (
	"encoding/json"
	"fmt"
	"time"
)

type EntityType string

const (
	EntityPlant    EntityType = "plant"
	EntityLocation EntityType = "location"
)

type Action string

const (
	ActionCreate  Action = "create"
	ActionUpdate  Action = "update"
	ActionDelete  Action = "delete"
	ActionReorder Action = "reorder"
)

// Mutation - одно неотправленное изменение. ID служит ключом идемпотентности при создании.
type Mutation struct {
	ID         string          `json:"id"`
	EntityType EntityType      `json:"entity_type"`
	Action     Action          `json:"action"`
	EntityID   string          `json:"entity_id"`
	TempID     string          `json:"temp_id,omitempty"`
	Payload    json.RawMessage `json:"payload,omitempty"`
	CreatedAt  time.Time       `json:"created_at"`
	Attempts   int             `json:"attempts"`
	LastError  string          `json:"last_error,omitempty"`
}

// referenceFields - поля payload со ссылками на другие сущности.
var referenceFields = map[EntityType][]string{
	EntityPlant: {"location_id"},
}

func (m Mutation) validate() error {
	switch m.EntityType {
	case EntityPlant, EntityLocation:
	default:
		return fmt.Errorf("%w: entity type %q", ErrInvalidMutation, m.EntityType)
	}
	switch m.Action {
	case ActionCreate, ActionUpdate, ActionDelete, ActionReorder:
	default:
		return fmt.Errorf("%w: action %q", ErrInvalidMutation, m.Action)
	}
	if m.EntityID == "" && m.Action != ActionReorder {
		return fmt.Errorf("%w: empty entity id", ErrInvalidMutation)
	}
	return nil
}

// Targets - мутация относится к сущности entityType/id.
func (m Mutation) Targets(entityType EntityType, id string) bool {
	return m.EntityType == entityType && m.EntityID == id
}

// References возвращает id других сущностей, на которые ссылается payload.
func (m Mutation) References() []string {
	fields := referenceFields[m.EntityType]
	if len(fields) == 0 || len(m.Payload) == 0 {
		return nil
	}
	var body map[string]json.RawMessage
	if err := json.Unmarshal(m.Payload, &body); err != nil {
		return nil
	}
	var refs []string
	for _, f := range fields {
		raw, ok := body[f]
		if !ok {
			continue
		}
		var id string
		if err := json.Unmarshal(raw, &id); err == nil && id != "" {
			refs = append(refs, id)
		}
	}
	return refs
}

// DecodePayload разбирает payload в v.
func (m Mutation) DecodePayload(v any) error {
	if len(m.Payload) == 0 {
		return nil
	}
	if err := json.Unmarshal(m.Payload, v); err != nil {
		return fmt.Errorf("decode %s %s payload: %w", m.EntityType, m.Action, err)
	}
	return nil
}

// SetPayload заменяет payload на JSON от v.
func (m *Mutation) SetPayload(v any) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode %s %s payload: %w", m.EntityType, m.Action, err)
	}
	m.Payload = raw
	return nil
}

// rewrite заменяет oldID на newID в id сущности и ссылках payload.
// Пустой newID снимает ссылку. Возвращает true, если что-то изменилось.
func (m *Mutation) rewrite(oldID, newID string) (bool, error) {
	changed := false
	if m.EntityID == oldID && newID != "" {
		m.EntityID = newID
		changed = true
	}

	fields := referenceFields[m.EntityType]
	if len(fields) == 0 || len(m.Payload) == 0 {
		return changed, nil
	}

	var body map[string]json.RawMessage
	if err := json.Unmarshal(m.Payload, &body); err != nil {
		return changed, fmt.Errorf("decode payload of %s: %w", m.ID, err)
	}

	touched := false
	for _, f := range fields {
		raw, ok := body[f]
		if !ok {
			continue
		}
		var id string
		if err := json.Unmarshal(raw, &id); err != nil || id != oldID {
			continue
		}
		switch {
		case newID != "":
			body[f], _ = json.Marshal(newID)
		case m.Action == ActionCreate:
			delete(body, f)
		default:
			// пустая строка в update снимает ссылку
			body[f] = json.RawMessage(`""`)
		}
		touched = true
	}
	if !touched {
		return changed, nil
	}

	payload, err := json.Marshal(body)
	if err != nil {
		return changed, fmt.Errorf("encode payload of %s: %w", m.ID, err)
	}
	m.Payload = payload
	return true, nil
}
