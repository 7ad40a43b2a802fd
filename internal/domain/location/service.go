package location

import (
	"context"
	"fmt"
	"strings"
	"time"

	"golang.org/x/exp/slog"
)

type Servicer interface {
	List(ctx context.Context, userID int) ([]Location, error)
	Create(ctx context.Context, userID int, idempotencyKey string, req CreateRequest) (*Location, error)
	Update(ctx context.Context, userID int, id string, req UpdateRequest) (*Location, error)
	Delete(ctx context.Context, userID int, id string) error
}

type Service struct {
	repo Repository
	log  *slog.Logger
}

func NewService(repo Repository, log *slog.Logger) *Service {
	return &Service{
		repo: repo,
		log:  log.With("component", "location_service"),
	}
}

func (s *Service) List(ctx context.Context, userID int) ([]Location, error) {
	locations, err := s.repo.List(ctx, userID)
	if err != nil {
		s.log.Error("failed to list locations", "user_id", userID, "error", err)
		return nil, fmt.Errorf("list locations: %w", err)
	}
	return locations, nil
}

func (s *Service) Create(ctx context.Context, userID int, idempotencyKey string, req CreateRequest) (*Location, error) {
	req.Name = strings.TrimSpace(req.Name)
	if req.Name == "" {
		return nil, fmt.Errorf("%w: name is required", ErrInvalidData)
	}
	if req.SortIndex != nil && *req.SortIndex < 0 {
		return nil, fmt.Errorf("%w: sort index must not be negative", ErrInvalidData)
	}

	next := 0
	if req.SortIndex == nil {
		var err error
		next, err = s.repo.NextSortIndex(ctx, userID)
		if err != nil {
			return nil, fmt.Errorf("create location: %w", err)
		}
	}

	l := req.Build("", next, time.Now().UTC())
	l.UserID = userID

	created, err := s.repo.Create(ctx, &l, idempotencyKey)
	if err != nil {
		s.log.Error("failed to create location", "user_id", userID, "error", err)
		return nil, fmt.Errorf("create location: %w", err)
	}

	return created, nil
}

func (s *Service) Update(ctx context.Context, userID int, id string, req UpdateRequest) (*Location, error) {
	l, err := s.repo.Get(ctx, userID, id)
	if err != nil {
		return nil, fmt.Errorf("update location: %w", err)
	}

	if req.Name != nil {
		name := strings.TrimSpace(*req.Name)
		if name == "" {
			return nil, fmt.Errorf("%w: name is required", ErrInvalidData)
		}
		req.Name = &name
	}
	if req.SortIndex != nil && *req.SortIndex < 0 {
		return nil, fmt.Errorf("%w: sort index must not be negative", ErrInvalidData)
	}

	req.Apply(l)

	updated, err := s.repo.Update(ctx, l)
	if err != nil {
		s.log.Error("failed to update location", "user_id", userID, "location_id", id, "error", err)
		return nil, fmt.Errorf("update location: %w", err)
	}
	return updated, nil
}

// Delete removes the location. Plants referencing it keep existing with no location.
func (s *Service) Delete(ctx context.Context, userID int, id string) error {
	if err := s.repo.Delete(ctx, userID, id); err != nil {
		return fmt.Errorf("delete location: %w", err)
	}
	return nil
}
