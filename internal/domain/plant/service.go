package plant

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/google/uuid"
	"golang.org/x/exp/slog"
)

type Servicer interface {
	List(ctx context.Context, userID int) ([]Plant, error)
	Find(ctx context.Context, userID int, id string) (*Plant, error)
	Create(ctx context.Context, userID int, idempotencyKey string, req CreateRequest) (*Plant, error)
	Update(ctx context.Context, userID int, id string, req UpdateRequest) (*Plant, error)
	Delete(ctx context.Context, userID int, id string) error
	Photo(ctx context.Context, userID int, id string) ([]byte, string, error)
}

type Service struct {
	repo   Repository
	photos PhotoStore
	log    *slog.Logger
}

func NewService(repo Repository, photos PhotoStore, log *slog.Logger) *Service {
	return &Service{
		repo:   repo,
		photos: photos,
		log:    log.With("component", "plant_service"),
	}
}

func (s *Service) List(ctx context.Context, userID int) ([]Plant, error) {
	plants, err := s.repo.List(ctx, userID)
	if err != nil {
		s.log.Error("failed to list plants", "user_id", userID, "error", err)
		return nil, fmt.Errorf("list plants: %w", err)
	}
	return plants, nil
}

func (s *Service) Find(ctx context.Context, userID int, id string) (*Plant, error) {
	p, err := s.repo.Get(ctx, userID, id)
	if err != nil {
		return nil, fmt.Errorf("find plant: %w", err)
	}
	return p, nil
}

func (s *Service) Create(ctx context.Context, userID int, idempotencyKey string, req CreateRequest) (*Plant, error) {
	req.Name = strings.TrimSpace(req.Name)
	if req.Name == "" {
		return nil, fmt.Errorf("%w: name is required", ErrInvalidData)
	}
	if req.WateringIntervalDays < 0 || req.FertilizingIntervalDays < 0 {
		return nil, fmt.Errorf("%w: intervals must not be negative", ErrInvalidData)
	}

	p := req.Build("", timeNow())
	p.UserID = userID
	if p.WateringIntervalDays == 0 {
		p.WateringIntervalDays = DefaultWateringIntervalDays
	}
	if p.FertilizingIntervalDays == 0 {
		p.FertilizingIntervalDays = DefaultFertilizingIntervalDays
	}

	if err := s.checkLocation(ctx, userID, p.LocationID); err != nil {
		return nil, err
	}

	if len(req.Photo) > 0 {
		// a retried create reuses its key so the blob is overwritten, not duplicated
		ref := idempotencyKey
		if ref == "" {
			ref = uuid.NewString()
		}
		key, err := s.storePhoto(ctx, userID, ref, req.Photo)
		if err != nil {
			return nil, err
		}
		p.PhotoKey = key
	}

	created, err := s.repo.Create(ctx, &p, idempotencyKey)
	if err != nil {
		s.log.Error("failed to create plant", "user_id", userID, "error", err)
		return nil, fmt.Errorf("create plant: %w", err)
	}

	s.log.Debug("plant created", "user_id", userID, "plant_id", created.ID)
	return created, nil
}

func (s *Service) Update(ctx context.Context, userID int, id string, req UpdateRequest) (*Plant, error) {
	p, err := s.repo.Get(ctx, userID, id)
	if err != nil {
		return nil, fmt.Errorf("update plant: %w", err)
	}

	if req.Name != nil {
		name := strings.TrimSpace(*req.Name)
		if name == "" {
			return nil, fmt.Errorf("%w: name is required", ErrInvalidData)
		}
		req.Name = &name
	}
	if (req.WateringIntervalDays != nil && *req.WateringIntervalDays < 0) ||
		(req.FertilizingIntervalDays != nil && *req.FertilizingIntervalDays < 0) {
		return nil, fmt.Errorf("%w: intervals must not be negative", ErrInvalidData)
	}

	req.Apply(p)

	if req.LocationID != nil {
		if err := s.checkLocation(ctx, userID, p.LocationID); err != nil {
			return nil, err
		}
	}

	oldPhoto := ""
	if len(req.Photo) > 0 {
		key, err := s.storePhoto(ctx, userID, uuid.NewString(), req.Photo)
		if err != nil {
			return nil, err
		}
		oldPhoto = p.PhotoKey
		p.PhotoKey = key
	}

	updated, err := s.repo.Update(ctx, p)
	if err != nil {
		s.log.Error("failed to update plant", "user_id", userID, "plant_id", id, "error", err)
		return nil, fmt.Errorf("update plant: %w", err)
	}

	s.dropPhoto(ctx, oldPhoto)
	return updated, nil
}

func (s *Service) Delete(ctx context.Context, userID int, id string) error {
	p, err := s.repo.Get(ctx, userID, id)
	if err != nil {
		return fmt.Errorf("delete plant: %w", err)
	}

	if err := s.repo.Delete(ctx, userID, id); err != nil {
		s.log.Error("failed to delete plant", "user_id", userID, "plant_id", id, "error", err)
		return fmt.Errorf("delete plant: %w", err)
	}

	s.dropPhoto(ctx, p.PhotoKey)
	return nil
}

func (s *Service) Photo(ctx context.Context, userID int, id string) ([]byte, string, error) {
	p, err := s.repo.Get(ctx, userID, id)
	if err != nil {
		return nil, "", fmt.Errorf("plant photo: %w", err)
	}
	if p.PhotoKey == "" || s.photos == nil {
		return nil, "", ErrNoPhoto
	}

	data, contentType, err := s.photos.Get(ctx, p.PhotoKey)
	if err != nil {
		return nil, "", fmt.Errorf("plant photo: %w", err)
	}
	return data, contentType, nil
}

func (s *Service) checkLocation(ctx context.Context, userID int, locationID *string) error {
	if locationID == nil || *locationID == "" {
		return nil
	}

	ok, err := s.repo.LocationExists(ctx, userID, *locationID)
	if err != nil {
		return fmt.Errorf("check location: %w", err)
	}
	if !ok {
		return ErrUnknownLocation
	}
	return nil
}

func (s *Service) storePhoto(ctx context.Context, userID int, ref string, data []byte) (string, error) {
	if s.photos == nil {
		return "", fmt.Errorf("%w: photo storage is not configured", ErrInvalidData)
	}

	key := fmt.Sprintf("users/%d/plants/%s", userID, ref)
	if err := s.photos.Put(ctx, key, data, http.DetectContentType(data)); err != nil {
		s.log.Error("failed to store photo", "user_id", userID, "error", err)
		return "", fmt.Errorf("store photo: %w", err)
	}
	return key, nil
}

func (s *Service) dropPhoto(ctx context.Context, key string) {
	if key == "" || s.photos == nil {
		return
	}
	if err := s.photos.Delete(ctx, key); err != nil {
		s.log.Warn("failed to delete photo", "key", key, "error", err)
	}
}
