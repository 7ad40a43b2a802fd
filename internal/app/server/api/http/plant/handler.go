package plant

import (
	"context"
	"errors"

	"github.com/danielgtaylor/huma/v2"
	"golang.org/x/exp/slog"

	"plantkeeper/internal/app/server/api/http/middleware/auth"
	"plantkeeper/internal/domain/plant"
)

type Handler struct {
	service    plant.Servicer
	log        *slog.Logger
	middleware huma.Middlewares
}

func NewHandler(service plant.Servicer, log *slog.Logger, mws huma.Middlewares) *Handler {
	return &Handler{
		service:    service,
		log:        log.With("component", "plant_handler"),
		middleware: mws,
	}
}

func (h *Handler) SetupRoutes(api huma.API) {
	huma.Register(api, h.listOp(), h.list)
	huma.Register(api, h.createOp(), h.create)
	huma.Register(api, h.findOp(), h.find)
	huma.Register(api, h.updateOp(), h.update)
	huma.Register(api, h.deleteOp(), h.delete)
	huma.Register(api, h.photoOp(), h.photo)
}

func (h *Handler) list(ctx context.Context, _ *struct{}) (*listOutput, error) {
	userID, ok := auth.GetUserID(ctx)
	if !ok {
		return nil, huma.Error401Unauthorized("Unauthorized")
	}

	plants, err := h.service.List(ctx, userID)
	if err != nil {
		return nil, h.toHTTPError(err)
	}
	if plants == nil {
		plants = []plant.Plant{}
	}

	return &listOutput{Body: plants}, nil
}

func (h *Handler) find(ctx context.Context, input *idInput) (*output, error) {
	userID, ok := auth.GetUserID(ctx)
	if !ok {
		return nil, huma.Error401Unauthorized("Unauthorized")
	}

	p, err := h.service.Find(ctx, userID, input.ID)
	if err != nil {
		return nil, h.toHTTPError(err)
	}

	return &output{Body: p}, nil
}

func (h *Handler) create(ctx context.Context, input *createInput) (*output, error) {
	userID, ok := auth.GetUserID(ctx)
	if !ok {
		return nil, huma.Error401Unauthorized("Unauthorized")
	}

	p, err := h.service.Create(ctx, userID, input.IdempotencyKey, input.Body)
	if err != nil {
		return nil, h.toHTTPError(err)
	}

	return &output{Body: p}, nil
}

func (h *Handler) update(ctx context.Context, input *updateInput) (*output, error) {
	userID, ok := auth.GetUserID(ctx)
	if !ok {
		return nil, huma.Error401Unauthorized("Unauthorized")
	}

	p, err := h.service.Update(ctx, userID, input.ID, input.Body)
	if err != nil {
		return nil, h.toHTTPError(err)
	}

	return &output{Body: p}, nil
}

func (h *Handler) delete(ctx context.Context, input *idInput) (*struct{}, error) {
	userID, ok := auth.GetUserID(ctx)
	if !ok {
		return nil, huma.Error401Unauthorized("Unauthorized")
	}

	if err := h.service.Delete(ctx, userID, input.ID); err != nil {
		return nil, h.toHTTPError(err)
	}
	return nil, nil
}

func (h *Handler) photo(ctx context.Context, input *idInput) (*photoOutput, error) {
	userID, ok := auth.GetUserID(ctx)
	if !ok {
		return nil, huma.Error401Unauthorized("Unauthorized")
	}

	data, contentType, err := h.service.Photo(ctx, userID, input.ID)
	if err != nil {
		return nil, h.toHTTPError(err)
	}
	if contentType == "" {
		contentType = "application/octet-stream"
	}

	return &photoOutput{ContentType: contentType, Body: data}, nil
}

func (h *Handler) toHTTPError(err error) error {
	switch {
	case errors.Is(err, plant.ErrNotFound), errors.Is(err, plant.ErrNoPhoto):
		return huma.Error404NotFound(err.Error())
	case errors.Is(err, plant.ErrInvalidData), errors.Is(err, plant.ErrUnknownLocation):
		return huma.Error422UnprocessableEntity(err.Error())
	}

	h.log.Error("request failed", "error", err)
	return huma.Error500InternalServerError("internal error")
}
