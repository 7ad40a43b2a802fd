package location

import (
	"context"
	"errors"

	"github.com/danielgtaylor/huma/v2"
	"golang.org/x/exp/slog"

	"plantkeeper/internal/app/server/api/http/middleware/auth"
	"plantkeeper/internal/domain/location"
)

type Handler struct {
	service    location.Servicer
	log        *slog.Logger
	middleware huma.Middlewares
}

func NewHandler(service location.Servicer, log *slog.Logger, mws huma.Middlewares) *Handler {
	return &Handler{
		service:    service,
		log:        log.With("component", "location_handler"),
		middleware: mws,
	}
}

func (h *Handler) SetupRoutes(api huma.API) {
	huma.Register(api, h.listOp(), h.list)
	huma.Register(api, h.createOp(), h.create)
	huma.Register(api, h.updateOp(), h.update)
	huma.Register(api, h.deleteOp(), h.delete)
}

func (h *Handler) list(ctx context.Context, _ *struct{}) (*listOutput, error) {
	userID, ok := auth.GetUserID(ctx)
	if !ok {
		return nil, huma.Error401Unauthorized("Unauthorized")
	}

	locations, err := h.service.List(ctx, userID)
	if err != nil {
		return nil, h.toHTTPError(err)
	}
	if locations == nil {
		locations = []location.Location{}
	}
	return &listOutput{Body: locations}, nil
}

func (h *Handler) create(ctx context.Context, input *createInput) (*output, error) {
	userID, ok := auth.GetUserID(ctx)
	if !ok {
		return nil, huma.Error401Unauthorized("Unauthorized")
	}

	l, err := h.service.Create(ctx, userID, input.IdempotencyKey, input.Body)
	if err != nil {
		return nil, h.toHTTPError(err)
	}
	return &output{Body: l}, nil
}

func (h *Handler) update(ctx context.Context, input *updateInput) (*output, error) {
	userID, ok := auth.GetUserID(ctx)
	if !ok {
		return nil, huma.Error401Unauthorized("Unauthorized")
	}

	l, err := h.service.Update(ctx, userID, input.ID, input.Body)
	if err != nil {
		return nil, h.toHTTPError(err)
	}
	return &output{Body: l}, nil
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

func (h *Handler) toHTTPError(err error) error {
	switch {
	case errors.Is(err, location.ErrNotFound):
		return huma.Error404NotFound(err.Error())
	case errors.Is(err, location.ErrDuplicateName):
		return huma.Error409Conflict(err.Error())
	case errors.Is(err, location.ErrInvalidData):
		return huma.Error422UnprocessableEntity(err.Error())
	}

	h.log.Error("request failed", "error", err)
	return huma.Error500InternalServerError("internal error")
}
