package location

import (
	"context"
	"net/http"
	"testing"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/humatest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"golang.org/x/exp/slog"

	"plantkeeper/internal/app/server/api/http/middleware/auth"
	"plantkeeper/internal/domain/location"
)

type MockService struct {
	mock.Mock
}

func (m *MockService) List(ctx context.Context, userID int) ([]location.Location, error) {
	args := m.Called(ctx, userID)
	l, _ := args.Get(0).([]location.Location)
	return l, args.Error(1)
}

func (m *MockService) Create(ctx context.Context, userID int, key string, req location.CreateRequest) (*location.Location, error) {
	args := m.Called(ctx, userID, key, req)
	l, _ := args.Get(0).(*location.Location)
	return l, args.Error(1)
}

func (m *MockService) Update(ctx context.Context, userID int, id string, req location.UpdateRequest) (*location.Location, error) {
	args := m.Called(ctx, userID, id, req)
	l, _ := args.Get(0).(*location.Location)
	return l, args.Error(1)
}

func (m *MockService) Delete(ctx context.Context, userID int, id string) error {
	return m.Called(ctx, userID, id).Error(0)
}

func withUser(ctx huma.Context, next func(huma.Context)) {
	next(huma.WithContext(ctx, auth.WithUserID(ctx.Context(), 9)))
}

func TestHandler_List(t *testing.T) {
	svc := new(MockService)
	svc.On("List", mock.Anything, 9).Return(nil, nil)

	_, api := humatest.New(t)
	NewHandler(svc, slog.Default(), huma.Middlewares{withUser}).SetupRoutes(api)

	resp := api.Get("/api/v1/locations")
	assert.Equal(t, http.StatusOK, resp.Code)
	assert.JSONEq(t, `[]`, resp.Body.String())
}

func TestHandler_Create(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
	}{
		{name: "created", wantStatus: http.StatusCreated},
		{name: "duplicate", err: location.ErrDuplicateName, wantStatus: http.StatusConflict},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := new(MockService)
			var out *location.Location
			if tt.err == nil {
				out = &location.Location{ID: "l-1", Name: "Kitchen"}
			}
			svc.On("Create", mock.Anything, 9, "k-1", location.CreateRequest{Name: "Kitchen"}).Return(out, tt.err)

			_, api := humatest.New(t)
			NewHandler(svc, slog.Default(), huma.Middlewares{withUser}).SetupRoutes(api)

			resp := api.Post("/api/v1/locations", "Idempotency-Key: k-1", map[string]any{"name": "Kitchen"})
			assert.Equal(t, tt.wantStatus, resp.Code)
			svc.AssertExpectations(t)
		})
	}
}

func TestHandler_Delete_NotFound(t *testing.T) {
	svc := new(MockService)
	svc.On("Delete", mock.Anything, 9, "nope").Return(location.ErrNotFound)

	_, api := humatest.New(t)
	NewHandler(svc, slog.Default(), huma.Middlewares{withUser}).SetupRoutes(api)

	resp := api.Delete("/api/v1/locations/nope")
	assert.Equal(t, http.StatusNotFound, resp.Code)
}
