package api

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/exp/slog"
)

type rejectingSessions struct{}

func (rejectingSessions) Create(context.Context, int) (string, error) {
	return "", errors.New("unused")
}
func (rejectingSessions) Validate(context.Context, string) (int, error) {
	return 0, errors.New("invalid session")
}

func TestNew_Routes(t *testing.T) {
	reg := prometheus.NewRegistry()
	mux := New(Services{Sessions: rejectingSessions{}}, Options{
		PresenceInterval: time.Second,
		Registry:         reg,
	}, slog.Default())

	srv := httptest.NewServer(mux)
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/api/v1/health")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	req, err := http.NewRequest(http.MethodGet, srv.URL+"/api/v1/plants", nil)
	require.NoError(t, err)
	req.Header.Set("Authorization", "Bearer nope")
	resp, err = http.DefaultClient.Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `plantkeeper_api_requests_total{operation="health-check",status="200"} 1`)
}
