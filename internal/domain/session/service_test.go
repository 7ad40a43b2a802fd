package session

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"golang.org/x/exp/slog"
)

type MockRepository struct {
	mock.Mock
}

func (m *MockRepository) Create(ctx context.Context, userID int, tokenHash string, expiresAt time.Time) error {
	args := m.Called(ctx, userID, tokenHash, expiresAt)
	return args.Error(0)
}

func (m *MockRepository) Validate(ctx context.Context, tokenHash string) (int, error) {
	args := m.Called(ctx, tokenHash)
	return args.Int(0), args.Error(1)
}

func (m *MockRepository) DeleteExpired(ctx context.Context) (int64, error) {
	args := m.Called(ctx)
	return args.Get(0).(int64), args.Error(1)
}

func TestService_Create(t *testing.T) {
	mockRepo := new(MockRepository)
	service := NewService(mockRepo, time.Hour, slog.Default())

	mockRepo.On("Create", mock.Anything, 123, mock.MatchedBy(func(hash string) bool {
		return len(hash) == 64
	}), mock.MatchedBy(func(expiresAt time.Time) bool {
		return expiresAt.After(time.Now().Add(59 * time.Minute))
	})).Return(nil)

	token, err := service.Create(context.Background(), 123)
	require.NoError(t, err)
	// base64 от 32 байт с паддингом
	assert.Len(t, token, 44)

	mockRepo.AssertExpectations(t)
}

func TestService_Create_RepositoryError(t *testing.T) {
	mockRepo := new(MockRepository)
	service := NewService(mockRepo, 0, slog.Default())

	mockRepo.On("Create", mock.Anything, 123, mock.AnythingOfType("string"), mock.AnythingOfType("time.Time")).
		Return(errors.New("database error"))

	_, err := service.Create(context.Background(), 123)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "database error")
}

func TestService_CreateAndValidate(t *testing.T) {
	mockRepo := new(MockRepository)
	service := NewService(mockRepo, time.Hour, slog.Default())

	var stored string
	mockRepo.On("Create", mock.Anything, 7, mock.AnythingOfType("string"), mock.AnythingOfType("time.Time")).
		Run(func(args mock.Arguments) { stored = args.String(2) }).
		Return(nil)

	token, err := service.Create(context.Background(), 7)
	require.NoError(t, err)

	mockRepo.On("Validate", mock.Anything, mock.MatchedBy(func(hash string) bool {
		return hash == stored
	})).Return(7, nil)

	userID, err := service.Validate(context.Background(), token)
	require.NoError(t, err)
	assert.Equal(t, 7, userID)
	mockRepo.AssertExpectations(t)
}

func TestService_Validate_Errors(t *testing.T) {
	tests := []struct {
		name    string
		token   string
		repoErr error
	}{
		{name: "empty token"},
		{name: "unknown token", token: "nope", repoErr: ErrInvalidSession},
		{name: "database error", token: "tok", repoErr: errors.New("database error")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mockRepo := new(MockRepository)
			service := NewService(mockRepo, time.Hour, slog.Default())
			if tt.token != "" {
				mockRepo.On("Validate", mock.Anything, mock.AnythingOfType("string")).Return(0, tt.repoErr)
			}

			_, err := service.Validate(context.Background(), tt.token)
			assert.Error(t, err)
			if tt.token == "" {
				assert.ErrorIs(t, err, ErrInvalidSession)
				mockRepo.AssertNotCalled(t, "Validate", mock.Anything, mock.Anything)
			}
		})
	}
}

func TestService_Cleanup(t *testing.T) {
	mockRepo := new(MockRepository)
	service := NewService(mockRepo, time.Hour, slog.Default())

	called := make(chan struct{}, 1)
	mockRepo.On("DeleteExpired", mock.Anything).
		Run(func(mock.Arguments) {
			select {
			case called <- struct{}{}:
			default:
			}
		}).
		Return(int64(2), nil)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		service.Cleanup(ctx, 5*time.Millisecond)
		close(done)
	}()

	select {
	case <-called:
	case <-time.After(time.Second):
		t.Fatal("cleanup was not called")
	}
	cancel()
	<-done
}
