package user

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
	"golang.org/x/exp/slog"
)

type MockRepository struct {
	mock.Mock
}

func (m *MockRepository) Create(ctx context.Context, login, passwordHash string) (int, error) {
	args := m.Called(ctx, login, passwordHash)
	return args.Int(0), args.Error(1)
}

func (m *MockRepository) FindByLogin(ctx context.Context, login string) (User, error) {
	args := m.Called(ctx, login)
	return args.Get(0).(User), args.Error(1)
}

const strongPassword = "Gr33n!Leaf"

func newTestService(repo Repository) *Service {
	return NewService(repo, NewPasswordValidator(StrictPolicy), slog.Default())
}

func TestService_Register(t *testing.T) {
	mockRepo := new(MockRepository)
	service := newTestService(mockRepo)

	mockRepo.On("Create", mock.Anything, "gardener", mock.MatchedBy(func(hash string) bool {
		return bcrypt.CompareHashAndPassword([]byte(hash), []byte(strongPassword)) == nil
	})).Return(123, nil)

	userID, err := service.Register(context.Background(), "gardener", strongPassword)
	require.NoError(t, err)
	assert.Equal(t, 123, userID)

	mockRepo.AssertExpectations(t)
}

func TestService_Register_InvalidInput(t *testing.T) {
	mockRepo := new(MockRepository)
	service := newTestService(mockRepo)

	_, err := service.Register(context.Background(), "gardener", "weak")
	assert.ErrorIs(t, err, ErrInvalidInput)
	mockRepo.AssertNotCalled(t, "Create", mock.Anything, mock.Anything, mock.Anything)
}

func TestService_Register_RepositoryError(t *testing.T) {
	tests := []struct {
		name    string
		repoErr error
		wantIs  error
	}{
		{name: "login taken", repoErr: ErrLoginTaken, wantIs: ErrLoginTaken},
		{name: "database error", repoErr: errors.New("database error")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mockRepo := new(MockRepository)
			service := newTestService(mockRepo)

			mockRepo.On("Create", mock.Anything, "gardener", mock.AnythingOfType("string")).Return(0, tt.repoErr)

			_, err := service.Register(context.Background(), "gardener", strongPassword)
			require.Error(t, err)
			if tt.wantIs != nil {
				assert.ErrorIs(t, err, tt.wantIs)
			}
			assert.Contains(t, err.Error(), tt.repoErr.Error())
			mockRepo.AssertExpectations(t)
		})
	}
}

func TestService_Authenticate_Success(t *testing.T) {
	mockRepo := new(MockRepository)
	service := newTestService(mockRepo)

	hash, err := bcrypt.GenerateFromPassword([]byte(strongPassword), bcrypt.MinCost)
	require.NoError(t, err)

	u := User{ID: 123, Login: "gardener", Password: string(hash)}
	mockRepo.On("FindByLogin", mock.Anything, "gardener").Return(u, nil)

	authUser, err := service.Authenticate(context.Background(), "gardener", strongPassword)
	require.NoError(t, err)
	assert.Equal(t, u, authUser)

	mockRepo.AssertExpectations(t)
}

func TestService_Authenticate_Failures(t *testing.T) {
	hash, err := bcrypt.GenerateFromPassword([]byte(strongPassword), bcrypt.MinCost)
	require.NoError(t, err)

	tests := []struct {
		name     string
		login    string
		password string
		found    User
		findErr  error
		wantErr  error
	}{
		{name: "unknown user", login: "nobody", password: strongPassword, findErr: ErrNotFound, wantErr: ErrInvalidAuth},
		{name: "wrong password", login: "gardener", password: "Wr0ng!pass", found: User{ID: 1, Password: string(hash)}, wantErr: ErrInvalidAuth},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mockRepo := new(MockRepository)
			service := newTestService(mockRepo)
			mockRepo.On("FindByLogin", mock.Anything, tt.login).Return(tt.found, tt.findErr)

			_, err := service.Authenticate(context.Background(), tt.login, tt.password)
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestService_Authenticate_InvalidLogin(t *testing.T) {
	mockRepo := new(MockRepository)
	service := newTestService(mockRepo)

	_, err := service.Authenticate(context.Background(), "a b", strongPassword)
	assert.ErrorIs(t, err, ErrInvalidAuth)
	mockRepo.AssertNotCalled(t, "FindByLogin", mock.Anything, mock.Anything)
}
