package migration

import (
	"errors"
	"testing"

	"github.com/golang-migrate/migrate/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"golang.org/x/exp/slog"

	"plantkeeper/internal/app/server/config"
)

// MockMigrator — мок для интерфейса Migrator
type MockMigrator struct {
	mock.Mock
}

func (m *MockMigrator) Up() error {
	args := m.Called()
	return args.Error(0)
}

func (m *MockMigrator) Down() error {
	args := m.Called()
	return args.Error(0)
}

func (m *MockMigrator) Version() (uint, bool, error) {
	args := m.Called()
	return args.Get(0).(uint), args.Bool(1), args.Error(2)
}

func (m *MockMigrator) Close() (error, error) {
	args := m.Called()
	return args.Error(0), args.Error(1)
}

var testDB = config.DB{DatabaseURI: "postgres://test", Migrations: "migrations"}

func TestMigration_Up(t *testing.T) {
	tests := []struct {
		name    string
		upErr   error
		wantErr bool
	}{
		{name: "success"},
		{name: "no change is not an error", upErr: migrate.ErrNoChange},
		{name: "failure", upErr: errors.New("bad sql"), wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mockM := new(MockMigrator)
			mockM.On("Up").Return(tt.upErr)
			mockM.On("Version").Return(uint(1), false, nil).Maybe()
			mockM.On("Close").Return(nil, nil)

			var gotSource, gotDB string
			engine := func(source, db string) (Migrator, error) {
				gotSource, gotDB = source, db
				return mockM, nil
			}

			err := NewMigration(testDB, engine, slog.Default()).Up()
			if tt.wantErr {
				assert.ErrorContains(t, err, "bad sql")
			} else {
				assert.NoError(t, err)
			}
			assert.Equal(t, "file://migrations", gotSource)
			assert.Equal(t, "postgres://test", gotDB)
			mockM.AssertExpectations(t)
		})
	}
}

func TestMigration_Up_EngineError(t *testing.T) {
	engine := func(source, db string) (Migrator, error) {
		return nil, errors.New("engine crash")
	}

	err := NewMigration(testDB, engine, slog.Default()).Up()
	require.Error(t, err)
	assert.Equal(t, "engine crash", err.Error())
}

func TestMigration_CloseErrorsAreReported(t *testing.T) {
	mockM := new(MockMigrator)
	mockM.On("Down").Return(nil)
	mockM.On("Close").Return(errors.New("source closed"), nil)

	engine := func(source, db string) (Migrator, error) { return mockM, nil }

	err := NewMigration(testDB, engine, slog.Default()).Down()
	assert.ErrorContains(t, err, "source closed")
}
