package remote

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"plantkeeper/internal/domain/location"
	"plantkeeper/internal/domain/plant"
)

var (
	// ErrUnavailable - сервер недоступен (нет сети, таймаут, 5xx). Мутацию можно повторить позже.
	ErrUnavailable = errors.New("remote store unavailable")
	// ErrRejected - сервер отклонил запрос (валидация, ограничения).
	ErrRejected = errors.New("remote store rejected request")
)

// RejectedError несет статус и сообщение отказа сервера.
type RejectedError struct {
	Status  int
	Message string
}

func (e *RejectedError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("remote store rejected request: status %d", e.Status)
	}
	return fmt.Sprintf("remote store rejected request: %s (status %d)", e.Message, e.Status)
}

func (e *RejectedError) Is(target error) bool {
	return target == ErrRejected
}

// IsConnectivity сообщает, что ошибка временная и мутацию нужно отложить в очередь.
func IsConnectivity(err error) bool {
	return errors.Is(err, ErrUnavailable)
}

// IsNotFound сообщает, что строки на сервере нет.
func IsNotFound(err error) bool {
	var rej *RejectedError
	return errors.As(err, &rej) && rej.Status == http.StatusNotFound
}

type Plants interface {
	ListPlants(ctx context.Context) ([]plant.Plant, error)
	CreatePlant(ctx context.Context, idempotencyKey string, req plant.CreateRequest) (plant.Plant, error)
	UpdatePlant(ctx context.Context, id string, req plant.UpdateRequest) (plant.Plant, error)
	DeletePlant(ctx context.Context, id string) error
}

type Locations interface {
	ListLocations(ctx context.Context) ([]location.Location, error)
	CreateLocation(ctx context.Context, idempotencyKey string, req location.CreateRequest) (location.Location, error)
	UpdateLocation(ctx context.Context, id string, req location.UpdateRequest) (location.Location, error)
	DeleteLocation(ctx context.Context, id string) error
}

// Store - контракт удаленного хранилища, нужный ядру синхронизации.
type Store interface {
	Plants
	Locations
}
