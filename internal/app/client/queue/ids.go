package queue

import (
	"strings"

	"github.com/google/uuid"
)

// TempPrefix отмечает идентификаторы, выданные клиентом до подтверждения сервером.
const TempPrefix = "tmp_"

// NewTempID возвращает временный идентификатор: префикс + UUIDv7 (упорядочен по времени).
func NewTempID() string {
	return TempPrefix + uuid.Must(uuid.NewV7()).String()
}

// IsTempID проверяет, является ли id временным.
func IsTempID(id string) bool {
	return strings.HasPrefix(id, TempPrefix)
}

func newMutationID() string {
	return uuid.Must(uuid.NewV7()).String()
}
