package location

import "errors"

var (
	ErrNotFound      = errors.New("location not found")
	ErrInvalidData   = errors.New("invalid location data")
	ErrDuplicateName = errors.New("location with this name already exists")
)
