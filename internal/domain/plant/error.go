package plant

import "errors"

var (
	ErrNotFound        = errors.New("plant not found")
	ErrInvalidData     = errors.New("invalid plant data")
	ErrUnknownLocation = errors.New("location does not exist")
	ErrNoPhoto         = errors.New("plant has no photo")
)
