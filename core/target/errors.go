package target

import "errors"

var (
	ErrRegister       = errors.New("failed to register with plant")
	ErrPlantGone      = errors.New("plant gone")
	ErrInvalidOptions = errors.New("invalid controller options")
)
