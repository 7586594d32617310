package fleet

import (
	"errors"
)

var (
	ErrBusExists        = errors.New("bus already registered")
	ErrBusNotFound      = errors.New("bus not found")
	ErrNotBusOperator   = errors.New("bus belongs to another operator")
	ErrScheduleConflict = errors.New("bus already has a trip within 60 minutes")
)
