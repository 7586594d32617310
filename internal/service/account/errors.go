package account

import (
	"errors"
)

var (
	ErrAlreadyRegistered  = errors.New("already registered")
	ErrLicenseRegistered  = errors.New("license already registered")
	ErrInvalidCredentials = errors.New("invalid id or password")
)
