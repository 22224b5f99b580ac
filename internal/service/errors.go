package service

import (
	"errors"
	"fmt"
)

var (
	ErrValidation          = errors.New("validation failed")
	ErrConflict            = errors.New("user with this username or email already exists")
	ErrInvalidCredentials  = errors.New("invalid credentials")
	ErrInvalidRefreshToken = errors.New("invalid refresh token")
	ErrNotFound            = errors.New("not found")

	// ErrPasswordTooLong is a validation error: bcrypt only takes 72 bytes.
	ErrPasswordTooLong = fmt.Errorf("%w: password must be at most 72 bytes", ErrValidation)
)
