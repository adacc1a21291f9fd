package domain

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound      = errors.New("not found")
	ErrAlreadyExists = errors.New("already exists")
	ErrInvalidInput  = errors.New("invalid input")

	// Provisioning failure classes. All are fatal to a deploy; the prior
	// revision keeps serving.
	ErrQuotaExceeded    = errors.New("quota exceeded")
	ErrPermissionDenied = errors.New("permission denied")
	ErrNameConflict     = errors.New("name conflict")

	ErrUnitNotFound     = fmt.Errorf("service unit %w", ErrNotFound)
	ErrRevisionNotFound = fmt.Errorf("revision %w", ErrNotFound)
	ErrImageNotFound    = fmt.Errorf("image tag %w", ErrNotFound)
)

// IsProvisioningFatal reports whether err belongs to a provisioning failure
// class that must abort the deploy.
func IsProvisioningFatal(err error) bool {
	return errors.Is(err, ErrQuotaExceeded) ||
		errors.Is(err, ErrPermissionDenied) ||
		errors.Is(err, ErrNameConflict)
}
