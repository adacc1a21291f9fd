package domain

import (
	"fmt"
	"regexp"
)

// resourceNameRegex matches names safe for every provider we target: lowercase
// alphanumerics and hyphens, starting with a letter, 2-63 characters.
var resourceNameRegex = regexp.MustCompile(`^[a-z][a-z0-9-]{0,61}[a-z0-9]$`)

// ValidateResourceName checks a name is usable as a provisioned resource id.
func ValidateResourceName(name string) error {
	if !resourceNameRegex.MatchString(name) {
		return fmt.Errorf("%w: name %q is not a valid resource name", ErrInvalidInput, name)
	}
	return nil
}

// versionRegex whitelists tag characters: letters, digits, -, _, .
var versionRegex = regexp.MustCompile(`^[a-zA-Z0-9._-]+$`)

// ValidateVersion checks a caller-supplied image version identifier.
func ValidateVersion(version string) error {
	if version == "" {
		return fmt.Errorf("%w: version is required", ErrInvalidInput)
	}
	if !versionRegex.MatchString(version) {
		return fmt.Errorf("%w: version %q contains invalid characters", ErrInvalidInput, version)
	}
	return nil
}
