package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrSourceNotReady means the intent needs a usable source asset and the
	// gate does not hold one. The pending intent is preserved for retry.
	ErrSourceNotReady  = errors.New("source not ready")
	ErrNotFound        = errors.New("not found")
	ErrProviderFailure = errors.New("provider failure")
)

// UnknownPresetError reports a preset id absent from the loaded catalog.
// It is a configuration defect, surfaced to users as "temporarily
// unavailable" rather than a crash.
type UnknownPresetError struct {
	ID string
}

func (e *UnknownPresetError) Error() string {
	return fmt.Sprintf("unknown preset %q", e.ID)
}

// MissingMappingError reports an option group/key pair that has no usable
// mapping, including the dangling case where the mapping's target preset is
// missing from the catalog.
type MissingMappingError struct {
	Group string
	Key   string
}

func (e *MissingMappingError) Error() string {
	return fmt.Sprintf("no mapping for option %s/%s", e.Group, e.Key)
}

// IsConfigError reports whether err stems from catalog configuration rather
// than user input or provider behavior.
func IsConfigError(err error) bool {
	var unknown *UnknownPresetError
	var missing *MissingMappingError
	return errors.As(err, &unknown) || errors.As(err, &missing)
}
