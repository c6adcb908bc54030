package detection

import (
	"fmt"

	"github.com/pkg/errors"
)

// ErrConfiguration matches every *ConfigurationError under errors.Is.
var ErrConfiguration = errors.New("detection: configuration error")

// ConfigurationError reports a template (re)configuration that was rejected.
// The previously active TemplateState is left in place.
type ConfigurationError struct {
	// Field names the setting at fault, e.g. "source_image_path".
	Field string

	// Value is the rejected value, rendered for the message.
	Value interface{}

	Err error
}

func (e *ConfigurationError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("invalid %s %v", e.Field, e.Value)
	}
	return fmt.Sprintf("invalid %s %v: %v", e.Field, e.Value, e.Err)
}

// Unwrap returns the underlying cause.
func (e *ConfigurationError) Unwrap() error { return e.Err }

// Is reports whether target is ErrConfiguration.
func (e *ConfigurationError) Is(target error) bool { return target == ErrConfiguration }

func configError(field string, value interface{}, cause error) error {
	return &ConfigurationError{Field: field, Value: value, Err: cause}
}

// IsConfigurationError reports whether err is, or wraps, a ConfigurationError.
func IsConfigurationError(err error) bool {
	return errors.Is(err, ErrConfiguration)
}
