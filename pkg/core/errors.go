package core

import "fmt"

// ConfigError reports an invalid build configuration: bad names, transforms
// on the source projection, or a self-referencing or cyclic apply.
type ConfigError struct {
	Message string
}

// NewConfigError formats a ConfigError.
func NewConfigError(format string, args ...any) *ConfigError {
	return &ConfigError{Message: fmt.Sprintf(format, args...)}
}

func (e *ConfigError) Error() string {
	return e.Message
}

// UnknownTransformError is returned when a projection references a transform
// that is not registered.
type UnknownTransformError struct {
	Transform  string
	Projection string
}

func (e *UnknownTransformError) Error() string {
	return fmt.Sprintf("unable to find a transform for `%s` in the `%s` projection", e.Transform, e.Projection)
}

// UnknownProjectionError is returned when an apply transform targets a
// projection that does not exist.
type UnknownProjectionError struct {
	Projection   string
	ReferencedBy string
}

func (e *UnknownProjectionError) Error() string {
	return fmt.Sprintf("unable to find projection named `%s` referenced by `%s`", e.Projection, e.ReferencedBy)
}

// BuildError is a run-level failure, distinct from per-projection failures.
type BuildError struct {
	Message string
	Err     error
}

func (e *BuildError) Error() string {
	if e.Err == nil {
		return e.Message
	}
	return fmt.Sprintf("%s: %v", e.Message, e.Err)
}

func (e *BuildError) Unwrap() error {
	return e.Err
}
