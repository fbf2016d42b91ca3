package config

import "fmt"

// ConfigurationError reports a missing or invalid setting. It is fatal and
// never retried.
type ConfigurationError struct {
	Key     string
	Message string
	Cause   error
}

func (e *ConfigurationError) Error() string {
	if e == nil {
		return "configuration error"
	}
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

func (e *ConfigurationError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Cause
}
