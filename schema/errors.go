package schema

import "strings"

type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// FieldErrors lists validation failures in field order.
type FieldErrors []FieldError

func (errs FieldErrors) Error() string {
	msgs := make([]string, len(errs))
	for i, e := range errs {
		msgs[i] = e.Field + ": " + e.Message
	}
	return strings.Join(msgs, "; ")
}

// ConfigError reports a field list that cannot be compiled.
type ConfigError struct {
	Err error
}

func (e *ConfigError) Error() string {
	return "invalid form configuration: " + e.Err.Error()
}

func (e *ConfigError) Unwrap() error {
	return e.Err
}
