package model

import "fmt"

// ConfigurationError reports a missing or invalid value in the workbook or
// settings. It is always fatal.
type ConfigurationError struct {
	Sheet  string
	Field  string
	Reason string
	Err    error
}

func (e *ConfigurationError) Error() string {
	msg := "configuration error"
	if e.Sheet != "" {
		msg += fmt.Sprintf(" in sheet %q", e.Sheet)
	}
	if e.Field != "" {
		msg += fmt.Sprintf(" for %q", e.Field)
	}
	if e.Reason != "" {
		msg += ": " + e.Reason
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *ConfigurationError) Unwrap() error {
	return e.Err
}
