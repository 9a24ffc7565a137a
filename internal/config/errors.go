package config

import "fmt"

// VerificationError reports a configuration value that breaks a range or format rule.
type VerificationError struct {
	Field   string
	Message string
}

func (e *VerificationError) Error() string {
	return e.Message
}

func verificationErrorf(field, format string, args ...any) error {
	return &VerificationError{Field: field, Message: fmt.Sprintf(format, args...)}
}

// LoadError is returned by Store.LoadCurrent after the current config was reset to defaults.
type LoadError struct {
	Path string
	Err  error
}

func (e *LoadError) Error() string {
	return fmt.Sprintf("load config %s: %v", e.Path, e.Err)
}

func (e *LoadError) Unwrap() error {
	return e.Err
}
