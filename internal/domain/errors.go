package domain

import (
	"errors"
	"strconv"
)

// RetriableError defines an interface for errors that can be retried
type RetriableError interface {
	error
	IsRetriable() bool
}

// IsRetriable checks if an error is retriable
func IsRetriable(err error) bool {
	var re RetriableError
	if errors.As(err, &re) {
		return re.IsRetriable()
	}
	return false
}

// TransportError represents a network or HTTP failure against an upstream
// API. Most are transient and worth retrying on the next scheduled tick;
// 401 (bad key) and 429 (rate limit) are permanent for the current key and
// callers should fall back to cached or static data instead.
type TransportError struct {
	Op        string // operation that failed, e.g. "listings", "quote"
	Status    int    // HTTP status, 0 when the request never completed
	Err       error
	Permanent bool
}

func (e *TransportError) Error() string {
	msg := e.Op
	if e.Status != 0 {
		msg += ": status " + strconv.Itoa(e.Status)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *TransportError) IsRetriable() bool {
	return !e.Permanent
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// NewTransportError creates a transport error, marking 401 and 429 permanent.
func NewTransportError(op string, status int, err error) *TransportError {
	return &TransportError{
		Op:        op,
		Status:    status,
		Err:       err,
		Permanent: status == 401 || status == 429,
	}
}

// ValidationError flags a malformed provider payload. The formatter recovers
// by clamping or synthesizing, so these rarely propagate.
type ValidationError struct {
	Field string
	Err   error
}

func (e *ValidationError) Error() string {
	return "invalid payload [" + e.Field + "]: " + e.Err.Error()
}

func (e *ValidationError) IsRetriable() bool { return false }

func (e *ValidationError) Unwrap() error { return e.Err }

// ConfigError represents a configuration error (never retriable). These are
// fatal at startup: the process refuses to run half-configured.
type ConfigError struct {
	Field string
	Err   error
}

func (e *ConfigError) Error() string {
	return "config error [" + e.Field + "]: " + e.Err.Error()
}

func (e *ConfigError) IsRetriable() bool { return false }

func (e *ConfigError) Unwrap() error { return e.Err }

var (
	// ErrInvalidSymbol is returned when a symbol is not supported or malformed. Not retriable.
	ErrInvalidSymbol = errors.New("invalid symbol")

	// ErrSymbolNotFound is returned when the catalog cannot resolve a symbol.
	ErrSymbolNotFound = errors.New("symbol not found")

	// ErrConfigNotFound is returned when the configuration file is missing.
	ErrConfigNotFound = errors.New("configuration not found")
)
