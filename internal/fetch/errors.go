package fetch

import (
	"errors"
	"fmt"
)

// Kind classifies a fetch failure.
type Kind int

const (
	// KindTransient covers network, timeout and rate-limit failures.
	// Retryable within a single Fetch call.
	KindTransient Kind = iota
	// KindPermanent covers malformed responses, unknown symbols and
	// validation failures. Never retried.
	KindPermanent
)

func (k Kind) String() string {
	if k == KindPermanent {
		return "permanent"
	}
	return "transient"
}

// Error is a classified fetch failure for one symbol.
type Error struct {
	Symbol string
	Kind   Kind
	Err    error
}

func (e *Error) Error() string {
	return fmt.Sprintf("fetch %s: %s: %v", e.Symbol, e.Kind, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Transient wraps err as a retryable failure.
func Transient(symbol string, err error) *Error {
	return &Error{Symbol: symbol, Kind: KindTransient, Err: err}
}

// Permanent wraps err as a non-retryable failure.
func Permanent(symbol string, err error) *Error {
	return &Error{Symbol: symbol, Kind: KindPermanent, Err: err}
}

// IsTransient reports whether err is a transient fetch error. Errors that
// carry no classification count as transient, so an unknown source failure
// still gets its retries.
func IsTransient(err error) bool {
	var fe *Error
	if errors.As(err, &fe) {
		return fe.Kind == KindTransient
	}
	return true
}

// IsPermanent reports whether err is a permanent fetch error.
func IsPermanent(err error) bool {
	var fe *Error
	if errors.As(err, &fe) {
		return fe.Kind == KindPermanent
	}
	return false
}
