package model

import (
	"context"
	"errors"
	"fmt"
)

var (
	// ErrNotFound is returned when the upstream has no data for a symbol.
	ErrNotFound = errors.New("not found")

	// ErrRateLimited is returned when the upstream throttles the request.
	ErrRateLimited = errors.New("rate limited")

	// ErrTimeout is returned when an upstream call exceeds its deadline.
	ErrTimeout = errors.New("timeout")

	// ErrMalformedResponse is returned when an upstream payload fails validation.
	ErrMalformedResponse = errors.New("malformed response")

	// ErrInsufficientHistory is returned when a calculation needs more data points than it was given.
	ErrInsufficientHistory = errors.New("insufficient history")

	// ErrDegenerateChain is returned for empty chains or undefined ratios.
	ErrDegenerateChain = errors.New("degenerate option chain")

	// ErrInvalidInput is returned for arguments outside a formula's domain.
	ErrInvalidInput = errors.New("invalid input")
)

// FetchErrorKind classifies upstream failures. All kinds are retryable by
// the next request; none is retried within the same request.
type FetchErrorKind int

const (
	NotFound FetchErrorKind = iota
	RateLimited
	Timeout
	MalformedResponse
)

func (k FetchErrorKind) String() string {
	switch k {
	case NotFound:
		return "not_found"
	case RateLimited:
		return "rate_limited"
	case Timeout:
		return "timeout"
	default:
		return "malformed_response"
	}
}

func (k FetchErrorKind) sentinel() error {
	switch k {
	case NotFound:
		return ErrNotFound
	case RateLimited:
		return ErrRateLimited
	case Timeout:
		return ErrTimeout
	default:
		return ErrMalformedResponse
	}
}

// FetchError is the per-symbol failure of an upstream call.
type FetchError struct {
	Symbol string
	Kind   FetchErrorKind
	Err    error
}

// NewFetchError builds a FetchError for symbol.
func NewFetchError(symbol string, kind FetchErrorKind, err error) *FetchError {
	return &FetchError{Symbol: symbol, Kind: kind, Err: err}
}

func (e *FetchError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("fetch %s: %s", e.Symbol, e.Kind)
	}
	return fmt.Sprintf("fetch %s: %s: %v", e.Symbol, e.Kind, e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }

// Is lets errors.Is match a FetchError against its kind's sentinel.
func (e *FetchError) Is(target error) bool {
	return target == e.Kind.sentinel()
}

// WithSymbol returns a copy of e attributed to another symbol. Used when a
// batch call fails as a whole.
func (e *FetchError) WithSymbol(symbol string) *FetchError {
	cp := *e
	cp.Symbol = symbol
	return &cp
}

// AsFetchError returns err as a *FetchError for symbol. Context expiry maps
// to Timeout, anything else unknown to MalformedResponse.
func AsFetchError(symbol string, err error) *FetchError {
	var fe *FetchError
	if errors.As(err, &fe) {
		if fe.Symbol == "" {
			return fe.WithSymbol(symbol)
		}
		return fe
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return NewFetchError(symbol, Timeout, err)
	}
	return NewFetchError(symbol, MalformedResponse, err)
}
