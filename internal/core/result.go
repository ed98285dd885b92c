package core

import "errors"

var (
	ErrJobNotFound        = errors.New("job not found")
	ErrNoPrinterAvailable = errors.New("no printer available")
	ErrInvalidInput       = errors.New("invalid input")
)

// Result is the outcome of a manual operation. Failures are soft: they leave
// state untouched apart from a log entry.
type Result int

const (
	ResultOK Result = iota
	ResultNotFound
	ResultResourceUnavailable
	ResultInvalidInput
)

func (r Result) String() string {
	switch r {
	case ResultOK:
		return "ok"
	case ResultNotFound:
		return "not_found"
	case ResultResourceUnavailable:
		return "resource_unavailable"
	case ResultInvalidInput:
		return "invalid_input"
	default:
		return "unknown"
	}
}

func (r Result) OK() bool { return r == ResultOK }

func (r Result) Err() error {
	switch r {
	case ResultOK:
		return nil
	case ResultNotFound:
		return ErrJobNotFound
	case ResultResourceUnavailable:
		return ErrNoPrinterAvailable
	default:
		return ErrInvalidInput
	}
}
