package exchange

import (
	"errors"
	"fmt"
)

// BusinessError is a structured rejection from the exchange. The request was
// delivered and the exchange answered definitively, so the caller may treat it
// as ground truth (e.g. order-not-found means the order is gone).
type BusinessError struct {
	Status  int
	Code    string
	Message string
}

func (e *BusinessError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("exchange rejected request: %s (%s)", e.Message, e.Code)
	}
	return fmt.Sprintf("exchange rejected request: HTTP %d %s", e.Status, e.Message)
}

// OrderGone reports whether the error means the referenced order no longer
// exists on the exchange (already filled or cancelled).
func (e *BusinessError) OrderGone() bool {
	switch e.Code {
	case "ORDER_NOT_FOUND", "RESOURCE_NOT_FOUND", "INVALID_ORDER":
		return true
	}
	return e.Status == 404
}

// TransportError is a network-level failure. The request may or may not have
// reached the exchange, so the true state of the affected resource is unknown
// until re-queried.
type TransportError struct {
	Op  string
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("%s: transport failure: %v", e.Op, e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// AsBusiness extracts a BusinessError if err carries one.
func AsBusiness(err error) (*BusinessError, bool) {
	var be *BusinessError
	if errors.As(err, &be) {
		return be, true
	}
	return nil, false
}

// IsTransport reports whether err is a transport-level failure, i.e. the
// exchange-side outcome of the request is unknown.
func IsTransport(err error) bool {
	var te *TransportError
	return errors.As(err, &te)
}
