package midjourney

import (
	"errors"
	"fmt"
)

// ProtocolError reports a response whose shape the client could not decode.
// It is never retried.
type ProtocolError struct {
	Op     string
	Reason string
	Err    error
}

func (e *ProtocolError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("midjourney %s: protocol error: %s: %v", e.Op, e.Reason, e.Err)
	}
	return fmt.Sprintf("midjourney %s: protocol error: %s", e.Op, e.Reason)
}

func (e *ProtocolError) Unwrap() error {
	return e.Err
}

// TransportError reports a network level failure: the request did not
// complete, the server answered with a non-2xx status, or the body was not
// JSON.
type TransportError struct {
	Op         string
	StatusCode int
	Err        error
}

func (e *TransportError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("midjourney %s: transport error: status %d: %v", e.Op, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("midjourney %s: transport error: %v", e.Op, e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

func IsProtocolError(err error) bool {
	var pe *ProtocolError
	return errors.As(err, &pe)
}

func IsTransportError(err error) bool {
	var te *TransportError
	return errors.As(err, &te)
}

var errNotJSON = errors.New("response body is not JSON")
