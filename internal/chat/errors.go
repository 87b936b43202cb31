package chat

import (
	"errors"
	"fmt"
)

// ErrSendInFlight is returned when a send is attempted on a session that
// already has a streaming reply in progress. Sends are serialized per
// session so two replies never interleave in one thread.
var ErrSendInFlight = errors.New("a reply is already streaming for this session")

// ErrSessionNotFound is returned when an operation targets a session id
// that does not resolve to an existing session.
var ErrSessionNotFound = errors.New("session not found")

// TransportError indicates that a send failed at the network level: the
// request could not be issued, the server returned a non-success status,
// or the stream broke mid-read. Decode failures of individual records are
// not transport errors; they are skipped by the decoder.
type TransportError struct {
	Status int // HTTP status when non-zero
	Err    error
}

func (e *TransportError) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("chat backend returned status %d", e.Status)
	}
	return fmt.Sprintf("chat request failed: %v", e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}
