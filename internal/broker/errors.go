package broker

import (
	"errors"
	"fmt"
)

var (
	// ErrConnectAborted is reported when Disconnect interrupts a pending connect.
	ErrConnectAborted = errors.New("connect aborted by disconnect")
	// ErrClosed is reported for lifecycle calls made after Close.
	ErrClosed = errors.New("broker closed")
)

// ConnectionError describes a lifecycle failure delivered on the error channel.
type ConnectionError struct {
	Session string
	Op      string
	Err     error
}

func (e *ConnectionError) Error() string {
	if e.Session == "" {
		return fmt.Sprintf("%s: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("%s (session %s): %v", e.Op, e.Session, e.Err)
}

func (e *ConnectionError) Unwrap() error { return e.Err }
