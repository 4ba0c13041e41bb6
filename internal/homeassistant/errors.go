package homeassistant

import (
	"errors"
	"fmt"
)

var (
	ErrHandshake      = errors.New("homeassistant: broker handshake failed")
	ErrNotConnected   = errors.New("homeassistant: not connected")
	ErrConnectionLost = errors.New("homeassistant: connection lost")
	ErrPublish        = errors.New("homeassistant: publish failed")
	ErrSubscribe      = errors.New("homeassistant: subscribe failed")
	ErrBrokerRequired = errors.New("homeassistant: broker host required")
)

// HandshakeError is returned by Connect when the broker could not be reached
// or refused the session.
type HandshakeError struct {
	Broker   string
	Attempts int
	Err      error
}

func (e *HandshakeError) Error() string {
	return fmt.Sprintf("homeassistant: broker handshake failed broker=%s attempts=%d: %v", e.Broker, e.Attempts, e.Err)
}

func (e *HandshakeError) Unwrap() []error {
	return []error{ErrHandshake, e.Err}
}
