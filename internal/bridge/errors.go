package bridge

import (
	"errors"
	"fmt"
)

// Sentinel errors for bridge operations.
// Use errors.Is() to check for these errors in calling code.
var (
	// ErrActuatorNotFound is returned when the target actuator does not
	// exist or is inactive. The two cases are deliberately not
	// distinguished: an inactive actuator must not be commandable.
	ErrActuatorNotFound = errors.New("bridge: actuator not found or inactive")

	// ErrActuatorNotConfigured is returned when the actuator has no data
	// source (no topic to publish to).
	ErrActuatorNotConfigured = errors.New("bridge: actuator has no data source configured")

	// ErrValueOutOfRange is returned when a command value is not a finite
	// number within the actuator's configured range. Unlike the inbound
	// soft check, this blocks the command.
	ErrValueOutOfRange = errors.New("bridge: command value out of range")

	// ErrNotConnected is returned when an operation requires a live
	// broker connection and none exists.
	ErrNotConnected = errors.New("bridge: not connected to broker")

	// ErrConnectionTimeout is returned by WaitForConnection when no
	// connection is established within the timeout.
	ErrConnectionTimeout = errors.New("bridge: timed out waiting for broker connection")

	// ErrRecordingFailed is returned when a command was published but the
	// actuator records could not be persisted. The command reached the
	// broker; only the bookkeeping failed.
	ErrRecordingFailed = errors.New("bridge: command published but recording failed")
)

// PublishError is returned when all publish attempts for a command were
// exhausted. It carries the connection state observed at failure time so
// callers can distinguish "broker down" from "broker rejected".
type PublishError struct {
	// Connected reports whether the broker connection was up when the
	// last attempt failed.
	Connected bool

	// Attempts is the number of publish attempts made.
	Attempts int

	// Err is the last underlying publish error.
	Err error
}

func (e *PublishError) Error() string {
	return fmt.Sprintf("bridge: publish failed after %d attempts (connected=%t): %v",
		e.Attempts, e.Connected, e.Err)
}

func (e *PublishError) Unwrap() error {
	return e.Err
}

// Suggestion returns a caller-facing hint distinguishing transient
// connectivity problems from configuration or permission problems.
func (e *PublishError) Suggestion() string {
	if !e.Connected {
		return "broker unreachable, retry once connectivity is restored"
	}
	return "broker reachable but rejected the publish, check topic configuration and permissions"
}
