package catalog

import "errors"

// Sentinel errors for catalog lookups.
// Use errors.Is() to check for these errors in calling code.
var (
	// ErrSensorNotFound is returned when a sensor does not exist.
	ErrSensorNotFound = errors.New("catalog: sensor not found")

	// ErrActuatorNotFound is returned when an actuator does not exist.
	ErrActuatorNotFound = errors.New("catalog: actuator not found")

	// ErrProjectNotFound is returned when a project does not exist.
	ErrProjectNotFound = errors.New("catalog: project not found")
)
