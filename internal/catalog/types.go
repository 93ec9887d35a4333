package catalog

import "time"

// Sensor is a monitored entity bound to at most one MQTT topic via DataSource.
// Rows are created and edited by the external CRUD layer; the bridge only
// reads their current state.
type Sensor struct {
	ID   string `json:"id"`
	Name string `json:"name"`

	// DataSource is the MQTT topic this sensor publishes to.
	// Empty means the sensor is not wired to the bus and never
	// contributes a subscription.
	DataSource string `json:"data_source"`

	// MinValue and MaxValue bound the expected reading range.
	// Inbound values outside the range are persisted with a warning;
	// the range is advisory at ingestion time.
	MinValue float64 `json:"min_value"`
	MaxValue float64 `json:"max_value"`

	Active bool `json:"active"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Actuator is a controlled entity. DataSource is the topic commands are
// published to, and the value range is hard-enforced at command time.
type Actuator struct {
	ID         string  `json:"id"`
	Name       string  `json:"name"`
	DataSource string  `json:"data_source"`
	MinValue   float64 `json:"min_value"`
	MaxValue   float64 `json:"max_value"`
	Active     bool    `json:"active"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Project groups sensors and actuators. Only associations whose parent
// project is active participate in telemetry fan-out.
type Project struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	Active bool   `json:"active"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Association is a project link row (project_sensors or project_actuators)
// joined with its parent project's name. Telemetry rows reference the
// association ID, not the sensor/actuator or project directly.
type Association struct {
	ID          string `json:"id"`
	ProjectID   string `json:"project_id"`
	ProjectName string `json:"project_name"`
}
