package telemetry

import "time"

// Measurement is one persisted sensor reading, anchored to a
// project-sensor association. Rows are immutable once written and are
// created exclusively by the inbound dispatcher.
type Measurement struct {
	ID              int64     `json:"id"`
	ProjectSensorID string    `json:"project_sensor_id"`
	Value           float64   `json:"value"`
	RecordedAt      time.Time `json:"recorded_at"`
}

// ActuatorRecord is one persisted command send, anchored to a
// project-actuator association and carrying the acting user. Rows are
// created exclusively by the outbound publisher, and only after the
// command was successfully published.
type ActuatorRecord struct {
	ID                int64     `json:"id"`
	ProjectActuatorID string    `json:"project_actuator_id"`
	Value             float64   `json:"value"`
	RecordedAt        time.Time `json:"recorded_at"`
	UserID            string    `json:"user_id"`
}
