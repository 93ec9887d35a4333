package influxdb

import (
	"time"

	"github.com/influxdata/influxdb-client-go/v2/api/write"
)

// WriteSensorReading mirrors an ingested sensor reading to InfluxDB.
//
// The write is non-blocking; data is batched and sent asynchronously.
// The relational measurement rows remain the source of truth - this
// mirror only feeds dashboards and trend queries.
func (c *Client) WriteSensorReading(sensorID, topic string, value float64, at time.Time) {
	if !c.IsConnected() {
		return
	}

	point := write.NewPoint(
		"sensor_readings",
		map[string]string{
			"sensor_id": sensorID,
			"topic":     topic,
		},
		map[string]interface{}{
			"value": value,
		},
		at,
	)

	c.writeAPI.WritePoint(point)
}

// WriteCommandSent records a successfully published actuator command.
func (c *Client) WriteCommandSent(actuatorID, topic string, value float64, at time.Time) {
	if !c.IsConnected() {
		return
	}

	point := write.NewPoint(
		"actuator_commands",
		map[string]string{
			"actuator_id": actuatorID,
			"topic":       topic,
		},
		map[string]interface{}{
			"value": value,
		},
		at,
	)

	c.writeAPI.WritePoint(point)
}
