package bridge

import (
	"context"
	"time"

	"github.com/nvidal9/telebridge/internal/catalog"
	"github.com/nvidal9/telebridge/internal/infrastructure/logging"
	"github.com/nvidal9/telebridge/internal/telemetry"
)

// dispatchTimeout bounds the database work for a single inbound message.
const dispatchTimeout = 10 * time.Second

// Mirror receives a copy of persisted telemetry for time-series analysis.
// Writes are fire-and-forget; a nil Mirror disables mirroring.
type Mirror interface {
	WriteSensorReading(sensorID, topic string, value float64, at time.Time)
	WriteCommandSent(actuatorID, topic string, value float64, at time.Time)
}

// Dispatcher routes inbound telemetry messages to the store.
//
// The pipeline per message: parse the payload, resolve the topic to its
// sensors, fan each sensor out to its active project associations, and
// persist one measurement per association. A topic can feed several
// sensors and a sensor can belong to several projects; every combination
// gets its own row.
type Dispatcher struct {
	catalog   catalog.Repository
	telemetry telemetry.Repository
	mirror    Mirror
	logger    *logging.Logger
}

// NewDispatcher creates a telemetry dispatcher. mirror may be nil.
func NewDispatcher(cat catalog.Repository, tel telemetry.Repository, mirror Mirror, logger *logging.Logger) *Dispatcher {
	return &Dispatcher{
		catalog:   cat,
		telemetry: tel,
		mirror:    mirror,
		logger:    logger,
	}
}

// HandleMessage processes one inbound broker message.
//
// Malformed payloads and unknown topics are logged and dropped, never
// returned as errors: the broker cannot do anything useful with a
// failure, and one bad publisher must not poison the subscription.
func (d *Dispatcher) HandleMessage(topic string, payload []byte) error {
	ctx, cancel := context.WithTimeout(context.Background(), dispatchTimeout)
	defer cancel()

	receivedAt := time.Now().UTC()

	value, recordedAt, err := parseTelemetryPayload(payload, receivedAt)
	if err != nil {
		d.logger.Warn("dropping malformed telemetry payload",
			"topic", topic,
			"error", err,
		)
		return nil
	}

	sensors, err := d.catalog.ActiveSensorsByTopic(ctx, topic)
	if err != nil {
		d.logger.Error("sensor lookup failed", "topic", topic, "error", err)
		return nil
	}
	if len(sensors) == 0 {
		d.logger.Warn("telemetry on topic with no active sensor", "topic", topic)
		return nil
	}

	for _, sensor := range sensors {
		d.dispatchToSensor(ctx, topic, sensor, value, recordedAt)
	}
	return nil
}

// dispatchToSensor persists one reading for every active project the
// sensor belongs to.
func (d *Dispatcher) dispatchToSensor(ctx context.Context, topic string, sensor catalog.Sensor, value float64, recordedAt time.Time) {
	// Out-of-range readings are kept: a real sensor excursion is exactly
	// the data an operator wants to see. The range only gates commands.
	if value < sensor.MinValue || value > sensor.MaxValue {
		d.logger.Warn("sensor reading outside configured range",
			"sensor_id", sensor.ID,
			"topic", topic,
			"value", value,
			"min", sensor.MinValue,
			"max", sensor.MaxValue,
		)
	}

	assocs, err := d.catalog.ActiveProjectSensors(ctx, sensor.ID)
	if err != nil {
		d.logger.Error("association lookup failed",
			"sensor_id", sensor.ID,
			"error", err,
		)
		return
	}
	if len(assocs) == 0 {
		d.logger.Warn("sensor has no active project association, reading discarded",
			"sensor_id", sensor.ID,
			"topic", topic,
		)
		return
	}

	measurements := make([]telemetry.Measurement, 0, len(assocs))
	for _, assoc := range assocs {
		measurements = append(measurements, telemetry.Measurement{
			ProjectSensorID: assoc.ID,
			Value:           value,
			RecordedAt:      recordedAt,
		})
	}

	if err := d.telemetry.InsertMeasurements(ctx, measurements); err != nil {
		d.logger.Error("measurement insert failed",
			"sensor_id", sensor.ID,
			"count", len(measurements),
			"error", err,
		)
		return
	}

	d.logger.Debug("telemetry recorded",
		"sensor_id", sensor.ID,
		"topic", topic,
		"value", value,
		"projects", len(assocs),
	)

	if d.mirror != nil {
		d.mirror.WriteSensorReading(sensor.ID, topic, value, recordedAt)
	}
}
