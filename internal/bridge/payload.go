package bridge

import (
	"encoding/json"
	"fmt"
	"math"
	"time"
)

// telemetryPayload is the wire format for inbound sensor messages.
// The field names are fixed by the sensor firmware protocol.
type telemetryPayload struct {
	Valor     *float64 `json:"valor"`
	Timestamp string   `json:"timestamp"`
}

// commandPayload is the wire format for outbound actuator commands.
type commandPayload struct {
	Valor     float64 `json:"valor"`
	Timestamp string  `json:"timestamp"`
}

// parseTelemetryPayload decodes an inbound message body.
//
// The valor field is required and must be a finite number; a missing or
// non-numeric valor rejects the whole message. The timestamp is optional:
// when absent or unparseable the receipt time is used.
func parseTelemetryPayload(data []byte, receivedAt time.Time) (value float64, at time.Time, err error) {
	var p telemetryPayload
	if err := json.Unmarshal(data, &p); err != nil {
		return 0, time.Time{}, fmt.Errorf("decoding payload: %w", err)
	}

	if p.Valor == nil {
		return 0, time.Time{}, fmt.Errorf("payload has no valor field")
	}
	if math.IsNaN(*p.Valor) || math.IsInf(*p.Valor, 0) {
		return 0, time.Time{}, fmt.Errorf("valor is not a finite number")
	}

	at = receivedAt
	if p.Timestamp != "" {
		if parsed, parseErr := time.Parse(time.RFC3339, p.Timestamp); parseErr == nil {
			at = parsed
		}
	}

	return *p.Valor, at, nil
}

// buildCommandPayload encodes an outbound command body.
func buildCommandPayload(value float64, at time.Time) ([]byte, error) {
	data, err := json.Marshal(commandPayload{
		Valor:     value,
		Timestamp: at.UTC().Format(time.RFC3339),
	})
	if err != nil {
		return nil, fmt.Errorf("encoding command payload: %w", err)
	}
	return data, nil
}
