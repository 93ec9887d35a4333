package bridge

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/nvidal9/telebridge/internal/catalog"
	"github.com/nvidal9/telebridge/internal/infrastructure/config"
	"github.com/nvidal9/telebridge/internal/infrastructure/logging"
	"github.com/nvidal9/telebridge/internal/telemetry"
)

// commandQoS is the publish QoS for actuator commands. At-least-once:
// a lost command is worse than a duplicated one, actuator endpoints are
// expected to be idempotent for repeated values.
const commandQoS byte = 1

// CommandResult describes a successfully dispatched actuator command.
type CommandResult struct {
	ActuatorID     string    `json:"actuator_id"`
	Topic          string    `json:"topic"`
	Value          float64   `json:"value"`
	SentAt         time.Time `json:"sent_at"`
	RecordsCreated int       `json:"records_created"`
	Projects       []string  `json:"projects,omitempty"`
	Warning        string    `json:"warning,omitempty"`
}

// Publisher dispatches actuator commands to the broker and records them.
//
// Validation is strict where ingestion is lenient: a command outside the
// actuator's configured range is refused outright, because the bridge is
// the one originating it. Publish success gates persistence; a command
// that never reached the broker leaves no record.
type Publisher struct {
	manager   *Manager
	catalog   catalog.Repository
	telemetry telemetry.Repository
	mirror    Mirror
	cfg       config.BridgeConfig
	logger    *logging.Logger

	// sleep is swapped out in tests to avoid real delays.
	sleep func(ctx context.Context, d time.Duration) error
}

// NewPublisher creates a command publisher. mirror may be nil.
func NewPublisher(manager *Manager, cat catalog.Repository, tel telemetry.Repository, mirror Mirror, cfg config.BridgeConfig, logger *logging.Logger) *Publisher {
	return &Publisher{
		manager:   manager,
		catalog:   cat,
		telemetry: tel,
		mirror:    mirror,
		cfg:       cfg,
		logger:    logger,
		sleep:     sleepCtx,
	}
}

// SendCommand validates, publishes, and records a command for the given
// actuator. userID attributes the command in the actuator records and
// may be empty.
//
// Errors are distinguishable with errors.Is / errors.As:
// ErrActuatorNotFound, ErrActuatorNotConfigured, ErrValueOutOfRange,
// *PublishError when every attempt failed, and ErrRecordingFailed when
// the command went out but could not be recorded.
func (p *Publisher) SendCommand(ctx context.Context, actuatorID string, value float64, userID string) (*CommandResult, error) {
	actuator, err := p.catalog.ActuatorByID(ctx, actuatorID)
	if err != nil {
		if errors.Is(err, catalog.ErrActuatorNotFound) {
			return nil, fmt.Errorf("%w: %s", ErrActuatorNotFound, actuatorID)
		}
		return nil, err
	}
	if !actuator.Active {
		return nil, fmt.Errorf("%w: %s", ErrActuatorNotFound, actuatorID)
	}
	if actuator.DataSource == "" {
		return nil, fmt.Errorf("%w: %s", ErrActuatorNotConfigured, actuatorID)
	}
	if math.IsNaN(value) || math.IsInf(value, 0) {
		return nil, fmt.Errorf("%w: value is not finite", ErrValueOutOfRange)
	}
	if value < actuator.MinValue || value > actuator.MaxValue {
		return nil, fmt.Errorf("%w: %v not in [%v, %v]",
			ErrValueOutOfRange, value, actuator.MinValue, actuator.MaxValue)
	}

	// Best effort: give a cold bridge a chance to come up before the
	// first attempt. A wait failure is not fatal, the attempt itself
	// decides.
	if !p.manager.IsConnected() {
		if err := p.manager.WaitForConnection(ctx, p.cfg.GetConnectionWait()); err != nil {
			p.logger.Warn("proceeding to publish without confirmed connection",
				"actuator_id", actuatorID,
				"error", err,
			)
		}
	}

	sentAt := time.Now().UTC()
	payload, err := buildCommandPayload(value, sentAt)
	if err != nil {
		return nil, fmt.Errorf("encoding command payload: %w", err)
	}

	if err := p.publishWithRetry(ctx, actuator.DataSource, payload); err != nil {
		return nil, err
	}

	result := &CommandResult{
		ActuatorID: actuator.ID,
		Topic:      actuator.DataSource,
		Value:      value,
		SentAt:     sentAt,
	}

	assocs, err := p.catalog.ActiveProjectActuators(ctx, actuator.ID)
	if err != nil {
		p.logger.Error("association lookup failed after publish",
			"actuator_id", actuator.ID,
			"error", err,
		)
		return result, fmt.Errorf("%w: %v", ErrRecordingFailed, err)
	}
	if len(assocs) == 0 {
		result.Warning = "command sent but actuator belongs to no active project, nothing recorded"
		p.logger.Warn("command sent for unassociated actuator", "actuator_id", actuator.ID)
		return result, nil
	}

	records := make([]telemetry.ActuatorRecord, 0, len(assocs))
	for _, assoc := range assocs {
		records = append(records, telemetry.ActuatorRecord{
			ProjectActuatorID: assoc.ID,
			Value:             value,
			UserID:            userID,
			RecordedAt:        sentAt,
		})
		result.Projects = append(result.Projects, assoc.ProjectName)
	}

	if err := p.telemetry.InsertActuatorRecords(ctx, records); err != nil {
		p.logger.Error("actuator record insert failed after publish",
			"actuator_id", actuator.ID,
			"count", len(records),
			"error", err,
		)
		return result, fmt.Errorf("%w: %v", ErrRecordingFailed, err)
	}
	result.RecordsCreated = len(records)

	p.logger.Info("command dispatched",
		"actuator_id", actuator.ID,
		"topic", actuator.DataSource,
		"value", value,
		"records", len(records),
	)

	if p.mirror != nil {
		p.mirror.WriteCommandSent(actuator.ID, actuator.DataSource, value, sentAt)
	}

	return result, nil
}

// publishWithRetry attempts the publish up to the configured number of
// times with a fixed delay between attempts. ctx cancels the delay.
func (p *Publisher) publishWithRetry(ctx context.Context, topic string, payload []byte) error {
	client := p.manager.Client()

	attempts := p.cfg.PublishAttempts
	if attempts < 1 {
		attempts = 1
	}

	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		if client == nil {
			lastErr = ErrNotConnected
		} else {
			lastErr = client.Publish(topic, payload, commandQoS, false)
			if lastErr == nil {
				return nil
			}
		}

		p.logger.Warn("command publish attempt failed",
			"topic", topic,
			"attempt", attempt,
			"of", attempts,
			"error", lastErr,
		)

		if attempt < attempts {
			if err := p.sleep(ctx, p.cfg.GetRetryDelay()); err != nil {
				return &PublishError{
					Connected: p.manager.IsConnected(),
					Attempts:  attempt,
					Err:       err,
				}
			}
			// The connection may have come up between attempts.
			client = p.manager.Client()
		}
	}

	return &PublishError{
		Connected: p.manager.IsConnected(),
		Attempts:  attempts,
		Err:       lastErr,
	}
}

// sleepCtx sleeps for d or until ctx is cancelled.
func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
