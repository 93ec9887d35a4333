package bridge

import (
	"context"
	"sort"
	"sync"

	"github.com/nvidal9/telebridge/internal/catalog"
	"github.com/nvidal9/telebridge/internal/infrastructure/logging"
	"github.com/nvidal9/telebridge/internal/infrastructure/mqtt"
)

// inboundQoS is the subscription QoS for sensor telemetry. At-most-once:
// a missed reading is tolerable, a duplicate write is not worth the
// broker round-trips.
const inboundQoS byte = 0

// Synchronizer keeps broker subscriptions aligned with the set of active
// sensor topics in the catalog.
//
// It maintains its own authoritative record of subscribed topics rather
// than introspecting the client. Refresh rebuilds from scratch so the
// record can never drift from the catalog: remove-then-resubscribe is
// cheaper to reason about than diffing.
type Synchronizer struct {
	manager *Manager
	catalog catalog.Repository
	handler mqtt.MessageHandler
	logger  *logging.Logger

	mu     sync.Mutex
	topics map[string]struct{}
}

// NewSynchronizer creates a subscription synchronizer. handler is invoked
// for every message on a subscribed topic.
func NewSynchronizer(manager *Manager, repo catalog.Repository, handler mqtt.MessageHandler, logger *logging.Logger) *Synchronizer {
	return &Synchronizer{
		manager: manager,
		catalog: repo,
		handler: handler,
		logger:  logger,
		topics:  make(map[string]struct{}),
	}
}

// SubscribeActiveSensors subscribes to every distinct data source topic
// of the active sensors. A failed topic is logged and skipped so one bad
// subscription does not block the rest.
func (s *Synchronizer) SubscribeActiveSensors(ctx context.Context) error {
	client := s.manager.Client()
	if client == nil || !client.IsConnected() {
		s.logger.Warn("subscription sync skipped, broker not connected")
		return ErrNotConnected
	}

	topics, err := s.catalog.ActiveSensorTopics(ctx)
	if err != nil {
		return err
	}

	subscribed := 0
	for _, topic := range topics {
		s.mu.Lock()
		_, tracked := s.topics[topic]
		s.mu.Unlock()
		// Skip only when the transport still holds the subscription: a
		// tracked topic whose restore failed on reconnect must be
		// re-subscribed, not skipped.
		if tracked && client.HasSubscription(topic) {
			continue
		}

		if err := client.Subscribe(topic, inboundQoS, s.handler); err != nil {
			s.logger.Error("subscribe failed", "topic", topic, "error", err)
			continue
		}

		s.mu.Lock()
		s.topics[topic] = struct{}{}
		s.mu.Unlock()
		subscribed++
	}

	s.logger.Info("sensor subscriptions synchronized",
		"active_topics", len(topics),
		"new_subscriptions", subscribed,
	)
	return nil
}

// Refresh drops every current subscription and rebuilds from the catalog.
// Call it after sensors are added, removed, or toggled.
//
// When the broker is not connected it is a no-op: the next connect
// callback re-runs the full sync anyway.
func (s *Synchronizer) Refresh(ctx context.Context) error {
	client := s.manager.Client()
	if client == nil || !client.IsConnected() {
		s.logger.Warn("subscription refresh skipped, broker not connected")
		return nil
	}

	s.mu.Lock()
	old := make([]string, 0, len(s.topics))
	for topic := range s.topics {
		old = append(old, topic)
	}
	s.topics = make(map[string]struct{})
	s.mu.Unlock()

	for _, topic := range old {
		if err := client.Unsubscribe(topic); err != nil {
			s.logger.Warn("unsubscribe failed", "topic", topic, "error", err)
		}
	}

	return s.SubscribeActiveSensors(ctx)
}

// Topics returns the currently tracked subscription topics, sorted.
func (s *Synchronizer) Topics() []string {
	s.mu.Lock()
	topics := make([]string, 0, len(s.topics))
	for topic := range s.topics {
		topics = append(topics, topic)
	}
	s.mu.Unlock()

	sort.Strings(topics)
	return topics
}
