package bridge

import (
	"context"
	"time"

	"github.com/nvidal9/telebridge/internal/catalog"
	"github.com/nvidal9/telebridge/internal/infrastructure/config"
	"github.com/nvidal9/telebridge/internal/infrastructure/logging"
	"github.com/nvidal9/telebridge/internal/telemetry"
)

// Options configures a Bridge.
type Options struct {
	MQTT      config.MQTTConfig
	Bridge    config.BridgeConfig
	Catalog   catalog.Repository
	Telemetry telemetry.Repository
	Mirror    Mirror // optional, may be nil
	Logger    *logging.Logger

	// Connect overrides the broker connection factory. For tests.
	Connect ConnectFunc
}

// Bridge ties the broker connection, subscription synchronisation,
// inbound dispatch, and command publishing together behind one surface.
type Bridge struct {
	manager    *Manager
	sync       *Synchronizer
	dispatcher *Dispatcher
	publisher  *Publisher
	logger     *logging.Logger
}

// New assembles a bridge from its parts. The broker connection is not
// opened until Initialize is called.
func New(opts Options) *Bridge {
	manager := NewManager(opts.MQTT, opts.Bridge.StatusTopic, opts.Logger)
	if opts.Connect != nil {
		manager.SetConnectFunc(opts.Connect)
	}
	dispatcher := NewDispatcher(opts.Catalog, opts.Telemetry, opts.Mirror, opts.Logger)
	sync := NewSynchronizer(manager, opts.Catalog, dispatcher.HandleMessage, opts.Logger)
	publisher := NewPublisher(manager, opts.Catalog, opts.Telemetry, opts.Mirror, opts.Bridge, opts.Logger)

	b := &Bridge{
		manager:    manager,
		sync:       sync,
		dispatcher: dispatcher,
		publisher:  publisher,
		logger:     opts.Logger,
	}

	// Every connect, initial or after a drop, re-runs the full
	// subscription sync. The transport restores its own subscriptions
	// on reconnect; the sync additionally picks up catalog changes that
	// happened while disconnected.
	manager.SetOnConnect(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := sync.SubscribeActiveSensors(ctx); err != nil {
			opts.Logger.Error("subscription sync on connect failed", "error", err)
		}
	})

	return b
}

// Initialize opens the broker connection and subscribes to the active
// sensor topics. Idempotent.
func (b *Bridge) Initialize(ctx context.Context) error {
	return b.manager.Initialize(ctx)
}

// IsConnected reports whether the broker connection is up.
func (b *Bridge) IsConnected() bool {
	return b.manager.IsConnected()
}

// WaitForConnection blocks until connected, triggering lazy
// initialization when needed.
func (b *Bridge) WaitForConnection(ctx context.Context, timeout time.Duration) error {
	return b.manager.WaitForConnection(ctx, timeout)
}

// RefreshSubscriptions rebuilds the subscription set from the catalog.
func (b *Bridge) RefreshSubscriptions(ctx context.Context) error {
	return b.sync.Refresh(ctx)
}

// SubscribedTopics returns the currently subscribed topics, sorted.
func (b *Bridge) SubscribedTopics() []string {
	return b.sync.Topics()
}

// SendCommand validates, publishes, and records an actuator command.
func (b *Bridge) SendCommand(ctx context.Context, actuatorID string, value float64, userID string) (*CommandResult, error) {
	return b.publisher.SendCommand(ctx, actuatorID, value, userID)
}

// Close disconnects from the broker.
func (b *Bridge) Close() error {
	return b.manager.Close()
}
