package bridge

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/nvidal9/telebridge/internal/infrastructure/config"
	"github.com/nvidal9/telebridge/internal/infrastructure/logging"
	"github.com/nvidal9/telebridge/internal/infrastructure/mqtt"
)

// Client is the broker surface the bridge consumes.
// Satisfied by *mqtt.Client; tests substitute a fake.
type Client interface {
	Publish(topic string, payload []byte, qos byte, retained bool) error
	Subscribe(topic string, qos byte, handler mqtt.MessageHandler) error
	Unsubscribe(topic string) error
	HasSubscription(topic string) bool
	IsConnected() bool
	SetOnConnect(callback func())
	SetOnDisconnect(callback func(err error))
	Close() error
}

// ConnectFunc opens a broker connection. The default wraps mqtt.Connect;
// tests substitute a factory returning a fake client.
type ConnectFunc func(cfg config.MQTTConfig, statusTopic string) (Client, error)

// Manager owns the single long-lived broker connection for the process.
//
// The connection is created at most once per process lifetime (the
// transport's reconnect loop handles drops afterwards). Initialize is
// idempotent and safe to call concurrently; WaitForConnection lets a
// publish-time caller opportunistically trigger lazy startup.
type Manager struct {
	cfg         config.MQTTConfig
	statusTopic string
	connect     ConnectFunc
	logger      *logging.Logger

	mu           sync.Mutex
	client       Client
	initialized  bool
	initializing bool
	waiters      []chan error

	// onConnect is invoked after every successful (re)connect, outside
	// the manager's lock. The bridge wires subscription synchronisation
	// through it.
	onConnect func()
}

// NewManager creates a connection manager. The connection itself is not
// opened until Initialize or WaitForConnection is called.
func NewManager(cfg config.MQTTConfig, statusTopic string, logger *logging.Logger) *Manager {
	return &Manager{
		cfg:         cfg,
		statusTopic: statusTopic,
		logger:      logger,
		connect: func(cfg config.MQTTConfig, statusTopic string) (Client, error) {
			client, err := mqtt.Connect(cfg, statusTopic)
			if err != nil {
				return nil, err
			}
			client.SetLogger(logger)
			return client, nil
		},
	}
}

// SetConnectFunc replaces the connection factory. For tests.
func (m *Manager) SetConnectFunc(connect ConnectFunc) {
	m.mu.Lock()
	m.connect = connect
	m.mu.Unlock()
}

// SetOnConnect sets the callback invoked after every successful
// (re)connect. Must be set before Initialize.
func (m *Manager) SetOnConnect(callback func()) {
	m.mu.Lock()
	m.onConnect = callback
	m.mu.Unlock()
}

// Initialize opens the broker connection if it is not already open.
//
// If the manager is already initialized, or another initialization is in
// flight, it returns immediately without error. On connect failure the
// initializing flag is cleared so a later call can retry; the transport
// is not left retrying in the background for a failed initial connect.
func (m *Manager) Initialize(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}

	m.mu.Lock()
	if m.initialized || m.initializing {
		m.mu.Unlock()
		return nil
	}
	m.initializing = true
	connect := m.connect
	m.mu.Unlock()

	client, err := connect(m.cfg, m.statusTopic)
	if err != nil {
		err = fmt.Errorf("connecting to broker: %w", err)
		m.mu.Lock()
		m.initializing = false
		waiters := m.waiters
		m.waiters = nil
		m.mu.Unlock()
		// Wake waiters with the failure rather than leaving them to
		// sleep out their timeout.
		for _, w := range waiters {
			w <- err
		}
		m.logger.Error("broker connection failed", "error", err)
		return err
	}

	client.SetOnConnect(m.handleConnect)
	client.SetOnDisconnect(m.handleDisconnect)

	m.mu.Lock()
	m.client = client
	m.initialized = true
	m.initializing = false
	waiters := m.waiters
	m.waiters = nil
	onConnect := m.onConnect
	m.mu.Unlock()

	for _, w := range waiters {
		w <- nil
	}

	m.logger.Info("broker connected",
		"host", m.cfg.Broker.Host,
		"port", m.cfg.Broker.Port,
		"client_id", m.cfg.Broker.ClientID,
	)

	if onConnect != nil {
		onConnect()
	}

	return nil
}

// handleConnect runs on every transport-level reconnect.
func (m *Manager) handleConnect() {
	m.mu.Lock()
	m.initialized = true
	waiters := m.waiters
	m.waiters = nil
	onConnect := m.onConnect
	m.mu.Unlock()

	for _, w := range waiters {
		w <- nil
	}

	m.logger.Info("broker reconnected")

	if onConnect != nil {
		onConnect()
	}
}

// handleDisconnect runs when the connection is lost unexpectedly.
// The transport keeps retrying at its fixed interval; the manager only
// updates its state so waiters queue until the next connect.
func (m *Manager) handleDisconnect(err error) {
	m.mu.Lock()
	m.initialized = false
	m.mu.Unlock()

	m.logger.Warn("broker connection lost", "error", err)
}

// IsConnected reports whether a connection exists and its transport
// reports connected.
func (m *Manager) IsConnected() bool {
	m.mu.Lock()
	client := m.client
	m.mu.Unlock()

	return client != nil && client.IsConnected()
}

// Client returns the current connection, or nil if none exists yet.
func (m *Manager) Client() Client {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.client
}

// WaitForConnection blocks until the broker connection is up, the
// connection attempt fails, the timeout elapses, or ctx is cancelled.
//
// It returns immediately when already connected. If no connection exists
// yet and no initialization is in flight, it triggers Initialize in the
// background so that a publish-time caller can lazily start the bridge.
// A failed attempt wakes the waiter with the connect error instead of
// letting it sleep out the timeout.
func (m *Manager) WaitForConnection(ctx context.Context, timeout time.Duration) error {
	if m.IsConnected() {
		return nil
	}

	m.mu.Lock()
	w := make(chan error, 1)
	m.waiters = append(m.waiters, w)
	needInit := m.client == nil && !m.initializing
	m.mu.Unlock()

	// Re-check after registering the waiter: a connect may have landed
	// in between and already drained the waiter list.
	if m.IsConnected() {
		return nil
	}

	if needInit {
		go func() {
			if err := m.Initialize(context.WithoutCancel(ctx)); err != nil {
				m.logger.Warn("lazy broker initialization failed", "error", err)
			}
		}()
	}

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case err := <-w:
		if err != nil {
			return fmt.Errorf("waiting for broker connection: %w", err)
		}
		return nil
	case <-timer.C:
		return fmt.Errorf("%w: no connection after %v", ErrConnectionTimeout, timeout)
	case <-ctx.Done():
		return fmt.Errorf("waiting for broker connection: %w", ctx.Err())
	}
}

// Close disconnects from the broker. Safe to call when never initialized.
func (m *Manager) Close() error {
	m.mu.Lock()
	client := m.client
	m.client = nil
	m.initialized = false
	m.mu.Unlock()

	if client == nil {
		return nil
	}
	return client.Close()
}
