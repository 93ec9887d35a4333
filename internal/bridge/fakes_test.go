package bridge

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/nvidal9/telebridge/internal/catalog"
	"github.com/nvidal9/telebridge/internal/infrastructure/config"
	"github.com/nvidal9/telebridge/internal/infrastructure/logging"
	"github.com/nvidal9/telebridge/internal/infrastructure/mqtt"
	"github.com/nvidal9/telebridge/internal/telemetry"
)

// fakeClient implements Client with scriptable behavior.
type fakeClient struct {
	mu           sync.Mutex
	connected    bool
	publishErr   error
	subscribeErr error
	published    []publishedMsg
	subscribed   map[string]mqtt.MessageHandler
	unsubscribed []string
	onConnect    func()
	onDisconnect func(err error)
	closed       bool
}

type publishedMsg struct {
	topic   string
	payload []byte
	qos     byte
}

func newFakeClient() *fakeClient {
	return &fakeClient{
		connected:  true,
		subscribed: make(map[string]mqtt.MessageHandler),
	}
}

func (f *fakeClient) Publish(topic string, payload []byte, qos byte, retained bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.publishErr != nil {
		return f.publishErr
	}
	f.published = append(f.published, publishedMsg{topic: topic, payload: payload, qos: qos})
	return nil
}

func (f *fakeClient) Subscribe(topic string, qos byte, handler mqtt.MessageHandler) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.subscribeErr != nil {
		return f.subscribeErr
	}
	f.subscribed[topic] = handler
	return nil
}

func (f *fakeClient) Unsubscribe(topic string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.subscribed, topic)
	f.unsubscribed = append(f.unsubscribed, topic)
	return nil
}

func (f *fakeClient) HasSubscription(topic string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, ok := f.subscribed[topic]
	return ok
}

func (f *fakeClient) IsConnected() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.connected
}

func (f *fakeClient) SetOnConnect(callback func())          { f.onConnect = callback }
func (f *fakeClient) SetOnDisconnect(callback func(error)) { f.onDisconnect = callback }

func (f *fakeClient) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
	f.connected = false
	return nil
}

func (f *fakeClient) setConnected(connected bool) {
	f.mu.Lock()
	f.connected = connected
	f.mu.Unlock()
}

func (f *fakeClient) setPublishErr(err error) {
	f.mu.Lock()
	f.publishErr = err
	f.mu.Unlock()
}

func (f *fakeClient) publishCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.published)
}

func (f *fakeClient) lastPublished() (publishedMsg, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.published) == 0 {
		return publishedMsg{}, false
	}
	return f.published[len(f.published)-1], true
}

func (f *fakeClient) dropSubscription(topic string) {
	f.mu.Lock()
	delete(f.subscribed, topic)
	f.mu.Unlock()
}

func (f *fakeClient) subscribedTopics() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	topics := make([]string, 0, len(f.subscribed))
	for topic := range f.subscribed {
		topics = append(topics, topic)
	}
	return topics
}

// fakeCatalog implements catalog.Repository with fixed data.
type fakeCatalog struct {
	topics            []string
	topicsErr         error
	sensorsByTopic    map[string][]catalog.Sensor
	sensorAssocs      map[string][]catalog.Association
	actuators         map[string]*catalog.Actuator
	actuatorAssocs    map[string][]catalog.Association
	actuatorAssocsErr error
}

func newFakeCatalog() *fakeCatalog {
	return &fakeCatalog{
		sensorsByTopic: make(map[string][]catalog.Sensor),
		sensorAssocs:   make(map[string][]catalog.Association),
		actuators:      make(map[string]*catalog.Actuator),
		actuatorAssocs: make(map[string][]catalog.Association),
	}
}

func (f *fakeCatalog) ActiveSensorTopics(ctx context.Context) ([]string, error) {
	return f.topics, f.topicsErr
}

func (f *fakeCatalog) ActiveSensorsByTopic(ctx context.Context, topic string) ([]catalog.Sensor, error) {
	return f.sensorsByTopic[topic], nil
}

func (f *fakeCatalog) ActiveProjectSensors(ctx context.Context, sensorID string) ([]catalog.Association, error) {
	return f.sensorAssocs[sensorID], nil
}

func (f *fakeCatalog) ActuatorByID(ctx context.Context, id string) (*catalog.Actuator, error) {
	actuator, ok := f.actuators[id]
	if !ok {
		return nil, catalog.ErrActuatorNotFound
	}
	return actuator, nil
}

func (f *fakeCatalog) ActiveProjectActuators(ctx context.Context, actuatorID string) ([]catalog.Association, error) {
	if f.actuatorAssocsErr != nil {
		return nil, f.actuatorAssocsErr
	}
	return f.actuatorAssocs[actuatorID], nil
}

func (f *fakeCatalog) CreateProject(ctx context.Context, project *catalog.Project) error { return nil }
func (f *fakeCatalog) CreateSensor(ctx context.Context, sensor *catalog.Sensor) error   { return nil }
func (f *fakeCatalog) CreateActuator(ctx context.Context, actuator *catalog.Actuator) error {
	return nil
}
func (f *fakeCatalog) LinkSensor(ctx context.Context, projectID, sensorID string) (string, error) {
	return "", nil
}
func (f *fakeCatalog) LinkActuator(ctx context.Context, projectID, actuatorID string) (string, error) {
	return "", nil
}
func (f *fakeCatalog) SetSensorActive(ctx context.Context, id string, active bool) error { return nil }
func (f *fakeCatalog) SetProjectActive(ctx context.Context, id string, active bool) error {
	return nil
}

// fakeTelemetry implements telemetry.Repository, capturing inserts.
type fakeTelemetry struct {
	mu           sync.Mutex
	measurements []telemetry.Measurement
	records      []telemetry.ActuatorRecord
	insertErr    error
}

func (f *fakeTelemetry) InsertMeasurements(ctx context.Context, measurements []telemetry.Measurement) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.insertErr != nil {
		return f.insertErr
	}
	f.measurements = append(f.measurements, measurements...)
	return nil
}

func (f *fakeTelemetry) InsertActuatorRecords(ctx context.Context, records []telemetry.ActuatorRecord) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.insertErr != nil {
		return f.insertErr
	}
	f.records = append(f.records, records...)
	return nil
}

func (f *fakeTelemetry) MeasurementsByAssociation(ctx context.Context, projectSensorID string) ([]telemetry.Measurement, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.measurements, nil
}

func (f *fakeTelemetry) ActuatorRecordsByAssociation(ctx context.Context, projectActuatorID string) ([]telemetry.ActuatorRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.records, nil
}

func (f *fakeTelemetry) measurementCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.measurements)
}

func (f *fakeTelemetry) recordCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.records)
}

// fakeMirror implements Mirror, counting writes.
type fakeMirror struct {
	mu       sync.Mutex
	readings int
	commands int
}

func (f *fakeMirror) WriteSensorReading(sensorID, topic string, value float64, at time.Time) {
	f.mu.Lock()
	f.readings++
	f.mu.Unlock()
}

func (f *fakeMirror) WriteCommandSent(actuatorID, topic string, value float64, at time.Time) {
	f.mu.Lock()
	f.commands++
	f.mu.Unlock()
}

// testBridgeConfig returns a bridge config with no real delays.
func testBridgeConfig() config.BridgeConfig {
	return config.BridgeConfig{
		PublishAttempts: 3,
		RetryDelay:      1,
		ConnectionWait:  1,
		StatusTopic:     "telebridge/system/status",
	}
}

// testLogger returns a logger that discards all output.
func testLogger() *logging.Logger {
	return &logging.Logger{Logger: slog.New(slog.NewTextHandler(io.Discard, nil))}
}

// newTestManager returns a manager whose connect factory hands back the
// given fake client.
func newTestManager(client *fakeClient) *Manager {
	m := NewManager(config.MQTTConfig{}, "telebridge/system/status", testLogger())
	m.SetConnectFunc(func(cfg config.MQTTConfig, statusTopic string) (Client, error) {
		return client, nil
	})
	return m
}
