package bridge

import (
	"context"
	"errors"
	"reflect"
	"testing"
)

func newTestSynchronizer(t *testing.T, client *fakeClient, cat *fakeCatalog) (*Synchronizer, *Manager) {
	t.Helper()
	manager := newTestManager(client)
	if err := manager.Initialize(context.Background()); err != nil {
		t.Fatalf("Initialize() error = %v", err)
	}
	handler := func(topic string, payload []byte) error { return nil }
	return NewSynchronizer(manager, cat, handler, testLogger()), manager
}

func TestSynchronizerSubscribeActiveSensors(t *testing.T) {
	client := newFakeClient()
	cat := newFakeCatalog()
	cat.topics = []string{"plant/ph", "plant/temp", "plant/ec"}

	sync, _ := newTestSynchronizer(t, client, cat)

	if err := sync.SubscribeActiveSensors(context.Background()); err != nil {
		t.Fatalf("SubscribeActiveSensors() error = %v", err)
	}

	want := []string{"plant/ec", "plant/ph", "plant/temp"}
	if got := sync.Topics(); !reflect.DeepEqual(got, want) {
		t.Errorf("Topics() = %v, want %v", got, want)
	}
	if got := len(client.subscribedTopics()); got != 3 {
		t.Errorf("client has %d subscriptions, want 3", got)
	}
}

func TestSynchronizerSubscribeSkipsExisting(t *testing.T) {
	client := newFakeClient()
	cat := newFakeCatalog()
	cat.topics = []string{"plant/ph"}

	sync, _ := newTestSynchronizer(t, client, cat)

	if err := sync.SubscribeActiveSensors(context.Background()); err != nil {
		t.Fatalf("first sync error = %v", err)
	}
	if err := sync.SubscribeActiveSensors(context.Background()); err != nil {
		t.Fatalf("second sync error = %v", err)
	}

	if got := len(sync.Topics()); got != 1 {
		t.Errorf("tracked topics = %d, want 1", got)
	}
}

func TestSynchronizerResubscribesLostTopic(t *testing.T) {
	client := newFakeClient()
	cat := newFakeCatalog()
	cat.topics = []string{"plant/ph", "plant/temp"}

	sync, _ := newTestSynchronizer(t, client, cat)
	if err := sync.SubscribeActiveSensors(context.Background()); err != nil {
		t.Fatalf("initial sync error = %v", err)
	}

	// The transport failed to restore one subscription on reconnect and
	// dropped it; the topic is still tracked by the synchronizer.
	client.dropSubscription("plant/ph")

	if err := sync.SubscribeActiveSensors(context.Background()); err != nil {
		t.Fatalf("resync error = %v", err)
	}

	if !client.HasSubscription("plant/ph") {
		t.Error("expected lost topic to be re-subscribed, not skipped")
	}
	if got := len(client.subscribedTopics()); got != 2 {
		t.Errorf("client has %d subscriptions, want 2", got)
	}
}

func TestSynchronizerSubscribeContinuesPastFailures(t *testing.T) {
	client := newFakeClient()
	client.subscribeErr = errors.New("broker refused")
	cat := newFakeCatalog()
	cat.topics = []string{"plant/ph", "plant/temp"}

	sync, _ := newTestSynchronizer(t, client, cat)

	if err := sync.SubscribeActiveSensors(context.Background()); err != nil {
		t.Fatalf("SubscribeActiveSensors() error = %v", err)
	}

	// Nothing tracked because every subscribe failed, but no error
	// surfaced either: failures are per-topic.
	if got := len(sync.Topics()); got != 0 {
		t.Errorf("tracked topics = %d, want 0", got)
	}
}

func TestSynchronizerSubscribeNotConnected(t *testing.T) {
	client := newFakeClient()
	client.setConnected(false)
	cat := newFakeCatalog()
	cat.topics = []string{"plant/ph"}

	sync, _ := newTestSynchronizer(t, client, cat)

	if err := sync.SubscribeActiveSensors(context.Background()); !errors.Is(err, ErrNotConnected) {
		t.Errorf("SubscribeActiveSensors() error = %v, want ErrNotConnected", err)
	}
}

func TestSynchronizerRefreshRebuildsFromCatalog(t *testing.T) {
	client := newFakeClient()
	cat := newFakeCatalog()
	cat.topics = []string{"plant/ph", "plant/temp"}

	sync, _ := newTestSynchronizer(t, client, cat)
	if err := sync.SubscribeActiveSensors(context.Background()); err != nil {
		t.Fatalf("initial sync error = %v", err)
	}

	// A sensor was deactivated and another added.
	cat.topics = []string{"plant/temp", "plant/co2"}

	if err := sync.Refresh(context.Background()); err != nil {
		t.Fatalf("Refresh() error = %v", err)
	}

	want := []string{"plant/co2", "plant/temp"}
	if got := sync.Topics(); !reflect.DeepEqual(got, want) {
		t.Errorf("Topics() after refresh = %v, want %v", got, want)
	}
	if got := len(client.unsubscribed); got != 2 {
		t.Errorf("unsubscribed %d topics, want 2", got)
	}
}

func TestSynchronizerRefreshNotConnected(t *testing.T) {
	client := newFakeClient()
	cat := newFakeCatalog()
	cat.topics = []string{"plant/ph"}

	sync, _ := newTestSynchronizer(t, client, cat)
	if err := sync.SubscribeActiveSensors(context.Background()); err != nil {
		t.Fatalf("initial sync error = %v", err)
	}

	client.setConnected(false)

	// Refresh while disconnected is a silent no-op.
	if err := sync.Refresh(context.Background()); err != nil {
		t.Errorf("Refresh() while disconnected error = %v, want nil", err)
	}
	if got := len(client.unsubscribed); got != 0 {
		t.Errorf("unsubscribed %d topics while disconnected, want 0", got)
	}
}
