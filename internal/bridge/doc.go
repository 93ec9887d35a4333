// Package bridge is the core of telebridge: it connects the MQTT broker
// to the relational catalog and telemetry store.
//
// Four components cooperate:
//
//   - Manager owns the single long-lived broker connection. Initialize is
//     idempotent, connection loss is handled by the transport's reconnect
//     loop, and WaitForConnection lets publish-time callers trigger lazy
//     startup.
//   - Synchronizer keeps the broker's subscription set equal to the
//     distinct data sources of active sensors. It maintains its own
//     authoritative record of subscribed topics and rebuilds the set from
//     scratch on every refresh.
//   - Dispatcher turns one inbound message into zero or more persisted
//     measurements: parse, resolve active sensors, fan out to active
//     project associations, persist one row per association.
//   - Publisher validates an actuator command, publishes it with bounded
//     retries, and records one actuator record per active project
//     association - but only after the publish succeeded.
//
// # Concurrency
//
// The broker connection is the only shared mutable resource. The paho
// client serialises publish/subscribe calls internally; the Manager's own
// state flags are guarded by its mutex. Each inbound delivery runs in its
// own goroutine (paho's delivery model) and touches no shared state
// outside the repositories.
package bridge
