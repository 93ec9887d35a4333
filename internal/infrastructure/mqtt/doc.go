// Package mqtt provides MQTT client connectivity for telebridge.
//
// This package manages:
//   - Connection to the broker with auto-reconnect at a fixed interval
//   - Message publishing with QoS guarantees
//   - Topic subscriptions (topics are opaque sensor data-source strings)
//   - Last Will and Testament (LWT) for offline detection
//   - Connection health monitoring
//
// # Architecture
//
// telebridge is a client of an external broker; it never brokers messages
// itself. Sensors publish telemetry to their configured topics, and the
// bridge publishes actuator commands to theirs:
//
//	Sensors → MQTT Broker → telebridge → SQLite
//	telebridge → MQTT Broker → Actuators
//
// # Concurrency
//
// The paho client serialises wire writes internally, so Publish and
// Subscribe are safe to call from the inbound dispatcher and any number
// of concurrent command senders without extra locking.
//
// # Usage
//
//	client, err := mqtt.Connect(cfg.MQTT, cfg.Bridge.StatusTopic)
//	if err != nil {
//	    return err
//	}
//	defer client.Close()
//
//	err = client.Subscribe("lab/ph", 0,
//	    func(topic string, payload []byte) error {
//	        return dispatcher.HandleMessage(topic, payload)
//	    })
package mqtt
