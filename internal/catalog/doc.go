// Package catalog holds the configuration entities the bridge reads:
// projects, sensors, actuators, and their many-to-many associations.
//
// The bridge never caches catalog state beyond the subscribed topic set;
// every inbound message and outbound command reads the current rows, so
// edits made by the external CRUD layer take effect immediately.
//
// Association rows (project_sensors, project_actuators) are the anchor
// for telemetry: measurements and actuator records reference the
// association ID, which identifies both the entity and the project in
// one foreign key.
package catalog
