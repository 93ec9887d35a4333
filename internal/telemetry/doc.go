// Package telemetry persists the immutable records the bridge produces:
// measurements from inbound messages and actuator records from outbound
// commands.
//
// Both row types reference an association (project_sensors or
// project_actuators), never the sensor/actuator or project directly.
// One inbound reading or outbound command fans out to one row per active
// project association.
//
// Inserts are batched per entity: one statement covers all of a sensor's
// associations for a given message. There is no cross-sensor transaction,
// so a failed insert for one sensor leaves sibling sensors' rows intact.
package telemetry
