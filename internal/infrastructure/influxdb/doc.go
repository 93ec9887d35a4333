// Package influxdb provides an optional time-series mirror of ingested
// telemetry.
//
// The relational measurement and actuator-record rows in SQLite are the
// source of truth; this mirror exists for dashboards and trend queries
// where a time-series engine is the better fit.
//
// Writes are non-blocking and batched by the InfluxDB client. A failed
// mirror write never fails ingestion - errors surface through the
// SetOnError callback and are logged.
//
// The mirror is disabled by default (influxdb.enabled in config.yaml).
package influxdb
