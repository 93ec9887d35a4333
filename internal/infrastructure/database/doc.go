// Package database manages the SQLite store backing the telebridge catalog
// and telemetry tables.
//
// It provides:
//   - Connection management with WAL mode and busy timeout pragmas
//   - Foreign key enforcement (fan-out queries rely on valid associations)
//   - Embedded SQL migrations applied at startup
//   - Health checks for the /health endpoint
//
// SQLite supports a single writer, so the connection pool is capped at one
// connection. The inbound dispatcher and outbound publisher both write
// through this pool; the busy timeout absorbs short contention windows.
package database
