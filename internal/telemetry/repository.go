package telemetry

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"
)

// Repository defines the write surface used by the bridge and the read
// queries used by tests and reporting.
type Repository interface {
	// InsertMeasurements bulk-inserts measurement rows in one statement.
	// An empty slice is a no-op.
	InsertMeasurements(ctx context.Context, measurements []Measurement) error

	// InsertActuatorRecords bulk-inserts actuator-record rows in one
	// statement. An empty slice is a no-op.
	InsertActuatorRecords(ctx context.Context, records []ActuatorRecord) error

	// MeasurementsByAssociation lists measurements for one project-sensor
	// association, newest first.
	MeasurementsByAssociation(ctx context.Context, projectSensorID string) ([]Measurement, error)

	// ActuatorRecordsByAssociation lists records for one project-actuator
	// association, newest first.
	ActuatorRecordsByAssociation(ctx context.Context, projectActuatorID string) ([]ActuatorRecord, error)
}

// SQLiteRepository implements Repository using SQLite.
type SQLiteRepository struct {
	db *sql.DB
}

// NewSQLiteRepository creates a new SQLite-backed repository.
func NewSQLiteRepository(db *sql.DB) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

// InsertMeasurements bulk-inserts measurement rows in one statement.
func (r *SQLiteRepository) InsertMeasurements(ctx context.Context, measurements []Measurement) error {
	if len(measurements) == 0 {
		return nil
	}

	placeholders := make([]string, 0, len(measurements))
	args := make([]any, 0, len(measurements)*3)
	for _, m := range measurements {
		placeholders = append(placeholders, "(?, ?, ?)")
		args = append(args, m.ProjectSensorID, m.Value, m.RecordedAt.UTC().Format(time.RFC3339))
	}

	query := "INSERT INTO measurements (project_sensor_id, value, recorded_at) VALUES " +
		strings.Join(placeholders, ", ")

	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("inserting %d measurements: %w", len(measurements), err)
	}
	return nil
}

// InsertActuatorRecords bulk-inserts actuator-record rows in one statement.
func (r *SQLiteRepository) InsertActuatorRecords(ctx context.Context, records []ActuatorRecord) error {
	if len(records) == 0 {
		return nil
	}

	placeholders := make([]string, 0, len(records))
	args := make([]any, 0, len(records)*4)
	for _, rec := range records {
		placeholders = append(placeholders, "(?, ?, ?, ?)")
		args = append(args, rec.ProjectActuatorID, rec.Value, rec.RecordedAt.UTC().Format(time.RFC3339), rec.UserID)
	}

	query := "INSERT INTO actuator_records (project_actuator_id, value, recorded_at, user_id) VALUES " +
		strings.Join(placeholders, ", ")

	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("inserting %d actuator records: %w", len(records), err)
	}
	return nil
}

// MeasurementsByAssociation lists measurements for one association, newest first.
func (r *SQLiteRepository) MeasurementsByAssociation(ctx context.Context, projectSensorID string) ([]Measurement, error) {
	query := `
		SELECT id, project_sensor_id, value, recorded_at
		FROM measurements
		WHERE project_sensor_id = ?
		ORDER BY recorded_at DESC, id DESC`

	rows, err := r.db.QueryContext(ctx, query, projectSensorID)
	if err != nil {
		return nil, fmt.Errorf("querying measurements: %w", err)
	}
	defer rows.Close()

	var measurements []Measurement
	for rows.Next() {
		var m Measurement
		var recordedAt string
		if err := rows.Scan(&m.ID, &m.ProjectSensorID, &m.Value, &recordedAt); err != nil {
			return nil, fmt.Errorf("scanning measurement: %w", err)
		}
		m.RecordedAt, _ = time.Parse(time.RFC3339, recordedAt) //nolint:errcheck // Format is controlled
		measurements = append(measurements, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating measurements: %w", err)
	}
	return measurements, nil
}

// ActuatorRecordsByAssociation lists records for one association, newest first.
func (r *SQLiteRepository) ActuatorRecordsByAssociation(ctx context.Context, projectActuatorID string) ([]ActuatorRecord, error) {
	query := `
		SELECT id, project_actuator_id, value, recorded_at, user_id
		FROM actuator_records
		WHERE project_actuator_id = ?
		ORDER BY recorded_at DESC, id DESC`

	rows, err := r.db.QueryContext(ctx, query, projectActuatorID)
	if err != nil {
		return nil, fmt.Errorf("querying actuator records: %w", err)
	}
	defer rows.Close()

	var records []ActuatorRecord
	for rows.Next() {
		var rec ActuatorRecord
		var recordedAt string
		if err := rows.Scan(&rec.ID, &rec.ProjectActuatorID, &rec.Value, &recordedAt, &rec.UserID); err != nil {
			return nil, fmt.Errorf("scanning actuator record: %w", err)
		}
		rec.RecordedAt, _ = time.Parse(time.RFC3339, recordedAt) //nolint:errcheck // Format is controlled
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating actuator records: %w", err)
	}
	return records, nil
}
