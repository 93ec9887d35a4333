package telemetry

import (
	"context"
	"database/sql"
	"testing"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

// setupTestDB creates an in-memory SQLite database with the telemetry tables.
// Foreign keys are left off so tests can insert rows without seeding the
// full catalog.
func setupTestDB(t *testing.T) *sql.DB {
	t.Helper()

	db, err := sql.Open("sqlite3", ":memory:")
	if err != nil {
		t.Fatalf("failed to open test database: %v", err)
	}

	schema := `
		CREATE TABLE measurements (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			project_sensor_id TEXT NOT NULL,
			value REAL NOT NULL,
			recorded_at TEXT NOT NULL
		) STRICT;
		CREATE TABLE actuator_records (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			project_actuator_id TEXT NOT NULL,
			value REAL NOT NULL,
			recorded_at TEXT NOT NULL,
			user_id TEXT NOT NULL
		) STRICT;
	`

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		t.Fatalf("failed to create test schema: %v", err)
	}

	t.Cleanup(func() {
		db.Close()
	})

	return db
}

func TestInsertMeasurements(t *testing.T) {
	db := setupTestDB(t)
	repo := NewSQLiteRepository(db)
	ctx := context.Background()

	at := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	t.Run("bulk insert", func(t *testing.T) {
		batch := []Measurement{
			{ProjectSensorID: "ps-7", Value: 7.2, RecordedAt: at},
			{ProjectSensorID: "ps-8", Value: 7.2, RecordedAt: at},
		}
		if err := repo.InsertMeasurements(ctx, batch); err != nil {
			t.Fatalf("InsertMeasurements() error = %v", err)
		}

		got, err := repo.MeasurementsByAssociation(ctx, "ps-7")
		if err != nil {
			t.Fatalf("MeasurementsByAssociation() error = %v", err)
		}
		if len(got) != 1 {
			t.Fatalf("got %d measurements, want 1", len(got))
		}
		if got[0].Value != 7.2 {
			t.Errorf("value = %v, want 7.2", got[0].Value)
		}
		if !got[0].RecordedAt.Equal(at) {
			t.Errorf("recorded at = %v, want %v", got[0].RecordedAt, at)
		}
	})

	t.Run("empty slice is a no-op", func(t *testing.T) {
		if err := repo.InsertMeasurements(ctx, nil); err != nil {
			t.Errorf("InsertMeasurements(nil) error = %v", err)
		}
	})
}

func TestInsertActuatorRecords(t *testing.T) {
	db := setupTestDB(t)
	repo := NewSQLiteRepository(db)
	ctx := context.Background()

	at := time.Date(2024, 2, 1, 12, 30, 0, 0, time.UTC)

	records := []ActuatorRecord{
		{ProjectActuatorID: "pa-3", Value: 55, RecordedAt: at, UserID: "user-1"},
	}
	if err := repo.InsertActuatorRecords(ctx, records); err != nil {
		t.Fatalf("InsertActuatorRecords() error = %v", err)
	}

	got, err := repo.ActuatorRecordsByAssociation(ctx, "pa-3")
	if err != nil {
		t.Fatalf("ActuatorRecordsByAssociation() error = %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("got %d records, want 1", len(got))
	}
	if got[0].Value != 55 {
		t.Errorf("value = %v, want 55", got[0].Value)
	}
	if got[0].UserID != "user-1" {
		t.Errorf("user = %q, want user-1", got[0].UserID)
	}

	if err := repo.InsertActuatorRecords(ctx, nil); err != nil {
		t.Errorf("InsertActuatorRecords(nil) error = %v", err)
	}
}

func TestMeasurementsByAssociation_Ordering(t *testing.T) {
	db := setupTestDB(t)
	repo := NewSQLiteRepository(db)
	ctx := context.Background()

	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	for i := 0; i < 3; i++ {
		batch := []Measurement{
			{ProjectSensorID: "ps-1", Value: float64(i), RecordedAt: base.Add(time.Duration(i) * time.Minute)},
		}
		if err := repo.InsertMeasurements(ctx, batch); err != nil {
			t.Fatalf("InsertMeasurements() error = %v", err)
		}
	}

	got, err := repo.MeasurementsByAssociation(ctx, "ps-1")
	if err != nil {
		t.Fatalf("MeasurementsByAssociation() error = %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("got %d measurements, want 3", len(got))
	}
	// Newest first.
	if got[0].Value != 2 || got[2].Value != 0 {
		t.Errorf("ordering wrong: %v, %v, %v", got[0].Value, got[1].Value, got[2].Value)
	}
}
