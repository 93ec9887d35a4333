package catalog

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Repository defines the read surface the bridge consumes and the small
// write surface the external CRUD layer (and tests) use to manage rows.
// This abstraction allows for different implementations (SQLite, mock, etc.)
// and enables unit testing without database dependencies.
type Repository interface {
	// ActiveSensorTopics returns the distinct non-empty data sources of
	// active sensors. This is the authoritative input for subscription
	// synchronisation.
	ActiveSensorTopics(ctx context.Context) ([]string, error)

	// ActiveSensorsByTopic returns all active sensors whose data source
	// equals the given topic. Multiple sensors may share one topic.
	ActiveSensorsByTopic(ctx context.Context, topic string) ([]Sensor, error)

	// ActiveProjectSensors returns the sensor's associations whose parent
	// project is active, joined with the project name.
	ActiveProjectSensors(ctx context.Context, sensorID string) ([]Association, error)

	// ActuatorByID retrieves an actuator regardless of its active flag.
	// Returns ErrActuatorNotFound if it does not exist.
	ActuatorByID(ctx context.Context, id string) (*Actuator, error)

	// ActiveProjectActuators returns the actuator's associations whose
	// parent project is active, joined with the project name.
	ActiveProjectActuators(ctx context.Context, actuatorID string) ([]Association, error)

	// CreateProject inserts a project. An empty ID is generated.
	CreateProject(ctx context.Context, p *Project) error

	// CreateSensor inserts a sensor. An empty ID is generated.
	CreateSensor(ctx context.Context, s *Sensor) error

	// CreateActuator inserts an actuator. An empty ID is generated.
	CreateActuator(ctx context.Context, a *Actuator) error

	// LinkSensor associates a sensor with a project and returns the
	// association ID.
	LinkSensor(ctx context.Context, projectID, sensorID string) (string, error)

	// LinkActuator associates an actuator with a project and returns the
	// association ID.
	LinkActuator(ctx context.Context, projectID, actuatorID string) (string, error)

	// SetSensorActive toggles a sensor's active flag.
	SetSensorActive(ctx context.Context, id string, active bool) error

	// SetProjectActive toggles a project's active flag.
	SetProjectActive(ctx context.Context, id string, active bool) error
}

// SQLiteRepository implements Repository using SQLite.
type SQLiteRepository struct {
	db *sql.DB
}

// NewSQLiteRepository creates a new SQLite-backed repository.
// The db parameter should be an open SQLite connection.
func NewSQLiteRepository(db *sql.DB) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

// ActiveSensorTopics returns the distinct non-empty data sources of active sensors.
func (r *SQLiteRepository) ActiveSensorTopics(ctx context.Context) ([]string, error) {
	query := `
		SELECT DISTINCT data_source
		FROM sensors
		WHERE active = 1 AND data_source != ''
		ORDER BY data_source`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("querying active sensor topics: %w", err)
	}
	defer rows.Close()

	var topics []string
	for rows.Next() {
		var topic string
		if err := rows.Scan(&topic); err != nil {
			return nil, fmt.Errorf("scanning topic: %w", err)
		}
		topics = append(topics, topic)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating topics: %w", err)
	}
	return topics, nil
}

// ActiveSensorsByTopic returns all active sensors bound to the given topic.
func (r *SQLiteRepository) ActiveSensorsByTopic(ctx context.Context, topic string) ([]Sensor, error) {
	query := `
		SELECT id, name, data_source, min_value, max_value, active, created_at, updated_at
		FROM sensors
		WHERE data_source = ? AND active = 1
		ORDER BY name`

	rows, err := r.db.QueryContext(ctx, query, topic)
	if err != nil {
		return nil, fmt.Errorf("querying sensors by topic: %w", err)
	}
	defer rows.Close()

	var sensors []Sensor
	for rows.Next() {
		var s Sensor
		var active int
		var createdAt, updatedAt string
		if err := rows.Scan(&s.ID, &s.Name, &s.DataSource, &s.MinValue, &s.MaxValue, &active, &createdAt, &updatedAt); err != nil {
			return nil, fmt.Errorf("scanning sensor: %w", err)
		}
		s.Active = active == 1
		s.CreatedAt, _ = time.Parse(time.RFC3339, createdAt) //nolint:errcheck // Format is controlled
		s.UpdatedAt, _ = time.Parse(time.RFC3339, updatedAt) //nolint:errcheck // Format is controlled
		sensors = append(sensors, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating sensors: %w", err)
	}
	return sensors, nil
}

// ActiveProjectSensors returns active-project associations for a sensor.
func (r *SQLiteRepository) ActiveProjectSensors(ctx context.Context, sensorID string) ([]Association, error) {
	query := `
		SELECT ps.id, ps.project_id, p.name
		FROM project_sensors ps
		JOIN projects p ON p.id = ps.project_id
		WHERE ps.sensor_id = ? AND p.active = 1
		ORDER BY p.name`

	return r.queryAssociations(ctx, query, sensorID)
}

// ActuatorByID retrieves an actuator by its unique identifier.
func (r *SQLiteRepository) ActuatorByID(ctx context.Context, id string) (*Actuator, error) {
	query := `
		SELECT id, name, data_source, min_value, max_value, active, created_at, updated_at
		FROM actuators
		WHERE id = ?`

	var a Actuator
	var active int
	var createdAt, updatedAt string
	err := r.db.QueryRowContext(ctx, query, id).Scan(
		&a.ID, &a.Name, &a.DataSource, &a.MinValue, &a.MaxValue, &active, &createdAt, &updatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrActuatorNotFound
		}
		return nil, fmt.Errorf("querying actuator by id: %w", err)
	}

	a.Active = active == 1
	a.CreatedAt, _ = time.Parse(time.RFC3339, createdAt) //nolint:errcheck // Format is controlled
	a.UpdatedAt, _ = time.Parse(time.RFC3339, updatedAt) //nolint:errcheck // Format is controlled
	return &a, nil
}

// ActiveProjectActuators returns active-project associations for an actuator.
func (r *SQLiteRepository) ActiveProjectActuators(ctx context.Context, actuatorID string) ([]Association, error) {
	query := `
		SELECT pa.id, pa.project_id, p.name
		FROM project_actuators pa
		JOIN projects p ON p.id = pa.project_id
		WHERE pa.actuator_id = ? AND p.active = 1
		ORDER BY p.name`

	return r.queryAssociations(ctx, query, actuatorID)
}

// CreateProject inserts a project row.
func (r *SQLiteRepository) CreateProject(ctx context.Context, p *Project) error {
	if p.ID == "" {
		p.ID = uuid.NewString()
	}

	_, err := r.db.ExecContext(ctx,
		`INSERT INTO projects (id, name, active) VALUES (?, ?, ?)`,
		p.ID, p.Name, boolToInt(p.Active),
	)
	if err != nil {
		return fmt.Errorf("inserting project: %w", err)
	}
	return nil
}

// CreateSensor inserts a sensor row.
func (r *SQLiteRepository) CreateSensor(ctx context.Context, s *Sensor) error {
	if s.ID == "" {
		s.ID = uuid.NewString()
	}

	_, err := r.db.ExecContext(ctx,
		`INSERT INTO sensors (id, name, data_source, min_value, max_value, active)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		s.ID, s.Name, s.DataSource, s.MinValue, s.MaxValue, boolToInt(s.Active),
	)
	if err != nil {
		return fmt.Errorf("inserting sensor: %w", err)
	}
	return nil
}

// CreateActuator inserts an actuator row.
func (r *SQLiteRepository) CreateActuator(ctx context.Context, a *Actuator) error {
	if a.ID == "" {
		a.ID = uuid.NewString()
	}

	_, err := r.db.ExecContext(ctx,
		`INSERT INTO actuators (id, name, data_source, min_value, max_value, active)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		a.ID, a.Name, a.DataSource, a.MinValue, a.MaxValue, boolToInt(a.Active),
	)
	if err != nil {
		return fmt.Errorf("inserting actuator: %w", err)
	}
	return nil
}

// LinkSensor associates a sensor with a project.
func (r *SQLiteRepository) LinkSensor(ctx context.Context, projectID, sensorID string) (string, error) {
	id := uuid.NewString()
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO project_sensors (id, project_id, sensor_id) VALUES (?, ?, ?)`,
		id, projectID, sensorID,
	)
	if err != nil {
		return "", fmt.Errorf("linking sensor to project: %w", err)
	}
	return id, nil
}

// LinkActuator associates an actuator with a project.
func (r *SQLiteRepository) LinkActuator(ctx context.Context, projectID, actuatorID string) (string, error) {
	id := uuid.NewString()
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO project_actuators (id, project_id, actuator_id) VALUES (?, ?, ?)`,
		id, projectID, actuatorID,
	)
	if err != nil {
		return "", fmt.Errorf("linking actuator to project: %w", err)
	}
	return id, nil
}

// SetSensorActive toggles a sensor's active flag.
func (r *SQLiteRepository) SetSensorActive(ctx context.Context, id string, active bool) error {
	result, err := r.db.ExecContext(ctx,
		`UPDATE sensors
		 SET active = ?, updated_at = strftime('%Y-%m-%dT%H:%M:%SZ', 'now')
		 WHERE id = ?`,
		boolToInt(active), id,
	)
	if err != nil {
		return fmt.Errorf("updating sensor active flag: %w", err)
	}
	return checkRowFound(result, ErrSensorNotFound)
}

// SetProjectActive toggles a project's active flag.
func (r *SQLiteRepository) SetProjectActive(ctx context.Context, id string, active bool) error {
	result, err := r.db.ExecContext(ctx,
		`UPDATE projects
		 SET active = ?, updated_at = strftime('%Y-%m-%dT%H:%M:%SZ', 'now')
		 WHERE id = ?`,
		boolToInt(active), id,
	)
	if err != nil {
		return fmt.Errorf("updating project active flag: %w", err)
	}
	return checkRowFound(result, ErrProjectNotFound)
}

// queryAssociations runs an association query returning (id, project_id, project_name) rows.
func (r *SQLiteRepository) queryAssociations(ctx context.Context, query string, args ...any) ([]Association, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying associations: %w", err)
	}
	defer rows.Close()

	var assocs []Association
	for rows.Next() {
		var a Association
		if err := rows.Scan(&a.ID, &a.ProjectID, &a.ProjectName); err != nil {
			return nil, fmt.Errorf("scanning association: %w", err)
		}
		assocs = append(assocs, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating associations: %w", err)
	}
	return assocs, nil
}

// checkRowFound converts a zero-rows-affected result into notFoundErr.
func checkRowFound(result sql.Result, notFoundErr error) error {
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("checking rows affected: %w", err)
	}
	if affected == 0 {
		return notFoundErr
	}
	return nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
