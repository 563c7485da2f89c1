package device

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
)

// Repository defines the interface for descriptor persistence.
// This abstraction allows for different implementations (SQLite, mock, etc.)
// and enables unit testing without database dependencies.
type Repository interface {
	// GetByID retrieves a descriptor by its child id.
	// Returns ErrDeviceNotFound if the device does not exist.
	GetByID(ctx context.Context, id string) (*Device, error)

	// List retrieves all descriptors ordered by friendly name.
	List(ctx context.Context) ([]Device, error)

	// Upsert inserts a descriptor or replaces the stored one.
	Upsert(ctx context.Context, device *Device) error

	// Delete removes a descriptor by id.
	// Returns ErrDeviceNotFound if the device does not exist.
	Delete(ctx context.Context, id string) error
}

// SQLiteRepository implements Repository using SQLite.
// Embedded states are not persisted; only the descriptor is cached.
type SQLiteRepository struct {
	db *sql.DB
}

// NewSQLiteRepository creates a new SQLite-backed repository.
// The db parameter should be an open SQLite connection.
func NewSQLiteRepository(db *sql.DB) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

const deviceColumns = `id, device_id, friendly_name, room_name, device_class,
	model, manufacturer, type_id, functions`

// GetByID retrieves a descriptor by its child id.
func (r *SQLiteRepository) GetByID(ctx context.Context, id string) (*Device, error) {
	row := r.db.QueryRowContext(ctx, "SELECT "+deviceColumns+" FROM devices WHERE id = ?", id)
	d, err := scanDevice(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrDeviceNotFound
		}
		return nil, fmt.Errorf("querying device: %w", err)
	}
	return d, nil
}

// List retrieves all descriptors ordered by friendly name.
func (r *SQLiteRepository) List(ctx context.Context) ([]Device, error) {
	rows, err := r.db.QueryContext(ctx, "SELECT "+deviceColumns+" FROM devices ORDER BY friendly_name, id")
	if err != nil {
		return nil, fmt.Errorf("querying devices: %w", err)
	}
	defer rows.Close()

	var devices []Device
	for rows.Next() {
		d, err := scanDevice(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning device: %w", err)
		}
		devices = append(devices, *d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating devices: %w", err)
	}
	return devices, nil
}

// Upsert inserts a descriptor or replaces the stored one.
func (r *SQLiteRepository) Upsert(ctx context.Context, d *Device) error {
	if d == nil || d.ID == "" {
		return fmt.Errorf("%w: id is required", ErrInvalidDevice)
	}

	functions := d.Functions
	if functions == nil {
		functions = []Function{}
	}
	functionsJSON, err := json.Marshal(functions)
	if err != nil {
		return fmt.Errorf("marshalling functions: %w", err)
	}

	_, err = r.db.ExecContext(ctx, `
		INSERT INTO devices (`+deviceColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			device_id = excluded.device_id,
			friendly_name = excluded.friendly_name,
			room_name = excluded.room_name,
			device_class = excluded.device_class,
			model = excluded.model,
			manufacturer = excluded.manufacturer,
			type_id = excluded.type_id,
			functions = excluded.functions,
			updated_at = strftime('%Y-%m-%dT%H:%M:%SZ', 'now')`,
		d.ID, d.DeviceID, d.FriendlyName, d.RoomName, d.DeviceClass,
		d.Model, d.Manufacturer, d.TypeID, string(functionsJSON),
	)
	if err != nil {
		return fmt.Errorf("upserting device: %w", err)
	}
	return nil
}

// Delete removes a descriptor by id.
func (r *SQLiteRepository) Delete(ctx context.Context, id string) error {
	result, err := r.db.ExecContext(ctx, "DELETE FROM devices WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("deleting device: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("checking rows affected: %w", err)
	}
	if n == 0 {
		return ErrDeviceNotFound
	}
	return nil
}

// rowScanner is satisfied by *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanDevice(row rowScanner) (*Device, error) {
	var d Device
	var functionsJSON string
	if err := row.Scan(
		&d.ID, &d.DeviceID, &d.FriendlyName, &d.RoomName, &d.DeviceClass,
		&d.Model, &d.Manufacturer, &d.TypeID, &functionsJSON,
	); err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(functionsJSON), &d.Functions); err != nil {
		return nil, fmt.Errorf("unmarshalling functions: %w", err)
	}
	return &d, nil
}
