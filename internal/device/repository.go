package device

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// Repository persists devices. The Registry is the only caller.
type Repository interface {
	// List returns all stored devices.
	List(ctx context.Context) ([]Device, error)

	// Upsert inserts a device or replaces the one with the same id.
	Upsert(ctx context.Context, d *Device) error

	// Delete removes a device. Returns ErrDeviceNotFound if absent.
	Delete(ctx context.Context, id string) error

	// UpdateHealth writes only the health fields.
	UpdateHealth(ctx context.Context, id string, status HealthStatus, failures int, lastResponse *time.Time) error
}

// SQLiteRepository implements Repository on the devices table.
type SQLiteRepository struct {
	db *sql.DB
}

// NewSQLiteRepository creates a repository over an open, migrated database.
func NewSQLiteRepository(db *sql.DB) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

const deviceColumns = `id, name, category, zone, transport, address, parameters,
	status, last_response, consecutive_failures, created_at, updated_at`

// List returns all devices ordered by id.
func (r *SQLiteRepository) List(ctx context.Context) ([]Device, error) {
	rows, err := r.db.QueryContext(ctx, "SELECT "+deviceColumns+" FROM devices ORDER BY id")
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

// GetByID returns a single device or ErrDeviceNotFound.
func (r *SQLiteRepository) GetByID(ctx context.Context, id string) (*Device, error) {
	row := r.db.QueryRowContext(ctx, "SELECT "+deviceColumns+" FROM devices WHERE id = ?", id)
	d, err := scanDevice(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrDeviceNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("querying device by id: %w", err)
	}
	return d, nil
}

// Upsert inserts or replaces a device row.
func (r *SQLiteRepository) Upsert(ctx context.Context, d *Device) error {
	params, err := json.Marshal(d.Parameters)
	if err != nil {
		return fmt.Errorf("marshalling parameters: %w", err)
	}

	_, err = r.db.ExecContext(ctx, `
		INSERT INTO devices (`+deviceColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			category = excluded.category,
			zone = excluded.zone,
			transport = excluded.transport,
			address = excluded.address,
			parameters = excluded.parameters,
			status = excluded.status,
			last_response = excluded.last_response,
			consecutive_failures = excluded.consecutive_failures,
			updated_at = excluded.updated_at`,
		d.ID, d.Name, string(d.Category), d.Zone, string(d.Transport), d.Address, string(params),
		string(d.Status), formatTime(d.LastResponse), d.ConsecutiveFailures,
		d.CreatedAt.UTC().Format(time.RFC3339Nano), d.UpdatedAt.UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("upserting device: %w", err)
	}
	return nil
}

// Delete removes a device row.
func (r *SQLiteRepository) Delete(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, "DELETE FROM devices WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("deleting device: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("checking rows affected: %w", err)
	}
	if n == 0 {
		return ErrDeviceNotFound
	}
	return nil
}

// UpdateHealth writes status, failure counter and last response.
func (r *SQLiteRepository) UpdateHealth(ctx context.Context, id string, status HealthStatus, failures int, lastResponse *time.Time) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE devices
		SET status = ?, consecutive_failures = ?, last_response = ?, updated_at = ?
		WHERE id = ?`,
		string(status), failures, formatTime(lastResponse),
		time.Now().UTC().Format(time.RFC3339Nano), id,
	)
	if err != nil {
		return fmt.Errorf("updating device health: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("checking rows affected: %w", err)
	}
	if n == 0 {
		return ErrDeviceNotFound
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanDevice(s rowScanner) (*Device, error) {
	var (
		d            Device
		category     string
		transport    string
		status       string
		params       string
		lastResponse sql.NullString
		createdAt    string
		updatedAt    string
	)
	if err := s.Scan(&d.ID, &d.Name, &category, &d.Zone, &transport, &d.Address, &params,
		&status, &lastResponse, &d.ConsecutiveFailures, &createdAt, &updatedAt); err != nil {
		return nil, err
	}

	d.Category = Category(category)
	d.Transport = Transport(transport)
	d.Status = HealthStatus(status)
	if err := json.Unmarshal([]byte(params), &d.Parameters); err != nil {
		return nil, fmt.Errorf("unmarshalling parameters for %s: %w", d.ID, err)
	}
	if lastResponse.Valid {
		if t, err := time.Parse(time.RFC3339Nano, lastResponse.String); err == nil {
			d.LastResponse = &t
		}
	}
	d.CreatedAt, _ = time.Parse(time.RFC3339Nano, createdAt) //nolint:errcheck // written by Upsert
	d.UpdatedAt, _ = time.Parse(time.RFC3339Nano, updatedAt) //nolint:errcheck // written by Upsert
	return &d, nil
}

func formatTime(t *time.Time) sql.NullString {
	if t == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: t.UTC().Format(time.RFC3339Nano), Valid: true}
}
