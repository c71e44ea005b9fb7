// Package postgres implements the display repository using PostgreSQL
package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/lib/pq"

	"github.com/wrale/adsign/internal/adsignd/database"
	"github.com/wrale/adsign/internal/adsignd/display"
	"github.com/wrale/adsign/internal/adsignd/errors"
)

// Columns selects a full display row; scanDisplay reads them in this order
const Columns = `display_id, display_name, location, connection_token,
	COALESCE(password_hash, ''), COALESCE(assigned_admin, ''), last_seen,
	is_connected, status, resolution_width, resolution_height, configuration,
	device_info, COALESCE(current_loop::text, ''), COALESCE(current_ad, ''),
	created_at, updated_at, version`

// Repository implements the display.Repository interface using PostgreSQL
type Repository struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewRepository creates a new PostgreSQL display repository
func NewRepository(db *sql.DB, logger *slog.Logger) *Repository {
	return &Repository{db: db, logger: logger}
}

var _ display.Repository = (*Repository)(nil)

type rowScanner interface {
	Scan(dest ...any) error
}

// ScanDisplay reads a row selected with Columns
func ScanDisplay(row rowScanner) (*display.Display, error) {
	var d display.Display
	var lastSeen sql.NullTime
	var configuration, deviceInfo []byte

	err := row.Scan(
		&d.DisplayID,
		&d.Name,
		&d.Location,
		&d.ConnectionToken,
		&d.PasswordHash,
		&d.AssignedAdmin,
		&lastSeen,
		&d.IsConnected,
		&d.Status,
		&d.Resolution.Width,
		&d.Resolution.Height,
		&configuration,
		&deviceInfo,
		&d.CurrentLoop,
		&d.CurrentAd,
		&d.CreatedAt,
		&d.UpdatedAt,
		&d.Version,
	)
	if err != nil {
		return nil, err
	}

	if lastSeen.Valid {
		t := lastSeen.Time
		d.LastSeen = &t
	}
	d.Configuration = display.DefaultConfiguration()
	if err := json.Unmarshal(configuration, &d.Configuration); err != nil {
		return nil, fmt.Errorf("error unmarshaling configuration: %w", err)
	}
	d.DeviceInfo = map[string]string{}
	if err := json.Unmarshal(deviceInfo, &d.DeviceInfo); err != nil {
		return nil, fmt.Errorf("error unmarshaling device info: %w", err)
	}
	return &d, nil
}

// Create inserts a new display
func (r *Repository) Create(ctx context.Context, d *display.Display) error {
	const op = "DisplayRepository.Create"

	configuration, err := json.Marshal(d.Configuration)
	if err != nil {
		return fmt.Errorf("error marshaling configuration: %w", err)
	}
	deviceInfo, err := json.Marshal(d.DeviceInfo)
	if err != nil {
		return fmt.Errorf("error marshaling device info: %w", err)
	}

	_, err = r.db.ExecContext(ctx, `
		INSERT INTO displays (
			display_id, display_name, location, connection_token, password_hash,
			assigned_admin, last_seen, is_connected, status, resolution_width,
			resolution_height, configuration, device_info, current_loop, current_ad,
			created_at, updated_at, version
		) VALUES (
			$1, $2, $3, $4, NULLIF($5, ''),
			NULLIF($6, ''), $7, $8, $9, $10,
			$11, $12, $13, NULLIF($14, '')::uuid, NULLIF($15, ''),
			$16, $17, $18
		)
	`,
		d.DisplayID,
		d.Name,
		d.Location,
		d.ConnectionToken,
		d.PasswordHash,
		d.AssignedAdmin,
		d.LastSeen,
		d.IsConnected,
		d.Status,
		d.Resolution.Width,
		d.Resolution.Height,
		configuration,
		deviceInfo,
		d.CurrentLoop,
		d.CurrentAd,
		d.CreatedAt,
		d.UpdatedAt,
		d.Version,
	)
	if err != nil {
		r.logger.Error("failed to insert display",
			"error", err,
			"displayID", d.DisplayID,
			"operation", op,
		)
		return database.MapError(err, op)
	}
	return nil
}

// Save writes admin-managed fields when the version matches. Liveness
// columns belong to RecordHeartbeat; status is only written when entering
// or leaving inactive.
func (r *Repository) Save(ctx context.Context, d *display.Display) error {
	const op = "DisplayRepository.Save"

	configuration, err := json.Marshal(d.Configuration)
	if err != nil {
		return fmt.Errorf("error marshaling configuration: %w", err)
	}

	err = database.RunInTx(ctx, r.db, nil, func(tx *database.Tx) error {
		row := tx.QueryRowContext(ctx, `
			UPDATE displays
			SET display_name = $1,
				location = $2,
				password_hash = NULLIF($3, ''),
				assigned_admin = NULLIF($4, ''),
				resolution_width = $5,
				resolution_height = $6,
				configuration = $7,
				current_loop = NULLIF($8, '')::uuid,
				status = CASE WHEN $9 = 'inactive' OR status = 'inactive' THEN $9 ELSE status END,
				is_connected = CASE WHEN $9 = 'inactive' THEN FALSE ELSE is_connected END,
				updated_at = $10,
				version = version + 1
			WHERE display_id = $11
			  AND version = $12
			RETURNING `+Columns,
			d.Name,
			d.Location,
			d.PasswordHash,
			d.AssignedAdmin,
			d.Resolution.Width,
			d.Resolution.Height,
			configuration,
			d.CurrentLoop,
			string(d.Status),
			d.UpdatedAt,
			d.DisplayID,
			d.Version,
		)
		saved, err := ScanDisplay(row)
		if err == sql.ErrNoRows {
			return r.missingOrStale(ctx, tx, op, d.DisplayID)
		}
		if err != nil {
			return err
		}
		*d = *saved
		return nil
	})
	if err != nil {
		if !errors.IsVersionMismatch(err) {
			r.logger.Error("failed to save display",
				"error", err,
				"displayID", d.DisplayID,
				"operation", op,
			)
		}
		return database.MapError(err, op)
	}
	return nil
}

// missingOrStale explains why a versioned write touched no rows
func (r *Repository) missingOrStale(ctx context.Context, tx *database.Tx, op, displayID string) error {
	var exists bool
	if err := tx.QueryRowContext(ctx,
		`SELECT EXISTS (SELECT 1 FROM displays WHERE display_id = $1)`, displayID,
	).Scan(&exists); err != nil {
		return err
	}
	if !exists {
		return errors.NotFound(op, "display not found")
	}
	r.logger.Warn("version mismatch",
		"displayID", displayID,
		"operation", op,
	)
	return errors.NewError("VERSION_CONFLICT", "display was modified", op, errors.ErrVersionMismatch)
}

// FindByID retrieves a display by its display id
func (r *Repository) FindByID(ctx context.Context, displayID string) (*display.Display, error) {
	const op = "DisplayRepository.FindByID"

	d, err := ScanDisplay(r.db.QueryRowContext(ctx,
		`SELECT `+Columns+` FROM displays WHERE display_id = $1`, displayID))
	if err != nil {
		if err != sql.ErrNoRows {
			r.logger.Error("failed to find display",
				"error", err,
				"displayID", displayID,
				"operation", op,
			)
		}
		return nil, database.MapError(err, op)
	}
	return d, nil
}

// FindByToken retrieves a display by its connection token
func (r *Repository) FindByToken(ctx context.Context, token string) (*display.Display, error) {
	const op = "DisplayRepository.FindByToken"

	d, err := ScanDisplay(r.db.QueryRowContext(ctx,
		`SELECT `+Columns+` FROM displays WHERE connection_token = $1`, token))
	if err != nil {
		if err != sql.ErrNoRows {
			r.logger.Error("failed to find display by token",
				"error", err,
				"operation", op,
			)
		}
		return nil, database.MapError(err, op)
	}
	return d, nil
}

// List retrieves displays matching the filter, ordered by display id
func (r *Repository) List(ctx context.Context, filter display.Filter) ([]*display.Display, error) {
	const op = "DisplayRepository.List"

	var conditions []string
	var args []any

	if filter.AssignedAdmin != "" {
		args = append(args, filter.AssignedAdmin)
		conditions = append(conditions, fmt.Sprintf("assigned_admin = $%d", len(args)))
	}
	if filter.Unassigned {
		conditions = append(conditions, "assigned_admin IS NULL")
	}
	if len(filter.Statuses) > 0 {
		statuses := make([]string, len(filter.Statuses))
		for i, s := range filter.Statuses {
			statuses[i] = string(s)
		}
		args = append(args, pq.Array(statuses))
		conditions = append(conditions, fmt.Sprintf("status = ANY($%d)", len(args)))
	}
	if filter.CurrentLoop != "" {
		args = append(args, filter.CurrentLoop)
		conditions = append(conditions, fmt.Sprintf("current_loop::text = $%d", len(args)))
	}

	query := `SELECT ` + Columns + ` FROM displays`
	if len(conditions) > 0 {
		query += " WHERE " + strings.Join(conditions, " AND ")
	}
	query += " ORDER BY display_id"

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		r.logger.Error("failed to list displays",
			"error", err,
			"operation", op,
		)
		return nil, database.MapError(err, op)
	}
	defer rows.Close()

	var displays []*display.Display
	for rows.Next() {
		d, err := ScanDisplay(rows)
		if err != nil {
			return nil, database.MapError(err, op)
		}
		displays = append(displays, d)
	}
	if err := rows.Err(); err != nil {
		return nil, database.MapError(err, op)
	}
	return displays, nil
}

// RecordHeartbeat updates liveness columns in a single statement. The stored
// inactive status is kept whatever the device reports.
func (r *Repository) RecordHeartbeat(ctx context.Context, token string, reported display.Status, currentAd string, at time.Time) (*display.Display, error) {
	const op = "DisplayRepository.RecordHeartbeat"

	if reported == "" || reported == display.StatusInactive {
		reported = display.StatusOnline
	}

	d, err := ScanDisplay(r.db.QueryRowContext(ctx, `
		UPDATE displays
		SET last_seen = $1,
			is_connected = TRUE,
			status = CASE WHEN status = 'inactive' THEN status ELSE $2 END,
			current_ad = COALESCE(NULLIF($3, ''), current_ad),
			updated_at = $1
		WHERE connection_token = $4
		RETURNING `+Columns,
		at,
		string(reported),
		currentAd,
		token,
	))
	if err != nil {
		if err != sql.ErrNoRows {
			r.logger.Error("failed to record heartbeat",
				"error", err,
				"operation", op,
			)
		}
		return nil, database.MapError(err, op)
	}
	return d, nil
}

// Delete removes a display when its version still matches
func (r *Repository) Delete(ctx context.Context, displayID string, version int) error {
	const op = "DisplayRepository.Delete"

	err := database.RunInTx(ctx, r.db, nil, func(tx *database.Tx) error {
		result, err := tx.ExecContext(ctx,
			`DELETE FROM displays WHERE display_id = $1 AND version = $2`, displayID, version)
		if err != nil {
			return err
		}
		rows, err := result.RowsAffected()
		if err != nil {
			return err
		}
		if rows == 0 {
			return r.missingOrStale(ctx, tx, op, displayID)
		}
		return nil
	})
	if err != nil {
		return database.MapError(err, op)
	}

	r.logger.Info("display deleted",
		"displayID", displayID,
		"operation", op,
	)
	return nil
}
