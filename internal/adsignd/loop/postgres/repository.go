// Package postgres implements the loop repository using PostgreSQL
package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/wrale/adsign/internal/adsignd/database"
	"github.com/wrale/adsign/internal/adsignd/errors"
	"github.com/wrale/adsign/internal/adsignd/loop"
)

const columns = `id, display_id, owner_admin, name, rotation_type, items,
	total_duration, created_at, updated_at, version`

// Repository implements loop.Repository. Items are stored as a JSONB array.
type Repository struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewRepository creates a new PostgreSQL loop repository
func NewRepository(db *sql.DB, logger *slog.Logger) *Repository {
	return &Repository{db: db, logger: logger}
}

var _ loop.Repository = (*Repository)(nil)

type rowScanner interface {
	Scan(dest ...any) error
}

func scanLoop(row rowScanner) (*loop.Loop, error) {
	var l loop.Loop
	var items []byte

	err := row.Scan(
		&l.ID,
		&l.DisplayID,
		&l.OwnerAdmin,
		&l.Name,
		&l.RotationType,
		&items,
		&l.TotalDuration,
		&l.CreatedAt,
		&l.UpdatedAt,
		&l.Version,
	)
	if err != nil {
		return nil, err
	}
	l.Items = []loop.Item{}
	if err := json.Unmarshal(items, &l.Items); err != nil {
		return nil, fmt.Errorf("error unmarshaling loop items: %w", err)
	}
	return &l, nil
}

func marshalItems(items []loop.Item) ([]byte, error) {
	if items == nil {
		items = []loop.Item{}
	}
	b, err := json.Marshal(items)
	if err != nil {
		return nil, fmt.Errorf("error marshaling loop items: %w", err)
	}
	return b, nil
}

// Create inserts a loop
func (r *Repository) Create(ctx context.Context, l *loop.Loop) error {
	const op = "LoopRepository.Create"

	items, err := marshalItems(l.Items)
	if err != nil {
		return err
	}

	_, err = r.db.ExecContext(ctx, `
		INSERT INTO loops (
			id, display_id, owner_admin, name, rotation_type, items,
			total_duration, created_at, updated_at, version
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`,
		l.ID,
		l.DisplayID,
		l.OwnerAdmin,
		l.Name,
		l.RotationType,
		items,
		l.TotalDuration,
		l.CreatedAt,
		l.UpdatedAt,
		l.Version,
	)
	if err != nil {
		r.logger.Error("failed to insert loop",
			"error", err,
			"loopID", l.ID,
			"operation", op,
		)
		return database.MapError(err, op)
	}
	return nil
}

// Save persists changes when the version matches, then increments it
func (r *Repository) Save(ctx context.Context, l *loop.Loop) error {
	const op = "LoopRepository.Save"

	items, err := marshalItems(l.Items)
	if err != nil {
		return err
	}

	result, err := r.db.ExecContext(ctx, `
		UPDATE loops
		SET name = $1,
			rotation_type = $2,
			items = $3,
			total_duration = $4,
			updated_at = $5,
			version = version + 1
		WHERE id = $6
		  AND version = $7
	`,
		l.Name,
		l.RotationType,
		items,
		l.TotalDuration,
		l.UpdatedAt,
		l.ID,
		l.Version,
	)
	if err != nil {
		r.logger.Error("failed to update loop",
			"error", err,
			"loopID", l.ID,
			"operation", op,
		)
		return database.MapError(err, op)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return database.MapError(err, op)
	}
	if rows == 0 {
		if _, err := r.FindByID(ctx, l.ID); err != nil {
			return err
		}
		return errors.NewError("VERSION_CONFLICT", "loop was modified", op, errors.ErrVersionMismatch)
	}

	l.Version++
	return nil
}

// FindByID retrieves a loop
func (r *Repository) FindByID(ctx context.Context, id uuid.UUID) (*loop.Loop, error) {
	const op = "LoopRepository.FindByID"

	l, err := scanLoop(r.db.QueryRowContext(ctx, `SELECT `+columns+` FROM loops WHERE id = $1`, id))
	if err != nil {
		if err != sql.ErrNoRows {
			r.logger.Error("failed to find loop",
				"error", err,
				"loopID", id,
				"operation", op,
			)
		}
		return nil, database.MapError(err, op)
	}
	return l, nil
}

// ListByDisplay retrieves the loops built for a display, oldest first
func (r *Repository) ListByDisplay(ctx context.Context, displayID string) ([]*loop.Loop, error) {
	const op = "LoopRepository.ListByDisplay"

	rows, err := r.db.QueryContext(ctx,
		`SELECT `+columns+` FROM loops WHERE display_id = $1 ORDER BY created_at`, displayID)
	if err != nil {
		r.logger.Error("failed to list loops",
			"error", err,
			"displayID", displayID,
			"operation", op,
		)
		return nil, database.MapError(err, op)
	}
	defer rows.Close()

	var loops []*loop.Loop
	for rows.Next() {
		l, err := scanLoop(rows)
		if err != nil {
			return nil, database.MapError(err, op)
		}
		loops = append(loops, l)
	}
	if err := rows.Err(); err != nil {
		return nil, database.MapError(err, op)
	}
	return loops, nil
}

// Delete removes a loop. Displays referencing it are left untouched.
func (r *Repository) Delete(ctx context.Context, id uuid.UUID) error {
	const op = "LoopRepository.Delete"

	result, err := r.db.ExecContext(ctx, `DELETE FROM loops WHERE id = $1`, id)
	if err != nil {
		return database.MapError(err, op)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return database.MapError(err, op)
	}
	if rows == 0 {
		return errors.NotFound(op, "loop not found")
	}
	return nil
}
