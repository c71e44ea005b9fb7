// Package postgres implements the connection request ledger using PostgreSQL
package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/wrale/adsign/internal/adsignd/database"
	"github.com/wrale/adsign/internal/adsignd/display"
	"github.com/wrale/adsign/internal/adsignd/display/approval"
	displaypg "github.com/wrale/adsign/internal/adsignd/display/postgres"
	"github.com/wrale/adsign/internal/adsignd/errors"
)

const requestColumns = `r.id, r.display_id, r.status, r.requested_at, r.responded_at,
	COALESCE(r.responded_by, ''), COALESCE(r.rejection_reason, ''),
	COALESCE(d.display_name, ''), COALESCE(d.location, '')`

const requestFrom = ` FROM connection_requests r LEFT JOIN displays d ON d.display_id = r.display_id`

// Repository implements approval.Repository
type Repository struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewRepository creates a new PostgreSQL connection request repository
func NewRepository(db *sql.DB, logger *slog.Logger) *Repository {
	return &Repository{db: db, logger: logger}
}

var _ approval.Repository = (*Repository)(nil)

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRequest(row rowScanner) (*approval.ConnectionRequest, error) {
	var req approval.ConnectionRequest
	var respondedAt sql.NullTime

	err := row.Scan(
		&req.ID,
		&req.DisplayID,
		&req.Status,
		&req.RequestedAt,
		&respondedAt,
		&req.RespondedBy,
		&req.RejectionReason,
		&req.DisplayName,
		&req.Location,
	)
	if err != nil {
		return nil, err
	}
	if respondedAt.Valid {
		t := respondedAt.Time
		req.RespondedAt = &t
	}
	return &req, nil
}

// Create inserts a request. The partial unique index on pending requests
// turns a second pending request for the same display into a conflict.
func (r *Repository) Create(ctx context.Context, req *approval.ConnectionRequest) error {
	const op = "ConnectionRequestRepository.Create"

	_, err := r.db.ExecContext(ctx, `
		INSERT INTO connection_requests (
			id, display_id, status, requested_at, responded_at, responded_by, rejection_reason
		) VALUES ($1, $2, $3, $4, $5, NULLIF($6, ''), NULLIF($7, ''))
	`,
		req.ID,
		req.DisplayID,
		req.Status,
		req.RequestedAt,
		req.RespondedAt,
		req.RespondedBy,
		req.RejectionReason,
	)
	if err != nil {
		mapped := database.MapError(err, op)
		if !errors.IsConflict(mapped) {
			r.logger.Error("failed to insert connection request",
				"error", err,
				"displayID", req.DisplayID,
				"operation", op,
			)
		}
		return mapped
	}
	return nil
}

func (r *Repository) findOne(ctx context.Context, op, where string, args ...any) (*approval.ConnectionRequest, error) {
	req, err := scanRequest(r.db.QueryRowContext(ctx,
		`SELECT `+requestColumns+requestFrom+` WHERE `+where, args...))
	if err != nil {
		if err != sql.ErrNoRows {
			r.logger.Error("failed to find connection request",
				"error", err,
				"operation", op,
			)
		}
		return nil, database.MapError(err, op)
	}
	return req, nil
}

// FindByID retrieves a request
func (r *Repository) FindByID(ctx context.Context, id uuid.UUID) (*approval.ConnectionRequest, error) {
	return r.findOne(ctx, "ConnectionRequestRepository.FindByID", "r.id = $1", id)
}

// FindPending retrieves the display's pending request
func (r *Repository) FindPending(ctx context.Context, displayID string) (*approval.ConnectionRequest, error) {
	return r.findOne(ctx, "ConnectionRequestRepository.FindPending",
		"r.display_id = $1 AND r.status = 'pending'", displayID)
}

// FindLatest retrieves the display's most recent request
func (r *Repository) FindLatest(ctx context.Context, displayID string) (*approval.ConnectionRequest, error) {
	return r.findOne(ctx, "ConnectionRequestRepository.FindLatest",
		"r.display_id = $1 ORDER BY r.requested_at DESC LIMIT 1", displayID)
}

// List retrieves requests newest first
func (r *Repository) List(ctx context.Context, filter approval.Filter) ([]*approval.ConnectionRequest, error) {
	const op = "ConnectionRequestRepository.List"

	var conditions []string
	var args []any
	if filter.Status != "" {
		args = append(args, string(filter.Status))
		conditions = append(conditions, fmt.Sprintf("r.status = $%d", len(args)))
	}
	if filter.DisplayID != "" {
		args = append(args, filter.DisplayID)
		conditions = append(conditions, fmt.Sprintf("r.display_id = $%d", len(args)))
	}

	query := `SELECT ` + requestColumns + requestFrom
	if len(conditions) > 0 {
		query += " WHERE " + strings.Join(conditions, " AND ")
	}
	query += " ORDER BY r.requested_at DESC"

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		r.logger.Error("failed to list connection requests",
			"error", err,
			"operation", op,
		)
		return nil, database.MapError(err, op)
	}
	defer rows.Close()

	var requests []*approval.ConnectionRequest
	for rows.Next() {
		req, err := scanRequest(rows)
		if err != nil {
			return nil, database.MapError(err, op)
		}
		requests = append(requests, req)
	}
	if err := rows.Err(); err != nil {
		return nil, database.MapError(err, op)
	}
	return requests, nil
}

// Resolve locks the request row, checks it is still pending and applies the
// decision together with the display assignment in one transaction
func (r *Repository) Resolve(ctx context.Context, id uuid.UUID, decision approval.Decision) (*approval.ConnectionRequest, *display.Display, error) {
	const op = "ConnectionRequestRepository.Resolve"

	var resolved *display.Display
	err := database.RunInTx(ctx, r.db, nil, func(tx *database.Tx) error {
		var displayID string
		var status approval.Status
		err := tx.QueryRowContext(ctx, `
			SELECT display_id, status FROM connection_requests WHERE id = $1 FOR UPDATE
		`, id).Scan(&displayID, &status)
		if err == sql.ErrNoRows {
			return errors.NotFound(op, "connection request not found")
		}
		if err != nil {
			return err
		}
		if status != approval.StatusPending {
			return errors.InvalidState(op, "connection request is not pending")
		}

		if decision.Outcome == approval.StatusApproved {
			resolved, err = r.assign(ctx, tx, op, displayID, decision)
		} else {
			resolved, err = displaypg.ScanDisplay(tx.QueryRowContext(ctx,
				`SELECT `+displaypg.Columns+` FROM displays WHERE display_id = $1`, displayID))
			if err == sql.ErrNoRows {
				resolved, err = nil, nil
			}
		}
		if err != nil {
			return err
		}

		_, err = tx.ExecContext(ctx, `
			UPDATE connection_requests
			SET status = $1,
				responded_at = $2,
				responded_by = NULLIF($3, ''),
				rejection_reason = NULLIF($4, '')
			WHERE id = $5
		`,
			string(decision.Outcome),
			decision.At,
			decision.AdminID,
			decision.Reason,
			id,
		)
		return err
	})
	if err != nil {
		return nil, nil, database.MapError(err, op)
	}

	req, err := r.FindByID(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	return req, resolved, nil
}

// assign hands the display to the deciding admin unless another admin
// already holds it
func (r *Repository) assign(ctx context.Context, tx *database.Tx, op, displayID string, decision approval.Decision) (*display.Display, error) {
	d, err := displaypg.ScanDisplay(tx.QueryRowContext(ctx, `
		UPDATE displays
		SET assigned_admin = $1,
			status = 'offline',
			is_connected = FALSE,
			updated_at = $2,
			version = version + 1
		WHERE display_id = $3
		  AND (assigned_admin IS NULL OR assigned_admin = $1)
		RETURNING `+displaypg.Columns,
		decision.AdminID,
		decision.At,
		displayID,
	))
	if err != sql.ErrNoRows {
		return d, err
	}

	var exists bool
	if err := tx.QueryRowContext(ctx,
		`SELECT EXISTS (SELECT 1 FROM displays WHERE display_id = $1)`, displayID,
	).Scan(&exists); err != nil {
		return nil, err
	}
	if !exists {
		return nil, errors.NotFound(op, "display not found")
	}
	return nil, errors.InvalidState(op, "display is assigned to another admin")
}

// ListExpiredRejections returns unassigned displays whose latest request
// was rejected before cutoff
func (r *Repository) ListExpiredRejections(ctx context.Context, cutoff time.Time) ([]string, error) {
	const op = "ConnectionRequestRepository.ListExpiredRejections"

	rows, err := r.db.QueryContext(ctx, `
		SELECT d.display_id
		FROM displays d
		JOIN LATERAL (
			SELECT status, responded_at
			FROM connection_requests
			WHERE display_id = d.display_id
			ORDER BY requested_at DESC
			LIMIT 1
		) latest ON TRUE
		WHERE d.assigned_admin IS NULL
		  AND latest.status = 'rejected'
		  AND latest.responded_at < $1
		ORDER BY d.display_id
	`, cutoff)
	if err != nil {
		r.logger.Error("failed to list expired rejections",
			"error", err,
			"operation", op,
		)
		return nil, database.MapError(err, op)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, database.MapError(err, op)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, database.MapError(err, op)
	}
	return ids, nil
}
