// Package postgres implements the advertisement repository using PostgreSQL
package postgres

import (
	"context"
	"database/sql"
	"log/slog"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/wrale/adsign/internal/adsignd/advertisement"
	"github.com/wrale/adsign/internal/adsignd/database"
	"github.com/wrale/adsign/internal/adsignd/errors"
)

const columns = `id, owner_admin, title, media_url, media_type, duration, status, created_at, updated_at`

// Repository implements advertisement.Repository
type Repository struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewRepository creates a new PostgreSQL advertisement repository
func NewRepository(db *sql.DB, logger *slog.Logger) *Repository {
	return &Repository{db: db, logger: logger}
}

var _ advertisement.Repository = (*Repository)(nil)

type rowScanner interface {
	Scan(dest ...any) error
}

func scanAd(row rowScanner) (*advertisement.Advertisement, error) {
	var ad advertisement.Advertisement
	err := row.Scan(
		&ad.ID,
		&ad.OwnerAdmin,
		&ad.Title,
		&ad.MediaURL,
		&ad.MediaType,
		&ad.Duration,
		&ad.Status,
		&ad.CreatedAt,
		&ad.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &ad, nil
}

// Create inserts an advertisement
func (r *Repository) Create(ctx context.Context, ad *advertisement.Advertisement) error {
	const op = "AdvertisementRepository.Create"

	_, err := r.db.ExecContext(ctx, `
		INSERT INTO advertisements (`+columns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`,
		ad.ID,
		ad.OwnerAdmin,
		ad.Title,
		ad.MediaURL,
		ad.MediaType,
		ad.Duration,
		ad.Status,
		ad.CreatedAt,
		ad.UpdatedAt,
	)
	if err != nil {
		r.logger.Error("failed to insert advertisement",
			"error", err,
			"adID", ad.ID,
			"operation", op,
		)
		return database.MapError(err, op)
	}
	return nil
}

// Save overwrites an advertisement's mutable fields
func (r *Repository) Save(ctx context.Context, ad *advertisement.Advertisement) error {
	const op = "AdvertisementRepository.Save"

	result, err := r.db.ExecContext(ctx, `
		UPDATE advertisements
		SET title = $1, media_url = $2, media_type = $3, duration = $4, status = $5, updated_at = $6
		WHERE id = $7
	`,
		ad.Title,
		ad.MediaURL,
		ad.MediaType,
		ad.Duration,
		ad.Status,
		ad.UpdatedAt,
		ad.ID,
	)
	if err != nil {
		return database.MapError(err, op)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return database.MapError(err, op)
	}
	if rows == 0 {
		return errors.NotFound(op, "advertisement not found")
	}
	return nil
}

// FindByID retrieves an advertisement
func (r *Repository) FindByID(ctx context.Context, id uuid.UUID) (*advertisement.Advertisement, error) {
	const op = "AdvertisementRepository.FindByID"

	ad, err := scanAd(r.db.QueryRowContext(ctx, `SELECT `+columns+` FROM advertisements WHERE id = $1`, id))
	if err != nil {
		return nil, database.MapError(err, op)
	}
	return ad, nil
}

// FindByIDs loads the advertisements that still exist among ids
func (r *Repository) FindByIDs(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]*advertisement.Advertisement, error) {
	const op = "AdvertisementRepository.FindByIDs"

	result := make(map[uuid.UUID]*advertisement.Advertisement, len(ids))
	if len(ids) == 0 {
		return result, nil
	}

	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = id.String()
	}

	rows, err := r.db.QueryContext(ctx,
		`SELECT `+columns+` FROM advertisements WHERE id = ANY($1::uuid[])`, pq.Array(keys))
	if err != nil {
		r.logger.Error("failed to load advertisements",
			"error", err,
			"count", len(ids),
			"operation", op,
		)
		return nil, database.MapError(err, op)
	}
	defer rows.Close()

	for rows.Next() {
		ad, err := scanAd(rows)
		if err != nil {
			return nil, database.MapError(err, op)
		}
		result[ad.ID] = ad
	}
	if err := rows.Err(); err != nil {
		return nil, database.MapError(err, op)
	}
	return result, nil
}

// List retrieves an admin's advertisements, oldest first
func (r *Repository) List(ctx context.Context, ownerAdmin string) ([]*advertisement.Advertisement, error) {
	const op = "AdvertisementRepository.List"

	rows, err := r.db.QueryContext(ctx,
		`SELECT `+columns+` FROM advertisements WHERE owner_admin = $1 ORDER BY created_at`, ownerAdmin)
	if err != nil {
		return nil, database.MapError(err, op)
	}
	defer rows.Close()

	var ads []*advertisement.Advertisement
	for rows.Next() {
		ad, err := scanAd(rows)
		if err != nil {
			return nil, database.MapError(err, op)
		}
		ads = append(ads, ad)
	}
	if err := rows.Err(); err != nil {
		return nil, database.MapError(err, op)
	}
	return ads, nil
}
