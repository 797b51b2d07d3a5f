package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/paulmach/orb"

	"github.com/pennyme/freestuff/internal/domain"

	_ "github.com/lib/pq"
)

// Repository implements domain.PostingStore and domain.CursorStore using
// PostgreSQL with PostGIS point geometry.
type Repository struct {
	db *sql.DB
}

// NewRepository connects to PostgreSQL at the given URL, verifies the
// connection, and returns a new Repository. The caller should call Close
// when the repository is no longer needed.
func NewRepository(databaseURL string) (*Repository, error) {
	db, err := sql.Open("postgres", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	return &Repository{db: db}, nil
}

// Close closes the underlying database connection.
func (r *Repository) Close() error {
	return r.db.Close()
}

// Migrate creates the schema if it does not exist yet.
func (r *Repository) Migrate(ctx context.Context) error {
	statements := []string{
		`CREATE EXTENSION IF NOT EXISTS postgis`,
		`CREATE TABLE IF NOT EXISTS postings (
			id              BIGSERIAL PRIMARY KEY,
			name            TEXT NOT NULL,
			time_posted     TIMESTAMPTZ NOT NULL,
			expiration_date DATE,
			photo_id        TEXT NOT NULL DEFAULT '',
			category        TEXT NOT NULL,
			subcategory     TEXT NOT NULL DEFAULT 'All',
			description     TEXT NOT NULL DEFAULT '',
			address         TEXT NOT NULL DEFAULT '',
			external_url    TEXT NOT NULL DEFAULT '',
			status          TEXT NOT NULL,
			user_id         TEXT NOT NULL DEFAULT '',
			geometry        geometry(Point, 4326) NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS deleted_posts (
			id              BIGINT PRIMARY KEY,
			name            TEXT NOT NULL,
			time_posted     TIMESTAMPTZ NOT NULL,
			expiration_date DATE,
			photo_id        TEXT NOT NULL DEFAULT '',
			category        TEXT NOT NULL,
			subcategory     TEXT NOT NULL DEFAULT 'All',
			description     TEXT NOT NULL DEFAULT '',
			address         TEXT NOT NULL DEFAULT '',
			external_url    TEXT NOT NULL DEFAULT '',
			status          TEXT NOT NULL,
			user_id         TEXT NOT NULL DEFAULT '',
			geometry        geometry(Point, 4326) NOT NULL,
			deleted_at      TIMESTAMPTZ NOT NULL,
			deletion_mode   TEXT NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS stream_cursors (
			stream       TEXT PRIMARY KEY,
			cursor_value BIGINT NOT NULL,
			updated_at   TIMESTAMPTZ NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS postings_geometry_idx ON postings USING GIST (geometry)`,
		`CREATE INDEX IF NOT EXISTS postings_time_posted_idx ON postings (time_posted)`,
	}
	for _, stmt := range statements {
		if _, err := r.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
	}
	return nil
}

// Insert stores a geocoded posting and returns the assigned id. The row is
// written in a single statement; a posting is either fully persisted or not
// at all.
func (r *Repository) Insert(ctx context.Context, posting *domain.GeocodedPosting) (int64, error) {
	query := `
		INSERT INTO postings (name, time_posted, expiration_date, photo_id, category,
			subcategory, description, address, external_url, status, user_id, geometry)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, ST_SetSRID(ST_MakePoint($12, $13), 4326))
		RETURNING id`

	var expiration sql.NullTime
	if posting.ExpirationDate != nil {
		expiration = sql.NullTime{Time: *posting.ExpirationDate, Valid: true}
	}

	var id int64
	err := r.db.QueryRowContext(ctx, query,
		posting.Name,
		posting.Timestamp,
		expiration,
		domain.PhotoIDFor(len(posting.PhotoRefs)),
		string(posting.Category),
		posting.Subcategory,
		posting.Description,
		posting.Address,
		posting.ExternalURL,
		string(posting.Status()),
		posting.SenderID,
		posting.Geometry.Lon(),
		posting.Geometry.Lat(),
	).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("insert posting: %w", err)
	}
	return id, nil
}

const postingColumns = `id, name, time_posted, expiration_date, photo_id, category,
	subcategory, description, address, external_url, status, user_id,
	ST_X(geometry), ST_Y(geometry)`

// Get retrieves a posting by id.
func (r *Repository) Get(ctx context.Context, id int64) (*domain.Posting, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+postingColumns+` FROM postings WHERE id = $1`, id)
	posting, err := scanPosting(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrPostingNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get posting %d: %w", id, err)
	}
	return posting, nil
}

// Query returns postings matching the criteria in id order, capped at
// domain.MaxResults. The SQL mirrors domain.FilterCriteria.Matches.
func (r *Repository) Query(ctx context.Context, criteria domain.FilterCriteria) ([]domain.Posting, error) {
	if !criteria.ShowGoods && !criteria.ShowFood {
		return nil, nil
	}

	var (
		conditions []string
		args       []any
	)
	arg := func(v any) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}

	cutoff := time.Now().UTC().AddDate(0, 0, -criteria.MaxAgeDays)
	conditions = append(conditions, "time_posted >= "+arg(cutoff))

	switch {
	case criteria.ShowGoods && !criteria.ShowFood:
		conditions = append(conditions, "category = "+arg(string(domain.CategoryGoods)))
	case criteria.ShowFood && !criteria.ShowGoods:
		conditions = append(conditions, "category = "+arg(string(domain.CategoryFood)))
	}

	if criteria.ShowGoods && criteria.GoodsSubcategory != "" && criteria.GoodsSubcategory != domain.SubcategoryAll {
		conditions = append(conditions, fmt.Sprintf("(category <> %s OR subcategory = %s)",
			arg(string(domain.CategoryGoods)), arg(criteria.GoodsSubcategory)))
	}
	if criteria.ShowFood && criteria.FoodSubcategory != "" && criteria.FoodSubcategory != domain.SubcategoryAll {
		conditions = append(conditions, fmt.Sprintf("(category <> %s OR subcategory = %s)",
			arg(string(domain.CategoryFood)), arg(criteria.FoodSubcategory)))
	}

	if !criteria.ShowPermanent {
		conditions = append(conditions, "status <> "+arg(string(domain.StatusPermanent)))
	}

	if b := criteria.Box; b != nil {
		conditions = append(conditions, fmt.Sprintf("geometry && ST_MakeEnvelope(%s, %s, %s, %s, 4326)",
			arg(b.SWLng), arg(b.SWLat), arg(b.NELng), arg(b.NELat)))
	}

	query := `SELECT ` + postingColumns + ` FROM postings WHERE ` +
		strings.Join(conditions, " AND ") +
		" ORDER BY id LIMIT " + arg(domain.MaxResults)

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query postings: %w", err)
	}
	defer rows.Close()

	var postings []domain.Posting
	for rows.Next() {
		posting, err := scanPosting(rows)
		if err != nil {
			return nil, fmt.Errorf("scan posting: %w", err)
		}
		postings = append(postings, *posting)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate postings: %w", err)
	}
	return postings, nil
}

// Archive moves a posting into deleted_posts with deletion metadata and
// removes it from postings, all in one transaction.
func (r *Repository) Archive(ctx context.Context, id int64, mode domain.DeletionMode) (*domain.DeletedPosting, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	row := tx.QueryRowContext(ctx,
		`SELECT `+postingColumns+` FROM postings WHERE id = $1 FOR UPDATE`, id)
	posting, err := scanPosting(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrPostingNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load posting %d: %w", id, err)
	}

	deleted, err := archiveInTx(ctx, tx, posting, mode, time.Now().UTC())
	if err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit transaction: %w", err)
	}
	return deleted, nil
}

// ArchiveExpired moves every temporary posting whose expiration date has
// passed into deleted_posts, in one transaction.
func (r *Repository) ArchiveExpired(ctx context.Context, now time.Time) ([]domain.DeletedPosting, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	rows, err := tx.QueryContext(ctx,
		`SELECT `+postingColumns+` FROM postings
		 WHERE status = $1 AND expiration_date <= $2 FOR UPDATE`,
		string(domain.StatusTemporary), now)
	if err != nil {
		return nil, fmt.Errorf("query expired postings: %w", err)
	}

	var expired []*domain.Posting
	for rows.Next() {
		posting, err := scanPosting(rows)
		if err != nil {
			rows.Close()
			return nil, fmt.Errorf("scan expired posting: %w", err)
		}
		expired = append(expired, posting)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, fmt.Errorf("iterate expired postings: %w", err)
	}
	rows.Close()

	var archived []domain.DeletedPosting
	for _, posting := range expired {
		deleted, err := archiveInTx(ctx, tx, posting, domain.DeletionExpired, now)
		if err != nil {
			return nil, err
		}
		archived = append(archived, *deleted)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit transaction: %w", err)
	}
	return archived, nil
}

// GetDeleted retrieves a row from the archive.
func (r *Repository) GetDeleted(ctx context.Context, id int64) (*domain.DeletedPosting, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT id, name, time_posted, expiration_date, photo_id, category,
			subcategory, description, address, external_url, status, user_id,
			ST_X(geometry), ST_Y(geometry), deleted_at, deletion_mode
		FROM deleted_posts WHERE id = $1`, id)

	var (
		d          domain.DeletedPosting
		expiration sql.NullTime
		lon, lat   float64
		mode       string
	)
	err := row.Scan(&d.ID, &d.Name, &d.TimePosted, &expiration, &d.PhotoID,
		&d.Category, &d.Subcategory, &d.Description, &d.Address, &d.ExternalURL,
		&d.Status, &d.UserID, &lon, &lat, &d.DeletedAt, &mode)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrPostingNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get deleted posting %d: %w", id, err)
	}
	if expiration.Valid {
		t := expiration.Time
		d.ExpirationDate = &t
	}
	d.Geometry = orb.Point{lon, lat}
	d.DeletionMode = domain.DeletionMode(mode)
	return &d, nil
}

// GetCursor retrieves the saved consumption cursor for a stream.
func (r *Repository) GetCursor(ctx context.Context, stream string) (int64, error) {
	var cursor int64
	err := r.db.QueryRowContext(ctx,
		`SELECT cursor_value FROM stream_cursors WHERE stream = $1`, stream,
	).Scan(&cursor)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, nil
	}
	return cursor, err
}

// UpdateCursor upserts the consumption cursor for a stream.
func (r *Repository) UpdateCursor(ctx context.Context, stream string, cursor int64) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO stream_cursors (stream, cursor_value, updated_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (stream) DO UPDATE SET cursor_value = $2, updated_at = $3`,
		stream, cursor, time.Now().UTC(),
	)
	return err
}

func archiveInTx(ctx context.Context, tx *sql.Tx, posting *domain.Posting, mode domain.DeletionMode, deletedAt time.Time) (*domain.DeletedPosting, error) {
	var expiration sql.NullTime
	if posting.ExpirationDate != nil {
		expiration = sql.NullTime{Time: *posting.ExpirationDate, Valid: true}
	}

	_, err := tx.ExecContext(ctx, `
		INSERT INTO deleted_posts (id, name, time_posted, expiration_date, photo_id,
			category, subcategory, description, address, external_url, status, user_id,
			geometry, deleted_at, deletion_mode)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12,
			ST_SetSRID(ST_MakePoint($13, $14), 4326), $15, $16)`,
		posting.ID, posting.Name, posting.TimePosted, expiration, posting.PhotoID,
		string(posting.Category), posting.Subcategory, posting.Description,
		posting.Address, posting.ExternalURL, string(posting.Status), posting.UserID,
		posting.Geometry.Lon(), posting.Geometry.Lat(), deletedAt, string(mode))
	if err != nil {
		return nil, fmt.Errorf("insert deleted posting %d: %w", posting.ID, err)
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM postings WHERE id = $1`, posting.ID); err != nil {
		return nil, fmt.Errorf("delete posting %d: %w", posting.ID, err)
	}

	return &domain.DeletedPosting{
		Posting:      *posting,
		DeletedAt:    deletedAt,
		DeletionMode: mode,
	}, nil
}

// scanPosting reads one posting from a row with postingColumns selected.
func scanPosting(row interface{ Scan(...any) error }) (*domain.Posting, error) {
	var (
		p          domain.Posting
		expiration sql.NullTime
		lon, lat   float64
	)
	err := row.Scan(&p.ID, &p.Name, &p.TimePosted, &expiration, &p.PhotoID,
		&p.Category, &p.Subcategory, &p.Description, &p.Address, &p.ExternalURL,
		&p.Status, &p.UserID, &lon, &lat)
	if err != nil {
		return nil, err
	}
	if expiration.Valid {
		t := expiration.Time
		p.ExpirationDate = &t
	}
	p.Geometry = orb.Point{lon, lat}
	return &p, nil
}
