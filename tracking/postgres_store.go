package tracking

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq" // The database driver

	"album-publisher/types"
)

// Schema creates the tables PostgresStore expects
const Schema = `
CREATE TABLE IF NOT EXISTS tracking_records (
	id                 SERIAL PRIMARY KEY,
	slug               TEXT NOT NULL,
	title              TEXT NOT NULL,
	published_date     TEXT NOT NULL,
	published_manually BOOLEAN NOT NULL DEFAULT FALSE,
	type               TEXT NOT NULL,
	status             TEXT NOT NULL,
	video_id           TEXT NOT NULL DEFAULT '',
	views              BIGINT
);
CREATE TABLE IF NOT EXISTS tracking_meta (
	id         INTEGER PRIMARY KEY,
	last_check TEXT NOT NULL
);`

// PostgresStore keeps the tracking document in two tables
type PostgresStore struct {
	db  *sqlx.DB
	now func() time.Time
}

// NewPostgresStore wraps an open connection
func NewPostgresStore(db *sqlx.DB) *PostgresStore {
	return &PostgresStore{db: db, now: time.Now}
}

// OpenPostgres connects and ensures the schema exists
func OpenPostgres(ctx context.Context, dsn string) (*PostgresStore, error) {
	if dsn == "" {
		return nil, fmt.Errorf("DATABASE_URL is not set")
	}
	db, err := sqlx.ConnectContext(ctx, "postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("connect tracking db: %w", err)
	}
	if _, err := db.ExecContext(ctx, Schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("create tracking schema: %w", err)
	}
	return NewPostgresStore(db), nil
}

// Close releases the connection
func (s *PostgresStore) Close() error {
	return s.db.Close()
}

// Load reads every record in insertion order
func (s *PostgresStore) Load(ctx context.Context) (*types.TrackingState, error) {
	var records []types.TrackingRecord
	err := s.db.SelectContext(ctx, &records, `
		SELECT slug, title, published_date, published_manually, type, status, video_id, views
		FROM tracking_records
		ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("load tracking records: %w", err)
	}

	state := Empty(s.now())
	for _, rec := range records {
		state.Append(rec)
	}

	var lastCheck string
	err = s.db.GetContext(ctx, &lastCheck, "SELECT last_check FROM tracking_meta WHERE id = 1")
	switch {
	case errors.Is(err, sql.ErrNoRows):
	case err != nil:
		return nil, fmt.Errorf("load tracking meta: %w", err)
	default:
		state.LastCheck = lastCheck
	}
	return state, nil
}

// Save replaces all rows in one transaction and stamps lastCheck
func (s *PostgresStore) Save(ctx context.Context, state *types.TrackingState) error {
	state.LastCheck = s.now().UTC().Format(time.RFC3339)

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tracking save: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, "DELETE FROM tracking_records"); err != nil {
		return fmt.Errorf("clear tracking records: %w", err)
	}

	insert := `INSERT INTO tracking_records
		(slug, title, published_date, published_manually, type, status, video_id, views)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`
	for _, list := range [][]types.TrackingRecord{state.Videos, state.Shorts} {
		for _, rec := range list {
			_, err := tx.ExecContext(ctx, insert,
				rec.Slug, rec.Title, rec.PublishedDate, rec.PublishedManually,
				string(rec.Type), rec.Status, rec.VideoID, rec.Views)
			if err != nil {
				return fmt.Errorf("insert tracking record %s: %w", rec.Slug, err)
			}
		}
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO tracking_meta (id, last_check) VALUES (1, $1)
		ON CONFLICT (id) DO UPDATE SET last_check = EXCLUDED.last_check`, state.LastCheck)
	if err != nil {
		return fmt.Errorf("update tracking meta: %w", err)
	}

	return tx.Commit()
}
