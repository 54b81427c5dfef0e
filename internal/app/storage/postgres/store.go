// Package postgres implements the storage interfaces on PostgreSQL via sqlx.
package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/brickvault/platform/internal/app/storage"
)

// Store implements the storage interfaces backed by PostgreSQL.
type Store struct {
	db *sqlx.DB
}

var _ storage.UserStore = (*Store)(nil)
var _ storage.InvestorStore = (*Store)(nil)
var _ storage.ClientStore = (*Store)(nil)
var _ storage.PropertyStore = (*Store)(nil)
var _ storage.TokenStore = (*Store)(nil)
var _ storage.InvestmentStore = (*Store)(nil)
var _ storage.KYCStore = (*Store)(nil)
var _ storage.DocumentStore = (*Store)(nil)
var _ storage.NotificationStore = (*Store)(nil)
var _ storage.AuditStore = (*Store)(nil)
var _ storage.FlagStore = (*Store)(nil)
var _ storage.VisitStore = (*Store)(nil)

// New creates a Store using the provided database handle.
func New(db *sqlx.DB) *Store {
	return &Store{db: db}
}

// Open connects to PostgreSQL, applies conservative pool settings and
// verifies connectivity.
func Open(databaseURL string) (*sqlx.DB, error) {
	if databaseURL == "" {
		return nil, errors.New("database URL is empty")
	}
	db, err := sqlx.Open("postgres", databaseURL)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(20)
	db.SetMaxIdleConns(10)
	db.SetConnMaxLifetime(30 * time.Minute)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	return db, nil
}

// mapErr translates driver errors into the storage sentinels.
func mapErr(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, sql.ErrNoRows) {
		return storage.ErrNotFound
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) && pqErr.Code == "23505" {
		return fmt.Errorf("%s: %w", pqErr.Constraint, storage.ErrConflict)
	}
	return err
}

func toNullTime(t time.Time) sql.NullTime {
	if t.IsZero() {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: t.UTC(), Valid: true}
}

func fromNullTime(t sql.NullTime) time.Time {
	if !t.Valid {
		return time.Time{}
	}
	return t.Time.UTC()
}
