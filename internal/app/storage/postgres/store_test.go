package postgres

import (
	"context"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/brickvault/platform/internal/app/domain/flag"
	"github.com/brickvault/platform/internal/app/domain/investment"
	"github.com/brickvault/platform/internal/app/domain/user"
	"github.com/brickvault/platform/internal/app/storage"
)

func newMockStore(t *testing.T) (*Store, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock: %v", err)
	}
	t.Cleanup(func() {
		if err := mock.ExpectationsWereMet(); err != nil {
			t.Errorf("unmet expectations: %v", err)
		}
		_ = db.Close()
	})
	return New(sqlx.NewDb(db, "sqlmock")), mock
}

func TestGetUserNotFound(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectQuery(regexp.QuoteMeta(`SELECT ` + userColumns + ` FROM users WHERE id = $1`)).
		WithArgs("missing").
		WillReturnRows(sqlmock.NewRows([]string{"id"}))

	_, err := store.GetUser(context.Background(), "missing")
	if !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestCreateUserNormalizesEmail(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectExec(regexp.QuoteMeta(`INSERT INTO users`)).
		WithArgs(sqlmock.AnyArg(), "alice@example.com", "Alice", sqlmock.AnyArg(),
			"local", "investor", true, sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))

	created, err := store.CreateUser(context.Background(), user.User{
		Email:    "  Alice@Example.COM ",
		Name:     "Alice",
		Provider: user.ProviderLocal,
		Role:     user.RoleInvestor,
		Active:   true,
	})
	if err != nil {
		t.Fatalf("create user: %v", err)
	}
	if created.Email != "alice@example.com" {
		t.Fatalf("expected normalized email, got %q", created.Email)
	}
	if created.ID == "" {
		t.Fatal("expected generated ID")
	}
}

func TestCreateInvestmentDuplicateHash(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectExec(regexp.QuoteMeta(`INSERT INTO investments`)).
		WillReturnError(&pq.Error{Code: "23505", Constraint: "investments_tx_hash_idx"})

	_, err := store.CreateInvestment(context.Background(), investment.Investment{
		InvestorID: "inv-1",
		PropertyID: "prop-1",
		Amount:     1000,
		Currency:   "EUR",
		TxHash:     "0xABCDEF",
	})
	if !errors.Is(err, storage.ErrConflict) {
		t.Fatalf("expected ErrConflict, got %v", err)
	}
}

func TestUpsertFlag(t *testing.T) {
	store, mock := newMockStore(t)

	now := time.Now().UTC()
	mock.ExpectQuery(regexp.QuoteMeta(`INSERT INTO feature_flags`)).
		WithArgs("kyc_auto_approve", "auto approve sandbox checks", true, 50,
			"admin-1", sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnRows(sqlmock.NewRows([]string{
			"key", "description", "enabled", "rollout_percent", "updated_by", "created_at", "updated_at",
		}).AddRow("kyc_auto_approve", "auto approve sandbox checks", true, 50, "admin-1", now, now))

	saved, err := store.UpsertFlag(context.Background(), flag.Flag{
		Key:            "kyc_auto_approve",
		Description:    "auto approve sandbox checks",
		Enabled:        true,
		RolloutPercent: 50,
		UpdatedBy:      "admin-1",
	})
	if err != nil {
		t.Fatalf("upsert flag: %v", err)
	}
	if !saved.Enabled || saved.RolloutPercent != 50 {
		t.Fatalf("unexpected flag state: %+v", saved)
	}
}

func TestMarkAllRead(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectExec(regexp.QuoteMeta(`UPDATE notifications SET read = TRUE`)).
		WithArgs("user-1", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 3))

	n, err := store.MarkAllRead(context.Background(), "user-1")
	if err != nil {
		t.Fatalf("mark all read: %v", err)
	}
	if n != 3 {
		t.Fatalf("expected 3 rows updated, got %d", n)
	}
}
