package storage

import (
	"context"
	"errors"
	"time"

	"github.com/brickvault/platform/internal/app/domain/audit"
	"github.com/brickvault/platform/internal/app/domain/client"
	"github.com/brickvault/platform/internal/app/domain/document"
	"github.com/brickvault/platform/internal/app/domain/flag"
	"github.com/brickvault/platform/internal/app/domain/investment"
	"github.com/brickvault/platform/internal/app/domain/investor"
	"github.com/brickvault/platform/internal/app/domain/kyc"
	"github.com/brickvault/platform/internal/app/domain/notification"
	"github.com/brickvault/platform/internal/app/domain/property"
	"github.com/brickvault/platform/internal/app/domain/token"
	"github.com/brickvault/platform/internal/app/domain/user"
	"github.com/brickvault/platform/internal/app/domain/visit"
)

// ErrNotFound is returned by all stores when a record does not exist. The
// Postgres store maps sql.ErrNoRows onto it so handlers never depend on the
// driver.
var ErrNotFound = errors.New("not found")

// ErrConflict is returned when a uniqueness constraint is violated, e.g. a
// duplicate email or transaction hash.
var ErrConflict = errors.New("conflict")

// UserStore persists login identities.
type UserStore interface {
	CreateUser(ctx context.Context, u user.User) (user.User, error)
	UpdateUser(ctx context.Context, u user.User) (user.User, error)
	GetUser(ctx context.Context, id string) (user.User, error)
	GetUserByEmail(ctx context.Context, email string) (user.User, error)
	ListUsers(ctx context.Context) ([]user.User, error)
	DeleteUser(ctx context.Context, id string) error
}

// InvestorStore persists investor profiles.
type InvestorStore interface {
	CreateInvestor(ctx context.Context, inv investor.Investor) (investor.Investor, error)
	UpdateInvestor(ctx context.Context, inv investor.Investor) (investor.Investor, error)
	GetInvestor(ctx context.Context, id string) (investor.Investor, error)
	GetInvestorByUser(ctx context.Context, userID string) (investor.Investor, error)
	ListInvestors(ctx context.Context) ([]investor.Investor, error)
}

// ClientStore persists seller organisations.
type ClientStore interface {
	CreateClient(ctx context.Context, c client.Client) (client.Client, error)
	UpdateClient(ctx context.Context, c client.Client) (client.Client, error)
	GetClient(ctx context.Context, id string) (client.Client, error)
	GetClientByUser(ctx context.Context, userID string) (client.Client, error)
	ListClients(ctx context.Context) ([]client.Client, error)
}

// PropertyStore persists listings. An empty clientID lists everything.
// AddFundedAmount applies the increment atomically and fails with
// ErrConflict when a positive amount would push progress past the
// funding target.
type PropertyStore interface {
	CreateProperty(ctx context.Context, p property.Property) (property.Property, error)
	UpdateProperty(ctx context.Context, p property.Property) (property.Property, error)
	AddFundedAmount(ctx context.Context, id string, amount float64) (property.Property, error)
	GetProperty(ctx context.Context, id string) (property.Property, error)
	ListProperties(ctx context.Context, clientID string) ([]property.Property, error)
}

// TokenStore persists token contracts and the holdings ledger.
type TokenStore interface {
	CreateToken(ctx context.Context, t token.Token) (token.Token, error)
	UpdateToken(ctx context.Context, t token.Token) (token.Token, error)
	DeleteToken(ctx context.Context, id string) error
	GetToken(ctx context.Context, id string) (token.Token, error)
	GetTokenByProperty(ctx context.Context, propertyID string) (token.Token, error)
	ListTokens(ctx context.Context) ([]token.Token, error)

	UpsertHolding(ctx context.Context, h token.Holding) (token.Holding, error)
	ListHoldings(ctx context.Context, tokenID string) ([]token.Holding, error)
	ListHoldingsByInvestor(ctx context.Context, investorID string) ([]token.Holding, error)
}

// InvestmentStore persists investment transactions.
type InvestmentStore interface {
	CreateInvestment(ctx context.Context, inv investment.Investment) (investment.Investment, error)
	UpdateInvestment(ctx context.Context, inv investment.Investment) (investment.Investment, error)
	GetInvestment(ctx context.Context, id string) (investment.Investment, error)
	GetInvestmentByTxHash(ctx context.Context, txHash string) (investment.Investment, error)
	ListInvestments(ctx context.Context, investorID string) ([]investment.Investment, error)
	ListInvestmentsByProperty(ctx context.Context, propertyID string) ([]investment.Investment, error)
}

// KYCStore persists verifications and webhook replay markers.
type KYCStore interface {
	CreateVerification(ctx context.Context, v kyc.Verification) (kyc.Verification, error)
	UpdateVerification(ctx context.Context, v kyc.Verification) (kyc.Verification, error)
	GetVerification(ctx context.Context, id string) (kyc.Verification, error)
	GetVerificationByProviderRef(ctx context.Context, ref string) (kyc.Verification, error)
	ListVerifications(ctx context.Context, investorID string) ([]kyc.Verification, error)
	ListExpiring(ctx context.Context, before time.Time) ([]kyc.Verification, error)

	SeenWebhookEvent(ctx context.Context, eventID string) (bool, error)
	MarkWebhookEvent(ctx context.Context, eventID string) error
}

// DocumentStore persists upload metadata.
type DocumentStore interface {
	CreateDocument(ctx context.Context, d document.Document) (document.Document, error)
	GetDocument(ctx context.Context, id string) (document.Document, error)
	ListDocuments(ctx context.Context, ownerUserID string) ([]document.Document, error)
	ListDocumentsByEntity(ctx context.Context, entityID string) ([]document.Document, error)
	DeleteDocument(ctx context.Context, id string) error
}

// NotificationStore persists per-user notifications.
type NotificationStore interface {
	CreateNotification(ctx context.Context, n notification.Notification) (notification.Notification, error)
	GetNotification(ctx context.Context, id string) (notification.Notification, error)
	ListNotifications(ctx context.Context, userID string, unreadOnly bool) ([]notification.Notification, error)
	MarkRead(ctx context.Context, id string) (notification.Notification, error)
	MarkAllRead(ctx context.Context, userID string) (int, error)
}

// AuditStore persists the append-only audit trail.
type AuditStore interface {
	AppendEvent(ctx context.Context, ev audit.Event) (audit.Event, error)
	ListEvents(ctx context.Context, entity string, limit int) ([]audit.Event, error)
}

// FlagStore persists feature flags.
type FlagStore interface {
	UpsertFlag(ctx context.Context, f flag.Flag) (flag.Flag, error)
	GetFlag(ctx context.Context, key string) (flag.Flag, error)
	ListFlags(ctx context.Context) ([]flag.Flag, error)
	DeleteFlag(ctx context.Context, key string) error
}

// VisitStore persists property visit bookings.
type VisitStore interface {
	CreateVisit(ctx context.Context, v visit.Visit) (visit.Visit, error)
	UpdateVisit(ctx context.Context, v visit.Visit) (visit.Visit, error)
	GetVisit(ctx context.Context, id string) (visit.Visit, error)
	ListVisits(ctx context.Context, propertyID, investorID string) ([]visit.Visit, error)
	ListDueReminders(ctx context.Context, from, to time.Time) ([]visit.Visit, error)
}
