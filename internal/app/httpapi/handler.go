// Package httpapi exposes the platform services over REST.
package httpapi

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/gorilla/mux"

	app "github.com/brickvault/platform/internal/app"
	"github.com/brickvault/platform/internal/app/domain/audit"
	"github.com/brickvault/platform/internal/app/domain/user"
	"github.com/brickvault/platform/internal/app/services/auth"
	"github.com/brickvault/platform/internal/app/services/investments"
	"github.com/brickvault/platform/internal/app/storage"
	"github.com/brickvault/platform/internal/middleware"
	"github.com/brickvault/platform/pkg/logger"
)

// handler bundles HTTP endpoints for the application services.
type handler struct {
	app *app.Application
	log *logger.Logger
}

// PublicPaths are the endpoints served without a bearer token.
var PublicPaths = []string{
	"/api/v1/auth/register",
	"/api/v1/auth/login",
	"/api/v1/auth/oauth",
	"/api/v1/auth/refresh",
	"/api/v1/kyc/webhook",
	"/healthz",
	"/metrics",
}

// NewHandler returns a router exposing the core REST API. Authentication and
// the outer middleware chain are applied by the caller.
func NewHandler(application *app.Application, log *logger.Logger) *mux.Router {
	if log == nil {
		log = logger.NewDefault("httpapi")
	}
	h := &handler{app: application, log: log}

	r := mux.NewRouter()
	r.HandleFunc("/healthz", h.healthz).Methods(http.MethodGet)

	api := r.PathPrefix("/api/v1").Subrouter()

	api.HandleFunc("/auth/register", h.register).Methods(http.MethodPost)
	api.HandleFunc("/auth/login", h.login).Methods(http.MethodPost)
	api.HandleFunc("/auth/oauth", h.oauthLogin).Methods(http.MethodPost)
	api.HandleFunc("/auth/refresh", h.refresh).Methods(http.MethodPost)
	api.HandleFunc("/auth/me", h.me).Methods(http.MethodGet)

	adminOnly := middleware.RequireRole(string(user.RoleAdmin))
	staff := middleware.RequireRole(string(user.RoleAdmin), string(user.RoleAgent))

	api.Handle("/users", adminOnly(http.HandlerFunc(h.createUser))).Methods(http.MethodPost)
	api.Handle("/users", adminOnly(http.HandlerFunc(h.listUsers))).Methods(http.MethodGet)
	api.Handle("/users/{id}", adminOnly(http.HandlerFunc(h.getUser))).Methods(http.MethodGet)
	api.Handle("/users/{id}", adminOnly(http.HandlerFunc(h.updateUser))).Methods(http.MethodPatch)
	api.Handle("/users/{id}", adminOnly(http.HandlerFunc(h.deleteUser))).Methods(http.MethodDelete)

	api.HandleFunc("/investors", h.createInvestor).Methods(http.MethodPost)
	api.Handle("/investors", staff(http.HandlerFunc(h.listInvestors))).Methods(http.MethodGet)
	api.HandleFunc("/investors/me", h.myInvestor).Methods(http.MethodGet)
	api.HandleFunc("/investors/{id}", h.getInvestor).Methods(http.MethodGet)
	api.HandleFunc("/investors/{id}", h.updateInvestor).Methods(http.MethodPatch)
	api.HandleFunc("/investors/{id}/portfolio", h.investorPortfolio).Methods(http.MethodGet)

	api.Handle("/clients", staff(http.HandlerFunc(h.createClient))).Methods(http.MethodPost)
	api.Handle("/clients", staff(http.HandlerFunc(h.listClients))).Methods(http.MethodGet)
	api.HandleFunc("/clients/{id}", h.getClient).Methods(http.MethodGet)
	api.Handle("/clients/{id}", staff(http.HandlerFunc(h.updateClient))).Methods(http.MethodPatch)

	api.Handle("/properties", staff(http.HandlerFunc(h.createProperty))).Methods(http.MethodPost)
	api.HandleFunc("/properties", h.listProperties).Methods(http.MethodGet)
	api.HandleFunc("/properties/{id}", h.getProperty).Methods(http.MethodGet)
	api.Handle("/properties/{id}", staff(http.HandlerFunc(h.updateProperty))).Methods(http.MethodPatch)
	api.Handle("/properties/{id}/status", staff(http.HandlerFunc(h.transitionProperty))).Methods(http.MethodPost)
	api.Handle("/properties/{id}/images", staff(http.HandlerFunc(h.addPropertyImage))).Methods(http.MethodPost)
	api.Handle("/properties/{id}/token", staff(http.HandlerFunc(h.attachToken))).Methods(http.MethodPost)
	api.HandleFunc("/properties/{id}/token", h.getPropertyToken).Methods(http.MethodGet)
	api.HandleFunc("/properties/{id}/progress", h.propertyProgress).Methods(http.MethodGet)
	api.HandleFunc("/properties/{id}/investments", h.listPropertyInvestments).Methods(http.MethodGet)

	api.HandleFunc("/tokens", h.listTokens).Methods(http.MethodGet)
	api.HandleFunc("/tokens/{id}", h.getToken).Methods(http.MethodGet)
	api.Handle("/tokens/{id}/sync", staff(http.HandlerFunc(h.syncToken))).Methods(http.MethodPost)
	api.Handle("/tokens/{id}/transactions", staff(http.HandlerFunc(h.submitTokenTransaction))).Methods(http.MethodPost)
	api.HandleFunc("/tokens/{id}/holdings", h.listHoldings).Methods(http.MethodGet)
	api.HandleFunc("/tokens/{id}/holdings", h.trackHolding).Methods(http.MethodPost)

	api.HandleFunc("/investments", h.createInvestment).Methods(http.MethodPost)
	api.HandleFunc("/investments", h.listInvestments).Methods(http.MethodGet)
	api.HandleFunc("/investments/{id}", h.getInvestment).Methods(http.MethodGet)
	api.HandleFunc("/investments/{id}/submit", h.submitInvestment).Methods(http.MethodPost)
	api.Handle("/investments/{id}/complete", staff(http.HandlerFunc(h.completeInvestment))).Methods(http.MethodPost)
	api.Handle("/investments/{id}/fail", staff(http.HandlerFunc(h.failInvestment))).Methods(http.MethodPost)
	api.HandleFunc("/investments/{id}/cancel", h.cancelInvestment).Methods(http.MethodPost)

	api.HandleFunc("/kyc/webhook", h.kycWebhook).Methods(http.MethodPost)
	api.HandleFunc("/kyc/checks", h.submitKYC).Methods(http.MethodPost)
	api.HandleFunc("/kyc/checks", h.listKYC).Methods(http.MethodGet)
	api.HandleFunc("/kyc/checks/{id}", h.getKYC).Methods(http.MethodGet)

	api.HandleFunc("/documents", h.uploadDocument).Methods(http.MethodPost)
	api.HandleFunc("/documents", h.listDocuments).Methods(http.MethodGet)
	api.HandleFunc("/documents/{id}", h.getDocument).Methods(http.MethodGet)
	api.HandleFunc("/documents/{id}", h.deleteDocument).Methods(http.MethodDelete)
	api.HandleFunc("/documents/{id}/url", h.documentURL).Methods(http.MethodGet)

	api.HandleFunc("/notifications", h.listNotifications).Methods(http.MethodGet)
	api.HandleFunc("/notifications/stream", h.streamNotifications).Methods(http.MethodGet)
	api.HandleFunc("/notifications/read-all", h.markAllNotificationsRead).Methods(http.MethodPost)
	api.HandleFunc("/notifications/{id}/read", h.markNotificationRead).Methods(http.MethodPost)

	api.HandleFunc("/visits", h.bookVisit).Methods(http.MethodPost)
	api.HandleFunc("/visits", h.listVisits).Methods(http.MethodGet)
	api.HandleFunc("/visits/{id}", h.getVisit).Methods(http.MethodGet)
	api.Handle("/visits/{id}/status", staff(http.HandlerFunc(h.transitionVisit))).Methods(http.MethodPost)
	api.HandleFunc("/visits/{id}/reschedule", h.rescheduleVisit).Methods(http.MethodPost)

	api.HandleFunc("/flags/{key}/enabled", h.flagEnabled).Methods(http.MethodGet)

	adminAPI := api.PathPrefix("/admin").Subrouter()
	adminAPI.Use(adminOnly)
	adminAPI.HandleFunc("/overview", h.adminOverview).Methods(http.MethodGet)
	adminAPI.HandleFunc("/health", h.adminHealth).Methods(http.MethodGet)
	adminAPI.HandleFunc("/audit", h.listAuditEvents).Methods(http.MethodGet)
	adminAPI.HandleFunc("/audit/recent", h.recentAuditEvents).Methods(http.MethodGet)
	adminAPI.HandleFunc("/flags", h.listFlags).Methods(http.MethodGet)
	adminAPI.HandleFunc("/flags/{key}", h.getFlag).Methods(http.MethodGet)
	adminAPI.HandleFunc("/flags/{key}", h.upsertFlag).Methods(http.MethodPut)
	adminAPI.HandleFunc("/flags/{key}", h.deleteFlag).Methods(http.MethodDelete)

	return r
}

func (h *handler) healthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// audit records a mutation on the trail. Failures are logged, never surfaced.
func (h *handler) recordAudit(r *http.Request, action, entity, entityID string, metadata map[string]string) {
	err := h.app.Audit.Record(r.Context(), audit.Event{
		ActorID:    middleware.GetUserID(r.Context()),
		ActorRole:  middleware.GetUserRole(r.Context()),
		Action:     action,
		Entity:     entity,
		EntityID:   entityID,
		Metadata:   metadata,
		RemoteAddr: r.RemoteAddr,
	})
	if err != nil {
		h.log.WithError(err).WithField("action", action).Warn("record audit event")
	}
}

func decodeJSON(body io.ReadCloser, dst interface{}) error {
	defer body.Close()
	dec := json.NewDecoder(body)
	dec.DisallowUnknownFields()
	return dec.Decode(dst)
}

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, err error) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": err.Error()})
}

// writeServiceError maps domain sentinels onto HTTP statuses. Unmatched
// errors fall back to 400 since services validate their inputs.
func writeServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, storage.ErrNotFound):
		writeError(w, http.StatusNotFound, err)
	case errors.Is(err, storage.ErrConflict), errors.Is(err, investments.ErrDuplicateTxHash):
		writeError(w, http.StatusConflict, err)
	case errors.Is(err, investments.ErrKYCRequired):
		writeError(w, http.StatusForbidden, err)
	case errors.Is(err, auth.ErrInvalidCredentials), errors.Is(err, auth.ErrInvalidToken):
		writeError(w, http.StatusUnauthorized, err)
	default:
		writeError(w, http.StatusBadRequest, err)
	}
}

func serviceUnavailable(w http.ResponseWriter, name string) {
	writeError(w, http.StatusNotImplemented, errors.New(name+" service not configured"))
}
