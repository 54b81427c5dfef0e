package httpapi

import (
	"bytes"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	app "github.com/brickvault/platform/internal/app"
	"github.com/brickvault/platform/internal/app/services/auth"
	"github.com/brickvault/platform/internal/kycprovider"
	"github.com/brickvault/platform/internal/middleware"
	"github.com/brickvault/platform/pkg/logger"
)

func newTestAPI(t *testing.T) (*app.Application, http.Handler) {
	t.Helper()
	application, err := app.New(app.Stores{}, app.Config{
		Auth: auth.Config{JWTSecret: "test-secret-0123456789"},
		KYC: kycprovider.Config{
			BaseURL:       "http://kyc.invalid",
			APIKey:        "test-key",
			WebhookSecret: "test-secret",
		},
	}, logger.Nop())
	if err != nil {
		t.Fatalf("build application: %v", err)
	}
	return application, NewHandler(application, logger.Nop())
}

func do(t *testing.T, h http.Handler, method, path string, body any, userID, role string) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	if userID != "" {
		req = req.WithContext(middleware.WithUser(req.Context(), userID, role))
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder, dst any) {
	t.Helper()
	if err := json.Unmarshal(rec.Body.Bytes(), dst); err != nil {
		t.Fatalf("decode response %q: %v", rec.Body.String(), err)
	}
}

func TestHealthz(t *testing.T) {
	_, h := newTestAPI(t)
	rec := do(t, h, http.MethodGet, "/healthz", nil, "", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusOK)
	}
}

func TestRegisterAndLogin(t *testing.T) {
	_, h := newTestAPI(t)

	rec := do(t, h, http.MethodPost, "/api/v1/auth/register", map[string]string{
		"email":    "Jane@Example.com",
		"name":     "Jane",
		"password": "correct-horse",
	}, "", "")
	if rec.Code != http.StatusCreated {
		t.Fatalf("register status = %d: %s", rec.Code, rec.Body.String())
	}
	var created struct {
		ID    string `json:"id"`
		Email string `json:"email"`
		Role  string `json:"role"`
	}
	decode(t, rec, &created)
	if created.Email != "jane@example.com" {
		t.Fatalf("email = %q, want normalized", created.Email)
	}
	if created.Role != "investor" {
		t.Fatalf("role = %q, want investor default", created.Role)
	}

	rec = do(t, h, http.MethodPost, "/api/v1/auth/login", map[string]string{
		"email":    "jane@example.com",
		"password": "correct-horse",
	}, "", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("login status = %d: %s", rec.Code, rec.Body.String())
	}
	var session struct {
		AccessToken  string `json:"access_token"`
		RefreshToken string `json:"refresh_token"`
	}
	decode(t, rec, &session)
	if session.AccessToken == "" || session.RefreshToken == "" {
		t.Fatal("expected token pair")
	}

	rec = do(t, h, http.MethodPost, "/api/v1/auth/login", map[string]string{
		"email":    "jane@example.com",
		"password": "wrong",
	}, "", "")
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("bad login status = %d, want %d", rec.Code, http.StatusUnauthorized)
	}
}

func TestUserListRequiresAdmin(t *testing.T) {
	_, h := newTestAPI(t)

	rec := do(t, h, http.MethodGet, "/api/v1/users", nil, "u1", "investor")
	if rec.Code != http.StatusForbidden {
		t.Fatalf("investor status = %d, want %d", rec.Code, http.StatusForbidden)
	}

	rec = do(t, h, http.MethodGet, "/api/v1/users", nil, "u1", "admin")
	if rec.Code != http.StatusOK {
		t.Fatalf("admin status = %d, want %d", rec.Code, http.StatusOK)
	}
}

// seedClient provisions a client user and company through the API.
func seedClient(t *testing.T, h http.Handler) string {
	t.Helper()
	rec := do(t, h, http.MethodPost, "/api/v1/users", map[string]string{
		"email": "acme@example.com",
		"name":  "Acme",
		"role":  "client",
	}, "admin-1", "admin")
	if rec.Code != http.StatusCreated {
		t.Fatalf("create user status = %d: %s", rec.Code, rec.Body.String())
	}
	var u struct {
		ID string `json:"id"`
	}
	decode(t, rec, &u)

	rec = do(t, h, http.MethodPost, "/api/v1/clients", map[string]string{
		"user_id":       u.ID,
		"company_name":  "Acme Estates",
		"registration":  "HRB-12345",
		"contact_email": "ops@acme.example.com",
		"country":       "DE",
	}, "admin-1", "admin")
	if rec.Code != http.StatusCreated {
		t.Fatalf("create client status = %d: %s", rec.Code, rec.Body.String())
	}
	var c struct {
		ID string `json:"id"`
	}
	decode(t, rec, &c)
	return c.ID
}

func TestPropertyLifecycle(t *testing.T) {
	_, h := newTestAPI(t)
	clientID := seedClient(t, h)

	rec := do(t, h, http.MethodPost, "/api/v1/properties", map[string]any{
		"client_id":      clientID,
		"title":          "Dockside Lofts",
		"address":        "1 Harbour Way",
		"city":           "Hamburg",
		"country":        "de",
		"valuation":      2_000_000.0,
		"funding_target": 1_500_000.0,
	}, "admin-1", "admin")
	if rec.Code != http.StatusCreated {
		t.Fatalf("create status = %d: %s", rec.Code, rec.Body.String())
	}
	var created struct {
		ID      string `json:"ID"`
		Status  string `json:"Status"`
		Country string `json:"Country"`
	}
	decode(t, rec, &created)
	if created.Status != "draft" {
		t.Fatalf("status = %q, want draft", created.Status)
	}
	if created.Country != "DE" {
		t.Fatalf("country = %q, want uppercased", created.Country)
	}

	rec = do(t, h, http.MethodGet, "/api/v1/properties/"+created.ID, nil, "u1", "investor")
	if rec.Code != http.StatusOK {
		t.Fatalf("get status = %d", rec.Code)
	}

	// Listing requires an attached token, which needs the chain client.
	rec = do(t, h, http.MethodPost, "/api/v1/properties/"+created.ID+"/status", map[string]string{
		"status": "listed",
	}, "admin-1", "admin")
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("transition status = %d, want %d: %s", rec.Code, http.StatusBadRequest, rec.Body.String())
	}

	rec = do(t, h, http.MethodGet, "/api/v1/properties/unknown", nil, "u1", "investor")
	if rec.Code != http.StatusNotFound {
		t.Fatalf("missing property status = %d, want %d", rec.Code, http.StatusNotFound)
	}
}

func TestTokenEndpointsUnavailableWithoutChain(t *testing.T) {
	_, h := newTestAPI(t)
	rec := do(t, h, http.MethodGet, "/api/v1/tokens", nil, "u1", "investor")
	if rec.Code != http.StatusNotImplemented {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusNotImplemented)
	}
}

func TestFlagRoundTrip(t *testing.T) {
	_, h := newTestAPI(t)

	rec := do(t, h, http.MethodPut, "/api/v1/admin/flags/new-dashboard", map[string]any{
		"description":     "New investor dashboard",
		"enabled":         true,
		"rollout_percent": 100,
	}, "admin-1", "admin")
	if rec.Code != http.StatusOK {
		t.Fatalf("upsert status = %d: %s", rec.Code, rec.Body.String())
	}

	rec = do(t, h, http.MethodGet, "/api/v1/flags/new-dashboard/enabled", nil, "u1", "investor")
	if rec.Code != http.StatusOK {
		t.Fatalf("enabled status = %d", rec.Code)
	}
	var out struct {
		Enabled bool `json:"enabled"`
	}
	decode(t, rec, &out)
	if !out.Enabled {
		t.Fatal("expected flag enabled")
	}

	rec = do(t, h, http.MethodPut, "/api/v1/admin/flags/new-dashboard", map[string]any{
		"enabled": true,
	}, "u1", "investor")
	if rec.Code != http.StatusForbidden {
		t.Fatalf("non-admin upsert status = %d, want %d", rec.Code, http.StatusForbidden)
	}
}

func TestKYCWebhookSignature(t *testing.T) {
	application, h := newTestAPI(t)

	body := []byte(`{"event_id":"ev-1","check_id":"chk-unknown","result":{"status":"clear"}}`)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/kyc/webhook", bytes.NewReader(body))
	req.Header.Set(kycprovider.SignatureHeader, "deadbeef")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("forged signature status = %d, want %d", rec.Code, http.StatusUnauthorized)
	}

	req = httptest.NewRequest(http.MethodPost, "/api/v1/kyc/webhook", bytes.NewReader(body))
	req.Header.Set(kycprovider.SignatureHeader, application.KYCWebhooks.Sign(body))
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("unknown check status = %d, want %d: %s", rec.Code, http.StatusNotFound, rec.Body.String())
	}
}

func TestNotificationsMarkAll(t *testing.T) {
	_, h := newTestAPI(t)
	rec := do(t, h, http.MethodPost, "/api/v1/notifications/read-all", nil, "u1", "investor")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var out struct {
		Marked int `json:"marked"`
	}
	decode(t, rec, &out)
	if out.Marked != 0 {
		t.Fatalf("marked = %d, want 0", out.Marked)
	}
}

// fakeNodeHandler answers the JSON-RPC eth_call reads the token service
// issues, keyed by the 4-byte ABI selector.
func fakeNodeHandler(t *testing.T) http.HandlerFunc {
	abiString := func(s string) string {
		padded := []byte(s)
		if rem := len(padded) % 32; rem != 0 {
			padded = append(padded, make([]byte, 32-rem)...)
		}
		return "0x" + fmt.Sprintf("%064x", 32) + fmt.Sprintf("%064x", len(s)) + hex.EncodeToString(padded)
	}
	abiUint := func(n int64) string { return "0x" + fmt.Sprintf("%064x", n) }

	results := map[string]string{
		"0x06fdde03": abiString("Dockside Lofts Fund"), // name()
		"0x95d89b41": abiString("DOCK"),                // symbol()
		"0x313ce567": abiUint(18),                      // decimals()
		"0x18160ddd": abiUint(1_500_000),               // totalSupply()
		"0x70a08231": abiUint(0),                       // balanceOf(address)
	}
	return func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			ID     int    `json:"id"`
			Method string `json:"method"`
			Params []any  `json:"params"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decode rpc request: %v", err)
			return
		}
		if req.Method != "eth_call" {
			t.Errorf("unexpected rpc method %q", req.Method)
			return
		}
		call := req.Params[0].(map[string]any)
		data := call["data"].(string)
		out, ok := results[data[:10]]
		if !ok {
			t.Errorf("unexpected selector %q", data[:10])
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]any{"jsonrpc": "2.0", "id": req.ID, "result": out})
	}
}

func newChainTestAPI(t *testing.T) (*app.Application, http.Handler) {
	t.Helper()
	node := httptest.NewServer(fakeNodeHandler(t))
	t.Cleanup(node.Close)

	application, err := app.New(app.Stores{}, app.Config{
		Auth:        auth.Config{JWTSecret: "test-secret-0123456789"},
		ChainRPCURL: node.URL,
		ChainID:     11155111,
	}, logger.Nop())
	if err != nil {
		t.Fatalf("build application: %v", err)
	}
	return application, NewHandler(application, logger.Nop())
}

func TestTokenAttachEnablesListingAndInvestment(t *testing.T) {
	_, h := newChainTestAPI(t)
	clientID := seedClient(t, h)

	rec := do(t, h, http.MethodPost, "/api/v1/properties", map[string]any{
		"client_id":      clientID,
		"title":          "Dockside Lofts",
		"country":        "DE",
		"valuation":      2_000_000.0,
		"funding_target": 1_500_000.0,
	}, "admin-1", "admin")
	if rec.Code != http.StatusCreated {
		t.Fatalf("create property status = %d: %s", rec.Code, rec.Body.String())
	}
	var prop struct {
		ID string `json:"ID"`
	}
	decode(t, rec, &prop)

	rec = do(t, h, http.MethodPost, "/api/v1/properties/"+prop.ID+"/token", map[string]any{
		"contract_address": "0x" + strings.Repeat("ab", 20),
		"price_per_token":  100.0,
		"chain_id":         11155111,
	}, "admin-1", "admin")
	if rec.Code != http.StatusCreated {
		t.Fatalf("attach token status = %d: %s", rec.Code, rec.Body.String())
	}
	var tok struct {
		ID     string `json:"ID"`
		Symbol string `json:"Symbol"`
	}
	decode(t, rec, &tok)
	if tok.Symbol != "DOCK" {
		t.Fatalf("symbol = %q, want DOCK", tok.Symbol)
	}

	// Attach links the token onto the listing.
	rec = do(t, h, http.MethodGet, "/api/v1/properties/"+prop.ID, nil, "admin-1", "admin")
	var linked struct {
		TokenID string `json:"TokenID"`
	}
	decode(t, rec, &linked)
	if linked.TokenID != tok.ID {
		t.Fatalf("property token = %q, want %q", linked.TokenID, tok.ID)
	}

	// So the listing can leave draft.
	rec = do(t, h, http.MethodPost, "/api/v1/properties/"+prop.ID+"/status", map[string]string{
		"status": "listed",
	}, "admin-1", "admin")
	if rec.Code != http.StatusOK {
		t.Fatalf("transition status = %d: %s", rec.Code, rec.Body.String())
	}

	rec = do(t, h, http.MethodPost, "/api/v1/auth/register", map[string]string{
		"email":    "mia@example.com",
		"name":     "Mia",
		"password": "correct-horse",
	}, "", "")
	if rec.Code != http.StatusCreated {
		t.Fatalf("register status = %d", rec.Code)
	}
	var u struct {
		ID string `json:"id"`
	}
	decode(t, rec, &u)

	rec = do(t, h, http.MethodPost, "/api/v1/investors", map[string]any{
		"wallet_address": "0x" + strings.Repeat("cd", 20),
		"country":        "DE",
	}, u.ID, "investor")
	if rec.Code != http.StatusCreated {
		t.Fatalf("create investor status = %d: %s", rec.Code, rec.Body.String())
	}

	// And investors can buy in.
	rec = do(t, h, http.MethodPost, "/api/v1/investments", map[string]any{
		"property_id": prop.ID,
		"amount":      5_000.0,
	}, u.ID, "investor")
	if rec.Code != http.StatusCreated {
		t.Fatalf("create investment status = %d: %s", rec.Code, rec.Body.String())
	}

	// Staff list every order without naming an investor.
	rec = do(t, h, http.MethodGet, "/api/v1/investments", nil, "admin-1", "admin")
	if rec.Code != http.StatusOK {
		t.Fatalf("staff list status = %d: %s", rec.Code, rec.Body.String())
	}
	var orders []struct {
		PropertyID string `json:"PropertyID"`
	}
	decode(t, rec, &orders)
	if len(orders) != 1 || orders[0].PropertyID != prop.ID {
		t.Fatalf("unexpected staff listing: %+v", orders)
	}
}

func TestInvestmentRejectsDraftProperty(t *testing.T) {
	_, h := newTestAPI(t)
	clientID := seedClient(t, h)

	rec := do(t, h, http.MethodPost, "/api/v1/properties", map[string]any{
		"client_id":      clientID,
		"title":          "Canal House",
		"country":        "NL",
		"valuation":      800_000.0,
		"funding_target": 600_000.0,
	}, "admin-1", "admin")
	if rec.Code != http.StatusCreated {
		t.Fatalf("create property status = %d: %s", rec.Code, rec.Body.String())
	}
	var prop struct {
		ID string `json:"ID"`
	}
	decode(t, rec, &prop)

	rec = do(t, h, http.MethodPost, "/api/v1/auth/register", map[string]string{
		"email":    "ivo@example.com",
		"name":     "Ivo",
		"password": "correct-horse",
	}, "", "")
	if rec.Code != http.StatusCreated {
		t.Fatalf("register status = %d", rec.Code)
	}
	var u struct {
		ID string `json:"id"`
	}
	decode(t, rec, &u)

	rec = do(t, h, http.MethodPost, "/api/v1/investors", map[string]any{
		"wallet_address": "0x52908400098527886E0F7030069857D2E4169EE7",
		"country":        "NL",
	}, u.ID, "investor")
	if rec.Code != http.StatusCreated {
		t.Fatalf("create investor status = %d: %s", rec.Code, rec.Body.String())
	}

	rec = do(t, h, http.MethodPost, "/api/v1/investments", map[string]any{
		"property_id": prop.ID,
		"amount":      5_000.0,
	}, u.ID, "investor")
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("invest in draft status = %d, want %d: %s", rec.Code, http.StatusBadRequest, rec.Body.String())
	}
}
