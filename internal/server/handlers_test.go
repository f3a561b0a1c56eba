package server

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/finvault/trading-ledger/internal/ledger"
	"github.com/finvault/trading-ledger/internal/models"
	"github.com/finvault/trading-ledger/internal/storage/memory"
	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testSecret = []byte("test-secret")

func init() {
	gin.SetMode(gin.TestMode)
}

func newTestServer(t *testing.T) (*Server, *memory.Store) {
	t.Helper()
	store := memory.NewStore()
	svc := ledger.NewService(store, store, store, nil, nil, nil)
	return New(svc, testSecret, nil, nil), store
}

func token(t *testing.T, userID string) string {
	t.Helper()
	claims := jwt.RegisteredClaims{
		Subject:   userID,
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(testSecret)
	require.NoError(t, err)
	return signed
}

func doRequest(srv *Server, method, path, bearer string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, nil)
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}
	w := httptest.NewRecorder()
	srv.Handler().ServeHTTP(w, req)
	return w
}

func seedAccount(store *memory.Store, id, userID string) {
	store.PutAccount(models.BalanceAccount{
		ID:       id,
		UserID:   userID,
		Type:     models.AccountTypeTrading,
		Currency: "USD",
		IsActive: true,
		Balance:  decimal.Zero,
	})
}

func TestSyncRequiresToken(t *testing.T) {
	srv, _ := newTestServer(t)
	w := doRequest(srv, http.MethodPost, "/sync", "")
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestSyncRejectsInvalidToken(t *testing.T) {
	srv, _ := newTestServer(t)
	w := doRequest(srv, http.MethodPost, "/sync", "not-a-token")
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestSyncNothingToDo(t *testing.T) {
	srv, store := newTestServer(t)
	seedAccount(store, "acct-1", "user-1")

	w := doRequest(srv, http.MethodPost, "/sync", token(t, "user-1"))
	require.Equal(t, http.StatusOK, w.Code)

	var resp struct {
		Synced  int    `json:"synced"`
		Skipped int    `json:"skipped"`
		Message string `json:"message"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, 0, resp.Synced)
	assert.Equal(t, 0, resp.Skipped)
	assert.Equal(t, "no pending settlements", resp.Message)
}

func TestSyncReturnsCounts(t *testing.T) {
	srv, store := newTestServer(t)
	seedAccount(store, "acct-1", "user-1")
	closeTime := time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC)
	store.PutOrder(models.Order{
		ID:               "o1",
		UserID:           "user-1",
		BalanceAccountID: "acct-1",
		Status:           models.OrderStatusClosed,
		PnlAmount:        decimal.RequireFromString("100"),
		CommissionUSD:    decimal.RequireFromString("-2"),
		SwapUSD:          decimal.RequireFromString("-1"),
		CloseTime:        closeTime,
	})

	w := doRequest(srv, http.MethodPost, "/sync", token(t, "user-1"))
	require.Equal(t, http.StatusOK, w.Code)

	var resp struct {
		Synced  int `json:"synced"`
		Skipped int `json:"skipped"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, 1, resp.Synced)
	assert.Equal(t, 0, resp.Skipped)
}

func TestAccountBalance(t *testing.T) {
	srv, store := newTestServer(t)
	seedAccount(store, "acct-1", "user-1")

	w := doRequest(srv, http.MethodGet, "/accounts/acct-1/balance", token(t, "user-1"))
	require.Equal(t, http.StatusOK, w.Code)

	var resp struct {
		AccountID string `json:"account_id"`
		Currency  string `json:"currency"`
		Balance   string `json:"balance"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "acct-1", resp.AccountID)
	assert.Equal(t, "USD", resp.Currency)
	assert.Equal(t, "0", resp.Balance)
}

func TestAccountBalanceForeignAccount(t *testing.T) {
	srv, store := newTestServer(t)
	seedAccount(store, "acct-1", "user-1")

	w := doRequest(srv, http.MethodGet, "/accounts/acct-1/balance", token(t, "user-2"))
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestAccountEntries(t *testing.T) {
	srv, store := newTestServer(t)
	seedAccount(store, "acct-1", "user-1")
	closeTime := time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC)
	store.PutOrder(models.Order{
		ID:               "o1",
		UserID:           "user-1",
		BalanceAccountID: "acct-1",
		Status:           models.OrderStatusClosed,
		PnlAmount:        decimal.RequireFromString("50"),
		CloseTime:        closeTime,
	})

	w := doRequest(srv, http.MethodPost, "/sync", token(t, "user-1"))
	require.Equal(t, http.StatusOK, w.Code)

	w = doRequest(srv, http.MethodGet, "/accounts/acct-1/entries", token(t, "user-1"))
	require.Equal(t, http.StatusOK, w.Code)

	var entries []models.LedgerEntry
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &entries))
	require.Len(t, entries, 1)
	assert.Equal(t, "o1", entries[0].SourceRefID)
	assert.Equal(t, "50", entries[0].BalanceAfter.String())
}
