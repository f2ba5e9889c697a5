package server

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"optionsTracker/internal/adapters/sqlite"
	"optionsTracker/internal/app"
	"optionsTracker/internal/auth"
)

const testJWTSecret = "handlers-test-secret"

type testLogger struct{}

func (l *testLogger) Debug(ctx context.Context, msg string, fields ...map[string]interface{}) {}
func (l *testLogger) Info(ctx context.Context, msg string, fields ...map[string]interface{})  {}
func (l *testLogger) Warn(ctx context.Context, msg string, fields ...map[string]interface{})  {}
func (l *testLogger) Error(ctx context.Context, err error, msg string, fields ...map[string]interface{}) {
}

// setupTestApp wires the full stack against a throwaway on-disk store.
func setupTestApp(t *testing.T) *fiber.App {
	t.Helper()

	tmpDir, err := os.MkdirTemp("", "options-tracker-server-test-*")
	require.NoError(t, err)

	logger := &testLogger{}
	store, err := sqlite.New(sqlite.Config{
		DBPath:         filepath.Join(tmpDir, "test.db"),
		MinConns:       1,
		MaxConns:       5,
		AcquireTimeout: 2 * time.Second,
		Logger:         logger,
	})
	require.NoError(t, err)
	t.Cleanup(func() {
		store.Close(5 * time.Second)
		os.RemoveAll(tmpDir)
	})

	engine, err := sqlite.NewEngine(logger)
	require.NoError(t, err)
	txRepo, err := sqlite.NewTransactionRepository(logger)
	require.NoError(t, err)
	userRepo, err := sqlite.NewUserRepository(logger)
	require.NoError(t, err)
	auditRepo, err := sqlite.NewAuditLogRepository(logger)
	require.NoError(t, err)
	stockRepo, err := sqlite.NewStockRepository(logger)
	require.NoError(t, err)

	strategySvc, err := app.NewStrategyService(logger, store, engine, txRepo, userRepo, auditRepo, stockRepo)
	require.NoError(t, err)
	authSvc, err := auth.NewService(auth.Config{
		Logger:     logger,
		Scope:      store,
		Users:      userRepo,
		JWTSecret:  testJWTSecret,
		TokenTTL:   time.Minute,
		BcryptCost: bcrypt.MinCost,
	})
	require.NoError(t, err)

	return New(Config{
		Logger:    logger,
		Strategy:  strategySvc,
		Auth:      authSvc,
		JWTSecret: testJWTSecret,
	})
}

func doJSON(t *testing.T, fapp *fiber.App, method, path string, body interface{}, token string) (*http.Response, Response) {
	t.Helper()

	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := fapp.Test(req, -1)
	require.NoError(t, err)

	var envelope Response
	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	if len(raw) > 0 {
		require.NoError(t, json.Unmarshal(raw, &envelope), "body: %s", raw)
	}
	return resp, envelope
}

// register and login are fixture steps shared by most tests below.
func registerUser(t *testing.T, fapp *fiber.App, userID int64) {
	t.Helper()
	resp, env := doJSON(t, fapp, http.MethodPost, "/api/register", fiber.Map{
		"user_id":  userID,
		"password": "secret123",
	}, "")
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	require.True(t, env.Success)
}

func loginUser(t *testing.T, fapp *fiber.App, userID int64) string {
	t.Helper()
	resp, env := doJSON(t, fapp, http.MethodPost, "/api/login", fiber.Map{
		"user_id":  userID,
		"password": "secret123",
	}, "")
	require.Equal(t, http.StatusOK, resp.StatusCode)

	data, ok := env.Data.(map[string]interface{})
	require.True(t, ok)
	token, ok := data["token"].(string)
	require.True(t, ok)
	require.NotEmpty(t, token)
	return token
}

func upsertStock(t *testing.T, fapp *fiber.App, stockID int64, price float64) {
	t.Helper()
	resp, env := doJSON(t, fapp, http.MethodPut, "/api/stocks", fiber.Map{
		"stockId":      stockID,
		"ticker":       "AAPL",
		"currentPrice": price,
		"volatility":   0.2,
	}, "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.True(t, env.Success)
}

func calculateBody(userID, stockID int64) fiber.Map {
	return fiber.Map{
		"userId":        userID,
		"stockId":       stockID,
		"strategyType":  "Protective Put",
		"strikePrice":   50.0,
		"premium":       3.0,
		"maturityTime":  30,
		"stockQuantity": 100,
		"currentPrice":  48.0,
	}
}

func TestHealth(t *testing.T) {
	fapp := setupTestApp(t)

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	resp, err := fapp.Test(req, -1)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestRegister(t *testing.T) {
	fapp := setupTestApp(t)

	registerUser(t, fapp, 1)

	// Same ID again is rejected.
	resp, env := doJSON(t, fapp, http.MethodPost, "/api/register", fiber.Map{
		"user_id":  1,
		"password": "secret123",
	}, "")
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.False(t, env.Success)
	assert.Equal(t, "User ID already exists.", env.Error)

	// Missing credentials are rejected before the service is reached.
	resp, env = doJSON(t, fapp, http.MethodPost, "/api/register", fiber.Map{"user_id": 2}, "")
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.False(t, env.Success)
}

func TestLogin(t *testing.T) {
	fapp := setupTestApp(t)
	registerUser(t, fapp, 1)

	loginUser(t, fapp, 1)

	resp, env := doJSON(t, fapp, http.MethodPost, "/api/login", fiber.Map{
		"user_id":  1,
		"password": "wrong",
	}, "")
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, "Invalid password.", env.Error)

	resp, env = doJSON(t, fapp, http.MethodPost, "/api/login", fiber.Map{
		"user_id":  404,
		"password": "secret123",
	}, "")
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, "User ID not found.", env.Error)
}

func TestCalculate_EndToEnd(t *testing.T) {
	fapp := setupTestApp(t)
	registerUser(t, fapp, 1)
	upsertStock(t, fapp, 2, 48.0)

	resp, env := doJSON(t, fapp, http.MethodPost, "/api/calculate", calculateBody(1, 2), "")
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	require.True(t, env.Success)

	data, ok := env.Data.(map[string]interface{})
	require.True(t, ok)

	// Protective put at current 48 with premium 3.
	assert.Equal(t, 51.0, data["breakeven"])
	assert.InDelta(t, (48.0-50.0+3.0)/48.0, data["riskRate"], 1e-9)
	assert.GreaterOrEqual(t, data["transactionId"], 1.0)

	history, ok := data["userTransactions"].([]interface{})
	require.True(t, ok)
	assert.Len(t, history, 1)

	// A second request appends to the history.
	resp, env = doJSON(t, fapp, http.MethodPost, "/api/calculate", calculateBody(1, 2), "")
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	data = env.Data.(map[string]interface{})
	history = data["userTransactions"].([]interface{})
	assert.Len(t, history, 2)
}

func TestCalculate_MissingFieldNamesIt(t *testing.T) {
	fapp := setupTestApp(t)
	registerUser(t, fapp, 1)
	upsertStock(t, fapp, 2, 48.0)

	body := calculateBody(1, 2)
	delete(body, "premium")

	resp, env := doJSON(t, fapp, http.MethodPost, "/api/calculate", body, "")
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.False(t, env.Success)
	assert.Equal(t, "missing or null value for required field: premium", env.Error)

	// An explicit null is treated the same as an absent field.
	body = calculateBody(1, 2)
	body["stockId"] = nil
	resp, env = doJSON(t, fapp, http.MethodPost, "/api/calculate", body, "")
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, "missing or null value for required field: stockId", env.Error)
}

func TestCalculate_UnknownStrategy(t *testing.T) {
	fapp := setupTestApp(t)
	registerUser(t, fapp, 1)
	upsertStock(t, fapp, 2, 48.0)

	body := calculateBody(1, 2)
	body["strategyType"] = "Iron Condor"

	resp, env := doJSON(t, fapp, http.MethodPost, "/api/calculate", body, "")
	assert.Equal(t, http.StatusInternalServerError, resp.StatusCode)
	assert.False(t, env.Success)
	// Engine detail stays internal.
	assert.Equal(t, "Server error during transaction processing", env.Error)
}

func TestPreview_IsDeterministicAndStateless(t *testing.T) {
	fapp := setupTestApp(t)
	registerUser(t, fapp, 1)

	body := fiber.Map{
		"strategyType": "Covered Call",
		"currentPrice": 100.0,
		"strikePrice":  105.0,
		"premium":      2.0,
	}

	var results []map[string]interface{}
	for i := 0; i < 2; i++ {
		resp, env := doJSON(t, fapp, http.MethodPost, "/api/preview", body, "")
		require.Equal(t, http.StatusOK, resp.StatusCode)
		require.True(t, env.Success)
		results = append(results, env.Data.(map[string]interface{}))
	}

	assert.Equal(t, results[0], results[1])
	assert.Equal(t, 98.0, results[0]["breakeven"])
	assert.Equal(t, 0.98, results[0]["riskRate"])

	// Nothing was persisted by the preview.
	resp, env := doJSON(t, fapp, http.MethodGet, "/api/transactions/1", nil, "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Empty(t, env.Data)
}

func TestPreview_UnknownStrategy(t *testing.T) {
	fapp := setupTestApp(t)

	resp, env := doJSON(t, fapp, http.MethodPost, "/api/preview", fiber.Map{
		"strategyType": "Iron Condor",
		"currentPrice": 100.0,
		"strikePrice":  105.0,
		"premium":      2.0,
	}, "")
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, "Unknown strategy type", env.Error)
}

func TestUserTransactions_BadID(t *testing.T) {
	fapp := setupTestApp(t)

	resp, env := doJSON(t, fapp, http.MethodGet, "/api/transactions/abc", nil, "")
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.False(t, env.Success)
}

func TestStocks(t *testing.T) {
	fapp := setupTestApp(t)

	upsertStock(t, fapp, 1, 48.0)
	upsertStock(t, fapp, 1, 52.5) // refresh in place

	resp, env := doJSON(t, fapp, http.MethodGet, "/api/stocks/1", nil, "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	data := env.Data.(map[string]interface{})
	assert.Equal(t, 52.5, data["currentPrice"])

	resp, env = doJSON(t, fapp, http.MethodGet, "/api/stocks/99", nil, "")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.Equal(t, "Stock not found", env.Error)
}

func TestAuditLogs(t *testing.T) {
	fapp := setupTestApp(t)
	registerUser(t, fapp, 1)
	upsertStock(t, fapp, 2, 48.0)
	token := loginUser(t, fapp, 1)

	// Produce an audit entry via a stored transaction.
	resp, _ := doJSON(t, fapp, http.MethodPost, "/api/calculate", calculateBody(1, 2), "")
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	// No token: rejected before the handler runs.
	resp, env := doJSON(t, fapp, http.MethodGet, "/api/audit-logs/1", nil, "")
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	assert.False(t, env.Success)

	// With a valid token the user sees their own entries.
	resp, env = doJSON(t, fapp, http.MethodGet, "/api/audit-logs/1", nil, token)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	entries, ok := env.Data.([]interface{})
	require.True(t, ok)
	require.Len(t, entries, 1)

	entry := entries[0].(map[string]interface{})
	assert.Equal(t, "INSERT", entry["action"])
	assert.Equal(t, "transactions", entry["table"])
	assert.Equal(t, 1.0, entry["userId"])

	// An absent target user is 404, not an empty list.
	resp, env = doJSON(t, fapp, http.MethodGet, "/api/audit-logs/999", nil, token)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.Contains(t, env.Error, "999")
}
