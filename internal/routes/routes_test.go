package routes

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http/httptest"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/CodeXPrim8/BU/internal/config"
	"github.com/CodeXPrim8/BU/internal/gateway"
	"github.com/CodeXPrim8/BU/internal/logging"
	"github.com/CodeXPrim8/BU/internal/middleware"
)

const (
	testJWTSecret     = "routes-test-jwt"
	testGatewaySecret = "routes-test-gateway"
)

func testApp(t *testing.T) *fiber.App {
	t.Helper()
	app := fiber.New()
	cfg := config.Config{
		AppName:       "BU",
		AppEnv:        "development",
		JWTSecret:     testJWTSecret,
		GatewaySecret: testGatewaySecret,
	}
	require.NoError(t, Setup(app, Deps{Cfg: cfg, Logger: logging.Discard()}))
	return app
}

func testAppWithCache(t *testing.T) *fiber.App {
	t.Helper()
	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)
	cache := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { cache.Close() })

	app := fiber.New()
	cfg := config.Config{
		AppName:        "BU",
		AppEnv:         "development",
		JWTSecret:      testJWTSecret,
		GatewaySecret:  testGatewaySecret,
		IdempotencyTTL: time.Minute,
	}
	require.NoError(t, Setup(app, Deps{Cfg: cfg, Cache: cache, Logger: logging.Discard()}))
	return app
}

func token(t *testing.T, accountID, role string) string {
	t.Helper()
	claims := jwt.MapClaims{
		"sub":  accountID,
		"role": role,
		"exp":  time.Now().Add(time.Hour).Unix(),
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(testJWTSecret))
	require.NoError(t, err)
	return signed
}

func do(t *testing.T, app *fiber.App, method, path, bearer string, payload any) (int, map[string]any) {
	t.Helper()
	var body io.Reader
	if payload != nil {
		raw, err := json.Marshal(payload)
		require.NoError(t, err)
		body = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, body)
	if payload != nil {
		req.Header.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
	}
	if bearer != "" {
		req.Header.Set(fiber.HeaderAuthorization, "Bearer "+bearer)
	}
	resp, err := app.Test(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	out := map[string]any{}
	if len(raw) > 0 {
		_ = json.Unmarshal(raw, &out)
	}
	return resp.StatusCode, out
}

func register(t *testing.T, app *fiber.App, phone, name, role string) string {
	t.Helper()
	status, body := do(t, app, fiber.MethodPost, "/api/v1/accounts", "", fiber.Map{
		"phone": phone, "display_name": name, "role": role,
	})
	require.Equal(t, fiber.StatusCreated, status, "register: %v", body)
	id, _ := body["id"].(string)
	require.NotEmpty(t, id)
	return id
}

func TestHealthz(t *testing.T) {
	app := testApp(t)
	status, _ := do(t, app, fiber.MethodGet, "/healthz", "", nil)
	require.Equal(t, fiber.StatusOK, status)
}

func TestWalletFlowEndToEnd(t *testing.T) {
	app := testApp(t)

	adaID := register(t, app, "+2348012345678", "Ada", "guest")
	bayoID := register(t, app, "+2348098765432", "Bayo", "guest")
	adaToken := token(t, adaID, "guest")

	// Unauthenticated wallet access is rejected.
	status, _ := do(t, app, fiber.MethodGet, "/api/v1/wallet", "", nil)
	require.Equal(t, fiber.StatusUnauthorized, status)

	// Gateway confirmation credits Ada.
	raw, err := json.Marshal(fiber.Map{
		"reference": "gw-1", "account_id": adaID, "amount": "5000",
	})
	require.NoError(t, err)
	req := httptest.NewRequest(fiber.MethodPost, "/api/v1/gateway/confirm", bytes.NewReader(raw))
	req.Header.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
	req.Header.Set(gateway.SignatureHeader, gateway.Sign(testGatewaySecret, raw))
	resp, err := app.Test(req)
	require.NoError(t, err)
	resp.Body.Close()
	require.Equal(t, fiber.StatusOK, resp.StatusCode)

	status, body := do(t, app, fiber.MethodGet, "/api/v1/wallet", adaToken, nil)
	require.Equal(t, fiber.StatusOK, status)
	require.Equal(t, "5000", body["balance"])

	// Ada sends Bayo 1500.
	status, _ = do(t, app, fiber.MethodPost, "/api/v1/wallet/send", adaToken, fiber.Map{
		"receiver_id": bayoID, "amount": "1500", "message": "congrats",
	})
	require.Equal(t, fiber.StatusCreated, status)

	status, body = do(t, app, fiber.MethodGet, "/api/v1/wallet", token(t, bayoID, "guest"), nil)
	require.Equal(t, fiber.StatusOK, status)
	require.Equal(t, "1500", body["balance"])

	// Both histories carry the transfer.
	status, body = do(t, app, fiber.MethodGet, "/api/v1/wallet/transactions", adaToken, nil)
	require.Equal(t, fiber.StatusOK, status)
	txs, _ := body["transactions"].([]any)
	require.NotEmpty(t, txs)
}

func TestGatewayConfirmWorksWithCacheConfigured(t *testing.T) {
	app := testAppWithCache(t)

	adaID := register(t, app, "+2348011112222", "Ada", "guest")
	adaToken := token(t, adaID, "guest")

	// The gateway contract carries only the signed payload, no
	// Idempotency-Key, and must still reach the handler.
	raw, err := json.Marshal(fiber.Map{
		"reference": "gw-cache-1", "account_id": adaID, "amount": "2500",
	})
	require.NoError(t, err)
	req := httptest.NewRequest(fiber.MethodPost, "/api/v1/gateway/confirm", bytes.NewReader(raw))
	req.Header.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
	req.Header.Set(gateway.SignatureHeader, gateway.Sign(testGatewaySecret, raw))
	resp, err := app.Test(req)
	require.NoError(t, err)
	resp.Body.Close()
	require.Equal(t, fiber.StatusOK, resp.StatusCode)

	status, body := do(t, app, fiber.MethodGet, "/api/v1/wallet", adaToken, nil)
	require.Equal(t, fiber.StatusOK, status)
	require.Equal(t, "2500", body["balance"])

	// Authenticated writes remain covered by the idempotency layer.
	status, _ = do(t, app, fiber.MethodPost, "/api/v1/wallet/send", adaToken, fiber.Map{
		"receiver_phone": "+2348011113333", "amount": "100",
	})
	require.Equal(t, fiber.StatusBadRequest, status)
}

func TestVendorModeGateOverHTTP(t *testing.T) {
	app := testApp(t)

	guestID := register(t, app, "+2348000000001", "Guest", "guest")
	guestToken := token(t, guestID, "guest")

	// Requesting vendor-mode as a guest resolves to guest-mode, redirected.
	status, body := do(t, app, fiber.MethodPost, "/api/v1/mode", guestToken, fiber.Map{
		"mode": "vendor-mode",
	})
	require.Equal(t, fiber.StatusOK, status)
	require.Equal(t, "guest-mode", body["mode"])
	require.Equal(t, true, body["redirected"])

	// After the upgrade the same request is admitted.
	status, body = do(t, app, fiber.MethodPost, "/api/v1/profile/upgrade", guestToken, nil)
	require.Equal(t, fiber.StatusOK, status)
	require.Equal(t, "combined", body["role"])

	combinedToken := token(t, guestID, "combined")
	status, body = do(t, app, fiber.MethodPost, "/api/v1/mode", combinedToken, fiber.Map{
		"mode": "vendor-mode",
	})
	require.Equal(t, fiber.StatusOK, status)
	require.Equal(t, "vendor-mode", body["mode"])
	require.Equal(t, false, body["redirected"])
}

func TestMeReportsResolvedMode(t *testing.T) {
	app := testApp(t)

	id := register(t, app, "+2348000000002", "Ada", "guest")
	bearer := token(t, id, "guest")

	req := httptest.NewRequest(fiber.MethodGet, "/api/v1/me", nil)
	req.Header.Set(fiber.HeaderAuthorization, "Bearer "+bearer)
	req.Header.Set(middleware.ModeHeader, "vendor-mode")
	resp, err := app.Test(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, fiber.StatusOK, resp.StatusCode)

	var body map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	require.Equal(t, "guest-mode", body["mode"])
	require.Equal(t, true, body["mode_redirected"])
}

func TestSpendSurfaceOverHTTP(t *testing.T) {
	app := testApp(t)

	guestID := register(t, app, "+2348000000003", "Guest", "guest")
	vendorID := register(t, app, "+2348000000004", "Suya Spot", "vendor")
	guestToken := token(t, guestID, "guest")

	// Credit the guest through the gateway first.
	raw, err := json.Marshal(fiber.Map{
		"reference": "gw-spend", "account_id": guestID, "amount": "3000",
	})
	require.NoError(t, err)
	req := httptest.NewRequest(fiber.MethodPost, "/api/v1/gateway/confirm", bytes.NewReader(raw))
	req.Header.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
	req.Header.Set(gateway.SignatureHeader, gateway.Sign(testGatewaySecret, raw))
	resp, err := app.Test(req)
	require.NoError(t, err)
	resp.Body.Close()
	require.Equal(t, fiber.StatusOK, resp.StatusCode)

	status, body := do(t, app, fiber.MethodPost, "/api/v1/spend/purchase", guestToken, fiber.Map{
		"vendor_id": vendorID, "amount": "500", "message": "suya",
	})
	require.Equal(t, fiber.StatusCreated, status, "purchase: %v", body)
	require.Equal(t, "purchase", body["kind"])

	// Insufficient balance surfaces as a 400.
	status, _ = do(t, app, fiber.MethodPost, "/api/v1/spend/purchase", guestToken, fiber.Map{
		"vendor_id": vendorID, "amount": "999999",
	})
	require.Equal(t, fiber.StatusBadRequest, status)
}
