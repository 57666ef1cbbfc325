package http

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/spec-kit/token-service/internal/api/http/handlers"
	"github.com/spec-kit/token-service/internal/auth"
	"github.com/spec-kit/token-service/internal/config"
	"github.com/spec-kit/token-service/internal/events"
	"github.com/spec-kit/token-service/internal/observability"
	"github.com/spec-kit/token-service/internal/persistence"
	"github.com/spec-kit/token-service/internal/repository"
	"github.com/spec-kit/token-service/internal/service"
	"github.com/spec-kit/token-service/internal/worker"
	"github.com/spec-kit/token-service/pkg/validator"
)

type tokenEnvelope struct {
	Code string `json:"code"`
	Data struct {
		AccessToken  string `json:"accessToken"`
		RefreshToken string `json:"refreshToken"`
		TokenType    string `json:"tokenType"`
		ExpiresIn    int64  `json:"expiresIn"`
	} `json:"data"`
}

type errorBody struct {
	Error struct {
		Code    string         `json:"code"`
		Message string         `json:"message"`
		Details map[string]any `json:"details"`
	} `json:"error"`
}

func newTestApp(t *testing.T) *fiber.App {
	t.Helper()
	ctx := context.Background()
	logger := zap.NewNop()

	authCfg := config.AuthConfig{
		JWTSecret:              []byte("0123456789abcdef0123456789abcdef"),
		AccessTokenTTLSeconds:  900,
		RefreshTokenTTLSeconds: 604800,
	}

	users := repository.NewMemoryUserRepository()
	require.NoError(t, service.SeedUser(ctx, users, "user", "password", []string{RoleUser}, 4))
	require.NoError(t, service.SeedUser(ctx, users, "guest", "password", []string{"ROLE_GUEST"}, 4))

	registry := prometheus.NewRegistry()
	metrics := observability.NewMetrics(registry)

	codec, err := auth.NewTokenCodec(authCfg.JWTSecret)
	require.NoError(t, err)
	claims := service.NewRoleClaimsProvider(users)
	tokens := service.NewTokenService(codec, claims, authCfg, metrics)

	dispatcher := events.NewInMemoryDispatcher()
	worker.StartAuditWorker(service.NewAuditService(dispatcher, logger))

	authService := service.NewAuthService(service.AuthDependencies{
		Credentials: service.NewPasswordCredentials(users),
		Claims:      claims,
		Tokens:      tokens,
		Dispatcher:  dispatcher,
		Logger:      logger,
	})

	app := fiber.New()
	RegisterMiddlewares(app, logger, metrics, 0)
	RegisterRoutes(app, RouteConfig{
		Health:         handlers.NewHealthHandler("token-service", "test", &persistence.Postgres{}, &persistence.Redis{}),
		Auth:           handlers.NewAuthHandler(authService, validator.New(), logger),
		AuthMiddleware: auth.NewAuthMiddleware(tokens, logger),
		Gatherer:       registry,
	})
	return app
}

func do(t *testing.T, app *fiber.App, method, path, body string, header map[string]string) *http.Response {
	t.Helper()
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != "" {
		req.Header.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
	}
	for k, v := range header {
		req.Header.Set(k, v)
	}
	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	t.Cleanup(func() { _ = resp.Body.Close() })
	return resp
}

func decode[T any](t *testing.T, resp *http.Response) T {
	t.Helper()
	var out T
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	return out
}

func login(t *testing.T, app *fiber.App, username string) tokenEnvelope {
	t.Helper()
	resp := do(t, app, fiber.MethodPost, "/api/auth/login", `{"username":"`+username+`","password":"password"}`, nil)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	return decode[tokenEnvelope](t, resp)
}

func bearer(token string) map[string]string {
	return map[string]string{fiber.HeaderAuthorization: "Bearer " + token}
}

func TestLoginRefreshMeFlow(t *testing.T) {
	app := newTestApp(t)

	issued := login(t, app, "user")
	assert.Equal(t, "SUCCESS", issued.Code)
	assert.Equal(t, "Bearer", issued.Data.TokenType)
	assert.EqualValues(t, 900, issued.Data.ExpiresIn)
	require.NotEmpty(t, issued.Data.AccessToken)
	require.NotEmpty(t, issued.Data.RefreshToken)

	resp := do(t, app, fiber.MethodGet, "/api/auth/me", "", bearer(issued.Data.AccessToken))
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	me := decode[struct {
		Data struct {
			Subject string   `json:"subject"`
			Roles   []string `json:"roles"`
		} `json:"data"`
	}](t, resp)
	assert.Equal(t, "user", me.Data.Subject)
	assert.Equal(t, []string{RoleUser}, me.Data.Roles)

	resp = do(t, app, fiber.MethodPost, "/api/auth/refresh", `{"refreshToken":"`+issued.Data.RefreshToken+`"}`, nil)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	rotated := decode[tokenEnvelope](t, resp)
	assert.NotEqual(t, issued.Data.AccessToken, rotated.Data.AccessToken)
	assert.NotEqual(t, issued.Data.RefreshToken, rotated.Data.RefreshToken)

	resp = do(t, app, fiber.MethodGet, "/api/auth/me", "", bearer(rotated.Data.AccessToken))
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)
}

func TestAuthErrors(t *testing.T) {
	app := newTestApp(t)
	user := login(t, app, "user")
	guest := login(t, app, "guest")

	cases := []struct {
		name   string
		method string
		path   string
		body   string
		header map[string]string
		status int
		code   string
	}{
		{"wrong password", fiber.MethodPost, "/api/auth/login", `{"username":"user","password":"nope"}`, nil, 401, "AUTH_001"},
		{"missing password", fiber.MethodPost, "/api/auth/login", `{"username":"user"}`, nil, 400, "REQ_001"},
		{"blank refresh token", fiber.MethodPost, "/api/auth/refresh", `{"refreshToken":"  "}`, nil, 400, "AUTH_004"},
		{"empty refresh body", fiber.MethodPost, "/api/auth/refresh", "", nil, 400, "AUTH_004"},
		{"refresh body without token", fiber.MethodPost, "/api/auth/refresh", `{}`, nil, 400, "AUTH_004"},
		{"unparseable refresh body", fiber.MethodPost, "/api/auth/refresh", `{"refreshToken":`, nil, 400, "REQ_001"},
		{"garbage refresh token", fiber.MethodPost, "/api/auth/refresh", `{"refreshToken":"garbage"}`, nil, 401, "AUTH_002"},
		{"access token used to refresh", fiber.MethodPost, "/api/auth/refresh", `{"refreshToken":"` + user.Data.AccessToken + `"}`, nil, 401, "AUTH_002"},
		{"me without header", fiber.MethodGet, "/api/auth/me", "", nil, 400, "AUTH_004"},
		{"me with refresh token", fiber.MethodGet, "/api/auth/me", "", bearer(user.Data.RefreshToken), 401, "AUTH_002"},
		{"me without role", fiber.MethodGet, "/api/auth/me", "", bearer(guest.Data.AccessToken), 403, "AUTH_005"},
		{"unknown route", fiber.MethodGet, "/api/nothing", "", nil, 404, "RES_001"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			resp := do(t, app, tc.method, tc.path, tc.body, tc.header)
			assert.Equal(t, tc.status, resp.StatusCode)
			body := decode[errorBody](t, resp)
			assert.Equal(t, tc.code, body.Error.Code)
		})
	}
}

func TestInvalidTokenResponsesAreIndistinguishable(t *testing.T) {
	app := newTestApp(t)
	user := login(t, app, "user")

	tampered := user.Data.RefreshToken[:len(user.Data.RefreshToken)-4] + "AAAA"
	var messages []string
	for _, token := range []string{"garbage", tampered, user.Data.AccessToken} {
		resp := do(t, app, fiber.MethodPost, "/api/auth/refresh", `{"refreshToken":"`+token+`"}`, nil)
		require.Equal(t, fiber.StatusUnauthorized, resp.StatusCode)
		messages = append(messages, decode[errorBody](t, resp).Error.Message)
	}
	assert.Equal(t, messages[0], messages[1])
	assert.Equal(t, messages[1], messages[2])
}

func TestCorrelationIDIsEchoed(t *testing.T) {
	app := newTestApp(t)

	resp := do(t, app, fiber.MethodGet, "/health/live", "", map[string]string{observability.CorrelationIDHeader: "abc-123"})
	assert.Equal(t, "abc-123", resp.Header.Get(observability.CorrelationIDHeader))

	resp = do(t, app, fiber.MethodGet, "/api/auth/me", "", nil)
	assert.NotEmpty(t, resp.Header.Get(observability.CorrelationIDHeader))
}

func TestHealthEndpoints(t *testing.T) {
	app := newTestApp(t)

	resp := do(t, app, fiber.MethodGet, "/health/live", "", nil)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	assert.Equal(t, "alive", decode[map[string]any](t, resp)["status"])

	resp = do(t, app, fiber.MethodGet, "/health/ready", "", nil)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	ready := decode[map[string]any](t, resp)
	assert.Equal(t, "ready", ready["status"])
	assert.Equal(t, map[string]any{"postgres": "disabled", "redis": "disabled"}, ready["dependencies"])
}

func TestMetricsEndpoint(t *testing.T) {
	app := newTestApp(t)
	login(t, app, "user")

	resp := do(t, app, fiber.MethodGet, "/metrics", "", nil)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Contains(t, string(raw), `tokens_issued_total{type="access"} 1`)
	assert.Contains(t, string(raw), "http_requests_total")
}
