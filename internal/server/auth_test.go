package server

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/MarcoPoloResearchLab/nodeflow/internal/auth"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

var testSigningSecret = []byte("test-signing-secret")

func newTestIssuer(t *testing.T, clock func() time.Time) *auth.TokenIssuer {
	t.Helper()
	issuer, err := auth.NewTokenIssuer(auth.TokenIssuerConfig{
		SigningSecret: testSigningSecret,
		Issuer:        "nodeflow",
		TokenTTL:      time.Minute,
		Clock:         clock,
	})
	if err != nil {
		t.Fatalf("failed to construct token issuer: %v", err)
	}
	return issuer
}

func TestAuthorizeRequestLogsExpiredTokenAtInfoLevel(t *testing.T) {
	gin.SetMode(gin.TestMode)
	issuedAt := time.Unix(1700000000, 0)
	stale := newTestIssuer(t, func() time.Time { return issuedAt })
	token, _, err := stale.IssueToken(context.Background(), "researcher")
	if err != nil {
		t.Fatalf("failed to issue token: %v", err)
	}

	recorder := httptest.NewRecorder()
	ctx, _ := gin.CreateTestContext(recorder)
	request := httptest.NewRequest(http.MethodGet, "/projects", http.NoBody)
	request.Header.Set("Authorization", "Bearer "+token)
	ctx.Request = request

	core, logs := observer.New(zapcore.DebugLevel)
	handler := &httpHandler{
		tokens: newTestIssuer(t, func() time.Time { return issuedAt.Add(time.Hour) }),
		logger: zap.New(core),
	}

	handler.authorizeRequest(ctx)

	if recorder.Code != http.StatusUnauthorized {
		t.Fatalf("unexpected status code: got %d, want %d", recorder.Code, http.StatusUnauthorized)
	}
	entries := logs.All()
	if len(entries) != 1 {
		t.Fatalf("expected exactly one log entry, got %d", len(entries))
	}
	entry := entries[0]
	if entry.Level != zapcore.InfoLevel {
		t.Fatalf("expected info level for expired token, got %s", entry.Level)
	}
	hasExpired := false
	for _, field := range entry.Context {
		if field.Type == zapcore.ErrorType && errors.Is(field.Interface.(error), auth.ErrExpiredToken) {
			hasExpired = true
			break
		}
	}
	if !hasExpired {
		t.Fatalf("expected expired token error context, got %v", entry.Context)
	}
}

func TestAuthorizeRequestLogsInvalidTokenAtWarnLevel(t *testing.T) {
	gin.SetMode(gin.TestMode)
	recorder := httptest.NewRecorder()
	ctx, _ := gin.CreateTestContext(recorder)
	request := httptest.NewRequest(http.MethodGet, "/projects", http.NoBody)
	request.Header.Set("Authorization", "Bearer not-a-jwt")
	ctx.Request = request

	core, logs := observer.New(zapcore.DebugLevel)
	handler := &httpHandler{
		tokens: newTestIssuer(t, nil),
		logger: zap.New(core),
	}

	handler.authorizeRequest(ctx)

	if recorder.Code != http.StatusUnauthorized {
		t.Fatalf("unexpected status code: got %d, want %d", recorder.Code, http.StatusUnauthorized)
	}
	if entries := logs.FilterLevelExact(zapcore.WarnLevel).All(); len(entries) != 1 {
		t.Fatalf("expected one warn entry, got %d", len(entries))
	}
	if _, exists := ctx.Get(subjectContextKey); exists {
		t.Fatalf("expected no subject for rejected token")
	}
}

func TestProtectedRoutesRequireBearerToken(t *testing.T) {
	issuer := newTestIssuer(t, nil)
	api := newTestAPI(t, func(deps *Dependencies) {
		deps.Tokens = issuer
	})
	token, _, err := issuer.IssueToken(context.Background(), "researcher")
	if err != nil {
		t.Fatalf("failed to issue token: %v", err)
	}

	expectError(t, api.do(t, http.MethodGet, "/projects", nil), http.StatusUnauthorized, errInvalidAuthorization.Error(), "")
	expectError(t, api.do(t, http.MethodGet, "/projects", nil, "Authorization", "Basic abc"), http.StatusUnauthorized, errInvalidAuthorization.Error(), "")
	expectStatus(t, api.do(t, http.MethodGet, "/projects", nil, "Authorization", "Bearer "+token), http.StatusOK)
	expectStatus(t, api.do(t, http.MethodGet, "/projects?"+accessTokenQuery+"="+token, nil), http.StatusOK)
	expectStatus(t, api.do(t, http.MethodGet, "/healthz", nil), http.StatusOK)
}
