package api

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/onnwee/thewall/internal/identity"
	"github.com/onnwee/thewall/internal/middleware"
	"github.com/onnwee/thewall/internal/quota"
)

func TestIdentityMiddlewareResolvesAddress(t *testing.T) {
	var gotIdentity string
	handler := Identity(identity.RequestResolver{}, nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotIdentity = middleware.GetIdentity(r.Context())
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodGet, "/wall", nil)
	req.RemoteAddr = "198.51.100.7:9000"
	handler.ServeHTTP(httptest.NewRecorder(), req)

	if gotIdentity != "198.51.100.7" {
		t.Errorf("expected identity 198.51.100.7, got %q", gotIdentity)
	}
}

func TestIdentityMiddlewareBypassToken(t *testing.T) {
	env := newTestEnv(t)

	token, err := env.admin.RedeemBypass("198.51.100.7", testBypassCredential)
	if err != nil {
		t.Fatalf("failed to redeem bypass: %v", err)
	}

	var bypassed bool
	handler := Identity(identity.RequestResolver{}, env.admin)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		bypassed = quota.BypassFromContext(r.Context())
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodGet, "/quota", nil)
	req.Header.Set(BypassTokenHeader, token)
	handler.ServeHTTP(httptest.NewRecorder(), req)
	if !bypassed {
		t.Error("expected bypass flag with a valid token")
	}

	// Garbage tokens are ignored, not an error.
	bypassed = false
	req = httptest.NewRequest(http.MethodGet, "/quota", nil)
	req.Header.Set(BypassTokenHeader, "not-a-jwt")
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)
	if rr.Code != http.StatusOK {
		t.Errorf("expected status 200 with a bad token, got %d", rr.Code)
	}
	if bypassed {
		t.Error("expected no bypass flag with a garbage token")
	}
}

func TestRequestIdentityFallback(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/quota", nil)
	if got := requestIdentity(req); got != identity.Unknown {
		t.Errorf("expected fallback to %q, got %q", identity.Unknown, got)
	}
}
