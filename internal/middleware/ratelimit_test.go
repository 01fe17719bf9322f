package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestRateLimitConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		config  RateLimitConfig
		wantErr bool
	}{
		{name: "valid", config: RateLimitConfig{RequestsPerWindow: 10, WindowDuration: time.Minute}},
		{name: "zero requests", config: RateLimitConfig{RequestsPerWindow: 0, WindowDuration: time.Minute}, wantErr: true},
		{name: "negative requests", config: RateLimitConfig{RequestsPerWindow: -1, WindowDuration: time.Minute}, wantErr: true},
		{name: "zero window", config: RateLimitConfig{RequestsPerWindow: 10}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.config.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestInMemoryStoreAllow(t *testing.T) {
	store := NewInMemoryRateLimitStore()
	config := RateLimitConfig{RequestsPerWindow: 3, WindowDuration: time.Minute}
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		allowed, remaining, _ := store.Allow(ctx, "key", config)
		if !allowed {
			t.Errorf("request %d should be allowed", i+1)
		}
		if remaining != 2-i {
			t.Errorf("request %d: remaining = %d, want %d", i+1, remaining, 2-i)
		}
	}

	allowed, remaining, retryAfter := store.Allow(ctx, "key", config)
	if allowed {
		t.Error("4th request should be blocked")
	}
	if remaining != 0 {
		t.Errorf("remaining = %d when blocked", remaining)
	}
	if retryAfter <= 0 || retryAfter > 60 {
		t.Errorf("retryAfter = %d, want 1..60", retryAfter)
	}
}

func TestInMemoryStoreIndependentKeys(t *testing.T) {
	store := NewInMemoryRateLimitStore()
	config := RateLimitConfig{RequestsPerWindow: 1, WindowDuration: time.Minute}
	ctx := context.Background()

	if allowed, _, _ := store.Allow(ctx, "a", config); !allowed {
		t.Error("first request for key a should be allowed")
	}
	if allowed, _, _ := store.Allow(ctx, "b", config); !allowed {
		t.Error("first request for key b should be allowed")
	}
	if allowed, _, _ := store.Allow(ctx, "a", config); allowed {
		t.Error("second request for key a should be blocked")
	}
}

func TestInMemoryStoreWindowExpiry(t *testing.T) {
	store := NewInMemoryRateLimitStore()
	config := RateLimitConfig{RequestsPerWindow: 1, WindowDuration: 50 * time.Millisecond}
	ctx := context.Background()

	if allowed, _, _ := store.Allow(ctx, "key", config); !allowed {
		t.Error("first request should be allowed")
	}
	if allowed, _, _ := store.Allow(ctx, "key", config); allowed {
		t.Error("second request should be blocked")
	}

	time.Sleep(80 * time.Millisecond)

	if allowed, _, _ := store.Allow(ctx, "key", config); !allowed {
		t.Error("request after window expiry should be allowed")
	}
}

func TestInMemoryStoreCleanup(t *testing.T) {
	store := NewInMemoryRateLimitStore()
	config := RateLimitConfig{RequestsPerWindow: 1, WindowDuration: 10 * time.Millisecond}
	ctx := context.Background()

	store.Allow(ctx, "stale", config)
	time.Sleep(30 * time.Millisecond)
	store.Cleanup()

	store.mu.Lock()
	_, exists := store.buckets["stale"]
	store.mu.Unlock()
	if exists {
		t.Error("expired bucket survived cleanup")
	}
}

func TestIPKeyFunc(t *testing.T) {
	keyFunc := IPKeyFunc()

	tests := []struct {
		name       string
		headers    map[string]string
		remoteAddr string
		want       string
	}{
		{
			name:       "x-forwarded-for single",
			headers:    map[string]string{"X-Forwarded-For": "203.0.113.9"},
			remoteAddr: "10.0.0.1:1234",
			want:       "203.0.113.9",
		},
		{
			name:       "x-forwarded-for chain uses first hop",
			headers:    map[string]string{"X-Forwarded-For": "203.0.113.9, 10.0.0.2"},
			remoteAddr: "10.0.0.1:1234",
			want:       "203.0.113.9",
		},
		{
			name:       "x-real-ip",
			headers:    map[string]string{"X-Real-IP": "198.51.100.1"},
			remoteAddr: "10.0.0.1:1234",
			want:       "198.51.100.1",
		},
		{
			name:       "remote addr strips port",
			remoteAddr: "192.0.2.7:5678",
			want:       "192.0.2.7",
		},
		{
			name:       "ipv6 remote addr",
			remoteAddr: "[2001:db8::1]:5678",
			want:       "2001:db8::1",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest(http.MethodGet, "/wall", nil)
			r.RemoteAddr = tt.remoteAddr
			for k, v := range tt.headers {
				r.Header.Set(k, v)
			}
			if got := keyFunc(r); got != tt.want {
				t.Errorf("key = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestIdentityKeyFunc(t *testing.T) {
	keyFunc := IdentityKeyFunc()

	r := httptest.NewRequest(http.MethodGet, "/wall", nil)
	r.RemoteAddr = "192.0.2.7:5678"
	if got := keyFunc(r); got != "ip:192.0.2.7" {
		t.Errorf("key without identity = %q", got)
	}

	r = r.WithContext(SetIdentity(r.Context(), "203.0.113.9"))
	if got := keyFunc(r); got != "identity:203.0.113.9" {
		t.Errorf("key with identity = %q", got)
	}
}

func TestRateLimiterMiddleware(t *testing.T) {
	store := NewInMemoryRateLimitStore()
	config := RateLimitConfig{RequestsPerWindow: 2, WindowDuration: time.Minute}

	handler := RateLimiter(store, config, IPKeyFunc())(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	doRequest := func() *httptest.ResponseRecorder {
		r := httptest.NewRequest(http.MethodGet, "/wall", nil)
		r.RemoteAddr = "192.0.2.7:5678"
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, r)
		return w
	}

	for i := 0; i < 2; i++ {
		if w := doRequest(); w.Code != http.StatusOK {
			t.Errorf("request %d: status %d", i+1, w.Code)
		}
	}

	w := doRequest()
	if w.Code != http.StatusTooManyRequests {
		t.Errorf("blocked request: status %d, want 429", w.Code)
	}
	if w.Header().Get("Retry-After") == "" {
		t.Error("blocked response missing Retry-After")
	}
	if w.Header().Get("X-RateLimit-Reset") == "" {
		t.Error("blocked response missing X-RateLimit-Reset")
	}
	if w.Header().Get("X-RateLimit-Remaining") != "0" {
		t.Errorf("X-RateLimit-Remaining = %q, want 0", w.Header().Get("X-RateLimit-Remaining"))
	}

	// A different client is unaffected.
	r := httptest.NewRequest(http.MethodGet, "/wall", nil)
	r.RemoteAddr = "198.51.100.1:1111"
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, r)
	if rec.Code != http.StatusOK {
		t.Errorf("other client: status %d", rec.Code)
	}
}
