package api

import (
	"net/http"
	"testing"
)

func TestGetQuotaFresh(t *testing.T) {
	env := newTestEnv(t)

	rr := env.do(t, http.MethodGet, "/quota", nil, nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rr.Code)
	}

	var q QuotaResponse
	decodeJSON(t, rr, &q)
	if !q.Allowed || q.Used != 0 || q.Remaining != 3 || q.Bypass {
		t.Errorf("unexpected fresh quota: %+v", q)
	}
}

func TestGetQuotaCountsCommittedPlacements(t *testing.T) {
	env := newTestEnv(t)
	env.placePicture(t)
	env.placePicture(t)

	var q QuotaResponse
	rr := env.do(t, http.MethodGet, "/quota", nil, nil)
	decodeJSON(t, rr, &q)
	if q.Used != 2 || q.Remaining != 1 || !q.Allowed {
		t.Errorf("expected 2 used with 1 remaining, got %+v", q)
	}

	env.placePicture(t)
	rr = env.do(t, http.MethodGet, "/quota", nil, nil)
	decodeJSON(t, rr, &q)
	if q.Allowed || q.Remaining != 0 {
		t.Errorf("expected exhausted quota, got %+v", q)
	}
}

func TestGetQuotaWithBypassToken(t *testing.T) {
	env := newTestEnv(t)

	token, err := env.admin.RedeemBypass("203.0.113.9", testBypassCredential)
	if err != nil {
		t.Fatalf("failed to redeem bypass: %v", err)
	}

	rr := env.do(t, http.MethodGet, "/quota", nil, map[string]string{BypassTokenHeader: token})
	var q QuotaResponse
	decodeJSON(t, rr, &q)
	if !q.Bypass || !q.Allowed {
		t.Errorf("expected bypass decision, got %+v", q)
	}
	if q.Remaining != -1 {
		t.Errorf("expected unlimited remaining, got %d", q.Remaining)
	}
}
