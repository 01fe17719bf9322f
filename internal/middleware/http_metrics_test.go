package middleware

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
)

func gatherFamily(t *testing.T, reg *prometheus.Registry, name string) *dto.MetricFamily {
	t.Helper()
	families, err := reg.Gather()
	if err != nil {
		t.Fatalf("Gather() failed: %v", err)
	}
	for i := range families {
		if families[i].GetName() == name {
			return families[i]
		}
	}
	return nil
}

func TestHTTPMetricsRecordsRequest(t *testing.T) {
	m := NewMetrics()
	reg := prometheus.NewRegistry()
	if err := m.Register(reg); err != nil {
		t.Fatalf("Register() failed: %v", err)
	}

	handler := HTTPMetrics(m)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"pictures":[]}`))
	}))

	r := httptest.NewRequest(http.MethodGet, "/wall", nil)
	handler.ServeHTTP(httptest.NewRecorder(), r)

	family := gatherFamily(t, reg, MetricHTTPRequestsTotal)
	if family == nil {
		t.Fatal("http_requests_total not recorded")
	}

	metric := family.GetMetric()[0]
	labels := map[string]string{}
	for _, lp := range metric.GetLabel() {
		labels[lp.GetName()] = lp.GetValue()
	}
	if labels["method"] != "GET" || labels["path"] != "/wall" || labels["status"] != "200" {
		t.Errorf("labels %+v", labels)
	}
	if metric.GetCounter().GetValue() != 1 {
		t.Errorf("counter %v, want 1", metric.GetCounter().GetValue())
	}
}

func TestHTTPMetricsNormalizesDynamicPaths(t *testing.T) {
	m := NewMetrics()
	reg := prometheus.NewRegistry()
	if err := m.Register(reg); err != nil {
		t.Fatalf("Register() failed: %v", err)
	}

	handler := HTTPMetrics(m)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	// Several distinct picture ids must collapse into a single label set.
	for _, id := range []string{"a1", "b2", "550e8400-e29b-41d4-a716-446655440000"} {
		r := httptest.NewRequest(http.MethodPost, "/pictures/"+id+"/like", nil)
		handler.ServeHTTP(httptest.NewRecorder(), r)
	}

	family := gatherFamily(t, reg, MetricHTTPRequestsTotal)
	if family == nil {
		t.Fatal("http_requests_total not recorded")
	}
	if len(family.GetMetric()) != 1 {
		t.Fatalf("expected 1 label set after normalization, got %d", len(family.GetMetric()))
	}

	metric := family.GetMetric()[0]
	for _, lp := range metric.GetLabel() {
		if lp.GetName() == "path" && lp.GetValue() != "/pictures/{id}/like" {
			t.Errorf("path label %q", lp.GetValue())
		}
	}
	if metric.GetCounter().GetValue() != 3 {
		t.Errorf("counter %v, want 3", metric.GetCounter().GetValue())
	}
}

func TestHTTPMetricsExcludesHealthEndpoints(t *testing.T) {
	m := NewMetrics()
	reg := prometheus.NewRegistry()
	if err := m.Register(reg); err != nil {
		t.Fatalf("Register() failed: %v", err)
	}

	handler := HTTPMetrics(m)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	for _, path := range []string{"/health", "/ready"} {
		handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, path, nil))
	}

	if family := gatherFamily(t, reg, MetricHTTPRequestsTotal); family != nil {
		t.Errorf("health endpoints recorded metrics: %v", family)
	}
}

func TestHTTPMetricsCapturesRequestSize(t *testing.T) {
	m := NewMetrics()
	reg := prometheus.NewRegistry()
	if err := m.Register(reg); err != nil {
		t.Fatalf("Register() failed: %v", err)
	}

	handler := HTTPMetrics(m)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusCreated)
	}))

	body := strings.NewReader(`{"x":0.25,"y":-0.1}`)
	r := httptest.NewRequest(http.MethodPost, "/placements", body)
	r.Header.Set("Content-Length", "19")
	handler.ServeHTTP(httptest.NewRecorder(), r)

	family := gatherFamily(t, reg, MetricHTTPRequestSizeBytes)
	if family == nil {
		t.Fatal("http_request_size_bytes not recorded")
	}
	hist := family.GetMetric()[0].GetHistogram()
	if hist.GetSampleCount() != 1 {
		t.Errorf("sample count %d", hist.GetSampleCount())
	}
	if hist.GetSampleSum() != 19 {
		t.Errorf("sample sum %v, want 19", hist.GetSampleSum())
	}
}
