package api

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"sync/atomic"
	"testing"

	"github.com/onnwee/thewall/internal/admin"
	"github.com/onnwee/thewall/internal/asset"
	"github.com/onnwee/thewall/internal/identity"
	"github.com/onnwee/thewall/internal/like"
	"github.com/onnwee/thewall/internal/middleware"
	"github.com/onnwee/thewall/internal/placement"
	"github.com/onnwee/thewall/internal/quota"
	"github.com/onnwee/thewall/internal/realtime"
	"github.com/onnwee/thewall/internal/wall"
)

const (
	testBypassCredential = "let-me-in"
	testAdminCredential  = "op-secret"
)

// fakeHost satisfies asset.Host without touching the network.
type fakeHost struct {
	uploads atomic.Int64
	err     error
}

func (f *fakeHost) Upload(ctx context.Context, file io.Reader, filename, contentType string) (*asset.UploadResult, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.uploads.Add(1)
	return &asset.UploadResult{
		SecureURL: "https://cdn.example.com/wall/fake.png",
		PublicID:  "wall/fake",
		Width:     640,
		Height:    480,
		Format:    "png",
		Bytes:     1024,
	}, nil
}

// testEnv wires the full HTTP surface against in-memory backends.
type testEnv struct {
	store   *realtime.Store
	limiter *quota.Limiter
	manager *placement.Manager
	likes   *like.Service
	admin   *admin.Service
	host    *fakeHost
	handler http.Handler
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	return newTestEnvWithRateLimit(t, nil)
}

func newTestEnvWithRateLimit(t *testing.T, rl middleware.RateLimitStore) *testEnv {
	t.Helper()

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	store := realtime.NewStore(wall.NewInMemoryPictureRepository(), logger, nil)
	limiter := quota.NewLimiter(quota.NewInMemoryStore(), 3, logger)
	host := &fakeHost{}
	manager := placement.NewManager(limiter, host, store, logger)
	likes := like.NewService(like.NewInMemoryRepository(), logger)
	tokens := admin.NewBypassTokens("test-signing-secret")
	adminSvc := admin.NewService(admin.Config{
		BypassCredential: testBypassCredential,
		AdminCredential:  testAdminCredential,
	}, tokens, store, logger)

	mux := NewRouter(RouterConfig{
		Wall:           NewWallHandlers(store, likes),
		WS:             NewWSHandlers(store, nil),
		Placement:      NewPlacementHandlers(manager),
		Quota:          NewQuotaHandlers(limiter),
		Like:           NewLikeHandlers(likes, store),
		Admin:          NewAdminHandlers(adminSvc),
		Health:         NewHealthHandlers(HealthHandlersConfig{}),
		RateLimitStore: rl,
	})

	return &testEnv{
		store:   store,
		limiter: limiter,
		manager: manager,
		likes:   likes,
		admin:   adminSvc,
		host:    host,
		handler: Identity(identity.RequestResolver{}, adminSvc)(mux),
	}
}

// do runs one request through the full middleware + routing stack.
func (e *testEnv) do(t *testing.T, method, target string, body any, headers map[string]string) *httptest.ResponseRecorder {
	t.Helper()

	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("failed to marshal request body: %v", err)
		}
		reader = bytes.NewReader(data)
	}

	req := httptest.NewRequest(method, target, reader)
	req.RemoteAddr = "203.0.113.9:4242"
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	rr := httptest.NewRecorder()
	e.handler.ServeHTTP(rr, req)
	return rr
}

// decodeJSON unmarshals a recorded response body, failing the test on error.
func decodeJSON(t *testing.T, rr *httptest.ResponseRecorder, v any) {
	t.Helper()
	if err := json.Unmarshal(rr.Body.Bytes(), v); err != nil {
		t.Fatalf("failed to decode response %q: %v", rr.Body.String(), err)
	}
}

// assertErrorCode verifies the status and the error envelope code.
func assertErrorCode(t *testing.T, rr *httptest.ResponseRecorder, status int, code string) {
	t.Helper()
	if rr.Code != status {
		t.Fatalf("expected status %d, got %d (body: %s)", status, rr.Code, rr.Body.String())
	}
	var resp ErrorResponse
	decodeJSON(t, rr, &resp)
	if resp.Error.Code != code {
		t.Errorf("expected error code %q, got %q", code, resp.Error.Code)
	}
}

// uploadRequest builds a multipart POST for a placement upload.
func uploadRequest(t *testing.T, target, filename, contentType string, content []byte) *http.Request {
	t.Helper()

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	header := make(textproto.MIMEHeader)
	header.Set("Content-Disposition", `form-data; name="file"; filename="`+filename+`"`)
	header.Set("Content-Type", contentType)
	part, err := mw.CreatePart(header)
	if err != nil {
		t.Fatalf("failed to create multipart part: %v", err)
	}
	if _, err := part.Write(content); err != nil {
		t.Fatalf("failed to write multipart content: %v", err)
	}
	if err := mw.Close(); err != nil {
		t.Fatalf("failed to close multipart writer: %v", err)
	}

	req := httptest.NewRequest(http.MethodPost, target, &buf)
	req.RemoteAddr = "203.0.113.9:4242"
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

// startPlacement opens a session and returns its id.
func (e *testEnv) startPlacement(t *testing.T, headers map[string]string) PlacementResponse {
	t.Helper()
	rr := e.do(t, http.MethodPost, "/placements", nil, headers)
	if rr.Code != http.StatusCreated {
		t.Fatalf("expected status 201 starting placement, got %d (body: %s)", rr.Code, rr.Body.String())
	}
	var resp PlacementResponse
	decodeJSON(t, rr, &resp)
	return resp
}

// placePicture walks one session through position + upload and returns
// the committed picture.
func (e *testEnv) placePicture(t *testing.T) wall.Picture {
	t.Helper()

	session := e.startPlacement(t, nil)
	rr := e.do(t, http.MethodPost, "/placements/"+session.ID+"/position", SetPositionRequest{
		Point:    PointPayload{X: 750, Y: 200},
		Viewport: RectPayload{Width: 1000, Height: 800},
	}, nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200 setting position, got %d (body: %s)", rr.Code, rr.Body.String())
	}

	req := uploadRequest(t, "/placements/"+session.ID+"/upload", "cat.png", "image/png", []byte("png-bytes"))
	rec := httptest.NewRecorder()
	e.handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected status 201 uploading, got %d (body: %s)", rec.Code, rec.Body.String())
	}

	var picture wall.Picture
	decodeJSON(t, rec, &picture)
	return picture
}
