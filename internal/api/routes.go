package api

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/onnwee/thewall/internal/middleware"
)

// RouterConfig carries the handlers and shared infrastructure the
// router wires together.
type RouterConfig struct {
	Wall      *WallHandlers
	WS        *WSHandlers
	Placement *PlacementHandlers
	Quota     *QuotaHandlers
	Like      *LikeHandlers
	Admin     *AdminHandlers
	Health    *HealthHandlers

	// RateLimitStore backs the per-route-group request limits. When nil
	// no rate limiting middleware is applied (tests).
	RateLimitStore middleware.RateLimitStore

	// MetricsRegistry serves GET /metrics. When nil the endpoint is
	// omitted.
	MetricsRegistry *prometheus.Registry
}

// NewRouter assembles the service mux. Placement mutations and admin
// endpoints get tighter rate limits than the read surface.
func NewRouter(cfg RouterConfig) *http.ServeMux {
	mux := http.NewServeMux()

	global := limiterOrPassthrough(cfg.RateLimitStore, middleware.DefaultGlobalLimit())
	placement := limiterOrPassthrough(cfg.RateLimitStore, middleware.DefaultPlacementLimit())
	admin := limiterOrPassthrough(cfg.RateLimitStore, middleware.DefaultAdminLimit())

	// Wall read surface.
	mux.Handle("GET /wall", global(http.HandlerFunc(cfg.Wall.GetWall)))
	mux.Handle("GET /wall/ws", http.HandlerFunc(cfg.WS.Subscribe))

	// Picture mutations.
	mux.Handle("PATCH /pictures/{id}/position", global(http.HandlerFunc(cfg.Wall.UpdatePosition)))
	mux.Handle("DELETE /pictures/{id}", global(http.HandlerFunc(cfg.Wall.DeletePicture)))
	mux.Handle("POST /pictures/{id}/like", global(http.HandlerFunc(cfg.Like.ToggleLike)))
	mux.Handle("GET /pictures/{id}/likes", global(http.HandlerFunc(cfg.Like.GetLikeStatus)))

	// Placement session lifecycle.
	mux.Handle("POST /placements", placement(http.HandlerFunc(cfg.Placement.Start)))
	mux.Handle("GET /placements", global(http.HandlerFunc(cfg.Placement.Current)))
	mux.Handle("POST /placements/{id}/position", placement(http.HandlerFunc(cfg.Placement.SetPosition)))
	mux.Handle("POST /placements/{id}/upload", placement(http.HandlerFunc(cfg.Placement.Upload)))
	mux.Handle("POST /placements/{id}/dismiss", placement(http.HandlerFunc(cfg.Placement.Dismiss)))
	mux.Handle("DELETE /placements/{id}", placement(http.HandlerFunc(cfg.Placement.Cancel)))

	// Quota inspection.
	mux.Handle("GET /quota", global(http.HandlerFunc(cfg.Quota.GetQuota)))

	// Privileged surface.
	mux.Handle("POST /admin/bypass", admin(http.HandlerFunc(cfg.Admin.RedeemBypass)))
	mux.Handle("DELETE /admin/bypass", admin(http.HandlerFunc(cfg.Admin.RevokeBypass)))
	mux.Handle("DELETE /admin/pictures", admin(http.HandlerFunc(cfg.Admin.ClearWall)))
	mux.Handle("GET /admin/stats", admin(http.HandlerFunc(cfg.Admin.WallStats)))

	// Probes and metrics.
	mux.HandleFunc("GET /health", cfg.Health.Health)
	mux.HandleFunc("GET /ready", cfg.Health.Ready)
	if cfg.MetricsRegistry != nil {
		mux.Handle("GET /metrics", promhttp.HandlerFor(cfg.MetricsRegistry, promhttp.HandlerOpts{}))
	}

	return mux
}

// limiterOrPassthrough builds a rate limiting wrapper keyed on the
// resolved identity, or the identity function when no store is set.
func limiterOrPassthrough(store middleware.RateLimitStore, cfg middleware.RateLimitConfig) func(http.Handler) http.Handler {
	if store == nil {
		return func(next http.Handler) http.Handler { return next }
	}
	return middleware.RateLimiter(store, cfg, middleware.IdentityKeyFunc())
}
