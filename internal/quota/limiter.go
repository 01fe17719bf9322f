package quota

import (
	"context"
	"log/slog"
	"time"
)

// DefaultDailyQuota is the number of placements an identity may make per
// UTC calendar day.
const DefaultDailyQuota = 3

// UnlimitedRemaining marks an unbounded remaining count in a Decision
// (bypass active). JSON has no infinity, so -1 stands in for it.
const UnlimitedRemaining = -1

// Decision is the outcome of a quota check.
type Decision struct {
	Allowed   bool `json:"allowed"`
	Used      int  `json:"used"`
	Remaining int  `json:"remaining"`
	Bypass    bool `json:"bypass"`
}

// bypassKey is the context key for the session-scoped bypass flag.
type bypassKey struct{}

// WithBypass marks the context as carrying an active session bypass.
// Set by the API layer after verifying a bypass token.
func WithBypass(ctx context.Context) context.Context {
	return context.WithValue(ctx, bypassKey{}, true)
}

// BypassFromContext reports whether the session bypass flag is set.
func BypassFromContext(ctx context.Context) bool {
	v, _ := ctx.Value(bypassKey{}).(bool)
	return v
}

// Limiter decides whether an identity may place one more picture today.
//
// Availability over strictness: if the store's count query fails, the
// check fails open with a full default quota so an infrastructure error
// never blocks a legitimate visitor. Record failures are logged and
// swallowed for the same reason.
type Limiter struct {
	store        Store
	dailyQuota   int
	staticBypass bool
	logger       *slog.Logger
	now          func() time.Time
}

// Option configures a Limiter.
type Option func(*Limiter)

// WithStaticBypass enables the deployment-wide override: when an override
// credential is configured at all, every check bypasses the quota.
func WithStaticBypass(enabled bool) Option {
	return func(l *Limiter) { l.staticBypass = enabled }
}

// WithClock overrides the time source, for tests.
func WithClock(now func() time.Time) Option {
	return func(l *Limiter) { l.now = now }
}

// NewLimiter creates a Limiter over the given store. A dailyQuota <= 0
// falls back to DefaultDailyQuota.
func NewLimiter(store Store, dailyQuota int, logger *slog.Logger, opts ...Option) *Limiter {
	if dailyQuota <= 0 {
		dailyQuota = DefaultDailyQuota
	}
	if logger == nil {
		logger = slog.Default()
	}
	l := &Limiter{
		store:      store,
		dailyQuota: dailyQuota,
		logger:     logger,
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// DailyQuota returns the configured daily limit.
func (l *Limiter) DailyQuota() int {
	return l.dailyQuota
}

func (l *Limiter) bypassed(ctx context.Context) bool {
	return l.staticBypass || BypassFromContext(ctx)
}

func bypassDecision() Decision {
	return Decision{Allowed: true, Used: 0, Remaining: UnlimitedRemaining, Bypass: true}
}

// CheckQuota reports whether the identity may place one more picture
// today. Bypass (static or session) always allows with unlimited
// remaining. Store errors fail open.
func (l *Limiter) CheckQuota(ctx context.Context, identity string) Decision {
	if l.bypassed(ctx) {
		return bypassDecision()
	}

	date := DateOf(l.now())
	used, err := l.store.CountToday(ctx, identity, date)
	if err != nil {
		l.logger.Warn("quota count query failed, failing open",
			"identity", identity,
			"error", err,
		)
		return Decision{Allowed: true, Used: 0, Remaining: l.dailyQuota}
	}

	remaining := l.dailyQuota - used
	if remaining < 0 {
		remaining = 0
	}
	return Decision{
		Allowed:   used < l.dailyQuota,
		Used:      used,
		Remaining: remaining,
	}
}

// RecordUsage attributes one placement to the identity for today.
// A no-op under bypass, so bypassed usage never pollutes the accounting
// of other identities or of the same identity after bypass is disabled.
// Errors are logged, never surfaced: a write hiccup after a successful
// placement must not fail that placement.
func (l *Limiter) RecordUsage(ctx context.Context, identity string) {
	if l.bypassed(ctx) {
		return
	}

	now := l.now()
	err := l.store.Record(ctx, UploadRecord{
		Identity:  identity,
		Date:      DateOf(now),
		Timestamp: now.UTC(),
	})
	if err != nil {
		l.logger.Warn("failed to record upload usage",
			"identity", identity,
			"error", err,
		)
	}
}

// Reservation is one quota slot held for an in-flight placement. Exactly
// one of Commit or Release should be called; both are safe to call more
// than once.
type Reservation struct {
	limiter  *Limiter
	identity string
	date     string
	atomic   bool
	bypass   bool
	done     bool
}

// Reserve claims a slot for a placement that is about to begin. When the
// store supports atomic acquisition the claim is a single conditional
// increment, eliminating the check-then-record window; otherwise it
// degrades to CheckQuota and the race documented on Store applies.
func (l *Limiter) Reserve(ctx context.Context, identity string) (Decision, *Reservation) {
	if l.bypassed(ctx) {
		return bypassDecision(), &Reservation{limiter: l, bypass: true}
	}

	date := DateOf(l.now())
	res := &Reservation{limiter: l, identity: identity, date: date}

	if acq, ok := l.store.(Acquirer); ok {
		used, allowed, err := acq.Acquire(ctx, identity, date, l.dailyQuota)
		if err != nil {
			l.logger.Warn("atomic quota acquire failed, failing open",
				"identity", identity,
				"error", err,
			)
			return Decision{Allowed: true, Used: 0, Remaining: l.dailyQuota}, res
		}
		if !allowed {
			remaining := l.dailyQuota - used
			if remaining < 0 {
				remaining = 0
			}
			res.done = true
			return Decision{Allowed: false, Used: used, Remaining: remaining}, res
		}
		res.atomic = true
		// Acquire reports the count including the slot just taken; the
		// decision reports the standing before this admission.
		used--
		return Decision{Allowed: true, Used: used, Remaining: l.dailyQuota - used}, res
	}

	return l.CheckQuota(ctx, identity), res
}

// Commit finalizes the reservation after a successful placement. For
// advisory stores this is the RecordUsage write; atomic acquisitions are
// already counted.
func (r *Reservation) Commit(ctx context.Context) {
	if r.done || r.bypass {
		r.done = true
		return
	}
	r.done = true
	if r.atomic {
		return
	}
	r.limiter.RecordUsage(ctx, r.identity)
}

// Release gives the slot back when the placement never committed. Only
// atomic acquisitions hold a slot to return.
func (r *Reservation) Release(ctx context.Context) {
	if r.done || r.bypass {
		r.done = true
		return
	}
	r.done = true
	if !r.atomic {
		return
	}
	if acq, ok := r.limiter.store.(Acquirer); ok {
		if err := acq.Release(ctx, r.identity, r.date); err != nil {
			r.limiter.logger.Warn("failed to release quota slot",
				"identity", r.identity,
				"error", err,
			)
		}
	}
}
