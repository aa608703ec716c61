package middleware

import (
	"context"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/allresumeservices/client-intake/internal/http/response"
	"github.com/allresumeservices/client-intake/internal/security"
)

// RateLimitPolicy combines a token bucket for bursts with a sliding window
// cap for sustained traffic. A request must pass both.
type RateLimitPolicy struct {
	SustainedLimit    int
	SustainedWindow   time.Duration
	BurstCapacity     int
	BurstRefillPerSec float64
}

type Decision struct {
	Allowed    bool
	RetryAfter time.Duration
	Remaining  int
	ResetAt    time.Time
}

type Limiter interface {
	Allow(ctx context.Context, key string, policy RateLimitPolicy) (Decision, error)
}

type FailureMode string

const (
	FailOpen   FailureMode = "fail_open"
	FailClosed FailureMode = "fail_closed"
)

// PerMinutePolicy allows limit requests per minute with a burst of a sixth of
// that, refilled evenly.
func PerMinutePolicy(limit int) RateLimitPolicy {
	burst := max(limit/6, 1)
	return RateLimitPolicy{
		SustainedLimit:    limit,
		SustainedWindow:   time.Minute,
		BurstCapacity:     burst,
		BurstRefillPerSec: float64(limit) / 60.0,
	}
}

func normalizePolicy(p RateLimitPolicy) RateLimitPolicy {
	if p.SustainedLimit <= 0 {
		p.SustainedLimit = 1
	}
	if p.SustainedWindow <= 0 {
		p.SustainedWindow = time.Second
	}
	if p.BurstCapacity <= 0 {
		p.BurstCapacity = p.SustainedLimit
	}
	if p.BurstRefillPerSec <= 0 {
		p.BurstRefillPerSec = float64(p.SustainedLimit) / p.SustainedWindow.Seconds()
	}
	return p
}

type localBucket struct {
	tokens float64
	last   time.Time
	hits   []time.Time
}

type localLimiter struct {
	mu      sync.Mutex
	buckets map[string]*localBucket
	now     func() time.Time
	cleanup time.Time
}

// NewLocalLimiter keeps buckets in process memory. It is used when Redis is
// disabled and in tests.
func NewLocalLimiter() Limiter {
	return &localLimiter{buckets: map[string]*localBucket{}, now: time.Now}
}

func (l *localLimiter) Allow(_ context.Context, key string, policy RateLimitPolicy) (Decision, error) {
	policy = normalizePolicy(policy)
	now := l.now()
	l.mu.Lock()
	defer l.mu.Unlock()

	if now.After(l.cleanup) {
		for k, b := range l.buckets {
			if now.Sub(b.last) > 2*policy.SustainedWindow {
				delete(l.buckets, k)
			}
		}
		l.cleanup = now.Add(policy.SustainedWindow)
	}

	b, ok := l.buckets[key]
	if !ok {
		b = &localBucket{tokens: float64(policy.BurstCapacity), last: now}
		l.buckets[key] = b
	}
	elapsed := now.Sub(b.last).Seconds()
	if elapsed > 0 {
		b.tokens = min(float64(policy.BurstCapacity), b.tokens+elapsed*policy.BurstRefillPerSec)
	}
	b.last = now

	windowStart := now.Add(-policy.SustainedWindow)
	kept := b.hits[:0]
	for _, h := range b.hits {
		if h.After(windowStart) {
			kept = append(kept, h)
		}
	}
	b.hits = kept

	if b.tokens >= 1 && len(b.hits) < policy.SustainedLimit {
		b.tokens--
		b.hits = append(b.hits, now)
		return Decision{
			Allowed:    true,
			RetryAfter: time.Millisecond,
			Remaining:  max(min(int(b.tokens), policy.SustainedLimit-len(b.hits)), 0),
			ResetAt:    now.Add(policy.SustainedWindow),
		}, nil
	}

	retry := time.Duration(0)
	if b.tokens < 1 {
		retry = time.Duration((1 - b.tokens) / policy.BurstRefillPerSec * float64(time.Second))
	}
	if len(b.hits) >= policy.SustainedLimit {
		retry = max(retry, b.hits[0].Add(policy.SustainedWindow).Sub(now))
	}
	retry = max(retry, time.Millisecond)
	return Decision{Allowed: false, RetryAfter: retry, Remaining: 0, ResetAt: now.Add(retry)}, nil
}

type RateLimiter struct {
	limiter Limiter
	policy  RateLimitPolicy
	mode    FailureMode
	scope   string
	keyFunc func(r *http.Request) string
	bypass  BypassEvaluator
}

func NewRateLimiter(limiter Limiter, policy RateLimitPolicy, mode FailureMode, scope string, keyFunc func(r *http.Request) string) *RateLimiter {
	if limiter == nil {
		limiter = NewLocalLimiter()
	}
	if scope == "" {
		scope = "api"
	}
	if keyFunc == nil {
		keyFunc = clientIPKey
	}
	return &RateLimiter{
		limiter: limiter,
		policy:  normalizePolicy(policy),
		mode:    mode,
		scope:   scope,
		keyFunc: keyFunc,
	}
}

// WithBypass skips limiting for requests the evaluator matches.
func (rl *RateLimiter) WithBypass(eval BypassEvaluator) *RateLimiter {
	rl.bypass = eval
	return rl
}

func (rl *RateLimiter) Middleware() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if rl.bypass != nil {
				if ok, _ := rl.bypass(r); ok {
					next.ServeHTTP(w, r)
					return
				}
			}
			key := rl.keyFunc(r)
			if key == "" {
				key = clientIPKey(r)
			}
			d, err := rl.limiter.Allow(r.Context(), rl.scope+":"+key, rl.policy)
			if err != nil {
				if rl.mode == FailOpen {
					slog.WarnContext(r.Context(), "rate limiter backend unavailable, allowing request",
						"scope", rl.scope,
						"mode", string(rl.mode),
						"error", err.Error(),
					)
					next.ServeHTTP(w, r)
					return
				}
				w.Header().Set("Retry-After", retryAfterHeader(rl.policy.SustainedWindow))
				response.Error(w, r, http.StatusTooManyRequests, response.CodeRateLimited, "too many requests", nil)
				return
			}
			w.Header().Set("X-RateLimit-Limit", strconv.Itoa(rl.policy.SustainedLimit))
			w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(d.Remaining))
			if !d.Allowed {
				w.Header().Set("Retry-After", retryAfterHeader(d.RetryAfter))
				response.Error(w, r, http.StatusTooManyRequests, response.CodeRateLimited, "too many requests", nil)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// IntakeTokenKeyFunc limits per draft token. The key carries a fingerprint so
// raw tokens never reach the limiter backend.
func IntakeTokenKeyFunc(param string) func(r *http.Request) string {
	return func(r *http.Request) string {
		token := chi.URLParam(r, param)
		if token == "" {
			return ""
		}
		return "draft:" + security.TokenFingerprint(token)
	}
}

func SubjectOrIPKeyFunc(jwtMgr *security.JWTManager) func(r *http.Request) string {
	return func(r *http.Request) string {
		if subject := requestSubject(r, jwtMgr); subject != "" {
			return "sub:" + subject
		}
		return clientIPKey(r)
	}
}

func clientIPKey(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err == nil && host != "" {
		return host
	}
	return r.RemoteAddr
}

func retryAfterHeader(d time.Duration) string {
	if d <= 0 {
		return "1"
	}
	seconds := int(d.Round(time.Second).Seconds())
	if seconds <= 0 {
		seconds = 1
	}
	return strconv.Itoa(seconds)
}
