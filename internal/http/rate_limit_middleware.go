package httpx

import (
	"net"
	"net/http"
	"strings"
	"sync"
	"time"
)

const rateLimiterSweepInterval = 5 * time.Minute

// RateLimiter counts hits per key in fixed windows.
type RateLimiter interface {
	Allow(key string, limit int, window time.Duration) rateDecision
	Close()
}

type rateDecision struct {
	allowed   bool
	count     int
	windowEnd time.Time
}

// rateBudget is the number of requests allowed per window.
type rateBudget struct {
	limit  int
	window time.Duration
}

// ratePolicy holds separate read and write budgets for one route.
type ratePolicy struct {
	read  rateBudget
	write rateBudget
}

func (p ratePolicy) budgetFor(method string) (string, rateBudget) {
	switch method {
	case http.MethodGet, http.MethodHead, http.MethodOptions:
		return "read", p.read
	default:
		return "write", p.write
	}
}

// uniformPolicy applies one budget regardless of method.
func uniformPolicy(b rateBudget) ratePolicy {
	return ratePolicy{read: b, write: b}
}

type memoryRateLimiter struct {
	mu      sync.Mutex
	windows map[string]rateWindow
	now     func() time.Time
	stopCh  chan struct{}
	once    sync.Once
}

type rateWindow struct {
	count int
	ends  time.Time
}

// NewMemoryRateLimiter returns a process-local limiter with a background sweeper.
func NewMemoryRateLimiter() RateLimiter {
	rl := newMemoryRateLimiter(time.Now)
	go rl.sweepLoop()
	return rl
}

func newMemoryRateLimiter(now func() time.Time) *memoryRateLimiter {
	return &memoryRateLimiter{
		windows: make(map[string]rateWindow),
		now:     now,
		stopCh:  make(chan struct{}),
	}
}

func (rl *memoryRateLimiter) Allow(key string, limit int, window time.Duration) rateDecision {
	if limit <= 0 {
		return rateDecision{allowed: true}
	}
	if window <= 0 {
		window = time.Minute
	}
	now := rl.now()
	rl.mu.Lock()
	defer rl.mu.Unlock()

	current, ok := rl.windows[key]
	if !ok || !now.Before(current.ends) {
		current = rateWindow{ends: now.Add(window)}
	}
	if current.count >= limit {
		return rateDecision{allowed: false, count: current.count, windowEnd: current.ends}
	}
	current.count++
	rl.windows[key] = current
	return rateDecision{allowed: true, count: current.count, windowEnd: current.ends}
}

func (rl *memoryRateLimiter) sweepLoop() {
	ticker := time.NewTicker(rateLimiterSweepInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			rl.sweep(rl.now())
		case <-rl.stopCh:
			return
		}
	}
}

func (rl *memoryRateLimiter) sweep(now time.Time) {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	for key, w := range rl.windows {
		if !now.Before(w.ends) {
			delete(rl.windows, key)
		}
	}
}

func (rl *memoryRateLimiter) Close() {
	rl.once.Do(func() {
		close(rl.stopCh)
	})
}

// limit throttles next per (route, read/write, principal). The principal is
// the authenticated user when known, else the client IP.
func (r *Router) limit(route string, policy ratePolicy, next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, req *http.Request) {
		class, budget := policy.budgetFor(req.Method)
		if budget.limit <= 0 || r.limiter == nil {
			next(w, req)
			return
		}
		principal := ratePrincipal(req)
		decision := r.limiter.Allow(rateKey(route, class, principal), budget.limit, budget.window)
		r.applyRateHeaders(w, budget.limit, decision)
		if !decision.allowed {
			kind, _, _ := strings.Cut(principal, ":")
			r.recordRateLimitHit(route, class, kind)
			writeError(w, http.StatusTooManyRequests, "rate limit exceeded")
			return
		}
		next(w, req)
	}
}

// authedLimit authenticates first so the budget is charged to the user.
func (r *Router) authedLimit(route string, policy ratePolicy, next http.HandlerFunc) http.HandlerFunc {
	return r.requireAuth(r.limit(route, policy, next))
}

func rateKey(route, class, principal string) string {
	return route + "|" + class + "|" + principal
}

func ratePrincipal(req *http.Request) string {
	if info, ok := authInfoFromContext(req.Context()); ok && info.UserID != "" {
		return "user:" + info.UserID
	}
	host, _, err := net.SplitHostPort(req.RemoteAddr)
	if err != nil {
		host = req.RemoteAddr
	}
	if host == "" {
		host = "unknown"
	}
	return "ip:" + host
}
