package auth

import (
	"net"
	"net/http"
	"strings"
	"sync"
	"time"
)

// UnknownClientKey is the shared bucket for clients whose network origin
// cannot be determined. Collapsing them into one bucket means they
// cannot bypass throttling individually; the gate can exempt them
// instead via configuration.
const UnknownClientKey = "unknown"

// limiterTTL is the minimum lifetime of idle rate-limit entries. Entries
// older than both the TTL and the throttle window are swept on the next
// limiter call, so a window longer than the TTL is never cut short.
const limiterTTL = 60 * time.Second

// Limiter throttles guest provisioning per client key. ShouldThrottle is
// a pure check; Record marks an attempt. They are separate so the gate
// records only when it actually issues a provisioning redirect.
type Limiter interface {
	ShouldThrottle(key string) bool
	Record(key string)
}

// MemoryLimiter is the process-local Limiter: one map from client key to
// the last provisioning timestamp, guarded by a mutex. Safe for
// concurrent use.
type MemoryLimiter struct {
	window time.Duration
	now    func() time.Time

	mu       sync.Mutex
	lastSeen map[string]time.Time
}

// NewLimiter creates a limiter enforcing one provisioning event per key
// per window.
func NewLimiter(window time.Duration) *MemoryLimiter {
	return &MemoryLimiter{
		window:   window,
		now:      time.Now,
		lastSeen: make(map[string]time.Time),
	}
}

var _ Limiter = (*MemoryLimiter)(nil)

// ShouldThrottle reports whether the key provisioned a guest within the
// window. Stale entries are swept on every call to bound memory.
func (l *MemoryLimiter) ShouldThrottle(key string) bool {
	now := l.now()
	l.mu.Lock()
	defer l.mu.Unlock()
	l.sweep(now)
	last, ok := l.lastSeen[key]
	return ok && now.Sub(last) < l.window
}

// Record marks a provisioning attempt for the key.
func (l *MemoryLimiter) Record(key string) {
	now := l.now()
	l.mu.Lock()
	defer l.mu.Unlock()
	l.sweep(now)
	l.lastSeen[key] = now
}

// sweep removes stale entries. Caller holds the mutex.
func (l *MemoryLimiter) sweep(now time.Time) {
	ttl := limiterTTL
	if l.window > ttl {
		ttl = l.window
	}
	for key, last := range l.lastSeen {
		if now.Sub(last) > ttl {
			delete(l.lastSeen, key)
		}
	}
}

// ClientKey derives the rate-limit bucket key from the request's network
// origin: X-Forwarded-For (first hop), then X-Real-IP, then the remote
// address. Requests with no determinable origin share UnknownClientKey.
func ClientKey(r *http.Request) string {
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		if first := strings.TrimSpace(strings.Split(fwd, ",")[0]); first != "" {
			return first
		}
	}
	if real := r.Header.Get("X-Real-IP"); real != "" {
		return real
	}
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil && host != "" {
		return host
	}
	if r.RemoteAddr != "" {
		return r.RemoteAddr
	}
	return UnknownClientKey
}
