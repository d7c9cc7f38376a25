package httpapi

import (
	"container/list"
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/dmitrijs2005/spa-auth/internal/server/telemetry"
	"golang.org/x/time/rate"
)

const defaultMaxLimiterEntries = 10000

type limiterEntry struct {
	key     string
	limiter *rate.Limiter
}

// RateLimiter allows n requests per window for each client key. Keys are
// kept in an LRU list so memory stays bounded.
type RateLimiter struct {
	mu         sync.Mutex
	entries    map[string]*list.Element
	lru        *list.List
	limit      rate.Limit
	burst      int
	window     time.Duration
	maxEntries int
	now        func() time.Time
}

func NewRateLimiter(n int, window time.Duration) *RateLimiter {
	return &RateLimiter{
		entries:    make(map[string]*list.Element),
		lru:        list.New(),
		limit:      rate.Every(window / time.Duration(n)),
		burst:      n,
		window:     window,
		maxEntries: defaultMaxLimiterEntries,
		now:        time.Now,
	}
}

// Allow consumes one request for key.
func (rl *RateLimiter) Allow(key string) bool {
	now := rl.now()

	rl.mu.Lock()
	defer rl.mu.Unlock()

	if elem, ok := rl.entries[key]; ok {
		rl.lru.MoveToFront(elem)
		return elem.Value.(*limiterEntry).limiter.AllowN(now, 1)
	}

	if rl.maxEntries > 0 && rl.lru.Len() >= rl.maxEntries {
		if back := rl.lru.Back(); back != nil {
			rl.lru.Remove(back)
			delete(rl.entries, back.Value.(*limiterEntry).key)
		}
	}

	entry := &limiterEntry{key: key, limiter: rate.NewLimiter(rl.limit, rl.burst)}
	rl.entries[key] = rl.lru.PushFront(entry)
	return entry.limiter.AllowN(now, 1)
}

// Len returns the number of tracked keys.
func (rl *RateLimiter) Len() int {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	return rl.lru.Len()
}

// Throttle rejects requests over the limiter's budget with 429.
func Throttle(limiter *RateLimiter, name string, metrics *telemetry.Metrics) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !limiter.Allow(clientIP(r)) {
				metrics.RecordRateLimitExceeded(r.Context(), name)
				w.Header().Set("Retry-After", strconv.Itoa(int(limiter.window.Seconds())))
				writeMessage(w, http.StatusTooManyRequests, "Too many requests. Please wait before retrying.")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// clientIP uses the connection address only; forwarding headers are not
// trusted.
func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
