package middleware

import (
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"
)

type window struct {
	hits    int
	resetAt time.Time
}

// RateLimiter counts requests per client key in fixed windows.
type RateLimiter struct {
	mu      sync.Mutex
	clients map[string]*window
	limit   int
	period  time.Duration
	now     func() time.Time
}

// NewRateLimiter allows limit requests per period for each client address.
func NewRateLimiter(limit int, period time.Duration) *RateLimiter {
	rl := &RateLimiter{
		clients: make(map[string]*window),
		limit:   limit,
		period:  period,
		now:     time.Now,
	}
	go func() {
		ticker := time.NewTicker(period)
		defer ticker.Stop()
		for range ticker.C {
			rl.expire()
		}
	}()
	return rl
}

func (rl *RateLimiter) expire() {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	now := rl.now()
	for key, w := range rl.clients {
		if !now.Before(w.resetAt) {
			delete(rl.clients, key)
		}
	}
}

// Allow records a hit for key and reports whether it is within the limit,
// together with the end of the current window.
func (rl *RateLimiter) Allow(key string) (bool, time.Time) {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	now := rl.now()
	w, ok := rl.clients[key]
	if !ok || !now.Before(w.resetAt) {
		w = &window{resetAt: now.Add(rl.period)}
		rl.clients[key] = w
	}
	w.hits++
	return w.hits <= rl.limit, w.resetAt
}

// RateLimitEntry is one throttled client.
type RateLimitEntry struct {
	Client  string    `json:"client"`
	Hits    int       `json:"hits"`
	Blocked bool      `json:"blocked"`
	ResetAt time.Time `json:"reset_at"`
}

// RateLimitStatus is returned by the admin API.
type RateLimitStatus struct {
	Limit   int              `json:"limit"`
	Window  string           `json:"window"`
	Entries []RateLimitEntry `json:"entries"`
}

func (rl *RateLimiter) Status() RateLimitStatus {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.now()
	st := RateLimitStatus{Limit: rl.limit, Window: rl.period.String(), Entries: []RateLimitEntry{}}
	for key, w := range rl.clients {
		if now.Before(w.resetAt) {
			st.Entries = append(st.Entries, RateLimitEntry{
				Client:  key,
				Hits:    w.hits,
				Blocked: w.hits > rl.limit,
				ResetAt: w.resetAt,
			})
		}
	}
	return st
}

// Clear forgets every client.
func (rl *RateLimiter) Clear() {
	rl.mu.Lock()
	rl.clients = make(map[string]*window)
	rl.mu.Unlock()
}

// clientKey is the request's address without the port. RealIP runs first
// and replaces RemoteAddr with the forwarded address.
func clientKey(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

// Handler rejects requests over the limit with 429 and Retry-After.
func (rl *RateLimiter) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ok, resetAt := rl.Allow(clientKey(r))
		if !ok {
			wait := int(resetAt.Sub(rl.now()).Seconds()) + 1
			w.Header().Set("Retry-After", strconv.Itoa(wait))
			writeError(w, "too many requests, try again later", http.StatusTooManyRequests)
			return
		}
		next.ServeHTTP(w, r)
	})
}
