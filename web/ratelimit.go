package web

import (
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/andrebq/secrets/internal/logutil"
	"golang.org/x/time/rate"
)

// limiterSet keeps one token bucket per client address.
type limiterSet struct {
	limiters    sync.Map // map[string]*rate.Limiter
	rate        rate.Limit
	burst       int
	mu          sync.Mutex
	lastCleanup time.Time
}

// perMinute returns a middleware allowing n requests per minute for each
// client address. A non positive n disables the limit.
func perMinute(n int) func(http.HandlerFunc) http.HandlerFunc {
	if n <= 0 {
		return func(next http.HandlerFunc) http.HandlerFunc { return next }
	}
	ls := &limiterSet{
		rate:        rate.Limit(float64(n) / time.Minute.Seconds()),
		burst:       n,
		lastCleanup: time.Now(),
	}
	return func(next http.HandlerFunc) http.HandlerFunc {
		return func(w http.ResponseWriter, r *http.Request) {
			key := clientAddr(r)
			if key == "" {
				next(w, r)
				return
			}
			limiter := ls.get(key)
			if !limiter.Allow() {
				reservation := limiter.Reserve()
				delay := reservation.Delay()
				reservation.Cancel()
				retryAfter := max(int(delay.Seconds()), 1)

				log := logutil.GetOrDefault(r.Context())
				log.Warn().Str("client", key).Int("retry_after", retryAfter).Msg("Rate limit exceeded")
				w.Header().Set("Retry-After", strconv.Itoa(retryAfter))
				http.Error(w, "Too many requests, please try again later", http.StatusTooManyRequests)
				return
			}
			next(w, r)
		}
	}
}

func (ls *limiterSet) get(key string) *rate.Limiter {
	if limiter, ok := ls.limiters.Load(key); ok {
		return limiter.(*rate.Limiter)
	}
	actual, _ := ls.limiters.LoadOrStore(key, rate.NewLimiter(ls.rate, ls.burst))
	ls.maybeCleanup()
	return actual.(*rate.Limiter)
}

// maybeCleanup forgets limiters whose bucket is full again.
func (ls *limiterSet) maybeCleanup() {
	ls.mu.Lock()
	defer ls.mu.Unlock()
	if time.Since(ls.lastCleanup) < 5*time.Minute {
		return
	}
	ls.lastCleanup = time.Now()
	ls.limiters.Range(func(key, value any) bool {
		if value.(*rate.Limiter).Tokens() >= float64(ls.burst) {
			ls.limiters.Delete(key)
		}
		return true
	})
}

// clientAddr only trusts the connection address, forwarded headers are
// under the client's control.
func clientAddr(r *http.Request) string {
	ip, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return ip
}
