package ratelimit

import (
	"container/list"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// DefaultMaxKeys bounds the number of per-key limiters kept in memory.
const DefaultMaxKeys = 4096

// KeyedLimiter keeps one token bucket per key (typically a client IP). The
// least recently used key is evicted once MaxKeys is reached.
type KeyedLimiter struct {
	limit   rate.Limit
	burst   int
	maxKeys int
	now     func() time.Time

	// OnEvict, if set, runs once per evicted key outside the limiter's lock.
	OnEvict func()

	mu      sync.Mutex
	entries map[string]*keyedEntry
	lru     *list.List
}

type keyedEntry struct {
	limiter *rate.Limiter
	elem    *list.Element
}

// NewPerMinute returns a KeyedLimiter admitting perMinute events per key per
// minute. perMinute <= 0 returns nil; a nil *KeyedLimiter allows everything.
func NewPerMinute(perMinute, maxKeys int) *KeyedLimiter {
	if perMinute <= 0 {
		return nil
	}
	return NewKeyedLimiter(rate.Limit(float64(perMinute)/60), perMinute, maxKeys)
}

func NewKeyedLimiter(limit rate.Limit, burst, maxKeys int) *KeyedLimiter {
	if maxKeys <= 0 {
		maxKeys = DefaultMaxKeys
	}
	return &KeyedLimiter{
		limit:   limit,
		burst:   burst,
		maxKeys: maxKeys,
		now:     time.Now,
		entries: make(map[string]*keyedEntry),
		lru:     list.New(),
	}
}

func (l *KeyedLimiter) Allow(key string) bool {
	if l == nil {
		return true
	}

	var onEvict func()

	l.mu.Lock()
	entry, ok := l.entries[key]
	if ok {
		l.lru.MoveToFront(entry.elem)
	} else {
		if len(l.entries) >= l.maxKeys {
			// Oldest at the back.
			if elem := l.lru.Back(); elem != nil {
				l.lru.Remove(elem)
				delete(l.entries, elem.Value.(string))
				onEvict = l.OnEvict
			}
		}
		entry = &keyedEntry{
			limiter: rate.NewLimiter(l.limit, l.burst),
			elem:    l.lru.PushFront(key),
		}
		l.entries[key] = entry
	}
	allowed := entry.limiter.AllowN(l.now(), 1)
	l.mu.Unlock()

	if onEvict != nil {
		onEvict()
	}
	return allowed
}

// Len returns the number of tracked keys.
func (l *KeyedLimiter) Len() int {
	if l == nil {
		return 0
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.entries)
}

// Middleware rejects requests whose client IP is over its budget with 429.
// onReject, if non-nil, runs for each rejected request.
func (l *KeyedLimiter) Middleware(next http.Handler, onReject func(*http.Request)) http.Handler {
	if l == nil {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !l.Allow(ClientIP(r)) {
			if onReject != nil {
				onReject(r)
			}
			w.Header().Set("Retry-After", "60")
			http.Error(w, "too many requests", http.StatusTooManyRequests)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// ClientIP returns the remote IP of r. X-Forwarded-For is not trusted.
func ClientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(strings.TrimSpace(r.RemoteAddr))
	if err != nil {
		return strings.TrimSpace(r.RemoteAddr)
	}
	return host
}
