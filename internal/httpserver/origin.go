package httpserver

import (
	"net/http"

	"github.com/rs/cors"

	"github.com/wilsonzlin/aero/proxy/meet-signaling/internal/origin"
)

// originMiddleware rejects browser requests from origins the policy does not
// allow. Requests without an Origin header pass through.
func originMiddleware(policy origin.Policy) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !policy.Allow(r) {
				http.Error(w, "forbidden", http.StatusForbidden)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// corsMiddleware answers preflights and sets CORS response headers for
// allowed origins. Enforcement is left to originMiddleware and the WebSocket
// upgrader; a disallowed origin simply gets no CORS headers here.
func corsMiddleware(policy origin.Policy) Middleware {
	c := cors.New(cors.Options{
		AllowOriginRequestFunc: policy.AllowOrigin,
		AllowedMethods:         []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders:         []string{"Authorization", "Content-Type", "X-API-Key", "X-Request-ID"},
		ExposedHeaders:         []string{"X-Request-ID"},
		AllowCredentials:       true,
		MaxAge:                 600,
	})
	return c.Handler
}
