package middleware

import (
	"net/http"
	"strings"
)

// The dashboard API only takes GET and POST. Operators identify themselves
// with X-User-ID, and every response carries X-Request-ID for support tickets.
var (
	corsMethods       = strings.Join([]string{http.MethodGet, http.MethodPost, http.MethodOptions}, ", ")
	corsAllowHeaders  = strings.Join([]string{"Accept", "Authorization", "Content-Type", "X-User-ID", "X-Request-ID"}, ", ")
	corsExposeHeaders = "X-Request-ID"
)

// CORS lets the configured dashboard origins call the API from a browser.
// The request Origin is echoed only when it is listed, and never as a
// wildcard alongside credentials. Vendor webhooks arrive server to server
// without an Origin and pass straight through.
func CORS(allowedOrigins []string) func(http.Handler) http.Handler {
	dashboards := make(map[string]bool, len(allowedOrigins))
	for _, origin := range allowedOrigins {
		dashboards[strings.TrimRight(origin, "/")] = true
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			origin := r.Header.Get("Origin")
			allowed := origin != "" && dashboards[origin]

			h := w.Header()
			h.Add("Vary", "Origin")
			if allowed {
				h.Set("Access-Control-Allow-Origin", origin)
				h.Set("Access-Control-Allow-Credentials", "true")
			}
			h.Set("Access-Control-Allow-Methods", corsMethods)
			h.Set("Access-Control-Allow-Headers", corsAllowHeaders)
			h.Set("Access-Control-Expose-Headers", corsExposeHeaders)
			h.Set("Access-Control-Max-Age", "300")

			if r.Method == http.MethodOptions {
				if allowed {
					w.WriteHeader(http.StatusNoContent)
				} else {
					w.WriteHeader(http.StatusForbidden)
				}
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
