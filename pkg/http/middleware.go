// Package http pkg/http/middleware.go
package http

import (
	"net/http"

	"github.com/carverauto/fleettrace/pkg/models"
)

// CommonMiddleware applies CORS headers and answers preflight requests.
func CommonMiddleware(next http.Handler, cors models.CORSConfig) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		origin := "*"

		if len(cors.AllowedOrigins) > 0 {
			origin = cors.AllowedOrigins[0]

			for _, allowed := range cors.AllowedOrigins {
				if allowed == r.Header.Get("Origin") {
					origin = allowed
					break
				}
			}
		}

		w.Header().Set("Access-Control-Allow-Origin", origin)
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, PATCH, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
		w.Header().Set("Access-Control-Max-Age", "3600")

		if cors.AllowCredentials {
			w.Header().Set("Access-Control-Allow-Credentials", "true")
		}

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}
