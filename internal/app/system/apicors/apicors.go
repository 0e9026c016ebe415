// internal/app/system/apicors/apicors.go

// Package apicors provides the CORS middleware for the JSON API group.
// Session ids and signed download tokens carry their own authorization,
// so the API answers any origin without credentials. Cookies are
// same-origin only; a cross-origin caller acts as an anonymous client.
package apicors

import "net/http"

// Middleware allows any origin without credentials and answers
// preflight requests directly.
func Middleware() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Access-Control-Allow-Origin", "*")
			w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
			w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Accept")
			w.Header().Set("Access-Control-Max-Age", "86400")

			if r.Method == http.MethodOptions {
				w.WriteHeader(http.StatusNoContent)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
