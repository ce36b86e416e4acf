package main

import (
	"net/http"
	"strings"

	"github.com/xraph/fieldgate"
)

// withBearerRole resolves the bearer token to a role and stores it on the
// request context. Unknown or missing tokens leave the request without a
// role, so role-gated routes answer 401.
func withBearerRole(tokens map[string]string, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
		if ok {
			if roleCode, found := tokens[token]; found {
				ctx := fieldgate.WithRole(r.Context(), roleCode)
				ctx = fieldgate.WithActor(ctx, roleCode)
				r = r.WithContext(ctx)
			}
		}
		next.ServeHTTP(w, r)
	})
}
