package server

import (
	"net/http"
	"strings"

	"github.com/aristath/splitrelay/internal/tasks"
)

// OwnerHeader carries the owner on whose behalf a request acts.
const OwnerHeader = "X-Owner-ID"

// OwnerMiddleware attaches the request owner to the context. Requests without the header
// act as defaultOwner; with neither, no owner is attached and owner-scoped handlers
// answer 401.
func OwnerMiddleware(defaultOwner string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			owner := strings.TrimSpace(r.Header.Get(OwnerHeader))
			if owner == "" {
				owner = defaultOwner
			}
			if owner != "" {
				r = r.WithContext(tasks.WithOwner(r.Context(), owner))
			}
			next.ServeHTTP(w, r)
		})
	}
}
