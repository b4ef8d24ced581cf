package middleware

import (
	"context"
	"fmt"
	"net/http"

	"pet-care-log/internal/apperr"
	"pet-care-log/internal/platform/httpjson"
	es "pet-care-log/internal/ports/entitystore"

	"github.com/go-chi/chi/v5"
)

const memberKey ctxKey = "member"

// Authorizer resuelve la membresía activa de un usuario en un pet.
type Authorizer interface {
	Authorize(ctx context.Context, petID, uid string, min es.Role) (es.Member, error)
}

// RequirePetRole exige identidad y una membresía active con al menos min en
// el pet de la URL ({petID}).
func RequirePetRole(authz Authorizer, min es.Role) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			claims, ok := RequireUser(r)
			if !ok {
				httpjson.WriteError(w, apperr.ErrNotAuthenticated)
				return
			}

			petID := chi.URLParam(r, "petID")
			m, err := authz.Authorize(r.Context(), petID, claims.UserID, min)
			if err != nil {
				httpjson.WriteError(w, fmt.Errorf("pet %s: %w", petID, err))
				return
			}

			ctx := context.WithValue(r.Context(), memberKey, m)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// GetMember devuelve la membresía resuelta por RequirePetRole.
func GetMember(ctx context.Context) (es.Member, bool) {
	m, ok := ctx.Value(memberKey).(es.Member)
	return m, ok
}
