package middleware

import (
	"context"
	"net/http"

	"pet-care-log/internal/ports/auth"

	"go.uber.org/zap"
)

// ProfileSyncer reconcilia el perfil del usuario con su identidad.
type ProfileSyncer interface {
	Sync(ctx context.Context, c auth.Claims) error
}

// ProfileSync sincroniza el perfil en cada request autenticado. Un fallo se
// loguea y no corta el request.
func ProfileSync(s ProfileSyncer, log *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if c, ok := RequireUser(r); ok {
				if err := s.Sync(r.Context(), c); err != nil {
					log.Warn("profile sync failed", zap.String("uid", c.UserID), zap.Error(err))
				}
			}
			next.ServeHTTP(w, r)
		})
	}
}
