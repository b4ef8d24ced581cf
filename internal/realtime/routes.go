package realtime

import (
	"context"
	"net/http"
	"time"

	"pet-care-log/internal/apperr"
	"pet-care-log/internal/domain/chat"
	"pet-care-log/internal/domain/logs"
	"pet-care-log/internal/live"
	"pet-care-log/internal/middleware"
	"pet-care-log/internal/platform/httpjson"
	es "pet-care-log/internal/ports/entitystore"

	"github.com/go-chi/chi/v5"
)

// KeyedWatcher abre una suscripción por una clave (uid o petID).
type KeyedWatcher interface {
	WatchResponses(ctx context.Context, key string, emit func(any, error)) *live.Subscription
}

type InvitationWatcher interface {
	WatchInvitations(ctx context.Context, email string, emit func(any, error)) *live.Subscription
}

type Deps struct {
	// Hub alimenta el control de acceso de los streams por pet.
	Hub             *live.Hub
	Authz           middleware.Authorizer
	VisiblePets     KeyedWatcher
	Invitations     InvitationWatcher
	Tasks           KeyedWatcher
	Logs            *logs.Service
	Chat            *chat.Service
	DefaultLocation *time.Location
}

func RegisterRoutes(r chi.Router, s *Streamer, d Deps) {
	viewer := middleware.RequirePetRole(d.Authz, es.RoleViewer)

	r.Get("/ws/me/pets", func(w http.ResponseWriter, r *http.Request) {
		claims, ok := middleware.RequireUser(r)
		if !ok {
			httpjson.WriteError(w, apperr.ErrNotAuthenticated)
			return
		}
		s.Serve(w, r, func(ctx context.Context, emit func(any, error)) *live.Subscription {
			return d.VisiblePets.WatchResponses(ctx, claims.UserID, emit)
		})
	})

	r.Get("/ws/me/invitations", func(w http.ResponseWriter, r *http.Request) {
		claims, ok := middleware.RequireUser(r)
		if !ok {
			httpjson.WriteError(w, apperr.ErrNotAuthenticated)
			return
		}
		s.Serve(w, r, func(ctx context.Context, emit func(any, error)) *live.Subscription {
			return d.Invitations.WatchInvitations(ctx, claims.Email, emit)
		})
	})

	// Acceso verificado en el upgrade y mantenido mientras dure la conexión.
	servePet := func(w http.ResponseWriter, r *http.Request, open OpenFunc) {
		claims, _ := middleware.RequireUser(r)
		petID := chi.URLParam(r, "petID")
		s.Serve(w, r, guarded(d.Hub, d.Authz, petID, claims.UserID, es.RoleViewer, open))
	}

	r.With(viewer).Get("/ws/pets/{petID}/tasks", func(w http.ResponseWriter, r *http.Request) {
		petID := chi.URLParam(r, "petID")
		servePet(w, r, func(ctx context.Context, emit func(any, error)) *live.Subscription {
			return d.Tasks.WatchResponses(ctx, petID, emit)
		})
	})

	r.With(viewer).Get("/ws/pets/{petID}/logs", func(w http.ResponseWriter, r *http.Request) {
		// date/tz se validan antes del upgrade para responder 400
		day, loc, err := logs.ResolveDay(r, d.DefaultLocation, d.Logs.Now())
		if err != nil {
			httpjson.WriteError(w, err)
			return
		}
		petID := chi.URLParam(r, "petID")
		servePet(w, r, func(ctx context.Context, emit func(any, error)) *live.Subscription {
			return d.Logs.WatchDayResponses(ctx, petID, day, loc, emit)
		})
	})

	r.With(viewer).Get("/ws/pets/{petID}/messages", func(w http.ResponseWriter, r *http.Request) {
		limit, err := chat.ParseLimit(r)
		if err != nil {
			httpjson.WriteError(w, err)
			return
		}
		petID := chi.URLParam(r, "petID")
		servePet(w, r, func(ctx context.Context, emit func(any, error)) *live.Subscription {
			return d.Chat.WatchResponses(ctx, petID, limit, emit)
		})
	})
}
