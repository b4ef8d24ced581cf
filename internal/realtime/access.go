package realtime

import (
	"context"
	"errors"
	"sync"

	"pet-care-log/internal/apperr"
	"pet-care-log/internal/live"
	"pet-care-log/internal/middleware"
	es "pet-care-log/internal/ports/entitystore"
)

// guarded envuelve el stream de un pet. Un vigilante re-autoriza con cada
// cambio del pet o de la membresía del usuario, y cada emisión de datos se
// autoriza antes de salir. Si el acceso se pierde se envía un frame de error
// y la suscripción termina, lo que cierra la conexión.
func guarded(hub *live.Hub, authz middleware.Authorizer, petID, uid string, min es.Role, open OpenFunc) OpenFunc {
	return func(ctx context.Context, emit func(any, error)) *live.Subscription {
		ctx, cancel := context.WithCancel(ctx)

		var mu sync.Mutex
		revoked := false
		send := func(v any, err error) {
			mu.Lock()
			defer mu.Unlock()
			if !revoked {
				emit(v, err)
			}
		}
		revoke := func(err error) {
			mu.Lock()
			defer mu.Unlock()
			if revoked {
				return
			}
			revoked = true
			emit(nil, err)
			cancel()
		}
		authorize := func(ctx context.Context) error {
			_, err := authz.Authorize(ctx, petID, uid, min)
			return err
		}

		match := live.Any(
			live.Doc(es.CollectionPets, petID, petID),
			live.All(live.PetCollection(es.CollectionMembers, petID), live.MemberOf(uid)),
		)
		guard := live.Watch(ctx, hub, match,
			func(ctx context.Context) (struct{}, error) { return struct{}{}, authorize(ctx) },
			func(_ struct{}, err error) {
				if accessLost(err) {
					revoke(err)
				}
			},
		)

		data := open(ctx, func(v any, err error) {
			if aerr := authorize(ctx); aerr != nil {
				if accessLost(aerr) {
					revoke(aerr)
				} else if ctx.Err() == nil {
					send(nil, aerr)
				}
				return
			}
			send(v, err)
		})

		return live.Join(guard, data)
	}
}

func accessLost(err error) bool {
	return errors.Is(err, apperr.ErrForbidden) ||
		errors.Is(err, apperr.ErrNotFound) ||
		errors.Is(err, apperr.ErrNotAuthenticated)
}
