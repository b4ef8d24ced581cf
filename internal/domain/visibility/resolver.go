// Package visibility resuelve qué pets ve un usuario: las membresías active
// con su uid, unidas a los documentos de pet no borrados.
package visibility

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"pet-care-log/internal/apperr"
	"pet-care-log/internal/live"
	es "pet-care-log/internal/ports/entitystore"

	"go.uber.org/zap"
)

// VisiblePet es un pet visible junto con el rol del usuario en él.
type VisiblePet struct {
	Pet      es.Pet
	Role     es.Role
	MemberID string
}

type Resolver struct {
	store es.Store
	hub   *live.Hub
	log   *zap.Logger
}

func NewResolver(store es.Store, hub *live.Hub, log *zap.Logger) *Resolver {
	if log == nil {
		log = zap.NewNop()
	}
	return &Resolver{store: store, hub: hub, log: log}
}

// VisiblePets es la lectura puntual del conjunto visible.
func (r *Resolver) VisiblePets(ctx context.Context, uid string) ([]VisiblePet, error) {
	if uid == "" {
		return nil, apperr.ErrNotAuthenticated
	}
	ms, err := r.store.ListMembershipsByUID(ctx, uid, es.MemberActive)
	if err != nil {
		return nil, fmt.Errorf("visible pets: %w", err)
	}

	out := make([]VisiblePet, 0, len(ms))
	for _, m := range byPet(ms) {
		p, err := r.store.GetPet(ctx, m.PetID)
		if errors.Is(err, apperr.ErrNotFound) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("visible pets: %w", err)
		}
		if p.Deleted {
			continue
		}
		out = append(out, VisiblePet{Pet: p, Role: m.Role, MemberID: m.ID})
	}
	sortPets(out)
	return out, nil
}

// Watch mantiene el conjunto visible en vivo. Nivel externo: membresías del
// usuario. Nivel interno: una suscripción por pet, abierta y cerrada por un
// SubscriptionSet según cambian las membresías.
//
// Un error del nivel externo emite un conjunto vacío con el error. Un error
// de un pet lo excluye solo a él.
func (r *Resolver) Watch(ctx context.Context, uid string, emit func([]VisiblePet, error)) *live.Subscription {
	w := &watcher{
		emit:    emit,
		members: map[string]es.Member{},
		pets:    map[string]es.Pet{},
		loaded:  map[string]struct{}{},
		pending: map[string]struct{}{},
	}

	w.set = live.NewSubscriptionSet(func(petID string) *live.Subscription {
		return live.Watch(ctx, r.hub, live.Doc(es.CollectionPets, petID, petID),
			func(ctx context.Context) (es.Pet, error) { return r.store.GetPet(ctx, petID) },
			func(p es.Pet, err error) {
				if err != nil && !errors.Is(err, apperr.ErrNotFound) {
					r.log.Warn("pet subscription failed", zap.String("uid", uid),
						zap.String("pet_id", petID), zap.Error(err))
				}
				w.petLoaded(petID, p, err)
			},
		)
	})

	outer := live.Watch(ctx, r.hub, live.MemberOf(uid),
		func(ctx context.Context) ([]es.Member, error) {
			if uid == "" {
				return nil, apperr.ErrNotAuthenticated
			}
			return r.store.ListMembershipsByUID(ctx, uid, es.MemberActive)
		},
		w.membersLoaded,
	)

	// Cerrar la externa también cierra todas las internas.
	go func() {
		<-outer.Done()
		w.set.Close()
	}()
	return outer
}

type watcher struct {
	set  *live.SubscriptionSet
	emit func([]VisiblePet, error)

	mu      sync.Mutex
	members map[string]es.Member
	// pets visibles: cargados, existentes y no borrados.
	pets map[string]es.Pet
	// pets cuya suscripción ya entregó al menos una carga, visibles o no.
	loaded map[string]struct{}
	// pets abiertos que todavía no cargaron: no se emite hasta tenerlos.
	pending map[string]struct{}

	emitMu sync.Mutex
}

func (w *watcher) membersLoaded(ms []es.Member, err error) {
	if err != nil {
		w.mu.Lock()
		w.members = map[string]es.Member{}
		w.pets = map[string]es.Pet{}
		w.loaded = map[string]struct{}{}
		w.pending = map[string]struct{}{}
		w.mu.Unlock()
		w.set.Sync(nil)
		w.fail(err)
		return
	}

	next := map[string]es.Member{}
	keys := make([]string, 0, len(ms))
	for _, m := range byPet(ms) {
		next[m.PetID] = m
		keys = append(keys, m.PetID)
	}

	w.mu.Lock()
	w.members = next
	for id := range w.loaded {
		if _, ok := next[id]; !ok {
			delete(w.loaded, id)
			delete(w.pets, id)
		}
	}
	for id := range w.pending {
		if _, ok := next[id]; !ok {
			delete(w.pending, id)
		}
	}
	for _, id := range keys {
		if _, ok := w.loaded[id]; !ok {
			w.pending[id] = struct{}{}
		}
	}
	w.mu.Unlock()

	// Con pets nuevos publish no emite: la emisión sale del petLoaded que
	// vacíe pending.
	w.set.Sync(keys)
	w.publish()
}

func (w *watcher) petLoaded(petID string, p es.Pet, err error) {
	w.mu.Lock()
	if _, ok := w.members[petID]; !ok {
		w.mu.Unlock()
		return
	}
	delete(w.pending, petID)
	w.loaded[petID] = struct{}{}
	if err != nil || p.Deleted {
		delete(w.pets, petID)
	} else {
		w.pets[petID] = p
	}
	w.mu.Unlock()

	w.publish()
}

func (w *watcher) publish() {
	// emitMu antes que mu: la foto y su emisión salen en el mismo orden.
	w.emitMu.Lock()
	defer w.emitMu.Unlock()

	w.mu.Lock()
	if len(w.pending) > 0 {
		w.mu.Unlock()
		return
	}
	out := make([]VisiblePet, 0, len(w.pets))
	for id, p := range w.pets {
		m := w.members[id]
		out = append(out, VisiblePet{Pet: p, Role: m.Role, MemberID: m.ID})
	}
	w.mu.Unlock()

	sortPets(out)
	w.emit(out, nil)
}

func (w *watcher) fail(err error) {
	w.emitMu.Lock()
	defer w.emitMu.Unlock()
	w.emit([]VisiblePet{}, err)
}

// byPet deja una membresía por pet. Si hay varias, gana el rol más alto.
func byPet(ms []es.Member) []es.Member {
	rank := map[es.Role]int{es.RoleViewer: 1, es.RoleEditor: 2, es.RoleOwner: 3}
	best := map[string]es.Member{}
	for _, m := range ms {
		cur, ok := best[m.PetID]
		if !ok || rank[m.Role] > rank[cur.Role] {
			best[m.PetID] = m
		}
	}
	out := make([]es.Member, 0, len(best))
	for _, m := range best {
		out = append(out, m)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].PetID < out[j].PetID })
	return out
}

func sortPets(ps []VisiblePet) {
	sort.Slice(ps, func(i, j int) bool {
		if ps[i].Pet.Name != ps[j].Pet.Name {
			return ps[i].Pet.Name < ps[j].Pet.Name
		}
		return ps[i].Pet.ID < ps[j].Pet.ID
	})
}
