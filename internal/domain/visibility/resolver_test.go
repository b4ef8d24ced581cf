package visibility

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"pet-care-log/internal/adapters/storage/memory"
	"pet-care-log/internal/apperr"
	"pet-care-log/internal/live"
	es "pet-care-log/internal/ports/entitystore"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type snapshot struct {
	names []string
	err   error
}

type env struct {
	store *live.PublishingStore
	hub   *live.Hub
	res   *Resolver
}

func newEnv() env {
	hub := live.NewHub(nil)
	store := live.NewPublishingStore(memory.NewStore(), hub)
	return env{store: store, hub: hub, res: NewResolver(store, hub, nil)}
}

func (e env) commit(t *testing.T, muts ...es.Mutation) {
	t.Helper()
	require.NoError(t, e.store.Commit(context.Background(), es.NewBatch().Add(muts...)))
}

func pet(id, name string) es.PutPet {
	return es.PutPet{Pet: es.Pet{ID: id, Name: name}}
}

func member(petID, id, uid string, role es.Role, st es.MemberStatus) es.PutMember {
	return es.PutMember{Member: es.Member{ID: id, PetID: petID, UID: uid, Role: role, Status: st}}
}

func collect(t *testing.T, e env, uid string) (<-chan snapshot, *live.Subscription) {
	t.Helper()
	ch := make(chan snapshot, 32)
	sub := e.res.Watch(context.Background(), uid, func(v []VisiblePet, err error) {
		names := make([]string, 0, len(v))
		for _, p := range v {
			names = append(names, p.Pet.Name)
		}
		ch <- snapshot{names: names, err: err}
	})
	t.Cleanup(sub.Close)
	return ch, sub
}

// next espera hasta ver el conjunto want.
func next(t *testing.T, ch <-chan snapshot, want ...string) snapshot {
	t.Helper()
	if want == nil {
		want = []string{}
	}
	deadline := time.After(2 * time.Second)
	for {
		select {
		case s := <-ch:
			if assert.ObjectsAreEqual(want, s.names) {
				return s
			}
		case <-deadline:
			t.Fatalf("timeout waiting for %v", want)
			return snapshot{}
		}
	}
}

func TestWatch_InviteAcceptRevoke(t *testing.T) {
	e := newEnv()
	e.commit(t, pet("p1", "Mochi"), member("p1", "o1", "u1", es.RoleOwner, es.MemberActive))

	owner, _ := collect(t, e, "u1")
	next(t, owner, "Mochi")

	guest, _ := collect(t, e, "u2")
	next(t, guest)

	// pending no da visibilidad.
	e.commit(t, es.PutMember{Member: es.Member{ID: "m2", PetID: "p1", Role: es.RoleViewer,
		Status: es.MemberPending, InviteEmail: "u2@example.com"}})

	e.commit(t, es.SetMemberStatus{PetID: "p1", MemberID: "m2", Status: es.MemberActive, UID: "u2", At: time.Now()})
	next(t, guest, "Mochi")

	before := e.hub.Listeners()
	e.commit(t, es.DeleteMember{PetID: "p1", MemberID: "m2", UID: "u2"})
	next(t, guest)

	// La suscripción interna del pet se cerró.
	require.Eventually(t, func() bool { return e.hub.Listeners() == before-1 }, 2*time.Second, 10*time.Millisecond)
}

func TestWatch_PetRenameAndSoftDelete(t *testing.T) {
	e := newEnv()
	e.commit(t,
		pet("p1", "Mochi"), member("p1", "o1", "u1", es.RoleOwner, es.MemberActive),
		pet("p2", "Bolt"), member("p2", "o2", "u1", es.RoleOwner, es.MemberActive),
	)

	ch, _ := collect(t, e, "u1")
	next(t, ch, "Bolt", "Mochi")

	name := "Apolo"
	e.commit(t, es.PatchPet{PetID: "p2", Patch: es.PetPatch{Name: &name}, At: time.Now()})
	next(t, ch, "Apolo", "Mochi")

	e.commit(t, es.SoftDeletePet{PetID: "p1", At: time.Now()})
	next(t, ch, "Apolo")
}

func TestWatch_KeepsUpdatingAfterPetDeleted(t *testing.T) {
	e := newEnv()
	e.commit(t,
		pet("p1", "Mochi"), member("p1", "o1", "u1", es.RoleOwner, es.MemberActive),
		pet("p2", "Kuro"), member("p2", "o2", "u1", es.RoleOwner, es.MemberActive),
	)

	ch, _ := collect(t, e, "u1")
	next(t, ch, "Kuro", "Mochi")

	// La membresía de p1 sigue active aunque el pet esté borrado.
	e.commit(t, es.SoftDeletePet{PetID: "p1", At: time.Now()})
	next(t, ch, "Kuro")

	e.commit(t, pet("p3", "Tama"), member("p3", "o3", "u1", es.RoleOwner, es.MemberActive))
	next(t, ch, "Kuro", "Tama")

	name := "Kurito"
	e.commit(t, es.PatchPet{PetID: "p2", Patch: es.PetPatch{Name: &name}, At: time.Now()})
	next(t, ch, "Kurito", "Tama")

	e.commit(t, es.DeleteMember{PetID: "p3", MemberID: "o3", UID: "u1"})
	next(t, ch, "Kurito")
}

func TestWatch_MissingPetDoesNotBlock(t *testing.T) {
	e := newEnv()
	e.commit(t,
		member("ghost", "o0", "u1", es.RoleViewer, es.MemberActive),
		pet("p1", "Mochi"), member("p1", "o1", "u1", es.RoleOwner, es.MemberActive),
	)

	ch, _ := collect(t, e, "u1")
	next(t, ch, "Mochi")

	e.commit(t, pet("p2", "Bolt"), member("p2", "o2", "u1", es.RoleViewer, es.MemberActive))
	next(t, ch, "Bolt", "Mochi")
}

func TestWatch_IgnoresOtherUsersMemberships(t *testing.T) {
	e := newEnv()
	e.commit(t, pet("p1", "Mochi"), member("p1", "o1", "u1", es.RoleOwner, es.MemberActive))

	var loads atomic.Int32
	sub := e.res.Watch(context.Background(), "u1", func([]VisiblePet, error) { loads.Add(1) })
	t.Cleanup(sub.Close)
	require.Eventually(t, func() bool { return loads.Load() == 1 }, 2*time.Second, 10*time.Millisecond)

	e.commit(t, pet("p2", "Bolt"), member("p2", "o2", "u9", es.RoleOwner, es.MemberActive))
	e.commit(t, es.PutMember{Member: es.Member{ID: "m3", PetID: "p1", Role: es.RoleViewer,
		Status: es.MemberPending, InviteEmail: "u3@example.com"}})

	assert.Never(t, func() bool { return loads.Load() > 1 }, 200*time.Millisecond, 10*time.Millisecond)
}

func TestWatch_CloseReleasesAllListeners(t *testing.T) {
	e := newEnv()
	e.commit(t,
		pet("p1", "Mochi"), member("p1", "o1", "u1", es.RoleOwner, es.MemberActive),
		pet("p2", "Bolt"), member("p2", "o2", "u1", es.RoleViewer, es.MemberActive),
	)

	ch, sub := collect(t, e, "u1")
	next(t, ch, "Bolt", "Mochi")
	assert.Equal(t, 3, e.hub.Listeners())

	sub.Close()
	require.Eventually(t, func() bool { return e.hub.Listeners() == 0 }, 2*time.Second, 10*time.Millisecond)
}

type failingStore struct {
	es.Store
	failMemberships bool
	failPet         string
}

func (f *failingStore) ListMembershipsByUID(ctx context.Context, uid string, st es.MemberStatus) ([]es.Member, error) {
	if f.failMemberships {
		return nil, apperr.Transient(errors.New("connection reset"))
	}
	return f.Store.ListMembershipsByUID(ctx, uid, st)
}

func (f *failingStore) GetPet(ctx context.Context, id string) (es.Pet, error) {
	if id == f.failPet {
		return es.Pet{}, apperr.Transient(errors.New("timeout"))
	}
	return f.Store.GetPet(ctx, id)
}

func TestWatch_FailureModes(t *testing.T) {
	hub := live.NewHub(nil)
	mem := memory.NewStore()
	fs := &failingStore{Store: mem, failPet: "p2"}
	store := live.NewPublishingStore(fs, hub)
	e := env{store: store, hub: hub, res: NewResolver(fs, hub, nil)}

	e.commit(t,
		pet("p1", "Mochi"), member("p1", "o1", "u1", es.RoleOwner, es.MemberActive),
		pet("p2", "Bolt"), member("p2", "o2", "u1", es.RoleOwner, es.MemberActive),
	)

	// Un pet que falla queda fuera, el resto se ve.
	ch, _ := collect(t, e, "u1")
	s := next(t, ch, "Mochi")
	assert.NoError(t, s.err)

	// Falla la query de membresías: conjunto vacío con error.
	fs.failMemberships = true
	e.commit(t, member("p3", "o3", "u1", es.RoleOwner, es.MemberActive))
	s = next(t, ch)
	assert.ErrorIs(t, s.err, apperr.ErrTransientStore)
}

func TestWatch_NoIdentityFailsClosed(t *testing.T) {
	e := newEnv()
	ch, _ := collect(t, e, "")
	s := next(t, ch)
	assert.ErrorIs(t, s.err, apperr.ErrNotAuthenticated)
}

func TestVisiblePets_OneShot(t *testing.T) {
	e := newEnv()
	e.commit(t,
		pet("p1", "Mochi"), member("p1", "o1", "u1", es.RoleOwner, es.MemberActive),
		pet("p2", "Bolt"), member("p2", "m2", "u1", es.RoleViewer, es.MemberActive),
		pet("p3", "Kuro"), member("p3", "m3", "u1", es.RoleViewer, es.MemberDeclined),
		pet("p4", "Nube"), member("p4", "m4", "u1", es.RoleViewer, es.MemberActive),
		es.SoftDeletePet{PetID: "p4", At: time.Now()},
	)

	got, err := e.res.VisiblePets(context.Background(), "u1")
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "Bolt", got[0].Pet.Name)
	assert.Equal(t, es.RoleViewer, got[0].Role)
	assert.Equal(t, "Mochi", got[1].Pet.Name)
	assert.Equal(t, es.RoleOwner, got[1].Role)

	_, err = e.res.VisiblePets(context.Background(), "")
	assert.ErrorIs(t, err, apperr.ErrNotAuthenticated)
}
