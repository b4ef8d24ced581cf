package members

import (
	"context"
	"fmt"
	"testing"
	"time"

	"pet-care-log/internal/adapters/storage/memory"
	"pet-care-log/internal/apperr"
	"pet-care-log/internal/live"
	es "pet-care-log/internal/ports/entitystore"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fixture struct {
	store *memory.Store
	hub   *live.Hub
	svc   *Service
}

func newFixture(t *testing.T) fixture {
	t.Helper()
	store := memory.NewStore()
	hub := live.NewHub(nil)
	svc := NewService(live.NewPublishingStore(store, hub), hub, nil)

	seq := 0
	svc.newID = func() string { seq++; return fmt.Sprintf("m%d", seq) }
	svc.now = func() time.Time { return time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC) }
	return fixture{store: store, hub: hub, svc: svc}
}

func (f fixture) seedPet(t *testing.T, petID, ownerUID string) {
	t.Helper()
	now := time.Now()
	require.NoError(t, f.store.Commit(context.Background(), es.NewBatch().Add(
		es.PutPet{Pet: es.Pet{ID: petID, Name: "Mochi", CreatedBy: ownerUID, CreatedAt: now, UpdatedAt: now}},
		es.PutMember{Member: es.Member{ID: "owner-" + petID, PetID: petID, UID: ownerUID,
			Role: es.RoleOwner, Status: es.MemberActive, CreatedAt: now, UpdatedAt: now}},
	)))
}

func TestInvite_DefaultsToPendingViewer(t *testing.T) {
	f := newFixture(t)
	f.seedPet(t, "p1", "u1")
	ctx := context.Background()

	m, err := f.svc.Invite(ctx, "p1", "u1", " U2@Example.com ", "")
	require.NoError(t, err)
	assert.Equal(t, es.MemberPending, m.Status)
	assert.Equal(t, es.RoleViewer, m.Role)
	assert.Equal(t, "u2@example.com", m.InviteEmail)
	assert.Equal(t, "u1", m.InvitedBy)
	assert.Empty(t, m.UID)

	_, err = f.svc.Invite(ctx, "p1", "", "u2@example.com", "")
	assert.ErrorIs(t, err, apperr.ErrNotAuthenticated)

	_, err = f.svc.Invite(ctx, "p1", "u1", "u2@example.com", es.RoleOwner)
	assert.ErrorIs(t, err, apperr.ErrValidation)

	_, err = f.svc.Invite(ctx, "missing", "u1", "u2@example.com", "")
	assert.ErrorIs(t, err, apperr.ErrNotFound)
}

// Invitar dos veces al mismo email deja dos filas pending; no se deduplica.
func TestInvite_DuplicateInvitesAreKept(t *testing.T) {
	f := newFixture(t)
	f.seedPet(t, "p1", "u1")
	ctx := context.Background()

	a, err := f.svc.Invite(ctx, "p1", "u1", "u2@example.com", "")
	require.NoError(t, err)
	b, err := f.svc.Invite(ctx, "p1", "u1", "u2@example.com", "")
	require.NoError(t, err)
	assert.NotEqual(t, a.ID, b.ID)

	inv, err := f.svc.ListPendingInvitations(ctx, "u2@example.com")
	require.NoError(t, err)
	assert.Len(t, inv, 2)
}

func TestRespond_AcceptSetsUIDAtomically(t *testing.T) {
	f := newFixture(t)
	f.seedPet(t, "p1", "u1")
	ctx := context.Background()

	m, err := f.svc.Invite(ctx, "p1", "u1", "u2@example.com", es.RoleEditor)
	require.NoError(t, err)

	got, err := f.svc.Respond(ctx, "p1", m.ID, "u2", "u2@example.com", DecisionAccept)
	require.NoError(t, err)
	assert.Equal(t, es.MemberActive, got.Status)
	assert.Equal(t, "u2", got.UID)

	stored, err := f.store.GetMember(ctx, "p1", m.ID)
	require.NoError(t, err)
	assert.Equal(t, es.MemberActive, stored.Status)
	assert.Equal(t, "u2", stored.UID)

	inv, err := f.svc.ListPendingInvitations(ctx, "u2@example.com")
	require.NoError(t, err)
	assert.Empty(t, inv)

	// Repetir la aceptación es un no-op.
	_, err = f.svc.Respond(ctx, "p1", m.ID, "u2", "u2@example.com", DecisionAccept)
	assert.NoError(t, err)

	// active -> declined no existe.
	_, err = f.svc.Respond(ctx, "p1", m.ID, "u2", "u2@example.com", DecisionDecline)
	assert.ErrorIs(t, err, apperr.ErrInvalidTransition)
}

func TestRespond_DeclineTwiceIsNoop(t *testing.T) {
	f := newFixture(t)
	f.seedPet(t, "p1", "u1")
	ctx := context.Background()

	m, err := f.svc.Invite(ctx, "p1", "u1", "u2@example.com", "")
	require.NoError(t, err)

	for i := 0; i < 2; i++ {
		got, err := f.svc.Respond(ctx, "p1", m.ID, "u2", "u2@example.com", DecisionDecline)
		require.NoError(t, err)
		assert.Equal(t, es.MemberDeclined, got.Status)
		assert.Empty(t, got.UID)
	}

	// declined es terminal.
	_, err = f.svc.Respond(ctx, "p1", m.ID, "u2", "u2@example.com", DecisionAccept)
	assert.ErrorIs(t, err, apperr.ErrInvalidTransition)
}

func TestRespond_Errors(t *testing.T) {
	f := newFixture(t)
	f.seedPet(t, "p1", "u1")
	ctx := context.Background()

	m, err := f.svc.Invite(ctx, "p1", "u1", "u2@example.com", "")
	require.NoError(t, err)

	_, err = f.svc.Respond(ctx, "p1", m.ID, "", "u2@example.com", DecisionAccept)
	assert.ErrorIs(t, err, apperr.ErrNotAuthenticated)

	_, err = f.svc.Respond(ctx, "p1", m.ID, "u3", "u3@example.com", DecisionAccept)
	assert.ErrorIs(t, err, apperr.ErrForbidden)

	_, err = f.svc.Respond(ctx, "p1", m.ID, "u2", "u2@example.com", es.MemberRemoved)
	assert.ErrorIs(t, err, apperr.ErrValidation)

	_, err = f.svc.Respond(ctx, "p1", "nope", "u2", "u2@example.com", DecisionAccept)
	assert.ErrorIs(t, err, apperr.ErrNotFound)
}

// answerOnRead aplica otra respuesta justo después de que Respond lee la fila,
// como si el invitado contestara a la vez desde otro dispositivo.
type answerOnRead struct {
	es.Store
	answer func()
}

func (a *answerOnRead) GetMember(ctx context.Context, petID, memberID string) (es.Member, error) {
	m, err := a.Store.GetMember(ctx, petID, memberID)
	if a.answer != nil {
		a.answer()
		a.answer = nil
	}
	return m, err
}

func TestRespond_ConcurrentAnswersKeepStateMachine(t *testing.T) {
	f := newFixture(t)
	f.seedPet(t, "p1", "u1")
	ctx := context.Background()

	m, err := f.svc.Invite(ctx, "p1", "u1", "u2@example.com", "")
	require.NoError(t, err)

	store := &answerOnRead{Store: f.store}
	svc := NewService(store, f.hub, nil)
	store.answer = func() {
		_, err := f.svc.Respond(ctx, "p1", m.ID, "u2", "u2@example.com", DecisionAccept)
		require.NoError(t, err)
	}

	_, err = svc.Respond(ctx, "p1", m.ID, "u2", "u2@example.com", DecisionDecline)
	require.ErrorIs(t, err, apperr.ErrInvalidTransition)

	stored, err := f.store.GetMember(ctx, "p1", m.ID)
	require.NoError(t, err)
	assert.Equal(t, es.MemberActive, stored.Status)
	assert.Equal(t, "u2", stored.UID)
}

func TestRespond_ConcurrentSameDecisionIsNoop(t *testing.T) {
	f := newFixture(t)
	f.seedPet(t, "p1", "u1")
	ctx := context.Background()

	m, err := f.svc.Invite(ctx, "p1", "u1", "u2@example.com", "")
	require.NoError(t, err)

	store := &answerOnRead{Store: f.store}
	svc := NewService(store, f.hub, nil)
	store.answer = func() {
		_, err := f.svc.Respond(ctx, "p1", m.ID, "u2", "u2@example.com", DecisionDecline)
		require.NoError(t, err)
	}

	got, err := svc.Respond(ctx, "p1", m.ID, "u2", "u2@example.com", DecisionDecline)
	require.NoError(t, err)
	assert.Equal(t, es.MemberDeclined, got.Status)
	assert.Empty(t, got.UID)
}

func TestRemove_HardDeletesRow(t *testing.T) {
	f := newFixture(t)
	f.seedPet(t, "p1", "u1")
	ctx := context.Background()

	m, err := f.svc.Invite(ctx, "p1", "u1", "u2@example.com", "")
	require.NoError(t, err)
	_, err = f.svc.Respond(ctx, "p1", m.ID, "u2", "u2@example.com", DecisionAccept)
	require.NoError(t, err)

	require.NoError(t, f.svc.Remove(ctx, "p1", m.ID))
	_, err = f.store.GetMember(ctx, "p1", m.ID)
	assert.ErrorIs(t, err, apperr.ErrNotFound)

	_, err = f.svc.Authorize(ctx, "p1", "u2", es.RoleViewer)
	assert.ErrorIs(t, err, apperr.ErrForbidden)

	err = f.svc.Remove(ctx, "p1", "owner-p1")
	assert.ErrorIs(t, err, apperr.ErrInvalidTransition)
}

func TestAuthorize_RoleLadder(t *testing.T) {
	f := newFixture(t)
	f.seedPet(t, "p1", "u1")
	ctx := context.Background()

	m, err := f.svc.Invite(ctx, "p1", "u1", "v@example.com", es.RoleViewer)
	require.NoError(t, err)

	// pending todavía no autoriza.
	_, err = f.svc.Authorize(ctx, "p1", "v", es.RoleViewer)
	assert.ErrorIs(t, err, apperr.ErrForbidden)

	_, err = f.svc.Respond(ctx, "p1", m.ID, "v", "v@example.com", DecisionAccept)
	require.NoError(t, err)

	_, err = f.svc.Authorize(ctx, "p1", "v", es.RoleViewer)
	assert.NoError(t, err)
	_, err = f.svc.Authorize(ctx, "p1", "v", es.RoleEditor)
	assert.ErrorIs(t, err, apperr.ErrForbidden)

	_, err = f.svc.UpdateRole(ctx, "p1", m.ID, es.RoleEditor)
	require.NoError(t, err)
	_, err = f.svc.Authorize(ctx, "p1", "v", es.RoleEditor)
	assert.NoError(t, err)

	_, err = f.svc.Authorize(ctx, "p1", "u1", es.RoleOwner)
	assert.NoError(t, err)
	_, err = f.svc.Authorize(ctx, "p1", "", es.RoleViewer)
	assert.ErrorIs(t, err, apperr.ErrNotAuthenticated)

	_, err = f.svc.UpdateRole(ctx, "p1", "owner-p1", es.RoleViewer)
	assert.ErrorIs(t, err, apperr.ErrInvalidTransition)
}

func TestListPendingInvitations_SkipsDeletedPets(t *testing.T) {
	f := newFixture(t)
	f.seedPet(t, "p1", "u1")
	f.seedPet(t, "p2", "u1")
	ctx := context.Background()

	_, err := f.svc.Invite(ctx, "p1", "u1", "u2@example.com", "")
	require.NoError(t, err)
	_, err = f.svc.Invite(ctx, "p2", "u1", "u2@example.com", "")
	require.NoError(t, err)

	require.NoError(t, f.store.Commit(ctx, es.NewBatch().Add(es.SoftDeletePet{PetID: "p2", At: time.Now()})))

	inv, err := f.svc.ListPendingInvitations(ctx, "u2@example.com")
	require.NoError(t, err)
	require.Len(t, inv, 1)
	assert.Equal(t, "p1", inv[0].Pet.ID)

	inv, err = f.svc.ListPendingInvitations(ctx, "")
	require.NoError(t, err)
	assert.Empty(t, inv)
}

func TestWatchPendingInvitations_Updates(t *testing.T) {
	f := newFixture(t)
	f.seedPet(t, "p1", "u1")
	ctx := context.Background()

	got := make(chan int, 8)
	sub := f.svc.WatchPendingInvitations(ctx, "u2@example.com", func(items []Invitation, err error) {
		assert.NoError(t, err)
		got <- len(items)
	})
	defer sub.Close()

	assert.Equal(t, 0, <-got)

	m, err := f.svc.Invite(ctx, "p1", "u1", "u2@example.com", "")
	require.NoError(t, err)
	assert.Equal(t, 1, waitFor(t, got, 1))

	_, err = f.svc.Respond(ctx, "p1", m.ID, "u2", "u2@example.com", DecisionAccept)
	require.NoError(t, err)
	assert.Equal(t, 0, waitFor(t, got, 0))
}

func TestWatchPendingInvitations_IgnoresOtherEmailsAndPets(t *testing.T) {
	f := newFixture(t)
	f.seedPet(t, "p1", "u1")
	f.seedPet(t, "p2", "u1")
	ctx := context.Background()

	_, err := f.svc.Invite(ctx, "p1", "u1", "u2@example.com", "")
	require.NoError(t, err)

	got := make(chan int, 16)
	sub := f.svc.WatchPendingInvitations(ctx, "u2@example.com", func(items []Invitation, err error) {
		assert.NoError(t, err)
		got <- len(items)
	})
	defer sub.Close()
	assert.Equal(t, 1, <-got)

	// Invitaciones a otro email y cambios de un pet sin invitación no recargan.
	_, err = f.svc.Invite(ctx, "p2", "u1", "u3@example.com", "")
	require.NoError(t, err)
	name := "Bolt"
	require.NoError(t, f.svc.store.Commit(ctx, es.NewBatch().Add(
		es.PatchPet{PetID: "p2", Patch: es.PetPatch{Name: &name}, At: time.Now()},
	)))
	select {
	case n := <-got:
		t.Fatalf("unexpected reload with %d invitations", n)
	case <-time.After(100 * time.Millisecond):
	}

	// Borrar el pet invitado sí recarga.
	require.NoError(t, f.svc.store.Commit(ctx, es.NewBatch().Add(es.SoftDeletePet{PetID: "p1", At: time.Now()})))
	assert.Equal(t, 0, waitFor(t, got, 0))
}

func waitFor(t *testing.T, ch <-chan int, want int) int {
	t.Helper()
	deadline := time.After(2 * time.Second)
	for {
		select {
		case n := <-ch:
			if n == want {
				return n
			}
		case <-deadline:
			t.Fatalf("timeout waiting for %d", want)
			return -1
		}
	}
}
