package tasks

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

func newTestService(t *testing.T) (*Service, *memory.Store, *live.Hub) {
	t.Helper()
	store := memory.NewStore()
	hub := live.NewHub(nil)
	svc := NewService(live.NewPublishingStore(store, hub), hub, nil)
	seq := 0
	svc.newID = func() string { seq++; return fmt.Sprintf("t%d", seq) }
	clock := time.Date(2026, 1, 1, 8, 0, 0, 0, time.UTC)
	svc.now = func() time.Time { clock = clock.Add(time.Second); return clock }
	return svc, store, hub
}

func seedLogs(t *testing.T, store *memory.Store, petID, taskID, name string, ids ...string) {
	t.Helper()
	b := es.NewBatch()
	for _, id := range ids {
		b.Add(es.PutLog{Log: es.Log{ID: id, PetID: petID, TaskID: taskID, TaskName: name, Timestamp: time.Now()}})
	}
	require.NoError(t, store.Commit(context.Background(), b))
}

func TestAdd_DefaultsAndValidation(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()

	tk, err := svc.Add(ctx, "p1", "u1", AddInput{Name: " Walk "})
	require.NoError(t, err)
	assert.Equal(t, "Walk", tk.Name)
	assert.Equal(t, DefaultColor, tk.Color)
	assert.Equal(t, DefaultTextColor, tk.TextColor)
	assert.Equal(t, tk.CreatedAt.UnixMilli(), tk.Order)
	assert.Equal(t, "u1", tk.CreatedBy)

	_, err = svc.Add(ctx, "p1", "u1", AddInput{Name: ""})
	assert.ErrorIs(t, err, apperr.ErrValidation)

	// 21 runas.
	_, err = svc.Add(ctx, "p1", "u1", AddInput{Name: "ñññññññññññññññññññññ"})
	assert.ErrorIs(t, err, apperr.ErrValidation)

	_, err = svc.Add(ctx, "p1", "u1", AddInput{Name: "Feed", Color: "red"})
	assert.ErrorIs(t, err, apperr.ErrValidation)
}

func TestList_OrderedAndExcludesDeleted(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()

	o := func(n int64) *int64 { return &n }
	_, err := svc.Add(ctx, "p1", "u1", AddInput{Name: "C", Order: o(3)})
	require.NoError(t, err)
	a, err := svc.Add(ctx, "p1", "u1", AddInput{Name: "A", Order: o(1)})
	require.NoError(t, err)
	_, err = svc.Add(ctx, "p1", "u1", AddInput{Name: "B", Order: o(2)})
	require.NoError(t, err)

	require.NoError(t, svc.Delete(ctx, "p1", a.ID))

	got, err := svc.List(ctx, "p1")
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "B", got[0].Name)
	assert.Equal(t, "C", got[1].Name)
}

func TestUpdate_RenamePropagatesToLogs(t *testing.T) {
	svc, store, _ := newTestService(t)
	ctx := context.Background()

	walk, err := svc.Add(ctx, "p1", "u1", AddInput{Name: "Walk"})
	require.NoError(t, err)
	feed, err := svc.Add(ctx, "p1", "u1", AddInput{Name: "Feed"})
	require.NoError(t, err)
	seedLogs(t, store, "p1", walk.ID, "Walk", "l1", "l2")
	seedLogs(t, store, "p1", feed.ID, "Feed", "l3")

	name := "Paseo"
	got, err := svc.Update(ctx, "p1", walk.ID, UpdateInput{Name: &name})
	require.NoError(t, err)
	assert.Equal(t, "Paseo", got.Name)

	logs, err := store.ListLogs(ctx, "p1", es.LogFilter{})
	require.NoError(t, err)
	for _, l := range logs {
		if l.TaskID == walk.ID {
			assert.Equal(t, "Paseo", l.TaskName)
		} else {
			assert.Equal(t, "Feed", l.TaskName)
		}
	}

	color := "#ff0000"
	got, err = svc.Update(ctx, "p1", walk.ID, UpdateInput{Color: &color})
	require.NoError(t, err)
	assert.Equal(t, "Paseo", got.Name)
	assert.Equal(t, color, got.Color)

	_, err = svc.Update(ctx, "p1", "missing", UpdateInput{Name: &name})
	assert.ErrorIs(t, err, apperr.ErrNotFound)
}

func TestDelete_CascadesToLogs(t *testing.T) {
	svc, store, _ := newTestService(t)
	ctx := context.Background()

	walk, err := svc.Add(ctx, "p1", "u1", AddInput{Name: "Walk"})
	require.NoError(t, err)
	feed, err := svc.Add(ctx, "p1", "u1", AddInput{Name: "Feed"})
	require.NoError(t, err)
	seedLogs(t, store, "p1", walk.ID, "Walk", "l1", "l2")
	seedLogs(t, store, "p1", feed.ID, "Feed", "l3")

	require.NoError(t, svc.Delete(ctx, "p1", walk.ID))

	tk, err := store.GetTask(ctx, "p1", walk.ID)
	require.NoError(t, err)
	assert.True(t, tk.Deleted)

	remaining, err := store.ListLogs(ctx, "p1", es.LogFilter{})
	require.NoError(t, err)
	require.Len(t, remaining, 1)
	assert.Equal(t, "l3", remaining[0].ID)

	all, err := store.ListLogs(ctx, "p1", es.LogFilter{IncludeDeleted: true})
	require.NoError(t, err)
	assert.Len(t, all, 3)
}

func TestBulkDelete_AllOrNothing(t *testing.T) {
	svc, store, _ := newTestService(t)
	ctx := context.Background()

	a, err := svc.Add(ctx, "p1", "u1", AddInput{Name: "A"})
	require.NoError(t, err)
	b, err := svc.Add(ctx, "p1", "u1", AddInput{Name: "B"})
	require.NoError(t, err)
	seedLogs(t, store, "p1", a.ID, "A", "l1")
	seedLogs(t, store, "p1", b.ID, "B", "l2")

	err = svc.BulkDelete(ctx, "p1", []string{a.ID, "missing"})
	assert.ErrorIs(t, err, apperr.ErrNotFound)
	got, _ := svc.List(ctx, "p1")
	assert.Len(t, got, 2)

	require.NoError(t, svc.BulkDelete(ctx, "p1", []string{a.ID, b.ID, a.ID}))
	got, _ = svc.List(ctx, "p1")
	assert.Empty(t, got)
	logs, _ := store.ListLogs(ctx, "p1", es.LogFilter{})
	assert.Empty(t, logs)

	assert.ErrorIs(t, svc.BulkDelete(ctx, "p1", nil), apperr.ErrValidation)
}

func TestReorder(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()

	a, _ := svc.Add(ctx, "p1", "u1", AddInput{Name: "A"})
	b, _ := svc.Add(ctx, "p1", "u1", AddInput{Name: "B"})
	c, _ := svc.Add(ctx, "p1", "u1", AddInput{Name: "C"})

	require.NoError(t, svc.Reorder(ctx, "p1", []string{c.ID, a.ID, b.ID}))
	got, err := svc.List(ctx, "p1")
	require.NoError(t, err)
	require.Len(t, got, 3)
	assert.Equal(t, []string{"C", "A", "B"}, []string{got[0].Name, got[1].Name, got[2].Name})
	assert.Equal(t, int64(0), got[0].Order)

	assert.ErrorIs(t, svc.Reorder(ctx, "p1", []string{a.ID, a.ID}), apperr.ErrValidation)
}

func TestWatch_EmitsOnChange(t *testing.T) {
	svc, _, hub := newTestService(t)
	ctx := context.Background()

	got := make(chan int, 8)
	sub := svc.Watch(ctx, "p1", func(ts []es.Task, err error) {
		assert.NoError(t, err)
		got <- len(ts)
	})
	defer sub.Close()
	assert.Equal(t, 0, <-got)

	_, err := svc.Add(ctx, "p1", "u1", AddInput{Name: "Walk"})
	require.NoError(t, err)

	select {
	case n := <-got:
		assert.Equal(t, 1, n)
	case <-time.After(2 * time.Second):
		t.Fatal("no update")
	}

	// Otro pet no dispara la suscripción.
	_, err = svc.Add(ctx, "p2", "u1", AddInput{Name: "Walk"})
	require.NoError(t, err)
	select {
	case <-got:
		t.Fatal("unexpected emit for another pet")
	case <-time.After(50 * time.Millisecond):
	}
	assert.Equal(t, 1, hub.Listeners())
}
