package redisfeed

import (
	"context"
	"sync"
	"testing"
	"time"

	"pet-care-log/internal/live"
	es "pet-care-log/internal/ports/entitystore"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recorder struct {
	mu  sync.Mutex
	got []es.Change
}

func (r *recorder) PublishLocal(changes ...es.Change) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.got = append(r.got, changes...)
}

func (r *recorder) changes() []es.Change {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]es.Change(nil), r.got...)
}

func startRelay(t *testing.T, r *Relay, hub LocalPublisher) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = r.Run(ctx, hub)
	}()
	t.Cleanup(func() {
		cancel()
		<-done
	})
}

func waitSubscribers(t *testing.T, mr *miniredis.Miniredis, channel string, n int) {
	t.Helper()
	require.Eventually(t, func() bool {
		return mr.PubSubNumSub(channel)[channel] == n
	}, time.Second, 5*time.Millisecond)
}

func TestRelay_DeliversToOtherInstancesOnly(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer rdb.Close()

	a, b := New(rdb, "changes", nil), New(rdb, "changes", nil)
	recA, recB := &recorder{}, &recorder{}
	startRelay(t, a, recA)
	startRelay(t, b, recB)
	waitSubscribers(t, mr, "changes", 2)

	change := es.Change{Collection: es.CollectionTasks, PetID: "p1", DocID: "t1"}
	a.Forward([]es.Change{change})

	require.Eventually(t, func() bool { return len(recB.changes()) == 1 }, time.Second, 5*time.Millisecond)
	assert.Equal(t, []es.Change{change}, recB.changes())

	time.Sleep(50 * time.Millisecond)
	assert.Empty(t, recA.changes(), "own echo is dropped")
}

func TestRelay_WakesRemoteWatchers(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer rdb.Close()

	local, remote := live.NewHub(nil), live.NewHub(nil)
	localRelay, remoteRelay := New(rdb, "changes", nil), New(rdb, "changes", nil)
	local.SetRelay(localRelay)
	startRelay(t, remoteRelay, remote)
	waitSubscribers(t, mr, "changes", 1)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var mu sync.Mutex
	loads := 0
	sub := live.Watch(ctx, remote, live.PetCollection(es.CollectionLogs, "p1"),
		func(context.Context) (int, error) {
			mu.Lock()
			defer mu.Unlock()
			loads++
			return loads, nil
		},
		func(int, error) {})
	defer sub.Close()

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return loads == 1
	}, time.Second, 5*time.Millisecond)

	local.Publish(es.Change{Collection: es.CollectionLogs, PetID: "p1"})

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return loads == 2
	}, time.Second, 5*time.Millisecond)
}

func TestRelay_IgnoresMalformedPayloads(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer rdb.Close()

	rec := &recorder{}
	startRelay(t, New(rdb, "changes", nil), rec)
	waitSubscribers(t, mr, "changes", 1)

	mr.Publish("changes", "{nope")
	other := New(rdb, "changes", nil)
	other.Forward([]es.Change{{Collection: es.CollectionPets, PetID: "p1", DocID: "p1"}})

	require.Eventually(t, func() bool { return len(rec.changes()) == 1 }, time.Second, 5*time.Millisecond)
}
