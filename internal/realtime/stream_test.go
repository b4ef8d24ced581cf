package realtime

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"pet-care-log/internal/adapters/storage/memory"
	"pet-care-log/internal/domain/chat"
	"pet-care-log/internal/domain/logs"
	"pet-care-log/internal/domain/members"
	"pet-care-log/internal/domain/pets"
	"pet-care-log/internal/domain/tasks"
	"pet-care-log/internal/domain/visibility"
	"pet-care-log/internal/live"
	"pet-care-log/internal/middleware"
	"pet-care-log/internal/notify"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fixture struct {
	srv     *httptest.Server
	hub     *live.Hub
	pets    *pets.Service
	tasks   *tasks.Service
	members *members.Service
}

type nopPublisher struct{}

func (nopPublisher) PublishMessageCreated(context.Context, notify.MessageCreated) error { return nil }

func newFixture(t *testing.T) *fixture {
	t.Helper()
	hub := live.NewHub(nil)
	store := live.NewPublishingStore(memory.NewStore(), hub)

	f := &fixture{
		hub:     hub,
		pets:    pets.NewService(store, nil, nil),
		tasks:   tasks.NewService(store, hub, nil),
		members: members.NewService(store, hub, nil),
	}

	r := chi.NewRouter()
	r.Use(middleware.AuthContext(nil))
	RegisterRoutes(r, NewStreamer(nil), Deps{
		Hub:             hub,
		Authz:           f.members,
		VisiblePets:     visibility.NewResolver(store, hub, nil),
		Invitations:     f.members,
		Tasks:           f.tasks,
		Logs:            logs.NewService(store, hub, nil),
		Chat:            chat.NewService(store, hub, nopPublisher{}, nil),
		DefaultLocation: time.UTC,
	})
	f.srv = httptest.NewServer(r)
	t.Cleanup(f.srv.Close)
	return f
}

func (f *fixture) dial(t *testing.T, path, uid, email string) (*websocket.Conn, *http.Response, error) {
	t.Helper()
	h := http.Header{}
	h.Set(middleware.DebugUserIDHeader, uid)
	if email != "" {
		h.Set(middleware.DebugUserEmailHeader, email)
	}
	url := "ws" + strings.TrimPrefix(f.srv.URL, "http") + path
	return websocket.DefaultDialer.Dial(url, h)
}

type frame struct {
	Data   json.RawMessage `json:"data"`
	Error  string          `json:"error"`
	Status int             `json:"status"`
}

func readFrame(t *testing.T, c *websocket.Conn) frame {
	t.Helper()
	require.NoError(t, c.SetReadDeadline(time.Now().Add(2*time.Second)))
	var f frame
	require.NoError(t, c.ReadJSON(&f))
	return f
}

func TestTasksStream_PushesUpdates(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	pet, err := f.pets.Create(ctx, "u1", "u1@example.com", pets.CreateInput{Name: "Mochi"})
	require.NoError(t, err)

	c, _, err := f.dial(t, "/ws/pets/"+pet.ID+"/tasks", "u1", "u1@example.com")
	require.NoError(t, err)
	defer c.Close()

	first := readFrame(t, c)
	assert.Empty(t, first.Error)
	assert.JSONEq(t, `[]`, string(first.Data))

	_, err = f.tasks.Add(ctx, pet.ID, "u1", tasks.AddInput{Name: "Walk"})
	require.NoError(t, err)

	next := readFrame(t, c)
	var got []tasks.TaskResponse
	require.NoError(t, json.Unmarshal(next.Data, &got))
	require.Len(t, got, 1)
	assert.Equal(t, "Walk", got[0].Name)
}

func TestStream_RequiresMembership(t *testing.T) {
	f := newFixture(t)
	pet, err := f.pets.Create(context.Background(), "u1", "u1@example.com", pets.CreateInput{Name: "Mochi"})
	require.NoError(t, err)

	_, resp, err := f.dial(t, "/ws/pets/"+pet.ID+"/tasks", "intruder", "")
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)

	_, resp, err = f.dial(t, "/ws/me/pets", "", "")
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestLogsStream_RejectsBadTimezone(t *testing.T) {
	f := newFixture(t)
	pet, err := f.pets.Create(context.Background(), "u1", "u1@example.com", pets.CreateInput{Name: "Mochi"})
	require.NoError(t, err)

	_, resp, err := f.dial(t, "/ws/pets/"+pet.ID+"/logs?tz=Mars/Olympus", "u1", "")
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestVisiblePetsAndInvitations(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	pet, err := f.pets.Create(ctx, "u1", "u1@example.com", pets.CreateInput{Name: "Mochi"})
	require.NoError(t, err)

	inv, _, err := f.dial(t, "/ws/me/invitations", "u2", "u2@example.com")
	require.NoError(t, err)
	defer inv.Close()
	assert.JSONEq(t, `[]`, string(readFrame(t, inv).Data))

	m, err := f.members.Invite(ctx, pet.ID, "u1", "U2@example.com", "")
	require.NoError(t, err)

	var invitations []members.InvitationResponse
	require.NoError(t, json.Unmarshal(readFrame(t, inv).Data, &invitations))
	require.Len(t, invitations, 1)

	visible, _, err := f.dial(t, "/ws/me/pets", "u2", "u2@example.com")
	require.NoError(t, err)
	defer visible.Close()
	assert.JSONEq(t, `[]`, string(readFrame(t, visible).Data))

	_, err = f.members.Respond(ctx, pet.ID, m.ID, "u2", "u2@example.com", members.DecisionAccept)
	require.NoError(t, err)

	// Puede haber emisiones intermedias mientras se abre la suscripción del pet.
	var visiblePets []visibility.VisiblePetResponse
	for i := 0; i < 5 && len(visiblePets) == 0; i++ {
		require.NoError(t, json.Unmarshal(readFrame(t, visible).Data, &visiblePets))
	}
	require.Len(t, visiblePets, 1)
	assert.Equal(t, "Mochi", visiblePets[0].Pet.Name)
	assert.Equal(t, "viewer", string(visiblePets[0].Role))
}

func TestStream_ClientCloseReleasesSubscription(t *testing.T) {
	f := newFixture(t)
	pet, err := f.pets.Create(context.Background(), "u1", "u1@example.com", pets.CreateInput{Name: "Mochi"})
	require.NoError(t, err)
	base := f.hub.Listeners()

	c, _, err := f.dial(t, "/ws/pets/"+pet.ID+"/tasks", "u1", "")
	require.NoError(t, err)
	readFrame(t, c)
	// datos + control de acceso
	assert.Equal(t, base+2, f.hub.Listeners())

	require.NoError(t, c.WriteMessage(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")))
	_ = c.Close()

	assert.Eventually(t, func() bool { return f.hub.Listeners() == base }, 2*time.Second, 5*time.Millisecond)
}

func TestPetStream_ClosesWhenMemberRemoved(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	pet, err := f.pets.Create(ctx, "u1", "u1@example.com", pets.CreateInput{Name: "Mochi"})
	require.NoError(t, err)
	m, err := f.members.Invite(ctx, pet.ID, "u1", "u2@example.com", "")
	require.NoError(t, err)
	_, err = f.members.Respond(ctx, pet.ID, m.ID, "u2", "u2@example.com", members.DecisionAccept)
	require.NoError(t, err)
	base := f.hub.Listeners()

	c, _, err := f.dial(t, "/ws/pets/"+pet.ID+"/tasks", "u2", "u2@example.com")
	require.NoError(t, err)
	defer c.Close()
	assert.JSONEq(t, `[]`, string(readFrame(t, c).Data))

	require.NoError(t, f.members.Remove(ctx, pet.ID, m.ID))
	_, err = f.tasks.Add(ctx, pet.ID, "u1", tasks.AddInput{Name: "SecretWalk"})
	require.NoError(t, err)

	// Hasta el cierre no llega ningún dato posterior a la baja.
	sawForbidden := false
	for {
		require.NoError(t, c.SetReadDeadline(time.Now().Add(2*time.Second)))
		var fr frame
		err := c.ReadJSON(&fr)
		if err != nil {
			assert.True(t, websocket.IsCloseError(err, websocket.CloseNormalClosure), "unexpected read error: %v", err)
			break
		}
		assert.NotContains(t, string(fr.Data), "SecretWalk")
		if fr.Status == http.StatusForbidden {
			sawForbidden = true
		}
	}
	assert.True(t, sawForbidden)
	assert.Eventually(t, func() bool { return f.hub.Listeners() == base }, 2*time.Second, 5*time.Millisecond)
}

func TestPetStream_ClosesWhenPetDeleted(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	pet, err := f.pets.Create(ctx, "u1", "u1@example.com", pets.CreateInput{Name: "Mochi"})
	require.NoError(t, err)

	c, _, err := f.dial(t, "/ws/pets/"+pet.ID+"/messages", "u1", "u1@example.com")
	require.NoError(t, err)
	defer c.Close()
	readFrame(t, c)

	require.NoError(t, f.pets.Delete(ctx, pet.ID, "u1"))

	fr := readFrame(t, c)
	assert.Equal(t, http.StatusNotFound, fr.Status)
	require.NoError(t, c.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, _, err = c.ReadMessage()
	assert.True(t, websocket.IsCloseError(err, websocket.CloseNormalClosure))
}
