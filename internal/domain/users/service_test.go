package users

import (
	"context"
	"testing"
	"time"

	"pet-care-log/internal/adapters/storage/memory"
	"pet-care-log/internal/apperr"
	"pet-care-log/internal/ports/auth"
	es "pet-care-log/internal/ports/entitystore"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type countingStore struct {
	*memory.Store
	commits int
}

func (c *countingStore) Commit(ctx context.Context, b *es.Batch) error {
	c.commits++
	return c.Store.Commit(ctx, b)
}

func TestSync_CreatesThenReconciles(t *testing.T) {
	store := &countingStore{Store: memory.NewStore()}
	svc := NewService(store, nil, nil)
	ctx := context.Background()

	c := auth.Claims{UserID: "u1", Email: "U1@Example.com", Name: "Ana", Providers: []string{"google.com"}}
	require.NoError(t, svc.Sync(ctx, c))

	u, err := svc.Get(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, "u1@example.com", u.AuthEmail)
	assert.Equal(t, "google.com", u.AuthProvider)
	assert.True(t, u.Settings.NotificationsEnabled)
	assert.Equal(t, 1, store.commits)

	// Sin cambios no escribe.
	require.NoError(t, svc.Sync(ctx, c))
	assert.Equal(t, 1, store.commits)

	// El proveedor cambió el nombre: se reconcilia sin pisar el perfil.
	_, err = svc.UpdateProfile(ctx, "u1", ProfileInput{Nickname: strPtr("Anita")})
	require.NoError(t, err)
	c.Name = "Ana María"
	require.NoError(t, svc.Sync(ctx, c))
	u, err = svc.Get(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, "Ana María", u.AuthName)
	assert.Equal(t, "Anita", u.Nickname)

	assert.ErrorIs(t, svc.Sync(ctx, auth.Claims{}), apperr.ErrNotAuthenticated)
}

func TestUpdateProfile_Validation(t *testing.T) {
	svc := NewService(memory.NewStore(), nil, nil)
	ctx := context.Background()
	require.NoError(t, svc.Sync(ctx, auth.Claims{UserID: "u1"}))

	_, err := svc.UpdateProfile(ctx, "u1", ProfileInput{LogColors: &es.LogColors{TimeBgColor: "blue"}})
	assert.ErrorIs(t, err, apperr.ErrValidation)

	_, err = svc.UpdateProfile(ctx, "u1", ProfileInput{Nickname: strPtr("0123456789012345678901234567890")})
	assert.ErrorIs(t, err, apperr.ErrValidation)

	off := false
	u, err := svc.UpdateProfile(ctx, "u1", ProfileInput{
		LogColors:            &es.LogColors{TimeBgColor: "#112233"},
		NotificationsEnabled: &off,
		PrimaryPetID:         strPtr("p1"),
	})
	require.NoError(t, err)
	assert.Equal(t, "#112233", u.Settings.LogColors.TimeBgColor)
	assert.False(t, u.Settings.NotificationsEnabled)
	assert.Equal(t, "p1", u.PrimaryPetID)

	_, err = svc.UpdateProfile(ctx, "ghost", ProfileInput{})
	assert.ErrorIs(t, err, apperr.ErrNotFound)
}

func TestNotificationTokens(t *testing.T) {
	svc := NewService(memory.NewStore(), nil, nil)
	svc.now = func() time.Time { return time.Unix(100, 0) }
	ctx := context.Background()
	require.NoError(t, svc.Sync(ctx, auth.Claims{UserID: "u1"}))

	_, err := svc.AddNotificationToken(ctx, "u1", "tok-a")
	require.NoError(t, err)
	_, err = svc.AddNotificationToken(ctx, "u1", "tok-b")
	require.NoError(t, err)
	u, err := svc.AddNotificationToken(ctx, "u1", "tok-a")
	require.NoError(t, err)
	assert.Equal(t, []string{"tok-a", "tok-b"}, u.Settings.NotificationTokens)

	u, err = svc.RemoveNotificationToken(ctx, "u1", "tok-a")
	require.NoError(t, err)
	assert.Equal(t, []string{"tok-b"}, u.Settings.NotificationTokens)

	_, err = svc.AddNotificationToken(ctx, "u1", " ")
	assert.ErrorIs(t, err, apperr.ErrValidation)
}

func TestDisplayName_Fallbacks(t *testing.T) {
	assert.Equal(t, "Nick", DisplayName(es.User{Nickname: "Nick", AuthName: "Auth", AuthEmail: "e@x"}))
	assert.Equal(t, "Auth", DisplayName(es.User{Nickname: " ", AuthName: "Auth", AuthEmail: "e@x"}))
	assert.Equal(t, "e@x", DisplayName(es.User{AuthEmail: "e@x"}))
	assert.Equal(t, "", DisplayName(es.User{}))
}

func strPtr(s string) *string { return &s }
