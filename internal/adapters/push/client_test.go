package push

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"pet-care-log/internal/notify"
	"pet-care-log/internal/platform/httpclient"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T, h http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)

	c, err := NewClient(httpclient.Options{
		BaseURL:      srv.URL,
		APIKey:       "k",
		RetryWait:    time.Millisecond,
		RetryMaxWait: 2 * time.Millisecond,
	}, nil)
	require.NoError(t, err)
	return c
}

func TestPush_SendsPayload(t *testing.T) {
	var got sendRequest
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, sendPath, r.URL.Path)
		assert.Equal(t, "k", r.Header.Get("X-Api-Key"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.WriteHeader(http.StatusOK)
	})

	err := c.Push(context.Background(), "tok-1", notify.Payload{
		Title:      "Mochi · Ana",
		SenderName: "Ana",
		PetName:    "Mochi",
		Body:       "hola",
		Link:       "http://app/pets/p1/chat",
	})
	require.NoError(t, err)

	assert.Equal(t, "tok-1", got.Token)
	assert.Equal(t, "Mochi · Ana", got.Notification.Title)
	assert.Equal(t, "hola", got.Notification.Body)
	assert.Equal(t, "http://app/pets/p1/chat", got.Data["link"])
	assert.Equal(t, "Mochi", got.Data["pet_name"])
}

func TestPush_GoneTokenIsInvalid(t *testing.T) {
	for _, status := range []int{http.StatusNotFound, http.StatusGone} {
		c := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(status)
		})
		err := c.Push(context.Background(), "tok", notify.Payload{})
		assert.ErrorIs(t, err, notify.ErrInvalidToken, "status %d", status)
	}
}

func TestPush_OtherErrorsAreNotTokenErrors(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
	})
	err := c.Push(context.Background(), "tok", notify.Payload{})
	require.Error(t, err)
	assert.NotErrorIs(t, err, notify.ErrInvalidToken)
}

func TestPush_EmptyToken(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		assert.Fail(t, "should not be called")
	})
	assert.ErrorIs(t, c.Push(context.Background(), " ", notify.Payload{}), notify.ErrInvalidToken)
}
