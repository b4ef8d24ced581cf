package httpclient

import (
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew_RequiresBaseURL(t *testing.T) {
	_, err := New(Options{})
	require.Error(t, err)

	_, err = New(Options{BaseURL: "not a url"})
	require.Error(t, err)
}

func TestNew_SendsAPIKeyAndMapsErrors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "secret", r.Header.Get("X-Api-Key"))
		w.WriteHeader(http.StatusConflict)
		_, _ = w.Write([]byte(" taken "))
	}))
	defer srv.Close()

	c, err := New(Options{BaseURL: srv.URL + "/", APIKey: "secret"})
	require.NoError(t, err)

	err = Check(c.R().Get("/x"))
	require.Error(t, err)

	var he *HTTPError
	require.ErrorAs(t, err, &he)
	assert.Equal(t, http.StatusConflict, he.StatusCode)
	assert.Equal(t, "taken", he.Body)
	assert.Equal(t, http.StatusConflict, StatusOf(err))
}

func TestNew_RetriesServerErrors(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		if atomic.AddInt32(&calls, 1) < 3 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	c, err := New(Options{
		BaseURL:      srv.URL,
		RetryCount:   3,
		RetryWait:    time.Millisecond,
		RetryMaxWait: 5 * time.Millisecond,
	})
	require.NoError(t, err)

	require.NoError(t, Check(c.R().Get("/")))
	assert.EqualValues(t, 3, atomic.LoadInt32(&calls))
}

func TestNew_DoesNotRetryClientErrors(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusGone)
	}))
	defer srv.Close()

	c, err := New(Options{BaseURL: srv.URL, RetryCount: 3, RetryWait: time.Millisecond})
	require.NoError(t, err)

	err = Check(c.R().Get("/"))
	assert.Equal(t, http.StatusGone, StatusOf(err))
	assert.EqualValues(t, 1, atomic.LoadInt32(&calls))
}
