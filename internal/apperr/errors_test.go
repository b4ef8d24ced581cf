package apperr

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestHTTPStatus_MapsWrappedSentinels(t *testing.T) {
	cases := []struct {
		err  error
		want int
	}{
		{fmt.Errorf("create pet: %w", ErrNotAuthenticated), http.StatusUnauthorized},
		{Validation("name", "required"), http.StatusBadRequest},
		{fmt.Errorf("get task: %w", ErrNotFound), http.StatusNotFound},
		{ErrForbidden, http.StatusForbidden},
		{fmt.Errorf("respond: %w", ErrInvalidTransition), http.StatusConflict},
		{Transient(errors.New("conn reset")), http.StatusServiceUnavailable},
		{errors.New("boom"), http.StatusInternalServerError},
	}
	for _, c := range cases {
		assert.Equal(t, c.want, HTTPStatus(c.err), c.err.Error())
	}
}

func TestTransient_KeepsNotFound(t *testing.T) {
	err := Transient(fmt.Errorf("pet: %w", ErrNotFound))
	assert.ErrorIs(t, err, ErrNotFound)
	assert.NotErrorIs(t, err, ErrTransientStore)
	assert.Nil(t, Transient(nil))
}
