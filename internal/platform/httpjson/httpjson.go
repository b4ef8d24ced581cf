// Package httpjson concentra la escritura de respuestas JSON y la
// traducción de errores de dominio a status HTTP.
package httpjson

import (
	"encoding/json"
	"errors"
	"net/http"

	"pet-care-log/internal/apperr"
)

type errorBody struct {
	Error string `json:"error"`
}

func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// WriteError responde con el status que corresponde al error.
func WriteError(w http.ResponseWriter, err error) {
	status, msg := PublicError(err)
	WriteJSON(w, status, errorBody{Error: msg})
}

// PublicError devuelve status y texto visibles para el cliente. Los errores
// sin clasificar no exponen su texto.
func PublicError(err error) (int, string) {
	status := apperr.HTTPStatus(err)
	msg := err.Error()
	switch status {
	case http.StatusInternalServerError:
		msg = "internal error"
	case http.StatusServiceUnavailable:
		msg = apperr.ErrTransientStore.Error()
	}
	return status, msg
}

// Decode lee el body como JSON estricto.
func Decode(r *http.Request, dst any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		var syn *json.SyntaxError
		if errors.As(err, &syn) {
			return apperr.Validation("body", "is not valid json")
		}
		return apperr.Validation("body", err.Error())
	}
	return nil
}
