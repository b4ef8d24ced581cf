// Package auth define la identidad que llega del proveedor y el puerto para
// verificar tokens.
package auth

import "context"

// Claims representa la identidad extraída del token del proveedor.
type Claims struct {
	UserID string
	Email  string
	Name   string

	// Provider es el proveedor con el que inició sesión (password, google.com, ...).
	Provider    string
	Providers   []string
	IsAnonymous bool
}

// AuthVerifier valida un token y devuelve sus claims. Un error deja el
// request sin identidad.
type AuthVerifier interface {
	Verify(ctx context.Context, token string) (Claims, error)
}
