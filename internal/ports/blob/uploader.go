package blob

import (
	"context"
	"io"
)

// Uploader sube un archivo y devuelve su URL pública. La URL es opaca para
// el resto del sistema: se guarda tal cual.
type Uploader interface {
	Upload(ctx context.Context, name, contentType string, r io.Reader) (string, error)
}
