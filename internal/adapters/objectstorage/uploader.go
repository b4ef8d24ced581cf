// Package objectstorage sube imágenes de perfil a un servicio de objetos HTTP
// y devuelve la URL pública que responde.
package objectstorage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"strings"

	"pet-care-log/internal/platform/httpclient"
	"pet-care-log/internal/ports/blob"

	"github.com/go-resty/resty/v2"
	"github.com/google/uuid"
)

const uploadPath = "/v1/objects"

type Uploader struct {
	http   *resty.Client
	prefix string
	newID  func() string
}

// NewUploader crea el uploader. prefix agrupa las claves (p.ej. "pet-care").
func NewUploader(opts httpclient.Options, prefix string) (*Uploader, error) {
	// el body es un io.Reader: no se puede reintentar
	opts.RetryCount = 0
	c, err := httpclient.New(opts)
	if err != nil {
		return nil, fmt.Errorf("object storage: %w", err)
	}
	return &Uploader{
		http:   c,
		prefix: strings.Trim(prefix, "/"),
		newID:  uuid.NewString,
	}, nil
}

type uploadResponse struct {
	URL string `json:"url"`
}

func (u *Uploader) Upload(ctx context.Context, name, contentType string, r io.Reader) (string, error) {
	base := baseName(name)
	key := u.key(base)

	var out uploadResponse
	err := httpclient.Check(u.http.R().
		SetContext(ctx).
		SetMultipartField("file", base, contentType, r).
		SetFormData(map[string]string{"key": key}).
		SetResult(&out).
		Post(uploadPath))
	if err != nil {
		return "", fmt.Errorf("upload %s: %w", key, err)
	}
	if strings.TrimSpace(out.URL) == "" {
		return "", errors.New("upload: response missing url")
	}
	return out.URL, nil
}

// baseName limpia el nombre recibido: sin directorios (tampoco de Windows).
func baseName(name string) string {
	base := path.Base(strings.ReplaceAll(strings.TrimSpace(name), "\\", "/"))
	if base == "." || base == "/" || base == "" {
		return "file"
	}
	return base
}

// key = prefix/uuid-base; el nombre original se conserva solo como sufijo.
func (u *Uploader) key(base string) string {
	k := u.newID() + "-" + base
	if u.prefix != "" {
		k = u.prefix + "/" + k
	}
	return k
}

var _ blob.Uploader = (*Uploader)(nil)
