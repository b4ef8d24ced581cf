package httpclient

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
)

const (
	DefaultTimeout = 10 * time.Second
	DefaultHeader  = "X-Api-Key"
)

// Options de los clientes HTTP hacia servicios externos (push, storage).
type Options struct {
	BaseURL string
	APIKey  string

	// Vacío => "X-Api-Key".
	APIKeyHeader string
	Timeout      time.Duration

	// RetryCount 0 => sin reintentos (uploads con io.Reader no se pueden repetir).
	RetryCount   int
	RetryWait    time.Duration
	RetryMaxWait time.Duration
}

// New crea un cliente resty con base URL, API key y reintentos sobre 5xx.
func New(opts Options) (*resty.Client, error) {
	base := strings.TrimRight(strings.TrimSpace(opts.BaseURL), "/")
	if base == "" {
		return nil, errors.New("httpclient: base url required")
	}
	if _, err := url.ParseRequestURI(base); err != nil {
		return nil, fmt.Errorf("invalid base url: %w", err)
	}

	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	header := strings.TrimSpace(opts.APIKeyHeader)
	if header == "" {
		header = DefaultHeader
	}

	c := resty.New().
		SetBaseURL(base).
		SetTimeout(timeout).
		SetHeader("Accept", "application/json")

	if key := strings.TrimSpace(opts.APIKey); key != "" {
		c.SetHeader(header, key)
	}

	if opts.RetryCount > 0 {
		wait := opts.RetryWait
		if wait <= 0 {
			wait = time.Second
		}
		maxWait := opts.RetryMaxWait
		if maxWait <= 0 {
			maxWait = 5 * time.Second
		}
		c.SetRetryCount(opts.RetryCount).
			SetRetryWaitTime(wait).
			SetRetryMaxWaitTime(maxWait).
			AddRetryCondition(func(r *resty.Response, err error) bool {
				return err != nil || r.StatusCode() >= 500
			})
	}

	return c, nil
}

// HTTPError representa una respuesta no-2xx.
type HTTPError struct {
	StatusCode int
	Body       string
}

func (e *HTTPError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("http error: status=%d", e.StatusCode)
	}
	return fmt.Sprintf("http error: status=%d body=%s", e.StatusCode, e.Body)
}

// Check convierte el resultado de un request resty en error:
// fallo de transporte o *HTTPError si el status no es 2xx.
func Check(resp *resty.Response, err error) error {
	if err != nil {
		return fmt.Errorf("httpclient: do request: %w", err)
	}
	if resp.IsError() || resp.StatusCode() < 200 || resp.StatusCode() >= 300 {
		return &HTTPError{
			StatusCode: resp.StatusCode(),
			Body:       strings.TrimSpace(resp.String()),
		}
	}
	return nil
}

// StatusOf devuelve el status de un *HTTPError envuelto, o 0.
func StatusOf(err error) int {
	var he *HTTPError
	if errors.As(err, &he) {
		return he.StatusCode
	}
	return 0
}
