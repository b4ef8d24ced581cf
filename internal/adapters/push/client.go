// Package push entrega notificaciones a un gateway HTTP de push.
package push

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"pet-care-log/internal/notify"
	"pet-care-log/internal/platform/httpclient"

	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"
)

const sendPath = "/v1/messages"

type Client struct {
	http *resty.Client
	log  *zap.Logger
}

func NewClient(opts httpclient.Options, log *zap.Logger) (*Client, error) {
	if opts.RetryCount == 0 {
		opts.RetryCount = 3
	}
	c, err := httpclient.New(opts)
	if err != nil {
		return nil, fmt.Errorf("push client: %w", err)
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Client{http: c, log: log}, nil
}

type sendRequest struct {
	Token        string            `json:"token"`
	Notification notification      `json:"notification"`
	Data         map[string]string `json:"data"`
}

type notification struct {
	Title string `json:"title"`
	Body  string `json:"body"`
}

// Push envía un mensaje a un token. 404 y 410 del gateway => notify.ErrInvalidToken.
func (c *Client) Push(ctx context.Context, token string, p notify.Payload) error {
	token = strings.TrimSpace(token)
	if token == "" {
		return notify.ErrInvalidToken
	}

	req := sendRequest{
		Token:        token,
		Notification: notification{Title: p.Title, Body: p.Body},
		Data: map[string]string{
			"link":        p.Link,
			"pet_name":    p.PetName,
			"sender_name": p.SenderName,
		},
	}

	err := httpclient.Check(c.http.R().
		SetContext(ctx).
		SetHeader("Content-Type", "application/json").
		SetBody(req).
		Post(sendPath))

	switch httpclient.StatusOf(err) {
	case 0:
		if err != nil {
			return fmt.Errorf("push: %w", err)
		}
		c.log.Debug("push sent", zap.String("title", p.Title))
		return nil
	case http.StatusNotFound, http.StatusGone:
		return notify.ErrInvalidToken
	default:
		return fmt.Errorf("push: %w", err)
	}
}

var _ notify.Pusher = (*Client)(nil)
