// Package redisstream lleva los eventos de chat del API al dispatcher por un
// Redis Stream con consumer group, para que el envío de push no dependa del
// proceso que atendió el request.
package redisstream

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"pet-care-log/internal/notify"

	"github.com/go-redis/redis/v8"
)

const (
	fieldData      = "data"
	fieldTimestamp = "timestamp"
)

type Publisher struct {
	rdb    *redis.Client
	stream string
}

func NewPublisher(rdb *redis.Client, stream string) *Publisher {
	return &Publisher{rdb: rdb, stream: stream}
}

func (p *Publisher) PublishMessageCreated(ctx context.Context, ev notify.MessageCreated) error {
	b, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("publish message created: %w", err)
	}
	err = p.rdb.XAdd(ctx, &redis.XAddArgs{
		Stream: p.stream,
		Values: map[string]interface{}{
			fieldData:      string(b),
			fieldTimestamp: time.Now().Unix(),
		},
	}).Err()
	if err != nil {
		return fmt.Errorf("publish message created: %w", err)
	}
	return nil
}

var _ notify.Publisher = (*Publisher)(nil)
