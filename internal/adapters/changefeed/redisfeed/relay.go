// Package redisfeed reparte los cambios del entitystore entre instancias del
// API por Redis pub/sub, para que las suscripciones en vivo de una instancia
// vean los commits hechos en otra.
package redisfeed

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	es "pet-care-log/internal/ports/entitystore"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const publishTimeout = 2 * time.Second

// LocalPublisher es la parte del live.Hub que usa el relay.
type LocalPublisher interface {
	PublishLocal(changes ...es.Change)
}

type envelope struct {
	Origin  string      `json:"origin"`
	Changes []es.Change `json:"changes"`
}

type Relay struct {
	rdb     *redis.Client
	channel string
	origin  string
	log     *zap.Logger
}

func New(rdb *redis.Client, channel string, log *zap.Logger) *Relay {
	if log == nil {
		log = zap.NewNop()
	}
	return &Relay{
		rdb:     rdb,
		channel: channel,
		origin:  uuid.NewString(),
		log:     log.With(zap.String("channel", channel)),
	}
}

// Forward publica los cambios de un commit local. Un fallo solo se loguea:
// el commit ya se aplicó y los suscriptores locales ya fueron notificados.
func (r *Relay) Forward(changes []es.Change) {
	b, err := json.Marshal(envelope{Origin: r.origin, Changes: changes})
	if err != nil {
		r.log.Error("encode changes", zap.Error(err))
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), publishTimeout)
	defer cancel()
	if err := r.rdb.Publish(ctx, r.channel, b).Err(); err != nil {
		r.log.Warn("publish changes failed", zap.Int("changes", len(changes)), zap.Error(err))
	}
}

// Run se suscribe al canal y entrega en hub los cambios de otras instancias.
// Bloquea hasta que se cancele ctx.
func (r *Relay) Run(ctx context.Context, hub LocalPublisher) error {
	sub := r.rdb.Subscribe(ctx, r.channel)
	defer sub.Close()

	if _, err := sub.Receive(ctx); err != nil {
		return fmt.Errorf("subscribe %s: %w", r.channel, err)
	}

	ch := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-ch:
			if !ok {
				return nil
			}
			var env envelope
			if err := json.Unmarshal([]byte(msg.Payload), &env); err != nil {
				r.log.Warn("dropping malformed change", zap.Error(err))
				continue
			}
			if env.Origin == r.origin {
				continue
			}
			hub.PublishLocal(env.Changes...)
		}
	}
}
