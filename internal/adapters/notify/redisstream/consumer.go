package redisstream

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"pet-care-log/internal/notify"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"
)

// Handler procesa un evento; notify.Dispatcher lo implementa.
type Handler interface {
	Handle(ctx context.Context, ev notify.MessageCreated) error
}

type ConsumerOptions struct {
	Stream   string
	Group    string
	Consumer string
	// Block es la espera máxima de cada XREADGROUP.
	Block time.Duration
	Count int64
}

type Consumer struct {
	rdb  *redis.Client
	opts ConsumerOptions
	h    Handler
	log  *zap.Logger
}

func NewConsumer(rdb *redis.Client, opts ConsumerOptions, h Handler, log *zap.Logger) *Consumer {
	if opts.Block <= 0 {
		opts.Block = 5 * time.Second
	}
	if opts.Count <= 0 {
		opts.Count = 16
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Consumer{rdb: rdb, opts: opts, h: h, log: log.With(
		zap.String("stream", opts.Stream),
		zap.String("group", opts.Group),
		zap.String("consumer", opts.Consumer),
	)}
}

// EnsureGroup crea el stream y el grupo si no existen.
func (c *Consumer) EnsureGroup(ctx context.Context) error {
	err := c.rdb.XGroupCreateMkStream(ctx, c.opts.Stream, c.opts.Group, "0").Err()
	if err != nil && !strings.HasPrefix(err.Error(), "BUSYGROUP") {
		return fmt.Errorf("create group: %w", err)
	}
	return nil
}

// Run consume hasta que se cancele ctx. Primero reprocesa lo que este
// consumer dejó pendiente sin ACK en una ejecución anterior.
func (c *Consumer) Run(ctx context.Context) error {
	if err := c.EnsureGroup(ctx); err != nil {
		return err
	}

	if _, err := c.poll(ctx, "0", -1); err != nil && ctx.Err() == nil {
		c.log.Warn("pending replay failed", zap.Error(err))
	}

	for {
		if ctx.Err() != nil {
			return nil
		}
		if _, err := c.poll(ctx, ">", c.opts.Block); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			c.log.Error("read stream failed", zap.Error(err))
			select {
			case <-ctx.Done():
				return nil
			case <-time.After(time.Second):
			}
		}
	}
}

// poll lee un lote a partir de id y devuelve cuántos mensajes se confirmaron.
func (c *Consumer) poll(ctx context.Context, id string, block time.Duration) (int, error) {
	streams, err := c.rdb.XReadGroup(ctx, &redis.XReadGroupArgs{
		Group:    c.opts.Group,
		Consumer: c.opts.Consumer,
		Streams:  []string{c.opts.Stream, id},
		Count:    c.opts.Count,
		Block:    block,
	}).Result()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}

	acked := 0
	for _, s := range streams {
		for _, msg := range s.Messages {
			if c.process(ctx, msg) {
				if err := c.rdb.XAck(ctx, c.opts.Stream, c.opts.Group, msg.ID).Err(); err != nil {
					return acked, fmt.Errorf("ack %s: %w", msg.ID, err)
				}
				acked++
			}
		}
	}
	return acked, nil
}

// process devuelve true si el mensaje debe confirmarse. Un payload ilegible
// se confirma para no bloquear el grupo.
func (c *Consumer) process(ctx context.Context, msg redis.XMessage) bool {
	raw, _ := msg.Values[fieldData].(string)
	var ev notify.MessageCreated
	if err := json.Unmarshal([]byte(raw), &ev); err != nil || ev.PetID == "" {
		c.log.Warn("dropping malformed event", zap.String("id", msg.ID), zap.Error(err))
		return true
	}

	if err := c.h.Handle(ctx, ev); err != nil {
		c.log.Error("handle event failed", zap.String("id", msg.ID),
			zap.String("pet_id", ev.PetID), zap.Error(err))
		return false
	}
	return true
}
