package notify

import (
	"context"
	"sync"

	"go.uber.org/zap"
)

// Direct entrega los eventos al dispatcher en el mismo proceso, sin bloquear
// a quien publica.
type Direct struct {
	d   *Dispatcher
	log *zap.Logger
	wg  sync.WaitGroup
}

func NewDirect(d *Dispatcher, log *zap.Logger) *Direct {
	if log == nil {
		log = zap.NewNop()
	}
	return &Direct{d: d, log: log}
}

func (p *Direct) PublishMessageCreated(ctx context.Context, ev MessageCreated) error {
	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		// El request que originó el mensaje puede terminar antes que el envío.
		if err := p.d.Handle(context.WithoutCancel(ctx), ev); err != nil {
			p.log.Error("dispatch failed", zap.String("pet_id", ev.PetID),
				zap.String("message_id", ev.MessageID), zap.Error(err))
		}
	}()
	return nil
}

// Wait bloquea hasta que terminen los envíos en curso.
func (p *Direct) Wait() { p.wg.Wait() }

// LogPusher solo loguea; se usa cuando no hay gateway de push configurado.
type LogPusher struct {
	Log *zap.Logger
}

func (p LogPusher) Push(_ context.Context, token string, pl Payload) error {
	if p.Log != nil {
		p.Log.Info("push (no gateway)", zap.String("title", pl.Title),
			zap.String("link", pl.Link), zap.Int("token_len", len(token)))
	}
	return nil
}
