package live

import (
	"context"
	"sync"
)

// Subscription es una query en vivo. Close es idempotente y se puede llamar
// desde el propio callback.
type Subscription struct {
	cancel context.CancelFunc
	done   chan struct{}
	once   sync.Once
}

func (s *Subscription) Close() {
	if s == nil {
		return
	}
	s.once.Do(s.cancel)
}

// Done se cierra cuando la goroutine de la suscripción terminó.
func (s *Subscription) Done() <-chan struct{} { return s.done }

// Watch ejecuta load una vez y luego cada vez que el hub publica un cambio
// que cumple match, entregando cada resultado a emit. Una goroutine por
// suscripción: emit nunca se llama de forma concurrente para la misma
// suscripción.
func Watch[T any](
	ctx context.Context,
	hub *Hub,
	match func(c Change) bool,
	load func(ctx context.Context) (T, error),
	emit func(v T, err error),
) *Subscription {
	ctx, cancel := context.WithCancel(ctx)
	sub := &Subscription{cancel: cancel, done: make(chan struct{})}

	// Registrar antes de la primera carga para no perder cambios intermedios.
	notify, unlisten := hub.listen(match)

	go func() {
		defer close(sub.done)
		defer unlisten()

		run := func() {
			v, err := load(ctx)
			if ctx.Err() != nil {
				return
			}
			emit(v, err)
		}

		run()
		for {
			select {
			case <-ctx.Done():
				return
			case <-notify:
				run()
			}
		}
	}()

	return sub
}

// Join agrupa suscripciones: Close las cierra todas y Done se cierra cuando
// terminaron todas.
func Join(subs ...*Subscription) *Subscription {
	j := &Subscription{done: make(chan struct{})}
	j.cancel = func() {
		for _, s := range subs {
			s.Close()
		}
	}
	go func() {
		for _, s := range subs {
			<-s.Done()
		}
		close(j.done)
	}()
	return j
}
