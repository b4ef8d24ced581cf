// Package live implementa las suscripciones en vivo sobre el entitystore:
// un Hub que difunde los Change de cada commit, Watch para queries que se
// recalculan al cambiar sus datos y SubscriptionSet para joins de dos niveles.
package live

import (
	"sync"

	es "pet-care-log/internal/ports/entitystore"

	"go.uber.org/zap"
)

// Relay propaga cambios locales a otras instancias (p.ej. redis pub/sub).
type Relay interface {
	Forward(changes []es.Change)
}

type listener struct {
	match  func(es.Change) bool
	notify chan struct{}
}

type Hub struct {
	mu        sync.RWMutex
	listeners map[uint64]*listener
	next      uint64
	relay     Relay
	log       *zap.Logger
}

func NewHub(log *zap.Logger) *Hub {
	if log == nil {
		log = zap.NewNop()
	}
	return &Hub{
		listeners: make(map[uint64]*listener),
		log:       log,
	}
}

// SetRelay conecta el hub a un relay entre instancias. Llamar antes de servir.
func (h *Hub) SetRelay(r Relay) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.relay = r
}

// Publish difunde cambios de un commit local y los reenvía al relay.
func (h *Hub) Publish(changes ...es.Change) {
	h.PublishLocal(changes...)

	h.mu.RLock()
	relay := h.relay
	h.mu.RUnlock()
	if relay != nil && len(changes) > 0 {
		relay.Forward(changes)
	}
}

// PublishLocal difunde sin reenviar; lo usa el relay al recibir de otra instancia.
func (h *Hub) PublishLocal(changes ...es.Change) {
	if len(changes) == 0 {
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()

	for _, l := range h.listeners {
		for _, c := range changes {
			if !l.match(c) {
				continue
			}
			// buffer de 1: varias notificaciones seguidas se coalescen
			select {
			case l.notify <- struct{}{}:
			default:
			}
			break
		}
	}
}

func (h *Hub) listen(match func(es.Change) bool) (<-chan struct{}, func()) {
	l := &listener{match: match, notify: make(chan struct{}, 1)}

	h.mu.Lock()
	h.next++
	id := h.next
	h.listeners[id] = l
	h.mu.Unlock()

	return l.notify, func() {
		h.mu.Lock()
		delete(h.listeners, id)
		h.mu.Unlock()
	}
}

// Listeners devuelve cuántas suscripciones están registradas.
func (h *Hub) Listeners() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.listeners)
}
