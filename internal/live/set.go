package live

import (
	"sort"
	"sync"
)

// SubscriptionSet mantiene una suscripción interna por clave. En cada
// actualización de la query externa, Sync compara el conjunto anterior con el
// nuevo: abre las claves nuevas y cierra las que desaparecieron.
type SubscriptionSet struct {
	mu     sync.Mutex
	open   func(key string) *Subscription
	subs   map[string]*Subscription
	closed bool
}

func NewSubscriptionSet(open func(key string) *Subscription) *SubscriptionSet {
	return &SubscriptionSet{
		open: open,
		subs: make(map[string]*Subscription),
	}
}

// Sync deja exactamente una suscripción por clave de keys.
func (s *SubscriptionSet) Sync(keys []string) (added, removed []string) {
	want := make(map[string]struct{}, len(keys))
	for _, k := range keys {
		want[k] = struct{}{}
	}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil, nil
	}

	var toClose []*Subscription
	for k, sub := range s.subs {
		if _, ok := want[k]; ok {
			continue
		}
		toClose = append(toClose, sub)
		delete(s.subs, k)
		removed = append(removed, k)
	}
	for k := range want {
		if _, ok := s.subs[k]; ok {
			continue
		}
		added = append(added, k)
	}
	sort.Strings(added)
	sort.Strings(removed)
	s.mu.Unlock()

	for _, sub := range toClose {
		sub.Close()
	}

	// open fuera del lock: el callback inicial de la suscripción puede
	// necesitar consultar el set.
	for _, k := range added {
		sub := s.open(k)
		s.mu.Lock()
		if _, dup := s.subs[k]; dup || s.closed {
			s.mu.Unlock()
			sub.Close()
			continue
		}
		s.subs[k] = sub
		s.mu.Unlock()
	}
	return added, removed
}

// Keys devuelve las claves con suscripción activa, ordenadas.
func (s *SubscriptionSet) Keys() []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]string, 0, len(s.subs))
	for k := range s.subs {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

func (s *SubscriptionSet) Close() {
	s.mu.Lock()
	s.closed = true
	subs := s.subs
	s.subs = map[string]*Subscription{}
	s.mu.Unlock()

	for _, sub := range subs {
		sub.Close()
	}
}
