package live

import (
	"context"

	es "pet-care-log/internal/ports/entitystore"
)

// PublishingStore decora un entitystore: tras cada Commit exitoso publica
// los cambios del batch en el hub.
type PublishingStore struct {
	es.Store
	hub *Hub
}

func NewPublishingStore(store es.Store, hub *Hub) *PublishingStore {
	return &PublishingStore{Store: store, hub: hub}
}

func (s *PublishingStore) Commit(ctx context.Context, b *es.Batch) error {
	if err := s.Store.Commit(ctx, b); err != nil {
		return err
	}
	s.hub.Publish(b.Changes()...)
	return nil
}
