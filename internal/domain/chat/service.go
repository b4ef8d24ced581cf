// Package chat es el chat entre los miembros de un pet.
package chat

import (
	"context"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"pet-care-log/internal/apperr"
	"pet-care-log/internal/live"
	"pet-care-log/internal/notify"
	es "pet-care-log/internal/ports/entitystore"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	MaxBodyLength = 2000
	DefaultLimit  = 50
	MaxLimit      = 200
)

type Service struct {
	store     es.Store
	hub       *live.Hub
	publisher notify.Publisher
	log       *zap.Logger
	now       func() time.Time
	newID     func() string
}

func NewService(store es.Store, hub *live.Hub, publisher notify.Publisher, log *zap.Logger) *Service {
	if log == nil {
		log = zap.NewNop()
	}
	return &Service{
		store:     store,
		hub:       hub,
		publisher: publisher,
		log:       log,
		now:       time.Now,
		newID:     uuid.NewString,
	}
}

// Send guarda el mensaje y emite MessageCreated. Si la publicación falla el
// mensaje queda guardado igual y el fallo se loguea.
func (s *Service) Send(ctx context.Context, petID, senderUID, body string) (es.Message, error) {
	if strings.TrimSpace(senderUID) == "" {
		return es.Message{}, fmt.Errorf("send message: %w", apperr.ErrNotAuthenticated)
	}
	body = strings.TrimSpace(body)
	if body == "" {
		return es.Message{}, apperr.Validation("body", "is required")
	}
	if utf8.RuneCountInString(body) > MaxBodyLength {
		return es.Message{}, apperr.Validation("body", fmt.Sprintf("must be at most %d characters", MaxBodyLength))
	}

	m := es.Message{
		ID:        s.newID(),
		PetID:     petID,
		SenderUID: senderUID,
		Body:      body,
		CreatedAt: s.now(),
	}
	if err := s.store.Commit(ctx, es.NewBatch().Add(es.PutMessage{Message: m})); err != nil {
		return es.Message{}, fmt.Errorf("send message: %w", err)
	}

	if s.publisher != nil {
		ev := notify.MessageCreated{
			PetID:     petID,
			MessageID: m.ID,
			SenderUID: senderUID,
			Body:      body,
			CreatedAt: m.CreatedAt,
		}
		if err := s.publisher.PublishMessageCreated(ctx, ev); err != nil {
			s.log.Error("publish message created failed",
				zap.String("pet_id", petID), zap.String("message_id", m.ID), zap.Error(err))
		}
	}
	return m, nil
}

// List devuelve los últimos limit mensajes, del más nuevo al más viejo.
func (s *Service) List(ctx context.Context, petID string, limit int) ([]es.Message, error) {
	if limit <= 0 {
		limit = DefaultLimit
	}
	if limit > MaxLimit {
		limit = MaxLimit
	}
	out, err := s.store.ListMessages(ctx, petID, limit)
	if err != nil {
		return nil, fmt.Errorf("list messages: %w", err)
	}
	return out, nil
}

func (s *Service) Watch(ctx context.Context, petID string, limit int, emit func([]es.Message, error)) *live.Subscription {
	return live.Watch(ctx, s.hub, live.PetCollection(es.CollectionMessages, petID),
		func(ctx context.Context) ([]es.Message, error) { return s.List(ctx, petID, limit) },
		emit,
	)
}
