// Package notify define el evento que dispara las notificaciones de chat y
// el Dispatcher que las entrega a los demás miembros del pet.
package notify

import (
	"context"
	"errors"
	"time"
)

// MessageCreated se emite después de guardar un mensaje de chat.
type MessageCreated struct {
	PetID     string    `json:"pet_id"`
	MessageID string    `json:"message_id"`
	SenderUID string    `json:"sender_uid"`
	Body      string    `json:"body"`
	CreatedAt time.Time `json:"created_at"`
}

// Publisher entrega eventos al dispatcher, en proceso o por un stream.
type Publisher interface {
	PublishMessageCreated(ctx context.Context, ev MessageCreated) error
}

// Payload es lo que recibe el dispositivo.
type Payload struct {
	Title      string `json:"title"`
	SenderName string `json:"sender_name"`
	PetName    string `json:"pet_name"`
	Body       string `json:"body"`
	Link       string `json:"link"`
}

// ErrInvalidToken lo devuelve un Pusher cuando el gateway indica que el token
// ya no es válido. El dispatcher lo quita del perfil.
var ErrInvalidToken = errors.New("push token no longer valid")

type Pusher interface {
	Push(ctx context.Context, token string, p Payload) error
}
