package notify

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"pet-care-log/internal/apperr"
	"pet-care-log/internal/domain/users"
	es "pet-care-log/internal/ports/entitystore"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const (
	maxBodyPreview = 140
	maxConcurrent  = 4
)

// TokenStore quita tokens inválidos del perfil del usuario.
type TokenStore interface {
	RemoveNotificationToken(ctx context.Context, uid, token string) (es.User, error)
}

type Dispatcher struct {
	store   es.Store
	tokens  TokenStore
	pusher  Pusher
	baseURL string
	log     *zap.Logger
}

func NewDispatcher(store es.Store, tokens TokenStore, pusher Pusher, appBaseURL string, log *zap.Logger) *Dispatcher {
	if log == nil {
		log = zap.NewNop()
	}
	return &Dispatcher{
		store:   store,
		tokens:  tokens,
		pusher:  pusher,
		baseURL: strings.TrimRight(appBaseURL, "/"),
		log:     log,
	}
}

// Handle notifica a los miembros active del pet, salvo al remitente, que
// tengan las notificaciones activadas. Solo devuelve error si falla la
// lectura del store; los fallos de entrega se loguean.
func (d *Dispatcher) Handle(ctx context.Context, ev MessageCreated) error {
	pet, err := d.store.GetPet(ctx, ev.PetID)
	if errors.Is(err, apperr.ErrNotFound) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("dispatch: %w", err)
	}
	if pet.Deleted {
		return nil
	}

	members, err := d.store.ListMembers(ctx, ev.PetID)
	if err != nil {
		return fmt.Errorf("dispatch: %w", err)
	}

	senderName := "Alguien"
	if u, err := d.store.GetUser(ctx, ev.SenderUID); err == nil {
		if n := users.DisplayName(u); n != "" {
			senderName = n
		}
	}

	payload := Payload{
		Title:      fmt.Sprintf("%s · %s", pet.Name, senderName),
		SenderName: senderName,
		PetName:    pet.Name,
		Body:       preview(ev.Body),
		Link:       fmt.Sprintf("%s/pets/%s/chat", d.baseURL, ev.PetID),
	}

	seen := map[string]struct{}{}
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(maxConcurrent)
	for _, m := range members {
		if m.Status != es.MemberActive || m.UID == "" || m.UID == ev.SenderUID {
			continue
		}
		if _, dup := seen[m.UID]; dup {
			continue
		}
		seen[m.UID] = struct{}{}

		uid := m.UID
		g.Go(func() error { return d.notifyUser(gctx, uid, payload) })
	}
	return g.Wait()
}

func (d *Dispatcher) notifyUser(ctx context.Context, uid string, p Payload) error {
	u, err := d.store.GetUser(ctx, uid)
	if errors.Is(err, apperr.ErrNotFound) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("dispatch to %s: %w", uid, err)
	}
	if !u.Settings.NotificationsEnabled {
		return nil
	}

	for _, token := range u.Settings.NotificationTokens {
		err := d.pusher.Push(ctx, token, p)
		switch {
		case err == nil:
		case errors.Is(err, ErrInvalidToken):
			if _, rmErr := d.tokens.RemoveNotificationToken(ctx, uid, token); rmErr != nil {
				d.log.Warn("remove invalid token failed", zap.String("uid", uid), zap.Error(rmErr))
				continue
			}
			d.log.Info("invalid push token removed", zap.String("uid", uid))
		default:
			d.log.Warn("push failed", zap.String("uid", uid), zap.Error(err))
		}
	}
	return nil
}

func preview(body string) string {
	body = strings.TrimSpace(body)
	if utf8.RuneCountInString(body) <= maxBodyPreview {
		return body
	}
	r := []rune(body)
	return string(r[:maxBodyPreview-1]) + "…"
}
