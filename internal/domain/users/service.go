// Package users mantiene users/{uid}: se sincroniza con el proveedor de
// identidad y solo el propio usuario edita su perfil.
package users

import (
	"context"
	"errors"
	"fmt"
	"io"
	"regexp"
	"strings"
	"time"

	"pet-care-log/internal/apperr"
	"pet-care-log/internal/ports/auth"
	"pet-care-log/internal/ports/blob"
	es "pet-care-log/internal/ports/entitystore"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

const maxNicknameLength = 30

var hexColor = regexp.MustCompile(`^#(?:[0-9a-fA-F]{3}|[0-9a-fA-F]{6})$`)

// ProfileInput: nil = no tocar.
type ProfileInput struct {
	Nickname             *string
	LogColors            *es.LogColors
	NotificationsEnabled *bool
	PrimaryPetID         *string
}

type Service struct {
	store    es.Store
	uploader blob.Uploader
	log      *zap.Logger
	now      func() time.Time
	newID    func() string
}

func NewService(store es.Store, uploader blob.Uploader, log *zap.Logger) *Service {
	if log == nil {
		log = zap.NewNop()
	}
	return &Service{
		store:    store,
		uploader: uploader,
		log:      log,
		now:      time.Now,
		newID:    uuid.NewString,
	}
}

// Sync crea el perfil con valores por defecto la primera vez y reconcilia los
// campos del proveedor cuando cambian. Sin cambios no escribe.
func (s *Service) Sync(ctx context.Context, c auth.Claims) error {
	if strings.TrimSpace(c.UserID) == "" {
		return apperr.ErrNotAuthenticated
	}

	provider := c.Provider
	if provider == "" && len(c.Providers) > 0 {
		provider = c.Providers[0]
	}
	email := strings.ToLower(strings.TrimSpace(c.Email))

	u, err := s.store.GetUser(ctx, c.UserID)
	switch {
	case errors.Is(err, apperr.ErrNotFound):
		now := s.now()
		u = es.User{
			UID:          c.UserID,
			AuthEmail:    email,
			AuthName:     c.Name,
			AuthProvider: provider,
			IsAnonymous:  c.IsAnonymous,
			Settings:     es.UserSettings{NotificationsEnabled: true},
			CreatedAt:    now,
			UpdatedAt:    now,
		}
		if err := s.store.Commit(ctx, es.NewBatch().Add(es.PutUser{User: u})); err != nil {
			return fmt.Errorf("sync user: %w", err)
		}
		s.log.Info("user profile created", zap.String("uid", c.UserID), zap.String("provider", provider))
		return nil
	case err != nil:
		return fmt.Errorf("sync user: %w", err)
	}

	if u.AuthEmail == email && u.AuthName == c.Name && u.AuthProvider == provider && u.IsAnonymous == c.IsAnonymous {
		return nil
	}
	u.AuthEmail = email
	u.AuthName = c.Name
	u.AuthProvider = provider
	u.IsAnonymous = c.IsAnonymous
	u.UpdatedAt = s.now()
	if err := s.store.Commit(ctx, es.NewBatch().Add(es.PutUser{User: u})); err != nil {
		return fmt.Errorf("sync user: %w", err)
	}
	return nil
}

func (s *Service) Get(ctx context.Context, uid string) (es.User, error) {
	u, err := s.store.GetUser(ctx, uid)
	if err != nil {
		return es.User{}, fmt.Errorf("get user: %w", err)
	}
	return u, nil
}

func (s *Service) UpdateProfile(ctx context.Context, uid string, in ProfileInput) (es.User, error) {
	if in.Nickname != nil {
		n := strings.TrimSpace(*in.Nickname)
		if len([]rune(n)) > maxNicknameLength {
			return es.User{}, apperr.Validation("nickname", fmt.Sprintf("must be at most %d characters", maxNicknameLength))
		}
		in.Nickname = &n
	}
	if in.LogColors != nil {
		for field, v := range map[string]string{
			"creatorNameBgColor":   in.LogColors.CreatorNameBgColor,
			"creatorNameTextColor": in.LogColors.CreatorNameTextColor,
			"timeBgColor":          in.LogColors.TimeBgColor,
			"timeTextColor":        in.LogColors.TimeTextColor,
		} {
			if v != "" && !hexColor.MatchString(v) {
				return es.User{}, apperr.Validation(field, "must be a hex color")
			}
		}
	}

	return s.modify(ctx, uid, "update profile", func(u *es.User) {
		if in.Nickname != nil {
			u.Nickname = *in.Nickname
		}
		if in.LogColors != nil {
			u.Settings.LogColors = *in.LogColors
		}
		if in.NotificationsEnabled != nil {
			u.Settings.NotificationsEnabled = *in.NotificationsEnabled
		}
		if in.PrimaryPetID != nil {
			u.PrimaryPetID = *in.PrimaryPetID
		}
	})
}

// AddNotificationToken registra un token de push. Repetirlo no duplica.
func (s *Service) AddNotificationToken(ctx context.Context, uid, token string) (es.User, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return es.User{}, apperr.Validation("token", "is required")
	}
	return s.modify(ctx, uid, "add notification token", func(u *es.User) {
		if !es.Contains(u.Settings.NotificationTokens, token) {
			u.Settings.NotificationTokens = append(u.Settings.NotificationTokens, token)
		}
	})
}

func (s *Service) RemoveNotificationToken(ctx context.Context, uid, token string) (es.User, error) {
	return s.modify(ctx, uid, "remove notification token", func(u *es.User) {
		kept := u.Settings.NotificationTokens[:0:0]
		for _, t := range u.Settings.NotificationTokens {
			if t != token {
				kept = append(kept, t)
			}
		}
		u.Settings.NotificationTokens = kept
	})
}

func (s *Service) UploadImage(ctx context.Context, uid, filename, contentType string, r io.Reader) (es.User, error) {
	if s.uploader == nil {
		return es.User{}, fmt.Errorf("upload user image: no object storage configured: %w", apperr.ErrTransientStore)
	}
	name := fmt.Sprintf("users/%s/%s-%s", uid, s.newID(), filename)
	url, err := s.uploader.Upload(ctx, name, contentType, r)
	if err != nil {
		return es.User{}, fmt.Errorf("upload user image: %w", apperr.Transient(err))
	}
	return s.modify(ctx, uid, "upload user image", func(u *es.User) { u.ProfileImageURL = url })
}

func (s *Service) modify(ctx context.Context, uid, op string, fn func(*es.User)) (es.User, error) {
	u, err := s.store.GetUser(ctx, uid)
	if err != nil {
		return es.User{}, fmt.Errorf("%s: %w", op, err)
	}
	fn(&u)
	u.UpdatedAt = s.now()
	if err := s.store.Commit(ctx, es.NewBatch().Add(es.PutUser{User: u})); err != nil {
		return es.User{}, fmt.Errorf("%s: %w", op, err)
	}
	return u, nil
}

// DisplayName: nickname, luego nombre del proveedor, luego email.
func DisplayName(u es.User) string {
	for _, v := range []string{u.Nickname, u.AuthName, u.AuthEmail} {
		if s := strings.TrimSpace(v); s != "" {
			return s
		}
	}
	return ""
}
