package users

import (
	"net/http"
	"time"

	"pet-care-log/internal/apperr"
	"pet-care-log/internal/middleware"
	"pet-care-log/internal/platform/httpjson"
	es "pet-care-log/internal/ports/entitystore"

	"github.com/go-chi/chi/v5"
)

const maxImageBytes = 5 << 20

func RegisterRoutes(r chi.Router, svc *Service) {
	r.Get("/me", getMeHandler(svc))
	r.Patch("/me", updateMeHandler(svc))
	r.Post("/me/image", uploadImageHandler(svc))
	r.Post("/me/notification-tokens", addTokenHandler(svc))
	r.Delete("/me/notification-tokens/{token}", removeTokenHandler(svc))
}

type updateMeRequest struct {
	Nickname             *string       `json:"nickname"`
	LogColors            *es.LogColors `json:"log_colors"`
	NotificationsEnabled *bool         `json:"notifications_enabled"`
	PrimaryPetID         *string       `json:"primary_pet_id"`
}

type tokenRequest struct {
	Token string `json:"token"`
}

type UserResponse struct {
	UID                  string       `json:"uid"`
	DisplayName          string       `json:"display_name"`
	AuthEmail            string       `json:"auth_email,omitempty"`
	AuthName             string       `json:"auth_name,omitempty"`
	AuthProvider         string       `json:"auth_provider,omitempty"`
	IsAnonymous          bool         `json:"is_anonymous"`
	Nickname             string       `json:"nickname,omitempty"`
	ProfileImageURL      string       `json:"profile_image_url,omitempty"`
	LogColors            es.LogColors `json:"log_colors"`
	NotificationsEnabled bool         `json:"notifications_enabled"`
	NotificationTokens   int          `json:"notification_tokens"`
	PrimaryPetID         string       `json:"primary_pet_id,omitempty"`
	CreatedAt            time.Time    `json:"created_at"`
	UpdatedAt            time.Time    `json:"updated_at"`
}

// withUser exige identidad y pasa el uid al handler.
func withUser(fn func(w http.ResponseWriter, r *http.Request, uid string)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		claims, ok := middleware.RequireUser(r)
		if !ok {
			httpjson.WriteError(w, apperr.ErrNotAuthenticated)
			return
		}
		fn(w, r, claims.UserID)
	}
}

func getMeHandler(svc *Service) http.HandlerFunc {
	return withUser(func(w http.ResponseWriter, r *http.Request, uid string) {
		u, err := svc.Get(r.Context(), uid)
		if err != nil {
			httpjson.WriteError(w, err)
			return
		}
		httpjson.WriteJSON(w, http.StatusOK, toUserResponse(u))
	})
}

// @Summary Actualizar mi perfil
// @Tags users
// @Success 200 {object} UserResponse
// @Router /me [patch]
func updateMeHandler(svc *Service) http.HandlerFunc {
	return withUser(func(w http.ResponseWriter, r *http.Request, uid string) {
		var req updateMeRequest
		if err := httpjson.Decode(r, &req); err != nil {
			httpjson.WriteError(w, err)
			return
		}
		u, err := svc.UpdateProfile(r.Context(), uid, ProfileInput{
			Nickname:             req.Nickname,
			LogColors:            req.LogColors,
			NotificationsEnabled: req.NotificationsEnabled,
			PrimaryPetID:         req.PrimaryPetID,
		})
		if err != nil {
			httpjson.WriteError(w, err)
			return
		}
		httpjson.WriteJSON(w, http.StatusOK, toUserResponse(u))
	})
}

func uploadImageHandler(svc *Service) http.HandlerFunc {
	return withUser(func(w http.ResponseWriter, r *http.Request, uid string) {
		r.Body = http.MaxBytesReader(w, r.Body, maxImageBytes)
		file, hdr, err := r.FormFile("file")
		if err != nil {
			httpjson.WriteError(w, apperr.Validation("file", "is required"))
			return
		}
		defer file.Close()

		u, err := svc.UploadImage(r.Context(), uid, hdr.Filename, hdr.Header.Get("Content-Type"), file)
		if err != nil {
			httpjson.WriteError(w, err)
			return
		}
		httpjson.WriteJSON(w, http.StatusOK, toUserResponse(u))
	})
}

func addTokenHandler(svc *Service) http.HandlerFunc {
	return withUser(func(w http.ResponseWriter, r *http.Request, uid string) {
		var req tokenRequest
		if err := httpjson.Decode(r, &req); err != nil {
			httpjson.WriteError(w, err)
			return
		}
		u, err := svc.AddNotificationToken(r.Context(), uid, req.Token)
		if err != nil {
			httpjson.WriteError(w, err)
			return
		}
		httpjson.WriteJSON(w, http.StatusOK, toUserResponse(u))
	})
}

func removeTokenHandler(svc *Service) http.HandlerFunc {
	return withUser(func(w http.ResponseWriter, r *http.Request, uid string) {
		if _, err := svc.RemoveNotificationToken(r.Context(), uid, chi.URLParam(r, "token")); err != nil {
			httpjson.WriteError(w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	})
}

func toUserResponse(u es.User) UserResponse {
	return UserResponse{
		UID:                  u.UID,
		DisplayName:          DisplayName(u),
		AuthEmail:            u.AuthEmail,
		AuthName:             u.AuthName,
		AuthProvider:         u.AuthProvider,
		IsAnonymous:          u.IsAnonymous,
		Nickname:             u.Nickname,
		ProfileImageURL:      u.ProfileImageURL,
		LogColors:            u.Settings.LogColors,
		NotificationsEnabled: u.Settings.NotificationsEnabled,
		NotificationTokens:   len(u.Settings.NotificationTokens),
		PrimaryPetID:         u.PrimaryPetID,
		CreatedAt:            u.CreatedAt,
		UpdatedAt:            u.UpdatedAt,
	}
}
