package chat

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"pet-care-log/internal/apperr"
	"pet-care-log/internal/live"
	"pet-care-log/internal/middleware"
	"pet-care-log/internal/platform/httpjson"
	es "pet-care-log/internal/ports/entitystore"

	"github.com/go-chi/chi/v5"
)

func RegisterRoutes(r chi.Router, svc *Service, authz middleware.Authorizer) {
	// Los viewers también chatean.
	viewer := middleware.RequirePetRole(authz, es.RoleViewer)

	r.With(viewer).Get("/pets/{petID}/messages", listMessagesHandler(svc))
	r.With(viewer).Post("/pets/{petID}/messages", sendMessageHandler(svc))
}

type sendMessageRequest struct {
	Body string `json:"body"`
}

type MessageResponse struct {
	ID        string    `json:"id"`
	PetID     string    `json:"pet_id"`
	SenderUID string    `json:"sender_uid"`
	Body      string    `json:"body"`
	CreatedAt time.Time `json:"created_at"`
}

func sendMessageHandler(svc *Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		claims, _ := middleware.RequireUser(r)

		var req sendMessageRequest
		if err := httpjson.Decode(r, &req); err != nil {
			httpjson.WriteError(w, err)
			return
		}
		m, err := svc.Send(r.Context(), chi.URLParam(r, "petID"), claims.UserID, req.Body)
		if err != nil {
			httpjson.WriteError(w, err)
			return
		}
		httpjson.WriteJSON(w, http.StatusCreated, toResponse(m))
	}
}

func listMessagesHandler(svc *Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		limit, err := ParseLimit(r)
		if err != nil {
			httpjson.WriteError(w, err)
			return
		}
		items, err := svc.List(r.Context(), chi.URLParam(r, "petID"), limit)
		if err != nil {
			httpjson.WriteError(w, err)
			return
		}
		httpjson.WriteJSON(w, http.StatusOK, toResponses(items))
	}
}

// ParseLimit lee ?limit=; vacío => 0 (default del servicio).
func ParseLimit(r *http.Request) (int, error) {
	raw := r.URL.Query().Get("limit")
	if raw == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return 0, apperr.Validation("limit", "must be a positive integer")
	}
	return n, nil
}

func (s *Service) WatchResponses(ctx context.Context, petID string, limit int, emit func(any, error)) *live.Subscription {
	return s.Watch(ctx, petID, limit, func(items []es.Message, err error) {
		emit(toResponses(items), err)
	})
}

func toResponses(items []es.Message) []MessageResponse {
	out := make([]MessageResponse, 0, len(items))
	for _, m := range items {
		out = append(out, toResponse(m))
	}
	return out
}

func toResponse(m es.Message) MessageResponse {
	return MessageResponse{
		ID:        m.ID,
		PetID:     m.PetID,
		SenderUID: m.SenderUID,
		Body:      m.Body,
		CreatedAt: m.CreatedAt,
	}
}
