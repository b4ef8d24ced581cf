package tasks

import (
	"context"
	"net/http"
	"time"

	"pet-care-log/internal/live"
	"pet-care-log/internal/middleware"
	"pet-care-log/internal/platform/httpjson"
	es "pet-care-log/internal/ports/entitystore"

	"github.com/go-chi/chi/v5"
)

func RegisterRoutes(r chi.Router, svc *Service, authz middleware.Authorizer) {
	viewer := middleware.RequirePetRole(authz, es.RoleViewer)
	editor := middleware.RequirePetRole(authz, es.RoleEditor)

	r.With(viewer).Get("/pets/{petID}/tasks", listTasksHandler(svc))
	r.With(editor).Post("/pets/{petID}/tasks", addTaskHandler(svc))
	r.With(editor).Put("/pets/{petID}/tasks/order", reorderHandler(svc))
	r.With(editor).Post("/pets/{petID}/tasks/bulk-delete", bulkDeleteHandler(svc))
	r.With(editor).Patch("/pets/{petID}/tasks/{taskID}", updateTaskHandler(svc))
	r.With(editor).Delete("/pets/{petID}/tasks/{taskID}", deleteTaskHandler(svc))
}

type addTaskRequest struct {
	Name      string `json:"name"`
	Color     string `json:"color"`
	TextColor string `json:"text_color"`
	Order     *int64 `json:"order"`
}

type updateTaskRequest struct {
	Name      *string `json:"name"`
	Color     *string `json:"color"`
	TextColor *string `json:"text_color"`
}

type taskIDsRequest struct {
	TaskIDs []string `json:"task_ids"`
}

type TaskResponse struct {
	ID        string    `json:"id"`
	PetID     string    `json:"pet_id"`
	Name      string    `json:"name"`
	Color     string    `json:"color"`
	TextColor string    `json:"text_color"`
	Order     int64     `json:"order"`
	CreatedBy string    `json:"created_by"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func listTasksHandler(svc *Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		items, err := svc.List(r.Context(), chi.URLParam(r, "petID"))
		if err != nil {
			httpjson.WriteError(w, err)
			return
		}
		httpjson.WriteJSON(w, http.StatusOK, ToResponses(items))
	}
}

// @Summary Crear tarea
// @Tags tasks
// @Param petID path string true "pet id"
// @Success 201 {object} TaskResponse
// @Router /pets/{petID}/tasks [post]
func addTaskHandler(svc *Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		claims, _ := middleware.RequireUser(r)

		var req addTaskRequest
		if err := httpjson.Decode(r, &req); err != nil {
			httpjson.WriteError(w, err)
			return
		}
		t, err := svc.Add(r.Context(), chi.URLParam(r, "petID"), claims.UserID, AddInput{
			Name:      req.Name,
			Color:     req.Color,
			TextColor: req.TextColor,
			Order:     req.Order,
		})
		if err != nil {
			httpjson.WriteError(w, err)
			return
		}
		httpjson.WriteJSON(w, http.StatusCreated, ToResponse(t))
	}
}

func updateTaskHandler(svc *Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req updateTaskRequest
		if err := httpjson.Decode(r, &req); err != nil {
			httpjson.WriteError(w, err)
			return
		}
		t, err := svc.Update(r.Context(), chi.URLParam(r, "petID"), chi.URLParam(r, "taskID"), UpdateInput{
			Name:      req.Name,
			Color:     req.Color,
			TextColor: req.TextColor,
		})
		if err != nil {
			httpjson.WriteError(w, err)
			return
		}
		httpjson.WriteJSON(w, http.StatusOK, ToResponse(t))
	}
}

func deleteTaskHandler(svc *Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := svc.Delete(r.Context(), chi.URLParam(r, "petID"), chi.URLParam(r, "taskID")); err != nil {
			httpjson.WriteError(w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

func bulkDeleteHandler(svc *Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req taskIDsRequest
		if err := httpjson.Decode(r, &req); err != nil {
			httpjson.WriteError(w, err)
			return
		}
		if err := svc.BulkDelete(r.Context(), chi.URLParam(r, "petID"), req.TaskIDs); err != nil {
			httpjson.WriteError(w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

func reorderHandler(svc *Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req taskIDsRequest
		if err := httpjson.Decode(r, &req); err != nil {
			httpjson.WriteError(w, err)
			return
		}
		petID := chi.URLParam(r, "petID")
		if err := svc.Reorder(r.Context(), petID, req.TaskIDs); err != nil {
			httpjson.WriteError(w, err)
			return
		}
		items, err := svc.List(r.Context(), petID)
		if err != nil {
			httpjson.WriteError(w, err)
			return
		}
		httpjson.WriteJSON(w, http.StatusOK, ToResponses(items))
	}
}

func (s *Service) WatchResponses(ctx context.Context, petID string, emit func(any, error)) *live.Subscription {
	return s.Watch(ctx, petID, func(items []es.Task, err error) {
		emit(ToResponses(items), err)
	})
}

func ToResponses(items []es.Task) []TaskResponse {
	out := make([]TaskResponse, 0, len(items))
	for _, t := range items {
		out = append(out, ToResponse(t))
	}
	return out
}

func ToResponse(t es.Task) TaskResponse {
	return TaskResponse{
		ID:        t.ID,
		PetID:     t.PetID,
		Name:      t.Name,
		Color:     t.Color,
		TextColor: t.TextColor,
		Order:     t.Order,
		CreatedBy: t.CreatedBy,
		CreatedAt: t.CreatedAt,
		UpdatedAt: t.UpdatedAt,
	}
}
