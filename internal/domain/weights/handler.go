package weights

import (
	"net/http"
	"time"

	"pet-care-log/internal/middleware"
	"pet-care-log/internal/platform/httpjson"
	es "pet-care-log/internal/ports/entitystore"

	"github.com/go-chi/chi/v5"
)

func RegisterRoutes(r chi.Router, svc *Service, authz middleware.Authorizer) {
	viewer := middleware.RequirePetRole(authz, es.RoleViewer)
	editor := middleware.RequirePetRole(authz, es.RoleEditor)

	r.With(viewer).Get("/pets/{petID}/weights", listWeightsHandler(svc))
	r.With(editor).Post("/pets/{petID}/weights", addWeightHandler(svc))
	r.With(editor).Delete("/pets/{petID}/weights/{weightID}", deleteWeightHandler(svc))
}

type addWeightRequest struct {
	Value      float64    `json:"value"`
	Unit       Unit       `json:"unit"` // "kg" (default) o "lb"
	MeasuredAt *time.Time `json:"measured_at"`
	Note       string     `json:"note"`
}

type WeightResponse struct {
	ID         string    `json:"id"`
	PetID      string    `json:"pet_id"`
	Kilograms  float64   `json:"kg"`
	MeasuredAt time.Time `json:"measured_at"`
	Note       string    `json:"note,omitempty"`
	CreatedBy  string    `json:"created_by"`
	CreatedAt  time.Time `json:"created_at"`
}

func addWeightHandler(svc *Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		claims, _ := middleware.RequireUser(r)

		var req addWeightRequest
		if err := httpjson.Decode(r, &req); err != nil {
			httpjson.WriteError(w, err)
			return
		}
		wt, err := svc.Add(r.Context(), chi.URLParam(r, "petID"), claims.UserID, AddInput{
			Value:      req.Value,
			Unit:       req.Unit,
			MeasuredAt: req.MeasuredAt,
			Note:       req.Note,
		})
		if err != nil {
			httpjson.WriteError(w, err)
			return
		}
		httpjson.WriteJSON(w, http.StatusCreated, toResponse(wt))
	}
}

func listWeightsHandler(svc *Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		items, err := svc.List(r.Context(), chi.URLParam(r, "petID"))
		if err != nil {
			httpjson.WriteError(w, err)
			return
		}
		out := make([]WeightResponse, 0, len(items))
		for _, wt := range items {
			out = append(out, toResponse(wt))
		}
		httpjson.WriteJSON(w, http.StatusOK, out)
	}
}

func deleteWeightHandler(svc *Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := svc.Delete(r.Context(), chi.URLParam(r, "petID"), chi.URLParam(r, "weightID")); err != nil {
			httpjson.WriteError(w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

func toResponse(wt es.Weight) WeightResponse {
	return WeightResponse{
		ID:         wt.ID,
		PetID:      wt.PetID,
		Kilograms:  wt.Kilograms,
		MeasuredAt: wt.MeasuredAt,
		Note:       wt.Note,
		CreatedBy:  wt.CreatedBy,
		CreatedAt:  wt.CreatedAt,
	}
}
