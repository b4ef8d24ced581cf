package visibility

import (
	"context"
	"net/http"

	"pet-care-log/internal/apperr"
	"pet-care-log/internal/domain/pets"
	"pet-care-log/internal/live"
	"pet-care-log/internal/middleware"
	"pet-care-log/internal/platform/httpjson"
	es "pet-care-log/internal/ports/entitystore"

	"github.com/go-chi/chi/v5"
)

type VisiblePetResponse struct {
	Pet      pets.PetResponse `json:"pet"`
	Role     es.Role          `json:"role"`
	MemberID string           `json:"member_id"`
}

func RegisterRoutes(r chi.Router, res *Resolver) {
	r.Get("/me/pets", listVisibleHandler(res))
}

// @Summary Mascotas visibles para el usuario
// @Tags pets
// @Produce json
// @Success 200 {array} VisiblePetResponse
// @Router /me/pets [get]
func listVisibleHandler(res *Resolver) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		claims, ok := middleware.RequireUser(r)
		if !ok {
			httpjson.WriteError(w, apperr.ErrNotAuthenticated)
			return
		}
		items, err := res.VisiblePets(r.Context(), claims.UserID)
		if err != nil {
			httpjson.WriteError(w, err)
			return
		}
		httpjson.WriteJSON(w, http.StatusOK, ToResponses(items))
	}
}

// WatchResponses es Watch con la forma de respuesta HTTP.
func (res *Resolver) WatchResponses(ctx context.Context, uid string, emit func(any, error)) *live.Subscription {
	return res.Watch(ctx, uid, func(items []VisiblePet, err error) {
		emit(ToResponses(items), err)
	})
}

func ToResponses(items []VisiblePet) []VisiblePetResponse {
	out := make([]VisiblePetResponse, 0, len(items))
	for _, v := range items {
		out = append(out, VisiblePetResponse{
			Pet:      pets.ToPetResponse(v.Pet),
			Role:     v.Role,
			MemberID: v.MemberID,
		})
	}
	return out
}
