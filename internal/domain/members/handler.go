package members

import (
	"context"
	"net/http"
	"time"

	"pet-care-log/internal/apperr"
	"pet-care-log/internal/live"
	"pet-care-log/internal/middleware"
	"pet-care-log/internal/platform/httpjson"
	es "pet-care-log/internal/ports/entitystore"

	"github.com/go-chi/chi/v5"
)

func RegisterRoutes(r chi.Router, svc *Service) {
	viewer := middleware.RequirePetRole(svc, es.RoleViewer)
	editor := middleware.RequirePetRole(svc, es.RoleEditor)
	owner := middleware.RequirePetRole(svc, es.RoleOwner)

	r.With(viewer).Get("/pets/{petID}/members", listMembersHandler(svc))
	r.With(editor).Post("/pets/{petID}/members", inviteHandler(svc))
	r.With(owner).Patch("/pets/{petID}/members/{memberID}", updateRoleHandler(svc))
	r.With(owner).Delete("/pets/{petID}/members/{memberID}", removeMemberHandler(svc))

	// El invitado todavía no es miembro: solo se valida su email.
	r.Post("/pets/{petID}/members/{memberID}/respond", respondHandler(svc))
	r.Get("/me/invitations", listInvitationsHandler(svc))
}

type inviteRequest struct {
	Email string  `json:"email"`
	Role  es.Role `json:"role"`
}

type respondRequest struct {
	Decision Decision `json:"decision"`
}

type updateRoleRequest struct {
	Role es.Role `json:"role"`
}

type MemberResponse struct {
	ID          string          `json:"id"`
	PetID       string          `json:"pet_id"`
	UID         string          `json:"uid,omitempty"`
	Role        es.Role         `json:"role"`
	Status      es.MemberStatus `json:"status"`
	InviteEmail string          `json:"invite_email,omitempty"`
	InvitedBy   string          `json:"invited_by,omitempty"`
	InvitedAt   *time.Time      `json:"invited_at,omitempty"`
	CreatedAt   time.Time       `json:"created_at"`
	UpdatedAt   time.Time       `json:"updated_at"`
}

type InvitationResponse struct {
	MemberID string         `json:"member_id"`
	PetID    string         `json:"pet_id"`
	PetName  string         `json:"pet_name"`
	PetImage string         `json:"pet_image_url,omitempty"`
	Member   MemberResponse `json:"member"`
}

// @Summary Invitar a un usuario por email
// @Tags members
// @Param petID path string true "pet id"
// @Success 201
// @Router /pets/{petID}/members [post]
func inviteHandler(svc *Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		claims, _ := middleware.RequireUser(r)

		var req inviteRequest
		if err := httpjson.Decode(r, &req); err != nil {
			httpjson.WriteError(w, err)
			return
		}

		m, err := svc.Invite(r.Context(), chi.URLParam(r, "petID"), claims.UserID, req.Email, req.Role)
		if err != nil {
			httpjson.WriteError(w, err)
			return
		}
		httpjson.WriteJSON(w, http.StatusCreated, ToMemberResponse(m))
	}
}

func listMembersHandler(svc *Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		items, err := svc.ListMembers(r.Context(), chi.URLParam(r, "petID"))
		if err != nil {
			httpjson.WriteError(w, err)
			return
		}
		out := make([]MemberResponse, 0, len(items))
		for _, m := range items {
			out = append(out, ToMemberResponse(m))
		}
		httpjson.WriteJSON(w, http.StatusOK, out)
	}
}

func updateRoleHandler(svc *Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req updateRoleRequest
		if err := httpjson.Decode(r, &req); err != nil {
			httpjson.WriteError(w, err)
			return
		}
		m, err := svc.UpdateRole(r.Context(), chi.URLParam(r, "petID"), chi.URLParam(r, "memberID"), req.Role)
		if err != nil {
			httpjson.WriteError(w, err)
			return
		}
		httpjson.WriteJSON(w, http.StatusOK, ToMemberResponse(m))
	}
}

func removeMemberHandler(svc *Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := svc.Remove(r.Context(), chi.URLParam(r, "petID"), chi.URLParam(r, "memberID")); err != nil {
			httpjson.WriteError(w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

// @Summary Aceptar o rechazar una invitación
// @Tags members
// @Param petID path string true "pet id"
// @Param memberID path string true "member id"
// @Success 200
// @Router /pets/{petID}/members/{memberID}/respond [post]
func respondHandler(svc *Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		claims, ok := middleware.RequireUser(r)
		if !ok {
			httpjson.WriteError(w, apperr.ErrNotAuthenticated)
			return
		}

		var req respondRequest
		if err := httpjson.Decode(r, &req); err != nil {
			httpjson.WriteError(w, err)
			return
		}

		m, err := svc.Respond(r.Context(), chi.URLParam(r, "petID"), chi.URLParam(r, "memberID"),
			claims.UserID, claims.Email, req.Decision)
		if err != nil {
			httpjson.WriteError(w, err)
			return
		}
		httpjson.WriteJSON(w, http.StatusOK, ToMemberResponse(m))
	}
}

func listInvitationsHandler(svc *Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		claims, ok := middleware.RequireUser(r)
		if !ok {
			httpjson.WriteError(w, apperr.ErrNotAuthenticated)
			return
		}
		items, err := svc.ListPendingInvitations(r.Context(), claims.Email)
		if err != nil {
			httpjson.WriteError(w, err)
			return
		}
		httpjson.WriteJSON(w, http.StatusOK, ToInvitationResponses(items))
	}
}

// WatchInvitations adapta WatchPendingInvitations a la forma de respuesta HTTP.
func (s *Service) WatchInvitations(ctx context.Context, email string, emit func(any, error)) *live.Subscription {
	return s.WatchPendingInvitations(ctx, email, func(items []Invitation, err error) {
		emit(ToInvitationResponses(items), err)
	})
}

func ToInvitationResponses(items []Invitation) []InvitationResponse {
	out := make([]InvitationResponse, 0, len(items))
	for _, inv := range items {
		out = append(out, InvitationResponse{
			MemberID: inv.MemberID,
			PetID:    inv.Pet.ID,
			PetName:  inv.Pet.Name,
			PetImage: inv.Pet.ProfileImageURL,
			Member:   ToMemberResponse(inv.Member),
		})
	}
	return out
}

func ToMemberResponse(m es.Member) MemberResponse {
	return MemberResponse{
		ID:          m.ID,
		PetID:       m.PetID,
		UID:         m.UID,
		Role:        m.Role,
		Status:      m.Status,
		InviteEmail: m.InviteEmail,
		InvitedBy:   m.InvitedBy,
		InvitedAt:   m.InvitedAt,
		CreatedAt:   m.CreatedAt,
		UpdatedAt:   m.UpdatedAt,
	}
}
