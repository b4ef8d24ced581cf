package pets

import (
	"encoding/json"
	"net/http"
	"time"

	"pet-care-log/internal/apperr"
	"pet-care-log/internal/middleware"
	"pet-care-log/internal/platform/httpjson"
	es "pet-care-log/internal/ports/entitystore"

	"github.com/go-chi/chi/v5"
)

const maxImageBytes = 5 << 20

func RegisterRoutes(r chi.Router, svc *Service, authz middleware.Authorizer) {
	viewer := middleware.RequirePetRole(authz, es.RoleViewer)
	editor := middleware.RequirePetRole(authz, es.RoleEditor)
	owner := middleware.RequirePetRole(authz, es.RoleOwner)

	r.Post("/pets", createPetHandler(svc))
	r.With(viewer).Get("/pets/{petID}", getPetHandler(svc))
	r.With(editor).Patch("/pets/{petID}", updatePetHandler(svc))
	r.With(owner).Delete("/pets/{petID}", deletePetHandler(svc))
	r.With(editor).Post("/pets/{petID}/image", uploadImageHandler(svc))
}

type createPetRequest struct {
	Name         string       `json:"name"`
	Breed        string       `json:"breed"`
	Birthday     string       `json:"birthday"`      // YYYY-MM-DD opcional
	Gender       es.Gender    `json:"gender"`        // male, female, other
	AdoptionDate string       `json:"adoption_date"` // YYYY-MM-DD opcional
	MicrochipID  string       `json:"microchip_id"`
	MedicalNotes string       `json:"medical_notes"`
	VetInfo      []es.VetInfo `json:"vet_info"`
}

type PetResponse struct {
	ID              string       `json:"id"`
	Name            string       `json:"name"`
	Breed           string       `json:"breed"`
	Birthday        *time.Time   `json:"birthday,omitempty"`
	Gender          es.Gender    `json:"gender,omitempty"`
	AdoptionDate    *time.Time   `json:"adoption_date,omitempty"`
	ProfileImageURL string       `json:"profile_image_url,omitempty"`
	MicrochipID     string       `json:"microchip_id,omitempty"`
	MedicalNotes    string       `json:"medical_notes,omitempty"`
	VetInfo         []es.VetInfo `json:"vet_info"`
	CreatedBy       string       `json:"created_by"`
	CreatedAt       time.Time    `json:"created_at"`
	UpdatedAt       time.Time    `json:"updated_at"`
}

type updatePetRequest struct {
	// Punteros para PATCH real: nil = no tocar.
	Name         *string       `json:"name"`
	Breed        *string       `json:"breed"`
	Gender       *es.Gender    `json:"gender"`
	MicrochipID  *string       `json:"microchip_id"`
	MedicalNotes *string       `json:"medical_notes"`
	VetInfo      *[]es.VetInfo `json:"vet_info"`

	// Las fechas se leen aparte: null limpia, ausente no toca.
	Birthday     json.RawMessage `json:"birthday"`
	AdoptionDate json.RawMessage `json:"adoption_date"`
}

// @Summary Crear mascota
// @Tags pets
// @Accept json
// @Produce json
// @Success 201 {object} PetResponse
// @Router /pets [post]
func createPetHandler(svc *Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		claims, ok := middleware.RequireUser(r)
		if !ok {
			httpjson.WriteError(w, apperr.ErrNotAuthenticated)
			return
		}

		var req createPetRequest
		if err := httpjson.Decode(r, &req); err != nil {
			httpjson.WriteError(w, err)
			return
		}

		bd, err := parseDate("birthday", req.Birthday)
		if err != nil {
			httpjson.WriteError(w, err)
			return
		}
		ad, err := parseDate("adoption_date", req.AdoptionDate)
		if err != nil {
			httpjson.WriteError(w, err)
			return
		}

		p, err := svc.Create(r.Context(), claims.UserID, claims.Email, CreateInput{
			Name:         req.Name,
			Breed:        req.Breed,
			Birthday:     bd,
			Gender:       req.Gender,
			AdoptionDate: ad,
			MicrochipID:  req.MicrochipID,
			MedicalNotes: req.MedicalNotes,
			VetInfo:      req.VetInfo,
		})
		if err != nil {
			httpjson.WriteError(w, err)
			return
		}

		httpjson.WriteJSON(w, http.StatusCreated, ToPetResponse(p))
	}
}

func getPetHandler(svc *Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		p, err := svc.Get(r.Context(), chi.URLParam(r, "petID"))
		if err != nil {
			httpjson.WriteError(w, err)
			return
		}
		httpjson.WriteJSON(w, http.StatusOK, ToPetResponse(p))
	}
}

// @Summary Actualizar perfil de mascota (último en escribir gana)
// @Tags pets
// @Param petID path string true "pet id"
// @Success 200 {object} PetResponse
// @Router /pets/{petID} [patch]
func updatePetHandler(svc *Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req updatePetRequest
		if err := httpjson.Decode(r, &req); err != nil {
			httpjson.WriteError(w, err)
			return
		}

		patch := es.PetPatch{
			Name:         req.Name,
			Breed:        req.Breed,
			Gender:       req.Gender,
			MicrochipID:  req.MicrochipID,
			MedicalNotes: req.MedicalNotes,
			VetInfo:      req.VetInfo,
		}
		var err error
		if patch.Birthday, err = optionalDate("birthday", req.Birthday); err != nil {
			httpjson.WriteError(w, err)
			return
		}
		if patch.AdoptionDate, err = optionalDate("adoption_date", req.AdoptionDate); err != nil {
			httpjson.WriteError(w, err)
			return
		}

		updated, err := svc.Update(r.Context(), chi.URLParam(r, "petID"), patch)
		if err != nil {
			httpjson.WriteError(w, err)
			return
		}
		httpjson.WriteJSON(w, http.StatusOK, ToPetResponse(updated))
	}
}

func deletePetHandler(svc *Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		claims, _ := middleware.RequireUser(r)
		if err := svc.Delete(r.Context(), chi.URLParam(r, "petID"), claims.UserID); err != nil {
			httpjson.WriteError(w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

// @Summary Subir imagen de perfil (multipart, campo "file")
// @Tags pets
// @Param petID path string true "pet id"
// @Success 200 {object} PetResponse
// @Router /pets/{petID}/image [post]
func uploadImageHandler(svc *Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		r.Body = http.MaxBytesReader(w, r.Body, maxImageBytes)
		file, hdr, err := r.FormFile("file")
		if err != nil {
			httpjson.WriteError(w, apperr.Validation("file", "is required"))
			return
		}
		defer file.Close()

		p, err := svc.UploadImage(r.Context(), chi.URLParam(r, "petID"), hdr.Filename, hdr.Header.Get("Content-Type"), file)
		if err != nil {
			httpjson.WriteError(w, err)
			return
		}
		httpjson.WriteJSON(w, http.StatusOK, ToPetResponse(p))
	}
}

// optionalDate distingue campo ausente (no tocar) de null (limpiar).
func optionalDate(field string, raw json.RawMessage) (es.OptionalTime, error) {
	if raw == nil {
		return es.OptionalTime{}, nil
	}
	if string(raw) == "null" {
		return es.OptionalTime{Set: true}, nil
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return es.OptionalTime{}, apperr.Validation(field, "must be YYYY-MM-DD or null")
	}
	t, err := parseDate(field, s)
	if err != nil {
		return es.OptionalTime{}, err
	}
	return es.OptionalTime{Set: true, Value: t}, nil
}

func ToPetResponse(p es.Pet) PetResponse {
	vets := p.VetInfo
	if vets == nil {
		vets = []es.VetInfo{}
	}
	return PetResponse{
		ID:              p.ID,
		Name:            p.Name,
		Breed:           p.Breed,
		Birthday:        p.Birthday,
		Gender:          p.Gender,
		AdoptionDate:    p.AdoptionDate,
		ProfileImageURL: p.ProfileImageURL,
		MicrochipID:     p.MicrochipID,
		MedicalNotes:    p.MedicalNotes,
		VetInfo:         vets,
		CreatedBy:       p.CreatedBy,
		CreatedAt:       p.CreatedAt,
		UpdatedAt:       p.UpdatedAt,
	}
}
