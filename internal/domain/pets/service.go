package pets

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"pet-care-log/internal/apperr"
	"pet-care-log/internal/ports/blob"
	es "pet-care-log/internal/ports/entitystore"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

type Service struct {
	store    es.Store
	uploader blob.Uploader
	log      *zap.Logger
	now      func() time.Time
	newID    func() string
}

// NewService: uploader puede ser nil; entonces la subida de imagen falla con
// ErrTransientStore.
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

// Create escribe el pet y su único miembro owner en el mismo batch.
func (s *Service) Create(ctx context.Context, ownerUID, ownerEmail string, in CreateInput) (es.Pet, error) {
	if strings.TrimSpace(ownerUID) == "" {
		return es.Pet{}, fmt.Errorf("create pet: %w", apperr.ErrNotAuthenticated)
	}
	if err := validate(in.Name, in.Gender); err != nil {
		return es.Pet{}, err
	}

	now := s.now()
	p := es.Pet{
		ID:           s.newID(),
		Name:         strings.TrimSpace(in.Name),
		Breed:        strings.TrimSpace(in.Breed),
		Birthday:     in.Birthday,
		Gender:       in.Gender,
		AdoptionDate: in.AdoptionDate,
		MicrochipID:  strings.TrimSpace(in.MicrochipID),
		MedicalNotes: in.MedicalNotes,
		VetInfo:      in.VetInfo,
		CreatedBy:    ownerUID,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	owner := es.Member{
		ID:          s.newID(),
		PetID:       p.ID,
		UID:         ownerUID,
		Role:        es.RoleOwner,
		Status:      es.MemberActive,
		InviteEmail: strings.ToLower(strings.TrimSpace(ownerEmail)),
		InvitedBy:   ownerUID,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	if err := s.store.Commit(ctx, es.NewBatch().Add(es.PutPet{Pet: p}, es.PutMember{Member: owner})); err != nil {
		return es.Pet{}, fmt.Errorf("create pet: %w", err)
	}

	s.log.Info("pet created", zap.String("pet_id", p.ID), zap.String("owner", ownerUID))
	return p, nil
}

// Get no devuelve pets borrados.
func (s *Service) Get(ctx context.Context, petID string) (es.Pet, error) {
	p, err := s.store.GetPet(ctx, petID)
	if err != nil {
		return es.Pet{}, fmt.Errorf("get pet: %w", err)
	}
	if p.Deleted {
		return es.Pet{}, fmt.Errorf("get pet %s: %w", petID, apperr.ErrNotFound)
	}
	return p, nil
}

// Update aplica solo los campos presentes en el patch. Dos updates
// concurrentes no se mezclan campo a campo: gana el último en aplicarse.
func (s *Service) Update(ctx context.Context, petID string, patch es.PetPatch) (es.Pet, error) {
	if patch.Name != nil && strings.TrimSpace(*patch.Name) == "" {
		return es.Pet{}, apperr.Validation("name", "is required")
	}
	if patch.Gender != nil && !validGender(*patch.Gender) {
		return es.Pet{}, apperr.Validation("gender", "must be male, female or other")
	}
	if patch.Name != nil {
		name := strings.TrimSpace(*patch.Name)
		patch.Name = &name
	}

	if _, err := s.Get(ctx, petID); err != nil {
		return es.Pet{}, fmt.Errorf("update pet: %w", err)
	}
	if err := s.store.Commit(ctx, es.NewBatch().Add(es.PatchPet{PetID: petID, Patch: patch, At: s.now()})); err != nil {
		return es.Pet{}, fmt.Errorf("update pet: %w", err)
	}
	return s.Get(ctx, petID)
}

// Delete marca borrados el pet, todas sus tasks y todos sus logs en un batch.
func (s *Service) Delete(ctx context.Context, petID, byUID string) error {
	if _, err := s.Get(ctx, petID); err != nil {
		return fmt.Errorf("delete pet: %w", err)
	}

	now := s.now()
	b := es.NewBatch().Add(
		es.SoftDeletePet{PetID: petID, At: now},
		es.SoftDeleteTasks{PetID: petID, At: now},
		es.SoftDeleteLogsByPet{PetID: petID, At: now},
	)
	if err := s.store.Commit(ctx, b); err != nil {
		return fmt.Errorf("delete pet: %w", err)
	}

	s.log.Info("pet deleted", zap.String("pet_id", petID), zap.String("by", byUID))
	return nil
}

// UploadImage sube la imagen de perfil y guarda la URL devuelta tal cual.
func (s *Service) UploadImage(ctx context.Context, petID, filename, contentType string, r io.Reader) (es.Pet, error) {
	if s.uploader == nil {
		return es.Pet{}, fmt.Errorf("upload pet image: no object storage configured: %w", apperr.ErrTransientStore)
	}
	if _, err := s.Get(ctx, petID); err != nil {
		return es.Pet{}, fmt.Errorf("upload pet image: %w", err)
	}

	name := fmt.Sprintf("pets/%s/%s-%s", petID, s.newID(), filename)
	url, err := s.uploader.Upload(ctx, name, contentType, r)
	if err != nil {
		return es.Pet{}, fmt.Errorf("upload pet image: %w", apperr.Transient(err))
	}
	return s.Update(ctx, petID, es.PetPatch{ProfileImageURL: &url})
}
