package members

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"pet-care-log/internal/apperr"
	"pet-care-log/internal/live"
	es "pet-care-log/internal/ports/entitystore"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

type Service struct {
	store es.Store
	hub   *live.Hub
	log   *zap.Logger
	now   func() time.Time
	newID func() string
}

func NewService(store es.Store, hub *live.Hub, log *zap.Logger) *Service {
	if log == nil {
		log = zap.NewNop()
	}
	return &Service{
		store: store,
		hub:   hub,
		log:   log,
		now:   time.Now,
		newID: uuid.NewString,
	}
}

// NormalizeEmail es la forma canónica con la que se guardan y buscan invitaciones.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// Invite crea una fila pending direccionada por email. No deduplica: invitar
// dos veces al mismo email deja dos filas pending.
func (s *Service) Invite(ctx context.Context, petID, inviterUID, inviteeEmail string, role es.Role) (es.Member, error) {
	if strings.TrimSpace(inviterUID) == "" {
		return es.Member{}, fmt.Errorf("invite: %w", apperr.ErrNotAuthenticated)
	}
	email := NormalizeEmail(inviteeEmail)
	if email == "" || !strings.Contains(email, "@") {
		return es.Member{}, apperr.Validation("invite_email", "must be a valid email")
	}
	if role == "" {
		role = es.RoleViewer
	}
	if !validRole(role) || role == es.RoleOwner {
		return es.Member{}, apperr.Validation("role", "must be general or viewer")
	}
	if _, err := s.livePet(ctx, petID); err != nil {
		return es.Member{}, fmt.Errorf("invite: %w", err)
	}

	now := s.now()
	m := es.Member{
		ID:          s.newID(),
		PetID:       petID,
		Role:        role,
		Status:      es.MemberPending,
		InviteEmail: email,
		InvitedBy:   inviterUID,
		InvitedAt:   &now,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := s.store.Commit(ctx, es.NewBatch().Add(es.PutMember{Member: m})); err != nil {
		return es.Member{}, fmt.Errorf("invite: %w", err)
	}

	s.log.Info("member invited",
		zap.String("pet_id", petID),
		zap.String("member_id", m.ID),
		zap.String("invited_by", inviterUID),
	)
	return m, nil
}

// ListPendingInvitations une las filas pending del email con su pet. Pets
// borrados o inexistentes no aparecen.
func (s *Service) ListPendingInvitations(ctx context.Context, userEmail string) ([]Invitation, error) {
	return s.pendingInvitations(ctx, userEmail, nil)
}

// pendingInvitations anota en pets los ids leídos antes de leer los pets, así
// un cambio de pet posterior a la lectura de filas no se pierde.
func (s *Service) pendingInvitations(ctx context.Context, userEmail string, pets *live.KeySet) ([]Invitation, error) {
	email := NormalizeEmail(userEmail)
	if email == "" {
		return []Invitation{}, nil
	}

	rows, err := s.store.ListInvitationsByEmail(ctx, email, es.MemberPending)
	if err != nil {
		return nil, fmt.Errorf("list invitations: %w", err)
	}
	if pets != nil {
		ids := make([]string, 0, len(rows))
		for _, m := range rows {
			ids = append(ids, m.PetID)
		}
		pets.Replace(ids)
	}

	out := make([]Invitation, 0, len(rows))
	for _, m := range rows {
		p, err := s.livePet(ctx, m.PetID)
		if errors.Is(err, apperr.ErrNotFound) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("list invitations: %w", err)
		}
		out = append(out, Invitation{Pet: p, MemberID: m.ID, Member: m})
	}
	return out, nil
}

// WatchPendingInvitations es la versión en vivo. Recarga solo con cambios de
// membresías dirigidas a ese email o de los pets que ya tiene invitados. Sin
// email (usuario sin identidad) emite una lista vacía y no vuelve a emitir.
func (s *Service) WatchPendingInvitations(ctx context.Context, userEmail string, emit func([]Invitation, error)) *live.Subscription {
	email := NormalizeEmail(userEmail)
	pets := live.NewKeySet()
	match := live.Any(live.InvitedEmail(email), live.PetIn(es.CollectionPets, pets))
	if email == "" {
		match = func(live.Change) bool { return false }
	}
	return live.Watch(ctx, s.hub, match,
		func(ctx context.Context) ([]Invitation, error) { return s.pendingInvitations(ctx, email, pets) },
		emit,
	)
}

// Respond aplica la decisión del invitado. Aceptar fija uid en la misma
// escritura que el cambio de estado. Repetir la misma decisión es un no-op.
func (s *Service) Respond(ctx context.Context, petID, memberID, uid, email string, decision Decision) (es.Member, error) {
	if strings.TrimSpace(uid) == "" {
		return es.Member{}, fmt.Errorf("respond: %w", apperr.ErrNotAuthenticated)
	}
	if decision != DecisionAccept && decision != DecisionDecline {
		return es.Member{}, apperr.Validation("decision", "must be active or declined")
	}

	m, err := s.store.GetMember(ctx, petID, memberID)
	if err != nil {
		return es.Member{}, fmt.Errorf("respond: %w", err)
	}
	if m.InviteEmail != "" && m.InviteEmail != NormalizeEmail(email) {
		return es.Member{}, fmt.Errorf("respond: invitation addressed to another email: %w", apperr.ErrForbidden)
	}

	done, err := answered(m, uid, decision)
	if err != nil {
		return es.Member{}, err
	}
	if done {
		return m, nil
	}

	// ExpectStatus hace que dos respuestas simultáneas no pisen el estado:
	// la segunda ve el cambio dentro del commit y falla.
	now := s.now()
	mut := es.SetMemberStatus{
		PetID:        petID,
		MemberID:     memberID,
		Status:       decision,
		ExpectStatus: m.Status,
		InviteEmail:  m.InviteEmail,
		At:           now,
	}
	if decision == DecisionAccept {
		mut.UID = uid
	}
	if err := s.store.Commit(ctx, es.NewBatch().Add(mut)); err != nil {
		if !errors.Is(err, apperr.ErrInvalidTransition) {
			return es.Member{}, fmt.Errorf("respond: %w", err)
		}
		// Otra respuesta ganó; si dejó la misma decisión es un no-op.
		cur, gerr := s.store.GetMember(ctx, petID, memberID)
		if gerr != nil {
			return es.Member{}, fmt.Errorf("respond: %w", gerr)
		}
		if _, aerr := answered(cur, uid, decision); aerr == nil && cur.Status == decision {
			return cur, nil
		}
		return es.Member{}, fmt.Errorf("respond: %w", err)
	}

	m.Status = decision
	if decision == DecisionAccept {
		m.UID = uid
	}
	m.UpdatedAt = now

	s.log.Info("invitation answered",
		zap.String("pet_id", petID),
		zap.String("member_id", memberID),
		zap.String("status", string(decision)),
	)
	return m, nil
}

// answered decide si la decisión sobre m ya está aplicada (done) o no se
// permite. pending admite cualquier decisión; declined→declined se reescribe.
func answered(m es.Member, uid string, decision Decision) (done bool, err error) {
	switch {
	case m.Status == es.MemberPending:
		return false, nil
	case m.Status == decision && decision == DecisionDecline:
		return false, nil
	case m.Status == decision && decision == DecisionAccept && m.UID == uid:
		return true, nil
	default:
		return false, fmt.Errorf("respond: %s -> %s: %w", m.Status, decision, apperr.ErrInvalidTransition)
	}
}

// Remove borra la fila del miembro. El owner no se puede quitar.
func (s *Service) Remove(ctx context.Context, petID, memberID string) error {
	m, err := s.store.GetMember(ctx, petID, memberID)
	if err != nil {
		return fmt.Errorf("remove member: %w", err)
	}
	if m.Role == es.RoleOwner {
		return fmt.Errorf("remove member: owner cannot be removed: %w", apperr.ErrInvalidTransition)
	}
	if err := s.store.Commit(ctx, es.NewBatch().Add(es.DeleteMember{
		PetID: petID, MemberID: memberID, UID: m.UID, InviteEmail: m.InviteEmail,
	})); err != nil {
		return fmt.Errorf("remove member: %w", err)
	}
	s.log.Info("member removed", zap.String("pet_id", petID), zap.String("member_id", memberID))
	return nil
}

// UpdateRole cambia entre general y viewer. El owner es único y fijo.
func (s *Service) UpdateRole(ctx context.Context, petID, memberID string, role es.Role) (es.Member, error) {
	if !validRole(role) || role == es.RoleOwner {
		return es.Member{}, apperr.Validation("role", "must be general or viewer")
	}
	m, err := s.store.GetMember(ctx, petID, memberID)
	if err != nil {
		return es.Member{}, fmt.Errorf("update role: %w", err)
	}
	if m.Role == es.RoleOwner {
		return es.Member{}, fmt.Errorf("update role: owner role is fixed: %w", apperr.ErrInvalidTransition)
	}

	now := s.now()
	if err := s.store.Commit(ctx, es.NewBatch().Add(es.SetMemberRole{
		PetID: petID, MemberID: memberID, Role: role, UID: m.UID, InviteEmail: m.InviteEmail, At: now,
	})); err != nil {
		return es.Member{}, fmt.Errorf("update role: %w", err)
	}
	m.Role = role
	m.UpdatedAt = now
	return m, nil
}

func (s *Service) ListMembers(ctx context.Context, petID string) ([]es.Member, error) {
	out, err := s.store.ListMembers(ctx, petID)
	if err != nil {
		return nil, fmt.Errorf("list members: %w", err)
	}
	return out, nil
}

// Authorize exige una membresía active de uid en el pet con al menos min.
func (s *Service) Authorize(ctx context.Context, petID, uid string, min es.Role) (es.Member, error) {
	if strings.TrimSpace(uid) == "" {
		return es.Member{}, apperr.ErrNotAuthenticated
	}
	if _, err := s.livePet(ctx, petID); err != nil {
		return es.Member{}, err
	}

	rows, err := s.store.ListMembers(ctx, petID)
	if err != nil {
		return es.Member{}, fmt.Errorf("authorize: %w", err)
	}
	for _, m := range rows {
		if m.UID != uid || m.Status != es.MemberActive {
			continue
		}
		if !Allows(m.Role, min) {
			return es.Member{}, fmt.Errorf("authorize: role %s below %s: %w", m.Role, min, apperr.ErrForbidden)
		}
		return m, nil
	}
	return es.Member{}, fmt.Errorf("authorize: not a member: %w", apperr.ErrForbidden)
}

// ActiveMembers devuelve los miembros active del pet (con uid).
func (s *Service) ActiveMembers(ctx context.Context, petID string) ([]es.Member, error) {
	rows, err := s.store.ListMembers(ctx, petID)
	if err != nil {
		return nil, err
	}
	out := make([]es.Member, 0, len(rows))
	for _, m := range rows {
		if m.Status == es.MemberActive && m.UID != "" {
			out = append(out, m)
		}
	}
	return out, nil
}

func (s *Service) livePet(ctx context.Context, petID string) (es.Pet, error) {
	p, err := s.store.GetPet(ctx, petID)
	if err != nil {
		return es.Pet{}, err
	}
	if p.Deleted {
		return es.Pet{}, fmt.Errorf("pet %s deleted: %w", petID, apperr.ErrNotFound)
	}
	return p, nil
}
