package memory

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"pet-care-log/internal/apperr"
	es "pet-care-log/internal/ports/entitystore"
)

type docKey struct {
	petID string
	id    string
}

// Store es el entitystore en memoria. Un único mutex cubre todas las
// colecciones: un Commit es indivisible para cualquier lector.
type Store struct {
	mu sync.RWMutex

	pets     map[string]es.Pet
	members  map[docKey]es.Member
	tasks    map[docKey]es.Task
	logs     map[docKey]es.Log
	users    map[string]es.User
	weights  map[docKey]es.Weight
	messages map[docKey]es.Message
}

func NewStore() *Store {
	return &Store{
		pets:     make(map[string]es.Pet),
		members:  make(map[docKey]es.Member),
		tasks:    make(map[docKey]es.Task),
		logs:     make(map[docKey]es.Log),
		users:    make(map[string]es.User),
		weights:  make(map[docKey]es.Weight),
		messages: make(map[docKey]es.Message),
	}
}

var _ es.Store = (*Store)(nil)

func notFound(kind, id string) error {
	return fmt.Errorf("%s %s: %w", kind, id, apperr.ErrNotFound)
}

func (s *Store) GetPet(ctx context.Context, petID string) (es.Pet, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	p, ok := s.pets[petID]
	if !ok {
		return es.Pet{}, notFound("pet", petID)
	}
	return p, nil
}

func (s *Store) GetMember(ctx context.Context, petID, memberID string) (es.Member, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	m, ok := s.members[docKey{petID, memberID}]
	if !ok {
		return es.Member{}, notFound("member", memberID)
	}
	return m, nil
}

func (s *Store) ListMembers(ctx context.Context, petID string) ([]es.Member, error) {
	return s.filterMembers(func(m es.Member) bool { return m.PetID == petID }), nil
}

func (s *Store) ListMembershipsByUID(ctx context.Context, uid string, status es.MemberStatus) ([]es.Member, error) {
	if strings.TrimSpace(uid) == "" {
		return []es.Member{}, nil
	}
	return s.filterMembers(func(m es.Member) bool {
		return m.UID == uid && m.Status == status
	}), nil
}

func (s *Store) ListInvitationsByEmail(ctx context.Context, email string, status es.MemberStatus) ([]es.Member, error) {
	if strings.TrimSpace(email) == "" {
		return []es.Member{}, nil
	}
	return s.filterMembers(func(m es.Member) bool {
		return m.InviteEmail == email && m.Status == status
	}), nil
}

func (s *Store) filterMembers(keep func(es.Member) bool) []es.Member {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]es.Member, 0)
	for _, m := range s.members {
		if keep(m) {
			out = append(out, m)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out
}

func (s *Store) GetTask(ctx context.Context, petID, taskID string) (es.Task, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	t, ok := s.tasks[docKey{petID, taskID}]
	if !ok {
		return es.Task{}, notFound("task", taskID)
	}
	return t, nil
}

func (s *Store) ListTasks(ctx context.Context, petID string, includeDeleted bool) ([]es.Task, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]es.Task, 0)
	for k, t := range s.tasks {
		if k.petID != petID || (t.Deleted && !includeDeleted) {
			continue
		}
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Order != out[j].Order {
			return out[i].Order < out[j].Order
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (s *Store) GetLog(ctx context.Context, petID, logID string) (es.Log, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	l, ok := s.logs[docKey{petID, logID}]
	if !ok {
		return es.Log{}, notFound("log", logID)
	}
	return l, nil
}

func (s *Store) ListLogs(ctx context.Context, petID string, filter es.LogFilter) ([]es.Log, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]es.Log, 0)
	for k, l := range s.logs {
		if k.petID != petID {
			continue
		}
		if l.Deleted && !filter.IncludeDeleted {
			continue
		}
		if filter.TaskID != "" && l.TaskID != filter.TaskID {
			continue
		}
		if filter.From != nil && l.Timestamp.Before(*filter.From) {
			continue
		}
		if filter.To != nil && l.Timestamp.After(*filter.To) {
			continue
		}
		out = append(out, l)
	}

	// timestamp desc, id asc para empates
	sort.Slice(out, func(i, j int) bool {
		if !out[i].Timestamp.Equal(out[j].Timestamp) {
			return out[i].Timestamp.After(out[j].Timestamp)
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (s *Store) GetUser(ctx context.Context, uid string) (es.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	u, ok := s.users[uid]
	if !ok {
		return es.User{}, notFound("user", uid)
	}
	u.Settings.NotificationTokens = append([]string(nil), u.Settings.NotificationTokens...)
	return u, nil
}

func (s *Store) ListWeights(ctx context.Context, petID string) ([]es.Weight, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]es.Weight, 0)
	for k, w := range s.weights {
		if k.petID == petID && !w.Deleted {
			out = append(out, w)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].MeasuredAt.Equal(out[j].MeasuredAt) {
			return out[i].MeasuredAt.Before(out[j].MeasuredAt)
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (s *Store) ListMessages(ctx context.Context, petID string, limit int) ([]es.Message, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]es.Message, 0)
	for k, m := range s.messages {
		if k.petID == petID {
			out = append(out, m)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// Commit aplica el batch bajo el lock de escritura. Si una mutación falla se
// deshacen las anteriores, así nunca queda una cascada a medias.
func (s *Store) Commit(ctx context.Context, b *es.Batch) error {
	if b == nil || b.Len() == 0 {
		return nil
	}
	if err := ctx.Err(); err != nil {
		return apperr.Transient(err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	tx := &memTx{s: s}
	for _, m := range b.Mutations() {
		if err := tx.apply(m); err != nil {
			tx.rollback()
			return err
		}
	}
	return nil
}

// checkLogParents rechaza un log vivo sobre un pet o una task borrados. Se
// evalúa bajo el lock del commit, así ninguna cascada queda atrás.
func (tx *memTx) checkLogParents(petID, taskID string) error {
	if p, ok := tx.s.pets[petID]; ok && p.Deleted {
		return fmt.Errorf("pet %s is deleted: %w", petID, apperr.ErrNotFound)
	}
	if t, ok := tx.s.tasks[docKey{petID, taskID}]; ok && t.Deleted {
		return fmt.Errorf("task %s is deleted: %w", taskID, apperr.ErrNotFound)
	}
	return nil
}

type memTx struct {
	s    *Store
	undo []func()
}

func (tx *memTx) rollback() {
	for i := len(tx.undo) - 1; i >= 0; i-- {
		tx.undo[i]()
	}
}

func remember[K comparable, V any](tx *memTx, m map[K]V, k K) {
	prev, existed := m[k]
	tx.undo = append(tx.undo, func() {
		if existed {
			m[k] = prev
		} else {
			delete(m, k)
		}
	})
}

func (tx *memTx) apply(mut es.Mutation) error {
	s := tx.s
	switch m := mut.(type) {
	case es.PutPet:
		remember(tx, s.pets, m.Pet.ID)
		s.pets[m.Pet.ID] = m.Pet

	case es.PatchPet:
		p, ok := s.pets[m.PetID]
		if !ok {
			return notFound("pet", m.PetID)
		}
		remember(tx, s.pets, m.PetID)
		m.Patch.Apply(&p)
		p.UpdatedAt = m.At
		s.pets[m.PetID] = p

	case es.SoftDeletePet:
		p, ok := s.pets[m.PetID]
		if !ok {
			return notFound("pet", m.PetID)
		}
		remember(tx, s.pets, m.PetID)
		at := m.At
		p.Deleted, p.DeletedAt, p.UpdatedAt = true, &at, at
		s.pets[m.PetID] = p

	case es.PutMember:
		k := docKey{m.Member.PetID, m.Member.ID}
		remember(tx, s.members, k)
		s.members[k] = m.Member

	case es.SetMemberStatus:
		k := docKey{m.PetID, m.MemberID}
		mem, ok := s.members[k]
		if !ok {
			return notFound("member", m.MemberID)
		}
		if m.ExpectStatus != "" && mem.Status != m.ExpectStatus {
			return fmt.Errorf("member %s is %s, not %s: %w",
				m.MemberID, mem.Status, m.ExpectStatus, apperr.ErrInvalidTransition)
		}
		remember(tx, s.members, k)
		mem.Status = m.Status
		if m.UID != "" {
			mem.UID = m.UID
		}
		mem.UpdatedAt = m.At
		s.members[k] = mem

	case es.SetMemberRole:
		k := docKey{m.PetID, m.MemberID}
		mem, ok := s.members[k]
		if !ok {
			return notFound("member", m.MemberID)
		}
		remember(tx, s.members, k)
		mem.Role = m.Role
		mem.UpdatedAt = m.At
		s.members[k] = mem

	case es.DeleteMember:
		k := docKey{m.PetID, m.MemberID}
		if _, ok := s.members[k]; !ok {
			return notFound("member", m.MemberID)
		}
		remember(tx, s.members, k)
		delete(s.members, k)

	case es.PutTask:
		k := docKey{m.Task.PetID, m.Task.ID}
		remember(tx, s.tasks, k)
		s.tasks[k] = m.Task

	case es.PatchTask:
		k := docKey{m.PetID, m.TaskID}
		t, ok := s.tasks[k]
		if !ok {
			return notFound("task", m.TaskID)
		}
		remember(tx, s.tasks, k)
		m.Patch.Apply(&t)
		t.UpdatedAt = m.At
		s.tasks[k] = t

	case es.SoftDeleteTasks:
		for k, t := range s.tasks {
			if k.petID != m.PetID || t.Deleted {
				continue
			}
			if len(m.TaskIDs) > 0 && !es.Contains(m.TaskIDs, k.id) {
				continue
			}
			remember(tx, s.tasks, k)
			t.Deleted, t.DeletedAt, t.UpdatedAt = true, timePtr(m.At), m.At
			s.tasks[k] = t
		}

	case es.PutLog:
		if !m.Log.Deleted {
			if err := tx.checkLogParents(m.Log.PetID, m.Log.TaskID); err != nil {
				return err
			}
		}
		k := docKey{m.Log.PetID, m.Log.ID}
		remember(tx, s.logs, k)
		s.logs[k] = m.Log

	case es.PatchLog:
		k := docKey{m.PetID, m.LogID}
		l, ok := s.logs[k]
		if !ok {
			return notFound("log", m.LogID)
		}
		if m.Patch.TaskID != nil && !l.Deleted {
			if err := tx.checkLogParents(m.PetID, *m.Patch.TaskID); err != nil {
				return err
			}
		}
		remember(tx, s.logs, k)
		m.Patch.Apply(&l)
		l.UpdatedBy = m.UpdatedBy
		l.UpdatedAt = m.At
		s.logs[k] = l

	case es.SoftDeleteLogs:
		for _, id := range m.LogIDs {
			k := docKey{m.PetID, id}
			l, ok := s.logs[k]
			if !ok {
				return notFound("log", id)
			}
			remember(tx, s.logs, k)
			l.Deleted, l.DeletedAt, l.UpdatedAt = true, timePtr(m.At), m.At
			s.logs[k] = l
		}

	case es.SoftDeleteLogsByTask:
		tx.softDeleteLogsWhere(m.PetID, m.At, func(l es.Log) bool {
			return es.Contains(m.TaskIDs, l.TaskID)
		})

	case es.SoftDeleteLogsByPet:
		tx.softDeleteLogsWhere(m.PetID, m.At, func(es.Log) bool { return true })

	case es.RenameTaskInLogs:
		for k, l := range s.logs {
			if k.petID != m.PetID || l.TaskID != m.TaskID {
				continue
			}
			remember(tx, s.logs, k)
			l.TaskName = m.TaskName
			l.UpdatedAt = m.At
			s.logs[k] = l
		}

	case es.PutUser:
		remember(tx, s.users, m.User.UID)
		u := m.User
		u.Settings.NotificationTokens = append([]string(nil), u.Settings.NotificationTokens...)
		s.users[u.UID] = u

	case es.PutWeight:
		k := docKey{m.Weight.PetID, m.Weight.ID}
		remember(tx, s.weights, k)
		s.weights[k] = m.Weight

	case es.SoftDeleteWeight:
		k := docKey{m.PetID, m.WeightID}
		w, ok := s.weights[k]
		if !ok {
			return notFound("weight", m.WeightID)
		}
		remember(tx, s.weights, k)
		w.Deleted, w.DeletedAt = true, timePtr(m.At)
		s.weights[k] = w

	case es.PutMessage:
		k := docKey{m.Message.PetID, m.Message.ID}
		remember(tx, s.messages, k)
		s.messages[k] = m.Message

	default:
		return fmt.Errorf("memory store: unsupported mutation %T", mut)
	}
	return nil
}

func (tx *memTx) softDeleteLogsWhere(petID string, at time.Time, match func(es.Log) bool) {
	for k, l := range tx.s.logs {
		if k.petID != petID || l.Deleted || !match(l) {
			continue
		}
		remember(tx, tx.s.logs, k)
		l.Deleted, l.DeletedAt, l.UpdatedAt = true, timePtr(at), at
		tx.s.logs[k] = l
	}
}

func timePtr(t time.Time) *time.Time { return &t }
