// Package logs es el registro diario de tareas realizadas de cada pet. Las
// lecturas devuelven Entry enriquecidas con el estado actual de tasks y
// usuarios.
package logs

import (
	"context"
	"fmt"
	"strings"
	"time"

	"pet-care-log/internal/apperr"
	"pet-care-log/internal/live"
	es "pet-care-log/internal/ports/entitystore"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

const maxNoteLength = 500

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

// Add copia el nombre actual de la task en el log. La task debe existir y no
// estar borrada.
func (s *Service) Add(ctx context.Context, petID, uid string, in AddInput) (es.Log, error) {
	if strings.TrimSpace(uid) == "" {
		return es.Log{}, fmt.Errorf("add log: %w", apperr.ErrNotAuthenticated)
	}
	if len([]rune(in.Note)) > maxNoteLength {
		return es.Log{}, apperr.Validation("note", fmt.Sprintf("must be at most %d characters", maxNoteLength))
	}
	t, err := s.liveTask(ctx, petID, in.TaskID)
	if err != nil {
		return es.Log{}, fmt.Errorf("add log: %w", err)
	}

	now := s.now()
	ts := now
	if in.Timestamp != nil {
		ts = *in.Timestamp
	}

	l := es.Log{
		ID:        s.newID(),
		PetID:     petID,
		TaskID:    t.ID,
		TaskName:  t.Name,
		Timestamp: ts.Truncate(time.Second),
		Note:      strings.TrimSpace(in.Note),
		CreatedBy: uid,
		UpdatedBy: uid,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.store.Commit(ctx, es.NewBatch().Add(es.PutLog{Log: l})); err != nil {
		return es.Log{}, fmt.Errorf("add log: %w", err)
	}
	return l, nil
}

func (s *Service) Update(ctx context.Context, petID, logID, uid string, in UpdateInput) (es.Log, error) {
	if in.Note != nil && len([]rune(*in.Note)) > maxNoteLength {
		return es.Log{}, apperr.Validation("note", fmt.Sprintf("must be at most %d characters", maxNoteLength))
	}

	cur, err := s.liveLog(ctx, petID, logID)
	if err != nil {
		return es.Log{}, fmt.Errorf("update log: %w", err)
	}

	var patch es.LogPatch
	if in.TaskID != nil && *in.TaskID != cur.TaskID {
		t, err := s.liveTask(ctx, petID, *in.TaskID)
		if err != nil {
			return es.Log{}, fmt.Errorf("update log: %w", err)
		}
		patch.TaskID = &t.ID
		patch.TaskName = &t.Name
	}
	if in.Timestamp != nil {
		ts := in.Timestamp.Truncate(time.Second)
		patch.Timestamp = &ts
	}
	if in.Note != nil {
		note := strings.TrimSpace(*in.Note)
		patch.Note = &note
	}

	now := s.now()
	if err := s.store.Commit(ctx, es.NewBatch().Add(es.PatchLog{
		PetID: petID, LogID: logID, Patch: patch, UpdatedBy: uid, At: now,
	})); err != nil {
		return es.Log{}, fmt.Errorf("update log: %w", err)
	}

	patch.Apply(&cur)
	cur.UpdatedBy = uid
	cur.UpdatedAt = now
	return cur, nil
}

// Delete es un borrado lógico.
func (s *Service) Delete(ctx context.Context, petID, logID string) error {
	if _, err := s.liveLog(ctx, petID, logID); err != nil {
		return fmt.Errorf("delete log: %w", err)
	}
	if err := s.store.Commit(ctx, es.NewBatch().Add(es.SoftDeleteLogs{
		PetID: petID, LogIDs: []string{logID}, At: s.now(),
	})); err != nil {
		return fmt.Errorf("delete log: %w", err)
	}
	return nil
}

// ListForDay devuelve los logs no borrados del día calendario de date en loc,
// del más reciente al más antiguo.
func (s *Service) ListForDay(ctx context.Context, petID string, date time.Time, loc *time.Location) ([]Entry, error) {
	from, to := DayWindow(date, loc)
	return s.ListRange(ctx, petID, from, to)
}

// ListRange devuelve logs con timestamp en [from, to].
func (s *Service) ListRange(ctx context.Context, petID string, from, to time.Time) ([]Entry, error) {
	if to.Before(from) {
		return nil, apperr.Validation("to", "must not be before from")
	}
	rows, err := s.store.ListLogs(ctx, petID, es.LogFilter{From: &from, To: &to})
	if err != nil {
		return nil, fmt.Errorf("list logs: %w", err)
	}
	return enrich(ctx, s.store, petID, rows)
}

// WatchDay recalcula el día ante cambios en logs o tasks del pet, o en
// cualquier perfil de usuario (nombres y colores).
func (s *Service) WatchDay(ctx context.Context, petID string, date time.Time, loc *time.Location, emit func([]Entry, error)) *live.Subscription {
	match := live.Any(
		live.PetCollection(es.CollectionLogs, petID),
		live.PetCollection(es.CollectionTasks, petID),
		live.Collection(es.CollectionUsers),
	)
	return live.Watch(ctx, s.hub, match,
		func(ctx context.Context) ([]Entry, error) { return s.ListForDay(ctx, petID, date, loc) },
		emit,
	)
}

func (s *Service) liveTask(ctx context.Context, petID, taskID string) (es.Task, error) {
	if strings.TrimSpace(taskID) == "" {
		return es.Task{}, apperr.Validation("task_id", "is required")
	}
	t, err := s.store.GetTask(ctx, petID, taskID)
	if err != nil {
		return es.Task{}, err
	}
	if t.Deleted {
		return es.Task{}, fmt.Errorf("task %s deleted: %w", taskID, apperr.ErrNotFound)
	}
	return t, nil
}

func (s *Service) liveLog(ctx context.Context, petID, logID string) (es.Log, error) {
	l, err := s.store.GetLog(ctx, petID, logID)
	if err != nil {
		return es.Log{}, err
	}
	if l.Deleted {
		return es.Log{}, fmt.Errorf("log %s deleted: %w", logID, apperr.ErrNotFound)
	}
	return l, nil
}
