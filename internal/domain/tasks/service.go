// Package tasks es el registro de tareas de cuidado de cada pet. Renombrar y
// borrar tareas arrastra a sus logs en el mismo batch.
package tasks

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"time"
	"unicode/utf8"

	"pet-care-log/internal/apperr"
	"pet-care-log/internal/live"
	es "pet-care-log/internal/ports/entitystore"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	MaxNameLength = 20

	DefaultColor     = "#cccccc"
	DefaultTextColor = "#000000"
)

var hexColor = regexp.MustCompile(`^#(?:[0-9a-fA-F]{3}|[0-9a-fA-F]{6})$`)

type AddInput struct {
	Name      string
	Color     string
	TextColor string
	// Nil => now en milisegundos, así las nuevas quedan al final.
	Order *int64
}

type UpdateInput struct {
	Name      *string
	Color     *string
	TextColor *string
}

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

// List devuelve las tareas no borradas ordenadas por Order.
func (s *Service) List(ctx context.Context, petID string) ([]es.Task, error) {
	out, err := s.store.ListTasks(ctx, petID, false)
	if err != nil {
		return nil, fmt.Errorf("list tasks: %w", err)
	}
	return out, nil
}

func (s *Service) Watch(ctx context.Context, petID string, emit func([]es.Task, error)) *live.Subscription {
	return live.Watch(ctx, s.hub, live.PetCollection(es.CollectionTasks, petID),
		func(ctx context.Context) ([]es.Task, error) { return s.List(ctx, petID) },
		emit,
	)
}

// Get devuelve la tarea aunque esté borrada.
func (s *Service) Get(ctx context.Context, petID, taskID string) (es.Task, error) {
	t, err := s.store.GetTask(ctx, petID, taskID)
	if err != nil {
		return es.Task{}, fmt.Errorf("get task: %w", err)
	}
	return t, nil
}

func (s *Service) Add(ctx context.Context, petID, byUID string, in AddInput) (es.Task, error) {
	name, err := validName(in.Name)
	if err != nil {
		return es.Task{}, err
	}
	color, err := colorOr("color", in.Color, DefaultColor)
	if err != nil {
		return es.Task{}, err
	}
	text, err := colorOr("text_color", in.TextColor, DefaultTextColor)
	if err != nil {
		return es.Task{}, err
	}

	now := s.now()
	order := now.UnixMilli()
	if in.Order != nil {
		order = *in.Order
	}

	t := es.Task{
		ID:        s.newID(),
		PetID:     petID,
		Name:      name,
		Color:     color,
		TextColor: text,
		Order:     order,
		CreatedBy: byUID,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.store.Commit(ctx, es.NewBatch().Add(es.PutTask{Task: t})); err != nil {
		return es.Task{}, fmt.Errorf("add task: %w", err)
	}
	return t, nil
}

// Update cambia atributos. Si cambia el nombre, el taskName de todos los logs
// de la tarea se reescribe en el mismo batch.
func (s *Service) Update(ctx context.Context, petID, taskID string, in UpdateInput) (es.Task, error) {
	var patch es.TaskPatch
	if in.Name != nil {
		name, err := validName(*in.Name)
		if err != nil {
			return es.Task{}, err
		}
		patch.Name = &name
	}
	if in.Color != nil {
		if !hexColor.MatchString(*in.Color) {
			return es.Task{}, apperr.Validation("color", "must be a hex color")
		}
		patch.Color = in.Color
	}
	if in.TextColor != nil {
		if !hexColor.MatchString(*in.TextColor) {
			return es.Task{}, apperr.Validation("text_color", "must be a hex color")
		}
		patch.TextColor = in.TextColor
	}

	cur, err := s.store.GetTask(ctx, petID, taskID)
	if err != nil {
		return es.Task{}, fmt.Errorf("update task: %w", err)
	}
	if cur.Deleted {
		return es.Task{}, fmt.Errorf("update task %s: deleted: %w", taskID, apperr.ErrNotFound)
	}

	now := s.now()
	b := es.NewBatch().Add(es.PatchTask{PetID: petID, TaskID: taskID, Patch: patch, At: now})
	if patch.Name != nil && *patch.Name != cur.Name {
		b.Add(es.RenameTaskInLogs{PetID: petID, TaskID: taskID, TaskName: *patch.Name, At: now})
	}
	if err := s.store.Commit(ctx, b); err != nil {
		return es.Task{}, fmt.Errorf("update task: %w", err)
	}

	patch.Apply(&cur)
	cur.UpdatedAt = now
	return cur, nil
}

func (s *Service) Delete(ctx context.Context, petID, taskID string) error {
	return s.BulkDelete(ctx, petID, []string{taskID})
}

// BulkDelete marca borradas las tareas y todos sus logs en un solo batch.
func (s *Service) BulkDelete(ctx context.Context, petID string, taskIDs []string) error {
	ids := dedup(taskIDs)
	if len(ids) == 0 {
		return apperr.Validation("task_ids", "must not be empty")
	}
	for _, id := range ids {
		if _, err := s.store.GetTask(ctx, petID, id); err != nil {
			return fmt.Errorf("delete tasks: %w", err)
		}
	}

	now := s.now()
	b := es.NewBatch().Add(
		es.SoftDeleteTasks{PetID: petID, TaskIDs: ids, At: now},
		es.SoftDeleteLogsByTask{PetID: petID, TaskIDs: ids, At: now},
	)
	if err := s.store.Commit(ctx, b); err != nil {
		return fmt.Errorf("delete tasks: %w", err)
	}

	s.log.Info("tasks deleted", zap.String("pet_id", petID), zap.Strings("task_ids", ids))
	return nil
}

// Reorder persiste la posición de cada tarea en la lista. Son escrituras
// independientes: si una falla, las anteriores quedan aplicadas.
func (s *Service) Reorder(ctx context.Context, petID string, orderedIDs []string) error {
	ids := dedup(orderedIDs)
	if len(ids) != len(orderedIDs) {
		return apperr.Validation("task_ids", "must not repeat ids")
	}
	for i, id := range ids {
		order := int64(i)
		b := es.NewBatch().Add(es.PatchTask{PetID: petID, TaskID: id, Patch: es.TaskPatch{Order: &order}, At: s.now()})
		if err := s.store.Commit(ctx, b); err != nil {
			return fmt.Errorf("reorder tasks (%d/%d): %w", i, len(ids), err)
		}
	}
	return nil
}

func validName(name string) (string, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return "", apperr.Validation("name", "is required")
	}
	if utf8.RuneCountInString(name) > MaxNameLength {
		return "", apperr.Validation("name", fmt.Sprintf("must be at most %d characters", MaxNameLength))
	}
	return name, nil
}

func colorOr(field, v, def string) (string, error) {
	if v == "" {
		return def, nil
	}
	if !hexColor.MatchString(v) {
		return "", apperr.Validation(field, "must be a hex color")
	}
	return v, nil
}

func dedup(ids []string) []string {
	seen := make(map[string]struct{}, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if id == "" {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
