package logs

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"pet-care-log/internal/apperr"
	"pet-care-log/internal/domain/users"
	es "pet-care-log/internal/ports/entitystore"

	"golang.org/x/sync/errgroup"
)

// maxFetches acota las lecturas concurrentes de un enriquecimiento.
const maxFetches = 8

// enrich junta cada log con el estado actual de su task y de sus autores. Una
// lectura por task y por uid distintos, en paralelo.
func enrich(ctx context.Context, store es.Store, petID string, rows []es.Log) ([]Entry, error) {
	taskIDs := map[string]struct{}{}
	uids := map[string]struct{}{}
	for _, l := range rows {
		taskIDs[l.TaskID] = struct{}{}
		if l.CreatedBy != "" {
			uids[l.CreatedBy] = struct{}{}
		}
		if l.UpdatedBy != "" {
			uids[l.UpdatedBy] = struct{}{}
		}
	}

	var (
		mu       sync.Mutex
		taskByID = make(map[string]es.Task, len(taskIDs))
		userByID = make(map[string]es.User, len(uids))
	)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(maxFetches)

	for id := range taskIDs {
		id := id
		g.Go(func() error {
			t, err := store.GetTask(gctx, petID, id)
			if errors.Is(err, apperr.ErrNotFound) {
				return nil
			}
			if err != nil {
				return fmt.Errorf("task %s: %w", id, err)
			}
			mu.Lock()
			taskByID[id] = t
			mu.Unlock()
			return nil
		})
	}
	for uid := range uids {
		uid := uid
		g.Go(func() error {
			u, err := store.GetUser(gctx, uid)
			if errors.Is(err, apperr.ErrNotFound) {
				return nil
			}
			if err != nil {
				return fmt.Errorf("user %s: %w", uid, err)
			}
			mu.Lock()
			userByID[uid] = u
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("enrich logs: %w", err)
	}

	out := make([]Entry, 0, len(rows))
	for _, l := range rows {
		out = append(out, decorate(l, taskByID, userByID))
	}
	return out, nil
}

func decorate(l es.Log, tasks map[string]es.Task, people map[string]es.User) Entry {
	e := Entry{
		Log:           l,
		TaskColor:     DefaultTaskColor,
		TaskTextColor: DefaultTaskTextColor,
		IsTaskDeleted: true,
	}

	if t, ok := tasks[l.TaskID]; ok {
		e.IsTaskDeleted = t.Deleted
		if t.Color != "" {
			e.TaskColor = t.Color
		}
		if t.TextColor != "" {
			e.TaskTextColor = t.TextColor
		}
	}

	creator := people[l.CreatedBy]
	e.CreatedByName = users.DisplayName(creator)
	if l.UpdatedBy != "" {
		e.UpdatedByName = users.DisplayName(people[l.UpdatedBy])
	}

	c := creator.Settings.LogColors
	e.Colors = es.LogColors{
		CreatorNameBgColor:   or(c.CreatorNameBgColor, DefaultCreatorNameBgColor),
		CreatorNameTextColor: or(c.CreatorNameTextColor, DefaultCreatorNameTextColor),
		TimeBgColor:          or(c.TimeBgColor, DefaultTimeBgColor),
		TimeTextColor:        or(c.TimeTextColor, DefaultTimeTextColor),
	}
	return e
}

func or(v, def string) string {
	if v == "" {
		return def
	}
	return v
}
