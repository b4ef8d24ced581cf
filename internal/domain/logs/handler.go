package logs

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"time"

	"pet-care-log/internal/apperr"
	"pet-care-log/internal/live"
	"pet-care-log/internal/middleware"
	"pet-care-log/internal/platform/httpjson"
	es "pet-care-log/internal/ports/entitystore"

	"github.com/go-chi/chi/v5"
)

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

func RegisterRoutes(r chi.Router, svc *Service, authz middleware.Authorizer, defaultLoc *time.Location) {
	viewer := middleware.RequirePetRole(authz, es.RoleViewer)
	editor := middleware.RequirePetRole(authz, es.RoleEditor)

	r.With(viewer).Get("/pets/{petID}/logs", listDayHandler(svc, defaultLoc))
	r.With(viewer).Get("/pets/{petID}/logs/export", exportHandler(svc, defaultLoc))
	r.With(editor).Post("/pets/{petID}/logs", addLogHandler(svc))
	r.With(editor).Patch("/pets/{petID}/logs/{logID}", updateLogHandler(svc))
	r.With(editor).Delete("/pets/{petID}/logs/{logID}", deleteLogHandler(svc))
}

type addLogRequest struct {
	TaskID    string     `json:"task_id"`
	Timestamp *time.Time `json:"timestamp"` // RFC3339 opcional, default ahora
	Note      string     `json:"note"`
}

type updateLogRequest struct {
	TaskID    *string    `json:"task_id"`
	Timestamp *time.Time `json:"timestamp"`
	Note      *string    `json:"note"`
}

type LogResponse struct {
	ID        string    `json:"id"`
	PetID     string    `json:"pet_id"`
	TaskID    string    `json:"task_id"`
	TaskName  string    `json:"task_name"`
	Timestamp time.Time `json:"timestamp"`
	Note      string    `json:"note"`
	CreatedBy string    `json:"created_by"`
	UpdatedBy string    `json:"updated_by,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

type EntryResponse struct {
	LogResponse
	TaskColor            string `json:"task_color"`
	TaskTextColor        string `json:"task_text_color"`
	IsTaskDeleted        bool   `json:"is_task_deleted"`
	CreatedByName        string `json:"created_by_name"`
	UpdatedByName        string `json:"updated_by_name,omitempty"`
	CreatorNameBgColor   string `json:"creator_name_bg_color"`
	CreatorNameTextColor string `json:"creator_name_text_color"`
	TimeBgColor          string `json:"time_bg_color"`
	TimeTextColor        string `json:"time_text_color"`
}

// ResolveDay lee ?date=YYYY-MM-DD y ?tz= (IANA). Sin date => hoy en tz.
func ResolveDay(r *http.Request, defaultLoc *time.Location, now time.Time) (time.Time, *time.Location, error) {
	loc, err := resolveLocation(r, defaultLoc)
	if err != nil {
		return time.Time{}, nil, err
	}
	raw := r.URL.Query().Get("date")
	if raw == "" {
		return now.In(loc), loc, nil
	}
	day, err := ParseDay(raw, loc)
	if err != nil {
		return time.Time{}, nil, err
	}
	return day, loc, nil
}

func resolveLocation(r *http.Request, defaultLoc *time.Location) (*time.Location, error) {
	tz := r.URL.Query().Get("tz")
	if tz == "" {
		if defaultLoc == nil {
			return time.UTC, nil
		}
		return defaultLoc, nil
	}
	loc, err := time.LoadLocation(tz)
	if err != nil {
		return nil, apperr.Validation("tz", "must be an IANA time zone")
	}
	return loc, nil
}

// @Summary Logs de un día, enriquecidos
// @Tags logs
// @Param petID path string true "pet id"
// @Param date query string false "YYYY-MM-DD"
// @Param tz query string false "IANA time zone"
// @Success 200 {array} EntryResponse
// @Router /pets/{petID}/logs [get]
func listDayHandler(svc *Service, defaultLoc *time.Location) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		day, loc, err := ResolveDay(r, defaultLoc, svc.now())
		if err != nil {
			httpjson.WriteError(w, err)
			return
		}
		items, err := svc.ListForDay(r.Context(), chi.URLParam(r, "petID"), day, loc)
		if err != nil {
			httpjson.WriteError(w, err)
			return
		}
		httpjson.WriteJSON(w, http.StatusOK, ToEntryResponses(items))
	}
}

// @Summary Exportar logs a xlsx
// @Tags logs
// @Param petID path string true "pet id"
// @Param from query string true "YYYY-MM-DD"
// @Param to query string true "YYYY-MM-DD"
// @Router /pets/{petID}/logs/export [get]
func exportHandler(svc *Service, defaultLoc *time.Location) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		loc, err := resolveLocation(r, defaultLoc)
		if err != nil {
			httpjson.WriteError(w, err)
			return
		}
		fromDay, err := ParseDay(r.URL.Query().Get("from"), loc)
		if err != nil {
			httpjson.WriteError(w, apperr.Validation("from", "must be YYYY-MM-DD"))
			return
		}
		toDay, err := ParseDay(r.URL.Query().Get("to"), loc)
		if err != nil {
			httpjson.WriteError(w, apperr.Validation("to", "must be YYYY-MM-DD"))
			return
		}
		from, _ := DayWindow(fromDay, loc)
		_, to := DayWindow(toDay, loc)

		petID := chi.URLParam(r, "petID")
		w.Header().Set("Content-Type", xlsxContentType)
		w.Header().Set("Content-Disposition",
			fmt.Sprintf(`attachment; filename="logs-%s-%s-%s.xlsx"`, petID, fromDay.Format(dayLayout), toDay.Format(dayLayout)))

		// Si falla antes de escribir el cuerpo, todavía se puede responder el error.
		var buf bytes.Buffer
		if err := svc.Export(r.Context(), &buf, petID, from, to, loc); err != nil {
			w.Header().Del("Content-Disposition")
			httpjson.WriteError(w, err)
			return
		}
		w.WriteHeader(http.StatusOK)
		_, _ = buf.WriteTo(w)
	}
}

func addLogHandler(svc *Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		claims, _ := middleware.RequireUser(r)

		var req addLogRequest
		if err := httpjson.Decode(r, &req); err != nil {
			httpjson.WriteError(w, err)
			return
		}
		l, err := svc.Add(r.Context(), chi.URLParam(r, "petID"), claims.UserID, AddInput{
			TaskID:    req.TaskID,
			Timestamp: req.Timestamp,
			Note:      req.Note,
		})
		if err != nil {
			httpjson.WriteError(w, err)
			return
		}
		httpjson.WriteJSON(w, http.StatusCreated, ToLogResponse(l))
	}
}

func updateLogHandler(svc *Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		claims, _ := middleware.RequireUser(r)

		var req updateLogRequest
		if err := httpjson.Decode(r, &req); err != nil {
			httpjson.WriteError(w, err)
			return
		}
		l, err := svc.Update(r.Context(), chi.URLParam(r, "petID"), chi.URLParam(r, "logID"), claims.UserID, UpdateInput{
			TaskID:    req.TaskID,
			Timestamp: req.Timestamp,
			Note:      req.Note,
		})
		if err != nil {
			httpjson.WriteError(w, err)
			return
		}
		httpjson.WriteJSON(w, http.StatusOK, ToLogResponse(l))
	}
}

func deleteLogHandler(svc *Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := svc.Delete(r.Context(), chi.URLParam(r, "petID"), chi.URLParam(r, "logID")); err != nil {
			httpjson.WriteError(w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

// WatchDayResponses es WatchDay con la forma de respuesta HTTP.
func (s *Service) WatchDayResponses(ctx context.Context, petID string, day time.Time, loc *time.Location, emit func(any, error)) *live.Subscription {
	return s.WatchDay(ctx, petID, day, loc, func(items []Entry, err error) {
		emit(ToEntryResponses(items), err)
	})
}

// Now expone el reloj del servicio para resolver "hoy".
func (s *Service) Now() time.Time { return s.now() }

func ToEntryResponses(items []Entry) []EntryResponse {
	out := make([]EntryResponse, 0, len(items))
	for _, e := range items {
		out = append(out, EntryResponse{
			LogResponse:          ToLogResponse(e.Log),
			TaskColor:            e.TaskColor,
			TaskTextColor:        e.TaskTextColor,
			IsTaskDeleted:        e.IsTaskDeleted,
			CreatedByName:        e.CreatedByName,
			UpdatedByName:        e.UpdatedByName,
			CreatorNameBgColor:   e.Colors.CreatorNameBgColor,
			CreatorNameTextColor: e.Colors.CreatorNameTextColor,
			TimeBgColor:          e.Colors.TimeBgColor,
			TimeTextColor:        e.Colors.TimeTextColor,
		})
	}
	return out
}

func ToLogResponse(l es.Log) LogResponse {
	return LogResponse{
		ID:        l.ID,
		PetID:     l.PetID,
		TaskID:    l.TaskID,
		TaskName:  l.TaskName,
		Timestamp: l.Timestamp,
		Note:      l.Note,
		CreatedBy: l.CreatedBy,
		UpdatedBy: l.UpdatedBy,
		CreatedAt: l.CreatedAt,
		UpdatedAt: l.UpdatedAt,
	}
}
