package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"pet-care-log/internal/apperr"
	es "pet-care-log/internal/ports/entitystore"
)

// Store implementa entitystore.Store sobre Postgres. Cada Batch corre en una
// única transacción.
type Store struct {
	db *sql.DB
}

func NewStore(db *sql.DB) *Store {
	return &Store{db: db}
}

var _ es.Store = (*Store)(nil)

// queryer lo cumplen *sql.DB y *sql.Tx.
type queryer interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

type scanner interface {
	Scan(dest ...any) error
}

func notFound(kind, id string) error {
	return fmt.Errorf("%s %s: %w", kind, id, apperr.ErrNotFound)
}

func storeErr(kind, id string, err error) error {
	if errors.Is(err, sql.ErrNoRows) {
		return notFound(kind, id)
	}
	return apperr.Transient(err)
}

// ---- pets

const petColumns = `
	id, name, breed, birthday, gender, adoption_date,
	profile_image_url, microchip_id, medical_notes, vet_info,
	created_by, created_at, updated_at, deleted, deleted_at`

func scanPet(row scanner) (es.Pet, error) {
	var p es.Pet
	var gender string
	var birthday, adoption, deletedAt sql.NullTime
	var vet []byte
	if err := row.Scan(
		&p.ID, &p.Name, &p.Breed, &birthday, &gender, &adoption,
		&p.ProfileImageURL, &p.MicrochipID, &p.MedicalNotes, &vet,
		&p.CreatedBy, &p.CreatedAt, &p.UpdatedAt, &p.Deleted, &deletedAt,
	); err != nil {
		return es.Pet{}, err
	}
	p.Gender = es.Gender(gender)
	p.Birthday = fromNullTime(birthday)
	p.AdoptionDate = fromNullTime(adoption)
	p.DeletedAt = fromNullTime(deletedAt)
	if len(vet) > 0 {
		if err := json.Unmarshal(vet, &p.VetInfo); err != nil {
			return es.Pet{}, fmt.Errorf("decode vet_info: %w", err)
		}
	}
	return p, nil
}

func (s *Store) GetPet(ctx context.Context, petID string) (es.Pet, error) {
	return getPet(ctx, s.db, petID, false)
}

func getPet(ctx context.Context, q queryer, petID string, forUpdate bool) (es.Pet, error) {
	query := `SELECT` + petColumns + ` FROM pets WHERE id = $1`
	if forUpdate {
		query += ` FOR UPDATE`
	}
	p, err := scanPet(q.QueryRowContext(ctx, query, petID))
	if err != nil {
		return es.Pet{}, storeErr("pet", petID, err)
	}
	return p, nil
}

// ---- members

const memberColumns = `
	pet_id, id, uid, role, status, invite_email, invited_by, invited_at,
	created_at, updated_at`

func scanMember(row scanner) (es.Member, error) {
	var m es.Member
	var role, status string
	var invitedAt sql.NullTime
	if err := row.Scan(
		&m.PetID, &m.ID, &m.UID, &role, &status, &m.InviteEmail, &m.InvitedBy, &invitedAt,
		&m.CreatedAt, &m.UpdatedAt,
	); err != nil {
		return es.Member{}, err
	}
	m.Role = es.Role(role)
	m.Status = es.MemberStatus(status)
	m.InvitedAt = fromNullTime(invitedAt)
	return m, nil
}

func (s *Store) GetMember(ctx context.Context, petID, memberID string) (es.Member, error) {
	m, err := scanMember(s.db.QueryRowContext(ctx,
		`SELECT`+memberColumns+` FROM pet_members WHERE pet_id = $1 AND id = $2`, petID, memberID))
	if err != nil {
		return es.Member{}, storeErr("member", memberID, err)
	}
	return m, nil
}

func (s *Store) ListMembers(ctx context.Context, petID string) ([]es.Member, error) {
	return s.listMembers(ctx, `WHERE pet_id = $1`, petID)
}

func (s *Store) ListMembershipsByUID(ctx context.Context, uid string, status es.MemberStatus) ([]es.Member, error) {
	if strings.TrimSpace(uid) == "" {
		return []es.Member{}, nil
	}
	return s.listMembers(ctx, `WHERE uid = $1 AND status = $2`, uid, string(status))
}

func (s *Store) ListInvitationsByEmail(ctx context.Context, email string, status es.MemberStatus) ([]es.Member, error) {
	if strings.TrimSpace(email) == "" {
		return []es.Member{}, nil
	}
	return s.listMembers(ctx, `WHERE invite_email = $1 AND status = $2`, email, string(status))
}

func (s *Store) listMembers(ctx context.Context, where string, args ...any) ([]es.Member, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT`+memberColumns+` FROM pet_members `+where+` ORDER BY created_at ASC, id ASC`, args...)
	if err != nil {
		return nil, apperr.Transient(err)
	}
	defer rows.Close()

	out := make([]es.Member, 0)
	for rows.Next() {
		m, err := scanMember(rows)
		if err != nil {
			return nil, apperr.Transient(err)
		}
		out = append(out, m)
	}
	return out, apperr.Transient(rows.Err())
}

// ---- tasks

const taskColumns = `
	pet_id, id, name, color, text_color, sort_order,
	created_by, created_at, updated_at, deleted, deleted_at`

func scanTask(row scanner) (es.Task, error) {
	var t es.Task
	var deletedAt sql.NullTime
	if err := row.Scan(
		&t.PetID, &t.ID, &t.Name, &t.Color, &t.TextColor, &t.Order,
		&t.CreatedBy, &t.CreatedAt, &t.UpdatedAt, &t.Deleted, &deletedAt,
	); err != nil {
		return es.Task{}, err
	}
	t.DeletedAt = fromNullTime(deletedAt)
	return t, nil
}

func (s *Store) GetTask(ctx context.Context, petID, taskID string) (es.Task, error) {
	return getTask(ctx, s.db, petID, taskID, false)
}

func getTask(ctx context.Context, q queryer, petID, taskID string, forUpdate bool) (es.Task, error) {
	query := `SELECT` + taskColumns + ` FROM pet_tasks WHERE pet_id = $1 AND id = $2`
	if forUpdate {
		query += ` FOR UPDATE`
	}
	t, err := scanTask(q.QueryRowContext(ctx, query, petID, taskID))
	if err != nil {
		return es.Task{}, storeErr("task", taskID, err)
	}
	return t, nil
}

func (s *Store) ListTasks(ctx context.Context, petID string, includeDeleted bool) ([]es.Task, error) {
	query := `SELECT` + taskColumns + ` FROM pet_tasks WHERE pet_id = $1`
	if !includeDeleted {
		query += ` AND deleted = FALSE`
	}
	query += ` ORDER BY sort_order ASC, id ASC`

	rows, err := s.db.QueryContext(ctx, query, petID)
	if err != nil {
		return nil, apperr.Transient(err)
	}
	defer rows.Close()

	out := make([]es.Task, 0)
	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			return nil, apperr.Transient(err)
		}
		out = append(out, t)
	}
	return out, apperr.Transient(rows.Err())
}

// ---- logs

const logColumns = `
	pet_id, id, task_id, task_name, ts, note,
	created_by, updated_by, created_at, updated_at, deleted, deleted_at`

func scanLog(row scanner) (es.Log, error) {
	var l es.Log
	var deletedAt sql.NullTime
	if err := row.Scan(
		&l.PetID, &l.ID, &l.TaskID, &l.TaskName, &l.Timestamp, &l.Note,
		&l.CreatedBy, &l.UpdatedBy, &l.CreatedAt, &l.UpdatedAt, &l.Deleted, &deletedAt,
	); err != nil {
		return es.Log{}, err
	}
	l.DeletedAt = fromNullTime(deletedAt)
	return l, nil
}

func (s *Store) GetLog(ctx context.Context, petID, logID string) (es.Log, error) {
	return getLog(ctx, s.db, petID, logID, false)
}

func getLog(ctx context.Context, q queryer, petID, logID string, forUpdate bool) (es.Log, error) {
	query := `SELECT` + logColumns + ` FROM pet_logs WHERE pet_id = $1 AND id = $2`
	if forUpdate {
		query += ` FOR UPDATE`
	}
	l, err := scanLog(q.QueryRowContext(ctx, query, petID, logID))
	if err != nil {
		return es.Log{}, storeErr("log", logID, err)
	}
	return l, nil
}

func (s *Store) ListLogs(ctx context.Context, petID string, filter es.LogFilter) ([]es.Log, error) {
	sb := strings.Builder{}
	sb.WriteString(`SELECT` + logColumns + ` FROM pet_logs WHERE pet_id = $1`)

	args := []any{petID}
	argN := 2

	if !filter.IncludeDeleted {
		sb.WriteString(" AND deleted = FALSE")
	}
	if filter.TaskID != "" {
		sb.WriteString(fmt.Sprintf(" AND task_id = $%d", argN))
		args = append(args, filter.TaskID)
		argN++
	}
	if filter.From != nil {
		sb.WriteString(fmt.Sprintf(" AND ts >= $%d", argN))
		args = append(args, *filter.From)
		argN++
	}
	if filter.To != nil {
		sb.WriteString(fmt.Sprintf(" AND ts <= $%d", argN))
		args = append(args, *filter.To)
	}
	sb.WriteString(" ORDER BY ts DESC, id ASC")

	rows, err := s.db.QueryContext(ctx, sb.String(), args...)
	if err != nil {
		return nil, apperr.Transient(err)
	}
	defer rows.Close()

	out := make([]es.Log, 0)
	for rows.Next() {
		l, err := scanLog(rows)
		if err != nil {
			return nil, apperr.Transient(err)
		}
		out = append(out, l)
	}
	return out, apperr.Transient(rows.Err())
}

// ---- users

func (s *Store) GetUser(ctx context.Context, uid string) (es.User, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT
			uid, auth_email, auth_name, auth_provider, is_anonymous,
			nickname, profile_image_url, settings, primary_pet_id,
			created_at, updated_at
		FROM users
		WHERE uid = $1
	`, uid)

	var u es.User
	var settings []byte
	if err := row.Scan(
		&u.UID, &u.AuthEmail, &u.AuthName, &u.AuthProvider, &u.IsAnonymous,
		&u.Nickname, &u.ProfileImageURL, &settings, &u.PrimaryPetID,
		&u.CreatedAt, &u.UpdatedAt,
	); err != nil {
		return es.User{}, storeErr("user", uid, err)
	}
	if len(settings) > 0 {
		if err := json.Unmarshal(settings, &u.Settings); err != nil {
			return es.User{}, fmt.Errorf("decode settings: %w", err)
		}
	}
	return u, nil
}

// ---- weights, messages

func (s *Store) ListWeights(ctx context.Context, petID string) ([]es.Weight, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT pet_id, id, kilograms, measured_at, note, created_by, created_at
		FROM pet_weights
		WHERE pet_id = $1 AND deleted = FALSE
		ORDER BY measured_at ASC, id ASC
	`, petID)
	if err != nil {
		return nil, apperr.Transient(err)
	}
	defer rows.Close()

	out := make([]es.Weight, 0)
	for rows.Next() {
		var w es.Weight
		if err := rows.Scan(&w.PetID, &w.ID, &w.Kilograms, &w.MeasuredAt, &w.Note, &w.CreatedBy, &w.CreatedAt); err != nil {
			return nil, apperr.Transient(err)
		}
		out = append(out, w)
	}
	return out, apperr.Transient(rows.Err())
}

func (s *Store) ListMessages(ctx context.Context, petID string, limit int) ([]es.Message, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT pet_id, id, sender_uid, body, created_at
		FROM pet_messages
		WHERE pet_id = $1
		ORDER BY created_at DESC, id ASC
		LIMIT $2
	`, petID, limit)
	if err != nil {
		return nil, apperr.Transient(err)
	}
	defer rows.Close()

	out := make([]es.Message, 0)
	for rows.Next() {
		var m es.Message
		if err := rows.Scan(&m.PetID, &m.ID, &m.SenderUID, &m.Body, &m.CreatedAt); err != nil {
			return nil, apperr.Transient(err)
		}
		out = append(out, m)
	}
	return out, apperr.Transient(rows.Err())
}

func fromNullTime(t sql.NullTime) *time.Time {
	if !t.Valid {
		return nil
	}
	v := t.Time
	return &v
}

func toNullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{Valid: false}
	}
	return sql.NullTime{Time: *t, Valid: true}
}
