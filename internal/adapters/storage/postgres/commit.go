package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"pet-care-log/internal/apperr"
	es "pet-care-log/internal/ports/entitystore"
)

// Commit aplica el batch en una transacción. Las cascadas (tasks -> logs,
// pet -> tasks + logs) son UPDATE por conjunto dentro de la misma tx.
func (s *Store) Commit(ctx context.Context, b *es.Batch) error {
	if b == nil || b.Len() == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return apperr.Transient(err)
	}

	for _, m := range b.Mutations() {
		if err := apply(ctx, tx, m); err != nil {
			_ = tx.Rollback()
			return err
		}
	}

	if err := tx.Commit(); err != nil {
		return apperr.Transient(err)
	}
	return nil
}

func apply(ctx context.Context, tx *sql.Tx, mut es.Mutation) error {
	switch m := mut.(type) {
	case es.PutPet:
		return upsertPet(ctx, tx, m.Pet)

	case es.PatchPet:
		p, err := getPet(ctx, tx, m.PetID, true)
		if err != nil {
			return err
		}
		m.Patch.Apply(&p)
		p.UpdatedAt = m.At
		return upsertPet(ctx, tx, p)

	case es.SoftDeletePet:
		return execOne(ctx, tx, "pet", m.PetID, `
			UPDATE pets SET deleted = TRUE, deleted_at = $2, updated_at = $2
			WHERE id = $1
		`, m.PetID, m.At)

	case es.PutMember:
		mem := m.Member
		return exec(ctx, tx, `
			INSERT INTO pet_members (
				pet_id, id, uid, role, status, invite_email, invited_by, invited_at,
				created_at, updated_at
			) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)
			ON CONFLICT (pet_id, id) DO UPDATE SET
				uid = EXCLUDED.uid,
				role = EXCLUDED.role,
				status = EXCLUDED.status,
				invite_email = EXCLUDED.invite_email,
				invited_by = EXCLUDED.invited_by,
				invited_at = EXCLUDED.invited_at,
				updated_at = EXCLUDED.updated_at
		`,
			mem.PetID, mem.ID, mem.UID, string(mem.Role), string(mem.Status),
			mem.InviteEmail, mem.InvitedBy, toNullTime(mem.InvitedAt),
			mem.CreatedAt, mem.UpdatedAt,
		)

	case es.SetMemberStatus:
		if m.ExpectStatus != "" {
			if err := lockMemberStatus(ctx, tx, m.PetID, m.MemberID, m.ExpectStatus); err != nil {
				return err
			}
		}
		// uid solo se pisa cuando viene informado (aceptación).
		return execOne(ctx, tx, "member", m.MemberID, `
			UPDATE pet_members
			SET status = $3,
				uid = CASE WHEN $4 = '' THEN uid ELSE $4 END,
				updated_at = $5
			WHERE pet_id = $1 AND id = $2
		`, m.PetID, m.MemberID, string(m.Status), m.UID, m.At)

	case es.SetMemberRole:
		return execOne(ctx, tx, "member", m.MemberID, `
			UPDATE pet_members SET role = $3, updated_at = $4
			WHERE pet_id = $1 AND id = $2
		`, m.PetID, m.MemberID, string(m.Role), m.At)

	case es.DeleteMember:
		return execOne(ctx, tx, "member", m.MemberID, `
			DELETE FROM pet_members WHERE pet_id = $1 AND id = $2
		`, m.PetID, m.MemberID)

	case es.PutTask:
		return upsertTask(ctx, tx, m.Task)

	case es.PatchTask:
		t, err := getTask(ctx, tx, m.PetID, m.TaskID, true)
		if err != nil {
			return err
		}
		m.Patch.Apply(&t)
		t.UpdatedAt = m.At
		return upsertTask(ctx, tx, t)

	case es.SoftDeleteTasks:
		query := `
			UPDATE pet_tasks SET deleted = TRUE, deleted_at = $2, updated_at = $2
			WHERE pet_id = $1 AND deleted = FALSE`
		args := []any{m.PetID, m.At}
		if len(m.TaskIDs) > 0 {
			in, inArgs := inClause(3, m.TaskIDs)
			query += ` AND id IN (` + in + `)`
			args = append(args, inArgs...)
		}
		return exec(ctx, tx, query, args...)

	case es.PutLog:
		if !m.Log.Deleted {
			if err := lockLogParents(ctx, tx, m.Log.PetID, m.Log.TaskID); err != nil {
				return err
			}
		}
		return upsertLog(ctx, tx, m.Log)

	case es.PatchLog:
		l, err := getLog(ctx, tx, m.PetID, m.LogID, true)
		if err != nil {
			return err
		}
		if m.Patch.TaskID != nil && !l.Deleted {
			if err := lockLogParents(ctx, tx, m.PetID, *m.Patch.TaskID); err != nil {
				return err
			}
		}
		m.Patch.Apply(&l)
		l.UpdatedBy = m.UpdatedBy
		l.UpdatedAt = m.At
		return upsertLog(ctx, tx, l)

	case es.SoftDeleteLogs:
		for _, id := range m.LogIDs {
			if err := execOne(ctx, tx, "log", id, `
				UPDATE pet_logs SET deleted = TRUE, deleted_at = $3, updated_at = $3
				WHERE pet_id = $1 AND id = $2
			`, m.PetID, id, m.At); err != nil {
				return err
			}
		}
		return nil

	case es.SoftDeleteLogsByTask:
		if len(m.TaskIDs) == 0 {
			return nil
		}
		in, inArgs := inClause(3, m.TaskIDs)
		args := append([]any{m.PetID, m.At}, inArgs...)
		return exec(ctx, tx, `
			UPDATE pet_logs SET deleted = TRUE, deleted_at = $2, updated_at = $2
			WHERE pet_id = $1 AND deleted = FALSE AND task_id IN (`+in+`)`, args...)

	case es.SoftDeleteLogsByPet:
		return exec(ctx, tx, `
			UPDATE pet_logs SET deleted = TRUE, deleted_at = $2, updated_at = $2
			WHERE pet_id = $1 AND deleted = FALSE
		`, m.PetID, m.At)

	case es.RenameTaskInLogs:
		return exec(ctx, tx, `
			UPDATE pet_logs SET task_name = $3, updated_at = $4
			WHERE pet_id = $1 AND task_id = $2
		`, m.PetID, m.TaskID, m.TaskName, m.At)

	case es.PutUser:
		return upsertUser(ctx, tx, m.User)

	case es.PutWeight:
		w := m.Weight
		return exec(ctx, tx, `
			INSERT INTO pet_weights (
				pet_id, id, kilograms, measured_at, note, created_by, created_at, deleted, deleted_at
			) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
			ON CONFLICT (pet_id, id) DO UPDATE SET
				kilograms = EXCLUDED.kilograms,
				measured_at = EXCLUDED.measured_at,
				note = EXCLUDED.note,
				deleted = EXCLUDED.deleted,
				deleted_at = EXCLUDED.deleted_at
		`, w.PetID, w.ID, w.Kilograms, w.MeasuredAt, w.Note, w.CreatedBy, w.CreatedAt, w.Deleted, toNullTime(w.DeletedAt))

	case es.SoftDeleteWeight:
		return execOne(ctx, tx, "weight", m.WeightID, `
			UPDATE pet_weights SET deleted = TRUE, deleted_at = $3
			WHERE pet_id = $1 AND id = $2
		`, m.PetID, m.WeightID, m.At)

	case es.PutMessage:
		msg := m.Message
		return exec(ctx, tx, `
			INSERT INTO pet_messages (pet_id, id, sender_uid, body, created_at)
			VALUES ($1,$2,$3,$4,$5)
		`, msg.PetID, msg.ID, msg.SenderUID, msg.Body, msg.CreatedAt)

	default:
		return fmt.Errorf("postgres store: unsupported mutation %T", mut)
	}
}

func upsertPet(ctx context.Context, tx *sql.Tx, p es.Pet) error {
	vet, err := json.Marshal(nonNilVet(p.VetInfo))
	if err != nil {
		return fmt.Errorf("encode vet_info: %w", err)
	}
	return exec(ctx, tx, `
		INSERT INTO pets (
			id, name, breed, birthday, gender, adoption_date,
			profile_image_url, microchip_id, medical_notes, vet_info,
			created_by, created_at, updated_at, deleted, deleted_at
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15)
		ON CONFLICT (id) DO UPDATE SET
			name = EXCLUDED.name,
			breed = EXCLUDED.breed,
			birthday = EXCLUDED.birthday,
			gender = EXCLUDED.gender,
			adoption_date = EXCLUDED.adoption_date,
			profile_image_url = EXCLUDED.profile_image_url,
			microchip_id = EXCLUDED.microchip_id,
			medical_notes = EXCLUDED.medical_notes,
			vet_info = EXCLUDED.vet_info,
			updated_at = EXCLUDED.updated_at,
			deleted = EXCLUDED.deleted,
			deleted_at = EXCLUDED.deleted_at
	`,
		p.ID, p.Name, p.Breed, toNullTime(p.Birthday), string(p.Gender), toNullTime(p.AdoptionDate),
		p.ProfileImageURL, p.MicrochipID, p.MedicalNotes, vet,
		p.CreatedBy, p.CreatedAt, p.UpdatedAt, p.Deleted, toNullTime(p.DeletedAt),
	)
}

func upsertTask(ctx context.Context, tx *sql.Tx, t es.Task) error {
	return exec(ctx, tx, `
		INSERT INTO pet_tasks (
			pet_id, id, name, color, text_color, sort_order,
			created_by, created_at, updated_at, deleted, deleted_at
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)
		ON CONFLICT (pet_id, id) DO UPDATE SET
			name = EXCLUDED.name,
			color = EXCLUDED.color,
			text_color = EXCLUDED.text_color,
			sort_order = EXCLUDED.sort_order,
			updated_at = EXCLUDED.updated_at,
			deleted = EXCLUDED.deleted,
			deleted_at = EXCLUDED.deleted_at
	`,
		t.PetID, t.ID, t.Name, t.Color, t.TextColor, t.Order,
		t.CreatedBy, t.CreatedAt, t.UpdatedAt, t.Deleted, toNullTime(t.DeletedAt),
	)
}

// lockMemberStatus bloquea la fila del miembro y exige el estado esperado.
func lockMemberStatus(ctx context.Context, tx *sql.Tx, petID, memberID string, want es.MemberStatus) error {
	var status string
	err := tx.QueryRowContext(ctx,
		`SELECT status FROM pet_members WHERE pet_id = $1 AND id = $2 FOR UPDATE`,
		petID, memberID,
	).Scan(&status)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		return notFound("member", memberID)
	case err != nil:
		return apperr.Transient(err)
	case es.MemberStatus(status) != want:
		return fmt.Errorf("member %s is %s, not %s: %w", memberID, status, want, apperr.ErrInvalidTransition)
	}
	return nil
}

// lockLogParents toma el pet y la task FOR SHARE antes de escribir un log
// vivo. Una cascada concurrente o espera a este commit (y su UPDATE de logs
// ya lo ve) o terminó antes y aquí se lee el borrado. Un padre inexistente no
// se valida en este punto.
func lockLogParents(ctx context.Context, tx *sql.Tx, petID, taskID string) error {
	if err := parentDeleted(ctx, tx, "pet", petID,
		`SELECT deleted FROM pets WHERE id = $1 FOR SHARE`, petID); err != nil {
		return err
	}
	return parentDeleted(ctx, tx, "task", taskID,
		`SELECT deleted FROM pet_tasks WHERE pet_id = $1 AND id = $2 FOR SHARE`, petID, taskID)
}

func parentDeleted(ctx context.Context, tx *sql.Tx, kind, id, query string, args ...any) error {
	var deleted bool
	err := tx.QueryRowContext(ctx, query, args...).Scan(&deleted)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		return nil
	case err != nil:
		return apperr.Transient(err)
	case deleted:
		return fmt.Errorf("%s %s is deleted: %w", kind, id, apperr.ErrNotFound)
	}
	return nil
}

func upsertLog(ctx context.Context, tx *sql.Tx, l es.Log) error {
	return exec(ctx, tx, `
		INSERT INTO pet_logs (
			pet_id, id, task_id, task_name, ts, note,
			created_by, updated_by, created_at, updated_at, deleted, deleted_at
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12)
		ON CONFLICT (pet_id, id) DO UPDATE SET
			task_id = EXCLUDED.task_id,
			task_name = EXCLUDED.task_name,
			ts = EXCLUDED.ts,
			note = EXCLUDED.note,
			updated_by = EXCLUDED.updated_by,
			updated_at = EXCLUDED.updated_at,
			deleted = EXCLUDED.deleted,
			deleted_at = EXCLUDED.deleted_at
	`,
		l.PetID, l.ID, l.TaskID, l.TaskName, l.Timestamp, l.Note,
		l.CreatedBy, l.UpdatedBy, l.CreatedAt, l.UpdatedAt, l.Deleted, toNullTime(l.DeletedAt),
	)
}

func upsertUser(ctx context.Context, tx *sql.Tx, u es.User) error {
	settings, err := json.Marshal(u.Settings)
	if err != nil {
		return fmt.Errorf("encode settings: %w", err)
	}
	return exec(ctx, tx, `
		INSERT INTO users (
			uid, auth_email, auth_name, auth_provider, is_anonymous,
			nickname, profile_image_url, settings, primary_pet_id,
			created_at, updated_at
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)
		ON CONFLICT (uid) DO UPDATE SET
			auth_email = EXCLUDED.auth_email,
			auth_name = EXCLUDED.auth_name,
			auth_provider = EXCLUDED.auth_provider,
			is_anonymous = EXCLUDED.is_anonymous,
			nickname = EXCLUDED.nickname,
			profile_image_url = EXCLUDED.profile_image_url,
			settings = EXCLUDED.settings,
			primary_pet_id = EXCLUDED.primary_pet_id,
			updated_at = EXCLUDED.updated_at
	`,
		u.UID, u.AuthEmail, u.AuthName, u.AuthProvider, u.IsAnonymous,
		u.Nickname, u.ProfileImageURL, settings, u.PrimaryPetID,
		u.CreatedAt, u.UpdatedAt,
	)
}

func exec(ctx context.Context, tx *sql.Tx, query string, args ...any) error {
	if _, err := tx.ExecContext(ctx, query, args...); err != nil {
		return apperr.Transient(err)
	}
	return nil
}

// execOne exige que la sentencia afecte al menos una fila.
func execOne(ctx context.Context, tx *sql.Tx, kind, id, query string, args ...any) error {
	res, err := tx.ExecContext(ctx, query, args...)
	if err != nil {
		return apperr.Transient(err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return apperr.Transient(err)
	}
	if n == 0 {
		return notFound(kind, id)
	}
	return nil
}

// inClause arma "$start,$start+1,..." para un IN (...).
func inClause(start int, ids []string) (string, []any) {
	placeholders := make([]string, 0, len(ids))
	args := make([]any, 0, len(ids))
	for i, id := range ids {
		placeholders = append(placeholders, fmt.Sprintf("$%d", start+i))
		args = append(args, id)
	}
	return strings.Join(placeholders, ","), args
}

func nonNilVet(v []es.VetInfo) []es.VetInfo {
	if v == nil {
		return []es.VetInfo{}
	}
	return v
}
