// Package entitystore es el puerto hacia el almacén de documentos: colecciones
// pets, members, tasks, logs, users, weights y messages, con lecturas tipadas y
// escrituras por Batch atómico.
package entitystore

import (
	"context"
	"time"
)

// LogFilter filtra logs de un pet por timestamp (ambos extremos inclusivos).
type LogFilter struct {
	From           *time.Time
	To             *time.Time
	TaskID         string
	IncludeDeleted bool
}

// Store devuelve apperr.ErrNotFound cuando un documento no existe y envuelve
// fallas de infraestructura con apperr.ErrTransientStore.
type Store interface {
	GetPet(ctx context.Context, petID string) (Pet, error)

	GetMember(ctx context.Context, petID, memberID string) (Member, error)
	ListMembers(ctx context.Context, petID string) ([]Member, error)
	// Consultas sobre todos los pets (collection group).
	ListMembershipsByUID(ctx context.Context, uid string, status MemberStatus) ([]Member, error)
	ListInvitationsByEmail(ctx context.Context, email string, status MemberStatus) ([]Member, error)

	GetTask(ctx context.Context, petID, taskID string) (Task, error)
	// Ordenadas por Order asc y luego ID.
	ListTasks(ctx context.Context, petID string, includeDeleted bool) ([]Task, error)

	GetLog(ctx context.Context, petID, logID string) (Log, error)
	// Ordenados por Timestamp desc y luego ID asc.
	ListLogs(ctx context.Context, petID string, filter LogFilter) ([]Log, error)

	GetUser(ctx context.Context, uid string) (User, error)

	// Ordenados por MeasuredAt asc, sin borrados.
	ListWeights(ctx context.Context, petID string) ([]Weight, error)

	// Más recientes primero.
	ListMessages(ctx context.Context, petID string, limit int) ([]Message, error)

	Commit(ctx context.Context, b *Batch) error
}
