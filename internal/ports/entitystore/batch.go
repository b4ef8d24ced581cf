package entitystore

import "time"

type Collection string

const (
	CollectionPets     Collection = "pets"
	CollectionMembers  Collection = "members"
	CollectionTasks    Collection = "tasks"
	CollectionLogs     Collection = "logs"
	CollectionUsers    Collection = "users"
	CollectionWeights  Collection = "weights"
	CollectionMessages Collection = "messages"
)

// Change describe un documento (o un conjunto, si DocID está vacío) que un
// commit modificó. Es lo que consumen las suscripciones en vivo.
//
// En members, UID y Email identifican al afectado para que cada usuario solo
// recargue por sus propias membresías. Ambos vacíos = identidad desconocida.
type Change struct {
	Collection Collection `json:"collection"`
	PetID      string     `json:"pet_id,omitempty"`
	DocID      string     `json:"doc_id,omitempty"`
	UID        string     `json:"uid,omitempty"`
	Email      string     `json:"email,omitempty"`
}

// Mutation es una escritura dentro de un Batch. Los adapters hacen type
// switch sobre los tipos concretos de este paquete.
type Mutation interface {
	Changes() []Change
	mutation()
}

// Batch se aplica completo o no se aplica.
type Batch struct {
	muts []Mutation
}

func NewBatch() *Batch { return &Batch{} }

func (b *Batch) Add(m ...Mutation) *Batch {
	b.muts = append(b.muts, m...)
	return b
}

func (b *Batch) Mutations() []Mutation { return b.muts }

func (b *Batch) Len() int { return len(b.muts) }

// Changes deduplica los cambios de todas las mutaciones en orden.
func (b *Batch) Changes() []Change {
	seen := map[Change]struct{}{}
	out := make([]Change, 0, len(b.muts))
	for _, m := range b.muts {
		for _, c := range m.Changes() {
			if _, ok := seen[c]; ok {
				continue
			}
			seen[c] = struct{}{}
			out = append(out, c)
		}
	}
	return out
}

// OptionalTime permite distinguir "no tocar" de "limpiar" en un patch.
type OptionalTime struct {
	Set   bool
	Value *time.Time
}

type PetPatch struct {
	Name            *string
	Breed           *string
	Birthday        OptionalTime
	Gender          *Gender
	AdoptionDate    OptionalTime
	ProfileImageURL *string
	MicrochipID     *string
	MedicalNotes    *string
	VetInfo         *[]VetInfo
}

type TaskPatch struct {
	Name      *string
	Color     *string
	TextColor *string
	Order     *int64
}

type LogPatch struct {
	TaskID    *string
	TaskName  *string
	Timestamp *time.Time
	Note      *string
}

// ---- pets

type PutPet struct{ Pet Pet }

type PatchPet struct {
	PetID string
	Patch PetPatch
	At    time.Time
}

type SoftDeletePet struct {
	PetID string
	At    time.Time
}

// ---- members

type PutMember struct{ Member Member }

// SetMemberStatus cambia el estado; si UID no está vacío lo fija en la misma escritura.
// InviteEmail solo viaja en el Change. Con ExpectStatus informado el commit
// falla con apperr.ErrInvalidTransition si el estado actual es otro.
type SetMemberStatus struct {
	PetID        string
	MemberID     string
	Status       MemberStatus
	ExpectStatus MemberStatus
	UID          string
	InviteEmail  string
	At           time.Time
}

// UID e InviteEmail de SetMemberRole y DeleteMember no se escriben: son la
// identidad del miembro afectado para las suscripciones.
type SetMemberRole struct {
	PetID       string
	MemberID    string
	Role        Role
	UID         string
	InviteEmail string
	At          time.Time
}

type DeleteMember struct {
	PetID       string
	MemberID    string
	UID         string
	InviteEmail string
}

// ---- tasks

type PutTask struct{ Task Task }

type PatchTask struct {
	PetID  string
	TaskID string
	Patch  TaskPatch
	At     time.Time
}

// SoftDeleteTasks marca las tasks indicadas; TaskIDs vacío = todas las del pet.
type SoftDeleteTasks struct {
	PetID   string
	TaskIDs []string
	At      time.Time
}

// ---- logs

// PutLog de un log vivo falla con apperr.ErrNotFound si el pet o la task ya
// están borrados en el momento del commit. Lo mismo PatchLog al cambiar TaskID.
type PutLog struct{ Log Log }

type PatchLog struct {
	PetID     string
	LogID     string
	Patch     LogPatch
	UpdatedBy string
	At        time.Time
}

type SoftDeleteLogs struct {
	PetID  string
	LogIDs []string
	At     time.Time
}

// SoftDeleteLogsByTask se evalúa dentro del commit: incluye logs escritos
// hasta el momento exacto de la transacción.
type SoftDeleteLogsByTask struct {
	PetID   string
	TaskIDs []string
	At      time.Time
}

type SoftDeleteLogsByPet struct {
	PetID string
	At    time.Time
}

// RenameTaskInLogs reescribe TaskName en todos los logs de la task.
type RenameTaskInLogs struct {
	PetID    string
	TaskID   string
	TaskName string
	At       time.Time
}

// ---- users, weights, messages

type PutUser struct{ User User }

type PutWeight struct{ Weight Weight }

type SoftDeleteWeight struct {
	PetID    string
	WeightID string
	At       time.Time
}

type PutMessage struct{ Message Message }

func (PutPet) mutation()               {}
func (PatchPet) mutation()             {}
func (SoftDeletePet) mutation()        {}
func (PutMember) mutation()            {}
func (SetMemberStatus) mutation()      {}
func (SetMemberRole) mutation()        {}
func (DeleteMember) mutation()         {}
func (PutTask) mutation()              {}
func (PatchTask) mutation()            {}
func (SoftDeleteTasks) mutation()      {}
func (PutLog) mutation()               {}
func (PatchLog) mutation()             {}
func (SoftDeleteLogs) mutation()       {}
func (SoftDeleteLogsByTask) mutation() {}
func (SoftDeleteLogsByPet) mutation()  {}
func (RenameTaskInLogs) mutation()     {}
func (PutUser) mutation()              {}
func (PutWeight) mutation()            {}
func (SoftDeleteWeight) mutation()     {}
func (PutMessage) mutation()           {}

func one(c Collection, petID, docID string) []Change {
	return []Change{{Collection: c, PetID: petID, DocID: docID}}
}

func many(c Collection, petID string, ids []string) []Change {
	if len(ids) == 0 {
		return one(c, petID, "")
	}
	out := make([]Change, 0, len(ids))
	for _, id := range ids {
		out = append(out, Change{Collection: c, PetID: petID, DocID: id})
	}
	return out
}

func (m PutPet) Changes() []Change        { return one(CollectionPets, m.Pet.ID, m.Pet.ID) }
func (m PatchPet) Changes() []Change      { return one(CollectionPets, m.PetID, m.PetID) }
func (m SoftDeletePet) Changes() []Change { return one(CollectionPets, m.PetID, m.PetID) }

func memberChange(petID, memberID, uid, email string) []Change {
	return []Change{{Collection: CollectionMembers, PetID: petID, DocID: memberID, UID: uid, Email: email}}
}

func (m PutMember) Changes() []Change {
	return memberChange(m.Member.PetID, m.Member.ID, m.Member.UID, m.Member.InviteEmail)
}
func (m SetMemberStatus) Changes() []Change {
	return memberChange(m.PetID, m.MemberID, m.UID, m.InviteEmail)
}
func (m SetMemberRole) Changes() []Change {
	return memberChange(m.PetID, m.MemberID, m.UID, m.InviteEmail)
}
func (m DeleteMember) Changes() []Change {
	return memberChange(m.PetID, m.MemberID, m.UID, m.InviteEmail)
}

func (m PutTask) Changes() []Change         { return one(CollectionTasks, m.Task.PetID, m.Task.ID) }
func (m PatchTask) Changes() []Change       { return one(CollectionTasks, m.PetID, m.TaskID) }
func (m SoftDeleteTasks) Changes() []Change { return many(CollectionTasks, m.PetID, m.TaskIDs) }

func (m PutLog) Changes() []Change               { return one(CollectionLogs, m.Log.PetID, m.Log.ID) }
func (m PatchLog) Changes() []Change             { return one(CollectionLogs, m.PetID, m.LogID) }
func (m SoftDeleteLogs) Changes() []Change       { return many(CollectionLogs, m.PetID, m.LogIDs) }
func (m SoftDeleteLogsByTask) Changes() []Change { return one(CollectionLogs, m.PetID, "") }
func (m SoftDeleteLogsByPet) Changes() []Change  { return one(CollectionLogs, m.PetID, "") }
func (m RenameTaskInLogs) Changes() []Change     { return one(CollectionLogs, m.PetID, "") }

func (m PutUser) Changes() []Change { return one(CollectionUsers, "", m.User.UID) }

func (m PutWeight) Changes() []Change {
	return one(CollectionWeights, m.Weight.PetID, m.Weight.ID)
}
func (m SoftDeleteWeight) Changes() []Change { return one(CollectionWeights, m.PetID, m.WeightID) }

func (m PutMessage) Changes() []Change {
	return one(CollectionMessages, m.Message.PetID, m.Message.ID)
}
