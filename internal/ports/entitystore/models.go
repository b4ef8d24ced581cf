package entitystore

import "time"

// Gender del perfil de mascota.
type Gender string

const (
	GenderMale   Gender = "male"
	GenderFemale Gender = "female"
	GenderOther  Gender = "other"
)

// VetInfo es un contacto veterinario asociado al perfil.
type VetInfo struct {
	Name    string `json:"name"`
	Phone   string `json:"phone"`
	Address string `json:"address"`
	Notes   string `json:"notes"`
}

// Pet es el documento raíz pets/{id}. Nunca se borra físicamente.
type Pet struct {
	ID string

	Name            string
	Breed           string
	Birthday        *time.Time
	Gender          Gender
	AdoptionDate    *time.Time
	ProfileImageURL string
	MicrochipID     string
	MedicalNotes    string
	VetInfo         []VetInfo

	CreatedBy string
	CreatedAt time.Time
	UpdatedAt time.Time

	Deleted   bool
	DeletedAt *time.Time
}

type Role string

const (
	RoleOwner  Role = "owner"
	RoleEditor Role = "general"
	RoleViewer Role = "viewer"
)

type MemberStatus string

const (
	MemberPending  MemberStatus = "pending"
	MemberActive   MemberStatus = "active"
	MemberDeclined MemberStatus = "declined"
	MemberRemoved  MemberStatus = "removed"
)

// Member vive en pets/{petID}/members/{id}. UID queda vacío mientras la
// invitación está pending; se fija al aceptar.
type Member struct {
	ID    string
	PetID string

	UID    string
	Role   Role
	Status MemberStatus

	InviteEmail string
	InvitedBy   string
	InvitedAt   *time.Time

	CreatedAt time.Time
	UpdatedAt time.Time
}

// Task es una categoría de cuidado registrable (pets/{petID}/tasks/{id}).
type Task struct {
	ID    string
	PetID string

	Name      string
	Color     string
	TextColor string
	Order     int64

	CreatedBy string
	CreatedAt time.Time
	UpdatedAt time.Time

	Deleted   bool
	DeletedAt *time.Time
}

// Log registra que una Task se realizó. TaskName es una copia desnormalizada.
type Log struct {
	ID    string
	PetID string

	TaskID    string
	TaskName  string
	Timestamp time.Time
	Note      string

	CreatedBy string
	UpdatedBy string
	CreatedAt time.Time
	UpdatedAt time.Time

	Deleted   bool
	DeletedAt *time.Time
}

// LogColors son las preferencias de color del autor para mostrar sus logs.
type LogColors struct {
	CreatorNameBgColor   string `json:"creatorNameBgColor,omitempty"`
	CreatorNameTextColor string `json:"creatorNameTextColor,omitempty"`
	TimeBgColor          string `json:"timeBgColor,omitempty"`
	TimeTextColor        string `json:"timeTextColor,omitempty"`
}

type UserSettings struct {
	LogColors            LogColors `json:"logColors"`
	NotificationsEnabled bool      `json:"notificationsEnabled"`
	NotificationTokens   []string  `json:"notificationTokens,omitempty"`
}

// User es users/{uid}. Solo lo modifica el propio usuario o la sincronización
// con el proveedor de identidad.
type User struct {
	UID string

	AuthEmail    string
	AuthName     string
	AuthProvider string
	IsAnonymous  bool

	Nickname        string
	ProfileImageURL string
	Settings        UserSettings
	PrimaryPetID    string

	CreatedAt time.Time
	UpdatedAt time.Time
}

// Weight es una medición en pets/{petID}/weights/{id}.
type Weight struct {
	ID    string
	PetID string

	Kilograms  float64
	MeasuredAt time.Time
	Note       string

	CreatedBy string
	CreatedAt time.Time

	Deleted   bool
	DeletedAt *time.Time
}

// Message es un mensaje de chat entre co-dueños (pets/{petID}/messages/{id}).
type Message struct {
	ID    string
	PetID string

	SenderUID string
	Body      string
	CreatedAt time.Time
}
