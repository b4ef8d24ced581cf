package logs

import (
	"time"

	es "pet-care-log/internal/ports/entitystore"
)

// Paleta neutra para autores sin preferencias de color.
const (
	DefaultCreatorNameBgColor   = "#e0e0e0"
	DefaultCreatorNameTextColor = "#333333"
	DefaultTimeBgColor          = "#f5f5f5"
	DefaultTimeTextColor        = "#666666"

	DefaultTaskColor     = "#cccccc"
	DefaultTaskTextColor = "#000000"
)

// Entry es un Log con los atributos de presentación calculados al leer. Nada
// de esto se persiste.
type Entry struct {
	es.Log

	TaskColor     string
	TaskTextColor string
	IsTaskDeleted bool

	CreatedByName string
	UpdatedByName string
	Colors        es.LogColors
}

type AddInput struct {
	TaskID string
	// Nil => momento de escritura.
	Timestamp *time.Time
	Note      string
}

// UpdateInput: nil = no tocar.
type UpdateInput struct {
	TaskID    *string
	Timestamp *time.Time
	Note      *string
}
