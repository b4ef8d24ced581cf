package pets

import (
	"strings"
	"time"

	"pet-care-log/internal/apperr"
	es "pet-care-log/internal/ports/entitystore"
)

const dateLayout = "2006-01-02"

// CreateInput son los atributos de un pet nuevo. Solo Name es obligatorio.
type CreateInput struct {
	Name         string
	Breed        string
	Birthday     *time.Time
	Gender       es.Gender
	AdoptionDate *time.Time
	MicrochipID  string
	MedicalNotes string
	VetInfo      []es.VetInfo
}

func validGender(g es.Gender) bool {
	switch g {
	case "", es.GenderMale, es.GenderFemale, es.GenderOther:
		return true
	}
	return false
}

func validate(name string, gender es.Gender) error {
	if strings.TrimSpace(name) == "" {
		return apperr.Validation("name", "is required")
	}
	if !validGender(gender) {
		return apperr.Validation("gender", "must be male, female or other")
	}
	return nil
}

// parseDate acepta YYYY-MM-DD; vacío => nil.
func parseDate(field, s string) (*time.Time, error) {
	if strings.TrimSpace(s) == "" {
		return nil, nil
	}
	t, err := time.Parse(dateLayout, s)
	if err != nil {
		return nil, apperr.Validation(field, "must be YYYY-MM-DD")
	}
	return &t, nil
}
