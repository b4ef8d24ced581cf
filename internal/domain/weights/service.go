// Package weights guarda el historial de peso de cada pet. Internamente todo
// se guarda en kilogramos.
package weights

import (
	"context"
	"fmt"
	"math"
	"strings"
	"time"

	"pet-care-log/internal/apperr"
	es "pet-care-log/internal/ports/entitystore"

	"github.com/google/uuid"
)

type Unit string

const (
	UnitKg Unit = "kg"
	UnitLb Unit = "lb"

	kgPerLb = 0.45359237
)

type AddInput struct {
	Value float64
	Unit  Unit // default kg
	// Nil => ahora.
	MeasuredAt *time.Time
	Note       string
}

type Service struct {
	store es.Store
	now   func() time.Time
	newID func() string
}

func NewService(store es.Store) *Service {
	return &Service{
		store: store,
		now:   time.Now,
		newID: uuid.NewString,
	}
}

// ToKilograms convierte un valor en la unidad dada.
func ToKilograms(v float64, u Unit) (float64, error) {
	switch u {
	case "", UnitKg:
		return v, nil
	case UnitLb:
		return v * kgPerLb, nil
	}
	return 0, apperr.Validation("unit", "must be kg or lb")
}

func (s *Service) Add(ctx context.Context, petID, uid string, in AddInput) (es.Weight, error) {
	if math.IsNaN(in.Value) || math.IsInf(in.Value, 0) || in.Value <= 0 {
		return es.Weight{}, apperr.Validation("value", "must be greater than zero")
	}
	kg, err := ToKilograms(in.Value, in.Unit)
	if err != nil {
		return es.Weight{}, err
	}

	now := s.now()
	measured := now
	if in.MeasuredAt != nil {
		measured = *in.MeasuredAt
	}
	if measured.After(now.Add(time.Minute)) {
		return es.Weight{}, apperr.Validation("measured_at", "must not be in the future")
	}

	w := es.Weight{
		ID:         s.newID(),
		PetID:      petID,
		Kilograms:  math.Round(kg*1000) / 1000,
		MeasuredAt: measured,
		Note:       strings.TrimSpace(in.Note),
		CreatedBy:  uid,
		CreatedAt:  now,
	}
	if err := s.store.Commit(ctx, es.NewBatch().Add(es.PutWeight{Weight: w})); err != nil {
		return es.Weight{}, fmt.Errorf("add weight: %w", err)
	}
	return w, nil
}

// List devuelve las mediciones no borradas, de la más antigua a la más nueva.
func (s *Service) List(ctx context.Context, petID string) ([]es.Weight, error) {
	out, err := s.store.ListWeights(ctx, petID)
	if err != nil {
		return nil, fmt.Errorf("list weights: %w", err)
	}
	return out, nil
}

func (s *Service) Delete(ctx context.Context, petID, weightID string) error {
	if err := s.store.Commit(ctx, es.NewBatch().Add(es.SoftDeleteWeight{
		PetID: petID, WeightID: weightID, At: s.now(),
	})); err != nil {
		return fmt.Errorf("delete weight: %w", err)
	}
	return nil
}
