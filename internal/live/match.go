package live

import (
	"strings"
	"sync"

	es "pet-care-log/internal/ports/entitystore"
)

// Doc coincide con un documento concreto o con un cambio masivo de su colección.
func Doc(c es.Collection, petID, docID string) func(es.Change) bool {
	return func(ch es.Change) bool {
		return ch.Collection == c && ch.PetID == petID && (ch.DocID == "" || ch.DocID == docID)
	}
}

// PetCollection coincide con cualquier cambio de una subcolección de un pet.
func PetCollection(c es.Collection, petID string) func(es.Change) bool {
	return func(ch es.Change) bool {
		return ch.Collection == c && ch.PetID == petID
	}
}

// Collection coincide con cualquier cambio de la colección (collection group).
func Collection(c es.Collection) func(es.Change) bool {
	return func(ch es.Change) bool { return ch.Collection == c }
}

// Any combina matchers con OR.
func Any(ms ...func(es.Change) bool) func(es.Change) bool {
	return func(ch es.Change) bool {
		for _, m := range ms {
			if m(ch) {
				return true
			}
		}
		return false
	}
}

// All combina matchers con AND.
func All(ms ...func(es.Change) bool) func(es.Change) bool {
	return func(ch es.Change) bool {
		for _, m := range ms {
			if !m(ch) {
				return false
			}
		}
		return true
	}
}

// MemberOf coincide con cambios de membresía del usuario uid. Un cambio sin
// identidad también coincide.
func MemberOf(uid string) func(es.Change) bool {
	return func(ch es.Change) bool {
		if ch.Collection != es.CollectionMembers {
			return false
		}
		return ch.UID == uid || (ch.UID == "" && ch.Email == "")
	}
}

// InvitedEmail coincide con cambios de membresía dirigidos a email. Un cambio
// sin identidad también coincide.
func InvitedEmail(email string) func(es.Change) bool {
	return func(ch es.Change) bool {
		if ch.Collection != es.CollectionMembers {
			return false
		}
		if ch.UID == "" && ch.Email == "" {
			return true
		}
		return ch.Email != "" && strings.EqualFold(ch.Email, email)
	}
}

// PetIn coincide con cambios de la colección en pets que están en keys.
func PetIn(c es.Collection, keys *KeySet) func(es.Change) bool {
	return func(ch es.Change) bool {
		return ch.Collection == c && keys.Has(ch.PetID)
	}
}

// KeySet es un conjunto concurrente que la carga de una suscripción
// actualiza y su matcher consulta.
type KeySet struct {
	mu   sync.RWMutex
	keys map[string]struct{}
}

func NewKeySet() *KeySet {
	return &KeySet{keys: map[string]struct{}{}}
}

func (k *KeySet) Replace(keys []string) {
	next := make(map[string]struct{}, len(keys))
	for _, key := range keys {
		next[key] = struct{}{}
	}
	k.mu.Lock()
	k.keys = next
	k.mu.Unlock()
}

func (k *KeySet) Has(key string) bool {
	k.mu.RLock()
	defer k.mu.RUnlock()
	_, ok := k.keys[key]
	return ok
}
