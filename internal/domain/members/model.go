package members

import es "pet-care-log/internal/ports/entitystore"

// Invitation es una invitación pendiente unida al pet que la origina.
type Invitation struct {
	Pet      es.Pet
	MemberID string
	Member   es.Member
}

// Decision es la respuesta del invitado.
type Decision = es.MemberStatus

const (
	DecisionAccept  Decision = es.MemberActive
	DecisionDecline Decision = es.MemberDeclined
)

var roleRank = map[es.Role]int{
	es.RoleViewer: 1,
	es.RoleEditor: 2,
	es.RoleOwner:  3,
}

// Allows indica si un miembro con role tiene al menos el nivel min.
func Allows(role, min es.Role) bool {
	return roleRank[role] >= roleRank[min] && roleRank[role] > 0
}

func validRole(r es.Role) bool {
	_, ok := roleRank[r]
	return ok
}
