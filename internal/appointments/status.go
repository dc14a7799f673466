package appointments

import "github.com/medconnect/scheduling-api/internal/identity"

// transition is one permitted (role, from, to) edge in the lifecycle.
type transition struct {
	role identity.Role
	from Status
	to   Status
}

// allowedTransitions is the full permission table. Staff roles may move an
// appointment between any two states; patients may only cancel. Ownership is
// enforced separately.
var allowedTransitions = buildTransitionTable()

func buildTransitionTable() map[transition]struct{} {
	table := make(map[transition]struct{})
	for _, role := range []identity.Role{identity.RoleDoctor, identity.RoleAdmin} {
		for _, from := range AllStatuses {
			for _, to := range AllStatuses {
				table[transition{role, from, to}] = struct{}{}
			}
		}
	}
	for _, from := range AllStatuses {
		table[transition{identity.RolePatient, from, StatusCancelled}] = struct{}{}
	}
	return table
}

// CanTransition reports whether role may move an appointment from one status
// to another. A same-status request is permitted when the edge is; callers
// treat it as a no-op and skip notification.
func CanTransition(role identity.Role, from, to Status) bool {
	_, ok := allowedTransitions[transition{role, from, to}]
	return ok
}
