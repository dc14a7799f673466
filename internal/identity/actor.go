// Package identity carries the authenticated caller through the request
// context. Authentication itself happens upstream; the scheduling engine
// trusts the (role, subject) pair it is handed.
package identity

import "context"

// Role is the caller's authorization role.
type Role string

const (
	RolePatient Role = "patient"
	RoleDoctor  Role = "doctor"
	RoleAdmin   Role = "admin"
)

// ParseRole normalizes a role string, returning false for unknown values.
func ParseRole(s string) (Role, bool) {
	switch Role(s) {
	case RolePatient, RoleDoctor, RoleAdmin:
		return Role(s), true
	default:
		return "", false
	}
}

// Actor identifies the caller of a scheduling operation.
type Actor struct {
	Role  Role
	Email string
	// DoctorID is set only for doctor-role actors and scopes them to their
	// own appointments.
	DoctorID int64
}

// IsAdmin reports whether the actor has unrestricted scope.
func (a Actor) IsAdmin() bool { return a.Role == RoleAdmin }

type ctxKey string

const actorKey ctxKey = "medconnect.actor"

// WithActor stores the actor in context.
func WithActor(ctx context.Context, actor Actor) context.Context {
	return context.WithValue(ctx, actorKey, actor)
}

// ActorFromContext extracts the actor if present.
func ActorFromContext(ctx context.Context) (Actor, bool) {
	val := ctx.Value(actorKey)
	if val == nil {
		return Actor{}, false
	}
	actor, ok := val.(Actor)
	return actor, ok && actor.Role != ""
}
