// Package authz holds the authorization predicates used by routes and services.
//
// Predicates compose: routes gate on roles, services gate on ownership with
// admin as the universal override.
package authz

import (
	"strings"

	"github.com/noah-isme/tutorlink-api/internal/errdefs"
)

// Roles recognised by the platform.
const (
	RoleStudent = "student"
	RoleTutor   = "tutor"
	RoleAdmin   = "admin"
)

// Actor is the verified caller identity taken from the bearer credential.
type Actor struct {
	ID   uint
	Role string
}

// IsAdmin reports whether the actor carries the admin role.
func (a Actor) IsAdmin() bool {
	return NormalizeRole(a.Role) == RoleAdmin
}

// Authenticated reports whether the actor has a subject id.
func (a Actor) Authenticated() bool {
	return a.ID != 0
}

// Predicate decides whether an actor may perform an action.
type Predicate func(Actor) bool

// HasRole allows actors holding any of the given roles.
func HasRole(roles ...string) Predicate {
	allowed := make(map[string]struct{}, len(roles))
	for _, role := range roles {
		if normalized := NormalizeRole(role); normalized != "" {
			allowed[normalized] = struct{}{}
		}
	}
	return func(a Actor) bool {
		_, ok := allowed[NormalizeRole(a.Role)]
		return ok
	}
}

// IsOwner allows the actor whose id equals ownerID.
func IsOwner(ownerID uint) Predicate {
	return func(a Actor) bool {
		return a.ID != 0 && a.ID == ownerID
	}
}

// AnyOf allows the actor when at least one predicate does.
func AnyOf(predicates ...Predicate) Predicate {
	return func(a Actor) bool {
		for _, p := range predicates {
			if p != nil && p(a) {
				return true
			}
		}
		return false
	}
}

// OwnerOrAdmin is the default gate for owner-scoped mutations.
func OwnerOrAdmin(ownerID uint) Predicate {
	return AnyOf(IsOwner(ownerID), HasRole(RoleAdmin))
}

// Require returns a Forbidden error carrying message when predicate denies actor.
func Require(actor Actor, predicate Predicate, message string) error {
	if predicate == nil || !predicate(actor) {
		if message == "" {
			message = "insufficient permissions"
		}
		return errdefs.New(errdefs.ErrForbidden, message)
	}
	return nil
}

// NormalizeRole lower-cases and trims role strings.
func NormalizeRole(role string) string {
	return strings.ToLower(strings.TrimSpace(role))
}

// ValidRole reports whether role is one of the platform roles.
func ValidRole(role string) bool {
	switch NormalizeRole(role) {
	case RoleStudent, RoleTutor, RoleAdmin:
		return true
	default:
		return false
	}
}
