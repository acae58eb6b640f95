// Package actor provides the identity model consumed from the actor directory.
package actor

import (
	"context"
	"errors"
)

// Role is the privilege tier of an actor.
type Role string

const (
	RoleUser       Role = "USER"
	RoleClient     Role = "CLIENT"
	RoleDeveloper  Role = "DEVELOPER"
	RoleAdmin      Role = "ADMIN"
	RoleSuperAdmin Role = "SUPER_ADMIN"
)

// TopTier is the highest privilege tier; only it is eligible for gate bypass.
const TopTier = RoleSuperAdmin

// Valid reports whether r is a known role.
func (r Role) Valid() bool {
	switch r {
	case RoleUser, RoleClient, RoleDeveloper, RoleAdmin, RoleSuperAdmin:
		return true
	}
	return false
}

// Actor is a resolved user.
type Actor struct {
	ID    string `json:"id" yaml:"id"`
	Role  Role   `json:"role" yaml:"role"`
	Email string `json:"email" yaml:"email"`
	Name  string `json:"name,omitempty" yaml:"name,omitempty"`
}

// DisplayName returns the name, falling back to the email.
func (a Actor) DisplayName() string {
	if a.Name != "" {
		return a.Name
	}
	return a.Email
}

// ErrActorNotFound indicates the directory does not know the user id.
var ErrActorNotFound = errors.New("actor not found")

// Directory resolves user ids to actors.
type Directory interface {
	// Resolve returns the actor for id or ErrActorNotFound.
	Resolve(ctx context.Context, id string) (Actor, error)
}

// Lister is implemented by directories that can enumerate actors by role.
type Lister interface {
	// ListByRoles returns all actors holding one of roles.
	ListByRoles(ctx context.Context, roles []Role) ([]Actor, error)
}
