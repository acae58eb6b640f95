package approval

import (
	"slices"
	"strings"

	"github.com/felixgeelhaar/decision-ledger/domain/actor"
)

// RuleTable maps a category to the roles allowed to approve it.
type RuleTable interface {
	// AllowedRoles returns the roles for category and whether it is known.
	AllowedRoles(category Category) ([]actor.Role, bool)
}

// StaticRules is a RuleTable backed by a map.
type StaticRules map[Category][]actor.Role

// DefaultRules returns the built-in rule table.
func DefaultRules() StaticRules {
	return StaticRules{
		CategoryPolicyLock:        {actor.RoleAdmin, actor.RoleSuperAdmin},
		CategoryADRApproval:       {actor.RoleDeveloper, actor.RoleAdmin, actor.RoleSuperAdmin},
		CategoryHighRiskDecision:  {actor.RoleDeveloper, actor.RoleAdmin, actor.RoleSuperAdmin},
		CategorySecurityException: {actor.RoleAdmin, actor.RoleSuperAdmin},
		CategoryDataAccess:        {actor.RoleAdmin, actor.RoleSuperAdmin},
	}
}

// AllowedRoles implements RuleTable.
func (s StaticRules) AllowedRoles(category Category) ([]actor.Role, bool) {
	roles, ok := s[category]
	if !ok {
		return nil, false
	}
	return slices.Clone(roles), true
}

// Merge returns a copy of s with overrides replacing whole entries.
func (s StaticRules) Merge(overrides map[Category][]actor.Role) StaticRules {
	merged := make(StaticRules, len(s)+len(overrides))
	for c, roles := range s {
		merged[c] = slices.Clone(roles)
	}
	for c, roles := range overrides {
		merged[c] = slices.Clone(roles)
	}
	return merged
}

// Permits reports whether role may approve category under table.
func Permits(table RuleTable, category Category, role actor.Role) bool {
	roles, ok := table.AllowedRoles(category)
	return ok && slices.Contains(roles, role)
}

// FormatRoles joins roles for error messages.
func FormatRoles(roles []actor.Role) string {
	names := make([]string, len(roles))
	for i, r := range roles {
		names[i] = string(r)
	}
	return strings.Join(names, ", ")
}
