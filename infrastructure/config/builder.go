package config

import (
	"fmt"
	"time"

	"github.com/felixgeelhaar/decision-ledger/domain/actor"
	"github.com/felixgeelhaar/decision-ledger/domain/approval"
	domainconfig "github.com/felixgeelhaar/decision-ledger/domain/config"
	"github.com/felixgeelhaar/decision-ledger/domain/notification"
)

// Builder turns configuration into domain values.
type Builder struct {
	config *domainconfig.LedgerConfig
}

// NewBuilder creates a new configuration builder.
func NewBuilder(config *domainconfig.LedgerConfig) *Builder {
	return &Builder{config: config}
}

// BuildResult contains the values derived from configuration.
type BuildResult struct {
	// Rules is the approval rule table with overrides applied.
	Rules approval.StaticRules
	// Actors is the static actor directory.
	Actors []actor.Actor
	// Endpoints are the enabled webhook endpoints.
	Endpoints []notification.Endpoint
	// DefaultExpiration is the request lifetime when none is given.
	DefaultExpiration time.Duration
	// ExpiryWarningWindow is the look-ahead for expiry warnings.
	ExpiryWarningWindow time.Duration
}

// Build derives the domain values.
func (b *Builder) Build() (*BuildResult, error) {
	result := &BuildResult{
		DefaultExpiration:   time.Duration(b.config.Approval.DefaultExpirationHours) * time.Hour,
		ExpiryWarningWindow: b.config.Approval.ExpiryWarningWindow.Duration(),
	}
	if result.ExpiryWarningWindow == 0 {
		result.ExpiryWarningWindow = 24 * time.Hour
	}

	rules, err := b.buildRules()
	if err != nil {
		return nil, fmt.Errorf("building rules: %w", err)
	}
	result.Rules = rules

	actors, err := b.buildActors()
	if err != nil {
		return nil, fmt.Errorf("building actors: %w", err)
	}
	result.Actors = actors

	result.Endpoints = b.buildEndpoints()
	return result, nil
}

func (b *Builder) buildRules() (approval.StaticRules, error) {
	overrides := make(map[approval.Category][]actor.Role, len(b.config.Approval.Rules))
	for name, roleNames := range b.config.Approval.Rules {
		category := approval.Category(name)
		if !category.Valid() {
			return nil, fmt.Errorf("unknown category: %s", name)
		}
		roles := make([]actor.Role, 0, len(roleNames))
		for _, r := range roleNames {
			role := actor.Role(r)
			if !role.Valid() {
				return nil, fmt.Errorf("unknown role %s for %s", r, name)
			}
			roles = append(roles, role)
		}
		overrides[category] = roles
	}
	return approval.DefaultRules().Merge(overrides), nil
}

func (b *Builder) buildActors() ([]actor.Actor, error) {
	actors := make([]actor.Actor, 0, len(b.config.Directory.Actors))
	for _, a := range b.config.Directory.Actors {
		role := actor.Role(a.Role)
		if !role.Valid() {
			return nil, fmt.Errorf("actor %s: invalid role %s", a.ID, a.Role)
		}
		actors = append(actors, actor.Actor{ID: a.ID, Role: role, Email: a.Email, Name: a.Name})
	}
	return actors, nil
}

func (b *Builder) buildEndpoints() []notification.Endpoint {
	if !b.config.Notification.Enabled {
		return nil
	}

	endpoints := make([]notification.Endpoint, 0, len(b.config.Notification.Endpoints))
	for _, ep := range b.config.Notification.Endpoints {
		endpoint := notification.Endpoint{
			Name:    ep.Name,
			URL:     ep.URL,
			Enabled: ep.Enabled,
			Secret:  ep.Secret,
			Headers: ep.Headers,
		}
		if len(ep.EventFilter) > 0 {
			endpoint.Filter = buildEventFilter(ep.EventFilter)
		}
		endpoints = append(endpoints, endpoint)
	}
	return endpoints
}

func buildEventFilter(types []string) notification.EventFilter {
	eventTypes := make([]notification.Type, 0, len(types))
	for _, t := range types {
		eventTypes = append(eventTypes, notification.Type(t))
	}
	return notification.FilterByType(eventTypes...)
}
