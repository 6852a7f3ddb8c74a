// Package taxonomy holds the declarative memo pattern registry. Patterns are
// tested in registration order; the first match wins, so the standard set is
// constructed mutually exclusive.
package taxonomy

import (
	"fmt"
	"regexp"

	"tasknode/internal/domain"
)

// Pattern matches a memo triple: the type by regex, format and data by
// exact equality when set.
type Pattern struct {
	TypeRegex *regexp.Regexp
	Format    string
	Data      string
}

func (p Pattern) Matches(tx domain.Transaction) bool {
	if p.TypeRegex != nil && !p.TypeRegex.MatchString(tx.MemoType) {
		return false
	}
	if p.Format != "" && tx.MemoFormat != p.Format {
		return false
	}
	if p.Data != "" && tx.MemoData != p.Data {
		return false
	}
	return true
}

// Registration binds a pattern id to its archetype and, for requests, the
// response patterns that may answer it.
type Registration struct {
	ID             string
	Pattern        Pattern
	Archetype      domain.Archetype
	ValidResponses []string
	Notify         bool
}

type Registry struct {
	ordered []Registration
	byID    map[string]Registration
}

func NewRegistry() *Registry {
	return &Registry{byID: map[string]Registration{}}
}

// Register appends a pattern. Response references must already be
// registered as Response patterns; anything else is a configuration error.
func (r *Registry) Register(reg Registration) error {
	if reg.ID == "" {
		return domain.ConfigurationError{Reason: "pattern id is required"}
	}
	if _, exists := r.byID[reg.ID]; exists {
		return domain.ConfigurationError{Reason: fmt.Sprintf("pattern %s already registered", reg.ID)}
	}
	if reg.Archetype != domain.ArchetypeRequest && len(reg.ValidResponses) > 0 {
		return domain.ConfigurationError{Reason: fmt.Sprintf("pattern %s: only requests declare valid responses", reg.ID)}
	}
	for _, respID := range reg.ValidResponses {
		resp, ok := r.byID[respID]
		if !ok {
			return domain.ConfigurationError{Reason: fmt.Sprintf("pattern %s references unregistered response %s", reg.ID, respID)}
		}
		if resp.Archetype != domain.ArchetypeResponse {
			return domain.ConfigurationError{Reason: fmt.Sprintf("pattern %s references %s which is not a response", reg.ID, respID)}
		}
	}
	r.ordered = append(r.ordered, reg)
	r.byID[reg.ID] = reg
	return nil
}

// Classify returns the first registered pattern matching the transaction.
// The second return is false when nothing matches.
func (r *Registry) Classify(tx domain.Transaction) (Registration, bool) {
	for _, reg := range r.ordered {
		if reg.Pattern.Matches(tx) {
			return reg, true
		}
	}
	return Registration{}, false
}

// Get looks a registration up by id.
func (r *Registry) Get(id string) (Registration, bool) {
	reg, ok := r.byID[id]
	return reg, ok
}

// IDs returns pattern ids in registration order.
func (r *Registry) IDs() []string {
	ids := make([]string, 0, len(r.ordered))
	for _, reg := range r.ordered {
		ids = append(ids, reg.ID)
	}
	return ids
}
