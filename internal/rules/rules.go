// Package rules binds each registered pattern to its business logic: a
// validation predicate plus, per archetype, a pairing query builder or a
// response generator. Rules hold no state; collaborators arrive through
// Deps.
package rules

import (
	"context"

	"tasknode/internal/domain"
	"tasknode/internal/synthesis"
	"tasknode/internal/taxonomy"
)

// Deps is the collaborator bundle every rule sees. It is the synthesis
// bundle: rules and generators draw from the same handles.
type Deps = synthesis.Deps

// Rule validates a classified transaction. Business rejections come back as
// a ValidationResult; collaborator I/O failures come back as errors and must
// fail closed.
type Rule interface {
	Validate(ctx context.Context, tx domain.Transaction, deps Deps) (domain.ValidationResult, error)
}

// RequestRule additionally describes how to find the response that would
// answer it.
type RequestRule interface {
	Rule
	FindResponse(tx domain.Transaction, deps Deps) (domain.ResponseQuery, error)
}

// ResponseRule additionally supplies the generator that synthesizes it.
type ResponseRule interface {
	Rule
	Generator(deps Deps) synthesis.Generator
}

// StandaloneRule marks interactions that close on their own: always-valid
// placeholders with no response.
type StandaloneRule interface {
	Rule
	Standalone()
}

// Bind maps every pattern id in the registry to its rule. An id without a
// rule is a configuration error: the graph would classify transactions the
// engine cannot process.
func Bind(registry *taxonomy.Registry) (map[string]Rule, error) {
	bound := map[string]Rule{
		taxonomy.PatternInitiationRite:       InitiationRite{},
		taxonomy.PatternInitiationReward:     InitiationReward{},
		taxonomy.PatternHandshake:            Handshake{},
		taxonomy.PatternHandshakeResponse:    HandshakeResponse{},
		taxonomy.PatternGoogleDocContextLink: GoogleDocContextLink{},
		taxonomy.PatternTaskRequest:          TaskRequest{},
		taxonomy.PatternProposal:             Proposal{},
		taxonomy.PatternAcceptance:           Acceptance{},
		taxonomy.PatternRefusal:              Refusal{},
		taxonomy.PatternTaskCompletion:       TaskCompletion{},
		taxonomy.PatternVerificationPrompt:   VerificationPrompt{},
		taxonomy.PatternVerificationResponse: VerificationResponse{},
		taxonomy.PatternReward:               Reward{},
		taxonomy.PatternODVRequest:           ODVRequest{},
		taxonomy.PatternODVResponse:          ODVResponse{},
		taxonomy.PatternCorbanuReward:        CorbanuReward{},
	}
	for _, id := range registry.IDs() {
		if _, ok := bound[id]; !ok {
			return nil, domain.ConfigurationError{Reason: "pattern " + id + " has no bound rule"}
		}
	}
	return bound, nil
}
