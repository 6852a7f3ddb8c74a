package rules

import (
	"context"

	"tasknode/internal/domain"
	"tasknode/internal/synthesis"
)

// Response rules are node-authored memos observed back on the ledger:
// always valid, each carrying the generator that synthesizes it.

type InitiationReward struct{}

func (InitiationReward) Validate(ctx context.Context, tx domain.Transaction, deps Deps) (domain.ValidationResult, error) {
	return domain.Accept(), nil
}

func (InitiationReward) Generator(deps Deps) synthesis.Generator {
	return synthesis.NewInitiationReward(deps)
}

type HandshakeResponse struct{}

func (HandshakeResponse) Validate(ctx context.Context, tx domain.Transaction, deps Deps) (domain.ValidationResult, error) {
	return domain.Accept(), nil
}

func (HandshakeResponse) Generator(deps Deps) synthesis.Generator {
	return synthesis.NewHandshakeResponse(deps)
}

type Proposal struct{}

func (Proposal) Validate(ctx context.Context, tx domain.Transaction, deps Deps) (domain.ValidationResult, error) {
	return domain.Accept(), nil
}

func (Proposal) Generator(deps Deps) synthesis.Generator {
	return synthesis.NewProposal(deps)
}

type VerificationPrompt struct{}

func (VerificationPrompt) Validate(ctx context.Context, tx domain.Transaction, deps Deps) (domain.ValidationResult, error) {
	return domain.Accept(), nil
}

func (VerificationPrompt) Generator(deps Deps) synthesis.Generator {
	return synthesis.NewVerificationPrompt(deps)
}

type Reward struct{}

func (Reward) Validate(ctx context.Context, tx domain.Transaction, deps Deps) (domain.ValidationResult, error) {
	return domain.Accept(), nil
}

func (Reward) Generator(deps Deps) synthesis.Generator {
	return synthesis.NewReward(deps)
}

type ODVResponse struct{}

func (ODVResponse) Validate(ctx context.Context, tx domain.Transaction, deps Deps) (domain.ValidationResult, error) {
	return domain.Accept(), nil
}

func (ODVResponse) Generator(deps Deps) synthesis.Generator {
	return synthesis.NewODVResponse(deps)
}
