package rules

import (
	"context"

	"tasknode/internal/domain"
)

// Standalone rules close the interaction on their own. Validation is a
// placeholder today; the engine still records the transaction and its
// side effects (the context link upsert happens there).

type GoogleDocContextLink struct{}

func (GoogleDocContextLink) Validate(ctx context.Context, tx domain.Transaction, deps Deps) (domain.ValidationResult, error) {
	return domain.Accept(), nil
}

func (GoogleDocContextLink) Standalone() {}

type Acceptance struct{}

func (Acceptance) Validate(ctx context.Context, tx domain.Transaction, deps Deps) (domain.ValidationResult, error) {
	return domain.Accept(), nil
}

func (Acceptance) Standalone() {}

type Refusal struct{}

func (Refusal) Validate(ctx context.Context, tx domain.Transaction, deps Deps) (domain.ValidationResult, error) {
	return domain.Accept(), nil
}

func (Refusal) Standalone() {}

type CorbanuReward struct{}

func (CorbanuReward) Validate(ctx context.Context, tx domain.Transaction, deps Deps) (domain.ValidationResult, error) {
	return domain.Accept(), nil
}

func (CorbanuReward) Standalone() {}
