package synthesis

import (
	"context"
	"errors"
	"fmt"

	"tasknode/internal/domain"
	"tasknode/internal/memo"
	"tasknode/internal/store"
)

// VerificationPrompt turns a completion claim into a verifying question. It
// needs the original proposal, looked up by its exact derived memo_type.
type VerificationPrompt struct {
	deps Deps
}

func NewVerificationPrompt(deps Deps) VerificationPrompt {
	return VerificationPrompt{deps: deps}
}

type verificationEvaluation struct {
	Question string
}

func (g VerificationPrompt) Evaluate(ctx context.Context, tx domain.Transaction) (any, error) {
	proposalType, err := memo.DeriveResponseType(tx.MemoType, memo.SuffixProposal)
	if err != nil {
		return nil, err
	}
	proposal, err := g.deps.Store.LatestByType(ctx, proposalType, tx.Account)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, domain.SynthesisError{Stage: "verification_prompt.proposal", Err: fmt.Errorf("no original proposal for %s", proposalType)}
		}
		return nil, domain.InfrastructureError{Op: "verification_prompt.proposal", Err: err}
	}
	prompt := fmt.Sprintf(verificationUserPromptFmt, proposal.MemoData, tx.MemoData)
	content, err := g.deps.LLM.CompleteWithSystem(ctx, g.deps.Config.Reasoning.Model, verificationSystemPrompt, prompt)
	if err != nil {
		return nil, domain.SynthesisError{Stage: "verification_prompt.evaluate", Err: err}
	}
	question, err := memo.ExtractField(content, "Verifying Question |")
	if err != nil {
		return nil, domain.SynthesisError{Stage: "verification_prompt.extract_question", Err: err}
	}
	return verificationEvaluation{Question: question}, nil
}

func (g VerificationPrompt) Construct(ctx context.Context, tx domain.Transaction, evaluation any) (domain.OutboundMemo, error) {
	ev, ok := evaluation.(verificationEvaluation)
	if !ok {
		return domain.OutboundMemo{}, wrongEvaluation("verification_prompt.construct")
	}
	memoType, err := memo.DeriveResponseType(tx.MemoType, memo.SuffixVerificationPrompt)
	if err != nil {
		return domain.OutboundMemo{}, err
	}
	return domain.OutboundMemo{
		Source:      g.deps.sourceNameFor(tx.Destination),
		Destination: tx.Account,
		MemoType:    memoType,
		MemoData:    ev.Question,
	}, nil
}
