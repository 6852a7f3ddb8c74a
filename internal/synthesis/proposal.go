package synthesis

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"tasknode/internal/domain"
	"tasknode/internal/memo"
)

// Proposal delegates task generation to the reasoning model, seeded with the
// user's request text and their assembled context. The first generated
// string is used verbatim.
type Proposal struct {
	deps Deps
}

func NewProposal(deps Deps) Proposal {
	return Proposal{deps: deps}
}

type proposalEvaluation struct {
	Text string
}

func (g Proposal) Evaluate(ctx context.Context, tx domain.Transaction) (any, error) {
	userContext, err := g.deps.userContext(ctx, tx.Account)
	if err != nil {
		g.deps.logger().Warn("proposal context unavailable", zap.String("account", tx.Account), zap.Error(err))
		userContext = ""
	}
	prompt := fmt.Sprintf(proposalUserPromptFmt, tx.MemoData, userContext)
	content, err := g.deps.LLM.CompleteWithSystem(ctx, g.deps.Config.Reasoning.TaskModel, proposalSystemPrompt, prompt)
	if err != nil {
		return nil, domain.SynthesisError{Stage: "proposal.evaluate", Err: err}
	}
	text := strings.TrimSpace(content)
	if text == "" {
		return nil, domain.SynthesisError{Stage: "proposal.evaluate", Err: fmt.Errorf("no task generated")}
	}
	return proposalEvaluation{Text: text}, nil
}

func (g Proposal) Construct(ctx context.Context, tx domain.Transaction, evaluation any) (domain.OutboundMemo, error) {
	ev, ok := evaluation.(proposalEvaluation)
	if !ok {
		return domain.OutboundMemo{}, wrongEvaluation("proposal.construct")
	}
	memoType, err := memo.DeriveResponseType(tx.MemoType, memo.SuffixProposal)
	if err != nil {
		return domain.OutboundMemo{}, err
	}
	return domain.OutboundMemo{
		Source:      g.deps.sourceNameFor(tx.Destination),
		Destination: tx.Account,
		MemoType:    memoType,
		MemoData:    ev.Text,
	}, nil
}
