package synthesis

import (
	"context"
	"fmt"

	"tasknode/internal/domain"
	"tasknode/internal/memo"
)

// InitiationReward judges an initiation rite and grants the initial tokens.
// Both extraction markers are critical: missing either one fails the attempt.
type InitiationReward struct {
	deps Deps
}

func NewInitiationReward(deps Deps) InitiationReward {
	return InitiationReward{deps: deps}
}

type riteEvaluation struct {
	Reward        int
	Justification string
}

func (g InitiationReward) Evaluate(ctx context.Context, tx domain.Transaction) (any, error) {
	prompt := fmt.Sprintf(riteUserPromptFmt, tx.MemoData)
	content, err := g.deps.LLM.CompleteWithSystem(ctx, g.deps.Config.Reasoning.Model, riteSystemPrompt, prompt)
	if err != nil {
		return nil, domain.SynthesisError{Stage: "initiation_reward.evaluate", Err: err}
	}
	reward, err := memo.ExtractInt(content, "| Reward |")
	if err != nil {
		return nil, domain.SynthesisError{Stage: "initiation_reward.extract_reward", Err: err}
	}
	justification, err := memo.ExtractField(content, "| Justification |")
	if err != nil {
		return nil, domain.SynthesisError{Stage: "initiation_reward.extract_justification", Err: err}
	}
	return riteEvaluation{Reward: reward, Justification: justification}, nil
}

func (g InitiationReward) Construct(ctx context.Context, tx domain.Transaction, evaluation any) (domain.OutboundMemo, error) {
	ev, ok := evaluation.(riteEvaluation)
	if !ok {
		return domain.OutboundMemo{}, wrongEvaluation("initiation_reward.construct")
	}
	return domain.OutboundMemo{
		Source:      g.deps.sourceNameFor(tx.Destination),
		Destination: tx.Account,
		MemoType:    memo.TaskType(memo.NewTaskID(g.deps.now()), memo.TypeInitiationReward),
		MemoData:    ev.Justification,
		ValueAmount: float64(ev.Reward),
	}, nil
}
