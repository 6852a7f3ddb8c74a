package synthesis

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"go.uber.org/zap"

	"tasknode/internal/domain"
	"tasknode/internal/memo"
	"tasknode/internal/store"
)

const (
	verificationSectionStart = "TASK VERIFICATION SECTION START"
	verificationSectionEnd   = "TASK VERIFICATION SECTION END"

	noDocUploaded = "No Google Document Uploaded - please instruct user that Google Document has not been uploaded in response"
	noDocSection  = "No Populated Verification Section"
)

// Reward closes a task: it weighs the verification response against the
// original proposal, recent reward history and the planning document, then
// pays out a clamped amount. A RED or YELLOW flag in the summary is applied
// to the account before the memo is returned and survives later failures.
type Reward struct {
	deps Deps
}

func NewReward(deps Deps) Reward {
	return Reward{deps: deps}
}

type rewardEvaluation struct {
	Amount  int
	Summary string
}

func (g Reward) Evaluate(ctx context.Context, tx domain.Transaction) (any, error) {
	proposalType, err := memo.DeriveResponseType(tx.MemoType, memo.SuffixProposal)
	if err != nil {
		return nil, err
	}
	proposal, err := g.deps.Store.LatestByType(ctx, proposalType, tx.Account)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, domain.SynthesisError{Stage: "reward.proposal", Err: fmt.Errorf("no original proposal for %s", proposalType)}
		}
		return nil, domain.InfrastructureError{Op: "reward.proposal", Err: err}
	}
	promptType, err := memo.DeriveResponseType(tx.MemoType, memo.SuffixVerificationPrompt)
	if err != nil {
		return nil, err
	}
	verificationPrompt, err := g.deps.Store.LatestByType(ctx, promptType, tx.Account)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, domain.SynthesisError{Stage: "reward.verification_prompt", Err: fmt.Errorf("no verification prompt for %s", promptType)}
		}
		return nil, domain.InfrastructureError{Op: "reward.verification_prompt", Err: err}
	}

	since := g.deps.now().Add(-time.Duration(g.deps.Config.Rewards.WindowDays) * 24 * time.Hour)
	history, err := g.deps.Store.RewardHistory(ctx, tx.Account, since.UTC().Format(time.RFC3339))
	if err != nil {
		return nil, domain.InfrastructureError{Op: "reward.history", Err: err}
	}
	var lines []string
	for _, r := range history {
		lines = append(lines, fmt.Sprintf("%s REWARD %.0f", r.MemoData, math.Abs(r.ValueAmount)))
	}

	proposedReward := proposal.MemoData
	if i := strings.LastIndex(proposedReward, ".."); i >= 0 {
		proposedReward = proposedReward[i+2:]
	}
	proposedReward = strings.TrimSpace(proposedReward)

	details := g.verificationDetails(ctx, tx.Account)

	systemPrompt := fmt.Sprintf(rewardSystemPromptFmt, proposedReward, proposedReward)
	userPrompt := fmt.Sprintf(rewardUserPromptFmt,
		proposal.MemoData, verificationPrompt.MemoData, tx.MemoData,
		details, strings.Join(lines, "\n"))

	content, err := g.deps.LLM.CompleteWithSystem(ctx, g.deps.Config.Reasoning.Model, systemPrompt, userPrompt)
	if err != nil {
		return nil, domain.SynthesisError{Stage: "reward.evaluate", Err: err}
	}
	return rewardEvaluation{
		Amount:  g.extractAmount(content),
		Summary: g.extractSummary(content),
	}, nil
}

// verificationDetails pulls the verification section out of the planning
// document. Best-effort: every failure degrades to a placeholder.
func (g Reward) verificationDetails(ctx context.Context, account string) string {
	doc, err := g.deps.Store.GetAccountDoc(ctx, account)
	if err != nil {
		return noDocUploaded
	}
	if g.deps.Docs == nil {
		return noDocSection
	}
	text, err := g.deps.Docs.Fetch(ctx, doc.DocLink)
	if err != nil {
		g.deps.logger().Warn("verification doc fetch failed", zap.String("account", account), zap.Error(err))
		return noDocSection
	}
	section, ok := memo.Between(text, verificationSectionStart, verificationSectionEnd)
	if !ok {
		return noDocSection
	}
	return section
}

// extractAmount takes the absolute value clamped to the configured range,
// defaulting to the floor when the marker is missing. Non-fatal.
func (g Reward) extractAmount(content string) int {
	amount, err := memo.ExtractInt(content, "| Total PFT Rewarded |")
	if err != nil {
		g.deps.logger().Warn("reward amount extraction failed, using floor", zap.Error(err))
		return g.deps.Config.Rewards.Min
	}
	if amount < 0 {
		amount = -amount
	}
	if amount < g.deps.Config.Rewards.Min {
		amount = g.deps.Config.Rewards.Min
	}
	if amount > g.deps.Config.Rewards.Max {
		amount = g.deps.Config.Rewards.Max
	}
	return amount
}

func (g Reward) extractSummary(content string) string {
	summary, err := memo.ExtractField(content, "| Summary Judgment |")
	if err != nil {
		g.deps.logger().Warn("summary judgment extraction failed", zap.Error(err))
		return "Summary Judgment"
	}
	return summary
}

func (g Reward) Construct(ctx context.Context, tx domain.Transaction, evaluation any) (domain.OutboundMemo, error) {
	ev, ok := evaluation.(rewardEvaluation)
	if !ok {
		return domain.OutboundMemo{}, wrongEvaluation("reward.construct")
	}
	// The flag is a precondition of returning the memo, not a best-effort
	// side effect.
	if strings.Contains(ev.Summary, "RED FLAG") {
		if err := g.deps.Store.FlagAddress(ctx, nil, tx.Account, domain.FlagRed, g.deps.now()); err != nil {
			return domain.OutboundMemo{}, domain.InfrastructureError{Op: "reward.flag", Err: err}
		}
	} else if strings.Contains(ev.Summary, "YELLOW FLAG") {
		if err := g.deps.Store.FlagAddress(ctx, nil, tx.Account, domain.FlagYellow, g.deps.now()); err != nil {
			return domain.OutboundMemo{}, domain.InfrastructureError{Op: "reward.flag", Err: err}
		}
	}
	memoType, err := memo.DeriveResponseType(tx.MemoType, memo.SuffixReward)
	if err != nil {
		return domain.OutboundMemo{}, err
	}
	return domain.OutboundMemo{
		Source:      g.deps.sourceNameFor(tx.Destination),
		Destination: tx.Account,
		MemoType:    memoType,
		MemoData:    ev.Summary,
		ValueAmount: float64(ev.Amount),
	}, nil
}
