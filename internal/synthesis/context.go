package synthesis

import (
	"context"
	"errors"
	"strings"

	"tasknode/internal/domain"
	"tasknode/internal/lifecycle"
	"tasknode/internal/store"

	"go.uber.org/zap"
)

// userContext assembles the full context document for an account: task
// history views, the planning document when one is linked, and recent memo
// text. Every part is best-effort except the history read itself.
func (d Deps) userContext(ctx context.Context, account string) (string, error) {
	history, err := d.Store.ListTransactions(ctx, store.TransactionFilter{
		Counterparty: account,
		SuccessOnly:  true,
	})
	if err != nil {
		return "", domain.InfrastructureError{Op: "context.history", Err: err}
	}
	tasks := lifecycle.Reconstruct(account, history)
	limits := lifecycle.ContextLimits{
		Memos:         d.Config.Context.Memos,
		Pending:       d.Config.Context.Pending,
		Acceptances:   d.Config.Context.Acceptances,
		Verifications: d.Config.Context.Verifications,
		Rewards:       d.Config.Context.Rewards,
		Refusals:      d.Config.Context.Refusals,
	}
	docText := d.planningDoc(ctx, account)
	memoLog := recentMemoLog(history, account, limits.Memos)
	return lifecycle.ContextString(tasks, limits, docText, memoLog), nil
}

// planningDoc fetches the account's linked planning document. Failure is
// logged and degrades to an empty section.
func (d Deps) planningDoc(ctx context.Context, account string) string {
	doc, err := d.Store.GetAccountDoc(ctx, account)
	if err != nil {
		if !errors.Is(err, store.ErrNotFound) {
			d.logger().Warn("planning doc lookup failed", zap.String("account", account), zap.Error(err))
		}
		return ""
	}
	if d.Docs == nil {
		return ""
	}
	text, err := d.Docs.Fetch(ctx, doc.DocLink)
	if err != nil {
		d.logger().Warn("planning doc fetch failed", zap.String("account", account), zap.Error(err))
		return ""
	}
	return text
}

// recentMemoLog formats the account's latest outbound memo texts, oldest
// first, for the comments-and-logs context section.
func recentMemoLog(history []domain.Transaction, account string, limit int) string {
	var lines []string
	for _, t := range history {
		if t.Account != account || t.MemoData == "" {
			continue
		}
		lines = append(lines, t.TS+" "+t.MemoData)
	}
	if limit > 0 && len(lines) > limit {
		lines = lines[len(lines)-limit:]
	}
	return strings.Join(lines, "\n")
}
