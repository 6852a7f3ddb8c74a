package engine

import (
	"context"
	"fmt"

	"tasknode/internal/domain"
	"tasknode/internal/events"
	"tasknode/internal/lifecycle"
	"tasknode/internal/store"
)

// accountHistory loads an account's successful memo history, oldest first.
func (e *Engine) accountHistory(ctx context.Context, account string) ([]domain.Transaction, error) {
	return e.Store.ListTransactions(ctx, store.TransactionFilter{
		Counterparty: account,
		SuccessOnly:  true,
	})
}

// Tasks reconstructs an account's tasks, optionally filtered to one state.
func (e *Engine) Tasks(ctx context.Context, account string, state domain.TaskState) ([]*domain.Task, error) {
	history, err := e.accountHistory(ctx, account)
	if err != nil {
		return nil, err
	}
	tasks := lifecycle.Reconstruct(account, history)
	if state != "" {
		tasks = lifecycle.ByState(tasks, state)
	}
	return tasks, nil
}

// Task returns one task aggregate with its derived state.
func (e *Engine) Task(ctx context.Context, account, taskID string) (*domain.Task, domain.TaskState, error) {
	tasks, err := e.Tasks(ctx, account, "")
	if err != nil {
		return nil, domain.StateUnknown, err
	}
	for _, t := range tasks {
		if t.ID == taskID {
			return t, lifecycle.State(t), nil
		}
	}
	return nil, domain.StateUnknown, fmt.Errorf("task %s: %w", taskID, store.ErrNotFound)
}

// Statistics summarizes an account's task history.
func (e *Engine) Statistics(ctx context.Context, account string) (lifecycle.Statistics, error) {
	tasks, err := e.Tasks(ctx, account, "")
	if err != nil {
		return lifecycle.Statistics{}, err
	}
	return lifecycle.Summarize(tasks), nil
}

// Context assembles the full account context document.
func (e *Engine) Context(ctx context.Context, account string) (string, error) {
	history, err := e.accountHistory(ctx, account)
	if err != nil {
		return "", err
	}
	tasks := lifecycle.Reconstruct(account, history)
	limits := lifecycle.ContextLimits{
		Memos:         e.Config.Context.Memos,
		Pending:       e.Config.Context.Pending,
		Acceptances:   e.Config.Context.Acceptances,
		Verifications: e.Config.Context.Verifications,
		Rewards:       e.Config.Context.Rewards,
		Refusals:      e.Config.Context.Refusals,
	}
	return lifecycle.ContextString(tasks, limits, "", ""), nil
}

// Authorize flips the authorization gate for an address and records it.
func (e *Engine) Authorize(ctx context.Context, address string, authorized bool) error {
	if err := e.Store.SetAuthorized(ctx, address, authorized); err != nil {
		return err
	}
	return e.appendEvent(ctx, "address.authorized", address, "address", address, events.EventPayload{
		"authorized": authorized,
	})
}

// Flag applies a RED or YELLOW flag to an address and records it.
func (e *Engine) Flag(ctx context.Context, address string, level domain.FlagLevel) error {
	if level != domain.FlagRed && level != domain.FlagYellow {
		return fmt.Errorf("unknown flag level %q", level)
	}
	if err := e.Store.FlagAddress(ctx, nil, address, level, e.Now()); err != nil {
		return err
	}
	return e.appendEvent(ctx, "address.flagged", address, "address", address, events.EventPayload{
		"flag": string(level),
	})
}
