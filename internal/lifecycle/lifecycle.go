// Package lifecycle reconstructs per-task state from memo history. Tasks have
// no persistence of their own; every view here is derived from the
// transaction_memos projection.
package lifecycle

import (
	"sort"

	"tasknode/internal/domain"
	"tasknode/internal/memo"
)

// Reconstruct folds an account's memo history into task aggregates, ordered
// by the timestamp of their earliest memo. Each lifecycle slot keeps the
// latest-timestamped memo that mapped to it. Payloads were decoded to text
// at ingest; they are used as stored.
func Reconstruct(account string, history []domain.Transaction) []*domain.Task {
	byID := make(map[string]*domain.Task)
	first := make(map[string]string)
	var order []string
	for _, t := range history {
		if !t.Success {
			continue
		}
		id, ok := memo.ExtractTaskID(t.MemoType)
		if !ok {
			continue
		}
		suffix := memo.TaskSuffix(t.MemoType)
		if !lifecycleSuffix(suffix) {
			continue
		}
		task := byID[id]
		if task == nil {
			task = &domain.Task{ID: id, Account: account}
			byID[id] = task
			first[id] = t.TS
			order = append(order, id)
		}
		field := &domain.TaskField{Text: t.MemoData, TS: t.TS}
		switch suffix {
		case memo.SuffixTaskRequest:
			assign(&task.Request, field)
		case memo.SuffixProposal:
			assign(&task.Proposal, field)
		case memo.SuffixAcceptance:
			assign(&task.Acceptance, field)
		case memo.SuffixRefusal:
			assign(&task.Refusal, field)
		case memo.SuffixTaskCompletion:
			assign(&task.Completion, field)
		case memo.SuffixVerificationPrompt:
			assign(&task.VerificationPrompt, field)
		case memo.SuffixVerificationResponse:
			assign(&task.VerificationResponse, field)
		case memo.SuffixReward:
			if task.Reward == nil || task.Reward.TS <= t.TS {
				task.RewardAmount = t.ValueAmount
			}
			assign(&task.Reward, field)
		}
	}
	sort.SliceStable(order, func(i, j int) bool { return first[order[i]] < first[order[j]] })
	out := make([]*domain.Task, 0, len(order))
	for _, id := range order {
		out = append(out, byID[id])
	}
	return out
}

// System memo types share the task-id shape but are not lifecycle slots.
func lifecycleSuffix(suffix string) bool {
	switch suffix {
	case memo.SuffixTaskRequest, memo.SuffixProposal, memo.SuffixAcceptance,
		memo.SuffixRefusal, memo.SuffixTaskCompletion, memo.SuffixVerificationPrompt,
		memo.SuffixVerificationResponse, memo.SuffixReward:
		return true
	}
	return false
}

// RFC3339 strings compare correctly as strings.
func assign(slot **domain.TaskField, field *domain.TaskField) {
	if *slot == nil || (*slot).TS <= field.TS {
		*slot = field
	}
}

// State derives the lifecycle state. Precedence is terminal-first: a reward
// ends a task no matter what else arrived, and a refusal beats an acceptance
// only when nothing later happened.
func State(t *domain.Task) domain.TaskState {
	switch {
	case t.Reward != nil:
		return domain.StateRewarded
	case t.VerificationResponse != nil:
		return domain.StateVerificationResponse
	case t.VerificationPrompt != nil:
		return domain.StateVerificationPrompt
	case t.Completion != nil:
		return domain.StateCompleted
	case t.Refusal != nil:
		return domain.StateRefused
	case t.Acceptance != nil:
		return domain.StateAccepted
	case t.Proposal != nil:
		return domain.StateProposed
	case t.Request != nil:
		return domain.StateRequested
	}
	return domain.StateUnknown
}

// ByState filters tasks to those in any of the given states, preserving order.
func ByState(tasks []*domain.Task, states ...domain.TaskState) []*domain.Task {
	var out []*domain.Task
	for _, t := range tasks {
		s := State(t)
		for _, want := range states {
			if s == want {
				out = append(out, t)
				break
			}
		}
	}
	return out
}

// Statistics summarizes an account's task history.
type Statistics struct {
	Total        int                      `json:"total"`
	ByState      map[domain.TaskState]int `json:"by_state"`
	TotalRewards float64                  `json:"total_rewards"`
}

func Summarize(tasks []*domain.Task) Statistics {
	stats := Statistics{ByState: make(map[domain.TaskState]int)}
	for _, t := range tasks {
		stats.Total++
		stats.ByState[State(t)]++
		stats.TotalRewards += t.RewardAmount
	}
	return stats
}
