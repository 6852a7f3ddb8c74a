package lifecycle

import (
	"encoding/json"
	"fmt"

	"tasknode/internal/domain"
)

// ContextLimits caps each section of the assembled context document.
type ContextLimits struct {
	Memos         int
	Pending       int
	Acceptances   int
	Verifications int
	Rewards       int
	Refusals      int
}

type contextTask struct {
	TaskID   string `json:"task_id"`
	Proposal string `json:"proposal"`
	Status   string `json:"status"`
}

// ContextString assembles the full account context document handed to the
// reasoning model. Section markers are part of the wire format the prompts
// were written against and must not change.
func ContextString(tasks []*domain.Task, limits ContextLimits, docText string, memoLog string) string {
	proposals := tail(ByState(tasks, domain.StateProposed, domain.StateAccepted), limits.Pending+limits.Acceptances)
	refusals := tail(ByState(tasks, domain.StateRefused), limits.Refusals)
	verifications := tail(ByState(tasks, domain.StateCompleted, domain.StateVerificationPrompt, domain.StateVerificationResponse), limits.Verifications)
	rewards := tail(ByState(tasks, domain.StateRewarded), limits.Rewards)

	proposalString := formatSection(proposals, statusForOpen, "No pending or accepted proposals found.")
	refusalString := formatSection(refusals, statusForRefused, "No refused proposals found.")
	verificationString := formatSection(verifications, statusForVerification, "No tasks pending verification.")
	rewardString := formatSection(rewards, statusForRewarded, "No rewarded tasks found.")

	out := fmt.Sprintf(`
***<<< ALL TASK GENERATION CONTEXT STARTS HERE >>>***

These are the proposed and accepted tasks that the user has. This is their
current work queue
<<PROPOSED AND ACCEPTED TASKS START HERE>>
%s
<<PROPOSED AND ACCEPTED TASKS END HERE>>

These are the tasks that the user has been proposed and has refused.
The user has provided a refusal reason with each one. Only their most recent
%d refused tasks are showing
<<REFUSED TASKS START HERE >>
%s
<<REFUSED TASKS END HERE>>

These are the tasks that the user has for pending verification.
They need to submit details
<<VERIFICATION TASKS START HERE>>
%s
<<VERIFICATION TASKS END HERE>>

<<REWARDED TASKS START HERE >>
%s
<<REWARDED TASKS END HERE >>
`, proposalString, limits.Refusals, refusalString, verificationString, rewardString)

	if docText != "" {
		out += fmt.Sprintf(`
The following is the user's full planning document that they have assembled
to inform task generation and planning
<<USER PLANNING DOC STARTS HERE>>
%s
<<USER PLANNING DOC ENDS HERE>>
`, docText)
	}
	if memoLog != "" {
		out += fmt.Sprintf(`
The following is the users own comments regarding everything
<<< USER COMMENTS AND LOGS START HERE>>
%s
<<< USER COMMENTS AND LOGS END HERE>>
`, memoLog)
	}
	out += `
***<<< ALL TASK GENERATION CONTEXT ENDS HERE >>>***
`
	return out
}

func formatSection(tasks []*domain.Task, status func(*domain.Task) string, empty string) string {
	if len(tasks) == 0 {
		return empty
	}
	items := make([]contextTask, 0, len(tasks))
	for _, t := range tasks {
		items = append(items, contextTask{
			TaskID:   t.ID,
			Proposal: fieldText(t.Proposal),
			Status:   status(t),
		})
	}
	data, err := json.Marshal(map[string][]contextTask{"tasks": items})
	if err != nil {
		return empty
	}
	return string(data)
}

func statusForOpen(t *domain.Task) string {
	if t.Acceptance != nil {
		return "Accepted: " + t.Acceptance.Text
	}
	return "Pending response"
}

func statusForRefused(t *domain.Task) string {
	return "Refused: " + fieldText(t.Refusal)
}

func statusForVerification(t *domain.Task) string {
	if t.VerificationResponse != nil {
		return "User submitted for verification: " + t.VerificationResponse.Text
	}
	return "User submitted for verification: " + fieldText(t.Completion)
}

func statusForRewarded(t *domain.Task) string {
	return "Rewarded: " + fieldText(t.Reward)
}

func fieldText(f *domain.TaskField) string {
	if f == nil {
		return ""
	}
	return f.Text
}

func tail[T any](items []T, n int) []T {
	if n <= 0 || len(items) <= n {
		return items
	}
	return items[len(items)-n:]
}
