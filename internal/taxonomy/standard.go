package taxonomy

import (
	"fmt"
	"regexp"

	"tasknode/internal/domain"
	"tasknode/internal/memo"
)

// Pattern ids of the standard interaction graph.
const (
	PatternInitiationRite       = "initiation_rite"
	PatternInitiationReward     = "initiation_reward"
	PatternHandshake            = "handshake"
	PatternHandshakeResponse    = "handshake_response"
	PatternGoogleDocContextLink = "google_doc_context_link"
	PatternTaskRequest          = "task_request"
	PatternProposal             = "proposal"
	PatternAcceptance           = "acceptance"
	PatternRefusal              = "refusal"
	PatternTaskCompletion       = "task_completion"
	PatternVerificationPrompt   = "verification_prompt"
	PatternVerificationResponse = "verification_response"
	PatternReward               = "reward"
	PatternODVRequest           = "odv_request"
	PatternODVResponse          = "odv_response"
	PatternCorbanuReward        = "corbanu_reward"
)

const taskIDExpr = `v1\.0\.\d{4}-\d{2}-\d{2}_\d{2}:\d{2}(?:__[A-Z0-9]{4})?`

// Every protocol memo_type, system types included, is task-id prefixed.
func typeRegex(suffix string) *regexp.Regexp {
	return regexp.MustCompile(fmt.Sprintf(`^%s__%s$`, taskIDExpr, suffix))
}

// Standard builds the production interaction graph. Responses are registered
// ahead of the requests that reference them so reference validation holds.
func Standard() (*Registry, error) {
	r := NewRegistry()
	regs := []Registration{
		{ID: PatternInitiationReward, Pattern: Pattern{TypeRegex: typeRegex(memo.TypeInitiationReward)}, Archetype: domain.ArchetypeResponse, Notify: true},
		{ID: PatternInitiationRite, Pattern: Pattern{TypeRegex: typeRegex(memo.TypeInitiationRite)}, Archetype: domain.ArchetypeRequest, ValidResponses: []string{PatternInitiationReward}, Notify: true},
		{ID: PatternGoogleDocContextLink, Pattern: Pattern{TypeRegex: typeRegex(memo.TypeGoogleDocContextLink)}, Archetype: domain.ArchetypeStandalone, Notify: true},
		{ID: PatternHandshakeResponse, Pattern: Pattern{TypeRegex: typeRegex(memo.TypeHandshakeResponse)}, Archetype: domain.ArchetypeResponse},
		{ID: PatternHandshake, Pattern: Pattern{TypeRegex: typeRegex(memo.TypeHandshake)}, Archetype: domain.ArchetypeRequest, ValidResponses: []string{PatternHandshakeResponse}},
		{ID: PatternProposal, Pattern: Pattern{TypeRegex: typeRegex(memo.SuffixProposal)}, Archetype: domain.ArchetypeResponse, Notify: true},
		{ID: PatternTaskRequest, Pattern: Pattern{TypeRegex: typeRegex(memo.SuffixTaskRequest)}, Archetype: domain.ArchetypeRequest, ValidResponses: []string{PatternProposal}, Notify: true},
		{ID: PatternAcceptance, Pattern: Pattern{TypeRegex: typeRegex(memo.SuffixAcceptance)}, Archetype: domain.ArchetypeStandalone, Notify: true},
		{ID: PatternRefusal, Pattern: Pattern{TypeRegex: typeRegex(memo.SuffixRefusal)}, Archetype: domain.ArchetypeStandalone, Notify: true},
		{ID: PatternVerificationPrompt, Pattern: Pattern{TypeRegex: typeRegex(memo.SuffixVerificationPrompt)}, Archetype: domain.ArchetypeResponse, Notify: true},
		{ID: PatternTaskCompletion, Pattern: Pattern{TypeRegex: typeRegex(memo.SuffixTaskCompletion)}, Archetype: domain.ArchetypeRequest, ValidResponses: []string{PatternVerificationPrompt}, Notify: true},
		{ID: PatternReward, Pattern: Pattern{TypeRegex: typeRegex(memo.SuffixReward)}, Archetype: domain.ArchetypeResponse, Notify: true},
		{ID: PatternVerificationResponse, Pattern: Pattern{TypeRegex: typeRegex(memo.SuffixVerificationResponse)}, Archetype: domain.ArchetypeRequest, ValidResponses: []string{PatternReward}, Notify: true},
		{ID: PatternODVResponse, Pattern: Pattern{TypeRegex: typeRegex(memo.TypeODVResponse)}, Archetype: domain.ArchetypeResponse},
		{ID: PatternODVRequest, Pattern: Pattern{TypeRegex: typeRegex(memo.TypeODVRequest)}, Archetype: domain.ArchetypeRequest, ValidResponses: []string{PatternODVResponse}},
		{ID: PatternCorbanuReward, Pattern: Pattern{TypeRegex: regexp.MustCompile(`^` + taskIDExpr + `$`), Format: "Corbanu", Data: "Corbanu Reward"}, Archetype: domain.ArchetypeStandalone, Notify: true},
	}
	for _, reg := range regs {
		if err := r.Register(reg); err != nil {
			return nil, err
		}
	}
	return r, nil
}
