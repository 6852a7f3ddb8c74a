// Package memo implements the memo triple codec: payload decoding, task id
// tokens, memo_type derivation and the pipe-delimited field grammar used by
// synthesized responses.
package memo

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"regexp"
	"strings"
	"time"

	"tasknode/internal/domain"
)

// Task memo_type suffixes, in lifecycle order.
const (
	SuffixTaskRequest          = "TASK_REQUEST"
	SuffixProposal             = "PROPOSAL"
	SuffixAcceptance           = "ACCEPTANCE"
	SuffixRefusal              = "REFUSAL"
	SuffixTaskCompletion       = "TASK_COMPLETION"
	SuffixVerificationPrompt   = "VERIFICATION_PROMPT"
	SuffixVerificationResponse = "VERIFICATION_RESPONSE"
	SuffixReward               = "REWARD"
)

// One-shot system memo types.
const (
	TypeInitiationRite       = "INITIATION_RITE"
	TypeInitiationReward     = "INITIATION_REWARD"
	TypeHandshake            = "HANDSHAKE"
	TypeHandshakeResponse    = "HANDSHAKE_RESPONSE"
	TypeGoogleDocContextLink = "GOOGLE_DOC_CONTEXT_LINK"
	TypeODVRequest           = "ODV_REQUEST"
	TypeODVResponse          = "ODV_RESPONSE"
)

// taskIDPattern matches the versioned timestamp token with its optional
// 4-character disambiguator, e.g. v1.0.2025-01-13_06:53__QQ74.
var taskIDPattern = regexp.MustCompile(`v1\.0\.\d{4}-\d{2}-\d{2}_\d{2}:\d{2}(?:__[A-Z0-9]{4})?`)

const idAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

// NewTaskID mints a task id for node-originated memos: the versioned minute
// timestamp plus a 4-character random disambiguator.
func NewTaskID(now time.Time) string {
	b := make([]byte, 4)
	rand.Read(b)
	tag := make([]byte, 4)
	for i := range tag {
		tag[i] = idAlphabet[int(b[i])%len(idAlphabet)]
	}
	return fmt.Sprintf("v1.0.%s__%s", now.UTC().Format("2006-01-02_15:04"), tag)
}

// Decode converts a raw memo payload to text. If the payload starts with the
// two literal characters \x the prefix is stripped and the remainder
// hex-decoded; otherwise the whole string is hex-decoded. Empty input
// decodes to the empty string.
func Decode(raw string) (string, error) {
	if raw == "" {
		return "", nil
	}
	h := raw
	if strings.HasPrefix(h, `\x`) {
		h = h[2:]
	}
	b, err := hex.DecodeString(h)
	if err != nil {
		return "", fmt.Errorf("decode memo payload: %w", err)
	}
	return string(b), nil
}

// Encode is the inverse of Decode, producing the prefixed hex form.
func Encode(text string) string {
	return `\x` + hex.EncodeToString([]byte(text))
}

// ExtractTaskID pulls the task id token out of a memo_type. The second
// return is false when the type carries no token (system memo types).
func ExtractTaskID(memoType string) (string, bool) {
	id := taskIDPattern.FindString(memoType)
	return id, id != ""
}

// TaskSuffix returns the lifecycle suffix of a task-scoped memo_type, or ""
// when the type carries no task id token.
func TaskSuffix(memoType string) string {
	id, ok := ExtractTaskID(memoType)
	if !ok {
		return ""
	}
	rest := strings.TrimPrefix(memoType, id)
	return strings.TrimPrefix(rest, "__")
}

// TaskType joins a task id and suffix into a memo_type.
func TaskType(taskID, suffix string) string {
	return taskID + "__" + suffix
}

// DeriveResponseType replaces the trailing suffix of a request memo_type
// with the given response suffix. A memo_type without a task id token is a
// configuration error: the caller registered a response derivation for a
// pattern that cannot carry one.
func DeriveResponseType(requestType, responseSuffix string) (string, error) {
	id, ok := ExtractTaskID(requestType)
	if !ok {
		return "", domain.ConfigurationError{Reason: fmt.Sprintf("memo_type %q has no task id; cannot derive %s response", requestType, responseSuffix)}
	}
	return TaskType(id, responseSuffix), nil
}
