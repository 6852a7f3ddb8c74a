package domain

// Archetype describes a memo's role in the protocol.
type Archetype string

const (
	ArchetypeRequest    Archetype = "request"
	ArchetypeResponse   Archetype = "response"
	ArchetypeStandalone Archetype = "standalone"
)

// Transaction is an immutable fact from the ledger projection. The engine
// never mutates it.
type Transaction struct {
	Hash        string  `json:"hash"`
	Account     string  `json:"account"`
	Destination string  `json:"destination"`
	MemoType    string  `json:"memo_type"`
	MemoFormat  string  `json:"memo_format,omitempty"`
	MemoData    string  `json:"memo_data,omitempty"`
	ValueAmount float64 `json:"value_amount"`
	TS          string  `json:"ts" format:"date-time"`
	Success     bool    `json:"success"`
}

// ValidationResult is a business outcome, not an error. Notes explain a
// rejection to the operator.
type ValidationResult struct {
	Valid bool   `json:"valid"`
	Notes string `json:"notes,omitempty"`
}

func Accept() ValidationResult {
	return ValidationResult{Valid: true}
}

func Reject(notes string) ValidationResult {
	return ValidationResult{Valid: false, Notes: notes}
}

// ResponseQuery is a declarative pairing lookup. The store executes it; the
// rule that built it never touches the database.
type ResponseQuery struct {
	Account             string         `json:"account"`
	Destination         string         `json:"destination"`
	ResponseMemoType    string         `json:"response_memo_type"`
	TypeIsSuffix        bool           `json:"type_is_suffix"`
	RequireAfterRequest bool           `json:"require_after_request"`
	RequestTS           string         `json:"request_ts,omitempty"`
	Params              map[string]any `json:"params,omitempty"`
}

// OutboundMemo is a node-authored response handed to the submission
// collaborator.
type OutboundMemo struct {
	Source         string  `json:"source"`
	Destination    string  `json:"destination"`
	MemoType       string  `json:"memo_type"`
	MemoData       string  `json:"memo_data"`
	ValueAmount    float64 `json:"value_amount,omitempty"`
	ShouldEncrypt  bool    `json:"should_encrypt,omitempty"`
	ShouldCompress bool    `json:"should_compress,omitempty"`
}

// Task is the per-task_id aggregate reconstructed from memo history. Fields
// hold the latest-timestamped transaction that mapped to them; there is no
// independent persistence.
type Task struct {
	ID                   string       `json:"task_id"`
	Account              string       `json:"account"`
	Request              *TaskField   `json:"request,omitempty"`
	Proposal             *TaskField   `json:"proposal,omitempty"`
	Acceptance           *TaskField   `json:"acceptance,omitempty"`
	Refusal              *TaskField   `json:"refusal,omitempty"`
	Completion           *TaskField   `json:"completion,omitempty"`
	VerificationPrompt   *TaskField   `json:"verification_prompt,omitempty"`
	VerificationResponse *TaskField   `json:"verification_response,omitempty"`
	Reward               *TaskField   `json:"reward,omitempty"`
	RewardAmount         float64      `json:"reward_amount,omitempty"`
}

// TaskField is one lifecycle slot: the decoded memo text plus the timestamp
// that won the latest-wins race.
type TaskField struct {
	Text string `json:"text"`
	TS   string `json:"ts" format:"date-time"`
}

// TaskState names the derived lifecycle state.
type TaskState string

const (
	StateRewarded             TaskState = "rewarded"
	StateVerificationResponse TaskState = "verification_response"
	StateVerificationPrompt   TaskState = "verification_prompt"
	StateCompleted            TaskState = "completed"
	StateRefused              TaskState = "refused"
	StateAccepted             TaskState = "accepted"
	StateProposed             TaskState = "proposed"
	StateRequested            TaskState = "requested"
	StateUnknown              TaskState = "unknown"
)

// FlagLevel is an authorization flag applied to a misbehaving address.
type FlagLevel string

const (
	FlagRed    FlagLevel = "RED"
	FlagYellow FlagLevel = "YELLOW"
)

type AccountBalance struct {
	Account string  `json:"account"`
	Balance float64 `json:"balance"`
}

type AddressAuthorization struct {
	Address    string  `json:"address"`
	Authorized bool    `json:"authorized"`
	Flag       *string `json:"flag,omitempty"`
	FlaggedAt  *string `json:"flagged_at,omitempty" format:"date-time"`
}

type AccountDoc struct {
	Account   string `json:"account"`
	DocLink   string `json:"doc_link"`
	UpdatedAt string `json:"updated_at" format:"date-time"`
}

type Event struct {
	ID         int64  `json:"id"`
	TS         string `json:"ts" format:"date-time"`
	Type       string `json:"type"`
	Account    string `json:"account,omitempty"`
	EntityKind string `json:"entity_kind"`
	EntityID   string `json:"entity_id,omitempty"`
	Payload    string `json:"payload_json"`
}

type APIKey struct {
	ID        string `json:"id"`
	ActorID   string `json:"actor_id"`
	Name      string `json:"name,omitempty"`
	KeyHash   string `json:"key_hash"`
	CreatedAt string `json:"created_at" format:"date-time"`
}
