package engine_test

import (
	"context"
	"strings"
	"testing"
	"time"

	"tasknode/internal/config"
	"tasknode/internal/db"
	"tasknode/internal/domain"
	"tasknode/internal/engine"
	"tasknode/internal/keys"
	"tasknode/internal/migrate"
	"tasknode/internal/taxonomy"
)

const (
	user   = "rUserAccount"
	funder = "rFunderAccount"
)

// fakeLLM returns a scripted reply and counts reasoning calls.
type fakeLLM struct {
	reply string
	err   error
	calls int
}

func (f *fakeLLM) Complete(ctx context.Context, model, prompt string) (string, error) {
	f.calls++
	return f.reply, f.err
}

func (f *fakeLLM) CompleteWithSystem(ctx context.Context, model, systemPrompt, userPrompt string) (string, error) {
	f.calls++
	return f.reply, f.err
}

type testEnv struct {
	Engine *engine.Engine
	LLM    *fakeLLM
	Cfg    *config.Config
	Ctx    context.Context
}

func newTestEnv(t *testing.T) testEnv {
	t.Helper()
	conn, err := db.Open(db.Config{Workspace: t.TempDir()})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	if err := migrate.Migrate(conn); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	cfg := config.Default("node-1")
	llm := &fakeLLM{reply: "ok"}
	nodeKey, err := keys.Generate()
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}
	oracleKey, err := keys.Generate()
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}
	eng, err := engine.New(conn, cfg, engine.Options{
		LLM:  llm,
		Keys: keys.Ring{Node: nodeKey, Remembrancer: oracleKey},
		Now:  func() time.Time { return time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC) },
	})
	if err != nil {
		t.Fatalf("build engine: %v", err)
	}
	return testEnv{Engine: eng, LLM: llm, Cfg: cfg, Ctx: context.Background()}
}

func (env testEnv) ingest(t *testing.T, tx domain.Transaction) {
	t.Helper()
	if _, err := env.Engine.Ingest(env.Ctx, tx); err != nil {
		t.Fatalf("ingest %s: %v", tx.Hash, err)
	}
}

func (env testEnv) process(t *testing.T, hash string) engine.Outcome {
	t.Helper()
	out, err := env.Engine.Process(env.Ctx, hash)
	if err != nil {
		t.Fatalf("process %s: %v", hash, err)
	}
	return out
}

func memoTx(hash, account, destination, memoType, data, ts string, amount float64) domain.Transaction {
	return domain.Transaction{
		Hash:        hash,
		Account:     account,
		Destination: destination,
		MemoType:    memoType,
		MemoData:    data,
		ValueAmount: amount,
		TS:          ts,
		Success:     true,
	}
}

func TestProcessNoMatch(t *testing.T) {
	env := newTestEnv(t)
	env.ingest(t, memoTx("h1", user, env.Cfg.Node.Address, "chat message", "hi", "2024-06-01T10:00:00Z", 0))
	out := env.process(t, "h1")
	if out.Status != engine.StatusNoMatch {
		t.Fatalf("status = %s, want no_match", out.Status)
	}
}

func TestInitiationRiteLengthGate(t *testing.T) {
	env := newTestEnv(t)
	taskID := "v1.0.2024-06-01_09:00__AAAA"

	// 9 non-whitespace characters: one short of the gate.
	env.ingest(t, memoTx("short", user, env.Cfg.Node.Address, taskID+"__INITIATION_RITE", "a b c d e f g h i", "2024-06-01T10:00:00Z", 0))
	out := env.process(t, "short")
	if out.Status != engine.StatusRejected {
		t.Fatalf("status = %s, want rejected", out.Status)
	}
	if out.Notes != "Invalid initiation rite" {
		t.Fatalf("notes = %q", out.Notes)
	}

	// 10 non-whitespace characters passes and triggers synthesis.
	env.LLM.reply = "| Reward | 100 | | Justification | Welcome aboard |"
	env.ingest(t, memoTx("ok", "rOtherUser", env.Cfg.Node.Address, taskID+"__INITIATION_RITE", "a b c d e f g h i j", "2024-06-01T10:01:00Z", 0))
	out = env.process(t, "ok")
	if out.Status != engine.StatusSynthesized {
		t.Fatalf("status = %s, want synthesized", out.Status)
	}
	if out.Memo == nil || out.Memo.ValueAmount != 100 {
		t.Fatalf("memo = %+v, want 100 token reward", out.Memo)
	}
	if !strings.HasSuffix(out.Memo.MemoType, "__INITIATION_REWARD") {
		t.Fatalf("memo type = %s", out.Memo.MemoType)
	}
	if out.Memo.MemoData != "Welcome aboard" {
		t.Fatalf("memo data = %q", out.Memo.MemoData)
	}
}

func TestInitiationRiteMissingMarkerFails(t *testing.T) {
	env := newTestEnv(t)
	taskID := "v1.0.2024-06-01_09:00__AAAA"
	env.LLM.reply = "no markers at all"
	env.ingest(t, memoTx("h1", user, env.Cfg.Node.Address, taskID+"__INITIATION_RITE", "a genuine commitment", "2024-06-01T10:00:00Z", 0))
	_, err := env.Engine.Process(env.Ctx, "h1")
	if err == nil {
		t.Fatal("expected synthesis failure on missing reward marker")
	}
}

func TestRequestAnsweredShortCircuits(t *testing.T) {
	env := newTestEnv(t)
	taskID := "v1.0.2024-06-01_09:00__AAAA"
	env.ingest(t, memoTx("req", user, env.Cfg.Node.Address, taskID+"__TASK_REQUEST", "give me work", "2024-06-01T10:00:00Z", 1))
	env.ingest(t, memoTx("resp", env.Cfg.Node.Address, user, taskID+"__PROPOSAL", "do the thing.. 100", "2024-06-01T10:05:00Z", 0))

	out := env.process(t, "req")
	if out.Status != engine.StatusAnswered {
		t.Fatalf("status = %s, want answered", out.Status)
	}
	if out.Response == nil || out.Response.Hash != "resp" {
		t.Fatalf("response = %+v", out.Response)
	}
	if env.LLM.calls != 0 {
		t.Fatalf("answered request must not call the model, got %d calls", env.LLM.calls)
	}

	// Replaying the same request keeps returning the recorded response.
	again := env.process(t, "req")
	if again.Status != engine.StatusAnswered || again.Response.Hash != "resp" {
		t.Fatalf("replay outcome = %+v", again)
	}
}

func TestTaskRequestSynthesizesProposal(t *testing.T) {
	env := newTestEnv(t)
	taskID := "v1.0.2024-06-01_09:00__AAAA"
	env.LLM.reply = "Research the topic and summarize it.. 150"
	env.ingest(t, memoTx("req", user, env.Cfg.Node.Address, taskID+"__TASK_REQUEST", "give me work", "2024-06-01T10:00:00Z", 1))

	out := env.process(t, "req")
	if out.Status != engine.StatusSynthesized {
		t.Fatalf("status = %s, want synthesized", out.Status)
	}
	if out.Memo.MemoType != taskID+"__PROPOSAL" {
		t.Fatalf("memo type = %s", out.Memo.MemoType)
	}
	if out.Memo.MemoData != "Research the topic and summarize it.. 150" {
		t.Fatalf("memo data = %q", out.Memo.MemoData)
	}
	if out.Memo.Destination != user {
		t.Fatalf("memo destination = %s", out.Memo.Destination)
	}
}

func TestTaskRequestFeeGate(t *testing.T) {
	env := newTestEnv(t)
	taskID := "v1.0.2024-06-01_09:00__AAAA"
	env.ingest(t, memoTx("req", user, env.Cfg.Node.Address, taskID+"__TASK_REQUEST", "give me work", "2024-06-01T10:00:00Z", 0.5))
	out := env.process(t, "req")
	if out.Status != engine.StatusRejected {
		t.Fatalf("status = %s, want rejected", out.Status)
	}
}

func TestRewardClampsExtractedAmount(t *testing.T) {
	cases := []struct {
		name  string
		reply string
		want  float64
	}{
		{"above ceiling", "| Total PFT Rewarded | 5000 | | Summary Judgment | Excellent work |", 1200},
		{"negative takes absolute", "| Total PFT Rewarded | -50 | | Summary Judgment | Fine |", 50},
		{"missing marker floors", "| Summary Judgment | No amount given |", 1},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			env := newTestEnv(t)
			taskID := "v1.0.2024-06-01_09:00__AAAA"
			node := env.Cfg.Node.Address
			env.ingest(t, memoTx("p", node, user, taskID+"__PROPOSAL", "write the report.. 100", "2024-06-01T10:00:00Z", 0))
			env.ingest(t, memoTx("vp", node, user, taskID+"__VERIFICATION_PROMPT", "What did you write?", "2024-06-01T11:00:00Z", 0))
			env.ingest(t, memoTx("vr", user, node, taskID+"__VERIFICATION_RESPONSE", "I wrote the report", "2024-06-01T12:00:00Z", 1))

			env.LLM.reply = tc.reply
			out := env.process(t, "vr")
			if out.Status != engine.StatusSynthesized {
				t.Fatalf("status = %s, want synthesized", out.Status)
			}
			if out.Memo.MemoType != taskID+"__REWARD" {
				t.Fatalf("memo type = %s", out.Memo.MemoType)
			}
			if out.Memo.ValueAmount != tc.want {
				t.Fatalf("amount = %v, want %v", out.Memo.ValueAmount, tc.want)
			}
		})
	}
}

func TestRewardFlagsAddressBeforeMemo(t *testing.T) {
	env := newTestEnv(t)
	taskID := "v1.0.2024-06-01_09:00__AAAA"
	node := env.Cfg.Node.Address
	env.ingest(t, memoTx("p", node, user, taskID+"__PROPOSAL", "write the report.. 100", "2024-06-01T10:00:00Z", 0))
	env.ingest(t, memoTx("vp", node, user, taskID+"__VERIFICATION_PROMPT", "What did you write?", "2024-06-01T11:00:00Z", 0))
	env.ingest(t, memoTx("vr", user, node, taskID+"__VERIFICATION_RESPONSE", "nothing really", "2024-06-01T12:00:00Z", 1))

	env.LLM.reply = "| Total PFT Rewarded | 1 | | Summary Judgment | RED FLAG fabricated evidence |"
	out := env.process(t, "vr")
	if out.Status != engine.StatusSynthesized {
		t.Fatalf("status = %s", out.Status)
	}
	auth, err := env.Engine.Store.GetAuthorization(env.Ctx, user)
	if err != nil {
		t.Fatalf("get authorization: %v", err)
	}
	if auth.Flag == nil || *auth.Flag != "RED" {
		t.Fatalf("expected RED flag, got %+v", auth)
	}
}

func TestRewardWithoutProposalFails(t *testing.T) {
	env := newTestEnv(t)
	taskID := "v1.0.2024-06-01_09:00__AAAA"
	env.ingest(t, memoTx("vr", user, env.Cfg.Node.Address, taskID+"__VERIFICATION_RESPONSE", "done", "2024-06-01T12:00:00Z", 1))
	_, err := env.Engine.Process(env.Ctx, "vr")
	if err == nil {
		t.Fatal("expected synthesis error when no proposal exists")
	}
}

func TestODVBalanceGate(t *testing.T) {
	env := newTestEnv(t)
	oracle := env.Cfg.Node.Remembrancer
	taskID := "v1.0.2024-06-01_09:00__AAAA"

	// Fund the account with 2000; the request fee of 1 drops the tracked
	// balance to 1999 before validation runs.
	env.ingest(t, memoTx("fund", funder, user, "funding", "", "2024-06-01T09:00:00Z", 2000))
	env.ingest(t, memoTx("odv1", user, oracle, taskID+"__ODV_REQUEST", "what should I focus on", "2024-06-01T10:00:00Z", 1))
	out := env.process(t, "odv1")
	if out.Status != engine.StatusRejected {
		t.Fatalf("status = %s, want rejected", out.Status)
	}
	if out.Notes != "Balance is below the oracle minimum" {
		t.Fatalf("notes = %q", out.Notes)
	}

	// Top up past the first request's fee so the post-fee balance sits
	// exactly at the floor.
	env.ingest(t, memoTx("fund2", funder, user, "funding", "", "2024-06-01T10:30:00Z", 2))
	env.LLM.reply = "Focus on the hardest task first."
	env.ingest(t, memoTx("odv2", user, oracle, taskID+"__ODV_REQUEST", "what should I focus on", "2024-06-01T11:00:00Z", 1))
	out = env.process(t, "odv2")
	if out.Status != engine.StatusSynthesized {
		t.Fatalf("status = %s, want synthesized (notes=%q)", out.Status, out.Notes)
	}
	if out.Memo.MemoType != taskID+"__ODV_RESPONSE" {
		t.Fatalf("memo type = %s", out.Memo.MemoType)
	}
	if !strings.HasPrefix(out.Memo.MemoData, "ODV SYSTEM: ") {
		t.Fatalf("memo data = %q", out.Memo.MemoData)
	}
	if !out.Memo.ShouldCompress {
		t.Fatal("oracle replies are compressed")
	}
}

func TestGoogleDocLinkRecordedAndDocStored(t *testing.T) {
	env := newTestEnv(t)
	taskID := "v1.0.2024-06-01_09:00__AAAA"
	link := "https://docs.google.com/document/d/abc123/edit"
	env.ingest(t, memoTx("doc", user, env.Cfg.Node.Address, taskID+"__GOOGLE_DOC_CONTEXT_LINK", link, "2024-06-01T10:00:00Z", 0))

	out := env.process(t, "doc")
	if out.Status != engine.StatusRecorded {
		t.Fatalf("status = %s, want recorded", out.Status)
	}
	if out.Archetype != domain.ArchetypeStandalone || out.PatternID != taxonomy.PatternGoogleDocContextLink {
		t.Fatalf("classification = %s/%s", out.PatternID, out.Archetype)
	}
	doc, err := env.Engine.Store.GetAccountDoc(env.Ctx, user)
	if err != nil {
		t.Fatalf("get doc: %v", err)
	}
	if doc.DocLink != link {
		t.Fatalf("doc link = %s", doc.DocLink)
	}
}

func TestIngestDecodesHexPayload(t *testing.T) {
	env := newTestEnv(t)
	taskID := "v1.0.2024-06-01_09:00__AAAA"
	env.ingest(t, memoTx("h1", user, env.Cfg.Node.Address, taskID+"__ACCEPTANCE", `\x48656c6c6f`, "2024-06-01T10:00:00Z", 0))
	tx, err := env.Engine.Store.GetTransaction(env.Ctx, "h1")
	if err != nil {
		t.Fatalf("get transaction: %v", err)
	}
	if tx.MemoData != "Hello" {
		t.Fatalf("memo data = %q, want decoded text", tx.MemoData)
	}
}

func TestTasksReconstruction(t *testing.T) {
	env := newTestEnv(t)
	node := env.Cfg.Node.Address
	taskID := "v1.0.2024-06-01_09:00__AAAA"
	env.ingest(t, memoTx("req", user, node, taskID+"__TASK_REQUEST", "work please", "2024-06-01T10:00:00Z", 1))
	env.ingest(t, memoTx("prop", node, user, taskID+"__PROPOSAL", "do x.. 100", "2024-06-01T11:00:00Z", 0))
	env.ingest(t, memoTx("acc", user, node, taskID+"__ACCEPTANCE", "ok", "2024-06-01T12:00:00Z", 0))

	tasks, err := env.Engine.Tasks(env.Ctx, user, "")
	if err != nil {
		t.Fatalf("tasks: %v", err)
	}
	if len(tasks) != 1 || tasks[0].ID != taskID {
		t.Fatalf("tasks = %+v", tasks)
	}
	accepted, err := env.Engine.Tasks(env.Ctx, user, domain.StateAccepted)
	if err != nil {
		t.Fatalf("tasks by state: %v", err)
	}
	if len(accepted) != 1 {
		t.Fatalf("expected 1 accepted task, got %d", len(accepted))
	}
	_, state, err := env.Engine.Task(env.Ctx, user, taskID)
	if err != nil {
		t.Fatalf("task: %v", err)
	}
	if state != domain.StateAccepted {
		t.Fatalf("state = %s", state)
	}
}

func TestAuthorizationGate(t *testing.T) {
	env := newTestEnv(t)
	env.Cfg.Gates.RequireAuthorization = true
	taskID := "v1.0.2024-06-01_09:00__AAAA"
	env.ingest(t, memoTx("req", user, env.Cfg.Node.Address, taskID+"__TASK_REQUEST", "work please", "2024-06-01T10:00:00Z", 1))

	out := env.process(t, "req")
	if out.Status != engine.StatusRejected || out.Notes != "Address is not authorized" {
		t.Fatalf("outcome = %+v", out)
	}

	if err := env.Engine.Authorize(env.Ctx, user, true); err != nil {
		t.Fatalf("authorize: %v", err)
	}
	env.LLM.reply = "A task.. 10"
	out = env.process(t, "req")
	if out.Status != engine.StatusSynthesized {
		t.Fatalf("status after authorization = %s", out.Status)
	}
}

func TestEventsAppended(t *testing.T) {
	env := newTestEnv(t)
	taskID := "v1.0.2024-06-01_09:00__AAAA"
	env.LLM.reply = "A task.. 10"
	env.ingest(t, memoTx("req", user, env.Cfg.Node.Address, taskID+"__TASK_REQUEST", "work please", "2024-06-01T10:00:00Z", 1))
	env.process(t, "req")

	events, err := env.Engine.Store.TailEvents(env.Ctx, 10)
	if err != nil {
		t.Fatalf("tail events: %v", err)
	}
	var types []string
	for _, ev := range events {
		types = append(types, ev.Type)
	}
	joined := strings.Join(types, ",")
	if !strings.Contains(joined, "transaction.ingested") || !strings.Contains(joined, "response.synthesized") {
		t.Fatalf("unexpected event types: %s", joined)
	}
}
