package store_test

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"tasknode/internal/db"
	"tasknode/internal/domain"
	"tasknode/internal/migrate"
	"tasknode/internal/store"
)

const (
	user = "rUserAccount"
	node = "rNodeAddress"
)

func newTestStore(t *testing.T) (store.Store, *sql.DB) {
	t.Helper()
	conn, err := db.Open(db.Config{Workspace: t.TempDir()})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	if err := migrate.Migrate(conn); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return store.New(conn), conn
}

func insert(t *testing.T, s store.Store, tx domain.Transaction) {
	t.Helper()
	inserted, err := s.InsertTransaction(context.Background(), nil, tx)
	if err != nil {
		t.Fatalf("insert %s: %v", tx.Hash, err)
	}
	if !inserted {
		t.Fatalf("insert %s: expected new row", tx.Hash)
	}
}

func memoTx(hash, account, destination, memoType, ts string, amount float64) domain.Transaction {
	return domain.Transaction{
		Hash:        hash,
		Account:     account,
		Destination: destination,
		MemoType:    memoType,
		MemoData:    "payload",
		ValueAmount: amount,
		TS:          ts,
		Success:     true,
	}
}

func TestInsertTransactionIdempotent(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()
	tx := memoTx("h1", user, node, "v1.0.2024-01-01_10:00__AAAA__TASK_REQUEST", "2024-01-01T10:00:00Z", 5)
	insert(t, s, tx)

	again, err := s.InsertTransaction(ctx, nil, tx)
	if err != nil {
		t.Fatalf("reinsert: %v", err)
	}
	if again {
		t.Fatal("reinsert must report existing row")
	}

	// The balance only moved once.
	bal, err := s.GetBalance(ctx, node)
	if err != nil {
		t.Fatalf("balance: %v", err)
	}
	if bal.Balance != 5 {
		t.Fatalf("destination balance = %v, want 5", bal.Balance)
	}
	sender, err := s.GetBalance(ctx, user)
	if err != nil {
		t.Fatalf("sender balance: %v", err)
	}
	if sender.Balance != -5 {
		t.Fatalf("sender balance = %v, want -5", sender.Balance)
	}
}

func TestInsertFailedTransactionKeepsBalance(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()
	tx := memoTx("h1", user, node, "v1.0.2024-01-01_10:00__AAAA__TASK_REQUEST", "2024-01-01T10:00:00Z", 5)
	tx.Success = false
	insert(t, s, tx)
	bal, err := s.GetBalance(ctx, node)
	if err != nil {
		t.Fatalf("balance: %v", err)
	}
	if bal.Balance != 0 {
		t.Fatalf("failed transaction moved balance: %v", bal.Balance)
	}
}

func TestFindResponseTravelsReverseDirection(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()
	taskID := "v1.0.2024-01-01_10:00__AAAA"
	insert(t, s, memoTx("req", user, node, taskID+"__TASK_REQUEST", "2024-01-01T10:00:00Z", 1))
	insert(t, s, memoTx("resp", node, user, taskID+"__PROPOSAL", "2024-01-01T11:00:00Z", 0))

	// The query is phrased from the request's point of view; the store flips
	// the direction to find the node's answer.
	found, err := s.FindResponse(ctx, domain.ResponseQuery{
		Account:          user,
		Destination:      node,
		ResponseMemoType: taskID + "__PROPOSAL",
	})
	if err != nil {
		t.Fatalf("find response: %v", err)
	}
	if found.Hash != "resp" {
		t.Fatalf("found %s, want resp", found.Hash)
	}
}

func TestFindResponseRequireAfterRequest(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()
	taskID := "v1.0.2024-01-01_10:00__AAAA"
	// Response recorded before the request timestamp.
	insert(t, s, memoTx("old", node, user, taskID+"__INITIATION_REWARD", "2024-01-01T09:00:00Z", 100))

	q := domain.ResponseQuery{
		Account:          user,
		Destination:      node,
		ResponseMemoType: "INITIATION_REWARD",
		TypeIsSuffix:     true,
		RequestTS:        "2024-01-01T10:00:00Z",
	}
	// Without the time constraint the old reward answers the request.
	if _, err := s.FindResponse(ctx, q); err != nil {
		t.Fatalf("suffix lookup: %v", err)
	}
	// With it, the old reward no longer blocks.
	q.RequireAfterRequest = true
	if _, err := s.FindResponse(ctx, q); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestFindResponseEarliestWins(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()
	taskID := "v1.0.2024-01-01_10:00__AAAA"
	insert(t, s, memoTx("second", node, user, taskID+"__PROPOSAL", "2024-01-01T12:00:00Z", 0))
	insert(t, s, memoTx("first", node, user, taskID+"__PROPOSAL", "2024-01-01T11:00:00Z", 0))
	found, err := s.FindResponse(ctx, domain.ResponseQuery{
		Account:          user,
		Destination:      node,
		ResponseMemoType: taskID + "__PROPOSAL",
	})
	if err != nil {
		t.Fatalf("find response: %v", err)
	}
	if found.Hash != "first" {
		t.Fatalf("pairing must be stable under replay, got %s", found.Hash)
	}
}

func TestRewardHistoryExcludesInitiationRewards(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()
	insert(t, s, memoTx("r1", node, user, "v1.0.2024-01-01_10:00__AAAA__REWARD", "2024-01-02T10:00:00Z", 50))
	insert(t, s, memoTx("r2", node, user, "v1.0.2024-01-01_11:00__BBBB__INITIATION_REWARD", "2024-01-02T11:00:00Z", 100))
	insert(t, s, memoTx("r3", node, user, "v1.0.2024-01-03_10:00__CCCC__REWARD", "2024-01-03T10:00:00Z", 60))
	insert(t, s, memoTx("old", node, user, "v1.0.2023-01-01_10:00__DDDD__REWARD", "2023-01-01T10:00:00Z", 10))

	history, err := s.RewardHistory(ctx, user, "2024-01-01T00:00:00Z")
	if err != nil {
		t.Fatalf("reward history: %v", err)
	}
	if len(history) != 2 {
		t.Fatalf("expected 2 task rewards, got %d", len(history))
	}
	if history[0].Hash != "r1" || history[1].Hash != "r3" {
		t.Fatalf("history order wrong: %s, %s", history[0].Hash, history[1].Hash)
	}
}

func TestLatestBySuffix(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()
	insert(t, s, memoTx("h1", user, node, "v1.0.2024-01-01_10:00__AAAA__HANDSHAKE", "2024-01-01T10:00:00Z", 0))
	insert(t, s, memoTx("h2", user, node, "v1.0.2024-01-02_10:00__BBBB__HANDSHAKE", "2024-01-02T10:00:00Z", 0))
	insert(t, s, memoTx("h3", user, node, "v1.0.2024-01-03_10:00__CCCC__TASK_REQUEST", "2024-01-03T10:00:00Z", 1))

	found, err := s.LatestBySuffix(ctx, user, node, "HANDSHAKE")
	if err != nil {
		t.Fatalf("latest by suffix: %v", err)
	}
	if found.Hash != "h2" {
		t.Fatalf("got %s, want the latest handshake h2", found.Hash)
	}
}

func TestAuthorizationDefaultsAndFlag(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()

	auth, err := s.GetAuthorization(ctx, user)
	if err != nil {
		t.Fatalf("get authorization: %v", err)
	}
	if auth.Authorized {
		t.Fatal("never-seen address must be unauthorized")
	}

	if err := s.SetAuthorized(ctx, user, true); err != nil {
		t.Fatalf("set authorized: %v", err)
	}
	if err := s.FlagAddress(ctx, nil, user, domain.FlagYellow, time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)); err != nil {
		t.Fatalf("flag: %v", err)
	}
	auth, err = s.GetAuthorization(ctx, user)
	if err != nil {
		t.Fatalf("get authorization: %v", err)
	}
	if !auth.Authorized || auth.Flag == nil || *auth.Flag != "YELLOW" {
		t.Fatalf("unexpected authorization state: %+v", auth)
	}
}

func TestAccountDocUpsert(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()
	doc := domain.AccountDoc{Account: user, DocLink: "https://docs.example/one", UpdatedAt: "2024-01-01T10:00:00Z"}
	if err := s.UpsertAccountDoc(ctx, nil, doc); err != nil {
		t.Fatalf("upsert doc: %v", err)
	}
	doc.DocLink = "https://docs.example/two"
	doc.UpdatedAt = "2024-01-02T10:00:00Z"
	if err := s.UpsertAccountDoc(ctx, nil, doc); err != nil {
		t.Fatalf("upsert doc again: %v", err)
	}
	got, err := s.GetAccountDoc(ctx, user)
	if err != nil {
		t.Fatalf("get doc: %v", err)
	}
	if got.DocLink != "https://docs.example/two" {
		t.Fatalf("doc link = %s, want the later link", got.DocLink)
	}
}
