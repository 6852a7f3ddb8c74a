package engine

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"tasknode/internal/domain"
	"tasknode/internal/events"
	"tasknode/internal/memo"
	"tasknode/internal/rules"
	"tasknode/internal/store"
	"tasknode/internal/taxonomy"
)

// Outcome statuses of one pipeline run.
const (
	StatusNoMatch     = "no_match"
	StatusRejected    = "rejected"
	StatusAnswered    = "answered"
	StatusSynthesized = "synthesized"
	StatusRecorded    = "recorded"
)

// Outcome describes what the pipeline did with one transaction.
type Outcome struct {
	Hash      string               `json:"hash"`
	PatternID string               `json:"pattern_id,omitempty"`
	Archetype domain.Archetype     `json:"archetype,omitempty"`
	Status    string               `json:"status"`
	Notes     string               `json:"notes,omitempty"`
	Response  *domain.Transaction  `json:"response,omitempty"`
	Memo      *domain.OutboundMemo `json:"memo,omitempty"`
}

// Ingest records a ledger transaction into the projection, decoding the memo
// payload to text. Re-observing a hash is a no-op; the second return reports
// whether the row was new. A context document link also updates the
// account's doc row in the same transaction.
func (e *Engine) Ingest(ctx context.Context, t domain.Transaction) (bool, error) {
	if decoded, err := memo.Decode(t.MemoData); err == nil {
		t.MemoData = decoded
	}
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return false, err
	}
	defer tx.Rollback()

	inserted, err := e.Store.InsertTransaction(ctx, tx, t)
	if err != nil {
		return false, err
	}
	if !inserted {
		return false, tx.Commit()
	}
	if reg, ok := e.Registry.Classify(t); ok && reg.ID == taxonomy.PatternGoogleDocContextLink && t.Success {
		doc := domain.AccountDoc{Account: t.Account, DocLink: t.MemoData, UpdatedAt: t.TS}
		if err := e.Store.UpsertAccountDoc(ctx, tx, doc); err != nil {
			return false, err
		}
	}
	err = e.Events.Append(ctx, tx, "transaction.ingested", t.Account, "transaction", t.Hash, events.EventPayload{
		"memo_type":    t.MemoType,
		"destination":  t.Destination,
		"value_amount": t.ValueAmount,
	})
	if err != nil {
		return false, err
	}
	return true, tx.Commit()
}

// Process runs the pipeline over an ingested transaction. Validation fails
// closed: a collaborator failure propagates as an error and produces no
// outcome. Requests already holding a recorded response short-circuit before
// any reasoning call.
func (e *Engine) Process(ctx context.Context, hash string) (Outcome, error) {
	t, err := e.Store.GetTransaction(ctx, hash)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return Outcome{}, fmt.Errorf("transaction %s: %w", hash, err)
		}
		return Outcome{}, domain.InfrastructureError{Op: "process.load", Err: err}
	}

	reg, ok := e.Registry.Classify(t)
	if !ok {
		return Outcome{Hash: t.Hash, Status: StatusNoMatch}, nil
	}
	out := Outcome{Hash: t.Hash, PatternID: reg.ID, Archetype: reg.Archetype}

	rule := e.Rules[reg.ID]
	result, err := rule.Validate(ctx, t, e.deps)
	if err != nil {
		return Outcome{}, err
	}
	if !result.Valid {
		out.Status = StatusRejected
		out.Notes = result.Notes
		e.Log.Info("transaction rejected",
			zap.String("hash", t.Hash), zap.String("pattern", reg.ID), zap.String("notes", result.Notes))
		return out, e.appendEvent(ctx, "transaction.rejected", t.Account, "transaction", t.Hash, events.EventPayload{
			"pattern": reg.ID,
			"notes":   result.Notes,
		})
	}

	if reg.Archetype != domain.ArchetypeRequest {
		out.Status = StatusRecorded
		return out, nil
	}

	unlock := e.tasks.lock(taskKey(t))
	defer unlock()

	request, ok := rule.(rules.RequestRule)
	if !ok {
		return Outcome{}, domain.ConfigurationError{Reason: "request pattern " + reg.ID + " bound to a non-request rule"}
	}
	query, err := request.FindResponse(t, e.deps)
	if err != nil {
		return Outcome{}, err
	}
	existing, err := e.Store.FindResponse(ctx, query)
	if err == nil {
		out.Status = StatusAnswered
		out.Response = &existing
		return out, nil
	}
	if !errors.Is(err, store.ErrNotFound) {
		return Outcome{}, domain.InfrastructureError{Op: "process.pairing", Err: err}
	}

	outbound, err := e.synthesize(ctx, reg, t)
	if err != nil {
		return Outcome{}, err
	}
	out.Status = StatusSynthesized
	out.Memo = &outbound
	err = e.appendEvent(ctx, "response.synthesized", t.Account, "transaction", t.Hash, events.EventPayload{
		"pattern":       reg.ID,
		"response_type": outbound.MemoType,
		"value_amount":  outbound.ValueAmount,
	})
	if err != nil {
		return Outcome{}, err
	}
	return out, nil
}

// synthesize runs the two-phase generator of the request's first valid
// response pattern.
func (e *Engine) synthesize(ctx context.Context, reg taxonomy.Registration, t domain.Transaction) (domain.OutboundMemo, error) {
	if len(reg.ValidResponses) == 0 {
		return domain.OutboundMemo{}, domain.ConfigurationError{Reason: "request pattern " + reg.ID + " declares no valid responses"}
	}
	responseID := reg.ValidResponses[0]
	responseRule, ok := e.Rules[responseID].(rules.ResponseRule)
	if !ok {
		return domain.OutboundMemo{}, domain.ConfigurationError{Reason: "response pattern " + responseID + " bound to a non-response rule"}
	}
	gen := responseRule.Generator(e.deps)
	evaluation, err := gen.Evaluate(ctx, t)
	if err != nil {
		return domain.OutboundMemo{}, err
	}
	return gen.Construct(ctx, t, evaluation)
}

func (e *Engine) appendEvent(ctx context.Context, evtType, account, entityKind, entityID string, payload events.EventPayload) error {
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()
	if err := e.Events.Append(ctx, tx, evtType, account, entityKind, entityID, payload); err != nil {
		return err
	}
	return tx.Commit()
}

// taskKey scopes the per-task critical section. Memos without a task id
// serialize on their own hash.
func taskKey(t domain.Transaction) string {
	if id, ok := memo.ExtractTaskID(t.MemoType); ok {
		return t.Account + "/" + id
	}
	return t.Hash
}
