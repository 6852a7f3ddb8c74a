package synthesis

import (
	"context"
	"errors"

	"tasknode/internal/domain"
	"tasknode/internal/memo"
)

// HandshakeResponse is deterministic: it returns the receiving identity's
// public exchange value with no reasoning call and no value transfer.
type HandshakeResponse struct {
	deps Deps
}

func NewHandshakeResponse(deps Deps) HandshakeResponse {
	return HandshakeResponse{deps: deps}
}

type handshakeEvaluation struct {
	PublicKey string
}

func (g HandshakeResponse) Evaluate(ctx context.Context, tx domain.Transaction) (any, error) {
	ex := g.deps.exchangerFor(tx.Destination)
	if ex == nil {
		return nil, domain.SynthesisError{Stage: "handshake_response.evaluate", Err: errors.New("no exchange key for receiving identity")}
	}
	return handshakeEvaluation{PublicKey: ex.PublicKey()}, nil
}

func (g HandshakeResponse) Construct(ctx context.Context, tx domain.Transaction, evaluation any) (domain.OutboundMemo, error) {
	ev, ok := evaluation.(handshakeEvaluation)
	if !ok {
		return domain.OutboundMemo{}, wrongEvaluation("handshake_response.construct")
	}
	return domain.OutboundMemo{
		Source:      g.deps.sourceNameFor(tx.Destination),
		Destination: tx.Account,
		MemoType:    memo.TaskType(memo.NewTaskID(g.deps.now()), memo.TypeHandshakeResponse),
		MemoData:    ev.PublicKey,
	}, nil
}
