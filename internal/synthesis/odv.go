package synthesis

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"tasknode/internal/domain"
	"tasknode/internal/keys"
	"tasknode/internal/memo"
	"tasknode/internal/store"
)

// decryptedMarker is stamped into a payload by the projection when it was
// received encrypted and has been decrypted for processing. A reply to such
// a memo must be re-encrypted.
const decryptedMarker = "[Decrypted]"

// ODVResponse answers an oracle query with the persona prompt over the
// user's full context. Replies to previously-encrypted queries are sealed
// with the shared secret of a completed key exchange.
type ODVResponse struct {
	deps Deps
}

func NewODVResponse(deps Deps) ODVResponse {
	return ODVResponse{deps: deps}
}

type odvEvaluation struct {
	Response string
}

func (g ODVResponse) Evaluate(ctx context.Context, tx domain.Transaction) (any, error) {
	userContext, err := g.deps.userContext(ctx, tx.Account)
	if err != nil {
		return nil, err
	}
	prompt := fmt.Sprintf(odvUserPromptFmt, userContext, tx.MemoData)
	content, err := g.deps.LLM.CompleteWithSystem(ctx, g.deps.Config.Reasoning.Model, odvSystemPrompt, prompt)
	if err != nil {
		return nil, domain.SynthesisError{Stage: "odv_response.evaluate", Err: err}
	}
	return odvEvaluation{Response: "ODV SYSTEM: " + content}, nil
}

func (g ODVResponse) Construct(ctx context.Context, tx domain.Transaction, evaluation any) (domain.OutboundMemo, error) {
	ev, ok := evaluation.(odvEvaluation)
	if !ok {
		return domain.OutboundMemo{}, wrongEvaluation("odv_response.construct")
	}
	memoData := ev.Response
	wasEncrypted := strings.Contains(tx.MemoData, decryptedMarker)
	if wasEncrypted {
		sealed, err := g.sealReply(ctx, tx, memoData)
		if err != nil {
			return domain.OutboundMemo{}, err
		}
		memoData = sealed
	}
	memoType, err := memo.DeriveResponseType(tx.MemoType, memo.TypeODVResponse)
	if err != nil {
		return domain.OutboundMemo{}, err
	}
	return domain.OutboundMemo{
		Source:         g.deps.sourceNameFor(tx.Destination),
		Destination:    tx.Account,
		MemoType:       memoType,
		MemoData:       memoData,
		ShouldEncrypt:  wasEncrypted,
		ShouldCompress: true,
	}, nil
}

// sealReply encrypts the reply using the counterparty key from a completed
// exchange. Both legs of the handshake must exist; otherwise the caller
// needs to trigger one.
func (g ODVResponse) sealReply(ctx context.Context, tx domain.Transaction, plain string) (string, error) {
	theirs, err := g.deps.Store.LatestBySuffix(ctx, tx.Account, tx.Destination, memo.TypeHandshake)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return "", domain.HandshakeRequiredError{Local: tx.Destination, Remote: tx.Account}
		}
		return "", domain.InfrastructureError{Op: "odv_response.handshake", Err: err}
	}
	if _, err := g.deps.Store.LatestBySuffix(ctx, tx.Destination, tx.Account, memo.TypeHandshakeResponse); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return "", domain.HandshakeRequiredError{Local: tx.Destination, Remote: tx.Account}
		}
		return "", domain.InfrastructureError{Op: "odv_response.handshake", Err: err}
	}
	peer, err := keys.ParsePublicKey(theirs.MemoData)
	if err != nil {
		return "", domain.SynthesisError{Stage: "odv_response.seal", Err: err}
	}
	ex := g.deps.exchangerFor(tx.Destination)
	if ex == nil {
		return "", domain.SynthesisError{Stage: "odv_response.seal", Err: errors.New("no exchange key for receiving identity")}
	}
	sealed, err := ex.Seal(plain, peer)
	if err != nil {
		return "", domain.SynthesisError{Stage: "odv_response.seal", Err: err}
	}
	return sealed, nil
}
