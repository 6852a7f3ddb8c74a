// Package synthesis builds node-authored response memos. Every generator is
// two-phase: Evaluate may call the reasoning model and is retryable on its
// own; Construct is a pure transform of the evaluation except for committed
// side effects that must survive a later failure (address flagging).
package synthesis

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"tasknode/internal/config"
	"tasknode/internal/domain"
	"tasknode/internal/keys"
	"tasknode/internal/llm"
	"tasknode/internal/store"
)

// Generator produces one archetype of response memo. The evaluation value is
// generator-specific; Construct only accepts the value its own Evaluate
// produced.
type Generator interface {
	Evaluate(ctx context.Context, tx domain.Transaction) (any, error)
	Construct(ctx context.Context, tx domain.Transaction, evaluation any) (domain.OutboundMemo, error)
}

// DocFetcher retrieves an external planning document by link. Absence of a
// fetcher degrades reward verification details to a placeholder.
type DocFetcher interface {
	Fetch(ctx context.Context, link string) (string, error)
}

// Deps bundles the collaborators generators draw from.
type Deps struct {
	Config *config.Config
	Store  store.Store
	LLM    llm.Client
	Keys   keys.Ring
	Docs   DocFetcher
	Log    *zap.Logger
	Now    func() time.Time
}

func (d Deps) logger() *zap.Logger {
	if d.Log == nil {
		return zap.NewNop()
	}
	return d.Log
}

func (d Deps) now() time.Time {
	if d.Now == nil {
		return time.Now()
	}
	return d.Now()
}

// exchangerFor selects the sending identity's key by the address that
// received the request.
func (d Deps) exchangerFor(destination string) *keys.Exchanger {
	if destination == d.Config.Node.Remembrancer {
		return d.Keys.Remembrancer
	}
	return d.Keys.Node
}

// sourceNameFor names the signing identity for an outbound memo.
func (d Deps) sourceNameFor(destination string) string {
	if destination == d.Config.Node.Remembrancer {
		return d.Config.Node.Remembrancer
	}
	return d.Config.Node.Address
}

var errWrongEvaluation = errors.New("evaluation value is not from this generator")

func wrongEvaluation(stage string) error {
	return domain.SynthesisError{Stage: stage, Err: errWrongEvaluation}
}
