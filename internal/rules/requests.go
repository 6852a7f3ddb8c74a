package rules

import (
	"context"
	"unicode"

	"tasknode/internal/domain"
	"tasknode/internal/keys"
	"tasknode/internal/memo"
)

// Shared predicates. Business rejections return a result; store failures
// propagate as InfrastructureError so the caller abstains instead of
// rejecting.

func requireNodeDestination(tx domain.Transaction, deps Deps) (domain.ValidationResult, bool) {
	if tx.Destination != deps.Config.Node.Address {
		return domain.Reject("Destination is not the node address"), false
	}
	return domain.Accept(), true
}

func requireAuthorized(ctx context.Context, tx domain.Transaction, deps Deps) (domain.ValidationResult, error) {
	if !deps.Config.Gates.RequireAuthorization {
		return domain.Accept(), nil
	}
	auth, err := deps.Store.GetAuthorization(ctx, tx.Account)
	if err != nil {
		return domain.ValidationResult{}, domain.InfrastructureError{Op: "validate.authorization", Err: err}
	}
	if !auth.Authorized {
		return domain.Reject("Address is not authorized"), nil
	}
	return domain.Accept(), nil
}

func requireMinFee(tx domain.Transaction, deps Deps) (domain.ValidationResult, bool) {
	if tx.ValueAmount < deps.Config.Gates.MinFee {
		return domain.Reject("Attached amount is less than the minimum fee"), false
	}
	return domain.Accept(), true
}

// InitiationRite admits a new participant. The rite text must carry enough
// non-whitespace substance; no fee is demanded at the door.
type InitiationRite struct{}

func (InitiationRite) Validate(ctx context.Context, tx domain.Transaction, deps Deps) (domain.ValidationResult, error) {
	if res, ok := requireNodeDestination(tx, deps); !ok {
		return res, nil
	}
	if res, err := requireAuthorized(ctx, tx, deps); err != nil || !res.Valid {
		return res, err
	}
	if countNonSpace(tx.MemoData) < deps.Config.Gates.MinRiteLength {
		return domain.Reject("Invalid initiation rite"), nil
	}
	return domain.Accept(), nil
}

// Any prior initiation reward answers the rite, whenever it happened. The
// re-initiation override narrows the match to rewards after this rite, so
// an old reward no longer blocks a fresh start.
func (InitiationRite) FindResponse(tx domain.Transaction, deps Deps) (domain.ResponseQuery, error) {
	return domain.ResponseQuery{
		Account:             tx.Account,
		Destination:         tx.Destination,
		ResponseMemoType:    memo.TypeInitiationReward,
		TypeIsSuffix:        true,
		RequireAfterRequest: deps.Config.ReinitiationsAllowed(),
		RequestTS:           tx.TS,
	}, nil
}

func countNonSpace(s string) int {
	n := 0
	for _, r := range s {
		if !unicode.IsSpace(r) {
			n++
		}
	}
	return n
}

// Handshake opens a key exchange. The payload must be a key we could
// actually derive a shared secret from.
type Handshake struct{}

func (Handshake) Validate(ctx context.Context, tx domain.Transaction, deps Deps) (domain.ValidationResult, error) {
	if !deps.Config.IsNodeAddress(tx.Destination) {
		return domain.Reject("Destination is not a node handshake address"), nil
	}
	if res, err := requireAuthorized(ctx, tx, deps); err != nil || !res.Valid {
		return res, err
	}
	if _, err := keys.ParsePublicKey(tx.MemoData); err != nil {
		return domain.Reject("Invalid exchange public key"), nil
	}
	return domain.Accept(), nil
}

func (Handshake) FindResponse(tx domain.Transaction, deps Deps) (domain.ResponseQuery, error) {
	return domain.ResponseQuery{
		Account:             tx.Account,
		Destination:         tx.Destination,
		ResponseMemoType:    memo.TypeHandshakeResponse,
		TypeIsSuffix:        true,
		RequireAfterRequest: true,
		RequestTS:           tx.TS,
	}, nil
}

// TaskRequest asks the node for work.
type TaskRequest struct{}

func (TaskRequest) Validate(ctx context.Context, tx domain.Transaction, deps Deps) (domain.ValidationResult, error) {
	if res, ok := requireNodeDestination(tx, deps); !ok {
		return res, nil
	}
	if res, err := requireAuthorized(ctx, tx, deps); err != nil || !res.Valid {
		return res, err
	}
	if res, ok := requireMinFee(tx, deps); !ok {
		return res, nil
	}
	return domain.Accept(), nil
}

func (TaskRequest) FindResponse(tx domain.Transaction, deps Deps) (domain.ResponseQuery, error) {
	return derivedResponseQuery(tx, memo.SuffixProposal)
}

// TaskCompletion claims a task is done.
type TaskCompletion struct{}

func (TaskCompletion) Validate(ctx context.Context, tx domain.Transaction, deps Deps) (domain.ValidationResult, error) {
	return TaskRequest{}.Validate(ctx, tx, deps)
}

func (TaskCompletion) FindResponse(tx domain.Transaction, deps Deps) (domain.ResponseQuery, error) {
	return derivedResponseQuery(tx, memo.SuffixVerificationPrompt)
}

// VerificationResponse answers the verifying question.
type VerificationResponse struct{}

func (VerificationResponse) Validate(ctx context.Context, tx domain.Transaction, deps Deps) (domain.ValidationResult, error) {
	return TaskRequest{}.Validate(ctx, tx, deps)
}

func (VerificationResponse) FindResponse(tx domain.Transaction, deps Deps) (domain.ResponseQuery, error) {
	return derivedResponseQuery(tx, memo.SuffixReward)
}

// ODVRequest queries the oracle persona on the remembrancer address. Gated
// on a minimum tracked balance.
type ODVRequest struct{}

func (ODVRequest) Validate(ctx context.Context, tx domain.Transaction, deps Deps) (domain.ValidationResult, error) {
	if tx.Destination != deps.Config.Node.Remembrancer {
		return domain.Reject("Destination is not the remembrancer address"), nil
	}
	balance, err := deps.Store.GetBalance(ctx, tx.Account)
	if err != nil {
		return domain.ValidationResult{}, domain.InfrastructureError{Op: "validate.balance", Err: err}
	}
	if balance.Balance < deps.Config.Gates.ODVMinBalance {
		return domain.Reject("Balance is below the oracle minimum"), nil
	}
	if res, err := requireAuthorized(ctx, tx, deps); err != nil || !res.Valid {
		return res, err
	}
	if res, ok := requireMinFee(tx, deps); !ok {
		return res, nil
	}
	return domain.Accept(), nil
}

func (ODVRequest) FindResponse(tx domain.Transaction, deps Deps) (domain.ResponseQuery, error) {
	return derivedResponseQuery(tx, memo.TypeODVResponse)
}

// derivedResponseQuery builds the exact-type pairing lookup for task-scoped
// requests: the response carries the same task id with the response suffix,
// and must come after the request.
func derivedResponseQuery(tx domain.Transaction, suffix string) (domain.ResponseQuery, error) {
	responseType, err := memo.DeriveResponseType(tx.MemoType, suffix)
	if err != nil {
		return domain.ResponseQuery{}, err
	}
	return domain.ResponseQuery{
		Account:             tx.Account,
		Destination:         tx.Destination,
		ResponseMemoType:    responseType,
		RequireAfterRequest: true,
		RequestTS:           tx.TS,
	}, nil
}
