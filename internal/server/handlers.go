package server

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"tasknode/internal/domain"
	"tasknode/internal/engine"
	"tasknode/internal/lifecycle"
	"tasknode/internal/store"
)

func registerTransactions(api huma.API, e *engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID:   "ingest-transaction",
		Method:        http.MethodPost,
		Path:          "/transactions",
		Summary:       "Ingest a ledger transaction",
		DefaultStatus: http.StatusCreated,
	}, func(ctx context.Context, input *struct {
		Body domain.Transaction `json:"body"`
	}) (*struct {
		Body IngestResponse `json:"body"`
	}, error) {
		if input.Body.Hash == "" {
			return nil, newAPIError(http.StatusBadRequest, "bad_request", "hash is required", nil)
		}
		inserted, err := e.Ingest(ctx, input.Body)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body IngestResponse `json:"body"`
		}{Body: IngestResponse{Hash: input.Body.Hash, Inserted: inserted}}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "process-transaction",
		Method:      http.MethodPost,
		Path:        "/transactions/{hash}/process",
		Summary:     "Run the pipeline over an ingested transaction",
	}, func(ctx context.Context, input *struct {
		Hash string `path:"hash"`
	}) (*struct {
		Body engine.Outcome `json:"body"`
	}, error) {
		out, err := e.Process(ctx, input.Hash)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body engine.Outcome `json:"body"`
		}{Body: out}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "get-transaction",
		Method:      http.MethodGet,
		Path:        "/transactions/{hash}",
		Summary:     "Get an ingested transaction",
	}, func(ctx context.Context, input *struct {
		Hash string `path:"hash"`
	}) (*struct {
		Body domain.Transaction `json:"body"`
	}, error) {
		t, err := e.Store.GetTransaction(ctx, input.Hash)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body domain.Transaction `json:"body"`
		}{Body: t}, nil
	})
}

func registerTasks(api huma.API, e *engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID: "list-account-tasks",
		Method:      http.MethodGet,
		Path:        "/accounts/{account}/tasks",
		Summary:     "List an account's reconstructed tasks",
	}, func(ctx context.Context, input *struct {
		Account string `path:"account"`
		State   string `query:"state" required:"false" enum:"rewarded,verification_response,verification_prompt,completed,refused,accepted,proposed,requested,unknown,"`
	}) (*struct {
		Body []TaskResponse `json:"body"`
	}, error) {
		tasks, err := e.Tasks(ctx, input.Account, domain.TaskState(input.State))
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body []TaskResponse `json:"body"`
		}{Body: mapTasks(tasks)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "get-account-task",
		Method:      http.MethodGet,
		Path:        "/accounts/{account}/tasks/{task_id}",
		Summary:     "Get one task with its derived state",
	}, func(ctx context.Context, input *struct {
		Account string `path:"account"`
		TaskID  string `path:"task_id"`
	}) (*struct {
		Body TaskResponse `json:"body"`
	}, error) {
		task, state, err := e.Task(ctx, input.Account, input.TaskID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body TaskResponse `json:"body"`
		}{Body: taskResponse(task, state)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "get-account-statistics",
		Method:      http.MethodGet,
		Path:        "/accounts/{account}/statistics",
		Summary:     "Summarize an account's task history",
	}, func(ctx context.Context, input *struct {
		Account string `path:"account"`
	}) (*struct {
		Body lifecycle.Statistics `json:"body"`
	}, error) {
		stats, err := e.Statistics(ctx, input.Account)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body lifecycle.Statistics `json:"body"`
		}{Body: stats}, nil
	})
}

func registerAccounts(api huma.API, e *engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID: "get-account-context",
		Method:      http.MethodGet,
		Path:        "/accounts/{account}/context",
		Summary:     "Assemble the account context document",
	}, func(ctx context.Context, input *struct {
		Account string `path:"account"`
	}) (*struct {
		Body ContextResponse `json:"body"`
	}, error) {
		text, err := e.Context(ctx, input.Account)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body ContextResponse `json:"body"`
		}{Body: ContextResponse{Account: input.Account, Context: text}}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "get-account-balance",
		Method:      http.MethodGet,
		Path:        "/accounts/{account}/balance",
		Summary:     "Get the tracked balance for an account",
	}, func(ctx context.Context, input *struct {
		Account string `path:"account"`
	}) (*struct {
		Body domain.AccountBalance `json:"body"`
	}, error) {
		bal, err := e.Store.GetBalance(ctx, input.Account)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body domain.AccountBalance `json:"body"`
		}{Body: bal}, nil
	})
}

func registerAuthorization(api huma.API, e *engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID: "get-address-authorization",
		Method:      http.MethodGet,
		Path:        "/addresses/{address}/authorization",
		Summary:     "Get authorization and flag state for an address",
	}, func(ctx context.Context, input *struct {
		Address string `path:"address"`
	}) (*struct {
		Body domain.AddressAuthorization `json:"body"`
	}, error) {
		auth, err := e.Store.GetAuthorization(ctx, input.Address)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body domain.AddressAuthorization `json:"body"`
		}{Body: auth}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "set-address-authorization",
		Method:      http.MethodPut,
		Path:        "/addresses/{address}/authorization",
		Summary:     "Authorize or deauthorize an address",
	}, func(ctx context.Context, input *struct {
		Address string `path:"address"`
		Body    AuthorizationRequest `json:"body"`
	}) (*struct {
		Body domain.AddressAuthorization `json:"body"`
	}, error) {
		if err := e.Authorize(ctx, input.Address, input.Body.Authorized); err != nil {
			return nil, handleError(err)
		}
		auth, err := e.Store.GetAuthorization(ctx, input.Address)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body domain.AddressAuthorization `json:"body"`
		}{Body: auth}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "flag-address",
		Method:      http.MethodPost,
		Path:        "/addresses/{address}/flag",
		Summary:     "Apply a RED or YELLOW flag to an address",
	}, func(ctx context.Context, input *struct {
		Address string `path:"address"`
		Body    FlagRequest `json:"body"`
	}) (*struct {
		Body domain.AddressAuthorization `json:"body"`
	}, error) {
		if err := e.Flag(ctx, input.Address, domain.FlagLevel(input.Body.Flag)); err != nil {
			return nil, handleError(err)
		}
		auth, err := e.Store.GetAuthorization(ctx, input.Address)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body domain.AddressAuthorization `json:"body"`
		}{Body: auth}, nil
	})
}

func registerEvents(api huma.API, e *engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID: "list-events",
		Method:      http.MethodGet,
		Path:        "/events",
		Summary:     "List audit events",
	}, func(ctx context.Context, input *struct {
		Account string `query:"account" required:"false"`
		Type    string `query:"type" required:"false"`
		AfterID int64  `query:"after_id" required:"false"`
		Limit   int    `query:"limit" required:"false"`
	}) (*struct {
		Body []domain.Event `json:"body"`
	}, error) {
		items, err := e.Store.ListEvents(ctx, store.EventFilter{
			Account: input.Account,
			Type:    input.Type,
			AfterID: input.AfterID,
			Limit:   input.Limit,
		})
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body []domain.Event `json:"body"`
		}{Body: items}, nil
	})
}
