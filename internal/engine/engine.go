// Package engine drives the protocol pipeline: classify, validate, pair,
// synthesize. It owns transaction boundaries and the per-task serialization
// that keeps latest-wins field semantics correct.
package engine

import (
	"database/sql"
	"sync"
	"time"

	"go.uber.org/zap"

	"tasknode/internal/config"
	"tasknode/internal/events"
	"tasknode/internal/keys"
	"tasknode/internal/llm"
	"tasknode/internal/rules"
	"tasknode/internal/store"
	"tasknode/internal/synthesis"
	"tasknode/internal/taxonomy"
)

type Engine struct {
	DB       *sql.DB
	Store    store.Store
	Events   events.Writer
	Config   *config.Config
	Registry *taxonomy.Registry
	Rules    map[string]rules.Rule
	Log      *zap.Logger
	Now      func() time.Time

	deps  rules.Deps
	tasks *keyedMutex
}

// Options carries the optional collaborators.
type Options struct {
	LLM  llm.Client
	Keys keys.Ring
	Docs synthesis.DocFetcher
	Log  *zap.Logger
	Now  func() time.Time
}

// New wires an engine over an open database. The standard interaction graph
// and rule bindings are fixed at construction; a registry that cannot be
// bound is a configuration error.
func New(db *sql.DB, cfg *config.Config, opts Options) (*Engine, error) {
	registry, err := taxonomy.Standard()
	if err != nil {
		return nil, err
	}
	bound, err := rules.Bind(registry)
	if err != nil {
		return nil, err
	}
	if opts.Log == nil {
		opts.Log = zap.NewNop()
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	st := store.New(db)
	return &Engine{
		DB:       db,
		Store:    st,
		Events:   events.Writer{DB: db, Now: opts.Now},
		Config:   cfg,
		Registry: registry,
		Rules:    bound,
		Log:      opts.Log,
		Now:      opts.Now,
		deps: rules.Deps{
			Config: cfg,
			Store:  st,
			LLM:    opts.LLM,
			Keys:   opts.Keys,
			Docs:   opts.Docs,
			Log:    opts.Log,
			Now:    opts.Now,
		},
		tasks: newKeyedMutex(),
	}, nil
}

// keyedMutex serializes work per task id. Different accounts and tasks
// proceed in parallel; the same task is applied in order.
type keyedMutex struct {
	mu    sync.Mutex
	locks map[string]*entry
}

type entry struct {
	mu   sync.Mutex
	refs int
}

func newKeyedMutex() *keyedMutex {
	return &keyedMutex{locks: make(map[string]*entry)}
}

func (k *keyedMutex) lock(key string) func() {
	k.mu.Lock()
	e := k.locks[key]
	if e == nil {
		e = &entry{}
		k.locks[key] = e
	}
	e.refs++
	k.mu.Unlock()

	e.mu.Lock()
	return func() {
		e.mu.Unlock()
		k.mu.Lock()
		e.refs--
		if e.refs == 0 {
			delete(k.locks, key)
		}
		k.mu.Unlock()
	}
}
