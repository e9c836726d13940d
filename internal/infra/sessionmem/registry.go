// Package sessionmem keeps the session ledgers of a running process.
package sessionmem

import (
	"sync"
	"time"

	"sealtrail/internal/domain"
	"sealtrail/internal/ledger"
)

// Registry maps a caller's session context to its single active ledger and
// resolves ledgers by trace token. Finalized ledgers stay readable until
// they have been idle for the configured TTL.
type Registry struct {
	mu        sync.Mutex
	now       func() time.Time
	ttl       time.Duration
	byContext map[string]string
	byTrace   map[string]*entry
	options   []ledger.Option
}

type entry struct {
	ledger    *ledger.Ledger
	contextID string
	touchedAt time.Time
}

type Config struct {
	TTL time.Duration
	Now func() time.Time

	// LedgerOptions are applied to every ledger the registry starts.
	LedgerOptions []ledger.Option
}

func New(cfg Config) *Registry {
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &Registry{
		now:       cfg.Now,
		ttl:       cfg.TTL,
		byContext: make(map[string]string),
		byTrace:   make(map[string]*entry),
		options:   cfg.LedgerOptions,
	}
}

// Start opens a new ledger for contextID. A prior ledger of the same
// context that was never finalized is discarded; a finalized one remains
// reachable by its trace token.
func (r *Registry) Start(contextID string) *ledger.Ledger {
	l := ledger.Start(r.options...)

	r.mu.Lock()
	defer r.mu.Unlock()
	now := r.now()
	if prev, ok := r.byContext[contextID]; ok && contextID != "" {
		if e, ok := r.byTrace[prev]; ok && !e.ledger.Finalized() {
			delete(r.byTrace, prev)
		}
	}
	r.byTrace[l.TraceToken()] = &entry{ledger: l, contextID: contextID, touchedAt: now}
	if contextID != "" {
		r.byContext[contextID] = l.TraceToken()
	}
	r.sweepLocked(now)
	return l
}

// Get returns the ledger for traceToken.
func (r *Registry) Get(traceToken string) (*ledger.Ledger, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	now := r.now()
	e, ok := r.byTrace[traceToken]
	if !ok || r.expired(e, now) {
		if ok {
			r.removeLocked(traceToken, e)
		}
		return nil, domain.ErrSessionNotFound
	}
	e.touchedAt = now
	return e.ledger, nil
}

// Active returns the current ledger of contextID.
func (r *Registry) Active(contextID string) (*ledger.Ledger, error) {
	r.mu.Lock()
	token, ok := r.byContext[contextID]
	r.mu.Unlock()
	if !ok {
		return nil, domain.ErrSessionNotFound
	}
	return r.Get(token)
}

// Sweep drops expired ledgers and reports how many were removed.
func (r *Registry) Sweep() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.sweepLocked(r.now())
}

func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.byTrace)
}

func (r *Registry) sweepLocked(now time.Time) int {
	removed := 0
	for token, e := range r.byTrace {
		if r.expired(e, now) {
			r.removeLocked(token, e)
			removed++
		}
	}
	return removed
}

func (r *Registry) removeLocked(token string, e *entry) {
	delete(r.byTrace, token)
	if e.contextID != "" && r.byContext[e.contextID] == token {
		delete(r.byContext, e.contextID)
	}
}

func (r *Registry) expired(e *entry, now time.Time) bool {
	return r.ttl > 0 && now.Sub(e.touchedAt) > r.ttl
}
