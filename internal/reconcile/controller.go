// Package reconcile swaps the active record store between the local
// device scope and a signed-in user's remote scope.
package reconcile

import (
	"context"
	"fmt"
	"log"
	"sync"

	"decisio/api/internal/auth"
	"decisio/api/internal/decision"
	"decisio/api/internal/store"
)

// Sink receives the authoritative record list whenever the scope
// changes. ReplaceAll must swap the list wholesale, never merge.
type Sink interface {
	ReplaceAll(scope store.Scope, records []decision.Record)
}

// Token captures the scope at the start of a long-running operation.
// Writes made against a stale token must be discarded.
type Token struct {
	Backend store.Backend
	OwnerID string
	Scope   store.Scope
	epoch   uint64
}

// Controller decides which backend owns reads and writes. The local
// scope is authoritative until a remote load succeeds; a failed
// sign-in load leaves the local scope untouched.
type Controller struct {
	mu      sync.Mutex
	local   store.Backend
	remote  store.Backend
	sinks   []Sink
	scope   store.Scope
	ownerID string
	epoch   uint64
}

func New(local, remote store.Backend) *Controller {
	return &Controller{local: local, remote: remote, scope: store.ScopeLocal}
}

// Attach wires a sink that receives scope changes. Every attached sink
// sees every wholesale replacement. Must be called before Bootstrap.
func (c *Controller) Attach(sink Sink) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sinks = append(c.sinks, sink)
}

func (c *Controller) snapshotSinks() []Sink {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]Sink(nil), c.sinks...)
}

func (c *Controller) replaceAll(scope store.Scope, records []decision.Record) {
	for _, sink := range c.snapshotSinks() {
		sink.ReplaceAll(scope, records)
	}
}

// Scope reports the currently active scope.
func (c *Controller) Scope() store.Scope {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.scope
}

// OwnerID reports the signed-in user ID, empty in the local scope.
func (c *Controller) OwnerID() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.ownerID
}

// Capture snapshots the active backend for an operation that will
// write later. Validate with Valid before applying the write.
func (c *Controller) Capture() Token {
	c.mu.Lock()
	defer c.mu.Unlock()
	return Token{Backend: c.activeLocked(), OwnerID: c.ownerID, Scope: c.scope, epoch: c.epoch}
}

// Valid reports whether the scope is unchanged since the token was
// captured.
func (c *Controller) Valid(t Token) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return t.epoch == c.epoch
}

func (c *Controller) activeLocked() store.Backend {
	if c.scope == store.ScopeUser {
		return c.remote
	}
	return c.local
}

// Bootstrap loads the local record list into the attached sinks at
// startup.
func (c *Controller) Bootstrap(ctx context.Context) error {
	records, err := c.local.LoadRecords(ctx, "")
	if err != nil {
		return fmt.Errorf("load local records: %w", err)
	}
	c.replaceAll(store.ScopeLocal, records)
	return nil
}

// SignIn loads the user's remote records and, only on success, makes
// the remote scope active. On failure the local scope stays
// authoritative and the error is returned.
func (c *Controller) SignIn(ctx context.Context, account auth.Account) error {
	records, err := c.remote.LoadRecords(ctx, account.UserID)
	if err != nil {
		return fmt.Errorf("load remote records: %w", err)
	}

	c.mu.Lock()
	c.epoch++
	c.scope = store.ScopeUser
	c.ownerID = account.UserID
	c.mu.Unlock()

	c.replaceAll(store.ScopeUser, records)
	return nil
}

// SignOut always returns to the local scope, then reloads the local
// record list.
func (c *Controller) SignOut(ctx context.Context) error {
	c.mu.Lock()
	c.epoch++
	c.scope = store.ScopeLocal
	c.ownerID = ""
	c.mu.Unlock()

	records, err := c.local.LoadRecords(ctx, "")
	if err != nil {
		c.replaceAll(store.ScopeLocal, nil)
		return fmt.Errorf("load local records: %w", err)
	}
	c.replaceAll(store.ScopeLocal, records)
	return nil
}

// Run consumes auth events until the context ends or the channel
// closes. Scope-switch failures are logged and leave the previous
// scope active.
func (c *Controller) Run(ctx context.Context, events <-chan auth.Event) {
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-events:
			if !ok {
				return
			}
			var err error
			if ev.Account != nil {
				err = c.SignIn(ctx, *ev.Account)
			} else {
				err = c.SignOut(ctx)
			}
			if err != nil {
				log.Printf(`{"component":"reconcile","error":%q}`, err.Error())
			}
		}
	}
}
