package orchestrator

import (
	"context"
	"sync/atomic"
)

// Token is the cancellation flag of one run. Once stopped it stays stopped.
type Token struct {
	ctx     context.Context
	cancel  context.CancelFunc
	stopped atomic.Bool
}

// NewToken returns a token that is also stopped when parent is done.
func NewToken(parent context.Context) *Token {
	ctx, cancel := context.WithCancel(parent)
	t := &Token{ctx: ctx, cancel: cancel}
	context.AfterFunc(ctx, func() { t.stopped.Store(true) })
	return t
}

// Stop sets the token. Safe to call from any goroutine, any number of times.
func (t *Token) Stop() {
	t.stopped.Store(true)
	t.cancel()
}

// Cancelled reports whether the token has been set.
func (t *Token) Cancelled() bool {
	return t.stopped.Load()
}

// Context is done once the token is set. Every blocking call of the run
// is bound to it.
func (t *Token) Context() context.Context {
	return t.ctx
}
