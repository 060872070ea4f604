// Package session ties contract reading and event watching to the lifetime
// of the wallet connection.
package session

import (
	"context"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"

	"github.com/chainsafe/wallet-orchestrator/pkg/wallet"
)

// StateSource publishes connection state changes.
type StateSource interface {
	State() wallet.ConnectionState
	Subscribe(fn func(wallet.ConnectionState)) func()
}

// Reader is started for the connected account and stopped on disconnect.
type Reader interface {
	Start(account common.Address)
	Stop()
}

// Watcher holds event subscriptions while connected.
type Watcher interface {
	Start(ctx context.Context) error
	Stop()
}

// Binder starts the reader and watcher when the wallet connects and stops
// them on any other state.
type Binder struct {
	reader  Reader
	watcher Watcher
	logger  *zap.Logger

	ctx    context.Context
	cancel context.CancelFunc

	mu          sync.Mutex
	unsubscribe func()
	account     *common.Address
	closed      bool
}

// Bind subscribes to src and applies its current state immediately. The
// watcher's subscriptions live until ctx is done or Close is called.
func Bind(ctx context.Context, src StateSource, reader Reader, watcher Watcher, logger *zap.Logger) *Binder {
	if logger == nil {
		logger = zap.NewNop()
	}
	bctx, cancel := context.WithCancel(ctx)
	b := &Binder{
		reader:  reader,
		watcher: watcher,
		logger:  logger,
		ctx:     bctx,
		cancel:  cancel,
	}

	unsubscribe := src.Subscribe(b.apply)
	b.mu.Lock()
	b.unsubscribe = unsubscribe
	b.mu.Unlock()

	b.apply(src.State())
	return b
}

func (b *Binder) apply(state wallet.ConnectionState) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}

	if state.Connected() && state.Address != nil {
		if b.account != nil && *b.account == *state.Address {
			return
		}
		addr := *state.Address
		b.account = &addr
		b.reader.Start(addr)
		if b.watcher != nil {
			if err := b.watcher.Start(b.ctx); err != nil {
				// the interval refresh keeps the snapshot current without events
				b.logger.Warn("Failed to start event watcher", zap.Error(err))
			}
		}
		b.logger.Info("Session started", zap.String("account", addr.Hex()))
		return
	}

	if b.account == nil {
		return
	}
	b.stopLocked()
	b.logger.Info("Session ended", zap.String("status", string(state.Status)))
}

func (b *Binder) stopLocked() {
	if b.watcher != nil {
		b.watcher.Stop()
	}
	b.reader.Stop()
	b.account = nil
}

// Active reports whether a session is running.
func (b *Binder) Active() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.account != nil
}

// Close unsubscribes from state changes and stops the reader and watcher.
func (b *Binder) Close() {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return
	}
	b.closed = true
	unsubscribe := b.unsubscribe
	b.stopLocked()
	b.mu.Unlock()

	if unsubscribe != nil {
		unsubscribe()
	}
	b.cancel()
}
