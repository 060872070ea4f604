// Package watcher refreshes the contract reader whenever the faucet emits a
// transfer event.
package watcher

import (
	"context"
	"fmt"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"go.uber.org/zap"

	"github.com/chainsafe/wallet-orchestrator/internal/metrics"
	"github.com/chainsafe/wallet-orchestrator/pkg/ethereum/contracts"
	"github.com/chainsafe/wallet-orchestrator/pkg/observe"
	"github.com/chainsafe/wallet-orchestrator/pkg/reader"
)

// Subscriber delivers contract logs until the returned function is called.
type Subscriber interface {
	Subscribe(ctx context.Context, target common.Address, eventID string, onLog func(types.Log)) (func(), error)
}

// Refresher is refreshed on every delivered event.
type Refresher interface {
	Refresh(ctx context.Context) reader.Snapshot
}

// DefaultEvents are the faucet events that change balances.
func DefaultEvents() []string {
	return []string{contracts.EventSendToken, contracts.EventReturnToken}
}

// Watcher owns the event subscriptions of one contract.
type Watcher struct {
	subscriber Subscriber
	refresher  Refresher
	target     common.Address
	events     []string
	logger     *zap.Logger
	recorder   observe.Recorder

	mu            sync.Mutex
	unsubscribers []func()
	cancel        context.CancelFunc
}

// New creates a watcher for events emitted by target. A nil events list means
// DefaultEvents.
func New(
	subscriber Subscriber,
	refresher Refresher,
	target common.Address,
	events []string,
	logger *zap.Logger,
	recorder observe.Recorder,
) *Watcher {
	if len(events) == 0 {
		events = DefaultEvents()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if recorder == nil {
		recorder = observe.Nop()
	}
	return &Watcher{
		subscriber: subscriber,
		refresher:  refresher,
		target:     target,
		events:     events,
		logger:     logger,
		recorder:   recorder,
	}
}

// Start subscribes to every event. It is a no-op when already started; when
// any subscription fails the ones already made are released.
func (w *Watcher) Start(ctx context.Context) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.cancel != nil {
		return nil
	}

	subCtx, cancel := context.WithCancel(ctx)
	unsubscribers := make([]func(), 0, len(w.events))
	for _, event := range w.events {
		event := event
		unsubscribe, err := w.subscriber.Subscribe(subCtx, w.target, event, func(l types.Log) {
			w.onLog(subCtx, event, l)
		})
		if err != nil {
			for _, u := range unsubscribers {
				u()
			}
			cancel()
			return fmt.Errorf("failed to subscribe to %s: %w", event, err)
		}
		unsubscribers = append(unsubscribers, unsubscribe)
	}

	w.unsubscribers = unsubscribers
	w.cancel = cancel

	w.logger.Info("Event watcher started",
		zap.String("contract", w.target.Hex()),
		zap.Strings("events", w.events))
	w.recorder.Record("watcher_started", map[string]any{"events": w.events})
	return nil
}

// Stop releases every subscription. Safe to call when not started.
func (w *Watcher) Stop() {
	w.mu.Lock()
	unsubscribers, cancel := w.unsubscribers, w.cancel
	w.unsubscribers, w.cancel = nil, nil
	w.mu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	for _, u := range unsubscribers {
		u()
	}

	w.logger.Info("Event watcher stopped", zap.String("contract", w.target.Hex()))
	w.recorder.Record("watcher_stopped", nil)
}

// Running reports whether subscriptions are active.
func (w *Watcher) Running() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.cancel != nil
}

func (w *Watcher) onLog(ctx context.Context, event string, l types.Log) {
	metrics.EventsReceived.WithLabelValues(event).Inc()
	w.logger.Debug("Contract event received",
		zap.String("event", event),
		zap.String("tx_hash", l.TxHash.Hex()),
		zap.Uint64("block", l.BlockNumber))
	w.recorder.Record("event_received", map[string]any{
		"event":   event,
		"tx_hash": l.TxHash.Hex(),
	})

	if ctx.Err() != nil {
		return
	}
	w.refresher.Refresh(ctx)
}
