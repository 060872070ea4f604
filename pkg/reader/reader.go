// Package reader keeps a coalesced, periodically refreshed view of the faucet
// and its token for the connected account.
package reader

import (
	"context"
	"fmt"
	"math/big"
	"strconv"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/chainsafe/wallet-orchestrator/internal/metrics"
	"github.com/chainsafe/wallet-orchestrator/pkg/ethereum/contracts"
	"github.com/chainsafe/wallet-orchestrator/pkg/observe"
	"github.com/chainsafe/wallet-orchestrator/pkg/schedule"
)

// Caller performs read-only contract calls.
type Caller interface {
	Call(ctx context.Context, target common.Address, functionID string, args ...any) (any, error)
}

// Functions are the contract function identifiers the reader calls.
type Functions struct {
	TokenContract string
	AmountAllowed string
	Decimals      string
	Name          string
	Symbol        string
	BalanceOf     string
}

// DefaultFunctions returns the faucet and ERC-20 function names.
func DefaultFunctions() Functions {
	return Functions{
		TokenContract: contracts.FnTokenContract,
		AmountAllowed: contracts.FnAmountAllowed,
		Decimals:      contracts.FnDecimals,
		Name:          contracts.FnName,
		Symbol:        contracts.FnSymbol,
		BalanceOf:     contracts.FnBalanceOf,
	}
}

// Config configures a Reader.
type Config struct {
	Faucet          common.Address
	RefreshInterval time.Duration
	FetchTimeout    time.Duration
	Functions       Functions
}

type settings struct {
	logger   *zap.Logger
	recorder observe.Recorder
	clock    schedule.Clock
}

// Option configures the Reader.
type Option func(*settings)

// WithLogger sets a custom logger for the reader.
func WithLogger(l *zap.Logger) Option {
	return func(s *settings) { s.logger = l }
}

// WithRecorder sets the observability recorder.
func WithRecorder(r observe.Recorder) Option {
	return func(s *settings) { s.recorder = r }
}

// WithClock replaces the system clock.
func WithClock(c schedule.Clock) Option {
	return func(s *settings) { s.clock = c }
}

func applyOptions(opts []Option) settings {
	s := settings{
		logger:   zap.NewNop(),
		recorder: observe.Nop(),
		clock:    schedule.System(),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(&s)
		}
	}
	return s
}

// Reader serializes contract reads: at most one refresh runs at a time and
// callers arriving during a refresh receive its result.
type Reader struct {
	caller   Caller
	cfg      Config
	logger   *zap.Logger
	recorder observe.Recorder
	clock    schedule.Clock

	group singleflight.Group

	mu      sync.RWMutex
	snap    Snapshot
	active  bool
	account common.Address
	runCtx  context.Context
	// gen changes on every Start and Stop; refreshes are shared only
	// within one generation.
	gen uint64

	// loopMu guards the refresh loop lifecycle.
	loopMu sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

// New creates an inactive reader.
func New(caller Caller, cfg Config, opts ...Option) *Reader {
	s := applyOptions(opts)
	if cfg.RefreshInterval <= 0 {
		cfg.RefreshInterval = 30 * time.Second
	}
	if cfg.FetchTimeout <= 0 {
		cfg.FetchTimeout = 10 * time.Second
	}
	if cfg.Functions == (Functions{}) {
		cfg.Functions = DefaultFunctions()
	}
	return &Reader{
		caller:   caller,
		cfg:      cfg,
		logger:   s.logger,
		recorder: s.recorder,
		clock:    s.clock,
		snap:     emptySnapshot(common.Address{}),
	}
}

// Faucet returns the faucet contract address.
func (r *Reader) Faucet() common.Address {
	return r.cfg.Faucet
}

// Snapshot returns a copy of the last published snapshot.
func (r *Reader) Snapshot() Snapshot {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.snap.clone()
}

// Active reports whether the reader is bound to an account.
func (r *Reader) Active() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.active
}

// Start binds the reader to account, refreshes immediately and then on every
// refresh interval. Starting again with the same account is a no-op; a new
// account resets the snapshot.
func (r *Reader) Start(account common.Address) {
	r.loopMu.Lock()
	defer r.loopMu.Unlock()

	if r.cancel != nil {
		r.mu.RLock()
		same := r.account == account
		r.mu.RUnlock()
		if same {
			return
		}
		r.stopLocked()
	}

	ctx, cancel := context.WithCancel(context.Background())

	r.mu.Lock()
	r.active = true
	r.account = account
	r.runCtx = ctx
	r.gen++
	if r.snap.Account != account {
		r.snap = emptySnapshot(account)
	}
	r.mu.Unlock()

	r.cancel = cancel
	r.done = make(chan struct{})
	ticker := r.clock.NewTicker(r.cfg.RefreshInterval)

	r.logger.Info("Contract reader started",
		zap.String("account", account.Hex()),
		zap.Duration("interval", r.cfg.RefreshInterval))
	r.recorder.Record("reader_started", map[string]any{"account": account.Hex()})

	go r.loop(ctx, ticker, r.done)
}

// Stop cancels the refresh loop and clears account data.
func (r *Reader) Stop() {
	r.loopMu.Lock()
	defer r.loopMu.Unlock()
	r.stopLocked()
}

func (r *Reader) stopLocked() {
	if r.cancel == nil {
		return
	}

	r.mu.Lock()
	r.active = false
	r.account = common.Address{}
	r.gen++
	r.snap = emptySnapshot(common.Address{})
	r.mu.Unlock()

	r.cancel()
	<-r.done
	r.cancel = nil
	r.done = nil

	r.logger.Info("Contract reader stopped")
	r.recorder.Record("reader_stopped", nil)
}

func (r *Reader) loop(ctx context.Context, ticker schedule.Ticker, done chan struct{}) {
	defer close(done)
	defer ticker.Stop()

	r.Refresh(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C():
			r.Refresh(ctx)
		}
	}
}

// Refresh re-reads every field and publishes the result. A call made while a
// refresh for the same binding is running waits for that refresh instead of
// starting another. A result fetched for an account that has since been
// unbound is never returned or published. When
// the reader is inactive the current snapshot is returned unchanged. Read
// failures are recorded in Snapshot.Errors; Refresh never fails.
func (r *Reader) Refresh(ctx context.Context) Snapshot {
	r.mu.RLock()
	active, account, runCtx, gen := r.active, r.account, r.runCtx, r.gen
	r.mu.RUnlock()

	if !active {
		metrics.RefreshesTotal.WithLabelValues("skipped").Inc()
		r.recorder.Record("refresh_skipped", nil)
		return r.Snapshot()
	}

	key := strconv.FormatUint(gen, 10) + ":" + account.Hex()
	ch := r.group.DoChan(key, func() (any, error) {
		return r.refresh(runCtx, account, gen), nil
	})

	select {
	case res := <-ch:
		snap, _ := res.Val.(Snapshot)
		return snap.clone()
	case <-ctx.Done():
		return r.Snapshot()
	}
}

func (r *Reader) refresh(runCtx context.Context, account common.Address, gen uint64) Snapshot {
	started := time.Now()
	ctx, cancel := context.WithTimeout(runCtx, r.cfg.FetchTimeout)
	defer cancel()

	r.mu.Lock()
	if r.gen != gen {
		current := r.snap.clone()
		r.mu.Unlock()
		return current
	}
	r.snap.InFlight = true
	next := r.snap.clone()
	r.mu.Unlock()

	errs := make(map[Field]string)
	fail := func(field Field, err error) {
		errs[field] = err.Error()
		metrics.ReadErrors.WithLabelValues(string(field)).Inc()
		r.logger.Warn("Contract read failed", zap.String("field", string(field)), zap.Error(err))
	}

	token, err := r.readAddress(ctx, r.cfg.Faucet, r.cfg.Functions.TokenContract)
	if err != nil {
		// Dependent fields keep their previous values.
		fail(FieldTokenAddress, err)
	} else {
		next.TokenAddress = &token

		if v, err := r.readUint8(ctx, token, r.cfg.Functions.Decimals); err != nil {
			fail(FieldDecimals, err)
		} else {
			next.Decimals = &v
		}
		if v, err := r.readString(ctx, token, r.cfg.Functions.Name); err != nil {
			fail(FieldName, err)
		} else {
			next.Name = v
		}
		if v, err := r.readString(ctx, token, r.cfg.Functions.Symbol); err != nil {
			fail(FieldSymbol, err)
		} else {
			next.Symbol = v
		}
		if account != (common.Address{}) {
			if v, err := r.readInt(ctx, token, r.cfg.Functions.BalanceOf, account); err != nil {
				fail(FieldUserBalance, err)
			} else {
				next.UserBalance = v
			}
		}
		if v, err := r.readInt(ctx, token, r.cfg.Functions.BalanceOf, r.cfg.Faucet); err != nil {
			fail(FieldCounterpartyBalance, err)
		} else {
			next.CounterpartyBalance = v
		}
	}

	if v, err := r.readInt(ctx, r.cfg.Faucet, r.cfg.Functions.AmountAllowed); err != nil {
		fail(FieldAmountAllowed, err)
	} else {
		next.AmountAllowed = v
	}

	next.UserBalanceFormatted = r.format(next.UserBalance, next.Decimals, FieldUserBalance, errs)
	next.CounterpartyBalanceFormatted = r.format(next.CounterpartyBalance, next.Decimals, FieldCounterpartyBalance, errs)
	next.AmountAllowedFormatted = r.format(next.AmountAllowed, next.Decimals, FieldAmountAllowed, errs)

	next.Account = account
	next.Errors = nil
	if len(errs) > 0 {
		next.Errors = errs
	}
	next.LastRefreshedAt = r.clock.Now()
	next.InFlight = false

	r.mu.Lock()
	if r.gen != gen {
		// Unbound while fetching; the result belongs to a stale account.
		current := r.snap.clone()
		r.mu.Unlock()
		r.recorder.Record("refresh_discarded", map[string]any{"account": account.Hex()})
		return current
	}
	r.snap = next.clone()
	r.mu.Unlock()

	outcome := "ok"
	if _, ok := errs[FieldTokenAddress]; ok {
		outcome = "failed"
	} else if len(errs) > 0 {
		outcome = "partial"
	}
	metrics.RefreshesTotal.WithLabelValues(outcome).Inc()
	metrics.RefreshDuration.Observe(time.Since(started).Seconds())
	r.recorder.Record("refresh_completed", map[string]any{
		"account": account.Hex(),
		"outcome": outcome,
		"errors":  len(errs),
	})

	return next
}

// format renders value with decimals; without decimals the formatted field
// falls back to "0" and the failure is recorded.
func (r *Reader) format(value *big.Int, decimals *uint8, field Field, errs map[Field]string) string {
	if value == nil {
		return "0"
	}
	if decimals == nil {
		if _, exists := errs[field]; !exists {
			errs[field] = "cannot format amount: token decimals unavailable"
		}
		return "0"
	}
	return FormatUnits(value, *decimals)
}

func (r *Reader) readAddress(ctx context.Context, target common.Address, fn string) (common.Address, error) {
	v, err := r.caller.Call(ctx, target, fn)
	if err != nil {
		return common.Address{}, err
	}
	addr, ok := v.(common.Address)
	if !ok {
		return common.Address{}, fmt.Errorf("unexpected %s result type %T", fn, v)
	}
	if addr == (common.Address{}) {
		return common.Address{}, fmt.Errorf("%s returned the zero address", fn)
	}
	return addr, nil
}

func (r *Reader) readUint8(ctx context.Context, target common.Address, fn string) (uint8, error) {
	v, err := r.caller.Call(ctx, target, fn)
	if err != nil {
		return 0, err
	}
	d, ok := v.(uint8)
	if !ok {
		return 0, fmt.Errorf("unexpected %s result type %T", fn, v)
	}
	return d, nil
}

func (r *Reader) readString(ctx context.Context, target common.Address, fn string) (string, error) {
	v, err := r.caller.Call(ctx, target, fn)
	if err != nil {
		return "", err
	}
	s, ok := v.(string)
	if !ok {
		return "", fmt.Errorf("unexpected %s result type %T", fn, v)
	}
	return s, nil
}

func (r *Reader) readInt(ctx context.Context, target common.Address, fn string, args ...any) (*big.Int, error) {
	v, err := r.caller.Call(ctx, target, fn, args...)
	if err != nil {
		return nil, err
	}
	n, ok := v.(*big.Int)
	if !ok || n == nil {
		return nil, fmt.Errorf("unexpected %s result type %T", fn, v)
	}
	return new(big.Int).Set(n), nil
}
