// Package orchestrator submits contract transactions, retries on fallback
// functions the contract does not recognise, and tracks confirmation by
// polling the contract reader.
package orchestrator

import (
	"context"
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/chainsafe/wallet-orchestrator/internal/metrics"
	apperrors "github.com/chainsafe/wallet-orchestrator/pkg/app/errors"
	"github.com/chainsafe/wallet-orchestrator/pkg/classifier"
	"github.com/chainsafe/wallet-orchestrator/pkg/observe"
	"github.com/chainsafe/wallet-orchestrator/pkg/schedule"
)

// Sender submits state-changing contract calls.
type Sender interface {
	Send(ctx context.Context, target common.Address, functionID string, args []any, value *big.Int) (common.Hash, error)
}

// Refresher is polled while a submitted transaction is being confirmed.
type Refresher interface {
	Refresh(ctx context.Context)
}

// RefresherFunc adapts a function to Refresher.
type RefresherFunc func(ctx context.Context)

func (f RefresherFunc) Refresh(ctx context.Context) { f(ctx) }

// Config holds the confirmation poll policy.
type Config struct {
	PollInterval time.Duration
	MaxPolls     int
}

const (
	defaultPollInterval = 2 * time.Second
	defaultMaxPolls     = 5
)

type settings struct {
	logger   *zap.Logger
	recorder observe.Recorder
	clock    schedule.Clock
}

// Option configures the Orchestrator.
type Option func(*settings)

// WithLogger sets a custom logger for the orchestrator.
func WithLogger(l *zap.Logger) Option {
	return func(s *settings) { s.logger = l }
}

// WithRecorder sets the observability recorder.
func WithRecorder(r observe.Recorder) Option {
	return func(s *settings) { s.recorder = r }
}

// WithClock replaces the system clock used for confirmation polling.
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

// Orchestrator submits requests one at a time per call; it keeps no state
// between submissions.
type Orchestrator struct {
	sender    Sender
	refresher Refresher
	cfg       Config
	logger    *zap.Logger
	recorder  observe.Recorder
	clock     schedule.Clock
}

// New creates an Orchestrator. A zero PollInterval or MaxPolls falls back to
// 2s and 5 polls.
func New(sender Sender, refresher Refresher, cfg Config, opts ...Option) *Orchestrator {
	s := applyOptions(opts)
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = defaultPollInterval
	}
	if cfg.MaxPolls <= 0 {
		cfg.MaxPolls = defaultMaxPolls
	}
	if refresher == nil {
		refresher = RefresherFunc(func(context.Context) {})
	}
	return &Orchestrator{
		sender:    sender,
		refresher: refresher,
		cfg:       cfg,
		logger:    s.logger,
		recorder:  s.recorder,
		clock:     s.clock,
	}
}

type prepared struct {
	req    Request
	target common.Address
	calls  []Call
}

func prepare(req Request) (prepared, error) {
	if !ValidAddress(req.Target) {
		return prepared{}, apperrors.ValidationError(
			fmt.Errorf("%w: target %q", ErrInvalidAddress, req.Target), "invalid target address")
	}
	if req.AvailableBalance != nil && req.AvailableBalance.Sign() <= 0 {
		return prepared{}, apperrors.ValidationError(ErrZeroBalance, "available balance must be greater than zero")
	}

	seen := make(map[string]struct{})
	calls := req.calls()
	out := make([]Call, 0, len(calls))
	for _, call := range calls {
		if call.FunctionID == "" {
			return prepared{}, apperrors.ValidationError(ErrEmptyFunction, "function identifier is required")
		}
		if _, dup := seen[call.FunctionID]; dup {
			return prepared{}, apperrors.ValidationError(
				fmt.Errorf("%w: %s", ErrDuplicateFunction, call.FunctionID), "fallback chain repeats a function")
		}
		seen[call.FunctionID] = struct{}{}

		args, err := convertArgs(call.Args)
		if err != nil {
			return prepared{}, apperrors.ValidationError(err, "invalid address argument")
		}
		out = append(out, Call{FunctionID: call.FunctionID, Args: args})
	}

	return prepared{req: req, target: common.HexToAddress(req.Target), calls: out}, nil
}

func convertArgs(args []any) ([]any, error) {
	out := make([]any, len(args))
	for i, arg := range args {
		addr, ok := arg.(Address)
		if !ok {
			out[i] = arg
			continue
		}
		if !ValidAddress(string(addr)) {
			return nil, fmt.Errorf("%w: argument %d %q", ErrInvalidAddress, i, string(addr))
		}
		out[i] = common.HexToAddress(string(addr))
	}
	return out, nil
}

// Submit validates req, sends it and polls for confirmation. Validation
// failures return a nil record and never reach the chain. Send failures
// return the failed record together with a submission error.
func (o *Orchestrator) Submit(ctx context.Context, req Request) (*Record, error) {
	p, err := prepare(req)
	if err != nil {
		o.recorder.Record("tx_rejected", map[string]any{"request_id": req.ID, "error": err.Error()})
		return nil, err
	}
	return o.submit(ctx, p)
}

// SubmitPipeline runs steps in order, starting each one only after the
// previous one is confirmed. The first failure aborts the remaining steps.
// Completed steps are not compensated.
func (o *Orchestrator) SubmitPipeline(ctx context.Context, steps []Request) (*Record, error) {
	if len(steps) == 0 {
		return nil, apperrors.ValidationError(ErrEmptyPipeline, "pipeline has no steps")
	}

	all := make([]prepared, 0, len(steps))
	for i, step := range steps {
		p, err := prepare(step)
		if err != nil {
			o.recorder.Record("pipeline_rejected", map[string]any{"step": i, "error": err.Error()})
			return nil, fmt.Errorf("step %d: %w", i, err)
		}
		all = append(all, p)
	}

	pipeline := &Record{
		ID:          uuid.NewString(),
		Status:      StatusSubmitted,
		SubmittedAt: o.clock.Now(),
	}
	o.logger.Info("Starting transaction pipeline",
		zap.String("pipeline_id", pipeline.ID),
		zap.Int("steps", len(all)))

	for i, p := range all {
		rec, err := o.submit(ctx, p)
		pipeline.Steps = append(pipeline.Steps, rec)
		pipeline.Attempts += rec.Attempts
		pipeline.Polls += rec.Polls
		pipeline.FunctionUsed = rec.FunctionUsed
		pipeline.SubmissionHash = rec.SubmissionHash
		if err != nil {
			pipeline.Status = StatusFailed
			pipeline.Error = rec.Error
			pipeline.FinishedAt = o.clock.Now()
			o.logger.Warn("Transaction pipeline aborted",
				zap.String("pipeline_id", pipeline.ID),
				zap.Int("failed_step", i),
				zap.Int("remaining", len(all)-i-1))
			o.recorder.Record("pipeline_failed", map[string]any{
				"pipeline_id": pipeline.ID,
				"step":        i,
				"kind":        string(rec.Error.Kind),
			})
			return pipeline, err
		}
		pipeline.Assumed = pipeline.Assumed || rec.Assumed
	}

	pipeline.Status = StatusConfirmed
	pipeline.FinishedAt = o.clock.Now()
	o.recorder.Record("pipeline_confirmed", map[string]any{
		"pipeline_id": pipeline.ID,
		"steps":       len(all),
	})
	return pipeline, nil
}

func (o *Orchestrator) submit(ctx context.Context, p prepared) (*Record, error) {
	rec := &Record{
		ID:          uuid.NewString(),
		RequestID:   p.req.ID,
		SubmittedAt: o.clock.Now(),
	}

	o.logger.Info("Submitting transaction",
		zap.String("record_id", rec.ID),
		zap.String("target", p.target.Hex()),
		zap.String("function", p.calls[0].FunctionID),
		zap.Int("fallbacks", len(p.calls)-1))
	o.recorder.Record("tx_intent", map[string]any{
		"record_id": rec.ID,
		"target":    p.target.Hex(),
		"function":  p.calls[0].FunctionID,
	})

	for i, call := range p.calls {
		rec.Attempts++
		hash, err := o.sender.Send(ctx, p.target, call.FunctionID, call.Args, p.req.NativeValue)
		if err == nil {
			rec.SubmissionHash = &hash
			rec.FunctionUsed = call.FunctionID
			o.transition(rec, StatusSubmitted, map[string]any{"tx_hash": hash.Hex()})
			o.confirm(ctx, rec)
			return rec, nil
		}

		kind := classifier.ClassifyError(err)
		if kind == classifier.SelectorNotRecognized && i+1 < len(p.calls) {
			next := p.calls[i+1].FunctionID
			o.logger.Info("Function not recognized, trying fallback",
				zap.String("record_id", rec.ID),
				zap.String("function", call.FunctionID),
				zap.String("fallback", next))
			metrics.TransactionFallbacks.WithLabelValues(call.FunctionID, next).Inc()
			o.recorder.Record("tx_fallback", map[string]any{
				"record_id": rec.ID,
				"from":      call.FunctionID,
				"to":        next,
			})
			continue
		}
		return rec, o.fail(rec, call.FunctionID, kind, err)
	}

	// unreachable: the last call either succeeds or fails above
	return rec, o.fail(rec, p.calls[len(p.calls)-1].FunctionID, classifier.Unknown, ErrEmptyFunction)
}

func (o *Orchestrator) fail(rec *Record, functionID string, kind classifier.Kind, err error) error {
	rec.FunctionUsed = functionID
	rec.Error = &ClassifiedError{
		Kind:       kind,
		FunctionID: functionID,
		Message:    classifier.Describe(err.Error()),
		Err:        err,
	}
	rec.FinishedAt = o.clock.Now()
	metrics.ErrorsTotal.WithLabelValues("orchestrator", string(kind)).Inc()
	o.logger.Warn("Transaction failed",
		zap.String("record_id", rec.ID),
		zap.String("function", functionID),
		zap.String("kind", string(kind)),
		zap.Error(err))
	o.transition(rec, StatusFailed, map[string]any{"kind": string(kind), "error": err.Error()})
	return apperrors.SubmissionError(rec.Error, rec.Error.Message)
}

// confirm polls the refresher until MaxPolls is reached. Exhausting the polls
// or cancellation finalizes the record as confirmed with Assumed set: there
// is no receipt check.
func (o *Orchestrator) confirm(ctx context.Context, rec *Record) {
	o.transition(rec, StatusConfirmingPoll, nil)

	ticker := o.clock.NewTicker(o.cfg.PollInterval)
	defer ticker.Stop()

	cancelled := false
poll:
	for rec.Polls < o.cfg.MaxPolls {
		select {
		case <-ctx.Done():
			cancelled = true
			break poll
		case <-ticker.C():
			rec.Polls++
			o.refresher.Refresh(ctx)
			o.recorder.Record("tx_poll", map[string]any{
				"record_id": rec.ID,
				"poll":      rec.Polls,
			})
		}
	}

	rec.Assumed = true
	rec.FinishedAt = o.clock.Now()
	metrics.ConfirmationPolls.Observe(float64(rec.Polls))
	details := map[string]any{
		"assumed": true,
		"polls":   rec.Polls,
	}
	if cancelled {
		details["cancelled"] = true
		o.logger.Info("Confirmation polling cancelled", zap.String("record_id", rec.ID), zap.Int("polls", rec.Polls))
	}
	o.transition(rec, StatusConfirmed, details)
}

func (o *Orchestrator) transition(rec *Record, status Status, details map[string]any) {
	rec.Status = status
	metrics.TransactionsTotal.WithLabelValues(rec.FunctionUsed, string(status)).Inc()
	if details == nil {
		details = map[string]any{}
	}
	details["record_id"] = rec.ID
	details["function"] = rec.FunctionUsed
	details["attempts"] = rec.Attempts
	o.recorder.Record("tx_"+string(status), details)
	if status == StatusConfirmed {
		o.logger.Info("Transaction confirmed",
			zap.String("record_id", rec.ID),
			zap.String("function", rec.FunctionUsed),
			zap.Int("polls", rec.Polls),
			zap.Bool("assumed", rec.Assumed))
	}
}
