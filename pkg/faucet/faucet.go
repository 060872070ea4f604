// Package faucet claims tokens from the faucet contract and returns them.
package faucet

import (
	"context"
	"errors"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"
	"go.uber.org/zap"

	apperrors "github.com/chainsafe/wallet-orchestrator/pkg/app/errors"
	"github.com/chainsafe/wallet-orchestrator/pkg/ethereum/contracts"
	"github.com/chainsafe/wallet-orchestrator/pkg/orchestrator"
	"github.com/chainsafe/wallet-orchestrator/pkg/reader"
	"github.com/chainsafe/wallet-orchestrator/pkg/wallet"
)

var (
	// ErrTokenUnknown is returned before the faucet's token address is loaded.
	ErrTokenUnknown = errors.New("token address not resolved")
	// ErrNothingToReturn is returned when the user holds no tokens.
	ErrNothingToReturn = errors.New("no tokens to return")
)

// StateSource exposes the current wallet connection.
type StateSource interface {
	State() wallet.ConnectionState
}

// SnapshotSource exposes the reader's last snapshot.
type SnapshotSource interface {
	Snapshot() reader.Snapshot
	Faucet() common.Address
}

// Submitter sends transactions.
type Submitter interface {
	Submit(ctx context.Context, req orchestrator.Request) (*orchestrator.Record, error)
	SubmitPipeline(ctx context.Context, steps []orchestrator.Request) (*orchestrator.Record, error)
}

// Service implements the faucet claim and return flows.
type Service struct {
	state     StateSource
	snapshots SnapshotSource
	submitter Submitter
	logger    *zap.Logger
}

// NewService creates a faucet service.
func NewService(state StateSource, snapshots SnapshotSource, submitter Submitter, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		state:     state,
		snapshots: snapshots,
		submitter: submitter,
		logger:    logger,
	}
}

// Snapshot returns the last reader snapshot.
func (s *Service) Snapshot() reader.Snapshot {
	return s.snapshots.Snapshot()
}

func (s *Service) ready() (wallet.ConnectionState, reader.Snapshot, error) {
	state := s.state.State()
	if !state.Connected() {
		return state, reader.Snapshot{}, apperrors.ConnectionError(wallet.ErrNotConnected, "connect a wallet first")
	}
	snap := s.snapshots.Snapshot()
	if !snap.HasToken() {
		return state, snap, apperrors.ValidationError(ErrTokenUnknown, "token contract address is not available")
	}
	return state, snap, nil
}

// Claim requests tokens for recipient, or for the connected account when
// recipient is empty. Faucets without requestTokensTo fall back to
// requestTokens, which always pays the sender.
func (s *Service) Claim(ctx context.Context, recipient string) (*orchestrator.Record, error) {
	state, _, err := s.ready()
	if err != nil {
		return nil, err
	}
	if recipient == "" {
		recipient = state.Address.Hex()
	}

	faucet := s.snapshots.Faucet().Hex()
	s.logger.Info("Claiming faucet tokens",
		zap.String("faucet", faucet),
		zap.String("recipient", recipient))

	return s.submitter.Submit(ctx, orchestrator.Request{
		ID:         uuid.NewString(),
		Target:     faucet,
		FunctionID: contracts.FnRequestTokensTo,
		Args:       []any{orchestrator.Address(recipient)},
		Fallbacks:  []orchestrator.Call{{FunctionID: contracts.FnRequestTokens}},
	})
}

// Return approves the faucet for the whole user balance and then calls
// returnTokens. A failed return leaves the approval in place.
func (s *Service) Return(ctx context.Context) (*orchestrator.Record, error) {
	_, snap, err := s.ready()
	if err != nil {
		return nil, err
	}
	balance := snap.UserBalance
	if balance == nil || balance.Sign() <= 0 {
		return nil, apperrors.ValidationError(ErrNothingToReturn, "you have no tokens to return")
	}
	balance = new(big.Int).Set(balance)

	faucet := s.snapshots.Faucet().Hex()
	s.logger.Info("Returning faucet tokens",
		zap.String("faucet", faucet),
		zap.String("token", snap.TokenAddress.Hex()),
		zap.String("amount", balance.String()))

	return s.submitter.SubmitPipeline(ctx, []orchestrator.Request{
		{
			ID:               uuid.NewString(),
			Target:           snap.TokenAddress.Hex(),
			FunctionID:       contracts.FnApprove,
			Args:             []any{orchestrator.Address(faucet), balance},
			AvailableBalance: balance,
		},
		{
			ID:         uuid.NewString(),
			Target:     faucet,
			FunctionID: contracts.FnReturnTokens,
		},
	})
}
