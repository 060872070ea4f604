// Package sbt reads and mints the soul-bound token of the connected account.
package sbt

import (
	"context"
	"errors"
	"fmt"
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

// nativeDecimals is the decimals of the chain's native currency.
const nativeDecimals = 18

var (
	// ErrAlreadyOwned is returned when minting for an account that holds a token.
	ErrAlreadyOwned = errors.New("account already owns a soul-bound token")
	// ErrPriceUnknown is returned when the mint price could not be read.
	ErrPriceUnknown = errors.New("mint price unavailable")
)

// StateSource exposes the current wallet connection.
type StateSource interface {
	State() wallet.ConnectionState
}

// Submitter sends transactions.
type Submitter interface {
	Submit(ctx context.Context, req orchestrator.Request) (*orchestrator.Record, error)
}

// Config holds the contract address and metadata defaults.
type Config struct {
	Contract     common.Address
	NamePrefix   string
	Description  string
	DefaultImage string
}

// Token is the token owned by the account.
type Token struct {
	ID       *big.Int `json:"id"`
	URI      string   `json:"uri,omitempty"`
	Metadata Metadata `json:"metadata"`
}

// Status is the token state of the connected account.
type Status struct {
	Contract           common.Address    `json:"contract"`
	Account            common.Address    `json:"account"`
	MintPrice          *big.Int          `json:"mint_price,omitempty"`
	MintPriceFormatted string            `json:"mint_price_formatted"`
	Balance            *big.Int          `json:"balance,omitempty"`
	Owned              *Token            `json:"owned,omitempty"`
	Errors             map[string]string `json:"errors,omitempty"`
}

// Service implements the soul-bound token flows.
type Service struct {
	caller    reader.Caller
	state     StateSource
	submitter Submitter
	cfg       Config
	logger    *zap.Logger
}

// NewService creates an SBT service.
func NewService(caller reader.Caller, state StateSource, submitter Submitter, cfg Config, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		caller:    caller,
		state:     state,
		submitter: submitter,
		cfg:       cfg,
		logger:    logger,
	}
}

func (s *Service) account() (common.Address, error) {
	state := s.state.State()
	if !state.Connected() || state.Address == nil {
		return common.Address{}, apperrors.ConnectionError(wallet.ErrNotConnected, "connect a wallet first")
	}
	return *state.Address, nil
}

// Status reads the mint price and the account's token. Individual read
// failures are reported in Status.Errors.
func (s *Service) Status(ctx context.Context) (Status, error) {
	account, err := s.account()
	if err != nil {
		return Status{}, err
	}
	return s.status(ctx, account), nil
}

func (s *Service) status(ctx context.Context, account common.Address) Status {
	st := Status{
		Contract:           s.cfg.Contract,
		Account:            account,
		MintPriceFormatted: "0",
		Errors:             make(map[string]string),
	}

	if price, err := s.readInt(ctx, contracts.FnMintPrice); err != nil {
		st.Errors[contracts.FnMintPrice] = err.Error()
	} else {
		st.MintPrice = price
		st.MintPriceFormatted = reader.FormatUnits(price, nativeDecimals)
	}

	balance, err := s.readInt(ctx, contracts.FnBalanceOf, account)
	if err != nil {
		st.Errors[contracts.FnBalanceOf] = err.Error()
		return st
	}
	st.Balance = balance
	if balance.Sign() == 0 {
		return st
	}

	id, err := s.readInt(ctx, contracts.FnTokenOfOwnerByIndex, account, big.NewInt(0))
	if err != nil {
		st.Errors[contracts.FnTokenOfOwnerByIndex] = err.Error()
		return st
	}
	token := &Token{ID: id, Metadata: s.defaultMetadata(id)}
	st.Owned = token

	raw, err := s.caller.Call(ctx, s.cfg.Contract, contracts.FnTokenURI, id)
	if err != nil {
		st.Errors[contracts.FnTokenURI] = err.Error()
		return st
	}
	uri, ok := raw.(string)
	if !ok {
		st.Errors[contracts.FnTokenURI] = fmt.Sprintf("unexpected type %T", raw)
		return st
	}
	token.URI = uri
	if m, ok := DecodeMetadata(uri); ok {
		token.Metadata = s.fillDefaults(m, id)
	}
	return st
}

// Mint mints a token with the given name and description for the connected
// account, paying the current mint price.
func (s *Service) Mint(ctx context.Context, name, description string) (*orchestrator.Record, error) {
	account, err := s.account()
	if err != nil {
		return nil, err
	}

	st := s.status(ctx, account)
	if st.Balance != nil && st.Balance.Sign() > 0 {
		return nil, apperrors.ValidationError(ErrAlreadyOwned, "this account already owns a soul-bound token")
	}
	if st.MintPrice == nil {
		return nil, apperrors.ReadError(fmt.Errorf("%w: %s", ErrPriceUnknown, st.Errors[contracts.FnMintPrice]), "could not read the mint price")
	}

	if name == "" {
		name = s.cfg.NamePrefix
	}
	if description == "" {
		description = s.cfg.Description
	}
	uri, err := EncodeMetadata(Metadata{Name: name, Description: description, Image: s.cfg.DefaultImage})
	if err != nil {
		return nil, apperrors.ValidationError(err, "invalid metadata")
	}

	s.logger.Info("Minting soul-bound token",
		zap.String("contract", s.cfg.Contract.Hex()),
		zap.String("account", account.Hex()),
		zap.String("price", st.MintPrice.String()))

	return s.submitter.Submit(ctx, orchestrator.Request{
		ID:          uuid.NewString(),
		Target:      s.cfg.Contract.Hex(),
		FunctionID:  contracts.FnMintWithPayment,
		Args:        []any{uri},
		NativeValue: st.MintPrice,
	})
}

func (s *Service) defaultMetadata(id *big.Int) Metadata {
	return Metadata{
		Name:        fmt.Sprintf("%s #%s", s.cfg.NamePrefix, id),
		Description: s.cfg.Description,
		Image:       s.cfg.DefaultImage,
	}
}

func (s *Service) fillDefaults(m Metadata, id *big.Int) Metadata {
	def := s.defaultMetadata(id)
	if m.Name == "" {
		m.Name = def.Name
	}
	if m.Description == "" {
		m.Description = def.Description
	}
	if m.Image == "" {
		m.Image = def.Image
	}
	return m
}

func (s *Service) readInt(ctx context.Context, fn string, args ...any) (*big.Int, error) {
	raw, err := s.caller.Call(ctx, s.cfg.Contract, fn, args...)
	if err != nil {
		return nil, err
	}
	v, ok := raw.(*big.Int)
	if !ok {
		return nil, fmt.Errorf("%s: unexpected type %T", fn, raw)
	}
	return v, nil
}
