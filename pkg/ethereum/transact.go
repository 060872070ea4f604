package ethereum

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"math/big"

	ethereum "github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/vm"
	"go.uber.org/zap"

	"github.com/chainsafe/wallet-orchestrator/pkg/wallet"
)

// ErrSelectorNotRecognized reports that the deployed bytecode has no
// dispatcher entry for the called function.
var ErrSelectorNotRecognized = errors.New("function selector was not recognized and there's no fallback function")

// Call performs a read-only call and returns the single decoded output, or
// the list of outputs when the method returns several values.
func (c *Client) Call(ctx context.Context, target common.Address, functionID string, args ...any) (any, error) {
	contractABI, method, err := c.catalog.Method(target, functionID)
	if err != nil {
		return nil, err
	}

	data, err := contractABI.Pack(functionID, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to pack %s call: %w", functionID, err)
	}

	msg := ethereum.CallMsg{To: &target, Data: data}
	if acct := c.account(); acct != nil {
		msg.From = acct.address
	}

	ctx, cancel := c.withTimeout(ctx)
	defer cancel()

	out, err := c.backend.CallContract(ctx, msg, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to call %s on %s: %w", functionID, target.Hex(), err)
	}

	values, err := contractABI.Unpack(functionID, out)
	if err != nil {
		return nil, fmt.Errorf("failed to unpack %s result: %w", functionID, err)
	}

	switch len(method.Outputs) {
	case 0:
		return nil, nil
	case 1:
		return values[0], nil
	default:
		return values, nil
	}
}

// Send signs and submits a transaction calling functionID on target with the
// active account, returning the transaction hash.
func (c *Client) Send(ctx context.Context, target common.Address, functionID string, args []any, value *big.Int) (common.Hash, error) {
	acct := c.account()
	if acct == nil {
		return common.Hash{}, wallet.ErrNotConnected
	}

	contractABI, method, err := c.catalog.Method(target, functionID)
	if err != nil {
		return common.Hash{}, err
	}

	c.sendMu.Lock()
	defer c.sendMu.Unlock()

	opts, err := c.transactor(ctx, acct)
	if err != nil {
		return common.Hash{}, err
	}
	if value != nil && value.Sign() > 0 {
		opts.Value = new(big.Int).Set(value)
	}

	bound := bind.NewBoundContract(target, contractABI, c.backend, c.backend, c.backend)
	tx, err := bound.Transact(opts, functionID, args...)
	if err != nil {
		if c.selectorMissing(ctx, target, method.ID) {
			err = fmt.Errorf("%w: %v", ErrSelectorNotRecognized, err)
		}
		return common.Hash{}, fmt.Errorf("failed to submit %s transaction: %w", functionID, err)
	}

	c.logger.Info("Transaction submitted",
		zap.String("tx_hash", tx.Hash().Hex()),
		zap.String("function", functionID),
		zap.String("to", target.Hex()),
		zap.Uint64("nonce", tx.Nonce()))

	return tx.Hash(), nil
}

// transactor returns a signer for the active account.
func (c *Client) transactor(ctx context.Context, acct *account) (*bind.TransactOpts, error) {
	chainID := big.NewInt(c.config.ChainID)

	auth, err := bind.NewKeyedTransactorWithChainID(acct.key, chainID)
	if err != nil {
		return nil, fmt.Errorf("failed to create transactor: %w", err)
	}
	auth.Context = ctx

	nonce, err := c.backend.PendingNonceAt(ctx, acct.address)
	if err != nil {
		return nil, fmt.Errorf("failed to get nonce: %w", err)
	}
	auth.Nonce = new(big.Int).SetUint64(nonce)
	auth.GasLimit = c.config.GasLimit

	if c.config.MaxGasPrice != "" {
		maxGasPrice, ok := new(big.Int).SetString(c.config.MaxGasPrice, 10)
		if !ok {
			return nil, fmt.Errorf("invalid max gas price %q", c.config.MaxGasPrice)
		}

		gasPrice, err := c.backend.SuggestGasPrice(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to suggest gas price: %w", err)
		}

		if gasPrice.Cmp(maxGasPrice) > 0 {
			c.logger.Warn("Suggested gas price exceeds maximum",
				zap.String("suggested", gasPrice.String()),
				zap.String("max", maxGasPrice.String()))
			auth.GasPrice = maxGasPrice
		} else {
			auth.GasPrice = gasPrice
		}
	}

	return auth, nil
}

// selectorMissing reports whether the dispatcher in the code at target never
// pushes the selector. Lookup failures and empty code report false.
func (c *Client) selectorMissing(ctx context.Context, target common.Address, selector []byte) bool {
	code, err := c.backend.CodeAt(ctx, target, nil)
	if err != nil || len(code) == 0 {
		return false
	}
	return !containsSelector(code, selector)
}

// containsSelector looks for the push that loads selector. Compilers drop
// leading zero bytes, so 0x00abcdef is pushed with PUSH3 and an all-zero
// selector with PUSH0.
func containsSelector(code, selector []byte) bool {
	trimmed := bytes.TrimLeft(selector, "\x00")
	needle := make([]byte, 0, len(trimmed)+1)
	needle = append(needle, byte(vm.PUSH0)+byte(len(trimmed)))
	needle = append(needle, trimmed...)
	return bytes.Contains(code, needle)
}
