package reader

import (
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"
)

// Field names a snapshot field, used as the key of per-field read errors.
type Field string

const (
	FieldTokenAddress        Field = "token_address"
	FieldDecimals            Field = "decimals"
	FieldName                Field = "name"
	FieldSymbol              Field = "symbol"
	FieldUserBalance         Field = "user_balance"
	FieldCounterpartyBalance Field = "counterparty_balance"
	FieldAmountAllowed       Field = "amount_allowed"
)

// Snapshot is the last published view of the faucet and its token. The
// counterparty is the faucet contract itself.
type Snapshot struct {
	Account      common.Address  `json:"account"`
	TokenAddress *common.Address `json:"token_address,omitempty"`
	Decimals     *uint8          `json:"decimals,omitempty"`
	Name         string          `json:"name,omitempty"`
	Symbol       string          `json:"symbol,omitempty"`

	UserBalance         *big.Int `json:"user_balance,omitempty"`
	CounterpartyBalance *big.Int `json:"counterparty_balance,omitempty"`
	AmountAllowed       *big.Int `json:"amount_allowed,omitempty"`

	UserBalanceFormatted         string `json:"user_balance_formatted"`
	CounterpartyBalanceFormatted string `json:"counterparty_balance_formatted"`
	AmountAllowedFormatted       string `json:"amount_allowed_formatted"`

	LastRefreshedAt time.Time        `json:"last_refreshed_at"`
	InFlight        bool             `json:"in_flight"`
	Errors          map[Field]string `json:"errors,omitempty"`
}

func emptySnapshot(account common.Address) Snapshot {
	return Snapshot{
		Account:                      account,
		UserBalanceFormatted:         "0",
		CounterpartyBalanceFormatted: "0",
		AmountAllowedFormatted:       "0",
	}
}

// clone returns a deep copy so callers cannot mutate published state.
func (s Snapshot) clone() Snapshot {
	out := s
	if s.TokenAddress != nil {
		addr := *s.TokenAddress
		out.TokenAddress = &addr
	}
	if s.Decimals != nil {
		d := *s.Decimals
		out.Decimals = &d
	}
	out.UserBalance = cloneInt(s.UserBalance)
	out.CounterpartyBalance = cloneInt(s.CounterpartyBalance)
	out.AmountAllowed = cloneInt(s.AmountAllowed)
	if s.Errors != nil {
		out.Errors = make(map[Field]string, len(s.Errors))
		for k, v := range s.Errors {
			out.Errors[k] = v
		}
	}
	return out
}

// HasToken reports whether the token address has been resolved.
func (s Snapshot) HasToken() bool {
	return s.TokenAddress != nil
}

func cloneInt(v *big.Int) *big.Int {
	if v == nil {
		return nil
	}
	return new(big.Int).Set(v)
}

// FormatUnits renders an integer token amount with the given number of
// decimals, trimming trailing zeros.
func FormatUnits(amount *big.Int, decimals uint8) string {
	if amount == nil {
		return "0"
	}
	return decimal.NewFromBigInt(amount, -int32(decimals)).String()
}

// ParseUnits converts a human amount such as "1.5" into the integer amount
// for the given number of decimals. Excess precision is truncated.
func ParseUnits(amount string, decimals uint8) (*big.Int, error) {
	d, err := decimal.NewFromString(amount)
	if err != nil {
		return nil, err
	}
	return d.Shift(int32(decimals)).Truncate(0).BigInt(), nil
}
