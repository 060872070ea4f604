package contracts

import (
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
)

var (
	// ErrUnknownMethod is returned when no ABI in the catalog declares the method.
	ErrUnknownMethod = errors.New("unknown contract method")
	// ErrUnknownEvent is returned when no ABI in the catalog declares the event.
	ErrUnknownEvent = errors.New("unknown contract event")
)

// Parse parses an ABI JSON definition.
func Parse(definition string) (abi.ABI, error) {
	parsed, err := abi.JSON(strings.NewReader(definition))
	if err != nil {
		return abi.ABI{}, fmt.Errorf("failed to parse ABI: %w", err)
	}
	return parsed, nil
}

// MustParse is Parse for package-level definitions known to be valid.
func MustParse(definition string) abi.ABI {
	parsed, err := Parse(definition)
	if err != nil {
		panic(err)
	}
	return parsed
}

// Catalog maps contract addresses to ABIs. Addresses that were never
// registered resolve against the fallback ABI, which covers token contracts
// whose address is only learned at runtime.
type Catalog struct {
	mu       sync.RWMutex
	byAddr   map[common.Address]abi.ABI
	fallback abi.ABI
}

// NewCatalog creates a catalog with the given fallback ABI.
func NewCatalog(fallback abi.ABI) *Catalog {
	return &Catalog{
		byAddr:   make(map[common.Address]abi.ABI),
		fallback: fallback,
	}
}

// NewDefaultCatalog registers the faucet and, when set, the SBT contract, and
// falls back to ERC-20 for everything else.
func NewDefaultCatalog(faucet, sbt common.Address) *Catalog {
	c := NewCatalog(MustParse(ERC20ABI))
	c.Register(faucet, MustParse(FaucetABI))
	if sbt != (common.Address{}) {
		c.Register(sbt, MustParse(SBTABI))
	}
	return c
}

// Register binds an ABI to a contract address.
func (c *Catalog) Register(addr common.Address, contractABI abi.ABI) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.byAddr[addr] = contractABI
}

// ABI returns the ABI that applies to addr.
func (c *Catalog) ABI(addr common.Address) abi.ABI {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if a, ok := c.byAddr[addr]; ok {
		return a
	}
	return c.fallback
}

// Method resolves a method by name for the contract at addr.
func (c *Catalog) Method(addr common.Address, name string) (abi.ABI, abi.Method, error) {
	contractABI := c.ABI(addr)
	method, ok := contractABI.Methods[name]
	if !ok {
		return abi.ABI{}, abi.Method{}, fmt.Errorf("%w: %s on %s", ErrUnknownMethod, name, addr.Hex())
	}
	return contractABI, method, nil
}

// Event resolves an event by name for the contract at addr.
func (c *Catalog) Event(addr common.Address, name string) (abi.Event, error) {
	contractABI := c.ABI(addr)
	event, ok := contractABI.Events[name]
	if !ok {
		return abi.Event{}, fmt.Errorf("%w: %s on %s", ErrUnknownEvent, name, addr.Hex())
	}
	return event, nil
}
