// Package ethereum implements the wallet provider on top of a go-ethereum
// JSON-RPC client with locally held keys.
package ethereum

import (
	"context"
	"crypto/ecdsa"
	"fmt"
	"math/big"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/ethclient"
	"go.uber.org/zap"

	"github.com/chainsafe/wallet-orchestrator/pkg/config"
	"github.com/chainsafe/wallet-orchestrator/pkg/ethereum/contracts"
	"github.com/chainsafe/wallet-orchestrator/pkg/wallet"
)

// Backend is the subset of ethclient.Client the provider needs.
type Backend interface {
	bind.ContractBackend
	ChainID(ctx context.Context) (*big.Int, error)
	BlockNumber(ctx context.Context) (uint64, error)
}

type account struct {
	connectorID string
	key         *ecdsa.PrivateKey
	address     common.Address
}

// Client represents an Ethereum wallet provider. It holds at most one active
// account, selected by Connect.
type Client struct {
	config     *config.EthereumConfig
	backend    Backend
	wsBackend  Backend
	closers    []func()
	catalog    *contracts.Catalog
	connectors []config.ConnectorConfig
	logger     *zap.Logger

	mu     sync.RWMutex
	active *account

	// sendMu serializes nonce allocation for outgoing transactions.
	sendMu sync.Mutex
}

// NewClient dials the configured RPC endpoint and, when configured, the
// websocket endpoint used for log subscriptions.
func NewClient(
	cfg *config.EthereumConfig,
	connectors []config.ConnectorConfig,
	catalog *contracts.Catalog,
	logger *zap.Logger,
) (*Client, error) {
	client, err := ethclient.Dial(cfg.RPCURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to Ethereum RPC: %w", err)
	}

	c := NewClientWithBackend(cfg, client, connectors, catalog, logger)
	c.closers = append(c.closers, client.Close)

	if cfg.WSURL != "" {
		wsClient, err := ethclient.Dial(cfg.WSURL)
		if err != nil {
			logger.Warn("Failed to connect to Ethereum WebSocket, falling back to polling",
				zap.Error(err))
		} else {
			c.wsBackend = wsClient
			c.closers = append(c.closers, wsClient.Close)
		}
	}

	logger.Info("Connected to Ethereum",
		zap.Int64("chain_id", cfg.ChainID),
		zap.String("rpc_url", cfg.RPCURL),
		zap.Int("connectors", len(connectors)))

	return c, nil
}

// NewClientWithBackend builds a client over an existing backend.
func NewClientWithBackend(
	cfg *config.EthereumConfig,
	backend Backend,
	connectors []config.ConnectorConfig,
	catalog *contracts.Catalog,
	logger *zap.Logger,
) *Client {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Client{
		config:     cfg,
		backend:    backend,
		catalog:    catalog,
		connectors: connectors,
		logger:     logger,
	}
}

// Close closes the Ethereum clients
func (c *Client) Close() {
	for _, closeFn := range c.closers {
		closeFn()
	}
}

// Connectors returns one descriptor per configured connector.
func (c *Client) Connectors() []wallet.ConnectorDescriptor {
	out := make([]wallet.ConnectorDescriptor, 0, len(c.connectors))
	for _, conn := range c.connectors {
		name := conn.Name
		if name == "" {
			name = conn.ID
		}
		out = append(out, wallet.ConnectorDescriptor{
			ID:           conn.ID,
			DisplayName:  name,
			Capabilities: []string{"read", "sign", "send", "subscribe"},
		})
	}
	return out
}

// Connect loads the connector's key and checks the node is on the expected
// chain.
func (c *Client) Connect(ctx context.Context, connectorID string) (wallet.Session, error) {
	conn, ok := c.connector(connectorID)
	if !ok {
		return wallet.Session{}, fmt.Errorf("%w: %s", wallet.ErrNoProviderAvailable, connectorID)
	}

	key, err := loadKey(conn)
	if err != nil {
		return wallet.Session{}, err
	}

	ctx, cancel := c.withTimeout(ctx)
	defer cancel()

	chainID, err := c.backend.ChainID(ctx)
	if err != nil {
		return wallet.Session{}, fmt.Errorf("failed to get chain id: %w", err)
	}
	if c.config.ChainID != 0 && chainID.Int64() != c.config.ChainID {
		return wallet.Session{}, fmt.Errorf("wrong network: node reports chain id %s, expected %d",
			chainID, c.config.ChainID)
	}

	acct := &account{
		connectorID: connectorID,
		key:         key,
		address:     addressOf(key),
	}

	c.mu.Lock()
	c.active = acct
	c.mu.Unlock()

	c.logger.Info("Connector activated",
		zap.String("connector", connectorID),
		zap.String("address", acct.address.Hex()),
		zap.String("chain_id", chainID.String()))

	return wallet.Session{Address: acct.address, ChainID: chainID.Uint64()}, nil
}

// Disconnect drops the active account when it belongs to connectorID.
func (c *Client) Disconnect(_ context.Context, connectorID string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.active != nil && c.active.connectorID == connectorID {
		c.active = nil
		c.logger.Info("Connector deactivated", zap.String("connector", connectorID))
	}
	return nil
}

// Address returns the active account address.
func (c *Client) Address() (common.Address, bool) {
	acct := c.account()
	if acct == nil {
		return common.Address{}, false
	}
	return acct.address, true
}

func (c *Client) account() *account {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.active
}

func (c *Client) connector(id string) (config.ConnectorConfig, bool) {
	for _, conn := range c.connectors {
		if conn.ID == id {
			return conn, true
		}
	}
	return config.ConnectorConfig{}, false
}

func (c *Client) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	timeout := c.config.RequestTimeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return context.WithTimeout(ctx, timeout)
}

// GetLatestBlockNumber gets the latest block number
func (c *Client) GetLatestBlockNumber(ctx context.Context) (uint64, error) {
	n, err := c.backend.BlockNumber(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to get latest block: %w", err)
	}
	return n, nil
}
