package ethereum

import (
	"context"
	"encoding/hex"
	"errors"
	"testing"

	"github.com/ethereum/go-ethereum/accounts/keystore"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/vm"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/chainsafe/wallet-orchestrator/pkg/config"
	"github.com/chainsafe/wallet-orchestrator/pkg/ethereum/contracts"
	"github.com/chainsafe/wallet-orchestrator/pkg/wallet"
)

var faucetAddr = common.HexToAddress("0x5FbDB2315678afecb367f032d93F642f64180aa3")

func newTestClient(connectors ...config.ConnectorConfig) *Client {
	cfg := &config.EthereumConfig{ChainID: 337}
	return NewClientWithBackend(cfg, nil, connectors, contracts.NewDefaultCatalog(faucetAddr, common.Address{}), zap.NewNop())
}

func TestLoadKey_PrivateKeyEnv(t *testing.T) {
	key, err := crypto.GenerateKey()
	require.NoError(t, err)
	t.Setenv("TEST_WALLET_KEY", "0x"+hex.EncodeToString(crypto.FromECDSA(key)))

	got, err := loadKey(config.ConnectorConfig{ID: "dev", Type: config.ConnectorPrivateKey, PrivateKeyEnv: "TEST_WALLET_KEY"})
	require.NoError(t, err)
	assert.Equal(t, crypto.PubkeyToAddress(key.PublicKey), addressOf(got))
}

func TestLoadKey_MissingEnv(t *testing.T) {
	_, err := loadKey(config.ConnectorConfig{ID: "dev", Type: config.ConnectorPrivateKey, PrivateKeyEnv: "TEST_WALLET_KEY_UNSET"})
	require.Error(t, err)
}

func TestLoadKey_Keystore(t *testing.T) {
	dir := t.TempDir()
	acct, err := keystore.StoreKey(dir, "hunter2", keystore.LightScryptN, keystore.LightScryptP)
	require.NoError(t, err)
	t.Setenv("TEST_KEYSTORE_PASS", "hunter2")

	conn := config.ConnectorConfig{
		ID:            "ks",
		Type:          config.ConnectorKeystore,
		KeystorePath:  acct.URL.Path,
		PassphraseEnv: "TEST_KEYSTORE_PASS",
	}
	key, err := loadKey(conn)
	require.NoError(t, err)
	assert.Equal(t, acct.Address, addressOf(key))

	t.Setenv("TEST_KEYSTORE_PASS", "wrong")
	_, err = loadKey(conn)
	require.Error(t, err)
}

func TestLoadKey_UnsupportedType(t *testing.T) {
	_, err := loadKey(config.ConnectorConfig{ID: "x", Type: "ledger"})
	require.Error(t, err)
}

func TestClient_Connectors(t *testing.T) {
	c := newTestClient(
		config.ConnectorConfig{ID: "dev", Name: "Dev key", Type: config.ConnectorPrivateKey},
		config.ConnectorConfig{ID: "ks", Type: config.ConnectorKeystore},
	)

	got := c.Connectors()
	require.Len(t, got, 2)
	assert.Equal(t, "Dev key", got[0].DisplayName)
	assert.Equal(t, "ks", got[1].DisplayName)
	assert.Contains(t, got[0].Capabilities, "send")
}

func TestClient_ConnectUnknownConnector(t *testing.T) {
	c := newTestClient()
	_, err := c.Connect(context.Background(), "missing")
	assert.ErrorIs(t, err, wallet.ErrNoProviderAvailable)
}

func TestClient_SendRequiresConnection(t *testing.T) {
	c := newTestClient()
	_, err := c.Send(context.Background(), faucetAddr, contracts.FnRequestTokens, nil, nil)
	assert.True(t, errors.Is(err, wallet.ErrNotConnected))

	_, ok := c.Address()
	assert.False(t, ok)
}

func TestClient_DisconnectOnlyDropsMatchingConnector(t *testing.T) {
	key, err := crypto.GenerateKey()
	require.NoError(t, err)
	c := newTestClient()
	c.active = &account{connectorID: "dev", key: key, address: addressOf(key)}

	require.NoError(t, c.Disconnect(context.Background(), "other"))
	_, ok := c.Address()
	assert.True(t, ok)

	require.NoError(t, c.Disconnect(context.Background(), "dev"))
	_, ok = c.Address()
	assert.False(t, ok)
}

func TestContainsSelector(t *testing.T) {
	selector := crypto.Keccak256([]byte("requestTokensTo(address)"))[:4]
	code := append([]byte{0x60, 0x80, 0x60, 0x40, byte(vm.PUSH4)}, selector...)
	code = append(code, 0x14, 0x61)

	assert.True(t, containsSelector(code, selector))

	other := crypto.Keccak256([]byte("requestTokens()"))[:4]
	assert.False(t, containsSelector(code, other))
}

func TestContainsSelector_ShortPushForLeadingZeros(t *testing.T) {
	tests := map[string]struct {
		selector []byte
		code     []byte
		want     bool
	}{
		"one leading zero uses PUSH3": {
			selector: []byte{0x00, 0xab, 0xcd, 0xef},
			code:     []byte{0x80, byte(vm.PUSH3), 0xab, 0xcd, 0xef, 0x14},
			want:     true,
		},
		"two leading zeros use PUSH2": {
			selector: []byte{0x00, 0x00, 0x12, 0x34},
			code:     []byte{0x80, byte(vm.PUSH2), 0x12, 0x34, 0x14},
			want:     true,
		},
		"zero selector uses PUSH0": {
			selector: []byte{0x00, 0x00, 0x00, 0x00},
			code:     []byte{0x80, byte(vm.PUSH0), 0x14},
			want:     true,
		},
		"padded PUSH4 is not matched": {
			selector: []byte{0x00, 0xab, 0xcd, 0xef},
			code:     []byte{0x80, byte(vm.PUSH4), 0x00, 0xab, 0xcd, 0xef, 0x14},
			want:     false,
		},
		"wrong width does not match": {
			selector: []byte{0x00, 0xab, 0xcd, 0xef},
			code:     []byte{0x80, byte(vm.PUSH2), 0xcd, 0xef, 0x14},
			want:     false,
		},
	}

	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			assert.Equal(t, tc.want, containsSelector(tc.code, tc.selector))
		})
	}
}
