package ethereum

import (
	"crypto/ecdsa"
	"fmt"
	"os"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/keystore"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"

	"github.com/chainsafe/wallet-orchestrator/pkg/config"
)

func loadKey(conn config.ConnectorConfig) (*ecdsa.PrivateKey, error) {
	switch conn.Type {
	case config.ConnectorPrivateKey:
		raw := strings.TrimSpace(os.Getenv(conn.PrivateKeyEnv))
		if raw == "" {
			return nil, fmt.Errorf("private key for connector %s not set (env %s)", conn.ID, conn.PrivateKeyEnv)
		}
		key, err := crypto.HexToECDSA(strings.TrimPrefix(raw, "0x"))
		if err != nil {
			return nil, fmt.Errorf("failed to load private key: %w", err)
		}
		return key, nil

	case config.ConnectorKeystore:
		data, err := os.ReadFile(conn.KeystorePath)
		if err != nil {
			return nil, fmt.Errorf("failed to read keystore %s: %w", conn.KeystorePath, err)
		}
		passphrase := ""
		if conn.PassphraseEnv != "" {
			passphrase = os.Getenv(conn.PassphraseEnv)
		}
		key, err := keystore.DecryptKey(data, passphrase)
		if err != nil {
			return nil, fmt.Errorf("failed to decrypt keystore for connector %s: %w", conn.ID, err)
		}
		return key.PrivateKey, nil

	default:
		return nil, fmt.Errorf("unsupported connector type %q", conn.Type)
	}
}

func addressOf(key *ecdsa.PrivateKey) common.Address {
	return crypto.PubkeyToAddress(key.PublicKey)
}
