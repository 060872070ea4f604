package prefstore

import (
	"context"

	"github.com/ethereum/go-ethereum/common"

	"github.com/chainsafe/wallet-orchestrator/pkg/wallet"
)

type stubProvider struct{}

func (stubProvider) Connectors() []wallet.ConnectorDescriptor {
	return []wallet.ConnectorDescriptor{{ID: "dev", DisplayName: "Dev key"}}
}

func (stubProvider) Connect(context.Context, string) (wallet.Session, error) {
	return wallet.Session{Address: common.HexToAddress("0xf39Fd6e51aad88F6F4ce6aB8827279cffFb92266"), ChainID: 337}, nil
}

func (stubProvider) Disconnect(context.Context, string) error { return nil }
