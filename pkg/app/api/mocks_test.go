package api

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/chainsafe/wallet-orchestrator/pkg/observe"
	"github.com/chainsafe/wallet-orchestrator/pkg/orchestrator"
	"github.com/chainsafe/wallet-orchestrator/pkg/reader"
	"github.com/chainsafe/wallet-orchestrator/pkg/sbt"
	"github.com/chainsafe/wallet-orchestrator/pkg/wallet"
)

type mockWallet struct {
	mock.Mock
}

func (m *mockWallet) State() wallet.ConnectionState {
	return m.Called().Get(0).(wallet.ConnectionState)
}

func (m *mockWallet) Connectors() []wallet.ConnectorDescriptor {
	return m.Called().Get(0).([]wallet.ConnectorDescriptor)
}

func (m *mockWallet) PreferredConnector() (wallet.ConnectorDescriptor, bool) {
	args := m.Called()
	return args.Get(0).(wallet.ConnectorDescriptor), args.Bool(1)
}

func (m *mockWallet) Connect(ctx context.Context, connectorID string) (wallet.ConnectionState, error) {
	args := m.Called(ctx, connectorID)
	return args.Get(0).(wallet.ConnectionState), args.Error(1)
}

func (m *mockWallet) Disconnect(ctx context.Context) wallet.ConnectionState {
	return m.Called(ctx).Get(0).(wallet.ConnectionState)
}

func (m *mockWallet) Reconnect(ctx context.Context) (wallet.ConnectionState, error) {
	args := m.Called(ctx)
	return args.Get(0).(wallet.ConnectionState), args.Error(1)
}

type mockFaucet struct {
	mock.Mock
}

func (m *mockFaucet) Snapshot() reader.Snapshot {
	return m.Called().Get(0).(reader.Snapshot)
}

func (m *mockFaucet) Claim(ctx context.Context, recipient string) (*orchestrator.Record, error) {
	args := m.Called(ctx, recipient)
	rec, _ := args.Get(0).(*orchestrator.Record)
	return rec, args.Error(1)
}

func (m *mockFaucet) Return(ctx context.Context) (*orchestrator.Record, error) {
	args := m.Called(ctx)
	rec, _ := args.Get(0).(*orchestrator.Record)
	return rec, args.Error(1)
}

type mockSBT struct {
	mock.Mock
}

func (m *mockSBT) Status(ctx context.Context) (sbt.Status, error) {
	args := m.Called(ctx)
	return args.Get(0).(sbt.Status), args.Error(1)
}

func (m *mockSBT) Mint(ctx context.Context, name, description string) (*orchestrator.Record, error) {
	args := m.Called(ctx, name, description)
	rec, _ := args.Get(0).(*orchestrator.Record)
	return rec, args.Error(1)
}

type mockRefresher struct {
	mock.Mock
}

func (m *mockRefresher) Refresh(ctx context.Context) reader.Snapshot {
	return m.Called(ctx).Get(0).(reader.Snapshot)
}

type staticEvents []observe.Event

func (s staticEvents) Events() []observe.Event { return s }
