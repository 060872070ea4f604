// Package wallet manages the lifecycle of the active wallet connection.
package wallet

import (
	"context"
	"errors"

	"github.com/ethereum/go-ethereum/common"
)

// Status is the connection status of the wallet.
type Status string

const (
	StatusDisconnected Status = "disconnected"
	StatusConnecting   Status = "connecting"
	StatusConnected    Status = "connected"
	StatusError        Status = "error"
)

// LastConnectorKey is the preference key holding the last connected connector id.
const LastConnectorKey = "last_connector"

var (
	// ErrNoProviderAvailable is returned when a connector id is unknown.
	ErrNoProviderAvailable = errors.New("no provider available for connector")
	// ErrNotConnected is returned by operations that need an active connection.
	ErrNotConnected = errors.New("wallet not connected")
	// ErrNoRememberedConnector is returned by Reconnect when nothing was remembered.
	ErrNoRememberedConnector = errors.New("no remembered connector")
)

// ConnectorDescriptor describes a connector offered by the provider.
type ConnectorDescriptor struct {
	ID           string   `json:"id"`
	DisplayName  string   `json:"display_name"`
	Capabilities []string `json:"capabilities"`
}

// Session is what a provider hands back after a successful connect.
type Session struct {
	Address common.Address
	ChainID uint64
}

// ConnectionState is the observable connection state. Address and ChainID are
// only set while Status is StatusConnected.
type ConnectionState struct {
	Status            Status          `json:"status"`
	Address           *common.Address `json:"address,omitempty"`
	ChainID           uint64          `json:"chain_id,omitempty"`
	ActiveConnectorID string          `json:"active_connector_id,omitempty"`
	LastError         string          `json:"last_error,omitempty"`
}

// Connected reports whether the state represents an active connection.
func (s ConnectionState) Connected() bool {
	return s.Status == StatusConnected
}

// Provider is the wallet capability the manager drives.
type Provider interface {
	Connectors() []ConnectorDescriptor
	Connect(ctx context.Context, connectorID string) (Session, error)
	Disconnect(ctx context.Context, connectorID string) error
}

// PreferenceStore persists small key/value preferences across restarts.
// Get returns ok=false for a missing key.
type PreferenceStore interface {
	Get(ctx context.Context, key string) (string, bool, error)
	Set(ctx context.Context, key, value string) error
	Delete(ctx context.Context, key string) error
}
