package wallet

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/chainsafe/wallet-orchestrator/internal/metrics"
	apperrors "github.com/chainsafe/wallet-orchestrator/pkg/app/errors"
	"github.com/chainsafe/wallet-orchestrator/pkg/classifier"
	"github.com/chainsafe/wallet-orchestrator/pkg/observe"
)

type settings struct {
	logger    *zap.Logger
	recorder  observe.Recorder
	prefs     PreferenceStore
	preferred []string
	timeout   time.Duration
}

// DefaultConnectTimeout bounds a single provider connect attempt.
const DefaultConnectTimeout = 60 * time.Second

// Option configures the Manager.
type Option func(*settings)

// WithLogger sets a custom logger for the manager.
func WithLogger(l *zap.Logger) Option {
	return func(s *settings) { s.logger = l }
}

// WithRecorder sets the observability recorder.
func WithRecorder(r observe.Recorder) Option {
	return func(s *settings) { s.recorder = r }
}

// WithPreferences sets the store used for the last-connector marker.
func WithPreferences(p PreferenceStore) Option {
	return func(s *settings) { s.prefs = p }
}

// WithPreferredOrder sets the connector ids PreferredConnector tries, in order.
func WithPreferredOrder(ids ...string) Option {
	return func(s *settings) { s.preferred = ids }
}

// WithConnectTimeout bounds a provider connect attempt independently of the
// callers waiting on it.
func WithConnectTimeout(d time.Duration) Option {
	return func(s *settings) { s.timeout = d }
}

func applyOptions(opts []Option) settings {
	s := settings{
		logger:   zap.NewNop(),
		recorder: observe.Nop(),
		timeout:  DefaultConnectTimeout,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(&s)
		}
	}
	if s.prefs == nil {
		s.prefs = NewMemoryPreferences()
	}
	if s.timeout <= 0 {
		s.timeout = DefaultConnectTimeout
	}
	return s
}

// Manager owns the ConnectionState. At most one connector is active at a
// time; concurrent connects for the same connector share one attempt.
type Manager struct {
	provider  Provider
	prefs     PreferenceStore
	recorder  observe.Recorder
	logger    *zap.Logger
	preferred []string
	timeout   time.Duration

	group singleflight.Group
	// opMu serializes connect and disconnect transitions.
	opMu sync.Mutex

	mu           sync.RWMutex
	state        ConnectionState
	listeners    []listener
	nextListener int
}

type listener struct {
	id int
	fn func(ConnectionState)
}

// NewManager creates a manager in the disconnected state.
func NewManager(provider Provider, opts ...Option) *Manager {
	s := applyOptions(opts)
	metrics.SetConnectionState(string(StatusDisconnected))
	return &Manager{
		provider:  provider,
		prefs:     s.prefs,
		recorder:  s.recorder,
		logger:    s.logger,
		preferred: s.preferred,
		timeout:   s.timeout,
		state:     ConnectionState{Status: StatusDisconnected},
	}
}

// State returns a copy of the current connection state.
func (m *Manager) State() ConnectionState {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return copyState(m.state)
}

// Connectors returns the connectors offered by the provider.
func (m *Manager) Connectors() []ConnectorDescriptor {
	return m.provider.Connectors()
}

// Subscribe registers fn to be called after every state change and returns a
// function that removes it. Listeners run synchronously and must not call
// Connect or Disconnect.
func (m *Manager) Subscribe(fn func(ConnectionState)) func() {
	m.mu.Lock()
	id := m.nextListener
	m.nextListener++
	m.listeners = append(m.listeners, listener{id: id, fn: fn})
	m.mu.Unlock()

	return func() {
		m.mu.Lock()
		defer m.mu.Unlock()
		for i, l := range m.listeners {
			if l.id == id {
				m.listeners = append(m.listeners[:i:i], m.listeners[i+1:]...)
				return
			}
		}
	}
}

// Connect activates connectorID. An existing connection is closed first.
// The attempt is shared by every caller and keeps running when the caller
// that started it goes away; it is bounded by the connect timeout instead.
func (m *Manager) Connect(ctx context.Context, connectorID string) (ConnectionState, error) {
	if !m.hasConnector(connectorID) {
		m.recorder.Record("connect_rejected", map[string]any{"connector": connectorID})
		metrics.ConnectAttempts.WithLabelValues(connectorID, "unknown").Inc()
		return m.State(), apperrors.ConnectionError(
			fmt.Errorf("%w: %s", ErrNoProviderAvailable, connectorID),
			"no wallet provider available",
		)
	}

	ch := m.group.DoChan(connectorID, func() (any, error) {
		attemptCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), m.timeout)
		defer cancel()
		return m.connect(attemptCtx, connectorID)
	})

	select {
	case res := <-ch:
		if res.Shared {
			m.logger.Debug("Joined in-flight connect", zap.String("connector", connectorID))
		}
		st, _ := res.Val.(ConnectionState)
		return st, res.Err
	case <-ctx.Done():
		return m.State(), apperrors.ConnectionError(ctx.Err(), "connect cancelled")
	}
}

func (m *Manager) connect(ctx context.Context, connectorID string) (ConnectionState, error) {
	m.opMu.Lock()
	defer m.opMu.Unlock()

	if cur := m.State(); cur.Connected() {
		m.logger.Info("Closing active connection before connect",
			zap.String("active", cur.ActiveConnectorID),
			zap.String("requested", connectorID))
		m.disconnectLocked(ctx)
	}

	m.transition(ConnectionState{Status: StatusConnecting, ActiveConnectorID: connectorID}, "connecting")

	sess, err := m.provider.Connect(ctx, connectorID)
	if err != nil {
		kind := classifier.ClassifyError(err)
		m.logger.Warn("Wallet connect failed",
			zap.String("connector", connectorID),
			zap.String("kind", string(kind)),
			zap.Error(err))
		metrics.ConnectAttempts.WithLabelValues(connectorID, "failed").Inc()
		metrics.ErrorsTotal.WithLabelValues("wallet", string(kind)).Inc()

		st := ConnectionState{Status: StatusError, LastError: err.Error()}
		m.transition(st, "connect_failed")
		return st, apperrors.ConnectionError(fmt.Errorf("failed to connect %s: %w", connectorID, err), kind.Message())
	}

	addr := sess.Address
	st := ConnectionState{
		Status:            StatusConnected,
		Address:           &addr,
		ChainID:           sess.ChainID,
		ActiveConnectorID: connectorID,
	}
	m.transition(st, "connected")
	metrics.ConnectAttempts.WithLabelValues(connectorID, "connected").Inc()

	if err := m.prefs.Set(ctx, LastConnectorKey, connectorID); err != nil {
		m.logger.Warn("Failed to remember connector", zap.String("connector", connectorID), zap.Error(err))
	}

	m.logger.Info("Wallet connected",
		zap.String("connector", connectorID),
		zap.String("address", addr.Hex()),
		zap.Uint64("chain_id", sess.ChainID))
	return copyState(st), nil
}

// Disconnect closes the active connection, if any, and forgets the last
// connector. It always leaves the manager disconnected.
func (m *Manager) Disconnect(ctx context.Context) ConnectionState {
	m.opMu.Lock()
	defer m.opMu.Unlock()
	m.disconnectLocked(ctx)
	return m.State()
}

func (m *Manager) disconnectLocked(ctx context.Context) {
	cur := m.State()
	if cur.Connected() {
		if err := m.provider.Disconnect(ctx, cur.ActiveConnectorID); err != nil {
			m.logger.Warn("Provider disconnect failed",
				zap.String("connector", cur.ActiveConnectorID),
				zap.Error(err))
		}
	}
	if err := m.prefs.Delete(ctx, LastConnectorKey); err != nil {
		m.logger.Warn("Failed to clear remembered connector", zap.Error(err))
	}
	if cur.Status != StatusDisconnected {
		m.transition(ConnectionState{Status: StatusDisconnected}, "disconnected")
	}
}

// Reconnect connects to the connector remembered from the last successful
// connect.
func (m *Manager) Reconnect(ctx context.Context) (ConnectionState, error) {
	id, ok, err := m.prefs.Get(ctx, LastConnectorKey)
	if err != nil {
		return m.State(), apperrors.ConnectionError(fmt.Errorf("failed to read remembered connector: %w", err), "reconnect failed")
	}
	if !ok || id == "" {
		return m.State(), apperrors.ConnectionError(ErrNoRememberedConnector, "no previous wallet to reconnect")
	}
	return m.Connect(ctx, id)
}

// PreferredConnector returns the first configured preferred connector the
// provider offers, falling back to the first offered connector.
func (m *Manager) PreferredConnector() (ConnectorDescriptor, bool) {
	connectors := m.provider.Connectors()
	for _, id := range m.preferred {
		for _, c := range connectors {
			if c.ID == id {
				return c, true
			}
		}
	}
	if len(connectors) > 0 {
		return connectors[0], true
	}
	return ConnectorDescriptor{}, false
}

func (m *Manager) hasConnector(id string) bool {
	for _, c := range m.provider.Connectors() {
		if c.ID == id {
			return true
		}
	}
	return false
}

func (m *Manager) transition(next ConnectionState, event string) {
	m.mu.Lock()
	prev := m.state.Status
	m.state = copyState(next)
	listeners := make([]listener, len(m.listeners))
	copy(listeners, m.listeners)
	m.mu.Unlock()

	metrics.SetConnectionState(string(next.Status))

	details := map[string]any{
		"from":      string(prev),
		"to":        string(next.Status),
		"connector": next.ActiveConnectorID,
	}
	if next.Address != nil {
		details["address"] = next.Address.Hex()
		details["chain_id"] = next.ChainID
	}
	if next.LastError != "" {
		details["error"] = next.LastError
	}
	m.recorder.Record(event, details)

	for _, l := range listeners {
		l.fn(copyState(next))
	}
}

func copyState(s ConnectionState) ConnectionState {
	if s.Address != nil {
		addr := *s.Address
		s.Address = &addr
	}
	return s
}
