package api

import (
	"bytes"
	"encoding/json"
	"errors"
	"math/big"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	apperrors "github.com/chainsafe/wallet-orchestrator/pkg/app/errors"
	"github.com/chainsafe/wallet-orchestrator/pkg/classifier"
	"github.com/chainsafe/wallet-orchestrator/pkg/config"
	"github.com/chainsafe/wallet-orchestrator/pkg/observe"
	"github.com/chainsafe/wallet-orchestrator/pkg/orchestrator"
	"github.com/chainsafe/wallet-orchestrator/pkg/reader"
	"github.com/chainsafe/wallet-orchestrator/pkg/sbt"
	"github.com/chainsafe/wallet-orchestrator/pkg/wallet"
)

var testAccount = common.HexToAddress("0x00000000000000000000000000000000000000a1")

type fixture struct {
	wallet    *mockWallet
	faucet    *mockFaucet
	sbt       *mockSBT
	refresher *mockRefresher
	handler   http.Handler
}

func newFixture(t *testing.T, withSBT bool) *fixture {
	t.Helper()
	f := &fixture{
		wallet:    &mockWallet{},
		faucet:    &mockFaucet{},
		sbt:       &mockSBT{},
		refresher: &mockRefresher{},
	}
	deps := Deps{
		Wallet:    f.wallet,
		Faucet:    f.faucet,
		Refresher: f.refresher,
		Events:    staticEvents{{Name: "connected", Details: map[string]any{"connector": "dev"}}},
	}
	if withSBT {
		deps.SBT = f.sbt
	}
	disabled := false
	f.handler = NewRouter(deps, config.MonitoringConfig{Enabled: &disabled}, zap.NewNop())
	t.Cleanup(func() {
		f.wallet.AssertExpectations(t)
		f.faucet.AssertExpectations(t)
		f.sbt.AssertExpectations(t)
		f.refresher.AssertExpectations(t)
	})
	return f
}

func (f *fixture) do(method, path, body string) *httptest.ResponseRecorder {
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, bytes.NewBufferString(body))
	}
	rec := httptest.NewRecorder()
	f.handler.ServeHTTP(rec, req)
	return rec
}

func connectedState() wallet.ConnectionState {
	addr := testAccount
	return wallet.ConnectionState{
		Status:            wallet.StatusConnected,
		Address:           &addr,
		ChainID:           337,
		ActiveConnectorID: "dev",
	}
}

type errorBody struct {
	Error    string `json:"error"`
	Code     int    `json:"code"`
	Category string `json:"category"`
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out), rec.Body.String())
	return out
}

func TestHealth(t *testing.T) {
	f := newFixture(t, false)
	rec := f.do(http.MethodGet, "/health", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "OK", rec.Body.String())
}

func TestMetricsDisabled(t *testing.T) {
	f := newFixture(t, false)
	assert.Equal(t, http.StatusNotFound, f.do(http.MethodGet, "/metrics", "").Code)
}

func TestConnectors(t *testing.T) {
	f := newFixture(t, false)
	descriptors := []wallet.ConnectorDescriptor{
		{ID: "dev", DisplayName: "Dev key"},
		{ID: "vault", DisplayName: "Keystore"},
	}
	f.wallet.On("Connectors").Return(descriptors)
	f.wallet.On("PreferredConnector").Return(descriptors[0], true)

	rec := f.do(http.MethodGet, "/api/v1/connectors", "")
	require.Equal(t, http.StatusOK, rec.Code)
	got := decode[connectorsResponse](t, rec)
	assert.Equal(t, descriptors, got.Connectors)
	assert.Equal(t, "dev", got.Preferred)
}

func TestConnect(t *testing.T) {
	f := newFixture(t, false)
	f.wallet.On("Connect", mock.Anything, "dev").Return(connectedState(), nil)

	rec := f.do(http.MethodPost, "/api/v1/connection", `{"connector_id":"dev"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	got := decode[wallet.ConnectionState](t, rec)
	assert.Equal(t, wallet.StatusConnected, got.Status)
	require.NotNil(t, got.Address)
	assert.Equal(t, testAccount, *got.Address)
}

func TestConnect_DefaultsToPreferred(t *testing.T) {
	f := newFixture(t, false)
	f.wallet.On("PreferredConnector").Return(wallet.ConnectorDescriptor{ID: "dev"}, true)
	f.wallet.On("Connect", mock.Anything, "dev").Return(connectedState(), nil)

	rec := f.do(http.MethodPost, "/api/v1/connection", "")
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestConnect_UnknownConnector(t *testing.T) {
	f := newFixture(t, false)
	f.wallet.On("Connect", mock.Anything, "nope").Return(
		wallet.ConnectionState{Status: wallet.StatusDisconnected},
		apperrors.ConnectionError(wallet.ErrNoProviderAvailable, "no wallet provider available"),
	)

	rec := f.do(http.MethodPost, "/api/v1/connection", `{"connector_id":"nope"}`)
	assert.Equal(t, http.StatusConflict, rec.Code)
	got := decode[errorBody](t, rec)
	assert.Equal(t, "no wallet provider available", got.Error)
	assert.Equal(t, "CategoryConnection", got.Category)
}

func TestConnect_InvalidJSON(t *testing.T) {
	f := newFixture(t, false)
	rec := f.do(http.MethodPost, "/api/v1/connection", "{invalid")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "invalid JSON", decode[errorBody](t, rec).Error)
}

func TestDisconnectAndReconnect(t *testing.T) {
	f := newFixture(t, false)
	f.wallet.On("Disconnect", mock.Anything).Return(wallet.ConnectionState{Status: wallet.StatusDisconnected})
	f.wallet.On("Reconnect", mock.Anything).Return(connectedState(), nil)

	rec := f.do(http.MethodDelete, "/api/v1/connection", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, wallet.StatusDisconnected, decode[wallet.ConnectionState](t, rec).Status)

	rec = f.do(http.MethodPost, "/api/v1/connection/reconnect", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "dev", decode[wallet.ConnectionState](t, rec).ActiveConnectorID)
}

func TestRefresh_RequiresConnection(t *testing.T) {
	f := newFixture(t, false)
	f.wallet.On("State").Return(wallet.ConnectionState{Status: wallet.StatusDisconnected})

	rec := f.do(http.MethodPost, "/api/v1/faucet/refresh", "")
	assert.Equal(t, http.StatusConflict, rec.Code)
	f.refresher.AssertNotCalled(t, "Refresh", mock.Anything)
}

func TestRefresh(t *testing.T) {
	f := newFixture(t, false)
	f.wallet.On("State").Return(connectedState())
	f.refresher.On("Refresh", mock.Anything).Return(reader.Snapshot{
		Account:              testAccount,
		Symbol:               "MTB",
		UserBalanceFormatted: "1.5",
	})

	rec := f.do(http.MethodPost, "/api/v1/faucet/refresh", "")
	require.Equal(t, http.StatusOK, rec.Code)
	got := decode[reader.Snapshot](t, rec)
	assert.Equal(t, "MTB", got.Symbol)
	assert.Equal(t, "1.5", got.UserBalanceFormatted)
}

func TestClaim(t *testing.T) {
	f := newFixture(t, false)
	recipient := "0x00000000000000000000000000000000000000b2"
	f.faucet.On("Claim", mock.Anything, recipient).Return(&orchestrator.Record{
		ID:           "rec-1",
		Status:       orchestrator.StatusConfirmed,
		Attempts:     1,
		Polls:        5,
		FunctionUsed: "requestTokensTo",
		Assumed:      true,
	}, nil)

	rec := f.do(http.MethodPost, "/api/v1/faucet/claim", `{"recipient":"`+recipient+`"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	got := decode[txResponse](t, rec)
	require.NotNil(t, got.Record)
	assert.Equal(t, orchestrator.StatusConfirmed, got.Record.Status)
	assert.Equal(t, "requestTokensTo", got.Record.FunctionUsed)
	assert.Nil(t, got.Error)
}

func TestClaim_ValidationError(t *testing.T) {
	f := newFixture(t, false)
	f.faucet.On("Claim", mock.Anything, "0xnope").Return(nil,
		apperrors.ValidationError(orchestrator.ErrInvalidAddress, "invalid address"))

	rec := f.do(http.MethodPost, "/api/v1/faucet/claim", `{"recipient":"0xnope"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "CategoryValidation", decode[errorBody](t, rec).Category)
}

func TestClaim_FailedSubmissionKeepsRecord(t *testing.T) {
	f := newFixture(t, false)
	classified := &orchestrator.ClassifiedError{
		Kind:       classifier.UserRejected,
		FunctionID: "requestTokensTo",
		Message:    "request rejected in wallet",
	}
	f.faucet.On("Claim", mock.Anything, "").Return(&orchestrator.Record{
		ID:       "rec-2",
		Status:   orchestrator.StatusFailed,
		Attempts: 1,
		Error:    classified,
	}, apperrors.SubmissionError(classified, classified.Message))

	rec := f.do(http.MethodPost, "/api/v1/faucet/claim", "")
	require.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	got := decode[txResponse](t, rec)
	require.NotNil(t, got.Record)
	assert.Equal(t, orchestrator.StatusFailed, got.Record.Status)
	require.NotNil(t, got.Record.Error)
	assert.Equal(t, classifier.UserRejected, got.Record.Error.Kind)
	require.NotNil(t, got.Error)
	assert.Equal(t, "CategorySubmission", got.Error.Category)
}

func TestReturn(t *testing.T) {
	f := newFixture(t, false)
	f.faucet.On("Return", mock.Anything).Return(&orchestrator.Record{
		ID:     "pipe-1",
		Status: orchestrator.StatusConfirmed,
		Steps: []*orchestrator.Record{
			{FunctionUsed: "approve", Status: orchestrator.StatusConfirmed},
			{FunctionUsed: "returnTokens", Status: orchestrator.StatusConfirmed},
		},
	}, nil)

	rec := f.do(http.MethodPost, "/api/v1/faucet/return", "")
	require.Equal(t, http.StatusOK, rec.Code)
	got := decode[txResponse](t, rec)
	require.NotNil(t, got.Record)
	assert.Len(t, got.Record.Steps, 2)
}

func TestFaucetSnapshot(t *testing.T) {
	f := newFixture(t, false)
	f.faucet.On("Snapshot").Return(reader.Snapshot{Account: testAccount, AmountAllowedFormatted: "10"})

	rec := f.do(http.MethodGet, "/api/v1/faucet", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "10", decode[reader.Snapshot](t, rec).AmountAllowedFormatted)
}

func TestSBT_NotConfigured(t *testing.T) {
	f := newFixture(t, false)
	assert.Equal(t, http.StatusNotFound, f.do(http.MethodGet, "/api/v1/sbt", "").Code)
	assert.Equal(t, http.StatusNotFound, f.do(http.MethodPost, "/api/v1/sbt/mint", "").Code)
}

func TestSBT_StatusAndMint(t *testing.T) {
	f := newFixture(t, true)
	f.sbt.On("Status", mock.Anything).Return(sbt.Status{
		Account:            testAccount,
		MintPrice:          big.NewInt(1e16),
		MintPriceFormatted: "0.01",
		Balance:            big.NewInt(0),
	}, nil)
	f.sbt.On("Mint", mock.Anything, "Badge", "").Return(&orchestrator.Record{
		ID:           "rec-3",
		Status:       orchestrator.StatusConfirmed,
		FunctionUsed: "mintWithPayment",
	}, nil)

	rec := f.do(http.MethodGet, "/api/v1/sbt", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "0.01", decode[sbt.Status](t, rec).MintPriceFormatted)

	rec = f.do(http.MethodPost, "/api/v1/sbt/mint", `{"name":"Badge"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "mintWithPayment", decode[txResponse](t, rec).Record.FunctionUsed)
}

func TestSBT_AlreadyOwned(t *testing.T) {
	f := newFixture(t, true)
	f.sbt.On("Mint", mock.Anything, "", "").Return(nil,
		apperrors.ValidationError(sbt.ErrAlreadyOwned, "account already owns a token"))

	rec := f.do(http.MethodPost, "/api/v1/sbt/mint", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestEvents(t *testing.T) {
	f := newFixture(t, false)
	rec := f.do(http.MethodGet, "/api/v1/events", "")
	require.Equal(t, http.StatusOK, rec.Code)
	got := decode[struct {
		Events []observe.Event `json:"events"`
	}](t, rec)
	require.Len(t, got.Events, 1)
	assert.Equal(t, "connected", got.Events[0].Name)
}

func TestUnexpectedError(t *testing.T) {
	f := newFixture(t, false)
	f.faucet.On("Return", mock.Anything).Return(nil, errors.New("boom"))

	rec := f.do(http.MethodPost, "/api/v1/faucet/return", "")
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, "Unexpected Service Error", decode[errorBody](t, rec).Error)
}
