package api

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"

	"github.com/chainsafe/wallet-orchestrator/pkg/auth"
	"github.com/chainsafe/wallet-orchestrator/pkg/config"
	"github.com/chainsafe/wallet-orchestrator/pkg/wallet"
)

func TestRouter_GuardsMutatingRoutes(t *testing.T) {
	w := &mockWallet{}
	w.On("State").Return(wallet.ConnectionState{Status: wallet.StatusDisconnected})

	deps := Deps{
		Wallet:    w,
		Faucet:    &mockFaucet{},
		Refresher: &mockRefresher{},
		Validator: auth.NewJWTValidator("http://127.0.0.1:1/jwks", ""),
	}
	h := NewRouter(deps, config.MonitoringConfig{MetricsPath: "/metrics"}, zap.NewNop())

	for _, tc := range []struct {
		method, path string
	}{
		{http.MethodPost, "/api/v1/connection"},
		{http.MethodDelete, "/api/v1/connection"},
		{http.MethodPost, "/api/v1/faucet/claim"},
		{http.MethodPost, "/api/v1/faucet/return"},
	} {
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(tc.method, tc.path, nil))
		assert.Equal(t, http.StatusUnauthorized, rec.Code, "%s %s", tc.method, tc.path)
	}

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/connection", nil))
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestRequestTimeout(t *testing.T) {
	assert.Equal(t, defaultRequestTimeout, requestTimeout(0))
	assert.Equal(t, defaultRequestTimeout, requestTimeout(30*time.Second))
	assert.Equal(t, 125*time.Second, requestTimeout(2*time.Minute))
}
