package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"go.uber.org/zap"

	apperrors "github.com/chainsafe/wallet-orchestrator/pkg/app/errors"
	apphttp "github.com/chainsafe/wallet-orchestrator/pkg/app/http"
	"github.com/chainsafe/wallet-orchestrator/pkg/auth"
	"github.com/chainsafe/wallet-orchestrator/pkg/observe"
	"github.com/chainsafe/wallet-orchestrator/pkg/orchestrator"
	"github.com/chainsafe/wallet-orchestrator/pkg/wallet"
)

const maxBodySize = 1 << 20

var handle = apphttp.HandleError

// HTTP holds the route handlers.
type HTTP struct {
	deps   Deps
	logger *zap.Logger
}

type connectorsResponse struct {
	Connectors []wallet.ConnectorDescriptor `json:"connectors"`
	Preferred  string                       `json:"preferred,omitempty"`
}

type connectRequest struct {
	ConnectorID string `json:"connector_id"`
}

type claimRequest struct {
	Recipient string `json:"recipient"`
}

type mintRequest struct {
	Name        string `json:"name"`
	Description string `json:"description"`
}

type txResponse struct {
	Record *orchestrator.Record   `json:"record,omitempty"`
	Error  *apphttp.ErrorResponse `json:"error,omitempty"`
}

type eventsResponse struct {
	Events []observe.Event `json:"events"`
}

func (h *HTTP) connectors(w http.ResponseWriter, _ *http.Request) error {
	resp := connectorsResponse{Connectors: h.deps.Wallet.Connectors()}
	if c, ok := h.deps.Wallet.PreferredConnector(); ok {
		resp.Preferred = c.ID
	}
	apphttp.WriteJSON(w, http.StatusOK, resp)
	return nil
}

func (h *HTTP) connection(w http.ResponseWriter, _ *http.Request) error {
	apphttp.WriteJSON(w, http.StatusOK, h.deps.Wallet.State())
	return nil
}

func (h *HTTP) connect(w http.ResponseWriter, r *http.Request) error {
	var req connectRequest
	if err := decodeBody(r, &req); err != nil {
		return err
	}
	if req.ConnectorID == "" {
		if c, ok := h.deps.Wallet.PreferredConnector(); ok {
			req.ConnectorID = c.ID
		}
	}
	if req.ConnectorID == "" {
		return apperrors.ValidationError(nil, "connector_id is required")
	}

	st, err := h.deps.Wallet.Connect(r.Context(), req.ConnectorID)
	if err != nil {
		h.logger.Info("Connect failed", zap.String("connector", req.ConnectorID), zap.Error(err))
		return err
	}
	h.audit(r, "connect", zap.String("connector", req.ConnectorID))
	apphttp.WriteJSON(w, http.StatusOK, st)
	return nil
}

func (h *HTTP) disconnect(w http.ResponseWriter, r *http.Request) error {
	st := h.deps.Wallet.Disconnect(r.Context())
	h.audit(r, "disconnect")
	apphttp.WriteJSON(w, http.StatusOK, st)
	return nil
}

func (h *HTTP) reconnect(w http.ResponseWriter, r *http.Request) error {
	st, err := h.deps.Wallet.Reconnect(r.Context())
	if err != nil {
		return err
	}
	h.audit(r, "reconnect", zap.String("connector", st.ActiveConnectorID))
	apphttp.WriteJSON(w, http.StatusOK, st)
	return nil
}

func (h *HTTP) faucet(w http.ResponseWriter, _ *http.Request) error {
	apphttp.WriteJSON(w, http.StatusOK, h.deps.Faucet.Snapshot())
	return nil
}

func (h *HTTP) refresh(w http.ResponseWriter, r *http.Request) error {
	if !h.deps.Wallet.State().Connected() {
		return apperrors.ConnectionError(wallet.ErrNotConnected, "wallet not connected")
	}
	apphttp.WriteJSON(w, http.StatusOK, h.deps.Refresher.Refresh(r.Context()))
	return nil
}

func (h *HTTP) claim(w http.ResponseWriter, r *http.Request) error {
	var req claimRequest
	if err := decodeBody(r, &req); err != nil {
		return err
	}
	ctx, cancel := h.submitContext(r.Context())
	defer cancel()

	rec, err := h.deps.Faucet.Claim(ctx, req.Recipient)
	h.audit(r, "claim", zap.String("recipient", req.Recipient))
	return writeRecord(w, rec, err)
}

func (h *HTTP) returnTokens(w http.ResponseWriter, r *http.Request) error {
	ctx, cancel := h.submitContext(r.Context())
	defer cancel()

	rec, err := h.deps.Faucet.Return(ctx)
	h.audit(r, "return")
	return writeRecord(w, rec, err)
}

func (h *HTTP) sbtStatus(w http.ResponseWriter, r *http.Request) error {
	st, err := h.deps.SBT.Status(r.Context())
	if err != nil {
		return err
	}
	apphttp.WriteJSON(w, http.StatusOK, st)
	return nil
}

func (h *HTTP) mint(w http.ResponseWriter, r *http.Request) error {
	var req mintRequest
	if err := decodeBody(r, &req); err != nil {
		return err
	}
	ctx, cancel := h.submitContext(r.Context())
	defer cancel()

	rec, err := h.deps.SBT.Mint(ctx, req.Name, req.Description)
	h.audit(r, "mint")
	return writeRecord(w, rec, err)
}

func (h *HTTP) events(w http.ResponseWriter, _ *http.Request) error {
	apphttp.WriteJSON(w, http.StatusOK, eventsResponse{Events: h.deps.Events.Events()})
	return nil
}

func (h *HTTP) submitContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if h.deps.SubmitTimeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, h.deps.SubmitTimeout)
}

func (h *HTTP) audit(r *http.Request, action string, fields ...zap.Field) {
	if sub, ok := auth.SubjectFromContext(r.Context()); ok {
		fields = append(fields, zap.String("subject", sub))
	}
	h.logger.Info("API action", append(fields, zap.String("action", action))...)
}

// writeRecord answers with the record even when the submission failed, so the
// caller sees the attempts and the classified error.
func writeRecord(w http.ResponseWriter, rec *orchestrator.Record, err error) error {
	if err == nil {
		apphttp.WriteJSON(w, http.StatusOK, txResponse{Record: rec})
		return nil
	}
	if rec == nil {
		return err
	}
	status, body := apphttp.ErrorBody(err)
	apphttp.WriteJSON(w, status, txResponse{Record: rec, Error: &body})
	return nil
}

// decodeBody reads an optional JSON body into dst.
func decodeBody(r *http.Request, dst any) error {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodySize))
	if err != nil {
		return apperrors.ValidationError(err, "failed to read request body")
	}
	if len(body) == 0 {
		return nil
	}
	if err := json.Unmarshal(body, dst); err != nil {
		var syntaxErr *json.SyntaxError
		if errors.As(err, &syntaxErr) {
			return apperrors.ValidationError(err, "invalid JSON")
		}
		return apperrors.ValidationError(err, "invalid request body")
	}
	return nil
}
