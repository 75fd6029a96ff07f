// Package token serves the OAuth token endpoint
package token

import (
	"context"
	"encoding/json"
	"errors"
	"mime"
	"net/http"

	"go.uber.org/zap"

	"github.com/wrale/smarthome-transit-sensor/cmd/smarthome-sensor/handlers/common"
	"github.com/wrale/smarthome-transit-sensor/internal/credentials"
)

const maxBodyBytes = 64 << 10

// Plain-text error bodies returned with 400
const (
	MsgInvalidCode         = "Invalid authorization code"
	MsgInvalidRefreshToken = "Invalid refresh token"
	MsgUnsupportedGrant    = "Unsupported grant type"
	MsgInvalidGrant        = "Invalid grant"
	MsgInvalidRequest      = "Invalid request body"
)

// Grant outcomes reported to the observer
const (
	OutcomeSuccess          = "success"
	OutcomeInvalidGrant     = "invalid_grant"
	OutcomeUnsupportedGrant = "unsupported_grant"
	OutcomeError            = "error"
)

// Exchanger exchanges a grant for tokens
type Exchanger interface {
	ExchangeGrant(ctx context.Context, grant credentials.TokenGrant) (*credentials.TokenResponse, error)
}

// GrantObserver records token exchange outcomes
type GrantObserver interface {
	ObserveGrant(grantType, outcome string)
}

// Config contains handler dependencies
type Config struct {
	Flow     Exchanger
	Observer GrantObserver // optional
	Logger   *zap.Logger   // optional
}

// Handler processes token requests
type Handler struct {
	flow     Exchanger
	observer GrantObserver
	logger   *zap.Logger
}

// New creates a token handler
func New(cfg Config) *Handler {
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{
		flow:     cfg.Flow,
		observer: cfg.Observer,
		logger:   logger,
	}
}

// request accepts both JSON and form encoded bodies
type request struct {
	GrantType    string `json:"grant_type"`
	Code         string `json:"code"`
	RefreshToken string `json:"refresh_token"`
}

// ServeHTTP handles token exchange requests
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.Header().Set("Allow", http.MethodPost)
		common.WriteText(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	req, err := parseRequest(w, r)
	if err != nil {
		common.WriteText(w, http.StatusBadRequest, MsgInvalidRequest)
		return
	}

	grant := credentials.TokenGrant{
		Type:         credentials.GrantType(req.GrantType),
		Code:         req.Code,
		RefreshToken: req.RefreshToken,
	}

	resp, err := h.flow.ExchangeGrant(r.Context(), grant)
	if err != nil {
		h.writeExchangeError(w, grant.Type, err)
		return
	}

	h.observe(grant.Type, OutcomeSuccess)
	common.WriteJSON(w, http.StatusOK, resp)
}

func (h *Handler) writeExchangeError(w http.ResponseWriter, grantType credentials.GrantType, err error) {
	switch {
	case errors.Is(err, credentials.ErrInvalidCode):
		h.observe(grantType, OutcomeInvalidGrant)
		common.WriteText(w, http.StatusBadRequest, MsgInvalidCode)
	case errors.Is(err, credentials.ErrInvalidRefreshToken):
		h.observe(grantType, OutcomeInvalidGrant)
		common.WriteText(w, http.StatusBadRequest, MsgInvalidRefreshToken)
	case errors.Is(err, credentials.ErrInvalidGrant):
		h.observe(grantType, OutcomeInvalidGrant)
		common.WriteText(w, http.StatusBadRequest, MsgInvalidGrant)
	case errors.Is(err, credentials.ErrUnsupportedGrant):
		h.observe(grantType, OutcomeUnsupportedGrant)
		common.WriteText(w, http.StatusBadRequest, MsgUnsupportedGrant)
	default:
		h.observe(grantType, OutcomeError)
		h.logger.Error("token exchange failed",
			zap.String("grant_type", string(grantType)),
			zap.Error(err),
		)
		common.WriteText(w, http.StatusInternalServerError, "Internal server error")
	}
}

func (h *Handler) observe(grantType credentials.GrantType, outcome string) {
	if h.observer == nil {
		return
	}
	label := string(grantType)
	if grantType != credentials.GrantAuthorizationCode && grantType != credentials.GrantRefreshToken {
		label = "other"
	}
	h.observer.ObserveGrant(label, outcome)
}

func parseRequest(w http.ResponseWriter, r *http.Request) (request, error) {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)

	var req request
	if mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type")); mediaType == "application/json" {
		err := json.NewDecoder(r.Body).Decode(&req)
		return req, err
	}

	if err := r.ParseForm(); err != nil {
		return req, err
	}
	req.GrantType = r.PostForm.Get("grant_type")
	req.Code = r.PostForm.Get("code")
	req.RefreshToken = r.PostForm.Get("refresh_token")
	return req, nil
}
