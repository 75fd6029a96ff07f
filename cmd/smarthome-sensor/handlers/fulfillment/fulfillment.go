// Package fulfillment serves the smart-home webhook
package fulfillment

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"go.uber.org/zap"

	"github.com/wrale/smarthome-transit-sensor/cmd/smarthome-sensor/handlers/common"
	"github.com/wrale/smarthome-transit-sensor/internal/smarthome"
)

const maxBodyBytes = 1 << 20

// Plain-text error bodies returned with 400
const (
	MsgUnknownIntent  = "Unknown intent"
	MsgInvalidRequest = "Invalid request body"
	MsgMissingInputs  = "Missing inputs"
	MsgInvalidPayload = "Invalid intent payload"
)

// Dispatcher handles one fulfillment request
type Dispatcher interface {
	Dispatch(ctx context.Context, req *smarthome.Request) (*smarthome.Response, error)
}

// Handler decodes fulfillment requests and writes the dispatcher's response
type Handler struct {
	dispatcher Dispatcher
	logger     *zap.Logger
}

// New creates a fulfillment handler
func New(dispatcher Dispatcher, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{dispatcher: dispatcher, logger: logger}
}

// ServeHTTP handles webhook requests
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.Header().Set("Allow", http.MethodPost)
		common.WriteText(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	var req smarthome.Request
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&req); err != nil {
		common.WriteText(w, http.StatusBadRequest, MsgInvalidRequest)
		return
	}

	resp, err := h.dispatcher.Dispatch(r.Context(), &req)
	if err != nil {
		switch {
		case errors.Is(err, smarthome.ErrUnknownIntent):
			common.WriteText(w, http.StatusBadRequest, MsgUnknownIntent)
		case errors.Is(err, smarthome.ErrNoInputs):
			common.WriteText(w, http.StatusBadRequest, MsgMissingInputs)
		case errors.Is(err, smarthome.ErrInvalidPayload):
			common.WriteText(w, http.StatusBadRequest, MsgInvalidPayload)
		default:
			h.logger.Error("dispatching intent",
				zap.String("request_id", req.RequestID),
				zap.Error(err),
			)
			common.WriteText(w, http.StatusInternalServerError, "Internal server error")
		}
		return
	}

	common.WriteJSON(w, http.StatusOK, resp)
}
