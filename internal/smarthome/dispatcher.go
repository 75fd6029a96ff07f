package smarthome

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"go.uber.org/zap"
)

var (
	// ErrUnknownIntent indicates an intent outside SYNC, QUERY and EXECUTE
	ErrUnknownIntent = errors.New("unknown intent")

	// ErrNoInputs indicates a request without any intent input
	ErrNoInputs = errors.New("request has no inputs")

	// ErrInvalidPayload indicates an intent payload that could not be decoded
	ErrInvalidPayload = errors.New("invalid intent payload")
)

// StateReader resolves device state for a QUERY
type StateReader interface {
	Query(ctx context.Context, ids []string) map[string]DeviceState
}

// IntentObserver is notified of every dispatched intent
type IntentObserver interface {
	ObserveIntent(intent string)
}

// Dispatcher routes fulfillment requests to the intent handlers
type Dispatcher struct {
	device      Device
	agentUserID string
	states      StateReader
	observer    IntentObserver
	logger      *zap.Logger
}

// DispatcherOption configures a Dispatcher
type DispatcherOption func(*Dispatcher)

// WithIntentObserver records intent counts
func WithIntentObserver(o IntentObserver) DispatcherOption {
	return func(d *Dispatcher) {
		d.observer = o
	}
}

// WithDispatcherLogger sets the dispatcher's logger
func WithDispatcherLogger(logger *zap.Logger) DispatcherOption {
	return func(d *Dispatcher) {
		if logger != nil {
			d.logger = logger
		}
	}
}

// NewDispatcher creates a dispatcher for a single device
func NewDispatcher(device Device, agentUserID string, states StateReader, opts ...DispatcherOption) *Dispatcher {
	d := &Dispatcher{
		device:      device,
		agentUserID: agentUserID,
		states:      states,
		logger:      zap.NewNop(),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Dispatch handles the first input of req. Successful responses always
// carry req.RequestID.
func (d *Dispatcher) Dispatch(ctx context.Context, req *Request) (*Response, error) {
	if req == nil || len(req.Inputs) == 0 {
		return nil, ErrNoInputs
	}
	input := req.Inputs[0]

	var (
		payload any
		err     error
	)
	switch input.Intent {
	case IntentSync:
		payload = d.sync()
	case IntentQuery:
		payload, err = d.query(ctx, input.Payload)
	case IntentExecute:
		payload = d.execute()
	default:
		d.observe("unknown")
		d.logger.Info("unknown intent",
			zap.String("request_id", req.RequestID),
			zap.String("intent", input.Intent),
		)
		return nil, fmt.Errorf("%w: %q", ErrUnknownIntent, input.Intent)
	}
	if err != nil {
		return nil, err
	}

	d.observe(input.Intent)
	d.logger.Debug("intent handled",
		zap.String("request_id", req.RequestID),
		zap.String("intent", input.Intent),
	)
	return &Response{RequestID: req.RequestID, Payload: payload}, nil
}

func (d *Dispatcher) sync() SyncPayload {
	return SyncPayload{
		AgentUserID: d.agentUserID,
		Devices:     []Device{d.device},
	}
}

func (d *Dispatcher) query(ctx context.Context, raw json.RawMessage) (QueryPayload, error) {
	var req QueryRequest
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &req); err != nil {
			return QueryPayload{}, fmt.Errorf("%w: %v", ErrInvalidPayload, err)
		}
	}

	ids := make([]string, 0, len(req.Devices))
	for _, ref := range req.Devices {
		ids = append(ids, ref.ID)
	}
	return QueryPayload{Devices: d.states.Query(ctx, ids)}, nil
}

// execute acknowledges any command for the read-only sensor
func (d *Dispatcher) execute() ExecutePayload {
	return ExecutePayload{
		Commands: []CommandResult{{
			IDs:    []string{d.device.ID},
			Status: StatusSuccess,
		}},
	}
}

func (d *Dispatcher) observe(intent string) {
	if d.observer != nil {
		d.observer.ObserveIntent(intent)
	}
}
