package smarthome

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/wrale/smarthome-transit-sensor/internal/arrival"
)

// DefaultOracleTimeout bounds a single upstream arrival lookup
const DefaultOracleTimeout = 8 * time.Second

// Route is the stop and service whose arrivals the sensor reports
type Route struct {
	StopCode  string
	ServiceNo string
}

// Snapshot is the state of one device at query time
type Snapshot struct {
	DeviceID string
	Online   bool
	Status   string
	Minutes  int // arrival.Unknown when unavailable
}

// State renders the snapshot in wire form
func (s Snapshot) State() DeviceState {
	return DeviceState{
		Online: s.Online,
		Status: s.Status,
		CurrentSensorStateData: []SensorState{{
			Name:     SensorTimerRemaining,
			RawValue: s.Minutes,
		}},
	}
}

// QueryHandler resolves device state for QUERY intents
type QueryHandler struct {
	oracle         arrival.Oracle
	deviceID       string
	route          Route
	timeout        time.Duration
	unknownAsError bool
	logger         *zap.Logger
}

// QueryOption configures a QueryHandler
type QueryOption func(*QueryHandler)

// WithOracleTimeout bounds each oracle call
func WithOracleTimeout(d time.Duration) QueryOption {
	return func(h *QueryHandler) {
		if d > 0 {
			h.timeout = d
		}
	}
}

// WithUnknownAsError reports the unknown sentinel with status ERROR
// instead of SUCCESS.
func WithUnknownAsError() QueryOption {
	return func(h *QueryHandler) {
		h.unknownAsError = true
	}
}

// WithQueryLogger sets the logger used for oracle failures
func WithQueryLogger(logger *zap.Logger) QueryOption {
	return func(h *QueryHandler) {
		if logger != nil {
			h.logger = logger
		}
	}
}

// NewQueryHandler creates a handler reporting arrivals on route for deviceID
func NewQueryHandler(oracle arrival.Oracle, deviceID string, route Route, opts ...QueryOption) *QueryHandler {
	h := &QueryHandler{
		oracle:   oracle,
		deviceID: deviceID,
		route:    route,
		timeout:  DefaultOracleTimeout,
		logger:   zap.NewNop(),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Snapshot consults the oracle once and builds the known device's state.
// Oracle failures never surface as errors; they produce arrival.Unknown.
func (h *QueryHandler) Snapshot(ctx context.Context) Snapshot {
	minutes, err := arrival.Resolve(ctx, h.oracle, h.route.StopCode, h.route.ServiceNo, h.timeout)
	if err != nil {
		h.logger.Warn("arrival lookup failed",
			zap.String("stop_code", h.route.StopCode),
			zap.String("service_no", h.route.ServiceNo),
			zap.Error(err),
		)
	}

	status := StatusSuccess
	if minutes == arrival.Unknown && h.unknownAsError {
		status = StatusError
	}
	return Snapshot{
		DeviceID: h.deviceID,
		Online:   true,
		Status:   status,
		Minutes:  minutes,
	}
}

// Query returns the state of every requested id that names the known
// device. Unknown ids are omitted. The oracle is called at most once.
func (h *QueryHandler) Query(ctx context.Context, ids []string) map[string]DeviceState {
	devices := make(map[string]DeviceState)
	for _, id := range ids {
		if id != h.deviceID {
			continue
		}
		if _, done := devices[id]; done {
			continue
		}
		devices[id] = h.Snapshot(ctx).State()
	}
	return devices
}
