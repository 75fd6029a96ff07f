package main

import (
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/wrale/smarthome-transit-sensor/internal/arrival"
	"github.com/wrale/smarthome-transit-sensor/internal/credentials"
	"github.com/wrale/smarthome-transit-sensor/internal/csrf"
	"github.com/wrale/smarthome-transit-sensor/internal/metrics"
	"github.com/wrale/smarthome-transit-sensor/internal/smarthome"
	"github.com/wrale/smarthome-transit-sensor/internal/templates"
)

// errMissingCSRFSecret is returned when LOGIN_CSRF is on without a secret
var errMissingCSRFSecret = errors.New("CSRF_SECRET is required when LOGIN_CSRF is enabled")

// components are the domain services the HTTP layer is built over
type components struct {
	flow       *credentials.Flow
	csrf       *csrf.Manager // nil when login form tokens are disabled
	dispatcher *smarthome.Dispatcher
	templates  *templates.Templates
}

// newComponents wires the domain packages. A nil rdb selects in-memory stores.
func newComponents(cfg Config, rdb *redis.Client, oracle arrival.Oracle, m *metrics.Metrics, logger *zap.Logger) (*components, error) {
	var (
		credStore credentials.Store
		csrfStore csrf.Store
	)
	if rdb != nil {
		credStore = credentials.NewRedisStore(rdb)
		csrfStore = csrf.NewRedisStore(rdb)
	} else {
		credStore = credentials.NewMemoryStore()
		csrfStore = csrf.NewMemoryStore()
	}

	flowOpts := []credentials.Option{
		credentials.WithTokenExpiry(cfg.TokenExpiry),
		credentials.WithCodeBytes(cfg.CodeBytes),
	}
	if cfg.SingleUseCodes {
		flowOpts = append(flowOpts, credentials.WithSingleUseCodes())
	}
	flow := credentials.NewFlow(credStore, credentials.TokenPair{
		AccessToken:  cfg.AccessToken,
		RefreshToken: cfg.RefreshToken,
	}, flowOpts...)

	var csrfManager *csrf.Manager
	if cfg.LoginCSRF {
		if cfg.CSRFSecret == "" {
			return nil, errMissingCSRFSecret
		}
		csrfManager = csrf.NewManager(csrfStore, []byte(cfg.CSRFSecret), cfg.CSRFTokenExpiry)
	}

	device := smarthome.DefaultDevice(cfg.DeviceID)
	if cfg.DeviceFile != "" {
		var err error
		if device, err = smarthome.LoadDevice(cfg.DeviceFile, cfg.DeviceID); err != nil {
			return nil, fmt.Errorf("loading device definition: %w", err)
		}
	}

	queryOpts := []smarthome.QueryOption{
		smarthome.WithOracleTimeout(cfg.OracleTimeout),
		smarthome.WithQueryLogger(logger.Named("query")),
	}
	if cfg.ReportUnknownAsError {
		queryOpts = append(queryOpts, smarthome.WithUnknownAsError())
	}
	query := smarthome.NewQueryHandler(oracle, device.ID, smarthome.Route{
		StopCode:  cfg.BusStopCode,
		ServiceNo: cfg.BusServiceNo,
	}, queryOpts...)

	dispatcher := smarthome.NewDispatcher(device, cfg.AgentUserID, query,
		smarthome.WithIntentObserver(m),
		smarthome.WithDispatcherLogger(logger.Named("dispatcher")),
	)

	tmpls, err := templates.LoadTemplates()
	if err != nil {
		return nil, fmt.Errorf("loading templates: %w", err)
	}

	return &components{
		flow:       flow,
		csrf:       csrfManager,
		dispatcher: dispatcher,
		templates:  tmpls,
	}, nil
}
