package main

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/wrale/smarthome-transit-sensor/cmd/smarthome-sensor/handlers/authorize"
	"github.com/wrale/smarthome-transit-sensor/cmd/smarthome-sensor/handlers/fulfillment"
	"github.com/wrale/smarthome-transit-sensor/cmd/smarthome-sensor/handlers/health"
	"github.com/wrale/smarthome-transit-sensor/cmd/smarthome-sensor/handlers/token"
	"github.com/wrale/smarthome-transit-sensor/internal/logging"
	"github.com/wrale/smarthome-transit-sensor/internal/metrics"
)

type server struct {
	cfg     Config
	router  *chi.Mux
	comps   *components
	metrics *metrics.Metrics
	logger  *zap.Logger
}

func newServer(cfg Config, comps *components, m *metrics.Metrics, logger *zap.Logger) *server {
	srv := &server{
		cfg:     cfg,
		router:  chi.NewRouter(),
		comps:   comps,
		metrics: m,
		logger:  logger,
	}

	srv.router.Use(middleware.RequestID)
	srv.router.Use(middleware.RealIP)
	srv.router.Use(logging.Middleware(logger.Named("http")))
	srv.router.Use(m.Instrument)
	srv.router.Use(middleware.Recoverer)
	srv.router.Use(middleware.Timeout(cfg.RequestTimeout))

	srv.routes()
	return srv
}

func (s *server) routes() {
	checks := map[string]health.Checker{"credentials": s.comps.flow}
	if s.comps.csrf != nil {
		checks["csrf"] = s.comps.csrf
	}
	s.router.Method(http.MethodGet, "/health", health.New(checks).WithVersion(Version))
	s.router.Method(http.MethodGet, "/metrics", s.metrics.Handler())

	authCfg := authorize.Config{
		Flow:      s.comps.flow,
		Templates: s.comps.templates,
		Logger:    s.logger.Named("authorize"),
	}
	if s.comps.csrf != nil {
		authCfg.CSRF = s.comps.csrf
	}
	auth := authorize.New(authCfg)
	s.router.Method(http.MethodGet, "/auth", auth)
	s.router.With(rateLimit(s.cfg.TokenRateLimit, s.cfg.TokenRateBurst)).Method(http.MethodPost, "/auth", auth)

	s.router.With(rateLimit(s.cfg.TokenRateLimit, s.cfg.TokenRateBurst)).Method(http.MethodPost, "/token", token.New(token.Config{
		Flow:     s.comps.flow,
		Observer: s.metrics,
		Logger:   s.logger.Named("token"),
	}))

	s.router.Method(http.MethodPost, "/smarthome", fulfillment.New(s.comps.dispatcher, s.logger.Named("fulfillment")))
}
