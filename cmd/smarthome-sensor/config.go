package main

import (
	"errors"
	"time"

	"github.com/kelseyhightower/envconfig"
)

// Config holds server configuration loaded from environment variables
type Config struct {
	Port      int    `envconfig:"PORT" default:"3000"`
	BaseURL   string `envconfig:"BASE_URL" default:"http://localhost:3000"`
	LogLevel  string `envconfig:"LOG_LEVEL" default:"info"`
	LogFormat string `envconfig:"LOG_FORMAT" default:"json"`

	// Optional; in-memory stores are used when empty
	RedisURL string `envconfig:"REDIS_URL"`

	AccessToken    string        `envconfig:"ACCESS_TOKEN" default:"fake-access-token-12345"`
	RefreshToken   string        `envconfig:"REFRESH_TOKEN" default:"fake-refresh-token-67890"`
	TokenExpiry    time.Duration `envconfig:"TOKEN_EXPIRY" default:"1h"`
	SingleUseCodes bool          `envconfig:"SINGLE_USE_CODES" default:"false"`
	CodeBytes      int           `envconfig:"CODE_BYTES" default:"16"`

	LoginCSRF       bool          `envconfig:"LOGIN_CSRF" default:"false"`
	CSRFSecret      string        `envconfig:"CSRF_SECRET"`
	CSRFTokenExpiry time.Duration `envconfig:"CSRF_TOKEN_EXPIRY" default:"15m"`

	LTAAPIKey            string        `envconfig:"LTA_API_KEY"`
	LTABaseURL           string        `envconfig:"LTA_BASE_URL" default:"https://datamall2.mytransport.sg"`
	LTAHTTPTimeout       time.Duration `envconfig:"LTA_HTTP_TIMEOUT" default:"10s"`
	BusStopCode          string        `envconfig:"BUS_STOP_CODE" default:"68039"`
	BusServiceNo         string        `envconfig:"BUS_SERVICE_NO" default:"103"`
	OracleTimeout        time.Duration `envconfig:"ORACLE_TIMEOUT" default:"8s"`
	ReportUnknownAsError bool          `envconfig:"REPORT_UNKNOWN_AS_ERROR" default:"false"`

	DeviceID    string `envconfig:"DEVICE_ID" default:"bus-arrival-sensor-123"`
	AgentUserID string `envconfig:"AGENT_USER_ID" default:"user-quahfamili"`
	DeviceFile  string `envconfig:"DEVICE_FILE"`

	// Requests per second across all clients; 0 disables limiting
	TokenRateLimit float64 `envconfig:"TOKEN_RATE_LIMIT" default:"5"`
	TokenRateBurst int     `envconfig:"TOKEN_RATE_BURST" default:"10"`

	RequestTimeout    time.Duration `envconfig:"REQUEST_TIMEOUT" default:"30s"`
	ReadHeaderTimeout time.Duration `envconfig:"READ_HEADER_TIMEOUT" default:"5s"`
	ReadTimeout       time.Duration `envconfig:"READ_TIMEOUT" default:"15s"`
	WriteTimeout      time.Duration `envconfig:"WRITE_TIMEOUT" default:"35s"`
	IdleTimeout       time.Duration `envconfig:"IDLE_TIMEOUT" default:"60s"`
	ShutdownTimeout   time.Duration `envconfig:"SHUTDOWN_TIMEOUT" default:"10s"`
}

var (
	errEmptyAccessToken  = errors.New("ACCESS_TOKEN must not be empty")
	errEmptyRefreshToken = errors.New("REFRESH_TOKEN must not be empty")
)

// loadConfig reads Config from the environment
func loadConfig() (Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return Config{}, err
	}

	// An empty static token would never match a presented credential
	if cfg.AccessToken == "" {
		return Config{}, errEmptyAccessToken
	}
	if cfg.RefreshToken == "" {
		return Config{}, errEmptyRefreshToken
	}
	return cfg, nil
}
