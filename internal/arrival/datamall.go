package arrival

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const (
	// DefaultBaseURL is the LTA DataMall API root
	DefaultBaseURL = "https://datamall2.mytransport.sg"

	busArrivalPath = "/ltaodataservice/v3/BusArrival"

	// HTTP client timeout; callers normally impose a shorter deadline through the context
	defaultTimeout = 10 * time.Second

	maxResponseBytes = 1 << 20
)

// Config holds the DataMall client settings
type Config struct {
	BaseURL    string
	AccountKey string
}

// Client fetches bus arrival estimates from the LTA DataMall BusArrival API
type Client struct {
	client     *http.Client
	baseURL    string
	accountKey string
	now        func() time.Time
	observer   Observer
}

// Option configures a Client
type Option func(*Client)

// WithHTTPClient replaces the underlying HTTP client
func WithHTTPClient(c *http.Client) Option {
	return func(cl *Client) {
		cl.client = c
	}
}

// WithClock overrides the clock used to compute minutes remaining
func WithClock(now func() time.Time) Option {
	return func(cl *Client) {
		cl.now = now
	}
}

// WithObserver registers an observer for fetch outcomes
func WithObserver(o Observer) Option {
	return func(cl *Client) {
		cl.observer = o
	}
}

// NewClient creates a new DataMall client
func NewClient(cfg Config, opts ...Option) *Client {
	baseURL := strings.TrimSuffix(cfg.BaseURL, "/")
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}

	c := &Client{
		client:     &http.Client{Timeout: defaultTimeout},
		baseURL:    baseURL,
		accountKey: cfg.AccountKey,
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// busArrivalResponse is the subset of the BusArrival v3 payload we read
type busArrivalResponse struct {
	BusStopCode string    `json:"BusStopCode"`
	Services    []service `json:"Services"`
}

type service struct {
	ServiceNo string   `json:"ServiceNo"`
	Operator  string   `json:"Operator"`
	NextBus   *nextBus `json:"NextBus"`
}

type nextBus struct {
	EstimatedArrival string `json:"EstimatedArrival"` // RFC 3339, empty when no bus is scheduled
	Load             string `json:"Load"`
	Type             string `json:"Type"`
}

// MinutesToArrival implements Oracle
func (c *Client) MinutesToArrival(ctx context.Context, stopCode, serviceNo string) (minutes int, err error) {
	start := time.Now()
	defer func() {
		c.observe(err, time.Since(start))
	}()

	if c.accountKey == "" {
		return Unknown, ErrNotConfigured
	}

	body, err := c.fetch(ctx, stopCode, serviceNo)
	if err != nil {
		return Unknown, err
	}

	var resp busArrivalResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return Unknown, fmt.Errorf("%w: decoding response: %w", ErrUnavailable, err)
	}

	if len(resp.Services) == 0 {
		return Unknown, ErrNoService
	}

	next := resp.Services[0].NextBus
	if next == nil || next.EstimatedArrival == "" {
		return Unknown, ErrNoArrival
	}

	eta, err := time.Parse(time.RFC3339, next.EstimatedArrival)
	if err != nil {
		return Unknown, fmt.Errorf("%w: parsing estimated arrival %q: %w", ErrUnavailable, next.EstimatedArrival, err)
	}

	return minutesUntil(eta, c.now()), nil
}

func (c *Client) fetch(ctx context.Context, stopCode, serviceNo string) ([]byte, error) {
	params := url.Values{
		"BusStopCode": {stopCode},
		"ServiceNo":   {serviceNo},
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+busArrivalPath+"?"+params.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("%w: creating request: %w", ErrUnavailable, err)
	}
	req.Header.Set("AccountKey", c.accountKey)
	req.Header.Set("Accept", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: fetching bus arrival: %w", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, fmt.Errorf("%w: reading response: %w", ErrUnavailable, err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: upstream status %d", ErrUnavailable, resp.StatusCode)
	}

	return body, nil
}

func (c *Client) observe(err error, elapsed time.Duration) {
	if c.observer == nil {
		return
	}

	outcome := OutcomeOK
	switch {
	case err == nil:
	case errors.Is(err, ErrNotConfigured):
		outcome = OutcomeUnavailable
	case errors.Is(err, ErrNoService), errors.Is(err, ErrNoArrival):
		outcome = OutcomeNoData
	case errors.Is(err, context.DeadlineExceeded):
		outcome = OutcomeTimeout
	default:
		outcome = OutcomeError
	}
	c.observer.ObserveArrivalFetch(outcome, elapsed)
}
