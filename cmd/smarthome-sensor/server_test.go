package main

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"go.uber.org/zap"
	"golang.org/x/oauth2"

	"github.com/wrale/smarthome-transit-sensor/internal/arrival"
	"github.com/wrale/smarthome-transit-sensor/internal/metrics"
)

const redirectTarget = "https://oauth-redirect.googleusercontent.com/r/bus-status"

type fakeOracle struct {
	minutes int
	err     error
}

func (o fakeOracle) MinutesToArrival(context.Context, string, string) (int, error) {
	return o.minutes, o.err
}

func testConfig() Config {
	return Config{
		Port:            3000,
		BaseURL:         "http://localhost:3000",
		AccessToken:     "fake-access-token-12345",
		RefreshToken:    "fake-refresh-token-67890",
		TokenExpiry:     time.Hour,
		CodeBytes:       16,
		CSRFTokenExpiry: 15 * time.Minute,
		BusStopCode:     "68039",
		BusServiceNo:    "103",
		OracleTimeout:   time.Second,
		DeviceID:        "bus-arrival-sensor-123",
		AgentUserID:     "user-quahfamili",
		RequestTimeout:  5 * time.Second,
	}
}

// newTestServer starts the full router over in-memory stores
func newTestServer(t *testing.T, cfg Config, oracle arrival.Oracle) *httptest.Server {
	t.Helper()

	m := metrics.New()
	comps, err := newComponents(cfg, nil, oracle, m, zap.NewNop())
	if err != nil {
		t.Fatalf("newComponents() error = %v", err)
	}
	ts := httptest.NewServer(newServer(cfg, comps, m, zap.NewNop()).router)
	t.Cleanup(ts.Close)
	return ts
}

// noRedirectClient returns redirects to the caller instead of following them
func noRedirectClient() *http.Client {
	return &http.Client{
		CheckRedirect: func(*http.Request, []*http.Request) error {
			return http.ErrUseLastResponse
		},
	}
}

func oauthConfig(ts *httptest.Server) *oauth2.Config {
	return &oauth2.Config{
		ClientID:     "google",
		ClientSecret: "unused",
		RedirectURL:  redirectTarget,
		Endpoint: oauth2.Endpoint{
			AuthURL:   ts.URL + "/auth",
			TokenURL:  ts.URL + "/token",
			AuthStyle: oauth2.AuthStyleInParams,
		},
	}
}

// login walks the authorization endpoint and returns the issued code
func login(t *testing.T, ts *httptest.Server, conf *oauth2.Config, state string) string {
	t.Helper()
	client := noRedirectClient()

	resp, err := client.Get(conf.AuthCodeURL(state))
	if err != nil {
		t.Fatalf("GET /auth: %v", err)
	}
	body, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK || !strings.Contains(string(body), "<form") {
		t.Fatalf("GET /auth = %d, body:\n%s", resp.StatusCode, body)
	}

	resp, err = client.PostForm(ts.URL+"/auth", url.Values{})
	if err != nil {
		t.Fatalf("POST /auth: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusFound {
		t.Fatalf("POST /auth status = %d, want %d", resp.StatusCode, http.StatusFound)
	}

	loc, err := url.Parse(resp.Header.Get("Location"))
	if err != nil {
		t.Fatalf("parsing Location: %v", err)
	}
	if got := loc.Scheme + "://" + loc.Host + loc.Path; got != redirectTarget {
		t.Errorf("redirect target = %q, want %q", got, redirectTarget)
	}
	if got := loc.Query().Get("state"); got != state {
		t.Errorf("state = %q, want %q", got, state)
	}
	code := loc.Query().Get("code")
	if !strings.HasPrefix(code, "auth-code-") {
		t.Fatalf("code = %q, want auth-code- prefix", code)
	}
	return code
}

func TestAccountLinking(t *testing.T) {
	ts := newTestServer(t, testConfig(), fakeOracle{minutes: 7})
	conf := oauthConfig(ts)
	ctx := context.Background()

	code := login(t, ts, conf, "state-1")

	tok, err := conf.Exchange(ctx, code)
	if err != nil {
		t.Fatalf("Exchange() error = %v", err)
	}
	if tok.AccessToken != "fake-access-token-12345" {
		t.Errorf("AccessToken = %q", tok.AccessToken)
	}
	if tok.RefreshToken != "fake-refresh-token-67890" {
		t.Errorf("RefreshToken = %q", tok.RefreshToken)
	}
	if tok.TokenType != "Bearer" {
		t.Errorf("TokenType = %q", tok.TokenType)
	}
	if remaining := time.Until(tok.Expiry); remaining < 59*time.Minute || remaining > time.Hour {
		t.Errorf("expiry in %v, want about 1h", remaining)
	}

	// codes remain valid until the next login
	if _, err := conf.Exchange(ctx, code); err != nil {
		t.Errorf("replayed Exchange() error = %v", err)
	}

	expired := &oauth2.Token{RefreshToken: tok.RefreshToken, Expiry: time.Now().Add(-time.Minute)}
	refreshed, err := conf.TokenSource(ctx, expired).Token()
	if err != nil {
		t.Fatalf("refresh error = %v", err)
	}
	if refreshed.AccessToken != "fake-access-token-12345" {
		t.Errorf("refreshed AccessToken = %q", refreshed.AccessToken)
	}
	if refreshed.RefreshToken != tok.RefreshToken {
		t.Errorf("refreshed RefreshToken = %q, want original kept", refreshed.RefreshToken)
	}
}

func TestSecondLoginInvalidatesFirstCode(t *testing.T) {
	ts := newTestServer(t, testConfig(), fakeOracle{})
	conf := oauthConfig(ts)

	first := login(t, ts, conf, "one")
	second := login(t, ts, conf, "two")

	_, err := conf.Exchange(context.Background(), first)
	var rErr *oauth2.RetrieveError
	if !errors.As(err, &rErr) {
		t.Fatalf("Exchange(first) error = %v, want RetrieveError", err)
	}
	if rErr.Response.StatusCode != http.StatusBadRequest || string(rErr.Body) != "Invalid authorization code" {
		t.Errorf("Exchange(first) = %d %q", rErr.Response.StatusCode, rErr.Body)
	}

	if _, err := conf.Exchange(context.Background(), second); err != nil {
		t.Errorf("Exchange(second) error = %v", err)
	}
}

func TestSingleUseCodes(t *testing.T) {
	cfg := testConfig()
	cfg.SingleUseCodes = true
	ts := newTestServer(t, cfg, fakeOracle{})
	conf := oauthConfig(ts)

	code := login(t, ts, conf, "s")
	if _, err := conf.Exchange(context.Background(), code); err != nil {
		t.Fatalf("Exchange() error = %v", err)
	}
	if _, err := conf.Exchange(context.Background(), code); err == nil {
		t.Error("replayed Exchange() succeeded with single-use codes")
	}
}

func TestTokenEndpointErrors(t *testing.T) {
	ts := newTestServer(t, testConfig(), fakeOracle{})

	tests := []struct {
		name string
		form url.Values
		want string
	}{
		{name: "wrong code", form: url.Values{"grant_type": {"authorization_code"}, "code": {"nope"}}, want: "Invalid authorization code"},
		{name: "wrong refresh token", form: url.Values{"grant_type": {"refresh_token"}, "refresh_token": {"nope"}}, want: "Invalid refresh token"},
		{name: "unsupported grant", form: url.Values{"grant_type": {"password"}}, want: "Unsupported grant type"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, err := http.PostForm(ts.URL+"/token", tt.form)
			if err != nil {
				t.Fatalf("POST /token: %v", err)
			}
			defer resp.Body.Close()
			body, _ := io.ReadAll(resp.Body)

			if resp.StatusCode != http.StatusBadRequest {
				t.Errorf("status = %d, want 400", resp.StatusCode)
			}
			if diff := cmp.Diff(tt.want, string(body)); diff != "" {
				t.Errorf("body mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func postIntent(t *testing.T, ts *httptest.Server, body string) (int, string) {
	t.Helper()
	resp, err := http.Post(ts.URL+"/smarthome", "application/json", strings.NewReader(body))
	if err != nil {
		t.Fatalf("POST /smarthome: %v", err)
	}
	defer resp.Body.Close()
	data, _ := io.ReadAll(resp.Body)
	return resp.StatusCode, string(data)
}

func TestSmartHomeWebhook(t *testing.T) {
	tests := []struct {
		name       string
		cfg        func(*Config)
		oracle     fakeOracle
		body       string
		wantStatus int
		wantBody   string
	}{
		{
			name:       "query",
			oracle:     fakeOracle{minutes: 7},
			body:       `{"requestId":"r-1","inputs":[{"intent":"action.devices.QUERY","payload":{"devices":[{"id":"bus-arrival-sensor-123"}]}}]}`,
			wantStatus: http.StatusOK,
			wantBody:   `{"requestId":"r-1","payload":{"devices":{"bus-arrival-sensor-123":{"online":true,"status":"SUCCESS","currentSensorStateData":[{"name":"TimerRemainingSec","rawValue":7}]}}}}`,
		},
		{
			name:       "query without arrival data",
			oracle:     fakeOracle{minutes: arrival.Unknown, err: arrival.ErrNoService},
			body:       `{"requestId":"r-2","inputs":[{"intent":"action.devices.QUERY","payload":{"devices":[{"id":"bus-arrival-sensor-123"}]}}]}`,
			wantStatus: http.StatusOK,
			wantBody:   `{"requestId":"r-2","payload":{"devices":{"bus-arrival-sensor-123":{"online":true,"status":"SUCCESS","currentSensorStateData":[{"name":"TimerRemainingSec","rawValue":-1}]}}}}`,
		},
		{
			name:       "query without arrival data reported as error",
			cfg:        func(c *Config) { c.ReportUnknownAsError = true },
			oracle:     fakeOracle{minutes: arrival.Unknown, err: arrival.ErrNoService},
			body:       `{"requestId":"r-3","inputs":[{"intent":"action.devices.QUERY","payload":{"devices":[{"id":"bus-arrival-sensor-123"}]}}]}`,
			wantStatus: http.StatusOK,
			wantBody:   `{"requestId":"r-3","payload":{"devices":{"bus-arrival-sensor-123":{"online":true,"status":"ERROR","currentSensorStateData":[{"name":"TimerRemainingSec","rawValue":-1}]}}}}`,
		},
		{
			name:       "execute",
			body:       `{"requestId":"r-4","inputs":[{"intent":"action.devices.EXECUTE","payload":{"commands":[]}}]}`,
			wantStatus: http.StatusOK,
			wantBody:   `{"requestId":"r-4","payload":{"commands":[{"ids":["bus-arrival-sensor-123"],"status":"SUCCESS"}]}}`,
		},
		{
			name:       "unknown intent",
			body:       `{"requestId":"r-5","inputs":[{"intent":"action.devices.DISCONNECT"}]}`,
			wantStatus: http.StatusBadRequest,
			wantBody:   "Unknown intent",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := testConfig()
			if tt.cfg != nil {
				tt.cfg(&cfg)
			}
			ts := newTestServer(t, cfg, tt.oracle)

			status, body := postIntent(t, ts, tt.body)
			if status != tt.wantStatus {
				t.Errorf("status = %d, want %d", status, tt.wantStatus)
			}
			if diff := cmp.Diff(tt.wantBody, body); diff != "" {
				t.Errorf("body mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestSmartHomeSync(t *testing.T) {
	ts := newTestServer(t, testConfig(), fakeOracle{})

	status, body := postIntent(t, ts, `{"requestId":"sync-1","inputs":[{"intent":"action.devices.SYNC"}]}`)
	if status != http.StatusOK {
		t.Fatalf("status = %d, body %s", status, body)
	}

	var resp struct {
		RequestID string `json:"requestId"`
		Payload   struct {
			AgentUserID string `json:"agentUserId"`
			Devices     []struct {
				ID     string   `json:"id"`
				Type   string   `json:"type"`
				Traits []string `json:"traits"`
			} `json:"devices"`
		} `json:"payload"`
	}
	if err := json.Unmarshal([]byte(body), &resp); err != nil {
		t.Fatalf("decoding SYNC response: %v", err)
	}
	if resp.RequestID != "sync-1" || resp.Payload.AgentUserID != "user-quahfamili" {
		t.Errorf("envelope = %+v", resp)
	}
	if len(resp.Payload.Devices) != 1 {
		t.Fatalf("devices = %d, want 1", len(resp.Payload.Devices))
	}
	d := resp.Payload.Devices[0]
	if d.ID != "bus-arrival-sensor-123" || d.Type != "action.devices.types.SENSOR" {
		t.Errorf("device = %+v", d)
	}
}

func TestLoginCSRF(t *testing.T) {
	cfg := testConfig()
	cfg.LoginCSRF = true
	cfg.CSRFSecret = "test-secret"
	ts := newTestServer(t, cfg, fakeOracle{})
	client := noRedirectClient()

	resp, err := client.Get(oauthConfig(ts).AuthCodeURL("s"))
	if err != nil {
		t.Fatalf("GET /auth: %v", err)
	}
	page, _ := io.ReadAll(resp.Body)
	resp.Body.Close()

	const marker = `name="csrf_token" value="`
	i := strings.Index(string(page), marker)
	if i < 0 {
		t.Fatalf("login page has no csrf field:\n%s", page)
	}
	rest := string(page[i+len(marker):])
	token := rest[:strings.IndexByte(rest, '"')]

	resp, err = client.PostForm(ts.URL+"/auth", url.Values{})
	if err != nil {
		t.Fatalf("POST /auth: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusForbidden {
		t.Errorf("POST without token status = %d, want 403", resp.StatusCode)
	}

	resp, err = client.PostForm(ts.URL+"/auth", url.Values{"csrf_token": {token}})
	if err != nil {
		t.Fatalf("POST /auth: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusFound {
		t.Errorf("POST with token status = %d, want 302", resp.StatusCode)
	}
}

func TestLoginCSRFRequiresSecret(t *testing.T) {
	cfg := testConfig()
	cfg.LoginCSRF = true

	if _, err := newComponents(cfg, nil, fakeOracle{}, nil, zap.NewNop()); !errors.Is(err, errMissingCSRFSecret) {
		t.Errorf("newComponents() error = %v, want %v", err, errMissingCSRFSecret)
	}
}

func TestTokenRateLimit(t *testing.T) {
	cfg := testConfig()
	cfg.TokenRateLimit = 0.001
	cfg.TokenRateBurst = 1
	ts := newTestServer(t, cfg, fakeOracle{})

	form := url.Values{"grant_type": {"refresh_token"}, "refresh_token": {"fake-refresh-token-67890"}}
	statuses := make([]int, 0, 2)
	for i := 0; i < 2; i++ {
		resp, err := http.PostForm(ts.URL+"/token", form)
		if err != nil {
			t.Fatalf("POST /token: %v", err)
		}
		resp.Body.Close()
		statuses = append(statuses, resp.StatusCode)
	}

	if diff := cmp.Diff([]int{http.StatusOK, http.StatusTooManyRequests}, statuses); diff != "" {
		t.Errorf("statuses mismatch (-want +got):\n%s", diff)
	}
}

func TestHealthAndMetrics(t *testing.T) {
	ts := newTestServer(t, testConfig(), fakeOracle{minutes: 2})
	postIntent(t, ts, `{"requestId":"m","inputs":[{"intent":"action.devices.SYNC"}]}`)

	resp, err := http.Get(ts.URL + "/health")
	if err != nil {
		t.Fatalf("GET /health: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("health status = %d, want 200", resp.StatusCode)
	}

	resp, err = http.Get(ts.URL + "/metrics")
	if err != nil {
		t.Fatalf("GET /metrics: %v", err)
	}
	body, _ := io.ReadAll(resp.Body)
	resp.Body.Close()

	for _, want := range []string{
		`smarthome_intents_total{intent="action.devices.SYNC"} 1`,
		`smarthome_http_requests_total{method="POST",route="/smarthome",status="200"} 1`,
	} {
		if !strings.Contains(string(body), want) {
			t.Errorf("metrics missing %q", want)
		}
	}
}

func TestPanicsAreCounted(t *testing.T) {
	cfg := testConfig()
	m := metrics.New()
	comps, err := newComponents(cfg, nil, fakeOracle{}, m, zap.NewNop())
	if err != nil {
		t.Fatalf("newComponents() error = %v", err)
	}
	srv := newServer(cfg, comps, m, zap.NewNop())
	srv.router.Get("/panic", func(http.ResponseWriter, *http.Request) {
		panic("handler failure")
	})
	ts := httptest.NewServer(srv.router)
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/panic")
	if err != nil {
		t.Fatalf("GET /panic: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusInternalServerError {
		t.Fatalf("status = %d, want %d", resp.StatusCode, http.StatusInternalServerError)
	}

	resp, err = http.Get(ts.URL + "/metrics")
	if err != nil {
		t.Fatalf("GET /metrics: %v", err)
	}
	body, _ := io.ReadAll(resp.Body)
	resp.Body.Close()

	want := `smarthome_http_requests_total{method="GET",route="/panic",status="500"} 1`
	if !strings.Contains(string(body), want) {
		t.Errorf("metrics missing %q", want)
	}
}

func TestCodeBytes(t *testing.T) {
	cfg := testConfig()
	cfg.CodeBytes = 32
	ts := newTestServer(t, cfg, fakeOracle{minutes: 1})

	code := login(t, ts, oauthConfig(ts), "state-1")
	if got, want := len(code), len("auth-code-")+64; got != want {
		t.Errorf("code length = %d, want %d", got, want)
	}
}
