// Package authorize serves the account-linking login page
package authorize

import (
	"context"
	"errors"
	"io"
	"net/http"

	"go.uber.org/zap"

	"github.com/wrale/smarthome-transit-sensor/cmd/smarthome-sensor/handlers/common"
	"github.com/wrale/smarthome-transit-sensor/internal/credentials"
	"github.com/wrale/smarthome-transit-sensor/internal/csrf"
	"github.com/wrale/smarthome-transit-sensor/internal/templates"
)

// Flow is the part of the authorization flow the login page drives
type Flow interface {
	StartAuthorization(ctx context.Context, req credentials.AuthorizationRequest) error
	CompleteLogin(ctx context.Context) (string, error)
}

// Renderer renders the login and error pages
type Renderer interface {
	RenderLogin(w io.Writer, data templates.LoginData) error
	RenderError(w io.Writer, data templates.ErrorData) error
}

// TokenGuard issues and verifies login form tokens
type TokenGuard interface {
	Issue(ctx context.Context) (string, error)
	Verify(ctx context.Context, token string) error
}

// Config contains handler dependencies
type Config struct {
	Flow      Flow
	Templates Renderer
	CSRF      TokenGuard  // nil disables form tokens
	Logger    *zap.Logger // optional
}

// Handler serves GET (start) and POST (login) on the authorization endpoint
type Handler struct {
	flow      Flow
	templates Renderer
	csrf      TokenGuard
	logger    *zap.Logger
}

// New creates an authorization handler
func New(cfg Config) *Handler {
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{
		flow:      cfg.Flow,
		templates: cfg.Templates,
		csrf:      cfg.CSRF,
		logger:    logger,
	}
}

// ServeHTTP dispatches on method
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		h.start(w, r)
	case http.MethodPost:
		h.login(w, r)
	default:
		w.Header().Set("Allow", "GET, POST")
		common.WriteText(w, http.StatusMethodNotAllowed, "Method not allowed")
	}
}

// start records the caller's redirect target and state, then shows the login form
func (h *Handler) start(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	req := credentials.AuthorizationRequest{
		ClientID:    q.Get("client_id"),
		RedirectURI: q.Get("redirect_uri"),
		State:       q.Get("state"),
	}

	if err := h.flow.StartAuthorization(r.Context(), req); err != nil {
		h.logger.Error("starting authorization", zap.Error(err))
		h.renderError(w, http.StatusInternalServerError, "Authorization Unavailable",
			"Unable to start account linking. Please try again.")
		return
	}

	data := templates.LoginData{Action: r.URL.Path}
	if h.csrf != nil {
		token, err := h.csrf.Issue(r.Context())
		if err != nil {
			h.logger.Error("issuing login form token", zap.Error(err))
			h.renderError(w, http.StatusInternalServerError, "Authorization Unavailable",
				"Unable to start account linking. Please try again.")
			return
		}
		data.CSRFToken = token
	}

	h.logger.Debug("authorization started", zap.String("client_id", req.ClientID))

	setPageHeaders(w)
	if err := h.templates.RenderLogin(w, data); err != nil {
		h.logger.Error("rendering login page", zap.Error(err))
		common.WriteText(w, http.StatusInternalServerError, "Error rendering page")
	}
}

// login issues an authorization code and redirects back to the caller
func (h *Handler) login(w http.ResponseWriter, r *http.Request) {
	if h.csrf != nil {
		if err := r.ParseForm(); err != nil {
			h.renderError(w, http.StatusBadRequest, "Invalid Request", "The login form could not be read.")
			return
		}
		if err := h.csrf.Verify(r.Context(), r.PostForm.Get(csrf.FieldName)); err != nil {
			h.logger.Info("rejected login form token", zap.Error(err))
			h.renderError(w, http.StatusForbidden, "Session Expired",
				"The login form has expired. Start account linking again.")
			return
		}
	}

	redirect, err := h.flow.CompleteLogin(r.Context())
	if err != nil {
		if errors.Is(err, credentials.ErrNoPendingAuthorization) {
			h.renderError(w, http.StatusBadRequest, "No Login In Progress",
				"Start account linking from your assistant app.")
			return
		}
		h.logger.Error("completing login", zap.Error(err))
		h.renderError(w, http.StatusInternalServerError, "Login Failed",
			"Unable to complete account linking. Please try again.")
		return
	}

	http.Redirect(w, r, redirect, http.StatusFound)
}

func (h *Handler) renderError(w http.ResponseWriter, status int, title, message string) {
	setPageHeaders(w)
	w.WriteHeader(status)
	if err := h.templates.RenderError(w, templates.ErrorData{Title: title, Message: message}); err != nil {
		h.logger.Error("rendering error page", zap.Error(err))
	}
}

func setPageHeaders(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Cache-Control", "no-store")
}
