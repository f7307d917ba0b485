// Package login serves the browser side of the authorization code grant:
// redirecting to the provider and handling its callback
package login

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/wrale/oauth2-flows/cmd/oauth2-client-demo/handlers/common"
	"github.com/wrale/oauth2-flows/internal/authcode"
	"github.com/wrale/oauth2-flows/internal/endpoint"
	"github.com/wrale/oauth2-flows/internal/oauth"
	"github.com/wrale/oauth2-flows/internal/scope"
	"github.com/wrale/oauth2-flows/internal/session"
	"github.com/wrale/oauth2-flows/internal/templates"
	"github.com/wrale/oauth2-flows/internal/userinfo"
)

// Provider is an authorization server able to describe its user info
type Provider interface {
	oauth.AuthorizationCodeProvider
	userinfo.Builder[scope.String]
}

// Sessions issues and redeems per-login state
type Sessions interface {
	Begin(ctx context.Context, provider string) (*session.AuthState, error)
	Resume(ctx context.Context, provider, state string) (*session.AuthState, error)
}

// Pages renders the HTML responses of the handler
type Pages interface {
	RenderComplete(w http.ResponseWriter, data templates.CompleteData) error
	RenderError(w http.ResponseWriter, status int, data templates.ErrorData) error
}

// Config holds handler dependencies
type Config struct {
	ProviderName string
	Provider     Provider
	Scopes       scope.Parameter[scope.String]
	Client       endpoint.Client
	Sessions     Sessions
	Pages        Pages
	Logger       *slog.Logger
}

// Handler serves /login and /callback
type Handler struct {
	cfg  Config
	flow *authcode.Flow[scope.String]
	log  *slog.Logger
}

// New creates a login handler
func New(cfg Config) *Handler {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{
		cfg:  cfg,
		flow: authcode.NewFlow[scope.String](cfg.Client, authcode.WithLogger(logger)),
		log:  logger,
	}
}

// Login starts a sign in by redirecting to the authorization endpoint
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	st, err := h.cfg.Sessions.Begin(r.Context(), h.cfg.ProviderName)
	if err != nil {
		h.log.Error("starting login", "error", err)
		h.renderError(w, http.StatusInternalServerError, "Sign In Unavailable", "Unable to start the sign in.", "")
		return
	}

	u, err := h.flow.BuildAuthorizationURL(h.cfg.Provider, h.cfg.Scopes, st.State,
		authcode.WithCodeChallenge(st.CodeChallenge(), "S256"),
		authcode.WithNonce(st.Nonce),
	)
	if err != nil {
		h.log.Error("building authorization URL", "error", err)
		h.renderError(w, http.StatusInternalServerError, "Sign In Unavailable", "The provider is not configured for browser sign in.", "")
		return
	}

	w.Header().Set("Cache-Control", "no-store")
	http.Redirect(w, r, u.String(), http.StatusFound)
}

// Callback completes a sign in from the authorization server redirect
func (h *Handler) Callback(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	st, err := h.cfg.Sessions.Resume(ctx, h.cfg.ProviderName, r.URL.Query().Get("state"))
	if err != nil {
		h.log.Warn("rejecting callback", "error", err)
		h.renderError(w, http.StatusBadRequest, "Invalid Request", "The sign in request is unknown or has expired.", "")
		return
	}

	tok, err := h.flow.HandleCallback(ctx, h.cfg.Provider, r.URL.RawQuery, st.State,
		authcode.WithCodeVerifier(st.CodeVerifier),
	)
	if err != nil {
		h.callbackFailed(w, err)
		return
	}

	info := userinfo.AuthorizationCode(h.cfg.Provider, h.cfg.Scopes)
	user, err := userinfo.Obtain[scope.String](ctx, h.cfg.Client, h.cfg.Provider, info, tok)
	if err != nil && !errors.Is(err, userinfo.ErrNotAvailable) {
		h.log.Warn("fetching user info", "error", err)
	}

	data := templates.CompleteData{
		Provider: h.cfg.ProviderName,
		Grant:    string(oauth.GrantAuthorizationCode),
		Scope:    tok.Scope.String(),
	}
	if tok.ExpiresIn != nil {
		data.ExpiresIn = strconv.FormatInt(*tok.ExpiresIn, 10) + "s"
	}
	if user != nil {
		data.Subject = user.UID
		data.Name = user.Name
		data.Email = user.Email
	}

	h.log.Info("sign in completed", "provider", h.cfg.ProviderName, "subject", data.Subject)
	if err := h.cfg.Pages.RenderComplete(w, data); err != nil {
		h.log.Error("rendering page", "error", err)
	}
}

func (h *Handler) callbackFailed(w http.ResponseWriter, err error) {
	var ae *authcode.Error
	if errors.As(err, &ae) && ae.Phase == authcode.PhaseCallback {
		code := common.ErrorCode(err)
		h.log.Info("authorization callback rejected", "error", err)
		h.renderError(w, http.StatusBadRequest, "Authorization Failed", "The authorization server did not grant access.", code)
		return
	}

	h.log.Error("exchanging authorization code", "error", err)
	h.renderError(w, http.StatusBadGateway, "Authorization Failed", "Unable to redeem the authorization code.", common.ErrorCode(err))
}

func (h *Handler) renderError(w http.ResponseWriter, status int, title, message, code string) {
	if err := h.cfg.Pages.RenderError(w, status, templates.ErrorData{
		Title:   title,
		Message: message,
		Code:    code,
	}); err != nil {
		h.log.Error("rendering error page", "error", err)
		http.Error(w, "error rendering page", http.StatusInternalServerError)
	}
}
