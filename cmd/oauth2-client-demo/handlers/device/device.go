// Package device serves the device authorization grant for browsers on
// another machine: it shows the user code and polls the token endpoint in
// the background until the user approves.
package device

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/wrale/oauth2-flows/cmd/oauth2-client-demo/handlers/common"
	"github.com/wrale/oauth2-flows/internal/deviceflow"
	"github.com/wrale/oauth2-flows/internal/endpoint"
	"github.com/wrale/oauth2-flows/internal/oauth"
	"github.com/wrale/oauth2-flows/internal/scope"
	"github.com/wrale/oauth2-flows/internal/templates"
	"github.com/wrale/oauth2-flows/internal/userinfo"
)

// Status values reported for a pending sign in
const (
	StatusPending  = "pending"
	StatusComplete = "complete"
	StatusFailed   = "failed"
)

// resultTTL bounds how long finished sign ins stay queryable
const resultTTL = time.Hour

// Provider is an authorization server supporting RFC 8628 that can
// describe its user info
type Provider interface {
	oauth.DeviceAuthorizationProvider
	userinfo.Builder[scope.String]
}

// Pages renders the HTML responses of the handler
type Pages interface {
	RenderDevice(w http.ResponseWriter, data templates.DeviceData) error
	RenderError(w http.ResponseWriter, status int, data templates.ErrorData) error
}

// Config holds handler dependencies
type Config struct {
	ProviderName string
	Provider     Provider
	Scopes       scope.Parameter[scope.String]
	Client       endpoint.Client
	Pages        Pages
	Logger       *slog.Logger

	// FlowOptions configure the polling loop
	FlowOptions []deviceflow.Option
}

// Result is the JSON status of one device sign in
type Result struct {
	Status  string `json:"status"`
	Subject string `json:"subject,omitempty"`
	Name    string `json:"name,omitempty"`
	Scope   string `json:"scope,omitempty"`
	Error   string `json:"error,omitempty"`

	updated time.Time
}

// Handler serves /device and /device/status/{id}
type Handler struct {
	cfg  Config
	flow *deviceflow.Flow[scope.String]
	log  *slog.Logger

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu      sync.Mutex
	results map[string]*Result
	now     func() time.Time
}

// New creates a device handler. Background polls stop when Close is
// called.
func New(cfg Config) *Handler {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	opts := append([]deviceflow.Option{deviceflow.WithLogger(logger)}, cfg.FlowOptions...)

	ctx, cancel := context.WithCancel(context.Background())
	return &Handler{
		cfg:     cfg,
		flow:    deviceflow.NewFlow[scope.String](cfg.Client, opts...),
		log:     logger,
		ctx:     ctx,
		cancel:  cancel,
		results: make(map[string]*Result),
		now:     time.Now,
	}
}

// Start requests a device code, renders it and polls in the background
func (h *Handler) Start(w http.ResponseWriter, r *http.Request) {
	auth, err := h.flow.Authorize(r.Context(), h.cfg.Provider, h.cfg.Scopes)
	if err != nil {
		h.log.Error("device authorization", "error", err)
		if rerr := h.cfg.Pages.RenderError(w, http.StatusBadGateway, templates.ErrorData{
			Title:   "Device Sign In Unavailable",
			Message: "The authorization server did not issue a device code.",
			Code:    common.ErrorCode(err),
		}); rerr != nil {
			http.Error(w, "error rendering page", http.StatusInternalServerError)
		}
		return
	}

	id, err := newID()
	if err != nil {
		h.log.Error("generating device sign in id", "error", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	h.track(id)

	h.wg.Add(1)
	go h.poll(id, auth)

	if err := h.cfg.Pages.RenderDevice(w, templates.DeviceData{
		UserCode:                auth.UserCode,
		VerificationURI:         auth.VerificationURI,
		VerificationURIComplete: auth.VerificationURIComplete,
		StatusURL:               "/device/status/" + id,
		ExpiresIn:               auth.ExpiresIn,
	}); err != nil {
		h.log.Error("rendering page", "error", err)
	}
}

// Status reports the state of a device sign in as JSON
func (h *Handler) Status(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	h.mu.Lock()
	res, ok := h.results[id]
	var out Result
	if ok {
		out = *res
	}
	h.mu.Unlock()

	if !ok {
		common.WriteError(w, http.StatusNotFound, "not_found", "unknown or expired device sign in")
		return
	}
	common.WriteJSON(w, http.StatusOK, out)
}

// Close stops background polling and waits for it to finish
func (h *Handler) Close() {
	h.cancel()
	h.wg.Wait()
}

func (h *Handler) poll(id string, auth *oauth.DeviceAuthorizationResponse) {
	defer h.wg.Done()

	ctx := h.ctx
	if lifetime := auth.Lifetime(); lifetime > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, lifetime)
		defer cancel()
	}

	tok, err := h.flow.Poll(ctx, h.cfg.Provider, auth)
	if err != nil {
		res := Result{Status: StatusFailed, Error: common.ErrorCode(err)}
		switch {
		case res.Error != "":
		case errors.Is(err, deviceflow.ErrExhausted), errors.Is(err, context.DeadlineExceeded):
			res.Error = string(oauth.ErrorCodeExpiredToken)
		default:
			res.Error = string(oauth.ErrorCodeServerError)
		}
		h.finish(id, res)
		return
	}

	res := Result{Status: StatusComplete, Scope: tok.Scope.String()}
	info := userinfo.DeviceCode(h.cfg.Provider, h.cfg.Scopes)
	user, err := userinfo.Obtain[scope.String](ctx, h.cfg.Client, h.cfg.Provider, info, tok)
	switch {
	case err == nil:
		res.Subject = user.UID
		res.Name = user.Name
	case !errors.Is(err, userinfo.ErrNotAvailable):
		h.log.Warn("fetching user info", "error", err)
	}
	h.finish(id, res)
}

func (h *Handler) track(id string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	now := h.now()
	for k, res := range h.results {
		if res.Status != StatusPending && now.Sub(res.updated) > resultTTL {
			delete(h.results, k)
		}
	}
	h.results[id] = &Result{Status: StatusPending, updated: now}
}

func (h *Handler) finish(id string, res Result) {
	h.mu.Lock()
	defer h.mu.Unlock()

	res.updated = h.now()
	h.results[id] = &res
	h.log.Info("device sign in finished", "id", id, "status", res.Status, "error", res.Error)
}

func newID() (string, error) {
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}
