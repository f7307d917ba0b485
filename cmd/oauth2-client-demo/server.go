package main

import (
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/wrale/oauth2-flows/cmd/oauth2-client-demo/handlers/device"
	"github.com/wrale/oauth2-flows/cmd/oauth2-client-demo/handlers/health"
	"github.com/wrale/oauth2-flows/cmd/oauth2-client-demo/handlers/login"
	"github.com/wrale/oauth2-flows/internal/deviceflow"
	"github.com/wrale/oauth2-flows/internal/endpoint"
	"github.com/wrale/oauth2-flows/internal/providers/keycloak"
	"github.com/wrale/oauth2-flows/internal/scope"
	"github.com/wrale/oauth2-flows/internal/session"
	"github.com/wrale/oauth2-flows/internal/templates"
)

type server struct {
	cfg       Config
	router    *chi.Mux
	provider  *keycloak.Provider
	scopes    scope.Parameter[scope.String]
	templates *templates.Templates
	sessions  *session.Manager
	login     *login.Handler
	device    *device.Handler
	logger    *slog.Logger
}

func newServer(cfg Config, client endpoint.Client, sessions *session.Manager, logger *slog.Logger) (*server, error) {
	tmpls, err := templates.LoadTemplates()
	if err != nil {
		return nil, fmt.Errorf("loading templates: %w", err)
	}

	provider, err := keycloak.New(keycloak.Config{
		BaseURL:      cfg.KeycloakURL,
		Realm:        cfg.KeycloakRealm,
		ClientID:     cfg.KeycloakClientID,
		ClientSecret: cfg.KeycloakClientSecret,
		RedirectURI:  cfg.RedirectURI(),
		BasicAuth:    cfg.KeycloakBasicAuth,
	})
	if err != nil {
		return nil, fmt.Errorf("configuring provider: %w", err)
	}

	scopes := scope.Parse[scope.String](cfg.Scopes)

	srv := &server{
		cfg:       cfg,
		router:    chi.NewRouter(),
		provider:  provider,
		scopes:    scopes,
		templates: tmpls,
		sessions:  sessions,
		logger:    logger,
	}

	srv.login = login.New(login.Config{
		ProviderName: keycloak.Name,
		Provider:     provider,
		Scopes:       scopes,
		Client:       client,
		Sessions:     sessions,
		Pages:        tmpls,
		Logger:       logger,
	})
	srv.device = device.New(device.Config{
		ProviderName: keycloak.Name,
		Provider:     provider,
		Scopes:       scopes,
		Client:       client,
		Pages:        tmpls,
		Logger:       logger,
		FlowOptions:  []deviceflow.Option{deviceflow.WithMaxRetryCount(cfg.DeviceMaxPolls)},
	})

	srv.router.Use(middleware.RequestID)
	srv.router.Use(middleware.RealIP)
	srv.router.Use(middleware.Logger)
	srv.router.Use(middleware.Recoverer)
	srv.router.Use(middleware.Timeout(30 * time.Second))

	srv.routes()

	return srv, nil
}

func (s *server) routes() {
	s.router.Get("/", s.handleHome())
	s.router.Method(http.MethodGet, "/health", health.New(map[string]health.Checker{
		"sessions": s.sessions,
	}).WithVersion(Version))

	s.router.Get("/login", s.login.Login)
	s.router.Get("/callback", s.login.Callback)

	s.router.Get("/device", s.device.Start)
	s.router.Get("/device/status/{id}", s.device.Status)
}

func (s *server) handleHome() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := s.templates.RenderHome(w, templates.HomeData{
			Provider: keycloak.Name,
			Scopes:   s.scopes.String(),
		}); err != nil {
			s.logger.Error("rendering page", "error", err)
			http.Error(w, "error rendering page", http.StatusInternalServerError)
		}
	}
}

// close stops background device polls
func (s *server) close() {
	s.device.Close()
}
