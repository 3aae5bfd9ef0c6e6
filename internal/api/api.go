package api

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/rs/cors"
	"go.uber.org/zap"
	"golang.org/x/oauth2"

	"github.com/susu3304/warikan/internal/config"
	"github.com/susu3304/warikan/internal/nomikai"
)

const discordAPIBase = "https://discord.com/api"

// SessionReader is the part of the session service the API reads from.
type SessionReader interface {
	Snapshot(ctx context.Context, channelID string) (*nomikai.Snapshot, error)
}

type API struct {
	router      *mux.Router
	sessions    SessionReader
	config      *config.Config
	oauthConfig *oauth2.Config
	jwtSecret   []byte
	discordAPI  string
	httpClient  *http.Client
	logger      *zap.Logger
	server      *http.Server
}

func New(cfg *config.Config, sessions SessionReader, logger *zap.Logger) *API {
	if logger == nil {
		logger = zap.NewNop()
	}
	api := &API{
		router:     mux.NewRouter(),
		sessions:   sessions,
		config:     cfg,
		jwtSecret:  []byte(cfg.JWTSecret),
		discordAPI: discordAPIBase,
		httpClient: &http.Client{Timeout: 10 * time.Second},
		logger:     logger,
		oauthConfig: &oauth2.Config{
			ClientID:     cfg.DiscordClientID,
			ClientSecret: cfg.DiscordClientSecret,
			RedirectURL:  cfg.DiscordRedirectURI,
			Scopes:       []string{"identify", "guilds"},
			Endpoint: oauth2.Endpoint{
				AuthURL:  "https://discord.com/api/oauth2/authorize",
				TokenURL: "https://discord.com/api/oauth2/token",
			},
		},
	}

	api.setupRoutes()
	api.server = &http.Server{
		Addr:              cfg.WebBind,
		Handler:           api.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	return api
}

func (a *API) setupRoutes() {
	a.router.HandleFunc("/api/health", a.handleHealth).Methods(http.MethodGet)

	// Auth endpoints
	a.router.HandleFunc("/api/auth/login", a.handleLogin).Methods(http.MethodGet)
	a.router.HandleFunc("/api/auth/callback", a.handleCallback).Methods(http.MethodGet)
	a.router.HandleFunc("/api/auth/logout", a.handleLogout).Methods(http.MethodPost)

	// Stateless calculation
	a.router.HandleFunc("/api/calculate", a.handleCalculate).Methods(http.MethodPost)
	a.router.HandleFunc("/api/allocate", a.handleAllocate).Methods(http.MethodPost)

	// Protected endpoints
	protected := a.router.PathPrefix("/api").Subrouter()
	protected.Use(a.authMiddleware)
	protected.HandleFunc("/channels/{channel_id}/status", a.handleChannelStatus).Methods(http.MethodGet)
}

// Handler returns the router wrapped with CORS.
func (a *API) Handler() http.Handler {
	// With a wildcard origin credentials must stay disabled.
	corsOptions := cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders:   []string{"Authorization", "Content-Type"},
		AllowCredentials: false,
	}
	return cors.New(corsOptions).Handler(a.router)
}

// Start blocks serving HTTP until Shutdown is called.
func (a *API) Start() error {
	a.logger.Info("api server listening", zap.String("addr", a.config.WebBind))
	if err := a.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (a *API) Shutdown(ctx context.Context) error {
	return a.server.Shutdown(ctx)
}
