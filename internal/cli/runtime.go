package cli

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/rs/zerolog"

	"github.com/andertben/skillspot-chat/internal/auth"
	"github.com/andertben/skillspot-chat/internal/config"
	"github.com/andertben/skillspot-chat/internal/db"
	"github.com/andertben/skillspot-chat/internal/events"
	"github.com/andertben/skillspot-chat/internal/logging"
	"github.com/andertben/skillspot-chat/internal/metrics"
	"github.com/andertben/skillspot-chat/internal/transport"
)

// app bundles the collaborators a command needs. Fields stay nil for the
// parts a command did not ask for.
type app struct {
	cfg     *config.Config
	hub     *events.Hub
	session *auth.Session
	client  *transport.Client
	metrics *metrics.Metrics
	db      *db.DB
	drafts  *db.DraftRepository
	logger  zerolog.Logger

	stopMetrics context.CancelFunc
}

type appOptions struct {
	database bool
	metrics  bool
}

func newApp(ctx context.Context, opts appOptions) (*app, error) {
	cfg := GetConfig()
	if cfg == nil {
		return nil, errors.New("configuration not loaded")
	}

	a := &app{
		cfg:    cfg,
		hub:    events.NewHub(),
		logger: logging.Component("cli"),
	}
	a.session = auth.NewSession(a.hub)

	if opts.metrics || cfg.Metrics.Addr != "" {
		a.metrics = metrics.New()
	}
	if cfg.Metrics.Addr != "" {
		mctx, cancel := context.WithCancel(ctx)
		a.stopMetrics = cancel
		go func() {
			if err := metrics.Serve(mctx, cfg.Metrics.Addr, a.metrics); err != nil {
				a.logger.Warn().Err(err).Msg("metrics server stopped")
			}
		}()
	}

	tokens, err := tokenProvider(ctx, cfg.Auth)
	if err != nil {
		a.Close()
		return nil, err
	}
	signedIn := tokens != nil
	if !signedIn {
		tokens = auth.TokenProviderFunc(func(context.Context) (string, error) {
			return "", auth.ErrNoToken
		})
	}
	a.client, err = transport.NewClient(transport.Options{
		BaseURL:   cfg.API.BaseURL,
		Tokens:    tokens,
		Timeout:   cfg.API.Timeout,
		RateLimit: cfg.API.RateLimit,
		RateBurst: cfg.API.RateBurst,
		Metrics:   a.metrics,
	})
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("create client: %w", err)
	}

	if opts.database {
		if err := cfg.EnsureDirectories(); err != nil {
			a.Close()
			return nil, err
		}
		dbCfg := db.DefaultConfig(cfg.DatabasePath())
		dbCfg.BusyTimeoutMs = cfg.Database.BusyTimeoutMs
		a.db, err = db.Open(ctx, dbCfg)
		if err != nil {
			a.Close()
			return nil, fmt.Errorf("open database: %w", err)
		}
		a.drafts = db.NewDraftRepository(a.db)
	}

	if signedIn {
		a.session.Login(ctx, cfg.Auth.Subject)
	}
	return a, nil
}

// Close releases the database and stops the metrics server.
func (a *app) Close() {
	if a.stopMetrics != nil {
		a.stopMetrics()
	}
	if a.db != nil {
		if err := a.db.Close(); err != nil {
			a.logger.Warn().Err(err).Msg("failed to close database")
		}
	}
	a.hub.Close()
}

// tokenProvider picks the first configured token source: a static token, a
// token file, then OAuth client credentials. With none configured it returns
// nil and the session stays signed out.
func tokenProvider(ctx context.Context, cfg config.AuthConfig) (auth.TokenProvider, error) {
	switch {
	case strings.TrimSpace(cfg.Token) != "":
		return auth.StaticToken(cfg.Token), nil
	case strings.TrimSpace(cfg.TokenFile) != "":
		return auth.FileToken{Path: cfg.TokenFile}, nil
	case cfg.OAuth.Enabled():
		provider, err := auth.NewClientCredentialsProvider(ctx, auth.ClientCredentials{
			ClientID:     cfg.OAuth.ClientID,
			ClientSecret: cfg.OAuth.ClientSecret,
			TokenURL:     cfg.OAuth.TokenURL,
			Audience:     cfg.OAuth.Audience,
		})
		if err != nil {
			return nil, fmt.Errorf("configure oauth: %w", err)
		}
		return provider, nil
	default:
		return nil, nil
	}
}

func (a *app) contextStore() *config.ContextStore {
	return config.NewContextStore(a.cfg.ContextPath())
}

// rememberThread stores threadID as the thread `open` resumes. Failures are
// logged only.
func (a *app) rememberThread(threadID, title string) {
	store := a.contextStore()
	current, err := store.Load()
	if err != nil {
		a.logger.Debug().Err(err).Msg("failed to load context")
		current = &config.Context{}
	}
	if title == "" && current.ThreadID == threadID {
		title = current.ThreadTitle
	}
	current.SetThread(threadID, title)
	if err := store.Save(current); err != nil {
		a.logger.Debug().Err(err).Msg("failed to save context")
	}
}

// resolveThread returns the explicit thread argument or the remembered one.
// An argument that prefixes exactly one recently opened thread expands to it.
func (a *app) resolveThread(args []string) string {
	var arg string
	if len(args) > 0 {
		arg = strings.TrimSpace(args[0])
	}
	current, err := a.contextStore().Load()
	if err != nil {
		a.logger.Debug().Err(err).Msg("failed to load context")
		return arg
	}
	if arg == "" {
		return current.ThreadID
	}
	if ref, ok := current.Lookup(arg); ok {
		return ref.ID
	}
	return arg
}
