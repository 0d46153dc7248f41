package app

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"smartsprint/internal/api"
	"smartsprint/internal/cache"
	"smartsprint/internal/config"
	"smartsprint/internal/db"
	"smartsprint/internal/domain"
	"smartsprint/internal/events"
	"smartsprint/internal/migrate"
	"smartsprint/internal/repo"
	"smartsprint/internal/session"
	"smartsprint/internal/view"
	"smartsprint/internal/workflow"
)

// Options select the workspace and config overrides of a runtime.
type Options struct {
	Workspace string
	Overrides Overrides
	// LogOutput defaults to stderr.
	LogOutput io.Writer
}

// App is one client runtime: workspace storage, session, API client, entity
// cache, view state and the workflow controller, wired together.
type App struct {
	Workspace  string
	Config     *config.Config
	Logger     *slog.Logger
	DB         *sql.DB
	Repo       repo.Repo
	Events     events.Writer
	Session    *session.Manager
	Client     *api.Client
	Cache      *cache.Cache
	View       *view.Machine
	Controller *workflow.Controller
}

// Open resolves config, opens and migrates the workspace database and builds
// the runtime. The session is not restored; see RequireSession.
func Open(ctx context.Context, opts Options) (*App, error) {
	cfg, err := ResolveConfig(opts.Workspace, opts.Overrides)
	if err != nil {
		return nil, err
	}
	logger := NewLogger(opts.LogOutput, cfg.Log.Level, cfg.Log.Format)

	conn, err := db.Open(db.Config{Workspace: opts.Workspace})
	if err != nil {
		return nil, fmt.Errorf("open workspace db: %w", err)
	}
	if err := migrate.MigrateContext(ctx, conn); err != nil {
		conn.Close()
		return nil, fmt.Errorf("migrate workspace db: %w", err)
	}
	r := repo.Repo{DB: conn}
	ev := events.Writer{DB: conn}

	client := api.New(cfg.API.BaseURL)
	client.Timeout = cfg.API.Timeout
	client.Logger = logger.With("component", "api")

	sess := session.New(r, client)
	sess.Logger = logger.With("component", "session")
	sess.Events = ev
	client.Tokens = sess
	client.OnUnauthorized = sess.Expire

	c := cache.New(client)
	c.Logger = logger.With("component", "cache")

	v := view.New(ctx)
	ctl := workflow.New(client, c, v)
	ctl.Identity = sess
	ctl.Events = ev
	ctl.Reports = r
	ctl.Logger = logger.With("component", "workflow")
	ctl.Extensions = cfg.Ingest.Extensions

	return &App{
		Workspace:  opts.Workspace,
		Config:     cfg,
		Logger:     logger,
		DB:         conn,
		Repo:       r,
		Events:     ev,
		Session:    sess,
		Client:     client,
		Cache:      c,
		View:       v,
		Controller: ctl,
	}, nil
}

// RequireSession restores the stored session and loads the cache. It fails
// with domain.ErrNotAuthenticated when there is no usable token.
func (a *App) RequireSession(ctx context.Context) error {
	ok, err := a.Session.Restore(ctx)
	if err != nil {
		if domain.IsAuth(err) {
			return fmt.Errorf("%s: %w", session.ExpiredNotice, domain.ErrNotAuthenticated)
		}
		return err
	}
	if !ok {
		return fmt.Errorf("not logged in; run sprint login: %w", domain.ErrNotAuthenticated)
	}
	return a.Controller.Start(ctx)
}

// Close releases the view scopes and the database.
func (a *App) Close() error {
	a.View.Close()
	return a.DB.Close()
}

// IsNotAuthenticated reports whether err means the user has to log in.
func IsNotAuthenticated(err error) bool {
	return errors.Is(err, domain.ErrNotAuthenticated) || domain.IsAuth(err)
}
