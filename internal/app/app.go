package app

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/five82/bookshare/internal/config"
	"github.com/five82/bookshare/internal/gate"
	"github.com/five82/bookshare/internal/lending"
	"github.com/five82/bookshare/internal/logging"
	"github.com/five82/bookshare/internal/prefs"
	"github.com/five82/bookshare/internal/session"
	"github.com/five82/bookshare/internal/state"
	"github.com/five82/bookshare/internal/storage"
	"github.com/five82/bookshare/internal/ui"
)

// Options configure the bookshare application.
type Options struct {
	ConfigPath string
	PrefsPath  string // empty uses default ~/.config/bookshare/prefs.toml
	PollEvery  int    // seconds; zero uses the configured interval
	StartRoute string // empty opens the catalog
}

// Env is the wiring shared by the TUI and the one-shot CLI commands.
type Env struct {
	Config  config.Config
	Prefs   prefs.Prefs
	Logger  *slog.Logger
	Session *session.Store
	Client  *lending.Client

	closer io.Closer
}

// Close releases the log file.
func (e *Env) Close() error {
	if e.closer == nil {
		return nil
	}
	return e.closer.Close()
}

// Setup loads configuration, opens the log and credential files and builds
// the API client. The session is not initialized yet.
func Setup(opts Options) (*Env, error) {
	cfg, err := config.Load(opts.ConfigPath)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	userPrefs, err := prefs.Load(opts.PrefsPath)
	if err != nil {
		return nil, fmt.Errorf("load prefs: %w", err)
	}

	// An unwritable log file leaves the client usable without logs.
	logger, closer, err := logging.Open(cfg.LogFile)
	if err != nil {
		logger, closer = logging.Discard(), nil
	}
	env := &Env{Config: cfg, Prefs: userPrefs, Logger: logger, closer: closer}

	creds, err := storage.OpenFile(cfg.CredentialPath())
	if err != nil {
		_ = env.Close()
		return nil, fmt.Errorf("open credential store: %w", err)
	}
	sess := session.New(creds, logger)

	client, err := lending.NewClient(cfg.APIURL,
		lending.WithTokenSource(sess),
		lending.WithTimeout(cfg.RequestTimeout),
	)
	if err != nil {
		_ = env.Close()
		return nil, fmt.Errorf("init api client: %w", err)
	}

	env.Session = sess
	env.Client = client
	return env, nil
}

// Run boots the bookshare TUI until the context is cancelled.
func Run(ctx context.Context, opts Options) error {
	env, err := Setup(opts)
	if err != nil {
		return err
	}
	defer env.Close()

	env.Logger.Info("starting", "api_url", env.Config.APIURL)

	store := &state.Store{}
	poller := NewPoller(store, env.Client, env.Session, env.Logger)

	interval := env.Config.PollInterval
	if opts.PollEvery > 0 {
		interval = time.Duration(opts.PollEvery) * time.Second
	}
	StartPoller(ctx, poller, interval)

	uiOpts := ui.Options{
		Context:    ctx,
		Client:     env.Client,
		Session:    env.Session,
		Gate:       gate.New(storage.NewMemory(), ui.PublicRoutes()...).WithLogger(env.Logger),
		Store:      store,
		Refresh:    poller.Refresh,
		LogPath:    env.Config.LogFile,
		Prefs:      env.Prefs,
		PrefsPath:  opts.PrefsPath,
		StartRoute: ui.Route(opts.StartRoute),
		Logger:     env.Logger,
	}
	err = ui.Run(uiOpts)
	env.Logger.Info("stopped", "error", err)
	return err
}
