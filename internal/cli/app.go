package cli

import (
	"context"
	"database/sql"
	"fmt"
	"net/url"
	"os"

	"github.com/movelog/uplink/internal/capture"
	"github.com/movelog/uplink/internal/config"
	"github.com/movelog/uplink/internal/logging"
	"github.com/movelog/uplink/internal/upload/registry"
)

// App wires the database, the session registry and the upload subsystem
// behind the uplink commands.
type App struct {
	config   *config.Config
	log      logging.Logger
	db       *sql.DB
	store    *capture.SQLiteStore
	registry *registry.SQLiteRegistry

	collectorURL *url.URL
	authURL      *url.URL

	// getPassword is an indirection used to facilitate testing.
	getPassword func() (string, error)
}

// NewApp opens (and migrates) the measurement database and resolves the
// collector and auth endpoints from the configuration.
func NewApp(ctx context.Context, cfg *config.Config, log logging.Logger) (*App, error) {
	collectorURL, err := url.Parse(cfg.CollectorURL)
	if err != nil {
		return nil, fmt.Errorf("invalid collector url %q: %w", cfg.CollectorURL, err)
	}

	authURL := collectorURL
	if cfg.AuthURL != "" {
		authURL, err = url.Parse(cfg.AuthURL)
		if err != nil {
			return nil, fmt.Errorf("invalid auth url %q: %w", cfg.AuthURL, err)
		}
	}

	db, err := capture.InitDatabase(ctx, cfg.DatabasePath)
	if err != nil {
		return nil, fmt.Errorf("error initializing database: %w", err)
	}

	return &App{
		config:       cfg,
		log:          log,
		db:           db,
		store:        capture.NewSQLiteStore(db),
		registry:     registry.NewSQLiteRegistry(db),
		collectorURL: collectorURL,
		authURL:      authURL,
		getPassword:  func() (string, error) { return GetPassword(os.Stdout) },
	}, nil
}

// Run dispatches the requested command. An empty command defaults to "sync".
func (a *App) Run(ctx context.Context, command string, args []string) error {
	switch command {
	case "", "sync":
		return a.runSync(ctx)
	case "import":
		return a.runImport(ctx, args)
	default:
		return fmt.Errorf("unknown command %q (expected sync or import)", command)
	}
}

// Close releases the database handle.
func (a *App) Close() error {
	return a.db.Close()
}
