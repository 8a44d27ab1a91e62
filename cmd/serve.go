package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/hashicorp/go-hclog"
	"github.com/spf13/cobra"

	"github.com/mozilla-ai/mcphub/internal/auth"
	"github.com/mozilla-ai/mcphub/internal/cmd"
	cmdopts "github.com/mozilla-ai/mcphub/internal/cmd/options"
	"github.com/mozilla-ai/mcphub/internal/config"
	"github.com/mozilla-ai/mcphub/internal/contracts"
	"github.com/mozilla-ai/mcphub/internal/daemon"
	"github.com/mozilla-ai/mcphub/internal/flags"
	"github.com/mozilla-ai/mcphub/internal/repository"
	"github.com/mozilla-ai/mcphub/internal/storage"
)

const (
	devAddr        = "localhost:8090"
	devUserID      = "dev"
	devTokenTTL    = 24 * time.Hour
	devSecretBytes = 32
)

// ServeCmd should be used to represent the 'serve' command.
type ServeCmd struct {
	*cmd.BaseCmd
	Dev     bool
	Addr    string
	Migrate bool
	opts    cmdopts.CmdOptions
}

// serveStack holds what a serve run builds before starting the daemon.
type serveStack struct {
	addr      string
	repo      contracts.MCPRepository
	storage   contracts.FileStorage
	verifier  *auth.JWT
	devToken  *auth.IssuedToken
	filesDir  string
	closeFunc func()
}

// NewServeCmd creates a newly configured (Cobra) command.
func NewServeCmd(baseCmd *cmd.BaseCmd, opt ...cmdopts.CmdOption) (*cobra.Command, error) {
	opts, err := cmdopts.NewOptions(opt...)
	if err != nil {
		return nil, err
	}

	c := &ServeCmd{
		BaseCmd: baseCmd,
		opts:    opts,
	}

	cobraCommand := &cobra.Command{
		Use:   "serve [--dev] [--addr] [--migrate]",
		Short: "Runs the mcphub API server",
		Long: "Runs the mcphub API server, connecting every registered MCP server and serving " +
			"the registry, tool selection and file storage over HTTP",
		RunE: c.run,
	}

	cobraCommand.Flags().BoolVar(
		&c.Dev,
		"dev",
		false,
		"Run with in-memory storage and a generated signing secret, printing a session token",
	)

	cobraCommand.Flags().StringVar(
		&c.Addr,
		"addr",
		"",
		fmt.Sprintf("Address for the API server to bind, overrides api.addr (default %s in --dev mode)", devAddr),
	)

	cobraCommand.Flags().BoolVar(
		&c.Migrate,
		"migrate",
		false,
		"Apply pending schema migrations before serving (not applicable in --dev mode)",
	)

	cobraCommand.MarkFlagsMutuallyExclusive("dev", "migrate")

	return cobraCommand, nil
}

// run is configured (via NewServeCmd) to be called by the Cobra framework when the command is executed.
func (c *ServeCmd) run(cobraCmd *cobra.Command, _ []string) error {
	logger := c.Logger()

	predicates := []config.ValidationPredicate{config.RequireDatabase, config.RequireAuthSecret}
	if c.Dev {
		predicates = nil
	}

	cfg, err := config.NewValidatingLoader(c.opts.ConfigLoader, predicates...).Load(flags.ConfigFile)
	if err != nil {
		return err
	}

	ctx, cancel := signal.NotifyContext(cobraCmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	var stack *serveStack
	if c.Dev {
		stack, err = c.devStack(cfg)
	} else {
		stack, err = c.stack(ctx, cfg, logger)
	}
	if err != nil {
		return err
	}
	defer stack.closeFunc()

	connector, err := daemon.NewMCPConnector(logger, "mcphub", cmd.Version())
	if err != nil {
		return err
	}

	deps, err := daemon.NewDependencies(logger, stack.addr, stack.repo, stack.storage, stack.verifier, connector)
	if err != nil {
		return err
	}

	d, err := daemon.NewDaemon(deps, daemonOptions(cfg)...)
	if err != nil {
		return fmt.Errorf("failed to create mcphub daemon instance: %w", err)
	}

	if c.Dev {
		printDevBanner(cobraCmd.OutOrStdout(), stack, cfg)
	}

	logger.Info("Serving", "addr", stack.addr, "dev", c.Dev, "version", cmd.Version())
	if err := d.StartAndManage(ctx); err != nil {
		logger.Error("daemon exited with error", "error", err)
		return err
	}
	logger.Info("Shutdown complete")

	return nil
}

func (c *ServeCmd) addr(cfg *config.Config) string {
	if addr := strings.TrimSpace(c.Addr); addr != "" {
		return addr
	}
	if c.Dev {
		return devAddr
	}
	return cfg.API.Addr
}

// devStack keeps everything in memory except uploads, which go to the configured local directory.
func (c *ServeCmd) devStack(cfg *config.Config) (*serveStack, error) {
	secret := cfg.Auth.Secret
	if secret == "" {
		generated, err := auth.GenerateSecret(devSecretBytes)
		if err != nil {
			return nil, err
		}
		secret = generated
	}

	verifier, err := auth.NewJWT([]byte(secret), cfg.Auth.Issuer)
	if err != nil {
		return nil, err
	}

	token, err := verifier.IssueToken(devUserID, devTokenTTL)
	if err != nil {
		return nil, err
	}

	store, err := newLocalStorage(cfg)
	if err != nil {
		return nil, err
	}

	return &serveStack{
		addr:      c.addr(cfg),
		repo:      repository.NewMemory(),
		storage:   store,
		verifier:  verifier,
		devToken:  &token,
		filesDir:  store.Root(),
		closeFunc: func() {},
	}, nil
}

func (c *ServeCmd) stack(ctx context.Context, cfg *config.Config, logger hclog.Logger) (*serveStack, error) {
	db, err := c.opts.OpenDatabase(ctx, cfg.Database.URL, cfg.Database.MaxConns)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	if c.Migrate {
		applied, err := repository.Migrate(ctx, db, logger.Named("migrate"))
		if err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to migrate database: %w", err)
		}
		logger.Info("Database migrated", "applied", applied)
	}

	repo, err := repository.NewPostgres(logger, db)
	if err != nil {
		db.Close()
		return nil, err
	}

	store, err := newFileStorage(ctx, cfg)
	if err != nil {
		db.Close()
		return nil, err
	}

	verifier, err := auth.NewJWT([]byte(cfg.Auth.Secret), cfg.Auth.Issuer)
	if err != nil {
		db.Close()
		return nil, err
	}

	return &serveStack{
		addr:      c.addr(cfg),
		repo:      repo,
		storage:   store,
		verifier:  verifier,
		closeFunc: db.Close,
	}, nil
}

// newFileStorage builds the storage backend selected by storage.backend.
func newFileStorage(ctx context.Context, cfg *config.Config) (contracts.FileStorage, error) {
	switch cfg.Storage.Backend {
	case config.StorageBackendLocal:
		return newLocalStorage(cfg)
	case config.StorageBackendS3:
		return storage.NewS3FromConfig(ctx, storage.S3Config{
			Bucket:        cfg.Storage.S3.Bucket,
			Prefix:        cfg.Storage.S3.Prefix,
			Region:        cfg.Storage.S3.Region,
			Endpoint:      cfg.Storage.S3.Endpoint,
			PublicBaseURL: cfg.Storage.PublicBaseURL,
		})
	default:
		return nil, config.NewErrInvalidValue("storage.backend", cfg.Storage.Backend)
	}
}

func newLocalStorage(cfg *config.Config) (*storage.Local, error) {
	dir, err := cfg.StorageDir()
	if err != nil {
		return nil, err
	}
	return storage.NewLocal(dir, cfg.Storage.PublicBaseURL)
}

// daemonOptions maps the configuration onto daemon and API server options.
func daemonOptions(cfg *config.Config) []daemon.Option {
	apiOpts := []daemon.APIOption{
		daemon.WithShutdownTimeout(cfg.API.ShutdownTimeout.Std()),
		daemon.WithMaxFileSize(cfg.Storage.MaxFileSize),
		daemon.WithAuthCookieName(cfg.Auth.CookieName),
		daemon.WithMetricsEnabled(cfg.API.Metrics),
	}

	if cors := cfg.API.CORS; cors.Enable {
		apiOpts = append(apiOpts,
			daemon.WithCORSEnabled(true),
			daemon.WithCORSAllowOrigins(cors.AllowOrigins),
			daemon.WithCORSAllowCredentials(cors.AllowCredentials),
			daemon.WithCORSMaxAge(cors.MaxAge.Std()),
		)
		if len(cors.AllowMethods) > 0 {
			apiOpts = append(apiOpts, daemon.WithCORSAllowMethods(cors.AllowMethods))
		}
		if len(cors.AllowHeaders) > 0 {
			apiOpts = append(apiOpts, daemon.WithCORSAllowHeaders(cors.AllowHeaders))
		}
		if len(cors.ExposeHeaders) > 0 {
			apiOpts = append(apiOpts, daemon.WithCORSExposeHeaders(cors.ExposeHeaders))
		}
	}

	return []daemon.Option{
		daemon.WithAPIOptions(apiOpts...),
		daemon.WithClientInitTimeout(cfg.Clients.InitTimeout.Std()),
		daemon.WithHealthCheckInterval(cfg.Clients.HealthInterval.Std()),
		daemon.WithHealthCheckTimeout(cfg.Clients.HealthTimeout.Std()),
		daemon.WithClientShutdownTimeout(cfg.Clients.ShutdownTimeout.Std()),
		daemon.WithReconcileConcurrency(cfg.Clients.ReconcileConcurrency),
	}
}

func printDevBanner(w io.Writer, stack *serveStack, cfg *config.Config) {
	banner := fmt.Sprintf("mcphub running in 'dev' mode.\n\n"+
		"  Local API:\thttp://%s/api/v1\n"+
		"  OpenAPI UI:\thttp://%s/docs\n"+
		"  Files dir:\t%s\n",
		stack.addr, stack.addr, stack.filesDir)

	if path := cfg.Path(); path != "" {
		banner += fmt.Sprintf("  Config file:\t%s\n", path)
	}
	if flags.LogPath != "" {
		banner += fmt.Sprintf("  Log file:\t%s => (%s)\n", flags.LogPath, flags.LogLevel)
	}
	if stack.devToken != nil {
		banner += fmt.Sprintf("\n  Session token for user '%s':\n\n  %s\n", stack.devToken.Subject, stack.devToken.Token)
	}

	banner += "\nState is kept in memory and lost on exit. Press Ctrl+C to stop.\n\n"
	_, _ = fmt.Fprint(w, banner)
}
