package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/mozilla-ai/mcphub/internal/cmd"
	"github.com/mozilla-ai/mcphub/internal/cmd/output"
	cmdopts "github.com/mozilla-ai/mcphub/internal/cmd/options"
	"github.com/mozilla-ai/mcphub/internal/config"
	"github.com/mozilla-ai/mcphub/internal/flags"
	"github.com/mozilla-ai/mcphub/internal/printer"
	"github.com/mozilla-ai/mcphub/internal/repository"
)

// MigrateCmd should be used to represent the 'migrate' command and its subcommands.
type MigrateCmd struct {
	*cmd.BaseCmd
	Format cmd.OutputFormat
	opts   cmdopts.CmdOptions
}

// NewMigrateCmd creates a newly configured (Cobra) command.
func NewMigrateCmd(baseCmd *cmd.BaseCmd, opt ...cmdopts.CmdOption) (*cobra.Command, error) {
	opts, err := cmdopts.NewOptions(opt...)
	if err != nil {
		return nil, err
	}

	c := &MigrateCmd{
		BaseCmd: baseCmd,
		Format:  cmd.FormatText,
		opts:    opts,
	}

	cobraCommand := &cobra.Command{
		Use:   "migrate <command>",
		Short: "Manages the mcphub database schema",
		Long:  "Applies and lists the schema migrations embedded in mcphub against the configured Postgres database",
	}

	cobraCommand.PersistentFlags().Var(
		&c.Format,
		"format",
		fmt.Sprintf("Specify the output format (one of: %s)", cmd.AllowedOutputFormats().String()),
	)

	cobraCommand.AddCommand(&cobra.Command{
		Use:   "up",
		Short: "Applies pending migrations",
		Args:  cobra.NoArgs,
		RunE:  c.runUp,
	})

	cobraCommand.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "Lists migrations and whether each has been applied",
		Args:  cobra.NoArgs,
		RunE:  c.runList,
	})

	return cobraCommand, nil
}

func (c *MigrateCmd) runUp(cobraCmd *cobra.Command, _ []string) error {
	return c.withDatabase(cobraCmd, func(ctx context.Context, db cmdopts.Database, handler output.Handler[repository.MigrationState]) error {
		applied, err := repository.Migrate(ctx, db, c.Logger().Named("migrate"))
		if err != nil {
			return handler.HandleError(err)
		}
		c.Logger().Info("Database migrated", "applied", applied)

		states, err := repository.Status(ctx, db)
		if err != nil {
			return handler.HandleError(err)
		}

		return handler.HandleResults(states...)
	})
}

func (c *MigrateCmd) runList(cobraCmd *cobra.Command, _ []string) error {
	return c.withDatabase(cobraCmd, func(ctx context.Context, db cmdopts.Database, handler output.Handler[repository.MigrationState]) error {
		states, err := repository.Status(ctx, db)
		if err != nil {
			return handler.HandleError(err)
		}

		return handler.HandleResults(states...)
	})
}

func (c *MigrateCmd) withDatabase(
	cobraCmd *cobra.Command,
	fn func(context.Context, cmdopts.Database, output.Handler[repository.MigrationState]) error,
) error {
	handler, err := cmd.NewOutputHandler[repository.MigrationState](
		c.Format,
		cobraCmd.OutOrStdout(),
		printer.NewMigrationPrinter(),
	)
	if err != nil {
		return err
	}

	cfg, err := config.NewValidatingLoader(c.opts.ConfigLoader, config.RequireDatabase).Load(flags.ConfigFile)
	if err != nil {
		return handler.HandleError(err)
	}

	ctx := cobraCmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	db, err := c.opts.OpenDatabase(ctx, cfg.Database.URL, cfg.Database.MaxConns)
	if err != nil {
		return handler.HandleError(fmt.Errorf("failed to connect to database: %w", err))
	}
	defer db.Close()

	return fn(ctx, db, handler)
}
