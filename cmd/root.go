package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/mozilla-ai/mcphub/internal/cmd"
	cmdopts "github.com/mozilla-ai/mcphub/internal/cmd/options"
	"github.com/mozilla-ai/mcphub/internal/config"
	"github.com/mozilla-ai/mcphub/internal/flags"
)

// dotEnvFile is loaded into the environment before flags are parsed.
const dotEnvFile = ".env"

type RootCmd struct {
	*cmd.BaseCmd
}

func Execute() error {
	if err := config.LoadDotEnv(dotEnvFile); err != nil {
		return err
	}

	rootCmd, err := NewRootCmd(&cmd.BaseCmd{})
	if err != nil {
		return fmt.Errorf("error creating root command: %w", err)
	}

	return rootCmd.Execute()
}

func NewRootCmd(baseCmd *cmd.BaseCmd, opt ...cmdopts.CmdOption) (*cobra.Command, error) {
	c := &RootCmd{BaseCmd: baseCmd}

	rootCmd := &cobra.Command{
		Use:          "mcphub <command> [args]",
		Short:        "'mcphub' hosts a shared registry of MCP servers behind an HTTP API.",
		Long:         c.longDescription(),
		SilenceUsage: true,
		Version:      cmd.Version(),
	}

	// Global flags
	flags.InitFlags(rootCmd.PersistentFlags())

	fns := []func(*cmd.BaseCmd, ...cmdopts.CmdOption) (*cobra.Command, error){
		NewServeCmd,
		NewMigrateCmd,
		NewTokenCmd,
	}

	for _, fn := range fns {
		tempCmd, err := fn(baseCmd, opt...)
		if err != nil {
			return nil, err
		}
		rootCmd.AddCommand(tempCmd)
	}

	return rootCmd, nil
}

func (c *RootCmd) longDescription() string {
	return `'mcphub' runs the MCP server registry: it stores server configurations in Postgres,
keeps live MCP clients connected to them, and serves the registry, tool selection and
file storage over an HTTP API.`
}
