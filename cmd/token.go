package cmd

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/mozilla-ai/mcphub/internal/auth"
	"github.com/mozilla-ai/mcphub/internal/cmd"
	cmdopts "github.com/mozilla-ai/mcphub/internal/cmd/options"
	"github.com/mozilla-ai/mcphub/internal/config"
	"github.com/mozilla-ai/mcphub/internal/flags"
	"github.com/mozilla-ai/mcphub/internal/perms"
	"github.com/mozilla-ai/mcphub/internal/printer"
)

const defaultSecretBytes = 32

// TokenCmd should be used to represent the 'token' command and its subcommands.
type TokenCmd struct {
	*cmd.BaseCmd
	Format      cmd.OutputFormat
	TTL         time.Duration
	SecretBytes int
	Out         string
	opts        cmdopts.CmdOptions
}

// NewTokenCmd creates a newly configured (Cobra) command.
func NewTokenCmd(baseCmd *cmd.BaseCmd, opt ...cmdopts.CmdOption) (*cobra.Command, error) {
	opts, err := cmdopts.NewOptions(opt...)
	if err != nil {
		return nil, err
	}

	c := &TokenCmd{
		BaseCmd: baseCmd,
		Format:  cmd.FormatText,
		opts:    opts,
	}

	cobraCommand := &cobra.Command{
		Use:   "token <command>",
		Short: "Issues session tokens and signing secrets",
		Long: "Issues session tokens signed with the configured auth secret, " +
			"and generates new secrets for signing them",
	}

	issueCmd := &cobra.Command{
		Use:   "issue <user-id>",
		Short: "Issues a session token for a user",
		Args:  cobra.ExactArgs(1),
		RunE:  c.runIssue,
	}
	issueCmd.Flags().DurationVar(&c.TTL, "ttl", 24*time.Hour, "Token lifetime, 0 for a token that never expires")
	issueCmd.Flags().Var(
		&c.Format,
		"format",
		fmt.Sprintf("Specify the output format (one of: %s)", cmd.AllowedOutputFormats().String()),
	)

	secretCmd := &cobra.Command{
		Use:   "secret [--out]",
		Short: "Generates a random signing secret",
		Args:  cobra.NoArgs,
		RunE:  c.runSecret,
	}
	secretCmd.Flags().IntVar(&c.SecretBytes, "bytes", defaultSecretBytes, "Number of random bytes (at least 16)")
	secretCmd.Flags().StringVar(&c.Out, "out", "", "Write the secret to this file (mode 0600) instead of stdout")

	cobraCommand.AddCommand(issueCmd, secretCmd)

	return cobraCommand, nil
}

func (c *TokenCmd) runIssue(cobraCmd *cobra.Command, args []string) error {
	handler, err := cmd.NewOutputHandler[auth.IssuedToken](c.Format, cobraCmd.OutOrStdout(), &printer.TokenPrinter{})
	if err != nil {
		return err
	}

	userID := strings.TrimSpace(args[0])
	if userID == "" {
		return handler.HandleError(fmt.Errorf("user ID is required and cannot be empty"))
	}
	if c.TTL < 0 {
		return handler.HandleError(fmt.Errorf("ttl cannot be negative, got %v", c.TTL))
	}

	cfg, err := config.NewValidatingLoader(c.opts.ConfigLoader, config.RequireAuthSecret).Load(flags.ConfigFile)
	if err != nil {
		return handler.HandleError(err)
	}

	signer, err := auth.NewJWT([]byte(cfg.Auth.Secret), cfg.Auth.Issuer)
	if err != nil {
		return handler.HandleError(err)
	}

	token, err := signer.IssueToken(userID, c.TTL)
	if err != nil {
		return handler.HandleError(err)
	}
	c.Logger().Info("Issued session token", "subject", token.Subject, "ttl", c.TTL)

	return handler.HandleResult(token)
}

func (c *TokenCmd) runSecret(cobraCmd *cobra.Command, _ []string) error {
	secret, err := auth.GenerateSecret(c.SecretBytes)
	if err != nil {
		return err
	}

	out := strings.TrimSpace(c.Out)
	if out == "" {
		_, err := fmt.Fprintln(cobraCmd.OutOrStdout(), secret)
		return err
	}

	if err := os.WriteFile(out, []byte(secret+"\n"), perms.SecureFile); err != nil {
		return fmt.Errorf("failed to write secret (%s): %w", out, err)
	}
	_, _ = fmt.Fprintf(cobraCmd.OutOrStdout(), "✓ Secret written to %s, set it as %s or auth.secret\n", out, config.EnvVarAuthSecret)

	return nil
}
