package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"github.com/nerrad567/hubspace-bridge/internal/auth"
	"github.com/nerrad567/hubspace-bridge/internal/diagnostics"
	"github.com/nerrad567/hubspace-bridge/internal/hubspace"
	"github.com/nerrad567/hubspace-bridge/internal/infrastructure/config"
	"github.com/nerrad567/hubspace-bridge/internal/infrastructure/logging"
)

// Check results printed by the check command.
var (
	errCheckInvalidAuth   = errors.New("invalid auth: the cloud rejected the username or password")
	errCheckCannotConnect = errors.New("cannot connect: the cloud could not be reached")
)

func newCheckCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "check",
		Short: "Validate the config and cloud credentials",
		Long: `Load the configuration, log in to HubSpace and print the account id.
Exits non-zero with "invalid auth" or "cannot connect" on failure.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(resolveConfigPath())
			if err != nil {
				return fmt.Errorf("loading config: %w", err)
			}
			log := logging.New(cfg.Logging, version)
			client, err := newCloudClient(cfg, log)
			if err != nil {
				return err
			}
			return check(cmd.Context(), client, cmd.OutOrStdout())
		},
	}
}

// accountClient is the part of the cloud client used by check.
type accountClient interface {
	Login(ctx context.Context) error
	AccountID(ctx context.Context) (string, error)
}

// check logs in and prints the account id. Failures are reduced to the
// two outcomes a user can act on.
func check(ctx context.Context, client accountClient, out io.Writer) error {
	if err := client.Login(ctx); err != nil {
		return classifyCheckError(err)
	}
	account, err := client.AccountID(ctx)
	if err != nil {
		return classifyCheckError(err)
	}
	fmt.Fprintf(out, "ok: account %s\n", account)
	return nil
}

func classifyCheckError(err error) error {
	if errors.Is(err, hubspace.ErrAuthFailed) {
		return fmt.Errorf("%w (%w)", errCheckInvalidAuth, err)
	}
	return fmt.Errorf("%w (%w)", errCheckCannotConnect, err)
}

func newDumpCmd() *cobra.Command {
	var output string
	cmd := &cobra.Command{
		Use:   "dump",
		Short: "Write an anonymised diagnostics file",
		Long: `Log in, fetch every device once and write the anonymised device and
state dump used for bug reports. Names, ids and rooms are replaced.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(resolveConfigPath())
			if err != nil {
				return fmt.Errorf("loading config: %w", err)
			}
			if output == "" {
				output = cfg.Diagnostics.OutputPath
			}
			log := logging.New(cfg.Logging, version)
			client, err := newCloudClient(cfg, log)
			if err != nil {
				return err
			}
			if err := client.Login(cmd.Context()); err != nil {
				return classifyCheckError(err)
			}

			snap, err := newCoordinator(client, cfg, log).Refresh(cmd.Context())
			if err != nil {
				return fmt.Errorf("fetching devices: %w", err)
			}
			dumps := diagnostics.NewAnonymizer().Devices(snap.Devices, snap.States)
			if err := diagnostics.WriteFile(output, dumps); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "wrote %d devices to %s\n", len(dumps), output)
			return nil
		},
	}
	cmd.Flags().StringVarP(&output, "output", "o", "", "Output file (default: diagnostics.output_path)")
	return cmd
}

func newTokenCmd() *cobra.Command {
	var (
		subject string
		role    string
		ttl     time.Duration
	)
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Issue an API bearer token",
		Long: `Sign a JWT for the HTTP API with security.jwt.secret. Viewer tokens
can read; operator tokens can also run actions and commands.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(resolveConfigPath())
			if err != nil {
				return fmt.Errorf("loading config: %w", err)
			}
			tok, err := auth.IssueToken(cfg.Security.JWT.Secret, subject, auth.Role(role), ttl)
			if err != nil {
				return fmt.Errorf("issuing token: %w", err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), tok)
			return nil
		},
	}
	cmd.Flags().StringVar(&subject, "subject", "cli", "Token subject (client name)")
	cmd.Flags().StringVar(&role, "role", string(auth.RoleViewer), "Role: viewer or operator")
	cmd.Flags().DurationVar(&ttl, "ttl", 24*time.Hour, "Token lifetime")
	return cmd
}
