package main

import (
	"fmt"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"capturesync/internal/auth"
	"capturesync/internal/config"
	"capturesync/internal/logging"
)

func newAuthCommand(ctx *commandContext) *cobra.Command {
	authCmd := &cobra.Command{
		Use:   "auth",
		Short: "Link and inspect the remote storage account",
	}
	authCmd.AddCommand(newAuthLoginCommand(ctx))
	authCmd.AddCommand(newAuthStatusCommand(ctx))
	return authCmd
}

func newAuthLoginCommand(ctx *commandContext) *cobra.Command {
	var listen string
	var timeout time.Duration

	cmd := &cobra.Command{
		Use:   "login",
		Short: "Authorize capturesync against Google Drive",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			if cfg.Remote.Backend == config.BackendGCS {
				return fmt.Errorf("backend %q authenticates with service account credentials; set remote.credentials_file instead", cfg.Remote.Backend)
			}
			out := cmd.OutOrStdout()
			connector := auth.NewConnector(cfg, logging.NewNop())
			tok, err := connector.Login(cmd.Context(), auth.LoginOptions{
				Open: func(authURL string) error {
					fmt.Fprintln(out, "Open this URL in a browser and approve access:")
					fmt.Fprintln(out)
					fmt.Fprintln(out, "  "+authURL)
					fmt.Fprintln(out)
					fmt.Fprintln(out, "Waiting for the redirect...")
					return nil
				},
				ListenAddr: listen,
				Timeout:    timeout,
			})
			if err != nil {
				return err
			}
			fmt.Fprintf(out, "Account linked; token saved to %s\n", cfg.Remote.TokenFile)
			if tok.RefreshToken == "" {
				fmt.Fprintln(out, "Warning: no refresh token was issued; uploads will stop when the access token expires")
			}
			// A running daemon stays paused after an auth failure until nudged.
			if client, err := ctx.dialClient(); err == nil {
				defer client.Close()
				if _, err := client.Drain(); err == nil {
					fmt.Fprintln(out, "Daemon notified; paused uploads will resume")
				}
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&listen, "listen", "127.0.0.1:0", "Loopback address for the OAuth redirect")
	cmd.Flags().DurationVar(&timeout, "timeout", 5*time.Minute, "How long to wait for consent")
	return cmd
}

func newAuthStatusCommand(ctx *commandContext) *cobra.Command {
	var verify bool
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show whether credentials and a token are available",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			connector := auth.NewConnector(cfg, logging.NewNop())
			status := connector.Inspect()
			var verifyErr error
			if verify {
				status, verifyErr = connector.Verify(cmd.Context())
			}
			if asJSON {
				payload := struct {
					auth.Status
					VerifyError string `json:"verify_error,omitempty"`
				}{Status: status}
				if verifyErr != nil {
					payload.VerifyError = verifyErr.Error()
				}
				return writeJSON(cmd, payload)
			}

			out := cmd.OutOrStdout()
			colorize := shouldColorize(out)
			for _, line := range renderSectionHeader("Remote Account", colorize) {
				fmt.Fprintln(out, line)
			}
			fmt.Fprintln(out, renderStatusLine("Backend", statusInfo, status.Backend, colorize))
			if status.CredentialsOK {
				fmt.Fprintln(out, renderStatusLine("Credentials", statusOK, cfg.Remote.CredentialsFile, colorize))
			} else {
				fmt.Fprintln(out, renderStatusLine("Credentials", statusError, status.CredentialsErr, colorize))
			}
			if cfg.Remote.Backend != config.BackendGCS {
				switch {
				case !status.Linked:
					fmt.Fprintln(out, renderStatusLine("Token", statusError, "not linked; run `capturesync auth login`", colorize))
				case !status.HasRefresh:
					fmt.Fprintln(out, renderStatusLine("Token", statusWarn, "no refresh token", colorize))
				default:
					fmt.Fprintln(out, renderStatusLine("Token", statusOK, "linked", colorize))
				}
				if !status.Expiry.IsZero() {
					fmt.Fprintln(out, renderStatusLine("Access expiry", statusInfo, humanize.Time(status.Expiry), colorize))
				}
			}
			if verify {
				if verifyErr != nil {
					fmt.Fprintln(out, renderStatusLine("Verify", statusError, verifyErr.Error(), colorize))
				} else {
					msg := "connected"
					if status.Account != "" {
						msg += " as " + status.Account
					}
					fmt.Fprintln(out, renderStatusLine("Verify", statusOK, msg, colorize))
				}
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&verify, "verify", false, "Contact the remote to confirm the token works")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Write JSON instead of text")
	return cmd
}
