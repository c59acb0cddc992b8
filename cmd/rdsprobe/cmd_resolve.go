package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/willibrandon/rdsprobe/internal/config"
	"github.com/willibrandon/rdsprobe/internal/db"
	"github.com/willibrandon/rdsprobe/internal/invoke"
	"github.com/willibrandon/rdsprobe/internal/logger"
)

// newResolveCmd creates the resolve subcommand. It reads and parses the secret
// and plans the connection, but never issues a token or connects.
func newResolveCmd() *cobra.Command {
	var (
		proxy    string
		authMode string
		output   string
	)

	cmd := &cobra.Command{
		Use:   "resolve",
		Short: "Show the resolved connection target without connecting",
		Long: `Fetch and parse the connection secret and print the target the probe would
dial: host, port, database, user and TLS mode. Passwords are redacted and no
IAM token is issued.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := validOutput(output); err != nil {
				return err
			}

			cfg := loadConfig(func(c *config.Config) {
				if proxy != "" {
					c.ProxyEndpoint = proxy
				}
				if authMode != "" {
					c.AuthMode = strings.ToLower(authMode)
				}
			})
			defer logger.Close()

			ctx, cancel := signalContext()
			defer cancel()

			boot, err := newBootstrapper(ctx, cfg)
			if err == nil {
				var params db.ConnParams
				params, err = boot.Prepare(ctx, db.OptionsFromConfig(cfg))
				if err == nil {
					t := newTarget(params)
					if output == outputText {
						printTarget(os.Stdout, t)
						return nil
					}
					return encode(os.Stdout, output, t)
				}
			}

			fmt.Fprintln(os.Stderr, invoke.FormatError(err))
			exit(exitCodeForError(err))
			return nil
		},
	}

	cmd.Flags().StringVar(&proxy, "proxy", "", "connection proxy endpoint (overrides config)")
	cmd.Flags().StringVar(&authMode, "auth-mode", "", "password or iam (overrides config)")
	cmd.Flags().StringVarP(&output, "output", "o", outputText, "output format: text, json, yaml")
	return cmd
}
