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

// newRunCmd creates the run subcommand.
func newRunCmd() *cobra.Command {
	var (
		tableName string
		userName  string
		proxy     string
		authMode  string
		record    bool
		output    string
	)

	cmd := &cobra.Command{
		Use:   "run [smoke|has-table|create-user]",
		Short: "Connect and run one operation",
		Long: `Resolve the connection from the secret, connect, run one operation and
release the connection.

Operations:
  smoke        Count tables visible to the user (default)
  has-table    Check a table exists (--table)
  create-user  Create a login role granted rds_iam (--user)

Examples:
  rdsprobe run
  rdsprobe run has-table --table orders
  rdsprobe run create-user --user app_iam --auth-mode password
  rdsprobe run --proxy my-proxy.proxy-abc.us-east-1.rds.amazonaws.com --auth-mode iam`,
		Args:      cobra.MaximumNArgs(1),
		ValidArgs: []string{config.OperationSmoke, config.OperationHasTable, config.OperationCreateUser},
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := validOutput(output); err != nil {
				return err
			}

			cfg := loadConfig(func(c *config.Config) {
				if len(args) == 1 {
					c.Probe.Operation = args[0]
				}
				if tableName != "" {
					c.Probe.TableName = tableName
				}
				if userName != "" {
					c.Probe.UserName = userName
				}
				if proxy != "" {
					c.ProxyEndpoint = proxy
				}
				if authMode != "" {
					c.AuthMode = strings.ToLower(authMode)
				}
				if record {
					c.History.Enabled = true
				}
			})
			defer logger.Close()

			op, err := invoke.OperationFromConfig(cfg.Probe)
			if err != nil {
				fmt.Fprintf(os.Stderr, "Error: %v\n", err)
				exit(ExitConfigError)
			}

			ctx, cancel := signalContext()
			defer cancel()

			boot, err := newBootstrapper(ctx, cfg)
			if err != nil {
				fmt.Fprintln(os.Stderr, invoke.FormatError(err))
				exit(exitCodeForError(err))
			}

			history, closeHistory, err := openHistory(cfg)
			if err != nil {
				// History is best effort; the probe still runs.
				logger.Warn("History disabled", "error", err)
				history, closeHistory = nil, func() {}
			}
			defer closeHistory()
			atExit(closeHistory)

			var options []invoke.Option
			if history != nil {
				options = append(options, invoke.WithRecorder(history))
			}
			inv := invoke.New(boot, db.OptionsFromConfig(cfg), options...)

			_, run := inv.InvokeRun(ctx, op)

			if output != outputText {
				if err := encode(os.Stdout, output, run); err != nil {
					return err
				}
			} else {
				printRun(os.Stdout, run)
				if !run.Succeeded() {
					fmt.Fprintf(os.Stderr, "\n%s\n", invoke.FormatError(run.Err))
				}
			}

			if code := exitCode(run.Outcome); code != ExitSuccess {
				exit(code)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&tableName, "table", "", "table name for has-table")
	cmd.Flags().StringVar(&userName, "user", "", "user name for create-user")
	cmd.Flags().StringVar(&proxy, "proxy", "", "connection proxy endpoint (overrides config)")
	cmd.Flags().StringVar(&authMode, "auth-mode", "", "password or iam (overrides config)")
	cmd.Flags().BoolVar(&record, "record", false, "record the run in history even if history is disabled")
	cmd.Flags().StringVarP(&output, "output", "o", outputText, "output format: text, json, yaml")
	return cmd
}
