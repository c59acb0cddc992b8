package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/willibrandon/rdsprobe/internal/cloud"
	"github.com/willibrandon/rdsprobe/internal/config"
	"github.com/willibrandon/rdsprobe/internal/db"
	"github.com/willibrandon/rdsprobe/internal/db/models"
	"github.com/willibrandon/rdsprobe/internal/invoke"
	"github.com/willibrandon/rdsprobe/internal/logger"
	"github.com/willibrandon/rdsprobe/internal/secrets"
	"github.com/willibrandon/rdsprobe/internal/storage/sqlite"
	"github.com/willibrandon/rdsprobe/internal/token"
)

// Exit codes
const (
	ExitSuccess         = 0
	ExitQueryError      = 1
	ExitConnectionError = 2
	ExitConfigError     = 3
)

var (
	// Version info (set by ldflags)
	version = "dev"

	// Flags
	configPath string
	debug      bool
	logFile    string
	noColor    bool
)

func main() {
	rootCmd := newRootCmd()
	if err := rootCmd.Execute(); err != nil {
		// Error already printed by cobra
		exit(ExitQueryError)
	}
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "rdsprobe",
		Short: "Check database connectivity the way the probe function does",
		Long: `rdsprobe resolves PostgreSQL connection details from a stored secret,
optionally through a connection proxy and with IAM token authentication,
opens a connection and runs one statement.

Commands:
  rdsprobe run [smoke|has-table|create-user]   Connect and run one operation
  rdsprobe resolve                             Show the resolved target without connecting
  rdsprobe history                             Show recorded runs

Exit codes:
  0  success
  1  query error
  2  connection error
  3  configuration error`,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: false,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			if noColor || !term.IsTerminal(int(os.Stdout.Fd())) {
				color.NoColor = true
			}
		},
	}

	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "config file path (default ~/.config/rdsprobe/config.yaml)")
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "enable debug logging")
	rootCmd.PersistentFlags().StringVar(&logFile, "log-file", "", "write logs to this file instead of stderr")
	rootCmd.PersistentFlags().BoolVar(&noColor, "no-color", false, "disable colored output")

	rootCmd.AddCommand(
		newRunCmd(),
		newResolveCmd(),
		newHistoryCmd(),
		newVersionCmd(),
	)

	return rootCmd
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "rdsprobe %s\n", version)
		},
	}
}

// loadConfig loads configuration, applies flag overrides, validates the
// result and starts logging. Exits with ExitConfigError on failure.
func loadConfig(apply func(*config.Config)) *config.Config {
	return mustConfig(apply, (*config.Config).Validate)
}

// loadHistoryConfig is loadConfig for commands that only read local history
// and need no cloud settings.
func loadHistoryConfig() *config.Config {
	return mustConfig(nil, (*config.Config).ValidateHistory)
}

func mustConfig(apply func(*config.Config), validate func(*config.Config) error) *config.Config {
	cfg, err := buildConfig(apply, validate)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading config: %v\n", err)
		exit(ExitConfigError)
	}

	initLogging(cfg)
	atExit(logger.Close)
	return cfg
}

// buildConfig reads the config file and environment, applies overrides and
// validates once, so flags can correct values from the file.
func buildConfig(apply func(*config.Config), validate func(*config.Config) error) (*config.Config, error) {
	cfg, err := config.ReadConfigFromPath(configPath)
	if err != nil {
		return nil, err
	}
	if apply != nil {
		apply(cfg)
	}
	if err := validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func initLogging(cfg *config.Config) {
	level := logger.LevelWarn
	if debug || cfg.Debug {
		level = logger.LevelDebug
	}

	path := logFile
	if path == "" {
		path = cfg.LogFile
	}
	if path == "" && level == logger.LevelDebug {
		if homeDir, err := os.UserHomeDir(); err == nil {
			path = filepath.Join(homeDir, ".config", "rdsprobe", "rdsprobe.log")
		}
	}

	logger.InitLogger(level, path)
	if level == logger.LevelDebug && path != "" {
		fmt.Fprintf(os.Stderr, "Debug mode: Logs written to %s\n", path)
		logger.Debug("rdsprobe starting", "version", version, "config", configPath)
	}
}

// signalContext is canceled on SIGINT or SIGTERM.
func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}

// newBootstrapper wires the secret store, token issuer and pgx dialer.
func newBootstrapper(ctx context.Context, cfg *config.Config) (*db.Bootstrapper, error) {
	awsCfg, err := cloud.LoadConfig(ctx, cfg.Region)
	if err != nil {
		return nil, &db.ConfigurationError{Reason: "load cloud config", Err: err}
	}

	store := secrets.NewSecretsManagerStoreFromConfig(awsCfg)
	var issuer token.Issuer
	if cfg.AuthMode == config.AuthModeIAM {
		issuer = token.NewRDSIssuerFromConfig(awsCfg)
	}
	return db.NewBootstrapper(store, issuer, nil), nil
}

// openHistory opens the run store, or returns nil when history is disabled.
func openHistory(cfg *config.Config) (*sqlite.RunStore, func(), error) {
	if !cfg.History.Enabled {
		return nil, func() {}, nil
	}
	hdb, err := sqlite.Open(cfg.History.Path)
	if err != nil {
		return nil, nil, fmt.Errorf("open history: %w", err)
	}
	return sqlite.NewRunStore(hdb), func() { hdb.Close() }, nil
}

// osExit is replaced in tests.
var osExit = os.Exit

var exitHooks []func()

// atExit registers f to run before exit, most recent first.
func atExit(f func()) {
	exitHooks = append(exitHooks, f)
}

// exit runs the registered hooks and exits with code. Deferred calls do not
// run on os.Exit, so anything holding a file must be registered here.
func exit(code int) {
	hooks := exitHooks
	exitHooks = nil
	for i := len(hooks) - 1; i >= 0; i-- {
		hooks[i]()
	}
	osExit(code)
}

// exitCode maps an invocation outcome to a process exit code.
func exitCode(outcome models.Outcome) int {
	switch outcome {
	case models.OutcomeSuccess:
		return ExitSuccess
	case models.OutcomeConfigurationError:
		return ExitConfigError
	case models.OutcomeConnectionError:
		return ExitConnectionError
	default:
		return ExitQueryError
	}
}

// exitCodeForError maps an error from outside an invocation.
func exitCodeForError(err error) int {
	outcome, _ := invoke.Classify(err)
	return exitCode(outcome)
}
