package main

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/willibrandon/rdsprobe/internal/config"
	"github.com/willibrandon/rdsprobe/internal/db/models"
	"github.com/willibrandon/rdsprobe/internal/storage/sqlite"
)

// isolate clears cloud settings and points config discovery at an empty
// home, so only what the test writes is loaded.
func isolate(t *testing.T) {
	t.Helper()
	home := t.TempDir()
	t.Setenv("HOME", home)
	t.Setenv("XDG_CONFIG_HOME", filepath.Join(home, ".config"))
	for _, key := range []string{
		"AWS_REGION", "AWS_DEFAULT_REGION", "RDS_SECRET_NAME", "PROXY_ENDPOINT",
		"RDSPROBE_REGION", "RDSPROBE_SECRET_ID", "RDSPROBE_PROXY_ENDPOINT",
		"RDSPROBE_AUTH_MODE", "RDSPROBE_HISTORY_PATH",
	} {
		t.Setenv(key, "")
	}

	osExit = func(code int) { t.Fatalf("unexpected exit with code %d", code) }
	t.Cleanup(func() {
		osExit = os.Exit
		exitHooks = nil
		configPath = ""
	})
}

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func historyConfig(t *testing.T, dbPath string) string {
	return writeConfig(t, "history:\n  path: "+dbPath+"\n")
}

func seedHistory(t *testing.T, dbPath string, runs ...models.Run) {
	t.Helper()
	hdb, err := sqlite.Open(dbPath)
	require.NoError(t, err)
	defer hdb.Close()

	store := sqlite.NewRunStore(hdb)
	for _, r := range runs {
		require.NoError(t, store.RecordRun(context.Background(), r))
	}
}

func executeRoot(t *testing.T, args ...string) string {
	t.Helper()
	cmd := newRootCmd()
	var buf bytes.Buffer
	cmd.SetOut(&buf)
	cmd.SetErr(&buf)
	cmd.SetArgs(args)
	require.NoError(t, cmd.Execute())
	return buf.String()
}

func TestHistoryCommand_NoCloudSettings(t *testing.T) {
	isolate(t)
	dbPath := filepath.Join(t.TempDir(), "history.db")

	out := executeRoot(t, "history", "--config", historyConfig(t, dbPath))
	assert.Equal(t, "No runs recorded.\n", out)
}

func TestHistoryCommand_ListsRuns(t *testing.T) {
	isolate(t)
	dbPath := filepath.Join(t.TempDir(), "history.db")
	seedHistory(t, dbPath, models.Run{
		ID:         "a1b2c3d4-0000-4000-8000-000000000000",
		Operation:  "smoke",
		Target:     "proxy.internal:5432",
		AuthMode:   "iam",
		Outcome:    models.OutcomeConnectionError,
		StatusCode: 502,
		StartedAt:  time.Now().Add(-time.Hour),
		Duration:   250 * time.Millisecond,
	})

	out := executeRoot(t, "history", "--config", historyConfig(t, dbPath))
	assert.Contains(t, out, "a1b2c3d4 ")
	assert.Contains(t, out, "connection_error")
	assert.Contains(t, out, "proxy.internal:5432")

	out = executeRoot(t, "history", "--config", historyConfig(t, dbPath), "-o", "json")
	var runs []map[string]any
	require.NoError(t, json.Unmarshal([]byte(out), &runs))
	require.Len(t, runs, 1)
	assert.Equal(t, "smoke", runs[0]["operation"])
}

func TestHistoryCommand_Prune(t *testing.T) {
	isolate(t)
	dbPath := filepath.Join(t.TempDir(), "history.db")
	seedHistory(t, dbPath,
		models.Run{ID: "old", Operation: "smoke", AuthMode: "password", Outcome: models.OutcomeSuccess, StatusCode: 200, StartedAt: time.Now().Add(-72 * time.Hour)},
		models.Run{ID: "new", Operation: "smoke", AuthMode: "password", Outcome: models.OutcomeSuccess, StatusCode: 200, StartedAt: time.Now()},
	)

	out := executeRoot(t, "history", "--config", historyConfig(t, dbPath), "--prune", "24h")
	assert.Equal(t, "Removed 1 runs older than 24h0m0s\n", out)
}

func TestBuildConfig_OverridesValidatedOnce(t *testing.T) {
	isolate(t)
	t.Setenv("AWS_REGION", "us-east-1")
	t.Setenv("RDS_SECRET_NAME", "rds-secret")
	t.Setenv("RDSPROBE_AUTH_MODE", "kerberos")

	_, err := buildConfig(nil, (*config.Config).Validate)
	require.Error(t, err)

	cfg, err := buildConfig(func(c *config.Config) {
		c.AuthMode = config.AuthModeIAM
		c.Probe.Operation = config.OperationHasTable
		c.Probe.TableName = "orders"
	}, (*config.Config).Validate)
	require.NoError(t, err)
	assert.Equal(t, config.AuthModeIAM, cfg.AuthMode)
	assert.Equal(t, "orders", cfg.Probe.TableName)
}

func TestBuildConfig_HistoryNeedsNoCloudSettings(t *testing.T) {
	isolate(t)

	_, err := buildConfig(nil, (*config.Config).Validate)
	assert.EqualError(t, err, "region is required (set AWS_REGION or region)")

	cfg, err := buildConfig(nil, (*config.Config).ValidateHistory)
	require.NoError(t, err)
	assert.Equal(t, config.DefaultHistoryPath(), cfg.History.Path)
}

func TestExit_RunsHooksBeforeExiting(t *testing.T) {
	isolate(t)
	var calls []string
	var code int
	osExit = func(c int) {
		calls = append(calls, "exit")
		code = c
	}

	atExit(func() { calls = append(calls, "close logger") })
	atExit(func() { calls = append(calls, "close history") })
	exit(ExitConnectionError)

	assert.Equal(t, []string{"close history", "close logger", "exit"}, calls)
	assert.Equal(t, ExitConnectionError, code)
	assert.Empty(t, exitHooks)
}

func TestLoadConfig_RegistersLoggerClose(t *testing.T) {
	isolate(t)
	configPath = historyConfig(t, filepath.Join(t.TempDir(), "history.db"))

	loadHistoryConfig()
	assert.Len(t, exitHooks, 1)
}
