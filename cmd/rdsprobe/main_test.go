package main

import (
	"bytes"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/fatih/color"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/willibrandon/rdsprobe/internal/db"
	"github.com/willibrandon/rdsprobe/internal/db/models"
)

func init() {
	color.NoColor = true
}

func TestExitCode(t *testing.T) {
	assert.Equal(t, ExitSuccess, exitCode(models.OutcomeSuccess))
	assert.Equal(t, ExitConfigError, exitCode(models.OutcomeConfigurationError))
	assert.Equal(t, ExitConnectionError, exitCode(models.OutcomeConnectionError))
	assert.Equal(t, ExitQueryError, exitCode(models.OutcomeQueryError))
}

func TestExitCodeForError(t *testing.T) {
	assert.Equal(t, ExitConfigError, exitCodeForError(&db.ConfigurationError{Reason: "x"}))
	assert.Equal(t, ExitConnectionError, exitCodeForError(&db.ConnectionError{Target: "t", Err: errors.New("x")}))
	assert.Equal(t, ExitQueryError, exitCodeForError(errors.New("x")))
}

func TestValidOutput(t *testing.T) {
	assert.NoError(t, validOutput("text"))
	assert.NoError(t, validOutput("json"))
	assert.NoError(t, validOutput("yaml"))
	assert.EqualError(t, validOutput("xml"), `--output must be one of: text, json, yaml, got "xml"`)
}

func testParams() db.ConnParams {
	return db.ConnParams{
		Host:            "proxy.internal",
		Port:            5432,
		User:            "app",
		Password:        "s3cret",
		Database:        "appdb",
		SSLMode:         "require",
		Proxied:         true,
		AuthMode:        db.AuthPassword,
		PoolMaxConns:    1,
		ApplicationName: "rdsprobe",
	}
}

func TestTargetRedactsPassword(t *testing.T) {
	tg := newTarget(testParams())
	assert.Equal(t, "********", tg.Password)
	assert.True(t, tg.TLSRequired)

	var buf bytes.Buffer
	require.NoError(t, encode(&buf, outputJSON, tg))
	assert.NotContains(t, buf.String(), "s3cret")

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &decoded))
	assert.Equal(t, "proxy.internal", decoded["host"])
	assert.Equal(t, true, decoded["tls_required"])
}

func TestEncodeYAML(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, encode(&buf, outputYAML, newTarget(testParams())))

	var decoded map[string]any
	require.NoError(t, yaml.Unmarshal(buf.Bytes(), &decoded))
	assert.Equal(t, "appdb", decoded["database"])
	assert.Equal(t, 5432, decoded["port"])
}

func TestPrintTarget(t *testing.T) {
	var buf bytes.Buffer
	printTarget(&buf, newTarget(testParams()))

	out := buf.String()
	assert.Contains(t, out, "proxy.internal")
	assert.Contains(t, out, "require (TLS required)")
	assert.Contains(t, out, "connection proxy")
	assert.NotContains(t, out, "s3cret")
}

func TestPrintTarget_IAM(t *testing.T) {
	p := testParams()
	p.AuthMode = db.AuthIAM
	p.Password = ""

	var buf bytes.Buffer
	printTarget(&buf, newTarget(p))
	assert.Contains(t, buf.String(), "issued IAM token at connect")
}

func TestPrintRun(t *testing.T) {
	var buf bytes.Buffer
	printRun(&buf, models.Run{
		Operation:  "smoke",
		Target:     "db.internal:5432",
		Outcome:    models.OutcomeSuccess,
		StatusCode: 200,
		Body:       "ok: 7 tables visible",
		Duration:   120 * time.Millisecond,
	})

	out := buf.String()
	assert.Contains(t, out, "200 ok: 7 tables visible")
	assert.Contains(t, out, "smoke · 120ms · db.internal:5432")
}

func TestPrintHistory(t *testing.T) {
	var buf bytes.Buffer
	printHistory(&buf, nil)
	assert.Equal(t, "No runs recorded.\n", buf.String())

	buf.Reset()
	printHistory(&buf, []models.Run{{
		ID:         "0123456789abcdef",
		Operation:  "has-table",
		Outcome:    models.OutcomeConnectionError,
		StatusCode: 502,
		StartedAt:  time.Now().Add(-2 * time.Hour),
		Duration:   3 * time.Second,
	}})

	out := buf.String()
	assert.Contains(t, out, "01234567 ")
	assert.Contains(t, out, "2 hours ago")
	assert.Contains(t, out, "connection_error")
	assert.Contains(t, out, "502")
}

func TestVersionCommand(t *testing.T) {
	cmd := newRootCmd()
	var buf bytes.Buffer
	cmd.SetOut(&buf)
	cmd.SetArgs([]string{"version"})

	require.NoError(t, cmd.Execute())
	assert.Equal(t, "rdsprobe dev\n", buf.String())
}
