package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/fatih/color"
	"gopkg.in/yaml.v3"

	"github.com/willibrandon/rdsprobe/internal/db"
	"github.com/willibrandon/rdsprobe/internal/db/models"
)

var (
	labelFormat   = color.New(color.FgHiBlack).SprintFunc()
	boldFormat    = color.New(color.Bold).SprintFunc()
	goodFormat    = color.New(color.FgGreen).SprintFunc()
	warningFormat = color.New(color.FgHiYellow).SprintFunc()
	badFormat     = color.New(color.FgHiRed).SprintFunc()
)

// Output formats
const (
	outputText = "text"
	outputJSON = "json"
	outputYAML = "yaml"
)

func validOutput(format string) error {
	switch format {
	case outputText, outputJSON, outputYAML:
		return nil
	}
	return fmt.Errorf("--output must be one of: text, json, yaml, got %q", format)
}

// encode writes v as JSON or YAML.
func encode(w io.Writer, format string, v any) error {
	switch format {
	case outputJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	case outputYAML:
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		defer enc.Close()
		return enc.Encode(v)
	}
	return fmt.Errorf("unsupported output format %q", format)
}

// target is the printable form of resolved connection parameters.
type target struct {
	Host            string `json:"host" yaml:"host"`
	Port            int    `json:"port" yaml:"port"`
	Database        string `json:"database" yaml:"database"`
	User            string `json:"user" yaml:"user"`
	Password        string `json:"password,omitempty" yaml:"password,omitempty"`
	AuthMode        string `json:"auth_mode" yaml:"auth_mode"`
	SSLMode         string `json:"sslmode" yaml:"sslmode"`
	TLSRequired     bool   `json:"tls_required" yaml:"tls_required"`
	Proxied         bool   `json:"proxied" yaml:"proxied"`
	PoolMaxConns    int    `json:"pool_max_conns" yaml:"pool_max_conns"`
	ApplicationName string `json:"application_name" yaml:"application_name"`
}

func newTarget(p db.ConnParams) target {
	p = p.Redacted()
	return target{
		Host:            p.Host,
		Port:            p.Port,
		Database:        p.Database,
		User:            p.User,
		Password:        p.Password,
		AuthMode:        string(p.AuthMode),
		SSLMode:         p.SSLMode,
		TLSRequired:     p.TLSRequired(),
		Proxied:         p.Proxied,
		PoolMaxConns:    p.PoolMaxConns,
		ApplicationName: p.ApplicationName,
	}
}

func printTarget(w io.Writer, t target) {
	fmt.Fprintf(w, "%s\n", boldFormat("Resolved target"))
	row := func(label string, value any) {
		fmt.Fprintf(w, "  %s %v\n", labelFormat(fmt.Sprintf("%-12s", label+":")), value)
	}
	row("Host", t.Host)
	row("Port", t.Port)
	row("Database", t.Database)
	row("User", t.User)
	if t.AuthMode == string(db.AuthIAM) {
		row("Password", warningFormat("issued IAM token at connect"))
	} else {
		row("Password", t.Password)
	}
	row("Auth mode", t.AuthMode)
	tls := t.SSLMode
	if t.TLSRequired {
		tls = goodFormat(tls + " (TLS required)")
	}
	row("SSL mode", tls)
	if t.Proxied {
		row("Via", "connection proxy")
	} else {
		row("Via", "direct")
	}
}

func outcomeFormat(o models.Outcome) string {
	switch o {
	case models.OutcomeSuccess:
		return goodFormat(string(o))
	case models.OutcomeConnectionError:
		return warningFormat(string(o))
	default:
		return badFormat(string(o))
	}
}

func printRun(w io.Writer, run models.Run) {
	status := fmt.Sprintf("%d", run.StatusCode)
	if run.Succeeded() {
		status = goodFormat(status)
	} else {
		status = badFormat(status)
	}
	fmt.Fprintf(w, "%s %s\n", status, run.Body)
	details := []string{run.Operation, run.FormatDuration()}
	if run.Target != "" {
		details = append(details, run.Target)
	}
	fmt.Fprintf(w, "%s\n", labelFormat("  "+strings.Join(details, " · ")))
}

func printHistory(w io.Writer, runs []models.Run) {
	if len(runs) == 0 {
		fmt.Fprintln(w, "No runs recorded.")
		return
	}

	fmt.Fprintf(w, "%-10s %-16s %-12s %-21s %-6s %-9s %s\n",
		"ID", "WHEN", "OPERATION", "OUTCOME", "STATUS", "DURATION", "TARGET")
	for _, r := range runs {
		outcome := fmt.Sprintf("%-21s", r.Outcome)
		fmt.Fprintf(w, "%-10s %-16s %-12s %s %-6d %-9s %s\n",
			r.ShortID(),
			humanize.Time(r.StartedAt),
			r.Operation,
			strings.Replace(outcome, string(r.Outcome), outcomeFormat(r.Outcome), 1),
			r.StatusCode,
			r.FormatDuration(),
			r.Target,
		)
	}
}
