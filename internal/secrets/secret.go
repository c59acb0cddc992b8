// Package secrets fetches and parses database connection secrets.
package secrets

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// ErrEmptySecret is returned when the secret store has no value for the id.
var ErrEmptySecret = errors.New("secret has no string value")

// ConnectionSecret is the JSON document stored for a database user.
// Read-only here; rotation happens elsewhere.
type ConnectionSecret struct {
	Host     string
	Port     int
	Username string
	Password string
	Database string

	// Engine and ClusterID are informational; RDS-managed secrets carry them.
	Engine    string
	ClusterID string
}

// MissingFieldsError lists required fields absent from a secret payload.
type MissingFieldsError struct {
	Fields []string
}

func (e *MissingFieldsError) Error() string {
	return fmt.Sprintf("secret is missing required fields: %s", strings.Join(e.Fields, ", "))
}

// rawSecret mirrors the payload written by the managed secret generator.
// The database name is "dbname" there; "database" is accepted as well.
type rawSecret struct {
	Host      string          `json:"host"`
	Port      json.RawMessage `json:"port"`
	Username  string          `json:"username"`
	Password  string          `json:"password"`
	DBName    string          `json:"dbname"`
	Database  string          `json:"database"`
	Engine    string          `json:"engine"`
	ClusterID string          `json:"dbClusterIdentifier"`
}

// Parse decodes a secret payload. All of host, port, username, password and
// database name must be present.
func Parse(payload string) (*ConnectionSecret, error) {
	if strings.TrimSpace(payload) == "" {
		return nil, ErrEmptySecret
	}

	var raw rawSecret
	if err := json.Unmarshal([]byte(payload), &raw); err != nil {
		return nil, fmt.Errorf("decode secret payload: %w", err)
	}

	var missing []string
	if raw.Host == "" {
		missing = append(missing, "host")
	}

	port, portSet, err := parsePort(raw.Port)
	if err != nil {
		return nil, err
	}
	if !portSet {
		missing = append(missing, "port")
	}

	if raw.Username == "" {
		missing = append(missing, "username")
	}
	if raw.Password == "" {
		missing = append(missing, "password")
	}

	database := raw.DBName
	if database == "" {
		database = raw.Database
	}
	if database == "" {
		missing = append(missing, "dbname")
	}

	if len(missing) > 0 {
		return nil, &MissingFieldsError{Fields: missing}
	}

	return &ConnectionSecret{
		Host:      raw.Host,
		Port:      port,
		Username:  raw.Username,
		Password:  raw.Password,
		Database:  database,
		Engine:    raw.Engine,
		ClusterID: raw.ClusterID,
	}, nil
}

// parsePort accepts 5432 or "5432". A null or absent port reports unset.
func parsePort(raw json.RawMessage) (int, bool, error) {
	s := strings.TrimSpace(string(raw))
	if s == "" || s == "null" {
		return 0, false, nil
	}
	s = strings.Trim(s, `"`)
	if s == "" {
		return 0, false, nil
	}

	port, err := strconv.Atoi(s)
	if err != nil {
		return 0, false, fmt.Errorf("secret port %q is not a number", s)
	}
	if port < 1 || port > 65535 {
		return 0, false, fmt.Errorf("secret port must be between 1 and 65535, got %d", port)
	}
	return port, true, nil
}
