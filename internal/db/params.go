package db

import (
	"fmt"
	"net"
	"net/url"
	"strconv"

	"github.com/willibrandon/rdsprobe/internal/config"
	"github.com/willibrandon/rdsprobe/internal/secrets"
)

// AuthMode selects where the connection password comes from.
type AuthMode string

const (
	// AuthPassword uses the static password stored in the secret.
	AuthPassword AuthMode = config.AuthModePassword
	// AuthIAM uses a freshly issued IAM token as the password.
	AuthIAM AuthMode = config.AuthModeIAM
)

// proxySSLMode is used for every proxied connection unless a stricter mode
// was configured.
const proxySSLMode = "require"

const redacted = "********"

// Options enumerates everything the bootstrapper needs for one invocation.
type Options struct {
	Region          string
	SecretID        string
	ProxyEndpoint   string
	AuthMode        AuthMode
	SSLMode         string
	PoolMaxConns    int
	ApplicationName string
}

// OptionsFromConfig maps the loaded configuration onto bootstrap options.
func OptionsFromConfig(cfg *config.Config) Options {
	return Options{
		Region:          cfg.Region,
		SecretID:        cfg.SecretID,
		ProxyEndpoint:   cfg.ProxyEndpoint,
		AuthMode:        AuthMode(cfg.AuthMode),
		SSLMode:         cfg.SSLMode,
		PoolMaxConns:    cfg.PoolMaxConns,
		ApplicationName: cfg.ApplicationName,
	}
}

func (o Options) validate() error {
	if o.SecretID == "" {
		return &ConfigurationError{Reason: "no secret id configured"}
	}
	switch o.AuthMode {
	case AuthPassword:
	case AuthIAM:
		if o.Region == "" {
			return &ConfigurationError{Reason: "iam authentication requires a region"}
		}
	default:
		return &ConfigurationError{Reason: fmt.Sprintf("unknown auth mode %q", o.AuthMode)}
	}
	if o.PoolMaxConns > config.MaxPoolConns {
		return &ConfigurationError{Reason: fmt.Sprintf("pool size %d exceeds %d", o.PoolMaxConns, config.MaxPoolConns)}
	}
	return nil
}

// ConnParams is the fully resolved dial plan for one invocation.
type ConnParams struct {
	Host     string
	Port     int
	User     string
	Password string
	Database string

	SSLMode  string
	Proxied  bool
	AuthMode AuthMode

	PoolMaxConns    int
	ApplicationName string
}

// Plan picks the dial target and TLS mode for a parsed secret. The proxy
// endpoint, when configured, always replaces the secret's host. In password
// mode the secret's password is the credential; in IAM mode the password is
// left empty for the issued token.
func Plan(secret *secrets.ConnectionSecret, opts Options) ConnParams {
	p := ConnParams{
		Host:            secret.Host,
		Port:            secret.Port,
		User:            secret.Username,
		Database:        secret.Database,
		SSLMode:         opts.SSLMode,
		AuthMode:        opts.AuthMode,
		PoolMaxConns:    opts.PoolMaxConns,
		ApplicationName: opts.ApplicationName,
	}

	if opts.ProxyEndpoint != "" {
		p.Host = opts.ProxyEndpoint
		p.Proxied = true
		if p.SSLMode != "verify-ca" && p.SSLMode != "verify-full" {
			p.SSLMode = proxySSLMode
		}
	}
	if p.SSLMode == "" {
		p.SSLMode = "prefer"
	}

	if opts.AuthMode != AuthIAM {
		p.Password = secret.Password
	}
	if p.PoolMaxConns < 1 {
		p.PoolMaxConns = 1
	}

	return p
}

// Target returns the host:port actually dialed.
func (p ConnParams) Target() string {
	return net.JoinHostPort(p.Host, strconv.Itoa(p.Port))
}

// TLSRequired reports whether the connection refuses to fall back to plaintext.
func (p ConnParams) TLSRequired() bool {
	switch p.SSLMode {
	case "require", "verify-ca", "verify-full":
		return true
	}
	return false
}

// ConnString renders the params as a postgres URL. The password is escaped,
// so issued tokens (which contain '&', '=' and '%') survive intact.
func (p ConnParams) ConnString() string {
	q := url.Values{}
	q.Set("sslmode", p.SSLMode)

	u := url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(p.User, p.Password),
		Host:     p.Target(),
		Path:     "/" + p.Database,
		RawQuery: q.Encode(),
	}
	return u.String()
}

// Redacted returns a copy safe for logs and output.
func (p ConnParams) Redacted() ConnParams {
	if p.Password != "" {
		p.Password = redacted
	}
	return p
}
