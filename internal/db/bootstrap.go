package db

import (
	"context"
	"errors"
	"sync"

	"github.com/willibrandon/rdsprobe/internal/logger"
	"github.com/willibrandon/rdsprobe/internal/secrets"
	"github.com/willibrandon/rdsprobe/internal/token"
)

// Bootstrapper turns a secret id into an open connection. It holds no state
// between invocations: every call fetches the secret again and, in IAM mode,
// issues a new token.
type Bootstrapper struct {
	store  secrets.Store
	issuer token.Issuer
	dialer Dialer
}

// NewBootstrapper wires the three collaborators. issuer may be nil when IAM
// authentication is never used; dialer nil means PgxDialer.
func NewBootstrapper(store secrets.Store, issuer token.Issuer, dialer Dialer) *Bootstrapper {
	if dialer == nil {
		dialer = PgxDialer{}
	}
	return &Bootstrapper{
		store:  store,
		issuer: issuer,
		dialer: dialer,
	}
}

// Prepare fetches and parses the secret and plans the connection without
// issuing a token or dialing. In IAM mode the returned password is empty.
func (b *Bootstrapper) Prepare(ctx context.Context, opts Options) (ConnParams, error) {
	if err := opts.validate(); err != nil {
		return ConnParams{}, err
	}

	payload, err := b.store.GetSecretString(ctx, opts.SecretID)
	if err != nil {
		return ConnParams{}, &ConfigurationError{Reason: "secret lookup failed", Err: err}
	}
	if payload == "" {
		logger.Error("Secret has no value", "secret_id", opts.SecretID)
		return ConnParams{}, &ConfigurationError{Reason: "secret " + opts.SecretID + " has no value", Err: secrets.ErrEmptySecret}
	}

	secret, err := secrets.Parse(payload)
	if err != nil {
		logger.Error("Secret payload rejected", "secret_id", opts.SecretID, "error", err)
		return ConnParams{}, &ConfigurationError{Reason: "secret " + opts.SecretID + " is malformed", Err: err}
	}

	params := Plan(secret, opts)
	logger.Debug("Connection planned",
		"target", params.Target(),
		"proxied", params.Proxied,
		"sslmode", params.SSLMode,
		"auth_mode", params.AuthMode,
	)
	return params, nil
}

// ResolveConnection runs the full sequence: fetch secret, plan target,
// resolve credential, dial. The caller owns the returned handle and must
// Release it.
func (b *Bootstrapper) ResolveConnection(ctx context.Context, opts Options) (*Handle, error) {
	params, err := b.Prepare(ctx, opts)
	if err != nil {
		return nil, err
	}

	if err := resolveCredential(ctx, b.issuer, opts.Region, &params); err != nil {
		return nil, err
	}

	pool, err := b.dialer.Dial(ctx, params)
	if err != nil {
		var cfgErr *ConfigurationError
		if errors.As(err, &cfgErr) {
			return nil, cfgErr
		}
		logger.Error("Failed to create connection pool",
			"target", params.Target(),
			"error", err,
		)
		return nil, &ConnectionError{Target: params.Target(), Err: err}
	}

	return &Handle{pool: pool, params: params.Redacted()}, nil
}

// Handle is an open pool scoped to one invocation.
type Handle struct {
	pool   Pool
	params ConnParams
	once   sync.Once
}

// NewHandle wraps an already open pool.
func NewHandle(pool Pool, params ConnParams) *Handle {
	return &Handle{pool: pool, params: params.Redacted()}
}

// Pool returns the underlying pool for running statements.
func (h *Handle) Pool() Pool {
	return h.pool
}

// Params returns the resolved params with the credential redacted.
func (h *Handle) Params() ConnParams {
	return h.params
}

// Release closes the pool. Calling it more than once is harmless; the pool is
// closed exactly once.
func (h *Handle) Release() {
	h.once.Do(func() {
		h.pool.Close()
		logger.Debug("Connection released", "target", h.params.Target())
	})
}
