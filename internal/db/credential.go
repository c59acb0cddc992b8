package db

import (
	"context"

	"github.com/willibrandon/rdsprobe/internal/logger"
	"github.com/willibrandon/rdsprobe/internal/token"
)

// resolveCredential fills params.Password according to the auth mode:
//  1. iam: one token from the issuer, scoped to region, dial target and user
//  2. password: the secret's static password, already set by Plan
func resolveCredential(ctx context.Context, issuer token.Issuer, region string, params *ConnParams) error {
	if params.AuthMode != AuthIAM {
		logger.Debug("Using static password from secret")
		return nil
	}

	if issuer == nil {
		return &ConfigurationError{Reason: "iam authentication requested but no token issuer is configured"}
	}

	tok, err := issuer.IssueToken(ctx, token.Request{
		Region:   region,
		Host:     params.Host,
		Port:     params.Port,
		Username: params.User,
	})
	if err != nil {
		logger.Error("Failed to issue auth token", "target", params.Target(), "error", err)
		return &ConnectionError{Target: params.Target(), Err: err}
	}
	logger.Debug("Auth token issued", "target", params.Target(), "user", params.User)

	params.Password = tok
	return nil
}
