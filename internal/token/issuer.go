// Package token issues short-lived IAM authentication tokens that stand in for
// a database password.
package token

import (
	"context"
	"fmt"
	"net"
	"strconv"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/rds/auth"

	"github.com/willibrandon/rdsprobe/internal/logger"
)

// Request scopes a token to one database user at one endpoint.
type Request struct {
	Region   string
	Host     string
	Port     int
	Username string
}

// Endpoint returns host:port as signed into the token.
func (r Request) Endpoint() string {
	return net.JoinHostPort(r.Host, strconv.Itoa(r.Port))
}

// Issuer mints a token for a request. Tokens expire after fifteen minutes and
// are never cached by callers.
type Issuer interface {
	IssueToken(ctx context.Context, req Request) (string, error)
}

// RDSIssuer signs tokens locally with the caller's IAM credentials.
type RDSIssuer struct {
	credentials aws.CredentialsProvider
}

// NewRDSIssuer creates an issuer backed by a credentials provider.
func NewRDSIssuer(credentials aws.CredentialsProvider) *RDSIssuer {
	return &RDSIssuer{credentials: credentials}
}

// NewRDSIssuerFromConfig uses the credentials chain of an SDK config.
func NewRDSIssuerFromConfig(cfg aws.Config) *RDSIssuer {
	return NewRDSIssuer(cfg.Credentials)
}

// IssueToken builds a presigned connect token for req.
func (i *RDSIssuer) IssueToken(ctx context.Context, req Request) (string, error) {
	if req.Region == "" || req.Host == "" || req.Username == "" || req.Port == 0 {
		return "", fmt.Errorf("token request needs region, host, port and username")
	}
	if i.credentials == nil {
		return "", fmt.Errorf("no AWS credentials configured for token issuance")
	}

	logger.Debug("Issuing IAM auth token",
		"endpoint", req.Endpoint(),
		"region", req.Region,
		"user", req.Username,
	)

	tok, err := auth.BuildAuthToken(ctx, req.Endpoint(), req.Region, req.Username, i.credentials)
	if err != nil {
		return "", fmt.Errorf("build auth token for %s@%s: %w", req.Username, req.Endpoint(), err)
	}
	return tok, nil
}
