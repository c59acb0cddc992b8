// Command rdsprobe-lambda is the serverless entrypoint: each invocation
// resolves the connection, runs the configured operation and releases it.
package main

import (
	"context"
	"net/http"
	"os"

	"github.com/aws/aws-lambda-go/events"
	"github.com/aws/aws-lambda-go/lambda"

	"github.com/willibrandon/rdsprobe/internal/cloud"
	"github.com/willibrandon/rdsprobe/internal/config"
	"github.com/willibrandon/rdsprobe/internal/db"
	"github.com/willibrandon/rdsprobe/internal/invoke"
	"github.com/willibrandon/rdsprobe/internal/logger"
	"github.com/willibrandon/rdsprobe/internal/secrets"
	"github.com/willibrandon/rdsprobe/internal/token"
)

// connectorFactory builds the connector for one invocation.
type connectorFactory func(ctx context.Context, cfg *config.Config) (invoke.Connector, error)

// handler holds nothing across invocations but how to build them.
type handler struct {
	loadConfig   func() (*config.Config, error)
	newConnector connectorFactory
}

func newHandler() *handler {
	return &handler{
		loadConfig:   config.LoadFromEnv,
		newConnector: awsConnector,
	}
}

// Handle serves one invocation. It never returns an error: every failure is
// a status code and body.
func (h *handler) Handle(ctx context.Context, _ events.APIGatewayProxyRequest) (events.APIGatewayProxyResponse, error) {
	cfg, err := h.loadConfig()
	if err != nil {
		logger.Error("Invalid configuration", "error", err)
		return respond(invoke.Response{
			StatusCode: http.StatusInternalServerError,
			Body:       invoke.ErrorBody(&db.ConfigurationError{Reason: "invalid configuration", Err: err}),
		}), nil
	}

	logger.Debug("Configuration loaded",
		"secret_id", cfg.SecretID,
		"auth_mode", cfg.AuthMode,
		"proxied", cfg.Proxied(),
		"operation", cfg.Probe.Operation,
	)

	op, err := invoke.OperationFromConfig(cfg.Probe)
	if err != nil {
		return respond(invoke.Response{
			StatusCode: http.StatusInternalServerError,
			Body:       invoke.ErrorBody(&db.ConfigurationError{Reason: "invalid operation", Err: err}),
		}), nil
	}

	conn, err := h.newConnector(ctx, cfg)
	if err != nil {
		_, status := invoke.Classify(err)
		return respond(invoke.Response{StatusCode: status, Body: invoke.ErrorBody(err)}), nil
	}

	inv := invoke.New(conn, db.OptionsFromConfig(cfg))
	return respond(inv.Invoke(ctx, op)), nil
}

func respond(r invoke.Response) events.APIGatewayProxyResponse {
	return events.APIGatewayProxyResponse{
		StatusCode: r.StatusCode,
		Headers:    map[string]string{"Content-Type": "text/plain; charset=utf-8"},
		Body:       r.Body,
	}
}

func awsConnector(ctx context.Context, cfg *config.Config) (invoke.Connector, error) {
	awsCfg, err := cloud.LoadConfig(ctx, cfg.Region)
	if err != nil {
		return nil, &db.ConfigurationError{Reason: "load cloud config", Err: err}
	}

	var issuer token.Issuer
	if cfg.AuthMode == config.AuthModeIAM {
		issuer = token.NewRDSIssuerFromConfig(awsCfg)
	}
	return db.NewBootstrapper(secrets.NewSecretsManagerStoreFromConfig(awsCfg), issuer, nil), nil
}

func main() {
	level := logger.ParseLevel(os.Getenv("RDSPROBE_LOG_LEVEL"))
	if cfg, err := config.LoadFromEnv(); err == nil && cfg.Debug {
		level = logger.LevelDebug
	}
	logger.InitLogger(level, "")
	defer logger.Close()

	lambda.Start(newHandler().Handle)
}
