package secrets

import (
	"context"
	"errors"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/secretsmanager"
	"github.com/aws/aws-sdk-go-v2/service/secretsmanager/types"
	"github.com/aws/smithy-go"

	"github.com/willibrandon/rdsprobe/internal/logger"
)

// Store retrieves secret payloads by id. An empty string with a nil error
// means the secret exists but has no value.
type Store interface {
	GetSecretString(ctx context.Context, id string) (string, error)
}

// GetSecretValueAPI is the subset of the Secrets Manager client used here.
type GetSecretValueAPI interface {
	GetSecretValue(ctx context.Context, params *secretsmanager.GetSecretValueInput, optFns ...func(*secretsmanager.Options)) (*secretsmanager.GetSecretValueOutput, error)
}

// SecretsManagerStore reads secrets from AWS Secrets Manager.
type SecretsManagerStore struct {
	client GetSecretValueAPI
}

// NewSecretsManagerStore wraps an existing client.
func NewSecretsManagerStore(client GetSecretValueAPI) *SecretsManagerStore {
	return &SecretsManagerStore{client: client}
}

// NewSecretsManagerStoreFromConfig builds a client from an SDK config.
func NewSecretsManagerStoreFromConfig(cfg aws.Config) *SecretsManagerStore {
	return NewSecretsManagerStore(secretsmanager.NewFromConfig(cfg))
}

// GetSecretString returns the current SecretString of id. A secret that does
// not exist, or only has a binary value, yields "".
func (s *SecretsManagerStore) GetSecretString(ctx context.Context, id string) (string, error) {
	logger.Debug("Fetching secret", "secret_id", id)

	out, err := s.client.GetSecretValue(ctx, &secretsmanager.GetSecretValueInput{
		SecretId: aws.String(id),
	})
	if err != nil {
		var notFound *types.ResourceNotFoundException
		if errors.As(err, &notFound) {
			logger.Warn("Secret not found", "secret_id", id)
			return "", nil
		}

		var apiErr smithy.APIError
		if errors.As(err, &apiErr) {
			return "", fmt.Errorf("get secret %s: %s: %w", id, apiErr.ErrorCode(), err)
		}
		return "", fmt.Errorf("get secret %s: %w", id, err)
	}

	if out.SecretString == nil && len(out.SecretBinary) > 0 {
		logger.Warn("Secret has only a binary value", "secret_id", id)
	}
	return aws.ToString(out.SecretString), nil
}
