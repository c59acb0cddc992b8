// Package cloud loads the shared AWS SDK configuration used by the secret
// store and the token issuer.
package cloud

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"

	"github.com/willibrandon/rdsprobe/internal/logger"
)

// LoadConfig resolves credentials and settings from the default chain
// (environment, shared config, container or instance role) pinned to region.
func LoadConfig(ctx context.Context, region string) (aws.Config, error) {
	logger.Debug("Loading AWS configuration", "region", region)

	cfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(region))
	if err != nil {
		return aws.Config{}, fmt.Errorf("load aws config: %w", err)
	}
	return cfg, nil
}
