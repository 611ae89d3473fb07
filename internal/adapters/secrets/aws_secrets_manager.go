package secrets

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/secretsmanager"
	"github.com/kevin07696/subscription-service/internal/domain/ports"
	"go.uber.org/zap"
)

// AWSConfig configures the AWS Secrets Manager source
type AWSConfig struct {
	Region string
	// Profile selects a shared credentials profile for local development
	Profile string
	// Endpoint overrides the service endpoint, e.g. LocalStack
	Endpoint string
	// Prefix is prepended to every secret name
	Prefix   string
	CacheTTL time.Duration
}

type getSecretValueAPI interface {
	GetSecretValue(ctx context.Context, params *secretsmanager.GetSecretValueInput, optFns ...func(*secretsmanager.Options)) (*secretsmanager.GetSecretValueOutput, error)
}

// AWSSource reads secrets from AWS Secrets Manager. A name of the form
// "secret-id#key" selects one key of a JSON secret.
type AWSSource struct {
	client getSecretValueAPI
	cache  *secretCache
	logger *zap.Logger
	prefix string
}

var _ ports.SecretSource = (*AWSSource)(nil)

// NewAWSSource loads the default credential chain for cfg.Region
func NewAWSSource(ctx context.Context, cfg AWSConfig, logger *zap.Logger) (*AWSSource, error) {
	opts := []func(*config.LoadOptions) error{config.WithRegion(cfg.Region)}
	if cfg.Profile != "" {
		opts = append(opts, config.WithSharedConfigProfile(cfg.Profile))
	}
	awsCfg, err := config.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("load AWS config: %w", err)
	}

	var clientOpts []func(*secretsmanager.Options)
	if cfg.Endpoint != "" {
		clientOpts = append(clientOpts, func(o *secretsmanager.Options) {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		})
	}

	logger.Info("AWS Secrets Manager source initialized",
		zap.String("region", cfg.Region),
		zap.Duration("cache_ttl", cfg.CacheTTL),
	)
	return newAWSSource(secretsmanager.NewFromConfig(awsCfg, clientOpts...), cfg, logger), nil
}

func newAWSSource(client getSecretValueAPI, cfg AWSConfig, logger *zap.Logger) *AWSSource {
	return &AWSSource{client: client, cache: newSecretCache(cfg.CacheTTL), logger: logger, prefix: cfg.Prefix}
}

func (s *AWSSource) GetSecret(ctx context.Context, name string) (string, error) {
	if v, ok := s.cache.get(name, time.Now()); ok {
		return v, nil
	}

	id, key, _ := strings.Cut(name, "#")
	start := time.Now()
	out, err := s.client.GetSecretValue(ctx, &secretsmanager.GetSecretValueInput{
		SecretId: aws.String(s.prefix + id),
	})
	if err != nil {
		s.logger.Error("Failed to retrieve secret", zap.String("name", name), zap.Error(err))
		return "", fmt.Errorf("get secret %s: %w", name, err)
	}

	value := aws.ToString(out.SecretString)
	if key != "" {
		var fields map[string]string
		if err := json.Unmarshal([]byte(value), &fields); err != nil {
			return "", fmt.Errorf("secret %s is not a JSON object: %w", id, err)
		}
		value = fields[key]
	}
	if value == "" {
		return "", fmt.Errorf("%w: %s", ErrSecretNotFound, name)
	}

	s.logger.Info("Secret retrieved",
		zap.String("name", name),
		zap.String("version", aws.ToString(out.VersionId)),
		zap.Duration("elapsed", time.Since(start)),
	)
	s.cache.set(name, value, time.Now())
	return value, nil
}
