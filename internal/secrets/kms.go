// Package secrets resolves provider credentials at startup. In
// production the environment carries KMS ciphertexts rather than
// plaintext API keys.
package secrets

import (
	"context"
	"encoding/base64"
	"fmt"
	"sync"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/kms"
	"go.uber.org/zap"

	"telemetry-service/internal/config"
)

// Resolver turns configured secret values into usable plaintext. When
// KMS is disabled every value passes through unchanged, which keeps
// development setups working with plain environment variables.
type Resolver struct {
	kmsClient *kms.Client
	enabled   bool
	logger    *zap.Logger
	cache     sync.Map
}

func NewResolver(ctx context.Context, cfg *config.KMSConfig, logger *zap.Logger) (*Resolver, error) {
	r := &Resolver{
		enabled: cfg.Enabled,
		logger:  logger,
	}
	if !cfg.Enabled {
		return r, nil
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(cfg.Region))
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}
	r.kmsClient = kms.NewFromConfig(awsCfg)
	return r, nil
}

// Resolve returns the plaintext for a configured secret value. The
// value is treated as a base64 KMS ciphertext when KMS is enabled.
// Decrypted values are cached for the process lifetime.
func (r *Resolver) Resolve(ctx context.Context, value string) (string, error) {
	if !r.enabled || value == "" {
		return value, nil
	}

	if cached, ok := r.cache.Load(value); ok {
		return cached.(string), nil
	}

	blob, err := base64.StdEncoding.DecodeString(value)
	if err != nil {
		return "", fmt.Errorf("secret is not valid base64 ciphertext: %w", err)
	}

	out, err := r.kmsClient.Decrypt(ctx, &kms.DecryptInput{CiphertextBlob: blob})
	if err != nil {
		return "", fmt.Errorf("failed to decrypt secret: %w", err)
	}

	plaintext := string(out.Plaintext)
	r.cache.Store(value, plaintext)
	return plaintext, nil
}

// ResolveOrWarn resolves a secret and falls back to empty on failure,
// logging the error. A missing provider key only disables that
// provider, it must not stop the process.
func (r *Resolver) ResolveOrWarn(ctx context.Context, name, value string) string {
	plaintext, err := r.Resolve(ctx, value)
	if err != nil {
		r.logger.Warn("failed to resolve secret",
			zap.String("secret", name),
			zap.Error(err))
		return ""
	}
	return plaintext
}
