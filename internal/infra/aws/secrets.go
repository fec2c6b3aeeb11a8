package aws

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/secretsmanager"

	"github.com/DOH-JDJ0303/waphl-data/internal/config"
)

// SecretLoader reads JSON object secrets from Secrets Manager.
type SecretLoader struct {
	client SecretsAPI
}

var _ config.SecretFetcher = (*SecretLoader)(nil)

func NewSecretLoader(client SecretsAPI) *SecretLoader {
	return &SecretLoader{client: client}
}

// Fetch returns the secret's top-level fields as strings. Non-string values
// are re-encoded as JSON.
func (l *SecretLoader) Fetch(ctx context.Context, secretID string) (map[string]string, error) {
	out, err := l.client.GetSecretValue(ctx, &secretsmanager.GetSecretValueInput{SecretId: aws.String(secretID)})
	if err != nil {
		return nil, fmt.Errorf("failed to get secret %s: %w", secretID, err)
	}
	if out.SecretString == nil {
		return nil, fmt.Errorf("secret %s has no string value", secretID)
	}

	var fields map[string]json.RawMessage
	if err := json.Unmarshal([]byte(*out.SecretString), &fields); err != nil {
		return nil, fmt.Errorf("secret %s is not a JSON object: %w", secretID, err)
	}
	values := make(map[string]string, len(fields))
	for k, raw := range fields {
		var s string
		if err := json.Unmarshal(raw, &s); err == nil {
			values[k] = s
			continue
		}
		values[k] = string(raw)
	}
	return values, nil
}

// SecretFetcherFactory builds loaders against the default credential chain.
func SecretFetcherFactory(ctx context.Context, region string) (config.SecretFetcher, error) {
	cfg, err := LoadConfig(ctx, region)
	if err != nil {
		return nil, err
	}
	return NewSecretLoader(secretsmanager.NewFromConfig(cfg)), nil
}
