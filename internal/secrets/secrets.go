package secrets

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/secretsmanager"
)

// Credentials holds the Facebook API key and ads configuration values stored
// in the integration secret.
type Credentials struct {
	AccessToken       string `json:"accessToken"`
	AdAccountID       string `json:"adAccountId"`
	PageID            string `json:"pageId"`
	DefaultWebsiteURL string `json:"defaultWebsiteUrl"`
}

// Resolver defines the interface for resolving the Facebook credentials. The
// result must not be cached beyond a single invocation.
type Resolver interface {
	FacebookCredentials(ctx context.Context) (*Credentials, error)
}

// API is the subset of the Secrets Manager client the resolver uses
type API interface {
	GetSecretValue(ctx context.Context, input *secretsmanager.GetSecretValueInput, optFns ...func(*secretsmanager.Options)) (*secretsmanager.GetSecretValueOutput, error)
}

// Manager resolves credentials from AWS Secrets Manager
type Manager struct {
	client   API
	secretID string
}

// NewManager creates a new Secrets Manager resolver
func NewManager(client API, secretID string) *Manager {
	return &Manager{
		client:   client,
		secretID: secretID,
	}
}

// FacebookCredentials fetches and decodes the integration secret.
func (m *Manager) FacebookCredentials(ctx context.Context) (*Credentials, error) {
	out, err := m.client.GetSecretValue(ctx, &secretsmanager.GetSecretValueInput{
		SecretId: aws.String(m.secretID),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to get secret value: %w", err)
	}

	raw := out.SecretBinary
	if out.SecretString != nil {
		raw = []byte(aws.ToString(out.SecretString))
	}

	var creds Credentials
	if err := json.Unmarshal(raw, &creds); err != nil {
		return nil, fmt.Errorf("failed to decode secret: %w", err)
	}

	if creds.AccessToken == "" || creds.AdAccountID == "" {
		return nil, fmt.Errorf("secret is missing accessToken or adAccountId")
	}

	return &creds, nil
}
