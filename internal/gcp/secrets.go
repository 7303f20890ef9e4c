package gcp

import (
	"context"
	"encoding/base64"
	"fmt"
	"strings"

	secretmanager "cloud.google.com/go/secretmanager/apiv1"
	"cloud.google.com/go/secretmanager/apiv1/secretmanagerpb"
)

// SecretClient reads base64-enveloped secrets from Secret Manager.
type SecretClient struct {
	client    *secretmanager.Client
	projectID string
}

// NewSecretClient creates a Secret Manager client. Secret ids that are not
// full resource names are resolved against projectID.
func NewSecretClient(ctx context.Context, projectID string) (*SecretClient, error) {
	if projectID == "" {
		return nil, fmt.Errorf("NewSecretClient: projectID cannot be empty")
	}
	client, err := secretmanager.NewClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("secretmanager.NewClient: %w", err)
	}
	return &SecretClient{client: client, projectID: projectID}, nil
}

// Secret returns the plaintext of secretID. The stored payload is expected to
// be base64 encoded.
func (c *SecretClient) Secret(ctx context.Context, secretID string) (string, error) {
	name := SecretVersionName(c.projectID, secretID)
	resp, err := c.client.AccessSecretVersion(ctx, &secretmanagerpb.AccessSecretVersionRequest{Name: name})
	if err != nil {
		return "", fmt.Errorf("failed to access secret version %s: %w", name, err)
	}
	return DecodeSecretPayload(resp.GetPayload().GetData())
}

func (c *SecretClient) Close() error {
	return c.client.Close()
}

// SecretVersionName expands a secret id into a version resource name,
// defaulting to the latest version.
func SecretVersionName(projectID, secretID string) string {
	name := secretID
	if !strings.HasPrefix(name, "projects/") {
		name = fmt.Sprintf("projects/%s/secrets/%s", projectID, secretID)
	}
	if !strings.Contains(name, "/versions/") {
		name += "/versions/latest"
	}
	return name
}

// DecodeSecretPayload undoes the base64 envelope around a secret value.
func DecodeSecretPayload(payload []byte) (string, error) {
	decoded, err := base64.StdEncoding.DecodeString(strings.TrimSpace(string(payload)))
	if err != nil {
		return "", fmt.Errorf("secret payload is not base64: %w", err)
	}
	return string(decoded), nil
}
