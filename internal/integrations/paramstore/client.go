package paramstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/aws/aws-sdk-go-v2/service/ssm"
)

// SecretPrefix marks a configuration value that must be resolved from SSM,
// e.g. "ssm:/hirepal/gemini-key".
const SecretPrefix = "ssm:"

// ssmAPI is the minimal AWS SSM interface required by Client.
// *ssm.Client from aws-sdk-go-v2 satisfies this interface.
type ssmAPI interface {
	GetParameter(ctx context.Context, in *ssm.GetParameterInput, optFns ...func(*ssm.Options)) (*ssm.GetParameterOutput, error)
}

// Getter is the interface that wraps GetParameter.
type Getter interface {
	GetParameter(ctx context.Context, name string) (string, error)
}

// Client reads decrypted parameters from SSM. Values are cached for the
// lifetime of the process since a Lambda container is recycled on rotation.
type Client struct {
	api ssmAPI

	mu    sync.RWMutex
	cache map[string]string
}

func New(api ssmAPI) (*Client, error) {
	if api == nil {
		return nil, errors.New("paramstore: api must not be nil")
	}
	return &Client{api: api, cache: make(map[string]string)}, nil
}

func (c *Client) GetParameter(ctx context.Context, name string) (string, error) {
	if c.api == nil {
		return "", errors.New("paramstore: client not initialized")
	}
	name = strings.TrimSpace(name)
	if name == "" {
		return "", errors.New("paramstore: name is required")
	}

	c.mu.RLock()
	v, ok := c.cache[name]
	c.mu.RUnlock()
	if ok {
		return v, nil
	}

	withDecryption := true
	out, err := c.api.GetParameter(ctx, &ssm.GetParameterInput{
		Name:           &name,
		WithDecryption: &withDecryption,
	})
	if err != nil {
		return "", fmt.Errorf("paramstore: get parameter %q: %w", name, err)
	}
	if out == nil || out.Parameter == nil || out.Parameter.Value == nil {
		return "", errors.New("paramstore: parameter missing value")
	}

	v = *out.Parameter.Value
	c.mu.Lock()
	if c.cache == nil {
		c.cache = make(map[string]string)
	}
	c.cache[name] = v
	c.mu.Unlock()
	return v, nil
}

type tokenPayload struct {
	Token string `json:"token"`
}

// ResolveSecret returns value unchanged unless it carries SecretPrefix, in
// which case the named parameter is fetched. Parameters stored as
// {"token":"..."} are unwrapped.
func ResolveSecret(ctx context.Context, g Getter, value string) (string, error) {
	value = strings.TrimSpace(value)
	if !strings.HasPrefix(value, SecretPrefix) {
		return value, nil
	}
	if g == nil {
		return "", fmt.Errorf("paramstore: %q needs a parameter store", value)
	}
	raw, err := g.GetParameter(ctx, strings.TrimPrefix(value, SecretPrefix))
	if err != nil {
		return "", err
	}
	raw = strings.TrimSpace(raw)
	if strings.HasPrefix(raw, "{") {
		var p tokenPayload
		if err := json.Unmarshal([]byte(raw), &p); err != nil {
			return "", fmt.Errorf("paramstore: decode secret payload: %w", err)
		}
		if strings.TrimSpace(p.Token) == "" {
			return "", errors.New("paramstore: secret payload missing token")
		}
		return strings.TrimSpace(p.Token), nil
	}
	if raw == "" {
		return "", errors.New("paramstore: secret is empty")
	}
	return raw, nil
}

// IsSecretRef reports whether value must go through ResolveSecret.
func IsSecretRef(value string) bool {
	return strings.HasPrefix(strings.TrimSpace(value), SecretPrefix)
}
