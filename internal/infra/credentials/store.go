// Package credentials keeps provider keys in the integration_tokens table so
// operators can rotate them without redeploying.
package credentials

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"portraitstudio/internal/infra"
	"portraitstudio/internal/sqlinline"
)

const (
	ProviderGemini   = "gemini"
	ProviderRazorpay = "razorpay"
)

// Providers lists the providers whose keys can be stored.
var Providers = []string{ProviderGemini, ProviderRazorpay}

type Store struct {
	sql infra.SQLExecutor
}

func NewStore(sql infra.SQLExecutor) *Store {
	return &Store{sql: sql}
}

// EnsureSchema creates the integration_tokens table when it is missing.
func (s *Store) EnsureSchema(ctx context.Context) error {
	_, err := s.sql.Exec(ctx, sqlinline.QEnsureIntegrationTokens)
	return err
}

func (s *Store) GeminiAPIKey(ctx context.Context) (string, error) {
	return s.Token(ctx, ProviderGemini)
}

func (s *Store) Token(ctx context.Context, provider string) (string, error) {
	row := s.sql.QueryRow(ctx, sqlinline.QSelectIntegrationToken, provider)
	var token string
	if err := row.Scan(&token); err != nil {
		if infra.IsNoRows(err) {
			return "", nil
		}
		return "", err
	}
	return strings.TrimSpace(token), nil
}

// RazorpayKeys returns the stored key id and secret. Both are empty when
// nothing is stored.
func (s *Store) RazorpayKeys(ctx context.Context) (keyID, secret string, err error) {
	row := s.sql.QueryRow(ctx, sqlinline.QSelectIntegrationCredential, ProviderRazorpay)
	if err := row.Scan(&secret, &keyID); err != nil {
		if infra.IsNoRows(err) {
			return "", "", nil
		}
		return "", "", err
	}
	return strings.TrimSpace(keyID), strings.TrimSpace(secret), nil
}

func (s *Store) SetGeminiAPIKey(ctx context.Context, key string) error {
	key = strings.TrimSpace(key)
	if key == "" {
		return errors.New("gemini api key is required")
	}
	return s.upsert(ctx, ProviderGemini, key, nil)
}

// SetRazorpayKeys stores the key secret as the token and the public key id as
// a property.
func (s *Store) SetRazorpayKeys(ctx context.Context, keyID, secret string) error {
	keyID, secret = strings.TrimSpace(keyID), strings.TrimSpace(secret)
	if keyID == "" || secret == "" {
		return errors.New("razorpay key id and secret are required")
	}
	return s.upsert(ctx, ProviderRazorpay, secret, map[string]any{"key_id": keyID})
}

// Set stores a key for one of the known providers. Razorpay keys are given as
// "<key_id>:<secret>".
func (s *Store) Set(ctx context.Context, provider, value string) error {
	switch strings.ToLower(strings.TrimSpace(provider)) {
	case ProviderGemini:
		return s.SetGeminiAPIKey(ctx, value)
	case ProviderRazorpay:
		keyID, secret, ok := strings.Cut(value, ":")
		if !ok {
			return errors.New(`razorpay keys must be given as "<key_id>:<secret>"`)
		}
		return s.SetRazorpayKeys(ctx, keyID, secret)
	default:
		return fmt.Errorf("unsupported provider %q", provider)
	}
}

func (s *Store) upsert(ctx context.Context, provider, token string, props map[string]any) error {
	payload := props
	if payload == nil {
		payload = map[string]any{}
	}
	raw, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	_, err = s.sql.Exec(ctx, sqlinline.QUpsertIntegrationToken, provider, token, raw)
	return err
}
