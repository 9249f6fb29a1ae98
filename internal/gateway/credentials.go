package gateway

import (
	"context"
	"encoding/base64"
	"errors"

	"github.com/georgeshao/fio-dashboard/internal/storage"
)

// CredentialSupplier provides the Authorization header value for upstream
// requests. An empty value sends the request unauthenticated.
type CredentialSupplier interface {
	Authorization(ctx context.Context) (string, error)
}

// StaticCredentials is a fixed header value, e.g. "Bearer <token>".
type StaticCredentials string

func (s StaticCredentials) Authorization(ctx context.Context) (string, error) {
	return string(s), nil
}

// StoredCredentials reads the header value from durable storage on every
// request, so a token replaced by another process is picked up.
type StoredCredentials struct {
	Store storage.KV
	Key   string
}

func (s StoredCredentials) Authorization(ctx context.Context) (string, error) {
	value, err := s.Store.Get(ctx, s.key())
	if errors.Is(err, storage.ErrNotFound) {
		return "", nil
	}
	return value, err
}

// CredentialStore is a CredentialSupplier whose value can be replaced while
// the gateway runs.
type CredentialStore interface {
	CredentialSupplier
	SetAuthorization(ctx context.Context, value string) error
	ClearAuthorization(ctx context.Context) error
}

func (s StoredCredentials) key() string {
	if s.Key == "" {
		return storage.AuthTokenKey
	}
	return s.Key
}

func (s StoredCredentials) SetAuthorization(ctx context.Context, value string) error {
	return s.Store.Set(ctx, s.key(), value)
}

func (s StoredCredentials) ClearAuthorization(ctx context.Context) error {
	return s.Store.Delete(ctx, s.key())
}

// BasicAuthorization builds the header value for HTTP basic auth.
func BasicAuthorization(username, password string) string {
	return "Basic " + base64.StdEncoding.EncodeToString([]byte(username+":"+password))
}

type noCredentials struct{}

func (noCredentials) Authorization(ctx context.Context) (string, error) {
	return "", nil
}
