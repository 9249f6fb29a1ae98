package gateway

import (
	"context"
	"errors"
	"fmt"

	"github.com/georgeshao/fio-dashboard/pkg/types"
)

// ErrCredentialsReadOnly is returned by SignIn and SignOut when the gateway
// was built with credentials that cannot be replaced.
var ErrCredentialsReadOnly = errors.New("credentials cannot be changed at runtime")

func (g *Gateway) credentialStore() (CredentialStore, error) {
	store, ok := g.creds.(CredentialStore)
	if !ok {
		return nil, ErrCredentialsReadOnly
	}
	return store, nil
}

// SignIn stores basic auth credentials and checks them against the upstream.
// Cached data belongs to the previous identity and is dropped. Credentials the
// upstream rejects are removed again.
func (g *Gateway) SignIn(ctx context.Context, username, password string) (types.User, error) {
	store, err := g.credentialStore()
	if err != nil {
		return types.User{}, err
	}

	if err := store.SetAuthorization(ctx, BasicAuthorization(username, password)); err != nil {
		return types.User{}, fmt.Errorf("store credentials: %w", err)
	}
	g.ClearCache()

	user, err := g.CurrentUser(ctx)
	if err != nil {
		if IsUnauthorized(err) {
			if clearErr := store.ClearAuthorization(ctx); clearErr != nil {
				g.logger.Warnw("Failed to remove rejected credentials", "error", clearErr)
			}
		}
		return types.User{}, err
	}

	g.logger.Infow("Signed in", "username", user.Username, "role", user.Role)
	return user, nil
}

// SignOut removes the stored credentials and everything fetched with them.
func (g *Gateway) SignOut(ctx context.Context) error {
	store, err := g.credentialStore()
	if err != nil {
		return err
	}
	if err := store.ClearAuthorization(ctx); err != nil {
		return fmt.Errorf("clear credentials: %w", err)
	}
	g.ClearCache()
	return nil
}
