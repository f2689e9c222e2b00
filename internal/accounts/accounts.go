package accounts

import (
	"errors"
	"fmt"

	"quillcast/internal/config"
	"quillcast/internal/util"
)

// ErrMissingCredentials means no token pair could be resolved for a handle.
var ErrMissingCredentials = errors.New("missing credentials")

// Credentials is the user token pair for one publishing account. The app
// (consumer) key pair is shared and lives in config.
type Credentials struct {
	AccessToken  string
	AccessSecret string
}

// Registry resolves publishing credentials per handle from the configured
// multi-account map, falling back to the single default pair.
type Registry struct {
	defaultHandle string
	byHandle      map[string]Credentials
	fallback      Credentials
}

func NewRegistry(cfg config.Config) *Registry {
	byHandle := make(map[string]Credentials, len(cfg.Accounts))
	for h, pair := range cfg.Accounts {
		clean := util.StripHandle(h)
		if clean == "" || pair.AccessToken == "" || pair.AccessSecret == "" {
			continue
		}
		byHandle[clean] = Credentials{AccessToken: pair.AccessToken, AccessSecret: pair.AccessSecret}
	}
	return &Registry{
		defaultHandle: util.StripHandle(cfg.Account.Handle),
		byHandle:      byHandle,
		fallback: Credentials{
			AccessToken:  cfg.Credentials.AccessToken,
			AccessSecret: cfg.Credentials.AccessSecret,
		},
	}
}

// Resolve returns the effective handle: the argument when set, otherwise the
// configured default.
func (r *Registry) Resolve(handle string) string {
	h := util.StripHandle(handle)
	if h == "" {
		h = r.defaultHandle
	}
	return h
}

// Credentials resolves the token pair for handle. Lookup order: the
// per-handle map, then the default pair. Credentials are never mixed
// across accounts.
func (r *Registry) Credentials(handle string) (Credentials, error) {
	h := r.Resolve(handle)
	if c, ok := r.byHandle[h]; ok {
		return c, nil
	}
	if r.fallback.AccessToken != "" && r.fallback.AccessSecret != "" {
		return r.fallback, nil
	}
	return Credentials{}, fmt.Errorf("%w for handle %q: add them to the accounts map or set X_ACCESS_TOKEN and X_ACCESS_TOKEN_SECRET", ErrMissingCredentials, h)
}

// Handles returns every handle with its own credential entry, plus the
// default handle. Used by the scheduler to decide which accounts to run.
func (r *Registry) Handles() []string {
	seen := map[string]bool{}
	var out []string
	if r.defaultHandle != "" {
		seen[r.defaultHandle] = true
		out = append(out, r.defaultHandle)
	}
	for h := range r.byHandle {
		if !seen[h] {
			seen[h] = true
			out = append(out, h)
		}
	}
	return out
}
