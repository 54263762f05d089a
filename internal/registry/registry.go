// Package registry maps backend names to constructors of remote stores, so
// the CLI can pick a store by the configured backend name.
package registry

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"

	"github.com/tonimelisma/gdrive-go/internal/config"
	"github.com/tonimelisma/gdrive-go/internal/remote"
)

// ErrNoDefault is returned by Open("") when no default backend is set.
var ErrNoDefault = errors.New("registry: no default backend")

// Provider opens a remote store from the resolved configuration.
type Provider interface {
	Open(ctx context.Context, cfg *config.Config, logger *slog.Logger) (remote.Store, error)
}

// ProviderFunc adapts a function to Provider.
type ProviderFunc func(ctx context.Context, cfg *config.Config, logger *slog.Logger) (remote.Store, error)

// Open calls fn.
func (fn ProviderFunc) Open(ctx context.Context, cfg *config.Config, logger *slog.Logger) (remote.Store, error) {
	return fn(ctx, cfg, logger)
}

// Registry holds named providers. It is safe for concurrent use.
type Registry struct {
	mu          sync.RWMutex
	providers   map[string]Provider
	defaultName string
}

// New returns an empty registry.
func New() *Registry {
	return &Registry{providers: make(map[string]Provider)}
}

// RegisterOption configures a registration.
type RegisterOption func(*registerConfig)

type registerConfig struct {
	replace   bool
	asDefault bool
}

// Replace overwrites a provider already registered under the same name.
func Replace() RegisterOption {
	return func(cfg *registerConfig) { cfg.replace = true }
}

// Default makes the provider the default one.
func Default() RegisterOption {
	return func(cfg *registerConfig) { cfg.asDefault = true }
}

// Register adds p under name. A taken name yields a DuplicateNameError
// unless Replace is given. The first provider becomes the default.
func (r *Registry) Register(name string, p Provider, opts ...RegisterOption) error {
	var cfg registerConfig
	for _, opt := range opts {
		opt(&cfg)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.providers[name]; ok && !cfg.replace {
		return DuplicateNameError{Name: name}
	}

	r.providers[name] = p

	if cfg.asDefault || len(r.providers) == 1 {
		r.defaultName = name
	}

	return nil
}

// Lookup returns the provider registered under name.
func (r *Registry) Lookup(name string) (Provider, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	p, ok := r.providers[name]
	if !ok {
		return nil, UnregisteredProviderError{Provider: name}
	}

	return p, nil
}

// Open opens the store of the named provider. An empty name selects the
// default provider.
func (r *Registry) Open(ctx context.Context, name string, cfg *config.Config, logger *slog.Logger) (remote.Store, error) {
	if name == "" {
		name = r.Default()
		if name == "" {
			return nil, ErrNoDefault
		}
	}

	p, err := r.Lookup(name)
	if err != nil {
		return nil, err
	}

	store, err := p.Open(ctx, cfg, logger)
	if err != nil {
		return nil, fmt.Errorf("opening backend %q: %w", name, err)
	}

	logger.Debug("backend opened", slog.String("backend", name))

	return store, nil
}

// Names returns the registered names, sorted.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.providers))
	for name := range r.providers {
		names = append(names, name)
	}

	sort.Strings(names)

	return names
}

// Default returns the default provider name, or "" when empty.
func (r *Registry) Default() string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return r.defaultName
}

// DuplicateNameError is returned when a name is registered twice.
type DuplicateNameError struct {
	Name string
}

func (err DuplicateNameError) Error() string {
	return fmt.Sprintf("duplicate backend name: %s", err.Name)
}

// UnregisteredProviderError is returned for an unknown backend name.
type UnregisteredProviderError struct {
	Provider string
}

func (err UnregisteredProviderError) Error() string {
	return fmt.Sprintf("unregistered backend '%s'", err.Provider)
}
