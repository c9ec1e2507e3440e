package provider

import (
	"sync"

	"github.com/Devliang24/casecraft/internal/errors"
	"github.com/Devliang24/casecraft/internal/log"
)

// Registry is a lazily-initialized, mutex-guarded name→client map. Get
// returns a singleton per name, constructing on first use; clients are
// shared across workers and internally thread-safe.
type Registry struct {
	mu      sync.Mutex
	clients map[string]Client
	logger  *log.Logger
}

// NewRegistry creates an empty registry.
func NewRegistry(logger *log.Logger) *Registry {
	if logger == nil {
		logger = log.Global()
	}
	return &Registry{
		clients: make(map[string]Client),
		logger:  logger,
	}
}

var (
	defaultOnce     sync.Once
	defaultRegistry *Registry
)

// Default returns the process-wide registry.
func Default() *Registry {
	defaultOnce.Do(func() {
		defaultRegistry = NewRegistry(nil)
	})
	return defaultRegistry
}

// Get returns the client for name, constructing it from config on first
// use. Unknown names fail with an explicit error.
func (r *Registry) Get(name string, config Config) (Client, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if client, ok := r.clients[name]; ok {
		return client, nil
	}

	client, err := newClient(name, config, r.logger)
	if err != nil {
		return nil, err
	}
	if err := client.ValidateConfig(); err != nil {
		return nil, err
	}

	r.clients[name] = client
	r.logger.Debug("constructed provider client", "provider", name, "max_workers", client.MaxWorkers())
	return client, nil
}

// List returns the names of constructed clients.
func (r *Registry) List() []string {
	r.mu.Lock()
	defer r.mu.Unlock()

	names := make([]string, 0, len(r.clients))
	for name := range r.clients {
		names = append(names, name)
	}
	return names
}

// CloseAll closes every constructed client and empties the registry.
func (r *Registry) CloseAll() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	var firstErr error
	for name, client := range r.clients {
		if err := client.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
		delete(r.clients, name)
	}
	return firstErr
}

// KnownProvider reports whether name is a built-in provider.
func KnownProvider(name string) bool {
	switch name {
	case glmName, qwenName, deepseekName, localName:
		return true
	}
	return false
}

// MaxWorkersFor publishes a provider's concurrency limit without
// constructing the client.
func MaxWorkersFor(name string, config Config) (int, error) {
	if !KnownProvider(name) {
		return 0, errors.NewProviderNotFoundError(name)
	}
	return maxWorkersOf(name, config), nil
}

func maxWorkersOf(name string, config Config) int {
	switch name {
	case glmName:
		return 1
	case qwenName:
		if w := config.MaxWorkers; w > 0 && w < qwenMaxWorkers {
			return w
		}
		return qwenMaxWorkers
	case deepseekName:
		if w := config.MaxWorkers; w > 0 && w < deepseekMaxWorkers {
			return w
		}
		return deepseekMaxWorkers
	case localName:
		if w := config.MaxWorkers; w > 0 {
			return w
		}
		return localDefaultWorkers
	default:
		return 1
	}
}

func newClient(name string, config Config, logger *log.Logger) (Client, error) {
	switch name {
	case glmName:
		return NewGLM(config, logger), nil
	case qwenName:
		return NewQwen(config, logger), nil
	case deepseekName:
		return NewDeepSeek(config, logger), nil
	case localName:
		return NewLocal(config, logger), nil
	default:
		return nil, errors.NewProviderNotFoundError(name)
	}
}
