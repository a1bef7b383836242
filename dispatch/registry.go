package dispatch

import (
	"fmt"

	"github.com/strelka-go/backend/cli/config"
	"github.com/strelka-go/backend/coordinator"
	"github.com/strelka-go/backend/scanners"
)

// Registry maps scanner names to live, reusable plugin instances. Instances
// are created lazily on first use and retained for the worker's lifetime.
//
// The cache is exclusively owned by the single worker goroutine, so no
// locking is needed. Intra-worker parallelism would require moving each
// instance behind its own mutex.
type Registry struct {
	cfg       *config.Config
	coord     *coordinator.Client
	factories map[string]scanners.Factory
	instances map[string]scanners.Scanner
}

// NewRegistry creates a registry populated with the built-in scanner suite.
func NewRegistry(cfg *config.Config, coord *coordinator.Client) *Registry {
	return &Registry{
		cfg:       cfg,
		coord:     coord,
		factories: scanners.Builtins(),
		instances: make(map[string]scanners.Scanner),
	}
}

// Register adds or replaces a scanner constructor. Names in config refer to
// registry keys verbatim.
func (r *Registry) Register(name string, factory scanners.Factory) {
	r.factories[name] = factory
}

// Get returns the cached instance for name, constructing it on first use.
// An unresolvable name is an error the caller treats as a soft failure: the
// scanner is skipped, the request continues.
func (r *Registry) Get(name string) (scanners.Scanner, error) {
	if instance, ok := r.instances[name]; ok {
		return instance, nil
	}
	factory, ok := r.factories[name]
	if !ok {
		return nil, fmt.Errorf("no scanner registered for %q", name)
	}
	instance := factory(r.cfg, r.coord)
	r.instances[name] = instance
	return instance, nil
}
