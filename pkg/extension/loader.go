package extension

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/bft-labs/taverna/pkg/log"
)

// Loader loads catalogued extensions into a Host.
type Loader struct {
	catalog  *Catalog
	registry *Registry
	tracker  *Tracker
	host     Host
	logger   log.Logger

	mu     sync.Mutex
	units  []*Unit
	loaded []loadedUnit
}

type loadedUnit struct {
	ext  Extension
	host *unitHost
}

// NewLoader creates a loader. Every catalogued id is registered on tracker.
func NewLoader(catalog *Catalog, registry *Registry, tracker *Tracker, host Host, logger log.Logger) *Loader {
	if logger == nil {
		logger = log.NewNoopLogger()
	}

	units := make([]*Unit, 0, catalog.Len())
	for _, id := range catalog.IDs() {
		units = append(units, &Unit{ID: id, State: StateUnloaded})
	}
	tracker.Register(catalog.IDs()...)

	return &Loader{
		catalog:  catalog,
		registry: registry,
		tracker:  tracker,
		host:     host,
		logger:   logger,
		units:    units,
	}
}

// LoadAll loads every unit sequentially in catalog order. A failing unit
// is logged, marked failed and skipped; it never stops the remaining
// loads. It returns the number of units loaded.
func (l *Loader) LoadAll(ctx context.Context) int {
	l.mu.Lock()
	defer l.mu.Unlock()

	loaded := 0
	for _, unit := range l.units {
		if unit.State == StateLoaded {
			continue
		}
		if err := ctx.Err(); err != nil {
			l.logger.Warn("extension loading interrupted", log.Err(err))
			break
		}

		lu, err := l.loadOne(ctx, unit.ID)
		if err != nil {
			unit.State = StateFailed
			unit.Err = err
			l.logger.Error("failed to load extension",
				log.String("extension", unit.ID),
				log.Err(err))
			continue
		}

		unit.State = StateLoaded
		unit.Err = nil
		l.loaded = append(l.loaded, lu)
		loaded++
		l.logger.Info("loaded extension", log.String("extension", unit.ID))

		if err := l.tracker.MarkReady(unit.ID); err != nil {
			l.logger.Error("readiness tracker rejected extension",
				log.String("extension", unit.ID),
				log.Err(err))
		}
	}
	return loaded
}

// loadOne loads a single unit. Commands a failed unit added before
// failing are removed again.
func (l *Loader) loadOne(ctx context.Context, id string) (lu loadedUnit, err error) {
	ext, err := l.registry.Lookup(id)
	if err != nil {
		return loadedUnit{}, &LoadError{ID: id, Err: err}
	}

	host := &unitHost{Host: l.host}
	defer func() {
		if r := recover(); r != nil {
			err = &LoadError{ID: id, Err: fmt.Errorf("panic: %v", r)}
		}
		if err != nil {
			host.removeAll()
		}
	}()

	if err := ext.Load(ctx, host); err != nil {
		return loadedUnit{}, &LoadError{ID: id, Err: err}
	}
	return loadedUnit{ext: ext, host: host}, nil
}

// UnloadAll unloads loaded units in reverse load order.
func (l *Loader) UnloadAll(ctx context.Context) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	var errs []error
	for i := len(l.loaded) - 1; i >= 0; i-- {
		ext := l.loaded[i].ext
		l.loaded[i].host.removeAll()
		if err := ext.Unload(ctx); err != nil {
			l.logger.Warn("failed to unload extension",
				log.String("extension", ext.Name()),
				log.Err(err))
			errs = append(errs, fmt.Errorf("unload %s: %w", ext.Name(), err))
		}
	}
	l.loaded = nil
	for _, unit := range l.units {
		if unit.State == StateLoaded {
			unit.State = StateUnloaded
		}
	}
	return errors.Join(errs...)
}

// Units returns a copy of the per-unit load records in catalog order.
func (l *Loader) Units() []Unit {
	l.mu.Lock()
	defer l.mu.Unlock()

	out := make([]Unit, len(l.units))
	for i, u := range l.units {
		out[i] = *u
	}
	return out
}
