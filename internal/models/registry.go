package models

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"sort"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/wonny/fxlab/internal/contracts"
	"github.com/wonny/fxlab/internal/metrics"
	"github.com/wonny/fxlab/pkg/config"
)

// ModelNotFoundError lists the models that are available
type ModelNotFoundError struct {
	Name      string
	Available []string
}

func (e *ModelNotFoundError) Error() string {
	return fmt.Sprintf("model %q not found (available: %s)", e.Name, strings.Join(e.Available, ", "))
}

func (e *ModelNotFoundError) Is(target error) bool { return target == ErrModelNotFound }

// Entry is one statically declared model. Factory returns an error when a capability the
// model needs (interpreter, script) is missing; the entry is then left out of the registry.
type Entry struct {
	Key         string
	Library     contracts.ModelLibrary
	Description string
	Factory     func() (Adapter, error)
}

type registered struct {
	entry   Entry
	adapter Adapter
}

// Registry maps model keys to adapters
type Registry struct {
	models      map[string]registered
	names       []string
	unavailable map[string]string
	logger      zerolog.Logger
}

// BuiltinEntries are the in-process models
func BuiltinEntries() []Entry {
	return []Entry{
		{Key: "naive", Library: contracts.LibraryBaseline, Description: "last observed value",
			Factory: func() (Adapter, error) { return Naive{}, nil }},
		{Key: "drift", Library: contracts.LibraryBaseline, Description: "random walk with drift",
			Factory: func() (Adapter, error) { return Drift{}, nil }},
		{Key: "arima", Library: contracts.LibraryARIMA, Description: "ARIMA(p,d,0) least squares",
			Factory: func() (Adapter, error) { return ARIMA{}, nil }},
		{Key: "sma", Library: contracts.LibrarySmoothing, Description: "simple moving average level",
			Factory: func() (Adapter, error) { return MovingAverage{Kind: "sma"}, nil }},
		{Key: "ema", Library: contracts.LibrarySmoothing, Description: "exponential moving average level",
			Factory: func() (Adapter, error) { return MovingAverage{Kind: "ema"}, nil }},
	}
}

// ExternalEntries builds capability-checked entries for every catalog model
func ExternalEntries(cat *Catalog, cfg config.ModelsConfig, log zerolog.Logger) []Entry {
	entries := make([]Entry, 0, len(cat.Models))
	for _, m := range cat.Models {
		m := m
		interpreter := m.Interpreter
		if interpreter == "" {
			switch m.Runtime {
			case RuntimeR:
				interpreter = cfg.RscriptExe
			case RuntimePython:
				interpreter = cfg.PythonExe
			}
		}
		script := cat.ScriptPath(m)

		entries = append(entries, Entry{
			Key:         m.Key,
			Library:     contracts.LibraryExternal,
			Description: m.Description,
			Factory: func() (Adapter, error) {
				if _, err := exec.LookPath(interpreter); err != nil {
					return nil, fmt.Errorf("interpreter %q not available: %w", interpreter, err)
				}
				if _, err := os.Stat(script); err != nil {
					return nil, fmt.Errorf("script %s not available: %w", script, err)
				}
				return NewExternal(m.Key, interpreter, script, cfg.ScriptTimeout, log), nil
			},
		})
	}
	return entries
}

// NewRegistry runs every factory; failing entries are logged and omitted
func NewRegistry(entries []Entry, log zerolog.Logger) *Registry {
	r := &Registry{
		models:      make(map[string]registered, len(entries)),
		unavailable: make(map[string]string),
		logger:      log.With().Str("component", "models.registry").Logger(),
	}

	for _, e := range entries {
		key := strings.ToLower(e.Key)
		if _, dup := r.models[key]; dup {
			r.logger.Warn().Str("model", key).Msg("duplicate model key ignored")
			continue
		}
		adapter, err := e.Factory()
		if err != nil {
			r.unavailable[key] = err.Error()
			r.logger.Warn().Err(err).Str("model", key).Msg("model unavailable, omitted from registry")
			continue
		}
		e.Key = key
		r.models[key] = registered{entry: e, adapter: adapter}
		r.names = append(r.names, key)
	}
	sort.Strings(r.names)

	r.logger.Info().Strs("models", r.names).Int("unavailable", len(r.unavailable)).Msg("model registry ready")
	return r
}

// Default builds the registry from the built-ins and the configured catalog
func Default(cfg config.ModelsConfig, log zerolog.Logger) (*Registry, error) {
	cat, err := LoadCatalog(cfg.CatalogPath)
	if err != nil {
		return nil, err
	}
	entries := append(BuiltinEntries(), ExternalEntries(cat, cfg, log)...)
	return NewRegistry(entries, log), nil
}

// Names returns the available model keys, sorted
func (r *Registry) Names() []string {
	return append([]string(nil), r.names...)
}

// Has reports whether name resolves (case-insensitive)
func (r *Registry) Has(name string) bool {
	_, ok := r.models[strings.ToLower(strings.TrimSpace(name))]
	return ok
}

// Unavailable returns omitted entries and the reason each was omitted
func (r *Registry) Unavailable() map[string]string {
	out := make(map[string]string, len(r.unavailable))
	for k, v := range r.unavailable {
		out[k] = v
	}
	return out
}

// Entry returns the declaration of an available model
func (r *Registry) Entry(name string) (Entry, error) {
	m, ok := r.models[strings.ToLower(strings.TrimSpace(name))]
	if !ok {
		return Entry{}, &ModelNotFoundError{Name: name, Available: r.Names()}
	}
	return m.entry, nil
}

// Get returns the adapter for name (case-insensitive), wrapped in the index contract check
func (r *Registry) Get(name string) (Adapter, error) {
	m, ok := r.models[strings.ToLower(strings.TrimSpace(name))]
	if !ok {
		return nil, &ModelNotFoundError{Name: name, Available: r.Names()}
	}
	return checked{key: m.entry.Key, inner: m.adapter}, nil
}

// Normalize returns the canonical key for name, or the first available model when name is
// empty or unknown
func (r *Registry) Normalize(name string) string {
	key := strings.ToLower(strings.TrimSpace(name))
	if _, ok := r.models[key]; ok {
		return key
	}
	if len(r.names) == 0 {
		return ""
	}
	return r.names[0]
}

// checked enforces the adapter contract on every call
type checked struct {
	key   string
	inner Adapter
}

func (c checked) Name() string { return c.key }

func (c checked) Predict(ctx context.Context, train contracts.Series, steps int, targets []time.Time, params Params) (*contracts.ForecastResult, error) {
	if train.IsEmpty() {
		return nil, ErrEmptyTraining
	}
	want, err := ResolveTargets(train, steps, targets)
	if err != nil {
		return nil, err
	}
	if params == nil {
		params = Params{}
	}

	start := time.Now()
	res, err := c.inner.Predict(ctx, train, steps, targets, params)
	if err == nil && !res.IndexEquals(want) {
		err = fmt.Errorf("%w: model %s returned %d dates for %d targets", ErrIndexMismatch, c.key, res.Len(), len(want))
	}
	metrics.ObservePrediction(c.key, time.Since(start), err)
	if err != nil {
		return nil, err
	}
	return res, nil
}
