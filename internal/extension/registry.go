// Telemon - Telemetry Monitoring and Control Processing Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/telemon

// Package extension resolves named calibration and check functions.
//
// The embedding application registers Providers during startup. The first
// lookup seals the process-wide registry: every provider runs exactly once,
// under a lock, and the resulting name tables are never mutated again, so
// later lookups are plain map reads.
//
//	func init() {
//	    extension.MustRegisterProvider(extension.ProviderFunc("thermal", func(r *extension.Registrar) {
//	        r.Calibration("thermistor_ntc", ntcCalibration{})
//	    }))
//	}
package extension

import (
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/tomtom215/telemon/internal/expression"
	"github.com/tomtom215/telemon/internal/logging"
	"github.com/tomtom215/telemon/internal/models"
)

var (
	// ErrUnknownFunction is returned when no extension is registered under a name.
	ErrUnknownFunction = errors.New("unknown extension function")

	// ErrRegistrySealed is returned when a provider is registered after the
	// process-wide registry was built.
	ErrRegistrySealed = errors.New("extension registry already initialized")
)

// Context gives an extension read access to the model while it runs.
type Context interface {
	expression.Resolver
	// Path is the entity being processed.
	Path() models.Path
}

// Calibrator converts a source value into an engineering value.
type Calibrator interface {
	Calibrate(value any, args map[string]string, ctx Context) (any, error)
}

// CheckInput is the data handed to a Checker.
type CheckInput struct {
	Value          any
	Previous       any
	GenerationTime time.Time
	// Violations is the number of consecutive violations before this evaluation.
	Violations int
	Args       map[string]string
}

// Checker reports whether a value violates a rule. Debouncing and the
// severity of the violation are owned by the check definition.
type Checker interface {
	Check(in CheckInput, ctx Context) (violated bool, err error)
}

// CalibratorFunc adapts a function to the Calibrator interface.
type CalibratorFunc func(value any, args map[string]string, ctx Context) (any, error)

// Calibrate implements Calibrator.
func (f CalibratorFunc) Calibrate(value any, args map[string]string, ctx Context) (any, error) {
	return f(value, args, ctx)
}

// CheckerFunc adapts a function to the Checker interface.
type CheckerFunc func(in CheckInput, ctx Context) (bool, error)

// Check implements Checker.
func (f CheckerFunc) Check(in CheckInput, ctx Context) (bool, error) {
	return f(in, ctx)
}

// Provider contributes named extensions to a registry.
type Provider interface {
	Name() string
	Register(r *Registrar)
}

type providerFunc struct {
	name string
	fn   func(r *Registrar)
}

func (p providerFunc) Name() string          { return p.name }
func (p providerFunc) Register(r *Registrar) { p.fn(r) }

// ProviderFunc builds a Provider from a registration function.
func ProviderFunc(name string, fn func(r *Registrar)) Provider {
	return providerFunc{name: name, fn: fn}
}

// Registrar collects the extensions of the provider currently registering.
type Registrar struct {
	provider    string
	calibrators map[string]Calibrator
	checkers    map[string]Checker
}

// Calibration registers a calibration function. The first registration of a
// name wins; duplicates are logged and ignored.
func (r *Registrar) Calibration(name string, c Calibrator) {
	if _, exists := r.calibrators[name]; exists {
		logging.Warn().Str("provider", r.provider).Str("function", name).Msg("Duplicate calibration extension ignored")
		return
	}
	r.calibrators[name] = c
}

// Check registers a check function. The first registration of a name wins;
// duplicates are logged and ignored.
func (r *Registrar) Check(name string, c Checker) {
	if _, exists := r.checkers[name]; exists {
		logging.Warn().Str("provider", r.provider).Str("function", name).Msg("Duplicate check extension ignored")
		return
	}
	r.checkers[name] = c
}

// Registry is an immutable name table of extensions.
type Registry struct {
	calibrators map[string]Calibrator
	checkers    map[string]Checker
}

// New builds a registry from the built-in provider followed by providers.
func New(providers ...Provider) *Registry {
	reg := &Registrar{
		calibrators: make(map[string]Calibrator),
		checkers:    make(map[string]Checker),
	}
	all := append([]Provider{Builtins()}, providers...)
	for _, p := range all {
		reg.provider = p.Name()
		p.Register(reg)
	}
	return &Registry{calibrators: reg.calibrators, checkers: reg.checkers}
}

// Calibrator returns the calibration registered under name.
func (r *Registry) Calibrator(name string) (Calibrator, error) {
	c, ok := r.calibrators[name]
	if !ok {
		return nil, fmt.Errorf("%w: calibration %q", ErrUnknownFunction, name)
	}
	return c, nil
}

// Checker returns the check registered under name.
func (r *Registry) Checker(name string) (Checker, error) {
	c, ok := r.checkers[name]
	if !ok {
		return nil, fmt.Errorf("%w: check %q", ErrUnknownFunction, name)
	}
	return c, nil
}

// Calibrations returns the sorted names of the registered calibrations.
func (r *Registry) Calibrations() []string {
	return sortedKeys(r.calibrators)
}

// Checks returns the sorted names of the registered checks.
func (r *Registry) Checks() []string {
	return sortedKeys(r.checkers)
}

func sortedKeys[V any](m map[string]V) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

var (
	providersMu sync.Mutex
	providers   []Provider
	sealed      bool

	defaultOnce     sync.Once
	defaultRegistry *Registry
)

// RegisterProvider adds a provider to the process-wide registry. It fails
// with ErrRegistrySealed once Default has been called.
func RegisterProvider(p Provider) error {
	providersMu.Lock()
	defer providersMu.Unlock()
	if sealed {
		return fmt.Errorf("%w: provider %q", ErrRegistrySealed, p.Name())
	}
	providers = append(providers, p)
	return nil
}

// MustRegisterProvider is RegisterProvider for init functions. It panics on error.
func MustRegisterProvider(p Provider) {
	if err := RegisterProvider(p); err != nil {
		panic(err)
	}
}

// Default returns the process-wide registry, building it on first use.
func Default() *Registry {
	defaultOnce.Do(func() {
		providersMu.Lock()
		sealed = true
		registered := append([]Provider(nil), providers...)
		providersMu.Unlock()

		defaultRegistry = New(registered...)
		logging.Debug().
			Int("providers", len(registered)+1).
			Int("calibrations", len(defaultRegistry.calibrators)).
			Int("checks", len(defaultRegistry.checkers)).
			Msg("Extension registry initialized")
	})
	return defaultRegistry
}

// LookupCalibrator resolves name in the process-wide registry.
func LookupCalibrator(name string) (Calibrator, error) {
	return Default().Calibrator(name)
}

// LookupChecker resolves name in the process-wide registry.
func LookupChecker(name string) (Checker, error) {
	return Default().Checker(name)
}
