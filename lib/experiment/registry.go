// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package experiment

import (
	"fmt"
	"sort"
	"sync"

	"gopkg.in/yaml.v3"

	"github.com/bureau-foundation/stager/lib/marker"
)

// Registry maps experiment names to factories.
type Registry struct {
	mu        sync.RWMutex
	factories map[string]Factory
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{factories: make(map[string]Factory)}
}

// Register adds factory. Names must be unique.
func (r *Registry) Register(factory Factory) error {
	name := factory.Name()
	if name == "" {
		return fmt.Errorf("registering experiment: empty name")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.factories[name]; exists {
		return fmt.Errorf("experiment %q registered twice", name)
	}
	r.factories[name] = factory
	return nil
}

// MustRegister is Register for process startup.
func (r *Registry) MustRegister(factories ...Factory) {
	for _, factory := range factories {
		if err := r.Register(factory); err != nil {
			panic("experiment: " + err.Error())
		}
	}
}

// Lookup returns the factory registered under name.
func (r *Registry) Lookup(name string) (Factory, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	factory, ok := r.factories[name]
	return factory, ok
}

// Names returns the registered names in sorted order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.factories))
	for name := range r.factories {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// MarkerTable assembles the marker groups of every registered
// experiment. Overlapping or malformed groups are an error.
func (r *Registry) MarkerTable() (*marker.Table, error) {
	var groups []marker.Group
	for _, name := range r.Names() {
		factory, _ := r.Lookup(name)
		if group, ok := factory.MarkerGroup(); ok {
			groups = append(groups, group)
		}
	}
	table, err := marker.NewTable(groups...)
	if err != nil {
		return nil, fmt.Errorf("assembling marker table: %w", err)
	}
	return table, nil
}

// Build looks up name and builds it.
func (r *Registry) Build(name string, params *yaml.Node, environment Environment) (Experiment, error) {
	factory, ok := r.Lookup(name)
	if !ok {
		return nil, fmt.Errorf("unknown experiment %q (registered: %v)", name, r.Names())
	}
	built, err := factory.Build(params, environment)
	if err != nil {
		return nil, fmt.Errorf("building experiment %q: %w", name, err)
	}
	return built, nil
}
