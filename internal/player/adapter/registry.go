// Copyright (c) 2025 vflorio
// SPDX-License-Identifier: MIT

package adapter

import (
	"fmt"
	"sync"

	"github.com/vflorio/hbbtv-emu-sub005/internal/player/model"
)

// Registry maps source types to adapter factories. Registration normally
// happens once at daemon start; Register is last-wins so tests can swap a
// scripted factory in.
type Registry struct {
	mu        sync.RWMutex
	factories map[model.SourceType]Factory
}

func NewRegistry() *Registry {
	return &Registry{factories: make(map[model.SourceType]Factory)}
}

// Register binds factory to source, replacing any previous binding.
func (r *Registry) Register(source model.SourceType, factory Factory) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.factories[source] = factory
}

// New builds a fresh adapter for source, bound to sink. An unregistered
// source is an error; callers surface it as a load failure.
func (r *Registry) New(source model.SourceType, sink EventSink) (Adapter, error) {
	r.mu.RLock()
	factory, ok := r.factories[source]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("no adapter registered for source %q", source)
	}
	return factory.New(sink)
}

// Sources lists the registered source types, unordered.
func (r *Registry) Sources() []model.SourceType {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]model.SourceType, 0, len(r.factories))
	for source := range r.factories {
		out = append(out, source)
	}
	return out
}
