// Copyright The Stack Master Tool Authors.
// SPDX-License-Identifier: MIT

package service

import (
	"context"
	"sync"

	"github.com/guitarbeat/stack-master-tool/internal/domain"
)

// AdapterFactory builds the service for one backend.
type AdapterFactory func(ctx context.Context) (domain.MeetingService, error)

// BackendSelector holds the active adapter and switches between backends.
// Switching tears the previous adapter down first, so connections and
// subscriptions never leak across backends.
type BackendSelector struct {
	mu        sync.Mutex
	active    domain.MeetingService
	backend   Backend
	factories map[Backend]AdapterFactory
}

// NewBackendSelector creates a selector over the given adapter factories.
func NewBackendSelector(factories map[Backend]AdapterFactory) *BackendSelector {
	return &BackendSelector{factories: factories}
}

// Select activates the adapter for a backend, tearing down the previous one.
// Selecting the already-active backend keeps the current adapter.
func (s *BackendSelector) Select(ctx context.Context, backend Backend) (domain.MeetingService, error) {
	if !backend.IsValid() {
		return nil, domain.NewValidationError("unknown backend")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.active != nil && s.backend == backend {
		return s.active, nil
	}

	factory, ok := s.factories[backend]
	if !ok {
		return nil, domain.NewUnavailableError("backend is not configured")
	}

	if s.active != nil {
		if err := s.active.Close(); err != nil {
			return nil, err
		}
		s.active = nil
	}

	adapter, err := factory(ctx)
	if err != nil {
		return nil, err
	}

	s.active = adapter
	s.backend = backend
	return adapter, nil
}

// Active returns the current adapter, if one has been selected.
func (s *BackendSelector) Active() (domain.MeetingService, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.active, s.active != nil
}

// Close tears down the active adapter.
func (s *BackendSelector) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.active == nil {
		return nil
	}
	err := s.active.Close()
	s.active = nil
	return err
}
