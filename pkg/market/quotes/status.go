package quotes

import (
	"errors"

	"marketfeed/pkg/fetch"
)

// ProviderStatus is the per-provider connectivity state surfaced to UI
// status indicators.
type ProviderStatus string

const (
	StatusConnected   ProviderStatus = "connected"
	StatusRateLimited ProviderStatus = "rate_limited"
	StatusOffline     ProviderStatus = "offline"
)

// ProviderStatuses returns a snapshot of the current per-provider statuses.
func (m *Manager) ProviderStatuses() map[string]ProviderStatus {
	m.statusMu.Lock()
	defer m.statusMu.Unlock()
	snapshot := make(map[string]ProviderStatus, len(m.statuses))
	for name, status := range m.statuses {
		snapshot[name] = status
	}
	return snapshot
}

// OnStatusChange registers a listener for per-provider status transitions.
// The returned function removes the listener.
func (m *Manager) OnStatusChange(fn func(provider string, status ProviderStatus)) func() {
	m.statusMu.Lock()
	id := m.nextListenerID
	m.nextListenerID++
	if m.listeners == nil {
		m.listeners = make(map[int]func(string, ProviderStatus))
	}
	m.listeners[id] = fn
	m.statusMu.Unlock()

	return func() {
		m.statusMu.Lock()
		delete(m.listeners, id)
		m.statusMu.Unlock()
	}
}

func (m *Manager) setStatus(provider string, next ProviderStatus) {
	m.statusMu.Lock()
	if m.statuses == nil {
		m.statuses = make(map[string]ProviderStatus)
	}
	if m.statuses[provider] == next {
		m.statusMu.Unlock()
		return
	}
	m.statuses[provider] = next
	listeners := make([]func(string, ProviderStatus), 0, len(m.listeners))
	for _, fn := range m.listeners {
		listeners = append(listeners, fn)
	}
	m.statusMu.Unlock()

	for _, fn := range listeners {
		fn(provider, next)
	}
}

// observeFailure maps an error onto the provider status it implies.
func (m *Manager) observeFailure(provider string, err error) {
	if errors.Is(err, fetch.ErrRateLimited) {
		m.setStatus(provider, StatusRateLimited)
		return
	}
	m.setStatus(provider, StatusOffline)
}
