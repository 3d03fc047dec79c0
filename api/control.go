// File: api/control.go
// Package api
// Author: momentics
//
// Runtime configuration, statistics, dynamic reload and debug contract
// for the connection handler.

package api

// Control exposes configuration, live metrics and debug API.
type Control interface {
	// GetConfig returns a snapshot of all configuration settings.
	GetConfig() map[string]any

	// SetConfig atomically updates or merges configuration settings.
	SetConfig(cfg map[string]any) error

	// Stats returns current aggregated runtime and performance metrics.
	Stats() map[string]any

	// OnReload registers a callback for hot-reload/config updates.
	OnReload(fn func())

	// RegisterDebugProbe dynamically registers a named debug probe function.
	// The probe is invoked during debug dumps and health checks.
	RegisterDebugProbe(name string, fn func() any)

	// UnregisterDebugProbe removes a probe registered under name. It is
	// a no-op if name was never registered.
	UnregisterDebugProbe(name string)

	// SetMetric records a point-in-time gauge, such as current buffer
	// occupancy.
	SetMetric(key string, value any)

	// IncrMetric adds delta to a running counter such as requests
	// served or active connections.
	IncrMetric(key string, delta int64)
}

// NopControl implements Control with no-ops, the default for a Deps
// that never wires a control plane.
type NopControl struct{}

func (NopControl) GetConfig() map[string]any        { return nil }
func (NopControl) SetConfig(map[string]any) error   { return nil }
func (NopControl) Stats() map[string]any            { return nil }
func (NopControl) OnReload(func())                  {}
func (NopControl) RegisterDebugProbe(string, func() any) {}
func (NopControl) UnregisterDebugProbe(string)      {}
func (NopControl) SetMetric(string, any)             {}
func (NopControl) IncrMetric(string, int64)          {}
