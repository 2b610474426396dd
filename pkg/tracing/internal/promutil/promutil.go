// Package promutil holds small helpers shared by the tracing collectors.
package promutil

import (
	"errors"

	"github.com/prometheus/client_golang/prometheus"
)

// Component is the constant label value attached to every tracing collector.
const Component = "tracing"

// Wrap returns reg with the component label applied, or nil when reg is nil.
func Wrap(reg prometheus.Registerer) prometheus.Registerer {
	if reg == nil {
		return nil
	}
	return prometheus.WrapRegistererWith(prometheus.Labels{"component": Component}, reg)
}

// Register registers c on reg and returns the collector to use. When an
// identical collector is already registered, the existing one is returned so
// two drivers sharing a registry share their series. A nil reg leaves c
// unregistered.
func Register[T prometheus.Collector](reg prometheus.Registerer, c T) T {
	if reg == nil {
		return c
	}

	err := reg.Register(c)
	if err == nil {
		return c
	}

	var are prometheus.AlreadyRegisteredError
	if errors.As(err, &are) {
		if existing, ok := are.ExistingCollector.(T); ok {
			return existing
		}
	}
	return c
}
