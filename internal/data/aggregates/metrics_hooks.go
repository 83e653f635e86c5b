package aggregates

import "time"

// Hooks receives pipeline telemetry signals. The observability layer
// implements this; pipelines never import it directly.
type Hooks interface {
	ObserveOperation(name, status string, dur time.Duration)
	IncConflict(name string)
	IncRetry(name string)
}

type noopHooks struct{}

func (noopHooks) ObserveOperation(string, string, time.Duration) {}
func (noopHooks) IncConflict(string) {}
func (noopHooks) IncRetry(string) {}
