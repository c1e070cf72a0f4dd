package synth

import (
	"context"
	"fmt"
	"sync"

	"github.com/storyreader/storyreader/internal/speech/engine"
)

// State is the lifecycle position of a model resource.
type State int

const (
	Unloaded State = iota
	Loading
	Loaded
	// Degraded means the last load failed. It retries like Unloaded.
	Degraded
)

func (s State) String() string {
	switch s {
	case Unloaded:
		return "unloaded"
	case Loading:
		return "loading"
	case Loaded:
		return "loaded"
	case Degraded:
		return "degraded"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Resource owns the one speech model of the process. Once Loaded it is
// never unloaded and is shared read-only by all requests.
type Resource struct {
	provider engine.Provider
	probe    engine.DeviceProbe

	// loadMu serializes loads; mu guards the fields below.
	loadMu sync.Mutex
	mu     sync.RWMutex
	state  State
	model  engine.Model
	opts   engine.LoadOptions
	err    error
}

// NewResource creates an unloaded resource.
func NewResource(provider engine.Provider, probe engine.DeviceProbe) *Resource {
	if probe == nil {
		probe = engine.SystemProbe{}
	}
	return &Resource{provider: provider, probe: probe}
}

// Load materializes the model for sizeVariant on the best device. It
// reports whether this call performed the load; calls after a successful
// load are no-ops. On failure the resource is left Degraded.
func (r *Resource) Load(ctx context.Context, sizeVariant string) (bool, error) {
	r.loadMu.Lock()
	defer r.loadMu.Unlock()

	r.mu.Lock()
	if r.state == Loaded {
		r.mu.Unlock()
		return false, nil
	}
	device, precision := engine.SelectDevice(r.probe)
	opts := engine.LoadOptions{SizeVariant: sizeVariant, Device: device, Precision: precision}
	r.state = Loading
	r.opts = opts
	r.mu.Unlock()

	var (
		model engine.Model
		err   error
	)
	if r.provider == nil {
		err = fmt.Errorf("no speech provider configured")
	} else {
		model, err = r.provider.Load(ctx, opts)
		if err == nil && model == nil {
			err = fmt.Errorf("speech provider returned no model")
		}
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if err != nil {
		r.state = Degraded
		r.err = err
		return true, err
	}
	r.state = Loaded
	r.model = model
	r.err = nil
	return true, nil
}

// State returns the lifecycle position.
func (r *Resource) State() State {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.state
}

// Model returns the loaded model, if any.
func (r *Resource) Model() (engine.Model, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.state != Loaded {
		return nil, false
	}
	return r.model, true
}

// Options returns the options of the latest load attempt.
func (r *Resource) Options() engine.LoadOptions {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.opts
}

// Err returns the error of the latest failed load.
func (r *Resource) Err() error {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.err
}

// CircuitState reports the provider's circuit breaker position, or "" when
// the provider has none.
func (r *Resource) CircuitState() string {
	if cr, ok := r.provider.(engine.CircuitReporter); ok {
		return cr.CircuitState()
	}
	return ""
}

// AcceleratorAvailable reports whether any accelerator is present,
// independent of where the model ended up.
func (r *Resource) AcceleratorAvailable() bool {
	return r.probe.HasDedicated() || r.probe.HasIntegrated()
}
