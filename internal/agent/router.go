package agent

import (
	"context"
	"errors"
	"sync"

	"cloneexec/internal/gateway/cockpit"
	"cloneexec/internal/logger"
	"cloneexec/internal/pkg/fault"
)

type Mode int

const (
	ModeReviewed Mode = iota
	ModeAutonomous
)

func (m Mode) String() string {
	if m == ModeAutonomous {
		return "autonomous"
	}
	return "reviewed"
}

// SettingsSource returns the clone's remote settings.
type SettingsSource interface {
	CloneSettings(ctx context.Context, cloneID string) (cockpit.Settings, error)
}

// Router picks the execution mode for a tick. A local override, when set,
// wins over the remote autopilot flag.
type Router struct {
	source  SettingsSource
	cloneID string

	mu       sync.RWMutex
	override *bool
}

func NewRouter(source SettingsSource, cloneID string, override *bool) *Router {
	r := &Router{source: source, cloneID: cloneID}
	r.SetOverride(override)
	return r
}

// SetOverride installs or clears (nil) the local autopilot override.
func (r *Router) SetOverride(v *bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if v == nil {
		r.override = nil
		return
	}
	val := *v
	r.override = &val
}

func (r *Router) Override() (autopilot bool, set bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.override == nil {
		return false, false
	}
	return *r.override, true
}

func (r *Router) Route(ctx context.Context) (Mode, error) {
	if v, ok := r.Override(); ok {
		return modeOf(v), nil
	}
	if r.source == nil {
		return ModeReviewed, fault.Configuration("no autopilot source and no local override")
	}
	settings, err := r.source.CloneSettings(ctx, r.cloneID)
	if err != nil {
		var apiErr *cockpit.APIError
		if errors.As(err, &apiErr) {
			return ModeReviewed, fault.Transient("read autopilot: %v", err)
		}
		return ModeReviewed, err
	}
	logger.Debugf("Router: clone %s autopilot=%v", r.cloneID, settings.Autopilot)
	return modeOf(settings.Autopilot), nil
}

func modeOf(autopilot bool) Mode {
	if autopilot {
		return ModeAutonomous
	}
	return ModeReviewed
}
