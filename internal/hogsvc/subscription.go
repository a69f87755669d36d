package hogsvc

import (
	"context"
	"fmt"

	"go.uber.org/zap"
)

// Reconciler tracks the per-report, per-protocol-mode notification state of
// the peer and reduces it to a single effective "is this report deliverable"
// value per report. It broadcasts a subscription change exactly when that
// effective value flips.
//
// The peer keeps independent CCCDs for the boot and report protocol
// characteristics, but only the active mode's state is observable by the rest
// of the agent. Toggles for the inactive mode are recorded silently and
// replayed when that mode becomes active.
//
// Reconciler is not safe for concurrent use; the service drives it from a
// single event loop.
type Reconciler struct {
	log      *zap.Logger
	registry *Registry

	mode    ProtocolMode
	enabled map[Report]*[modeCount]bool

	broadcast func(ctx context.Context, report Report, enabled bool)
}

// NewReconciler returns a reconciler with all notifications disabled and the
// protocol mode set to report, the state a freshly connected peer sees.
// broadcast is invoked for every effective subscription change.
func NewReconciler(log *zap.Logger, registry *Registry, broadcast func(ctx context.Context, report Report, enabled bool)) *Reconciler {
	r := &Reconciler{
		log:       log,
		registry:  registry,
		mode:      ModeReport,
		enabled:   make(map[Report]*[modeCount]bool),
		broadcast: broadcast,
	}
	for _, report := range registry.Reports() {
		r.enabled[report] = &[modeCount]bool{}
	}
	return r
}

// Mode returns the active protocol mode.
func (r *Reconciler) Mode() ProtocolMode {
	return r.mode
}

// Effective reports whether notifications for the report are deliverable
// under the active protocol mode.
func (r *Reconciler) Effective(report Report) bool {
	st, ok := r.enabled[report]
	if !ok {
		return false
	}
	return st[r.mode]
}

// HandleProtocolMode applies a protocol mode change. Every enabled report
// whose effective subscription differs between the old and new mode gets a
// subscription change broadcast. A mode event that does not change the mode
// is a no-op.
func (r *Reconciler) HandleProtocolMode(ctx context.Context, mode ProtocolMode) {
	if !mode.valid() {
		r.log.Warn("Ignoring unknown protocol mode event", zap.Uint8("mode", uint8(mode)))
		return
	}
	old := r.mode
	r.mode = mode
	if mode == old {
		return
	}
	r.log.Info("Protocol mode changed", zap.Stringer("mode", mode))
	for _, report := range r.registry.Reports() {
		st := r.enabled[report]
		if st[old] != st[mode] {
			r.emit(ctx, report, st[mode])
		}
	}
}

// HandleToggle applies a CCCD write for one report characteristic. The
// change is broadcast only if it targets the active mode and actually flips
// the stored value; toggles for the inactive mode are latent state.
//
// Toggles can only originate from characteristics the registry declared, so
// an unknown report or mode is a contract violation.
func (r *Reconciler) HandleToggle(ctx context.Context, report Report, mode ProtocolMode, enabled bool) {
	st, ok := r.enabled[report]
	if !ok {
		panic(fmt.Sprintf("hogsvc: notification toggle for unregistered report %s", report))
	}
	if !mode.valid() {
		panic(fmt.Sprintf("hogsvc: notification toggle with invalid mode %d", uint8(mode)))
	}
	changed := st[mode] != enabled
	st[mode] = enabled
	if r.mode == mode && changed {
		r.emit(ctx, report, enabled)
	}
}

// Snapshot captures the full subscription state for persistence.
type Snapshot struct {
	Mode    ProtocolMode
	Enabled map[Report][modeCount]bool
}

// DefaultSnapshot is the state of a peer that has never written a CCCD.
func DefaultSnapshot(registry *Registry) Snapshot {
	snap := Snapshot{
		Mode:    ModeReport,
		Enabled: make(map[Report][modeCount]bool),
	}
	for _, report := range registry.Reports() {
		snap.Enabled[report] = [modeCount]bool{}
	}
	return snap
}

// Snapshot returns a copy of the current state.
func (r *Reconciler) Snapshot() Snapshot {
	snap := Snapshot{
		Mode:    r.mode,
		Enabled: make(map[Report][modeCount]bool, len(r.enabled)),
	}
	for report, st := range r.enabled {
		snap.Enabled[report] = *st
	}
	return snap
}

// Restore replaces the whole state at once, broadcasting a change for every
// report whose effective subscription differs from before. Used to replay
// persisted CCCD state when a bonded peer reconnects and to reset state when
// it disconnects.
func (r *Reconciler) Restore(ctx context.Context, snap Snapshot) {
	if !snap.Mode.valid() {
		r.log.Warn("Ignoring snapshot with unknown protocol mode", zap.Uint8("mode", uint8(snap.Mode)))
		return
	}
	before := make(map[Report]bool, len(r.enabled))
	for _, report := range r.registry.Reports() {
		before[report] = r.Effective(report)
	}
	r.mode = snap.Mode
	for _, report := range r.registry.Reports() {
		st := snap.Enabled[report]
		*r.enabled[report] = st
	}
	for _, report := range r.registry.Reports() {
		if after := r.Effective(report); after != before[report] {
			r.emit(ctx, report, after)
		}
	}
}

func (r *Reconciler) emit(ctx context.Context, report Report, enabled bool) {
	r.log.Info("Notifications toggled",
		zap.Stringer("report", report),
		zap.Bool("enabled", enabled))
	r.broadcast(ctx, report, enabled)
}
