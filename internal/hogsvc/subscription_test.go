package hogsvc

import (
	"context"
	"testing"

	"github.com/blehid/hog-agent/internal/hogsvc/hidreport"
	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
)

type change struct {
	report  Report
	enabled bool
}

func newTestReconciler(t *testing.T, cfg hidreport.Config) (*Reconciler, *[]change) {
	t.Helper()
	changes := &[]change{}
	registry := NewRegistry(cfg)
	recon := NewReconciler(zap.NewNop(), registry, func(_ context.Context, report Report, enabled bool) {
		*changes = append(*changes, change{report, enabled})
	})
	return recon, changes
}

func TestToggleActiveMode(t *testing.T) {
	ctx := context.Background()
	recon, changes := newTestReconciler(t, hidreport.DefaultConfig)

	recon.HandleToggle(ctx, ReportMouse, ModeReport, true)
	assert.Equal(t, []change{{ReportMouse, true}}, *changes)
	assert.True(t, recon.Effective(ReportMouse))

	// Repeating the same toggle is not a change.
	recon.HandleToggle(ctx, ReportMouse, ModeReport, true)
	assert.Len(t, *changes, 1)

	recon.HandleToggle(ctx, ReportMouse, ModeReport, false)
	assert.Equal(t, []change{{ReportMouse, true}, {ReportMouse, false}}, *changes)
	assert.False(t, recon.Effective(ReportMouse))
}

func TestToggleInactiveModeIsSilent(t *testing.T) {
	ctx := context.Background()
	recon, changes := newTestReconciler(t, hidreport.DefaultConfig)

	recon.HandleToggle(ctx, ReportMouse, ModeBoot, true)
	assert.Empty(t, *changes)
	assert.False(t, recon.Effective(ReportMouse))
}

func TestModeSwitchReplaysLatentState(t *testing.T) {
	ctx := context.Background()
	recon, changes := newTestReconciler(t, hidreport.DefaultConfig)

	// Mouse enabled for boot mode only, while report mode is active.
	recon.HandleToggle(ctx, ReportMouse, ModeBoot, true)
	assert.Empty(t, *changes)

	recon.HandleProtocolMode(ctx, ModeBoot)
	assert.Equal(t, []change{{ReportMouse, true}}, *changes)
	assert.True(t, recon.Effective(ReportMouse))

	recon.HandleProtocolMode(ctx, ModeReport)
	assert.Equal(t, []change{{ReportMouse, true}, {ReportMouse, false}}, *changes)
	assert.False(t, recon.Effective(ReportMouse))
}

func TestModeSwitchReconcilesEachReport(t *testing.T) {
	ctx := context.Background()
	recon, changes := newTestReconciler(t, hidreport.DefaultConfig)

	recon.HandleToggle(ctx, ReportMouse, ModeReport, true)
	recon.HandleToggle(ctx, ReportKeyboard, ModeBoot, true)
	recon.HandleToggle(ctx, ReportMediaPlayer, ModeReport, true)
	*changes = (*changes)[:0]

	// Mouse and media player turn off, keyboard turns on.
	recon.HandleProtocolMode(ctx, ModeBoot)
	assert.ElementsMatch(t, []change{
		{ReportMouse, false},
		{ReportKeyboard, true},
		{ReportMediaPlayer, false},
	}, *changes)
}

func TestModeEventWithoutChangeIsNoop(t *testing.T) {
	ctx := context.Background()
	recon, changes := newTestReconciler(t, hidreport.DefaultConfig)

	recon.HandleToggle(ctx, ReportMouse, ModeReport, true)
	*changes = (*changes)[:0]

	recon.HandleProtocolMode(ctx, ModeReport)
	assert.Empty(t, *changes)
	assert.Equal(t, ModeReport, recon.Mode())
}

func TestUnknownModeEventIgnored(t *testing.T) {
	ctx := context.Background()
	recon, changes := newTestReconciler(t, hidreport.DefaultConfig)

	recon.HandleProtocolMode(ctx, ProtocolMode(42))
	assert.Empty(t, *changes)
	assert.Equal(t, ModeReport, recon.Mode())
}

func TestToggleUnregisteredReportPanics(t *testing.T) {
	ctx := context.Background()
	recon, _ := newTestReconciler(t, hidreport.Config{Mouse: true, Keyboard: true})

	assert.Panics(t, func() {
		recon.HandleToggle(ctx, ReportMediaPlayer, ModeReport, true)
	})
	assert.Panics(t, func() {
		recon.HandleToggle(ctx, ReportMouse, ProtocolMode(42), true)
	})
}

func TestEffectiveMatchesMatrix(t *testing.T) {
	ctx := context.Background()
	recon, _ := newTestReconciler(t, hidreport.DefaultConfig)
	reports := []Report{ReportMouse, ReportKeyboard, ReportMediaPlayer}

	type step struct {
		toggle *NotificationToggled
		mode   *ProtocolMode
	}
	boot := ModeBoot
	report := ModeReport
	script := []step{
		{toggle: &NotificationToggled{ReportMouse, ModeReport, true}},
		{toggle: &NotificationToggled{ReportKeyboard, ModeBoot, true}},
		{mode: &boot},
		{toggle: &NotificationToggled{ReportMouse, ModeBoot, true}},
		{toggle: &NotificationToggled{ReportMouse, ModeBoot, false}},
		{mode: &report},
		{toggle: &NotificationToggled{ReportMediaPlayer, ModeReport, true}},
		{mode: &report},
		{mode: &boot},
	}

	matrix := map[Report]map[ProtocolMode]bool{}
	for _, r := range reports {
		matrix[r] = map[ProtocolMode]bool{}
	}
	mode := ModeReport
	for i, st := range script {
		switch {
		case st.toggle != nil:
			recon.HandleToggle(ctx, st.toggle.Report, st.toggle.Mode, st.toggle.Enabled)
			matrix[st.toggle.Report][st.toggle.Mode] = st.toggle.Enabled
		case st.mode != nil:
			recon.HandleProtocolMode(ctx, *st.mode)
			mode = *st.mode
		}
		for _, r := range reports {
			assert.Equal(t, matrix[r][mode], recon.Effective(r), "step %d report %s", i, r)
		}
	}
}

func TestRestoreBroadcastsEffectiveDiffs(t *testing.T) {
	ctx := context.Background()
	recon, changes := newTestReconciler(t, hidreport.DefaultConfig)

	recon.HandleToggle(ctx, ReportMouse, ModeReport, true)
	*changes = (*changes)[:0]

	snap := DefaultSnapshot(NewRegistry(hidreport.DefaultConfig))
	snap.Mode = ModeBoot
	snap.Enabled[ReportKeyboard] = [modeCount]bool{ModeBoot: true}
	recon.Restore(ctx, snap)

	assert.ElementsMatch(t, []change{
		{ReportMouse, false},
		{ReportKeyboard, true},
	}, *changes)
	assert.Equal(t, ModeBoot, recon.Mode())

	// Resetting to defaults turns the keyboard back off.
	*changes = (*changes)[:0]
	recon.Restore(ctx, DefaultSnapshot(NewRegistry(hidreport.DefaultConfig)))
	assert.Equal(t, []change{{ReportKeyboard, false}}, *changes)
}
