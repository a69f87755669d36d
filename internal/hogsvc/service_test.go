package hogsvc_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/blehid/hog-agent/internal/hogsvc"
	"github.com/blehid/hog-agent/internal/hogsvc/hidreport"
	"github.com/blehid/hog-agent/internal/hogsvc/loopback"
	"github.com/blehid/hog-agent/pkg/bus"
	"github.com/dgraph-io/badger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

const waitTimeout = 5 * time.Second

type harness struct {
	ctx       context.Context
	svc       *hogsvc.Service
	transport *loopback.Transport
	events    <-chan bus.Message[hogsvc.Report, hogsvc.Event]
}

func startService(t *testing.T, db *badger.DB) *harness {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	transport := loopback.New(zap.NewNop())
	svc := hogsvc.New(zap.NewNop(), db, hogsvc.DefaultConfig, hogsvc.WithTransport(transport))
	go func() {
		_ = svc.Start(ctx)
	}()
	select {
	case <-svc.Ready():
	case <-time.After(waitTimeout):
		t.Fatal("service did not become ready")
	}
	return &harness{
		ctx:       ctx,
		svc:       svc,
		transport: transport,
		events:    svc.Events().Subscribe(ctx),
	}
}

func (h *harness) waitEvent(t *testing.T) hogsvc.Event {
	t.Helper()
	select {
	case msg := <-h.events:
		return msg.Message
	case <-time.After(waitTimeout):
		t.Fatal("timed out waiting for event")
		return hogsvc.Event{}
	}
}

func (h *harness) waitSubscriptionChanged(t *testing.T, report hogsvc.Report, enabled bool) {
	t.Helper()
	ev := h.waitEvent(t)
	require.NotNil(t, ev.SubscriptionChanged)
	assert.Equal(t, report, ev.SubscriptionChanged.Report)
	assert.Equal(t, enabled, ev.SubscriptionChanged.Enabled)
}

func (h *harness) waitReportSent(t *testing.T, report hogsvc.Report) {
	t.Helper()
	ev := h.waitEvent(t)
	require.NotNil(t, ev.ReportSent)
	assert.Equal(t, report, ev.ReportSent.Report)
}

func (h *harness) waitSends(t *testing.T, n int) []loopback.Send {
	t.Helper()
	require.Eventually(t, func() bool {
		return len(h.transport.Sends()) >= n
	}, waitTimeout, 10*time.Millisecond)
	sends := h.transport.Sends()
	require.Len(t, sends, n)
	return sends
}

func TestMouseDispatchReportMode(t *testing.T) {
	h := startService(t, nil)

	h.transport.ClientToggle(h.ctx, hogsvc.ReportMouse, hogsvc.ModeReport, true)
	h.waitSubscriptionChanged(t, hogsvc.ReportMouse, true)

	h.svc.PublishMouse(h.ctx, hogsvc.MouseMotion{DX: 3000, DY: -3000, Wheel: 200, Buttons: 0x05})
	sends := h.waitSends(t, 1)
	assert.Equal(t, loopback.SendReport, sends[0].Kind)
	assert.Equal(t, hogsvc.ReportMouse, sends[0].Report)
	assert.Equal(t, 0, sends[0].Index)
	assert.Equal(t, hidreport.Mouse(3000, -3000, 200, 0x05), sends[0].Data)

	h.waitReportSent(t, hogsvc.ReportMouse)
}

func TestMouseDispatchBootMode(t *testing.T) {
	h := startService(t, nil)

	h.transport.ClientToggle(h.ctx, hogsvc.ReportMouse, hogsvc.ModeBoot, true)
	h.transport.ClientSetProtocolMode(h.ctx, hogsvc.ModeBoot)
	h.waitSubscriptionChanged(t, hogsvc.ReportMouse, true)

	h.svc.PublishMouse(h.ctx, hogsvc.MouseMotion{DX: 3000, DY: -3000, Wheel: 200, Buttons: 0x05})
	sends := h.waitSends(t, 1)
	assert.Equal(t, loopback.SendBootMouse, sends[0].Kind)
	assert.Equal(t, []byte{0x05, 0x7f, 0x80}, sends[0].Data)

	h.waitReportSent(t, hogsvc.ReportMouse)
}

func TestKeyboardDispatchBootMode(t *testing.T) {
	h := startService(t, nil)

	h.transport.ClientToggle(h.ctx, hogsvc.ReportKeyboard, hogsvc.ModeBoot, true)
	h.transport.ClientSetProtocolMode(h.ctx, hogsvc.ModeBoot)
	h.waitSubscriptionChanged(t, hogsvc.ReportKeyboard, true)

	h.svc.PublishKeyboard(h.ctx, hogsvc.KeyboardState{
		Modifiers: 0x02,
		Keys:      [hidreport.KeyboardKeyCount]uint8{4, 5},
	})
	sends := h.waitSends(t, 1)
	assert.Equal(t, loopback.SendBootKeyboard, sends[0].Kind)
	assert.Equal(t, []byte{0x02, 0x00, 4, 5, 0, 0, 0, 0}, sends[0].Data)

	h.waitReportSent(t, hogsvc.ReportKeyboard)
}

func TestKeyboardDispatchReportMode(t *testing.T) {
	h := startService(t, nil)

	h.transport.ClientToggle(h.ctx, hogsvc.ReportKeyboard, hogsvc.ModeReport, true)
	h.waitSubscriptionChanged(t, hogsvc.ReportKeyboard, true)

	h.svc.PublishKeyboard(h.ctx, hogsvc.KeyboardState{
		Modifiers: 0x02,
		Keys:      [hidreport.KeyboardKeyCount]uint8{4, 5},
	})
	sends := h.waitSends(t, 1)
	assert.Equal(t, loopback.SendReport, sends[0].Kind)
	assert.Equal(t, 1, sends[0].Index)
	assert.Equal(t, []byte{0x02, 0x00, 4, 5, 0, 0, 0, 0, 0x00}, sends[0].Data)
}

func TestMediaPlayerDroppedInBootMode(t *testing.T) {
	h := startService(t, nil)

	h.transport.ClientToggle(h.ctx, hogsvc.ReportMediaPlayer, hogsvc.ModeReport, true)
	h.waitSubscriptionChanged(t, hogsvc.ReportMediaPlayer, true)

	h.transport.ClientSetProtocolMode(h.ctx, hogsvc.ModeBoot)
	h.waitSubscriptionChanged(t, hogsvc.ReportMediaPlayer, false)

	h.svc.PublishMediaPlayer(h.ctx, hogsvc.MediaPlayerKeys{Keys: hidreport.MediaKeyPlayPause})
	time.Sleep(200 * time.Millisecond)
	assert.Empty(t, h.transport.Sends())

	// Back in report mode the same event goes out through the report table.
	h.transport.ClientSetProtocolMode(h.ctx, hogsvc.ModeReport)
	h.waitSubscriptionChanged(t, hogsvc.ReportMediaPlayer, true)

	h.svc.PublishMediaPlayer(h.ctx, hogsvc.MediaPlayerKeys{Keys: hidreport.MediaKeyPlayPause})
	sends := h.waitSends(t, 1)
	assert.Equal(t, loopback.SendReport, sends[0].Kind)
	assert.Equal(t, 2, sends[0].Index)
	assert.Equal(t, []byte{hidreport.MediaKeyPlayPause}, sends[0].Data)
}

func TestSendFailureIsDropped(t *testing.T) {
	h := startService(t, nil)

	h.transport.ClientToggle(h.ctx, hogsvc.ReportMouse, hogsvc.ModeReport, true)
	h.waitSubscriptionChanged(t, hogsvc.ReportMouse, true)

	h.transport.SetSendError(errors.New("tx queue full"))
	h.svc.PublishMouse(h.ctx, hogsvc.MouseMotion{DX: 1})
	time.Sleep(200 * time.Millisecond)
	assert.Empty(t, h.transport.Sends())

	// The next sample goes through once the link recovers.
	h.transport.SetSendError(nil)
	h.svc.PublishMouse(h.ctx, hogsvc.MouseMotion{DX: 2})
	h.waitSends(t, 1)
}

func TestPeerRegistration(t *testing.T) {
	h := startService(t, nil)

	h.transport.ClientConnect(h.ctx, "aa:bb:cc:dd:ee:ff")
	require.Eventually(t, func() bool {
		peers := h.transport.Peers()
		return len(peers) == 1 && peers[0] == "aa:bb:cc:dd:ee:ff"
	}, waitTimeout, 10*time.Millisecond)

	// The security milestone needs no action.
	h.transport.ClientSecured(h.ctx, "aa:bb:cc:dd:ee:ff")

	h.transport.ClientDisconnect(h.ctx, "aa:bb:cc:dd:ee:ff")
	require.Eventually(t, func() bool {
		return len(h.transport.Peers()) == 0
	}, waitTimeout, 10*time.Millisecond)
}

func TestPeerSubscriptionsRestoredOnReconnect(t *testing.T) {
	opts := badger.DefaultOptions(t.TempDir())
	opts.Logger = nil
	db, err := badger.Open(opts)
	require.NoError(t, err)
	t.Cleanup(func() {
		require.NoError(t, db.Close())
	})

	h1 := startService(t, db)
	h1.transport.ClientConnect(h1.ctx, "peer")
	h1.transport.ClientToggle(h1.ctx, hogsvc.ReportMouse, hogsvc.ModeReport, true)
	h1.waitSubscriptionChanged(t, hogsvc.ReportMouse, true)

	// A fresh service over the same store replays the CCCD state when the
	// bonded peer reconnects.
	h2 := startService(t, db)
	h2.transport.ClientConnect(h2.ctx, "peer")
	h2.waitSubscriptionChanged(t, hogsvc.ReportMouse, true)
}
