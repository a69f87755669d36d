package hogsvc

import (
	"fmt"

	"github.com/blehid/hog-agent/internal/hogsvc/hidreport"
)

// Report identifies one of the logical HID reports the agent can notify.
// The numeric value is the report ID declared in the report map.
type Report uint8

const (
	ReportMouse       Report = Report(hidreport.ReportIDMouse)
	ReportKeyboard    Report = Report(hidreport.ReportIDKeyboard)
	ReportMediaPlayer Report = Report(hidreport.ReportIDMediaPlayer)
)

func (r Report) String() string {
	switch r {
	case ReportMouse:
		return "mouse"
	case ReportKeyboard:
		return "keyboard"
	case ReportMediaPlayer:
		return "mediaPlayer"
	default:
		return fmt.Sprintf("report(%d)", uint8(r))
	}
}

// ProtocolMode is the active HID protocol of the peer. A HoG peer starts in
// report protocol and may switch to boot protocol before it has parsed the
// report map.
type ProtocolMode uint8

const (
	ModeReport ProtocolMode = iota
	ModeBoot

	modeCount
)

func (m ProtocolMode) String() string {
	switch m {
	case ModeReport:
		return "report"
	case ModeBoot:
		return "boot"
	default:
		return fmt.Sprintf("mode(%d)", uint8(m))
	}
}

func (m ProtocolMode) valid() bool {
	return m < modeCount
}

// InputEvent is a union of the input samples producers publish on the input
// bus, keyed by the report they target. Exactly one field is set.
type InputEvent struct {
	Mouse       *MouseMotion
	Keyboard    *KeyboardState
	MediaPlayer *MediaPlayerKeys
}

// MouseMotion is a relative mouse sample in logical units.
type MouseMotion struct {
	DX      int16
	DY      int16
	Wheel   int16
	Buttons uint8
}

// KeyboardState is the full set of currently pressed keys.
type KeyboardState struct {
	Modifiers uint8
	Keys      [hidreport.KeyboardKeyCount]uint8
}

// MediaPlayerKeys is the consumer-control key bitmap, bit-mapped per the
// report map (hidreport.MediaKey* constants).
type MediaPlayerKeys struct {
	Keys uint8
}

// TransportEvent is a union of the events a Transport publishes. Exactly one
// field is set.
type TransportEvent struct {
	ProtocolMode *ProtocolModeChanged
	Notification *NotificationToggled
	Peer         *PeerEvent
	Sent         *SendCompleted
	SendFailed   *SendFailed
}

// ProtocolModeChanged reports that the peer switched HID protocol.
type ProtocolModeChanged struct {
	Mode ProtocolMode
}

// NotificationToggled reports a CCCD write: the peer enabled or disabled
// notifications for one report characteristic. Boot and report protocol
// characteristics have independent CCCDs, hence the Mode field.
type NotificationToggled struct {
	Report  Report
	Mode    ProtocolMode
	Enabled bool
}

type PeerState uint8

const (
	PeerConnected PeerState = iota
	PeerDisconnected
	PeerSecured
)

// PeerEvent reports a connection lifecycle change of the (single) peer.
type PeerEvent struct {
	Peer  string
	State PeerState
}

// SendCompleted reports that a previously dispatched notification has been
// transmitted.
type SendCompleted struct {
	Report Report
}

// SendFailed reports an asynchronous transmission failure. Sends are
// best-effort and never retried.
type SendFailed struct {
	Report Report
	Err    error
}

// Event is a union of the outward notifications the service publishes, keyed
// by report. Exactly one field is set.
type Event struct {
	SubscriptionChanged *SubscriptionChanged
	ReportSent          *ReportSent
}

// SubscriptionChanged is published when the effective deliverability of a
// report flips, and only then.
type SubscriptionChanged struct {
	Report  Report
	Enabled bool
}

// ReportSent is published on confirmed transmission of a report, letting
// producers pace their next sample.
type ReportSent struct {
	Report Report
}
