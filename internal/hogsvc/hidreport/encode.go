// Package hidreport defines the HID report layouts of the agent and encodes
// input state into the exact byte buffers the report map declares.
package hidreport

import "encoding/binary"

// Report IDs as declared in the report map. ID 0 is reserved by HID.
const (
	ReportIDMouse       uint8 = 1
	ReportIDKeyboard    uint8 = 2
	ReportIDMediaPlayer uint8 = 3
)

// Report payload sizes in bytes, excluding the report ID.
const (
	MouseReportSize       = 5
	KeyboardReportSize    = 9
	MediaPlayerReportSize = 1

	BootMouseReportSize    = 3
	BootKeyboardReportSize = 8

	// KeyboardKeyCount is the size of the pressed-key array in the keyboard
	// report (report size minus modifier, reserved and LED bytes).
	KeyboardKeyCount = KeyboardReportSize - 3
)

// Logical value ranges declared in the report map.
const (
	mouseWheelMax = 0x7f
	mouseAxisMax  = 0x07ff
)

// Media player key bits, in report map declaration order.
const (
	MediaKeyPlayPause uint8 = 1 << iota
	MediaKeyConsumerConfig
	MediaKeyNextTrack
	MediaKeyPrevTrack
	MediaKeyVolumeDown
	MediaKeyVolumeUp
	MediaKeyForward
	MediaKeyBack
)

func clamp16(v, min, max int16) int16 {
	if v > max {
		return max
	}
	if v < min {
		return min
	}
	return v
}

// Mouse encodes a relative mouse sample into the 5-byte report-protocol form:
//
//	byte 0: button bitmap
//	byte 1: wheel, clamped to [-127, 127]
//	byte 2: x bits 0..7
//	byte 3: y bits 0..3 << 4 | x bits 8..11
//	byte 4: y bits 4..11
//
// X and Y are 12-bit fields clamped to [-2047, 2047] and packed little-endian.
func Mouse(dx, dy, wheel int16, buttons uint8) []byte {
	wheel = clamp16(wheel, -mouseWheelMax, mouseWheelMax)
	x := clamp16(dx, -mouseAxisMax, mouseAxisMax)
	y := clamp16(dy, -mouseAxisMax, mouseAxisMax)

	var xb, yb [2]byte
	binary.LittleEndian.PutUint16(xb[:], uint16(x))
	binary.LittleEndian.PutUint16(yb[:], uint16(y))

	buf := make([]byte, MouseReportSize)
	buf[0] = buttons
	buf[1] = uint8(wheel)
	buf[2] = xb[0]
	buf[3] = yb[0]<<4 | xb[1]&0x0f
	buf[4] = yb[1]<<4 | yb[0]>>4
	return buf
}

// BootMouse encodes a relative mouse sample into the fixed boot-protocol form:
// button bitmap followed by one signed byte per axis. The wheel has no place
// in the boot report and is dropped.
func BootMouse(dx, dy int16, buttons uint8) []byte {
	x := clamp16(dx, -128, 127)
	y := clamp16(dy, -128, 127)
	return []byte{buttons, uint8(int8(x)), uint8(int8(y))}
}

// Keyboard encodes keyboard state into the 9-byte form: modifier bitmap,
// reserved byte, six key codes and a trailing LED placeholder. The agent does
// not consume LED output reports, so the placeholder is always zero.
//
// The boot-protocol keyboard report is the same buffer truncated to
// BootKeyboardReportSize.
func Keyboard(modifiers uint8, keys [KeyboardKeyCount]uint8) []byte {
	buf := make([]byte, KeyboardReportSize)
	buf[0] = modifiers
	buf[1] = 0
	copy(buf[2:], keys[:])
	buf[KeyboardReportSize-1] = 0
	return buf
}

// MediaPlayer encodes the 1-byte consumer-control report. The bitmap maps
// one-to-one onto the usages declared in the report map, so it passes through
// unchanged.
func MediaPlayer(keys uint8) []byte {
	return []byte{keys}
}
