package hidreport

// HID information exposed by the HID service alongside the report map.
const (
	// HIDVersion is the bcdHID value (USB HID spec 1.01).
	HIDVersion uint16 = 0x0101
	// CountryCode 0 means the device is not localized.
	CountryCode uint8 = 0x00
)

// HID information flag bits.
const (
	FlagRemoteWake uint8 = 1 << iota
	FlagNormallyConnectable
)

// Config selects which report collections are present. Registry indices,
// subscription tracking and the report map all derive from it.
type Config struct {
	Mouse       bool `json:"mouse" yaml:"mouse"`
	Keyboard    bool `json:"keyboard" yaml:"keyboard"`
	MediaPlayer bool `json:"mediaPlayer" yaml:"mediaPlayer"`
}

// DefaultConfig enables every report.
var DefaultConfig = Config{
	Mouse:       true,
	Keyboard:    true,
	MediaPlayer: true,
}

var mouseReportMap = []byte{
	0x05, 0x01, // Usage Page (Generic Desktop)
	0x09, 0x02, // Usage (Mouse)

	0xA1, 0x01, // Collection (Application)

	0x09, 0x01, // Usage (Pointer)
	0xA1, 0x00, // Collection (Physical)
	0x85, ReportIDMouse, // Report ID
	0x75, 0x01, // Report Size (1)
	0x95, 0x08, // Report Count (8)
	0x05, 0x09, // Usage Page (Button)
	0x19, 0x01, // Usage Minimum (1)
	0x29, 0x08, // Usage Maximum (8)
	0x15, 0x00, // Logical Minimum (0)
	0x25, 0x01, // Logical Maximum (1)
	0x81, 0x02, // Input (Data, Variable, Absolute)

	0x75, 0x08, // Report Size (8)
	0x95, 0x01, // Report Count (1)
	0x05, 0x01, // Usage Page (Generic Desktop)
	0x09, 0x38, // Usage (Wheel)
	0x15, 0x81, // Logical Minimum (-127)
	0x25, 0x7F, // Logical Maximum (127)
	0x81, 0x06, // Input (Data, Variable, Relative)

	0x75, 0x0C, // Report Size (12)
	0x95, 0x02, // Report Count (2)
	0x05, 0x01, // Usage Page (Generic Desktop)
	0x09, 0x30, // Usage (X)
	0x09, 0x31, // Usage (Y)
	0x16, 0x01, 0xF8, // Logical Minimum (-2047)
	0x26, 0xFF, 0x07, // Logical Maximum (2047)
	0x81, 0x06, // Input (Data, Variable, Relative)
	0xC0, // End Collection (Physical)
	0xC0, // End Collection (Application)
}

var keyboardReportMap = []byte{
	0x05, 0x01, // Usage Page (Generic Desktop)
	0x09, 0x06, // Usage (Keyboard)

	0xA1, 0x01, // Collection (Application)

	0x85, ReportIDKeyboard, // Report ID

	// Modifiers
	0x75, 0x01, // Report Size (1)
	0x95, 0x08, // Report Count (8)
	0x05, 0x07, // Usage Page (Key Codes)
	0x19, 0xE0, // Usage Minimum (Left Ctrl)
	0x29, 0xE7, // Usage Maximum (Right GUI)
	0x15, 0x00, // Logical Minimum (0)
	0x25, 0x01, // Logical Maximum (1)
	0x81, 0x02, // Input (Data, Variable, Absolute)

	// Reserved
	0x75, 0x08, // Report Size (8)
	0x95, 0x01, // Report Count (1)
	0x81, 0x01, // Input (Constant)

	// Pressed keys
	0x75, 0x08, // Report Size (8)
	0x95, 0x06, // Report Count (6)
	0x05, 0x07, // Usage Page (Key Codes)
	0x15, 0x00, // Logical Minimum (0)
	0x25, 0x65, // Logical Maximum (101)
	0x19, 0x00, // Usage Minimum (0)
	0x29, 0x65, // Usage Maximum (101)
	0x81, 0x00, // Input (Data, Array)

	// LEDs
	0x95, 0x05, // Report Count (5)
	0x75, 0x01, // Report Size (1)
	0x05, 0x08, // Usage Page (LEDs)
	0x19, 0x01, // Usage Minimum (1)
	0x29, 0x05, // Usage Maximum (5)
	0x91, 0x02, // Output (Data, Variable, Absolute)

	// LEDs padding
	0x95, 0x01, // Report Count (1)
	0x75, 0x03, // Report Size (3)
	0x91, 0x01, // Output (Constant)

	0xC0, // End Collection (Application)
}

var mediaPlayerReportMap = []byte{
	0x05, 0x0C, // Usage Page (Consumer)
	0x09, 0x01, // Usage (Consumer Control)

	0xA1, 0x01, // Collection (Application)

	0x85, ReportIDMediaPlayer, // Report ID
	0x15, 0x00, // Logical Minimum (0)
	0x25, 0x01, // Logical Maximum (1)
	0x75, 0x01, // Report Size (1)
	0x95, 0x01, // Report Count (1)

	0x09, 0xCD, // Usage (Play/Pause)
	0x81, 0x06, // Input (Data, Variable, Relative)
	0x0A, 0x83, 0x01, // Usage (Consumer Control Configuration)
	0x81, 0x06, // Input (Data, Variable, Relative)
	0x09, 0xB5, // Usage (Scan Next Track)
	0x81, 0x06, // Input (Data, Variable, Relative)
	0x09, 0xB6, // Usage (Scan Previous Track)
	0x81, 0x06, // Input (Data, Variable, Relative)

	0x09, 0xEA, // Usage (Volume Down)
	0x81, 0x06, // Input (Data, Variable, Relative)
	0x09, 0xE9, // Usage (Volume Up)
	0x81, 0x06, // Input (Data, Variable, Relative)
	0x0A, 0x25, 0x02, // Usage (AC Forward)
	0x81, 0x06, // Input (Data, Variable, Relative)
	0x0A, 0x24, 0x02, // Usage (AC Back)
	0x81, 0x06, // Input (Data, Variable, Relative)
	0xC0, // End Collection
}

// ReportMap assembles the HID report descriptor for the enabled reports.
func ReportMap(cfg Config) []byte {
	var m []byte
	if cfg.Mouse {
		m = append(m, mouseReportMap...)
	}
	if cfg.Keyboard {
		m = append(m, keyboardReportMap...)
	}
	if cfg.MediaPlayer {
		m = append(m, mediaPlayerReportMap...)
	}
	return m
}
