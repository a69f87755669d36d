package hidreport

import (
	"bytes"
	"testing"
)

func TestReportMap(t *testing.T) {
	tests := []struct {
		name    string
		cfg     Config
		size    int
		wantIDs []uint8
	}{
		{
			name:    "all reports",
			cfg:     DefaultConfig,
			size:    len(mouseReportMap) + len(keyboardReportMap) + len(mediaPlayerReportMap),
			wantIDs: []uint8{ReportIDMouse, ReportIDKeyboard, ReportIDMediaPlayer},
		},
		{
			name:    "mouse only",
			cfg:     Config{Mouse: true},
			size:    len(mouseReportMap),
			wantIDs: []uint8{ReportIDMouse},
		},
		{
			name:    "keyboard and media player",
			cfg:     Config{Keyboard: true, MediaPlayer: true},
			size:    len(keyboardReportMap) + len(mediaPlayerReportMap),
			wantIDs: []uint8{ReportIDKeyboard, ReportIDMediaPlayer},
		},
		{
			name: "empty",
			cfg:  Config{},
			size: 0,
		},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			m := ReportMap(test.cfg)
			if len(m) != test.size {
				t.Errorf("report map size %d, want %d", len(m), test.size)
			}
			for _, id := range []uint8{ReportIDMouse, ReportIDKeyboard, ReportIDMediaPlayer} {
				want := false
				for _, wantID := range test.wantIDs {
					if id == wantID {
						want = true
					}
				}
				if got := bytes.Contains(m, []byte{0x85, id}); got != want {
					t.Errorf("report ID %d present = %v, want %v", id, got, want)
				}
			}
		})
	}
}

func TestReportMapCollectionsBalanced(t *testing.T) {
	m := ReportMap(DefaultConfig)
	depth := 0
	for i := 0; i < len(m); {
		tag := m[i]
		size := int(tag & 0x03)
		if size == 3 {
			size = 4
		}
		switch tag & 0xfc {
		case 0xA0:
			depth++
		case 0xC0:
			depth--
		}
		if depth < 0 {
			t.Fatalf("unbalanced End Collection at offset %d", i)
		}
		i += 1 + size
	}
	if depth != 0 {
		t.Errorf("unbalanced collections, depth %d at end of map", depth)
	}
}
