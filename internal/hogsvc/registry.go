package hogsvc

import (
	"fmt"
	"os"

	"github.com/blehid/hog-agent/internal/hogsvc/hidreport"
	"github.com/goccy/go-yaml"
)

// Config is the agent configuration consumed by the service. The report set
// is fixed for the process lifetime; changes to the file after startup are
// logged and ignored.
type Config struct {
	Reports hidreport.Config `json:"reports" yaml:"reports"`
}

// DefaultConfig enables every report.
var DefaultConfig = Config{
	Reports: hidreport.DefaultConfig,
}

// LoadConfig reads the agent configuration from a YAML file. A missing file
// yields the default configuration.
func LoadConfig(path string) (Config, error) {
	b, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return DefaultConfig, nil
	}
	if err != nil {
		return Config{}, fmt.Errorf("failed to read config %s: %w", path, err)
	}
	cfg := DefaultConfig
	if err := yaml.Unmarshal(b, &cfg); err != nil {
		return Config{}, fmt.Errorf("failed to parse config %s: %w", path, err)
	}
	return cfg, nil
}

// RegistryEntry describes one enabled report.
type RegistryEntry struct {
	// ID is the report ID used on the wire in report protocol.
	ID uint8
	// Size is the fixed report payload size in bytes.
	Size int
	// Index is the position of the report in the transport's report table,
	// assigned sequentially among enabled reports.
	Index int
}

// Registry is the static mapping from logical reports to their wire
// attributes. It is built once from the configuration and never mutated.
type Registry struct {
	order   []Report
	entries map[Report]RegistryEntry
}

// NewRegistry builds the registry for the enabled reports. Transport indices
// are assigned in mouse, keyboard, media player order.
func NewRegistry(cfg hidreport.Config) *Registry {
	r := &Registry{
		entries: make(map[Report]RegistryEntry),
	}
	if cfg.Mouse {
		r.add(ReportMouse, hidreport.MouseReportSize)
	}
	if cfg.Keyboard {
		r.add(ReportKeyboard, hidreport.KeyboardReportSize)
	}
	if cfg.MediaPlayer {
		r.add(ReportMediaPlayer, hidreport.MediaPlayerReportSize)
	}
	return r
}

func (r *Registry) add(report Report, size int) {
	r.entries[report] = RegistryEntry{
		ID:    uint8(report),
		Size:  size,
		Index: len(r.order),
	}
	r.order = append(r.order, report)
}

// Lookup returns the entry for a report, or false if the report is not
// enabled.
func (r *Registry) Lookup(report Report) (RegistryEntry, bool) {
	e, ok := r.entries[report]
	return e, ok
}

// mustLookup is for call sites where the report comes from this module's own
// dispatch tables. An unknown report there is a programming error.
func (r *Registry) mustLookup(report Report) RegistryEntry {
	e, ok := r.entries[report]
	if !ok {
		panic(fmt.Sprintf("hogsvc: report %s is not registered", report))
	}
	return e
}

// Reports returns the enabled reports in transport-table order.
func (r *Registry) Reports() []Report {
	return r.order
}
