package hogsvc

import (
	"context"

	"github.com/blehid/hog-agent/pkg/bus"
)

type (
	// TransportBus carries transport-originated events keyed by transport
	// name.
	TransportBus       = bus.Bus[string, TransportEvent]
	TransportPublisher = bus.Publisher[TransportEvent]

	// InputBus carries input samples keyed by the report they target.
	InputBus        = bus.Bus[Report, InputEvent]
	InputPublisher  = bus.Publisher[InputEvent]
	InputSubscriber = bus.Subscriber[Report, InputEvent]

	// EventBus carries the service's outward notifications keyed by report.
	EventBus        = bus.Bus[Report, Event]
	EventSubscriber = bus.Subscriber[Report, Event]
)

// Transport is the GATT layer the service dispatches encoded reports to. The
// HID service characteristics, connection security and CCCD bookkeeping all
// live behind this interface.
//
// Start must publish TransportEvents for protocol mode changes, CCCD writes,
// peer lifecycle changes and send completions, and block until the context
// ends. Send methods are fire-and-forget: a nil error means the notification
// was queued, and completion is reported asynchronously as a SendCompleted
// event.
type Transport interface {
	Start(ctx context.Context, pub TransportPublisher) error
	Ready() <-chan struct{}

	// SendReport notifies an input report characteristic by its report-table
	// index. The report identity is echoed back in the completion event.
	SendReport(report Report, index int, data []byte) error
	// SendBootMouse and SendBootKeyboard notify the dedicated boot protocol
	// characteristics, which are not part of the indexed report table.
	SendBootMouse(data []byte) error
	SendBootKeyboard(data []byte) error

	// NotifyConnected and NotifyDisconnected inform the GATT layer about the
	// peer so it can track CCCD state per connection.
	NotifyConnected(peer string) error
	NotifyDisconnected(peer string) error
}
