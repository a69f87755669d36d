// Package hogsvc implements the HID-over-GATT report pipeline of the agent:
// it reconciles the peer's protocol mode and per-report notification state
// into effective subscriptions, encodes input events into the report layouts
// declared by the report map, and dispatches them to the GATT transport.
package hogsvc

import (
	"context"
	"fmt"
	"time"

	"github.com/blehid/hog-agent/internal/configsvc"
	"github.com/blehid/hog-agent/internal/hogsvc/hidreport"
	"github.com/blehid/hog-agent/pkg/bus"
	"github.com/dgraph-io/badger"
	"go.uber.org/zap"
)

// transportKey identifies the GATT transport on the transport bus.
const transportKey = "gatt"

type Service struct {
	log     *zap.Logger
	cfg     Config
	options serviceOptions
	ready   chan struct{}

	registry *Registry
	recon    *Reconciler
	store    *peerStore

	// peer is the currently connected peer, empty when disconnected. The
	// design assumes a single active peer at a time.
	peer string

	transportBus *TransportBus
	inputBus     *InputBus
	events       *EventBus
}

var defaultOptions = serviceOptions{
	now:            time.Now,
	backoffTimeout: 5 * time.Second,
}

type serviceOptions struct {
	transport      Transport
	now            func() time.Time
	backoffTimeout time.Duration

	configSvc  *configsvc.Service
	configPath string
}

type Option func(*serviceOptions)

// WithTransport sets the GATT transport the service dispatches reports to.
func WithTransport(t Transport) Option {
	return func(o *serviceOptions) {
		o.transport = t
	}
}

// WithClock overrides the clock used for peer record timestamps.
func WithClock(now func() time.Time) Option {
	return func(o *serviceOptions) {
		o.now = now
	}
}

// WithBackoffTimeout sets the delay before a failed transport is restarted.
func WithBackoffTimeout(d time.Duration) Option {
	return func(o *serviceOptions) {
		o.backoffTimeout = d
	}
}

// WithConfigWatch loads the configuration from path at startup and watches it
// for changes. The report set is fixed for the process lifetime, so changes
// only produce a log message until the agent restarts.
func WithConfigWatch(svc *configsvc.Service, path string) Option {
	return func(o *serviceOptions) {
		o.configSvc = svc
		o.configPath = path
	}
}

// New creates the service. db may be nil to disable peer state persistence.
func New(log *zap.Logger, db *badger.DB, cfg Config, opts ...Option) *Service {
	options := defaultOptions
	for _, opt := range opts {
		opt(&options)
	}
	return &Service{
		log:     log,
		cfg:     cfg,
		options: options,
		ready:   make(chan struct{}),
		store:   &peerStore{db: db, now: options.now},

		transportBus: bus.NewBus[string, TransportEvent](log),
		inputBus:     bus.NewBus[Report, InputEvent](log),
		events:       bus.NewBus[Report, Event](log),
	}
}

// Start runs the service until the context ends. It must be running before
// producers publish input events.
func (s *Service) Start(ctx context.Context) error {
	if s.options.transport == nil {
		return fmt.Errorf("no transport configured")
	}
	if s.options.configSvc != nil {
		select {
		case <-ctx.Done():
			return nil
		case <-s.options.configSvc.Ready():
		}
		cfg, err := configsvc.Register(s.options.configSvc, s.options.configPath, s.cfg, func(cfg Config, err error) {
			if err != nil {
				s.log.Error("Failed to reload config", zap.Error(err))
				return
			}
			s.log.Warn("Report configuration changed; the report set is fixed at startup, restart to apply")
		})
		if err != nil {
			return fmt.Errorf("failed to register config: %w", err)
		}
		s.cfg = cfg
	}

	s.registry = NewRegistry(s.cfg.Reports)
	s.recon = NewReconciler(s.log.Named("recon"), s.registry, s.broadcastSubscription)

	for _, b := range []interface {
		Start(ctx context.Context) error
		Ready() <-chan struct{}
	}{s.transportBus, s.inputBus, s.events} {
		if err := b.Start(ctx); err != nil {
			return fmt.Errorf("failed to start bus: %w", err)
		}
		select {
		case <-ctx.Done():
			return nil
		case <-b.Ready():
		}
	}

	s.consumeEvents(ctx)

	go s.runTransport(ctx)
	select {
	case <-ctx.Done():
		return nil
	case <-s.options.transport.Ready():
	}

	close(s.ready)
	s.log.Info("Service started", zap.Int("reports", len(s.registry.Reports())))
	<-ctx.Done()
	return nil
}

func (s *Service) Ready() <-chan struct{} {
	return s.ready
}

// ReportMap returns the HID report descriptor for the configured report set.
func (s *Service) ReportMap() []byte {
	return hidreport.ReportMap(s.cfg.Reports)
}

// Events returns the bus carrying SubscriptionChanged and ReportSent
// notifications, keyed by report.
func (s *Service) Events() *EventBus {
	return s.events
}

// Inputs returns the bus input producers publish on.
func (s *Service) Inputs() *InputBus {
	return s.inputBus
}

// PublishMouse publishes a mouse sample for dispatch.
func (s *Service) PublishMouse(ctx context.Context, event MouseMotion) {
	s.inputBus.Publish(ctx, ReportMouse, InputEvent{Mouse: &event})
}

// PublishKeyboard publishes a keyboard state for dispatch.
func (s *Service) PublishKeyboard(ctx context.Context, event KeyboardState) {
	s.inputBus.Publish(ctx, ReportKeyboard, InputEvent{Keyboard: &event})
}

// PublishMediaPlayer publishes a media key bitmap for dispatch.
func (s *Service) PublishMediaPlayer(ctx context.Context, event MediaPlayerKeys) {
	s.inputBus.Publish(ctx, ReportMediaPlayer, InputEvent{MediaPlayer: &event})
}

func (s *Service) runTransport(ctx context.Context) {
	pub := s.transportBus.CreatePublisher(transportKey)
	for {
		err := s.options.transport.Start(ctx, pub)
		if err != nil {
			s.log.Error("Transport failed", zap.Error(err))
		}
		select {
		case <-ctx.Done():
			return
		case <-time.After(s.options.backoffTimeout):
			s.log.Info("Restarting transport")
		}
	}
}

// consumeEvents starts the single goroutine that serializes all state
// transitions. The reconciler and peer bookkeeping are only ever touched
// from here.
func (s *Service) consumeEvents(ctx context.Context) {
	transportCh := s.transportBus.Subscribe(ctx)
	inputCh := s.inputBus.Subscribe(ctx)
	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case msg := <-transportCh:
				s.handleTransportEvent(ctx, msg.Message)
			case msg := <-inputCh:
				s.handleInputEvent(ctx, msg.Key, msg.Message)
			}
		}
	}()
}

func (s *Service) handleTransportEvent(ctx context.Context, event TransportEvent) {
	switch {
	case event.ProtocolMode != nil:
		s.recon.HandleProtocolMode(ctx, event.ProtocolMode.Mode)
		s.persistPeerState()
	case event.Notification != nil:
		s.recon.HandleToggle(ctx, event.Notification.Report, event.Notification.Mode, event.Notification.Enabled)
		s.persistPeerState()
	case event.Peer != nil:
		s.handlePeerEvent(ctx, event.Peer)
	case event.Sent != nil:
		s.handleSendCompleted(ctx, event.Sent)
	case event.SendFailed != nil:
		s.handleSendFailed(event.SendFailed)
	default:
		s.log.Warn("Ignoring empty transport event")
	}
}

func (s *Service) handlePeerEvent(ctx context.Context, event *PeerEvent) {
	switch event.State {
	case PeerConnected:
		s.log.Info("Peer connected", zap.String("peer", event.Peer))
		s.peer = event.Peer
		if err := s.transport().NotifyConnected(event.Peer); err != nil {
			s.log.Error("Failed to notify the HID service about the connection", zap.Error(err))
		}
		snap, err := s.store.load(event.Peer, s.registry)
		if err != nil {
			s.log.Error("Failed to load peer state", zap.Error(err))
			snap = DefaultSnapshot(s.registry)
		}
		s.recon.Restore(ctx, snap)
	case PeerDisconnected:
		s.log.Info("Peer disconnected", zap.String("peer", event.Peer))
		if err := s.transport().NotifyDisconnected(event.Peer); err != nil {
			s.log.Error("Failed to notify the HID service about the disconnection", zap.Error(err))
		}
		s.recon.Restore(ctx, DefaultSnapshot(s.registry))
		s.peer = ""
	case PeerSecured:
		// No action on the security milestone.
	default:
		s.log.Warn("Ignoring unknown peer event",
			zap.String("peer", event.Peer),
			zap.Uint8("state", uint8(event.State)))
	}
}

func (s *Service) persistPeerState() {
	if s.peer == "" {
		return
	}
	if err := s.store.save(s.peer, s.recon.Snapshot()); err != nil {
		s.log.Error("Failed to persist peer state", zap.Error(err))
	}
}

func (s *Service) broadcastSubscription(ctx context.Context, report Report, enabled bool) {
	s.events.Publish(ctx, report, Event{
		SubscriptionChanged: &SubscriptionChanged{Report: report, Enabled: enabled},
	})
}
