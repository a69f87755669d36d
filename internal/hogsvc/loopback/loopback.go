// Package loopback implements an in-process hogsvc.Transport. It records
// every dispatched report and lets a driver play the GATT client side:
// connecting peers, writing CCCDs and switching protocol mode. It backs the
// service tests and running the agent without a radio.
package loopback

import (
	"context"
	"sync"

	"github.com/blehid/hog-agent/internal/hogsvc"
	"go.uber.org/zap"
)

type SendKind uint8

const (
	SendReport SendKind = iota
	SendBootMouse
	SendBootKeyboard
)

// Send is one recorded transmission.
type Send struct {
	Kind   SendKind
	Report hogsvc.Report
	Index  int
	Data   []byte
}

type Transport struct {
	log   *zap.Logger
	ready chan struct{}

	mu      sync.Mutex
	pub     hogsvc.TransportPublisher
	ctx     context.Context
	sends   []Send
	peers   []string
	sendErr error
}

func New(log *zap.Logger) *Transport {
	return &Transport{
		log:   log,
		ready: make(chan struct{}),
	}
}

func (t *Transport) Start(ctx context.Context, pub hogsvc.TransportPublisher) error {
	t.mu.Lock()
	t.pub = pub
	t.ctx = ctx
	t.mu.Unlock()
	close(t.ready)
	t.log.Info("Loopback transport started")
	<-ctx.Done()
	return nil
}

func (t *Transport) Ready() <-chan struct{} {
	return t.ready
}

func (t *Transport) SendReport(report hogsvc.Report, index int, data []byte) error {
	return t.record(Send{Kind: SendReport, Report: report, Index: index, Data: data})
}

func (t *Transport) SendBootMouse(data []byte) error {
	return t.record(Send{Kind: SendBootMouse, Report: hogsvc.ReportMouse, Data: data})
}

func (t *Transport) SendBootKeyboard(data []byte) error {
	return t.record(Send{Kind: SendBootKeyboard, Report: hogsvc.ReportKeyboard, Data: data})
}

func (t *Transport) record(send Send) error {
	t.mu.Lock()
	if err := t.sendErr; err != nil {
		t.mu.Unlock()
		return err
	}
	send.Data = append([]byte(nil), send.Data...)
	t.sends = append(t.sends, send)
	pub, ctx := t.pub, t.ctx
	t.mu.Unlock()
	// Completion is asynchronous, as on a real link.
	go pub(ctx, hogsvc.TransportEvent{
		Sent: &hogsvc.SendCompleted{Report: send.Report},
	})
	return nil
}

func (t *Transport) NotifyConnected(peer string) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.peers = append(t.peers, peer)
	return nil
}

func (t *Transport) NotifyDisconnected(peer string) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	for i, p := range t.peers {
		if p == peer {
			t.peers = append(t.peers[:i], t.peers[i+1:]...)
			break
		}
	}
	return nil
}

// Sends returns a copy of all recorded transmissions.
func (t *Transport) Sends() []Send {
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([]Send(nil), t.sends...)
}

// Peers returns the peers currently registered with the transport.
func (t *Transport) Peers() []string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([]string(nil), t.peers...)
}

// SetSendError makes subsequent Send calls fail with err. Pass nil to heal.
func (t *Transport) SetSendError(err error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.sendErr = err
}

// Client simulation. These publish the transport events a GATT client would
// cause and may only be called after Start.

func (t *Transport) ClientConnect(ctx context.Context, peer string) {
	t.publish(ctx, hogsvc.TransportEvent{
		Peer: &hogsvc.PeerEvent{Peer: peer, State: hogsvc.PeerConnected},
	})
}

func (t *Transport) ClientDisconnect(ctx context.Context, peer string) {
	t.publish(ctx, hogsvc.TransportEvent{
		Peer: &hogsvc.PeerEvent{Peer: peer, State: hogsvc.PeerDisconnected},
	})
}

func (t *Transport) ClientSecured(ctx context.Context, peer string) {
	t.publish(ctx, hogsvc.TransportEvent{
		Peer: &hogsvc.PeerEvent{Peer: peer, State: hogsvc.PeerSecured},
	})
}

func (t *Transport) ClientSetProtocolMode(ctx context.Context, mode hogsvc.ProtocolMode) {
	t.publish(ctx, hogsvc.TransportEvent{
		ProtocolMode: &hogsvc.ProtocolModeChanged{Mode: mode},
	})
}

func (t *Transport) ClientToggle(ctx context.Context, report hogsvc.Report, mode hogsvc.ProtocolMode, enabled bool) {
	t.publish(ctx, hogsvc.TransportEvent{
		Notification: &hogsvc.NotificationToggled{Report: report, Mode: mode, Enabled: enabled},
	})
}

func (t *Transport) publish(ctx context.Context, event hogsvc.TransportEvent) {
	t.mu.Lock()
	pub := t.pub
	t.mu.Unlock()
	if pub == nil {
		panic("loopback: transport is not started")
	}
	pub(ctx, event)
}
