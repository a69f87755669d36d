package hogsvc

import (
	"context"

	"github.com/blehid/hog-agent/internal/hogsvc/hidreport"
	"go.uber.org/zap"
)

// The dispatcher encodes an input sample using the form matching the active
// protocol mode and hands it to the transport. Boot protocol reports go
// through the dedicated boot characteristics; everything else goes through
// the indexed report table.
//
// Send errors are logged and dropped. Reports are best-effort: the next
// sample supersedes a lost one, so there is nothing useful to retry.

func (s *Service) handleInputEvent(ctx context.Context, report Report, event InputEvent) {
	switch {
	case event.Mouse != nil:
		s.sendMouse(event.Mouse)
	case event.Keyboard != nil:
		s.sendKeyboard(event.Keyboard)
	case event.MediaPlayer != nil:
		s.sendMediaPlayer(event.MediaPlayer)
	default:
		s.log.Warn("Ignoring empty input event", zap.Stringer("report", report))
	}
}

func (s *Service) sendMouse(event *MouseMotion) {
	entry := s.registry.mustLookup(ReportMouse)
	var err error
	if s.recon.Mode() == ModeBoot {
		err = s.transport().SendBootMouse(hidreport.BootMouse(event.DX, event.DY, event.Buttons))
	} else {
		buf := hidreport.Mouse(event.DX, event.DY, event.Wheel, event.Buttons)
		err = s.transport().SendReport(ReportMouse, entry.Index, buf)
	}
	if err != nil {
		s.log.Error("Failed to send mouse report", zap.Error(err))
	}
}

func (s *Service) sendKeyboard(event *KeyboardState) {
	entry := s.registry.mustLookup(ReportKeyboard)
	buf := hidreport.Keyboard(event.Modifiers, event.Keys)
	var err error
	if s.recon.Mode() == ModeBoot {
		// The boot keyboard report omits the trailing LED byte.
		err = s.transport().SendBootKeyboard(buf[:hidreport.BootKeyboardReportSize])
	} else {
		err = s.transport().SendReport(ReportKeyboard, entry.Index, buf)
	}
	if err != nil {
		s.log.Error("Failed to send keyboard report", zap.Error(err))
	}
}

func (s *Service) sendMediaPlayer(event *MediaPlayerKeys) {
	entry := s.registry.mustLookup(ReportMediaPlayer)
	if s.recon.Mode() == ModeBoot {
		// The media player report has no boot protocol form.
		s.log.Warn("Dropping media player report in boot mode")
		return
	}
	err := s.transport().SendReport(ReportMediaPlayer, entry.Index, hidreport.MediaPlayer(event.Keys))
	if err != nil {
		s.log.Error("Failed to send media player report", zap.Error(err))
	}
}

func (s *Service) handleSendCompleted(ctx context.Context, event *SendCompleted) {
	s.events.Publish(ctx, event.Report, Event{
		ReportSent: &ReportSent{Report: event.Report},
	})
}

func (s *Service) handleSendFailed(event *SendFailed) {
	s.log.Error("Report transmission failed",
		zap.Stringer("report", event.Report),
		zap.Error(event.Err))
}

func (s *Service) transport() Transport {
	if s.options.transport == nil {
		panic("hogsvc: no transport configured")
	}
	return s.options.transport
}
