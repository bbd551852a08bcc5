package service

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"github.com/zappabad/optionboard/internal/diag"
	diagview "github.com/zappabad/optionboard/internal/diag/view"
)

// DiagService records diagnostics and fans them out to subscribers.
// Report never blocks the caller.
type DiagService struct {
	cfg  Config
	log  zerolog.Logger
	view *diagview.DiagView

	idGen atomic.Int64

	internalEvents chan diagview.DiagEvent
	externalEvents chan diagview.DiagEvent
	droppedEvents  atomic.Int64
	droppedReports atomic.Int64

	closed    chan struct{}
	closeOnce sync.Once
	wg        sync.WaitGroup
}

// NewDiagService creates a new DiagService.
func NewDiagService(cfg Config, log zerolog.Logger) *DiagService {
	def := DefaultConfig()
	if cfg.FeedSize <= 0 {
		cfg.FeedSize = def.FeedSize
	}
	if cfg.EventBuffer <= 0 {
		cfg.EventBuffer = def.EventBuffer
	}
	if cfg.ExternalEventBuffer <= 0 {
		cfg.ExternalEventBuffer = def.ExternalEventBuffer
	}

	s := &DiagService{
		cfg:            cfg,
		log:            log.With().Str("component", "diag").Logger(),
		view:           diagview.NewDiagView(cfg.FeedSize),
		internalEvents: make(chan diagview.DiagEvent, cfg.EventBuffer),
		externalEvents: make(chan diagview.DiagEvent, cfg.ExternalEventBuffer),
		closed:         make(chan struct{}),
	}

	s.wg.Add(1)
	go s.runEventDispatcher()

	return s
}

func (s *DiagService) runEventDispatcher() {
	defer s.wg.Done()
	defer close(s.externalEvents)

	for {
		select {
		case <-s.closed:
			return
		case ev := <-s.internalEvents:
			s.view.Apply(ev)

			if s.cfg.DropExternalEvents {
				select {
				case s.externalEvents <- ev:
				default:
					s.droppedEvents.Add(1)
				}
			} else {
				select {
				case s.externalEvents <- ev:
				case <-s.closed:
					return
				}
			}
		}
	}
}

// Report records d. ID and Time are filled in when missing.
func (s *DiagService) Report(d diag.Diagnostic) {
	if d.ID == 0 {
		d.ID = diag.ID(s.idGen.Add(1))
	}
	if d.Time == 0 {
		d.Time = time.Now().UnixNano()
	}

	s.logDiagnostic(d)

	select {
	case <-s.closed:
		return
	default:
	}
	select {
	case s.internalEvents <- diagview.DiagEvent{Item: d}:
	default:
		s.droppedReports.Add(1)
	}
}

func (s *DiagService) logDiagnostic(d diag.Diagnostic) {
	var ev *zerolog.Event
	switch d.Severity {
	case diag.SeverityError:
		ev = s.log.Error()
	case diag.SeverityWarning:
		ev = s.log.Warn()
	default:
		ev = s.log.Info()
	}
	ev = ev.Str("source", string(d.Source))
	if d.RequestID != 0 {
		ev = ev.Int64("req_id", int64(d.RequestID))
	}
	if d.Command != "" {
		ev = ev.Str("command", d.Command)
	}
	if d.Code != 0 {
		ev = ev.Int("code", d.Code)
	}
	ev.Msg(d.Message)
}

// Latest returns the last n diagnostics.
func (s *DiagService) Latest(n int) []diag.Diagnostic {
	return s.view.Latest(n)
}

// Total returns the number of diagnostics recorded so far.
func (s *DiagService) Total() int64 {
	return s.view.Total()
}

// Events returns the external events channel for subscribers.
func (s *DiagService) Events() <-chan diagview.DiagEvent {
	return s.externalEvents
}

// DroppedEvents returns the count of dropped external events.
func (s *DiagService) DroppedEvents() int64 {
	return s.droppedEvents.Load()
}

// DroppedReports returns the count of reports dropped because the
// internal buffer was full.
func (s *DiagService) DroppedReports() int64 {
	return s.droppedReports.Load()
}

// Close shuts down the service.
func (s *DiagService) Close() {
	s.closeOnce.Do(func() {
		close(s.closed)
	})
	s.wg.Wait()
}
