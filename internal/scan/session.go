package scan

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/zombor/mrz-scanner/internal/capture"
	"github.com/zombor/mrz-scanner/internal/exposure"
	"github.com/zombor/mrz-scanner/internal/imaging"
	"github.com/zombor/mrz-scanner/internal/mrz"
	"github.com/zombor/mrz-scanner/internal/ocr"
)

// Phase is the coarse state of a session
type Phase int

const (
	Idle Phase = iota
	Capturing
	Scanning
	Terminated
)

func (p Phase) String() string {
	switch p {
	case Idle:
		return "idle"
	case Capturing:
		return "capturing"
	case Scanning:
		return "scanning"
	case Terminated:
		return "terminated"
	default:
		return fmt.Sprintf("phase(%d)", int(p))
	}
}

// OutcomeKind is how a session ended
type OutcomeKind int

const (
	Succeeded OutcomeKind = iota + 1
	Aborted
)

// Outcome is delivered exactly once per session
type Outcome struct {
	Kind   OutcomeKind
	Result *Result // set when Kind is Succeeded
}

// State is a snapshot of a session
type State struct {
	Phase    Phase
	Attempts int
	Outcome  OutcomeKind // set when Phase is Terminated
}

// Handler receives the terminal outcome of a session. Both callbacks are
// required.
type Handler struct {
	OnSuccess func(Result)
	OnAbort   func()
}

// Session drives the capture scheduler for one document scan
type Session struct {
	cfg       Config
	source    capture.Source
	engine    ocr.Engine
	validator Validator
	exposure  *exposure.Controller
	preproc   *imaging.Preprocessor
	snapshots SnapshotStore
	handler   Handler

	mu       sync.Mutex
	phase    Phase
	outcome  OutcomeKind
	attempts int // counted against the shot budget
	total    int
	looping  bool
	ctx      context.Context
	cancel   context.CancelFunc
	release  func() bool

	done chan Outcome
	wg   sync.WaitGroup
}

// NewSession configures the capture source and creates an idle session.
// It fails when the handler is incomplete or the source cannot be configured.
func NewSession(cfg Config, deps Deps, handler Handler) (*Session, error) {
	if handler.OnSuccess == nil || handler.OnAbort == nil {
		return nil, ErrMissingHandler
	}
	if deps.Source == nil {
		return nil, fmt.Errorf("capture source is required")
	}
	if deps.Engine == nil {
		return nil, fmt.Errorf("ocr engine is required")
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}

	if err := deps.Source.Configure(cfg.Capture); err != nil {
		return nil, fmt.Errorf("configuring capture source: %w", err)
	}

	filters := deps.Filters
	if filters == nil {
		params := imaging.DefaultParams()
		if cfg.PostProcessingFiltersVisible {
			params = imaging.PreviewParams()
		}
		filters = imaging.NewChain(params)
	}
	validator := deps.Validator
	if validator == nil {
		validator = mrz.NewValidator(cfg.Layout, cfg.Accuracy)
	}

	ctrl := exposure.NewController(cfg.defaultExposure())
	return &Session{
		cfg:       cfg,
		source:    deps.Source,
		engine:    deps.Engine,
		validator: validator,
		exposure:  ctrl,
		preproc:   imaging.NewPreprocessor(filters, ctrl, cfg.ExposureMode),
		snapshots: deps.Snapshots,
		handler:   handler,
		done:      make(chan Outcome, 1),
	}, nil
}

// Start begins capturing. In auto mode the first attempt is scheduled
// immediately. Cancelling ctx stops the session.
func (s *Session) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.phase != Idle {
		s.mu.Unlock()
		return ErrAlreadyStarted
	}
	s.ctx, s.cancel = context.WithCancel(ctx)
	s.phase = Capturing
	s.mu.Unlock()

	if err := s.source.Start(s.ctx); err != nil {
		slog.Error("Failed to start capture source", "error", err)
		s.Stop()
		return fmt.Errorf("starting capture source: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.phase == Terminated {
		// stopped while the source was starting
		_ = s.source.Stop()
		return nil
	}
	s.release = context.AfterFunc(ctx, func() { s.Stop() })
	if s.cfg.AutoMode {
		s.arm()
	}
	slog.Info("Scan session started", "auto", s.cfg.AutoMode, "layout", s.cfg.Layout, "accuracy", s.cfg.Accuracy)
	return nil
}

// Trigger resets the attempt budget and schedules attempts in manual mode
func (s *Session) Trigger() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch {
	case s.cfg.AutoMode:
		return ErrAutoMode
	case s.phase == Idle:
		return ErrNotStarted
	case s.phase == Terminated:
		return ErrTerminated
	}
	s.attempts = 0
	s.arm()
	return nil
}

// Stop cancels any pending or running attempt, halts the capture source and
// reports the abort unless the session already ended.
func (s *Session) Stop() {
	if !s.finish(Aborted) {
		return
	}
	if err := s.source.Stop(); err != nil {
		slog.Warn("Failed to stop capture source", "error", err)
	}
	slog.Info("Scan session aborted")
	s.deliver(Outcome{Kind: Aborted})
}

// Done is closed after the outcome has been sent on it
func (s *Session) Done() <-chan Outcome {
	return s.done
}

// State returns a snapshot of the session
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return State{Phase: s.phase, Attempts: s.attempts, Outcome: s.outcome}
}

// Exposure returns the exposure the next attempt will use
func (s *Session) Exposure() float64 {
	return s.exposure.Current()
}

// Wait blocks until background work has finished. A hung OCR call blocks it too.
func (s *Session) Wait() {
	s.wg.Wait()
	s.preproc.Wait()
}

// arm starts the scheduling loop unless one is running. Callers hold s.mu.
func (s *Session) arm() {
	s.phase = Scanning
	if s.looping {
		return
	}
	s.looping = true
	s.wg.Add(1)
	go s.loop(s.ctx)
}

// finish moves the session to Terminated. Only the first caller wins.
func (s *Session) finish(kind OutcomeKind) bool {
	s.mu.Lock()
	if s.phase == Terminated {
		s.mu.Unlock()
		return false
	}
	s.phase = Terminated
	s.outcome = kind
	s.looping = false
	if s.cancel != nil {
		s.cancel()
	}
	release := s.release
	s.mu.Unlock()

	if release != nil {
		release()
	}
	return true
}

func (s *Session) deliver(o Outcome) {
	s.done <- o
	close(s.done)

	switch o.Kind {
	case Succeeded:
		s.handler.OnSuccess(*o.Result)
	case Aborted:
		s.handler.OnAbort()
	}
}
