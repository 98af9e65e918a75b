package scan

import (
	"context"
	"errors"
	"fmt"
)

// Runner drives a single session to completion for callers that want a
// blocking call instead of callbacks.
type Runner struct {
	cfg  Config
	deps Deps
}

func NewRunner(cfg Config, deps Deps) *Runner {
	return &Runner{cfg: cfg, deps: deps}
}

// Run starts a session and blocks until it succeeds, the manual shot budget
// is spent or ctx is done.
func (r *Runner) Run(ctx context.Context) (*Result, error) {
	gaveUp := make(chan struct{})
	cfg := r.cfg
	next := cfg.OnAttempt
	cfg.OnAttempt = func(report AttemptReport) {
		if next != nil {
			next(report)
		}
		if report.Decision == GiveUp {
			close(gaveUp)
		}
	}

	session, err := NewSession(cfg, r.deps, Handler{
		OnSuccess: func(Result) {},
		OnAbort:   func() {},
	})
	if err != nil {
		return nil, err
	}
	defer session.Wait()

	if err := session.Start(ctx); err != nil {
		return nil, err
	}
	if !cfg.AutoMode {
		if err := session.Trigger(); err != nil && !errors.Is(err, ErrTerminated) {
			session.Stop()
			return nil, err
		}
	}

	var outcome Outcome
	select {
	case outcome = <-session.Done():
	case <-gaveUp:
		session.Stop()
		outcome = <-session.Done()
	case <-ctx.Done():
		session.Stop()
		outcome = <-session.Done()
	}

	if outcome.Kind == Succeeded {
		return outcome.Result, nil
	}
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrNoMatch, err)
	}
	return nil, ErrNoMatch
}
