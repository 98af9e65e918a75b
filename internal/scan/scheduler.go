package scan

import (
	"context"
	"fmt"
	"image"
	"log/slog"
	"time"

	"github.com/zombor/mrz-scanner/internal/capture"
	"github.com/zombor/mrz-scanner/internal/imaging"
	"github.com/zombor/mrz-scanner/internal/mrz"
	"github.com/zombor/mrz-scanner/internal/ocr"
)

// loop runs attempts one after another until one succeeds, the budget is
// spent or ctx is cancelled.
func (s *Session) loop(ctx context.Context) {
	defer s.wg.Done()

	for {
		if !s.wait(ctx) {
			return
		}
		if s.attempt(ctx) != Retry {
			return
		}
	}
}

// wait holds for the configured delay. It returns false when ctx ends first.
func (s *Session) wait(ctx context.Context) bool {
	timer := time.NewTimer(s.cfg.Delay)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return ctx.Err() == nil
	}
}

// attempt captures one frame, recognizes it and decides what happens next
func (s *Session) attempt(ctx context.Context) Decision {
	frame, err := s.source.NextFrame(ctx)
	if ctx.Err() != nil {
		return cancelled
	}
	if err != nil {
		slog.Warn("Failed to capture frame", "error", err)
		return s.reject(ctx, AttemptReport{Err: fmt.Errorf("capturing frame: %w", err)})
	}

	processed := s.preproc.Process(s.prepare(frame), s.exposure.Current())

	text, err := s.engine.Recognize(ctx, processed, ocr.Options{
		Whitelist: ocr.Whitelist,
		Region:    processed.Bounds(),
	})
	if ctx.Err() != nil {
		return cancelled
	}
	if err != nil {
		slog.Warn("Failed to recognize text", "frame", frame.Index, "error", err)
		return s.reject(ctx, AttemptReport{Err: fmt.Errorf("recognizing text: %w", err)})
	}

	rec := s.validator.Validate(text)
	if s.cfg.Debug {
		slog.Info("Scan result", "frame", frame.Index, "text", text, "layout", rec.Layout, "score", rec.Score)
		s.saveSnapshot(frame.Index, processed)
	}

	if rec.Score >= s.cfg.Accuracy {
		return s.succeed(rec, text, processed)
	}

	slog.Info("Scan quality insufficient", "score", rec.Score, "accuracy", s.cfg.Accuracy, "layout", rec.Layout)
	return s.reject(ctx, AttemptReport{Score: rec.Score, Layout: rec.Layout, Text: text})
}

// prepare crops the frame to its scan region, scales it and corrects the
// sensor orientation.
func (s *Session) prepare(frame *capture.Frame) image.Image {
	region := frame.Region
	if region.Empty() {
		region = frame.Image.Bounds()
	}
	img := imaging.Crop(frame.Image, region)

	if s.cfg.ResizeFactor > 0 {
		w := int(float64(region.Dx()) * s.cfg.ResizeFactor)
		h := int(float64(region.Dy()) * s.cfg.ResizeFactor)
		img = imaging.Resize(img, w, h)
	}
	if frame.Orientation == capture.LandscapeRight {
		img = imaging.RotateLeft(img)
	}
	return img
}

// reject counts a failed attempt and picks between Retry and GiveUp
func (s *Session) reject(ctx context.Context, report AttemptReport) Decision {
	s.mu.Lock()
	if s.phase == Terminated || ctx.Err() != nil {
		s.mu.Unlock()
		return cancelled
	}
	s.attempts++
	s.total++
	report.Attempt = s.total

	report.Decision = GiveUp
	if s.cfg.AutoMode || s.attempts < s.cfg.ShotBudget {
		report.Decision = Retry
	} else {
		// a Trigger after this point must start a new loop
		s.looping = false
	}
	attempts := s.attempts
	s.mu.Unlock()

	if report.Decision == GiveUp {
		slog.Info("Shot budget spent", "attempts", attempts, "budget", s.cfg.ShotBudget)
	}
	s.report(report)
	return report.Decision
}

// succeed terminates the session with rec unless it was stopped meanwhile
func (s *Session) succeed(rec *mrz.Record, text string, img image.Image) Decision {
	s.mu.Lock()
	s.total++
	attempt := s.total
	s.mu.Unlock()

	if !s.finish(Succeeded) {
		return cancelled
	}
	if err := s.source.Stop(); err != nil {
		slog.Warn("Failed to stop capture source", "error", err)
	}

	slog.Info("Scan succeeded", "attempt", attempt, "layout", rec.Layout, "score", rec.Score)
	s.report(AttemptReport{Attempt: attempt, Score: rec.Score, Layout: rec.Layout, Text: text, Decision: Success})
	s.deliver(Outcome{Kind: Succeeded, Result: &Result{
		Record:   rec,
		Text:     text,
		Image:    img,
		Attempts: attempt,
	}})
	return Success
}

func (s *Session) report(r AttemptReport) {
	if s.cfg.OnAttempt != nil {
		s.cfg.OnAttempt(r)
	}
}

func (s *Session) saveSnapshot(index int, img image.Image) {
	if s.snapshots == nil {
		return
	}
	data, err := imaging.EncodePNG(img)
	if err != nil {
		slog.Warn("Failed to encode debug frame", "error", err)
		return
	}
	name := fmt.Sprintf("frame-%04d-%d.png", index, time.Now().UnixNano())
	if _, err := s.snapshots.Save(name, data); err != nil {
		slog.Warn("Failed to save debug frame", "error", err)
	}
}
