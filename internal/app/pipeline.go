package app

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/ayusman/posturecheck/internal/detector"
)

// Run is the main loop: it pulls frames from the source and hands each one to the
// engine until ctx is cancelled or the source ends. The source is closed on return,
// and no frame is processed after Run returns.
//
// Source errors other than end of stream are logged and skipped; Run gives up after
// MaxConsecutiveErrors of them in a row.
func (a *App) Run(ctx context.Context) error {
	src := a.config.Source
	defer func() {
		if err := src.Close(); err != nil {
			a.log.Warn("error closing pose source", "error", err)
		}
	}()

	a.log.Info("pipeline started")
	defer a.log.Info("pipeline stopped", "frames", a.Frames())

	failures := 0
	for {
		frame, err := src.Next(ctx)
		if err != nil {
			switch {
			case ctx.Err() != nil:
				return nil
			case errors.Is(err, io.EOF), errors.Is(err, detector.ErrSourceClosed):
				return nil
			}

			failures++
			a.log.Warn("error reading frame", "error", err, "consecutive", failures)
			if failures >= a.config.MaxConsecutiveErrors {
				return fmt.Errorf("pose source: %w", err)
			}
			continue
		}
		failures = 0

		// Cancellation wins over a frame that raced with it.
		if ctx.Err() != nil {
			return nil
		}

		status := a.config.Engine.ProcessFrame(frame)
		a.frames.Add(1)
		a.log.Debug("frame", "label", status.Label.String(), "confidence", status.Confidence)
	}
}
