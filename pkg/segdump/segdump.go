package segdump

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/sirupsen/logrus"

	"gitlab.com/d21d3q/segdump/internal/frame"
	"gitlab.com/d21d3q/segdump/internal/source"
)

// Messages written to the sink outside of decoded records.
const (
	InterruptedMessage = "Input interrupted."
	DoneMessage        = "Done."
)

// StopReason records why Run returned.
type StopReason int

const (
	StopEOF StopReason = iota
	StopCapped
	StopInterrupted
	StopFailed
)

func (r StopReason) String() string {
	switch r {
	case StopEOF:
		return "eof"
	case StopCapped:
		return "capped"
	case StopInterrupted:
		return "interrupted"
	default:
		return "failed"
	}
}

// Summary captures what a Run went through.
type Summary struct {
	Processed  int
	Records    int
	Boundaries int
	Reason     StopReason
	State      frame.State
}

// Run decodes bytes from src into sink until the input ends, ctx is
// cancelled or the line cap is reached. DoneMessage is written on every
// exit path.
func Run(ctx context.Context, src source.Source, sink Sink, opts Options) (summary Summary, err error) {
	opts = opts.withDefaults()
	log := logrus.WithField("component", "decoder")
	var state frame.State

	defer func() {
		summary.Processed = state.Lines
		summary.State = state
		log.WithFields(logrus.Fields{
			"reason":     summary.Reason,
			"processed":  summary.Processed,
			"records":    summary.Records,
			"boundaries": summary.Boundaries,
		}).Debug("decoder stopped")
		if doneErr := sink.Message(DoneMessage); doneErr != nil && err == nil {
			err = fmt.Errorf("write done message: %w", doneErr)
		}
	}()

	for {
		if state.Lines >= opts.MaxLines-1 {
			summary.Reason = StopCapped
			return summary, nil
		}
		b, readErr := src.Next(ctx)
		if readErr != nil {
			switch {
			case errors.Is(readErr, io.EOF):
				summary.Reason = StopEOF
				return summary, nil
			case ctx.Err() != nil:
				summary.Reason = StopInterrupted
				if msgErr := sink.Message(InterruptedMessage); msgErr != nil {
					return summary, fmt.Errorf("write interrupt message: %w", msgErr)
				}
				return summary, nil
			default:
				summary.Reason = StopFailed
				log.WithError(readErr).Error("failed to read input")
				return summary, readErr
			}
		}

		var ev frame.Event
		state, ev = frame.Step(state, b)
		if cs, ok := sink.(ControlSink); ok && ev.Type != frame.EventRecord {
			if err = cs.Control(ev.Control); err != nil {
				summary.Reason = StopFailed
				return summary, fmt.Errorf("write output: %w", err)
			}
		}
		switch ev.Type {
		case frame.EventBoundary:
			summary.Boundaries++
			log.WithFields(logrus.Fields{
				"control": ev.Control,
				"channel": state.Channel,
				"format":  state.Format,
			}).Debug("channel changed")
			err = sink.Boundary(ev.Control)
		case frame.EventRecord:
			summary.Records++
			err = sink.Record(ev.Record)
		}
		if err != nil {
			summary.Reason = StopFailed
			return summary, fmt.Errorf("write output: %w", err)
		}
	}
}
