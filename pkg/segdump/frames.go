package segdump

import (
	"encoding/json"
	"fmt"
	"io"

	"gitlab.com/d21d3q/segdump/internal/frame"
)

// LaneSink prints one "channel lane place time" line each time a channel
// is closed by a control byte selecting another one.
type LaneSink struct {
	w   io.Writer
	asm *frame.Assembler
}

// NewLaneSink writes lane lines to w.
func NewLaneSink(w io.Writer) *LaneSink {
	return &LaneSink{w: w, asm: frame.NewAssembler()}
}

// FormatLane renders a closed channel for LaneSink.
func FormatLane(c *frame.Channel) string {
	return fmt.Sprintf("%2d %s", c.Number, c.Lane())
}

func (s *LaneSink) Control(b byte) error {
	closed := s.asm.Apply(frame.Event{Type: frame.EventNone, Control: b})
	if closed == nil {
		return nil
	}
	_, err := fmt.Fprintln(s.w, FormatLane(closed))
	return err
}

func (s *LaneSink) Record(r frame.Record) error {
	s.asm.Apply(frame.Event{Type: frame.EventRecord, Record: r})
	return nil
}

func (s *LaneSink) Boundary(byte) error { return nil }

func (s *LaneSink) Message(text string) error {
	_, err := fmt.Fprintln(s.w, text)
	return err
}

// FrameSink writes a JSON snapshot of every assembled channel each time a
// channel is closed.
type FrameSink struct {
	enc *json.Encoder
	asm *frame.Assembler
}

// NewFrameSink writes JSON lines to w.
func NewFrameSink(w io.Writer) *FrameSink {
	return &FrameSink{enc: json.NewEncoder(w), asm: frame.NewAssembler()}
}

type jsonFrame struct {
	Type     string                 `json:"type"`
	Closed   int                    `json:"closed"`
	Channels map[int]*frame.Channel `json:"channels"`
}

func (s *FrameSink) Control(b byte) error {
	closed := s.asm.Apply(frame.Event{Type: frame.EventNone, Control: b})
	if closed == nil {
		return nil
	}
	return s.enc.Encode(jsonFrame{Type: "frame", Closed: closed.Number, Channels: s.asm.Frame().Channels})
}

func (s *FrameSink) Record(r frame.Record) error {
	s.asm.Apply(frame.Event{Type: frame.EventRecord, Record: r})
	return nil
}

func (s *FrameSink) Boundary(byte) error { return nil }

func (s *FrameSink) Message(text string) error {
	return s.enc.Encode(jsonMessage{Type: "message", Text: text})
}

// Publisher receives frame snapshots, encoded as JSON.
type Publisher interface {
	Publish(snapshot []byte) error
}

// PublishingSink forwards everything to an inner sink and publishes the
// assembled frame each time a channel is closed.
type PublishingSink struct {
	next Sink
	pub  Publisher
	asm  *frame.Assembler
}

// NewPublishingSink wraps next so that frame snapshots reach pub.
func NewPublishingSink(next Sink, pub Publisher) *PublishingSink {
	return &PublishingSink{next: next, pub: pub, asm: frame.NewAssembler()}
}

func (s *PublishingSink) Control(b byte) error {
	if cs, ok := s.next.(ControlSink); ok {
		if err := cs.Control(b); err != nil {
			return err
		}
	}
	if closed := s.asm.Apply(frame.Event{Type: frame.EventNone, Control: b}); closed == nil {
		return nil
	}
	data, err := s.asm.Frame().AsJSON()
	if err != nil {
		return fmt.Errorf("encode frame: %w", err)
	}
	if err := s.pub.Publish(data); err != nil {
		return fmt.Errorf("publish frame: %w", err)
	}
	return nil
}

func (s *PublishingSink) Record(r frame.Record) error {
	s.asm.Apply(frame.Event{Type: frame.EventRecord, Record: r})
	return s.next.Record(r)
}

func (s *PublishingSink) Boundary(b byte) error {
	return s.next.Boundary(b)
}

func (s *PublishingSink) Message(text string) error {
	return s.next.Message(text)
}
