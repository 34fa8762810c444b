package segdump

import (
	"encoding/json"
	"fmt"
	"io"

	"gitlab.com/d21d3q/segdump/internal/frame"
)

// Frame boundary markers, emitted in this order for every channel change.
const (
	MarkerEnd   = "END FRAME"
	MarkerStart = "START FRAME"
)

// Sink receives decoder output in input order.
type Sink interface {
	Record(frame.Record) error
	Boundary(control byte) error
	Message(text string) error
}

// ControlSink is implemented by sinks that need every control byte,
// including those that re-select the current channel. Run calls Control
// before Boundary.
type ControlSink interface {
	Sink
	Control(b byte) error
}

// TextSink renders the fixed column layout used on a terminal.
type TextSink struct {
	w io.Writer
}

// NewTextSink writes lines to w.
func NewTextSink(w io.Writer) *TextSink {
	return &TextSink{w: w}
}

// FormatRecord renders a record as format, channel, segment number, hex,
// decimal, segment code and character.
func FormatRecord(r frame.Record) string {
	return fmt.Sprintf("%2d %2d %2d %2s %3d %3d %2s",
		r.Format, r.Channel, r.SegmentNum, fmt.Sprintf("%02x", r.Raw), r.Raw, r.SegmentInt, r.Char)
}

func (s *TextSink) Record(r frame.Record) error {
	_, err := fmt.Fprintln(s.w, FormatRecord(r))
	return err
}

func (s *TextSink) Boundary(control byte) error {
	for _, marker := range []string{MarkerEnd, MarkerStart} {
		if _, err := fmt.Fprintf(s.w, "Control %d %s\n", control, marker); err != nil {
			return err
		}
	}
	return nil
}

func (s *TextSink) Message(text string) error {
	_, err := fmt.Fprintln(s.w, text)
	return err
}

// JSONSink writes one JSON object per line.
type JSONSink struct {
	enc *json.Encoder
}

// NewJSONSink writes JSON lines to w.
func NewJSONSink(w io.Writer) *JSONSink {
	return &JSONSink{enc: json.NewEncoder(w)}
}

type jsonRecord struct {
	Type       string `json:"type"`
	Format     uint8  `json:"format"`
	Channel    uint8  `json:"channel"`
	SegmentNum uint8  `json:"segment_num"`
	Hex        string `json:"hex"`
	Byte       int    `json:"byte"`
	SegmentInt uint8  `json:"segment_int"`
	Char       string `json:"char"`
}

type jsonBoundary struct {
	Type    string `json:"type"`
	Control int    `json:"control"`
	Marker  string `json:"marker"`
}

type jsonMessage struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

func (s *JSONSink) Record(r frame.Record) error {
	return s.enc.Encode(jsonRecord{
		Type:       "record",
		Format:     r.Format,
		Channel:    r.Channel,
		SegmentNum: r.SegmentNum,
		Hex:        fmt.Sprintf("%02x", r.Raw),
		Byte:       int(r.Raw),
		SegmentInt: r.SegmentInt,
		Char:       r.Char,
	})
}

func (s *JSONSink) Boundary(control byte) error {
	for _, marker := range []string{MarkerEnd, MarkerStart} {
		if err := s.enc.Encode(jsonBoundary{Type: "boundary", Control: int(control), Marker: marker}); err != nil {
			return err
		}
	}
	return nil
}

func (s *JSONSink) Message(text string) error {
	return s.enc.Encode(jsonMessage{Type: "message", Text: text})
}

// NewSink picks a sink by output format name: text, json, lanes or frames.
func NewSink(format string, w io.Writer) (Sink, error) {
	switch format {
	case "", "text":
		return NewTextSink(w), nil
	case "json":
		return NewJSONSink(w), nil
	case "lanes":
		return NewLaneSink(w), nil
	case "frames":
		return NewFrameSink(w), nil
	default:
		return nil, fmt.Errorf("unknown output format %q", format)
	}
}
