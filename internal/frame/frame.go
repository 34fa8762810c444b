package frame

// Kind tells control bytes apart from data bytes.
type Kind int

const (
	KindData Kind = iota
	KindControl
)

func (k Kind) String() string {
	if k == KindControl {
		return "control"
	}
	return "data"
}

// ControlThreshold is the lowest byte value treated as a control code.
const ControlThreshold = 0x7F

const (
	channelMask = 0x1F
	asciiZero   = 48

	// blankSegment is outside the 4-bit range; the branch testing for it is
	// never taken.
	blankSegment = 32
	blankChar    = "s"
	defaultChar  = "_"
)

// State is the decoder state threaded through Step. The zero value is the
// initial state: channel 0, format 0, nothing processed.
type State struct {
	Channel uint8
	Format  uint8
	// Lines counts bytes stepped through the decoder, control bytes included.
	Lines int
}

// Record is the display form of a single data byte.
type Record struct {
	Format     uint8
	Channel    uint8
	SegmentNum uint8
	Raw        byte
	// SegmentInt is the decoded segment code, normally in ['0', '?'].
	SegmentInt uint8
	Char       string
}

// EventType identifies what Step produced for a byte.
type EventType int

const (
	// EventNone is a control byte that re-selected the current channel.
	EventNone EventType = iota
	EventRecord
	EventBoundary
)

// Event is the output of a single Step. Record is set for EventRecord,
// Control for EventBoundary.
type Event struct {
	Type    EventType
	Control byte
	Record  Record
}

// Classify reports whether b is a control byte or a data byte.
func Classify(b byte) Kind {
	if b >= ControlThreshold {
		return KindControl
	}
	return KindData
}

// ControlChannel extracts the inverted 5-bit channel selector from bits 1-5.
func ControlChannel(b byte) uint8 {
	return ((b >> 1) & channelMask) ^ channelMask
}

// ControlFormat returns the format selector, the least significant bit.
func ControlFormat(b byte) uint8 {
	return b & 1
}

// SegmentNum returns the high nibble of a data byte.
func SegmentNum(b byte) uint8 {
	return (b & 0xF0) >> 4
}

// SegmentValue returns the low nibble of a data byte using the shift
// round-trip of the wire format. It always equals b & 0x0F.
func SegmentValue(b byte) uint8 {
	return ((b << 4) & 0xF0) >> 4
}

// DecodeSegment maps the low nibble of b to its display code and character.
// Nibble 15 decodes to '0' and nibble 0 to '?'.
func DecodeSegment(b byte) (uint8, string) {
	segment := SegmentValue(b)
	char := defaultChar
	if segment == blankSegment {
		char = blankChar
	} else {
		segment = (segment ^ 0x0F) + asciiZero
		char = string(rune(segment))
	}
	return segment, char
}

// Step feeds one byte through the decoder and returns the next state with
// the event it produced.
func Step(s State, b byte) (State, Event) {
	s.Lines++
	if Classify(b) == KindControl {
		channel := ControlChannel(b)
		if channel == s.Channel {
			return s, Event{Type: EventNone, Control: b}
		}
		s.Channel = channel
		s.Format = ControlFormat(b)
		return s, Event{Type: EventBoundary, Control: b}
	}

	segmentInt, char := DecodeSegment(b)
	return s, Event{
		Type: EventRecord,
		Record: Record{
			Format:     s.Format,
			Channel:    s.Channel,
			SegmentNum: SegmentNum(b),
			Raw:        b,
			SegmentInt: segmentInt,
			Char:       char,
		},
	}
}

// Decode runs Step over a whole buffer starting from s and returns the final
// state together with every non-empty event in input order.
func Decode(s State, data []byte) (State, []Event) {
	events := make([]Event, 0, len(data))
	for _, b := range data {
		var ev Event
		s, ev = Step(s, b)
		if ev.Type != EventNone {
			events = append(events, ev)
		}
	}
	return s, events
}
