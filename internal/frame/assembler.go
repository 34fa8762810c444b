package frame

import (
	"encoding/json"
	"fmt"
	"sort"
)

// SegmentsPerChannel is the number of display positions held per channel.
const SegmentsPerChannel = 8

const spaceASCII = 0x20

// SegmentKind selects which half of a channel data bytes are written to.
// It follows the low bit of the most recent control byte.
type SegmentKind int

const (
	SegmentData SegmentKind = iota
	SegmentFormat
)

// Channel holds the assembled display of one channel.
type Channel struct {
	Number int   `json:"number"`
	Data   []int `json:"data"`
	Format []int `json:"format"`
}

// NewChannel returns a channel with blank data and zeroed format codes.
func NewChannel(number int) *Channel {
	c := &Channel{
		Number: number,
		Data:   make([]int, SegmentsPerChannel),
		Format: make([]int, SegmentsPerChannel),
	}
	c.Blank()
	return c
}

// Blank clears every data position to a space.
func (c *Channel) Blank() {
	for i := range c.Data {
		c.Data[i] = spaceASCII
	}
}

// Char returns the character at data position i.
func (c *Channel) Char(i int) string {
	return string(rune(c.Data[i]))
}

// Time renders positions 2-6 as mm:ss.t. A channel with zeros in
// positions 5 and 6 has no time yet and renders as --:--.-.
func (c *Channel) Time() string {
	if c.Char(5) == "0" && c.Char(6) == "0" {
		return "--:--.-"
	}
	return c.Char(2) + c.Char(3) + ":" + c.Char(4) + c.Char(5) + "." + c.Char(6)
}

// Lane renders the channel as "lane place time".
func (c *Channel) Lane() string {
	return fmt.Sprintf("%s %s %s", c.Char(0), c.Char(1), c.Time())
}

func (c *Channel) clone() *Channel {
	out := &Channel{
		Number: c.Number,
		Data:   make([]int, len(c.Data)),
		Format: make([]int, len(c.Format)),
	}
	copy(out.Data, c.Data)
	copy(out.Format, c.Format)
	return out
}

// Frame is the set of channels seen so far, keyed by channel number.
type Frame struct {
	Channels map[int]*Channel `json:"channels"`
}

// NewFrame returns an empty frame.
func NewFrame() *Frame {
	return &Frame{Channels: make(map[int]*Channel)}
}

// SetSegment stores value at position segment of channel, creating the
// channel on first use.
func (f *Frame) SetSegment(channel, segment, value int, kind SegmentKind) {
	c, ok := f.Channels[channel]
	if !ok {
		c = NewChannel(channel)
		f.Channels[channel] = c
	}
	if kind == SegmentData {
		c.Data[segment] = value
	} else {
		c.Format[segment] = value
	}
}

// BlankChannelData clears the data of channel if it exists.
func (f *Frame) BlankChannelData(channel int) {
	if c, ok := f.Channels[channel]; ok {
		c.Blank()
	}
}

// Numbers returns the channel numbers present, in ascending order.
func (f *Frame) Numbers() []int {
	nums := make([]int, 0, len(f.Channels))
	for n := range f.Channels {
		nums = append(nums, n)
	}
	sort.Ints(nums)
	return nums
}

// AsJSON encodes the frame.
func (f *Frame) AsJSON() ([]byte, error) {
	return json.Marshal(f)
}

func (f *Frame) clone() *Frame {
	out := NewFrame()
	for n, c := range f.Channels {
		out.Channels[n] = c.clone()
	}
	return out
}

// Assembler builds channel displays from decoder events. Unlike State it
// takes the segment kind from every control byte, not only from those that
// change channel. Control bytes above blankControl clear the selected
// channel.
type Assembler struct {
	frame   *Frame
	channel uint8
	kind    SegmentKind
}

const blankControl = 190

// NewAssembler returns an assembler positioned on channel 0.
func NewAssembler() *Assembler {
	return &Assembler{frame: NewFrame()}
}

// Apply feeds one event into the assembler. When a control byte moves to a
// different channel the previously selected channel is returned as a copy,
// or nil if it never received data.
func (a *Assembler) Apply(ev Event) *Channel {
	switch ev.Type {
	case EventNone, EventBoundary:
		return a.control(ev.Control)
	case EventRecord:
		a.data(ev.Record.Raw)
	}
	return nil
}

func (a *Assembler) control(b byte) *Channel {
	a.kind = SegmentKind(ControlFormat(b))
	next := ControlChannel(b)

	var closed *Channel
	if next != a.channel {
		if c, ok := a.frame.Channels[int(a.channel)]; ok {
			closed = c.clone()
		}
		a.channel = next
	}
	if b > blankControl {
		a.frame.BlankChannelData(int(a.channel))
	}
	return closed
}

func (a *Assembler) data(b byte) {
	segment := int(SegmentNum(b))
	if segment >= SegmentsPerChannel {
		return
	}
	value, _ := DecodeSegment(b)
	if a.channel > 0 && SegmentValue(b) == 0 {
		value = spaceASCII
	}
	a.frame.SetSegment(int(a.channel), segment, int(value), a.kind)
}

// Channel returns the channel currently selected.
func (a *Assembler) Channel() uint8 {
	return a.channel
}

// Frame returns a copy of every channel assembled so far.
func (a *Assembler) Frame() *Frame {
	return a.frame.clone()
}
