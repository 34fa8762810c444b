package frame

import (
	"encoding/hex"
	"testing"
)

func TestClassify(t *testing.T) {
	for v := 0; v < 256; v++ {
		b := byte(v)
		got := Classify(b)
		if v >= 127 && got != KindControl {
			t.Fatalf("byte %d classified as %s", v, got)
		}
		if v <= 126 && got != KindData {
			t.Fatalf("byte %d classified as %s", v, got)
		}
	}
}

func TestControlFields(t *testing.T) {
	for v := 127; v < 256; v++ {
		b := byte(v)
		ch := ControlChannel(b)
		if ch > 31 {
			t.Fatalf("byte %d: channel %d out of range", v, ch)
		}
		if want := uint8(((v >> 1) & 0x1F) ^ 0x1F); ch != want {
			t.Fatalf("byte %d: channel %d, want %d", v, ch, want)
		}
		if f := ControlFormat(b); f != uint8(v&1) {
			t.Fatalf("byte %d: format %d", v, f)
		}
	}
}

func TestSegmentValueMatchesMask(t *testing.T) {
	for v := 0; v < 256; v++ {
		b := byte(v)
		if got, want := SegmentValue(b), b&0x0F; got != want {
			t.Fatalf("byte %d: shifted nibble %d, masked nibble %d", v, got, want)
		}
		if n := SegmentNum(b); n > 15 || n != b>>4 {
			t.Fatalf("byte %d: segment num %d", v, n)
		}
	}
}

func TestDecodeSegmentNeverBlank(t *testing.T) {
	for v := 0; v < 256; v++ {
		b := byte(v)
		code, char := DecodeSegment(b)
		if char == blankChar || char == defaultChar {
			t.Fatalf("byte %d took unreachable branch (%q)", v, char)
		}
		if want := uint8(48 + (15 - int(b&0x0F))); code != want {
			t.Fatalf("byte %d: code %d, want %d", v, code, want)
		}
		if char != string(rune(code)) {
			t.Fatalf("byte %d: char %q does not match code %d", v, char, code)
		}
	}
}

func TestStepZeroByte(t *testing.T) {
	s, ev := Step(State{}, 0x00)
	if ev.Type != EventRecord {
		t.Fatalf("unexpected event type %d", ev.Type)
	}
	rec := ev.Record
	if rec.SegmentNum != 0 || rec.Raw != 0 || rec.SegmentInt != 63 || rec.Char != "?" {
		t.Fatalf("unexpected record %+v", rec)
	}
	if s.Lines != 1 {
		t.Fatalf("lines = %d", s.Lines)
	}
}

func TestStepFFOnChannelZero(t *testing.T) {
	s, ev := Step(State{}, 0xFF)
	if ev.Type != EventNone {
		t.Fatalf("0xFF on channel 0 produced event %d", ev.Type)
	}
	if s.Channel != 0 || s.Format != 0 {
		t.Fatalf("state changed: %+v", s)
	}
}

func TestChannelChangeDetection(t *testing.T) {
	// 0xC1 selects channel 0x1F^0x00 = 31, 0xC3 selects 30.
	_, events := Decode(State{}, []byte{0xC1, 0xC1})
	if len(events) != 1 || events[0].Type != EventBoundary || events[0].Control != 0xC1 {
		t.Fatalf("same channel twice: %+v", events)
	}
	_, events = Decode(State{}, []byte{0xC1, 0xC3})
	if len(events) != 2 {
		t.Fatalf("two channels: got %d events", len(events))
	}
	for _, ev := range events {
		if ev.Type != EventBoundary {
			t.Fatalf("unexpected event %+v", ev)
		}
	}
}

func TestStatePersistsAcrossData(t *testing.T) {
	// 0xFB: channel ((0x7D)&0x1F)^0x1F = 2, format 1.
	s, events := Decode(State{}, decodeHex(t, "FB0A1B2C"))
	if s.Channel != 2 || s.Format != 1 {
		t.Fatalf("unexpected state %+v", s)
	}
	if len(events) != 4 {
		t.Fatalf("got %d events", len(events))
	}
	for _, ev := range events[1:] {
		if ev.Record.Channel != 2 || ev.Record.Format != 1 {
			t.Fatalf("record lost state: %+v", ev.Record)
		}
	}
	if s.Lines != 4 {
		t.Fatalf("lines = %d", s.Lines)
	}
}

func TestFormatFollowsChannelChangeOnly(t *testing.T) {
	// 0xFB and 0xFA both select channel 2; only the first one applies its format.
	s, events := Decode(State{}, decodeHex(t, "FBFA00"))
	if s.Format != 1 {
		t.Fatalf("format updated without channel change: %+v", s)
	}
	if got := events[len(events)-1].Record.Format; got != 1 {
		t.Fatalf("record format %d", got)
	}
}

func decodeHex(t *testing.T, s string) []byte {
	t.Helper()
	b, err := hex.DecodeString(s)
	if err != nil {
		t.Fatalf("hex decode: %v", err)
	}
	return b
}
