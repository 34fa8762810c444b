package source

import (
	"bufio"
	"context"
	"io"
	"os"
	"time"

	"github.com/jacobsa/go-serial/serial"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

// Source yields one byte at a time. Next blocks until a byte is available,
// the input ends (io.EOF) or ctx is done (ctx.Err()). Terminal errors are
// sticky: once Next has returned io.EOF it keeps returning it.
type Source interface {
	Next(ctx context.Context) (byte, error)
}

type readResult struct {
	b   byte
	err error
}

// Reader adapts an io.Reader to Source. A read abandoned because of
// cancellation stays in flight and its byte is handed to the next call.
type Reader struct {
	r       io.ByteReader
	closer  io.Closer
	pending chan readResult
	err     error
}

// NewReader wraps r in a byte source. Readers that are not already an
// io.ByteReader are buffered.
func NewReader(r io.Reader) *Reader {
	br, ok := r.(io.ByteReader)
	if !ok {
		br = bufio.NewReader(r)
	}
	src := &Reader{r: br}
	if c, ok := r.(io.Closer); ok {
		src.closer = c
	}
	return src
}

// Next implements Source.
func (s *Reader) Next(ctx context.Context) (byte, error) {
	if s.err != nil {
		return 0, s.err
	}
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	if s.pending == nil {
		ch := make(chan readResult, 1)
		s.pending = ch
		go func() {
			b, err := s.r.ReadByte()
			ch <- readResult{b: b, err: err}
		}()
	}
	select {
	case <-ctx.Done():
		return 0, ctx.Err()
	case res := <-s.pending:
		s.pending = nil
		if res.err != nil {
			if res.err == io.EOF {
				s.err = io.EOF
			} else {
				s.err = errors.Wrap(res.err, "read byte")
			}
			return 0, s.err
		}
		return res.b, nil
	}
}

// Close releases the underlying reader when it is closable. Stdin is never
// closed here; callers pass it without a closer.
func (s *Reader) Close() error {
	if s.closer == nil {
		return nil
	}
	return s.closer.Close()
}

// Stdin returns a source over standard input.
func Stdin() *Reader {
	return NewReader(struct{ io.Reader }{os.Stdin})
}

// OpenFile opens a capture file as a byte source.
func OpenFile(path string) (*Reader, error) {
	fd, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrapf(err, "open %s", path)
	}
	return NewReader(fd), nil
}

// DefaultReplayInterval paces replayed captures at roughly the rate of the
// serial line they were recorded from.
const DefaultReplayInterval = time.Millisecond

// replayFile yields the bytes of a capture file forever, rewinding at EOF
// and sleeping interval before each byte.
type replayFile struct {
	fd       *os.File
	buf      *bufio.Reader
	interval time.Duration
}

func (r *replayFile) ReadByte() (byte, error) {
	if r.interval > 0 {
		time.Sleep(r.interval)
	}
	b, err := r.buf.ReadByte()
	if err != io.EOF {
		return b, err
	}
	logrus.WithField("file", r.fd.Name()).Debug("rewinding capture")
	if _, err := r.fd.Seek(0, io.SeekStart); err != nil {
		return 0, errors.Wrap(err, "rewind capture")
	}
	r.buf.Reset(r.fd)
	// An empty capture still ends with io.EOF.
	return r.buf.ReadByte()
}

func (r *replayFile) Read(p []byte) (int, error) {
	if len(p) == 0 {
		return 0, nil
	}
	b, err := r.ReadByte()
	if err != nil {
		return 0, err
	}
	p[0] = b
	return 1, nil
}

func (r *replayFile) Close() error {
	return r.fd.Close()
}

// OpenReplay opens a capture file that is read from the start again each
// time it ends. interval throttles every byte; zero disables throttling.
func OpenReplay(path string, interval time.Duration) (*Reader, error) {
	fd, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrapf(err, "open %s", path)
	}
	return NewReader(&replayFile{fd: fd, buf: bufio.NewReader(fd), interval: interval}), nil
}

// SerialConfig describes the serial line the decoder listens on.
type SerialConfig struct {
	Port     string
	BaudRate uint
	DataBits uint
	StopBits uint
	Parity   serial.ParityMode
}

// OpenSerial opens a serial port as a byte source.
func OpenSerial(cfg SerialConfig) (*Reader, error) {
	if cfg.Port == "" {
		return nil, errors.New("serial port name is empty")
	}
	port, err := serial.Open(serial.OpenOptions{
		PortName:        cfg.Port,
		BaudRate:        cfg.BaudRate,
		DataBits:        cfg.DataBits,
		StopBits:        cfg.StopBits,
		ParityMode:      cfg.Parity,
		MinimumReadSize: 1,
	})
	if err != nil {
		return nil, errors.Wrapf(err, "open serial port %s", cfg.Port)
	}
	return NewReader(port), nil
}
