package source

import (
	"bytes"
	"context"
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestReaderYieldsBytesThenStickyEOF(t *testing.T) {
	ctx := context.Background()
	src := NewReader(bytes.NewReader([]byte{0x00, 0xFF}))

	b, err := src.Next(ctx)
	require.NoError(t, err)
	require.Equal(t, byte(0x00), b)

	b, err = src.Next(ctx)
	require.NoError(t, err)
	require.Equal(t, byte(0xFF), b)

	for i := 0; i < 3; i++ {
		_, err = src.Next(ctx)
		require.ErrorIs(t, err, io.EOF)
	}
}

func TestReaderCancelDuringBlockingRead(t *testing.T) {
	pr, pw := io.Pipe()
	defer pw.Close()
	src := NewReader(pr)

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(20 * time.Millisecond)
		cancel()
	}()
	_, err := src.Next(ctx)
	require.ErrorIs(t, err, context.Canceled)
}

func TestReaderKeepsInFlightByte(t *testing.T) {
	pr, pw := io.Pipe()
	src := NewReader(pr)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := src.Next(ctx)
	require.ErrorIs(t, err, context.Canceled)

	// A cancelled wait must not swallow the byte of the read left in flight.
	ctx2, cancel2 := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel2()
	_, err = src.Next(ctx2)
	require.ErrorIs(t, err, context.DeadlineExceeded)

	go func() {
		_, _ = pw.Write([]byte{0x42})
		pw.Close()
	}()
	b, err := src.Next(context.Background())
	require.NoError(t, err)
	require.Equal(t, byte(0x42), b)

	_, err = src.Next(context.Background())
	require.ErrorIs(t, err, io.EOF)
}

func TestReaderWrapsReadErrors(t *testing.T) {
	pr, pw := io.Pipe()
	pw.CloseWithError(io.ErrClosedPipe)
	src := NewReader(pr)

	_, err := src.Next(context.Background())
	require.Error(t, err)
	require.ErrorIs(t, err, io.ErrClosedPipe)
	require.Contains(t, err.Error(), "read byte")

	_, again := src.Next(context.Background())
	require.Equal(t, err, again)
}

func TestOpenFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "capture.bin")
	require.NoError(t, os.WriteFile(path, []byte{0xC1, 0x0F}, 0o644))

	src, err := OpenFile(path)
	require.NoError(t, err)
	defer src.Close()

	b, err := src.Next(context.Background())
	require.NoError(t, err)
	require.Equal(t, byte(0xC1), b)
}

func TestOpenFileMissing(t *testing.T) {
	_, err := OpenFile(filepath.Join(t.TempDir(), "missing.bin"))
	require.Error(t, err)
	require.ErrorIs(t, err, os.ErrNotExist)
}

func TestOpenSerialRequiresPort(t *testing.T) {
	_, err := OpenSerial(SerialConfig{})
	require.Error(t, err)
}

func TestOpenReplayRewinds(t *testing.T) {
	path := filepath.Join(t.TempDir(), "capture.bin")
	require.NoError(t, os.WriteFile(path, []byte{0xC1, 0x0F}, 0o644))

	src, err := OpenReplay(path, 0)
	require.NoError(t, err)
	defer src.Close()

	var got []byte
	for i := 0; i < 5; i++ {
		b, err := src.Next(context.Background())
		require.NoError(t, err)
		got = append(got, b)
	}
	require.Equal(t, []byte{0xC1, 0x0F, 0xC1, 0x0F, 0xC1}, got)
}

func TestOpenReplayEmptyFileEnds(t *testing.T) {
	path := filepath.Join(t.TempDir(), "empty.bin")
	require.NoError(t, os.WriteFile(path, nil, 0o644))

	src, err := OpenReplay(path, 0)
	require.NoError(t, err)
	defer src.Close()

	_, err = src.Next(context.Background())
	require.ErrorIs(t, err, io.EOF)
}

func TestOpenReplayThrottles(t *testing.T) {
	path := filepath.Join(t.TempDir(), "capture.bin")
	require.NoError(t, os.WriteFile(path, []byte{0x00}, 0o644))

	src, err := OpenReplay(path, 5*time.Millisecond)
	require.NoError(t, err)
	defer src.Close()

	start := time.Now()
	for i := 0; i < 4; i++ {
		_, err := src.Next(context.Background())
		require.NoError(t, err)
	}
	require.GreaterOrEqual(t, time.Since(start), 20*time.Millisecond)
}
