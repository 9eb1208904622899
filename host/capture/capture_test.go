package capture

import (
	"bytes"
	"context"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ccdline/protocol"
)

var format = protocol.Format{SyncByte: 0x42, Depth: 4, ByteWidth: 2}

func frame(t *testing.T, words ...uint32) []byte {
	t.Helper()
	out := protocol.NewScratchOutput(format.FrameLen())
	require.NoError(t, protocol.EncodeFrame(out, format, words))
	return append([]byte(nil), out.Result()...)
}

func TestCaptureRecordedStream(t *testing.T) {
	mock := clock.NewMock()
	mock.Set(time.Date(2026, 10, 18, 12, 0, 0, 0, time.UTC))

	stream := append(frame(t, 1, 2, 3, 4), frame(t, 5, 6, 7, 8)...)
	c, err := New(bytes.NewReader(stream), format, Options{Clock: mock, ChunkSize: 5, StopOnEOF: true})
	require.NoError(t, err)

	var lines []Line
	err = c.Run(context.Background(), func(l Line) error {
		lines = append(lines, l)
		return nil
	})
	require.NoError(t, err)

	require.Len(t, lines, 2)
	assert.Equal(t, uint64(1), lines[0].Seq)
	assert.Equal(t, []uint32{5, 6, 7, 8}, lines[1].Words)
	assert.Equal(t, mock.Now(), lines[1].Received)
	assert.Equal(t, uint64(len(stream)), c.Stats().BytesRead)
}

func TestCaptureSession(t *testing.T) {
	c, err := New(bytes.NewReader(frame(t, 1, 2, 3, 4)), format, Options{StopOnEOF: true, Session: "bench-7"})
	require.NoError(t, err)
	var got []Line
	require.NoError(t, c.Run(context.Background(), func(l Line) error {
		got = append(got, l)
		return nil
	}))
	require.Len(t, got, 1)
	assert.Equal(t, "bench-7", got[0].Session)

	a, err := New(bytes.NewReader(nil), format, Options{})
	require.NoError(t, err)
	b, err := New(bytes.NewReader(nil), format, Options{})
	require.NoError(t, err)
	assert.Len(t, a.Session(), 36)
	assert.NotEqual(t, a.Session(), b.Session())
}

func TestCaptureHandlerErrorStops(t *testing.T) {
	stop := errors.New("enough")
	stream := append(frame(t, 1, 2, 3, 4), frame(t, 5, 6, 7, 8)...)
	c, err := New(bytes.NewReader(stream), format, Options{StopOnEOF: true})
	require.NoError(t, err)

	calls := 0
	err = c.Run(context.Background(), func(Line) error {
		calls++
		return stop
	})
	assert.ErrorIs(t, err, stop)
	assert.Equal(t, 1, calls)
}

func TestCaptureLiveLinkUntilCancel(t *testing.T) {
	pr, pw := io.Pipe()
	defer pr.Close()

	c, err := New(pr, format, Options{})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	got := make(chan Line, 1)
	errc := make(chan error, 1)
	go func() {
		errc <- c.Run(ctx, func(l Line) error {
			got <- l
			return nil
		})
	}()

	data := frame(t, 9, 9, 9, 9)
	go func() { _, _ = pw.Write(data) }()

	select {
	case l := <-got:
		assert.Equal(t, []uint32{9, 9, 9, 9}, l.Words)
	case <-time.After(5 * time.Second):
		t.Fatal("no line captured")
	}

	cancel()
	assert.ErrorIs(t, <-errc, context.Canceled)
	pw.Close()
}

func TestCaptureReadError(t *testing.T) {
	boom := errors.New("unplugged")
	c, err := New(io.MultiReader(bytes.NewReader(frame(t, 1, 1, 1, 1)), errReader{boom}), format, Options{})
	require.NoError(t, err)

	n := 0
	err = c.Run(context.Background(), func(Line) error { n++; return nil })
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, 1, n)
}

type errReader struct{ err error }

func (r errReader) Read([]byte) (int, error) { return 0, r.err }
