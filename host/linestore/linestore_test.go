package linestore

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ccdline/host/capture"
)

func openStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "lines.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestRecordAndRecent(t *testing.T) {
	s := openStore(t)
	ctx := context.Background()
	at := time.Date(2026, 10, 18, 9, 30, 0, 0, time.UTC)

	for i := uint64(1); i <= 3; i++ {
		require.NoError(t, s.Record(ctx, capture.Line{
			Session:  "run-1",
			Seq:      i,
			Received: at.Add(time.Duration(i) * time.Second),
			Words:    []uint32{uint32(i), 0x800, 0xFFF},
		}))
	}

	n, err := s.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	lines, err := s.Recent(ctx, 2)
	require.NoError(t, err)
	want := []capture.Line{
		{Session: "run-1", Seq: 3, Received: at.Add(3 * time.Second), Words: []uint32{3, 0x800, 0xFFF}},
		{Session: "run-1", Seq: 2, Received: at.Add(2 * time.Second), Words: []uint32{2, 0x800, 0xFFF}},
	}
	if diff := cmp.Diff(want, lines); diff != "" {
		t.Errorf("recent lines mismatch (-want +got):\n%s", diff)
	}
}

func TestBounds(t *testing.T) {
	minV, maxV := bounds([]uint32{7, 3, 9, 4})
	assert.Equal(t, uint32(3), minV)
	assert.Equal(t, uint32(9), maxV)
}

func TestDecodeWordsRejectsTruncatedBlob(t *testing.T) {
	_, err := decodeWords([]byte{1, 2, 3})
	assert.ErrorIs(t, err, ErrCorruptLine)
}
