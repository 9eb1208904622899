// Package linestore keeps captured lines in SQLite
package linestore

import (
	"context"
	"database/sql"
	"encoding/binary"
	"errors"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"ccdline/host/capture"
)

// ErrCorruptLine is returned when a stored sample blob cannot be decoded
var ErrCorruptLine = errors.New("corrupt stored line")

// Store persists lines
type Store struct {
	*sql.DB
}

// Open opens or creates the database at path
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}

	_, err = db.Exec(`
		CREATE TABLE IF NOT EXISTS lines (
			line_id           INTEGER PRIMARY KEY AUTOINCREMENT,
			session           TEXT,
			seq               BIGINT,
			received_unix_ns  BIGINT,
			pixels            INTEGER,
			min_value         INTEGER,
			max_value         INTEGER,
			samples           BLOB,
			timestamp         TIMESTAMP DEFAULT CURRENT_TIMESTAMP
		);
		CREATE INDEX IF NOT EXISTS lines_received ON lines (received_unix_ns);
		CREATE INDEX IF NOT EXISTS lines_session ON lines (session, seq);
	`)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("create lines table: %w", err)
	}

	return &Store{db}, nil
}

// Record stores one line
func (s *Store) Record(ctx context.Context, line capture.Line) error {
	minV, maxV := bounds(line.Words)
	_, err := s.ExecContext(ctx,
		"INSERT INTO lines (session, seq, received_unix_ns, pixels, min_value, max_value, samples) VALUES (?, ?, ?, ?, ?, ?, ?)",
		line.Session, line.Seq, line.Received.UnixNano(), len(line.Words), minV, maxV, encodeWords(line.Words))
	if err != nil {
		return fmt.Errorf("record line %d: %w", line.Seq, err)
	}
	return nil
}

// Count returns the number of stored lines
func (s *Store) Count(ctx context.Context) (int, error) {
	var n int
	err := s.QueryRowContext(ctx, "SELECT COUNT(*) FROM lines").Scan(&n)
	return n, err
}

// Recent returns up to n lines, newest first
func (s *Store) Recent(ctx context.Context, n int) ([]capture.Line, error) {
	rows, err := s.QueryContext(ctx,
		"SELECT session, seq, received_unix_ns, samples FROM lines ORDER BY line_id DESC LIMIT ?", n)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var lines []capture.Line
	for rows.Next() {
		var (
			session string
			seq     uint64
			ns      int64
			samples []byte
		)
		if err := rows.Scan(&session, &seq, &ns, &samples); err != nil {
			return nil, err
		}
		words, err := decodeWords(samples)
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", seq, err)
		}
		lines = append(lines, capture.Line{
			Session:  session,
			Seq:      seq,
			Received: time.Unix(0, ns).UTC(),
			Words:    words,
		})
	}
	return lines, rows.Err()
}

func bounds(words []uint32) (minV, maxV uint32) {
	if len(words) == 0 {
		return 0, 0
	}
	minV, maxV = words[0], words[0]
	for _, w := range words[1:] {
		if w < minV {
			minV = w
		}
		if w > maxV {
			maxV = w
		}
	}
	return minV, maxV
}

// encodeWords stores words as big-endian uint32s
func encodeWords(words []uint32) []byte {
	out := make([]byte, 4*len(words))
	for i, w := range words {
		binary.BigEndian.PutUint32(out[4*i:], w)
	}
	return out
}

func decodeWords(b []byte) ([]uint32, error) {
	if len(b)%4 != 0 {
		return nil, fmt.Errorf("%w: %d bytes", ErrCorruptLine, len(b))
	}
	words := make([]uint32, len(b)/4)
	for i := range words {
		words[i] = binary.BigEndian.Uint32(b[4*i:])
	}
	return words, nil
}
