// Package codec reads and writes the fixed-layout little-endian records used by
// the player file, rent files and the mail file. Fixed-width string fields are
// NUL padded and stored as ISO-8859-1.
package codec

import (
	"encoding/binary"
	"errors"
	"fmt"

	"golang.org/x/text/encoding/charmap"
)

// ErrShort is returned when a record ends before all fields were read.
var ErrShort = errors.New("codec: record too short")

// Reader decodes fields from a record buffer. The first short read sets a
// sticky error and every following read returns zero values.
type Reader struct {
	data []byte
	off  int
	err  error
}

func NewReader(data []byte) *Reader {
	return &Reader{data: data}
}

func (r *Reader) take(n int) []byte {
	if r.err != nil {
		return nil
	}
	if r.off+n > len(r.data) {
		r.err = fmt.Errorf("%w: need %d bytes at offset %d, have %d", ErrShort, n, r.off, len(r.data))
		r.off = len(r.data)
		return nil
	}
	b := r.data[r.off : r.off+n]
	r.off += n
	return b
}

// ReadC reads 1 unsigned byte.
func (r *Reader) ReadC() byte {
	b := r.take(1)
	if b == nil {
		return 0
	}
	return b[0]
}

// ReadI8 reads 1 signed byte.
func (r *Reader) ReadI8() int8 { return int8(r.ReadC()) }

// ReadH reads 2 bytes as little-endian int16.
func (r *Reader) ReadH() int16 {
	b := r.take(2)
	if b == nil {
		return 0
	}
	return int16(binary.LittleEndian.Uint16(b))
}

// ReadD reads 4 bytes as little-endian int32.
func (r *Reader) ReadD() int32 {
	b := r.take(4)
	if b == nil {
		return 0
	}
	return int32(binary.LittleEndian.Uint32(b))
}

// ReadQ reads 8 bytes as little-endian int64.
func (r *Reader) ReadQ() int64 {
	b := r.take(8)
	if b == nil {
		return 0
	}
	return int64(binary.LittleEndian.Uint64(b))
}

// ReadS reads a fixed-width NUL-padded field of n bytes and returns UTF-8.
func (r *Reader) ReadS(n int) string {
	b := r.take(n)
	if b == nil {
		return ""
	}
	for i, c := range b {
		if c == 0 {
			b = b[:i]
			break
		}
	}
	return latin1ToUTF8(b)
}

// ReadBytes reads n raw bytes.
func (r *Reader) ReadBytes(n int) []byte {
	b := r.take(n)
	if b == nil {
		return nil
	}
	out := make([]byte, n)
	copy(out, b)
	return out
}

// Skip advances past n bytes of padding.
func (r *Reader) Skip(n int) { r.take(n) }

// Remaining returns the number of unread bytes.
func (r *Reader) Remaining() int {
	return len(r.data) - r.off
}

// Err returns the first decoding error.
func (r *Reader) Err() error { return r.err }

func latin1ToUTF8(raw []byte) string {
	if len(raw) == 0 {
		return ""
	}
	allASCII := true
	for _, b := range raw {
		if b >= 0x80 {
			allASCII = false
			break
		}
	}
	if allASCII {
		return string(raw)
	}
	decoded, err := charmap.ISO8859_1.NewDecoder().Bytes(raw)
	if err != nil {
		return string(raw)
	}
	return string(decoded)
}
