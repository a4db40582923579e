package codec

import (
	"encoding/binary"

	"golang.org/x/text/encoding/charmap"
)

// Writer builds a fixed-layout record. All multi-byte writes are little-endian.
type Writer struct {
	buf []byte
}

func NewWriter(size int) *Writer {
	return &Writer{buf: make([]byte, 0, size)}
}

// WriteC writes 1 byte.
func (w *Writer) WriteC(v byte) {
	w.buf = append(w.buf, v)
}

// WriteI8 writes 1 signed byte.
func (w *Writer) WriteI8(v int8) { w.WriteC(byte(v)) }

// WriteH writes 2 bytes little-endian.
func (w *Writer) WriteH(v int16) {
	w.buf = binary.LittleEndian.AppendUint16(w.buf, uint16(v))
}

// WriteD writes 4 bytes little-endian.
func (w *Writer) WriteD(v int32) {
	w.buf = binary.LittleEndian.AppendUint32(w.buf, uint32(v))
}

// WriteQ writes 8 bytes little-endian.
func (w *Writer) WriteQ(v int64) {
	w.buf = binary.LittleEndian.AppendUint64(w.buf, uint64(v))
}

// WriteS writes s into a fixed-width field of n bytes. The text is cut to n-1
// bytes so the field always ends in at least one NUL.
func (w *Writer) WriteS(s string, n int) {
	enc := utf8ToLatin1(s)
	if len(enc) > n-1 {
		enc = enc[:n-1]
	}
	w.buf = append(w.buf, enc...)
	w.Pad(n - len(enc))
}

// WriteBytes writes raw bytes.
func (w *Writer) WriteBytes(b []byte) {
	w.buf = append(w.buf, b...)
}

// Pad writes n zero bytes.
func (w *Writer) Pad(n int) {
	for i := 0; i < n; i++ {
		w.buf = append(w.buf, 0)
	}
}

// PadTo zero-fills the record up to size bytes.
func (w *Writer) PadTo(size int) {
	if len(w.buf) < size {
		w.Pad(size - len(w.buf))
	}
}

// Len returns the number of bytes written so far.
func (w *Writer) Len() int { return len(w.buf) }

// Bytes returns the record content.
func (w *Writer) Bytes() []byte {
	return w.buf
}

func utf8ToLatin1(s string) []byte {
	for i := 0; i < len(s); i++ {
		if s[i] >= 0x80 {
			// Runes outside Latin-1 become '?' rather than failing the record.
			enc, err := charmap.ISO8859_1.NewEncoder().Bytes([]byte(replaceNonLatin1(s)))
			if err != nil {
				return []byte(s)
			}
			return enc
		}
	}
	return []byte(s)
}

func replaceNonLatin1(s string) string {
	out := make([]rune, 0, len(s))
	for _, r := range s {
		if r > 0xFF {
			r = '?'
		}
		out = append(out, r)
	}
	return string(out)
}
