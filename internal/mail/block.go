package mail

import (
	"bytes"

	"github.com/l1jgo/worldcore/internal/codec"
)

// BlockSize is the allocation unit of the mail file.
const BlockSize = 100

// Block type markers. A continuation block stores its forward link, a
// non-negative file offset, in the same field.
const (
	headerBlock  int64 = -1
	lastBlock    int64 = -2
	deletedBlock int64 = -3
)

const (
	// HeaderPayload is the text a header block carries after its type, link,
	// sender, recipient and time fields and one terminating NUL.
	HeaderPayload = BlockSize - 8 - 4*8 - 1
	// DataPayload is the text a continuation block carries.
	DataPayload = BlockSize - 8 - 1
)

type header struct {
	Next int64
	From int64
	To   int64
	Time int64
	Text []byte
}

func (h *header) encode(kind int64) []byte {
	w := codec.NewWriter(BlockSize)
	w.WriteQ(kind)
	w.WriteQ(h.Next)
	w.WriteQ(h.From)
	w.WriteQ(h.To)
	w.WriteQ(h.Time)
	w.WriteBytes(h.Text[:min(len(h.Text), HeaderPayload)])
	w.PadTo(BlockSize)
	return w.Bytes()
}

func decodeHeader(b []byte) header {
	r := codec.NewReader(b)
	r.Skip(8)
	h := header{
		Next: r.ReadQ(),
		From: r.ReadQ(),
		To:   r.ReadQ(),
		Time: r.ReadQ(),
	}
	h.Text = cString(r.ReadBytes(HeaderPayload + 1))
	return h
}

func encodeData(link int64, text []byte) []byte {
	w := codec.NewWriter(BlockSize)
	w.WriteQ(link)
	w.WriteBytes(text[:min(len(text), DataPayload)])
	w.PadTo(BlockSize)
	return w.Bytes()
}

func decodeData(b []byte) (int64, []byte) {
	r := codec.NewReader(b)
	link := r.ReadQ()
	return link, cString(r.ReadBytes(DataPayload + 1))
}

// kindOf reads the type field every block starts with.
func kindOf(b []byte) int64 {
	return codec.NewReader(b).ReadQ()
}

func cString(b []byte) []byte {
	if i := bytes.IndexByte(b, 0); i >= 0 {
		return b[:i]
	}
	return b
}
