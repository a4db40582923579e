// Package mail keeps player mail in one shared file of fixed-size blocks. A
// message is a header block followed by a chain of continuation blocks. The
// per-recipient index and the free-list live in memory and are rebuilt by
// Scan at boot.
package mail

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/l1jgo/worldcore/internal/codec"
)

var (
	ErrDisabled = errors.New("mail: mail system is disabled")
	ErrNoMail   = errors.New("mail: no mail waiting")
	ErrCorrupt  = errors.New("mail: mail file is corrupt")
	ErrBadMail  = errors.New("mail: invalid sender, recipient or text")
)

// Letter is one received message.
type Letter struct {
	From int64
	To   int64
	Sent time.Time
	Body string
}

// ScanStats summarises a boot scan.
type ScanStats struct {
	Bytes    int64
	Messages int
	Free     int
	Corrupt  int
}

// Store is the mail file plus its in-memory index. It is not safe for
// concurrent use.
type Store struct {
	path    string
	log     *zap.Logger
	maxSize int

	index    map[int64][]int64 // recipient -> header offsets, most recent first
	free     []int64
	end      int64
	disabled bool

	Now func() time.Time
}

// Open scans the mail file at path, creating it when missing. A store whose
// file fails the scan is returned disabled together with the error.
func Open(path string, maxSize int, log *zap.Logger) (*Store, error) {
	s := &Store{
		path:    path,
		log:     log,
		maxSize: maxSize,
		index:   make(map[int64][]int64),
		Now:     time.Now,
	}
	_, err := s.Scan()
	return s, err
}

// Scan rebuilds the index and free-list from the file. Header blocks are
// indexed under their recipient, deleted blocks become free. Blocks of any
// other unknown type are reported and left alone.
func (s *Store) Scan() (ScanStats, error) {
	s.index = make(map[int64][]int64)
	s.free = s.free[:0]
	s.end = 0
	s.disabled = false
	var st ScanStats

	f, err := os.Open(s.path)
	if errors.Is(err, os.ErrNotExist) {
		s.log.Info("信件檔不存在，建立新檔", zap.String("file", s.path))
		if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
			s.fail("建立信件目錄失敗", err)
			return st, err
		}
		nf, err := os.OpenFile(s.path, os.O_CREATE|os.O_WRONLY, 0o644)
		if err != nil {
			s.fail("建立信件檔失敗", err)
			return st, err
		}
		return st, nf.Close()
	}
	if err != nil {
		s.fail("開啟信件檔失敗", err)
		return st, err
	}
	defer f.Close()

	br := bufio.NewReader(f)
	buf := make([]byte, BlockSize)
	var pos int64
	for {
		n, err := io.ReadFull(br, buf)
		if err == io.EOF {
			break
		}
		if err == io.ErrUnexpectedEOF {
			st.Bytes = pos + int64(n)
			s.end = st.Bytes
			err = fmt.Errorf("%w: size %d is not a multiple of %d", ErrCorrupt, st.Bytes, BlockSize)
			s.fail("信件檔損毀，信件系統停用", err)
			return st, err
		}
		if err != nil {
			s.fail("讀取信件檔失敗", err)
			return st, err
		}
		switch kind := kindOf(buf); {
		case kind == headerBlock:
			h := decodeHeader(buf)
			if h.To < 0 {
				st.Corrupt++
				s.log.Error("信件標頭收件者無效", zap.Int64("pos", pos), zap.Int64("to", h.To))
				break
			}
			s.indexMail(h.To, pos)
			st.Messages++
		case kind == deletedBlock:
			s.free = append(s.free, pos)
		case kind == lastBlock || kind >= 0:
			// continuation, reached through its header
		default:
			st.Corrupt++
			s.log.Error("信件區塊類型無效", zap.Int64("pos", pos), zap.Int64("type", kind))
		}
		pos += BlockSize
	}
	s.end = pos
	st.Bytes = pos
	st.Free = len(s.free)
	s.log.Info("信件檔讀取完成",
		zap.Int64("bytes", st.Bytes),
		zap.Int("messages", st.Messages),
		zap.Int("free", st.Free))
	return st, nil
}

func (s *Store) indexMail(to, pos int64) {
	s.index[to] = slices.Insert(s.index[to], 0, pos)
}

// Disabled reports whether an I/O or format error switched the store off.
func (s *Store) Disabled() bool { return s.disabled }

// HasMail reports whether id has a message waiting.
func (s *Store) HasMail(id int64) bool {
	return len(s.index[id]) > 0
}

// Peek returns how many messages wait for id.
func (s *Store) Peek(id int64) int {
	return len(s.index[id])
}

// Recipients lists every id with mail waiting, ascending.
func (s *Store) Recipients() []int64 {
	ids := make([]int64, 0, len(s.index))
	for id := range s.index {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	return ids
}

// Free returns a copy of the free-list.
func (s *Store) Free() []int64 {
	return slices.Clone(s.free)
}

// Size returns the file length seen by the last write or scan.
func (s *Store) Size() int64 { return s.end }

// popFree hands out the oldest free block, or the end of the file.
func (s *Store) popFree() int64 {
	if len(s.free) == 0 {
		return s.end
	}
	pos := s.free[0]
	s.free = s.free[1:]
	return pos
}

// Send stores text from one player to another. Text longer than the
// configured maximum is cut. Blocks are NUL-terminated, so text holding a
// NUL byte is refused.
func (s *Store) Send(to, from int64, text string) error {
	if s.disabled {
		return ErrDisabled
	}
	if to < 0 || from < 0 || text == "" {
		s.log.Error("寄信參數無效", zap.Int64("from", from), zap.Int64("to", to))
		return ErrBadMail
	}
	if strings.IndexByte(text, 0) >= 0 {
		s.log.Error("信件內容含有 NUL 字元", zap.Int64("from", from), zap.Int64("to", to))
		return ErrBadMail
	}
	msg := []byte(text)
	if s.maxSize > 0 && len(msg) > s.maxSize {
		msg = msg[:s.maxSize]
	}

	h := &header{Next: lastBlock, From: from, To: to, Time: s.Now().Unix(), Text: msg}
	at := s.popFree()
	if err := s.writeBlock(h.encode(headerBlock), at); err != nil {
		return err
	}
	if len(msg) > HeaderPayload {
		rest := msg[HeaderPayload:]
		next := s.popFree()
		h.Next = next
		if err := s.writeBlock(h.encode(headerBlock), at); err != nil {
			return err
		}
		prev := next
		chunk := rest[:min(len(rest), DataPayload)]
		if err := s.writeBlock(encodeData(lastBlock, chunk), prev); err != nil {
			return err
		}
		rest = rest[len(chunk):]
		for len(rest) > 0 {
			next = s.popFree()
			if err := s.writeBlock(encodeData(next, chunk), prev); err != nil {
				return err
			}
			chunk = rest[:min(len(rest), DataPayload)]
			if err := s.writeBlock(encodeData(lastBlock, chunk), next); err != nil {
				return err
			}
			rest = rest[len(chunk):]
			prev = next
		}
	}
	s.indexMail(to, at)
	return nil
}

// Receive takes the most recent message for id off the file and returns its
// blocks to the free-list.
func (s *Store) Receive(id int64) (Letter, error) {
	if s.disabled {
		return Letter{}, ErrDisabled
	}
	list := s.index[id]
	if len(list) == 0 {
		return Letter{}, ErrNoMail
	}
	at := list[0]
	if len(list) == 1 {
		delete(s.index, id)
	} else {
		s.index[id] = list[1:]
	}

	buf, err := s.readBlock(at)
	if err != nil {
		return Letter{}, err
	}
	if kind := kindOf(buf); kind != headerBlock {
		err := fmt.Errorf("%w: block %d has type %d, want header", ErrCorrupt, at, kind)
		s.fail("信件標頭無效，信件系統停用", err)
		return Letter{}, err
	}
	h := decodeHeader(buf)
	body := slices.Clone(h.Text)
	if err := s.markDeleted(at); err != nil {
		return Letter{}, err
	}

	for next, hops := h.Next, int64(0); next != lastBlock; hops++ {
		if next < 0 || next%BlockSize != 0 || next >= s.end || hops > s.end/BlockSize {
			err := fmt.Errorf("%w: bad link %d in message at %d", ErrCorrupt, next, at)
			s.fail("信件鏈結損毀，信件系統停用", err)
			return Letter{}, err
		}
		buf, err := s.readBlock(next)
		if err != nil {
			return Letter{}, err
		}
		link, text := decodeData(buf)
		body = append(body, text...)
		if err := s.markDeleted(next); err != nil {
			return Letter{}, err
		}
		next = link
	}
	return Letter{From: h.From, To: h.To, Sent: time.Unix(h.Time, 0).UTC(), Body: string(body)}, nil
}

func (s *Store) markDeleted(pos int64) error {
	w := codec.NewWriter(8)
	w.WriteQ(deletedBlock)
	if err := s.writeBlock(w.Bytes(), pos); err != nil {
		return err
	}
	s.free = append(s.free, pos)
	return nil
}

// writeBlock writes b at a block boundary and refreshes the file end.
func (s *Store) writeBlock(b []byte, pos int64) error {
	if pos%BlockSize != 0 {
		err := fmt.Errorf("%w: offset %d is not on a block boundary", ErrCorrupt, pos)
		s.fail("信件檔位置無效，信件系統停用", err)
		return err
	}
	f, err := os.OpenFile(s.path, os.O_CREATE|os.O_RDWR, 0o644)
	if err != nil {
		s.fail("開啟信件檔失敗", err)
		return err
	}
	defer f.Close()
	if _, err := f.WriteAt(b, pos); err != nil {
		s.fail("寫入信件檔失敗", err)
		return err
	}
	st, err := f.Stat()
	if err != nil {
		s.fail("讀取信件檔大小失敗", err)
		return err
	}
	s.end = st.Size()
	return nil
}

func (s *Store) readBlock(pos int64) ([]byte, error) {
	if pos%BlockSize != 0 {
		err := fmt.Errorf("%w: offset %d is not on a block boundary", ErrCorrupt, pos)
		s.fail("信件檔位置無效，信件系統停用", err)
		return nil, err
	}
	f, err := os.Open(s.path)
	if err != nil {
		s.fail("開啟信件檔失敗", err)
		return nil, err
	}
	defer f.Close()
	buf := make([]byte, BlockSize)
	if _, err := f.ReadAt(buf, pos); err != nil {
		s.fail("讀取信件檔失敗", err)
		return nil, err
	}
	return buf, nil
}

func (s *Store) fail(msg string, err error) {
	s.log.Error(msg, zap.String("file", s.path), zap.Error(err))
	s.disabled = true
}
