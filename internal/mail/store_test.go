package mail

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

var epoch = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

func openStore(t *testing.T, path string) *Store {
	t.Helper()
	s, err := Open(path, 4096, zap.NewNop())
	require.NoError(t, err)
	s.Now = func() time.Time { return epoch }
	return s
}

func fileSize(t *testing.T, path string) int64 {
	t.Helper()
	st, err := os.Stat(path)
	require.NoError(t, err)
	return st.Size()
}

func TestBlockLayout(t *testing.T) {
	h := &header{Next: lastBlock, From: 1, To: 2, Time: 3, Text: []byte("hi")}
	assert.Len(t, h.encode(headerBlock), BlockSize)
	assert.Len(t, encodeData(lastBlock, []byte("x")), BlockSize)
	assert.Equal(t, 59, HeaderPayload)
	assert.Equal(t, 91, DataPayload)

	back := decodeHeader(h.encode(headerBlock))
	assert.Equal(t, int64(2), back.To)
	assert.Equal(t, []byte("hi"), back.Text)
}

func TestOpenCreatesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "etc", "plrmail")
	s := openStore(t, path)
	assert.FileExists(t, path)
	assert.False(t, s.Disabled())
	assert.Zero(t, s.Size())
}

func TestSendOneByteOverHeader(t *testing.T) {
	path := filepath.Join(t.TempDir(), "plrmail")
	s := openStore(t, path)
	text := strings.Repeat("a", HeaderPayload) + "b"

	require.NoError(t, s.Send(7, 3, text))
	assert.Equal(t, int64(2*BlockSize), fileSize(t, path), "header plus one continuation")
	assert.True(t, s.HasMail(7))
	assert.Equal(t, 1, s.Peek(7))

	l, err := s.Receive(7)
	require.NoError(t, err)
	assert.Equal(t, text, l.Body)
	assert.Equal(t, int64(3), l.From)
	assert.Equal(t, int64(7), l.To)
	assert.Equal(t, epoch, l.Sent)
	assert.False(t, s.HasMail(7))
	assert.ElementsMatch(t, []int64{0, BlockSize}, s.Free())
}

func TestLongMessageChains(t *testing.T) {
	s := openStore(t, filepath.Join(t.TempDir(), "plrmail"))
	text := strings.Repeat("0123456789", 40)
	require.NoError(t, s.Send(1, 2, text))
	assert.Equal(t, int64(5*BlockSize), s.Size())

	l, err := s.Receive(1)
	require.NoError(t, err)
	assert.Equal(t, text, l.Body)
}

func TestSendTruncatesToMaxSize(t *testing.T) {
	s, err := Open(filepath.Join(t.TempDir(), "plrmail"), 100, zap.NewNop())
	require.NoError(t, err)
	require.NoError(t, s.Send(1, 2, strings.Repeat("z", 500)))
	l, err := s.Receive(1)
	require.NoError(t, err)
	assert.Len(t, l.Body, 100)
}

func TestFreeBlocksReused(t *testing.T) {
	s := openStore(t, filepath.Join(t.TempDir(), "plrmail"))
	require.NoError(t, s.Send(1, 2, strings.Repeat("x", 100)))
	_, err := s.Receive(1)
	require.NoError(t, err)

	require.NoError(t, s.Send(4, 2, "short"))
	assert.Equal(t, int64(2*BlockSize), s.Size(), "file does not grow")
	assert.Equal(t, []int64{BlockSize}, s.Free())
}

func TestReceiveMostRecentFirst(t *testing.T) {
	s := openStore(t, filepath.Join(t.TempDir(), "plrmail"))
	require.NoError(t, s.Send(1, 2, "first"))
	require.NoError(t, s.Send(1, 2, "second"))
	assert.Equal(t, 2, s.Peek(1))

	l, err := s.Receive(1)
	require.NoError(t, err)
	assert.Equal(t, "second", l.Body)
	l, err = s.Receive(1)
	require.NoError(t, err)
	assert.Equal(t, "first", l.Body)
	assert.Empty(t, s.Recipients())
}

func TestReceiveWithoutMailChangesNothing(t *testing.T) {
	path := filepath.Join(t.TempDir(), "plrmail")
	s := openStore(t, path)
	require.NoError(t, s.Send(1, 2, "hello"))
	require.NoError(t, s.Send(3, 2, "there"))
	_, err := s.Receive(3)
	require.NoError(t, err)

	before, err := os.ReadFile(path)
	require.NoError(t, err)
	free := s.Free()

	_, err = s.Receive(9)
	assert.ErrorIs(t, err, ErrNoMail)
	after, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, before, after)
	assert.Equal(t, free, s.Free())
}

func TestRescanMatchesFreeList(t *testing.T) {
	path := filepath.Join(t.TempDir(), "plrmail")
	s := openStore(t, path)
	require.NoError(t, s.Send(1, 2, strings.Repeat("k", 200)))
	require.NoError(t, s.Send(5, 2, "keep me"))
	_, err := s.Receive(1)
	require.NoError(t, err)
	free := s.Free()
	require.Len(t, free, 3)

	st, err := s.Scan()
	require.NoError(t, err)
	assert.ElementsMatch(t, free, s.Free())
	assert.Equal(t, 1, st.Messages)
	assert.False(t, s.HasMail(1))
	assert.True(t, s.HasMail(5))
}

func TestRejectsBadMail(t *testing.T) {
	s := openStore(t, filepath.Join(t.TempDir(), "plrmail"))
	assert.ErrorIs(t, s.Send(-1, 2, "x"), ErrBadMail)
	assert.ErrorIs(t, s.Send(1, 2, ""), ErrBadMail)
	assert.ErrorIs(t, s.Send(1, 2, "first part\x00second part"), ErrBadMail)
	assert.False(t, s.Disabled())
	assert.False(t, s.HasMail(1))
	assert.Zero(t, s.Size())
}

func TestReceiveMarksBlocksDeleted(t *testing.T) {
	path := filepath.Join(t.TempDir(), "plrmail")
	s := openStore(t, path)
	require.NoError(t, s.Send(1, 2, strings.Repeat("x", HeaderPayload+1)))
	_, err := s.Receive(1)
	require.NoError(t, err)

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	require.Len(t, raw, 2*BlockSize)
	for pos := 0; pos < len(raw); pos += BlockSize {
		assert.Equal(t, deletedBlock, kindOf(raw[pos:pos+BlockSize]), "block at %d", pos)
	}
}

func TestPartialBlockDisables(t *testing.T) {
	path := filepath.Join(t.TempDir(), "plrmail")
	require.NoError(t, os.WriteFile(path, make([]byte, BlockSize+10), 0o644))

	core, logs := observer.New(zapcore.ErrorLevel)
	s, err := Open(path, 4096, zap.New(core))
	assert.ErrorIs(t, err, ErrCorrupt)
	assert.True(t, s.Disabled())
	assert.Equal(t, 1, logs.FilterMessage("信件檔損毀，信件系統停用").Len())
	assert.ErrorIs(t, s.Send(1, 2, "x"), ErrDisabled)
}

func TestUnknownBlockTypeReported(t *testing.T) {
	path := filepath.Join(t.TempDir(), "plrmail")
	bad := encodeData(-9, []byte("??"))
	require.NoError(t, os.WriteFile(path, bad, 0o644))

	s, err := Open(path, 4096, zap.NewNop())
	require.NoError(t, err)
	st, err := s.Scan()
	require.NoError(t, err)
	assert.Equal(t, 1, st.Corrupt)
	assert.Empty(t, s.Free())
	assert.False(t, s.Disabled())
}

func TestInvalidHeaderOnReceiveDisables(t *testing.T) {
	path := filepath.Join(t.TempDir(), "plrmail")
	s := openStore(t, path)
	require.NoError(t, s.Send(1, 2, "hello"))
	require.NoError(t, os.WriteFile(path, encodeData(lastBlock, []byte("hello")), 0o644))

	_, err := s.Receive(1)
	assert.ErrorIs(t, err, ErrCorrupt)
	assert.True(t, s.Disabled())
}
