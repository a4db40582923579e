// Package persist stores players on disk: the fixed-record player file and
// the per-player rent files holding what a character wears and carries.
package persist

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/l1jgo/worldcore/internal/codec"
	"github.com/l1jgo/worldcore/internal/core/arena"
	"github.com/l1jgo/worldcore/internal/data"
	"github.com/l1jgo/worldcore/internal/world"
)

var (
	ErrNoPlayer  = errors.New("persist: no such player")
	ErrExists    = errors.New("persist: player already exists")
	ErrNotPlayer = errors.New("persist: not a saved player character")
	ErrDisabled  = errors.New("persist: player file disabled")
)

// Entry is the in-memory index record of one player file slot.
type Entry struct {
	Pos     int
	Name    string // folded
	ID      int64
	Level   byte
	Deleted bool
}

// PlayerFile is the flat file of fixed-size player records. A player's slot
// is assigned once by CreateEntry and never moves. The file is opened for
// each operation and closed before it returns.
type PlayerFile struct {
	path     string
	log      *zap.Logger
	entries  []Entry
	byName   map[string]int
	topID    int64
	disabled bool

	Now func() time.Time
}

// OpenPlayerFile builds the name index by reading every record once. A
// missing file is created empty.
func OpenPlayerFile(path string, log *zap.Logger) (*PlayerFile, error) {
	pf := &PlayerFile{
		path:   path,
		log:    log,
		byName: make(map[string]int),
		Now:    time.Now,
	}
	if err := pf.scan(); err != nil {
		return nil, err
	}
	return pf, nil
}

func (pf *PlayerFile) scan() error {
	f, err := os.Open(pf.path)
	if errors.Is(err, os.ErrNotExist) {
		pf.log.Info("找不到玩家檔案，建立新檔", zap.String("file", pf.path))
		if err := os.MkdirAll(filepath.Dir(pf.path), 0o755); err != nil {
			return fmt.Errorf("create player file dir: %w", err)
		}
		f, err = os.OpenFile(pf.path, os.O_RDWR|os.O_CREATE, 0o644)
	}
	if err != nil {
		return fmt.Errorf("open player file: %w", err)
	}
	defer f.Close()

	st, err := f.Stat()
	if err != nil {
		return fmt.Errorf("stat player file: %w", err)
	}
	if st.Size()%RecordSize != 0 {
		pf.log.Warn("玩家檔案大小異常，可能已損毀",
			zap.String("file", pf.path), zap.Int64("size", st.Size()), zap.Int("record", RecordSize))
	}

	br := bufio.NewReaderSize(f, RecordSize*16)
	buf := make([]byte, RecordSize)
	for pos := 0; ; pos++ {
		if _, err := io.ReadFull(br, buf); err != nil {
			if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
				break
			}
			return fmt.Errorf("read player file: %w", err)
		}
		rec, err := decodeRecord(buf)
		if err != nil {
			return fmt.Errorf("player record %d: %w", pos, err)
		}
		pf.index(pos, rec)
	}
	pf.log.Info("玩家索引建立完成", zap.Int("players", len(pf.entries)))
	return nil
}

func (pf *PlayerFile) index(pos int, rec *Record) {
	e := Entry{
		Pos:     pos,
		Name:    codec.FoldName(rec.Name),
		ID:      rec.IDNum,
		Level:   rec.Level,
		Deleted: rec.Deleted() || rec.Name == "",
	}
	if pos < len(pf.entries) {
		pf.entries[pos] = e
	} else {
		pf.entries = append(pf.entries, e)
	}
	if e.Name != "" {
		pf.byName[e.Name] = pos
	}
	pf.topID = max(pf.topID, rec.IDNum)
}

// Len returns the number of slots, deleted ones included.
func (pf *PlayerFile) Len() int { return len(pf.entries) }

// Entries returns a copy of the index in file order.
func (pf *PlayerFile) Entries() []Entry {
	return append([]Entry(nil), pf.entries...)
}

// TopID returns the highest player id handed out.
func (pf *PlayerFile) TopID() int64 { return pf.topID }

func (pf *PlayerFile) Disabled() bool { return pf.disabled }

// Lookup finds the slot of a live player.
func (pf *PlayerFile) Lookup(name string) (Entry, bool) {
	pos, ok := pf.byName[codec.FoldName(name)]
	if !ok || pf.entries[pos].Deleted {
		return Entry{}, false
	}
	return pf.entries[pos], true
}

// IDByName returns the player id of name, or -1.
func (pf *PlayerFile) IDByName(name string) int64 {
	if e, ok := pf.Lookup(name); ok {
		return e.ID
	}
	return -1
}

// NameByID returns the stored name of a player id.
func (pf *PlayerFile) NameByID(id int64) (string, bool) {
	for _, e := range pf.entries {
		if e.ID == id && !e.Deleted {
			return e.Name, true
		}
	}
	return "", false
}

// CreateEntry reserves a slot and a fresh id for a new player. A deleted
// record of the same name is reused in place, then any other deleted slot,
// else the file grows by one record on the first Save.
func (pf *PlayerFile) CreateEntry(name string) (Entry, error) {
	key := codec.FoldName(name)
	pos := len(pf.entries)
	if p, ok := pf.byName[key]; ok {
		if !pf.entries[p].Deleted {
			return Entry{}, fmt.Errorf("%w: %s", ErrExists, name)
		}
		pos = p
	} else {
		for i, e := range pf.entries {
			if e.Deleted {
				delete(pf.byName, e.Name)
				pos = i
				break
			}
		}
	}
	pf.topID++
	e := Entry{Pos: pos, Name: key, ID: pf.topID}
	if pos == len(pf.entries) {
		pf.entries = append(pf.entries, e)
	} else {
		pf.entries[pos] = e
	}
	pf.byName[key] = pos
	return e, nil
}

// Load reads a player's record with one direct-offset read.
func (pf *PlayerFile) Load(name string) (*Record, int, error) {
	if pf.disabled {
		return nil, 0, ErrDisabled
	}
	e, ok := pf.Lookup(name)
	if !ok {
		return nil, 0, fmt.Errorf("%w: %s", ErrNoPlayer, name)
	}
	rec, err := pf.read(e.Pos)
	if err != nil {
		return nil, 0, err
	}
	return rec, e.Pos, nil
}

func (pf *PlayerFile) read(pos int) (*Record, error) {
	f, err := os.Open(pf.path)
	if err != nil {
		pf.fail("開啟玩家檔案失敗", err)
		return nil, err
	}
	defer f.Close()
	buf := make([]byte, RecordSize)
	if _, err := f.ReadAt(buf, int64(pos)*RecordSize); err != nil {
		pf.fail("讀取玩家資料失敗", err)
		return nil, fmt.Errorf("read player record %d: %w", pos, err)
	}
	return decodeRecord(buf)
}

func (pf *PlayerFile) write(pos int, rec *Record) error {
	if pf.disabled {
		return ErrDisabled
	}
	f, err := os.OpenFile(pf.path, os.O_WRONLY, 0o644)
	if err != nil {
		pf.fail("開啟玩家檔案失敗", err)
		return err
	}
	defer f.Close()
	if _, err := f.WriteAt(rec.encode(), int64(pos)*RecordSize); err != nil {
		pf.fail("寫入玩家資料失敗", err)
		return fmt.Errorf("write player record %d: %w", pos, err)
	}
	pf.index(pos, rec)
	return nil
}

// fail logs a file error and turns the player file off for the rest of the
// process.
func (pf *PlayerFile) fail(msg string, err error) {
	pf.log.Error(msg, zap.String("file", pf.path), zap.Error(err))
	pf.disabled = true
}

// Enter loads name into the world: the character is pushed into the arena
// and its saved temporary effects applied. It is not placed in a room.
func (pf *PlayerFile) Enter(w *world.World, name string) (arena.Handle, error) {
	rec, pos, err := pf.Load(name)
	if err != nil {
		return 0, err
	}
	h := w.NewPlayer(rec.Character(pos, pf.Now().Unix()))
	for _, af := range rec.ActiveAffects() {
		if err := w.AddAffect(h, af); err != nil {
			return 0, err
		}
	}
	return h, nil
}

// Save writes a player's durable state. Equipment and effects are taken
// off for the write and put back afterwards, so the live character is left
// as it was.
func (pf *PlayerFile) Save(w *world.World, h arena.Handle) error {
	ch, err := w.Char(h)
	if err != nil {
		return err
	}
	if ch.IsNPC() || ch.Player.PfilePos < 0 {
		return ErrNotPlayer
	}
	d, err := w.Detach(h)
	if err != nil {
		return err
	}
	rec := storeRecord(ch, d.Affects, pf.Now().Unix(), pf.log)
	werr := pf.write(ch.Player.PfilePos, rec)
	return errors.Join(werr, w.Reattach(d))
}

// Delete flags a player's record deleted. The slot becomes reusable.
func (pf *PlayerFile) Delete(name string) error {
	rec, pos, err := pf.Load(name)
	if err != nil {
		return err
	}
	rec.Act |= data.PlrDeleted
	return pf.write(pos, rec)
}

// SetPassword stores a bcrypt hash of plain on the character.
func SetPassword(ch *world.Character, plain string) error {
	hash, err := bcrypt.GenerateFromPassword([]byte(plain), bcrypt.DefaultCost)
	if err != nil {
		return err
	}
	ch.Player.Password = string(hash)
	return nil
}

// CheckPassword reports whether plain matches the character's stored hash.
func CheckPassword(ch *world.Character, plain string) bool {
	if ch.Player == nil || ch.Player.Password == "" {
		return false
	}
	return bcrypt.CompareHashAndPassword([]byte(ch.Player.Password), []byte(plain)) == nil
}
