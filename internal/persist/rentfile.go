package persist

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/l1jgo/worldcore/internal/codec"
	"github.com/l1jgo/worldcore/internal/config"
	"github.com/l1jgo/worldcore/internal/core/arena"
	"github.com/l1jgo/worldcore/internal/data"
	"github.com/l1jgo/worldcore/internal/world"
)

var (
	ErrCorruptRent = errors.New("persist: corrupt rent file")
	ErrTooMany     = errors.New("persist: too many items to store")
)

const secsPerDay = 86400

// Offer multipliers. Rent is charged per day; cryo takes a one-off fee.
const (
	RentFactor = 1
	CryoFactor = 4
)

// LoadOutcome is how a rent file load ended.
type LoadOutcome int

const (
	LoadClean LoadOutcome = iota
	LoadRentExpired
	LoadNoEquipment
	LoadCorrupt
)

func (o LoadOutcome) String() string {
	switch o {
	case LoadClean:
		return "clean"
	case LoadRentExpired:
		return "rent expired"
	case LoadNoEquipment:
		return "no equipment"
	case LoadCorrupt:
		return "corrupt"
	}
	return fmt.Sprintf("LoadOutcome(%d)", int(o))
}

// LoadResult reports a rent file load. Cost is what was charged for the
// days away; the caller saves the player record afterwards.
type LoadResult struct {
	Outcome LoadOutcome
	Code    int32 // rent code found in the file
	Items   int
	Cost    int32
}

// UseStartRoom reports whether the player goes to the mortal start room
// instead of their own entry room. Only players who left by renting or
// cryo and got their things back keep their place.
func (r LoadResult) UseStartRoom() bool {
	return r.Outcome != LoadClean || (r.Code != RentRented && r.Code != RentCryo)
}

// RentStore keeps one rent file per player.
type RentStore struct {
	cfg config.RentConfig
	log *zap.Logger

	Now func() time.Time
}

func NewRentStore(cfg config.RentConfig, log *zap.Logger) *RentStore {
	return &RentStore{cfg: cfg, log: log, Now: time.Now}
}

// Path returns the rent file of a player, grouped by first letter.
func (s *RentStore) Path(name string) string {
	key := codec.FoldName(name)
	dir := "zzz"
	if key != "" && key[0] >= 'a' && key[0] <= 'z' {
		dir = key[:1]
	}
	return filepath.Join(s.cfg.Dir, dir, key+".objs")
}

// Load reads ch's rent file and gives the character its things back.
// Rented and timed-out files charge per-diem cost for the whole days away,
// bank first then gold; if the player cannot pay, the objects are forfeit.
// Afterwards the file is turned into a crash file stamped now.
func (s *RentStore) Load(w *world.World, ch arena.Handle) (LoadResult, error) {
	c, err := w.Char(ch)
	if err != nil {
		return LoadResult{}, err
	}
	path := s.Path(c.Name)
	raw, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) || (err == nil && len(raw) == 0) {
		s.log.Info("角色無裝備進入遊戲", zap.String("name", c.Name))
		return LoadResult{Outcome: LoadNoEquipment}, nil
	}
	if err != nil {
		s.log.Error("讀取租用檔失敗", zap.String("file", path), zap.Error(err))
		return LoadResult{Outcome: LoadCorrupt}, nil
	}
	h, items, err := DecodeRentFile(raw)
	if err != nil {
		s.log.Error("租用檔已損毀", zap.String("file", path), zap.Error(err))
		return LoadResult{Outcome: LoadCorrupt}, nil
	}

	now := s.Now().Unix()
	res := LoadResult{Outcome: LoadClean, Code: h.Code}
	if h.Code == RentRented || h.Code == RentTimedOut {
		days := (now - h.Time) / secsPerDay
		cost := int32(int64(h.CostPerDay) * days)
		p := &c.Points
		if cost > p.Gold+p.Bank {
			s.log.Info("租金不足，寄放裝備遺失", zap.String("name", c.Name), zap.Int32("cost", cost))
			res.Outcome = LoadRentExpired
			return res, s.CrashSave(w, ch)
		}
		p.Bank -= max(cost-p.Gold, 0)
		p.Gold = max(p.Gold-cost, 0)
		res.Cost = cost
	}

	switch h.Code {
	case RentRented:
		s.log.Info("角色取回寄放物品進入遊戲", zap.String("name", c.Name))
	case RentCrash:
		s.log.Info("角色取回當機存檔物品進入遊戲", zap.String("name", c.Name))
	case RentCryo:
		s.log.Info("角色解除冷凍進入遊戲", zap.String("name", c.Name))
	case RentForced, RentTimedOut:
		s.log.Info("角色取回強制存檔物品進入遊戲", zap.String("name", c.Name))
	default:
		s.log.Error("租用檔代碼未定義", zap.String("name", c.Name), zap.Int32("code", h.Code))
	}

	if res.Items, err = Unflatten(w, ch, items, s.log); err != nil {
		return res, err
	}
	s.log.Info("角色物品數量",
		zap.String("name", c.Name), zap.Int("level", int(c.Level)),
		zap.Int("items", len(items)), zap.Int("max", s.cfg.MaxObjSave))

	h.Code = RentCrash
	h.Time = now
	return res, s.rewriteHeader(path, h)
}

func (s *RentStore) rewriteHeader(path string, h Header) error {
	f, err := os.OpenFile(path, os.O_WRONLY, 0o644)
	if err != nil {
		return err
	}
	defer f.Close()
	if _, err := f.WriteAt(h.encode(), 0); err != nil {
		return fmt.Errorf("rewrite rent header %s: %w", path, err)
	}
	return nil
}

// write commits a whole rent file, or leaves the old one in place.
func (s *RentStore) write(w *world.World, ch arena.Handle, code, cost int32) error {
	c, err := w.Char(ch)
	if err != nil {
		return err
	}
	items, err := Flatten(w, ch)
	if err != nil {
		return err
	}
	h := Header{
		Time:       s.Now().Unix(),
		Code:       code,
		CostPerDay: cost,
		Gold:       c.Points.Gold,
		Bank:       c.Points.Bank,
	}
	path := s.Path(c.Name)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, EncodeRentFile(h, items), 0o644); err != nil {
		os.Remove(tmp)
		s.log.Error("寫入租用檔失敗", zap.String("file", path), zap.Error(err))
		return err
	}
	return os.Rename(tmp, path)
}

// CrashSave snapshots a playing character. Nothing is removed from the world.
func (s *RentStore) CrashSave(w *world.World, ch arena.Handle) error {
	if err := s.write(w, ch, RentCrash, 0); err != nil {
		return err
	}
	if c, err := w.Char(ch); err == nil {
		c.Act &^= data.PlrCrash
	}
	return nil
}

// RentSave stores a departing character's things at cost per day. The
// stored objects leave the world.
func (s *RentStore) RentSave(w *world.World, ch arena.Handle, cost int32) error {
	return s.store(w, ch, RentRented, cost)
}

// IdleSave stores the things of a character dropped for idling and returns
// the daily charge, twice the rent of the items with no minimum fee. The
// charge is collected on return. A player who cannot cover one day has their
// equipment moved to the inventory and loses the dearest carried items until
// the rest is affordable. With nothing left to store the rent file is removed.
func (s *RentStore) IdleSave(w *world.World, ch arena.Handle) (int32, error) {
	if err := s.extractUnrentables(w, ch); err != nil {
		return 0, err
	}
	c, err := w.Char(ch)
	if err != nil {
		return 0, err
	}
	cost, err := s.idleCost(w, ch, true)
	if err != nil {
		return 0, err
	}
	if cost > c.Points.Gold+c.Points.Bank {
		for pos := range c.Equipment {
			if c.Equipment[pos].IsZero() {
				continue
			}
			obj, err := w.Unequip(ch, pos)
			if err != nil {
				return 0, err
			}
			if err := w.ObjToChar(obj, ch); err != nil {
				return 0, err
			}
		}
		for cost > c.Points.Gold+c.Points.Bank && len(c.Carrying) > 0 {
			dearest := c.Carrying[0]
			for _, h := range c.Carrying[1:] {
				if w.Objs.MustGet(h).Rent > w.Objs.MustGet(dearest).Rent {
					dearest = h
				}
			}
			s.log.Info("閒置租金不足，移除最貴物品",
				zap.String("name", c.Name), zap.Int32("vnum", w.Objs.MustGet(dearest).Vnum))
			if err := w.ExtractObj(dearest); err != nil {
				return 0, err
			}
			if cost, err = s.idleCost(w, ch, false); err != nil {
				return 0, err
			}
		}
	}

	if len(c.Carrying) == 0 && !wearsAnything(c) {
		if err := os.Remove(s.Path(c.Name)); err != nil && !errors.Is(err, os.ErrNotExist) {
			return 0, err
		}
		return 0, nil
	}
	if err := s.write(w, ch, RentTimedOut, cost); err != nil {
		return 0, err
	}
	return cost, extractBelongings(w, ch)
}

// idleCost is twice the rent of what ch carries, and of what it wears when
// worn is set. Free rent costs nothing.
func (s *RentStore) idleCost(w *world.World, ch arena.Handle, worn bool) (int32, error) {
	if s.cfg.FreeRent {
		return 0, nil
	}
	c, err := w.Char(ch)
	if err != nil {
		return 0, err
	}
	var rent int32
	var walk func(h arena.Handle)
	walk = func(h arena.Handle) {
		o, err := w.Obj(h)
		if err != nil {
			return
		}
		rent += max(o.Rent, 0)
		for _, in := range o.Contains {
			walk(in)
		}
	}
	if worn {
		for _, h := range c.Equipment {
			if !h.IsZero() {
				walk(h)
			}
		}
	}
	for _, h := range c.Carrying {
		walk(h)
	}
	return 2 * rent, nil
}

func wearsAnything(c *world.Character) bool {
	for _, h := range c.Equipment {
		if !h.IsZero() {
			return true
		}
	}
	return false
}

// CryoSave stores a character's things indefinitely. The one-off fee is
// taken from gold now and nothing is charged on return.
func (s *RentStore) CryoSave(w *world.World, ch arena.Handle, fee int32) error {
	c, err := w.Char(ch)
	if err != nil {
		return err
	}
	c.Points.Gold = max(c.Points.Gold-fee, 0)
	c.Act |= data.PlrCryo
	return s.store(w, ch, RentCryo, 0)
}

func (s *RentStore) store(w *world.World, ch arena.Handle, code, cost int32) error {
	if err := s.extractUnrentables(w, ch); err != nil {
		return err
	}
	if err := s.write(w, ch, code, cost); err != nil {
		return err
	}
	return extractBelongings(w, ch)
}

// Offer prices storing ch's rentable things: the sum of their rent plus the
// minimum fee, times factor. Free rent costs nothing. More rentable items
// than the store takes returns ErrTooMany with the price anyway.
func (s *RentStore) Offer(w *world.World, ch arena.Handle, factor int32) (int32, error) {
	n, total, err := s.tally(w, ch)
	if err != nil {
		return 0, err
	}
	var cost int32
	if !s.cfg.FreeRent {
		cost = (total + s.cfg.MinRentCost) * factor
	}
	if n > s.cfg.MaxObjSave {
		return cost, fmt.Errorf("%w: %d of %d", ErrTooMany, n, s.cfg.MaxObjSave)
	}
	return cost, nil
}

func (s *RentStore) tally(w *world.World, ch arena.Handle) (n int, rent int32, err error) {
	c, err := w.Char(ch)
	if err != nil {
		return 0, 0, err
	}
	var walk func(h arena.Handle)
	walk = func(h arena.Handle) {
		o, err := w.Obj(h)
		if err != nil {
			return
		}
		if !o.Unrentable() {
			n++
			rent += o.Rent
		}
		for _, in := range o.Contains {
			walk(in)
		}
	}
	for _, h := range c.Equipment {
		if !h.IsZero() {
			walk(h)
		}
	}
	for _, h := range c.Carrying {
		walk(h)
	}
	return n, rent, nil
}

// extractUnrentables destroys everything ch has that may not be stored,
// together with anything inside it.
func (s *RentStore) extractUnrentables(w *world.World, ch arena.Handle) error {
	c, err := w.Char(ch)
	if err != nil {
		return err
	}
	var doomed []arena.Handle
	var walk func(h arena.Handle)
	walk = func(h arena.Handle) {
		o, err := w.Obj(h)
		if err != nil {
			return
		}
		if o.Unrentable() {
			doomed = append(doomed, h)
			return
		}
		for _, in := range o.Contains {
			walk(in)
		}
	}
	for _, h := range c.Equipment {
		if !h.IsZero() {
			walk(h)
		}
	}
	for _, h := range c.Carrying {
		walk(h)
	}
	for _, h := range doomed {
		s.log.Debug("移除不可寄放物品", zap.String("name", c.Name), zap.Int32("vnum", w.Objs.MustGet(h).Vnum))
		if err := w.ExtractObj(h); err != nil {
			return err
		}
	}
	return nil
}

func extractBelongings(w *world.World, ch arena.Handle) error {
	c, err := w.Char(ch)
	if err != nil {
		return err
	}
	for pos := range c.Equipment {
		if c.Equipment[pos].IsZero() {
			continue
		}
		if err := w.ExtractObj(c.Equipment[pos]); err != nil {
			return err
		}
	}
	for len(c.Carrying) > 0 {
		if err := w.ExtractObj(c.Carrying[0]); err != nil {
			return err
		}
	}
	return nil
}

// Summary describes one rent file for the admin tool.
type Summary struct {
	Path   string
	Header Header
	Items  []Item
}

// ListRent reads a rent file without touching the world.
func ListRent(path string) (*Summary, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	h, items, err := DecodeRentFile(raw)
	if err != nil {
		return nil, err
	}
	return &Summary{Path: path, Header: h, Items: items}, nil
}

// CodeName is the display form of a rent code.
func CodeName(code int32) string {
	switch code {
	case RentRented:
		return "Rent"
	case RentCrash:
		return "Crash"
	case RentCryo:
		return "Cryo"
	case RentTimedOut, RentForced:
		return "TimedOut"
	}
	return "Undef"
}

// Clean removes rent files that outlived their timeout: crash, forced and
// timed-out files after crash_timeout_days, rented and cryo files after
// rent_timeout_days. Each is copied into the archive directory first when
// one is configured. It returns how many files were removed.
func (s *RentStore) Clean() (int, error) {
	now := s.Now().Unix()
	removed := 0
	err := filepath.WalkDir(s.cfg.Dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if errors.Is(err, os.ErrNotExist) {
				return nil
			}
			return err
		}
		if d.IsDir() || !strings.HasSuffix(path, ".objs") {
			return nil
		}
		sum, err := ListRent(path)
		if err != nil {
			s.log.Warn("略過無法讀取的租用檔", zap.String("file", path), zap.Error(err))
			return nil
		}
		if !s.expired(sum.Header, now) {
			return nil
		}
		if s.cfg.ArchiveDir != "" {
			dst := filepath.Join(s.cfg.ArchiveDir, filepath.Base(path)+".zst")
			if err := ArchiveFile(path, dst); err != nil {
				return fmt.Errorf("archive %s: %w", path, err)
			}
		}
		if err := os.Remove(path); err != nil {
			return err
		}
		s.log.Info("清除過期租用檔", zap.String("file", path), zap.String("code", CodeName(sum.Header.Code)))
		removed++
		return nil
	})
	return removed, err
}

func (s *RentStore) expired(h Header, now int64) bool {
	age := now - h.Time
	switch h.Code {
	case RentCrash, RentForced, RentTimedOut:
		return age > int64(s.cfg.CrashTimeoutDays)*secsPerDay
	case RentRented, RentCryo:
		return age > int64(s.cfg.RentTimeoutDays)*secsPerDay
	}
	return false
}
