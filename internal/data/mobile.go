package data

import (
	"io/fs"
	"strconv"
	"strings"

	"go.uber.org/zap"
)

// Abilities are the six character attributes plus exceptional strength.
type Abilities struct {
	Str    int8
	StrAdd int8
	Intel  int8
	Wis    int8
	Dex    int8
	Con    int8
	Cha    int8
}

// MobProto is the template every instance of a mobile is copied from.
type MobProto struct {
	Vnum        int32
	Keywords    string
	ShortDescr  string
	LongDescr   string
	Description string
	Act         int64
	Affected    int64
	Alignment   int32
	Level       int
	Hitroll     int
	AC          int
	HitDice     Dice // max hit points are rolled from this at instantiation
	DamDice     Dice // Add is the damroll
	Gold        int32
	Exp         int32
	Position    int
	DefaultPos  int
	Sex         int
	AttackType  int
	Abils       Abilities
}

// LoadMobiles reads every mobile file named by mob/index.
func LoadMobiles(fsys fs.FS, log *zap.Logger) ([]*MobProto, error) {
	var mobs []*MobProto
	err := loadRecords(fsys, "mob", "mob", func(r *lineReader, vnum int32) (string, error) {
		m, err := parseMobile(r, vnum, log)
		if err != nil {
			return "", err
		}
		mobs = append(mobs, m)
		return "", nil
	})
	return mobs, err
}

func parseMobile(r *lineReader, vnum int32, log *zap.Logger) (*MobProto, error) {
	m := &MobProto{
		Vnum:  vnum,
		Abils: Abilities{Str: 11, Intel: 11, Wis: 11, Dex: 11, Con: 11, Cha: 11},
	}
	var err error
	if m.Keywords, err = r.readString(); err != nil {
		return nil, err
	}
	if m.ShortDescr, err = r.readString(); err != nil {
		return nil, err
	}
	m.ShortDescr = lowerArticle(m.ShortDescr)
	if m.LongDescr, err = r.readString(); err != nil {
		return nil, err
	}
	if m.Description, err = r.readString(); err != nil {
		return nil, err
	}

	l, err := r.mustNext("action affect align {S | E}")
	if err != nil {
		return nil, err
	}
	f := strings.Fields(l)
	if len(f) < 4 {
		return nil, r.errorf("expecting line of form '# # # {S | E}', got %q", l)
	}
	m.Act = AsciiFlag(f[0]) | MobIsNPC
	if m.Act&MobNotDeadYet != 0 {
		log.Warn("mob 帶有保留旗標 NOTDEADYET，已清除", zap.Int32("vnum", vnum))
		m.Act &^= MobNotDeadYet
	}
	m.Affected = AsciiFlag(f[1])
	align, err := strconv.Atoi(f[2])
	if err != nil {
		return nil, r.errorf("bad alignment %q", f[2])
	}
	m.Alignment = int32(align)

	switch strings.ToUpper(f[3])[0] {
	case 'S':
		err = parseSimpleMob(r, m)
	case 'E':
		if err = parseSimpleMob(r, m); err == nil {
			err = parseEnhancedMob(r, m, log)
		}
	default:
		return nil, r.errorf("unsupported mob type %q", f[3])
	}
	if err != nil {
		return nil, err
	}
	return m, nil
}

func parseSimpleMob(r *lineReader, m *MobProto) error {
	l, err := r.mustNext("level thac0 ac XdY+Z XdY+Z")
	if err != nil {
		return err
	}
	f := strings.Fields(l)
	if len(f) < 5 {
		return r.errorf("expecting line of form '# # # #d#+# #d#+#', got %q", l)
	}
	nums := make([]int, 3)
	for i := range nums {
		if nums[i], err = strconv.Atoi(f[i]); err != nil {
			return r.errorf("expecting line of form '# # # #d#+# #d#+#', got %q", l)
		}
	}
	hit, ok1 := parseDice(f[3])
	dam, ok2 := parseDice(f[4])
	if !ok1 || !ok2 {
		return r.errorf("expecting line of form '# # # #d#+# #d#+#', got %q", l)
	}
	m.Level = nums[0]
	m.Hitroll = 20 - nums[1]
	m.AC = 10 * nums[2]
	m.HitDice, m.DamDice = hit, dam

	if l, err = r.mustNext("gold exp"); err != nil {
		return err
	}
	v, err := r.ints(l, 2, "# #")
	if err != nil {
		return err
	}
	m.Gold, m.Exp = int32(v[0]), int32(v[1])

	if l, err = r.mustNext("position default_position sex"); err != nil {
		return err
	}
	if v, err = r.ints(l, 3, "# # #"); err != nil {
		return err
	}
	m.Position, m.DefaultPos, m.Sex = int(v[0]), int(v[1]), int(v[2])
	return nil
}

func parseEnhancedMob(r *lineReader, m *MobProto, log *zap.Logger) error {
	for {
		l, ok := r.next()
		if !ok {
			return r.errorf("file ended inside E section")
		}
		l = strings.TrimSpace(l)
		if l == "E" {
			return nil
		}
		if l[0] == '#' {
			return r.errorf("unterminated E section")
		}
		key, value, hasValue := strings.Cut(l, ":")
		if !hasValue {
			log.Warn("mob espec 缺少數值", zap.Int32("vnum", m.Vnum), zap.String("keyword", key))
			continue
		}
		n, _ := strconv.Atoi(strings.TrimSpace(value))
		if !applyEspec(m, strings.TrimSpace(key), n) {
			log.Warn("無法識別的 mob espec", zap.Int32("vnum", m.Vnum), zap.String("keyword", key))
		}
	}
}

func applyEspec(m *MobProto, key string, n int) bool {
	clamp := func(lo, hi int) int8 { return int8(max(lo, min(hi, n))) }
	switch strings.ToLower(key) {
	case "barehandattack":
		m.AttackType = int(clamp(0, 99))
	case "str":
		m.Abils.Str = clamp(3, 25)
	case "stradd":
		m.Abils.StrAdd = clamp(0, 100)
	case "int":
		m.Abils.Intel = clamp(3, 25)
	case "wis":
		m.Abils.Wis = clamp(3, 25)
	case "dex":
		m.Abils.Dex = clamp(3, 25)
	case "con":
		m.Abils.Con = clamp(3, 25)
	case "cha":
		m.Abils.Cha = clamp(3, 25)
	default:
		return false
	}
	return true
}

// lowerArticle lower-cases a leading "A", "An" or "The" so the short
// description reads well mid-sentence.
func lowerArticle(s string) string {
	first, _, _ := strings.Cut(s, " ")
	switch strings.ToLower(first) {
	case "a", "an", "the":
		return strings.ToLower(s[:1]) + s[1:]
	}
	return s
}
