package persist

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/l1jgo/worldcore/internal/codec"
	"github.com/l1jgo/worldcore/internal/data"
	"github.com/l1jgo/worldcore/internal/world"
)

// Player record layout. Field widths include the terminating NUL.
const (
	RecordSize = 1280
	MaxAffect  = 32

	nameLen  = 21
	pwdLen   = 61
	titleLen = 81
	descLen  = 241
	hostLen  = 31

	secsPerHour = 3600
)

// Record is the durable part of a player character, one per slot of the
// player file.
type Record struct {
	Name        string
	Password    string // bcrypt hash
	Title       string
	Description string
	Host        string
	Sex         byte
	Class       byte
	Level       byte
	Birth       int64
	Played      int64
	LastLogon   int64
	Weight      byte
	Height      byte
	Abils       data.Abilities
	Points      world.Points
	Alignment   int32
	IDNum       int64
	Act         int64
	AffectedBy  int64
	Skills      [world.MaxSkills]byte
	FreezeLevel int8
	InvisLevel  int16
	LoadRoom    int32
	Pref        int64
	Conditions  [3]int8
	BadPws      byte
	Affects     [MaxAffect]world.Affect // Type 0 marks a free slot
}

func (r *Record) Deleted() bool { return r.Act&data.PlrDeleted != 0 }

func (r *Record) encode() []byte {
	w := codec.NewWriter(RecordSize)
	w.WriteS(r.Name, nameLen)
	w.WriteS(r.Password, pwdLen)
	w.WriteS(r.Title, titleLen)
	w.WriteS(r.Description, descLen)
	w.WriteS(r.Host, hostLen)
	w.WriteC(r.Sex)
	w.WriteC(r.Class)
	w.WriteC(r.Level)
	w.WriteQ(r.Birth)
	w.WriteQ(r.Played)
	w.WriteQ(r.LastLogon)
	w.WriteC(r.Weight)
	w.WriteC(r.Height)

	a := r.Abils
	for _, v := range []int8{a.Str, a.StrAdd, a.Intel, a.Wis, a.Dex, a.Con, a.Cha} {
		w.WriteI8(v)
	}

	p := r.Points
	for _, v := range []int16{p.Mana, p.MaxMana, p.Hit, p.MaxHit, p.Move, p.MaxMove, p.Armor} {
		w.WriteH(v)
	}
	w.WriteD(p.Gold)
	w.WriteD(p.Bank)
	w.WriteD(p.Exp)
	w.WriteI8(p.Hitroll)
	w.WriteI8(p.Damroll)

	w.WriteD(r.Alignment)
	w.WriteQ(r.IDNum)
	w.WriteQ(r.Act)
	w.WriteQ(r.AffectedBy)

	w.WriteBytes(r.Skills[:])
	w.WriteI8(r.FreezeLevel)
	w.WriteH(r.InvisLevel)
	w.WriteD(r.LoadRoom)
	w.WriteQ(r.Pref)
	for _, c := range r.Conditions {
		w.WriteI8(c)
	}
	w.WriteC(r.BadPws)

	for _, af := range r.Affects {
		w.WriteH(af.Type)
		w.WriteH(af.Duration)
		w.WriteI8(af.Modifier)
		w.WriteC(af.Location)
		w.WriteQ(af.Bitvector)
	}
	w.PadTo(RecordSize)
	return w.Bytes()
}

func decodeRecord(b []byte) (*Record, error) {
	if len(b) != RecordSize {
		return nil, fmt.Errorf("player record: %d bytes, want %d", len(b), RecordSize)
	}
	rd := codec.NewReader(b)
	r := &Record{}
	r.Name = rd.ReadS(nameLen)
	r.Password = rd.ReadS(pwdLen)
	r.Title = rd.ReadS(titleLen)
	r.Description = rd.ReadS(descLen)
	r.Host = rd.ReadS(hostLen)
	r.Sex = rd.ReadC()
	r.Class = rd.ReadC()
	r.Level = rd.ReadC()
	r.Birth = rd.ReadQ()
	r.Played = rd.ReadQ()
	r.LastLogon = rd.ReadQ()
	r.Weight = rd.ReadC()
	r.Height = rd.ReadC()

	r.Abils = data.Abilities{
		Str:    rd.ReadI8(),
		StrAdd: rd.ReadI8(),
		Intel:  rd.ReadI8(),
		Wis:    rd.ReadI8(),
		Dex:    rd.ReadI8(),
		Con:    rd.ReadI8(),
		Cha:    rd.ReadI8(),
	}
	r.Points = world.Points{
		Mana:    rd.ReadH(),
		MaxMana: rd.ReadH(),
		Hit:     rd.ReadH(),
		MaxHit:  rd.ReadH(),
		Move:    rd.ReadH(),
		MaxMove: rd.ReadH(),
		Armor:   rd.ReadH(),
		Gold:    rd.ReadD(),
		Bank:    rd.ReadD(),
		Exp:     rd.ReadD(),
		Hitroll: rd.ReadI8(),
		Damroll: rd.ReadI8(),
	}

	r.Alignment = rd.ReadD()
	r.IDNum = rd.ReadQ()
	r.Act = rd.ReadQ()
	r.AffectedBy = rd.ReadQ()

	copy(r.Skills[:], rd.ReadBytes(world.MaxSkills))
	r.FreezeLevel = rd.ReadI8()
	r.InvisLevel = rd.ReadH()
	r.LoadRoom = rd.ReadD()
	r.Pref = rd.ReadQ()
	for i := range r.Conditions {
		r.Conditions[i] = rd.ReadI8()
	}
	r.BadPws = rd.ReadC()

	for i := range r.Affects {
		r.Affects[i] = world.Affect{
			Type:      rd.ReadH(),
			Duration:  rd.ReadH(),
			Modifier:  rd.ReadI8(),
			Location:  rd.ReadC(),
			Bitvector: rd.ReadQ(),
		}
	}
	if err := rd.Err(); err != nil {
		return nil, err
	}
	return r, nil
}

// storeRecord builds the record of a detached character. affects are the
// temporary effects Detach took off. Played time is brought up to now and
// the character's session clock restarted.
func storeRecord(ch *world.Character, affects []world.Affect, now int64, log *zap.Logger) *Record {
	p := ch.Player
	r := &Record{
		Name:        ch.Name,
		Password:    p.Password,
		Title:       ch.Title,
		Description: ch.Description,
		Host:        p.Host,
		Sex:         ch.Sex,
		Class:       ch.Class,
		Level:       ch.Level,
		Birth:       p.Birth,
		Played:      p.Played + now - p.LastLogon,
		LastLogon:   now,
		Weight:      p.Weight,
		Height:      p.Height,
		Abils:       ch.Abils,
		Points:      ch.Points,
		Alignment:   ch.Alignment,
		IDNum:       ch.IDNum,
		Act:         ch.Act,
		AffectedBy:  ch.AffectedBy,
		Skills:      p.Skills,
		FreezeLevel: p.FreezeLevel,
		InvisLevel:  p.InvisLevel,
		LoadRoom:    p.LoadRoom,
		Pref:        p.Pref,
		Conditions:  p.Conditions,
		BadPws:      p.BadPws,
	}
	r.Points.Armor = 100
	r.Points.Hitroll = 0
	r.Points.Damroll = 0

	if len(r.Description) >= descLen {
		log.Error("角色描述過長，已截斷",
			zap.String("name", ch.Name), zap.Int("len", len(r.Description)), zap.Int("max", descLen-1))
		r.Description = r.Description[:descLen-3] + "\r\n"
		ch.Description = r.Description
	}
	if len(affects) > MaxAffect {
		log.Error("暫時效果超過存檔上限", zap.String("name", ch.Name), zap.Int("count", len(affects)))
	}
	for i, af := range affects {
		if i == MaxAffect {
			break
		}
		r.Affects[i] = af
	}

	p.Played = r.Played
	p.LastLogon = now
	return r
}

// ActiveAffects returns the used affect slots in order.
func (r *Record) ActiveAffects() []world.Affect {
	var out []world.Affect
	for _, af := range r.Affects {
		if af.Type != 0 {
			out = append(out, af)
		}
	}
	return out
}

// Character builds a player character from the record, without its
// temporary effects; those go back on through World.AddAffect once the
// character is in the arena. Armour and to-hit bonuses start from their base
// values and mana is floored at 100. A player away for an hour or more who is
// not poisoned comes back rested. LastLogon on the result is the login time.
func (r *Record) Character(pos int, now int64) *world.Character {
	ch := &world.Character{
		Proto:       world.Nothing,
		Name:        r.Name,
		Title:       r.Title,
		Description: r.Description,
		Sex:         r.Sex,
		Class:       r.Class,
		Level:       r.Level,
		Abils:       r.Abils,
		Points:      r.Points,
		Alignment:   r.Alignment,
		IDNum:       r.IDNum,
		Act:         r.Act,
		AffectedBy:  r.AffectedBy,
		Position:    data.PosStanding,
		DefaultPos:  data.PosStanding,
		InRoom:      world.Nowhere,
		Player: &world.PlayerData{
			PfilePos:    pos,
			Password:    r.Password,
			Host:        r.Host,
			Birth:       r.Birth,
			Played:      r.Played,
			LastLogon:   now,
			Weight:      r.Weight,
			Height:      r.Height,
			Skills:      r.Skills,
			FreezeLevel: r.FreezeLevel,
			InvisLevel:  r.InvisLevel,
			LoadRoom:    r.LoadRoom,
			Pref:        r.Pref,
			BadPws:      r.BadPws,
			Conditions:  r.Conditions,
		},
	}
	if ch.Points.MaxMana < 100 {
		ch.Points.MaxMana = 100
	}
	ch.Points.Armor = 100
	ch.Points.Hitroll = 0
	ch.Points.Damroll = 0

	poisoned := ch.AffectedBy&data.AffPoison != 0
	for _, af := range r.ActiveAffects() {
		poisoned = poisoned || af.Bitvector&data.AffPoison != 0
	}
	if !poisoned && now-r.LastLogon >= secsPerHour {
		ch.Points.Hit = ch.Points.MaxHit
		ch.Points.Move = ch.Points.MaxMove
		ch.Points.Mana = ch.Points.MaxMana
	}
	return ch
}
