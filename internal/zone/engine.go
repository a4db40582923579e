// Package zone replays zone population scripts and schedules zone resets.
package zone

import (
	"go.uber.org/zap"

	"github.com/l1jgo/worldcore/internal/core/arena"
	"github.com/l1jgo/worldcore/internal/core/event"
	"github.com/l1jgo/worldcore/internal/data"
	"github.com/l1jgo/worldcore/internal/world"
)

// Dead is the age a zone is parked at while it waits in the reset queue.
const Dead = 999

// Occupant is one connected session as the reset scheduler sees it.
type Occupant struct {
	Playing bool
	Room    int // room slot or world.Nowhere
	Level   int
}

// Occupancy is supplied by the connection layer.
type Occupancy interface {
	Occupants() []Occupant
}

// Engine runs zone command lists against a World.
type Engine struct {
	w   *world.World
	occ Occupancy
	bus *event.Bus // optional
	log *zap.Logger

	immortalLevel int
	queue         []int
}

func NewEngine(w *world.World, occ Occupancy, bus *event.Bus, immortalLevel int, log *zap.Logger) *Engine {
	return &Engine{
		w:             w,
		occ:           occ,
		bus:           bus,
		log:           log,
		immortalLevel: immortalLevel,
	}
}

// ResetAll resets every zone once; the boot pass.
func (e *Engine) ResetAll() {
	for i := range e.w.Zones {
		e.Reset(i)
	}
}

// pass is the state one Reset call carries from command to command.
type pass struct {
	zone int
	last bool
	mob  arena.Handle
	obj  arena.Handle
}

// Reset replays zone's command list from the top.
func (e *Engine) Reset(zone int) {
	z := e.w.Zones[zone]
	p := &pass{zone: zone}

	for i := range z.Cmds {
		cmd := &z.Cmds[i]
		if cmd.IfFlag && !p.last {
			continue
		}
		switch cmd.Command {
		case '*':
			// disabled: never run, and fails the commands that depend on it
			p.last = false
		case 'M':
			e.loadMobile(p, cmd)
		case 'O':
			e.loadObject(p, cmd)
		case 'P':
			e.putObject(p, cmd)
		case 'G':
			e.giveObject(p, cmd)
		case 'E':
			e.equipObject(p, cmd)
		case 'R':
			e.removeObject(p, cmd)
		case 'D':
			e.setDoor(p, cmd)
		default:
			e.disable(p, cmd, "unknown cmd in reset table")
		}
	}
	z.Age = 0

	if e.bus != nil {
		event.Emit(e.bus, event.ZoneReset{Zone: zone, Vnum: z.Vnum})
	}
}

// disable switches a command off for good. It counts as failed for the
// if-flagged commands after it.
func (e *Engine) disable(p *pass, cmd *data.ResetCmd, reason string) {
	p.last = false
	z := e.w.Zones[p.zone]
	e.log.Error("區域指令錯誤，已停用",
		zap.Int32("zone", z.Vnum),
		zap.Int("line", cmd.Line),
		zap.String("cmd", string(cmd.Command)),
		zap.String("reason", reason))
	cmd.Command = '*'
	if e.bus != nil {
		event.Emit(e.bus, event.CommandDisabled{Zone: p.zone, Line: cmd.Line, Reason: reason})
	}
}

func (e *Engine) loadMobile(p *pass, cmd *data.ResetCmd) {
	if e.w.MobCount(int(cmd.Arg1)) >= int(cmd.Arg2) {
		p.last = false
		return
	}
	if e.w.Room(int(cmd.Arg3)) == nil {
		e.disable(p, cmd, "room out of range")
		return
	}
	mob, err := e.w.NewMobile(int(cmd.Arg1))
	if err != nil {
		e.disable(p, cmd, err.Error())
		return
	}
	_ = e.w.CharToRoom(mob, int(cmd.Arg3))
	p.mob = mob
	p.last = true
}

func (e *Engine) loadObject(p *pass, cmd *data.ResetCmd) {
	if e.w.ObjCount(int(cmd.Arg1)) >= int(cmd.Arg2) {
		p.last = false
		return
	}
	room := int(cmd.Arg3)
	if room != world.Nowhere && e.w.Room(room) == nil {
		e.disable(p, cmd, "room out of range")
		return
	}
	obj, err := e.w.NewObject(int(cmd.Arg1))
	if err != nil {
		e.disable(p, cmd, err.Error())
		return
	}
	if room != world.Nowhere {
		_ = e.w.ObjToRoom(obj, room)
	}
	p.obj = obj
	p.last = true
}

func (e *Engine) putObject(p *pass, cmd *data.ResetCmd) {
	if e.w.ObjCount(int(cmd.Arg1)) >= int(cmd.Arg2) {
		p.last = false
		return
	}
	container, ok := e.container(p, int(cmd.Arg3))
	if !ok {
		e.disable(p, cmd, "target obj not found")
		return
	}
	obj, err := e.w.NewObject(int(cmd.Arg1))
	if err != nil {
		e.disable(p, cmd, err.Error())
		return
	}
	_ = e.w.ObjToObj(obj, container)
	p.obj = obj
	p.last = true
}

// container prefers the instance this pass loaded last, then the newest
// instance anywhere in the world.
func (e *Engine) container(p *pass, proto int) (arena.Handle, bool) {
	if o, err := e.w.Obj(p.obj); err == nil && o.Proto == proto {
		return p.obj, true
	}
	return e.w.FindObjByProto(proto)
}

func (e *Engine) giveObject(p *pass, cmd *data.ResetCmd) {
	if !e.w.Chars.Alive(p.mob) {
		e.disable(p, cmd, "attempt to give obj to non-existant mob")
		return
	}
	if e.w.ObjCount(int(cmd.Arg1)) >= int(cmd.Arg2) {
		p.last = false
		return
	}
	obj, err := e.w.NewObject(int(cmd.Arg1))
	if err != nil {
		e.disable(p, cmd, err.Error())
		return
	}
	_ = e.w.ObjToChar(obj, p.mob)
	p.obj = obj
	p.last = true
}

func (e *Engine) equipObject(p *pass, cmd *data.ResetCmd) {
	if !e.w.Chars.Alive(p.mob) {
		e.disable(p, cmd, "trying to equip non-existant mob")
		return
	}
	if e.w.ObjCount(int(cmd.Arg1)) >= int(cmd.Arg2) {
		p.last = false
		return
	}
	pos := int(cmd.Arg3)
	if pos < 0 || pos >= data.NumWears {
		e.disable(p, cmd, "invalid equipment pos number")
		return
	}
	mob, _ := e.w.Char(p.mob)
	if !mob.Equipment[pos].IsZero() {
		p.last = true
		return
	}
	obj, err := e.w.NewObject(int(cmd.Arg1))
	if err != nil {
		e.disable(p, cmd, err.Error())
		return
	}
	_ = e.w.Equip(p.mob, obj, pos)
	p.obj = obj
	p.last = true
}

func (e *Engine) removeObject(p *pass, cmd *data.ResetCmd) {
	if e.w.Room(int(cmd.Arg1)) == nil {
		e.disable(p, cmd, "room out of range")
		return
	}
	if obj, ok := e.w.FindObjInRoom(int(cmd.Arg1), int(cmd.Arg2)); ok {
		_ = e.w.ExtractObj(obj)
	}
	p.last = true
}

func (e *Engine) setDoor(p *pass, cmd *data.ResetCmd) {
	room := e.w.Room(int(cmd.Arg1))
	dir := int(cmd.Arg2)
	if room == nil || dir < 0 || dir >= data.NumDirs || room.Exits[dir] == nil {
		e.disable(p, cmd, "door does not exist")
		return
	}
	ex := room.Exits[dir]
	switch cmd.Arg3 {
	case 0:
		ex.Info &^= data.ExLocked | data.ExClosed
	case 1:
		ex.Info |= data.ExClosed
		ex.Info &^= data.ExLocked
	case 2:
		ex.Info |= data.ExLocked | data.ExClosed
	}
	p.last = true
}
