package world

import (
	"fmt"
	"io/fs"
	"math/rand/v2"

	"go.uber.org/zap"

	"github.com/l1jgo/worldcore/internal/data"
)

// BootOptions configure Boot.
type BootOptions struct {
	MortalStart int32
	ImmortStart int32
	FrozenStart int32
	Behaviors   *data.BehaviorTable // optional
	Rand        *rand.Rand          // optional, seeded from the runtime when nil
}

// Boot loads the world definition from fsys and builds the runtime tables.
// The stages run in a fixed order because each depends on the one before.
// Any error it returns is boot-fatal.
func Boot(fsys fs.FS, opts BootOptions, log *zap.Logger) (*World, error) {
	w := newWorld(log, opts.Rand)
	behaviors := opts.Behaviors
	if behaviors == nil {
		behaviors, _ = data.LoadBehaviorTable("")
	}

	zones, err := data.LoadZones(fsys)
	if err != nil {
		return nil, fmt.Errorf("load zones: %w", err)
	}
	rooms, err := data.LoadRooms(fsys)
	if err != nil {
		return nil, fmt.Errorf("load rooms: %w", err)
	}
	if err := w.buildRooms(zones, rooms, behaviors); err != nil {
		return nil, err
	}
	w.renumWorld(rooms)
	if err := w.checkStartRooms(opts); err != nil {
		return nil, err
	}

	mobs, err := data.LoadMobiles(fsys, log)
	if err != nil {
		return nil, fmt.Errorf("load mobiles: %w", err)
	}
	w.mobProtos = mobs
	w.mobIndex = make([]IndexEntry, len(mobs))
	for i, m := range mobs {
		w.mobIndex[i] = IndexEntry{Vnum: m.Vnum, Behavior: behaviors.Mobiles[m.Vnum]}
	}

	objs, err := data.LoadObjects(fsys)
	if err != nil {
		return nil, fmt.Errorf("load objects: %w", err)
	}
	w.objProtos = objs
	w.objIndex = make([]IndexEntry, len(objs))
	for i, o := range objs {
		w.objIndex[i] = IndexEntry{Vnum: o.Vnum, Behavior: behaviors.Objects[o.Vnum]}
	}

	w.renumZoneTable()
	return w, nil
}

// buildRooms places every room in the zone whose range covers it. Rooms and
// zones both ascend, so one cursor walks the zone table.
func (w *World) buildRooms(zones []*data.ZoneDef, rooms []*data.RoomDef, behaviors *data.BehaviorTable) error {
	w.Zones = make([]*Zone, len(zones))
	for i, z := range zones {
		w.Zones[i] = &Zone{
			Vnum:      z.Vnum,
			Name:      z.Name,
			Bot:       z.Bot,
			Top:       z.Top,
			FirstRoom: 0,
			LastRoom:  -1,
			Lifespan:  z.Lifespan,
			ResetMode: z.ResetMode,
			Cmds:      append([]data.ResetCmd(nil), z.Cmds...),
		}
	}

	w.Rooms = make([]*Room, 0, len(rooms))
	zone := 0
	for _, def := range rooms {
		for zone < len(w.Zones) && def.Vnum > w.Zones[zone].Top {
			zone++
		}
		if zone >= len(w.Zones) || def.Vnum < w.Zones[zone].Bot {
			return &data.FormatError{
				File:   def.File,
				Line:   def.Line,
				Record: fmt.Sprintf("room #%d", def.Vnum),
				Msg:    "room is outside of any zone",
			}
		}
		slot := len(w.Rooms)
		z := w.Zones[zone]
		if z.LastRoom < z.FirstRoom {
			z.FirstRoom = slot
		}
		z.LastRoom = slot
		w.Rooms = append(w.Rooms, &Room{
			Vnum:        def.Vnum,
			Zone:        zone,
			Name:        def.Name,
			Description: def.Description,
			Flags:       def.Flags,
			Sector:      def.Sector,
			Extras:      def.Extras,
			Behavior:    behaviors.Rooms[def.Vnum],
		})
	}
	return nil
}

// renumWorld resolves exit targets from vnums to room slots.
func (w *World) renumWorld(defs []*data.RoomDef) {
	for i, def := range defs {
		for dir, ex := range def.Exits {
			if ex == nil {
				continue
			}
			to := Nowhere
			if ex.ToRoom != -1 {
				if slot, ok := w.ResolveRoom(ex.ToRoom); ok {
					to = slot
				} else {
					w.log.Warn("出口指向不存在的房間",
						zap.Int32("room", def.Vnum), zap.Int("dir", dir), zap.Int32("to", ex.ToRoom))
				}
			}
			w.Rooms[i].Exits[dir] = &Exit{
				Description: ex.Description,
				Keyword:     ex.Keyword,
				Info:        ex.Info,
				Key:         ex.Key,
				ToRoom:      to,
			}
		}
	}
}

func (w *World) checkStartRooms(opts BootOptions) error {
	mortal, ok := w.ResolveRoom(opts.MortalStart)
	if !ok {
		return fmt.Errorf("mortal start room %d does not exist", opts.MortalStart)
	}
	w.Start = StartRooms{Mortal: mortal, Immort: mortal, Frozen: mortal}
	if slot, ok := w.ResolveRoom(opts.ImmortStart); ok {
		w.Start.Immort = slot
	} else {
		w.log.Warn("神職起始房間不存在，改用一般起始房間", zap.Int32("room", opts.ImmortStart))
	}
	if slot, ok := w.ResolveRoom(opts.FrozenStart); ok {
		w.Start.Frozen = slot
	} else {
		w.log.Warn("凍結起始房間不存在，改用一般起始房間", zap.Int32("room", opts.FrozenStart))
	}
	return nil
}

// renumZoneTable rewrites every zone command's vnum operands to slots. A
// command whose operand does not resolve is disabled in place.
func (w *World) renumZoneTable() {
	for _, z := range w.Zones {
		for ci := range z.Cmds {
			cmd := &z.Cmds[ci]
			var bad int32
			ok := true
			room := func(v *int32) {
				if !ok {
					return
				}
				slot, found := w.ResolveRoom(*v)
				if !found {
					bad, ok = *v, false
					return
				}
				*v = int32(slot)
			}
			mob := func(v *int32) {
				if !ok {
					return
				}
				slot, found := w.ResolveMobile(*v)
				if !found {
					bad, ok = *v, false
					return
				}
				*v = int32(slot)
			}
			obj := func(v *int32) {
				if !ok {
					return
				}
				slot, found := w.ResolveObject(*v)
				if !found {
					bad, ok = *v, false
					return
				}
				*v = int32(slot)
			}

			switch cmd.Command {
			case 'M':
				mob(&cmd.Arg1)
				room(&cmd.Arg3)
			case 'O':
				obj(&cmd.Arg1)
				if cmd.Arg3 != Nowhere {
					room(&cmd.Arg3)
				}
			case 'G', 'E':
				obj(&cmd.Arg1)
			case 'P':
				obj(&cmd.Arg1)
				obj(&cmd.Arg3)
			case 'D':
				room(&cmd.Arg1)
			case 'R':
				room(&cmd.Arg1)
				obj(&cmd.Arg2)
			}
			if !ok {
				w.log.Warn("區域指令參照無效編號，已停用",
					zap.Int32("zone", z.Vnum), zap.Int("line", cmd.Line),
					zap.String("cmd", string(cmd.Command)), zap.Int32("vnum", bad))
				cmd.Command = '*'
			}
		}
	}
}
