package data

import (
	"io/fs"
	"strings"
)

// Reset policies.
const (
	ResetNever   = 0
	ResetIfEmpty = 1
	ResetAlways  = 2
)

// ResetCmd is one line of a zone's population script. Args hold vnums as
// read; WorldIndex rewrites them to runtime slots.
type ResetCmd struct {
	Command byte // M O G E P D R, '*' once disabled
	IfFlag  bool
	Arg1    int32
	Arg2    int32
	Arg3    int32
	Line    int
}

// ZoneDef is a zone as authored.
type ZoneDef struct {
	Vnum      int32
	Name      string
	Bot       int32
	Top       int32
	Lifespan  int
	ResetMode int
	Cmds      []ResetCmd
	File      string
}

// LoadZones reads every zone file named by zon/index.
func LoadZones(fsys fs.FS) ([]*ZoneDef, error) {
	files, err := readIndex(fsys, "zon")
	if err != nil {
		return nil, err
	}
	zones := make([]*ZoneDef, 0, len(files))
	for _, name := range files {
		z, err := loadZoneFile(fsys, name)
		if err != nil {
			return nil, err
		}
		if n := len(zones); n > 0 && zones[n-1].Vnum >= z.Vnum {
			return nil, &FormatError{File: name, Line: 1, Msg: "zone numbers must ascend"}
		}
		zones = append(zones, z)
	}
	return zones, nil
}

func loadZoneFile(fsys fs.FS, name string) (*ZoneDef, error) {
	r, closeFn, err := openLines(fsys, name)
	if err != nil {
		return nil, err
	}
	defer closeFn()
	return parseZone(r)
}

func parseZone(r *lineReader) (*ZoneDef, error) {
	l, err := r.mustNext("#<zone number>")
	if err != nil {
		return nil, err
	}
	vnum, err := r.recordNumber(l)
	if err != nil {
		return nil, err
	}
	r.record = "zone #" + l[1:]
	z := &ZoneDef{Vnum: vnum, File: r.file}

	if z.Name, err = r.readString(); err != nil {
		return nil, err
	}
	if l, err = r.mustNext("bot top lifespan reset_mode"); err != nil {
		return nil, err
	}
	v, err := r.ints(l, 4, "# # # #")
	if err != nil {
		return nil, err
	}
	z.Bot, z.Top, z.Lifespan, z.ResetMode = int32(v[0]), int32(v[1]), int(v[2]), int(v[3])
	if z.Bot > z.Top {
		return nil, r.errorf("bottom room %d above top room %d", z.Bot, z.Top)
	}

	for {
		l, err := r.mustNext("zone command or 'S'")
		if err != nil {
			return nil, err
		}
		l = strings.TrimLeft(l, " \t")
		if l == "" {
			continue
		}
		c := l[0]
		if c == 'S' || c == '$' {
			break
		}
		cmd := ResetCmd{Command: c, Line: r.line}
		var n int
		switch c {
		case 'M', 'O', 'E', 'P', 'D':
			n = 4
		case 'G', 'R':
			n = 3
		default:
			return nil, r.errorf("unknown zone command %q", c)
		}
		v, err := r.ints(l[1:], n, "C if_flag arg1 arg2 [arg3]")
		if err != nil {
			return nil, err
		}
		cmd.IfFlag = v[0] != 0
		cmd.Arg1, cmd.Arg2 = int32(v[1]), int32(v[2])
		if n == 4 {
			cmd.Arg3 = int32(v[3])
		}
		z.Cmds = append(z.Cmds, cmd)
	}
	return z, nil
}
