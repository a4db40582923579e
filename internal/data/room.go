package data

import (
	"io/fs"
	"strconv"
	"strings"
)

// ExitDef is one authored exit. ToRoom is a room vnum, -1 for nowhere.
type ExitDef struct {
	Description string
	Keyword     string
	Info        int
	Key         int32
	ToRoom      int32
}

// RoomDef is a room as authored.
type RoomDef struct {
	Vnum        int32
	Name        string
	Description string
	Flags       int64
	Sector      int
	Exits       [NumDirs]*ExitDef
	Extras      []ExtraDesc
	File        string
	Line        int
}

// LoadRooms reads every room file named by wld/index.
func LoadRooms(fsys fs.FS) ([]*RoomDef, error) {
	var rooms []*RoomDef
	err := loadRecords(fsys, "wld", "room", func(r *lineReader, vnum int32) (string, error) {
		room, err := parseRoom(r, vnum)
		if err != nil {
			return "", err
		}
		rooms = append(rooms, room)
		return "", nil
	})
	return rooms, err
}

func parseRoom(r *lineReader, vnum int32) (*RoomDef, error) {
	room := &RoomDef{Vnum: vnum, File: r.file, Line: r.line}
	var err error
	if room.Name, err = r.readString(); err != nil {
		return nil, err
	}
	if room.Description, err = r.readString(); err != nil {
		return nil, err
	}
	l, err := r.mustNext("zone flags sector")
	if err != nil {
		return nil, err
	}
	fields := strings.Fields(l)
	if len(fields) < 3 {
		return nil, r.errorf("expecting line of form '# flags #', got %q", l)
	}
	room.Flags = AsciiFlag(fields[1])
	if room.Sector, err = strconv.Atoi(fields[2]); err != nil {
		return nil, r.errorf("bad sector type %q", fields[2])
	}

	for {
		l, err := r.mustNext("'D', 'E' or 'S'")
		if err != nil {
			return nil, err
		}
		switch l[0] {
		case 'D':
			dir, err := strconv.Atoi(strings.TrimSpace(l[1:]))
			if err != nil || dir < 0 || dir >= NumDirs {
				return nil, r.errorf("bad exit direction %q", l)
			}
			if room.Exits[dir], err = parseExit(r); err != nil {
				return nil, err
			}
		case 'E':
			var ex ExtraDesc
			if ex.Keyword, err = r.readString(); err != nil {
				return nil, err
			}
			if ex.Description, err = r.readString(); err != nil {
				return nil, err
			}
			room.Extras = append(room.Extras, ex)
		case 'S':
			return room, nil
		default:
			return nil, r.errorf("unexpected %q in room body", l)
		}
	}
}

func parseExit(r *lineReader) (*ExitDef, error) {
	ex := &ExitDef{}
	var err error
	if ex.Description, err = r.readString(); err != nil {
		return nil, err
	}
	if ex.Keyword, err = r.readString(); err != nil {
		return nil, err
	}
	l, err := r.mustNext("door_flag key to_room")
	if err != nil {
		return nil, err
	}
	v, err := r.ints(l, 3, "# # #")
	if err != nil {
		return nil, err
	}
	switch v[0] {
	case 1:
		ex.Info = ExIsDoor
	case 2:
		ex.Info = ExIsDoor | ExPickproof
	}
	ex.Key = int32(v[1])
	ex.ToRoom = int32(v[2])
	return ex, nil
}
