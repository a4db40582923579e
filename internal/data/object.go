package data

import (
	"io/fs"
	"strconv"
	"strings"
)

// ObjAffect is one apply slot, e.g. +2 to strength.
type ObjAffect struct {
	Location int8
	Modifier int8
}

// ObjProto is the template every instance of an object is copied from.
type ObjProto struct {
	Vnum        int32
	Keywords    string
	ShortDescr  string
	Description string
	ActionDescr string
	Type        int
	Extra       int64
	Wear        int64
	Values      [4]int32
	Weight      int32
	Cost        int32
	Rent        int32
	Extras      []ExtraDesc
	Affects     [MaxObjAffect]ObjAffect
}

// CanWear reports whether the prototype may be worn at equipment position pos.
func (o *ObjProto) CanWear(pos int) bool {
	if pos < 0 || pos >= NumWears {
		return false
	}
	need := wearFlagFor[pos]
	return need == 0 || o.Wear&need != 0
}

// LoadObjects reads every object file named by obj/index.
func LoadObjects(fsys fs.FS) ([]*ObjProto, error) {
	var objs []*ObjProto
	err := loadRecords(fsys, "obj", "object", func(r *lineReader, vnum int32) (string, error) {
		o, next, err := parseObject(r, vnum)
		if err != nil {
			return "", err
		}
		objs = append(objs, o)
		return next, nil
	})
	return objs, err
}

// parseObject returns the '#' or '$' line that ended the record.
func parseObject(r *lineReader, vnum int32) (*ObjProto, string, error) {
	o := &ObjProto{Vnum: vnum}
	var err error
	if o.Keywords, err = r.readString(); err != nil {
		return nil, "", err
	}
	if o.ShortDescr, err = r.readString(); err != nil {
		return nil, "", err
	}
	o.ShortDescr = lowerArticle(o.ShortDescr)
	if o.Description, err = r.readString(); err != nil {
		return nil, "", err
	}
	if o.Description != "" {
		o.Description = strings.ToUpper(o.Description[:1]) + o.Description[1:]
	}
	if o.ActionDescr, err = r.readString(); err != nil {
		return nil, "", err
	}

	l, err := r.mustNext("type extra wear")
	if err != nil {
		return nil, "", err
	}
	f := strings.Fields(l)
	if len(f) < 3 {
		return nil, "", r.errorf("expecting line of form '# flags flags', got %q", l)
	}
	if o.Type, err = strconv.Atoi(f[0]); err != nil {
		return nil, "", r.errorf("bad object type %q", f[0])
	}
	o.Extra = AsciiFlag(f[1])
	o.Wear = AsciiFlag(f[2])

	if l, err = r.mustNext("v0 v1 v2 v3"); err != nil {
		return nil, "", err
	}
	v, err := r.ints(l, 4, "# # # #")
	if err != nil {
		return nil, "", err
	}
	for i := range o.Values {
		o.Values[i] = int32(v[i])
	}

	if l, err = r.mustNext("weight cost rent"); err != nil {
		return nil, "", err
	}
	if v, err = r.ints(l, 3, "# # #"); err != nil {
		return nil, "", err
	}
	o.Weight, o.Cost, o.Rent = int32(v[0]), int32(v[1]), int32(v[2])

	if (o.Type == ItemDrinkCon || o.Type == ItemFountain) && o.Weight < o.Values[1] {
		o.Weight = o.Values[1] + 5
	}

	affects := 0
	for {
		l, err := r.mustNext("'E', 'A', '$' or next object number")
		if err != nil {
			return nil, "", err
		}
		switch l[0] {
		case 'E':
			var ex ExtraDesc
			if ex.Keyword, err = r.readString(); err != nil {
				return nil, "", err
			}
			if ex.Description, err = r.readString(); err != nil {
				return nil, "", err
			}
			o.Extras = append(o.Extras, ex)
		case 'A':
			if affects >= MaxObjAffect {
				return nil, "", r.errorf("too many A fields (%d max)", MaxObjAffect)
			}
			al, err := r.mustNext("location modifier")
			if err != nil {
				return nil, "", err
			}
			av, err := r.ints(al, 2, "# #")
			if err != nil {
				return nil, "", err
			}
			o.Affects[affects] = ObjAffect{Location: int8(av[0]), Modifier: int8(av[1])}
			affects++
		case '$', '#':
			return o, l, nil
		default:
			return nil, "", r.errorf("unexpected %q after numeric constants", l)
		}
	}
}
