package data

import (
	"io/fs"
	"strconv"
)

// recordParser parses the body of one "#vnum" record. It returns a line it
// read past the record, if any, so the caller does not read it again.
type recordParser func(r *lineReader, vnum int32) (lookahead string, err error)

// maxVnum ends a record file early, the way a '$' line does.
const maxVnum = 99999

// loadRecords walks every file named by dir/index and hands each record to
// parse. Records must ascend across the whole directory.
func loadRecords(fsys fs.FS, dir, kind string, parse recordParser) error {
	files, err := readIndex(fsys, dir)
	if err != nil {
		return err
	}
	last := int32(-1)
	for _, name := range files {
		if err := loadRecordFile(fsys, name, kind, &last, parse); err != nil {
			return err
		}
	}
	return nil
}

func loadRecordFile(fsys fs.FS, name, kind string, last *int32, parse recordParser) error {
	r, closeFn, err := openLines(fsys, name)
	if err != nil {
		return err
	}
	defer closeFn()

	var line string
	for {
		if line == "" {
			l, ok := r.next()
			if !ok {
				return r.errorf("file ended without '$'")
			}
			line = l
		}
		if line[0] == '$' {
			return nil
		}
		vnum, err := r.recordNumber(line)
		if err != nil {
			return err
		}
		if vnum >= maxVnum {
			return nil
		}
		r.record = kind + " #" + strconv.Itoa(int(vnum))
		if vnum <= *last {
			return r.errorf("out of order after #%d", *last)
		}
		*last = vnum
		if line, err = parse(r, vnum); err != nil {
			return err
		}
	}
}
