package data

import (
	"bufio"
	"fmt"
	"io"
	"io/fs"
	"strconv"
	"strings"
)

// FormatError reports malformed world data. The world cannot boot on it.
type FormatError struct {
	File   string
	Line   int
	Record string // e.g. "room #3001", empty before the first record
	Msg    string
}

func (e *FormatError) Error() string {
	if e.Record == "" {
		return fmt.Sprintf("%s:%d: %s", e.File, e.Line, e.Msg)
	}
	return fmt.Sprintf("%s:%d: %s: %s", e.File, e.Line, e.Record, e.Msg)
}

// lineReader walks a world file line by line, keeping the line number for
// error messages.
type lineReader struct {
	sc     *bufio.Scanner
	file   string
	line   int
	record string
}

func newLineReader(r io.Reader, file string) *lineReader {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 4096), 1<<20)
	return &lineReader{sc: sc, file: file}
}

func openLines(fsys fs.FS, name string) (*lineReader, func() error, error) {
	f, err := fsys.Open(name)
	if err != nil {
		return nil, nil, fmt.Errorf("open %s: %w", name, err)
	}
	return newLineReader(f, name), f.Close, nil
}

func (r *lineReader) raw() (string, bool) {
	if !r.sc.Scan() {
		return "", false
	}
	r.line++
	return strings.TrimRight(r.sc.Text(), "\r\n"), true
}

// next returns the next line that is neither empty nor a '*' comment.
func (r *lineReader) next() (string, bool) {
	for {
		l, ok := r.raw()
		if !ok {
			return "", false
		}
		if l == "" || l[0] == '*' {
			continue
		}
		return l, true
	}
}

// mustNext is next for places where the file may not end.
func (r *lineReader) mustNext(expect string) (string, error) {
	l, ok := r.next()
	if !ok {
		return "", r.errorf("file ended, expecting %s", expect)
	}
	return l, nil
}

// readString reads a '~' terminated string that may span several lines.
// Anything after the '~' on its line is ignored.
func (r *lineReader) readString() (string, error) {
	var b strings.Builder
	for {
		l, ok := r.raw()
		if !ok {
			return "", r.errorf("file ended inside a ~ string")
		}
		if i := strings.IndexByte(l, '~'); i >= 0 {
			b.WriteString(l[:i])
			return b.String(), nil
		}
		b.WriteString(l)
		b.WriteByte('\n')
	}
}

func (r *lineReader) errorf(format string, args ...any) error {
	return &FormatError{File: r.file, Line: r.line, Record: r.record, Msg: fmt.Sprintf(format, args...)}
}

// ints parses the first n whitespace separated integers of line. Trailing
// fields are ignored.
func (r *lineReader) ints(line string, n int, expect string) ([]int64, error) {
	fields := strings.Fields(line)
	if len(fields) < n {
		return nil, r.errorf("expecting line of form '%s', got %q", expect, line)
	}
	out := make([]int64, n)
	for i := 0; i < n; i++ {
		v, err := strconv.ParseInt(fields[i], 10, 64)
		if err != nil {
			return nil, r.errorf("expecting line of form '%s', got %q", expect, line)
		}
		out[i] = v
	}
	return out, nil
}

// recordNumber parses a "#<vnum>" line.
func (r *lineReader) recordNumber(line string) (int32, error) {
	if len(line) < 2 || line[0] != '#' {
		return 0, r.errorf("expecting #<number>, got %q", line)
	}
	v, err := strconv.ParseInt(strings.TrimSpace(line[1:]), 10, 32)
	if err != nil {
		return 0, r.errorf("bad record number %q", line)
	}
	return int32(v), nil
}

// AsciiFlag converts a flag field. An all-digit field is a literal number;
// otherwise 'a'..'z' set bits 0..25 and 'A'..'Z' set bits 26..51.
func AsciiFlag(s string) int64 {
	if s == "" {
		return 0
	}
	allDigits := true
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			allDigits = false
			break
		}
	}
	if allDigits {
		v, _ := strconv.ParseInt(s, 10, 64)
		return v
	}
	var flags int64
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case c >= 'a' && c <= 'z':
			flags |= 1 << (c - 'a')
		case c >= 'A' && c <= 'Z':
			flags |= 1 << (26 + c - 'A')
		}
	}
	return flags
}

// Dice is an XdY+Z expression.
type Dice struct {
	Num  int
	Size int
	Add  int
}

func parseDice(s string) (Dice, bool) {
	di := strings.IndexByte(s, 'd')
	pi := strings.IndexByte(s, '+')
	if di <= 0 || pi <= di+1 || pi == len(s)-1 {
		return Dice{}, false
	}
	n, err1 := strconv.Atoi(s[:di])
	sz, err2 := strconv.Atoi(s[di+1 : pi])
	add, err3 := strconv.Atoi(s[pi+1:])
	if err1 != nil || err2 != nil || err3 != nil {
		return Dice{}, false
	}
	return Dice{Num: n, Size: sz, Add: add}, true
}

func (d Dice) String() string { return fmt.Sprintf("%dd%d+%d", d.Num, d.Size, d.Add) }

// ExtraDesc is a keyword-addressed look description.
type ExtraDesc struct {
	Keyword     string
	Description string
}

// readIndex lists the data files named by dir/index, up to the '$' line.
func readIndex(fsys fs.FS, dir string) ([]string, error) {
	name := dir + "/index"
	r, closeFn, err := openLines(fsys, name)
	if err != nil {
		return nil, err
	}
	defer closeFn()

	var files []string
	for {
		l, ok := r.next()
		if !ok {
			return nil, r.errorf("index ended without '$'")
		}
		l = strings.TrimSpace(l)
		if l == "$" {
			break
		}
		files = append(files, dir+"/"+l)
	}
	if len(files) == 0 {
		return nil, r.errorf("index lists no files")
	}
	return files, nil
}
