package codec

import (
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

var lower = cases.Lower(language.Und)

// FoldName returns the canonical index key of a character name.
func FoldName(name string) string {
	return lower.String(strings.TrimSpace(name))
}

// CapName returns the display form of a stored name, first letter upper-cased.
func CapName(name string) string {
	if name == "" {
		return ""
	}
	r := []rune(name)
	return strings.ToUpper(string(r[0])) + string(r[1:])
}
