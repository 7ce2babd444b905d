// Package es holds the Spanish text helpers shared by date parsing,
// market-table lookup and product-name matching.
package es

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// Months are the canonical lowercase Spanish month names, index 0 = enero.
var Months = [12]string{
	"enero", "febrero", "marzo", "abril", "mayo", "junio",
	"julio", "agosto", "septiembre", "octubre", "noviembre", "diciembre",
}

var stripMarks = transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)

// Fold strips diacritics, trims and lowercases, so that "Maíz" and "maiz"
// compare equal. Used for every name-based lookup in the system.
func Fold(s string) string {
	out, _, err := transform.String(stripMarks, s)
	if err != nil {
		out = s
	}
	return strings.ToLower(strings.TrimSpace(out))
}

// monthAliases maps folded month names and common abbreviations to a
// zero-based month index.
var monthAliases = map[string]int{
	"enero": 0, "ene": 0,
	"febrero": 1, "feb": 1,
	"marzo": 2, "mar": 2,
	"abril": 3, "abr": 3,
	"mayo": 4, "may": 4,
	"junio": 5, "jun": 5,
	"julio": 6, "jul": 6,
	"agosto": 7, "ago": 7,
	"septiembre": 8, "setiembre": 8, "sept": 8, "sep": 8,
	"octubre": 9, "oct": 9,
	"noviembre": 10, "nov": 10,
	"diciembre": 11, "dic": 11,
}

// MonthIndex resolves a Spanish month name or abbreviation (with or without
// diacritics or a trailing dot) to its zero-based index.
func MonthIndex(name string) (int, bool) {
	key := Fold(strings.ReplaceAll(name, ".", ""))
	idx, ok := monthAliases[key]
	return idx, ok
}

// MonthName returns the capitalized Spanish name for a zero-based month index.
func MonthName(idx int) string {
	if idx < 0 || idx > 11 {
		return ""
	}
	m := Months[idx]
	return strings.ToUpper(m[:1]) + m[1:]
}
