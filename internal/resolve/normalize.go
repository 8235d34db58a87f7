// Package resolve maps filer names and office codes onto canonical
// official records.
package resolve

import (
	"regexp"
	"strings"
)

// honorifics are dropped from filer names before matching.
var honorifics = map[string]bool{
	"HON": true, "HONORABLE": true, "REP": true, "REPRESENTATIVE": true,
	"SEN": true, "SENATOR": true, "MR": true, "MRS": true, "MS": true,
	"DR": true, "DELEGATE": true, "DEL": true,
}

var (
	multiSpaceRe = regexp.MustCompile(`\s{2,}`)
	officeRe     = regexp.MustCompile(`^([A-Z]{2})(\d{0,2})`)
)

// CanonicalName returns the display form of a filer name: comma-separated
// parts with honorifics removed, e.g. "Doe, Hon.. Jane" and
// "Doe, Jane, Hon." both become "Doe, Jane".
func CanonicalName(name string) string {
	var parts []string
	for _, part := range strings.Split(name, ",") {
		var words []string
		for _, w := range strings.Fields(part) {
			if honorifics[strings.ToUpper(strings.Trim(w, "."))] {
				continue
			}
			words = append(words, w)
		}
		if len(words) > 0 {
			parts = append(parts, strings.Join(words, " "))
		}
	}
	return strings.Join(parts, ", ")
}

// NormalizeName standardizes a filer name for matching by:
//  1. Dropping honorifics
//  2. Converting to uppercase
//  3. Stripping punctuation (commas, periods, quotes)
//  4. Collapsing multiple spaces into single spaces
func NormalizeName(name string) string {
	name = strings.ToUpper(CanonicalName(strings.TrimSpace(name)))
	if name == "" {
		return ""
	}

	name = strings.NewReplacer(
		",", " ",
		".", "",
		"'", "",
		"\"", "",
		"-", " ",
	).Replace(name)

	name = multiSpaceRe.ReplaceAllString(name, " ")
	return strings.TrimSpace(name)
}

// ParseOffice splits an office code such as "CA12" into jurisdiction ("CA")
// and sub-jurisdiction ("12"). Codes that do not start with two letters
// yield empty strings.
func ParseOffice(office string) (jurisdiction, sub string) {
	m := officeRe.FindStringSubmatch(strings.ToUpper(strings.TrimSpace(office)))
	if m == nil {
		return "", ""
	}
	return m[1], m[2]
}
