package catalog

import (
	"strings"

	"golang.org/x/mod/semver"
)

// CompareVersions orders version strings. Strings that are valid semantic
// versions (with or without a leading v) use semver precedence; anything
// else falls back to natural ordering, where digit runs compare numerically.
func CompareVersions(a, b string) int {
	sa, sb := canonical(a), canonical(b)
	if semver.IsValid(sa) && semver.IsValid(sb) {
		if c := semver.Compare(sa, sb); c != 0 {
			return c
		}
	}
	return naturalCompare(a, b)
}

func canonical(v string) string {
	if strings.HasPrefix(v, "v") {
		return v
	}
	return "v" + v
}

func naturalCompare(a, b string) int {
	for a != "" && b != "" {
		ra, restA := nextRun(a)
		rb, restB := nextRun(b)

		if isDigit(ra[0]) && isDigit(rb[0]) {
			if c := compareDigits(ra, rb); c != 0 {
				return c
			}
		} else if ra != rb {
			if ra < rb {
				return -1
			}
			return 1
		}
		a, b = restA, restB
	}

	switch {
	case a == "" && b == "":
		return 0
	case a == "":
		return -1
	default:
		return 1
	}
}

// nextRun splits off the leading run of digits or non-digits
func nextRun(s string) (string, string) {
	digit := isDigit(s[0])
	i := 1
	for i < len(s) && isDigit(s[i]) == digit {
		i++
	}
	return s[:i], s[i:]
}

func compareDigits(a, b string) int {
	a = strings.TrimLeft(a, "0")
	b = strings.TrimLeft(b, "0")
	if len(a) != len(b) {
		if len(a) < len(b) {
			return -1
		}
		return 1
	}
	return strings.Compare(a, b)
}

func isDigit(c byte) bool {
	return c >= '0' && c <= '9'
}
