package deb

import (
	"strconv"
	"strings"
	"unicode"
)

// Debian version handling per policy §5.6.12:
// [epoch:]upstream_version[-debian_revision]

// SplitVersion breaks a full version into its components, any of which may
// be empty except upstream.
func SplitVersion(version string) (epoch, upstream, revision string) {
	if i := strings.LastIndex(version, "-"); i != -1 {
		revision, version = version[i+1:], version[:i]
	}

	if i := strings.Index(version, ":"); i != -1 {
		epoch, version = version[:i], version[i+1:]
	}

	upstream = version
	return
}

// ValidVersion reports whether version conforms to the Debian version
// grammar: an optional numeric epoch, an upstream version starting with a
// digit, and an optional revision.
func ValidVersion(version string) bool {
	epoch, upstream, revision := SplitVersion(version)

	if epoch != "" {
		if _, err := strconv.Atoi(epoch); err != nil {
			return false
		}
	}

	if upstream == "" || !unicode.IsDigit(rune(upstream[0])) {
		return false
	}
	for _, c := range upstream {
		if !unicode.IsDigit(c) && !unicode.IsLetter(c) && !strings.ContainsRune(".+-~", c) {
			// colons are only allowed when an epoch is present
			if !(c == ':' && epoch != "") {
				return false
			}
		}
	}

	for _, c := range revision {
		if !unicode.IsDigit(c) && !unicode.IsLetter(c) && !strings.ContainsRune(".+~", c) {
			return false
		}
	}

	return true
}

// CompareVersions compares two package versions, returning -1, 0 or 1 when
// a is earlier than, equal to or later than b in Debian version order.
func CompareVersions(a, b string) int {
	e1, u1, r1 := SplitVersion(a)
	e2, u2, r2 := SplitVersion(b)

	if r := comparePart(e1, e2); r != 0 {
		return r
	}
	if r := comparePart(u1, u2); r != 0 {
		return r
	}
	return comparePart(r1, r2)
}

// compareNonDigits compares runs of non-digit characters: letters sort
// before non-letters, and a tilde sorts before anything, including the end
// of the part.
func compareNonDigits(s1, s2 string) int {
	i := 0
	l1, l2 := len(s1), len(s2)

	for {
		if i == l1 && i == l2 {
			return 0
		}

		if i == l2 {
			if s1[i] == '~' {
				return -1
			}
			return 1
		}

		if i == l1 {
			if s2[i] == '~' {
				return 1
			}
			return -1
		}

		if s1[i] == s2[i] {
			i++
			continue
		}

		if s1[i] == '~' {
			return -1
		}
		if s2[i] == '~' {
			return 1
		}

		a1, a2 := unicode.IsLetter(rune(s1[i])), unicode.IsLetter(rune(s2[i]))
		if a1 && !a2 {
			return -1
		}
		if !a1 && a2 {
			return 1
		}

		if s1[i] < s2[i] {
			return -1
		}
		return 1
	}
}

// comparePart compares one version component by alternating non-digit and
// digit runs, as described in the policy manual.
func comparePart(p1, p2 string) int {
	i1, i2 := 0, 0
	l1, l2 := len(p1), len(p2)

	for i1 < l1 || i2 < l2 {
		j1, j2 := i1, i2
		for j1 < l1 && !unicode.IsDigit(rune(p1[j1])) {
			j1++
		}
		for j2 < l2 && !unicode.IsDigit(rune(p2[j2])) {
			j2++
		}

		if r := compareNonDigits(p1[i1:j1], p2[i2:j2]); r != 0 {
			return r
		}

		i1, i2 = j1, j2

		for j1 < l1 && unicode.IsDigit(rune(p1[j1])) {
			j1++
		}
		for j2 < l2 && unicode.IsDigit(rune(p2[j2])) {
			j2++
		}

		n1, n2 := 0, 0
		if j1 > i1 {
			n1, _ = strconv.Atoi(p1[i1:j1])
		}
		if j2 > i2 {
			n2, _ = strconv.Atoi(p2[i2:j2])
		}

		if n1 < n2 {
			return -1
		}
		if n1 > n2 {
			return 1
		}

		i1, i2 = j1, j2
	}

	return 0
}
