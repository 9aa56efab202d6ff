package load

import (
	"strconv"
	"strings"
	"time"

	"tidbyt.dev/txc/transform"
)

const feedNameDateLayout = "20060102"

// FeedName derives the name of a revision from what it contains.
// Localities are the run's most common locality names, "unknown"
// last. Empty if there are no lines, in which case the revision
// keeps its name.
func FeedName(organisation string, localities []string, start time.Time, lineCount int, lineNames []string) string {
	locality := func(i int) string {
		if i < len(localities) {
			return localities[i]
		}
		return transform.UnknownName
	}

	var parts []string
	switch {
	case lineCount == 0:
		return ""
	case lineCount == 1:
		parts = []string{organisation, locality(0), strings.Join(lineNames, "_")}
	default:
		parts = []string{organisation, locality(0), locality(1)}
	}

	return strings.Join(append(parts, start.Format(feedNameDateLayout)), "_")
}

// ResolveName disambiguates a candidate name against the existing
// names it prefixes, sorted. The candidate is used as is when
// nothing matches, otherwise the highest numeric suffix is
// incremented.
func ResolveName(candidate string, existing []string) string {
	matches := []string{}
	for _, name := range existing {
		if strings.HasPrefix(name, candidate) {
			matches = append(matches, name)
		}
	}

	if len(matches) == 0 {
		return candidate
	}
	if len(matches) == 1 && matches[0] == candidate {
		return candidate + "_1"
	}

	highest := 0
	for _, name := range matches {
		if n, ok := suffixNumber(name, candidate); ok {
			highest = max(highest, n)
		}
	}

	return candidate + "_" + strconv.Itoa(highest+1)
}

// The n of a name of the form candidate_n.
func suffixNumber(name, candidate string) (int, bool) {
	suffix, ok := strings.CutPrefix(name, candidate+"_")
	if !ok {
		return 0, false
	}
	n, err := strconv.Atoi(suffix)
	if err != nil || n < 0 || strconv.Itoa(n) != suffix {
		return 0, false
	}
	return n, true
}

// Whether name is candidate or one of its disambiguated forms.
func isVariant(name, candidate string) bool {
	if name == candidate {
		return true
	}
	_, ok := suffixNumber(name, candidate)
	return ok
}
