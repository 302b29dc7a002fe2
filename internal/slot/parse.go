// Package slot implements slot label parsing, the per-owner slot registry,
// and the append-only rename history that resolves stale labels to their
// current canonical form.
//
// Slot labels are opaque strings ("9:00 AM - 10:00 AM"); the only structure
// the scheduler ever extracts from them is a start-time sort key.
package slot

import (
	"regexp"
	"sort"
	"strconv"
	"strings"
)

// MaxSortKey is the sort key assigned to labels whose start time cannot be
// parsed. Unparseable labels sort last, never error.
const MaxSortKey = 1 << 30

// startRe matches the leading time expression of a label: an hour, an
// optional ":minutes" part, and an optional AM/PM suffix.
var startRe = regexp.MustCompile(`^\s*(\d{1,2})(?::(\d{2}))?\s*([AaPp][Mm])?`)

// ParseStart extracts the start time of a label of the form
// "<start> - <end>" as minutes since midnight.
//
// With an AM/PM suffix the hour is interpreted on a 12-hour clock
// (12 AM = 0, 12 PM = 720). Without a suffix the value is taken as already
// being on a 24-hour clock. Labels that do not begin with a time expression
// get MaxSortKey.
func ParseStart(label string) int {
	start := label
	if i := strings.Index(label, " - "); i >= 0 {
		start = label[:i]
	} else if i := strings.Index(label, "-"); i >= 0 {
		start = label[:i]
	}

	m := startRe.FindStringSubmatch(start)
	if m == nil || m[1] == "" {
		return MaxSortKey
	}

	hour, err := strconv.Atoi(m[1])
	if err != nil {
		return MaxSortKey
	}
	minute := 0
	if m[2] != "" {
		minute, err = strconv.Atoi(m[2])
		if err != nil || minute > 59 {
			return MaxSortKey
		}
	}

	switch strings.ToUpper(m[3]) {
	case "AM":
		if hour < 1 || hour > 12 {
			return MaxSortKey
		}
		if hour == 12 {
			hour = 0
		}
	case "PM":
		if hour < 1 || hour > 12 {
			return MaxSortKey
		}
		if hour != 12 {
			hour += 12
		}
	default:
		// No suffix: 24-hour clock.
		if hour > 23 {
			return MaxSortKey
		}
	}

	return hour*60 + minute
}

// SortSlots orders labels chronologically by start time, stably, so
// unparseable labels keep their relative order at the end. The input slice
// is sorted in place and returned.
func SortSlots(labels []string) []string {
	sort.SliceStable(labels, func(i, j int) bool {
		return ParseStart(labels[i]) < ParseStart(labels[j])
	})
	return labels
}
