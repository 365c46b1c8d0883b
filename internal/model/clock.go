package model

import (
	"regexp"
	"strconv"
	"strings"
)

var (
	clockPlusRe   = regexp.MustCompile(`^(\d+)\s*\+\s*(\d+)\s*'?`)
	clockDigitsRe = regexp.MustCompile(`(\d+)\s*'?`)
)

// ParseClockMinute extracts the minute from a provider clock string.
// Handles "45:23" (minute:second), "111'", "45+3'" (=> 48) and bare
// digits. Returns -1 when the clock carries no parsable minute; clock
// strings themselves are always preserved verbatim on the scoreboard.
func ParseClockMinute(clock string) int {
	s := strings.TrimSpace(clock)
	if s == "" {
		return -1
	}
	if i := strings.IndexByte(s, ':'); i > 0 {
		if n, err := strconv.Atoi(s[:i]); err == nil {
			return n
		}
		return -1
	}
	if m := clockPlusRe.FindStringSubmatch(s); m != nil {
		base, _ := strconv.Atoi(m[1])
		added, _ := strconv.Atoi(m[2])
		return base + added
	}
	if m := clockDigitsRe.FindStringSubmatch(s); m != nil {
		n, _ := strconv.Atoi(m[1])
		return n
	}
	return -1
}
