package catalog

import (
	"strconv"
	"strings"
)

var sizeUnits = []struct {
	suffix     string
	multiplier float64
}{
	{"TIB", 1 << 40}, {"GIB", 1 << 30}, {"MIB", 1 << 20}, {"KIB", 1 << 10},
	{"TB", 1 << 40}, {"GB", 1 << 30}, {"MB", 1 << 20}, {"KB", 1 << 10},
	{"B", 1},
}

// ParseFileSize converts catalog sizes like "6.7 GB" or "850 MB" to bytes.
// Unparseable values yield 0.
func ParseFileSize(raw string) int64 {
	value := strings.ToUpper(strings.TrimSpace(raw))
	if value == "" {
		return 0
	}

	multiplier := float64(0)
	number := value
	for _, unit := range sizeUnits {
		if strings.HasSuffix(value, unit.suffix) {
			multiplier = unit.multiplier
			number = strings.TrimSpace(strings.TrimSuffix(value, unit.suffix))
			break
		}
	}
	if multiplier == 0 {
		parsed, err := strconv.ParseInt(number, 10, 64)
		if err != nil || parsed < 0 {
			return 0
		}
		return parsed
	}

	parsed, err := strconv.ParseFloat(strings.ReplaceAll(number, ",", "."), 64)
	if err != nil || parsed < 0 {
		return 0
	}
	return int64(parsed * multiplier)
}
