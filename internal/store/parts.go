package store

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// FormatParts renders sorted part numbers as ranges: [0 1 2 5] -> "0-2,5".
func FormatParts(parts []uint32) string {
	var b strings.Builder
	for i := 0; i < len(parts); {
		j := i
		for j+1 < len(parts) && parts[j+1] == parts[j]+1 {
			j++
		}
		if b.Len() > 0 {
			b.WriteByte(',')
		}
		b.WriteString(strconv.FormatUint(uint64(parts[i]), 10))
		if j > i {
			b.WriteByte('-')
			b.WriteString(strconv.FormatUint(uint64(parts[j]), 10))
		}
		i = j + 1
	}
	return b.String()
}

// ParseParts is the inverse of FormatParts.
func ParseParts(s string) ([]uint32, error) {
	if s == "" {
		return nil, nil
	}
	var parts []uint32
	for _, r := range strings.Split(s, ",") {
		lo, hi, isRange := strings.Cut(r, "-")
		first, err := strconv.ParseUint(lo, 10, 32)
		if err != nil {
			return nil, fmt.Errorf("%w: part range %q", ErrCorrupt, r)
		}
		last := first
		if isRange {
			if last, err = strconv.ParseUint(hi, 10, 32); err != nil || last < first {
				return nil, fmt.Errorf("%w: part range %q", ErrCorrupt, r)
			}
		}
		for p := first; p <= last; p++ {
			parts = append(parts, uint32(p))
		}
	}
	sort.Slice(parts, func(i, j int) bool { return parts[i] < parts[j] })
	return parts, nil
}
