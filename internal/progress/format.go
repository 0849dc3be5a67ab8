package progress

import (
	"math"
	"strconv"
	"strings"
	"time"
)

var byteUnits = []string{"", "Ki", "Mi", "Gi", "Ti"}

// FormatBytes renders size with binary magnitude suffixes rounded to two
// decimals: 1536 becomes "1.5 KiB". Zero or negative sizes render as "".
func FormatBytes(size float64) string {
	if size <= 0 {
		return ""
	}
	n := 0
	for size > 1024 && n < len(byteUnits)-1 {
		size /= 1024
		n++
	}
	rounded := math.Round(size*100) / 100
	return strconv.FormatFloat(rounded, 'f', -1, 64) + " " + byteUnits[n] + "B"
}

// FormatDuration renders d as non-zero units from days down to milliseconds,
// e.g. "1d, 1h, 1m, 1s" or "500ms". A zero duration renders as "".
func FormatDuration(d time.Duration) string {
	ms := d.Milliseconds()
	if ms < 0 {
		ms = 0
	}

	seconds, ms := ms/1000, ms%1000
	minutes, seconds := seconds/60, seconds%60
	hours, minutes := minutes/60, minutes%60
	days, hours := hours/24, hours%24

	var parts []string
	for _, p := range []struct {
		v    int64
		unit string
	}{
		{days, "d"},
		{hours, "h"},
		{minutes, "m"},
		{seconds, "s"},
		{ms, "ms"},
	} {
		if p.v != 0 {
			parts = append(parts, strconv.FormatInt(p.v, 10)+p.unit)
		}
	}
	return strings.Join(parts, ", ")
}
