package progress

import (
	"fmt"
	"strings"
	"time"
)

// Translate resolves a locale key, formatting args into it.
type Translate func(key string, args ...interface{}) string

// Render builds the status text for one emitted sample.
func Render(tr Translate, title string, elapsed time.Duration, s Sample) string {
	st := Compute(elapsed, s)

	var sb strings.Builder
	sb.WriteString(title)

	if s.Total > 0 {
		sb.WriteString("\n" + tr("progress.size", FormatBytes(float64(s.Transferred)), FormatBytes(float64(s.Total))))
	} else {
		sb.WriteString("\n" + tr("progress.size_unknown", FormatBytes(float64(s.Transferred))))
	}
	if st.HasPercent {
		sb.WriteString("\n" + tr("progress.percent", fmt.Sprintf("%.2f", st.Percent)))
	}

	speed := FormatBytes(st.Speed)
	if speed == "" {
		speed = tr("progress.not_available")
	} else {
		speed += "/s"
	}
	sb.WriteString("\n" + tr("progress.speed", speed))

	eta := FormatDuration(st.ETA)
	if eta == "" {
		eta = tr("progress.not_available")
	}
	sb.WriteString("\n" + tr("progress.eta", eta))
	sb.WriteString("\n" + tr("progress.elapsed", FormatDuration(st.Elapsed.Round(time.Second))))

	return sb.String()
}
