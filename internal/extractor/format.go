package extractor

import (
	"strconv"

	"github.com/runixer/grabber/internal/progress"
)

// Containers offered in the quality menu.
var menuContainers = map[string]bool{
	"mp4":  true,
	"mkv":  true,
	"webm": true,
}

// Format is one candidate encoding reported by the engine.
// Zero Height, FPS or size means the engine did not report it.
type Format struct {
	ID             string  `json:"format_id"`
	Ext            string  `json:"ext"`
	Height         int     `json:"height"`
	FPS            float64 `json:"fps"`
	VCodec         string  `json:"vcodec"`
	ACodec         string  `json:"acodec"`
	FileSize       float64 `json:"filesize"`
	FileSizeApprox float64 `json:"filesize_approx"`
}

// Size returns the exact size if known, otherwise the estimate.
func (f Format) Size() float64 {
	if f.FileSize > 0 {
		return f.FileSize
	}
	return f.FileSizeApprox
}

// Eligible reports whether the format carries both audio and video, has a
// known height and uses a container offered in the menu.
func Eligible(f Format) bool {
	return f.VCodec != "none" &&
		f.ACodec != "none" &&
		f.Height > 0 &&
		menuContainers[f.Ext]
}

// Label renders the button text, e.g. "720p@30fps (mp4) [12.5 MiB]".
// unknownSize is used when the engine reported no size.
func Label(f Format, unknownSize string) string {
	label := strconv.Itoa(f.Height) + "p"
	if fps := int(f.FPS); fps > 0 {
		label += "@" + strconv.Itoa(fps) + "fps"
	}
	label += " (" + f.Ext + ")"

	if size := progress.FormatBytes(f.Size()); size != "" {
		label += " [" + size + "]"
	} else {
		label += " [" + unknownSize + "]"
	}
	return label
}
