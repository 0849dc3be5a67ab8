package media

import (
	"context"
	"fmt"
	"time"

	"gopkg.in/vansante/go-ffprobe.v2"
)

// FFProbe reads metadata with the ffprobe binary.
type FFProbe struct {
	timeout time.Duration
}

// NewFFProbe configures the probe. An empty binPath keeps the $PATH lookup.
func NewFFProbe(binPath string, timeout time.Duration) *FFProbe {
	if binPath != "" {
		ffprobe.SetFFProbeBinPath(binPath)
	}
	return &FFProbe{timeout: timeout}
}

var _ Prober = (*FFProbe)(nil)

func (p *FFProbe) Probe(ctx context.Context, path string) (Metadata, error) {
	if p.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.timeout)
		defer cancel()
	}

	data, err := ffprobe.ProbeURL(ctx, path)
	if err != nil {
		return Metadata{}, fmt.Errorf("ffprobe %s: %w", path, err)
	}

	var md Metadata
	if data.Format != nil {
		md.Duration = time.Duration(data.Format.DurationSeconds * float64(time.Second))
	}
	if v := data.FirstVideoStream(); v != nil {
		md.Width = v.Width
		md.Height = v.Height
	}
	return md, nil
}
