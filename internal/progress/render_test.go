package progress

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func fakeTranslate(key string, args ...interface{}) string {
	if len(args) == 0 {
		return key
	}
	return fmt.Sprintf("%s%v", key, args)
}

func TestRender(t *testing.T) {
	text := Render(fakeTranslate, "Downloading", 10*time.Second, Sample{Transferred: 1536, Total: 3072})

	assert.Equal(t,
		"Downloading\n"+
			"progress.size[1.5 KiB 3 KiB]\n"+
			"progress.percent[50.00]\n"+
			"progress.speed[153.6 B/s]\n"+
			"progress.eta[10s]\n"+
			"progress.elapsed[10s]",
		text)
}

func TestRender_UnknownTotal(t *testing.T) {
	text := Render(fakeTranslate, "Uploading", 5*time.Second, Sample{})

	assert.Contains(t, text, "progress.size_unknown[]")
	assert.NotContains(t, text, "progress.percent")
	assert.Contains(t, text, "progress.speed[progress.not_available]")
	assert.Contains(t, text, "progress.eta[progress.not_available]")
}
