package pipeline

import (
	"testing"

	"github.com/runixer/grabber/internal/testutil"
	"github.com/stretchr/testify/assert"
)

func TestTransition(t *testing.T) {
	tests := []struct {
		from, to State
		ok       bool
	}{
		{MenuRequested, FormatsListed, true},
		{MenuRequested, Failed, true},
		{FormatsListed, SelectionReceived, true},
		{SelectionReceived, Downloading, true},
		{Downloading, DownloadComplete, true},
		{Downloading, DownloadFailed, true},
		{DownloadFailed, CleanedUp, true},
		{DownloadComplete, SizeCheck, true},
		{SizeCheck, Uploading, true},
		{SizeCheck, Failed, true},
		{Uploading, UploadComplete, true},
		{Uploading, UploadFailed, true},
		{UploadFailed, CleanedUp, true},
		{UploadComplete, CleanedUp, true},
		{Failed, CleanedUp, true},

		{Downloading, Uploading, false},
		{DownloadComplete, Uploading, false},
		{UploadComplete, Failed, false},
		{CleanedUp, MenuRequested, false},
		{MenuRequested, Downloading, false},
	}

	for _, tt := range tests {
		t.Run(tt.from.String()+"->"+tt.to.String(), func(t *testing.T) {
			err := transition(tt.from, tt.to)
			if tt.ok {
				assert.NoError(t, err)
			} else {
				assert.Error(t, err)
			}
		})
	}
}

func TestEveryFailureReachesCleanup(t *testing.T) {
	for _, s := range []State{DownloadFailed, UploadFailed, Failed, UploadComplete} {
		assert.NoError(t, transition(s, CleanedUp), s.String())
	}
	assert.True(t, CleanedUp.Terminal())
	for s := MenuRequested; s < CleanedUp; s++ {
		assert.False(t, s.Terminal(), s.String())
	}
}

func TestMachine_InvalidTransitionIsLogged(t *testing.T) {
	logs := testutil.NewLogCapture()
	m := newMachine(Downloading, logs.Logger())

	m.advance(Uploading)

	assert.Equal(t, Uploading, m.current())
	testutil.AssertLogContains(t, logs.Entries(), "error", "state machine violation")
}

func TestState_String(t *testing.T) {
	assert.Equal(t, "size_check", SizeCheck.String())
	assert.Equal(t, "state(99)", State(99).String())
}
