package telegram

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeTempFile(t *testing.T, name string, size int) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	data := make([]byte, size)
	for i := range data {
		data[i] = byte(i % 251)
	}
	require.NoError(t, os.WriteFile(path, data, 0o644))
	return path
}

func TestSendVideo_Multipart(t *testing.T) {
	videoPath := writeTempFile(t, "clip.mp4", 256*1024)
	thumbPath := writeTempFile(t, "thumb.jpg", 2048)

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/botfake-token/sendVideo", r.URL.Path)
		assert.NoError(t, r.ParseMultipartForm(1<<20))

		assert.Equal(t, "123", r.FormValue("chat_id"))
		assert.Equal(t, "55", r.FormValue("reply_to_message_id"))
		assert.Equal(t, "Title", r.FormValue("caption"))
		assert.Equal(t, "30", r.FormValue("duration"))
		assert.Equal(t, "1920", r.FormValue("width"))
		assert.Equal(t, "1080", r.FormValue("height"))
		assert.Equal(t, "true", r.FormValue("supports_streaming"))

		if video, header, err := r.FormFile("video"); assert.NoError(t, err) {
			assert.Equal(t, "clip.mp4", header.Filename)
			data, _ := io.ReadAll(video)
			assert.Len(t, data, 256*1024)
			video.Close()
		}

		if thumb, _, err := r.FormFile("thumbnail"); assert.NoError(t, err) {
			thumb.Close()
		}

		_ = json.NewEncoder(w).Encode(APIResponse{
			Ok:     true,
			Result: json.RawMessage(`{"message_id": 99, "chat": {"id": 123, "type": "private"}}`),
		})
	}))
	defer server.Close()

	client := &Client{
		token:        "fake-token",
		uploadClient: server.Client(),
		apiURL:       server.URL + "/botfake-token",
	}

	var mu sync.Mutex
	var lastSent, lastTotal int64
	msg, err := client.SendVideo(context.Background(), SendVideoRequest{
		ChatID:            123,
		ReplyToMessageID:  55,
		Path:              videoPath,
		Caption:           "Title",
		Duration:          30,
		Width:             1920,
		Height:            1080,
		Thumbnail:         thumbPath,
		SupportsStreaming: true,
		Progress: func(sent, total int64) {
			mu.Lock()
			defer mu.Unlock()
			assert.GreaterOrEqual(t, sent, lastSent, "progress is monotonic")
			lastSent, lastTotal = sent, total
		},
	})
	require.NoError(t, err)
	assert.Equal(t, 99, msg.MessageID)

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, int64(256*1024+2048), lastTotal)
	assert.Equal(t, lastTotal, lastSent)
}

func TestSendVideoNote_Fields(t *testing.T) {
	notePath := writeTempFile(t, "note.mp4", 1024)

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/botfake-token/sendVideoNote", r.URL.Path)
		assert.NoError(t, r.ParseMultipartForm(1<<20))
		assert.Equal(t, "480", r.FormValue("length"))
		assert.Equal(t, "30", r.FormValue("duration"))
		assert.Empty(t, r.FormValue("caption"))
		if note, _, err := r.FormFile("video_note"); assert.NoError(t, err) {
			note.Close()
		}
		_, _, err := r.FormFile("thumbnail")
		assert.ErrorIs(t, err, http.ErrMissingFile)

		_ = json.NewEncoder(w).Encode(APIResponse{Ok: true, Result: json.RawMessage(`{"message_id": 1}`)})
	}))
	defer server.Close()

	client := &Client{token: "fake-token", uploadClient: server.Client(), apiURL: server.URL + "/botfake-token"}

	_, err := client.SendVideoNote(context.Background(), SendVideoNoteRequest{
		ChatID:   1,
		Path:     notePath,
		Duration: 30,
		Length:   480,
	})
	assert.NoError(t, err)
}

func TestUpload_APIError(t *testing.T) {
	docPath := writeTempFile(t, "file.zip", 1024)

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.Copy(io.Discard, r.Body)
		w.WriteHeader(http.StatusRequestEntityTooLarge)
		_, _ = w.Write([]byte(`{"ok": false, "error_code": 413, "description": "Request Entity Too Large"}`))
	}))
	defer server.Close()

	client := &Client{token: "fake-token", uploadClient: server.Client(), apiURL: server.URL + "/botfake-token"}

	_, err := client.SendDocument(context.Background(), SendDocumentRequest{ChatID: 1, Path: docPath})
	require.Error(t, err)
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, 413, apiErr.Code)
	assert.Equal(t, "sendDocument", apiErr.Method)
}

func TestUpload_MissingFile(t *testing.T) {
	client := &Client{token: "fake-token", uploadClient: http.DefaultClient, apiURL: "http://unused"}

	_, err := client.SendAudio(context.Background(), SendAudioRequest{ChatID: 1, Path: "/does/not/exist.mp3"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to stat audio")
}
