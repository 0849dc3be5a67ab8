package telegram

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"sync/atomic"
	"time"
)

var _ BotAPI = (*Client)(nil)

// inputFile is a local file attached to a multipart request.
type inputFile struct {
	field string
	path  string
}

// multipartRequest describes one upload call.
type multipartRequest struct {
	method   string
	fields   map[string]string
	files    []inputFile
	progress UploadProgressFunc
}

// SendVideo uploads a video file.
func (c *Client) SendVideo(ctx context.Context, req SendVideoRequest) (*Message, error) {
	fields := baseFields(req.ChatID, req.ReplyToMessageID, req.Caption)
	setInt(fields, "duration", req.Duration)
	setInt(fields, "width", req.Width)
	setInt(fields, "height", req.Height)
	if req.SupportsStreaming {
		fields["supports_streaming"] = "true"
	}
	return c.upload(ctx, multipartRequest{
		method:   "sendVideo",
		fields:   fields,
		files:    withThumbnail(inputFile{field: "video", path: req.Path}, req.Thumbnail),
		progress: req.Progress,
	})
}

// SendAudio uploads an audio file.
func (c *Client) SendAudio(ctx context.Context, req SendAudioRequest) (*Message, error) {
	fields := baseFields(req.ChatID, req.ReplyToMessageID, req.Caption)
	setInt(fields, "duration", req.Duration)
	if req.Title != "" {
		fields["title"] = req.Title
	}
	return c.upload(ctx, multipartRequest{
		method:   "sendAudio",
		fields:   fields,
		files:    withThumbnail(inputFile{field: "audio", path: req.Path}, req.Thumbnail),
		progress: req.Progress,
	})
}

// SendDocument uploads a generic file.
func (c *Client) SendDocument(ctx context.Context, req SendDocumentRequest) (*Message, error) {
	fields := baseFields(req.ChatID, req.ReplyToMessageID, req.Caption)
	return c.upload(ctx, multipartRequest{
		method:   "sendDocument",
		fields:   fields,
		files:    withThumbnail(inputFile{field: "document", path: req.Path}, req.Thumbnail),
		progress: req.Progress,
	})
}

// SendVideoNote uploads a square video as a round video message.
func (c *Client) SendVideoNote(ctx context.Context, req SendVideoNoteRequest) (*Message, error) {
	fields := baseFields(req.ChatID, req.ReplyToMessageID, "")
	setInt(fields, "duration", req.Duration)
	setInt(fields, "length", req.Length)
	return c.upload(ctx, multipartRequest{
		method:   "sendVideoNote",
		fields:   fields,
		files:    withThumbnail(inputFile{field: "video_note", path: req.Path}, req.Thumbnail),
		progress: req.Progress,
	})
}

func baseFields(chatID int64, replyTo int, caption string) map[string]string {
	fields := map[string]string{
		"chat_id": strconv.FormatInt(chatID, 10),
	}
	if replyTo != 0 {
		fields["reply_to_message_id"] = strconv.Itoa(replyTo)
		fields["allow_sending_without_reply"] = "true"
	}
	if caption != "" {
		fields["caption"] = caption
	}
	return fields
}

func setInt(fields map[string]string, key string, v int) {
	if v > 0 {
		fields[key] = strconv.Itoa(v)
	}
}

func withThumbnail(media inputFile, thumbnail string) []inputFile {
	files := []inputFile{media}
	if thumbnail != "" {
		files = append(files, inputFile{field: "thumbnail", path: thumbnail})
	}
	return files
}

// upload streams a multipart/form-data body through an io.Pipe so that
// multi-gigabyte files are never held in memory.
//
// Retry не выполняется: тело запроса одноразовое, а повторная загрузка
// большого файла должна решаться вызывающим кодом.
func (c *Client) upload(ctx context.Context, req multipartRequest) (*Message, error) {
	startTime := time.Now()

	var total int64
	for _, f := range req.files {
		info, err := os.Stat(f.path)
		if err != nil {
			return nil, fmt.Errorf("failed to stat %s: %w", f.field, err)
		}
		total += info.Size()
	}

	pr, pw := io.Pipe()
	mw := multipart.NewWriter(pw)

	go func() {
		pw.CloseWithError(writeMultipart(mw, req, total))
	}()

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, fmt.Sprintf("%s/%s", c.apiURL, req.method), pr)
	if err != nil {
		pr.Close()
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", mw.FormDataContentType())

	resp, err := c.uploadClient.Do(httpReq)
	if err != nil {
		pr.CloseWithError(err)
		duration := time.Since(startTime).Seconds()
		if isTimeoutError(err) {
			recordRequestDuration(req.method, statusTimeout, duration)
			recordError(req.method, errorTypeTimeout)
		} else {
			recordRequestDuration(req.method, statusError, duration)
			recordError(req.method, errorTypeNetwork)
		}
		return nil, fmt.Errorf("failed to perform request: %w", c.redact(err))
	}
	defer resp.Body.Close()

	var apiResp APIResponse
	if err := json.NewDecoder(resp.Body).Decode(&apiResp); err != nil {
		recordRequestDuration(req.method, statusError, time.Since(startTime).Seconds())
		recordError(req.method, errorTypeDecode)
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}

	if !apiResp.Ok {
		recordRequestDuration(req.method, statusError, time.Since(startTime).Seconds())
		recordError(req.method, errorTypeAPI)
		return nil, newAPIError(req.method, &apiResp)
	}

	recordRequestDuration(req.method, statusSuccess, time.Since(startTime).Seconds())
	recordUploadBytes(req.method, total)
	return decodeMessage(&apiResp)
}

func writeMultipart(mw *multipart.Writer, req multipartRequest, total int64) error {
	for key, value := range req.fields {
		if err := mw.WriteField(key, value); err != nil {
			return err
		}
	}

	var sent atomic.Int64
	for _, f := range req.files {
		if err := copyFilePart(mw, f, func(n int64) {
			if req.progress != nil {
				req.progress(sent.Add(n), total)
			}
		}); err != nil {
			return err
		}
	}
	return mw.Close()
}

func copyFilePart(mw *multipart.Writer, f inputFile, onWrite func(n int64)) error {
	file, err := os.Open(f.path)
	if err != nil {
		return err
	}
	defer file.Close()

	part, err := mw.CreateFormFile(f.field, filepath.Base(f.path))
	if err != nil {
		return err
	}
	_, err = io.Copy(&countingWriter{w: part, onWrite: onWrite}, file)
	return err
}

type countingWriter struct {
	w       io.Writer
	onWrite func(n int64)
}

func (cw *countingWriter) Write(p []byte) (int, error) {
	n, err := cw.w.Write(p)
	if n > 0 {
		cw.onWrite(int64(n))
	}
	return n, err
}
