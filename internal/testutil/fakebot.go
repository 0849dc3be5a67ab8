package testutil

import (
	"context"
	"sync"

	"github.com/runixer/grabber/internal/telegram"
)

// Upload is one file sent through a RecordingBotAPI.
type Upload struct {
	Method    string
	ChatID    int64
	ReplyTo   int
	Path      string
	Caption   string
	Thumbnail string
	Duration  int
	Width     int
	Height    int
	// Length is the side of a video note.
	Length int
}

// RecordingBotAPI is a telegram.BotAPI that records every call and always
// succeeds unless an error hook is set. Message ids are assigned in order
// starting at 1000. Use it where call order matters more than expectations.
type RecordingBotAPI struct {
	mu       sync.Mutex
	nextID   int
	Sent     []telegram.SendMessageRequest
	Edits    []telegram.EditMessageTextRequest
	Answers  []telegram.AnswerCallbackQueryRequest
	Actions  []telegram.SendChatActionRequest
	Commands []telegram.SetMyCommandsRequest
	Uploads  []Upload

	// EditErr, when set, is consulted before every edit.
	EditErr func(req telegram.EditMessageTextRequest) error
	// UploadErr is returned by every upload method.
	UploadErr error
	// UploadProgress, when set, is reported through the request's callback
	// before an upload returns, as (sent, total) pairs.
	UploadProgress [][2]int64
}

var _ telegram.BotAPI = (*RecordingBotAPI)(nil)

// NewRecordingBotAPI creates an empty recorder.
func NewRecordingBotAPI() *RecordingBotAPI {
	return &RecordingBotAPI{nextID: 1000}
}

func (r *RecordingBotAPI) message(chatID int64, text string) *telegram.Message {
	r.nextID++
	return &telegram.Message{MessageID: r.nextID, Chat: &telegram.Chat{ID: chatID, Type: "private"}, Text: text}
}

func (r *RecordingBotAPI) SendMessage(_ context.Context, req telegram.SendMessageRequest) (*telegram.Message, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Sent = append(r.Sent, req)
	return r.message(req.ChatID, req.Text), nil
}

func (r *RecordingBotAPI) EditMessageText(_ context.Context, req telegram.EditMessageTextRequest) (*telegram.Message, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.EditErr != nil {
		if err := r.EditErr(req); err != nil {
			return nil, err
		}
	}
	r.Edits = append(r.Edits, req)
	return &telegram.Message{MessageID: req.MessageID, Chat: &telegram.Chat{ID: req.ChatID}, Text: req.Text}, nil
}

func (r *RecordingBotAPI) AnswerCallbackQuery(_ context.Context, req telegram.AnswerCallbackQueryRequest) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Answers = append(r.Answers, req)
	return nil
}

func (r *RecordingBotAPI) SetMyCommands(_ context.Context, req telegram.SetMyCommandsRequest) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Commands = append(r.Commands, req)
	return nil
}

func (r *RecordingBotAPI) SetWebhook(context.Context, telegram.SetWebhookRequest) error {
	return nil
}

func (r *RecordingBotAPI) SendChatAction(_ context.Context, req telegram.SendChatActionRequest) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Actions = append(r.Actions, req)
	return nil
}

func (r *RecordingBotAPI) GetFile(_ context.Context, req telegram.GetFileRequest) (*telegram.File, error) {
	return &telegram.File{FileID: req.FileID, FilePath: "photos/" + req.FileID + ".jpg"}, nil
}

func (r *RecordingBotAPI) GetUpdates(context.Context, telegram.GetUpdatesRequest) ([]telegram.Update, error) {
	return nil, nil
}

func (r *RecordingBotAPI) upload(u Upload, progress telegram.UploadProgressFunc) (*telegram.Message, error) {
	r.mu.Lock()
	steps := r.UploadProgress
	err := r.UploadErr
	r.mu.Unlock()

	if progress != nil {
		for _, s := range steps {
			progress(s[0], s[1])
		}
	}
	if err != nil {
		return nil, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.Uploads = append(r.Uploads, u)
	return r.message(u.ChatID, ""), nil
}

func (r *RecordingBotAPI) SendVideo(_ context.Context, req telegram.SendVideoRequest) (*telegram.Message, error) {
	return r.upload(Upload{Method: "sendVideo", ChatID: req.ChatID, ReplyTo: req.ReplyToMessageID, Path: req.Path,
		Caption: req.Caption, Thumbnail: req.Thumbnail, Duration: req.Duration, Width: req.Width, Height: req.Height}, req.Progress)
}

func (r *RecordingBotAPI) SendAudio(_ context.Context, req telegram.SendAudioRequest) (*telegram.Message, error) {
	return r.upload(Upload{Method: "sendAudio", ChatID: req.ChatID, ReplyTo: req.ReplyToMessageID, Path: req.Path,
		Caption: req.Caption, Thumbnail: req.Thumbnail, Duration: req.Duration}, req.Progress)
}

func (r *RecordingBotAPI) SendDocument(_ context.Context, req telegram.SendDocumentRequest) (*telegram.Message, error) {
	return r.upload(Upload{Method: "sendDocument", ChatID: req.ChatID, ReplyTo: req.ReplyToMessageID, Path: req.Path,
		Caption: req.Caption, Thumbnail: req.Thumbnail}, req.Progress)
}

func (r *RecordingBotAPI) SendVideoNote(_ context.Context, req telegram.SendVideoNoteRequest) (*telegram.Message, error) {
	return r.upload(Upload{Method: "sendVideoNote", ChatID: req.ChatID, ReplyTo: req.ReplyToMessageID, Path: req.Path,
		Thumbnail: req.Thumbnail, Duration: req.Duration, Length: req.Length}, req.Progress)
}

func (r *RecordingBotAPI) GetToken() string {
	return "test-token"
}

func (r *RecordingBotAPI) FileBaseURL() string {
	return "http://telegram.invalid"
}

// EditTexts returns the text of every recorded edit, in order.
func (r *RecordingBotAPI) EditTexts() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	texts := make([]string, len(r.Edits))
	for i, e := range r.Edits {
		texts[i] = e.Text
	}
	return texts
}

// LastEdit returns the most recent edit and whether there was one.
func (r *RecordingBotAPI) LastEdit() (telegram.EditMessageTextRequest, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.Edits) == 0 {
		return telegram.EditMessageTextRequest{}, false
	}
	return r.Edits[len(r.Edits)-1], true
}

// UploadCalls returns a copy of the recorded uploads.
func (r *RecordingBotAPI) UploadCalls() []Upload {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Upload(nil), r.Uploads...)
}

// SentMessages returns a copy of the recorded sendMessage calls.
func (r *RecordingBotAPI) SentMessages() []telegram.SendMessageRequest {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]telegram.SendMessageRequest(nil), r.Sent...)
}

// CallbackAnswers returns a copy of the recorded callback answers.
func (r *RecordingBotAPI) CallbackAnswers() []telegram.AnswerCallbackQueryRequest {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]telegram.AnswerCallbackQueryRequest(nil), r.Answers...)
}

// CommandCalls returns a copy of the recorded setMyCommands requests.
func (r *RecordingBotAPI) CommandCalls() []telegram.SetMyCommandsRequest {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]telegram.SetMyCommandsRequest(nil), r.Commands...)
}
