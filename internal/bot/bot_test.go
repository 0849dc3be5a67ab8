package bot

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/runixer/grabber/internal/config"
	"github.com/runixer/grabber/internal/files"
	"github.com/runixer/grabber/internal/pipeline"
	"github.com/runixer/grabber/internal/storage"
	"github.com/runixer/grabber/internal/telegram"
	tu "github.com/runixer/grabber/internal/testutil"
	"github.com/runixer/grabber/internal/workspace"
)

// fakePipeline records requests and answers Precheck from a fixed verdict.
type fakePipeline struct {
	mu         sync.Mutex
	menus      []pipeline.MenuRequest
	selections []pipeline.SelectionRequest
	rejection  string
	block      chan struct{}
}

func (f *fakePipeline) ShowMenu(_ context.Context, req pipeline.MenuRequest) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.menus = append(f.menus, req)
	return nil
}

func (f *fakePipeline) HandleSelection(ctx context.Context, req pipeline.SelectionRequest) error {
	if f.block != nil {
		<-f.block
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.selections = append(f.selections, req)
	return nil
}

func (f *fakePipeline) Precheck(string, string) (string, bool) {
	if f.rejection != "" {
		return f.rejection, false
	}
	return "", true
}

func (f *fakePipeline) menuRequests() []pipeline.MenuRequest {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]pipeline.MenuRequest(nil), f.menus...)
}

func (f *fakePipeline) selectionRequests() []pipeline.SelectionRequest {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]pipeline.SelectionRequest(nil), f.selections...)
}

type testEnv struct {
	bot        *Bot
	api        *tu.RecordingBotAPI
	store      *tu.MockStorage
	pipeline   *fakePipeline
	ws         *workspace.Workspace
	downloader *tu.MockFileDownloader
	cfg        *config.Config
	logs       *tu.LogCapture
}

func newTestEnv(t *testing.T, configure func(cfg *config.Config)) *testEnv {
	t.Helper()
	cfg := tu.TestConfig()
	if configure != nil {
		configure(cfg)
	}

	env := &testEnv{
		api:        tu.NewRecordingBotAPI(),
		store:      new(tu.MockStorage),
		pipeline:   &fakePipeline{},
		ws:         workspace.New(t.TempDir(), tu.TestLogger()),
		downloader: new(tu.MockFileDownloader),
		cfg:        cfg,
		logs:       tu.NewLogCapture(),
	}
	tu.SetupDefaultMocks(env.store)

	b, err := NewBot(env.logs.Logger(), env.api, cfg, env.store, env.store, env.pipeline, env.ws,
		files.NewProcessor(env.downloader, tu.TestLogger()), tu.TestTranslator(t))
	require.NoError(t, err)
	env.bot = b
	return env
}

func (e *testEnv) send(msg *telegram.Message) {
	e.bot.ProcessUpdate(context.Background(), &telegram.Update{UpdateID: 1, Message: msg}, "test")
}

func (e *testEnv) lastReply(t *testing.T) string {
	t.Helper()
	sent := e.api.SentMessages()
	require.NotEmpty(t, sent, "no replies sent")
	return sent[len(sent)-1].Text
}

func TestNewBot_SetsCommandsPerLanguage(t *testing.T) {
	env := newTestEnv(t, nil)

	commands := env.api.CommandCalls()

	// Default list plus one per locale.
	require.Len(t, commands, 3)
	assert.Empty(t, commands[0].LanguageCode)
	assert.Equal(t, "en", commands[1].LanguageCode)
	assert.Equal(t, "fa", commands[2].LanguageCode)

	names := make([]string, 0, len(commands[0].Commands))
	for _, c := range commands[0].Commands {
		names = append(names, c.Command)
		assert.NotEmpty(t, c.Description)
	}
	assert.Equal(t, []string{"start", "help", "thumb", "delthumb", "stats"}, names)
}

func TestHandleMessage_LinkShowsMenu(t *testing.T) {
	env := newTestEnv(t, nil)

	env.send(tu.TestPrivateMessage(10, "  https://example.com/watch?v=1 "))

	menus := env.pipeline.menuRequests()
	require.Len(t, menus, 1)
	assert.Equal(t, pipeline.MenuRequest{
		ChatID:    tu.TestChatID,
		MessageID: 10,
		UserID:    tu.TestUserID,
		URL:       "https://example.com/watch?v=1",
		Lang:      "en",
	}, menus[0])
	env.store.AssertCalled(t, "UpsertUser", mock.MatchedBy(func(u storage.User) bool {
		return u.ID == tu.TestUserID && u.LanguageCode == "en"
	}))
	assert.False(t, env.logs.HasError())
}

func TestHandleMessage_RemembersUser(t *testing.T) {
	testBot := tu.NewTestBot(t, nil)
	cfg := tu.TestConfig()
	b, err := NewBot(testBot.Logger(), tu.NewRecordingBotAPI(), cfg, testBot.Store(), testBot.Store(), &fakePipeline{},
		workspace.New(testBot.DownloadDir(), testBot.Logger()), files.NewProcessor(new(tu.MockFileDownloader), testBot.Logger()), tu.TestTranslator(t))
	require.NoError(t, err)

	msg := tu.TestPrivateMessage(10, "hello")
	msg.From.LanguageCode = "fa-IR"
	b.ProcessUpdate(context.Background(), &telegram.Update{Message: msg}, "test")

	user := tu.AssertUserExists(t, testBot.Store(), tu.TestUserID)
	assert.Equal(t, "testuser", user.Username)
	assert.Equal(t, "fa-IR", user.LanguageCode)
}

func TestNewBot_CommandsFailureIsNotFatal(t *testing.T) {
	api := new(tu.MockBotAPI)
	api.On("SetMyCommands", mock.Anything, mock.Anything).Return(errors.New("forbidden")).Once()

	logs := tu.NewLogCapture()
	b, err := NewBot(logs.Logger(), api, tu.TestConfig(), nil, nil, &fakePipeline{}, nil, nil, tu.TestTranslator(t))
	require.NoError(t, err)
	require.NotNil(t, b)

	api.AssertExpectations(t)
	tu.AssertLogContains(t, logs.Entries(), "WARN", "failed to set bot commands")
}

func TestHandleMessage_Ignored(t *testing.T) {
	tests := []struct {
		name string
		msg  func() *telegram.Message
	}{
		{"plain text", func() *telegram.Message { return tu.TestPrivateMessage(10, "hello there") }},
		{"link inside text", func() *telegram.Message { return tu.TestPrivateMessage(10, "see https://example.com") }},
		{"ftp link", func() *telegram.Message { return tu.TestPrivateMessage(10, "ftp://example.com/file") }},
		{"group chat", func() *telegram.Message {
			msg := tu.TestPrivateMessage(10, "https://example.com/watch?v=1")
			msg.Chat.Type = "group"
			return msg
		}},
		{"no sender", func() *telegram.Message {
			msg := tu.TestPrivateMessage(10, "https://example.com/watch?v=1")
			msg.From = nil
			return msg
		}},
		{"non-image document", func() *telegram.Message {
			msg := tu.TestPrivateMessage(10, "")
			msg.Document = &telegram.Document{FileID: "doc", MimeType: "application/pdf"}
			return msg
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newTestEnv(t, nil)
			env.send(tt.msg())

			assert.Empty(t, env.pipeline.menuRequests())
			assert.Empty(t, env.api.SentMessages())
		})
	}
}

func TestHandleMessage_Unauthorized(t *testing.T) {
	env := newTestEnv(t, func(cfg *config.Config) {
		cfg.Bot.AllowedUserIDs = []int64{999}
	})
	before := testutil.ToFloat64(unauthorizedTotal)

	env.send(tu.TestPrivateMessage(10, "https://example.com/watch?v=1"))

	assert.Empty(t, env.pipeline.menuRequests())
	assert.Equal(t, env.bot.translator.Get("en", "bot.not_allowed"), env.lastReply(t))
	assert.Equal(t, before+1, testutil.ToFloat64(unauthorizedTotal))
	assert.Len(t, env.logs.Find("WARN", "Unauthorized access"), 1)
	assert.NotEmpty(t, env.logs.FindByField("user_id", tu.TestUserID))
}

func TestIsAllowed(t *testing.T) {
	env := newTestEnv(t, nil)
	assert.True(t, env.bot.isAllowed(42), "empty allow-list admits everyone")

	env.cfg.Bot.AllowedUserIDs = []int64{7, 42}
	assert.True(t, env.bot.isAllowed(42))
	assert.False(t, env.bot.isAllowed(43))
}

func TestHandleCallback_Accepted(t *testing.T) {
	env := newTestEnv(t, nil)
	cb := tu.TestCallback(11, 10, "dl_q=22=mp4=123_10")

	env.bot.ProcessUpdate(context.Background(), &telegram.Update{UpdateID: 2, CallbackQuery: cb}, "test")

	answers := env.api.CallbackAnswers()
	require.Len(t, answers, 1)
	assert.Equal(t, "cb-1", answers[0].CallbackQueryID)
	assert.Equal(t, env.bot.translator.Get("en", "pipeline.selection_accepted"), answers[0].Text)

	selections := env.pipeline.selectionRequests()
	require.Len(t, selections, 1)
	assert.Equal(t, pipeline.SelectionRequest{
		ChatID:           tu.TestChatID,
		MessageID:        11,
		ReplyToMessageID: 10,
		UserID:           tu.TestUserID,
		Data:             "dl_q=22=mp4=123_10",
		Lang:             "en",
	}, selections[0])
}

func TestHandleCallback_RejectedAnswersWithReason(t *testing.T) {
	env := newTestEnv(t, nil)
	env.pipeline.rejection = "expired"

	env.bot.ProcessUpdate(context.Background(), &telegram.Update{CallbackQuery: tu.TestCallback(11, 10, "dl_q=22=mp4=123_10")}, "test")

	answers := env.api.CallbackAnswers()
	require.Len(t, answers, 1)
	assert.Equal(t, "expired", answers[0].Text)
	// The pipeline still edits the menu message with the reason.
	assert.Len(t, env.pipeline.selectionRequests(), 1)
}

func TestHandleCallback_ForeignData(t *testing.T) {
	env := newTestEnv(t, nil)

	env.bot.ProcessUpdate(context.Background(), &telegram.Update{CallbackQuery: tu.TestCallback(11, 10, "other=1")}, "test")

	answers := env.api.CallbackAnswers()
	require.Len(t, answers, 1)
	assert.Equal(t, env.bot.translator.Get("en", "bot.unknown_callback"), answers[0].Text)
	assert.Empty(t, env.pipeline.selectionRequests())
}

func TestHandleCallback_Unauthorized(t *testing.T) {
	env := newTestEnv(t, func(cfg *config.Config) {
		cfg.Bot.AllowedUserIDs = []int64{999}
	})

	env.bot.ProcessUpdate(context.Background(), &telegram.Update{CallbackQuery: tu.TestCallback(11, 10, "dl_q=22=mp4=123_10")}, "test")

	answers := env.api.CallbackAnswers()
	require.Len(t, answers, 1)
	assert.Equal(t, env.bot.translator.Get("en", "bot.not_allowed"), answers[0].Text)
	assert.Empty(t, env.pipeline.selectionRequests())
}

func TestHandleUpdate_RawJSON(t *testing.T) {
	env := newTestEnv(t, nil)
	raw, err := json.Marshal(telegram.Update{UpdateID: 5, Message: tu.TestPrivateMessage(10, "https://example.com/a")})
	require.NoError(t, err)

	env.bot.HandleUpdate(context.Background(), raw, "127.0.0.1")
	env.bot.HandleUpdate(context.Background(), json.RawMessage(`{not json`), "127.0.0.1")

	assert.Len(t, env.pipeline.menuRequests(), 1)
}

func TestProcessUpdate_RecordsMetrics(t *testing.T) {
	env := newTestEnv(t, nil)
	before := testutil.ToFloat64(updatesProcessedTotal.WithLabelValues(updateTypeMessage))

	env.send(tu.TestPrivateMessage(10, "hello"))

	assert.Equal(t, before+1, testutil.ToFloat64(updatesProcessedTotal.WithLabelValues(updateTypeMessage)))
}

func TestStop_WaitsForInFlightSelections(t *testing.T) {
	env := newTestEnv(t, nil)
	env.pipeline.block = make(chan struct{})

	ctx, cancel := context.WithCancel(context.Background())
	env.bot.ProcessUpdateAsync(ctx, &telegram.Update{CallbackQuery: tu.TestCallback(11, 10, "dl_q=22=mp4=123_10")}, "test")
	cancel()

	stopped := make(chan struct{})
	go func() {
		env.bot.Stop()
		close(stopped)
	}()

	select {
	case <-stopped:
		t.Fatal("Stop returned while a selection was still running")
	case <-time.After(50 * time.Millisecond):
	}

	close(env.pipeline.block)
	select {
	case <-stopped:
	case <-time.After(2 * time.Second):
		t.Fatal("Stop did not return after the selection finished")
	}
	assert.Len(t, env.pipeline.selectionRequests(), 1)
}

func TestHandleThumbnail_SavesPhoto(t *testing.T) {
	env := newTestEnv(t, nil)
	dest := env.ws.ThumbnailPath(tu.TestUserID)
	env.downloader.On("DownloadToFile", mock.Anything, "photo-big", dest).
		Run(func(args mock.Arguments) {
			require.NoError(t, os.WriteFile(args.String(2), []byte("jpeg"), 0o644))
		}).
		Return(int64(4), nil)

	msg := tu.TestPrivateMessage(10, "")
	msg.Photo = []telegram.PhotoSize{
		{FileID: "photo-small", Width: 90, Height: 90},
		{FileID: "photo-big", Width: 320, Height: 320},
	}
	env.send(msg)

	assert.True(t, env.ws.HasThumbnail(tu.TestUserID))
	assert.Equal(t, env.bot.translator.Get("en", "bot.thumbnail_saved"), env.lastReply(t))
	env.downloader.AssertExpectations(t)
}

func TestHandleThumbnail_Failure(t *testing.T) {
	env := newTestEnv(t, nil)
	env.downloader.On("DownloadToFile", mock.Anything, "doc-jpeg", mock.Anything).
		Return(int64(0), errors.New("network down"))

	msg := tu.TestPrivateMessage(10, "")
	msg.Document = &telegram.Document{FileID: "doc-jpeg", MimeType: "image/jpeg"}
	env.send(msg)

	assert.False(t, env.ws.HasThumbnail(tu.TestUserID))
	assert.Equal(t, env.bot.translator.Get("en", "bot.thumbnail_failed"), env.lastReply(t))
}
