package web

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/runixer/grabber/internal/config"
	"github.com/runixer/grabber/internal/storage"
	"github.com/runixer/grabber/internal/telegram"
	tu "github.com/runixer/grabber/internal/testutil"
)

type fakeBot struct {
	mu      sync.Mutex
	updates []json.RawMessage
	addrs   []string
}

func (f *fakeBot) HandleUpdateAsync(_ context.Context, update json.RawMessage, remoteAddr string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.updates = append(f.updates, update)
	f.addrs = append(f.addrs, remoteAddr)
}

func (f *fakeBot) API() telegram.BotAPI {
	return tu.NewRecordingBotAPI()
}

func (f *fakeBot) received() []json.RawMessage {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]json.RawMessage(nil), f.updates...)
}

type fakeCheckpointer struct {
	calls int
	err   error
}

func (f *fakeCheckpointer) Checkpoint() error {
	f.calls++
	return f.err
}

func newTestServer(t *testing.T) (*Server, *fakeBot, *config.Config) {
	t.Helper()
	cfg := tu.TestConfig()
	cfg.Telegram.WebhookPath = "hook123"
	cfg.Telegram.WebhookSecret = "s3cret"
	bot := &fakeBot{}
	return NewServer(context.Background(), tu.TestLogger(), cfg, nil, nil, nil, bot), bot, cfg
}

func TestHealthz(t *testing.T) {
	s, _, _ := newTestServer(t)

	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestMetricsEndpoint(t *testing.T) {
	s, _, _ := newTestServer(t)
	handler := s.Handler()

	// One request so the http metrics have a sample.
	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/healthz", nil))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	tu.AssertMetricExists(t, rec.Body.String(), "grabber_http_requests_total")
	assert.GreaterOrEqual(t, tu.MetricValue(rec.Body.String(), "grabber_http_requests_total",
		map[string]string{"handler": "healthz", "method": "get", "code": "200"}), float64(1))
}

func TestWebhookHandler(t *testing.T) {
	update := `{"update_id":1,"message":{"message_id":2,"chat":{"id":3,"type":"private"},"text":"hi"}}`

	tests := []struct {
		name      string
		method    string
		path      string
		secret    string
		body      string
		wantCode  int
		forwarded bool
		rejected  string
	}{
		{"valid", http.MethodPost, "/telegram/hook123", "s3cret", update, http.StatusOK, true, ""},
		{"wrong secret", http.MethodPost, "/telegram/hook123", "nope", update, http.StatusForbidden, false, rejectSecret},
		{"missing secret", http.MethodPost, "/telegram/hook123", "", update, http.StatusForbidden, false, rejectSecret},
		{"wrong path", http.MethodPost, "/telegram/other", "s3cret", update, http.StatusNotFound, false, ""},
		{"get", http.MethodGet, "/telegram/hook123", "s3cret", "", http.StatusMethodNotAllowed, false, rejectMethod},
		{"too large", http.MethodPost, "/telegram/hook123", "s3cret", strings.Repeat("x", maxUpdateBytes+1), http.StatusRequestEntityTooLarge, false, rejectTooLarge},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, bot, _ := newTestServer(t)
			var rejectedBefore float64
			if tt.rejected != "" {
				rejectedBefore = testutil.ToFloat64(webhookRejectedTotal.WithLabelValues(tt.rejected))
			}

			req := httptest.NewRequest(tt.method, tt.path, strings.NewReader(tt.body))
			if tt.secret != "" {
				req.Header.Set("X-Telegram-Bot-Api-Secret-Token", tt.secret)
			}
			req.Header.Set("X-Forwarded-For", "10.0.0.1, 172.16.0.1")
			rec := httptest.NewRecorder()
			s.Handler().ServeHTTP(rec, req)

			assert.Equal(t, tt.wantCode, rec.Code)
			if tt.rejected != "" {
				assert.Equal(t, rejectedBefore+1, testutil.ToFloat64(webhookRejectedTotal.WithLabelValues(tt.rejected)))
			}
			if tt.forwarded {
				got := bot.received()
				require.Len(t, got, 1)
				assert.JSONEq(t, tt.body, string(got[0]))
				assert.Equal(t, []string{"10.0.0.1"}, bot.addrs)
			} else {
				assert.Empty(t, bot.received())
			}
		})
	}
}

func TestWebhookHandler_NotRegisteredWithoutPath(t *testing.T) {
	s, _, cfg := newTestServer(t)
	cfg.Telegram.WebhookPath = ""

	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/telegram/", strings.NewReader("{}")))

	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestGetClientIP(t *testing.T) {
	tests := []struct {
		name    string
		headers map[string]string
		remote  string
		want    string
	}{
		{"forwarded chain", map[string]string{"X-Forwarded-For": "1.2.3.4, 5.6.7.8"}, "9.9.9.9:1", "1.2.3.4"},
		{"real ip", map[string]string{"X-Real-IP": "4.3.2.1"}, "9.9.9.9:1", "4.3.2.1"},
		{"remote addr", nil, "9.9.9.9:1234", "9.9.9.9"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			req.RemoteAddr = tt.remote
			for k, v := range tt.headers {
				req.Header.Set(k, v)
			}
			assert.Equal(t, tt.want, getClientIP(req))
		})
	}
}

func TestRunMaintenance(t *testing.T) {
	cfg := tu.TestConfig()
	cfg.Database.KeepDeliveriesPerUser = 50

	store := new(tu.MockStorage)
	store.On("GetAllUsers").Return([]storage.User{tu.TestUser(), {ID: 456}}, nil)
	store.On("GetDBSize").Return(int64(4096), nil)
	store.On("GetTableSizes").Return([]storage.TableSize{{Name: "deliveries", Bytes: 1024}}, nil)
	store.On("CleanupDeliveries", 50).Return(int64(3), nil)
	cp := &fakeCheckpointer{}

	s := NewServer(context.Background(), tu.TestLogger(), cfg, store, store, cp, &fakeBot{})
	s.runMaintenance()

	store.AssertExpectations(t)
	assert.Equal(t, 1, cp.calls)
	assert.Equal(t, float64(2), testutil.ToFloat64(usersTotal))
}

func TestRunMaintenance_ErrorsDoNotStopLaterSteps(t *testing.T) {
	cfg := tu.TestConfig()
	cfg.Database.KeepDeliveriesPerUser = 0

	store := new(tu.MockStorage)
	store.On("GetAllUsers").Return(nil, errors.New("boom"))
	store.On("GetDBSize").Return(int64(0), errors.New("boom"))
	store.On("GetTableSizes").Return(nil, errors.New("boom"))
	cp := &fakeCheckpointer{err: errors.New("busy")}

	s := NewServer(context.Background(), tu.TestLogger(), cfg, store, store, cp, &fakeBot{})
	s.runMaintenance()

	store.AssertExpectations(t)
	store.AssertNotCalled(t, "CleanupDeliveries", mock.Anything)
	assert.Equal(t, 1, cp.calls)
}
