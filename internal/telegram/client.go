package telegram

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// DefaultAPIURL is the public Bot API endpoint.
const DefaultAPIURL = "https://api.telegram.org"

// BotAPI defines the interface for the Telegram Bot API methods we use.
// This allows for easier mocking in tests.
type BotAPI interface {
	SendMessage(ctx context.Context, req SendMessageRequest) (*Message, error)
	EditMessageText(ctx context.Context, req EditMessageTextRequest) (*Message, error)
	AnswerCallbackQuery(ctx context.Context, req AnswerCallbackQueryRequest) error
	SetMyCommands(ctx context.Context, req SetMyCommandsRequest) error
	SetWebhook(ctx context.Context, req SetWebhookRequest) error
	SendChatAction(ctx context.Context, req SendChatActionRequest) error
	GetFile(ctx context.Context, req GetFileRequest) (*File, error)
	GetUpdates(ctx context.Context, req GetUpdatesRequest) ([]Update, error)
	SendVideo(ctx context.Context, req SendVideoRequest) (*Message, error)
	SendAudio(ctx context.Context, req SendAudioRequest) (*Message, error)
	SendDocument(ctx context.Context, req SendDocumentRequest) (*Message, error)
	SendVideoNote(ctx context.Context, req SendVideoNoteRequest) (*Message, error)
	GetToken() string
	FileBaseURL() string
}

// Client is a client for the Telegram Bot API.
//
// АРХИТЕКТУРНОЕ РЕШЕНИЕ: три отдельных HTTP-клиента
//
// Long polling (getUpdates) и загрузка файлов (sendVideo и т.д.) занимают
// соединение надолго. В общем пуле они вытесняли короткие вызовы
// (sendMessage, editMessageText), и те таймаутились.
//
//  1. httpClient - короткие API-вызовы, таймаут 30s и retry-логика
//  2. longPollingClient - getUpdates, таймаут контролируется через context
//  3. uploadClient - multipart-загрузки, таймаут контролируется через context
//     (файл до 2 GiB через локальный Bot API сервер идёт минутами)
type Client struct {
	token             string
	httpClient        *http.Client
	longPollingClient *http.Client
	uploadClient      *http.Client
	baseURL           string
	apiURL            string
}

// NewClient creates a new Telegram API client.
// baseURL may point to a local Bot API server; empty means DefaultAPIURL.
func NewClient(token, baseURL, proxyURL string) (*Client, error) {
	if baseURL == "" {
		baseURL = DefaultAPIURL
	}
	baseURL = strings.TrimRight(baseURL, "/")

	// DisableKeepAlives=true - каждый запрос создаёт новое соединение,
	// что исключает проблемы с "зависшими" keep-alive соединениями
	transport := &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   30 * time.Second,
			KeepAlive: 0,
		}).DialContext,
		ForceAttemptHTTP2:     false,
		TLSHandshakeTimeout:   15 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
		ResponseHeaderTimeout: 30 * time.Second,
		DisableKeepAlives:     true,
	}

	// Здесь keep-alive нужен, чтобы не переустанавливать соединение каждые 25 секунд
	longPollingTransport := &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   30 * time.Second,
			KeepAlive: 60 * time.Second,
		}).DialContext,
		ForceAttemptHTTP2:     false,
		MaxIdleConns:          2,
		IdleConnTimeout:       120 * time.Second,
		TLSHandshakeTimeout:   15 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
		MaxIdleConnsPerHost:   1,
	}

	uploadTransport := &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   30 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		ForceAttemptHTTP2:   false,
		TLSHandshakeTimeout: 15 * time.Second,
		DisableKeepAlives:   true,
	}

	if proxyURL != "" {
		proxy, err := url.Parse(proxyURL)
		if err != nil {
			return nil, fmt.Errorf("failed to parse proxy URL: %w", err)
		}
		transport.Proxy = http.ProxyURL(proxy)
		longPollingTransport.Proxy = http.ProxyURL(proxy)
		uploadTransport.Proxy = http.ProxyURL(proxy)
	}

	return &Client{
		token: token,
		httpClient: &http.Client{
			Timeout:   30 * time.Second,
			Transport: transport,
		},
		longPollingClient: &http.Client{
			Timeout:   0,
			Transport: longPollingTransport,
		},
		uploadClient: &http.Client{
			Timeout:   0,
			Transport: uploadTransport,
		},
		baseURL: baseURL,
		apiURL:  fmt.Sprintf("%s/bot%s", baseURL, token),
	}, nil
}

// makeRequest performs a request to the Telegram API with retry logic.
//
// Retry-стратегия: до 2 попыток с задержкой 2 секунды.
// Retry выполняется только для сетевых ошибок, НЕ для API-ошибок Telegram.
// Ответ ok=false возвращается как *APIError (включая retry_after при 429),
// решение о повторе принимает вызывающий код.
func (c *Client) makeRequest(ctx context.Context, method string, params interface{}) (*APIResponse, error) {
	startTime := time.Now()

	jsonParams, err := json.Marshal(params)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal params: %w", err)
	}

	apiURL := fmt.Sprintf("%s/%s", c.apiURL, method)

	var lastErr error
	maxRetries := 2
	retryDelay := 2 * time.Second

	for attempt := 0; attempt < maxRetries; attempt++ {
		if attempt > 0 {
			recordRetry(method)

			select {
			case <-ctx.Done():
				recordRequestDuration(method, statusTimeout, time.Since(startTime).Seconds())
				recordError(method, errorTypeTimeout)
				return nil, ctx.Err()
			case <-time.After(retryDelay):
			}
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodPost, apiURL, bytes.NewBuffer(jsonParams))
		if err != nil {
			return nil, fmt.Errorf("failed to create request: %w", err)
		}
		req.Header.Set("Content-Type", "application/json")

		resp, err := c.httpClient.Do(req)
		if err != nil {
			lastErr = fmt.Errorf("failed to perform request: %w", c.redact(err))
			// Only retry on network errors, not on context cancellation
			if ctx.Err() != nil {
				recordRequestDuration(method, statusTimeout, time.Since(startTime).Seconds())
				recordError(method, errorTypeTimeout)
				return nil, lastErr
			}
			if isTimeoutError(err) {
				recordError(method, errorTypeTimeout)
			} else {
				recordError(method, errorTypeNetwork)
			}
			continue
		}

		var apiResp APIResponse
		if decodeErr := json.NewDecoder(resp.Body).Decode(&apiResp); decodeErr != nil {
			resp.Body.Close()
			lastErr = fmt.Errorf("failed to decode response: %w", decodeErr)
			recordError(method, errorTypeDecode)
			continue
		}
		resp.Body.Close()

		if !apiResp.Ok {
			apiErr := newAPIError(method, &apiResp)
			recordRequestDuration(method, statusError, time.Since(startTime).Seconds())
			if apiErr.RetryAfter > 0 {
				recordError(method, errorTypeRateLimit)
			} else {
				recordError(method, errorTypeAPI)
			}
			return nil, apiErr
		}

		recordRequestDuration(method, statusSuccess, time.Since(startTime).Seconds())
		return &apiResp, nil
	}

	// Все retry исчерпаны
	recordRequestDuration(method, statusError, time.Since(startTime).Seconds())
	return nil, lastErr
}

// redact strips the bot token from transport errors, which quote the request URL.
func (c *Client) redact(err error) error {
	if c.token == "" || !strings.Contains(err.Error(), c.token) {
		return err
	}
	return errors.New(strings.ReplaceAll(err.Error(), c.token, "[REDACTED]"))
}

// isTimeoutError проверяет, является ли ошибка таймаутом
func isTimeoutError(err error) bool {
	if err == nil {
		return false
	}
	errStr := err.Error()
	return strings.Contains(errStr, "timeout") ||
		strings.Contains(errStr, "deadline exceeded") ||
		strings.Contains(errStr, "context canceled")
}

func decodeMessage(resp *APIResponse) (*Message, error) {
	var msg Message
	if err := json.Unmarshal(resp.Result, &msg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal message: %w", err)
	}
	return &msg, nil
}

// SendMessage sends a text message.
func (c *Client) SendMessage(ctx context.Context, req SendMessageRequest) (*Message, error) {
	resp, err := c.makeRequest(ctx, "sendMessage", req)
	if err != nil {
		return nil, err
	}
	return decodeMessage(resp)
}

// EditMessageText edits the text and inline keyboard of a message sent by the bot.
func (c *Client) EditMessageText(ctx context.Context, req EditMessageTextRequest) (*Message, error) {
	resp, err := c.makeRequest(ctx, "editMessageText", req)
	if err != nil {
		return nil, err
	}
	// Telegram returns true instead of a Message for inline messages.
	if bytes.Equal(bytes.TrimSpace(resp.Result), []byte("true")) {
		return nil, nil
	}
	return decodeMessage(resp)
}

// AnswerCallbackQuery stops the loading indicator on the pressed button.
func (c *Client) AnswerCallbackQuery(ctx context.Context, req AnswerCallbackQueryRequest) error {
	_, err := c.makeRequest(ctx, "answerCallbackQuery", req)
	return err
}

// SetMyCommands changes the list of the bot's commands.
func (c *Client) SetMyCommands(ctx context.Context, req SetMyCommandsRequest) error {
	_, err := c.makeRequest(ctx, "setMyCommands", req)
	return err
}

// SetWebhook specifies a URL and receives incoming updates via an outgoing webhook.
func (c *Client) SetWebhook(ctx context.Context, req SetWebhookRequest) error {
	_, err := c.makeRequest(ctx, "setWebhook", req)
	return err
}

// SendChatAction tells the user that something is happening on the bot's side.
func (c *Client) SendChatAction(ctx context.Context, req SendChatActionRequest) error {
	_, err := c.makeRequest(ctx, "sendChatAction", req)
	return err
}

// GetFile returns a File object with a file_path that can be used to download the file.
func (c *Client) GetFile(ctx context.Context, req GetFileRequest) (*File, error) {
	resp, err := c.makeRequest(ctx, "getFile", req)
	if err != nil {
		return nil, err
	}

	var file File
	if err := json.Unmarshal(resp.Result, &file); err != nil {
		return nil, fmt.Errorf("failed to unmarshal file: %w", err)
	}

	return &file, nil
}

// GetUpdates receives incoming updates using long polling.
//
// ВАЖНО: Использует отдельный longPollingClient с Timeout=0.
// Таймаут контролируется через context: req.Timeout + 10 секунд на сетевые задержки.
func (c *Client) GetUpdates(ctx context.Context, req GetUpdatesRequest) ([]Update, error) {
	const method = "getUpdates"
	startTime := time.Now()

	setLongPollingActive(true)
	defer setLongPollingActive(false)

	jsonParams, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal params: %w", err)
	}

	apiURL := fmt.Sprintf("%s/%s", c.apiURL, method)

	timeout := time.Duration(req.Timeout+10) * time.Second
	reqCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	httpReq, err := http.NewRequestWithContext(reqCtx, http.MethodPost, apiURL, bytes.NewBuffer(jsonParams))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.longPollingClient.Do(httpReq)
	if err != nil {
		duration := time.Since(startTime).Seconds()
		if isTimeoutError(err) {
			recordRequestDuration(method, statusTimeout, duration)
			recordError(method, errorTypeTimeout)
		} else {
			recordRequestDuration(method, statusError, duration)
			recordError(method, errorTypeNetwork)
		}
		return nil, fmt.Errorf("failed to perform request: %w", c.redact(err))
	}
	defer resp.Body.Close()

	var apiResp APIResponse
	if err := json.NewDecoder(resp.Body).Decode(&apiResp); err != nil {
		recordRequestDuration(method, statusError, time.Since(startTime).Seconds())
		recordError(method, errorTypeDecode)
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}

	if !apiResp.Ok {
		recordRequestDuration(method, statusError, time.Since(startTime).Seconds())
		recordError(method, errorTypeAPI)
		return nil, newAPIError(method, &apiResp)
	}

	var updates []Update
	if err := json.Unmarshal(apiResp.Result, &updates); err != nil {
		recordRequestDuration(method, statusError, time.Since(startTime).Seconds())
		recordError(method, errorTypeDecode)
		return nil, fmt.Errorf("failed to unmarshal updates: %w", err)
	}

	recordRequestDuration(method, statusSuccess, time.Since(startTime).Seconds())
	if len(updates) > 0 {
		recordLongPollingUpdates(len(updates))
	}

	return updates, nil
}

// GetToken returns the bot token. Used to build file download URLs.
func (c *Client) GetToken() string {
	return c.token
}

// FileBaseURL returns the server root used for file downloads.
func (c *Client) FileBaseURL() string {
	return c.baseURL
}
