package telegram

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeBot records Bot API calls and serves queued updates once.
type fakeBot struct {
	mu      sync.Mutex
	calls   map[string][]map[string]interface{}
	updates []Update
}

func (f *fakeBot) handler(t *testing.T) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var body map[string]interface{}
		_ = json.NewDecoder(r.Body).Decode(&body)

		method := r.URL.Path[len("/botTOKEN/"):]
		f.mu.Lock()
		if f.calls == nil {
			f.calls = map[string][]map[string]interface{}{}
		}
		f.calls[method] = append(f.calls[method], body)
		var result interface{} = true
		if method == "getUpdates" {
			result = f.updates
			f.updates = nil
		}
		f.mu.Unlock()

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]interface{}{"ok": true, "result": result})
	}
}

func (f *fakeBot) sent(method string) []map[string]interface{} {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]map[string]interface{}{}, f.calls[method]...)
}

func newTestClient(t *testing.T, bot *fakeBot) *Client {
	srv := httptest.NewServer(bot.handler(t))
	t.Cleanup(srv.Close)
	return New(Options{Token: "TOKEN", ChatID: "42", BaseURL: srv.URL, PollTimeout: -1}, zerolog.Nop())
}

func TestNotify(t *testing.T) {
	bot := &fakeBot{}
	c := newTestClient(t, bot)

	require.NoError(t, c.Notify(context.Background(), "*BUY* BTC"))

	msgs := bot.sent("sendMessage")
	require.Len(t, msgs, 1)
	assert.Equal(t, "42", msgs[0]["chat_id"])
	assert.Equal(t, "*BUY* BTC", msgs[0]["text"])
	assert.Equal(t, "Markdown", msgs[0]["parse_mode"])
}

func TestNotifyDisabled(t *testing.T) {
	c := New(Options{}, zerolog.Nop())
	assert.False(t, c.Enabled())
	assert.ErrorIs(t, c.Notify(context.Background(), "x"), ErrDisabled)
}

func TestNotifyAPIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"ok":false,"error_code":400,"description":"chat not found"}`))
	}))
	defer srv.Close()

	c := New(Options{Token: "TOKEN", ChatID: "42", BaseURL: srv.URL}, zerolog.Nop())
	err := c.Notify(context.Background(), "x")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "chat not found")
}

func TestSendInteractiveKeyboard(t *testing.T) {
	bot := &fakeBot{}
	c := newTestClient(t, bot)

	require.NoError(t, c.SendInteractive(context.Background(), "Signal", []Button{
		{Text: "Execute", CallbackData: "exec:3"},
		{Text: "Dismiss", CallbackData: "dismiss"},
	}))

	msgs := bot.sent("sendMessage")
	require.Len(t, msgs, 1)
	assert.JSONEq(t,
		`{"inline_keyboard":[[{"text":"Execute","callback_data":"exec:3"},{"text":"Dismiss","callback_data":"dismiss"}]]}`,
		msgs[0]["reply_markup"].(string))
}

func TestListenDispatchesAuthorizedOnly(t *testing.T) {
	var ok, stranger, cb Update
	ok.UpdateID = 1
	ok.Message.Chat.ID = 42
	ok.Message.Text = "/ping"
	stranger.UpdateID = 2
	stranger.Message.Chat.ID = 7
	stranger.Message.Text = "/ping"
	cb.UpdateID = 3
	cb.CallbackQuery = &struct {
		ID      string `json:"id"`
		Data    string `json:"data"`
		Message struct {
			Chat struct {
				ID int64 `json:"id"`
			} `json:"chat"`
		} `json:"message"`
	}{ID: "cb1", Data: "exec:1"}
	cb.CallbackQuery.Message.Chat.ID = 42

	bot := &fakeBot{updates: []Update{ok, stranger, cb}}
	c := newTestClient(t, bot)

	var mu sync.Mutex
	var commands, callbacks []string
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- c.Listen(ctx,
			func(_ context.Context, cmd string) string {
				mu.Lock()
				commands = append(commands, cmd)
				mu.Unlock()
				return "Pong"
			},
			func(_ context.Context, data string) string {
				mu.Lock()
				callbacks = append(callbacks, data)
				mu.Unlock()
				return "Executed"
			})
	}()

	require.Eventually(t, func() bool { return len(bot.sent("sendMessage")) == 2 }, 2*time.Second, 10*time.Millisecond)
	cancel()
	require.NoError(t, <-done)

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []string{"/ping"}, commands)
	assert.Equal(t, []string{"exec:1"}, callbacks)
	assert.Len(t, bot.sent("answerCallbackQuery"), 1)
}

func TestListenDisabledReturns(t *testing.T) {
	c := New(Options{}, zerolog.Nop())
	assert.NoError(t, c.Listen(context.Background(), nil, nil))
}

func TestTransportErrorOmitsToken(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	c := New(Options{Token: "123456:SECRET-TOKEN", ChatID: "42", BaseURL: srv.URL, PollTimeout: -1}, zerolog.Nop())
	srv.Close()

	err := c.Notify(context.Background(), "hello")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "sendMessage")
	assert.NotContains(t, err.Error(), "SECRET-TOKEN")

	_, err = c.getUpdates(context.Background(), 0)
	require.Error(t, err)
	assert.NotContains(t, err.Error(), "SECRET-TOKEN")
}

func TestEscapeMarkdown(t *testing.T) {
	assert.Equal(t, "BTC\\_USD \\*spot\\* \\`x\\` \\[1]", EscapeMarkdown("BTC_USD *spot* `x` [1]"))
	assert.Equal(t, "plain text", EscapeMarkdown("plain text"))
}
