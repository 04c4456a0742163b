package telegram

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/rs/zerolog"
)

const defaultBaseURL = "https://api.telegram.org"

// ErrDisabled is returned when token or chat ID is missing.
var ErrDisabled = errors.New("telegram not configured")

// Options configures a Client.
type Options struct {
	Token      string
	ChatID     string
	BaseURL    string
	HTTPClient *http.Client
	// PollTimeout is the getUpdates long-poll window. Zero means 50s;
	// negative means a short poll.
	PollTimeout time.Duration
}

// Client talks to the Telegram Bot API for a single authorized chat.
type Client struct {
	token   string
	chatID  string
	baseURL string
	http    *http.Client
	poll    time.Duration
	log     zerolog.Logger
}

// New creates a client. A client without credentials is valid and reports
// Enabled() == false.
func New(opts Options, log zerolog.Logger) *Client {
	if opts.BaseURL == "" {
		opts.BaseURL = defaultBaseURL
	}
	if opts.PollTimeout == 0 {
		opts.PollTimeout = 50 * time.Second
	}
	if opts.PollTimeout < 0 {
		opts.PollTimeout = 0
	}
	if opts.HTTPClient == nil {
		// Must outlive the long poll
		opts.HTTPClient = &http.Client{Timeout: opts.PollTimeout + 20*time.Second}
	}
	return &Client{
		token:   opts.Token,
		chatID:  opts.ChatID,
		baseURL: opts.BaseURL,
		http:    opts.HTTPClient,
		poll:    opts.PollTimeout,
		log:     log.With().Str("component", "telegram").Logger(),
	}
}

// Enabled reports whether credentials are present.
func (c *Client) Enabled() bool {
	return c.token != "" && c.chatID != ""
}

// Notify sends a Markdown message to the configured chat.
func (c *Client) Notify(ctx context.Context, text string) error {
	return c.sendMessage(ctx, map[string]string{
		"chat_id":    c.chatID,
		"text":       text,
		"parse_mode": "Markdown",
	})
}

func (c *Client) sendMessage(ctx context.Context, payload map[string]string) error {
	if !c.Enabled() {
		c.log.Debug().Msg("Telegram credentials missing, skipping notification")
		return ErrDisabled
	}
	c.log.Debug().Str("text", payload["text"]).Msg("Telegram sendMessage")
	return c.call(ctx, "sendMessage", payload, nil)
}

// call posts payload to a Bot API method and decodes the result into out,
// which may be nil.
func (c *Client) call(ctx context.Context, method string, payload interface{}, out interface{}) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return err
	}

	endpoint := fmt.Sprintf("%s/bot%s/%s", c.baseURL, c.token, method)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("telegram %s: %w", method, stripURL(err))
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("telegram %s: %w", method, stripURL(err))
	}
	defer resp.Body.Close()

	var env struct {
		Ok          bool            `json:"ok"`
		Result      json.RawMessage `json:"result"`
		Description string          `json:"description"`
		ErrorCode   int             `json:"error_code"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
		return fmt.Errorf("telegram %s: status %s: %w", method, resp.Status, err)
	}
	if !env.Ok {
		return fmt.Errorf("telegram %s: %s (code %d)", method, env.Description, env.ErrorCode)
	}
	if out != nil {
		return json.Unmarshal(env.Result, out)
	}
	return nil
}

// stripURL drops the request URL, which embeds the bot token, from
// transport errors.
func stripURL(err error) error {
	var ue *url.Error
	if errors.As(err, &ue) {
		return fmt.Errorf("%s: %w", ue.Op, ue.Err)
	}
	return err
}
