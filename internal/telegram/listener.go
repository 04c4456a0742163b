package telegram

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/jpillora/backoff"
)

// Update represents a Telegram Update object (partial schema)
type Update struct {
	UpdateID int `json:"update_id"`
	Message  struct {
		Text string `json:"text"`
		Chat struct {
			ID int64 `json:"id"`
		} `json:"chat"`
		From struct {
			Username string `json:"username"`
		} `json:"from"`
	} `json:"message"`
	CallbackQuery *struct {
		ID      string `json:"id"`
		Data    string `json:"data"`
		Message struct {
			Chat struct {
				ID int64 `json:"id"`
			} `json:"chat"`
		} `json:"message"`
	} `json:"callback_query"`
}

// CommandHandler processes a slash command and returns the reply text.
type CommandHandler func(ctx context.Context, command string) string

// CallbackHandler processes a button press and returns the reply text.
type CallbackHandler func(ctx context.Context, data string) string

// Listen long-polls getUpdates until ctx is cancelled. Only the configured
// chat is served; other chats are logged and ignored.
func (c *Client) Listen(ctx context.Context, commands CommandHandler, callbacks CallbackHandler) error {
	if !c.Enabled() {
		c.log.Info().Msg("Telegram listener disabled, credentials missing")
		return nil
	}
	authChatID, err := strconv.ParseInt(c.chatID, 10, 64)
	if err != nil {
		return fmt.Errorf("telegram chat id %q: %w", c.chatID, err)
	}

	b := &backoff.Backoff{Min: time.Second, Max: 30 * time.Second, Factor: 2}
	offset := 0
	c.log.Info().Msg("Telegram listener started")

	for {
		if ctx.Err() != nil {
			c.log.Info().Msg("Telegram listener stopped")
			return nil
		}

		updates, err := c.getUpdates(ctx, offset)
		if err != nil {
			if ctx.Err() != nil {
				continue
			}
			wait := b.Duration()
			c.log.Warn().Err(err).Dur("retry_in", wait).Msg("Telegram getUpdates failed")
			select {
			case <-ctx.Done():
			case <-time.After(wait):
			}
			continue
		}
		b.Reset()

		for _, u := range updates {
			offset = u.UpdateID + 1
			c.dispatch(ctx, authChatID, u, commands, callbacks)
		}
	}
}

func (c *Client) getUpdates(ctx context.Context, offset int) ([]Update, error) {
	var updates []Update
	err := c.call(ctx, "getUpdates", map[string]interface{}{
		"offset":          offset,
		"timeout":         int(c.poll / time.Second),
		"allowed_updates": []string{"message", "callback_query"},
	}, &updates)
	return updates, err
}

func (c *Client) dispatch(ctx context.Context, authChatID int64, u Update, commands CommandHandler, callbacks CallbackHandler) {
	if q := u.CallbackQuery; q != nil {
		if q.Message.Chat.ID != authChatID {
			c.log.Warn().Int64("chat_id", q.Message.Chat.ID).Msg("Unauthorized callback ignored")
			return
		}
		reply := ""
		if callbacks != nil {
			reply = callbacks(ctx, q.Data)
		}
		if err := c.answerCallback(ctx, q.ID, ""); err != nil {
			c.log.Debug().Err(err).Msg("answerCallbackQuery failed")
		}
		c.reply(ctx, reply)
		return
	}

	// We do not reply to unauthorized users
	if u.Message.Chat.ID != authChatID {
		c.log.Warn().
			Str("username", u.Message.From.Username).
			Int64("chat_id", u.Message.Chat.ID).
			Str("text", u.Message.Text).
			Msg("Unauthorized command ignored")
		return
	}

	text := strings.TrimSpace(u.Message.Text)
	if !strings.HasPrefix(text, "/") || commands == nil {
		return
	}
	c.log.Info().Str("command", text).Msg("Command received")
	c.reply(ctx, commands(ctx, text))
}

func (c *Client) reply(ctx context.Context, text string) {
	if text == "" {
		return
	}
	if err := c.Notify(ctx, text); err != nil {
		c.log.Warn().Err(err).Msg("Telegram reply failed")
	}
}
