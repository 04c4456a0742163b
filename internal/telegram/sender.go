package telegram

import (
	"context"
	"encoding/json"
	"strings"
)

var markdownEscaper = strings.NewReplacer("_", "\\_", "*", "\\*", "`", "\\`", "[", "\\[")

// EscapeMarkdown escapes free text, such as assistant replies, for a
// Markdown message. The result must not be placed inside an entity.
func EscapeMarkdown(s string) string {
	return markdownEscaper.Replace(s)
}

// Button represents an inline keyboard button.
type Button struct {
	Text         string `json:"text"`
	CallbackData string `json:"callback_data"`
}

// SendInteractive sends a message with one row of inline buttons.
func (c *Client) SendInteractive(ctx context.Context, text string, buttons []Button) error {
	keyboard, err := json.Marshal(map[string]interface{}{
		"inline_keyboard": [][]Button{buttons},
	})
	if err != nil {
		return err
	}
	return c.sendMessage(ctx, map[string]string{
		"chat_id":      c.chatID,
		"text":         text,
		"parse_mode":   "Markdown",
		"reply_markup": string(keyboard),
	})
}

// answerCallback acknowledges a button press so the client stops spinning.
func (c *Client) answerCallback(ctx context.Context, callbackID, text string) error {
	return c.call(ctx, "answerCallbackQuery", map[string]string{
		"callback_query_id": callbackID,
		"text":              text,
	}, nil)
}
