package dashboard

import (
	"context"
	"errors"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"nexus_terminal/internal/ai"
	"nexus_terminal/internal/metrics"
)

const (
	chatGreeting = "Nexus Intelligence active. How can I assist with your market analysis today?"
	chatFailure  = "Error processing request."
)

var (
	// ErrEmptyQuestion rejects blank chat input.
	ErrEmptyQuestion = errors.New("empty question")
	// ErrChatUnavailable means a previous question is still being answered.
	ErrChatUnavailable = errors.New("chat busy")
	// ErrUnknownTopic rejects insight topics outside the canned set.
	ErrUnknownTopic = errors.New("unknown insight topic")
)

// insightFallbacks are shown when an insight cannot be produced.
var insightFallbacks = map[ai.Topic]string{
	ai.TopicMacro:        "Unavailable.",
	ai.TopicPulse:        "Feed offline.",
	ai.TopicGeopolitical: "Failed.",
}

// ChatRole is the author of a transcript entry.
type ChatRole string

const (
	RoleUser      ChatRole = "user"
	RoleAssistant ChatRole = "assistant"
)

// ChatMessage is one transcript entry.
type ChatMessage struct {
	Role    ChatRole  `json:"role"`
	Content string    `json:"content"`
	At      time.Time `json:"at"`
}

type chatSession struct {
	busy atomic.Bool

	mu       sync.Mutex
	messages []ChatMessage
}

func newChatSession() *chatSession {
	return &chatSession{messages: []ChatMessage{{Role: RoleAssistant, Content: chatGreeting, At: time.Now()}}}
}

func (s *chatSession) add(role ChatRole, content string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.messages = append(s.messages, ChatMessage{Role: role, Content: content, At: time.Now()})
}

func (s *chatSession) transcript() []ChatMessage {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]ChatMessage{}, s.messages...)
}

// Ask appends question to the transcript and asks the assistant with the
// current tab label as context. One question is answered at a time.
// Assistant failures produce the fixed failure reply, not an error.
func (c *Controller) Ask(ctx context.Context, question string) (string, error) {
	question = strings.TrimSpace(question)
	if question == "" {
		return "", ErrEmptyQuestion
	}
	if !c.chat.busy.CompareAndSwap(false, true) {
		return "", ErrChatUnavailable
	}
	defer c.chat.busy.Store(false)

	c.mu.Lock()
	label := c.tab.Label()
	c.mu.Unlock()

	c.chat.add(RoleUser, question)
	c.publish()

	reply := chatFailure
	if c.deps.Assistant != nil {
		answer, err := c.deps.Assistant.Ask(ctx, question, label)
		if err != nil {
			metrics.RecordAssistantCall("chat", "error")
			c.log.Warn().Err(err).Str("context", label).Msg("Chat request failed")
		} else {
			metrics.RecordAssistantCall("chat", "ok")
			reply = answer
		}
	}

	c.chat.add(RoleAssistant, reply)
	c.publish()
	return reply, nil
}

// Transcript returns the chat history.
func (c *Controller) Transcript() []ChatMessage {
	return c.chat.transcript()
}

// Insight runs a canned analysis. Failures yield the topic's fallback text
// with no sources.
func (c *Controller) Insight(ctx context.Context, topic ai.Topic) (ai.Insight, error) {
	fallback, ok := insightFallbacks[topic]
	if !ok {
		return ai.Insight{}, ErrUnknownTopic
	}
	if c.deps.Assistant == nil {
		return ai.Insight{Text: fallback, Sources: []ai.Source{}}, nil
	}

	out, err := c.deps.Assistant.Insight(ctx, topic, "")
	if err != nil {
		metrics.RecordAssistantCall(string(topic), "error")
		c.log.Warn().Err(err).Str("topic", string(topic)).Msg("Insight request failed")
		return ai.Insight{Text: fallback, Sources: []ai.Source{}}, nil
	}
	metrics.RecordAssistantCall(string(topic), "ok")
	return *out, nil
}
