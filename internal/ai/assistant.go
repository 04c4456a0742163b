package ai

import (
	"context"
	"fmt"
	"strings"
)

// Topic selects one of the canned institutional analyses.
type Topic string

const (
	TopicMacro        Topic = "macro"
	TopicPulse        Topic = "pulse"
	TopicGeopolitical Topic = "geopolitical"
)

// Source is a grounding reference returned with an insight.
type Source struct {
	URI   string `json:"uri"`
	Title string `json:"title"`
}

// Insight is free text plus the web sources it was grounded on.
type Insight struct {
	Text    string   `json:"text"`
	Sources []Source `json:"sources"`
}

var topicPrompts = map[Topic]string{
	TopicMacro:        "High-level institutional analysis on: %s. Focus on Gamma Exposure, 10Y yields, and AI-Miner correlation.",
	TopicPulse:        "Top 5 headlines: ETF flows, Fed sentiment, AI mining pivots.",
	TopicGeopolitical: "Analyze global yield spreads, dividend yields of tech indices vs US 10Y, and risk-off correlation using real-time FRED data.",
}

// grounded topics run with the search tool enabled.
var grounded = map[Topic]bool{
	TopicPulse:        true,
	TopicGeopolitical: true,
}

// ParseTopic accepts a topic name.
func ParseTopic(s string) (Topic, bool) {
	t := Topic(strings.ToLower(strings.TrimSpace(s)))
	_, ok := topicPrompts[t]
	return t, ok
}

// Ask sends a free-text chat question with the dashboard context label.
func (c *Client) Ask(ctx context.Context, query, contextLabel string) (string, error) {
	prompt := fmt.Sprintf("You are the Nexus Institutional AI. Context: %s. User: %s", contextLabel, query)
	resp, err := c.generate(ctx, c.chatModel, textPayload(prompt))
	if err != nil {
		return "", err
	}
	text := strings.TrimSpace(resp.text())
	if text == "" {
		return "", ErrEmptyResponse
	}
	return text, nil
}

// Insight runs a canned analysis. subject fills the macro prompt and is
// ignored by the other topics.
func (c *Client) Insight(ctx context.Context, topic Topic, subject string) (*Insight, error) {
	tmpl, ok := topicPrompts[topic]
	if !ok {
		return nil, fmt.Errorf("unknown insight topic %q", topic)
	}
	prompt := tmpl
	if strings.Contains(tmpl, "%s") {
		if subject == "" {
			subject = "Bitcoin Spot ETF flows"
		}
		prompt = fmt.Sprintf(tmpl, subject)
	}

	payload := textPayload(prompt)
	if grounded[topic] {
		payload["tools"] = []map[string]interface{}{{"googleSearch": map[string]interface{}{}}}
	}

	resp, err := c.generate(ctx, c.chatModel, payload)
	if err != nil {
		return nil, err
	}
	text := strings.TrimSpace(resp.text())
	if text == "" {
		return nil, ErrEmptyResponse
	}

	out := &Insight{Text: text, Sources: []Source{}}
	for _, ch := range resp.Candidates[0].GroundingMetadata.GroundingChunks {
		if ch.Web.URI != "" {
			out.Sources = append(out.Sources, Source{URI: ch.Web.URI, Title: ch.Web.Title})
		}
	}
	return out, nil
}
