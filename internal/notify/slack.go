// Package notify sends orchestrator notifications to chat channels.
// Every failure is reported as *Error so callers can log and move on.
package notify

import (
	"context"
	"errors"
	"fmt"

	"github.com/slack-go/slack"
)

// ErrNotConfigured is returned when no bot token is set.
var ErrNotConfigured = errors.New("slack not configured: SLACK_BOT_TOKEN not set")

// Error is returned by every failed Send.
type Error struct {
	Channel string
	Err     error
}

func (e *Error) Error() string {
	return fmt.Sprintf("notify %s: %v", e.Channel, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Receipt identifies a delivered message.
type Receipt struct {
	Channel   string `json:"channel"`
	Timestamp string `json:"ts"`
	Text      string `json:"text"`
}

// Sink delivers a message, with optional rich blocks, to a channel.
type Sink interface {
	Send(ctx context.Context, channel, text string, blocks ...slack.Block) (*Receipt, error)
}

// Slack is a Sink backed by the Slack Web API.
type Slack struct {
	client *slack.Client
}

// NewSlack creates a Slack sink. An empty token yields a sink whose sends
// fail with ErrNotConfigured.
func NewSlack(token string, opts ...slack.Option) *Slack {
	if token == "" {
		return &Slack{}
	}
	return &Slack{client: slack.New(token, opts...)}
}

// Configured reports whether a token was supplied.
func (s *Slack) Configured() bool {
	return s != nil && s.client != nil
}

// Send posts text to channel.
func (s *Slack) Send(ctx context.Context, channel, text string, blocks ...slack.Block) (*Receipt, error) {
	if !s.Configured() {
		return nil, &Error{Channel: channel, Err: ErrNotConfigured}
	}
	opts := []slack.MsgOption{slack.MsgOptionText(text, false)}
	if len(blocks) > 0 {
		opts = append(opts, slack.MsgOptionBlocks(blocks...))
	}
	ch, ts, err := s.client.PostMessageContext(ctx, channel, opts...)
	if err != nil {
		return nil, &Error{Channel: channel, Err: err}
	}
	return &Receipt{Channel: ch, Timestamp: ts, Text: text}, nil
}

// Verify Slack implements Sink at compile time.
var _ Sink = (*Slack)(nil)
