// Package notify provides the fire-and-forget notification sink. Failures
// here are logged and swallowed; they never block or reverse the operation
// that triggered the notification.
package notify

import (
	"context"
	"log/slog"

	"github.com/slack-go/slack"
)

const botUsername = "PennyMe"

// SlackNotifier posts operational notifications to a Slack channel.
type SlackNotifier struct {
	client  *slack.Client
	channel string
	logger  *slog.Logger
}

// NewSlackNotifier creates a notifier for the given channel.
func NewSlackNotifier(token, channel string, logger *slog.Logger) *SlackNotifier {
	return &SlackNotifier{
		client:  slack.New(token),
		channel: channel,
		logger:  logger,
	}
}

// Notify posts the message. Errors are logged, not returned.
func (n *SlackNotifier) Notify(ctx context.Context, message string) {
	_, _, err := n.client.PostMessageContext(ctx, n.channel,
		slack.MsgOptionText(message, false),
		slack.MsgOptionUsername(botUsername),
	)
	if err != nil {
		n.logger.Warn("slack notification failed", "error", err)
	}
}

// NopNotifier discards notifications. Used when no Slack token is configured.
type NopNotifier struct{}

func (NopNotifier) Notify(context.Context, string) {}
