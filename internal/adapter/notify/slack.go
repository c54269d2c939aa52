package notify

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/slack-go/slack"

	"github.com/storechat/admin-agent/internal/domain"
	"github.com/storechat/admin-agent/internal/infra/config"
)

// slackAPI is the slice of the Slack client the notifier uses.
type slackAPI interface {
	PostMessageContext(ctx context.Context, channelID string, options ...slack.MsgOption) (string, string, error)
	UpdateMessageContext(ctx context.Context, channelID, timestamp string, options ...slack.MsgOption) (string, string, string, error)
	GetUserInfoContext(ctx context.Context, user string) (*slack.User, error)
}

// SlackNotifier posts approval prompts to a Slack channel as Block Kit
// messages and edits them in place when the action resolves.
type SlackNotifier struct {
	api       slackAPI
	channel   string
	logger    *slog.Logger
	userNames sync.Map // cache: userID -> display name
}

// NewSlackNotifier creates a notifier posting to the configured channel.
func NewSlackNotifier(cfg config.SlackConfig, logger *slog.Logger) *SlackNotifier {
	return &SlackNotifier{
		api:     slack.New(cfg.BotToken),
		channel: cfg.Channel,
		logger:  logger,
	}
}

// PostConfirmation posts the approval prompt and returns the message
// reference used for later edits.
func (n *SlackNotifier) PostConfirmation(ctx context.Context, action domain.PendingAction) (domain.MessageRef, error) {
	if action.RequesterName == "" && action.RequesterID != "" {
		action.RequesterName = n.ResolveUserName(ctx, action.RequesterID)
	}
	ch, ts, err := n.api.PostMessageContext(ctx, n.channel,
		slack.MsgOptionBlocks(confirmationBlocks(action)...),
		slack.MsgOptionText(fmt.Sprintf("Approval needed: %s", action.ToolName), false),
	)
	if err != nil {
		return domain.MessageRef{}, fmt.Errorf("slack: post confirmation: %w", err)
	}
	n.logger.Info("posted confirmation prompt",
		"action_id", action.ID, "tool", action.ToolName, "channel", ch, "ts", ts)
	return domain.MessageRef{ChannelID: ch, Timestamp: ts}, nil
}

// UpdateOutcome replaces the prompt with the action's terminal state.
func (n *SlackNotifier) UpdateOutcome(ctx context.Context, ref domain.MessageRef, action domain.PendingAction) error {
	_, _, _, err := n.api.UpdateMessageContext(ctx, ref.ChannelID, ref.Timestamp,
		slack.MsgOptionBlocks(outcomeBlocks(action)...),
		slack.MsgOptionText(fmt.Sprintf("Action %s: %s", action.Status, action.ToolName), false),
	)
	if err != nil {
		return fmt.Errorf("slack: update outcome: %w", err)
	}
	return nil
}

// ResolveUserName returns a display name for a Slack user ID, using a
// cache to avoid repeated API calls. Falls back to the ID itself.
func (n *SlackNotifier) ResolveUserName(ctx context.Context, userID string) string {
	if v, ok := n.userNames.Load(userID); ok {
		return v.(string)
	}
	info, err := n.api.GetUserInfoContext(ctx, userID)
	if err != nil {
		n.logger.Warn("failed to resolve user name", "user_id", userID, "error", err)
		return userID
	}
	name := info.RealName
	if name == "" {
		name = info.Name
	}
	n.userNames.Store(userID, name)
	return name
}

var _ domain.Notifier = (*SlackNotifier)(nil)
