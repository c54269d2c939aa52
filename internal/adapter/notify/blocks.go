package notify

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/slack-go/slack"

	"github.com/storechat/admin-agent/internal/catalog"
	"github.com/storechat/admin-agent/internal/domain"
)

// maxParamChars caps the parameter preview in a prompt. Slack rejects
// section text over 3000 chars, so long inputs are cut well short of it.
const maxParamChars = 2000

var domainEmojis = map[string]string{
	"orders":        "📦",
	"customers":     "👤",
	"products":      "🏷️",
	"inventory":     "📊",
	"collections":   "📁",
	"discounts":     "🎟️",
	"gift_cards":    "🎁",
	"fulfillment":   "🚚",
	"finance":       "💰",
	"order_editing": "✏️",
}

func domainEmoji(dom string) string {
	if e, ok := domainEmojis[dom]; ok {
		return e
	}
	return "🔧"
}

// confirmationBlocks renders the interactive approval prompt for a
// pending action: what will run, with which parameters, and who asked,
// followed by Approve and Reject buttons carrying the action ID.
func confirmationBlocks(action domain.PendingAction) []slack.Block {
	emoji := domainEmoji(catalog.DomainOf(action.ToolName))

	requester := action.RequesterName
	if requester == "" {
		requester = action.RequesterID
	}

	blocks := []slack.Block{
		slack.NewHeaderBlock(
			slack.NewTextBlockObject(slack.PlainTextType, emoji+" AI Action Request", true, false),
		),
		slack.NewSectionBlock(
			slack.NewTextBlockObject(slack.MarkdownType, fmt.Sprintf("*Tool:* `%s`", action.ToolName), false, false),
			nil, nil,
		),
		slack.NewSectionBlock(
			slack.NewTextBlockObject(slack.MarkdownType, "*Parameters:*\n```"+formatInput(action.ToolInput)+"```", false, false),
			nil, nil,
		),
		slack.NewContextBlock("",
			slack.NewTextBlockObject(slack.MarkdownType, fmt.Sprintf("Requested by *%s* • Just now", requester), false, false),
		),
		slack.NewDividerBlock(),
	}

	approve := slack.NewButtonBlockElement(
		"approve_"+action.ID, action.ID,
		slack.NewTextBlockObject(slack.PlainTextType, "Approve", false, false),
	).WithStyle(slack.StylePrimary)
	reject := slack.NewButtonBlockElement(
		"reject_"+action.ID, action.ID,
		slack.NewTextBlockObject(slack.PlainTextType, "Reject", false, false),
	).WithStyle(slack.StyleDanger)

	return append(blocks, slack.NewActionBlock("confirm_"+action.ID, approve, reject))
}

// outcomeBlocks renders the replacement message for a resolved action.
// Buttons are dropped so the prompt can no longer be acted on.
func outcomeBlocks(action domain.PendingAction) []slack.Block {
	var header, context string
	resolver := action.ResolvedBy
	if resolver == "" {
		resolver = "unknown"
	}

	switch action.Status {
	case domain.ActionApproved, domain.ActionExecuted:
		header = "✅ Action Approved"
		context = fmt.Sprintf("Approved by *%s*", resolver)
	case domain.ActionRejected:
		header = "❌ Action Rejected"
		context = fmt.Sprintf("Rejected by *%s*", resolver)
	case domain.ActionExpired:
		header = "⏰ Action Expired"
		context = "No response before the deadline"
	case domain.ActionFailed:
		header = "⚠️ Action Failed"
		context = fmt.Sprintf("Approved by *%s*, execution failed", resolver)
	default:
		header = "🔧 Action Updated"
		context = string(action.Status)
	}

	blocks := []slack.Block{
		slack.NewHeaderBlock(
			slack.NewTextBlockObject(slack.PlainTextType, header, true, false),
		),
		slack.NewSectionBlock(
			slack.NewTextBlockObject(slack.MarkdownType, fmt.Sprintf("*Tool:* `%s`", action.ToolName), false, false),
			nil, nil,
		),
	}

	if action.Status == domain.ActionExecuted && action.Result != "" {
		blocks = append(blocks, slack.NewSectionBlock(
			slack.NewTextBlockObject(slack.MarkdownType, "*Result:*\n```"+truncate(action.Result, maxParamChars)+"```", false, false),
			nil, nil,
		))
	}
	if action.Status == domain.ActionFailed && action.ErrorMessage != "" {
		blocks = append(blocks, slack.NewSectionBlock(
			slack.NewTextBlockObject(slack.MarkdownType, "*Error:* "+truncate(action.ErrorMessage, maxParamChars), false, false),
			nil, nil,
		))
	}

	return append(blocks, slack.NewContextBlock("",
		slack.NewTextBlockObject(slack.MarkdownType, context, false, false),
	))
}

// formatInput pretty-prints a tool input for display, falling back to
// the raw text when it is not valid JSON.
func formatInput(raw json.RawMessage) string {
	if len(raw) == 0 {
		return "{}"
	}
	var pretty bytes.Buffer
	if err := json.Indent(&pretty, raw, "", "  "); err != nil {
		return truncate(string(raw), maxParamChars)
	}
	return truncate(pretty.String(), maxParamChars)
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max] + "...\n(truncated)"
}
