package domain

import (
	"context"
	"encoding/json"
	"time"
)

// ActionStatus is the state of a pending tool execution.
//
// Transitions: Pending -> {Approved, Rejected, Expired};
// Approved -> {Executed, Failed}. All other states are terminal.
// Every transition is a conditional update guarded on the current
// status, so concurrent resolvers settle each action exactly once.
type ActionStatus string

const (
	ActionPending  ActionStatus = "pending"
	ActionApproved ActionStatus = "approved"
	ActionRejected ActionStatus = "rejected"
	ActionExecuted ActionStatus = "executed"
	ActionFailed   ActionStatus = "failed"
	ActionExpired  ActionStatus = "expired"
)

// Terminal reports whether the status admits no further transitions.
func (s ActionStatus) Terminal() bool {
	switch s {
	case ActionRejected, ActionExecuted, ActionFailed, ActionExpired:
		return true
	}
	return false
}

// PendingAction is one confirmation-queue record. Rows are never
// physically deleted; resolved actions are retained for audit.
type PendingAction struct {
	ID            string          `json:"id"`
	SessionID     string          `json:"session_id"`
	MessageID     string          `json:"message_id,omitempty"`
	ToolCallID    string          `json:"tool_call_id,omitempty"`
	RequesterID   string          `json:"requester_id"`
	RequesterName string          `json:"requester_name,omitempty"`
	ToolName      string          `json:"tool_name"`
	ToolInput     json.RawMessage `json:"tool_input"`
	Status        ActionStatus    `json:"status"`
	NotifyRef     *MessageRef     `json:"notify_ref,omitempty"`
	Result        string          `json:"result,omitempty"`
	ErrorMessage  string          `json:"error_message,omitempty"`
	ResolvedBy    string          `json:"resolved_by,omitempty"`
	CreatedAt     time.Time       `json:"created_at"`
	ResolvedAt    *time.Time      `json:"resolved_at,omitempty"`
	ExpiresAt     time.Time       `json:"expires_at"`
}

// MessageRef is the opaque handle to a posted approval prompt, used to
// edit the prompt when the action resolves.
type MessageRef struct {
	ChannelID string `json:"channel_id"`
	Timestamp string `json:"timestamp"`
}

// Notifier delivers interactive approval prompts and later edits them
// to reflect the outcome. Delivery is at-least-once; state transitions
// stay idempotent regardless of duplicate or lost notifications.
type Notifier interface {
	// PostConfirmation posts the approval prompt for a pending action
	// and returns a reference to the posted message.
	PostConfirmation(ctx context.Context, action PendingAction) (MessageRef, error)
	// UpdateOutcome edits a previously posted prompt to show the
	// action's terminal state. Best effort: failures are logged by the
	// caller, never rolled back into the state machine.
	UpdateOutcome(ctx context.Context, ref MessageRef, action PendingAction) error
}

// ApprovalDecision is the operator's verdict delivered by the inbound
// notifier callback.
type ApprovalDecision struct {
	ActionID  string `json:"action_id"`
	ActorID   string `json:"actor_id"`
	ActorName string `json:"actor_name,omitempty"`
	Approve   bool   `json:"approve"`
}
