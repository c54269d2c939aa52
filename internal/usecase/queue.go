package usecase

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/storechat/admin-agent/internal/domain"
	"github.com/storechat/admin-agent/internal/infra/config"
	"github.com/storechat/admin-agent/internal/infra/tracer"
)

// ActionStore is the persistence surface the queue needs. Every Mark*
// method is a conditional update that fails with ErrQueueConflict when
// the action has already moved on.
type ActionStore interface {
	Insert(ctx context.Context, action domain.PendingAction) error
	Get(ctx context.Context, id string) (domain.PendingAction, error)
	ListPending(ctx context.Context, sessionID string) ([]domain.PendingAction, error)
	SetNotifyRef(ctx context.Context, id string, ref domain.MessageRef) error
	MarkApproved(ctx context.Context, id, resolvedBy string, at time.Time) error
	MarkRejected(ctx context.Context, id, resolvedBy string, at time.Time) error
	MarkExecuted(ctx context.Context, id, result string) error
	MarkFailed(ctx context.Context, id, errMsg string) error
	ExpireDue(ctx context.Context, now time.Time) ([]domain.PendingAction, error)
}

// toolRunner executes a validated tool call.
type toolRunner interface {
	Execute(ctx context.Context, call domain.ToolCall) (domain.ToolResult, error)
}

// Queue is the confirmation queue for write tools. A write call parks
// here as a pending action, an operator approves or rejects it out of
// band, and the resolution feeds back into the originating chat via the
// resumer callback.
type Queue struct {
	actions  ActionStore
	notifier domain.Notifier
	executor toolRunner
	ttl      time.Duration
	logger   *slog.Logger
	resumer  func(ctx context.Context, action domain.PendingAction)
}

// NewQueue creates a confirmation queue.
func NewQueue(actions ActionStore, notifier domain.Notifier, executor toolRunner, cfg config.QueueConfig, logger *slog.Logger) *Queue {
	return &Queue{
		actions:  actions,
		notifier: notifier,
		executor: executor,
		ttl:      cfg.TTL,
		logger:   logger,
	}
}

// SetResumer installs the callback invoked after an action reaches a
// terminal state, typically the orchestrator's Resume.
func (q *Queue) SetResumer(fn func(ctx context.Context, action domain.PendingAction)) {
	q.resumer = fn
}

// EnqueueParams captures the originating context of a suspended write.
type EnqueueParams struct {
	SessionID     string
	MessageID     string
	RequesterID   string
	RequesterName string
	Call          domain.ToolCall
}

// Enqueue records a pending action and posts the approval prompt.
// Notification failure is logged, not fatal: the action still expires
// or can be resolved through the API.
func (q *Queue) Enqueue(ctx context.Context, p EnqueueParams) (domain.PendingAction, error) {
	ctx, span := tracer.StartSpan(ctx, "queue.enqueue")
	defer span.End()

	now := time.Now().UTC()
	input := p.Call.Input
	if len(input) == 0 {
		input = json.RawMessage("{}")
	}
	action := domain.PendingAction{
		ID:            ulid.Make().String(),
		SessionID:     p.SessionID,
		MessageID:     p.MessageID,
		ToolCallID:    p.Call.ID,
		RequesterID:   p.RequesterID,
		RequesterName: p.RequesterName,
		ToolName:      p.Call.Name,
		ToolInput:     input,
		Status:        domain.ActionPending,
		CreatedAt:     now,
		ExpiresAt:     now.Add(q.ttl),
	}

	if err := q.actions.Insert(ctx, action); err != nil {
		tracer.RecordError(span, err)
		return domain.PendingAction{}, fmt.Errorf("enqueue: %w", err)
	}

	ref, err := q.notifier.PostConfirmation(ctx, action)
	if err != nil {
		q.logger.Error("failed to post confirmation prompt", "action_id", action.ID, "error", err)
	} else if err := q.actions.SetNotifyRef(ctx, action.ID, ref); err != nil {
		q.logger.Error("failed to store notify ref", "action_id", action.ID, "error", err)
	} else {
		action.NotifyRef = &ref
	}

	q.logger.Info("action enqueued",
		"action_id", action.ID, "tool", action.ToolName,
		"session_id", action.SessionID, "expires_at", action.ExpiresAt)
	tracer.SetOK(span)
	return action, nil
}

// Resolve applies an operator decision. A losing race against another
// resolver or the expiry sweep returns ErrQueueConflict and changes
// nothing.
func (q *Queue) Resolve(ctx context.Context, decision domain.ApprovalDecision) (domain.PendingAction, error) {
	if decision.Approve {
		return q.approve(ctx, decision)
	}
	return q.reject(ctx, decision)
}

func (q *Queue) approve(ctx context.Context, decision domain.ApprovalDecision) (domain.PendingAction, error) {
	ctx, span := tracer.StartSpan(ctx, "queue.approve")
	defer span.End()

	now := time.Now().UTC()
	resolver := decision.ActorName
	if resolver == "" {
		resolver = decision.ActorID
	}
	if err := q.actions.MarkApproved(ctx, decision.ActionID, resolver, now); err != nil {
		tracer.RecordError(span, err)
		return domain.PendingAction{}, fmt.Errorf("approve: %w", err)
	}

	action, err := q.actions.Get(ctx, decision.ActionID)
	if err != nil {
		return domain.PendingAction{}, fmt.Errorf("approve: %w", err)
	}

	// The winner of the approval race executes synchronously.
	result, execErr := q.executor.Execute(ctx, domain.ToolCall{
		ID:    action.ID,
		Name:  action.ToolName,
		Input: action.ToolInput,
	})
	switch {
	case execErr != nil:
		err = q.actions.MarkFailed(ctx, action.ID, execErr.Error())
	case result.IsError:
		err = q.actions.MarkFailed(ctx, action.ID, result.Content)
	default:
		err = q.actions.MarkExecuted(ctx, action.ID, result.Content)
	}
	if err != nil {
		q.logger.Error("failed to record execution outcome", "action_id", action.ID, "error", err)
	}

	action, err = q.actions.Get(ctx, action.ID)
	if err != nil {
		return domain.PendingAction{}, fmt.Errorf("approve: reload: %w", err)
	}

	q.finish(ctx, action)
	tracer.SetOK(span)
	return action, nil
}

func (q *Queue) reject(ctx context.Context, decision domain.ApprovalDecision) (domain.PendingAction, error) {
	now := time.Now().UTC()
	resolver := decision.ActorName
	if resolver == "" {
		resolver = decision.ActorID
	}
	if err := q.actions.MarkRejected(ctx, decision.ActionID, resolver, now); err != nil {
		return domain.PendingAction{}, fmt.Errorf("reject: %w", err)
	}

	action, err := q.actions.Get(ctx, decision.ActionID)
	if err != nil {
		return domain.PendingAction{}, fmt.Errorf("reject: reload: %w", err)
	}

	q.finish(ctx, action)
	return action, nil
}

// ExpireSweep transitions overdue pending actions to expired, updates
// their prompts and resumes their sessions. Called on a timer.
func (q *Queue) ExpireSweep(ctx context.Context) error {
	expired, err := q.actions.ExpireDue(ctx, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("expire sweep: %w", err)
	}
	for _, action := range expired {
		q.logger.Info("action expired", "action_id", action.ID, "tool", action.ToolName)
		q.finish(ctx, action)
	}
	return nil
}

// finish runs the shared terminal-state plumbing: edit the prompt and
// hand the action back to the orchestrator. Both are best effort.
func (q *Queue) finish(ctx context.Context, action domain.PendingAction) {
	if action.NotifyRef != nil {
		if err := q.notifier.UpdateOutcome(ctx, *action.NotifyRef, action); err != nil {
			q.logger.Warn("failed to update prompt", "action_id", action.ID, "error", err)
		}
	}
	if q.resumer != nil && action.Status.Terminal() {
		q.resumer(ctx, action)
	}
}

// IsConflict reports whether err is a lost resolution race.
func IsConflict(err error) bool {
	return errors.Is(err, domain.ErrQueueConflict)
}
