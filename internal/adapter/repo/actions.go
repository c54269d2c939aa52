package repo

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/storechat/admin-agent/internal/domain"
)

// ActionRepo persists the confirmation queue. Every state transition is
// a conditional update guarded on the current status, so concurrent
// resolvers (webhook clicks, the expiry sweeper) settle each action
// exactly once. Rows are never deleted.
type ActionRepo struct {
	db *sql.DB
}

// NewActionRepo creates an action repository.
func NewActionRepo(db *sql.DB) *ActionRepo {
	return &ActionRepo{db: db}
}

// Insert stores a new pending action.
func (r *ActionRepo) Insert(ctx context.Context, a domain.PendingAction) error {
	var resolvedAt any
	if a.ResolvedAt != nil {
		resolvedAt = formatTime(*a.ResolvedAt)
	}
	var notifyChannel, notifyTS string
	if a.NotifyRef != nil {
		notifyChannel = a.NotifyRef.ChannelID
		notifyTS = a.NotifyRef.Timestamp
	}

	_, err := r.db.ExecContext(ctx, `
		INSERT INTO pending_actions
			(id, session_id, message_id, tool_call_id, requester_id, requester_name, tool_name, tool_input,
			 status, notify_channel, notify_ts, result, error_message, resolved_by,
			 created_at, resolved_at, expires_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		a.ID, a.SessionID, a.MessageID, a.ToolCallID, a.RequesterID, a.RequesterName, a.ToolName, string(a.ToolInput),
		string(a.Status), notifyChannel, notifyTS, a.Result, a.ErrorMessage, a.ResolvedBy,
		formatTime(a.CreatedAt), resolvedAt, formatTime(a.ExpiresAt),
	)
	return wrapDB("actions.insert", err)
}

// Get fetches an action by id.
func (r *ActionRepo) Get(ctx context.Context, id string) (domain.PendingAction, error) {
	row := r.db.QueryRowContext(ctx, selectAction+` WHERE id = ?`, id)
	a, err := scanAction(row)
	if errors.Is(err, sql.ErrNoRows) {
		return a, domain.WrapOp("actions.get", domain.ErrActionNotFound)
	}
	return a, wrapDB("actions.get", err)
}

// ListPending returns unresolved actions for a session, oldest first.
func (r *ActionRepo) ListPending(ctx context.Context, sessionID string) ([]domain.PendingAction, error) {
	rows, err := r.db.QueryContext(ctx,
		selectAction+` WHERE session_id = ? AND status = 'pending' ORDER BY created_at`, sessionID)
	if err != nil {
		return nil, wrapDB("actions.list_pending", err)
	}
	defer rows.Close()
	return scanActions(rows, "actions.list_pending")
}

// SetNotifyRef records the posted approval prompt's message reference.
func (r *ActionRepo) SetNotifyRef(ctx context.Context, id string, ref domain.MessageRef) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE pending_actions SET notify_channel = ?, notify_ts = ? WHERE id = ?`,
		ref.ChannelID, ref.Timestamp, id)
	return wrapDB("actions.set_notify_ref", err)
}

// MarkApproved transitions pending -> approved. Returns ErrQueueConflict
// when the action was already resolved, ErrActionNotFound when no such
// action exists.
func (r *ActionRepo) MarkApproved(ctx context.Context, id, actorID string, now time.Time) error {
	return r.transition(ctx, "actions.approve", id, `
		UPDATE pending_actions
		SET status = 'approved', resolved_by = ?, resolved_at = ?
		WHERE id = ? AND status = 'pending'`,
		actorID, formatTime(now), id)
}

// MarkRejected transitions pending -> rejected.
func (r *ActionRepo) MarkRejected(ctx context.Context, id, actorID string, now time.Time) error {
	return r.transition(ctx, "actions.reject", id, `
		UPDATE pending_actions
		SET status = 'rejected', resolved_by = ?, resolved_at = ?
		WHERE id = ? AND status = 'pending'`,
		actorID, formatTime(now), id)
}

// MarkExecuted transitions approved -> executed with the tool's result.
func (r *ActionRepo) MarkExecuted(ctx context.Context, id, result string) error {
	return r.transition(ctx, "actions.executed", id, `
		UPDATE pending_actions
		SET status = 'executed', result = ?
		WHERE id = ? AND status = 'approved'`,
		result, id)
}

// MarkFailed transitions approved -> failed with the execution error.
func (r *ActionRepo) MarkFailed(ctx context.Context, id, errMsg string) error {
	return r.transition(ctx, "actions.failed", id, `
		UPDATE pending_actions
		SET status = 'failed', error_message = ?
		WHERE id = ? AND status = 'approved'`,
		errMsg, id)
}

// ExpireDue transitions every pending action past its deadline to
// expired and returns the actions it transitioned. Each row gets its own
// conditional update, so an approval racing the sweeper wins or loses
// cleanly per action.
func (r *ActionRepo) ExpireDue(ctx context.Context, now time.Time) ([]domain.PendingAction, error) {
	rows, err := r.db.QueryContext(ctx,
		selectAction+` WHERE status = 'pending' AND expires_at <= ?`, formatTime(now))
	if err != nil {
		return nil, wrapDB("actions.expire", err)
	}
	candidates, err := func() ([]domain.PendingAction, error) {
		defer rows.Close()
		return scanActions(rows, "actions.expire")
	}()
	if err != nil {
		return nil, err
	}

	var expired []domain.PendingAction
	for _, a := range candidates {
		res, err := r.db.ExecContext(ctx, `
			UPDATE pending_actions
			SET status = 'expired', resolved_at = ?
			WHERE id = ? AND status = 'pending'`,
			formatTime(now), a.ID)
		if err != nil {
			return expired, wrapDB("actions.expire", err)
		}
		if n, _ := res.RowsAffected(); n == 1 {
			a.Status = domain.ActionExpired
			t := now.UTC().Truncate(time.Second)
			a.ResolvedAt = &t
			expired = append(expired, a)
		}
	}
	return expired, nil
}

func (r *ActionRepo) transition(ctx context.Context, op, id, query string, args ...any) error {
	res, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return wrapDB(op, err)
	}
	if n, _ := res.RowsAffected(); n == 1 {
		return nil
	}

	var exists int
	err = r.db.QueryRowContext(ctx, `SELECT 1 FROM pending_actions WHERE id = ?`, id).Scan(&exists)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.WrapOp(op, domain.ErrActionNotFound)
	}
	if err != nil {
		return wrapDB(op, err)
	}
	return domain.WrapOp(op, domain.ErrQueueConflict)
}

const selectAction = `
	SELECT id, session_id, message_id, tool_call_id, requester_id, requester_name, tool_name, tool_input,
	       status, notify_channel, notify_ts, result, error_message, resolved_by,
	       created_at, resolved_at, expires_at
	FROM pending_actions`

func scanAction(row interface{ Scan(dest ...any) error }) (domain.PendingAction, error) {
	var (
		a                        domain.PendingAction
		toolInput, status        string
		notifyChannel, notifyTS  string
		createdAt, expiresAt     string
		resolvedAt               sql.NullString
	)
	err := row.Scan(&a.ID, &a.SessionID, &a.MessageID, &a.ToolCallID, &a.RequesterID, &a.RequesterName,
		&a.ToolName, &toolInput, &status, &notifyChannel, &notifyTS,
		&a.Result, &a.ErrorMessage, &a.ResolvedBy, &createdAt, &resolvedAt, &expiresAt)
	if err != nil {
		return a, err
	}
	a.ToolInput = []byte(toolInput)
	a.Status = domain.ActionStatus(status)
	if notifyChannel != "" || notifyTS != "" {
		a.NotifyRef = &domain.MessageRef{ChannelID: notifyChannel, Timestamp: notifyTS}
	}
	a.CreatedAt = parseTime(createdAt)
	a.ExpiresAt = parseTime(expiresAt)
	if resolvedAt.Valid {
		t := parseTime(resolvedAt.String)
		a.ResolvedAt = &t
	}
	return a, nil
}

func scanActions(rows *sql.Rows, op string) ([]domain.PendingAction, error) {
	var out []domain.PendingAction
	for rows.Next() {
		a, err := scanAction(rows)
		if err != nil {
			return nil, wrapDB(op, err)
		}
		out = append(out, a)
	}
	return out, wrapDB(op, rows.Err())
}
