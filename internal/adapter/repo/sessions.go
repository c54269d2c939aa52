package repo

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"time"

	"github.com/storechat/admin-agent/internal/domain"
)

// SessionRepo persists chat sessions and their append-only messages.
type SessionRepo struct {
	db *sql.DB
}

// NewSessionRepo creates a session repository.
func NewSessionRepo(db *sql.DB) *SessionRepo {
	return &SessionRepo{db: db}
}

// CreateSession inserts a new session.
func (r *SessionRepo) CreateSession(ctx context.Context, s domain.ChatSession) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO chat_sessions (id, user_id, title, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?)`,
		s.ID, s.UserID, s.Title, formatTime(s.CreatedAt), formatTime(s.UpdatedAt),
	)
	return wrapDB("sessions.create", err)
}

// GetSession fetches a session by id.
func (r *SessionRepo) GetSession(ctx context.Context, id string) (domain.ChatSession, error) {
	var (
		s                    domain.ChatSession
		createdAt, updatedAt string
	)
	err := r.db.QueryRowContext(ctx, `
		SELECT id, user_id, title, created_at, updated_at
		FROM chat_sessions WHERE id = ?`, id,
	).Scan(&s.ID, &s.UserID, &s.Title, &createdAt, &updatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return s, domain.WrapOp("sessions.get", domain.ErrSessionNotFound)
	}
	if err != nil {
		return s, wrapDB("sessions.get", err)
	}
	s.CreatedAt = parseTime(createdAt)
	s.UpdatedAt = parseTime(updatedAt)
	return s, nil
}

// ListSessions returns a user's sessions, most recently updated first.
func (r *SessionRepo) ListSessions(ctx context.Context, userID string, limit int) ([]domain.ChatSession, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, user_id, title, created_at, updated_at
		FROM chat_sessions WHERE user_id = ?
		ORDER BY updated_at DESC LIMIT ?`, userID, limit)
	if err != nil {
		return nil, wrapDB("sessions.list", err)
	}
	defer rows.Close()

	var out []domain.ChatSession
	for rows.Next() {
		var (
			s                    domain.ChatSession
			createdAt, updatedAt string
		)
		if err := rows.Scan(&s.ID, &s.UserID, &s.Title, &createdAt, &updatedAt); err != nil {
			return nil, wrapDB("sessions.list", err)
		}
		s.CreatedAt = parseTime(createdAt)
		s.UpdatedAt = parseTime(updatedAt)
		out = append(out, s)
	}
	return out, wrapDB("sessions.list", rows.Err())
}

// SetTitle sets the session title.
func (r *SessionRepo) SetTitle(ctx context.Context, id, title string) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE chat_sessions SET title = ?, updated_at = ? WHERE id = ?`,
		title, formatTime(time.Now()), id)
	return wrapDB("sessions.set_title", err)
}

// Touch bumps a session's updated_at.
func (r *SessionRepo) Touch(ctx context.Context, id string, now time.Time) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE chat_sessions SET updated_at = ? WHERE id = ?`,
		formatTime(now), id)
	return wrapDB("sessions.touch", err)
}

// AppendMessage appends one message to a session.
func (r *SessionRepo) AppendMessage(ctx context.Context, m domain.ChatMessage) error {
	var toolCalls string
	if len(m.ToolCalls) > 0 {
		raw, err := json.Marshal(m.ToolCalls)
		if err != nil {
			return domain.WrapOp("messages.append", err)
		}
		toolCalls = string(raw)
	}

	var inputTokens, outputTokens int
	if m.Usage != nil {
		inputTokens = m.Usage.InputTokens
		outputTokens = m.Usage.OutputTokens
	}

	_, err := r.db.ExecContext(ctx, `
		INSERT INTO chat_messages
			(id, session_id, role, content, tool_calls, tool_call_id, is_error, stop_reason, input_tokens, output_tokens, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		m.ID, m.SessionID, m.Role, m.Content, toolCalls, m.ToolCallID,
		boolToInt(m.IsError), m.StopReason, inputTokens, outputTokens,
		formatTime(m.CreatedAt),
	)
	return wrapDB("messages.append", err)
}

// UpdateToolResult rewrites a persisted tool result in place, used to
// replace the placeholder for a parked write once its action resolves.
// Returns ErrNotFound when the session has no result for the call.
func (r *SessionRepo) UpdateToolResult(ctx context.Context, sessionID, toolCallID, content string, isError bool) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE chat_messages SET content = ?, is_error = ?
		WHERE session_id = ? AND tool_call_id = ? AND role = ?`,
		content, boolToInt(isError), sessionID, toolCallID, string(domain.RoleToolResult))
	if err != nil {
		return wrapDB("messages.update_result", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return domain.WrapOp("messages.update_result", domain.ErrNotFound)
	}
	return nil
}

// ListMessages returns a session's messages in chronological order.
func (r *SessionRepo) ListMessages(ctx context.Context, sessionID string) ([]domain.ChatMessage, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, session_id, role, content, tool_calls, tool_call_id, is_error, stop_reason, input_tokens, output_tokens, created_at
		FROM chat_messages WHERE session_id = ?
		ORDER BY created_at, id`, sessionID)
	if err != nil {
		return nil, wrapDB("messages.list", err)
	}
	defer rows.Close()

	var out []domain.ChatMessage
	for rows.Next() {
		var (
			m                         domain.ChatMessage
			toolCalls, createdAt      string
			isError                   int
			inputTokens, outputTokens int
		)
		if err := rows.Scan(&m.ID, &m.SessionID, &m.Role, &m.Content, &toolCalls,
			&m.ToolCallID, &isError, &m.StopReason, &inputTokens, &outputTokens, &createdAt); err != nil {
			return nil, wrapDB("messages.list", err)
		}
		if toolCalls != "" {
			if err := json.Unmarshal([]byte(toolCalls), &m.ToolCalls); err != nil {
				return nil, wrapDB("messages.list", err)
			}
		}
		m.IsError = isError != 0
		if inputTokens > 0 || outputTokens > 0 {
			m.Usage = &domain.Usage{InputTokens: inputTokens, OutputTokens: outputTokens}
		}
		m.CreatedAt = parseTime(createdAt)
		out = append(out, m)
	}
	return out, wrapDB("messages.list", rows.Err())
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
