package usecase

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/storechat/admin-agent/internal/domain"
)

type fakeClassifier struct {
	domains   []string
	err       error
	lastQuery string
}

func (f *fakeClassifier) Classify(_ context.Context, query string) ([]string, error) {
	f.lastQuery = query
	return f.domains, f.err
}

type fakeEmbedder struct {
	vec   []float32
	err   error
	calls int
}

func (f *fakeEmbedder) Embed(_ context.Context, texts []string) ([][]float32, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	out := make([][]float32, len(texts))
	for i := range texts {
		out[i] = f.vec
	}
	return out, nil
}

func (f *fakeEmbedder) Dimensions() int { return len(f.vec) }

type fakeExamples struct {
	existing      []domain.ToolExample
	scored        []domain.ScoredTool
	searchErr     error
	top           []string
	topErr        error
	upserts       []domain.ToolExample
	upsertErr     error
	searchDomains []string
	searchMinSim  float32
	searchLimit   int
}

func (f *fakeExamples) Upsert(_ context.Context, ex domain.ToolExample) error {
	if f.upsertErr != nil {
		return f.upsertErr
	}
	f.upserts = append(f.upserts, ex)
	return nil
}

func (f *fakeExamples) Find(_ context.Context, toolName, query string) (domain.ToolExample, error) {
	for _, ex := range f.existing {
		if ex.ToolName == toolName && ex.Query == query {
			return ex, nil
		}
	}
	return domain.ToolExample{}, domain.ErrNotFound
}

func (f *fakeExamples) SearchSimilar(_ context.Context, _ []float32, domains []string, minSim float32, limit int) ([]domain.ScoredTool, error) {
	f.searchDomains = domains
	f.searchMinSim = minSim
	f.searchLimit = limit
	return f.scored, f.searchErr
}

func (f *fakeExamples) TopByUsage(_ context.Context, _ []string, _ int) ([]string, error) {
	return f.top, f.topErr
}

type storeCall struct {
	name  string
	input string
}

type fakeStore struct {
	payload json.RawMessage
	err     error
	calls   []storeCall
}

func (f *fakeStore) Call(_ context.Context, toolName string, input json.RawMessage) (json.RawMessage, error) {
	f.calls = append(f.calls, storeCall{name: toolName, input: string(input)})
	if f.err != nil {
		return nil, f.err
	}
	return f.payload, nil
}

// memActionStore is an in-memory ActionStore with the same conditional
// transition semantics as the SQLite implementation.
type memActionStore struct {
	mu      sync.Mutex
	actions map[string]*domain.PendingAction
}

func newMemActionStore() *memActionStore {
	return &memActionStore{actions: map[string]*domain.PendingAction{}}
}

func (m *memActionStore) Insert(_ context.Context, action domain.PendingAction) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.actions[action.ID] = &action
	return nil
}

func (m *memActionStore) Get(_ context.Context, id string) (domain.PendingAction, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.actions[id]
	if !ok {
		return domain.PendingAction{}, domain.ErrActionNotFound
	}
	return *a, nil
}

func (m *memActionStore) ListPending(_ context.Context, sessionID string) ([]domain.PendingAction, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domain.PendingAction
	for _, a := range m.actions {
		if a.SessionID == sessionID && a.Status == domain.ActionPending {
			out = append(out, *a)
		}
	}
	return out, nil
}

func (m *memActionStore) SetNotifyRef(_ context.Context, id string, ref domain.MessageRef) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if a, ok := m.actions[id]; ok {
		a.NotifyRef = &ref
	}
	return nil
}

func (m *memActionStore) transition(id string, from, to domain.ActionStatus, mutate func(*domain.PendingAction)) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.actions[id]
	if !ok {
		return domain.ErrActionNotFound
	}
	if a.Status != from {
		return fmt.Errorf("%w: %s", domain.ErrQueueConflict, a.Status)
	}
	a.Status = to
	mutate(a)
	return nil
}

func (m *memActionStore) MarkApproved(_ context.Context, id, resolvedBy string, at time.Time) error {
	return m.transition(id, domain.ActionPending, domain.ActionApproved, func(a *domain.PendingAction) {
		a.ResolvedBy = resolvedBy
		a.ResolvedAt = &at
	})
}

func (m *memActionStore) MarkRejected(_ context.Context, id, resolvedBy string, at time.Time) error {
	return m.transition(id, domain.ActionPending, domain.ActionRejected, func(a *domain.PendingAction) {
		a.ResolvedBy = resolvedBy
		a.ResolvedAt = &at
	})
}

func (m *memActionStore) MarkExecuted(_ context.Context, id, result string) error {
	return m.transition(id, domain.ActionApproved, domain.ActionExecuted, func(a *domain.PendingAction) {
		a.Result = result
	})
}

func (m *memActionStore) MarkFailed(_ context.Context, id, errMsg string) error {
	return m.transition(id, domain.ActionApproved, domain.ActionFailed, func(a *domain.PendingAction) {
		a.ErrorMessage = errMsg
	})
}

func (m *memActionStore) ExpireDue(_ context.Context, now time.Time) ([]domain.PendingAction, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domain.PendingAction
	for _, a := range m.actions {
		if a.Status == domain.ActionPending && !a.ExpiresAt.After(now) {
			a.Status = domain.ActionExpired
			a.ResolvedAt = &now
			out = append(out, *a)
		}
	}
	return out, nil
}

type fakeNotifier struct {
	posted  []domain.PendingAction
	updated []domain.PendingAction
	postErr error
	ref     domain.MessageRef
}

func (f *fakeNotifier) PostConfirmation(_ context.Context, action domain.PendingAction) (domain.MessageRef, error) {
	if f.postErr != nil {
		return domain.MessageRef{}, f.postErr
	}
	f.posted = append(f.posted, action)
	return f.ref, nil
}

func (f *fakeNotifier) UpdateOutcome(_ context.Context, _ domain.MessageRef, action domain.PendingAction) error {
	f.updated = append(f.updated, action)
	return nil
}

type fakeRunner struct {
	result domain.ToolResult
	err    error
	calls  []domain.ToolCall
}

func (f *fakeRunner) Execute(_ context.Context, call domain.ToolCall) (domain.ToolResult, error) {
	f.calls = append(f.calls, call)
	if f.err != nil {
		return domain.ToolResult{}, f.err
	}
	result := f.result
	if result.ToolCallID == "" {
		result.ToolCallID = call.ID
	}
	return result, nil
}

type fakeSelector struct {
	selection domain.SelectionResult
	selectErr error
	recorded  []string
}

func (f *fakeSelector) Select(_ context.Context, _ string) (domain.SelectionResult, error) {
	return f.selection, f.selectErr
}

func (f *fakeSelector) RecordSuccess(_ context.Context, toolName, _ string) error {
	f.recorded = append(f.recorded, toolName)
	return nil
}

type fakeQueue struct {
	enqueued []EnqueueParams
	pending  []domain.PendingAction
	action   domain.PendingAction
}

func (f *fakeQueue) Enqueue(_ context.Context, p EnqueueParams) (domain.PendingAction, error) {
	f.enqueued = append(f.enqueued, p)
	action := f.action
	if action.ID == "" {
		action.ID = fmt.Sprintf("act_%d", len(f.enqueued))
	}
	return action, nil
}

func (f *fakeQueue) ListPending(_ context.Context, _ string) ([]domain.PendingAction, error) {
	return f.pending, nil
}

// fakeLLM scripts both surfaces: Chat pops chatResults, ChatStream pops
// streamScripts and replays one script per call.
type fakeLLM struct {
	chatResults   []*domain.ChatResult
	chatErr       error
	streamScripts [][]domain.StreamEvent
	streamErr     error
	reqs          []domain.ChatRequest
}

func (f *fakeLLM) Chat(_ context.Context, req domain.ChatRequest) (*domain.ChatResult, error) {
	f.reqs = append(f.reqs, req)
	if f.chatErr != nil {
		return nil, f.chatErr
	}
	if len(f.chatResults) == 0 {
		return &domain.ChatResult{StopReason: domain.StopEndTurn}, nil
	}
	res := f.chatResults[0]
	f.chatResults = f.chatResults[1:]
	return res, nil
}

func (f *fakeLLM) ChatStream(_ context.Context, req domain.ChatRequest) (<-chan domain.StreamEvent, error) {
	f.reqs = append(f.reqs, req)
	if f.streamErr != nil {
		return nil, f.streamErr
	}
	var script []domain.StreamEvent
	if len(f.streamScripts) > 0 {
		script = f.streamScripts[0]
		f.streamScripts = f.streamScripts[1:]
	}
	ch := make(chan domain.StreamEvent, len(script))
	for _, ev := range script {
		ch <- ev
	}
	close(ch)
	return ch, nil
}

// memSessionStore is an in-memory SessionStore.
type memSessionStore struct {
	mu       sync.Mutex
	sessions map[string]domain.ChatSession
	messages map[string][]domain.ChatMessage
}

func newMemSessionStore() *memSessionStore {
	return &memSessionStore{
		sessions: map[string]domain.ChatSession{},
		messages: map[string][]domain.ChatMessage{},
	}
}

func (m *memSessionStore) CreateSession(_ context.Context, s domain.ChatSession) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sessions[s.ID] = s
	return nil
}

func (m *memSessionStore) GetSession(_ context.Context, id string) (domain.ChatSession, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[id]
	if !ok {
		return domain.ChatSession{}, domain.ErrSessionNotFound
	}
	return s, nil
}

func (m *memSessionStore) ListSessions(_ context.Context, userID string, _ int) ([]domain.ChatSession, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domain.ChatSession
	for _, s := range m.sessions {
		if s.UserID == userID {
			out = append(out, s)
		}
	}
	return out, nil
}

func (m *memSessionStore) SetTitle(_ context.Context, id, title string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	s := m.sessions[id]
	s.Title = title
	m.sessions[id] = s
	return nil
}

func (m *memSessionStore) Touch(_ context.Context, id string, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	s := m.sessions[id]
	s.UpdatedAt = at
	m.sessions[id] = s
	return nil
}

func (m *memSessionStore) AppendMessage(_ context.Context, msg domain.ChatMessage) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.messages[msg.SessionID] = append(m.messages[msg.SessionID], msg)
	return nil
}

func (m *memSessionStore) UpdateToolResult(_ context.Context, sessionID, toolCallID, content string, isError bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	msgs := m.messages[sessionID]
	for i := range msgs {
		if msgs[i].Role == domain.RoleToolResult && msgs[i].ToolCallID == toolCallID {
			msgs[i].Content = content
			msgs[i].IsError = isError
			return nil
		}
	}
	return domain.ErrNotFound
}

func (m *memSessionStore) ListMessages(_ context.Context, sessionID string) ([]domain.ChatMessage, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]domain.ChatMessage, len(m.messages[sessionID]))
	copy(out, m.messages[sessionID])
	return out, nil
}
