package gateway

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	"github.com/slack-go/slack"

	"github.com/storechat/admin-agent/internal/domain"
	"github.com/storechat/admin-agent/internal/usecase"
)

// ActionResolver applies an operator decision to a pending action.
type ActionResolver interface {
	Resolve(ctx context.Context, decision domain.ApprovalDecision) (domain.PendingAction, error)
}

// SlackWebhook handles interactive callbacks from the approval prompts.
// Every request is signature-verified before any payload parsing.
type SlackWebhook struct {
	resolver      ActionResolver
	signingSecret string
	logger        *slog.Logger
}

// NewSlackWebhook creates the webhook handler.
func NewSlackWebhook(resolver ActionResolver, signingSecret string, logger *slog.Logger) *SlackWebhook {
	return &SlackWebhook{resolver: resolver, signingSecret: signingSecret, logger: logger}
}

// Register mounts the webhook route.
func (h *SlackWebhook) Register(mux *http.ServeMux) {
	mux.HandleFunc("POST /slack/interactions", h.handleInteraction)
}

func (h *SlackWebhook) handleInteraction(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, 1<<20))
	if err != nil {
		w.WriteHeader(http.StatusBadRequest)
		return
	}

	verifier, err := slack.NewSecretsVerifier(r.Header, h.signingSecret)
	if err != nil {
		w.WriteHeader(http.StatusBadRequest)
		return
	}
	if _, err := verifier.Write(body); err != nil {
		w.WriteHeader(http.StatusInternalServerError)
		return
	}
	if err := verifier.Ensure(); err != nil {
		h.logger.Warn("rejected webhook with bad signature", "error", err)
		w.WriteHeader(http.StatusUnauthorized)
		return
	}

	payload, err := parseInteractionPayload(body)
	if err != nil {
		w.WriteHeader(http.StatusBadRequest)
		return
	}

	decision, ok := decisionFrom(payload)
	if !ok {
		// Not an approve/reject button; acknowledge and ignore.
		w.WriteHeader(http.StatusOK)
		return
	}

	action, err := h.resolver.Resolve(r.Context(), decision)
	switch {
	case usecase.IsConflict(err):
		// Lost the race against another resolver or the expiry sweep.
		// Acknowledge so Slack does not retry; the prompt already shows
		// the winning outcome.
		h.logger.Info("decision arrived after resolution",
			"action_id", decision.ActionID, "actor", decision.ActorID)
		w.WriteHeader(http.StatusOK)
	case err != nil:
		h.logger.Error("failed to resolve action",
			"action_id", decision.ActionID, "error", err)
		w.WriteHeader(http.StatusInternalServerError)
	default:
		h.logger.Info("action resolved via webhook",
			"action_id", action.ID, "status", action.Status, "actor", decision.ActorID)
		w.WriteHeader(http.StatusOK)
	}
}

// parseInteractionPayload extracts the interaction callback from the
// form-encoded body Slack posts.
func parseInteractionPayload(body []byte) (slack.InteractionCallback, error) {
	var payload slack.InteractionCallback
	raw := string(body)
	if strings.HasPrefix(raw, "payload=") {
		decoded, err := url.QueryUnescape(raw[len("payload="):])
		if err != nil {
			return payload, err
		}
		raw = decoded
	}
	err := json.Unmarshal([]byte(raw), &payload)
	return payload, err
}

// decisionFrom maps a block_actions payload to an approval decision.
// Button action IDs are approve_<actionID> and reject_<actionID>, with
// the action ID duplicated in the button value.
func decisionFrom(payload slack.InteractionCallback) (domain.ApprovalDecision, bool) {
	if payload.Type != slack.InteractionTypeBlockActions || len(payload.ActionCallback.BlockActions) == 0 {
		return domain.ApprovalDecision{}, false
	}

	act := payload.ActionCallback.BlockActions[0]
	var approve bool
	switch {
	case strings.HasPrefix(act.ActionID, "approve_"):
		approve = true
	case strings.HasPrefix(act.ActionID, "reject_"):
		approve = false
	default:
		return domain.ApprovalDecision{}, false
	}

	actionID := act.Value
	if actionID == "" {
		actionID = strings.TrimPrefix(strings.TrimPrefix(act.ActionID, "approve_"), "reject_")
	}

	name := payload.User.RealName
	if name == "" {
		name = payload.User.Name
	}
	return domain.ApprovalDecision{
		ActionID:  actionID,
		ActorID:   payload.User.ID,
		ActorName: name,
		Approve:   approve,
	}, true
}
