package gateway

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/storechat/admin-agent/internal/domain"
	"github.com/storechat/admin-agent/internal/infra/logger"
)

const testSigningSecret = "8f742231b10e8888abcd99yyyzzz85a5"

type fakeResolver struct {
	decision domain.ApprovalDecision
	action   domain.PendingAction
	err      error
	calls    int
}

func (f *fakeResolver) Resolve(_ context.Context, d domain.ApprovalDecision) (domain.PendingAction, error) {
	f.calls++
	f.decision = d
	return f.action, f.err
}

func signedRequest(t *testing.T, body string) *http.Request {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/slack/interactions", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	ts := fmt.Sprintf("%d", time.Now().Unix())
	mac := hmac.New(sha256.New, []byte(testSigningSecret))
	fmt.Fprintf(mac, "v0:%s:%s", ts, body)

	req.Header.Set("X-Slack-Request-Timestamp", ts)
	req.Header.Set("X-Slack-Signature", "v0="+hex.EncodeToString(mac.Sum(nil)))
	return req
}

func interactionBody(actionID, value string) string {
	payload := fmt.Sprintf(`{
		"type": "block_actions",
		"user": {"id": "U9", "name": "sam", "real_name": "Sam Lee"},
		"actions": [{"action_id": %q, "block_id": "approval_block", "value": %q}]
	}`, actionID, value)
	return "payload=" + url.QueryEscape(payload)
}

func webhookMux(resolver ActionResolver) *http.ServeMux {
	mux := http.NewServeMux()
	NewSlackWebhook(resolver, testSigningSecret, logger.NewNop()).Register(mux)
	return mux
}

func TestWebhookApprove(t *testing.T) {
	resolver := &fakeResolver{action: domain.PendingAction{ID: "act1", Status: domain.ActionExecuted}}
	mux := webhookMux(resolver)

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, signedRequest(t, interactionBody("approve_act1", "act1")))

	assert.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, 1, resolver.calls)
	assert.Equal(t, "act1", resolver.decision.ActionID)
	assert.Equal(t, "U9", resolver.decision.ActorID)
	assert.Equal(t, "Sam Lee", resolver.decision.ActorName)
	assert.True(t, resolver.decision.Approve)
}

func TestWebhookReject(t *testing.T) {
	resolver := &fakeResolver{action: domain.PendingAction{ID: "act1", Status: domain.ActionRejected}}
	mux := webhookMux(resolver)

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, signedRequest(t, interactionBody("reject_act1", "act1")))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.False(t, resolver.decision.Approve)
}

func TestWebhookBadSignatureRejectedBeforeParsing(t *testing.T) {
	resolver := &fakeResolver{}
	mux := webhookMux(resolver)

	req := signedRequest(t, interactionBody("approve_act1", "act1"))
	req.Header.Set("X-Slack-Signature", "v0=deadbeef")
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Zero(t, resolver.calls)
}

func TestWebhookMissingSignatureHeaders(t *testing.T) {
	resolver := &fakeResolver{}
	mux := webhookMux(resolver)

	req := httptest.NewRequest(http.MethodPost, "/slack/interactions",
		strings.NewReader(interactionBody("approve_act1", "act1")))
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	assert.NotEqual(t, http.StatusOK, rec.Code)
	assert.Zero(t, resolver.calls)
}

func TestWebhookLostRaceStillAcknowledged(t *testing.T) {
	resolver := &fakeResolver{err: domain.ErrQueueConflict}
	mux := webhookMux(resolver)

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, signedRequest(t, interactionBody("approve_act1", "act1")))

	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestWebhookIgnoresUnrelatedActions(t *testing.T) {
	resolver := &fakeResolver{}
	mux := webhookMux(resolver)

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, signedRequest(t, interactionBody("open_settings", "x")))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Zero(t, resolver.calls)
}

func TestWebhookActionIDFallback(t *testing.T) {
	resolver := &fakeResolver{action: domain.PendingAction{ID: "act1"}}
	mux := webhookMux(resolver)

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, signedRequest(t, interactionBody("reject_act1", "")))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "act1", resolver.decision.ActionID)
}
