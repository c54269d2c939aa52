package notify

import (
	"context"
	"errors"
	"testing"

	"github.com/slack-go/slack"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/storechat/admin-agent/internal/domain"
	"github.com/storechat/admin-agent/internal/infra/logger"
)

type fakeSlackAPI struct {
	postChannel   string
	updateChannel string
	updateTS      string
	postErr       error
	updateErr     error
	userInfoCalls int
	userInfoErr   error
}

func (f *fakeSlackAPI) PostMessageContext(_ context.Context, channelID string, _ ...slack.MsgOption) (string, string, error) {
	f.postChannel = channelID
	if f.postErr != nil {
		return "", "", f.postErr
	}
	return channelID, "1724.001", nil
}

func (f *fakeSlackAPI) UpdateMessageContext(_ context.Context, channelID, timestamp string, _ ...slack.MsgOption) (string, string, string, error) {
	f.updateChannel = channelID
	f.updateTS = timestamp
	return channelID, timestamp, "", f.updateErr
}

func (f *fakeSlackAPI) GetUserInfoContext(_ context.Context, _ string) (*slack.User, error) {
	f.userInfoCalls++
	if f.userInfoErr != nil {
		return nil, f.userInfoErr
	}
	return &slack.User{RealName: "Dana Ops"}, nil
}

func testNotifier(api slackAPI) *SlackNotifier {
	return &SlackNotifier{api: api, channel: "C_APPROVALS", logger: logger.NewNop()}
}

func TestPostConfirmationReturnsRef(t *testing.T) {
	api := &fakeSlackAPI{}
	n := testNotifier(api)

	ref, err := n.PostConfirmation(context.Background(), sampleAction(domain.ActionPending))
	require.NoError(t, err)
	assert.Equal(t, "C_APPROVALS", api.postChannel)
	assert.Equal(t, "C_APPROVALS", ref.ChannelID)
	assert.Equal(t, "1724.001", ref.Timestamp)
}

func TestPostConfirmationError(t *testing.T) {
	api := &fakeSlackAPI{postErr: errors.New("channel_not_found")}
	n := testNotifier(api)

	_, err := n.PostConfirmation(context.Background(), sampleAction(domain.ActionPending))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "channel_not_found")
}

func TestPostConfirmationResolvesMissingRequesterName(t *testing.T) {
	api := &fakeSlackAPI{}
	n := testNotifier(api)

	action := sampleAction(domain.ActionPending)
	action.RequesterName = ""
	_, err := n.PostConfirmation(context.Background(), action)
	require.NoError(t, err)
	assert.Equal(t, 1, api.userInfoCalls)

	// Resolution is cached across prompts.
	_, err = n.PostConfirmation(context.Background(), action)
	require.NoError(t, err)
	assert.Equal(t, 1, api.userInfoCalls)
}

func TestPostConfirmationKeepsProvidedRequesterName(t *testing.T) {
	api := &fakeSlackAPI{}
	n := testNotifier(api)

	_, err := n.PostConfirmation(context.Background(), sampleAction(domain.ActionPending))
	require.NoError(t, err)
	assert.Zero(t, api.userInfoCalls)
}

func TestUpdateOutcomeTargetsRef(t *testing.T) {
	api := &fakeSlackAPI{}
	n := testNotifier(api)

	ref := domain.MessageRef{ChannelID: "C1", Timestamp: "99.1"}
	require.NoError(t, n.UpdateOutcome(context.Background(), ref, sampleAction(domain.ActionRejected)))
	assert.Equal(t, "C1", api.updateChannel)
	assert.Equal(t, "99.1", api.updateTS)
}

func TestResolveUserNameCaches(t *testing.T) {
	api := &fakeSlackAPI{}
	n := testNotifier(api)
	ctx := context.Background()

	assert.Equal(t, "Dana Ops", n.ResolveUserName(ctx, "U1"))
	assert.Equal(t, "Dana Ops", n.ResolveUserName(ctx, "U1"))
	assert.Equal(t, 1, api.userInfoCalls)
}

func TestResolveUserNameFallsBackToID(t *testing.T) {
	api := &fakeSlackAPI{userInfoErr: errors.New("user_not_found")}
	n := testNotifier(api)

	assert.Equal(t, "U404", n.ResolveUserName(context.Background(), "U404"))
}
