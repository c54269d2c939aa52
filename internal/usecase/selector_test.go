package usecase

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/storechat/admin-agent/internal/domain"
	"github.com/storechat/admin-agent/internal/infra/config"
	"github.com/storechat/admin-agent/internal/infra/logger"
)

func testSelector(classifier *fakeClassifier, embedder *fakeEmbedder, examples *fakeExamples) *Selector {
	return NewSelector(classifier, embedder, examples,
		config.SelectorConfig{MinSimilarity: 0.5, ToolLimit: 10}, logger.NewNop())
}

func TestSelectHappyPath(t *testing.T) {
	classifier := &fakeClassifier{domains: []string{"orders"}}
	embedder := &fakeEmbedder{vec: []float32{1, 0, 0}}
	examples := &fakeExamples{scored: []domain.ScoredTool{
		{ToolName: "get_orders", Similarity: 0.92},
		{ToolName: "get_order", Similarity: 0.81},
	}}

	got, err := testSelector(classifier, embedder, examples).Select(context.Background(), "show recent orders")
	require.NoError(t, err)
	assert.Equal(t, []string{"get_orders", "get_order"}, got.Tools)
	assert.Equal(t, []string{"orders"}, got.Domains)
	assert.False(t, got.UsedFallback)

	assert.Equal(t, "show recent orders", classifier.lastQuery)
	assert.Equal(t, []string{"orders"}, examples.searchDomains)
	assert.Equal(t, float32(0.5), examples.searchMinSim)
	assert.Equal(t, 10, examples.searchLimit)
}

func TestSelectClassifierFailureUsesFallbackDomains(t *testing.T) {
	classifier := &fakeClassifier{err: errors.New("haiku down")}
	embedder := &fakeEmbedder{vec: []float32{1, 0, 0}}
	examples := &fakeExamples{scored: []domain.ScoredTool{{ToolName: "get_orders", Similarity: 0.9}}}

	got, err := testSelector(classifier, embedder, examples).Select(context.Background(), "q")
	require.NoError(t, err)
	assert.Equal(t, fallbackDomains, got.Domains)
	assert.True(t, got.UsedFallback)
	assert.Equal(t, []string{"get_orders"}, got.Tools)
}

func TestSelectEmptyRetrievalFallsBackToPopularity(t *testing.T) {
	classifier := &fakeClassifier{domains: []string{"orders"}}
	embedder := &fakeEmbedder{vec: []float32{1, 0, 0}}
	examples := &fakeExamples{top: []string{"get_orders", "cancel_order"}}

	got, err := testSelector(classifier, embedder, examples).Select(context.Background(), "q")
	require.NoError(t, err)
	assert.True(t, got.UsedFallback)
	assert.Equal(t, []string{"get_orders", "cancel_order"}, got.Tools)
}

func TestSelectEmbedderFailureFallsBackToPopularity(t *testing.T) {
	classifier := &fakeClassifier{domains: []string{"orders"}}
	embedder := &fakeEmbedder{err: errors.New("openai down")}
	examples := &fakeExamples{top: []string{"get_orders"}}

	got, err := testSelector(classifier, embedder, examples).Select(context.Background(), "q")
	require.NoError(t, err)
	assert.True(t, got.UsedFallback)
	assert.Equal(t, []string{"get_orders"}, got.Tools)
}

func TestSelectDropsUnknownTools(t *testing.T) {
	classifier := &fakeClassifier{domains: []string{"orders"}}
	embedder := &fakeEmbedder{vec: []float32{1, 0, 0}}
	examples := &fakeExamples{scored: []domain.ScoredTool{
		{ToolName: "retired_tool", Similarity: 0.95},
		{ToolName: "get_orders", Similarity: 0.9},
	}}

	got, err := testSelector(classifier, embedder, examples).Select(context.Background(), "q")
	require.NoError(t, err)
	assert.Equal(t, []string{"get_orders"}, got.Tools)
}

func TestSelectPopularityFailureErrors(t *testing.T) {
	classifier := &fakeClassifier{domains: []string{"orders"}}
	embedder := &fakeEmbedder{err: errors.New("openai down")}
	examples := &fakeExamples{topErr: errors.New("db gone")}

	_, err := testSelector(classifier, embedder, examples).Select(context.Background(), "q")
	require.ErrorIs(t, err, domain.ErrSelectionFailed)
}

func TestRecordSuccess(t *testing.T) {
	embedder := &fakeEmbedder{vec: []float32{0.1, 0.2}}
	examples := &fakeExamples{}
	s := testSelector(&fakeClassifier{}, embedder, examples)

	require.NoError(t, s.RecordSuccess(context.Background(), "cancel_order", "cancel order 42"))
	require.Len(t, examples.upserts, 1)
	ex := examples.upserts[0]
	assert.Equal(t, "cancel_order", ex.ToolName)
	assert.Equal(t, "orders", ex.Domain)
	assert.Equal(t, "cancel order 42", ex.Query)
	assert.Equal(t, []float32{0.1, 0.2}, ex.Embedding)
	assert.True(t, ex.IsLearned)
}

func TestRecordSuccessKnownPairSkipsEmbedding(t *testing.T) {
	embedder := &fakeEmbedder{vec: []float32{0.1, 0.2}}
	known := domain.ToolExample{
		ToolName: "cancel_order", Domain: "orders", Query: "cancel order 42",
		Embedding: []float32{0.9, 0.9}, IsLearned: true, UsageCount: 3,
	}
	examples := &fakeExamples{existing: []domain.ToolExample{known}}
	s := testSelector(&fakeClassifier{}, embedder, examples)

	require.NoError(t, s.RecordSuccess(context.Background(), "cancel_order", "cancel order 42"))

	// The bump goes through the existing row; no new vector is computed.
	assert.Zero(t, embedder.calls)
	require.Len(t, examples.upserts, 1)
	assert.Equal(t, known, examples.upserts[0])
}

func TestRecordSuccessUnknownTool(t *testing.T) {
	s := testSelector(&fakeClassifier{}, &fakeEmbedder{vec: []float32{1}}, &fakeExamples{})
	err := s.RecordSuccess(context.Background(), "nope", "q")
	require.ErrorIs(t, err, domain.ErrToolNotFound)
}

func TestRecordSuccessEmbedFailure(t *testing.T) {
	s := testSelector(&fakeClassifier{}, &fakeEmbedder{err: errors.New("down")}, &fakeExamples{})
	err := s.RecordSuccess(context.Background(), "get_orders", "q")
	require.ErrorIs(t, err, domain.ErrEmbeddingFailed)
}
