package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/storechat/admin-agent/internal/catalog"
	"github.com/storechat/admin-agent/internal/domain"
	"github.com/storechat/admin-agent/internal/infra/config"
	"github.com/storechat/admin-agent/internal/infra/tracer"
)

// ExampleStore is the retrieval-corpus surface the selector needs.
type ExampleStore interface {
	Upsert(ctx context.Context, ex domain.ToolExample) error
	Find(ctx context.Context, toolName, query string) (domain.ToolExample, error)
	SearchSimilar(ctx context.Context, queryVec []float32, domains []string, minSim float32, limit int) ([]domain.ScoredTool, error)
	TopByUsage(ctx context.Context, domains []string, limit int) ([]string, error)
}

// fallbackDomains are searched when the classifier fails or returns
// nothing usable. Orders and customers cover the bulk of admin queries.
var fallbackDomains = []string{"orders", "customers"}

// Selector narrows the tool catalog for one query: classify the query
// into domains, retrieve tools whose example queries embed near it, and
// fall back to the most-used tools when retrieval comes up empty.
type Selector struct {
	classifier domain.DomainClassifier
	embedder   domain.EmbeddingProvider
	examples   ExampleStore
	minSim     float32
	toolLimit  int
	logger     *slog.Logger
}

// NewSelector creates a tool selector.
func NewSelector(classifier domain.DomainClassifier, embedder domain.EmbeddingProvider, examples ExampleStore, cfg config.SelectorConfig, logger *slog.Logger) *Selector {
	return &Selector{
		classifier: classifier,
		embedder:   embedder,
		examples:   examples,
		minSim:     cfg.MinSimilarity,
		toolLimit:  cfg.ToolLimit,
		logger:     logger,
	}
}

// Select returns the tools to offer the LLM for a query. Degradation is
// layered: classifier failure falls back to default domains, retrieval
// failure or an empty result falls back to popularity. Select only
// errors when even the popularity fallback is unavailable.
func (s *Selector) Select(ctx context.Context, query string) (domain.SelectionResult, error) {
	ctx, span := tracer.StartSpan(ctx, "selector.select")
	defer span.End()

	result := domain.SelectionResult{}

	domains, err := s.classifier.Classify(ctx, query)
	if err != nil || len(domains) == 0 {
		if err != nil {
			s.logger.Warn("domain classification failed, using fallback domains", "error", err)
		}
		domains = fallbackDomains
		result.UsedFallback = true
	}
	result.Domains = domains
	span.SetAttributes(tracer.StringAttr("domains", fmt.Sprintf("%v", domains)))

	tools, retrievalErr := s.retrieve(ctx, query, domains)
	if retrievalErr != nil {
		s.logger.Warn("similarity retrieval failed, using popularity fallback", "error", retrievalErr)
	}
	if len(tools) == 0 {
		result.UsedFallback = true
		tools, err = s.examples.TopByUsage(ctx, domains, s.toolLimit)
		if err != nil {
			tracer.RecordError(span, err)
			return result, fmt.Errorf("%w: popularity fallback: %v", domain.ErrSelectionFailed, err)
		}
	}

	// Drop anything not in the catalog; learned rows can outlive a tool.
	for _, name := range tools {
		if _, ok := catalog.ByName(name); ok {
			result.Tools = append(result.Tools, name)
		}
	}

	span.SetAttributes(tracer.IntAttr("tools", len(result.Tools)))
	tracer.SetOK(span)
	return result, nil
}

func (s *Selector) retrieve(ctx context.Context, query string, domains []string) ([]string, error) {
	vecs, err := s.embedder.Embed(ctx, []string{query})
	if err != nil {
		return nil, err
	}
	scored, err := s.examples.SearchSimilar(ctx, vecs[0], domains, s.minSim, s.toolLimit)
	if err != nil {
		return nil, err
	}
	names := make([]string, 0, len(scored))
	for _, st := range scored {
		names = append(names, st.ToolName)
	}
	return names, nil
}

// RecordSuccess folds a confirmed successful tool use back into the
// corpus as a learned example, so the same phrasing retrieves the same
// tool next time. A known (tool, query) pair bumps its usage count
// without touching the embedder; only new pairs are embedded.
func (s *Selector) RecordSuccess(ctx context.Context, toolName, query string) error {
	dom := catalog.DomainOf(toolName)
	if dom == "" {
		return fmt.Errorf("%w: %s", domain.ErrToolNotFound, toolName)
	}

	existing, err := s.examples.Find(ctx, toolName, query)
	switch {
	case err == nil:
		if err := s.examples.Upsert(ctx, existing); err != nil {
			return fmt.Errorf("record success: %w", err)
		}
		s.logger.Debug("bumped learned example", "tool", toolName)
		return nil
	case !errors.Is(err, domain.ErrNotFound):
		return fmt.Errorf("record success: %w", err)
	}

	vecs, err := s.embedder.Embed(ctx, []string{query})
	if err != nil {
		return fmt.Errorf("%w: record success: %v", domain.ErrEmbeddingFailed, err)
	}

	err = s.examples.Upsert(ctx, domain.ToolExample{
		ToolName:  toolName,
		Domain:    dom,
		Query:     query,
		Embedding: vecs[0],
		IsLearned: true,
	})
	if err != nil {
		return fmt.Errorf("record success: %w", err)
	}
	s.logger.Debug("recorded learned example", "tool", toolName)
	return nil
}
