package llm

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/storechat/admin-agent/internal/catalog"
	"github.com/storechat/admin-agent/internal/domain"
)

const (
	defaultClassifierModel = "claude-3-5-haiku-latest"
	classifierMaxTokens    = 100
	maxDomains             = 3
)

// Classifier maps a free-text query to tool domains using a small,
// fast model. A misclassification is cheap: the selector falls back to
// broader retrieval when the classifier errs or returns nothing usable.
type Classifier struct {
	client domain.LLMClient
	model  string
	system string
	logger *slog.Logger
}

// NewClassifier creates a domain classifier. An empty model selects the
// default small model.
func NewClassifier(client domain.LLMClient, model string, logger *slog.Logger) *Classifier {
	if model == "" {
		model = defaultClassifierModel
	}
	return &Classifier{
		client: client,
		model:  model,
		system: buildClassifierPrompt(),
		logger: logger,
	}
}

func buildClassifierPrompt() string {
	var b strings.Builder
	b.WriteString("You classify e-commerce admin queries into tool domains.\n\nAvailable domains:\n")
	for _, dd := range catalog.DomainDescriptions {
		fmt.Fprintf(&b, "- %s: %s\n", dd.Domain, dd.Description)
	}
	return b.String()
}

// Classify implements domain.DomainClassifier. It returns 1-3 known
// domains, or an error when the model yields nothing recognizable.
func (c *Classifier) Classify(ctx context.Context, query string) ([]string, error) {
	prompt := fmt.Sprintf("Classify this query into 1-3 relevant domains. Return ONLY the domain names, comma-separated.\n\nQuery: %s", query)

	resp, err := c.client.Chat(ctx, domain.ChatRequest{
		Model:     c.model,
		System:    c.system,
		MaxTokens: classifierMaxTokens,
		Messages: []domain.ChatMessage{
			{Role: domain.RoleUser, Content: prompt},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("classify query: %w", err)
	}

	domains := parseDomainList(resp.Text)
	if len(domains) == 0 {
		return nil, fmt.Errorf("%w: classifier returned no known domains: %q", domain.ErrSelectionFailed, resp.Text)
	}

	c.logger.Debug("query classified", "domains", domains)
	return domains, nil
}

// parseDomainList extracts known domain names from the model's
// comma-separated reply, dropping unknowns and capping at three.
func parseDomainList(text string) []string {
	var out []string
	for _, part := range strings.Split(text, ",") {
		name := strings.ToLower(strings.TrimSpace(part))
		name = strings.Trim(name, ".`\"'")
		if !catalog.KnownDomain(name) {
			continue
		}
		out = append(out, name)
		if len(out) == maxDomains {
			break
		}
	}
	return out
}

var _ domain.DomainClassifier = (*Classifier)(nil)
