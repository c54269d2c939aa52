package embedding

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sort"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/storechat/admin-agent/internal/domain"
	"github.com/storechat/admin-agent/internal/infra/config"
)

// OpenAIProvider implements domain.EmbeddingProvider using the OpenAI
// embeddings API. Requests are rate limited client-side; corpus seeding
// pushes hundreds of texts through in a burst.
type OpenAIProvider struct {
	apiKey  string
	model   string
	dims    int
	baseURL string
	client  *http.Client
	limiter *rate.Limiter
}

// NewOpenAIProvider creates an OpenAI embedding provider from config.
func NewOpenAIProvider(cfg config.EmbeddingConfig) *OpenAIProvider {
	model := cfg.Model
	if model == "" {
		model = "text-embedding-3-small"
	}
	dims := cfg.Dimensions
	if dims <= 0 {
		dims = 1536
	}
	baseURL := strings.TrimRight(cfg.BaseURL, "/")
	if baseURL == "" {
		baseURL = "https://api.openai.com/v1"
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	limiter := rate.NewLimiter(rate.Inf, 1)
	if cfg.RateLimit > 0 {
		limiter = rate.NewLimiter(rate.Limit(cfg.RateLimit), 1)
	}

	return &OpenAIProvider{
		apiKey:  cfg.APIKey,
		model:   model,
		dims:    dims,
		baseURL: baseURL,
		client:  &http.Client{Timeout: timeout},
		limiter: limiter,
	}
}

// --- OpenAI embeddings wire types ---

type openaiEmbedRequest struct {
	Input []string `json:"input"`
	Model string   `json:"model"`
}

type openaiEmbedResponse struct {
	Data []openaiEmbedData `json:"data"`
}

type openaiEmbedData struct {
	Index     int       `json:"index"`
	Embedding []float32 `json:"embedding"`
}

// Embed implements domain.EmbeddingProvider. Results come back in input
// order with one vector per text.
func (p *OpenAIProvider) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	if err := p.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrEmbeddingFailed, err)
	}

	body, err := json.Marshal(openaiEmbedRequest{Input: texts, Model: p.model})
	if err != nil {
		return nil, fmt.Errorf("%w: marshal request: %v", domain.ErrEmbeddingFailed, err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+"/embeddings", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("%w: create request: %v", domain.ErrEmbeddingFailed, err)
	}

	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+p.apiKey)

	httpResp, err := p.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("%w: http request: %v", domain.ErrEmbeddingFailed, err)
	}
	defer httpResp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(httpResp.Body, 10*1024*1024))
	if err != nil {
		return nil, fmt.Errorf("%w: read response: %v", domain.ErrEmbeddingFailed, err)
	}

	if httpResp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: API error %d: %s", domain.ErrEmbeddingFailed, httpResp.StatusCode, string(respBody))
	}

	var oaiResp openaiEmbedResponse
	if err := json.Unmarshal(respBody, &oaiResp); err != nil {
		return nil, fmt.Errorf("%w: unmarshal response: %v", domain.ErrEmbeddingFailed, err)
	}

	if len(oaiResp.Data) != len(texts) {
		return nil, fmt.Errorf("%w: got %d embeddings for %d texts", domain.ErrEmbeddingFailed, len(oaiResp.Data), len(texts))
	}

	// Sort by index to ensure correct ordering.
	sort.Slice(oaiResp.Data, func(i, j int) bool {
		return oaiResp.Data[i].Index < oaiResp.Data[j].Index
	})

	result := make([][]float32, len(oaiResp.Data))
	for i, d := range oaiResp.Data {
		if len(d.Embedding) != p.dims {
			return nil, fmt.Errorf("%w: embedding %d has %d dimensions, want %d", domain.ErrEmbeddingFailed, i, len(d.Embedding), p.dims)
		}
		result[i] = d.Embedding
	}

	return result, nil
}

// Dimensions implements domain.EmbeddingProvider.
func (p *OpenAIProvider) Dimensions() int { return p.dims }

var _ domain.EmbeddingProvider = (*OpenAIProvider)(nil)
