package repo

import (
	"context"
	"database/sql"
	"encoding/binary"
	"fmt"
	"math"
	"sort"
	"strings"
	"time"

	"github.com/storechat/admin-agent/internal/domain"
)

// ExampleRepo persists the tool example corpus: (query, tool) pairs with
// embedded query vectors, searched by cosine similarity at selection
// time. Confirmed successful tool uses are folded back in as learned
// examples.
type ExampleRepo struct {
	db *sql.DB
}

// NewExampleRepo creates an example repository.
func NewExampleRepo(db *sql.DB) *ExampleRepo {
	return &ExampleRepo{db: db}
}

// Upsert inserts an example or, when the (tool, query) pair already
// exists, bumps its usage count. Learned status is sticky: a pre-seeded
// example never becomes learned.
func (r *ExampleRepo) Upsert(ctx context.Context, ex domain.ToolExample) error {
	if ex.ID == "" {
		ex.ID = NewID()
	}
	if ex.UsageCount <= 0 {
		ex.UsageCount = 1
	}

	_, err := r.db.ExecContext(ctx, `
		INSERT INTO tool_examples (id, tool_name, domain, example_query, embedding, is_learned, usage_count, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(tool_name, example_query) DO UPDATE SET
			usage_count = usage_count + 1`,
		ex.ID, ex.ToolName, ex.Domain, ex.Query, float32ToBytes(ex.Embedding),
		boolToInt(ex.IsLearned), ex.UsageCount, formatTime(time.Now()),
	)
	return wrapDB("examples.upsert", err)
}

// Find returns the example for a (tool, query) pair.
func (r *ExampleRepo) Find(ctx context.Context, toolName, query string) (domain.ToolExample, error) {
	var (
		ex        domain.ToolExample
		blob      []byte
		isLearned int
	)
	err := r.db.QueryRowContext(ctx, `
		SELECT id, tool_name, domain, example_query, embedding, is_learned, usage_count
		FROM tool_examples WHERE tool_name = ? AND example_query = ?`,
		toolName, query,
	).Scan(&ex.ID, &ex.ToolName, &ex.Domain, &ex.Query, &blob, &isLearned, &ex.UsageCount)
	if err != nil {
		return ex, wrapDB("examples.find", err)
	}
	ex.Embedding = bytesToFloat32(blob)
	ex.IsLearned = isLearned != 0
	return ex, nil
}

// Count returns the corpus size.
func (r *ExampleRepo) Count(ctx context.Context) (int, error) {
	var n int
	err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM tool_examples`).Scan(&n)
	return n, wrapDB("examples.count", err)
}

// SearchSimilar scans candidates in the given domains, scores each
// against the query vector, and returns per-tool best scores at or above
// minSim, highest first, capped at limit. Corrupt or mismatched vectors
// score zero and drop out below any positive threshold.
func (r *ExampleRepo) SearchSimilar(ctx context.Context, queryVec []float32, domains []string, minSim float32, limit int) ([]domain.ScoredTool, error) {
	query := `SELECT tool_name, embedding FROM tool_examples`
	var args []any
	if len(domains) > 0 {
		query += ` WHERE domain IN (?` + strings.Repeat(",?", len(domains)-1) + `)`
		for _, d := range domains {
			args = append(args, d)
		}
	}
	query += ` ORDER BY rowid`

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("%w: search: %v", domain.ErrVectorStore, err)
	}
	defer rows.Close()

	// Dedupe to per-tool best score, keeping first-seen order so the
	// stable sort below breaks score ties by corpus insertion order.
	seen := map[string]int{}
	var out []domain.ScoredTool
	for rows.Next() {
		var (
			toolName string
			blob     []byte
		)
		if err := rows.Scan(&toolName, &blob); err != nil {
			return nil, fmt.Errorf("%w: scan: %v", domain.ErrVectorStore, err)
		}
		sim := cosineSimilarity(queryVec, bytesToFloat32(blob))
		if sim < minSim {
			continue
		}
		if i, ok := seen[toolName]; ok {
			if sim > out[i].Similarity {
				out[i].Similarity = sim
			}
			continue
		}
		seen[toolName] = len(out)
		out = append(out, domain.ScoredTool{ToolName: toolName, Similarity: sim})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: rows: %v", domain.ErrVectorStore, err)
	}

	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Similarity > out[j].Similarity
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// TopByUsage returns the most-used tool names in the given domains.
// The popularity fallback when similarity retrieval comes up empty.
func (r *ExampleRepo) TopByUsage(ctx context.Context, domains []string, limit int) ([]string, error) {
	if limit <= 0 {
		limit = 10
	}
	query := `SELECT tool_name, SUM(usage_count) AS uses FROM tool_examples`
	var args []any
	if len(domains) > 0 {
		query += ` WHERE domain IN (?` + strings.Repeat(",?", len(domains)-1) + `)`
		for _, d := range domains {
			args = append(args, d)
		}
	}
	query += ` GROUP BY tool_name ORDER BY uses DESC, tool_name LIMIT ?`
	args = append(args, limit)

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("%w: top by usage: %v", domain.ErrVectorStore, err)
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var name string
		var uses int
		if err := rows.Scan(&name, &uses); err != nil {
			return nil, fmt.Errorf("%w: scan: %v", domain.ErrVectorStore, err)
		}
		out = append(out, name)
	}
	return out, rows.Err()
}

// cosineSimilarity returns the cosine of the angle between a and b, or 0
// when lengths mismatch, a norm is zero, or the result is not finite.
func cosineSimilarity(a, b []float32) float32 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}

	var dot, normA, normB float32
	for i := range a {
		dot += a[i] * b[i]
		normA += a[i] * a[i]
		normB += b[i] * b[i]
	}

	denom := float32(math.Sqrt(float64(normA))) * float32(math.Sqrt(float64(normB)))
	if denom == 0 {
		return 0
	}
	result := dot / denom
	if math.IsNaN(float64(result)) || math.IsInf(float64(result), 0) {
		return 0
	}
	return result
}

// float32ToBytes converts a float32 slice to little-endian bytes.
func float32ToBytes(v []float32) []byte {
	buf := make([]byte, len(v)*4)
	for i, f := range v {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(f))
	}
	return buf
}

// bytesToFloat32 converts little-endian bytes back to a float32 slice.
func bytesToFloat32(b []byte) []float32 {
	if len(b)%4 != 0 {
		return nil
	}
	v := make([]float32, len(b)/4)
	for i := range v {
		v[i] = math.Float32frombits(binary.LittleEndian.Uint32(b[i*4:]))
	}
	return v
}
