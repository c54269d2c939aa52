package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sort"

	"gopkg.in/yaml.v3"

	"github.com/storechat/admin-agent/internal/catalog"
	"github.com/storechat/admin-agent/internal/domain"
)

// seedQueries maps each tool to example phrasings an operator might use.
// These bootstrap similarity retrieval before any learned examples exist.
var seedQueries = map[string][]string{
	"get_sales_summary": {
		"how were sales last week",
		"show me revenue for March",
	},
	"get_order_summary": {
		"how many orders did we get yesterday",
		"order volume this month",
	},
	"get_top_customers": {
		"who are our best customers",
		"top 10 customers by spend",
	},
	"get_order": {
		"show me order #1042",
		"what's the status of order 1042",
	},
	"get_orders": {
		"list recent orders",
		"show unfulfilled orders",
	},
	"update_order_note": {
		"add a note to order 1042 saying customer called",
		"update the note on order #1042",
	},
	"cancel_order": {
		"cancel order 1042",
		"the customer wants order #1042 cancelled",
	},
	"mark_order_as_paid": {
		"mark order 1042 as paid",
		"order #1042 was paid by bank transfer, mark it paid",
	},
	"get_customer": {
		"look up customer jane@example.com",
		"show me details for this customer",
	},
	"get_customers": {
		"list customers who signed up this week",
		"search customers named Smith",
	},
	"add_customer_tags": {
		"tag this customer as VIP",
		"add the wholesale tag to jane@example.com",
	},
	"delete_customer": {
		"delete this customer's account",
		"remove customer jane@example.com per their GDPR request",
	},
	"get_product": {
		"show me the blue hoodie product",
		"what's the price of SKU 1234",
	},
	"get_products": {
		"list all active products",
		"search products with vendor Acme",
	},
	"update_product": {
		"set the blue hoodie to draft",
		"rename this product",
	},
	"delete_product": {
		"delete the discontinued hoodie",
		"remove this product from the store",
	},
	"get_inventory_levels": {
		"how much stock do we have at the warehouse",
		"inventory levels for the main location",
	},
	"get_locations": {
		"list our store locations",
		"which warehouses do we have",
	},
	"adjust_inventory": {
		"add 50 units of SKU 1234 at the warehouse",
		"remove 3 damaged units from stock",
	},
	"get_collections": {
		"list product collections",
		"show me the summer collection",
	},
	"add_products_to_collection": {
		"add the new hoodies to the winter collection",
		"put this product in the sale collection",
	},
	"delete_collection": {
		"delete the old spring collection",
		"remove the clearance collection",
	},
	"get_discounts": {
		"what discount codes are active",
		"show me the SUMMER10 discount",
	},
	"activate_discount": {
		"turn on the SUMMER10 discount",
		"activate the holiday promo code",
	},
	"deactivate_discount": {
		"disable the SUMMER10 code",
		"turn off the holiday promotion",
	},
	"get_gift_cards": {
		"list outstanding gift cards",
		"look up gift card ending 4321",
	},
	"credit_gift_card": {
		"add $25 to this gift card",
		"credit gift card ending 4321 with 10 dollars",
	},
	"deactivate_gift_card": {
		"disable this gift card",
		"the gift card was stolen, deactivate it",
	},
	"get_fulfillment_orders": {
		"what's left to ship on order 1042",
		"show fulfillment status for order #1042",
	},
	"create_fulfillment": {
		"mark order 1042 as shipped with tracking 1Z999",
		"fulfill this order via UPS",
	},
	"create_refund": {
		"refund the hoodie on order 1042",
		"give the customer their money back for two items",
	},
	"get_payouts": {
		"when is the next payout",
		"show recent payouts",
	},
	"get_disputes": {
		"any open chargebacks",
		"list payment disputes",
	},
	"capture_order_payment": {
		"capture the payment on order 1042",
		"charge the authorized amount for this order",
	},
	"order_edit_begin": {
		"I need to change the items on order 1042",
		"start editing order #1042",
	},
	"order_edit_set_quantity": {
		"change the hoodie quantity to 2 on this order edit",
		"remove one unit of the hoodie from the order",
	},
	"order_edit_commit": {
		"apply the order changes and notify the customer",
		"commit the order edit",
	},
}

// Seeder bootstraps the retrieval corpus by embedding and storing the
// seed queries. Idempotent: re-running bumps usage counts but never
// duplicates rows.
type Seeder struct {
	embedder domain.EmbeddingProvider
	examples ExampleStore
	logger   *slog.Logger
}

// NewSeeder creates a corpus seeder.
func NewSeeder(embedder domain.EmbeddingProvider, examples ExampleStore, logger *slog.Logger) *Seeder {
	return &Seeder{embedder: embedder, examples: examples, logger: logger}
}

// Seed embeds the full seed corpus in one batch and upserts every
// entry. Returns the number of examples written.
func (s *Seeder) Seed(ctx context.Context) (int, error) {
	var texts []string
	var entries []domain.ToolExample
	for _, tool := range catalog.All() {
		for _, q := range seedQueries[tool.Name] {
			texts = append(texts, q)
			entries = append(entries, domain.ToolExample{
				ToolName: tool.Name,
				Domain:   tool.Domain,
				Query:    q,
			})
		}
	}

	vecs, err := s.embedder.Embed(ctx, texts)
	if err != nil {
		return 0, fmt.Errorf("seed: %w", err)
	}
	if len(vecs) != len(entries) {
		return 0, fmt.Errorf("seed: %w: got %d vectors for %d queries",
			domain.ErrEmbeddingFailed, len(vecs), len(entries))
	}

	for i := range entries {
		entries[i].Embedding = vecs[i]
		if err := s.examples.Upsert(ctx, entries[i]); err != nil {
			return i, fmt.Errorf("seed: upsert %s: %w", entries[i].ToolName, err)
		}
	}

	s.logger.Info("seed corpus loaded", "examples", len(entries))
	return len(entries), nil
}

// seedEntry is the per-tool shape of an operator-provided seed file.
type seedEntry struct {
	Domain  string   `yaml:"domain"`
	Queries []string `yaml:"queries"`
}

// LoadSeedFile parses a YAML seed corpus mapping tool names to example
// queries. Every tool and domain is validated against the catalog
// before anything is returned, so a bad file never writes a row.
func LoadSeedFile(path string) ([]domain.ToolExample, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("seed file: %w", err)
	}

	var file map[string]seedEntry
	if err := yaml.Unmarshal(raw, &file); err != nil {
		return nil, fmt.Errorf("seed file %s: %w", path, err)
	}

	names := make([]string, 0, len(file))
	for name := range file {
		names = append(names, name)
	}
	sort.Strings(names)

	var entries []domain.ToolExample
	for _, name := range names {
		tool, ok := catalog.ByName(name)
		if !ok {
			return nil, fmt.Errorf("seed file: unknown tool %q: %w", name, domain.ErrInvalidInput)
		}
		entry := file[name]
		dom := entry.Domain
		if dom == "" {
			dom = tool.Domain
		}
		if !catalog.KnownDomain(dom) {
			return nil, fmt.Errorf("seed file: tool %q: unknown domain %q: %w", name, dom, domain.ErrInvalidInput)
		}
		for _, q := range entry.Queries {
			if q == "" {
				return nil, fmt.Errorf("seed file: tool %q has an empty query: %w", name, domain.ErrInvalidInput)
			}
			entries = append(entries, domain.ToolExample{ToolName: name, Domain: dom, Query: q})
		}
	}
	return entries, nil
}

// SeedFile loads an operator-provided corpus and inserts the examples
// not already present. Existing (tool, query) pairs are skipped rather
// than bumped, so a seed file can be re-applied freely.
func (s *Seeder) SeedFile(ctx context.Context, path string) (inserted, skipped int, err error) {
	entries, err := LoadSeedFile(path)
	if err != nil {
		return 0, 0, err
	}

	var missing []domain.ToolExample
	var texts []string
	for _, e := range entries {
		_, err := s.examples.Find(ctx, e.ToolName, e.Query)
		switch {
		case err == nil:
			skipped++
		case errors.Is(err, domain.ErrNotFound):
			missing = append(missing, e)
			texts = append(texts, e.Query)
		default:
			return 0, skipped, fmt.Errorf("seed: %w", err)
		}
	}
	if len(missing) == 0 {
		s.logger.Info("seed file already applied", "file", path, "skipped", skipped)
		return 0, skipped, nil
	}

	vecs, err := s.embedder.Embed(ctx, texts)
	if err != nil {
		return 0, skipped, fmt.Errorf("seed: %w", err)
	}
	if len(vecs) != len(missing) {
		return 0, skipped, fmt.Errorf("seed: %w: got %d vectors for %d queries",
			domain.ErrEmbeddingFailed, len(vecs), len(missing))
	}

	for i := range missing {
		missing[i].Embedding = vecs[i]
		if err := s.examples.Upsert(ctx, missing[i]); err != nil {
			return inserted, skipped, fmt.Errorf("seed: upsert %s: %w", missing[i].ToolName, err)
		}
		inserted++
	}

	s.logger.Info("seed file applied", "file", path, "inserted", inserted, "skipped", skipped)
	return inserted, skipped, nil
}
