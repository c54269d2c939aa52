// Package catalog holds the static tool registry: every tool the
// assistant can invoke, its JSON Schema input contract, its domain tag,
// and whether execution requires human confirmation. Pure data, no
// logic beyond lookups.
package catalog

import "github.com/storechat/admin-agent/internal/domain"

// Domains enumerates the tool domains used for retrieval filtering.
var Domains = []string{
	"analytics",
	"orders",
	"customers",
	"products",
	"inventory",
	"collections",
	"discounts",
	"gift_cards",
	"fulfillment",
	"finance",
	"order_editing",
}

// DomainDescription is one (domain, description) pair for the
// classifier prompt. Order matters: it is the prompt order.
type DomainDescription struct {
	Domain      string
	Description string
}

// DomainDescriptions feed the classifier's system prompt.
var DomainDescriptions = []DomainDescription{
	{"analytics", "Business analytics: sales summaries, revenue trends, top products, customer insights, inventory reports"},
	{"orders", "Order management: viewing, searching, updating, canceling, refunding orders"},
	{"customers", "Customer management: profiles, addresses, marketing, segments, merging"},
	{"products", "Product catalog: products, variants, pricing, media, publishing"},
	{"inventory", "Inventory tracking: stock levels, adjustments, transfers between locations"},
	{"collections", "Collection management: smart/manual collections, product organization"},
	{"discounts", "Promotions: discount codes, automatic discounts, bulk operations"},
	{"gift_cards", "Gift card operations: issuing, crediting, debiting, notifications"},
	{"fulfillment", "Shipping: fulfillment orders, tracking, holds, returns"},
	{"finance", "Financial: payouts, disputes, bank accounts, payment capture"},
	{"order_editing", "Order modifications: adding/removing items, adjusting quantities, editing"},
}

var domainSet = func() map[string]bool {
	m := make(map[string]bool, len(Domains))
	for _, d := range Domains {
		m[d] = true
	}
	return m
}()

// KnownDomain reports whether name is a valid tool domain.
func KnownDomain(name string) bool { return domainSet[name] }

var byName = func() map[string]domain.ToolDefinition {
	m := make(map[string]domain.ToolDefinition, len(tools))
	for _, t := range tools {
		m[t.Name] = t
	}
	return m
}()

// All returns every tool definition in catalog order.
func All() []domain.ToolDefinition {
	out := make([]domain.ToolDefinition, len(tools))
	copy(out, tools)
	return out
}

// ByName returns the definition for a tool name.
func ByName(name string) (domain.ToolDefinition, bool) {
	t, ok := byName[name]
	return t, ok
}

// ByDomain returns all tools tagged with the given domain.
func ByDomain(dom string) []domain.ToolDefinition {
	var out []domain.ToolDefinition
	for _, t := range tools {
		if t.Domain == dom {
			out = append(out, t)
		}
	}
	return out
}

// FilterByNames resolves names to definitions, preserving the input
// order and silently dropping unknown names.
func FilterByNames(names []string) []domain.ToolDefinition {
	out := make([]domain.ToolDefinition, 0, len(names))
	for _, n := range names {
		if t, ok := byName[n]; ok {
			out = append(out, t)
		}
	}
	return out
}

// RequiresConfirmation reports whether the named tool is a write
// operation gated on human approval. Unknown tools report false.
func RequiresConfirmation(name string) bool {
	t, ok := byName[name]
	return ok && t.RequiresConfirmation
}

// DomainOf returns the domain tag for a tool name, or "" if unknown.
func DomainOf(name string) string {
	if t, ok := byName[name]; ok {
		return t.Domain
	}
	return ""
}
