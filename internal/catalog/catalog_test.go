package catalog

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCatalogIntegrity(t *testing.T) {
	seen := map[string]bool{}
	for _, tool := range All() {
		assert.False(t, seen[tool.Name], "duplicate tool %s", tool.Name)
		seen[tool.Name] = true
		assert.True(t, KnownDomain(tool.Domain), "tool %s has unknown domain %s", tool.Name, tool.Domain)
		assert.NotEmpty(t, tool.Description, "tool %s missing description", tool.Name)

		var s map[string]any
		require.NoError(t, json.Unmarshal(tool.InputSchema, &s), "tool %s schema is not valid JSON", tool.Name)
		assert.Equal(t, "object", s["type"], "tool %s schema root must be an object", tool.Name)
	}
}

func TestWriteToolsRequireConfirmation(t *testing.T) {
	writes := []string{
		"cancel_order", "update_order_note", "mark_order_as_paid",
		"delete_customer", "add_customer_tags",
		"update_product", "delete_product",
		"adjust_inventory",
		"add_products_to_collection", "delete_collection",
		"activate_discount", "deactivate_discount",
		"credit_gift_card", "deactivate_gift_card",
		"create_fulfillment", "create_refund",
		"capture_order_payment",
		"order_edit_set_quantity", "order_edit_commit",
	}
	for _, name := range writes {
		_, ok := ByName(name)
		require.True(t, ok, "missing tool %s", name)
		assert.True(t, RequiresConfirmation(name), "%s must require confirmation", name)
	}

	reads := []string{"get_order", "get_orders", "get_customers", "get_sales_summary", "order_edit_begin"}
	for _, name := range reads {
		assert.False(t, RequiresConfirmation(name), "%s must not require confirmation", name)
	}
}

func TestFilterByNames(t *testing.T) {
	got := FilterByNames([]string{"get_orders", "no_such_tool", "get_order"})
	require.Len(t, got, 2)
	assert.Equal(t, "get_orders", got[0].Name)
	assert.Equal(t, "get_order", got[1].Name)
}

func TestByDomain(t *testing.T) {
	for _, d := range Domains {
		assert.NotEmpty(t, ByDomain(d), "domain %s has no tools", d)
	}
	assert.Empty(t, ByDomain("nonexistent"))
}

func TestDomainDescriptionsCoverAllDomains(t *testing.T) {
	require.Len(t, DomainDescriptions, len(Domains))
	for i, dd := range DomainDescriptions {
		assert.Equal(t, Domains[i], dd.Domain)
		assert.NotEmpty(t, dd.Description)
	}
}

func TestDomainOf(t *testing.T) {
	assert.Equal(t, "orders", DomainOf("cancel_order"))
	assert.Equal(t, "", DomainOf("no_such_tool"))
}
