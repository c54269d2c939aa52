package catalog

import (
	"encoding/json"

	"github.com/storechat/admin-agent/internal/domain"
)

func schema(s string) json.RawMessage { return json.RawMessage(s) }

// tools is the full catalog. Read operations execute immediately; tools
// with RequiresConfirmation are write operations routed through the
// confirmation queue.
var tools = []domain.ToolDefinition{
	// Analytics (high level, preferred for business questions).
	{
		Name:        "get_sales_summary",
		Description: "Aggregate sales figures (revenue, order count, average order value) for a date range.",
		Domain:      "analytics",
		InputSchema: schema(`{"type":"object","properties":{"start_date":{"type":"string","description":"ISO date, inclusive"},"end_date":{"type":"string","description":"ISO date, inclusive"}},"required":["start_date","end_date"]}`),
	},
	{
		Name:        "get_order_summary",
		Description: "Counts of orders by financial and fulfillment status for a date range.",
		Domain:      "analytics",
		InputSchema: schema(`{"type":"object","properties":{"start_date":{"type":"string"},"end_date":{"type":"string"}},"required":["start_date","end_date"]}`),
	},
	{
		Name:        "get_top_customers",
		Description: "Customers ranked by total spend.",
		Domain:      "analytics",
		InputSchema: schema(`{"type":"object","properties":{"limit":{"type":"integer","minimum":1,"maximum":50}}}`),
	},

	// Orders.
	{
		Name:        "get_order",
		Description: "Fetch a single order by id with status, totals and line item count.",
		Domain:      "orders",
		InputSchema: schema(`{"type":"object","properties":{"id":{"type":"string"}},"required":["id"]}`),
	},
	{
		Name:        "get_orders",
		Description: "List recent orders, optionally filtered by a search query.",
		Domain:      "orders",
		InputSchema: schema(`{"type":"object","properties":{"limit":{"type":"integer","minimum":1,"maximum":50},"query":{"type":"string"}}}`),
	},
	{
		Name:                 "update_order_note",
		Description:          "Replace the staff note on an order.",
		Domain:               "orders",
		RequiresConfirmation: true,
		InputSchema:          schema(`{"type":"object","properties":{"id":{"type":"string"},"note":{"type":"string"}},"required":["id"]}`),
	},
	{
		Name:                 "cancel_order",
		Description:          "Cancel an order, optionally refunding and restocking.",
		Domain:               "orders",
		RequiresConfirmation: true,
		InputSchema:          schema(`{"type":"object","properties":{"id":{"type":"string"},"reason":{"type":"string","enum":["customer","declined","fraud","inventory","other"]},"refund":{"type":"boolean"},"restock":{"type":"boolean"},"notify_customer":{"type":"boolean"}},"required":["id"]}`),
	},
	{
		Name:                 "mark_order_as_paid",
		Description:          "Mark a pending-payment order as paid.",
		Domain:               "orders",
		RequiresConfirmation: true,
		InputSchema:          schema(`{"type":"object","properties":{"id":{"type":"string"}},"required":["id"]}`),
	},

	// Customers.
	{
		Name:        "get_customer",
		Description: "Fetch a single customer by id with order count and total spend.",
		Domain:      "customers",
		InputSchema: schema(`{"type":"object","properties":{"id":{"type":"string"}},"required":["id"]}`),
	},
	{
		Name:        "get_customers",
		Description: "List customers, optionally filtered by a search query.",
		Domain:      "customers",
		InputSchema: schema(`{"type":"object","properties":{"limit":{"type":"integer","minimum":1,"maximum":50},"query":{"type":"string"}}}`),
	},
	{
		Name:                 "add_customer_tags",
		Description:          "Add tags to a customer profile.",
		Domain:               "customers",
		RequiresConfirmation: true,
		InputSchema:          schema(`{"type":"object","properties":{"id":{"type":"string"},"tags":{"type":"array","items":{"type":"string"},"minItems":1}},"required":["id","tags"]}`),
	},
	{
		Name:                 "delete_customer",
		Description:          "Permanently delete a customer with no orders.",
		Domain:               "customers",
		RequiresConfirmation: true,
		InputSchema:          schema(`{"type":"object","properties":{"id":{"type":"string"}},"required":["id"]}`),
	},

	// Products.
	{
		Name:        "get_product",
		Description: "Fetch a single product by id with status, vendor and inventory.",
		Domain:      "products",
		InputSchema: schema(`{"type":"object","properties":{"id":{"type":"string"}},"required":["id"]}`),
	},
	{
		Name:        "get_products",
		Description: "List products, optionally filtered by a search query.",
		Domain:      "products",
		InputSchema: schema(`{"type":"object","properties":{"limit":{"type":"integer","minimum":1,"maximum":50},"query":{"type":"string"}}}`),
	},
	{
		Name:                 "update_product",
		Description:          "Update a product's title, status or vendor.",
		Domain:               "products",
		RequiresConfirmation: true,
		InputSchema:          schema(`{"type":"object","properties":{"id":{"type":"string"},"title":{"type":"string"},"status":{"type":"string","enum":["active","draft","archived"]},"vendor":{"type":"string"}},"required":["id"]}`),
	},
	{
		Name:                 "delete_product",
		Description:          "Permanently delete a product and its variants.",
		Domain:               "products",
		RequiresConfirmation: true,
		InputSchema:          schema(`{"type":"object","properties":{"id":{"type":"string"}},"required":["id"]}`),
	},

	// Inventory.
	{
		Name:        "get_inventory_levels",
		Description: "Stock levels at a location.",
		Domain:      "inventory",
		InputSchema: schema(`{"type":"object","properties":{"location_id":{"type":"string"},"limit":{"type":"integer","minimum":1,"maximum":50}}}`),
	},
	{
		Name:        "get_locations",
		Description: "List stock locations.",
		Domain:      "inventory",
		InputSchema: schema(`{"type":"object","properties":{}}`),
	},
	{
		Name:                 "adjust_inventory",
		Description:          "Adjust available quantity of an inventory item at a location by a delta.",
		Domain:               "inventory",
		RequiresConfirmation: true,
		InputSchema:          schema(`{"type":"object","properties":{"inventory_item_id":{"type":"string"},"location_id":{"type":"string"},"delta":{"type":"integer"}},"required":["inventory_item_id","location_id","delta"]}`),
	},

	// Collections.
	{
		Name:        "get_collections",
		Description: "List collections, optionally filtered by a search query.",
		Domain:      "collections",
		InputSchema: schema(`{"type":"object","properties":{"limit":{"type":"integer","minimum":1,"maximum":50},"query":{"type":"string"}}}`),
	},
	{
		Name:                 "add_products_to_collection",
		Description:          "Add products to a manual collection.",
		Domain:               "collections",
		RequiresConfirmation: true,
		InputSchema:          schema(`{"type":"object","properties":{"id":{"type":"string"},"product_ids":{"type":"array","items":{"type":"string"},"minItems":1}},"required":["id","product_ids"]}`),
	},
	{
		Name:                 "delete_collection",
		Description:          "Delete a collection. Products remain.",
		Domain:               "collections",
		RequiresConfirmation: true,
		InputSchema:          schema(`{"type":"object","properties":{"id":{"type":"string"}},"required":["id"]}`),
	},

	// Discounts.
	{
		Name:        "get_discounts",
		Description: "List discounts, optionally filtered by a search query.",
		Domain:      "discounts",
		InputSchema: schema(`{"type":"object","properties":{"limit":{"type":"integer","minimum":1,"maximum":50},"query":{"type":"string"}}}`),
	},
	{
		Name:                 "activate_discount",
		Description:          "Activate a code discount.",
		Domain:               "discounts",
		RequiresConfirmation: true,
		InputSchema:          schema(`{"type":"object","properties":{"id":{"type":"string"}},"required":["id"]}`),
	},
	{
		Name:                 "deactivate_discount",
		Description:          "Deactivate a code discount.",
		Domain:               "discounts",
		RequiresConfirmation: true,
		InputSchema:          schema(`{"type":"object","properties":{"id":{"type":"string"}},"required":["id"]}`),
	},

	// Gift cards.
	{
		Name:        "get_gift_cards",
		Description: "List gift cards, optionally filtered by a search query.",
		Domain:      "gift_cards",
		InputSchema: schema(`{"type":"object","properties":{"limit":{"type":"integer","minimum":1,"maximum":50},"query":{"type":"string"}}}`),
	},
	{
		Name:                 "credit_gift_card",
		Description:          "Credit an amount to a gift card balance.",
		Domain:               "gift_cards",
		RequiresConfirmation: true,
		InputSchema:          schema(`{"type":"object","properties":{"id":{"type":"string"},"amount":{"type":"string","description":"decimal amount"},"note":{"type":"string"}},"required":["id","amount"]}`),
	},
	{
		Name:                 "deactivate_gift_card",
		Description:          "Deactivate a gift card so it can no longer be redeemed.",
		Domain:               "gift_cards",
		RequiresConfirmation: true,
		InputSchema:          schema(`{"type":"object","properties":{"id":{"type":"string"}},"required":["id"]}`),
	},

	// Fulfillment.
	{
		Name:        "get_fulfillment_orders",
		Description: "List fulfillment orders for an order.",
		Domain:      "fulfillment",
		InputSchema: schema(`{"type":"object","properties":{"order_id":{"type":"string"}},"required":["order_id"]}`),
	},
	{
		Name:                 "create_fulfillment",
		Description:          "Fulfill a fulfillment order, optionally with tracking info.",
		Domain:               "fulfillment",
		RequiresConfirmation: true,
		InputSchema:          schema(`{"type":"object","properties":{"fulfillment_order_id":{"type":"string"},"tracking_number":{"type":"string"},"tracking_company":{"type":"string"},"notify_customer":{"type":"boolean"}},"required":["fulfillment_order_id"]}`),
	},
	{
		Name:                 "create_refund",
		Description:          "Refund line items on an order.",
		Domain:               "fulfillment",
		RequiresConfirmation: true,
		InputSchema:          schema(`{"type":"object","properties":{"order_id":{"type":"string"},"line_items":{"type":"array","items":{"type":"object","properties":{"line_item_id":{"type":"string"},"quantity":{"type":"integer","minimum":1}},"required":["line_item_id","quantity"]}},"note":{"type":"string"}},"required":["order_id","line_items"]}`),
	},

	// Finance.
	{
		Name:        "get_payouts",
		Description: "List payouts, most recent first.",
		Domain:      "finance",
		InputSchema: schema(`{"type":"object","properties":{"limit":{"type":"integer","minimum":1,"maximum":50}}}`),
	},
	{
		Name:        "get_disputes",
		Description: "List open payment disputes.",
		Domain:      "finance",
		InputSchema: schema(`{"type":"object","properties":{"limit":{"type":"integer","minimum":1,"maximum":50}}}`),
	},
	{
		Name:                 "capture_order_payment",
		Description:          "Capture an authorized payment on an order.",
		Domain:               "finance",
		RequiresConfirmation: true,
		InputSchema:          schema(`{"type":"object","properties":{"id":{"type":"string"},"parent_transaction_id":{"type":"string"},"amount":{"type":"string"}},"required":["id","parent_transaction_id","amount"]}`),
	},

	// Order editing.
	{
		Name:        "order_edit_begin",
		Description: "Open an editing session for an order and return the calculated order id.",
		Domain:      "order_editing",
		InputSchema: schema(`{"type":"object","properties":{"order_id":{"type":"string"}},"required":["order_id"]}`),
	},
	{
		Name:                 "order_edit_set_quantity",
		Description:          "Change a line item quantity within an open edit session.",
		Domain:               "order_editing",
		RequiresConfirmation: true,
		InputSchema:          schema(`{"type":"object","properties":{"calculated_order_id":{"type":"string"},"line_item_id":{"type":"string"},"quantity":{"type":"integer","minimum":0}},"required":["calculated_order_id","line_item_id","quantity"]}`),
	},
	{
		Name:                 "order_edit_commit",
		Description:          "Commit an open edit session, applying all staged changes to the order.",
		Domain:               "order_editing",
		RequiresConfirmation: true,
		InputSchema:          schema(`{"type":"object","properties":{"calculated_order_id":{"type":"string"},"notify_customer":{"type":"boolean"},"staff_note":{"type":"string"}},"required":["calculated_order_id"]}`),
	},
}
