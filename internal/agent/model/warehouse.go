package model

import "context"

// WarehouseTables is the fixed set of tables the agent queries, in the order
// schemas are presented to the generation backend.
var WarehouseTables = []string{"orders", "order_items", "products", "users"}

// FieldDescriptor describes one column of a warehouse table.
type FieldDescriptor struct {
	Name        string `json:"name"`
	Type        string `json:"type"`
	Description string `json:"description,omitempty"`
}

// SchemaContext maps table names to their ordered field descriptors. A table
// whose schema could not be fetched degrades to an empty field list.
type SchemaContext map[string][]FieldDescriptor

// Generator is the text-generation backend contract: prompt in, text out.
// Implementations own their retry behavior; the workflow only inspects the
// returned error's message text.
type Generator interface {
	Invoke(ctx context.Context, prompt string) (string, error)
}

// QueryExecutor runs a SQL statement against the warehouse and returns
// tabular rows with named columns.
type QueryExecutor interface {
	Execute(ctx context.Context, sql string) (*QueryResults, error)
}

// SchemaCatalog fetches schemas for the fixed warehouse tables.
type SchemaCatalog interface {
	DescribeAll(ctx context.Context) (SchemaContext, error)
}

// TableDescriber fetches the ordered field descriptors for a single table.
type TableDescriber interface {
	DescribeTable(ctx context.Context, table string) ([]FieldDescriptor, error)
}

// SchemaCache memoizes per-table schemas across queries. Implementations are
// best-effort: a cache failure must not block catalog fetches.
type SchemaCache interface {
	GetTable(ctx context.Context, table string) ([]FieldDescriptor, bool, error)
	PutTable(ctx context.Context, table string, fields []FieldDescriptor) error
}
