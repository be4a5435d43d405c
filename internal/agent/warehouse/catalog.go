package warehouse

import (
	"context"

	"github.com/lookwise/insight-agent/internal/agent/model"
	logx "github.com/lookwise/insight-agent/pkg/logger"
)

// Catalog fetches schemas for the fixed warehouse tables, one table at a
// time, so a single broken table degrades to an empty field list instead of
// blocking the rest. An optional cache memoizes per-table schemas across
// queries; cache failures are logged and ignored.
type Catalog struct {
	describer model.TableDescriber
	cache     model.SchemaCache
	tables    []string
}

// NewCatalog builds a catalog over the given describer. cache may be nil.
func NewCatalog(describer model.TableDescriber, cache model.SchemaCache) *Catalog {
	return &Catalog{
		describer: describer,
		cache:     cache,
		tables:    model.WarehouseTables,
	}
}

// DescribeAll fetches every table's schema independently. It never returns an
// error: a table that cannot be described is recorded with an empty field
// list and a logged warning.
func (c *Catalog) DescribeAll(ctx context.Context) (model.SchemaContext, error) {
	schemas := make(model.SchemaContext, len(c.tables))
	for _, table := range c.tables {
		fields, ok := c.fromCache(ctx, table)
		if !ok {
			var err error
			fields, err = c.describer.DescribeTable(ctx, table)
			if err != nil {
				logx.Warn().Err(err).Str("table", table).Msg("Failed to describe table, degrading to empty schema")
				schemas[table] = []model.FieldDescriptor{}
				continue
			}
			c.toCache(ctx, table, fields)
		}
		schemas[table] = fields
		logx.Debug().Str("table", table).Int("fields", len(fields)).Msg("Retrieved table schema")
	}
	return schemas, nil
}

func (c *Catalog) fromCache(ctx context.Context, table string) ([]model.FieldDescriptor, bool) {
	if c.cache == nil {
		return nil, false
	}
	fields, ok, err := c.cache.GetTable(ctx, table)
	if err != nil {
		logx.Warn().Err(err).Str("table", table).Msg("Schema cache read failed")
		return nil, false
	}
	return fields, ok
}

func (c *Catalog) toCache(ctx context.Context, table string, fields []model.FieldDescriptor) {
	if c.cache == nil {
		return
	}
	if err := c.cache.PutTable(ctx, table, fields); err != nil {
		logx.Warn().Err(err).Str("table", table).Msg("Schema cache write failed")
	}
}

var _ model.SchemaCatalog = (*Catalog)(nil)
