package warehouse

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/lookwise/insight-agent/internal/agent/model"
)

type fakeDescriber struct {
	fields map[string][]model.FieldDescriptor
	errs   map[string]error
	calls  map[string]int
}

func newFakeDescriber() *fakeDescriber {
	return &fakeDescriber{
		fields: map[string][]model.FieldDescriptor{},
		errs:   map[string]error{},
		calls:  map[string]int{},
	}
}

func (f *fakeDescriber) DescribeTable(_ context.Context, table string) ([]model.FieldDescriptor, error) {
	f.calls[table]++
	if err := f.errs[table]; err != nil {
		return nil, err
	}
	return f.fields[table], nil
}

type memoryCache struct {
	entries map[string][]model.FieldDescriptor
	getErr  error
}

func (m *memoryCache) GetTable(_ context.Context, table string) ([]model.FieldDescriptor, bool, error) {
	if m.getErr != nil {
		return nil, false, m.getErr
	}
	fields, ok := m.entries[table]
	return fields, ok, nil
}

func (m *memoryCache) PutTable(_ context.Context, table string, fields []model.FieldDescriptor) error {
	m.entries[table] = fields
	return nil
}

func TestDescribeAllCoversEveryTable(t *testing.T) {
	describer := newFakeDescriber()
	for _, table := range model.WarehouseTables {
		describer.fields[table] = []model.FieldDescriptor{{Name: "id", Type: "UInt64"}}
	}

	schemas, err := NewCatalog(describer, nil).DescribeAll(context.Background())
	require.NoError(t, err)
	require.Len(t, schemas, len(model.WarehouseTables))
	for _, table := range model.WarehouseTables {
		require.Len(t, schemas[table], 1)
	}
}

func TestDescribeAllDegradesBrokenTable(t *testing.T) {
	describer := newFakeDescriber()
	for _, table := range model.WarehouseTables {
		describer.fields[table] = []model.FieldDescriptor{{Name: "id", Type: "UInt64"}}
	}
	describer.errs["products"] = errors.New("table is broken")

	schemas, err := NewCatalog(describer, nil).DescribeAll(context.Background())
	require.NoError(t, err)
	require.Len(t, schemas, len(model.WarehouseTables))
	require.Empty(t, schemas["products"])
	require.Len(t, schemas["orders"], 1)
}

func TestDescribeAllUsesCache(t *testing.T) {
	describer := newFakeDescriber()
	for _, table := range model.WarehouseTables {
		describer.fields[table] = []model.FieldDescriptor{{Name: "id", Type: "UInt64"}}
	}
	cache := &memoryCache{entries: map[string][]model.FieldDescriptor{}}
	catalog := NewCatalog(describer, cache)

	_, err := catalog.DescribeAll(context.Background())
	require.NoError(t, err)

	// Second pass is served entirely from the cache.
	_, err = catalog.DescribeAll(context.Background())
	require.NoError(t, err)
	for _, table := range model.WarehouseTables {
		require.Equal(t, 1, describer.calls[table])
	}
}

func TestDescribeAllIgnoresCacheFailures(t *testing.T) {
	describer := newFakeDescriber()
	for _, table := range model.WarehouseTables {
		describer.fields[table] = []model.FieldDescriptor{{Name: "id", Type: "UInt64"}}
	}
	cache := &memoryCache{entries: map[string][]model.FieldDescriptor{}, getErr: errors.New("redis down")}

	schemas, err := NewCatalog(describer, cache).DescribeAll(context.Background())
	require.NoError(t, err)
	require.Len(t, schemas, len(model.WarehouseTables))
}
