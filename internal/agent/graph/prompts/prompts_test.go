package prompts

import (
	"context"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/lookwise/insight-agent/internal/agent/model"
)

func TestRenderIntentInterpolatesQuery(t *testing.T) {
	out, err := RenderIntent(context.Background(), "who are my best customers?")
	require.NoError(t, err)
	require.Contains(t, out, "who are my best customers?")
	for _, at := range model.AllAnalysisTypes() {
		require.Contains(t, out, string(at))
	}
}

func TestRenderSQLGeneration(t *testing.T) {
	schemaCtx := SchemaContextString(model.SchemaContext{
		"orders": {{Name: "order_id", Type: "UInt64"}},
	})

	out, err := RenderSQLGeneration(context.Background(), schemaCtx, "recent orders", model.SalesTrends)
	require.NoError(t, err)
	require.Contains(t, out, "order_id")
	require.Contains(t, out, "recent orders")
	require.Contains(t, out, "sales_trends")
}

func TestRenderErrorRecoveryCarriesFailure(t *testing.T) {
	out, err := RenderErrorRecovery(context.Background(),
		"Query execution error: unknown column foo",
		"SELECT foo FROM orders",
		"show orders")
	require.NoError(t, err)
	require.Contains(t, out, "unknown column foo")
	require.Contains(t, out, "SELECT foo FROM orders")
	require.Contains(t, out, "show orders")
}

func TestSchemaContextStringOrdering(t *testing.T) {
	sc := model.SchemaContext{
		"users":    {{Name: "id", Type: "UInt64"}},
		"archived": {{Name: "id", Type: "UInt64"}},
		"orders":   {{Name: "order_id", Type: "UInt64", Description: "primary key"}},
	}

	out := SchemaContextString(sc)

	ordersIdx := strings.Index(out, "Table: orders")
	usersIdx := strings.Index(out, "Table: users")
	archivedIdx := strings.Index(out, "Table: archived")
	require.GreaterOrEqual(t, ordersIdx, 0)
	require.Less(t, ordersIdx, usersIdx, "known tables keep their fixed order")
	require.Less(t, usersIdx, archivedIdx, "unknown tables come last")
	require.Contains(t, out, "order_id (UInt64): primary key")
}

func TestFormatResultsForPromptEmpty(t *testing.T) {
	require.Equal(t, "No data returned", FormatResultsForPrompt(nil, MaxPromptRows))
	require.Equal(t, "No data returned", FormatResultsForPrompt(&model.QueryResults{Columns: []string{"n"}}, MaxPromptRows))
}

func TestFormatResultsForPromptSmallTable(t *testing.T) {
	results := &model.QueryResults{
		Columns: []string{"category", "n"},
		Rows:    [][]any{{"Jeans", 42}, {"Tops", 17}},
	}

	out := FormatResultsForPrompt(results, MaxPromptRows)

	require.Contains(t, out, "Shape: 2 rows x 2 columns")
	require.Contains(t, out, "Columns: category, n")
	require.Contains(t, out, "Jeans")
	require.Contains(t, out, "42")
	require.NotContains(t, out, "Showing first")
	require.NotContains(t, out, "more rows")
}

func TestFormatResultsForPromptTruncates(t *testing.T) {
	results := &model.QueryResults{Columns: []string{"n"}}
	for i := 0; i < 25; i++ {
		results.Rows = append(results.Rows, []any{fmt.Sprintf("row-%02d", i)})
	}

	out := FormatResultsForPrompt(results, MaxPromptRows)

	require.Contains(t, out, "Shape: 25 rows x 1 columns")
	require.Contains(t, out, "Showing first 20 rows:")
	require.Contains(t, out, "row-19")
	require.NotContains(t, out, "row-20")
	require.Contains(t, out, "... (5 more rows)")
}
