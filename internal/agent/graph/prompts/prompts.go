package prompts

import (
	"context"
	_ "embed"
	"fmt"
	"sort"
	"strings"

	"github.com/cloudwego/eino/components/prompt"
	"github.com/cloudwego/eino/schema"
	"github.com/olekukonko/tablewriter"

	"github.com/lookwise/insight-agent/internal/agent/model"
)

//go:embed template/intent_prompt.txt
var intentPrompt string

//go:embed template/sql_generation_prompt.txt
var sqlGenerationPrompt string

//go:embed template/insight_prompt.txt
var insightPrompt string

//go:embed template/error_recovery_prompt.txt
var errorRecoveryPrompt string

// MaxPromptRows caps how many result rows are rendered into the insight prompt.
const MaxPromptRows = 20

// render formats one embedded template via the Eino prompt component so that
// prompt callbacks fire, and returns the final prompt string.
func render(ctx context.Context, template string, vars map[string]any) (string, error) {
	tpl := prompt.FromMessages(
		schema.FString,
		schema.UserMessage(template),
	)
	msgs, err := tpl.Format(ctx, vars)
	if err != nil {
		return "", fmt.Errorf("prompt render: %w", err)
	}
	if len(msgs) == 0 || msgs[0] == nil {
		return "", fmt.Errorf("prompt render: empty result")
	}
	return msgs[0].Content, nil
}

// RenderIntent renders the intent-classification prompt for a user query.
func RenderIntent(ctx context.Context, userQuery string) (string, error) {
	return render(ctx, intentPrompt, map[string]any{
		"user_query": userQuery,
	})
}

// RenderSQLGeneration renders the normal-mode SQL generation prompt.
func RenderSQLGeneration(ctx context.Context, schemaContext string, userQuery string, analysisType model.AnalysisType) (string, error) {
	return render(ctx, sqlGenerationPrompt, map[string]any{
		"schema_context": schemaContext,
		"user_query":     userQuery,
		"analysis_type":  string(analysisType),
	})
}

// RenderErrorRecovery renders the recovery-mode SQL generation prompt carrying
// the failed statement and the execution error.
func RenderErrorRecovery(ctx context.Context, errorMessage, failedQuery, userQuery string) (string, error) {
	return render(ctx, errorRecoveryPrompt, map[string]any{
		"error_message": errorMessage,
		"failed_query":  failedQuery,
		"user_query":    userQuery,
	})
}

// RenderInsight renders the insight-generation prompt with a bounded textual
// rendering of the result table.
func RenderInsight(ctx context.Context, userQuery string, analysisType model.AnalysisType, sqlQuery string, results *model.QueryResults) (string, error) {
	return render(ctx, insightPrompt, map[string]any{
		"user_query":    userQuery,
		"analysis_type": string(analysisType),
		"sql_query":     sqlQuery,
		"query_results": FormatResultsForPrompt(results, MaxPromptRows),
	})
}

// SchemaContextString formats a schema context into the readable listing the
// generation prompts expect. Known warehouse tables come first in their fixed
// order; any extra tables follow sorted by name.
func SchemaContextString(sc model.SchemaContext) string {
	var b strings.Builder
	for _, table := range orderedTables(sc) {
		fields := sc[table]
		b.WriteString("\nTable: " + table + "\n")
		b.WriteString("Columns:\n")
		for _, f := range fields {
			b.WriteString("  - " + f.Name + " (" + f.Type + ")")
			if f.Description != "" {
				b.WriteString(": " + f.Description)
			}
			b.WriteString("\n")
		}
		b.WriteString("\n")
	}
	return b.String()
}

func orderedTables(sc model.SchemaContext) []string {
	ordered := make([]string, 0, len(sc))
	seen := make(map[string]bool, len(sc))
	for _, t := range model.WarehouseTables {
		if _, ok := sc[t]; ok {
			ordered = append(ordered, t)
			seen[t] = true
		}
	}
	var extra []string
	for t := range sc {
		if !seen[t] {
			extra = append(extra, t)
		}
	}
	sort.Strings(extra)
	return append(ordered, extra...)
}

// FormatResultsForPrompt renders results as a bounded text table with shape
// and truncation metadata. maxRows caps the rendered rows.
func FormatResultsForPrompt(results *model.QueryResults, maxRows int) string {
	if results.Empty() {
		return "No data returned"
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Shape: %d rows x %d columns\n\n", results.RowCount(), len(results.Columns))
	fmt.Fprintf(&b, "Columns: %s\n\n", strings.Join(results.Columns, ", "))

	shown := results.RowCount()
	truncated := 0
	if shown > maxRows {
		truncated = shown - maxRows
		shown = maxRows
		fmt.Fprintf(&b, "Showing first %d rows:\n", maxRows)
	}

	table := tablewriter.NewWriter(&b)
	table.SetHeader(results.Columns)
	table.SetAutoFormatHeaders(false)
	for _, row := range results.Rows[:shown] {
		cells := make([]string, len(row))
		for i, v := range row {
			cells[i] = fmt.Sprint(v)
		}
		table.Append(cells)
	}
	table.Render()

	if truncated > 0 {
		fmt.Fprintf(&b, "\n... (%d more rows)", truncated)
	}
	return b.String()
}
