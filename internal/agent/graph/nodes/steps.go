package nodes

import (
	"context"
	"fmt"

	"github.com/cloudwego/eino/schema"

	"github.com/lookwise/insight-agent/internal/agent/graph/prompts"
	"github.com/lookwise/insight-agent/internal/agent/model"
	"github.com/lookwise/insight-agent/internal/agent/warehouse"
	logx "github.com/lookwise/insight-agent/pkg/logger"
)

// NoDataInsight is the fixed insight used when a query succeeds with no rows.
const NoDataInsight = "No data was returned from the query. The requested analysis could not be completed."

// Steps implements the five workflow steps. Each step reads the current state
// and returns a partial StateUpdate; it never mutates the state directly and
// never returns an error past its own boundary, so the engine always reaches
// the respond step with a well-formed state.
type Steps struct {
	Generator model.Generator
	Executor  model.QueryExecutor
	Catalog   model.SchemaCatalog
}

// ClassifyIntent determines the analysis type for the user query. Output
// outside the closed set falls back to GeneralQuery; a backend failure also
// defaults the type and records a diagnostic error.
func (s *Steps) ClassifyIntent(ctx context.Context, st *model.WorkflowState) model.StateUpdate {
	logx.Debug().Str("step", NodeClassifyIntent).Msg("Determining user intent")

	prompt, err := prompts.RenderIntent(ctx, st.UserQuery)
	if err == nil {
		var raw string
		raw, err = s.Generator.Invoke(ctx, prompt)
		if err == nil {
			analysisType, known := model.ParseAnalysisType(raw)
			if !known {
				logx.Warn().Str("raw", raw).Msg("Invalid analysis type, defaulting to general_query")
			}
			logx.Debug().Str("analysis_type", string(analysisType)).Msg("Determined analysis type")
			return model.StateUpdate{
				AnalysisType:    analysisType,
				SetAnalysisType: true,
				SetError:        true,
			}
		}
	}

	logx.Error().Err(err).Msg("Intent classification failed")
	return model.StateUpdate{
		AnalysisType:    model.GeneralQuery,
		SetAnalysisType: true,
		Error:           fmt.Sprintf("Intent analysis error: %v", err),
		SetError:        true,
	}
}

// GenerateSQL produces a candidate statement. It fetches and caches the
// schema context on first entry and switches to the recovery prompt when the
// state carries both a prior statement and an error from its attempt. The
// result is fence-stripped and run through the lexical validator; invalid
// text is kept on the state for visibility but flagged as an error.
func (s *Steps) GenerateSQL(ctx context.Context, st *model.WorkflowState) model.StateUpdate {
	logx.Debug().Str("step", NodeGenerateSQL).Msg("Creating warehouse SQL")

	schemaContext := st.SchemaContext
	fetched := false
	if schemaContext == nil {
		var err error
		schemaContext, err = s.Catalog.DescribeAll(ctx)
		if err != nil {
			logx.Error().Err(err).Msg("Failed to fetch schemas")
			return model.StateUpdate{
				Error:       fmt.Sprintf("Schema retrieval error: %v", err),
				SetError:    true,
				SetSQLQuery: true,
			}
		}
		fetched = true
	}

	// Schema context is fetched once per query and reused across retries.
	withSchema := func(u model.StateUpdate) model.StateUpdate {
		if fetched {
			u.SchemaContext = schemaContext
			u.SetSchemaContext = true
		}
		return u
	}

	var prompt string
	var err error
	if st.SQLQuery != "" && st.Error != "" {
		logx.Debug().Str("error", st.Error).Msg("Attempting SQL error recovery")
		prompt, err = prompts.RenderErrorRecovery(ctx, st.Error, st.SQLQuery, st.UserQuery)
	} else {
		prompt, err = prompts.RenderSQLGeneration(ctx, prompts.SchemaContextString(schemaContext), st.UserQuery, st.AnalysisType)
	}

	var raw string
	if err == nil {
		raw, err = s.Generator.Invoke(ctx, prompt)
	}
	if err != nil {
		logx.Error().Err(err).Msg("SQL generation failed")
		return withSchema(model.StateUpdate{
			Error:       fmt.Sprintf("SQL generation error: %v", err),
			SetError:    true,
			SetSQLQuery: true,
		})
	}

	sqlQuery := warehouse.StripSQLFence(raw)

	if valid, reason := warehouse.ValidateSQL(sqlQuery); !valid {
		logx.Error().Str("reason", reason).Msg("SQL validation failed")
		return withSchema(model.StateUpdate{
			Error:       "Invalid SQL: " + reason,
			SetError:    true,
			SQLQuery:    sqlQuery,
			SetSQLQuery: true,
		})
	}

	logx.Debug().Str("sql", truncate(sqlQuery, 100)).Msg("Generated SQL query")
	return withSchema(model.StateUpdate{
		SQLQuery:    sqlQuery,
		SetSQLQuery: true,
		SetError:    true,
	})
}

// ExecuteQuery runs the candidate statement against the warehouse. A missing
// statement is an error without a retry increment; a statement that failed
// validation is never sent to the warehouse but counts as a failed attempt so
// the regeneration loop stays bounded.
func (s *Steps) ExecuteQuery(ctx context.Context, st *model.WorkflowState) model.StateUpdate {
	logx.Debug().Str("step", NodeExecuteQuery).Msg("Running warehouse query")

	if st.SQLQuery == "" {
		return model.StateUpdate{
			Error:           "No SQL query to execute",
			SetError:        true,
			SetQueryResults: true,
		}
	}

	if st.Error != "" {
		// Validation rejected the statement upstream; skip the warehouse call
		// and treat it like an execution failure for routing purposes.
		logx.Debug().Str("error", st.Error).Msg("Skipping execution of invalid SQL")
		return model.StateUpdate{
			SetQueryResults: true,
			RetryCount:      st.RetryCount + 1,
			SetRetryCount:   true,
		}
	}

	results, err := s.Executor.Execute(ctx, st.SQLQuery)
	if err != nil {
		logx.Error().Err(err).Msg("Query execution failed")
		return model.StateUpdate{
			Error:           fmt.Sprintf("Query execution error: %v", err),
			SetError:        true,
			SetQueryResults: true,
			RetryCount:      st.RetryCount + 1,
			SetRetryCount:   true,
		}
	}

	logx.Debug().Int("rows", results.RowCount()).Msg("Query executed successfully")
	return model.StateUpdate{
		QueryResults:    results,
		SetQueryResults: true,
		SetError:        true,
		SetRetryCount:   true,
	}
}

// AnalyzeResults turns query results into narrative insights. Zero rows
// short-circuit to a fixed no-data insight; a backend failure substitutes a
// templated insight naming the row count and columns, the one place insights
// and an error coexist.
func (s *Steps) AnalyzeResults(ctx context.Context, st *model.WorkflowState) model.StateUpdate {
	logx.Debug().Str("step", NodeAnalyzeResults).Msg("Generating insights")

	if st.QueryResults.Empty() {
		return model.StateUpdate{
			Insights:    NoDataInsight,
			SetInsights: true,
			SetError:    true,
		}
	}

	prompt, err := prompts.RenderInsight(ctx, st.UserQuery, st.AnalysisType, st.SQLQuery, st.QueryResults)
	var insights string
	if err == nil {
		insights, err = s.Generator.Invoke(ctx, prompt)
	}
	if err != nil {
		logx.Error().Err(err).Msg("Insight generation failed")
		return model.StateUpdate{
			Insights:    fallbackInsights(st.QueryResults),
			SetInsights: true,
			Error:       fmt.Sprintf("Insight generation error: %v", err),
			SetError:    true,
		}
	}

	logx.Debug().Msg("Insights generated successfully")
	return model.StateUpdate{
		Insights:    insights,
		SetInsights: true,
		SetError:    true,
	}
}

// Respond composes the final user-facing message and appends it to the
// conversation. It is the terminal step and produces exactly one entry.
func (s *Steps) Respond(st *model.WorkflowState) model.StateUpdate {
	logx.Debug().Str("step", NodeRespond).Msg("Formatting final response")

	content := ComposeResponse(st.Insights, st.Error, st.QueryResults)
	return model.StateUpdate{
		Messages: []*schema.Message{schema.AssistantMessage(content, nil)},
	}
}

func fallbackInsights(results *model.QueryResults) string {
	return fmt.Sprintf(
		"Query executed successfully and returned %d rows. Columns: %s. However, detailed analysis could not be generated due to an error.",
		results.RowCount(), joinColumns(results))
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
