package nodes

import (
	"strings"

	"github.com/lookwise/insight-agent/internal/agent/model"
)

// Graph node names.
const (
	NodeClassifyIntent = "classify_intent"
	NodeGenerateSQL    = "generate_sql"
	NodeExecuteQuery   = "execute_query"
	NodeAnalyzeResults = "analyze_results"
	NodeRespond        = "respond"
)

// maxQueryRetries bounds regeneration after a failed execution: the initial
// attempt plus at most this many retries.
const maxQueryRetries = 2

// nonRetryableMarkers name failure classes a regenerated query cannot fix.
var nonRetryableMarkers = []string{
	"permission",
	"authentication",
	"credentials",
	"quota",
}

// RouteAfterExecution picks the next node once execution has run. Retryable
// failures loop back to SQL generation, results flow to analysis, and
// anything else falls through to the response step.
func RouteAfterExecution(st *model.WorkflowState) string {
	if st.Error != "" && ShouldRetryQuery(st.Error, st.RetryCount) {
		return NodeGenerateSQL
	}
	if st.QueryResults != nil {
		return NodeAnalyzeResults
	}
	if st.Error != "" {
		return NodeRespond
	}
	// Unreachable with the current steps: execution always leaves either
	// results or an error behind.
	return NodeAnalyzeResults
}

// ShouldRetryQuery reports whether a failed execution should be regenerated.
// The error text is matched case-insensitively against the non-retryable
// markers; a single match vetoes the retry regardless of the remaining budget.
func ShouldRetryQuery(errText string, retryCount int) bool {
	if errText == "" || retryCount > maxQueryRetries {
		return false
	}
	lower := strings.ToLower(errText)
	for _, marker := range nonRetryableMarkers {
		if strings.Contains(lower, marker) {
			return false
		}
	}
	return true
}
