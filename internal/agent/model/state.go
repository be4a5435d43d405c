package model

import (
	"strings"

	"github.com/cloudwego/eino/schema"
)

// AnalysisType is the closed classification of user intent.
type AnalysisType string

const (
	CustomerSegmentation AnalysisType = "customer_segmentation"
	ProductPerformance   AnalysisType = "product_performance"
	SalesTrends          AnalysisType = "sales_trends"
	GeographicPatterns   AnalysisType = "geographic_patterns"
	GeneralQuery         AnalysisType = "general_query"
)

// AllAnalysisTypes returns every valid analysis type.
func AllAnalysisTypes() []AnalysisType {
	return []AnalysisType{
		CustomerSegmentation,
		ProductPerformance,
		SalesTrends,
		GeographicPatterns,
		GeneralQuery,
	}
}

// ParseAnalysisType normalizes raw classifier output (trim, lowercase) and
// checks it against the closed set. Anything else, including verbose or
// malformed output, falls back to GeneralQuery.
func ParseAnalysisType(raw string) (AnalysisType, bool) {
	normalized := AnalysisType(strings.ToLower(strings.TrimSpace(raw)))
	for _, t := range AllAnalysisTypes() {
		if normalized == t {
			return t, true
		}
	}
	return GeneralQuery, false
}

// QueryResults holds tabular warehouse output: named columns and row values.
// Zero rows is a valid success, not a failure.
type QueryResults struct {
	Columns []string
	Rows    [][]any
}

// RowCount returns the number of rows, treating nil results as empty.
func (r *QueryResults) RowCount() int {
	if r == nil {
		return 0
	}
	return len(r.Rows)
}

// Empty reports whether the results carry no rows.
func (r *QueryResults) Empty() bool {
	return r.RowCount() == 0
}

// WorkflowState is the single per-query record threaded through every
// workflow step. It is registered as Eino graph local state and mutated only
// inside state handlers / ProcessState closures, which Eino serializes; one
// instance belongs to exactly one in-flight query and is never shared.
type WorkflowState struct {
	// Messages accumulates the conversation; steps append, never overwrite.
	Messages []*schema.Message
	// UserQuery is immutable after initialization.
	UserQuery string

	AnalysisType  AnalysisType
	SQLQuery      string
	QueryResults  *QueryResults
	Insights      string
	Error         string
	RetryCount    int
	SchemaContext SchemaContext
}

// StateUpdate is the partial update a step returns. Replace-fields are only
// written when their Set guard is true, so a step leaves everything it does
// not mention untouched; Messages is the one accumulate-field and always
// concatenates.
type StateUpdate struct {
	Messages []*schema.Message

	AnalysisType    AnalysisType
	SetAnalysisType bool

	SQLQuery    string
	SetSQLQuery bool

	QueryResults    *QueryResults
	SetQueryResults bool

	Insights    string
	SetInsights bool

	Error    string
	SetError bool

	RetryCount    int
	SetRetryCount bool

	SchemaContext    SchemaContext
	SetSchemaContext bool
}

// Apply merges a partial update into the state: replace-fields overwrite when
// flagged (a flagged zero value clears the field to absent), Messages append.
func (s *WorkflowState) Apply(u StateUpdate) {
	s.Messages = append(s.Messages, u.Messages...)

	if u.SetAnalysisType {
		s.AnalysisType = u.AnalysisType
	}
	if u.SetSQLQuery {
		s.SQLQuery = u.SQLQuery
	}
	if u.SetQueryResults {
		s.QueryResults = u.QueryResults
	}
	if u.SetInsights {
		s.Insights = u.Insights
	}
	if u.SetError {
		s.Error = u.Error
	}
	if u.SetRetryCount {
		s.RetryCount = u.RetryCount
	}
	if u.SetSchemaContext {
		s.SchemaContext = u.SchemaContext
	}
}

// Snapshot returns a shallow copy safe to hand to callers after the run; the
// message slice is copied so later appends cannot alias it.
func (s *WorkflowState) Snapshot() *WorkflowState {
	out := *s
	out.Messages = make([]*schema.Message, len(s.Messages))
	copy(out.Messages, s.Messages)
	return &out
}

// QueryInput represents the input for one workflow run.
type QueryInput struct {
	Query string `json:"query"`
}
