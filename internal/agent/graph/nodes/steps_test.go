package nodes

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/cloudwego/eino/schema"
	"github.com/stretchr/testify/require"

	"github.com/lookwise/insight-agent/internal/agent/model"
)

type generation struct {
	out string
	err error
}

type fakeGenerator struct {
	script  []generation
	prompts []string
}

func (f *fakeGenerator) Invoke(_ context.Context, prompt string) (string, error) {
	f.prompts = append(f.prompts, prompt)
	if len(f.script) == 0 {
		return "", errors.New("generator script exhausted")
	}
	g := f.script[0]
	f.script = f.script[1:]
	return g.out, g.err
}

type execution struct {
	res *model.QueryResults
	err error
}

type fakeExecutor struct {
	script []execution
	sqls   []string
}

func (f *fakeExecutor) Execute(_ context.Context, sql string) (*model.QueryResults, error) {
	f.sqls = append(f.sqls, sql)
	if len(f.script) == 0 {
		return nil, errors.New("executor script exhausted")
	}
	e := f.script[0]
	f.script = f.script[1:]
	return e.res, e.err
}

type fakeCatalog struct {
	schemas model.SchemaContext
	calls   int
}

func (f *fakeCatalog) DescribeAll(_ context.Context) (model.SchemaContext, error) {
	f.calls++
	return f.schemas, nil
}

func testCatalog() *fakeCatalog {
	return &fakeCatalog{schemas: model.SchemaContext{
		"orders": {{Name: "order_id", Type: "UInt64"}, {Name: "created_at", Type: "DateTime"}},
		"users":  {{Name: "id", Type: "UInt64"}, {Name: "country", Type: "String"}},
	}}
}

func testSteps(gen *fakeGenerator, exec *fakeExecutor, cat *fakeCatalog) *Steps {
	return &Steps{Generator: gen, Executor: exec, Catalog: cat}
}

func TestClassifyIntentValidType(t *testing.T) {
	gen := &fakeGenerator{script: []generation{{out: "sales_trends"}}}
	steps := testSteps(gen, &fakeExecutor{}, testCatalog())

	st := &model.WorkflowState{UserQuery: "show monthly revenue"}
	st.Apply(steps.ClassifyIntent(context.Background(), st))

	require.Equal(t, model.SalesTrends, st.AnalysisType)
	require.Empty(t, st.Error)
	require.Contains(t, gen.prompts[0], "show monthly revenue")
}

func TestClassifyIntentUnknownOutputDefaults(t *testing.T) {
	gen := &fakeGenerator{script: []generation{{out: "this looks like a revenue question"}}}
	steps := testSteps(gen, &fakeExecutor{}, testCatalog())

	st := &model.WorkflowState{UserQuery: "anything"}
	st.Apply(steps.ClassifyIntent(context.Background(), st))

	require.Equal(t, model.GeneralQuery, st.AnalysisType)
	require.Empty(t, st.Error)
}

func TestClassifyIntentBackendFailureDefaults(t *testing.T) {
	gen := &fakeGenerator{script: []generation{{err: errors.New("backend down")}}}
	steps := testSteps(gen, &fakeExecutor{}, testCatalog())

	st := &model.WorkflowState{UserQuery: "anything"}
	st.Apply(steps.ClassifyIntent(context.Background(), st))

	require.Equal(t, model.GeneralQuery, st.AnalysisType)
	require.Contains(t, st.Error, "Intent analysis error")
}

func TestGenerateSQLStripsFenceAndCachesSchema(t *testing.T) {
	gen := &fakeGenerator{script: []generation{{out: "```sql\nSELECT country, count() FROM users GROUP BY country\n```"}}}
	cat := testCatalog()
	steps := testSteps(gen, &fakeExecutor{}, cat)

	st := &model.WorkflowState{UserQuery: "customer countries", AnalysisType: model.GeographicPatterns}
	st.Apply(steps.GenerateSQL(context.Background(), st))

	require.Equal(t, "SELECT country, count() FROM users GROUP BY country", st.SQLQuery)
	require.Empty(t, st.Error)
	require.NotNil(t, st.SchemaContext)
	require.Equal(t, 1, cat.calls)

	// Second pass reuses the cached schema.
	gen.script = []generation{{out: "SELECT 1"}}
	st.Apply(steps.GenerateSQL(context.Background(), st))
	require.Equal(t, 1, cat.calls)
}

func TestGenerateSQLRecoveryModeUsesFailedQuery(t *testing.T) {
	gen := &fakeGenerator{script: []generation{{out: "SELECT fixed FROM orders"}}}
	steps := testSteps(gen, &fakeExecutor{}, testCatalog())

	st := &model.WorkflowState{
		UserQuery:     "recent orders",
		SQLQuery:      "SELECT broken FROM orders",
		Error:         "Query execution error: unknown column broken",
		SchemaContext: model.SchemaContext{},
	}
	st.Apply(steps.GenerateSQL(context.Background(), st))

	require.Equal(t, "SELECT fixed FROM orders", st.SQLQuery)
	require.Empty(t, st.Error)
	require.Contains(t, gen.prompts[0], "SELECT broken FROM orders")
	require.Contains(t, gen.prompts[0], "unknown column broken")
}

func TestGenerateSQLRejectsDangerousStatement(t *testing.T) {
	gen := &fakeGenerator{script: []generation{{out: "DROP TABLE users"}}}
	steps := testSteps(gen, &fakeExecutor{}, testCatalog())

	st := &model.WorkflowState{UserQuery: "delete everything"}
	st.Apply(steps.GenerateSQL(context.Background(), st))

	require.Contains(t, st.Error, "Invalid SQL")
	require.Contains(t, st.Error, "drop")
	require.Equal(t, "DROP TABLE users", st.SQLQuery)
}

func TestExecuteQueryWithoutStatement(t *testing.T) {
	exec := &fakeExecutor{}
	steps := testSteps(&fakeGenerator{}, exec, testCatalog())

	st := &model.WorkflowState{}
	st.Apply(steps.ExecuteQuery(context.Background(), st))

	require.Equal(t, "No SQL query to execute", st.Error)
	require.Zero(t, st.RetryCount)
	require.Empty(t, exec.sqls)
}

func TestExecuteQuerySkipsInvalidStatement(t *testing.T) {
	exec := &fakeExecutor{}
	steps := testSteps(&fakeGenerator{}, exec, testCatalog())

	st := &model.WorkflowState{
		SQLQuery: "DROP TABLE users",
		Error:    "Invalid SQL: Query contains dangerous keyword: drop. Only SELECT queries are allowed.",
	}
	st.Apply(steps.ExecuteQuery(context.Background(), st))

	require.Empty(t, exec.sqls)
	require.Equal(t, 1, st.RetryCount)
	require.Contains(t, st.Error, "Invalid SQL")
}

func TestExecuteQueryFailureIncrementsRetry(t *testing.T) {
	exec := &fakeExecutor{script: []execution{{err: errors.New("syntax error near FROM")}}}
	steps := testSteps(&fakeGenerator{}, exec, testCatalog())

	st := &model.WorkflowState{SQLQuery: "SELECT bad"}
	st.Apply(steps.ExecuteQuery(context.Background(), st))

	require.Contains(t, st.Error, "Query execution error")
	require.Equal(t, 1, st.RetryCount)
	require.Nil(t, st.QueryResults)
}

func TestExecuteQuerySuccessResetsRetry(t *testing.T) {
	exec := &fakeExecutor{script: []execution{{res: &model.QueryResults{Columns: []string{"n"}, Rows: [][]any{{1}}}}}}
	steps := testSteps(&fakeGenerator{}, exec, testCatalog())

	st := &model.WorkflowState{SQLQuery: "SELECT 1", RetryCount: 2, Error: ""}
	st.Apply(steps.ExecuteQuery(context.Background(), st))

	require.Empty(t, st.Error)
	require.Zero(t, st.RetryCount)
	require.Equal(t, 1, st.QueryResults.RowCount())
}

func TestAnalyzeResultsEmptyShortCircuits(t *testing.T) {
	gen := &fakeGenerator{}
	steps := testSteps(gen, &fakeExecutor{}, testCatalog())

	st := &model.WorkflowState{QueryResults: &model.QueryResults{Columns: []string{"n"}}}
	st.Apply(steps.AnalyzeResults(context.Background(), st))

	require.Equal(t, NoDataInsight, st.Insights)
	require.Empty(t, st.Error)
	require.Empty(t, gen.prompts)
}

func TestAnalyzeResultsFallbackOnBackendFailure(t *testing.T) {
	gen := &fakeGenerator{script: []generation{{err: errors.New("backend down")}}}
	steps := testSteps(gen, &fakeExecutor{}, testCatalog())

	st := &model.WorkflowState{
		UserQuery:    "top categories",
		SQLQuery:     "SELECT category, count() FROM products GROUP BY category",
		QueryResults: &model.QueryResults{Columns: []string{"category", "count"}, Rows: [][]any{{"Jeans", 12}, {"Tops", 9}}},
	}
	st.Apply(steps.AnalyzeResults(context.Background(), st))

	require.Contains(t, st.Insights, "returned 2 rows")
	require.Contains(t, st.Insights, "category, count")
	require.Contains(t, st.Error, "Insight generation error")
}

func TestRespondAppendsOneAssistantMessage(t *testing.T) {
	steps := testSteps(&fakeGenerator{}, &fakeExecutor{}, testCatalog())

	st := &model.WorkflowState{
		Messages: []*schema.Message{schema.UserMessage("hi")},
		Insights: "Revenue is trending up.",
	}
	st.Apply(steps.Respond(st))

	require.Len(t, st.Messages, 2)
	last := st.Messages[1]
	require.Equal(t, schema.Assistant, last.Role)
	require.Equal(t, "Revenue is trending up.", last.Content)
}

// runWorkflow drives the steps and routing the way the compiled graph does,
// recording the retry count observed after each execution.
func runWorkflow(t *testing.T, steps *Steps, query string) (*model.WorkflowState, []int) {
	t.Helper()
	ctx := context.Background()

	st := &model.WorkflowState{
		UserQuery: query,
		Messages:  []*schema.Message{schema.UserMessage(query)},
	}
	st.Apply(steps.ClassifyIntent(ctx, st))
	st.Apply(steps.GenerateSQL(ctx, st))

	var retries []int
	for i := 0; i < 10; i++ {
		st.Apply(steps.ExecuteQuery(ctx, st))
		retries = append(retries, st.RetryCount)

		switch RouteAfterExecution(st) {
		case NodeGenerateSQL:
			st.Apply(steps.GenerateSQL(ctx, st))
		case NodeAnalyzeResults:
			st.Apply(steps.AnalyzeResults(ctx, st))
			st.Apply(steps.Respond(st))
			return st, retries
		case NodeRespond:
			st.Apply(steps.Respond(st))
			return st, retries
		}
	}
	t.Fatal("workflow did not terminate")
	return nil, nil
}

func TestWorkflowHappyPath(t *testing.T) {
	gen := &fakeGenerator{script: []generation{
		{out: "product_performance"},
		{out: "SELECT category, count() AS n FROM products GROUP BY category"},
		{out: "Jeans dominate the catalog."},
	}}
	exec := &fakeExecutor{script: []execution{
		{res: &model.QueryResults{Columns: []string{"category", "n"}, Rows: [][]any{{"Jeans", 42}}}},
	}}
	steps := testSteps(gen, exec, testCatalog())

	st, retries := runWorkflow(t, steps, "What are the top selling product categories?")

	require.Equal(t, []int{0}, retries)
	require.Len(t, st.Messages, 2)
	final := st.Messages[1].Content
	require.Contains(t, final, "Jeans dominate the catalog.")
	require.Contains(t, final, "Data Summary: 1 rows analyzed")
	require.Empty(t, st.Error)
}

func TestWorkflowRecoversAfterTwoFailures(t *testing.T) {
	gen := &fakeGenerator{script: []generation{
		{out: "sales_trends"},
		{out: "SELECT broken1 FROM orders"},
		{out: "SELECT broken2 FROM orders"},
		{out: "SELECT month, total FROM orders"},
		{out: "Sales grew every month."},
	}}
	exec := &fakeExecutor{script: []execution{
		{err: errors.New("unknown column broken1")},
		{err: errors.New("unknown column broken2")},
		{res: &model.QueryResults{Columns: []string{"month", "total"}, Rows: [][]any{{"2026-01", 100}}}},
	}}
	steps := testSteps(gen, exec, testCatalog())

	st, retries := runWorkflow(t, steps, "monthly sales trends")

	require.Equal(t, []int{1, 2, 0}, retries)
	require.Len(t, exec.sqls, 3)
	require.Contains(t, st.Messages[len(st.Messages)-1].Content, "Sales grew every month.")
	require.Empty(t, st.Error)
}

func TestWorkflowStopsOnNonRetryableError(t *testing.T) {
	gen := &fakeGenerator{script: []generation{
		{out: "general_query"},
		{out: "SELECT * FROM orders"},
	}}
	exec := &fakeExecutor{script: []execution{
		{err: errors.New("permission denied on table orders")},
	}}
	steps := testSteps(gen, exec, testCatalog())

	st, retries := runWorkflow(t, steps, "show all orders")

	require.Equal(t, []int{1}, retries)
	require.Len(t, exec.sqls, 1)
	final := st.Messages[len(st.Messages)-1].Content
	require.Contains(t, final, "I apologize")
	require.Contains(t, final, "permission denied")
}

func TestWorkflowExhaustsRetryBudget(t *testing.T) {
	gen := &fakeGenerator{script: []generation{
		{out: "general_query"},
		{out: "SELECT a FROM orders"},
		{out: "SELECT b FROM orders"},
		{out: "SELECT c FROM orders"},
	}}
	exec := &fakeExecutor{script: []execution{
		{err: errors.New("syntax error a")},
		{err: errors.New("syntax error b")},
		{err: errors.New("syntax error c")},
	}}
	steps := testSteps(gen, exec, testCatalog())

	st, retries := runWorkflow(t, steps, "anything")

	require.Equal(t, []int{1, 2, 3}, retries)
	require.Len(t, exec.sqls, 3)
	final := st.Messages[len(st.Messages)-1].Content
	require.Contains(t, final, "I apologize")

	var lastFailed string
	if len(exec.sqls) > 0 {
		lastFailed = exec.sqls[len(exec.sqls)-1]
	}
	require.Equal(t, "SELECT c FROM orders", lastFailed)
}

func TestWorkflowEmptyResults(t *testing.T) {
	gen := &fakeGenerator{script: []generation{
		{out: "sales_trends"},
		{out: "SELECT month FROM orders WHERE 1=0"},
	}}
	exec := &fakeExecutor{script: []execution{
		{res: &model.QueryResults{Columns: []string{"month"}}},
	}}
	steps := testSteps(gen, exec, testCatalog())

	st, _ := runWorkflow(t, steps, "sales for the year 1900")

	final := st.Messages[len(st.Messages)-1].Content
	require.Contains(t, final, NoDataInsight)
	require.NotContains(t, final, "Data Summary")
	require.True(t, strings.HasSuffix(final, NoDataInsight))
}
