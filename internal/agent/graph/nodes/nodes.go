package nodes

import (
	"context"

	"github.com/cloudwego/eino/compose"

	"github.com/lookwise/insight-agent/internal/agent/model"
)

// NewClassifyIntentPreHandler seeds the shared state from the graph input
// before the first step runs.
func NewClassifyIntentPreHandler() func(context.Context, model.QueryInput, *model.WorkflowState) (model.QueryInput, error) {
	return func(ctx context.Context, in model.QueryInput, s *model.WorkflowState) (model.QueryInput, error) {
		if s.UserQuery == "" {
			s.UserQuery = in.Query
		}
		return in, nil
	}
}

// NewClassifyIntentNode creates the intent classification node.
func NewClassifyIntentNode(steps *Steps) *compose.Lambda {
	return stepNode(steps.ClassifyIntent)
}

// NewGenerateSQLNode creates the SQL generation node.
func NewGenerateSQLNode(steps *Steps) *compose.Lambda {
	return stepNode(steps.GenerateSQL)
}

// NewExecuteQueryNode creates the warehouse execution node.
func NewExecuteQueryNode(steps *Steps) *compose.Lambda {
	return stepNode(steps.ExecuteQuery)
}

// NewAnalyzeResultsNode creates the insight synthesis node.
func NewAnalyzeResultsNode(steps *Steps) *compose.Lambda {
	return stepNode(steps.AnalyzeResults)
}

// NewRespondNode creates the terminal node. It composes the final message and
// hands a snapshot of the state out as the graph result.
func NewRespondNode(steps *Steps) *compose.Lambda {
	return compose.InvokableLambda(func(ctx context.Context, _ model.QueryInput) (*model.WorkflowState, error) {
		var out *model.WorkflowState
		err := compose.ProcessState(ctx, func(_ context.Context, st *model.WorkflowState) error {
			st.Apply(steps.Respond(st))
			out = st.Snapshot()
			return nil
		})
		if err != nil {
			return nil, err
		}
		return out, nil
	})
}

// NewExecutionRouteCondition creates the branch condition evaluated after the
// execution node.
func NewExecutionRouteCondition() func(context.Context, model.QueryInput) (string, error) {
	return func(ctx context.Context, _ model.QueryInput) (string, error) {
		next := NodeRespond
		err := compose.ProcessState(ctx, func(_ context.Context, st *model.WorkflowState) error {
			next = RouteAfterExecution(st)
			return nil
		})
		if err != nil {
			return "", err
		}
		return next, nil
	}
}

// stepNode wraps a step method into a passthrough lambda: the step reads the
// shared state under the engine's state lock and applies its partial update,
// while the graph input flows through unchanged.
func stepNode(step func(context.Context, *model.WorkflowState) model.StateUpdate) *compose.Lambda {
	return compose.InvokableLambda(func(ctx context.Context, in model.QueryInput) (model.QueryInput, error) {
		err := compose.ProcessState(ctx, func(_ context.Context, st *model.WorkflowState) error {
			st.Apply(step(ctx, st))
			return nil
		})
		return in, err
	})
}
