package graph

import (
	"context"
	"fmt"

	"github.com/cloudwego/eino/compose"
	"github.com/cloudwego/eino/schema"

	"github.com/lookwise/insight-agent/internal/agent/graph/nodes"
	"github.com/lookwise/insight-agent/internal/agent/graph/observers"
	"github.com/lookwise/insight-agent/internal/agent/llm"
	"github.com/lookwise/insight-agent/internal/agent/model"
	logx "github.com/lookwise/insight-agent/pkg/logger"
)

// Runner executes one analytics query end-to-end and returns the final
// workflow state. It never returns an error to the caller: any failure the
// workflow could not absorb is folded into a degraded state whose response
// message carries the apology.
type Runner interface {
	Invoke(ctx context.Context, in model.QueryInput) *model.WorkflowState
}

// Config holds everything needed to compose the full insight graph
// end-to-end. This is a convenience layer over GraphConfig that also
// constructs the chat model and generation client.
type Config struct {
	APIKey          string
	BaseURL         string
	GenerationModel model.GenerationModelConfig
	Executor        model.QueryExecutor
	Catalog         model.SchemaCatalog
}

// GraphConfig holds all configuration needed to build the graph
type GraphConfig struct {
	Generator model.Generator
	Executor  model.QueryExecutor
	Catalog   model.SchemaCatalog
}

// GraphBuilder handles the construction of the insight workflow graph
type GraphBuilder struct {
	steps *nodes.Steps
	graph *compose.Graph[model.QueryInput, *model.WorkflowState]
}

type graphRunner struct {
	runnable compose.Runnable[model.QueryInput, *model.WorkflowState]
}

func (r *graphRunner) Invoke(ctx context.Context, in model.QueryInput) (out *model.WorkflowState) {
	defer func() {
		if rec := recover(); rec != nil {
			logx.Error().Interface("panic", rec).Msg("Workflow panicked")
			out = degradedState(in, fmt.Sprintf("%v", rec))
		}
	}()

	out, err := r.runnable.Invoke(ctx, in, compose.WithCallbacks(observers.NewAllCallbacks()))
	if err != nil {
		logx.Error().Err(err).Msg("Workflow failed")
		return degradedState(in, err.Error())
	}
	if out == nil {
		return degradedState(in, "workflow produced no state")
	}
	return out
}

// degradedState is the response of last resort: no messages, just the error,
// which ResponseFromState turns into an apology.
func degradedState(in model.QueryInput, detail string) *model.WorkflowState {
	return &model.WorkflowState{
		UserQuery: in.Query,
		Error:     "Workflow error: " + detail,
	}
}

// ResponseFromState extracts the final user-facing message from a completed
// workflow state, falling back to the recorded error and then to a generic
// apology when the run left no message behind.
func ResponseFromState(st *model.WorkflowState) string {
	if st != nil {
		for i := len(st.Messages) - 1; i >= 0; i-- {
			m := st.Messages[i]
			if m != nil && m.Role == schema.Assistant && m.Content != "" {
				return m.Content
			}
		}
		if st.Error != "" {
			return "I encountered an error: " + st.Error
		}
	}
	return "I'm sorry, I could not process your request."
}

// BuildInsightGraph composes the chat model and generation client, builds the
// graph, and returns a Runner.
func BuildInsightGraph(ctx context.Context, cfg Config) (Runner, error) {
	if cfg.Executor == nil {
		return nil, fmt.Errorf("query executor is nil")
	}
	if cfg.Catalog == nil {
		return nil, fmt.Errorf("schema catalog is nil")
	}

	cm, err := llm.NewChatModel(ctx, llm.ChatModelConfig{
		APIKey:  cfg.APIKey,
		BaseURL: cfg.BaseURL,
		Model:   cfg.GenerationModel,
	})
	if err != nil {
		return nil, err
	}

	runnable, err := BuildGraph(ctx, &GraphConfig{
		Generator: llm.NewClient(cm, cfg.GenerationModel),
		Executor:  cfg.Executor,
		Catalog:   cfg.Catalog,
	})
	if err != nil {
		return nil, err
	}

	logx.Debug().Msg("Insight graph built successfully")
	return &graphRunner{runnable: runnable}, nil
}

// BuildGraph constructs and returns the compiled workflow graph
func BuildGraph(ctx context.Context, config *GraphConfig) (compose.Runnable[model.QueryInput, *model.WorkflowState], error) {
	if config == nil {
		return nil, fmt.Errorf("graph config is nil")
	}
	if config.Generator == nil || config.Executor == nil || config.Catalog == nil {
		return nil, fmt.Errorf("graph dependencies are not properly initialized")
	}

	builder := &GraphBuilder{
		steps: &nodes.Steps{
			Generator: config.Generator,
			Executor:  config.Executor,
			Catalog:   config.Catalog,
		},
		graph: compose.NewGraph[model.QueryInput, *model.WorkflowState](
			compose.WithGenLocalState(func(ctx context.Context) *model.WorkflowState {
				return &model.WorkflowState{}
			}),
		),
	}

	builder.addNodes()
	builder.addEdges()

	if err := builder.addBranches(); err != nil {
		return nil, err
	}

	return builder.compile(ctx)
}

// addNodes adds all processing nodes to the graph
func (b *GraphBuilder) addNodes() {
	b.graph.AddLambdaNode(nodes.NodeClassifyIntent,
		nodes.NewClassifyIntentNode(b.steps),
		compose.WithStatePreHandler(nodes.NewClassifyIntentPreHandler()),
	)

	b.graph.AddLambdaNode(nodes.NodeGenerateSQL,
		nodes.NewGenerateSQLNode(b.steps),
	)

	b.graph.AddLambdaNode(nodes.NodeExecuteQuery,
		nodes.NewExecuteQueryNode(b.steps),
	)

	b.graph.AddLambdaNode(nodes.NodeAnalyzeResults,
		nodes.NewAnalyzeResultsNode(b.steps),
	)

	b.graph.AddLambdaNode(nodes.NodeRespond,
		nodes.NewRespondNode(b.steps),
	)
}

// addEdges creates the main flow connections between nodes
func (b *GraphBuilder) addEdges() {
	edges := [][2]string{
		{compose.START, nodes.NodeClassifyIntent},
		{nodes.NodeClassifyIntent, nodes.NodeGenerateSQL},
		{nodes.NodeGenerateSQL, nodes.NodeExecuteQuery},
		{nodes.NodeAnalyzeResults, nodes.NodeRespond},
		{nodes.NodeRespond, compose.END},
	}

	for _, edge := range edges {
		b.graph.AddEdge(edge[0], edge[1])
	}
}

// addBranches creates conditional routing branches
func (b *GraphBuilder) addBranches() error {
	executionBranch := compose.NewGraphBranch(
		nodes.NewExecutionRouteCondition(),
		map[string]bool{
			nodes.NodeGenerateSQL:    true,
			nodes.NodeAnalyzeResults: true,
			nodes.NodeRespond:        true,
		},
	)
	if err := b.graph.AddBranch(nodes.NodeExecuteQuery, executionBranch); err != nil {
		logx.Error().Err(err).Msg("Error adding execution route branch")
		return fmt.Errorf("error adding execution route branch: %w", err)
	}

	return nil
}

// compile finalizes and compiles the graph
func (b *GraphBuilder) compile(ctx context.Context) (compose.Runnable[model.QueryInput, *model.WorkflowState], error) {
	// Worst case walks the retry loop twice before responding; leave headroom
	// on top of that.
	runnable, err := b.graph.Compile(ctx, compose.WithMaxRunSteps(20))
	if err != nil {
		logx.Error().Err(err).Msg("Error compiling graph")
		return nil, fmt.Errorf("error compiling graph: %w", err)
	}

	logx.Debug().Msg("Graph compiled successfully")
	return runnable, nil
}
