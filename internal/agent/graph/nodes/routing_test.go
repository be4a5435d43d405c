package nodes

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/lookwise/insight-agent/internal/agent/model"
)

func TestShouldRetryQuery(t *testing.T) {
	cases := []struct {
		name       string
		errText    string
		retryCount int
		want       bool
	}{
		{"retryable within budget", "Query execution error: syntax error", 1, true},
		{"retryable at budget edge", "Query execution error: unknown column", 2, true},
		{"budget exhausted", "Query execution error: syntax error", 3, false},
		{"no error", "", 0, false},
		{"permission denied", "Query execution error: PERMISSION denied on table", 0, false},
		{"authentication failure", "authentication token expired", 1, false},
		{"bad credentials", "invalid credentials supplied", 0, false},
		{"quota exhausted", "Quota exceeded for project", 0, false},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			require.Equal(t, tc.want, ShouldRetryQuery(tc.errText, tc.retryCount))
		})
	}
}

func TestRouteAfterExecution(t *testing.T) {
	t.Run("retryable failure loops to generation", func(t *testing.T) {
		st := &model.WorkflowState{Error: "Query execution error: syntax error", RetryCount: 1}
		require.Equal(t, NodeGenerateSQL, RouteAfterExecution(st))
	})

	t.Run("results flow to analysis", func(t *testing.T) {
		st := &model.WorkflowState{QueryResults: &model.QueryResults{Columns: []string{"n"}}}
		require.Equal(t, NodeAnalyzeResults, RouteAfterExecution(st))
	})

	t.Run("empty results still flow to analysis", func(t *testing.T) {
		st := &model.WorkflowState{QueryResults: &model.QueryResults{}}
		require.Equal(t, NodeAnalyzeResults, RouteAfterExecution(st))
	})

	t.Run("non-retryable failure goes straight to respond", func(t *testing.T) {
		st := &model.WorkflowState{Error: "permission denied", RetryCount: 0}
		require.Equal(t, NodeRespond, RouteAfterExecution(st))
	})

	t.Run("exhausted budget goes to respond", func(t *testing.T) {
		st := &model.WorkflowState{Error: "Query execution error: syntax error", RetryCount: 3}
		require.Equal(t, NodeRespond, RouteAfterExecution(st))
	})
}
