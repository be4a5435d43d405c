package nodes

import (
	"fmt"
	"strings"

	"github.com/lookwise/insight-agent/internal/agent/model"
)

// ComposeResponse assembles the final answer from whatever the workflow
// produced. An error with no insights yields an apology, an error alongside
// insights is demoted to a note, and non-empty results always get a row-count
// summary appended.
func ComposeResponse(insights, errText string, results *model.QueryResults) string {
	var b strings.Builder

	switch {
	case errText != "" && insights == "":
		fmt.Fprintf(&b,
			"I apologize, but I encountered an error processing your request:\n\n%s\n\nPlease try rephrasing your question or ask something else.",
			errText)
	case errText != "":
		b.WriteString(insights)
		fmt.Fprintf(&b, "\n\n(Note: There was a minor issue: %s)", errText)
	default:
		b.WriteString(insights)
	}

	if results != nil && !results.Empty() {
		fmt.Fprintf(&b, "\n\n---\nData Summary: %d rows analyzed", results.RowCount())
	}

	return b.String()
}

func joinColumns(results *model.QueryResults) string {
	return strings.Join(results.Columns, ", ")
}
