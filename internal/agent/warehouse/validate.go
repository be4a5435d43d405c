package warehouse

import (
	"fmt"
	"strings"
)

// forbiddenKeywords are statement keywords that disqualify a query outright.
var forbiddenKeywords = []string{"drop", "delete", "truncate", "insert", "update", "alter", "create"}

// ValidateSQL is a lexical guard rail, not a SQL parser: it rejects queries
// containing a forbidden keyword as a whitespace-delimited token, queries not
// starting with SELECT, and queries with unbalanced parentheses. It returns a
// validity flag plus a human-readable reason on rejection and never errors.
func ValidateSQL(sql string) (bool, string) {
	lowered := strings.ToLower(strings.TrimSpace(sql))

	tokens := strings.Fields(lowered)
	for _, keyword := range forbiddenKeywords {
		for _, tok := range tokens {
			if tok == keyword {
				return false, fmt.Sprintf("Query contains dangerous keyword: %s. Only SELECT queries are allowed.", keyword)
			}
		}
	}

	if !strings.HasPrefix(lowered, "select") {
		return false, "Query must be a SELECT statement."
	}

	if strings.Count(lowered, "(") != strings.Count(lowered, ")") {
		return false, "Unbalanced parentheses in query."
	}

	return true, ""
}

// StripSQLFence removes enclosing markdown code-fence markup from generated
// SQL, accepting both a language-tagged fence and a bare fence. Unfenced
// input passes through unchanged, so the operation is idempotent.
func StripSQLFence(s string) string {
	out := strings.TrimSpace(s)
	if !strings.HasPrefix(out, "```") {
		return out
	}
	out = strings.TrimPrefix(out, "```")
	out = strings.TrimPrefix(out, "sql")
	out = strings.TrimSuffix(strings.TrimSpace(out), "```")
	return strings.TrimSpace(out)
}
