package risk

import (
	"regexp"
	"strings"
)

// symbolPattern matches this tree's contract-symbol scheme, e.g.
// "cmt_btcusdt": a lowercase prefix, underscore, lowercase base/quote run.
var symbolPattern = regexp.MustCompile(`^[a-z][a-z0-9]{1,9}_[a-z0-9]{2,20}$`)

// sqlKeywords blocks symbol values that look like SQL injection attempts even
// though they'd otherwise pass the charset check above.
var sqlKeywords = []string{
	"select", "drop", "union", "insert", "delete", "update",
	"where", "exec",
}

// isValidSymbol reports whether s is a well-formed contract symbol for this
// exchange ("cmt_btcusdt"-style). Any query that takes a caller-supplied
// symbol must validate it with this first, even though pgx parameterizes the
// value rather than interpolating it -- a malformed symbol is never a real
// contract either way.
func isValidSymbol(s string) bool {
	if !symbolPattern.MatchString(s) {
		return false
	}
	for _, kw := range sqlKeywords {
		if strings.Contains(s, kw) {
			return false
		}
	}
	return true
}
