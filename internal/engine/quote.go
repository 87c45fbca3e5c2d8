// SPDX-License-Identifier: MPL-2.0

package engine

import "strings"

var (
	stringEscaper = strings.NewReplacer(`\`, `\\`, `"`, `\"`, "\n", `\n`, "\r", `\r`, "\t", `\t`)
	nameEscaper   = strings.NewReplacer(`\`, `\\`, "`", "\\`")
)

// QuoteString returns s as a double-quoted R string literal.
func QuoteString(s string) string {
	return `"` + stringEscaper.Replace(s) + `"`
}

// QuoteName returns s as a backtick-quoted R symbol, which R accepts for any
// name including operators such as `+` or `[[<-`.
func QuoteName(s string) string {
	return "`" + nameEscaper.Replace(s) + "`"
}

// StringVector returns an R character vector literal, e.g. c("a", "b").
func StringVector(values []string) string {
	quoted := make([]string, len(values))
	for i, v := range values {
		quoted[i] = QuoteString(v)
	}
	return "c(" + strings.Join(quoted, ", ") + ")"
}
