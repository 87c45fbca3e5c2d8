// SPDX-License-Identifier: MPL-2.0

package engine

import (
	"fmt"
	"strings"
)

// tableScript wraps expr so that its value is written to stdout as
// tab-separated text with a header row. Values are written unquoted; R help
// aliases do not contain tabs or newlines.
func tableScript(expr string) string {
	return `.fuzzyhelp_value <- local({
` + expr + `
})
utils::write.table(
  as.data.frame(.fuzzyhelp_value, stringsAsFactors = FALSE, check.names = FALSE),
  file = stdout(), sep = "\t", quote = FALSE,
  row.names = FALSE, col.names = TRUE, na = ""
)
`
}

// parseTable decodes the output of tableScript.
func parseTable(out string) (*Value, error) {
	lines := strings.Split(strings.ReplaceAll(out, "\r\n", "\n"), "\n")
	for len(lines) > 0 && lines[len(lines)-1] == "" {
		lines = lines[:len(lines)-1]
	}
	if len(lines) == 0 {
		return nil, fmt.Errorf("%w: missing header", ErrMalformedTable)
	}

	header := strings.Split(lines[0], "\t")
	v := &Value{Columns: make([]Column, len(header))}
	for i, name := range header {
		v.Columns[i] = Column{Name: name, Values: make([]string, 0, len(lines)-1)}
	}

	for n, line := range lines[1:] {
		fields := strings.Split(line, "\t")
		if len(fields) != len(header) {
			return nil, fmt.Errorf("%w: line %d has %d fields, want %d", ErrMalformedTable, n+2, len(fields), len(header))
		}
		for i, f := range fields {
			v.Columns[i].Values = append(v.Columns[i].Values, f)
		}
	}

	return v, nil
}

// splitOutput splits captured process output into lines tagged with stream.
func splitOutput(data []byte, stream Stream) []OutputLine {
	text := strings.ReplaceAll(string(data), "\r\n", "\n")
	text = strings.TrimSuffix(text, "\n")
	if text == "" {
		return nil
	}
	parts := strings.Split(text, "\n")
	lines := make([]OutputLine, len(parts))
	for i, p := range parts {
		lines[i] = OutputLine{Stream: stream, Data: p}
	}
	return lines
}
