// SPDX-License-Identifier: MPL-2.0

package engine

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseTable(t *testing.T) {
	t.Parallel()

	v, err := parseTable("Alias\tPackage\nlm\tstats\nfilter\tdplyr\n")
	require.NoError(t, err)
	require.Equal(t, 2, v.Rows())

	aliases, ok := v.Column("Alias")
	require.True(t, ok)
	assert.Equal(t, []string{"lm", "filter"}, aliases)

	pkgs, ok := v.Column("Package")
	require.True(t, ok)
	assert.Equal(t, []string{"stats", "dplyr"}, pkgs)

	_, ok = v.Column("Missing")
	assert.False(t, ok)
}

func TestParseTableHeaderOnly(t *testing.T) {
	t.Parallel()

	v, err := parseTable("Alias\tPackage\n")
	require.NoError(t, err)
	assert.Equal(t, 0, v.Rows())
	assert.Len(t, v.Columns, 2)
}

func TestParseTableCRLF(t *testing.T) {
	t.Parallel()

	v, err := parseTable("Alias\tPackage\r\nlm\tstats\r\n")
	require.NoError(t, err)
	pkgs, _ := v.Column("Package")
	assert.Equal(t, []string{"stats"}, pkgs)
}

func TestParseTableErrors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		in   string
	}{
		{"empty", ""},
		{"only newlines", "\n\n"},
		{"ragged row", "Alias\tPackage\nlm\n"},
		{"extra field", "Alias\tPackage\nlm\tstats\textra\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			_, err := parseTable(tt.in)
			require.ErrorIs(t, err, ErrMalformedTable)
		})
	}
}

func TestTableScriptWrapsExpression(t *testing.T) {
	t.Parallel()

	script := tableScript("list(a = 1)")
	assert.True(t, strings.HasPrefix(script, ".fuzzyhelp_value <- local({\nlist(a = 1)\n})"))
	assert.Contains(t, script, `sep = "\t"`)
	assert.Contains(t, script, "col.names = TRUE")
}

func TestSplitOutput(t *testing.T) {
	t.Parallel()

	assert.Nil(t, splitOutput(nil, StreamStdout))
	assert.Nil(t, splitOutput([]byte("\n"), StreamStdout))

	lines := splitOutput([]byte("a\r\nb\n"), StreamStderr)
	assert.Equal(t, []OutputLine{
		{Stream: StreamStderr, Data: "a"},
		{Stream: StreamStderr, Data: "b"},
	}, lines)
}

func TestStdoutJoinsOnlyStdout(t *testing.T) {
	t.Parallel()

	lines := []OutputLine{
		{Stream: StreamStdout, Data: "<h1>"},
		{Stream: StreamStderr, Data: "warning"},
		{Stream: StreamStdout, Data: "</h1>"},
	}
	assert.Equal(t, "<h1>\n</h1>", Stdout(lines))
	assert.Empty(t, Stdout(nil))
}

func TestEvalErrorMessage(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "R exited with status 1", (&EvalError{ExitCode: 1}).Error())
	assert.Equal(t, "R exited with status 3: packages not installed: foo",
		(&EvalError{ExitCode: 3, Stderr: "packages not installed: foo\nExecution halted\n"}).Error())
}

func TestNilValue(t *testing.T) {
	t.Parallel()

	var v *Value
	assert.Equal(t, 0, v.Rows())
	_, ok := v.Column("Alias")
	assert.False(t, ok)
}
