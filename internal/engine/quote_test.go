// SPDX-License-Identifier: MPL-2.0

package engine

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestQuoteString(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		in   string
		want string
	}{
		{"plain", "stats", `"stats"`},
		{"empty", "", `""`},
		{"double quote", `say "hi"`, `"say \"hi\""`},
		{"backslash", `C:\R\lib`, `"C:\\R\\lib"`},
		{"control characters", "a\nb\tc\r", `"a\nb\tc\r"`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, QuoteString(tt.in))
		})
	}
}

func TestQuoteName(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		in   string
		want string
	}{
		{"identifier", "lm", "`lm`"},
		{"operator", "[[<-", "`[[<-`"},
		{"percent operator", "%in%", "`%in%`"},
		{"backtick", "a`b", "`a\\`b`"},
		{"backslash", `a\b`, "`a\\\\b`"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, QuoteName(tt.in))
		})
	}
}

func TestStringVector(t *testing.T) {
	t.Parallel()

	assert.Equal(t, `c()`, StringVector(nil))
	assert.Equal(t, `c("dplyr", "ggplot2")`, StringVector([]string{"dplyr", "ggplot2"}))
}
