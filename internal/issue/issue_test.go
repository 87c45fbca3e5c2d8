// SPDX-License-Identifier: MPL-2.0

package issue

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIssueCatalog(t *testing.T) {
	t.Parallel()

	ids := []Id{
		RscriptNotFoundId,
		ConfigLoadFailedId,
		CatalogBuildFailedId,
		PackageInstallFailedId,
		HelpRenderFailedId,
		ServerStartFailedId,
	}

	values := Values()
	require.Len(t, values, len(ids))
	for i, id := range ids {
		got := Get(id)
		require.NotNil(t, got, "issue %d missing", id)
		assert.Equal(t, id, got.Id())
		assert.NotEmpty(t, got.MarkdownMsg())
		assert.Equal(t, id, values[i].Id(), "Values is ordered by id")
	}
	assert.Nil(t, Get(Id(9999)))
}

func TestIssueLinksAreCopies(t *testing.T) {
	t.Parallel()

	i := Get(RscriptNotFoundId)
	links := i.DocLinks()
	require.NotEmpty(t, links)
	links[0] = "changed"
	assert.NotEqual(t, HttpLink("changed"), i.DocLinks()[0])
}

func TestIssueMarkdown(t *testing.T) {
	t.Parallel()

	withLinks := &Issue{
		id:       Id(9999),
		mdMsg:    "# Test Issue",
		docLinks: []HttpLink{"https://docs.example.com"},
		extLinks: []HttpLink{"https://external.example.com"},
	}
	md := withLinks.Markdown()
	assert.Contains(t, md, "## See also")
	assert.Contains(t, md, "- <https://docs.example.com>")
	assert.Contains(t, md, "- <https://external.example.com>")

	noLinks := &Issue{id: Id(9998), mdMsg: "# Test Issue"}
	assert.NotContains(t, noLinks.Markdown(), "See also")
}

func TestAllIssuesAreRenderable(t *testing.T) {
	t.Parallel()

	for _, i := range Values() {
		out, err := i.Render("notty")
		require.NoError(t, err, "issue %d", i.Id())
		assert.NotEmpty(t, out)
	}
}
