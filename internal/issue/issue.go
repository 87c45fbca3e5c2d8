// SPDX-License-Identifier: MPL-2.0

package issue

import (
	"strings"

	"github.com/charmbracelet/glamour"
	"golang.org/x/exp/slices"
)

type Id int

const (
	RscriptNotFoundId Id = iota + 1
	ConfigLoadFailedId
	CatalogBuildFailedId
	PackageInstallFailedId
	HelpRenderFailedId
	ServerStartFailedId
)

type MarkdownMsg string

type HttpLink string

type Issue struct {
	id       Id          // ID used to lookup the issue
	mdMsg    MarkdownMsg // Markdown text that will be rendered
	docLinks []HttpLink  // R documentation relevant to the issue
	extLinks []HttpLink  // other links that might be useful for the user
}

func (i *Issue) Id() Id {
	return i.id
}

func (i *Issue) MarkdownMsg() MarkdownMsg {
	return i.mdMsg
}

func (i *Issue) DocLinks() []HttpLink {
	return slices.Clone(i.docLinks)
}

func (i *Issue) ExtLinks() []HttpLink {
	return slices.Clone(i.extLinks)
}

// Markdown returns the message followed by a "See also" list of links.
func (i *Issue) Markdown() string {
	var b strings.Builder
	b.WriteString(string(i.mdMsg))
	if len(i.docLinks) > 0 || len(i.extLinks) > 0 {
		b.WriteString("\n\n## See also\n")
		for _, link := range append(i.DocLinks(), i.extLinks...) {
			b.WriteString("- <" + string(link) + ">\n")
		}
	}
	return b.String()
}

// Render renders the issue for a terminal using the glamour style at
// stylePath (e.g. "dark", "light", "notty").
func (i *Issue) Render(stylePath string) (string, error) {
	return render(i.Markdown(), stylePath)
}

var (
	render = glamour.Render

	rscriptNotFoundIssue = &Issue{
		id: RscriptNotFoundId,
		mdMsg: `
# R is not available!

fuzzyhelp reads help topics from a local R installation, and it could not
start ` + "`Rscript`" + `.

## Things you can try:
- Install R from CRAN and make sure ` + "`Rscript`" + ` is on your PATH:
~~~
$ Rscript --version
~~~

- Point fuzzyhelp at a specific interpreter in ` + "`config.cue`" + `:
~~~cue
engine: {
  rscript: "/opt/R/4.4.1/bin/Rscript"
}
~~~

- Or set it for one run:
~~~
$ FUZZYHELP_ENGINE_RSCRIPT=/usr/local/bin/Rscript fuzzyhelp
~~~`,
		docLinks: []HttpLink{"https://cran.r-project.org/"},
	}

	configLoadFailedIssue = &Issue{
		id: ConfigLoadFailedId,
		mdMsg: `
# Failed to load configuration!

The configuration file could not be read or does not match the schema.

## Things you can try:
- Check the error above for the offending field and line
- Print the configuration fuzzyhelp would use:
~~~
$ fuzzyhelp config show
~~~

- Start from a minimal file:
~~~cue
engine: {
  library_dir: "~/.cache/fuzzyhelp/library"
  timeout:     "5m"
}
search: limit: 200
~~~`,
	}

	catalogBuildFailedIssue = &Issue{
		id: CatalogBuildFailedId,
		mdMsg: `
# Failed to read the help index!

R started, but querying ` + "`utils::hsearch_db()`" + ` failed.

## Things you can try:
- Run the query yourself to see R's error:
~~~
$ Rscript -e 'nrow(utils::hsearch_db()$Aliases)'
~~~

- Remove a broken package from the library directory and retry
- Run with ` + "`--verbose`" + ` to see the full R output`,
		docLinks: []HttpLink{"https://stat.ethz.ch/R-manual/R-devel/library/utils/html/hsearch-utils.html"},
	}

	packageInstallFailedIssue = &Issue{
		id: PackageInstallFailedId,
		mdMsg: `
# Package installation failed!

R could not install the requested package into the fuzzyhelp library.

## Common causes:
- The package name is misspelled or not on the configured repository
- No network access to the repository
- The package needs system libraries or a compiler

## Things you can try:
- Check that the package exists on CRAN
- Configure a different mirror:
~~~cue
engine: repos: ["https://cloud.r-project.org"]
~~~

- Install it manually and let fuzzyhelp pick it up:
~~~
$ Rscript -e 'install.packages("dplyr")'
~~~`,
		docLinks: []HttpLink{"https://stat.ethz.ch/R-manual/R-devel/library/utils/html/install.packages.html"},
	}

	helpRenderFailedIssue = &Issue{
		id: HelpRenderFailedId,
		mdMsg: `
# Help page not found!

R returned no documentation for this topic.

## Things you can try:
- Search for the topic first:
~~~
$ fuzzyhelp search lm
~~~

- Check the package is installed; a ` + "`pkg::`" + ` prefix installs it:
~~~
$ fuzzyhelp search dplyr::filter
~~~`,
	}

	serverStartFailedIssue = &Issue{
		id: ServerStartFailedId,
		mdMsg: `
# Failed to start the help server!

The HTTP server could not listen on the configured address.

## Things you can try:
- Use another port:
~~~
$ fuzzyhelp serve --addr 127.0.0.1:8081
~~~

- Stop the process that already uses the port`,
	}

	issues = map[Id]*Issue{
		rscriptNotFoundIssue.Id():      rscriptNotFoundIssue,
		configLoadFailedIssue.Id():     configLoadFailedIssue,
		catalogBuildFailedIssue.Id():   catalogBuildFailedIssue,
		packageInstallFailedIssue.Id(): packageInstallFailedIssue,
		helpRenderFailedIssue.Id():     helpRenderFailedIssue,
		serverStartFailedIssue.Id():    serverStartFailedIssue,
	}
)

// Values returns every issue ordered by Id.
func Values() []*Issue {
	out := make([]*Issue, 0, len(issues))
	for _, i := range issues {
		out = append(out, i)
	}
	slices.SortFunc(out, func(a, b *Issue) int { return int(a.id) - int(b.id) })
	return out
}

func Get(id Id) *Issue {
	return issues[id]
}
