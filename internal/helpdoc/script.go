// SPDX-License-Identifier: MPL-2.0

package helpdoc

import "github.com/invowk/fuzzyhelp/internal/engine"

// Script returns the R code that writes the HTML rendering of topic in pkg
// to stdout. When either is empty the generic help page is rendered. Errors
// raised while rendering are silenced.
func Script(pkg, topic string) string {
	call := `help(help_type = "html")`
	if pkg != "" && topic != "" {
		call = `help(` + engine.QuoteName(topic) + `, package = ` + engine.QuoteString(pkg) + `, help_type = "html")`
	}
	return `local({
  x <- ` + call + `
  paths <- as.character(x)
  if (length(paths) > 0L) {
    file <- paths[1L]
    pkgname <- basename(dirname(dirname(file)))
    try({
      helpfile <- utils:::.getHelpFile(file)
      tools::Rd2HTML(helpfile, package = pkgname)
    }, silent = TRUE)
  }
  invisible(NULL)
})
`
}
