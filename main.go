// SPDX-License-Identifier: MPL-2.0

// Command fuzzyhelp is a fuzzy finder over R help topics.
package main

import cmd "github.com/invowk/fuzzyhelp/cmd/fuzzyhelp"

func main() {
	cmd.Execute()
}
