// SPDX-License-Identifier: MPL-2.0

// Package engine defines the evaluation engine contract used by fuzzyhelp and
// provides an implementation backed by the R interpreter.
//
// The Engine interface is the only way the rest of fuzzyhelp talks to R:
//   - Init: blocks until the interpreter is usable (idempotent)
//   - Evaluate: evaluates an expression and returns its value as a table
//   - InstallPackages: installs packages into the engine's library
//   - OpenContext: creates a scoped, single-use evaluation context whose
//     Capture method returns the expression's output lines
//
// Rscript implements Engine by running one Rscript subprocess per evaluation.
// A weighted semaphore bounds the number of concurrent subprocesses; with the
// default limit of 1 the engine behaves as a single-threaded interpreter.
//
// QuoteString and QuoteName build R literals from arbitrary Go strings so that
// package and topic names coming from user input cannot escape their literal.
package engine
