// SPDX-License-Identifier: MPL-2.0

// Package benchmark holds benchmarks for the fuzzyhelp hot paths, suitable
// for PGO profile generation:
//   - ranking a large catalog, from scratch and while typing
//   - converting and rendering help pages
//   - loading the CUE configuration
//   - the end-to-end query pipeline over a fake engine
//
// To generate a profile, run:
//
//	go test ./internal/benchmark -run '^$' -bench . -cpuprofile default.pgo
package benchmark
