// Package analysis turns a validated layer export into an Analysis: the
// normative comparison, total retinal thickness, scan quality grade and a
// list of human-readable findings.
//
// Build never returns partial comparison results. When the comparator fails
// the Analysis carries the error text and a single critical finding, and the
// rest of the pipeline (store, API, alerts) treats it as a failed analysis.
//
// ThicknessMap produces the simulated en-face thickness map shown by the
// dashboard. It is a random field around the total thickness, not a
// measurement; the RNG is injected so callers can make it reproducible.
package analysis
