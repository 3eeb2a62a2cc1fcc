// Package compare classifies measured retinal layer thicknesses against a
// normative reference table.
//
// compare.go provides the pure Compare function: for every measurement it
// looks up the reference by name, computes z = (measured - mean) / std and
// classifies the layer:
//
//	|z| <= 2          Normal
//	|z| >  2, z > 0   Abnormal
//	|z| >  2, z <= 0  Thinned
//
// Compare is fail-fast and all-or-nothing: an unmatched name returns a
// *MissingReferenceError, a non-positive standard deviation returns an
// *InvalidReferenceError, and no partial results are produced.
//
// band.go maps z-scores to the display bands used by the chart renderers
// (within ±2, borderline ±3, outside).
package compare
