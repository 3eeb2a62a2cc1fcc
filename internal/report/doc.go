// Package report validates clinical report forms and renders them, together
// with an analysis, as a PDF.
//
// A Form carries everything the clinician supplies: patient details, scan
// details, notes, diagnosis and follow-up. DefaultForm pre-fills it from an
// analysis. Form.Validate reports every invalid field at once.
//
// Write lays out the report with go-pdf/fpdf on A4 pages: patient and scan
// information, quality score, layer thickness table, normative comparison,
// clinical assessment, diagnosis and follow-up recommendation. Text is
// translated to cp1252 so the micro sign renders with the core fonts.
package report
