package report

import (
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/go-pdf/fpdf"
	"github.com/google/uuid"

	"github.com/nyameri/octreport/internal/analysis"
	"github.com/nyameri/octreport/pkg/types"
)

// Options control rendering details that do not come from the form.
type Options struct {
	// Footer is printed at the bottom of every page above the page number.
	Footer string

	// ReportID identifies the document. A random UUID is used when empty.
	ReportID string

	// Now stamps the generation time. time.Now is used when zero.
	Now time.Time

	// DisableCompression writes uncompressed content streams.
	DisableCompression bool
}

const (
	pageMargin = 15.0
	lineHeight = 8.0
	nameWidth  = 95.0
	valueWidth = 40.0
)

// ErrAnalysisFailed is returned by Write for an analysis whose comparison
// failed; there is nothing to report.
var ErrAnalysisFailed = errors.New("report: analysis has no comparison results")

// Write validates form and renders the PDF report for a to w.
func Write(w io.Writer, form Form, a *analysis.Analysis, opts Options) error {
	if err := form.Validate(); err != nil {
		return fmt.Errorf("report: invalid form: %w", err)
	}
	if a.Failed() {
		return ErrAnalysisFailed
	}
	if opts.ReportID == "" {
		opts.ReportID = uuid.New().String()
	}
	if opts.Now.IsZero() {
		opts.Now = time.Now()
	}

	pdf := fpdf.New("P", "mm", "A4", "")
	pdf.SetCompression(!opts.DisableCompression)
	pdf.SetMargins(pageMargin, pageMargin, pageMargin)
	pdf.SetAutoPageBreak(true, 25)
	pdf.SetTitle("OCT Analysis Report", false)
	pdf.SetCreator("octreport", false)
	pdf.SetCreationDate(opts.Now)
	tr := pdf.UnicodeTranslatorFromDescriptor("")

	pdf.SetHeaderFunc(func() {
		pdf.SetFont("Helvetica", "B", 12)
		pdf.CellFormat(0, 10, "OCT Analysis Report", "", 1, "C", false, 0, "")
		pdf.Ln(5)
	})
	pdf.SetFooterFunc(func() {
		pdf.SetY(-20)
		pdf.SetFont("Helvetica", "I", 7)
		if opts.Footer != "" {
			pdf.MultiCell(0, 4, tr(opts.Footer), "", "C", false)
		}
		pdf.CellFormat(0, 5, fmt.Sprintf("Page %d - Report %s", pdf.PageNo(), opts.ReportID), "", 0, "C", false, 0, "")
	})
	pdf.AddPage()

	pdf.SetFont("Helvetica", "B", 16)
	pdf.CellFormat(0, 10, "DICOM OCT Analysis Report", "", 1, "C", false, 0, "")
	pdf.SetFont("Helvetica", "", 9)
	pdf.CellFormat(0, 6, "Generated "+opts.Now.UTC().Format(time.RFC3339), "", 1, "C", false, 0, "")
	pdf.Ln(6)

	section(pdf, "Patient Information")
	field(pdf, tr, "Patient ID", form.PatientID)
	field(pdf, tr, "Name", orDash(form.PatientName))
	field(pdf, tr, "DOB", orDash(form.DateOfBirth))
	field(pdf, tr, "Gender", form.Gender)
	pdf.Ln(4)

	section(pdf, "Scan Information")
	field(pdf, tr, "Scan Date", form.ScanDate)
	field(pdf, tr, "Eye", form.Eye)
	field(pdf, tr, "Scan Type", form.ScanType)
	field(pdf, tr, "Quality Score", fmt.Sprintf("%.1f%% (%s)", a.Quality.Score*100, a.Quality.Grade))
	if a.Software != "" {
		field(pdf, tr, "Software", a.Software)
	}
	pdf.Ln(4)

	section(pdf, "Retinal Layer Thickness")
	pdf.SetFont("Helvetica", "B", 10)
	pdf.CellFormat(nameWidth, lineHeight, "Layer", "1", 0, "C", false, 0, "")
	pdf.CellFormat(valueWidth, lineHeight, tr("Thickness (µm)"), "1", 1, "C", false, 0, "")
	pdf.SetFont("Helvetica", "", 10)
	for _, l := range a.Layers {
		pdf.CellFormat(nameWidth, lineHeight, tr(l.Name), "1", 0, "L", false, 0, "")
		pdf.CellFormat(valueWidth, lineHeight, fmt.Sprintf("%.1f", l.ThicknessUM), "1", 1, "C", false, 0, "")
	}
	pdf.SetFont("Helvetica", "B", 10)
	pdf.CellFormat(nameWidth, lineHeight, "Total Retinal Thickness", "1", 0, "L", false, 0, "")
	pdf.CellFormat(valueWidth, lineHeight, fmt.Sprintf("%.1f", a.TotalThicknessUM), "1", 1, "C", false, 0, "")
	pdf.Ln(4)

	section(pdf, "Normative Comparison")
	pdf.SetFont("Helvetica", "B", 9)
	pdf.CellFormat(70, lineHeight, "Layer", "1", 0, "C", false, 0, "")
	pdf.CellFormat(28, lineHeight, tr("Measured (µm)"), "1", 0, "C", false, 0, "")
	pdf.CellFormat(28, lineHeight, tr("Normative (µm)"), "1", 0, "C", false, 0, "")
	pdf.CellFormat(22, lineHeight, "Z-Score", "1", 0, "C", false, 0, "")
	pdf.CellFormat(32, lineHeight, "Status", "1", 1, "C", false, 0, "")
	pdf.SetFont("Helvetica", "", 9)
	for _, r := range a.Comparison {
		pdf.CellFormat(70, lineHeight, tr(analysis.ShortName(r.Name)), "1", 0, "L", false, 0, "")
		pdf.CellFormat(28, lineHeight, fmt.Sprintf("%.1f", r.MeasuredUM), "1", 0, "C", false, 0, "")
		pdf.CellFormat(28, lineHeight, fmt.Sprintf("%.1f", r.NormativeUM), "1", 0, "C", false, 0, "")
		pdf.CellFormat(22, lineHeight, fmt.Sprintf("%.2f", r.ZScore), "1", 0, "C", false, 0, "")
		setStatusColor(pdf, r.Status)
		pdf.CellFormat(32, lineHeight, statusLabel(r.Status), "1", 1, "C", false, 0, "")
		pdf.SetTextColor(0, 0, 0)
	}
	pdf.SetFont("Helvetica", "I", 8)
	pdf.MultiCell(0, 5, "Status: |z| <= 2 Normal, z > 2 Abnormal, z < -2 Thinned.", "", "L", false)
	pdf.Ln(4)

	section(pdf, "Clinical Assessment")
	pdf.SetFont("Helvetica", "", 11)
	pdf.MultiCell(0, 6, tr(orDash(form.ClinicalNotes)), "", "L", false)
	pdf.Ln(4)

	section(pdf, "Diagnosis")
	pdf.SetFont("Helvetica", "", 11)
	pdf.MultiCell(0, 6, tr(form.DiagnosisText()), "", "L", false)
	pdf.Ln(4)

	section(pdf, "Follow-up Recommendation")
	pdf.SetFont("Helvetica", "", 11)
	pdf.CellFormat(0, lineHeight, fmt.Sprintf("Recommended follow-up in %d months", form.FollowUpMonths), "", 1, "L", false, 0, "")

	if err := pdf.Output(w); err != nil {
		return fmt.Errorf("report: render pdf: %w", err)
	}
	return nil
}

func section(pdf *fpdf.Fpdf, title string) {
	pdf.SetFont("Helvetica", "B", 12)
	pdf.CellFormat(0, lineHeight+2, title, "", 1, "L", false, 0, "")
}

func field(pdf *fpdf.Fpdf, tr func(string) string, label, value string) {
	pdf.SetFont("Helvetica", "", 11)
	pdf.CellFormat(0, lineHeight, tr(label+": "+value), "", 1, "L", false, 0, "")
}

func setStatusColor(pdf *fpdf.Fpdf, s types.Status) {
	switch s {
	case types.StatusThinned:
		pdf.SetTextColor(200, 30, 30)
	case types.StatusAbnormal:
		pdf.SetTextColor(220, 120, 0)
	default:
		pdf.SetTextColor(20, 130, 60)
	}
}

func statusLabel(s types.Status) string {
	if s == "" {
		return "-"
	}
	return string(s)
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
