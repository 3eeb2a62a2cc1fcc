package report

import (
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/hashicorp/go-multierror"

	"github.com/nyameri/octreport/internal/analysis"
)

// Accepted choice values.
var (
	Genders   = []string{"Male", "Female", "Other"}
	Eyes      = []string{"OD (Right)", "OS (Left)"}
	ScanTypes = []string{"Macula", "Optic Nerve Head", "Widefield"}
	Diagnoses = []string{"Normal", "Dry AMD", "Wet AMD", "Diabetic Macular Edema", "Macular Hole", "Epiretinal Membrane", "Other"}
)

// Follow-up bounds in months, and the interval DefaultForm proposes.
const (
	MinFollowUp           = 1
	MaxFollowUp           = 24
	DefaultFollowUpMonths = 12
)

// Form is the clinician-supplied part of a report.
type Form struct {
	PatientID   string `json:"patient_id"`
	PatientName string `json:"patient_name"`
	DateOfBirth string `json:"date_of_birth,omitempty"` // YYYY-MM-DD
	Gender      string `json:"gender"`

	ScanDate string `json:"scan_date"` // YYYY-MM-DD
	Eye      string `json:"eye"`
	ScanType string `json:"scan_type"`

	ClinicalNotes  string `json:"clinical_notes"`
	Diagnosis      string `json:"diagnosis"`
	OtherDiagnosis string `json:"other_diagnosis,omitempty"`
	FollowUpMonths int    `json:"follow_up_months"`
}

// DiagnosisText returns the diagnosis as printed on the report.
func (f Form) DiagnosisText() string {
	if f.Diagnosis == "Other" && strings.TrimSpace(f.OtherDiagnosis) != "" {
		return "Other: " + strings.TrimSpace(f.OtherDiagnosis)
	}
	return f.Diagnosis
}

// Validate checks every field and returns all problems together.
func (f Form) Validate() error {
	var merr *multierror.Error
	add := func(format string, args ...any) {
		merr = multierror.Append(merr, fmt.Errorf(format, args...))
	}

	if strings.TrimSpace(f.PatientID) == "" {
		add("patient_id is required")
	} else if strings.ContainsAny(f.PatientID, `/\`) {
		add("patient_id %q must not contain path separators", f.PatientID)
	}
	if f.DateOfBirth != "" {
		if _, err := time.Parse(time.DateOnly, f.DateOfBirth); err != nil {
			add("date_of_birth %q is not YYYY-MM-DD", f.DateOfBirth)
		}
	}
	if !slices.Contains(Genders, f.Gender) {
		add("gender %q: want one of %s", f.Gender, strings.Join(Genders, ", "))
	}

	if _, err := time.Parse(time.DateOnly, f.ScanDate); err != nil {
		add("scan_date %q is not YYYY-MM-DD", f.ScanDate)
	} else if f.DateOfBirth != "" && f.DateOfBirth > f.ScanDate {
		add("date_of_birth %s is after scan_date %s", f.DateOfBirth, f.ScanDate)
	}
	if !slices.Contains(Eyes, f.Eye) {
		add("eye %q: want one of %s", f.Eye, strings.Join(Eyes, ", "))
	}
	if !slices.Contains(ScanTypes, f.ScanType) {
		add("scan_type %q: want one of %s", f.ScanType, strings.Join(ScanTypes, ", "))
	}

	if !slices.Contains(Diagnoses, f.Diagnosis) {
		add("diagnosis %q: want one of %s", f.Diagnosis, strings.Join(Diagnoses, ", "))
	} else if f.Diagnosis == "Other" && strings.TrimSpace(f.OtherDiagnosis) == "" {
		add("other_diagnosis is required when diagnosis is Other")
	}
	if f.FollowUpMonths < MinFollowUp || f.FollowUpMonths > MaxFollowUp {
		add("follow_up_months %d is out of range [%d, %d]", f.FollowUpMonths, MinFollowUp, MaxFollowUp)
	}

	return merr.ErrorOrNil()
}

// DefaultForm pre-fills a form from a: scan date and eye from the scan export,
// the generated clinical summary, a diagnosis matching the comparison and a
// 12-month follow-up.
func DefaultForm(a *analysis.Analysis) Form {
	f := Form{
		PatientID:      "PT-" + a.SourceID,
		Gender:         Genders[0],
		ScanDate:       a.GeneratedAt.Format(time.DateOnly),
		Eye:            Eyes[0],
		ScanType:       ScanTypes[0],
		ClinicalNotes:  analysis.ClinicalSummary(a),
		Diagnosis:      "Normal",
		FollowUpMonths: DefaultFollowUpMonths,
	}
	if s := a.Scan; s != nil {
		f.PatientID = fmt.Sprintf("PT-%03d", s.PatientID)
		f.ScanDate = s.ScanDate
		f.Eye = EyeLabel(s.Eye)
		if slices.Contains(ScanTypes, s.ScanType) {
			f.ScanType = s.ScanType
		}
	}
	if a.Failed() || a.Counts().Normal != len(a.Comparison) {
		f.Diagnosis = "Other"
		f.OtherDiagnosis = "Retinal layer thickness outside normative limits"
	}
	return f
}

// EyeLabel maps an eye code from the scan export to its form label.
func EyeLabel(code string) string {
	if code == "OS" {
		return Eyes[1]
	}
	return Eyes[0]
}

// FileName returns the download name of the report for patientID.
func FileName(patientID string) string {
	return fmt.Sprintf("oct_report_%s.pdf", patientID)
}
