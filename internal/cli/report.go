package cli

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/nyameri/octreport/internal/config"
	"github.com/nyameri/octreport/internal/report"
)

func newReportCmd(v *viper.Viper) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "report",
		Short: "Write a clinical PDF report for a dataset",
		Long: `Analyse a dataset and write the OCT analysis report as a PDF.

Form fields not given on the command line are pre-filled from the analysis:
scan date and eye from the scan export, clinical notes from the generated
findings, and a 12-month follow-up.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := loadLocal(cmd.Context(), v)
			if err != nil {
				return err
			}

			form := applyFormFlags(report.DefaultForm(a), v)

			out := v.GetString("out")
			if out == "" {
				out = report.FileName(form.PatientID)
			}

			f, err := os.Create(out)
			if err != nil {
				return fmt.Errorf("creating report file: %w", err)
			}
			opts := report.Options{Footer: v.GetString("footer")}
			if err := report.Write(f, form, a, opts); err != nil {
				f.Close()
				os.Remove(out) //nolint:errcheck
				return err
			}
			if err := f.Close(); err != nil {
				return fmt.Errorf("closing report file: %w", err)
			}

			slog.Info("report: written", "path", out, "patient_id", form.PatientID)
			fmt.Fprintf(cmd.OutOrStdout(), "Report written to %s\n", out)
			return nil
		},
	}

	addDatasetFlags(cmd)
	cmd.Flags().String("out", "", "output PDF path (default oct_report_<patient-id>.pdf)")
	cmd.Flags().String("footer", config.DefaultReportFooter, "page footer text")

	cmd.Flags().String("patient-id", "", "patient ID")
	cmd.Flags().String("patient-name", "", "patient name")
	cmd.Flags().String("dob", "", "date of birth (YYYY-MM-DD)")
	cmd.Flags().String("gender", "", "gender: Male, Female or Other")
	cmd.Flags().String("scan-date", "", "scan date (YYYY-MM-DD)")
	cmd.Flags().String("eye", "", `eye: "OD (Right)" or "OS (Left)"`)
	cmd.Flags().String("scan-type", "", "scan type: Macula, Optic Nerve Head or Widefield")
	cmd.Flags().String("notes", "", "clinical notes (default generated summary)")
	cmd.Flags().String("diagnosis", "", "diagnosis, e.g. Normal, Dry AMD, Other")
	cmd.Flags().String("other-diagnosis", "", "diagnosis text when --diagnosis is Other")
	cmd.Flags().Int("follow-up", 0, "recommended follow-up in months (1-24)")
	return cmd
}

// applyFormFlags overrides the fields of f that were set by flag or
// environment.
func applyFormFlags(f report.Form, v *viper.Viper) report.Form {
	strs := []struct {
		key string
		dst *string
	}{
		{"patient-id", &f.PatientID},
		{"patient-name", &f.PatientName},
		{"dob", &f.DateOfBirth},
		{"gender", &f.Gender},
		{"scan-date", &f.ScanDate},
		{"eye", &f.Eye},
		{"scan-type", &f.ScanType},
		{"notes", &f.ClinicalNotes},
		{"diagnosis", &f.Diagnosis},
		{"other-diagnosis", &f.OtherDiagnosis},
	}
	for _, s := range strs {
		if v.IsSet(s.key) {
			*s.dst = v.GetString(s.key)
		}
	}
	if v.IsSet("follow-up") {
		f.FollowUpMonths = v.GetInt("follow-up")
	}
	if f.Diagnosis != "Other" && !v.IsSet("other-diagnosis") {
		f.OtherDiagnosis = ""
	}
	return f
}
