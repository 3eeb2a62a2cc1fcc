package cli

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/nyameri/octreport/internal/compare"
	"github.com/nyameri/octreport/internal/dataset"
	"github.com/nyameri/octreport/internal/render"
	"github.com/nyameri/octreport/pkg/types"
)

// compareJSON is the --format json output of compare.
type compareJSON struct {
	Results []types.ComparisonResult `json:"results"`
	Summary compare.Summary          `json:"summary"`
}

func newCompareCmd(v *viper.Viper) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "compare",
		Short: "Compare a layer export against a normative table",
		Long: `Compare every measured layer of a layer export against its normative
reference and print the z-score and status of each layer.

Exits with status 1 when a layer has no reference or a reference has a
non-positive standard deviation.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := requireFlags(v, "layers", "normative"); err != nil {
				return err
			}
			format := v.GetString("format")
			if format != "table" && format != "json" {
				return fmt.Errorf("invalid --format %q: must be table or json", format)
			}

			exp, err := dataset.LoadLayers(v.GetString("layers"))
			if err != nil {
				return err
			}
			norm, err := dataset.LoadNormative(v.GetString("normative"))
			if err != nil {
				return err
			}

			results, err := compare.Compare(exp.Measurements(), norm.Reference())
			if err == nil {
				err = compare.CheckFinite(results)
			}
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if format == "json" {
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				return enc.Encode(compareJSON{Results: results, Summary: compare.Summarize(results)})
			}

			s := compare.Summarize(results)
			fmt.Fprintln(out, render.ComparisonTable(results))
			fmt.Fprintln(out)
			fmt.Fprint(out, render.ZScoreBars(results, 40))
			fmt.Fprintf(out, "\n%d layers: %d normal, %d thinned, %d abnormal\n", s.Total, s.Normal, s.Thinned, s.Abnormal)
			return nil
		},
	}
	cmd.Flags().String("layers", "", "layer export file (required)")
	cmd.Flags().String("normative", "", "normative reference table (required)")
	cmd.Flags().String("format", "table", "output format: table or json")
	return cmd
}
