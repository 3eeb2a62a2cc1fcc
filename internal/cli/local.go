package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/nyameri/octreport/internal/analysis"
	"github.com/nyameri/octreport/internal/config"
	"github.com/nyameri/octreport/internal/store"
)

// localSourceID names the single source built from --layers/--normative.
const localSourceID = "local"

// addDatasetFlags registers the flags that select a single dataset.
func addDatasetFlags(cmd *cobra.Command) {
	cmd.Flags().String("layers", "", "layer export file or http(s) URL (required)")
	cmd.Flags().String("normative", "", "normative reference table (required)")
	cmd.Flags().String("scans", "", "optional scan export file")
}

// requireFlags fails when any of keys resolves to an empty value through
// flags or environment.
func requireFlags(v *viper.Viper, keys ...string) error {
	for _, k := range keys {
		if v.GetString(k) == "" {
			return fmt.Errorf("--%s is required", k)
		}
	}
	return nil
}

// localConfig builds a one-source configuration from dataset flags.
func localConfig(v *viper.Viper) *config.Config {
	return &config.Config{
		Data: config.DataConfig{
			Normative: v.GetString("normative"),
			Sources: []config.Source{{
				ID:     localSourceID,
				Layers: v.GetString("layers"),
				Scans:  v.GetString("scans"),
			}},
		},
		ThicknessMap: config.ThicknessMapConfig{Size: config.DefaultMapSize, StdUM: config.DefaultMapStdUM},
		Report:       config.ReportConfig{Footer: config.DefaultReportFooter},
	}
}

// loadLocal loads and analyses the dataset selected by the dataset flags.
func loadLocal(ctx context.Context, v *viper.Viper) (*analysis.Analysis, error) {
	if err := requireFlags(v, "layers", "normative"); err != nil {
		return nil, err
	}
	cfg := localConfig(v)
	st := store.New()
	p, err := newPipeline(cfg, st)
	if err != nil {
		return nil, err
	}
	if err := p.refresh(ctx, cfg.Data.Sources[0]); err != nil {
		return nil, err
	}
	e, _ := st.Get(localSourceID)
	return e.Analysis, nil
}
