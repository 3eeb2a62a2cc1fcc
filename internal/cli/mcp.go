package cli

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/nyameri/octreport/internal/config"
	octmcp "github.com/nyameri/octreport/internal/mcp"
	"github.com/nyameri/octreport/internal/store"
)

func newMCPCmd(v *viper.Viper) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "mcp",
		Short: "Start the octreport MCP server on stdio",
		Long: `Start the octreport MCP (Model Context Protocol) server on stdio.

The server exposes compare_layers, list_analyses and get_analysis to AI
assistants. Analyses come from every source of --config, or from the single
dataset given by --layers and --normative. They are loaded once at startup.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			var cfg *config.Config
			if path := v.GetString("config"); path != "" {
				loaded, err := config.Load(path)
				if err != nil {
					return err
				}
				cfg = loaded
			} else {
				if err := requireFlags(v, "layers", "normative"); err != nil {
					return fmt.Errorf("%w (or use --config)", err)
				}
				cfg = localConfig(v)
			}

			st := store.New()
			p, err := newPipeline(cfg, st)
			if err != nil {
				return err
			}
			if failed := p.refreshAll(cmd.Context(), nil); failed > 0 {
				slog.Warn("mcp: some sources failed to load", "failed", failed)
			}

			srv := octmcp.NewServer(st, appVersion)
			if err := srv.Run(cmd.Context()); err != nil {
				return fmt.Errorf("running MCP server: %w", err)
			}
			return nil
		},
	}
	cmd.Flags().String("config", "", "path to config file")
	addDatasetFlags(cmd)
	return cmd
}
