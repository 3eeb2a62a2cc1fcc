package cli

import (
	"fmt"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/nyameri/octreport/internal/analysis"
	"github.com/nyameri/octreport/internal/config"
	"github.com/nyameri/octreport/internal/render"
)

// Dashboard tab indices.
const (
	tabThickness = iota
	tabNormative
	tabQuality
	tabFindings
	tabCount
)

var tabNames = [tabCount]string{"Thickness", "Normative", "Quality", "Findings"}

// mapCells is the edge length of the thickness map drawn in the terminal.
const mapCells = 16

// mapShades goes from thinnest to thickest.
var mapShades = []rune(" ░▒▓█")

type dashboardModel struct {
	activeTab int
	width     int
	height    int

	load func() (*analysis.Analysis, error)

	// Data.
	analysis *analysis.Analysis
	tmap     *analysis.Map

	// State.
	loading bool
	err     error
}

// analysisLoadedMsg carries a (re)loaded analysis back to the model.
type analysisLoadedMsg struct {
	analysis *analysis.Analysis
	err      error
}

// Style definitions.
var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("230")).
			Background(lipgloss.Color("62")).
			Padding(0, 1)

	tabStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("245")).
			Padding(0, 2)

	activeTabStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("230")).
			Background(lipgloss.Color("62")).
			Padding(0, 2)

	panelStyle = lipgloss.NewStyle().
			BorderStyle(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("62")).
			Padding(1, 2)

	errorStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("196")).Bold(true)
	helpStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
)

func newDashboardModel(load func() (*analysis.Analysis, error)) dashboardModel {
	return dashboardModel{
		activeTab: tabThickness,
		load:      load,
		loading:   true,
	}
}

func (m dashboardModel) loadCmd() tea.Cmd {
	load := m.load
	return func() tea.Msg {
		a, err := load()
		return analysisLoadedMsg{analysis: a, err: err}
	}
}

func (m dashboardModel) Init() tea.Cmd {
	return m.loadCmd()
}

func (m dashboardModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "esc", "ctrl+c":
			return m, tea.Quit
		case "tab", "right", "l":
			m.activeTab = (m.activeTab + 1) % tabCount
			return m, nil
		case "shift+tab", "left", "h":
			m.activeTab = (m.activeTab - 1 + tabCount) % tabCount
			return m, nil
		case "1", "2", "3", "4":
			m.activeTab = int(msg.String()[0] - '1')
			return m, nil
		case "r":
			m.loading = true
			return m, m.loadCmd()
		}

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		return m, nil

	case analysisLoadedMsg:
		m.loading = false
		if msg.err != nil {
			// Keep showing the previous analysis, if any.
			m.err = msg.err
			return m, nil
		}
		m.analysis = msg.analysis
		m.err = nil
		m.tmap, _ = analysis.ThicknessMap(msg.analysis.TotalThicknessUM, config.DefaultMapStdUM, mapCells, analysis.NewRand(0))
		return m, nil
	}

	return m, nil
}

func (m dashboardModel) View() string {
	if m.width == 0 {
		return "Loading..."
	}

	title := titleStyle.Render(" OCT Analysis Dashboard ")
	help := helpStyle.Render("tab/←→/1-4: switch tab | r: reload | q: quit")

	var status string
	switch {
	case m.loading:
		status = "  Loading data..."
	case m.err != nil:
		status = errorStyle.Render("  Error: " + m.err.Error())
	}

	if m.analysis == nil {
		return fmt.Sprintf("%s\n\n%s\n\n%s", title, status, help)
	}

	width := max(m.width-6, 40)
	body := panelStyle.Width(width).Render(m.renderTab(width - 4))

	out := fmt.Sprintf("%s  %s\n\n%s\n%s\n", title, m.subtitle(), m.renderTabs(), body)
	if status != "" {
		out += status + "\n"
	}
	return out + "\n" + help
}

func (m dashboardModel) subtitle() string {
	a := m.analysis
	if a.Scan == nil {
		return helpStyle.Render(a.SourceID)
	}
	return helpStyle.Render(fmt.Sprintf("%s | scan %s | %s", a.SourceID, a.Scan.ScanDate, a.Scan.Eye))
}

func (m dashboardModel) renderTabs() string {
	tabs := make([]string, tabCount)
	for i, name := range tabNames {
		style := tabStyle
		if i == m.activeTab {
			style = activeTabStyle
		}
		tabs[i] = style.Render(fmt.Sprintf("%d %s", i+1, name))
	}
	return lipgloss.JoinHorizontal(lipgloss.Top, tabs...)
}

func (m dashboardModel) renderTab(width int) string {
	a := m.analysis
	switch m.activeTab {
	case tabThickness:
		return m.renderThicknessTab()
	case tabNormative:
		if a.Failed() {
			return errorStyle.Render("Normative comparison unavailable") + "\n\n" + a.Error
		}
		return render.ComparisonTable(a.Comparison) + "\n\n" + render.ZScoreBars(a.Comparison, min(width-30, 60))
	case tabQuality:
		return m.renderQualityTab()
	default:
		return render.Findings(a.Findings) + "\n" + analysis.ClinicalSummary(a)
	}
}

func (m dashboardModel) renderThicknessTab() string {
	var b strings.Builder
	b.WriteString(render.ThicknessTable(m.analysis.Layers, m.analysis.TotalThicknessUM))
	if m.tmap != nil {
		b.WriteString("\n\nSimulated thickness map\n")
		b.WriteString(renderMap(m.tmap))
		fmt.Fprintf(&b, "%s %.1f µm .. %.1f µm",
			helpStyle.Render(string(mapShades)), m.tmap.MinUM, m.tmap.MaxUM)
	}
	return b.String()
}

func (m dashboardModel) renderQualityTab() string {
	a := m.analysis
	var b strings.Builder
	b.WriteString(render.QualityLine(a.Quality))
	b.WriteString("\n\n")
	fmt.Fprintf(&b, "Software:    %s\n", orNA(a.Software))
	fmt.Fprintf(&b, "Exported at: %s\n", orNA(a.ExportedAt))
	if s := a.Scan; s != nil {
		fmt.Fprintf(&b, "Scan:        #%d, patient %d, %s %s (%s)\n", s.ID, s.PatientID, s.ScanDate, s.Eye, s.ScanType)
		if s.Notes != "" {
			fmt.Fprintf(&b, "Notes:       %s\n", s.Notes)
		}
	}
	return b.String()
}

// renderMap draws m with one shade per cell, two columns wide.
func renderMap(m *analysis.Map) string {
	span := m.MaxUM - m.MinUM
	var b strings.Builder
	for _, row := range m.Values {
		for _, v := range row {
			i := 0
			if span > 0 {
				i = int((v - m.MinUM) / span * float64(len(mapShades)-1))
			}
			r := string(mapShades[i])
			b.WriteString(r + r)
		}
		b.WriteByte('\n')
	}
	return b.String()
}

func orNA(s string) string {
	if s == "" {
		return "n/a"
	}
	return s
}

func newDashboardCmd(v *viper.Viper) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "dashboard",
		Short: "Interactive terminal dashboard for one dataset",
		Long: `Launch an interactive terminal dashboard with the layer thicknesses, the
normative comparison, scan quality and findings of one dataset.

Switch tabs with Tab or the arrow keys, reload the files with r, quit with q.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := requireFlags(v, "layers", "normative"); err != nil {
				return err
			}
			ctx := cmd.Context()
			load := func() (*analysis.Analysis, error) { return loadLocal(ctx, v) }

			p := tea.NewProgram(newDashboardModel(load), tea.WithAltScreen())
			_, err := p.Run()
			return err
		},
	}
	addDatasetFlags(cmd)
	return cmd
}
