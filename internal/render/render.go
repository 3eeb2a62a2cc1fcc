package render

import (
	"fmt"
	"math"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"

	"github.com/nyameri/octreport/internal/analysis"
	"github.com/nyameri/octreport/internal/compare"
	"github.com/nyameri/octreport/pkg/types"
)

var (
	headerStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("62")).Padding(0, 1)
	cellStyle   = lipgloss.NewStyle().Padding(0, 1)
	borderStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("240"))

	withinStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("46"))
	borderlineStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("214"))
	outsideStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("196")).Bold(true)
	mutedStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
)

// BandStyle returns the colour used for a z-score band.
func BandStyle(b compare.Band) lipgloss.Style {
	switch b {
	case compare.BandWithin:
		return withinStyle
	case compare.BandBorderline:
		return borderlineStyle
	default:
		return outsideStyle
	}
}

func newTable(headers ...string) *table.Table {
	return table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(borderStyle).
		Headers(headers...).
		StyleFunc(func(row, _ int) lipgloss.Style {
			if row == table.HeaderRow {
				return headerStyle
			}
			return cellStyle
		})
}

// ComparisonTable renders the normative comparison, one row per layer.
func ComparisonTable(results []types.ComparisonResult) string {
	t := newTable("Layer", "Measured (µm)", "Normative (µm)", "Z-Score", "Status")
	for _, r := range results {
		t.Row(
			r.Name,
			fmt.Sprintf("%.1f", r.MeasuredUM),
			fmt.Sprintf("%.1f", r.NormativeUM),
			fmt.Sprintf("%.2f", r.ZScore),
			BandStyle(compare.BandOf(r.ZScore)).Render(string(r.Status)),
		)
	}
	return t.String()
}

// ThicknessTable renders the measured layers followed by the total.
func ThicknessTable(layers []types.Layer, totalUM float64) string {
	t := newTable("Layer", "Thickness (µm)")
	for _, l := range layers {
		t.Row(l.Name, fmt.Sprintf("%.1f", l.ThicknessUM))
	}
	t.Row("Total Retinal Thickness", fmt.Sprintf("%.1f", totalUM))
	return t.String()
}

// axisZ is the z-score at either end of the bar chart.
const axisZ = 4.0

// ZScoreBars draws one horizontal bar per layer, centred on z = 0 and
// coloured by band. width is the width of the bar area in cells.
func ZScoreBars(results []types.ComparisonResult, width int) string {
	if width < 9 {
		width = 9
	}
	half := width / 2

	nameWidth := 0
	for _, r := range results {
		nameWidth = max(nameWidth, lipgloss.Width(analysis.ShortName(r.Name)))
	}

	var b strings.Builder
	for _, r := range results {
		z := math.Max(-axisZ, math.Min(axisZ, r.ZScore))
		n := int(math.Round(math.Abs(z) / axisZ * float64(half)))

		left := strings.Repeat(" ", half)
		right := strings.Repeat(" ", half)
		bar := strings.Repeat("█", n)
		style := BandStyle(compare.BandOf(r.ZScore))
		if z < 0 {
			left = strings.Repeat(" ", half-n) + style.Render(bar)
		} else {
			right = style.Render(bar) + strings.Repeat(" ", half-n)
		}

		fmt.Fprintf(&b, "%-*s %s│%s %+.2f\n", nameWidth, analysis.ShortName(r.Name), left, right, r.ZScore)
	}
	fmt.Fprintf(&b, "%-*s %s\n", nameWidth, "", mutedStyle.Render(axisLabel(half)))
	return b.String()
}

func axisLabel(half int) string {
	lo, hi := fmt.Sprintf("%.0f", -axisZ), fmt.Sprintf("+%.0f", axisZ)
	pad := 2*half + 1 - len(lo) - len(hi) - 1
	if pad < 2 {
		return lo + " 0 " + hi
	}
	left := pad / 2
	return lo + strings.Repeat(" ", left) + "0" + strings.Repeat(" ", pad-left) + hi
}

// QualityLine renders the quality score and grade on one line.
func QualityLine(q analysis.Quality) string {
	var style lipgloss.Style
	var text string
	switch q.Grade {
	case analysis.GradeExcellent:
		style, text = withinStyle, "Excellent scan quality"
	case analysis.GradeAcceptable:
		style, text = borderlineStyle, "Acceptable scan quality"
	default:
		style, text = outsideStyle, "Poor scan quality - consider rescanning"
	}
	return fmt.Sprintf("Quality Score: %.1f%%  %s", q.Score*100, style.Render(text))
}

// LevelStyle returns the colour used for a finding level.
func LevelStyle(level string) lipgloss.Style {
	switch level {
	case analysis.LevelCritical:
		return outsideStyle
	case analysis.LevelWarning:
		return borderlineStyle
	case analysis.LevelOK:
		return withinStyle
	default:
		return mutedStyle
	}
}

// Findings renders findings as a bulleted list.
func Findings(findings []analysis.Finding) string {
	var b strings.Builder
	for _, f := range findings {
		label := LevelStyle(f.Level).Render(fmt.Sprintf("[%s]", strings.ToUpper(f.Level)))
		fmt.Fprintf(&b, "%s %s\n    %s\n", label, f.Title, f.Detail)
	}
	return b.String()
}
