// Package render draws analyses for the terminal with lipgloss.
package render
