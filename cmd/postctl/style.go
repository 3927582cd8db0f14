package main

import (
	"fmt"
	"io"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"

	"github.com/works-s/postsmith/internal/domain"
)

var (
	headingStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("39"))
	dimStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("245"))
	warnStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("214"))
	errorStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("196")).Bold(true)
)

func heading(w io.Writer, s string) {
	fmt.Fprintln(w, headingStyle.Render(s))
}

// renderTable writes rows under headers with a rounded border.
func renderTable(w io.Writer, headers []string, rows [][]string) {
	t := table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(dimStyle).
		Headers(headers...).
		Rows(rows...)
	fmt.Fprintln(w, t.Render())
}

// lengthBadge renders a post's character count colored by its level.
func lengthBadge(p domain.Post) string {
	s := fmt.Sprintf("%d文字", p.Length())
	switch p.Level() {
	case domain.LengthTooLong:
		return errorStyle.Render(s)
	case domain.LengthWarning:
		return warnStyle.Render(s)
	default:
		return dimStyle.Render(s)
	}
}
