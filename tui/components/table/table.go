// Package table renders store listings with lipgloss tables.
package table

import (
	"github.com/charmbracelet/lipgloss"
	ltable "github.com/charmbracelet/lipgloss/table"
	"github.com/grovetools/storefront/pkg/models"
	"github.com/grovetools/storefront/tui/theme"
)

// Headers are the column titles of a store table.
var Headers = []string{"NAME", "STATUS", "URL", "ADMIN", "CREATED", "ID"}

// NewStyledTable creates a bordered table with the theme's header style.
func NewStyledTable(t *theme.Theme) *ltable.Table {
	if t == nil {
		t = theme.DefaultTheme
	}
	return ltable.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(lipgloss.NewStyle().Foreground(t.Colors.Border)).
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == ltable.HeaderRow {
				return t.Bold.Padding(0, 1)
			}
			return lipgloss.NewStyle().Padding(0, 1)
		})
}

// Row returns the table cells for one store. Passwords are never shown.
func Row(s models.Store) []string {
	created := "-"
	if !s.CreatedAt.IsZero() {
		created = s.CreatedAt.UTC().Format("2006-01-02 15:04")
	}
	return []string{s.Name, string(s.Status), dash(s.URL), dash(s.AdminUser), created, s.ID}
}

// RenderStores renders stores in directory order.
func RenderStores(t *theme.Theme, stores []models.Store) string {
	return RenderSelected(t, stores, -1)
}

// RenderSelected renders stores with the row at index selected highlighted.
// A negative index highlights nothing.
func RenderSelected(t *theme.Theme, stores []models.Store, selected int) string {
	if t == nil {
		t = theme.DefaultTheme
	}
	tbl := NewStyledTable(t).Headers(Headers...)
	if selected >= 0 {
		tbl.StyleFunc(func(row, col int) lipgloss.Style {
			switch {
			case row == ltable.HeaderRow:
				return t.Bold.Padding(0, 1)
			case row == selected:
				return t.Selected.Padding(0, 1)
			}
			return lipgloss.NewStyle().Padding(0, 1)
		})
	}
	for i, s := range stores {
		cells := Row(s)
		if i != selected {
			cells[1] = t.StatusStyle(cells[1]).Render(cells[1])
		}
		tbl.Row(cells...)
	}
	return tbl.Render()
}

func dash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
