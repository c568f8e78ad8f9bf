package ui

import "github.com/charmbracelet/lipgloss"

// Styles renders terminal output with lipgloss. When disabled every method
// returns its input unchanged, so piped output stays byte-exact.
type Styles struct {
	enabled  bool
	path     lipgloss.Style
	dim      lipgloss.Style
	err      lipgloss.Style
	warn     lipgloss.Style
	success  lipgloss.Style
	progress lipgloss.Style
}

// NewStyles returns styles that color output only when color is true.
func NewStyles(color bool) Styles {
	return Styles{
		enabled:  color,
		path:     lipgloss.NewStyle().Bold(true),
		dim:      lipgloss.NewStyle().Foreground(lipgloss.Color("8")),
		err:      lipgloss.NewStyle().Foreground(lipgloss.Color("9")).Bold(true),
		warn:     lipgloss.NewStyle().Foreground(lipgloss.Color("11")),
		success:  lipgloss.NewStyle().Foreground(lipgloss.Color("10")),
		progress: lipgloss.NewStyle().Foreground(lipgloss.Color("12")),
	}
}

func (s Styles) render(st lipgloss.Style, text string) string {
	if !s.enabled {
		return text
	}
	return st.Render(text)
}

func (s Styles) Path(text string) string     { return s.render(s.path, text) }
func (s Styles) Dim(text string) string      { return s.render(s.dim, text) }
func (s Styles) Error(text string) string    { return s.render(s.err, text) }
func (s Styles) Warn(text string) string     { return s.render(s.warn, text) }
func (s Styles) Success(text string) string  { return s.render(s.success, text) }
func (s Styles) Progress(text string) string { return s.render(s.progress, text) }
