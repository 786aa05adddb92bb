package tui

import (
	"strings"

	"github.com/charmbracelet/lipgloss"
)

// Styles used throughout the TUI.
var (
	styleStatusBar = lipgloss.NewStyle().
			Background(lipgloss.Color("236")).
			Foreground(lipgloss.Color("252")).
			Bold(true)

	styleInputPrompt = lipgloss.NewStyle().
				Foreground(lipgloss.Color("34"))

	stylePlain = lipgloss.NewStyle().
			Foreground(lipgloss.Color("255"))

	styleTransition = lipgloss.NewStyle().
			Foreground(lipgloss.Color("228"))

	styleSystem = lipgloss.NewStyle().
			Foreground(lipgloss.Color("243"))

	styleError = lipgloss.NewStyle().
			Foreground(lipgloss.Color("196"))

	styleOperatorInput = lipgloss.NewStyle().
				Foreground(lipgloss.Color("34"))

	styleTrace = lipgloss.NewStyle().
			Foreground(lipgloss.Color("240"))
)

// stateStyles colors the state word of an encounter row.
var stateStyles = map[string]lipgloss.Style{
	"not_started": lipgloss.NewStyle().Foreground(lipgloss.Color("243")),
	"in_progress": lipgloss.NewStyle().Foreground(lipgloss.Color("214")).Bold(true),
	"fail":        lipgloss.NewStyle().Foreground(lipgloss.Color("196")),
	"done":        lipgloss.NewStyle().Foreground(lipgloss.Color("42")),
	"special":     lipgloss.NewStyle().Foreground(lipgloss.Color("111")),
}

// lineKind identifies the type of an output line for styling.
type lineKind int

const (
	kindPlain lineKind = iota
	kindEncounterRow
	kindTransition
	kindSystem
	kindError
	kindTrace
)

var errorPrefixes = []string{"usage:", "unknown command", "rejected", "no ", "bad ", "nothing with"}

// classifyLine determines what kind of output line this is.
func classifyLine(line string) lineKind {
	lower := strings.ToLower(line)
	switch {
	case strings.HasPrefix(line, "[trace]"):
		return kindTrace
	case strings.HasPrefix(line, "[") && strings.HasSuffix(line, "]"):
		return kindSystem
	case hasAnyPrefix(lower, errorPrefixes), strings.Contains(lower, "not a number"):
		return kindError
	case strings.Contains(line, " -> "):
		return kindTransition
	case strings.HasPrefix(line, "  ") && stateWord(line) != "":
		return kindEncounterRow
	default:
		return kindPlain
	}
}

func hasAnyPrefix(s string, prefixes []string) bool {
	for _, p := range prefixes {
		if strings.HasPrefix(s, p) {
			return true
		}
	}
	return false
}

// stateWord returns the first state name among the fields of line.
func stateWord(line string) string {
	for _, f := range strings.Fields(line) {
		if _, ok := stateStyles[f]; ok {
			return f
		}
	}
	return ""
}

// styledEncounterRow renders an encounter table row with its state colored.
func styledEncounterRow(line string) string {
	word := stateWord(line)
	i := strings.Index(line, word)
	if word == "" || i < 0 {
		return stylePlain.Render(line)
	}
	return stylePlain.Render(line[:i]) + stateStyles[word].Render(word) + stylePlain.Render(line[i+len(word):])
}

// styledSystemMsg renders a system message in gray with brackets.
func styledSystemMsg(text string) string {
	return styleSystem.Render("[" + text + "]")
}
