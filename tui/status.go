package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/nathoo/instancecore/engine"
	"github.com/nathoo/instancecore/types"
)

// progress returns how many four-way encounters are Done, and the name of
// the first one in progress.
func progress(s engine.Snapshot) (done, total int, active string) {
	for _, e := range s.Encounters {
		switch e.State {
		case types.Special:
			continue
		case types.Done:
			done++
		case types.InProgress:
			if active == "" {
				active = e.Name
			}
		}
		total++
	}
	return done, total, active
}

// renderStatusBar produces a full-width inverted status line showing the
// instance, progression, affiliation and the simulated clock.
func (m Model) renderStatusBar() string {
	s := m.session.Snapshot()
	done, total, active := progress(s)

	left := fmt.Sprintf(" %s | %d/%d done", s.Instance, done, total)
	if active != "" {
		left += " | engaged: " + active
	}

	clock := fmt.Sprintf("%.1fs", s.Clock.Seconds())
	switch {
	case m.paused:
		clock += " (paused)"
	case !s.TimersActive:
		clock += " (frozen)"
	}
	aff := string(s.Affiliation)
	if aff == "" {
		aff = "neutral"
	}
	right := fmt.Sprintf("%s | T:%s ", aff, clock)

	// Show queued timers if they fit.
	if len(s.Timers) > 0 {
		names := make([]string, 0, len(s.Timers))
		for _, t := range s.Timers {
			names = append(names, t.Type)
		}
		candidate := fmt.Sprintf("Q: %s | %s", strings.Join(names, ","), right)
		if lipgloss.Width(left)+lipgloss.Width(candidate)+2 < m.width {
			right = candidate
		} else {
			right = fmt.Sprintf("Q: %d | %s", len(s.Timers), right)
		}
	}

	gap := m.width - lipgloss.Width(left) - lipgloss.Width(right)
	if gap < 0 {
		gap = 0
	}

	bar := left + strings.Repeat(" ", gap) + right
	return styleStatusBar.Width(m.width).Render(bar)
}
