// Package tui provides a Bubble Tea dashboard for an operator console
// session: scrolling command log, status bar and an automatic clock.
package tui

import (
	"fmt"
	"io"
	"strings"
)

// History keeps submitted commands with cursor-based navigation. The oldest
// entry is dropped once max is reached.
type History struct {
	entries []string
	max     int
	cursor  int // -1 = not navigating, 0..len-1 = position in entries
}

// NewHistory creates a history buffer with the given maximum size.
func NewHistory(max int) *History {
	return &History{
		entries: make([]string, 0, max),
		max:     max,
		cursor:  -1,
	}
}

// Push adds a command to history. Consecutive duplicates are skipped.
func (h *History) Push(cmd string) {
	if n := len(h.entries); n > 0 && h.entries[n-1] == cmd {
		return
	}
	h.entries = append(h.entries, cmd)
	if len(h.entries) > h.max {
		h.entries = h.entries[1:]
	}
}

// Prev moves towards older entries. It reports false on an empty history.
func (h *History) Prev() (string, bool) {
	if len(h.entries) == 0 {
		return "", false
	}
	switch {
	case h.cursor == -1:
		h.cursor = len(h.entries) - 1
	case h.cursor > 0:
		h.cursor--
	}
	return h.entries[h.cursor], true
}

// Next moves towards newer entries. Stepping past the newest returns to
// fresh input and reports false.
func (h *History) Next() (string, bool) {
	if h.cursor == -1 {
		return "", false
	}
	h.cursor++
	if h.cursor >= len(h.entries) {
		h.cursor = -1
		return "", false
	}
	return h.entries[h.cursor], true
}

// ResetCursor leaves navigation mode.
func (h *History) ResetCursor() {
	h.cursor = -1
}

// Len returns the number of stored commands.
func (h *History) Len() int {
	return len(h.entries)
}

// WriteScript writes the console commands in history as a script that the
// plain console replays with --script. Meta commands and repeats are left
// out. It returns the number of commands written.
func (h *History) WriteScript(w io.Writer, instance string) (int, error) {
	if _, err := fmt.Fprintf(w, "# %s session\n", instance); err != nil {
		return 0, err
	}
	n := 0
	for _, cmd := range h.entries {
		lower := strings.ToLower(cmd)
		if strings.HasPrefix(cmd, "/") || lower == "again" || lower == "g" {
			continue
		}
		if _, err := fmt.Fprintln(w, cmd); err != nil {
			return n, err
		}
		n++
	}
	return n, nil
}
