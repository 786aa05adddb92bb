package tui

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/nathoo/instancecore/console"
	"github.com/nathoo/instancecore/engine/save"
	"github.com/nathoo/instancecore/engine/state"
	"github.com/nathoo/instancecore/types"
)

// rawLine stores an unstyled output line with its classification,
// so we can re-wrap and re-style when the terminal is resized.
type rawLine struct {
	text     string
	kind     lineKind
	isInput  bool // true for echoed operator input
	isSystem bool // true for system messages
}

// Options configures the TUI.
type Options struct {
	SaveDir string
	// Tick is the auto-advance interval of the simulated clock. Zero
	// disables it; the clock then moves only on "tick" commands.
	Tick  time.Duration
	Trace bool
}

// Model is the Bubble Tea model for the instance dashboard.
type Model struct {
	session *console.Session
	defs    *state.Defs

	viewport viewport.Model
	input    textinput.Model
	history  *History

	rawLines []rawLine // accumulated output lines (unstyled, for re-wrapping)

	width    int
	height   int
	ready    bool
	trace    bool
	paused   bool
	quitting bool
	lastCmd  string
	saveDir  string
	interval time.Duration
}

// outputMsg carries console output into the Update loop.
type outputMsg struct {
	input    string   // echoed operator input (empty for intro and ticks)
	lines    []string // output lines
	isSystem bool     // true for meta-command output
}

// tickMsg advances the simulated clock.
type tickMsg time.Time

// New creates a TUI model wired to the given session.
func New(sess *console.Session, opts Options) Model {
	ti := textinput.New()
	ti.Prompt = "> "
	ti.Focus()
	ti.CharLimit = 256
	ti.PromptStyle = styleInputPrompt

	saveDir := opts.SaveDir
	if saveDir == "" {
		home, _ := os.UserHomeDir()
		saveDir = filepath.Join(home, ".instancecore", "saves")
	}
	return Model{
		session:  sess,
		defs:     sess.Defs,
		input:    ti,
		history:  NewHistory(100),
		saveDir:  saveDir,
		interval: opts.Tick,
		trace:    opts.Trace,
	}
}

// Run starts the Bubble Tea program.
func Run(sess *console.Session, opts Options) error {
	m := New(sess, opts)
	p := tea.NewProgram(m, tea.WithAltScreen(), tea.WithMouseCellMotion())
	_, err := p.Run()
	return err
}

// Init returns the initial commands: intro text, the encounter table and
// the first clock tick.
func (m Model) Init() tea.Cmd {
	return tea.Batch(textinput.Blink, m.initialOutput(), m.scheduleTick())
}

func (m Model) initialOutput() tea.Cmd {
	return func() tea.Msg {
		var lines []string

		inst := m.defs.Instance
		title := inst.Name
		if inst.Version != "" {
			title += " v" + inst.Version
		}
		lines = append(lines, title, "")

		if inst.Intro != "" {
			lines = append(lines, inst.Intro, "")
		}

		result := m.session.Step("state")
		lines = append(lines, result.Output...)

		return outputMsg{lines: lines}
	}
}

func (m Model) scheduleTick() tea.Cmd {
	if m.interval <= 0 {
		return nil
	}
	return tea.Tick(m.interval, func(t time.Time) tea.Msg { return tickMsg(t) })
}

// Update handles messages (key presses, window resize, ticks, output).
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd

	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height

		vpHeight := m.height - 2 // 1 status bar + 1 input line
		if vpHeight < 1 {
			vpHeight = 1
		}

		if !m.ready {
			m.viewport = viewport.New(m.width, vpHeight)
			m.viewport.KeyMap = viewportKeyMap()
			m.ready = true
		} else {
			m.viewport.Width = m.width
			m.viewport.Height = vpHeight
		}

		m.refreshViewport()

	case tickMsg:
		if !m.paused {
			m = m.advance(m.interval)
		}
		return m, m.scheduleTick()

	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c":
			m.quitting = true
			return m, tea.Quit

		case "enter":
			return m.handleEnter()

		case "up":
			if prev, ok := m.history.Prev(); ok {
				m.input.SetValue(prev)
				m.input.CursorEnd()
			}
			return m, nil

		case "down":
			if next, ok := m.history.Next(); ok {
				m.input.SetValue(next)
				m.input.CursorEnd()
			} else {
				m.input.SetValue("")
				m.history.ResetCursor()
			}
			return m, nil

		case "pgup", "pgdown":
			var vpCmd tea.Cmd
			m.viewport, vpCmd = m.viewport.Update(msg)
			return m, vpCmd
		}

	case outputMsg:
		m = m.appendOutput(msg)
	}

	var inputCmd tea.Cmd
	m.input, inputCmd = m.input.Update(msg)
	cmds = append(cmds, inputCmd)

	return m, tea.Batch(cmds...)
}

// advance moves the clock and shows whatever the timers produced.
func (m Model) advance(d time.Duration) Model {
	result := m.session.Advance(d)
	lines := result.Output
	if m.trace {
		lines = append(lines, m.formatTrace(result)...)
	}
	if len(lines) == 0 {
		return m
	}
	return m.appendOutput(outputMsg{lines: lines})
}

// handleEnter processes the submitted input line.
func (m Model) handleEnter() (tea.Model, tea.Cmd) {
	input := strings.TrimSpace(m.input.Value())
	m.input.SetValue("")

	if input == "" {
		return m, nil
	}

	m.history.Push(input)
	m.history.ResetCursor()

	// Handle "again" / "g".
	lower := strings.ToLower(input)
	if lower == "again" || lower == "g" {
		if m.lastCmd == "" {
			m = m.appendOutput(outputMsg{
				input: input, lines: []string{"Nothing to repeat."}, isSystem: true,
			})
			return m, nil
		}
		input = m.lastCmd
	} else {
		m.lastCmd = input
	}

	// Meta-commands.
	if strings.HasPrefix(input, "/") {
		output, quit := m.handleMeta(input)
		m = m.appendOutput(outputMsg{input: input, lines: output, isSystem: true})
		if quit {
			m.quitting = true
			return m, tea.Quit
		}
		return m, nil
	}

	result := m.session.Step(input)
	output := result.Output
	if m.trace {
		output = append(output, m.formatTrace(result)...)
	}
	m = m.appendOutput(outputMsg{input: input, lines: output})
	return m, nil
}

// appendOutput adds lines to the log and refreshes the viewport.
func (m Model) appendOutput(msg outputMsg) Model {
	if msg.input != "" {
		m.rawLines = append(m.rawLines, rawLine{
			text: "> " + msg.input, isInput: true,
		})
	}

	for _, line := range msg.lines {
		rl := rawLine{text: line, isSystem: msg.isSystem}
		if !msg.isSystem {
			rl.kind = classifyLine(line)
		}
		m.rawLines = append(m.rawLines, rl)
	}

	// Blank line separator between commands.
	m.rawLines = append(m.rawLines, rawLine{})

	m.refreshViewport()

	return m
}

// refreshViewport re-wraps and re-styles all raw lines at the current width
// and updates the viewport content.
func (m *Model) refreshViewport() {
	if !m.ready {
		return
	}

	width := m.width
	if width < 10 {
		width = 10
	}

	var styled []string
	for _, rl := range m.rawLines {
		if rl.text == "" {
			styled = append(styled, "")
			continue
		}

		wrapped := wordWrap(rl.text, width)

		switch {
		case rl.isInput:
			styled = append(styled, styleOperatorInput.Render(wrapped))
		case rl.isSystem:
			styled = append(styled, styledSystemMsg(wrapped))
		default:
			styled = append(styled, renderLineKind(wrapped, rl.kind))
		}
	}

	m.viewport.SetContent(strings.Join(styled, "\n"))
	m.viewport.GotoBottom()
}

// renderLineKind applies the style for a given lineKind.
func renderLineKind(line string, kind lineKind) string {
	switch kind {
	case kindEncounterRow:
		return styledEncounterRow(line)
	case kindTransition:
		return styleTransition.Render(line)
	case kindSystem:
		return styleSystem.Render(line)
	case kindError:
		return styleError.Render(line)
	case kindTrace:
		return styleTrace.Render(line)
	default:
		return stylePlain.Render(line)
	}
}

// wordWrap wraps text to fit within the given width, breaking at word
// boundaries. Leading indentation is kept on the first line.
func wordWrap(text string, width int) string {
	if width <= 0 || len(text) <= width {
		return text
	}

	var result strings.Builder
	indent := text[:len(text)-len(strings.TrimLeft(text, " "))]
	result.WriteString(indent)
	words := strings.Fields(text)
	lineLen := len(indent)

	for i, word := range words {
		wLen := len(word)

		if i == 0 {
			result.WriteString(word)
			lineLen += wLen
			continue
		}

		if lineLen+1+wLen > width {
			result.WriteString("\n")
			result.WriteString(word)
			lineLen = wLen
		} else {
			result.WriteString(" ")
			result.WriteString(word)
			lineLen += 1 + wLen
		}
	}

	return result.String()
}

// View renders the full TUI layout: viewport + status bar + input.
func (m Model) View() string {
	if m.quitting {
		return ""
	}
	if !m.ready {
		return "Loading..."
	}

	return m.viewport.View() + "\n" + m.renderStatusBar() + "\n" + m.input.View()
}

// handleMeta dispatches meta-commands. Returns output lines and quit flag.
func (m *Model) handleMeta(input string) ([]string, bool) {
	parts := strings.Fields(input)
	cmd := parts[0]
	var arg string
	if len(parts) > 1 {
		arg = parts[1]
	}

	switch cmd {
	case "/quit", "/exit":
		return []string{"Goodbye."}, true

	case "/save":
		return m.cmdSave(arg), false

	case "/load":
		return m.cmdLoad(arg), false

	case "/export":
		return m.cmdExport(arg), false

	case "/help":
		return m.cmdHelp(), false

	case "/state":
		return m.cmdState(), false

	case "/pause":
		m.paused = !m.paused
		if m.paused {
			return []string{"Clock paused."}, false
		}
		return []string{"Clock running."}, false

	case "/trace":
		m.trace = !m.trace
		if m.trace {
			return []string{"Trace output enabled."}, false
		}
		return []string{"Trace output disabled."}, false

	default:
		return []string{fmt.Sprintf("Unknown command: %s. Type /help for available commands.", cmd)}, false
	}
}

func (m *Model) cmdSave(name string) []string {
	if name == "" {
		name = "quicksave"
	}

	ctrl := m.session.Controller
	data, err := save.Save(m.defs, ctrl.Session(), ctrl.Clock(), ctrl.Serialize())
	if err != nil {
		return []string{fmt.Sprintf("Save failed: %v", err)}
	}

	if err := os.MkdirAll(m.saveDir, 0o755); err != nil {
		return []string{fmt.Sprintf("Save failed: %v", err)}
	}

	path := filepath.Join(m.saveDir, name+".json")
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return []string{fmt.Sprintf("Save failed: %v", err)}
	}

	return []string{fmt.Sprintf("Progress saved to %s.", name)}
}

func (m *Model) cmdLoad(name string) []string {
	if name == "" {
		name = "quicksave"
	}

	path := filepath.Join(m.saveDir, name+".json")
	data, err := os.ReadFile(path)
	if err != nil {
		return []string{fmt.Sprintf("Load failed: %v", err)}
	}

	sd, err := save.Load(data)
	if err != nil {
		return []string{fmt.Sprintf("Load failed: %v", err)}
	}

	var output []string
	if err := save.ApplySave(m.session.Controller, m.defs.Instance.Name, sd); err != nil {
		output = append(output, fmt.Sprintf("Load: %v", err))
		if sd.Instance != m.defs.Instance.Name {
			return output
		}
	}

	output = append(output, fmt.Sprintf("Progress loaded from %s (saved at clock %s).", name, sd.Clock()))
	result := m.session.Step("state")
	output = append(output, result.Output...)
	return output
}

// cmdExport writes the command history as a script for --script playback.
func (m *Model) cmdExport(name string) []string {
	if name == "" {
		name = "session"
	}
	if err := os.MkdirAll(m.saveDir, 0o755); err != nil {
		return []string{fmt.Sprintf("Export failed: %v", err)}
	}
	path := filepath.Join(m.saveDir, name+".script")
	f, err := os.Create(path)
	if err != nil {
		return []string{fmt.Sprintf("Export failed: %v", err)}
	}
	defer f.Close()

	n, err := m.history.WriteScript(f, m.defs.Instance.Name)
	if err != nil {
		return []string{fmt.Sprintf("Export failed: %v", err)}
	}
	return []string{fmt.Sprintf("Exported %d command(s) to %s.", n, path)}
}

func (m *Model) cmdHelp() []string {
	return []string{
		"System:",
		"  /save [name]   — Save progress (default: quicksave)",
		"  /load [name]   — Load progress (default: quicksave)",
		"  /export [name] — Write command history as a replayable script",
		"  /pause         — Stop or resume the automatic clock",
		"  /quit          — Exit",
		"  /help          — Show this help",
		"  /state         — Debug: dump controller snapshot",
		"  /trace         — Toggle notification trace output",
		"",
		"Progression:",
		"  state (ls), set <encounter> <state>, attempt <encounter>",
		"  counter <name> [value], criteria <id>, blob, restore <blob>",
		"",
		"World:",
		"  spawn / spawnprop <entry|role> [x y z o]",
		"  kill / despawn <#guid|entry|role>",
		"  enter <name> [affiliation] [override], leave <name>",
		"  event <id> [source], tick [ms|duration], raid [size]",
		"  role <name>, within <encounter> <x> <y> [z]",
		"  props, entities, timers",
		"  again (g)      — Repeat your last command",
		"",
		"Navigation: PgUp/PgDn to scroll, Up/Down for command history",
	}
}

func (m *Model) cmdState() []string {
	s := m.session.Snapshot()
	output := []string{
		fmt.Sprintf("Session: %s", s.Session),
		fmt.Sprintf("Clock: %s (timers active: %v)", s.Clock, s.TimersActive),
		fmt.Sprintf("Affiliation: %s", s.Affiliation),
		fmt.Sprintf("Blob: %s", m.session.Controller.Serialize()),
	}
	for _, name := range s.CounterNames() {
		output = append(output, fmt.Sprintf("Counter %s = %d", name, s.Counters[name]))
	}
	roles := make([]string, 0, len(s.Roles))
	for r, g := range s.Roles {
		roles = append(roles, fmt.Sprintf("%s=#%d", r, g))
	}
	sort.Strings(roles)
	if len(roles) > 0 {
		output = append(output, "Roles: "+strings.Join(roles, " "))
	}
	for _, t := range s.Timers {
		output = append(output, fmt.Sprintf("Timer %s in %s", t.Type, t.FireIn))
	}
	return output
}

func (m *Model) formatTrace(result types.Result) []string {
	var lines []string
	if len(result.Events) > 0 {
		lines = append(lines, fmt.Sprintf("[trace] Events: %d", len(result.Events)))
		for _, e := range result.Events {
			lines = append(lines, fmt.Sprintf("[trace]   %s %v", e.Type, e.Data))
		}
	}
	return lines
}

// viewportKeyMap returns a viewport keymap with Up/Down disabled
// (we use those for input history).
func viewportKeyMap() viewport.KeyMap {
	return viewport.KeyMap{
		PageDown:     key.NewBinding(key.WithKeys("pgdown")),
		PageUp:       key.NewBinding(key.WithKeys("pgup")),
		HalfPageDown: key.NewBinding(key.WithKeys("ctrl+d")),
		HalfPageUp:   key.NewBinding(key.WithKeys("ctrl+u")),
		Up:           key.NewBinding(key.WithDisabled()),
		Down:         key.NewBinding(key.WithDisabled()),
	}
}
