// Package cli provides terminal I/O, output formatting, and meta-command
// dispatch for an operator console session.
package cli

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/nathoo/instancecore/console"
	"github.com/nathoo/instancecore/engine/encounter"
	"github.com/nathoo/instancecore/engine/save"
	"github.com/nathoo/instancecore/engine/state"
	"github.com/nathoo/instancecore/types"
)

// CLI handles terminal interaction with the operator.
type CLI struct {
	Session   *console.Session
	Defs      *state.Defs
	In        io.Reader
	Out       io.Writer
	SaveDir   string
	Trace     bool
	EchoInput bool   // echo each input line after the prompt (for script playback)
	lastCmd   string // for "again"/"g" repeat
}

// New creates a CLI wired to the given session.
func New(sess *console.Session) *CLI {
	home, _ := os.UserHomeDir()
	saveDir := filepath.Join(home, ".instancecore", "saves")
	return &CLI{
		Session: sess,
		Defs:    sess.Defs,
		In:      os.Stdin,
		Out:     os.Stdout,
		SaveDir: saveDir,
	}
}

// Run shows the intro and the encounter table, then loops: prompt → input →
// dispatch → output.
func (c *CLI) Run() {
	if c.Defs.Instance.Intro != "" {
		c.printLine(c.Defs.Instance.Intro)
		c.printLine("")
	}

	result := c.Session.Step("state")
	c.printResult(result)

	scanner := bufio.NewScanner(c.In)
	for {
		c.print("> ")
		if !scanner.Scan() {
			break
		}
		input := strings.TrimSpace(scanner.Text())
		if input == "" {
			continue
		}
		// Skip comment lines (for script files).
		if strings.HasPrefix(input, "#") {
			continue
		}
		if c.EchoInput {
			c.printLine(input)
		}

		// Meta-commands start with '/'.
		if strings.HasPrefix(input, "/") {
			if c.handleMeta(input) {
				return // /quit
			}
			continue
		}

		// "again" / "g" repeats the last command.
		lower := strings.ToLower(input)
		if lower == "again" || lower == "g" {
			if c.lastCmd == "" {
				c.printLine("Nothing to repeat.")
				continue
			}
			input = c.lastCmd
		} else {
			c.lastCmd = input
		}

		result := c.Session.Step(input)
		c.printResult(result)

		if c.Trace {
			c.printTrace(result)
		}
	}
}

// handleMeta dispatches meta-commands. Returns true if the session should exit.
func (c *CLI) handleMeta(input string) bool {
	parts := strings.Fields(input)
	cmd := parts[0]
	var arg string
	if len(parts) > 1 {
		arg = parts[1]
	}

	switch cmd {
	case "/quit", "/exit":
		c.printSystem("Goodbye.")
		return true

	case "/save":
		c.cmdSave(arg)

	case "/load":
		c.cmdLoad(arg)

	case "/help":
		c.cmdHelp()

	case "/state":
		c.cmdState()

	case "/trace":
		c.Trace = !c.Trace
		if c.Trace {
			c.printSystem("Trace output enabled.")
		} else {
			c.printSystem("Trace output disabled.")
		}

	default:
		c.printSystem(fmt.Sprintf("Unknown command: %s. Type /help for available commands.", cmd))
	}

	return false
}

func (c *CLI) cmdSave(name string) {
	if name == "" {
		name = "quicksave"
	}

	ctrl := c.Session.Controller
	data, err := save.Save(c.Defs, ctrl.Session(), ctrl.Clock(), ctrl.Serialize())
	if err != nil {
		c.printSystem(fmt.Sprintf("Save failed: %v", err))
		return
	}

	if err := os.MkdirAll(c.SaveDir, 0o755); err != nil {
		c.printSystem(fmt.Sprintf("Save failed: %v", err))
		return
	}

	path := filepath.Join(c.SaveDir, name+".json")
	if err := os.WriteFile(path, data, 0o644); err != nil {
		c.printSystem(fmt.Sprintf("Save failed: %v", err))
		return
	}

	c.printSystem(fmt.Sprintf("Progress saved to %s.", name))
}

func (c *CLI) cmdLoad(name string) {
	if name == "" {
		name = "quicksave"
	}

	path := filepath.Join(c.SaveDir, name+".json")
	data, err := os.ReadFile(path)
	if err != nil {
		c.printSystem(fmt.Sprintf("Load failed: %v", err))
		return
	}

	sd, err := save.Load(data)
	if err != nil {
		c.printSystem(fmt.Sprintf("Load failed: %v", err))
		return
	}

	if err := save.ApplySave(c.Session.Controller, c.Defs.Instance.Name, sd); err != nil {
		c.printSystem(fmt.Sprintf("Load: %v", err))
		if sd.Instance != c.Defs.Instance.Name {
			return
		}
	}
	c.printSystem(fmt.Sprintf("Progress loaded from %s (saved at clock %s).", name, sd.Clock()))

	result := c.Session.Step("state")
	c.printResult(result)
}

func (c *CLI) cmdHelp() {
	help := []string{
		"System:",
		"  /save [name]  — Save progress (default: quicksave)",
		"  /load [name]  — Load progress (default: quicksave)",
		"  /quit         — Exit",
		"  /help         — Show this help",
		"  /state        — Debug: dump controller snapshot",
		"  /trace        — Toggle notification trace output",
		"",
		"Progression:",
		"  state (ls)                     — Encounter table and counters",
		"  set <encounter> <state>        — Request a transition",
		"  attempt <encounter> [who]      — Check prerequisites",
		"  counter <name> [value]         — Read or set a counter",
		"  criteria <id>                  — Check an achievement criteria",
		"  blob / restore <blob>          — Show or load the progress blob",
		"",
		"World:",
		"  spawn <entry|role> [x y z o]   — Spawn a creature",
		"  spawnprop <entry|role> [x y z] — Spawn a prop",
		"  kill / despawn <#guid|entry|role>",
		"  enter <name> [affiliation] [override] / leave <name>",
		"  event <id> [source]            — Fire a world event",
		"  tick [ms|duration]             — Advance the clock (default 1s)",
		"  role <name>                    — Show the bound entity",
		"  within <encounter> <x> <y> [z] — Boundary check",
		"  props / entities / timers      — Inspect the world",
		"  raid [size]                    — Read or set the raid size",
		"  again (g)                      — Repeat your last command",
	}
	for _, line := range help {
		c.printLine(line)
	}
}

func (c *CLI) cmdState() {
	s := c.Session.Snapshot()
	c.printSystem(fmt.Sprintf("Session: %s", s.Session))
	c.printSystem(fmt.Sprintf("Clock: %s (timers active: %v)", s.Clock, s.TimersActive))
	c.printSystem(fmt.Sprintf("Affiliation: %s", s.Affiliation))
	c.printSystem(fmt.Sprintf("Blob: %s", c.Session.Controller.Serialize()))
	for _, e := range s.Encounters {
		c.printSystem(fmt.Sprintf("Encounter %d %s: %s", e.ID, e.Name, encounter.StateName(e.State)))
	}
	if len(s.Counters) > 0 {
		c.printSystem(fmt.Sprintf("Counters: %v", s.Counters))
	}
	if len(s.Roles) > 0 {
		roles := make([]string, 0, len(s.Roles))
		for r, g := range s.Roles {
			roles = append(roles, fmt.Sprintf("%s=#%d", r, g))
		}
		sort.Strings(roles)
		c.printSystem(fmt.Sprintf("Roles: %s", strings.Join(roles, " ")))
	}
	if len(s.Timers) > 0 {
		c.printSystem(fmt.Sprintf("Timers: %v", s.Timers))
	}
}

func (c *CLI) printTrace(result types.Result) {
	if len(result.Events) > 0 {
		c.printSystem(fmt.Sprintf("[trace] Events: %d", len(result.Events)))
		for _, e := range result.Events {
			c.printSystem(fmt.Sprintf("[trace]   %s %v", e.Type, e.Data))
		}
	}
}

func (c *CLI) printResult(result types.Result) {
	for _, line := range result.Output {
		c.printLine(line)
	}
}

func (c *CLI) printLine(text string) {
	fmt.Fprintln(c.Out, text)
}

func (c *CLI) print(text string) {
	fmt.Fprint(c.Out, text)
}

func (c *CLI) printSystem(text string) {
	fmt.Fprintf(c.Out, "[%s]\n", text)
}
