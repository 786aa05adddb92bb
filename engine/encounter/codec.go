package encounter

import (
	"strconv"
	"strings"
	"unicode"

	"github.com/nathoo/instancecore/types"
)

// CurrentVersion is the blob format written by Encode. Version 1 carries the
// state digits only; version 2 appends the persistent counter section.
const CurrentVersion = 2

// CounterValue is one persisted generic counter, in declaration order.
type CounterValue struct {
	Name  string
	Value int
}

// MalformedStateError reports a progress blob that could not be fully
// parsed. Decode still returns its best recovery alongside this error.
type MalformedStateError struct {
	Reasons []string
}

func (e *MalformedStateError) Error() string {
	return "malformed progress blob: " + strings.Join(e.Reasons, "; ")
}

// Encode writes the progress blob:
//
//	<header><version> <one digit per encounter>[ <name>=<value>,...]
//
// The counter section is omitted when there are no persistent counters.
func Encode(header string, states []types.EncounterState, counters []CounterValue) []byte {
	var b strings.Builder
	b.WriteString(header)
	b.WriteString(strconv.Itoa(CurrentVersion))
	b.WriteByte(' ')
	for _, st := range states {
		b.WriteByte(byte('0' + int(st)))
	}
	if len(counters) > 0 {
		b.WriteByte(' ')
		for i, c := range counters {
			if i > 0 {
				b.WriteByte(',')
			}
			b.WriteString(c.Name)
			b.WriteByte('=')
			b.WriteString(strconv.Itoa(c.Value))
		}
	}
	return []byte(b.String())
}

// ValidCounterName reports whether name can be written to the counter
// section and read back: it must be non-empty and free of whitespace, ','
// and '='.
func ValidCounterName(name string) bool {
	return name != "" && !strings.ContainsFunc(name, func(r rune) bool {
		return r == ',' || r == '=' || unicode.IsSpace(r)
	})
}

// Decoded is the recovered content of a progress blob.
type Decoded struct {
	Version  int
	States   []types.EncounterState // always exactly n entries
	Counters map[string]int
}

// Decode parses a blob written for n encounters. It never fails outright:
// missing or unreadable entries read NotStarted and any problem is reported
// through a *MalformedStateError. Sections added by later versions are
// ignored.
func Decode(header string, data []byte, n int) (Decoded, error) {
	out := Decoded{
		States:   make([]types.EncounterState, n),
		Counters: map[string]int{},
	}
	var reasons []string

	s := string(data)
	if !strings.HasPrefix(s, header) {
		return out, &MalformedStateError{Reasons: []string{"unknown header"}}
	}
	s = s[len(header):]

	sections := strings.Split(s, " ")
	version, err := strconv.Atoi(sections[0])
	if err != nil || version < 1 {
		return out, &MalformedStateError{Reasons: []string{"unparsable version " + strconv.Quote(sections[0])}}
	}
	out.Version = version

	if len(sections) > 1 {
		digits := sections[1]
		for i := 0; i < len(digits) && i < n; i++ {
			c := digits[i]
			if c < '0' || c > '4' {
				reasons = append(reasons, "bad state code "+strconv.Quote(string(c))+" at "+strconv.Itoa(i))
				continue
			}
			out.States[i] = types.EncounterState(c - '0')
		}
	}

	if version >= 2 && len(sections) > 2 && sections[2] != "" {
		for _, pair := range strings.Split(sections[2], ",") {
			name, raw, ok := strings.Cut(pair, "=")
			if !ok || name == "" {
				reasons = append(reasons, "bad counter entry "+strconv.Quote(pair))
				continue
			}
			v, err := strconv.Atoi(raw)
			if err != nil {
				reasons = append(reasons, "bad counter value for "+name)
				continue
			}
			out.Counters[name] = v
		}
	}

	if len(reasons) > 0 {
		return out, &MalformedStateError{Reasons: reasons}
	}
	return out, nil
}
