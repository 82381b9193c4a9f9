package template

import (
	"os"
	"strings"

	"gotextfsm/pkg/fsm"
	"gotextfsm/pkg/fsmerr"
	"gotextfsm/pkg/regexengine"
	"gotextfsm/pkg/varsubst"
)

// lineEntry is one non-comment source line, with its 1-indexed line
// number (counted against the precondition-padded text) and whether it
// is blank — blank lines separate the value block from the state block
// and separate consecutive state definitions.
type lineEntry struct {
	num   int
	text  string
	blank bool
}

// Compile parses a template's text into an immutable *fsm.Program.
// Before parsing, text is padded with trailing newlines so a missing
// final newline never breaks the grammar. Comment lines (first
// non-whitespace character '#') are dropped entirely and do not count
// as block separators.
func Compile(text string, sink fsmerr.Sink) (*fsm.Program, error) {
	entries := buildEntries(strings.Split(text+"\n\n\n", "\n"))

	idx := 0
	for idx < len(entries) && entries[idx].blank {
		idx++
	}

	var valueDefs []fsm.ValueDef
	bodies := make(map[string]string)
	for idx < len(entries) {
		e := entries[idx]
		if e.blank {
			break
		}
		trimmed := strings.TrimSpace(e.text)
		if !strings.HasPrefix(trimmed, "Value") {
			break
		}
		vd, body, err := parseValueLine(e.num, trimmed)
		if err != nil {
			return nil, err
		}
		if _, dup := bodies[vd.Name]; dup {
			return nil, fsmerr.NewParseError("template", "line %d: duplicate value declaration %q", e.num, vd.Name)
		}
		bodies[vd.Name] = body
		valueDefs = append(valueDefs, vd)
		idx++
	}
	for idx < len(entries) && entries[idx].blank {
		idx++
	}

	var states []*fsm.State
	for idx < len(entries) {
		for idx < len(entries) && entries[idx].blank {
			idx++
		}
		if idx >= len(entries) {
			break
		}
		e := entries[idx]
		if hasLeadingIndent(e.text) {
			return nil, fsmerr.NewParseError("template",
				"line %d: expected a state name at column 0, found indented line %q", e.num, e.text)
		}
		stateName := strings.TrimSpace(e.text)
		idx++

		var rules []*fsm.Rule
		for idx < len(entries) {
			e2 := entries[idx]
			if e2.blank {
				idx++
				continue
			}
			if !hasLeadingIndent(e2.text) {
				break
			}
			rule, err := parseRuleLine(e2.num, strings.TrimSpace(e2.text), bodies, sink)
			if err != nil {
				return nil, err
			}
			rules = append(rules, rule)
			idx++
		}
		states = append(states, &fsm.State{Name: stateName, Rules: rules})
	}

	return fsm.NewProgram(valueDefs, states)
}

// CompileFile reads path and compiles its contents as a template.
func CompileFile(path string, sink fsmerr.Sink) (*fsm.Program, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fsmerr.NewIoError(path, err)
	}
	return Compile(string(data), sink)
}

func buildEntries(rawLines []string) []lineEntry {
	entries := make([]lineEntry, 0, len(rawLines))
	for i, raw := range rawLines {
		line := strings.TrimSuffix(raw, "\r")
		trimmed := strings.TrimSpace(line)
		if strings.HasPrefix(trimmed, "#") {
			continue
		}
		entries = append(entries, lineEntry{num: i + 1, text: line, blank: trimmed == ""})
	}
	return entries
}

func hasLeadingIndent(s string) bool {
	return len(s) > 0 && (s[0] == ' ' || s[0] == '\t')
}

// parseRuleLine parses one `^PATTERN [-> TRANSITION]` rule: it rewrites
// escaped angle brackets, expands $$ / ${NAME} / $NAME references
// against bodies, compiles the resulting regex, and parses the
// transition suffix.
func parseRuleLine(lineNum int, line string, bodies map[string]string, sink fsmerr.Sink) (*fsm.Rule, error) {
	if !strings.HasPrefix(line, "^") {
		return nil, fsmerr.NewParseError("template", "line %d: rule pattern must begin with '^': %q", lineNum, line)
	}

	var patternText, transitionText string
	if arrow := strings.LastIndex(line, " -> "); arrow >= 0 {
		patternText = line[:arrow]
		transitionText = line[arrow+4:]
	} else {
		stripped := strings.TrimRight(line, " \t")
		if stripped != line {
			fsmerr.Emit(sink, fsmerr.DiagTrailingWhitespace,
				"line %d: stripped trailing whitespace from a rule pattern with no transition", lineNum)
		}
		patternText = stripped
	}

	patternText = rewriteAngleBrackets(patternText, lineNum, sink)

	chunks, err := varsubst.Parse(patternText, sink)
	if err != nil {
		return nil, err
	}

	var expanded strings.Builder
	var captureNames []string
	seen := make(map[string]bool, len(chunks))
	for _, c := range chunks {
		switch c.Kind {
		case varsubst.Text:
			expanded.WriteString(c.Value)
		case varsubst.DollarDollar:
			expanded.WriteByte('$')
		case varsubst.Variable:
			body, ok := bodies[c.Name]
			if !ok {
				return nil, fsmerr.NewParseError("template", "line %d: undeclared variable %q", lineNum, c.Name)
			}
			expanded.WriteString("(?P<")
			expanded.WriteString(c.Name)
			expanded.WriteString(">")
			expanded.WriteString(body)
			expanded.WriteString(")")
			if !seen[c.Name] {
				seen[c.Name] = true
				captureNames = append(captureNames, c.Name)
			}
		}
	}

	matcher, err := regexengine.Compile(expanded.String(), sink)
	if err != nil {
		return nil, err
	}

	transition, err := parseTransition(lineNum, transitionText)
	if err != nil {
		return nil, err
	}

	return &fsm.Rule{
		Pattern:      patternText,
		Matcher:      matcher,
		CaptureNames: captureNames,
		Transition:   transition,
	}, nil
}

// rewriteAngleBrackets rewrites literal `\<` and `\>` escapes (permitted
// by the source DSL but rejected by the target regex engine) to `<` and
// `>`, warning once per occurrence.
func rewriteAngleBrackets(s string, lineNum int, sink fsmerr.Sink) string {
	if !strings.Contains(s, `\<`) && !strings.Contains(s, `\>`) {
		return s
	}
	var b strings.Builder
	for i := 0; i < len(s); i++ {
		if s[i] == '\\' && i+1 < len(s) && (s[i+1] == '<' || s[i+1] == '>') {
			fsmerr.Emit(sink, fsmerr.DiagAngleBracketRewrite,
				"line %d: rewrote escaped %q to literal %q", lineNum, s[i:i+2], string(s[i+1]))
			b.WriteByte(s[i+1])
			i++
			continue
		}
		b.WriteByte(s[i])
	}
	return b.String()
}
