// Package template implements the TextFSM template DSL: a lexer/parser
// over a value-declaration block and a state-definition block, rule
// transition grammar, and variable expansion into named capture groups,
// assembling the result into a *fsm.Program via pkg/fsm and pkg/regexengine.
package template

import (
	"strings"

	"github.com/hucsmn/peg"

	"gotextfsm/pkg/fsm"
	"gotextfsm/pkg/fsmerr"
	"gotextfsm/pkg/record"
)

// knownValueOptions is the comma-separated option vocabulary accepted
// after `Value`.
var knownValueOptions = map[string]func(*fsm.ValueDef){
	"Filldown": func(v *fsm.ValueDef) { v.Filldown = true },
	"Key":      func(v *fsm.ValueDef) { v.Key = true },
	"Required": func(v *fsm.ValueDef) { v.Required = true },
	"List":     func(v *fsm.ValueDef) { v.Kind = record.List },
	"Fillup":   func(v *fsm.ValueDef) { v.Fillup = true },
}

var (
	valueWs1  = peg.Q1(peg.S(" \t"))
	headField = peg.Q1(peg.NS(" \t("))

	escapedChar = peg.Seq(peg.T("\\"), peg.Dot)

	// parenGroup matches a balanced, possibly-nested parenthesized span,
	// self-referential via Let/V since a Go map literal can name itself
	// lazily without an initialization-order problem.
	parenGroup = peg.Let(map[string]peg.Pattern{
		"group": peg.Seq(peg.T("("), peg.Q0(peg.Alt(escapedChar, peg.NS("()"), peg.V("group"))), peg.T(")")),
	}, peg.V("group"))
)

// parseValueLine parses one `Value [Options] NAME (REGEX)` declaration,
// on the same github.com/hucsmn/peg grammar as the rest of this package's
// tokenizing. The regex body is the text strictly between the name's
// first '(' and its balanced matching ')'; parentheses inside the body
// are assumed to balance (it is a regex fragment) and are counted, not
// interpreted.
func parseValueLine(lineNum int, line string) (fsm.ValueDef, string, error) {
	rest := strings.TrimSpace(strings.TrimPrefix(line, "Value"))

	var headFields []string
	captureField := peg.Trigger(func(span string, _ peg.Position) error {
		headFields = append(headFields, span)
		return nil
	}, headField)

	var body string
	captureGroup := peg.Trigger(func(span string, _ peg.Position) error {
		body = span[1 : len(span)-1]
		return nil
	}, parenGroup)

	// No trailing EOF here: like the balanced-paren scanner this
	// replaces, anything after the closing ')' is ignored rather than
	// rejected.
	grammar := peg.Seq(peg.J0(captureField, valueWs1), peg.Q0(valueWs1), captureGroup)
	r, err := peg.Match(grammar, rest)
	if err != nil {
		return fsm.ValueDef{}, "", fsmerr.NewParseError("template", "line %d: %v", lineNum, err)
	}
	if !r.Ok {
		return fsm.ValueDef{}, "", fsmerr.NewParseError("template",
			"line %d: Value declaration missing regex body: %q", lineNum, line)
	}
	if len(headFields) == 0 {
		return fsm.ValueDef{}, "", fsmerr.NewParseError("template",
			"line %d: Value declaration missing a name: %q", lineNum, line)
	}

	vd := fsm.ValueDef{Kind: record.Scalar}
	name := headFields[len(headFields)-1]
	optionTokens := headFields[:len(headFields)-1]
	for _, tok := range optionTokens {
		for _, opt := range strings.Split(tok, ",") {
			opt = strings.TrimSpace(opt)
			if opt == "" {
				continue
			}
			apply, ok := knownValueOptions[opt]
			if !ok {
				return fsm.ValueDef{}, "", fsmerr.NewParseError("template",
					"line %d: unknown Value option %q", lineNum, opt)
			}
			apply(&vd)
		}
	}
	vd.Name = name
	return vd, body, nil
}
