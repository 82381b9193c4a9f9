package template

import (
	"strings"

	"github.com/hucsmn/peg"

	"gotextfsm/pkg/fsm"
	"gotextfsm/pkg/fsmerr"
)

var lineActionWords = map[string]fsm.LineAction{
	"Continue": fsm.Continue,
	"Next":     fsm.Next,
}

var recordActionWords = map[string]fsm.RecordAction{
	"NoRecord": fsm.NoRecord,
	"Record":   fsm.RecordAct,
	"Clear":    fsm.Clear,
	"Clearall": fsm.Clearall,
}

// parseActionSpec recognizes one `[LineAction][.RecordAction]` token,
// e.g. "Record", "Continue", "Continue.Record", "Next.Clear". It
// returns ok == false (with a nil error) when token matches neither
// form, signaling the caller to treat token as a bare state name
// instead, per the grammar's "RecordAction only" / "NextState only"
// ambiguity on a single token.
func parseActionSpec(token string) (fsm.LineAction, fsm.RecordAction, bool, error) {
	parts := strings.SplitN(token, ".", 2)

	if lineAct, isLine := lineActionWords[parts[0]]; isLine {
		recAct := fsm.NoRecord
		if len(parts) == 2 {
			rec, isRec := recordActionWords[parts[1]]
			if !isRec {
				return 0, 0, false, fsmerr.NewParseError("template", "unknown record action %q", parts[1])
			}
			recAct = rec
		}
		return lineAct, recAct, true, nil
	}

	if recAct, isRec := recordActionWords[parts[0]]; isRec && len(parts) == 1 {
		return fsm.Next, recAct, true, nil
	}

	return 0, 0, false, nil
}

// ws1 is one-or-more spaces/tabs, the token separator throughout the
// transition grammar.
var ws1 = peg.Q1(peg.S(" \t"))

// token is a single whitespace-delimited word.
var token = peg.Q1(peg.NS(" \t"))

// parseTransition parses the text following "->" on a rule line into a
// fsm.Transition, using the same small word-grammar textfsm-rs drives
// with pest (the transition production of textfsm.pest), rebuilt here
// on github.com/hucsmn/peg: `Error ["message"]`, or one-or-two
// whitespace-separated tokens. An empty raw transition (no "->" at
// all) yields the default Next(None).NoRecord transition.
func parseTransition(lineNum int, raw string) (fsm.Transition, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return fsm.Transition{Record: fsm.NoRecord, Line: fsm.Next}, nil
	}

	var message string
	hasMessage := false
	errorForm := peg.Seq(peg.T("Error"), peg.Alt(
		peg.EOF,
		peg.Seq(ws1, peg.Trigger(func(span string, _ peg.Position) error {
			message = span
			hasMessage = true
			return nil
		}, peg.Q1(peg.Dot))),
	))
	if r, err := peg.Match(errorForm, raw); err == nil && r.Ok && r.N == len(raw) {
		rest := ""
		if hasMessage {
			rest = unquote(strings.TrimSpace(message))
		}
		return fsm.Transition{
			Record: fsm.NoRecord,
			Line:   fsm.Next,
			Next:   fsm.NextState{Kind: fsm.ErrorState, Message: rest},
		}, nil
	}

	var tokens []string
	captureToken := peg.Trigger(func(span string, _ peg.Position) error {
		tokens = append(tokens, span)
		return nil
	}, token)
	// A plain Alt of "one token" vs "two tokens" would let Alt retry
	// captureToken's Trigger on a second alternative after the first
	// fails past it, double-appending the first token; Q01 for the
	// optional second token avoids that replay entirely.
	tokenGrammar := peg.Seq(captureToken, peg.Q01(peg.Seq(ws1, captureToken)), peg.EOF)
	r, err := peg.Match(tokenGrammar, raw)
	if err != nil {
		return fsm.Transition{}, fsmerr.NewParseError("template", "line %d: %v", lineNum, err)
	}
	if !r.Ok || r.N != len(raw) {
		return fsm.Transition{}, fsmerr.NewParseError("template", "line %d: malformed transition %q", lineNum, raw)
	}

	if len(tokens) == 1 {
		lineAct, recAct, ok, err := parseActionSpec(tokens[0])
		if err != nil {
			return fsm.Transition{}, fsmerr.NewParseError("template", "line %d: %v", lineNum, err)
		}
		if ok {
			return fsm.Transition{Record: recAct, Line: lineAct}, nil
		}
		return fsm.Transition{
			Record: fsm.NoRecord,
			Line:   fsm.Next,
			Next:   fsm.NextState{Kind: fsm.NamedState, Name: tokens[0]},
		}, nil
	}

	lineAct, recAct, ok, err := parseActionSpec(tokens[0])
	if err != nil {
		return fsm.Transition{}, fsmerr.NewParseError("template", "line %d: %v", lineNum, err)
	}
	if !ok {
		return fsm.Transition{}, fsmerr.NewParseError("template",
			"line %d: unrecognized transition action %q", lineNum, tokens[0])
	}
	return fsm.Transition{
		Record: recAct,
		Line:   lineAct,
		Next:   fsm.NextState{Kind: fsm.NamedState, Name: tokens[1]},
	}, nil
}

// unquote strips one layer of surrounding double quotes, if present.
func unquote(s string) string {
	if len(s) >= 2 && s[0] == '"' && s[len(s)-1] == '"' {
		return s[1 : len(s)-1]
	}
	return s
}
