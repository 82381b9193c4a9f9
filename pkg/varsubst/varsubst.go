// Package varsubst implements the small variable-substitution grammar
// used inside template rule patterns: $$ | ${NAME} | $NAME | literal text.
//
// It mirrors the grammar textfsm-rs drives with a pest parser
// (varsubst.pest / varsubst.rs): pest is a Rust PEG-parser crate, and
// this package is built the same way on the pack's own Go PEG library,
// github.com/hucsmn/peg, rather than a hand-rolled scanner.
package varsubst

import (
	"github.com/hucsmn/peg"

	"gotextfsm/pkg/fsmerr"
)

// ChunkKind identifies the kind of a parsed chunk.
type ChunkKind int

const (
	// DollarDollar is a literal "$$" collapsed to one "$".
	DollarDollar ChunkKind = iota
	// Variable is a "${NAME}" or "$NAME" reference.
	Variable
	// Text is a run of literal, non-variable text.
	Text
)

// Chunk is one piece of a parsed dollar-string.
type Chunk struct {
	Kind ChunkKind
	// Name holds the variable name for Kind == Variable.
	// Value holds the literal text for Kind == Text.
	Name  string
	Value string
}

var (
	identStart = peg.Alt(peg.U("Letter"), peg.T("_"))
	identPart  = peg.Alt(identStart, peg.U("Nd"))
)

// Parse scans input into a sequence of chunks. An unescaped trailing "$"
// is accepted and treated as DollarDollar, with a warning emitted to sink.
// A malformed "${" with no closing "}" (including an empty name) is a
// ParseError: the grammar only falls back to treating a lone "$" as a
// literal character when it is not the start of a brace reference.
func Parse(input string, sink fsmerr.Sink) ([]Chunk, error) {
	var chunks []Chunk

	appendText := func(s string) {
		if s == "" {
			return
		}
		if n := len(chunks); n > 0 && chunks[n-1].Kind == Text {
			chunks[n-1].Value += s
			return
		}
		chunks = append(chunks, Chunk{Kind: Text, Value: s})
	}

	dollarDollar := peg.Trigger(func(string, peg.Position) error {
		chunks = append(chunks, Chunk{Kind: DollarDollar})
		return nil
	}, peg.T("$$"))

	trailingDollar := peg.Trigger(func(string, peg.Position) error {
		fsmerr.Emit(sink, fsmerr.DiagTrailingDollar,
			"unescaped dollar at end of line %q, treating as $$", input)
		chunks = append(chunks, Chunk{Kind: DollarDollar})
		return nil
	}, peg.Seq(peg.T("$"), peg.EOF))

	varName := peg.Trigger(func(name string, _ peg.Position) error {
		chunks = append(chunks, Chunk{Kind: Variable, Name: name})
		return nil
	}, peg.Seq(identStart, peg.Q0(identPart)))
	varUnbraced := peg.Seq(peg.T("$"), varName)

	braceName := peg.Trigger(func(name string, _ peg.Position) error {
		chunks = append(chunks, Chunk{Kind: Variable, Name: name})
		return nil
	}, peg.Q1(peg.NS("}")))
	varBraced := peg.Seq(peg.T("${"), braceName, peg.T("}"))

	// A lone "$" falls back to a literal character only when it isn't
	// the start of a (possibly malformed) brace reference — malformed
	// "${" must fail the whole parse rather than degrade silently.
	loneDollar := peg.Trigger(func(string, peg.Position) error {
		appendText("$")
		return nil
	}, peg.Seq(peg.T("$"), peg.Not(peg.T("{"))))

	textRun := peg.Trigger(func(span string, _ peg.Position) error {
		appendText(span)
		return nil
	}, peg.Q1(peg.NS("$")))

	grammar := peg.Q0(peg.Alt(dollarDollar, trailingDollar, varBraced, varUnbraced, loneDollar, textRun))

	result, err := peg.Match(grammar, input)
	if err != nil {
		return nil, fsmerr.NewParseError("varsubst", "%q: %v", input, err)
	}
	if !result.Ok || result.N != len(input) {
		return nil, fsmerr.NewParseError("varsubst", "malformed variable reference in %q", input)
	}
	return chunks, nil
}
