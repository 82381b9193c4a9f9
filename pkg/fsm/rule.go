package fsm

import (
	"gotextfsm/pkg/record"
	"gotextfsm/pkg/regexengine"
)

// ValueDef is a compiled value declaration: a named capture slot with
// its storage options. ValueDefs are immutable once a Program exists.
type ValueDef struct {
	Name     string
	Kind     record.ValueKind
	Filldown bool
	Fillup   bool
	Key      bool
	Required bool
}

// RecordAction is one of the four buffer actions a rule may apply on
// match, evaluated before the rule's LineAction.
type RecordAction int

const (
	// NoRecord leaves both buffers untouched.
	NoRecord RecordAction = iota
	// RecordAct flushes the current record to the output sequence, if
	// it has any field and every Required value is present.
	RecordAct
	// Clear deletes every field of the current record except those
	// marked Filldown.
	Clear
	// Clearall resets both current and filldown buffers to empty.
	Clearall
)

// LineAction is one of the two ways a rule may affect line/state
// progression after its RecordAction has applied.
type LineAction int

const (
	// Continue re-evaluates the remaining rules in the same state
	// against the same line; a rule using Continue may never carry a
	// NextState other than NoneState (rejected at compile time).
	Continue LineAction = iota
	// Next consumes the line, stops rule iteration in this state, and
	// applies NextState.
	Next
)

// NextStateKind discriminates the three forms a Next transition target
// may take.
type NextStateKind int

const (
	// NoneState leaves the current state unchanged.
	NoneState NextStateKind = iota
	// NamedState switches to the named state.
	NamedState
	// ErrorState aborts parsing with a StateError carrying Message.
	ErrorState
)

// NextState is the target of a rule's LineAction == Next.
type NextState struct {
	Kind    NextStateKind
	Name    string
	Message string
}

// Transition bundles the record and line actions a matched rule applies,
// plus a line action's optional next-state target.
type Transition struct {
	Record RecordAction
	Line   LineAction
	Next   NextState
}

// Rule is one compiled `^PATTERN [-> TRANSITION]` line: its source text,
// a matcher able to find every match of the expanded pattern in a line,
// the list of captured variable names in textual order, and the
// transition to apply on match.
type Rule struct {
	Pattern      string
	Matcher      regexengine.Matcher
	CaptureNames []string
	Transition   Transition
}

// State is a named, ordered sequence of rules. State names are
// case-sensitive; rules are tried in template order.
type State struct {
	Name  string
	Rules []*Rule
}
