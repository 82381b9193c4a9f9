package fsm

import (
	"gotextfsm/pkg/fsmerr"
	"gotextfsm/pkg/regexengine"
)

// Reserved state names. Start is required; End is a runtime-only
// terminal never defined by a template; EOF is synthesized by the
// compiler when the template does not define it itself.
const (
	StartState = "Start"
	EndState   = "End"
	EOFState   = "EOF"
)

// Program is the immutable, compiled form of a template: a value table
// and a state table, safe to share read-only across any number of
// Runtimes. Build one with NewProgram.
type Program struct {
	Values     []ValueDef
	valueIndex map[string]int
	States     map[string]*State
	StateOrder []string
	// KeyOrder lists the names of Key-marked values in declaration order.
	KeyOrder []string
}

// ValueByName returns the declared ValueDef for name, if any.
func (p *Program) ValueByName(name string) (ValueDef, bool) {
	i, ok := p.valueIndex[name]
	if !ok {
		return ValueDef{}, false
	}
	return p.Values[i], true
}

// eofMatcher is shared by every auto-installed synthetic EOF state; its
// pattern never varies, so one compiled matcher is reused instead of
// recompiling ".*" per Program.
var eofMatcher = mustCompileEOFMatcher()

func mustCompileEOFMatcher() regexengine.Matcher {
	m, err := regexengine.Compile(".*", nil)
	if err != nil {
		panic("regexengine: failed to compile constant EOF pattern: " + err.Error())
	}
	return m
}

// NewProgram assembles values and states into a validated, immutable
// Program. It auto-installs the synthetic EOF state (`.* -> Record End`)
// when the template did not define its own, and enforces the
// compile-time invariants from the data model: Start must exist, End
// must never be template-defined, every Next(NamedState) target must
// resolve to a real state (Start, EOF, End, or a declared name), and a
// rule whose LineAction is Continue may not carry a NamedState or
// ErrorState target.
func NewProgram(values []ValueDef, states []*State) (*Program, error) {
	p := &Program{
		valueIndex: make(map[string]int, len(values)),
		States:     make(map[string]*State, len(states)+1),
	}
	for i, v := range values {
		if _, dup := p.valueIndex[v.Name]; dup {
			return nil, fsmerr.NewParseError("template", "duplicate value declaration %q", v.Name)
		}
		p.valueIndex[v.Name] = i
		if v.Key {
			p.KeyOrder = append(p.KeyOrder, v.Name)
		}
	}
	p.Values = values

	for _, s := range states {
		if s.Name == EndState {
			return nil, fsmerr.NewStateError("template may not define the reserved terminal state %q", EndState)
		}
		if _, dup := p.States[s.Name]; dup {
			return nil, fsmerr.NewStateError("duplicate state definition %q", s.Name)
		}
		p.States[s.Name] = s
		p.StateOrder = append(p.StateOrder, s.Name)
	}

	if _, ok := p.States[StartState]; !ok {
		return nil, fsmerr.NewStateError("template does not define required state %q", StartState)
	}

	if _, ok := p.States[EOFState]; !ok {
		eof := &State{
			Name: EOFState,
			Rules: []*Rule{{
				Pattern: ".*",
				Matcher: eofMatcher,
				Transition: Transition{
					Record: RecordAct,
					Line:   Next,
					Next:   NextState{Kind: NamedState, Name: EndState},
				},
			}},
		}
		p.States[EOFState] = eof
		p.StateOrder = append(p.StateOrder, EOFState)
	}

	for _, s := range p.States {
		for _, r := range s.Rules {
			if err := validateTransition(p, s.Name, r.Transition); err != nil {
				return nil, err
			}
		}
	}

	return p, nil
}

func validateTransition(p *Program, stateName string, t Transition) error {
	if t.Line == Continue && t.Next.Kind != NoneState {
		return fsmerr.NewParseError("template",
			"state %q: a rule whose line action is Continue may not carry a next-state target", stateName)
	}
	if t.Line == Next && t.Next.Kind == NamedState {
		if t.Next.Name != EndState {
			if _, ok := p.States[t.Next.Name]; !ok {
				return fsmerr.NewStateError("state %q: transition targets undeclared state %q", stateName, t.Next.Name)
			}
		}
	}
	return nil
}
