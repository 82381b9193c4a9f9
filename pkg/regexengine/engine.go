// Package regexengine compiles a single pattern string into a Matcher,
// preferring Go's linear-time RE2 engine (package regexp) and falling
// back to a backtracking engine (github.com/dlclark/regexp2) for
// patterns using lookaround or backreferences that RE2 cannot express.
//
// This mirrors the MultiRegex::{Classic,Fancy} split in the source
// textfsm-rs implementation (regex::Regex vs fancy_regex::Regex).
package regexengine

import (
	"regexp"
	"strings"

	"github.com/dlclark/regexp2"

	"gotextfsm/pkg/fsmerr"
)

// Kind identifies which underlying engine compiled a pattern.
type Kind int

const (
	// Linear is Go's stdlib regexp (RE2 semantics).
	Linear Kind = iota
	// Backtracking is dlclark/regexp2, used by Compile when Linear
	// rejects the pattern (lookaround, backreferences), and always by
	// CompileBacktracking.
	Backtracking
)

// Match is one occurrence of a pattern within a line, with named
// capture groups resolved to their matched text. Groups that did not
// participate in the match are simply absent from the map.
type Match map[string]string

// Matcher is a compiled pattern capable of yielding every non-overlapping
// match of itself within a line, in order.
type Matcher interface {
	// Kind reports which engine compiled this matcher.
	Kind() Kind
	// FindAll returns every non-overlapping match of the pattern in
	// line. An empty, non-nil slice means the pattern compiled but
	// produced no match; a nil slice is never returned.
	FindAll(line string) []Match
}

// maxAutoRepairs bounds the non-repeatable-zero-width auto-repair loop
// so a pathological pattern cannot spin forever.
const maxAutoRepairs = 16

// Compile compiles pattern, trying the linear engine first and falling
// back to the backtracking engine on failure. If the backtracking
// engine reports a "target not repeatable" style error — a quantifier
// applied directly to a zero-width assertion — the offending quantifier
// character is stripped and compilation is retried, up to
// maxAutoRepairs times, emitting a diagnostic for each repair.
func Compile(pattern string, sink fsmerr.Sink) (Matcher, error) {
	if re, err := regexp.Compile(pattern); err == nil {
		return &linearMatcher{re: re}, nil
	}

	candidate := pattern
	for attempt := 0; attempt <= maxAutoRepairs; attempt++ {
		re, err := regexp2.Compile(candidate, regexp2.Unicode)
		if err == nil {
			return &backtrackingMatcher{re: re}, nil
		}
		if attempt == maxAutoRepairs {
			return nil, fsmerr.NewParseError("regexengine", "failed to compile pattern %q: %v", pattern, err)
		}
		repaired, repairedAt, ok := repairNonRepeatable(candidate, err)
		if !ok {
			return nil, fsmerr.NewParseError("regexengine", "failed to compile pattern %q: %v", pattern, err)
		}
		fsmerr.Emit(sink, fsmerr.DiagRegexAutoRepair,
			"removed non-repeatable quantifier at position %d while compiling %q", repairedAt, candidate)
		candidate = repaired
	}
	return nil, fsmerr.NewParseError("regexengine", "failed to compile pattern %q", pattern)
}

// CompileBacktracking compiles pattern directly with the backtracking
// engine, skipping the linear-engine attempt. The command index (§4.4)
// anchors expanded abbreviation patterns and always wants the
// backtracking engine regardless of whether RE2 could also accept them.
func CompileBacktracking(pattern string, sink fsmerr.Sink) (Matcher, error) {
	re, err := regexp2.Compile(pattern, regexp2.Unicode)
	if err != nil {
		return nil, fsmerr.NewParseError("regexengine", "failed to compile pattern %q: %v", pattern, err)
	}
	return &backtrackingMatcher{re: re}, nil
}

// repairNonRepeatable detects a quantifier applied to a zero-width
// assertion (^, $, \b, \B, or a lookaround group) and removes the
// quantifier character. regexp2's own error text does not reliably
// carry a machine-readable position for this class of error across
// versions, so the repair scans the pattern text directly rather than
// parsing err's message.
func repairNonRepeatable(pattern string, err error) (string, int, bool) {
	_ = err
	for i := 0; i < len(pattern); i++ {
		if !isZeroWidthAssertionEnd(pattern, i) {
			continue
		}
		j := i + 1
		if j >= len(pattern) {
			continue
		}
		switch pattern[j] {
		case '*', '+', '?':
			return pattern[:j] + pattern[j+1:], j, true
		case '{':
			end := strings.IndexByte(pattern[j:], '}')
			if end > 0 {
				return pattern[:j] + pattern[j+end+1:], j, true
			}
		}
	}
	return "", 0, false
}

// isZeroWidthAssertionEnd reports whether pattern[:i+1] ends in a
// zero-width assertion: ^, $, \b, \B, or a closing paren for a
// lookaround group (?=...), (?!...), (?<=...), (?<!...).
func isZeroWidthAssertionEnd(pattern string, i int) bool {
	switch pattern[i] {
	case '^', '$':
		return true
	}
	if pattern[i] == 'b' || pattern[i] == 'B' {
		if i >= 1 && pattern[i-1] == '\\' {
			return true
		}
	}
	if pattern[i] == ')' {
		depth := 0
		for k := i; k >= 0; k-- {
			switch pattern[k] {
			case ')':
				depth++
			case '(':
				depth--
				if depth == 0 {
					return isLookaroundOpen(pattern, k)
				}
			}
		}
	}
	return false
}

func isLookaroundOpen(pattern string, open int) bool {
	rest := pattern[open:]
	for _, prefix := range []string{"(?=", "(?!", "(?<=", "(?<!"} {
		if strings.HasPrefix(rest, prefix) {
			return true
		}
	}
	return false
}

type linearMatcher struct{ re *regexp.Regexp }

func (m *linearMatcher) Kind() Kind { return Linear }

func (m *linearMatcher) FindAll(line string) []Match {
	names := m.re.SubexpNames()
	allIdx := m.re.FindAllStringSubmatchIndex(line, -1)
	out := make([]Match, 0, len(allIdx))
	for _, idx := range allIdx {
		match := Match{}
		for i, name := range names {
			if name == "" {
				continue
			}
			start, end := idx[2*i], idx[2*i+1]
			if start < 0 || end < 0 {
				continue // group did not participate in this match
			}
			match[name] = line[start:end]
		}
		out = append(out, match)
	}
	return out
}

type backtrackingMatcher struct{ re *regexp2.Regexp }

func (m *backtrackingMatcher) Kind() Kind { return Backtracking }

func (m *backtrackingMatcher) FindAll(line string) []Match {
	out := []Match{}
	names := m.re.GetGroupNames()
	match, err := m.re.FindStringMatch(line)
	for err == nil && match != nil {
		result := Match{}
		for _, name := range names {
			if name == "" {
				continue
			}
			if _, convErr := atoiName(name); convErr == nil {
				continue // purely positional group, not a named capture
			}
			g := match.GroupByName(name)
			if g != nil && len(g.Captures) > 0 {
				result[name] = g.String()
			}
		}
		out = append(out, result)
		match, err = m.re.FindNextMatch(match)
	}
	return out
}

func atoiName(s string) (int, error) {
	n := 0
	for _, r := range s {
		if r < '0' || r > '9' {
			return 0, fsmerr.NewInternalError("not numeric")
		}
		n = n*10 + int(r-'0')
	}
	return n, nil
}
