package fsm

import (
	"bufio"
	"io"
	"strings"

	"gotextfsm/pkg/fsmerr"
	"gotextfsm/pkg/record"
	"gotextfsm/pkg/regexengine"
)

// Option toggles post-processing behavior on ParseString/ParseReader.
type Option int

const (
	// LowercaseKeysOption maps every emitted record's field names to
	// lowercase before returning it.
	LowercaseKeysOption Option = iota
)

// Runtime is the mutable, per-parse execution state for a Program: the
// current state name, the current and filldown record buffers, and the
// sequence of records emitted so far. A Runtime is not safe for
// concurrent use; share a *Program across Runtimes instead.
type Runtime struct {
	program  *Program
	sink     fsmerr.Sink
	state    string
	current  *record.DataRecord
	filldown *record.DataRecord
	// keyOrder lists Key-marked value names in the order they were
	// first populated in the live current record since it was last
	// reset, per recordKey's opaque definition.
	keyOrder []string
	records  []*record.DataRecord
}

// NewRuntime returns a Runtime positioned at Start, with empty buffers
// and no emitted records. sink receives runtime diagnostics (currently
// just Fillup-with-no-empty-predecessor); a nil sink discards them.
func NewRuntime(p *Program, sink fsmerr.Sink) *Runtime {
	return &Runtime{
		program:  p,
		sink:     sink,
		state:    StartState,
		current:  record.NewDataRecord(),
		filldown: record.NewDataRecord(),
	}
}

// Reset clears current, filldown, and emitted buffers and returns the
// Runtime to Start, sharing the same Program.
func (r *Runtime) Reset() {
	r.state = StartState
	r.current = record.NewDataRecord()
	r.filldown = record.NewDataRecord()
	r.keyOrder = nil
	r.records = nil
}

// ParseString parses the whole of text and returns every record
// emitted by a Record action, including the final synthetic-EOF flush.
func (r *Runtime) ParseString(text string, opts ...Option) ([]*record.DataRecord, error) {
	for _, line := range splitLines(text) {
		if r.state == EndState {
			break
		}
		if err := r.processLine(line); err != nil {
			return nil, err
		}
	}
	if r.state != EndState {
		r.state = EOFState
		if err := r.processLine(""); err != nil {
			return nil, err
		}
	}
	return applyOptions(r.records, opts), nil
}

// splitLines breaks text into lines with trailing newlines stripped,
// tolerating both LF and CRLF endings. A final empty element produced
// by a trailing newline is dropped; a missing trailing newline still
// yields the last line.
func splitLines(text string) []string {
	lines := strings.Split(text, "\n")
	if len(lines) > 0 && lines[len(lines)-1] == "" {
		lines = lines[:len(lines)-1]
	}
	for i, l := range lines {
		lines[i] = strings.TrimSuffix(l, "\r")
	}
	return lines
}

func applyOptions(records []*record.DataRecord, opts []Option) []*record.DataRecord {
	lowercase := false
	for _, o := range opts {
		if o == LowercaseKeysOption {
			lowercase = true
		}
	}
	if !lowercase {
		return records
	}
	out := make([]*record.DataRecord, len(records))
	for i, rec := range records {
		out[i] = rec.LowercaseKeys()
	}
	return out
}

// parseItem is one value sent across ParseReader's internal channel:
// either a freshly emitted record, or a terminal error.
type parseItem struct {
	record *record.DataRecord
	err    error
}

// ParseReader parses r lazily, line by line, returning a pull function
// that yields one record per call. The third return value is false once
// the stream (including the final synthetic-EOF flush) is exhausted; a
// caller may stop pulling early without draining the rest of the input.
func (r *Runtime) ParseReader(reader io.Reader, opts ...Option) func() (*record.DataRecord, error, bool) {
	ch := make(chan parseItem)

	go func() {
		defer close(ch)
		scanner := bufio.NewScanner(reader)
		scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

		emitted := 0
		flush := func() {
			for ; emitted < len(r.records); emitted++ {
				ch <- parseItem{record: r.records[emitted]}
			}
		}

		for scanner.Scan() && r.state != EndState {
			if err := r.processLine(scanner.Text()); err != nil {
				ch <- parseItem{err: err}
				return
			}
			flush()
		}
		if err := scanner.Err(); err != nil {
			ch <- parseItem{err: fsmerr.NewIoError("", err)}
			return
		}
		if r.state != EndState {
			r.state = EOFState
			if err := r.processLine(""); err != nil {
				ch <- parseItem{err: err}
				return
			}
			flush()
		}
	}()

	lowercase := false
	for _, o := range opts {
		if o == LowercaseKeysOption {
			lowercase = true
		}
	}

	return func() (*record.DataRecord, error, bool) {
		item, ok := <-ch
		if !ok {
			return nil, nil, false
		}
		if item.err != nil {
			return nil, item.err, true
		}
		if lowercase {
			return item.record.LowercaseKeys(), nil, true
		}
		return item.record, nil, true
	}
}

// processLine evaluates the current state's rules against line in
// template order, applying the first matching rule's record and line
// actions. Continue re-enters the loop at the next rule with the same
// line; Next stops iteration for this line.
func (r *Runtime) processLine(line string) error {
	if r.state == EndState {
		return nil
	}
	st, ok := r.program.States[r.state]
	if !ok {
		return fsmerr.NewInternalError("current state %q is not declared in the program", r.state)
	}

	for _, rule := range st.Rules {
		matches := rule.Matcher.FindAll(line)
		if len(matches) == 0 {
			continue
		}

		if err := r.applyMatch(rule, matches); err != nil {
			return err
		}

		if rule.Transition.Line == Continue {
			continue
		}

		switch rule.Transition.Next.Kind {
		case ErrorState:
			return fsmerr.NewStateError("%s", rule.Transition.Next.Message)
		case NamedState:
			r.state = rule.Transition.Next.Name
		}
		return nil
	}
	return nil
}

// applyMatch merges one matched rule's captures into the live buffers
// and applies its record action. A rule's regex is matched against the
// whole line; some expanded patterns yield more than one match, and a
// later match's capture for a given name overwrites an earlier one —
// inherited behavior from the source implementation, not a redesign.
func (r *Runtime) applyMatch(rule *Rule, matches []regexengine.Match) error {
	tempCurrent := record.NewDataRecord()
	captured := make(map[string]bool, len(rule.CaptureNames))

	for _, m := range matches {
		for _, name := range rule.CaptureNames {
			val, present := m[name]
			if !present {
				continue
			}
			captured[name] = true
			vd, ok := r.program.ValueByName(name)
			if !ok {
				return fsmerr.NewInternalError("capture named %q is not declared in the value table", name)
			}
			if vd.Kind == record.List {
				existing, ok := tempCurrent.Get(name)
				if !ok {
					existing = record.NewList(nil)
				}
				tempCurrent.Set(name, existing.Append(val))
			} else {
				tempCurrent.Set(name, record.NewScalar(val))
			}
		}
	}

	for _, name := range rule.CaptureNames {
		if captured[name] {
			continue
		}
		vd, ok := r.program.ValueByName(name)
		if !ok {
			return fsmerr.NewInternalError("capture named %q is not declared in the value table", name)
		}
		if vd.Kind == record.List {
			tempCurrent.Set(name, record.NewList([]string{"None"}))
		} else {
			tempCurrent.Set(name, record.EmptyScalar())
		}
	}

	for _, name := range rule.CaptureNames {
		if !captured[name] {
			continue
		}
		vd, _ := r.program.ValueByName(name)
		if !vd.Filldown {
			continue
		}
		v, _ := tempCurrent.Get(name)
		r.filldown.Set(name, v)
	}

	for _, name := range rule.CaptureNames {
		if !captured[name] {
			continue
		}
		vd, _ := r.program.ValueByName(name)
		if !vd.Fillup {
			continue
		}
		if vd.Kind == record.List {
			return fsmerr.NewStateError("fillup is not supported for list value %q", name)
		}
		newVal, _ := tempCurrent.Get(name)
		r.backfill(name, newVal)
	}

	for _, name := range rule.CaptureNames {
		vd, _ := r.program.ValueByName(name)
		v, _ := tempCurrent.Get(name)
		if vd.Key {
			if !containsString(r.keyOrder, name) {
				r.keyOrder = append(r.keyOrder, name)
			}
		}
		if vd.Kind == record.List {
			existing, ok := r.current.Get(name)
			if !ok {
				existing = record.NewList(nil)
			}
			for _, item := range v.Items {
				existing = existing.Append(item)
			}
			r.current.Set(name, existing)
		} else {
			r.current.Set(name, record.NewScalar(v.Str))
		}
	}
	r.current.RecomputeKey(r.keyOrder)

	return r.applyRecordAction(rule.Transition.Record)
}

// backfill walks the emitted record sequence from newest to oldest,
// writing newVal into the first run of records whose field named name
// is empty, stopping at the first record whose field is non-empty.
func (r *Runtime) backfill(name string, newVal record.Value) {
	filled := 0
	for i := len(r.records) - 1; i >= 0; i-- {
		existing, ok := r.records[i].Get(name)
		if !ok || !existing.IsEmpty() {
			break
		}
		r.records[i].Set(name, newVal)
		filled++
	}
	if filled == 0 {
		fsmerr.Emit(r.sink, fsmerr.DiagFillupEmptyPredecessor,
			"fillup value %q found no empty predecessor record to back-fill", name)
	}
}

func containsString(haystack []string, needle string) bool {
	for _, s := range haystack {
		if s == needle {
			return true
		}
	}
	return false
}

// applyRecordAction applies action to the live buffers.
func (r *Runtime) applyRecordAction(action RecordAction) error {
	switch action {
	case NoRecord:
		return nil
	case Clear:
		for _, name := range r.current.Names() {
			vd, _ := r.program.ValueByName(name)
			if !vd.Filldown {
				r.current.Delete(name)
			}
		}
		filtered := r.keyOrder[:0]
		for _, name := range r.keyOrder {
			if _, ok := r.current.Get(name); ok {
				filtered = append(filtered, name)
			}
		}
		r.keyOrder = filtered
		return nil
	case Clearall:
		r.current = record.NewDataRecord()
		r.filldown = record.NewDataRecord()
		r.keyOrder = nil
		return nil
	case RecordAct:
		return r.flushRecord()
	}
	return nil
}

// flushRecord clones the filldown record as a template, overlays the
// current record on top, defaults every still-absent declared value by
// kind, and appends the result to the output sequence if the current
// record has any field and every Required value is present and
// non-empty. The current record (and its key order) is reset to empty
// either way.
func (r *Runtime) flushRecord() error {
	hasFields := r.current.Len() > 0

	merged := r.filldown.Clone()
	merged.Overlay(r.current)
	for _, vd := range r.program.Values {
		if _, ok := merged.Get(vd.Name); ok {
			continue
		}
		if vd.Kind == record.List {
			merged.Set(vd.Name, record.EmptyList())
		} else {
			merged.Set(vd.Name, record.EmptyScalar())
		}
	}
	merged.RecomputeKey(r.keyOrder)

	requiredOK := true
	for _, vd := range r.program.Values {
		if !vd.Required {
			continue
		}
		v, ok := merged.Get(vd.Name)
		if !ok || v.IsEmpty() {
			requiredOK = false
			break
		}
	}

	if hasFields && requiredOK {
		r.records = append(r.records, merged)
	}

	r.current = record.NewDataRecord()
	r.keyOrder = nil
	return nil
}
