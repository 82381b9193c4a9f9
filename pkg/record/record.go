package record

import "strings"

// DataRecord is a mapping from value-name to Value, plus an opaque
// composite recordKey derived from the fields marked Key. Field order
// reflects first-insertion order so that Names and LowercaseKeys are
// deterministic within a single record; RecordKey follows the key order
// the caller passes to RecomputeKey instead.
type DataRecord struct {
	fields map[string]Value
	order  []string
	key    string
}

// NewDataRecord returns an empty record.
func NewDataRecord() *DataRecord {
	return &DataRecord{fields: make(map[string]Value)}
}

// Set assigns name to v, appending name to the insertion order the
// first time it is written.
func (r *DataRecord) Set(name string, v Value) {
	if _, ok := r.fields[name]; !ok {
		r.order = append(r.order, name)
	}
	r.fields[name] = v
}

// Get returns the value stored under name, and whether it was present.
func (r *DataRecord) Get(name string) (Value, bool) {
	v, ok := r.fields[name]
	return v, ok
}

// Delete removes name from the record entirely.
func (r *DataRecord) Delete(name string) {
	if _, ok := r.fields[name]; !ok {
		return
	}
	delete(r.fields, name)
	for i, n := range r.order {
		if n == name {
			r.order = append(r.order[:i], r.order[i+1:]...)
			break
		}
	}
}

// Names returns field names in first-insertion order.
func (r *DataRecord) Names() []string {
	out := make([]string, len(r.order))
	copy(out, r.order)
	return out
}

// Len reports how many fields the record currently holds.
func (r *DataRecord) Len() int { return len(r.order) }

// RecordKey returns the composite key last computed by RecomputeKey.
func (r *DataRecord) RecordKey() string { return r.key }

// RecomputeKey rebuilds the opaque recordKey from scratch, joining the
// stringified value of each name in keyOrder that is present in the
// record with "/". keyOrder is expected to list key-marked value names
// in the order they were first populated in the live current record;
// it is supplied by the caller (the FSM runtime), since DataRecord
// itself has no notion of which values are key-marked.
func (r *DataRecord) RecomputeKey(keyOrder []string) {
	parts := make([]string, 0, len(keyOrder))
	for _, name := range keyOrder {
		if v, ok := r.fields[name]; ok {
			parts = append(parts, v.String())
		}
	}
	r.key = strings.Join(parts, "/")
}

// Clone returns a deep copy of r, including its recordKey.
func (r *DataRecord) Clone() *DataRecord {
	cp := &DataRecord{
		fields: make(map[string]Value, len(r.fields)),
		order:  append([]string{}, r.order...),
		key:    r.key,
	}
	for k, v := range r.fields {
		cp.fields[k] = v.Clone()
	}
	return cp
}

// Overlay copies every field from other onto r, overwriting r's
// existing fields and appending any field names new to r. Used when
// building an emitted record: clone the filldown record as a template,
// then overlay the current record on top.
func (r *DataRecord) Overlay(other *DataRecord) {
	for _, name := range other.order {
		r.Set(name, other.fields[name].Clone())
	}
}

// LowercaseKeys returns a new record with every field name mapped to
// its lowercase form. Within one record this is stable (lowercasing is
// deterministic); if two names collapse to the same lowercase form the
// result for that name is undefined beyond "one of the two values wins",
// per the last name processed in insertion order.
func (r *DataRecord) LowercaseKeys() *DataRecord {
	cp := NewDataRecord()
	for _, name := range r.order {
		cp.Set(strings.ToLower(name), r.fields[name].Clone())
	}
	cp.key = r.key
	return cp
}
