// Package index implements the CSV-backed command→template catalog: a
// table of (platform, command) patterns, each mapping to one or more
// template files, with command-abbreviation expansion and anchored
// regex lookup.
package index

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/tonistiigi/go-csvvalue"

	"gotextfsm/pkg/fsmerr"
	"gotextfsm/pkg/regexengine"
)

// noPlatform is the bucket rows without a Platform/Vendor column fall
// into.
const noPlatform = "no-platform"

// Row is one parsed index entry.
type Row struct {
	// Templates holds the colon-separated Template column, split.
	Templates []string
	Command   string
	Platform  string
	Hostname  string
}

type compiledRow struct {
	row     Row
	matcher regexengine.Matcher
}

// Index is a loaded, compiled command catalog: immutable after Load.
type Index struct {
	dir        string
	byPlatform map[string][]compiledRow
}

// Load reads and compiles the CSV index file at path. Required columns:
// Template, Command. Optional: Platform (alias Vendor), Hostname.
// Comment lines (first non-whitespace character '#') and blank lines
// are skipped. Column order is free.
func Load(path string, sink fsmerr.Sink) (*Index, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fsmerr.NewIoError(path, err)
	}

	var rows [][]byte
	for _, raw := range strings.Split(string(data), "\n") {
		line := strings.TrimSuffix(raw, "\r")
		trimmed := strings.TrimSpace(line)
		if trimmed == "" || strings.HasPrefix(trimmed, "#") {
			continue
		}
		rows = append(rows, []byte(line))
	}
	if len(rows) == 0 {
		return nil, fsmerr.NewParseError("index", "%s: empty index file", path)
	}

	header, err := csvvalue.Fields(rows[0], nil)
	if err != nil {
		return nil, fsmerr.NewParseError("index", "%s: header: %v", path, err)
	}
	col := make(map[string]int, len(header))
	for i, h := range header {
		col[strings.TrimSpace(string(h))] = i
	}

	templateCol, ok := col["Template"]
	if !ok {
		return nil, fsmerr.NewParseError("index", "%s: missing required column %q", path, "Template")
	}
	commandCol, ok := col["Command"]
	if !ok {
		return nil, fsmerr.NewParseError("index", "%s: missing required column %q", path, "Command")
	}
	platformCol, hasPlatform := col["Platform"]
	if !hasPlatform {
		platformCol, hasPlatform = col["Vendor"]
	}
	hostnameCol, hasHostname := col["Hostname"]

	idx := &Index{
		dir:        filepath.Dir(path),
		byPlatform: make(map[string][]compiledRow),
	}

	field := func(fields [][]byte, i int, present bool) string {
		if !present || i >= len(fields) {
			return ""
		}
		return strings.TrimSpace(string(fields[i]))
	}

	for _, line := range rows[1:] {
		fields, err := csvvalue.Fields(line, nil)
		if err != nil {
			return nil, fsmerr.NewParseError("index", "%s: %v", path, err)
		}

		row := Row{
			Templates: strings.Split(field(fields, templateCol, true), ":"),
			Command:   field(fields, commandCol, true),
			Platform:  field(fields, platformCol, hasPlatform),
			Hostname:  field(fields, hostnameCol, hasHostname),
		}
		if row.Platform == "" {
			row.Platform = noPlatform
		}

		pattern := "^" + expandBrackets(row.Command) + "$"
		matcher, err := regexengine.CompileBacktracking(pattern, sink)
		if err != nil {
			return nil, err
		}
		idx.byPlatform[row.Platform] = append(idx.byPlatform[row.Platform], compiledRow{row: row, matcher: matcher})
	}

	return idx, nil
}

// Lookup iterates platform's compiled rules in index order and returns
// the first whose pattern matches command, plus the index file's parent
// directory. ok is false if no row matches.
func (idx *Index) Lookup(platform, command string) (dir string, row Row, ok bool) {
	for _, cr := range idx.byPlatform[platform] {
		if len(cr.matcher.FindAll(command)) > 0 {
			return idx.dir, cr.row, true
		}
	}
	return "", Row{}, false
}

// expandBrackets replaces each `[[tail]]` segment with a nested
// optional group accepting any left prefix of tail (including empty),
// leaving the rest of the string untouched.
func expandBrackets(s string) string {
	var b strings.Builder
	for i := 0; i < len(s); {
		if i+1 < len(s) && s[i] == '[' && s[i+1] == '[' {
			if end := strings.Index(s[i+2:], "]]"); end >= 0 {
				b.WriteString(expandAbbreviation(s[i+2 : i+2+end]))
				i += 2 + end + 2
				continue
			}
		}
		b.WriteByte(s[i])
		i++
	}
	return b.String()
}

// expandAbbreviation turns "abcd" into "(a(b(c(d)?)?)?)?".
func expandAbbreviation(tail string) string {
	acc := ""
	for i := len(tail) - 1; i >= 0; i-- {
		acc = "(" + string(tail[i]) + acc + ")?"
	}
	return acc
}
