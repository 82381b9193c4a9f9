package fsm_test

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gotextfsm/pkg/fsm"
	"gotextfsm/pkg/record"
	"gotextfsm/pkg/regexengine"
)

func compile(t *testing.T, pattern string) regexengine.Matcher {
	t.Helper()
	m, err := regexengine.Compile(pattern, nil)
	require.NoError(t, err)
	return m
}

// interfaceStatusProgram builds Scenario 1's template by hand: a Start
// state with two rules, the second of which emits a Record.
func interfaceStatusProgram(t *testing.T) *fsm.Program {
	t.Helper()
	values := []fsm.ValueDef{
		{Name: "INTERFACE", Kind: record.Scalar, Required: true},
		{Name: "STATUS", Kind: record.Scalar},
		{Name: "IP", Kind: record.Scalar},
	}
	start := &fsm.State{
		Name: fsm.StartState,
		Rules: []*fsm.Rule{
			{
				Pattern:      `^Interface (?P<INTERFACE>\S+) is (?P<STATUS>up|down)$`,
				Matcher:      compile(t, `^Interface (?P<INTERFACE>\S+) is (?P<STATUS>up|down)$`),
				CaptureNames: []string{"INTERFACE", "STATUS"},
				Transition:   fsm.Transition{Record: fsm.NoRecord, Line: fsm.Next},
			},
			{
				Pattern:      `^  IP address is (?P<IP>\d+\.\d+\.\d+\.\d+)$`,
				Matcher:      compile(t, `^  IP address is (?P<IP>\d+\.\d+\.\d+\.\d+)$`),
				CaptureNames: []string{"IP"},
				Transition:   fsm.Transition{Record: fsm.RecordAct, Line: fsm.Next},
			},
		},
	}
	p, err := fsm.NewProgram(values, []*fsm.State{start})
	require.NoError(t, err)
	return p
}

func TestScenario1BasicCaptureAndRecord(t *testing.T) {
	p := interfaceStatusProgram(t)
	rt := fsm.NewRuntime(p, nil)

	input := "Interface Gi0/1 is up\n  IP address is 192.168.1.1\n" +
		"Interface Gi0/2 is down\n  IP address is 10.0.0.1\n"
	records, err := rt.ParseString(input)
	require.NoError(t, err)
	require.Len(t, records, 2)

	v, _ := records[0].Get("INTERFACE")
	assert.Equal(t, "Gi0/1", v.Str)
	v, _ = records[0].Get("STATUS")
	assert.Equal(t, "up", v.Str)
	v, _ = records[0].Get("IP")
	assert.Equal(t, "192.168.1.1", v.Str)

	v, _ = records[1].Get("INTERFACE")
	assert.Equal(t, "Gi0/2", v.Str)
	v, _ = records[1].Get("STATUS")
	assert.Equal(t, "down", v.Str)
}

func TestScenario3Filldown(t *testing.T) {
	values := []fsm.ValueDef{
		{Name: "HOSTNAME", Kind: record.Scalar, Filldown: true},
		{Name: "LINE", Kind: record.Scalar},
	}
	start := &fsm.State{
		Name: fsm.StartState,
		Rules: []*fsm.Rule{
			{
				Pattern:      `^Host (?P<HOSTNAME>\S+)$`,
				Matcher:      compile(t, `^Host (?P<HOSTNAME>\S+)$`),
				CaptureNames: []string{"HOSTNAME"},
				Transition:   fsm.Transition{Record: fsm.NoRecord, Line: fsm.Next},
			},
			{
				Pattern:      `^Line (?P<LINE>\S+)$`,
				Matcher:      compile(t, `^Line (?P<LINE>\S+)$`),
				CaptureNames: []string{"LINE"},
				Transition:   fsm.Transition{Record: fsm.RecordAct, Line: fsm.Next},
			},
		},
	}
	p, err := fsm.NewProgram(values, []*fsm.State{start})
	require.NoError(t, err)
	rt := fsm.NewRuntime(p, nil)

	records, err := rt.ParseString("Host router1\nLine one\nLine two\nLine three\n")
	require.NoError(t, err)
	require.Len(t, records, 3)
	for _, rec := range records {
		h, _ := rec.Get("HOSTNAME")
		assert.Equal(t, "router1", h.Str)
	}
}

func TestScenario4Fillup(t *testing.T) {
	values := []fsm.ValueDef{
		{Name: "UPTIME", Kind: record.Scalar, Fillup: true},
		{Name: "IDX", Kind: record.Scalar},
	}
	start := &fsm.State{
		Name: fsm.StartState,
		Rules: []*fsm.Rule{
			{
				Pattern:      `^Row (?P<IDX>\d+)(?: uptime (?P<UPTIME>\S+))?$`,
				Matcher:      compile(t, `^Row (?P<IDX>\d+)(?: uptime (?P<UPTIME>\S+))?$`),
				CaptureNames: []string{"IDX", "UPTIME"},
				Transition:   fsm.Transition{Record: fsm.RecordAct, Line: fsm.Next},
			},
		},
	}
	p, err := fsm.NewProgram(values, []*fsm.State{start})
	require.NoError(t, err)
	rt := fsm.NewRuntime(p, nil)

	records, err := rt.ParseString("Row 1\nRow 2\nRow 3 uptime 10d\n")
	require.NoError(t, err)
	require.Len(t, records, 3)
	for _, rec := range records {
		u, _ := rec.Get("UPTIME")
		assert.Equal(t, "10d", u.Str)
	}
}

func TestScenario6EOFFinalization(t *testing.T) {
	values := []fsm.ValueDef{{Name: "Name", Kind: record.Scalar}}
	start := &fsm.State{
		Name: fsm.StartState,
		Rules: []*fsm.Rule{
			{
				Pattern:      `^Name: (?P<Name>\S+)$`,
				Matcher:      compile(t, `^Name: (?P<Name>\S+)$`),
				CaptureNames: []string{"Name"},
				Transition:   fsm.Transition{Record: fsm.NoRecord, Line: fsm.Next},
			},
		},
	}
	p, err := fsm.NewProgram(values, []*fsm.State{start})
	require.NoError(t, err)
	rt := fsm.NewRuntime(p, nil)

	records, err := rt.ParseString("Name: Dave")
	require.NoError(t, err)
	require.Len(t, records, 1)
	n, _ := records[0].Get("Name")
	assert.Equal(t, "Dave", n.Str)
}

func TestStateWithNoCaptureAndNoRecordEmitsNothing(t *testing.T) {
	start := &fsm.State{
		Name: fsm.StartState,
		Rules: []*fsm.Rule{
			{
				Pattern:    `^.*$`,
				Matcher:    compile(t, `^.*$`),
				Transition: fsm.Transition{Record: fsm.NoRecord, Line: fsm.Continue},
			},
		},
	}
	p, err := fsm.NewProgram(nil, []*fsm.State{start})
	require.NoError(t, err)
	rt := fsm.NewRuntime(p, nil)

	records, err := rt.ParseString("anything\nat all\n")
	require.NoError(t, err)
	assert.Empty(t, records)
}

func TestRequiredValueGatesRecord(t *testing.T) {
	values := []fsm.ValueDef{
		{Name: "A", Kind: record.Scalar, Required: true},
		{Name: "B", Kind: record.Scalar},
	}
	start := &fsm.State{
		Name: fsm.StartState,
		Rules: []*fsm.Rule{
			{
				Pattern:      `^B=(?P<B>\S+)$`,
				Matcher:      compile(t, `^B=(?P<B>\S+)$`),
				CaptureNames: []string{"B"},
				Transition:   fsm.Transition{Record: fsm.RecordAct, Line: fsm.Next},
			},
		},
	}
	p, err := fsm.NewProgram(values, []*fsm.State{start})
	require.NoError(t, err)
	rt := fsm.NewRuntime(p, nil)

	records, err := rt.ParseString("B=foo\n")
	require.NoError(t, err)
	assert.Empty(t, records, "record missing required A must be dropped")
}

func TestContinueWithNamedStateIsRejectedAtCompile(t *testing.T) {
	values := []fsm.ValueDef{}
	start := &fsm.State{
		Name: fsm.StartState,
		Rules: []*fsm.Rule{
			{
				Pattern: `^interface`,
				Matcher: compile(t, `^interface`),
				Transition: fsm.Transition{
					Record: fsm.RecordAct,
					Line:   fsm.Continue,
					Next:   fsm.NextState{Kind: fsm.NamedState, Name: fsm.StartState},
				},
			},
		},
	}
	_, err := fsm.NewProgram(values, []*fsm.State{start})
	assert.Error(t, err)
}

func TestContinueRecordReevaluatesNextRuleSameLine(t *testing.T) {
	values := []fsm.ValueDef{
		{Name: "X", Kind: record.Scalar},
		{Name: "Y", Kind: record.Scalar},
	}
	start := &fsm.State{
		Name: fsm.StartState,
		Rules: []*fsm.Rule{
			{
				Pattern:      `^X=(?P<X>\d+)`,
				Matcher:      compile(t, `^X=(?P<X>\d+)`),
				CaptureNames: []string{"X"},
				Transition:   fsm.Transition{Record: fsm.RecordAct, Line: fsm.Continue},
			},
			{
				Pattern:      `^X=\d+ Y=(?P<Y>\d+)$`,
				Matcher:      compile(t, `^X=\d+ Y=(?P<Y>\d+)$`),
				CaptureNames: []string{"Y"},
				Transition:   fsm.Transition{Record: fsm.RecordAct, Line: fsm.Next},
			},
		},
	}
	p, err := fsm.NewProgram(values, []*fsm.State{start})
	require.NoError(t, err)
	rt := fsm.NewRuntime(p, nil)

	records, err := rt.ParseString("X=1 Y=2\n")
	require.NoError(t, err)
	require.Len(t, records, 2,
		"Continue.Record must fire the first rule's record then re-evaluate the next rule against the same line")

	v, _ := records[0].Get("X")
	assert.Equal(t, "1", v.Str)
	y, _ := records[0].Get("Y")
	assert.True(t, y.IsEmpty(), "first record is flushed before the second rule captures Y")

	v, _ = records[1].Get("Y")
	assert.Equal(t, "2", v.Str)
}

func TestClearallDiscardsFilldownAndCurrent(t *testing.T) {
	values := []fsm.ValueDef{
		{Name: "HOSTNAME", Kind: record.Scalar, Filldown: true},
		{Name: "MARK", Kind: record.Scalar},
	}
	start := &fsm.State{
		Name: fsm.StartState,
		Rules: []*fsm.Rule{
			{
				Pattern:      `^Host (?P<HOSTNAME>\S+)$`,
				Matcher:      compile(t, `^Host (?P<HOSTNAME>\S+)$`),
				CaptureNames: []string{"HOSTNAME"},
				Transition:   fsm.Transition{Record: fsm.NoRecord, Line: fsm.Next},
			},
			{
				Pattern:    `^clear$`,
				Matcher:    compile(t, `^clear$`),
				Transition: fsm.Transition{Record: fsm.Clearall, Line: fsm.Next},
			},
			{
				Pattern:      `^flush (?P<MARK>\S+)$`,
				Matcher:      compile(t, `^flush (?P<MARK>\S+)$`),
				CaptureNames: []string{"MARK"},
				Transition:   fsm.Transition{Record: fsm.RecordAct, Line: fsm.Next},
			},
		},
	}
	p, err := fsm.NewProgram(values, []*fsm.State{start})
	require.NoError(t, err)
	rt := fsm.NewRuntime(p, nil)

	records, err := rt.ParseString("Host router1\nclear\nflush x\n")
	require.NoError(t, err)
	require.Len(t, records, 1)
	h, _ := records[0].Get("HOSTNAME")
	assert.Equal(t, "", h.Str, "Clearall must drop the filldown value entirely")
}

func TestParseReaderYieldsSameRecordsAsParseString(t *testing.T) {
	p := interfaceStatusProgram(t)
	input := "Interface Gi0/1 is up\n  IP address is 192.168.1.1\n" +
		"Interface Gi0/2 is down\n  IP address is 10.0.0.1\n"

	rtString := fsm.NewRuntime(p, nil)
	want, err := rtString.ParseString(input)
	require.NoError(t, err)

	rtReader := fsm.NewRuntime(p, nil)
	next := rtReader.ParseReader(strings.NewReader(input))
	var got []*record.DataRecord
	for {
		rec, err, ok := next()
		require.NoError(t, err)
		if !ok {
			break
		}
		got = append(got, rec)
	}

	require.Len(t, got, len(want))
	for i := range want {
		wv, _ := want[i].Get("INTERFACE")
		gv, _ := got[i].Get("INTERFACE")
		assert.Equal(t, wv.Str, gv.Str)
	}
}
