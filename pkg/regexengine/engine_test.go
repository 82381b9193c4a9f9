package regexengine_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gotextfsm/pkg/regexengine"
)

func TestCompileLinearEngine(t *testing.T) {
	m, err := regexengine.Compile(`^Interface (?P<IFACE>\S+) is (?P<STATUS>up|down)$`, nil)
	require.NoError(t, err)
	assert.Equal(t, regexengine.Linear, m.Kind())

	matches := m.FindAll("Interface Gi0/1 is up")
	require.Len(t, matches, 1)
	assert.Equal(t, "Gi0/1", matches[0]["IFACE"])
	assert.Equal(t, "up", matches[0]["STATUS"])
}

func TestCompileFallsBackToBacktracking(t *testing.T) {
	// A backreference is not supported by RE2 and must fall back.
	m, err := regexengine.Compile(`^(?P<WORD>\w+) \k<WORD>$`, nil)
	require.NoError(t, err)
	assert.Equal(t, regexengine.Backtracking, m.Kind())

	matches := m.FindAll("echo echo")
	require.Len(t, matches, 1)
	assert.Equal(t, "echo", matches[0]["WORD"])
}

func TestFindAllReturnsEveryMatchInOrder(t *testing.T) {
	m, err := regexengine.Compile(`(?P<NUM>\d+)`, nil)
	require.NoError(t, err)
	matches := m.FindAll("a1 b22 c333")
	require.Len(t, matches, 3)
	assert.Equal(t, "1", matches[0]["NUM"])
	assert.Equal(t, "22", matches[1]["NUM"])
	assert.Equal(t, "333", matches[2]["NUM"])
}

func TestCompileInvalidPatternFails(t *testing.T) {
	_, err := regexengine.Compile(`(unclosed`, nil)
	assert.Error(t, err)
}
