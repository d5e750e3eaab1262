package rules

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeRules(t *testing.T, contents string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "substitutions.rules")
	require.NoError(t, os.WriteFile(path, []byte(contents), 0o600))
	return path
}

func TestEngineLiteralAndSedRules(t *testing.T) {
	t.Parallel()

	path := writeRules(t, `
# literal
pull request => PR
# regex, case-insensitive by default
s/\bdeep\s*gram\b/Deepgram/g
`)

	engine, err := Load(path, 30, nil)
	require.NoError(t, err)
	assert.Equal(t, 2, engine.Len())

	output, err := engine.Apply("deep gram pull request")
	require.NoError(t, err)
	assert.Equal(t, "Deepgram PR", output)
}

func TestEngineIteratesUntilStable(t *testing.T) {
	t.Parallel()

	engine, err := Load(writeRules(t, "b => c\na => b\n"), 5, nil)
	require.NoError(t, err)

	output, err := engine.Apply("a")
	require.NoError(t, err)
	assert.Equal(t, "c", output)
}

func TestEngineStopsAtIterationLimit(t *testing.T) {
	t.Parallel()

	engine, err := Load("", 3, []string{"x => xx"})
	require.NoError(t, err)

	output, err := engine.Apply("x")
	require.NoError(t, err)
	assert.Equal(t, "xxxxxxxx", output)
}

func TestEngineLiteralRuleStartingWithS(t *testing.T) {
	t.Parallel()

	engine, err := Load(writeRules(t, "solid complaint => SOLID-compliant\n"), 30, nil)
	require.NoError(t, err)

	output, err := engine.Apply("solid complaint plan")
	require.NoError(t, err)
	assert.Equal(t, "SOLID-compliant plan", output)
}

func TestEngineLiteralReplacementIsNotExpanded(t *testing.T) {
	t.Parallel()

	engine, err := Load("", 30, []string{"dollar sign => $1"})
	require.NoError(t, err)

	output, err := engine.Apply("a dollar sign")
	require.NoError(t, err)
	assert.Equal(t, "a $1", output)
}

func TestEngineMissingFileHasNoRules(t *testing.T) {
	t.Parallel()

	engine, err := Load(filepath.Join(t.TempDir(), "missing.rules"), 0, nil)
	require.NoError(t, err)
	assert.Zero(t, engine.Len())
	assert.Equal(t, defaultIterationLimit, engine.limit)

	output, err := engine.Apply("unchanged")
	require.NoError(t, err)
	assert.Equal(t, "unchanged", output)
}

func TestEngineCombinesFileAndInlineRules(t *testing.T) {
	t.Parallel()

	engine, err := Load(writeRules(t, "one => 1\n"), 30, []string{"two => 2"})
	require.NoError(t, err)

	output, err := engine.Apply("one two")
	require.NoError(t, err)
	assert.Equal(t, "1 2", output)
}

func TestLoadReportsLineNumber(t *testing.T) {
	t.Parallel()

	_, err := Load(writeRules(t, "# ok\n\nnot a rule\n"), 30, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "line 3")
}

func TestSedRuleWithoutGlobalReplacesFirstMatchOnly(t *testing.T) {
	t.Parallel()

	r, err := parseSedRule(`s/foo/bar/`)
	require.NoError(t, err)

	output, changed := r.apply("foo foo")
	assert.True(t, changed)
	assert.Equal(t, "bar foo", output)
}

func TestSedRuleExpandsGroups(t *testing.T) {
	t.Parallel()

	r, err := parseSedRule(`s|(\w+) dot com|${1}.com|`)
	require.NoError(t, err)

	output, _ := r.apply("visit example dot com today")
	assert.Equal(t, "visit example.com today", output)
}

func TestSedRuleEscapedDelimiter(t *testing.T) {
	t.Parallel()

	r, err := parseSedRule(`s/and\/or/or/g`)
	require.NoError(t, err)

	output, _ := r.apply("this and/or that")
	assert.Equal(t, "this or that", output)
}

func TestParseSedRuleErrors(t *testing.T) {
	t.Parallel()

	for _, line := range []string{`s/foo/bar/x`, `s/foo/bar`, `s/(/x/`} {
		_, err := parseSedRule(line)
		assert.Error(t, err, line)
	}
}

func TestParseLineRejectsEmptyLiteralSource(t *testing.T) {
	t.Parallel()

	_, err := parseLine(" => nothing")
	require.Error(t, err)
	assert.True(t, strings.Contains(err.Error(), "cannot be empty"))
}
