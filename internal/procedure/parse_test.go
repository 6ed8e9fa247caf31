package procedure

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestParseDefaultsToAutoShebangOrExecutable(t *testing.T) {
	p, err := Parse("auto")
	require.NoError(t, err)
	require.IsType(t, autoProgram{}, p.Program)
	require.IsType(t, shebangOrExecutableTest{}, p.Test)
}

func TestParseSelfDefaultsToExecutableTest(t *testing.T) {
	p, err := Parse("self")
	require.NoError(t, err)
	require.IsType(t, selfProgram{}, p.Program)
	require.IsType(t, executableTest{}, p.Test)
}

func TestParseExternalProgramReusesArgvAsDefaultTest(t *testing.T) {
	p, err := Parse("args !")
	require.NoError(t, err)

	prog, ok := p.Program.(externalProgram)
	require.True(t, ok)
	require.Equal(t, []string{"args", "!"}, prog.argv)
	require.Equal(t, 1, prog.placeholder)
	require.False(t, prog.filter)

	test, ok := p.Test.(externalTest)
	require.True(t, ok)
	require.Equal(t, []string{"args", "!"}, test.argv)
	require.Equal(t, 1, test.placeholder)
}

func TestParseFilterModeWithNoPlaceholder(t *testing.T) {
	p, err := Parse(`awk {print NR,$0};always`)
	require.NoError(t, err)
	prog := p.Program.(externalProgram)
	require.True(t, prog.filter)
	require.Equal(t, -1, prog.placeholder)
	require.IsType(t, alwaysTest{}, p.Test)
}

func TestParseExplicitAlways(t *testing.T) {
	p, err := Parse("myprog;always")
	require.NoError(t, err)
	require.IsType(t, alwaysTest{}, p.Test)
}

func TestParseExplicitExecutable(t *testing.T) {
	p, err := Parse("myprog;executable")
	require.NoError(t, err)
	require.IsType(t, executableTest{}, p.Test)
}

func TestParsePatternTest(t *testing.T) {
	p, err := Parse("/bin/echo !;&file_[0-4]")
	require.NoError(t, err)
	test, ok := p.Test.(patternTest)
	require.True(t, ok)
	require.True(t, test.re.MatchString("file_1"))
	require.False(t, test.re.MatchString("file_5"))
}

func TestParseEmptyPatternErrors(t *testing.T) {
	_, err := Parse("myprog;&")
	require.ErrorIs(t, err, ErrEmptyPattern)
}

func TestParseEmptySpecErrors(t *testing.T) {
	_, err := Parse("   ;always")
	require.NoError(t, err) // empty PROGRAM half defaults to "auto"

	_, err = Parse("myprog;   ")
	require.Error(t, err)
}

func TestDefaultProcedureListIsAuto(t *testing.T) {
	procs := Default()
	require.Len(t, procs, 1)
	require.IsType(t, autoProgram{}, procs[0].Program)
	require.IsType(t, shebangOrExecutableTest{}, procs[0].Test)
}
