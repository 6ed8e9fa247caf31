package procedure

import (
	"context"
	"os"
	"path/filepath"
	"regexp"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/eewanco/scriptfs/internal/procexec"
)

func newTestContext(t *testing.T, dir string) *Context {
	t.Helper()
	return &Context{
		MirrorRoot: dir,
		Runner:     procexec.New(nil),
		TempDir:    t.TempDir(),
	}
}

func TestClassifyFirstMatchWins(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "hello_script"), []byte("#!/bin/sh\necho hi\n"), 0o755))

	c := NewClassifier([]Procedure{
		{Program: autoProgram{}, Test: alwaysTest{}},
		{Program: selfProgram{}, Test: alwaysTest{}},
	})

	pc := newTestContext(t, dir)
	proc, err := c.Classify(context.Background(), pc, "hello_script")
	require.NoError(t, err)
	require.NotNil(t, proc)
	require.IsType(t, autoProgram{}, proc.Program)
}

func TestClassifyNoMatchIsPassThrough(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "plain.txt"), []byte("hi\n"), 0o644))

	c := NewClassifier([]Procedure{
		{Program: autoProgram{}, Test: patternTest{re: regexp.MustCompilePOSIX("nomatch")}},
	})

	pc := newTestContext(t, dir)
	proc, err := c.Classify(context.Background(), pc, "plain.txt")
	require.NoError(t, err)
	require.Nil(t, proc)
}

func TestClassifyShebangOrExecutable(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "hello_script"), []byte("#!/bin/sh\necho hi\n"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "plain.txt"), []byte("hi\n"), 0o644))

	c := NewClassifier(Default())
	pc := newTestContext(t, dir)

	proc, err := c.Classify(context.Background(), pc, "hello_script")
	require.NoError(t, err)
	require.NotNil(t, proc)

	proc, err = c.Classify(context.Background(), pc, "plain.txt")
	require.NoError(t, err)
	require.Nil(t, proc)
}
