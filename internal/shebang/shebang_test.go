package shebang

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestResolveShebangLine(t *testing.T) {
	dir := t.TempDir()
	script := filepath.Join(dir, "hello_script")
	require.NoError(t, os.WriteFile(script, []byte("#!/bin/bash\n\necho Hi\n"), 0o755))

	argv, err := Resolve(dir, "hello_script")
	require.NoError(t, err)
	require.Equal(t, []string{"/bin/bash", script}, argv)
}

func TestResolveNoShebangTreatsFileAsImage(t *testing.T) {
	dir := t.TempDir()
	script := filepath.Join(dir, "binary")
	require.NoError(t, os.WriteFile(script, []byte("\x7fELFnotreallyabinary"), 0o755))

	argv, err := Resolve(dir, "binary")
	require.NoError(t, err)
	require.Equal(t, []string{script}, argv)
}

func TestResolveEscapedSpaceInInterpreterPath(t *testing.T) {
	dir := t.TempDir()
	interpDir := filepath.Join(dir, "my interp")
	require.NoError(t, os.MkdirAll(interpDir, 0o755))
	script := filepath.Join(dir, "weird_script")
	require.NoError(t, os.WriteFile(script, []byte("#!my\\ interp/run\necho hi\n"), 0o755))

	argv, err := Resolve(dir, "weird_script")
	require.NoError(t, err)
	require.Equal(t, []string{filepath.Join(dir, "my interp", "run"), script}, argv)
}

func TestParseInterpreterPathStopsAtUnescapedSpace(t *testing.T) {
	require.Equal(t, "/bin/bash", parseInterpreterPath([]byte("/bin/bash -x")))
	require.Equal(t, "/a b/c", parseInterpreterPath([]byte(`/a\ b/c`)))
	require.Equal(t, "", parseInterpreterPath([]byte("   ")))
}
