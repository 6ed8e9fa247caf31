package tempfile

import (
	"os"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestCreateUnlinkedHasNoPath(t *testing.T) {
	dir := t.TempDir()

	f, err := CreateUnlinked(dir)
	require.NoError(t, err)
	defer f.Close()

	_, err = os.Stat(f.Name())
	require.Error(t, err)
	require.True(t, os.IsNotExist(err))

	_, err = f.WriteString("captured output")
	require.NoError(t, err)

	buf := make([]byte, len("captured output"))
	n, err := f.ReadAt(buf, 0)
	require.NoError(t, err)
	require.Equal(t, "captured output", string(buf[:n]))
}

func TestCreateNamedCopyPreservesContentAndMode(t *testing.T) {
	dir := t.TempDir()
	src := dir + "/source"
	require.NoError(t, os.WriteFile(src, []byte("#!/bin/sh\necho hi\n"), 0o755))

	path, cleanup, err := CreateNamedCopy(dir, src)
	require.NoError(t, err)
	defer cleanup()

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	require.Equal(t, "#!/bin/sh\necho hi\n", string(data))

	st, err := os.Stat(path)
	require.NoError(t, err)
	require.Equal(t, os.FileMode(ownerReadExecute), st.Mode().Perm())

	cleanup()
	_, err = os.Stat(path)
	require.True(t, os.IsNotExist(err))
}
