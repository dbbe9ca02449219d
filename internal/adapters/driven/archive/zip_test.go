package archive

import (
	"archive/zip"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// writeTree lays out files under root from relative path -> content.
func writeTree(t *testing.T, root string, files map[string]string) {
	t.Helper()
	for rel, content := range files {
		path := filepath.Join(root, filepath.FromSlash(rel))
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
		require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	}
}

func TestZipArchiver_RoundTrip(t *testing.T) {
	src := t.TempDir()
	files := map[string]string{
		"notes.txt":          "top level",
		"sub/report.md":      "# report",
		"sub/deep/data.bin":  "\x00\x01\x02",
		"other/untouched.go": "package other",
	}
	writeTree(t, src, files)

	archivePath := filepath.Join(t.TempDir(), "artifact.zip")
	a := NewZipArchiver()
	require.NoError(t, a.Archive(src, archivePath))

	dest := t.TempDir()
	require.NoError(t, a.Extract(archivePath, dest))

	for rel, want := range files {
		got, err := os.ReadFile(filepath.Join(dest, filepath.FromSlash(rel)))
		require.NoError(t, err, "file %s", rel)
		assert.Equal(t, want, string(got), "file %s", rel)
	}
}

func TestZipArchiver_PreservesEmptyDirectories(t *testing.T) {
	src := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(src, "empty"), 0755))

	archivePath := filepath.Join(t.TempDir(), "artifact.zip")
	a := NewZipArchiver()
	require.NoError(t, a.Archive(src, archivePath))

	dest := t.TempDir()
	require.NoError(t, a.Extract(archivePath, dest))

	info, err := os.Stat(filepath.Join(dest, "empty"))
	require.NoError(t, err)
	assert.True(t, info.IsDir())
}

func TestZipArchiver_Archive_RejectsFileSource(t *testing.T) {
	src := filepath.Join(t.TempDir(), "file.txt")
	require.NoError(t, os.WriteFile(src, []byte("x"), 0644))

	a := NewZipArchiver()
	err := a.Archive(src, filepath.Join(t.TempDir(), "artifact.zip"))
	assert.Error(t, err)
}

func TestZipArchiver_Extract_RejectsEscapingEntries(t *testing.T) {
	archivePath := filepath.Join(t.TempDir(), "evil.zip")
	out, err := os.Create(archivePath)
	require.NoError(t, err)
	w := zip.NewWriter(out)
	fw, err := w.Create("../escape.txt")
	require.NoError(t, err)
	_, err = fw.Write([]byte("nope"))
	require.NoError(t, err)
	require.NoError(t, w.Close())
	require.NoError(t, out.Close())

	a := NewZipArchiver()
	err = a.Extract(archivePath, t.TempDir())
	assert.Error(t, err)
}

func TestZipArchiver_Extract_CreatesDestination(t *testing.T) {
	src := t.TempDir()
	writeTree(t, src, map[string]string{"a.txt": "a"})

	archivePath := filepath.Join(t.TempDir(), "artifact.zip")
	a := NewZipArchiver()
	require.NoError(t, a.Archive(src, archivePath))

	dest := filepath.Join(t.TempDir(), "does", "not", "exist")
	require.NoError(t, a.Extract(archivePath, dest))
	assert.FileExists(t, filepath.Join(dest, "a.txt"))
}
