package utils

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestChecksumReaderKnownVector(t *testing.T) {
	sums, err := ChecksumReader(bytes.NewReader([]byte("abc")))
	require.NoError(t, err)

	assert.Equal(t, int64(3), sums.Size)
	assert.Equal(t, "900150983cd24fb0d6963f7d28e17f72", sums.MD5)
	assert.Equal(t, "a9993e364706816aba3e25717850c26c9cd0d89d", sums.SHA1)
	assert.Equal(t, "ba7816bf8f01cfea414140de5dae2223b00361a396177a9cb410ff61f20015ad", sums.SHA256)
}

func TestChecksumFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "f")
	require.NoError(t, os.WriteFile(path, []byte("abc"), 0644))

	sums, err := ChecksumFile(path)
	require.NoError(t, err)
	assert.Equal(t, "ba7816bf8f01cfea414140de5dae2223b00361a396177a9cb410ff61f20015ad", sums.SHA256)
}

func TestGzipRoundTrip(t *testing.T) {
	data := []byte("Package: test\nVersion: 1.0\n\n")

	compressed, err := GzipCompress(data)
	require.NoError(t, err)
	decompressed, err := GzipDecompress(compressed)
	require.NoError(t, err)

	assert.Equal(t, data, decompressed)
}

func TestXzRoundTrip(t *testing.T) {
	data := []byte("Package: test\nVersion: 1.0\n\n")

	compressed, err := XzCompress(data)
	require.NoError(t, err)
	decompressed, err := XzDecompress(compressed)
	require.NoError(t, err)

	assert.Equal(t, data, decompressed)
}

func TestWriteFileAtomicLeavesNoTemp(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "sub", "file.txt")

	require.NoError(t, WriteFileAtomic(path, []byte("one"), 0644))
	require.NoError(t, WriteFileAtomic(path, []byte("two"), 0644))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "two", string(data))

	entries, err := os.ReadDir(filepath.Dir(path))
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}

func TestSwapSymlink(t *testing.T) {
	root := t.TempDir()
	link := filepath.Join(root, "dist")

	for _, gen := range []string{".gen-1", ".gen-2"} {
		dir := filepath.Join(root, gen)
		require.NoError(t, os.MkdirAll(dir, 0755))
		require.NoError(t, os.WriteFile(filepath.Join(dir, "Release"), []byte(gen), 0644))
	}

	previous, err := SwapSymlink(".gen-1", link)
	require.NoError(t, err)
	assert.Empty(t, previous)

	data, err := os.ReadFile(filepath.Join(link, "Release"))
	require.NoError(t, err)
	assert.Equal(t, ".gen-1", string(data))

	previous, err = SwapSymlink(".gen-2", link)
	require.NoError(t, err)
	assert.Equal(t, ".gen-1", previous)

	data, err = os.ReadFile(filepath.Join(link, "Release"))
	require.NoError(t, err)
	assert.Equal(t, ".gen-2", string(data))

	_, err = os.Stat(link + ".next")
	assert.True(t, os.IsNotExist(err))
}
