package main

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFileStoreSaveAndURL(t *testing.T) {
	fs := newFileStore(t.TempDir(), "http://media.test/")

	rel, err := fs.Save("illustrations", "cover.png", []byte("png-bytes"))
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(rel, "illustrations/"))
	assert.True(t, strings.HasSuffix(rel, "/cover.png"))

	content, err := os.ReadFile(filepath.Join(fs.root, rel))
	require.NoError(t, err)
	assert.Equal(t, []byte("png-bytes"), content)

	url := fs.URL(rel)
	require.NotNil(t, url)
	assert.Equal(t, "http://media.test/media/"+rel, *url)
	assert.Nil(t, fs.URL(""))
}

func TestFileStoreSaveStripsDirectories(t *testing.T) {
	fs := newFileStore(t.TempDir(), "http://media.test")

	rel, err := fs.Save("paroles_pdf", "../../etc/passwd", []byte("x"))
	require.NoError(t, err)
	assert.True(t, strings.HasSuffix(rel, "/passwd"))
	assert.False(t, strings.Contains(rel, ".."))
}

func TestFileStoreRemove(t *testing.T) {
	fs := newFileStore(t.TempDir(), "http://media.test")

	rel, err := fs.Save("partitions", "score.pdf", []byte("pdf"))
	require.NoError(t, err)
	require.NoError(t, fs.Remove(rel))
	_, err = os.Stat(filepath.Join(fs.root, rel))
	assert.True(t, os.IsNotExist(err))

	// already gone, and blank references, are both fine
	assert.NoError(t, fs.Remove(rel))
	assert.NoError(t, fs.Remove(""))
}

func TestFileStoreClone(t *testing.T) {
	fs := newFileStore(t.TempDir(), "http://media.test")

	rel, err := fs.Save("pistes_audio", "chant.mp3", []byte("mp3-bytes"))
	require.NoError(t, err)

	content, name := fs.Clone(rel)
	assert.Equal(t, []byte("mp3-bytes"), content)
	assert.Equal(t, "chant.mp3", name)

	content, name = fs.Clone("pistes_audio/nope/gone.mp3")
	assert.Nil(t, content)
	assert.Equal(t, "", name)

	content, name = fs.Clone("")
	assert.Nil(t, content)
	assert.Equal(t, "", name)
}

func TestCloneStoredFileMakesIndependentCopy(t *testing.T) {
	old := fileStore
	fileStore = newFileStore(t.TempDir(), "http://media.test")
	defer func() { fileStore = old }()

	rel, err := fileStore.Save("demandes_audio", "take1.mp3", []byte("audio"))
	require.NoError(t, err)

	cloned, err := cloneStoredFile(rel, "pistes_audio")
	require.NoError(t, err)
	require.True(t, cloned.Valid)
	assert.NotEqual(t, rel, cloned.String)

	// deleting the original must not touch the clone
	require.NoError(t, fileStore.Remove(rel))
	content, name := fileStore.Clone(cloned.String)
	assert.Equal(t, []byte("audio"), content)
	assert.Equal(t, "take1.mp3", name)
}

func TestCloneStoredFileMissingSource(t *testing.T) {
	old := fileStore
	fileStore = newFileStore(t.TempDir(), "http://media.test")
	defer func() { fileStore = old }()

	cloned, err := cloneStoredFile("demandes_audio/gone/take.mp3", "pistes_audio")
	require.NoError(t, err)
	assert.False(t, cloned.Valid)

	cloned, err = cloneStoredFile("", "pistes_audio")
	require.NoError(t, err)
	assert.False(t, cloned.Valid)
}
