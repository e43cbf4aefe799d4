package file_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/benmeehan/loomwatch/pkg/file"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type document struct {
	Name  string `json:"name" yaml:"name"`
	Count int    `json:"count" yaml:"count"`
}

func TestFileService_WriteJsonFile(t *testing.T) {
	// Setup
	fs := file.NewFileService()
	path := filepath.Join(t.TempDir(), "nested", "state.json")

	// Execute
	err := fs.WriteJsonFile(path, document{Name: "L-01", Count: 3})

	// Assert
	require.NoError(t, err)
	var got document
	require.NoError(t, fs.ReadJsonFile(path, &got))
	assert.Equal(t, document{Name: "L-01", Count: 3}, got)

	_, err = os.Stat(path + ".tmp")
	assert.True(t, os.IsNotExist(err))
}

func TestFileService_WriteJsonFileReplaces(t *testing.T) {
	// Setup
	fs := file.NewFileService()
	path := filepath.Join(t.TempDir(), "state.json")
	require.NoError(t, fs.WriteJsonFile(path, document{Name: "old", Count: 1}))

	// Execute
	err := fs.WriteJsonFile(path, document{Name: "new", Count: 2})

	// Assert
	require.NoError(t, err)
	var got document
	require.NoError(t, fs.ReadJsonFile(path, &got))
	assert.Equal(t, "new", got.Name)
}

func TestFileService_ReadYamlFile(t *testing.T) {
	// Setup
	fs := file.NewFileService()
	path := filepath.Join(t.TempDir(), "doc.yaml")
	require.NoError(t, os.WriteFile(path, []byte("name: L-02\ncount: 7\n"), 0o644))

	// Execute
	var got document
	err := fs.ReadYamlFile(path, &got)

	// Assert
	require.NoError(t, err)
	assert.Equal(t, document{Name: "L-02", Count: 7}, got)
}

func TestFileService_IsFileExists(t *testing.T) {
	fs := file.NewFileService()
	path := filepath.Join(t.TempDir(), "present")
	require.NoError(t, os.WriteFile(path, []byte("x"), 0o600))

	exists, err := fs.IsFileExists(path)
	require.NoError(t, err)
	assert.True(t, exists)

	exists, err = fs.IsFileExists(path + ".missing")
	require.NoError(t, err)
	assert.False(t, exists)
}

func TestFileService_GetFileHash(t *testing.T) {
	// Setup
	fs := file.NewFileService()
	path := filepath.Join(t.TempDir(), "hello.txt")
	require.NoError(t, os.WriteFile(path, []byte("hello"), 0o600))

	// Execute
	hash, err := fs.GetFileHash(path)

	// Assert
	require.NoError(t, err)
	assert.Equal(t, "2cf24dba5fb0a30e26e83b2ac5b9e29e1b161e5c1fa7425e73043362938b9824", hash)

	_, err = fs.GetFileHash(path + ".missing")
	assert.ErrorIs(t, err, os.ErrNotExist)
}
