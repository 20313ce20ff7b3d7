package aferofs

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/marmos91/ftpbridge/pkg/remote"
	remotetesting "github.com/marmos91/ftpbridge/pkg/remote/testing"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryClient(t *testing.T) {
	suite := &remotetesting.ClientTestSuite{
		NewClient: func(t *testing.T) remote.Client {
			return NewMemory()
		},
	}
	suite.Run(t)
}

func TestBasePathClient(t *testing.T) {
	suite := &remotetesting.ClientTestSuite{
		NewClient: func(t *testing.T) remote.Client {
			c, err := NewBasePath(t.TempDir())
			require.NoError(t, err)
			return c
		},
	}
	suite.Run(t)
}

func TestNewBasePath_Validation(t *testing.T) {
	_, err := NewBasePath(filepath.Join(t.TempDir(), "missing"))
	assert.Error(t, err)

	file := filepath.Join(t.TempDir(), "file")
	require.NoError(t, os.WriteFile(file, []byte("x"), 0o644))
	_, err = NewBasePath(file)
	assert.ErrorContains(t, err, "not a directory")
}

func TestBasePathClient_ErrorsHideHostPath(t *testing.T) {
	root := t.TempDir()
	c, err := NewBasePath(root)
	require.NoError(t, err)

	_, err = c.Stat(t.Context(), "/missing.txt")
	require.Error(t, err)
	assert.NotContains(t, err.Error(), root)
}
