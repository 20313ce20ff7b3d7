//go:build integration

package hdfs

import (
	"os"
	"testing"

	"github.com/google/uuid"
	"github.com/marmos91/ftpbridge/pkg/remote"
	remotetesting "github.com/marmos91/ftpbridge/pkg/remote/testing"
	"github.com/stretchr/testify/require"
)

// TestHDFSClient_Integration runs the client suite against a live namenode.
//
// Prerequisites:
//   - HDFS_NAMENODE set to host:port (default localhost:9000)
//   - Run with: go test -tags=integration ./pkg/remote/hdfs/...
func TestHDFSClient_Integration(t *testing.T) {
	namenode := os.Getenv("HDFS_NAMENODE")
	if namenode == "" {
		namenode = "localhost:9000"
	}
	user := os.Getenv("HDFS_USER")
	if user == "" {
		user = "hdfs"
	}

	suite := &remotetesting.ClientTestSuite{
		NewClient: func(t *testing.T) remote.Client {
			root := "/ftpbridge-test/" + uuid.NewString()

			admin, err := New(Config{Addresses: []string{namenode}, User: user})
			require.NoError(t, err)
			_ = admin.nn.Mkdir("/ftpbridge-test", 0o755)
			require.NoError(t, admin.nn.Mkdir(root, 0o755))
			t.Cleanup(func() {
				_ = admin.nn.RemoveAll(root)
				_ = admin.Close()
			})

			c, err := New(Config{Addresses: []string{namenode}, User: user, Root: root})
			require.NoError(t, err)
			return c
		},
	}
	suite.Run(t)
}
