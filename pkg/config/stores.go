package config

import (
	"fmt"

	"github.com/marmos91/ftpbridge/internal/logger"
	"github.com/marmos91/ftpbridge/pkg/remote"
	"github.com/marmos91/ftpbridge/pkg/users"
	"github.com/marmos91/ftpbridge/pkg/vfs"
)

// CreateUserStore loads the credential file.
//
// When users.require_superuser_record is set, the superuser of proc must be
// an enabled record of the file; otherwise the superuser is only the
// identity used on the remote store and needs no FTP account.
//
// Parameters:
//   - cfg: The credential file configuration
//   - proc: The process state (superuser identity)
//
// Returns:
//   - *users.Store: Loaded store
//   - error: Unreadable or malformed file, or a missing superuser record
func CreateUserStore(cfg *UsersConfig, proc ProcessConfig) (*users.Store, error) {
	store, err := users.NewStore(users.Options{
		File:     cfg.File,
		Encoding: users.Encoding(cfg.PasswordEncoding),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to load credential file %s: %w", cfg.File, err)
	}

	if cfg.RequireSuperuserRecord {
		if err := store.ValidateSuperuser(proc.Superuser); err != nil {
			return nil, fmt.Errorf("superuser %q: %w", proc.Superuser, err)
		}
	}

	return store, nil
}

// CreateView builds the virtual filesystem every session is served through.
func CreateView(client remote.Client, cfg *PolicyConfig) *vfs.View {
	policy := vfs.Policy{
		RecursiveDelete: cfg.RecursiveDelete,
		Overwrite:       cfg.Overwrite,
		ChownToUser:     cfg.ChownToUser,
	}
	logger.Debug("File policy: recursive_delete=%v overwrite=%v chown_to_user=%v",
		policy.RecursiveDelete, policy.Overwrite, policy.ChownToUser)
	return vfs.NewView(client, policy)
}
