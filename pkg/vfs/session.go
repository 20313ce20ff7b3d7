package vfs

import (
	"strings"

	"github.com/google/uuid"
	"github.com/marmos91/ftpbridge/pkg/remote"
	"github.com/marmos91/ftpbridge/pkg/users"
)

// Session is the per-connection state of an authenticated user. It is a
// value: changing directory produces a new Session and the owner keeps
// whichever one it wants.
type Session struct {
	// ID identifies the session in logs.
	ID string

	// User is the authenticated record. Never nil for a valid session.
	User *users.UserRecord

	// Cwd is the current directory as an absolute remote path; it always lies
	// at or below User.HomeDirectory.
	Cwd string
}

// NewSession starts a session in the user's home directory.
func NewSession(user *users.UserRecord) Session {
	return Session{
		ID:   uuid.NewString(),
		User: user,
		Cwd:  remote.Clean(user.HomeDirectory),
	}
}

// Home returns the remote path of the user's home directory.
func (s Session) Home() string {
	return remote.Clean(s.User.HomeDirectory)
}

// withCwd returns a copy of s positioned at cwd.
func (s Session) withCwd(cwd string) Session {
	s.Cwd = cwd
	return s
}

// Virtual maps a remote path inside the home to the path the client sees,
// where the home directory is "/".
func (s Session) Virtual(remotePath string) string {
	home := s.Home()
	remotePath = remote.Clean(remotePath)
	if home == "/" {
		return remotePath
	}
	if remotePath == home {
		return "/"
	}
	return "/" + strings.TrimPrefix(remotePath, home+"/")
}

// Pwd returns the client-visible current directory.
func (s Session) Pwd() string {
	return s.Virtual(s.Cwd)
}
