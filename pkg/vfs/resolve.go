package vfs

import (
	"strings"

	"github.com/marmos91/ftpbridge/pkg/remote"
)

// Resolve maps a client-supplied path to an absolute remote path confined to
// the session's home directory.
//
// A leading "/" is the home directory; anything else is relative to the
// current directory. "." and ".." are applied segment by segment and a step
// above the home directory fails with ErrOutsideHome instead of being
// clamped. An empty input is the current directory. Resolve never contacts
// the remote store.
func Resolve(s Session, input string) (string, error) {
	home := s.Home()

	base := s.Cwd
	rest := input
	if strings.HasPrefix(input, "/") {
		base = home
		rest = input[1:]
	}
	if !remote.Within(base, home) {
		return "", pathErr("resolve", input, ErrOutsideHome)
	}

	// Segments below home; len(stack) is the depth below home.
	var stack []string
	if rel := strings.TrimPrefix(remote.Clean(base), home); rel != "" {
		stack = strings.Split(strings.Trim(rel, "/"), "/")
	}

	for _, seg := range strings.Split(rest, "/") {
		switch seg {
		case "", ".":
		case "..":
			if len(stack) == 0 {
				return "", pathErr("resolve", input, ErrOutsideHome)
			}
			stack = stack[:len(stack)-1]
		default:
			if strings.ContainsRune(seg, 0) {
				return "", pathErr("resolve", input, ErrNotFound)
			}
			stack = append(stack, seg)
		}
	}

	if len(stack) == 0 {
		return home, nil
	}
	if home == "/" {
		return "/" + strings.Join(stack, "/"), nil
	}
	return home + "/" + strings.Join(stack, "/"), nil
}
