package remote

import (
	"path"
	"strings"
)

// Clean returns the canonical absolute form of name ("/" for empty input).
func Clean(name string) string {
	if name == "" {
		return "/"
	}
	return path.Clean("/" + strings.TrimPrefix(name, "/"))
}

// Parent returns the directory containing name. The parent of "/" is "/".
func Parent(name string) string {
	return path.Dir(Clean(name))
}

// Base returns the last element of name ("/" for the root).
func Base(name string) string {
	return path.Base(Clean(name))
}

// IsRoot reports whether name is the store root.
func IsRoot(name string) bool {
	return Clean(name) == "/"
}

// Within reports whether name equals dir or lies below it.
func Within(name, dir string) bool {
	name, dir = Clean(name), Clean(dir)
	if dir == "/" || name == dir {
		return true
	}
	return strings.HasPrefix(name, dir+"/")
}
