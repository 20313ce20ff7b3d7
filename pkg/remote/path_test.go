package remote

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestClean(t *testing.T) {
	tests := []struct{ in, want string }{
		{"", "/"},
		{"/", "/"},
		{"a/b", "/a/b"},
		{"/a//b/", "/a/b"},
		{"/a/../../b", "/b"},
		{"/a/./b/..", "/a"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, Clean(tt.in), "Clean(%q)", tt.in)
	}
}

func TestParentAndBase(t *testing.T) {
	assert.Equal(t, "/", Parent("/"))
	assert.Equal(t, "/", Parent("/a"))
	assert.Equal(t, "/a", Parent("/a/b/"))

	assert.Equal(t, "/", Base("/"))
	assert.Equal(t, "b", Base("/a/b"))
}

func TestIsRootAndWithin(t *testing.T) {
	assert.True(t, IsRoot(""))
	assert.True(t, IsRoot("/.."))
	assert.False(t, IsRoot("/a"))

	assert.True(t, Within("/home/alice", "/home/alice"))
	assert.True(t, Within("/home/alice/docs", "/home/alice"))
	assert.False(t, Within("/home/alice2", "/home/alice"))
	assert.False(t, Within("/home", "/home/alice"))
	assert.True(t, Within("/anything", "/"))
}
