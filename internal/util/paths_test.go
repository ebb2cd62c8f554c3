package util

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExpandHome(t *testing.T) {
	home, err := os.UserHomeDir()
	require.NoError(t, err)

	tests := []struct {
		in   string
		want string
	}{
		{"", ""},
		{"~", home},
		{"~/.graphsync/checkpoints", filepath.Join(home, ".graphsync", "checkpoints")},
		{"/var/lib/graphsync/../graphsync", "/var/lib/graphsync"},
		{"relative/dir/", "relative/dir"},
		{"~other/dir", "~other/dir"},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ExpandHome(tt.in)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestIsStdStream(t *testing.T) {
	assert.True(t, IsStdStream("stderr"))
	assert.True(t, IsStdStream("STDOUT"))
	assert.False(t, IsStdStream("/var/log/graphsync.log"))
	assert.False(t, IsStdStream(""))
}
