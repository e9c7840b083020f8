//go:build !windows

package flowsetup

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBaseVariables(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)
	t.Setenv("XDG_CONFIG_HOME", "")

	vars, err := BaseVariables(ScopeUser)
	require.NoError(t, err)

	assert.Equal(t, home, vars["home"])
	assert.Equal(t, filepath.Join(home, ".config"), vars["userappdata"])
	assert.Equal(t, filepath.Join(home, ".local", "opt"), vars["autopf"])
	assert.Equal(t, filepath.Join(home, ".local", "share", "applications"), vars["startmenu"])
	assert.Equal(t, filepath.Join(home, "Desktop"), vars["desktop"])
	assert.NotEmpty(t, vars["tmp"])
}

func TestBaseVariablesSystemScope(t *testing.T) {
	t.Setenv("HOME", t.TempDir())

	vars, err := BaseVariables(ScopeSystem)
	require.NoError(t, err)
	assert.Equal(t, "/opt", vars["autopf"])
	assert.Equal(t, "/usr/share/applications", vars["startmenu"])
}

func TestParseScope(t *testing.T) {
	scope, err := ParseScope("")
	require.NoError(t, err)
	assert.Equal(t, ScopeUser, scope)

	scope, err = ParseScope("system")
	require.NoError(t, err)
	assert.Equal(t, ScopeSystem, scope)

	_, err = ParseScope("galaxy")
	assert.Error(t, err)
}

func TestFileWriteAccess(t *testing.T) {
	dir := t.TempDir()
	assert.True(t, FileWriteAccess(dir))
	assert.False(t, FileWriteAccess(filepath.Join(dir, "missing")))
}

func TestDiskSpace(t *testing.T) {
	assert.Greater(t, DiskSpace(t.TempDir()), int64(0))
	assert.Equal(t, int64(-1), DiskSpace(filepath.Join(t.TempDir(), "missing")))
}
