package flowsetup

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadManifest(t *testing.T) {
	m, err := LoadManifest(filepath.Join("testdata", "flowly", "setup.yml"))
	require.NoError(t, err)

	assert.Equal(t, "Flowly", m.App.Name)
	assert.Equal(t, "1.2.0", m.App.Version)
	assert.Equal(t, "Flowly Team", m.App.Publisher)
	assert.Equal(t, "{{.autopf}}/Flowly", m.App.InstallDir)
	assert.Equal(t, "FlowlySetup", m.Output.BaseName)
	assert.Equal(t, CompressionZstd, m.Output.Compression)

	require.Len(t, m.Files, 2)
	seed := m.Files[1]
	assert.Equal(t, "seed/habit_tracker.sqlite3", seed.Source)
	assert.Equal(t, "{{.userappdata}}/Flowly", seed.Dest)
	assert.True(t, seed.OnlyIfAbsent)
	assert.True(t, seed.Keep)
	assert.Equal(t, "sqlite", seed.Verify)

	require.Len(t, m.Tasks, 1)
	assert.Equal(t, "desktopicon", m.Tasks[0].Name)
	assert.True(t, m.Tasks[0].Unchecked)

	require.Len(t, m.Run, 1)
	launch := m.Run[0]
	assert.True(t, launch.PostInstall)
	assert.True(t, launch.SkipIfSilent)
	assert.True(t, launch.NoWait)
	assert.False(t, launch.Unchecked)
}

func TestLoadManifestMissingFile(t *testing.T) {
	_, err := LoadManifest(filepath.Join(t.TempDir(), "setup.yml"))
	require.Error(t, err)
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestParseManifestDefaults(t *testing.T) {
	m, err := ParseManifest([]byte(`
app:
  name: Demo App
  version: "2.0"
files:
  - source: demo.bin
    dest: "{{.app}}"
`))
	require.NoError(t, err)
	assert.Equal(t, "Demo App", m.App.Group)
	assert.Equal(t, "{{.autopf}}/Demo App", m.App.InstallDir)
	assert.Equal(t, "dist", m.Output.Dir)
	assert.Equal(t, "demo-app-2.0-setup", m.Output.BaseName)
	assert.Equal(t, CompressionZstd, m.Output.Compression)
}

func TestParseManifestErrors(t *testing.T) {
	for name, doc := range map[string]string{
		"missing name": `
app:
  version: "1"
files:
  - {source: a, dest: "{{.app}}"}
`,
		"missing version": `
app:
  name: Demo
files:
  - {source: a, dest: "{{.app}}"}
`,
		"no files": `
app:
  name: Demo
  version: "1"
`,
		"unrooted dest": `
app:
  name: Demo
  version: "1"
files:
  - {source: a, dest: /opt/demo}
`,
		"unknown variable": `
app:
  name: Demo
  version: "1"
files:
  - {source: a, dest: "{{.appdir}}"}
`,
		"unknown verify mode": `
app:
  name: Demo
  version: "1"
files:
  - {source: a, dest: "{{.app}}", verify: md5}
`,
		"bad mode": `
app:
  name: Demo
  version: "1"
files:
  - {source: a, dest: "{{.app}}", mode: "99x"}
`,
		"bad check": `
app:
  name: Demo
  version: "1"
files:
  - {source: a, dest: "{{.app}}", check: "&&"}
`,
		"duplicate task": `
app:
  name: Demo
  version: "1"
tasks:
  - {name: icon}
  - {name: icon}
files:
  - {source: a, dest: "{{.app}}"}
`,
		"unknown compression": `
app:
  name: Demo
  version: "1"
output:
  compression: lzma
files:
  - {source: a, dest: "{{.app}}"}
`,
		"unknown key": `
app:
  name: Demo
  version: "1"
  flavor: grape
files:
  - {source: a, dest: "{{.app}}"}
`,
		"icon without target": `
app:
  name: Demo
  version: "1"
files:
  - {source: a, dest: "{{.app}}"}
icons:
  - {name: Demo, dir: "{{.group}}"}
`,
		"run without command": `
app:
  name: Demo
  version: "1"
files:
  - {source: a, dest: "{{.app}}"}
run:
  - {description: nothing}
`,
	} {
		t.Run(name, func(t *testing.T) {
			_, err := ParseManifest([]byte(doc))
			assert.Error(t, err)
		})
	}
}

func TestArtifactName(t *testing.T) {
	assert.Equal(t, "demo-setup.fpk", OutputSpec{BaseName: "demo-setup"}.ArtifactName())
	assert.Equal(t, "demo-setup.exe", OutputSpec{BaseName: "demo-setup", Stub: "stub.exe"}.ArtifactName())
	assert.Equal(t, "demo-setup", OutputSpec{BaseName: "demo-setup", Stub: "stub/stub-linux"}.ArtifactName())
}

func TestFileEntryMode(t *testing.T) {
	assert.Equal(t, os.FileMode(0o755), FileEntry{Mode: "0755"}.FileMode(0o644))
	assert.Equal(t, os.FileMode(0o600), FileEntry{}.FileMode(0o600))
	assert.Equal(t, os.FileMode(0o644), FileEntry{}.FileMode(0))
}
