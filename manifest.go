package flowsetup

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"gopkg.in/yaml.v2"
)

// DefaultManifestName is the manifest filename used when none is given on the
// command line.
const DefaultManifestName = "setup.yml"

// Manifest describes one application setup: what to bundle, where it installs,
// and what happens once the files are in place. It is the build-time input;
// everything the installer needs at run time is carried over into the package
// index. A loaded manifest is never modified by the builder.
type Manifest struct {
	App    AppInfo      `yaml:"app"`
	Output OutputSpec   `yaml:"output"`
	Tasks  []TaskOption `yaml:"tasks"`
	Files  []FileEntry  `yaml:"files"`
	Dirs   []DirEntry   `yaml:"dirs"`
	Icons  []IconEntry  `yaml:"icons"`
	Run    []RunEntry   `yaml:"run"`
}

// AppInfo holds the application metadata shown by the installer and stamped
// into the install receipt.
type AppInfo struct {
	Name      string `yaml:"name" json:"name"`
	Version   string `yaml:"version" json:"version"`
	Publisher string `yaml:"publisher" json:"publisher,omitempty"`
	// InstallDir is the default install location, usually rooted at an
	// install variable like {{.autopf}}. The user can override it.
	InstallDir string `yaml:"install_dir" json:"install_dir"`
	// Group is the start menu folder name. Defaults to Name.
	Group string `yaml:"group" json:"group"`
	// Icon is a source path to an icon file bundled alongside the app files
	// and used for shortcuts.
	Icon string `yaml:"icon" json:"-"`
	// License is a source path to a plain-text license which the user must
	// accept before installing.
	License string `yaml:"license" json:"-"`
}

// OutputSpec controls the artifact the builder produces.
type OutputSpec struct {
	Dir      string `yaml:"dir"`
	BaseName string `yaml:"base_name"`
	// Compression selects the package body compression. Defaults to zstd.
	Compression Compression `yaml:"compression"`
	// Stub is a path to a stub executable to prepend, turning the package
	// into a self-extracting installer. Empty produces a bare package.
	Stub string `yaml:"stub"`
}

// TaskOption is an optional install step the user can toggle, like creating a
// desktop shortcut. Check expressions reference tasks by name.
type TaskOption struct {
	Name        string `yaml:"name" json:"name"`
	Description string `yaml:"description" json:"description"`
	// Unchecked inverts the default: tasks are offered enabled unless this
	// is set.
	Unchecked bool `yaml:"unchecked" json:"unchecked,omitempty"`
}

// FileEntry bundles one source file into the package.
type FileEntry struct {
	// Source is the file to bundle, relative to the manifest's directory
	// unless absolute. The build-time variable {{.src}} expands to the
	// manifest's directory.
	Source string `yaml:"source"`
	// Dest is the target directory, rooted at an install variable.
	Dest string `yaml:"dest"`
	// OnlyIfAbsent skips extraction when the target file already exists,
	// preserving user data across reinstalls.
	OnlyIfAbsent bool `yaml:"only_if_absent"`
	// Keep marks the file to survive uninstallation.
	Keep bool `yaml:"keep"`
	// Verify names an extra source integrity check to run at build time.
	// Supported: "sqlite".
	Verify string `yaml:"verify"`
	// Mode overrides the installed file mode, in octal ("0755").
	Mode  string `yaml:"mode"`
	Check string `yaml:"check"`
}

// DirEntry creates a directory at install time, even if no file ends up in it.
type DirEntry struct {
	Path  string `yaml:"path" json:"path"`
	Check string `yaml:"check" json:"check,omitempty"`
}

// IconEntry places a shortcut to an installed file.
type IconEntry struct {
	// Name is the shortcut's display name.
	Name string `yaml:"name" json:"name"`
	// Dir is the directory receiving the shortcut, rooted at an install
	// variable such as {{.group}} or {{.desktop}}.
	Dir string `yaml:"dir" json:"dir"`
	// Target is the installed file the shortcut points at.
	Target  string `yaml:"target" json:"target"`
	Comment string `yaml:"comment" json:"comment,omitempty"`
	Check   string `yaml:"check" json:"check,omitempty"`
}

// RunEntry executes a command at the end of a successful installation.
type RunEntry struct {
	Command     string   `yaml:"command" json:"command"`
	Args        []string `yaml:"args" json:"args,omitempty"`
	Description string   `yaml:"description" json:"description,omitempty"`
	// PostInstall offers the command as a final wizard checkbox instead of
	// running it unconditionally.
	PostInstall bool `yaml:"post_install" json:"post_install,omitempty"`
	// SkipIfSilent drops the entry entirely during unattended installs.
	SkipIfSilent bool `yaml:"skip_if_silent" json:"skip_if_silent,omitempty"`
	// NoWait starts the command without waiting for it to exit.
	NoWait bool `yaml:"no_wait" json:"no_wait,omitempty"`
	// Unchecked makes the PostInstall checkbox start disabled.
	Unchecked bool   `yaml:"unchecked" json:"unchecked,omitempty"`
	Check     string `yaml:"check" json:"check,omitempty"`
}

// installVarNames lists the variables available to manifest templates at
// install time. Validation expands every template against this set so that a
// manifest referencing an unknown variable fails at build time, not on the
// user's machine.
var installVarNames = []string{
	"app", "group", "product", "version", "publisher",
	"autopf", "userappdata", "desktop", "startmenu", "home", "tmp",
}

// LoadManifest reads and parses a manifest file. Relative source paths in
// the result are relative to the file's directory.
func LoadManifest(path string) (*Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading manifest: %w", err)
	}
	m, err := ParseManifest(data)
	if err != nil {
		return nil, fmt.Errorf("manifest %s: %w", path, err)
	}
	return m, nil
}

// ParseManifest parses manifest YAML, fills in defaults and validates the
// result. Unknown keys are rejected.
func ParseManifest(data []byte) (*Manifest, error) {
	m := &Manifest{}
	if err := yaml.UnmarshalStrict(data, m); err != nil {
		return nil, fmt.Errorf("parsing: %w", err)
	}
	m.applyDefaults()
	if err := m.Validate(); err != nil {
		return nil, err
	}
	return m, nil
}

func (m *Manifest) applyDefaults() {
	if m.App.Group == "" {
		m.App.Group = m.App.Name
	}
	if m.App.InstallDir == "" {
		m.App.InstallDir = "{{.autopf}}/" + m.App.Name
	}
	if m.Output.Dir == "" {
		m.Output.Dir = "dist"
	}
	if m.Output.BaseName == "" {
		m.Output.BaseName = slugify(m.App.Name) + "-" + m.App.Version + "-setup"
	}
	if m.Output.Compression == "" {
		m.Output.Compression = CompressionZstd
	}
}

// Validate checks the manifest for the errors that should stop a build before
// any packaging work happens: missing metadata, unrooted destinations,
// unknown variables and malformed check expressions.
func (m *Manifest) Validate() error {
	if m.App.Name == "" {
		return fmt.Errorf("app: name is required")
	}
	if m.App.Version == "" {
		return fmt.Errorf("app: version is required")
	}
	if !m.Output.Compression.valid() {
		return fmt.Errorf("output: unknown compression %q", m.Output.Compression)
	}
	if len(m.Files) == 0 {
		return fmt.Errorf("files: at least one entry is required")
	}
	if err := validateInstallTemplate("app: install_dir", m.App.InstallDir); err != nil {
		return err
	}

	taskNames := make(map[string]bool, len(m.Tasks))
	for i, task := range m.Tasks {
		where := fmt.Sprintf("tasks[%d]", i)
		if task.Name == "" {
			return fmt.Errorf("%s: name is required", where)
		}
		if taskNames[task.Name] {
			return fmt.Errorf("%s: duplicate task %q", where, task.Name)
		}
		taskNames[task.Name] = true
	}

	for i, f := range m.Files {
		where := fmt.Sprintf("files[%d]", i)
		if f.Source == "" {
			return fmt.Errorf("%s: source is required", where)
		}
		if err := validateSourceTemplate(where+": source", f.Source); err != nil {
			return err
		}
		if err := validateRootedTemplate(where+": dest", f.Dest); err != nil {
			return err
		}
		switch f.Verify {
		case "", "sqlite":
		default:
			return fmt.Errorf("%s: unknown verify mode %q", where, f.Verify)
		}
		if f.Mode != "" {
			if _, err := strconv.ParseUint(f.Mode, 8, 32); err != nil {
				return fmt.Errorf("%s: invalid mode %q", where, f.Mode)
			}
		}
		if err := validateCheck(where, f.Check); err != nil {
			return err
		}
	}

	for i, d := range m.Dirs {
		where := fmt.Sprintf("dirs[%d]", i)
		if err := validateRootedTemplate(where+": path", d.Path); err != nil {
			return err
		}
		if err := validateCheck(where, d.Check); err != nil {
			return err
		}
	}

	for i, icon := range m.Icons {
		where := fmt.Sprintf("icons[%d]", i)
		if icon.Name == "" {
			return fmt.Errorf("%s: name is required", where)
		}
		if icon.Target == "" {
			return fmt.Errorf("%s: target is required", where)
		}
		if err := validateRootedTemplate(where+": dir", icon.Dir); err != nil {
			return err
		}
		if err := validateInstallTemplate(where+": target", icon.Target); err != nil {
			return err
		}
		if err := validateCheck(where, icon.Check); err != nil {
			return err
		}
	}

	for i, r := range m.Run {
		where := fmt.Sprintf("run[%d]", i)
		if r.Command == "" {
			return fmt.Errorf("%s: command is required", where)
		}
		if err := validateInstallTemplate(where+": command", r.Command); err != nil {
			return err
		}
		for j, arg := range r.Args {
			if err := validateInstallTemplate(fmt.Sprintf("%s: args[%d]", where, j), arg); err != nil {
				return err
			}
		}
		if err := validateCheck(where, r.Check); err != nil {
			return err
		}
	}
	return nil
}

// ArtifactName returns the output file name, without directory. Stub-prefixed
// artifacts take the stub's extension so the result is directly runnable on
// the stub's platform; bare packages get the package extension.
func (o OutputSpec) ArtifactName() string {
	if o.Stub != "" {
		return o.BaseName + filepath.Ext(o.Stub)
	}
	return o.BaseName + PackageExt
}

// FileMode returns the mode the file installs with: the manifest override if
// set, otherwise the given source mode with a sane fallback.
func (f FileEntry) FileMode(sourceMode os.FileMode) os.FileMode {
	if f.Mode != "" {
		parsed, err := strconv.ParseUint(f.Mode, 8, 32)
		if err == nil {
			return os.FileMode(parsed)
		}
	}
	perm := sourceMode.Perm()
	if perm == 0 {
		perm = 0o644
	}
	return perm
}

func validateCheck(where, expr string) error {
	if err := CompileCheck(expr); err != nil {
		return fmt.Errorf("%s: check: %w", where, err)
	}
	return nil
}

// validateInstallTemplate expands a template against the install-time
// variable set, catching unknown variables and syntax errors.
func validateInstallTemplate(where, str string) error {
	if _, err := ExpandVariables(str, installProbeVars()); err != nil {
		return fmt.Errorf("%s: %w", where, err)
	}
	return nil
}

// validateRootedTemplate additionally requires the template to start with a
// variable reference, so that install destinations can never be literal
// machine-specific paths baked in at build time.
func validateRootedTemplate(where, str string) error {
	if !strings.HasPrefix(strings.TrimSpace(str), "{{.") {
		return fmt.Errorf("%s: must be rooted at an install variable, got %q", where, str)
	}
	return validateInstallTemplate(where, str)
}

// validateSourceTemplate expands against the build-time variable set.
func validateSourceTemplate(where, str string) error {
	if _, err := ExpandVariables(str, StringMap{"src": "x"}); err != nil {
		return fmt.Errorf("%s: %w", where, err)
	}
	return nil
}

func installProbeVars() StringMap {
	probe := make(StringMap, len(installVarNames))
	for _, name := range installVarNames {
		probe[name] = "x"
	}
	return probe
}

func slugify(name string) string {
	slug := strings.ToLower(strings.TrimSpace(name))
	slug = strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			return r
		default:
			return '-'
		}
	}, slug)
	return strings.Trim(strings.Join(strings.FieldsFunc(slug, func(r rune) bool { return r == '-' }), "-"), "-")
}
