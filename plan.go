package flowsetup

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
)

// Preflight errors the wizard retries the directory prompt on.
var (
	ErrTargetNotWritable = errors.New("install location not writable")
	ErrInsufficientSpace = errors.New("not enough free disk space")
)

// Settings collects everything that varies between one install run and the
// next: the flags of a silent install, or the answers the wizard gathered.
type Settings struct {
	// TargetDir overrides the manifest's default install directory.
	TargetDir string
	Scope     Scope
	Silent    bool
	// Tasks enables exactly the named optional tasks. nil keeps every
	// task's default state.
	Tasks []string
	// NoLaunch suppresses the prompt-gated post-install commands.
	NoLaunch bool
	// AcceptLicense records that the license was accepted up front, which
	// an unattended install of a licensed app requires.
	AcceptLicense bool
	// Language forces the installer language instead of following the
	// system locale.
	Language string
	// InstallUninstaller drops a copy of the running setup executable into
	// the install directory for later uninstallation.
	InstallUninstaller bool
}

// PlannedFile is one package file resolved to its target path. Skipped
// entries stay in the plan so progress reporting still sees them. The
// installer flips Installed once the file is on disk.
type PlannedFile struct {
	IndexEntry
	Target     string
	FileMode   os.FileMode
	Skip       bool
	SkipReason string
	Installed  bool
}

// PlannedIcon is a shortcut entry resolved against the install variables.
type PlannedIcon struct {
	IconEntry
	Shortcut Shortcut
}

// PlannedRun is a run entry with its command line expanded. Command and Args
// shadow the raw templates from the embedded entry.
type PlannedRun struct {
	RunEntry
	Command string
	Args    []string
}

// Plan is the resolved shape of one pending installation: concrete paths,
// check-filtered entries and the task states that produced them. Building a
// plan touches nothing on disk.
type Plan struct {
	App    AppInfo
	Dir    string
	Scope  Scope
	Silent bool
	// Vars is the full variable set the manifest templates were expanded
	// with, app and group included.
	Vars      StringMap
	TaskState map[string]bool
	Dirs      []string
	Files     []*PlannedFile
	Icons     []PlannedIcon
	Runs      []PlannedRun
	// InstallSize is the byte total of the files that will be written.
	InstallSize        int64
	InstallUninstaller bool
}

func appVariables(app AppInfo) StringMap {
	return StringMap{
		"product":   app.Name,
		"version":   app.Version,
		"publisher": app.Publisher,
	}
}

// DefaultInstallDir expands an app's default install directory for a scope.
// The wizard shows it as the directory prompt's preset.
func DefaultInstallDir(app AppInfo, scope Scope) (string, error) {
	vars, err := BaseVariables(scope)
	if err != nil {
		return "", err
	}
	dir, err := ExpandVariables(app.InstallDir, MergeVariables(vars, appVariables(app)))
	if err != nil {
		return "", fmt.Errorf("default install dir: %w", err)
	}
	return filepath.Clean(dir), nil
}

// NewPlan resolves a package index against this machine and one set of
// answers: it expands every template, evaluates every check expression and
// pins the task states.
func NewPlan(idx *Index, st Settings) (*Plan, error) {
	scope, err := ParseScope(string(st.Scope))
	if err != nil {
		return nil, err
	}
	vars, err := BaseVariables(scope)
	if err != nil {
		return nil, err
	}
	vars = MergeVariables(vars, appVariables(idx.App))

	dir := st.TargetDir
	if dir == "" {
		if dir, err = ExpandVariables(idx.App.InstallDir, vars); err != nil {
			return nil, fmt.Errorf("default install dir: %w", err)
		}
	}
	dir = filepath.Clean(dir)
	if !filepath.IsAbs(dir) {
		return nil, fmt.Errorf("install directory %q is not absolute", dir)
	}
	vars["app"] = dir
	vars["group"] = osGroupDir(vars["startmenu"], idx.App.Group)

	taskState := make(map[string]bool, len(idx.Tasks))
	for _, task := range idx.Tasks {
		taskState[task.Name] = !task.Unchecked
	}
	if st.Tasks != nil {
		for name := range taskState {
			taskState[name] = false
		}
		for _, name := range st.Tasks {
			if name == "" {
				continue
			}
			if _, ok := taskState[name]; !ok {
				return nil, fmt.Errorf("unknown task %q", name)
			}
			taskState[name] = true
		}
	}
	checkCtx := HostCheckContext(st.Silent, taskState)

	plan := &Plan{
		App:                idx.App,
		Dir:                dir,
		Scope:              scope,
		Silent:             st.Silent,
		Vars:               vars,
		TaskState:          taskState,
		InstallUninstaller: st.InstallUninstaller,
	}

	for _, d := range idx.Dirs {
		ok, err := EvaluateCheck(d.Check, checkCtx)
		if err != nil {
			return nil, err
		}
		if !ok {
			continue
		}
		path, err := ExpandVariables(d.Path, vars)
		if err != nil {
			return nil, fmt.Errorf("dirs: %w", err)
		}
		plan.Dirs = append(plan.Dirs, filepath.Clean(path))
	}

	for _, entry := range idx.Files {
		pf := &PlannedFile{IndexEntry: entry, FileMode: os.FileMode(entry.Mode)}
		destDir, err := ExpandVariables(entry.Dest, vars)
		if err != nil {
			return nil, fmt.Errorf("file %s: %w", entry.Path, err)
		}
		pf.Target = filepath.Join(filepath.Clean(destDir), entry.TargetName())
		ok, err := EvaluateCheck(entry.Check, checkCtx)
		if err != nil {
			return nil, err
		}
		switch {
		case !ok:
			pf.Skip, pf.SkipReason = true, "check"
		case entry.OnlyIfAbsent && fileExists(pf.Target):
			// Re-checked right before writing; this early answer keeps
			// the wizard's numbers honest.
			pf.Skip, pf.SkipReason = true, "exists"
		}
		if !pf.Skip {
			plan.InstallSize += entry.Size
		}
		plan.Files = append(plan.Files, pf)
	}

	for _, icon := range idx.Icons {
		ok, err := EvaluateCheck(icon.Check, checkCtx)
		if err != nil {
			return nil, err
		}
		if !ok {
			continue
		}
		iconDir, err := ExpandVariables(icon.Dir, vars)
		if err != nil {
			return nil, fmt.Errorf("icon %s: %w", icon.Name, err)
		}
		target, err := ExpandVariables(icon.Target, vars)
		if err != nil {
			return nil, fmt.Errorf("icon %s: %w", icon.Name, err)
		}
		iconFile := ""
		if idx.IconFile != "" {
			iconFile = filepath.Join(dir, idx.IconFile)
		}
		plan.Icons = append(plan.Icons, PlannedIcon{IconEntry: icon, Shortcut: Shortcut{
			Dir:        filepath.Clean(iconDir),
			Name:       expandLenient(icon.Name, vars),
			Target:     filepath.Clean(target),
			WorkingDir: dir,
			Icon:       iconFile,
			Comment:    expandLenient(icon.Comment, vars),
		}})
	}

	for _, run := range idx.Run {
		ok, err := EvaluateCheck(run.Check, checkCtx)
		if err != nil {
			return nil, err
		}
		if !ok {
			continue
		}
		command, err := ExpandVariables(run.Command, vars)
		if err != nil {
			return nil, fmt.Errorf("run %s: %w", run.Command, err)
		}
		args := make([]string, 0, len(run.Args))
		for _, arg := range run.Args {
			expanded, err := ExpandVariables(arg, vars)
			if err != nil {
				return nil, fmt.Errorf("run %s: %w", run.Command, err)
			}
			args = append(args, expanded)
		}
		plan.Runs = append(plan.Runs, PlannedRun{RunEntry: run, Command: command, Args: args})
	}
	return plan, nil
}

// Preflight checks that the install directory can be created and written and
// that the volume has room for the unpacked files.
func (p *Plan) Preflight() error {
	if info, err := os.Stat(p.Dir); err == nil && !info.IsDir() {
		return fmt.Errorf("%w: %s is a file", ErrTargetNotWritable, p.Dir)
	}
	// Walk up to the nearest existing ancestor; that is where the first
	// mkdir lands and where free space matters.
	probe := p.Dir
	for !fileExists(probe) {
		parent := filepath.Dir(probe)
		if parent == probe {
			break
		}
		probe = parent
	}
	if !FileWriteAccess(probe) {
		return fmt.Errorf("%w: %s", ErrTargetNotWritable, probe)
	}
	if free := DiskSpace(probe); free >= 0 && free < p.InstallSize {
		return fmt.Errorf("%w: %d bytes free on %s, need %d", ErrInsufficientSpace, free, probe, p.InstallSize)
	}
	return nil
}

// RunDecisions filters the plan's run entries down to what actually runs:
// skip-if-silent entries never run unattended, prompt-gated entries run only
// when confirmed, and NoLaunch drops every prompt-gated entry. confirm is
// called per prompt-gated entry with its default checked state; a nil
// confirm declines them all, so an unattended install can never launch one.
func (p *Plan) RunDecisions(st Settings, confirm func(PlannedRun, bool) bool) []PlannedRun {
	var runs []PlannedRun
	for _, run := range p.Runs {
		if run.PostInstall {
			if st.NoLaunch || st.Silent {
				continue
			}
			if confirm == nil || !confirm(run, !run.Unchecked) {
				continue
			}
		} else if st.Silent && run.SkipIfSilent {
			continue
		}
		runs = append(runs, run)
	}
	return runs
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
