package flowsetup

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"

	"github.com/dustin/go-humanize"

	"github.com/flowly-app/flowsetup/internal/log"
	"github.com/flowly-app/flowsetup/internal/output"
)

// ErrLicenseDeclined reports an installation stopped at the license gate.
var ErrLicenseDeclined = errors.New("license not accepted")

// ErrUninstallDeclined reports an uninstall the user did not confirm.
var ErrUninstallDeclined = errors.New("uninstall declined")

// Wizard drives a console installation: either the interactive question
// flow or, with Settings.Silent, an unattended run that only speaks when
// something goes wrong. Both the setup stub and the install command use it.
type Wizard struct {
	reader     *Reader
	store      *ReceiptStore
	settings   Settings
	translator *Translator
	in         *bufio.Reader
	out        io.Writer
}

// NewWizard prepares a wizard reading answers from in and writing to out.
func NewWizard(reader *Reader, store *ReceiptStore, settings Settings, in io.Reader, out io.Writer) *Wizard {
	translator := NewTranslatorVar(appVariables(reader.Index.App))
	if settings.Language != "" {
		if err := translator.SetLanguage(settings.Language); err != nil {
			fmt.Fprintf(out, "language %q not available\n", settings.Language)
		}
	}
	return &Wizard{
		reader:     reader,
		store:      store,
		settings:   settings,
		translator: translator,
		in:         bufio.NewReader(in),
		out:        out,
	}
}

// Run executes the wizard and returns the receipt of the finished install.
func (w *Wizard) Run() (*Receipt, error) {
	if w.settings.Silent {
		return w.runSilent()
	}
	return w.runInteractive()
}

func (w *Wizard) runSilent() (*Receipt, error) {
	if w.reader.Index.License != "" && !w.settings.AcceptLicense {
		fmt.Fprintln(w.out, w.translator.Get("license_required"))
		return nil, ErrLicenseDeclined
	}
	plan, err := NewPlan(&w.reader.Index, w.settings)
	if err != nil {
		return nil, err
	}
	if err := plan.Preflight(); err != nil {
		return nil, w.explainPreflight(err)
	}
	fmt.Fprintln(w.out, w.translator.Get("installing"))
	receipt, err := w.install(plan)
	if err != nil {
		return nil, err
	}
	fmt.Fprintln(w.out, w.translator.Get("install_done"))
	logger := log.WithComponent("wizard")
	logger.Info().
		Str("app", plan.App.Name).
		Str("dir", plan.Dir).
		Int64("bytes", plan.InstallSize).
		Msg("silent install finished")
	return receipt, nil
}

func (w *Wizard) runInteractive() (*Receipt, error) {
	fmt.Fprintln(w.out, w.translator.Get("welcome"))
	if w.reader.Index.App.Publisher != "" {
		fmt.Fprintln(w.out, w.translator.Get("publisher_note"))
	}
	fmt.Fprintln(w.out)

	if license := w.reader.Index.License; license != "" {
		fmt.Fprintln(w.out, w.translator.Get("license_intro"))
		fmt.Fprintln(w.out)
		fmt.Fprintln(w.out, license)
		if !w.settings.AcceptLicense && !w.askYesNo(w.translator.Get("license_prompt"), false) {
			fmt.Fprintln(w.out, w.translator.Get("license_required"))
			return nil, ErrLicenseDeclined
		}
		fmt.Fprintln(w.out)
	}

	plan, err := w.choosePlan()
	if err != nil {
		return nil, err
	}

	fmt.Fprintln(w.out)
	fmt.Fprintln(w.out, w.translator.Get("space_needed"), humanize.IBytes(uint64(plan.InstallSize)))
	fmt.Fprintln(w.out, w.translator.Get("installing"))
	receipt, err := w.install(plan)
	if err != nil {
		return nil, err
	}
	fmt.Fprintln(w.out, w.translator.Get("install_done"))
	fmt.Fprintln(w.out, w.translator.Get("finish_note"))
	return receipt, nil
}

// choosePlan loops over the directory prompt until a plan passes preflight,
// then asks the optional task questions.
func (w *Wizard) choosePlan() (*Plan, error) {
	defaultDir, err := DefaultInstallDir(w.reader.Index.App, w.settings.Scope)
	if err != nil {
		return nil, err
	}
	if w.settings.TargetDir != "" {
		defaultDir = w.settings.TargetDir
	}

	settings := w.settings
	for {
		fmt.Fprintf(w.out, "%s [%s]: ", w.translator.Get("dir_prompt"), defaultDir)
		dir := w.readLine()
		if dir == "" {
			dir = defaultDir
		}
		settings.TargetDir = dir
		plan, err := NewPlan(&w.reader.Index, settings)
		if err != nil {
			fmt.Fprintln(w.out, err)
			fmt.Fprintln(w.out, w.translator.Get("dir_retry"))
			continue
		}
		if err := plan.Preflight(); err != nil {
			w.explainPreflight(err)
			fmt.Fprintln(w.out, w.translator.Get("dir_retry"))
			continue
		}
		tasks, asked := w.chooseTasks()
		if !asked {
			return plan, nil
		}
		settings.Tasks = tasks
		return NewPlan(&w.reader.Index, settings)
	}
}

// chooseTasks prompts for each optional task and reports whether any
// question was asked at all.
func (w *Wizard) chooseTasks() ([]string, bool) {
	if len(w.reader.Index.Tasks) == 0 {
		return nil, false
	}
	fmt.Fprintln(w.out)
	fmt.Fprintln(w.out, w.translator.Get("tasks_intro"))
	tasks := []string{}
	for _, task := range w.reader.Index.Tasks {
		if w.askYesNo(task.Description, !task.Unchecked) {
			tasks = append(tasks, task.Name)
		}
	}
	return tasks, true
}

// install runs the engine with a progress bar and an interrupt handler,
// then finishes with shortcuts, receipt and any confirmed run entries.
func (w *Wizard) install(plan *Plan) (*Receipt, error) {
	installer := NewInstaller(w.reader, plan, w.store)
	bar := output.NewProgress(w.out, plan.InstallSize)
	installer.SetProgressFunction(func(status InstallStatus) {
		if status.File == nil {
			return
		}
		if !status.File.Skip && !status.File.Installed {
			bar.SetLabel(output.Truncate(status.File.Target, 48))
		}
		if status.File.Installed {
			bar.Add(status.File.Size)
		}
	})

	cancel := make(chan os.Signal, 1)
	signal.Notify(cancel, os.Interrupt)
	go func() {
		for range cancel {
			installer.Abort()
		}
	}()

	installer.StartInstall()
	err := installer.Wait()
	signal.Stop(cancel)
	close(cancel)
	bar.Finish()

	switch {
	case errors.Is(err, ErrAborted):
		fmt.Fprintln(w.out, w.translator.Get("install_aborted"))
		return nil, err
	case err != nil:
		fmt.Fprintln(w.out, w.translator.Get("install_failed"), err)
		return nil, err
	}

	launches := plan.RunDecisions(w.settings, w.confirmRun)
	return installer.PostInstall(launches)
}

func (w *Wizard) confirmRun(run PlannedRun, checked bool) bool {
	prompt := run.Description
	if prompt == "" {
		prompt = run.Command
	}
	return w.askYesNo(prompt, checked)
}

// explainPreflight prints the translated message for a preflight failure
// and passes the error through.
func (w *Wizard) explainPreflight(err error) error {
	switch {
	case errors.Is(err, ErrTargetNotWritable):
		fmt.Fprintln(w.out, w.translator.Get("err_not_writable"))
	case errors.Is(err, ErrInsufficientSpace):
		fmt.Fprintln(w.out, w.translator.Get("err_no_space"))
	default:
		fmt.Fprintln(w.out, err)
	}
	return err
}

// askYesNo prints a yes/no prompt and reads one answer. Empty input and
// unrecognized answers fall back to the given default, so exhausted input
// behaves like pressing return on every question.
func (w *Wizard) askYesNo(prompt string, def bool) bool {
	suffix := w.translator.Get("yes_no_default_no")
	if def {
		suffix = w.translator.Get("yes_no_default_yes")
	}
	fmt.Fprintf(w.out, "%s %s ", prompt, suffix)
	switch answer := strings.ToLower(w.readLine()); {
	case answer == "":
		return def
	case strings.HasPrefix(answer, "y"), strings.HasPrefix(answer, "j"):
		return true
	case strings.HasPrefix(answer, "n"):
		return false
	default:
		return def
	}
}

func (w *Wizard) readLine() string {
	line, err := w.in.ReadString('\n')
	if err != nil && line == "" {
		return ""
	}
	return strings.TrimSpace(line)
}

// UninstallPrompt bundles what the console uninstall flow needs. It asks
// for confirmation unless AssumeYes is set, removes the app and reports
// what was kept behind.
type UninstallPrompt struct {
	Store     *ReceiptStore
	Receipt   *Receipt
	Options   UninstallOptions
	AssumeYes bool
	Language  string
	In        io.Reader
	Out       io.Writer
}

// Run executes the uninstall flow and returns the removal report.
func (u UninstallPrompt) Run() (*UninstallReport, error) {
	translator := NewTranslatorVar(StringMap{
		"product":   u.Receipt.App,
		"version":   u.Receipt.Version,
		"publisher": u.Receipt.Publisher,
	})
	if u.Language != "" {
		if err := translator.SetLanguage(u.Language); err != nil {
			fmt.Fprintf(u.Out, "language %q not available\n", u.Language)
		}
	}

	if !u.AssumeYes {
		asker := &Wizard{translator: translator, in: bufio.NewReader(u.In), out: u.Out}
		if !asker.askYesNo(translator.Get("uninstall_prompt"), false) {
			return nil, ErrUninstallDeclined
		}
	}

	fmt.Fprintln(u.Out, translator.Get("uninstalling"))
	report, err := Uninstall(u.Store, u.Receipt.App, u.Options)
	if err != nil {
		return report, err
	}
	fmt.Fprintln(u.Out, translator.Get("uninstall_done"))
	if len(report.Kept) > 0 {
		fmt.Fprintln(u.Out, translator.Get("uninstall_kept"))
		for _, path := range report.Kept {
			fmt.Fprintln(u.Out, " ", path)
		}
	}
	logger := log.WithComponent("wizard")
	logger.Info().
		Str("app", u.Receipt.App).
		Int("removed", len(report.Removed)).
		Int("kept", len(report.Kept)).
		Msg("uninstall finished")
	return report, nil
}
