package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/flowly-app/flowsetup"
	"github.com/flowly-app/flowsetup/internal/output"
)

var inspectCmd = &cobra.Command{
	Use:   "inspect <package>",
	Short: "Show what a package contains",
	Long: `Inspect prints a package's metadata and its file, task and run entries
without installing anything.`,
	Args: cobra.ExactArgs(1),
	RunE: runInspect,
}

func init() {
	rootCmd.AddCommand(inspectCmd)
}

func runInspect(cmd *cobra.Command, args []string) error {
	r, err := flowsetup.OpenPackage(args[0])
	if err != nil {
		return err
	}
	defer r.Close()
	idx := r.Index

	title := fmt.Sprintf("%s %s", idx.App.Name, idx.App.Version)
	if idx.App.Publisher != "" {
		title += fmt.Sprintf(" (%s)", idx.App.Publisher)
	}
	fmt.Println(output.Bold(title))
	fmt.Printf("install dir:  %s\n", idx.App.InstallDir)
	fmt.Printf("compression:  %s\n", idx.Compression)
	fmt.Printf("payload:      %s in %d files\n", humanize.IBytes(uint64(idx.TotalSize)), len(idx.Files))
	fmt.Printf("created:      %s by %s\n", idx.CreatedAt.Format(time.RFC3339), idx.Builder)
	if idx.License != "" {
		fmt.Printf("license:      %s, acceptance required\n", humanize.IBytes(uint64(len(idx.License))))
	}
	fmt.Println()

	rows := make([][]string, 0, len(idx.Files))
	for _, f := range idx.Files {
		var flags []string
		if f.OnlyIfAbsent {
			flags = append(flags, "only-if-absent")
		}
		if f.Keep {
			flags = append(flags, "keep")
		}
		rows = append(rows, []string{
			f.Path,
			f.Dest,
			humanize.IBytes(uint64(f.Size)),
			fmt.Sprintf("%04o", f.Mode),
			strings.Join(flags, ","),
		})
	}
	fmt.Print(output.RenderTable([]string{"FILE", "DEST", "SIZE", "MODE", "FLAGS"}, rows))

	if len(idx.Tasks) > 0 {
		fmt.Println()
		rows = rows[:0]
		for _, task := range idx.Tasks {
			state := "on"
			if task.Unchecked {
				state = "off"
			}
			rows = append(rows, []string{task.Name, task.Description, state})
		}
		fmt.Print(output.RenderTable([]string{"TASK", "DESCRIPTION", "DEFAULT"}, rows))
	}

	if len(idx.Run) > 0 {
		fmt.Println()
		rows = rows[:0]
		for _, run := range idx.Run {
			when := "always"
			if run.PostInstall {
				when = "post-install"
			}
			if run.SkipIfSilent {
				when += ", skipped when silent"
			}
			rows = append(rows, []string{run.Command, run.Description, when})
		}
		fmt.Print(output.RenderTable([]string{"RUN", "DESCRIPTION", "WHEN"}, rows))
	}
	return nil
}
