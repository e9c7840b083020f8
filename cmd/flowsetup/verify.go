package main

import (
	"fmt"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/flowly-app/flowsetup"
)

var verifyCmd = &cobra.Command{
	Use:   "verify <package>",
	Short: "Check a package's structure and file checksums",
	Long: `Verify opens a package or a stub-prefixed installer, checks the index
against its footer checksum and re-reads every file against its recorded
hash. A package that verifies cleanly will install byte for byte what was
packed.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		r, err := flowsetup.OpenPackage(args[0])
		if err != nil {
			return err
		}
		defer r.Close()
		if err := r.Verify(); err != nil {
			return err
		}
		fmt.Printf("%s: ok (%s %s, %d files, %s)\n",
			args[0], r.Index.App.Name, r.Index.App.Version,
			len(r.Index.Files), humanize.IBytes(uint64(r.Index.TotalSize)))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(verifyCmd)
}
