package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/flowly-app/flowsetup"
	"github.com/flowly-app/flowsetup/builder"
)

var (
	buildFlagOutput    string
	buildFlagStub      string
	buildFlagWatch     bool
	buildFlagTimestamp string
)

var buildCmd = &cobra.Command{
	Use:   "build [manifest]",
	Short: "Compile a manifest into a setup package",
	Long: `Build packs the files listed in the manifest into a setup package.

The manifest defaults to ` + flowsetup.DefaultManifestName + ` in the current directory. With
--watch the builder stays running and rebuilds whenever the manifest or one
of its sources changes.

Examples:
  # Build dist/<name>-<version>-setup` + flowsetup.PackageExt + ` from ./setup.yml
  flowsetup build

  # Self-contained installer: prepend a stub executable
  flowsetup build --stub bin/flowsetup-stub.exe

  # Reproducible release build
  flowsetup build --timestamp 2026-03-01T00:00:00Z`,
	Args: cobra.MaximumNArgs(1),
	RunE: runBuild,
}

func init() {
	buildCmd.Flags().StringVarP(&buildFlagOutput, "output", "o", "", "artifact path (default from the manifest)")
	buildCmd.Flags().StringVar(&buildFlagStub, "stub", "", "stub executable to prepend")
	buildCmd.Flags().BoolVar(&buildFlagWatch, "watch", false, "rebuild on manifest or source changes")
	buildCmd.Flags().StringVar(&buildFlagTimestamp, "timestamp", "", "pin archive timestamps (RFC 3339) for reproducible builds")

	rootCmd.AddCommand(buildCmd)
}

func runBuild(cmd *cobra.Command, args []string) error {
	manifest := flowsetup.DefaultManifestName
	if len(args) == 1 {
		manifest = args[0]
	}
	opts := builder.Options{
		ManifestPath: manifest,
		Output:       buildFlagOutput,
		Stub:         buildFlagStub,
	}
	if buildFlagTimestamp != "" {
		ts, err := time.Parse(time.RFC3339, buildFlagTimestamp)
		if err != nil {
			return fmt.Errorf("invalid --timestamp: %w", err)
		}
		opts.Timestamp = ts
	}

	report := func(r *builder.Report) {
		fmt.Printf("%s: %d files, %s payload, %s packed (%s)\n",
			r.Artifact, r.Files,
			humanize.IBytes(uint64(r.TotalSize)), humanize.IBytes(uint64(r.PackageSize)),
			r.Compression)
	}

	if !buildFlagWatch {
		r, err := builder.Build(cmd.Context(), opts)
		if err != nil {
			return err
		}
		report(r)
		return nil
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
	defer stop()
	if err := builder.Watch(ctx, opts, report); !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}
