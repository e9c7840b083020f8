package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/flowly-app/flowsetup/internal/output"
)

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List applications installed from setup packages",
	Args:  cobra.NoArgs,
	RunE:  runList,
}

func init() {
	rootCmd.AddCommand(listCmd)
}

func runList(cmd *cobra.Command, args []string) error {
	store, err := openReceipts()
	if err != nil {
		return err
	}
	defer store.Close()

	receipts, err := store.List()
	if err != nil {
		return err
	}
	if len(receipts) == 0 {
		fmt.Println("No applications installed.")
		return nil
	}

	rows := make([][]string, 0, len(receipts))
	for _, r := range receipts {
		rows = append(rows, []string{
			r.App,
			r.Version,
			r.Publisher,
			r.Dir,
			string(r.Scope),
			r.CreatedAt.Format("2006-01-02"),
		})
	}
	fmt.Print(output.RenderTable([]string{"APP", "VERSION", "PUBLISHER", "LOCATION", "SCOPE", "INSTALLED"}, rows))
	return nil
}
