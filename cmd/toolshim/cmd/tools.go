package cmd

import (
	"encoding/json"
	"os"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"
)

var toolsCmd = &cobra.Command{
	Use:   "tools",
	Short: "List configured tools",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp()
		if err != nil {
			return err
		}
		defer a.Close()

		list := a.tools.List()
		if IsJSONOutput() {
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(list)
		}

		table := tablewriter.NewWriter(os.Stdout)
		table.Header("Name", "Bundle", "Entry")
		for _, t := range list {
			table.Append([]string{t.Name, t.Bundle, t.Entry})
		}
		for _, loc := range a.registry.Locations() {
			table.Append([]string{"(in-process)", loc, "echo, exit"})
		}
		table.Render()
		return nil
	},
}

func init() {
	rootCmd.AddCommand(toolsCmd)
}
