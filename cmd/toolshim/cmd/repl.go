package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/psantana5/toolshim/internal/repl"
)

var replCmd = &cobra.Command{
	Use:   "repl [script.star]",
	Short: "Starlark scripting host for tools",
	Long: `Runs a Starlark script, or an interactive prompt when no script is given.

Builtins:
  compile_js(*args)  compile_soy(*args)  run_tool(name, *args)
  run_main(bundle, entry, out, err, args=[])
  tools()  failures(n=10)  metrics()  cache_stats()

Example:
  r = compile_js("--js", "app.js", "--js_output_file", "app.min.js")
  print(r["outcome"], r["exit_code"])`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp()
		if err != nil {
			return err
		}
		defer a.Close()

		session := repl.New(cmd.Context(), a.tools, a.launcher, os.Stderr)
		if len(args) == 0 {
			session.Interactive()
			return nil
		}
		if _, err := session.Exec(args[0], nil); err != nil {
			return fmt.Errorf("%s: %w", args[0], err)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(replCmd)
}
