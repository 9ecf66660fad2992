package cmd

import (
	"encoding/json"
	"os"

	"github.com/spf13/cobra"

	"github.com/psantana5/toolshim/internal/report"
	"github.com/psantana5/toolshim/pkg/logging"
)

var compileJSCmd = &cobra.Command{
	Use:   "compile-js [-- compiler flags...]",
	Short: "Run the Closure Compiler",
	Long: `Runs com.google.javascript.jscomp.CommandLineRunner from compiler_jar with
the given arguments. Output goes to this process's stdout and stderr; the
compiler's exit status becomes toolshim's.

Example:
  toolshim compile-js -- --js app.js --js_output_file app.min.js`,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp()
		if err != nil {
			return err
		}
		defer a.Close()
		result, err := a.tools.CompileJS(cmd.Context(), args)
		return finishTool(result, err)
	},
}

var compileSoyCmd = &cobra.Command{
	Use:   "compile-soy [-- compiler flags...]",
	Short: "Run the Closure Templates Soy to JS compiler",
	Long: `Runs com.google.template.soy.SoyToJsSrcCompiler from templates_jar.

Example:
  toolshim compile-soy -- --outputPathFormat out/{INPUT_FILE_NAME}.js a.soy`,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp()
		if err != nil {
			return err
		}
		defer a.Close()
		result, err := a.tools.CompileSoy(cmd.Context(), args)
		return finishTool(result, err)
	},
}

var runToolCmd = &cobra.Command{
	Use:   "run NAME [-- tool flags...]",
	Short: "Run a configured tool",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp()
		if err != nil {
			return err
		}
		defer a.Close()
		result, err := a.tools.Run(cmd.Context(), args[0], args[1:])
		return finishTool(result, err)
	},
}

func init() {
	rootCmd.AddCommand(compileJSCmd)
	rootCmd.AddCommand(compileSoyCmd)
	rootCmd.AddCommand(runToolCmd)
}

// finishTool records the tool's status as the process exit code. With
// --output json the result record is written to stderr; stdout is the tool's.
func finishTool(result *report.Result, err error) error {
	if err != nil {
		return err
	}
	exitCode = result.ExitCode
	if IsJSONOutput() {
		enc := json.NewEncoder(os.Stderr)
		enc.SetIndent("", "  ")
		return enc.Encode(result)
	}
	logging.Default().Debug("tool finished", map[string]interface{}{
		"tool":    result.Tool,
		"outcome": string(result.Outcome),
	})
	return nil
}
