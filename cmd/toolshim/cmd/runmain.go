package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/psantana5/toolshim/internal/report"
	"github.com/psantana5/toolshim/internal/wrapper"
)

var (
	runMainOut string
	runMainErr string
)

var runMainCmd = &cobra.Command{
	Use:   "run-main BUNDLE ENTRY [-- args...]",
	Short: "Run an entry point chosen at call time, output to files",
	Long: `Resolves ENTRY in BUNDLE and runs it with stdout and stderr sent to the
given files. BUNDLE is a .jar (ENTRY is a class name), an executable, or
"builtin". A tool failure is written to the error file.

Example:
  toolshim run-main compiler.jar com.google.javascript.jscomp.CommandLineRunner \
      --out app.min.js --err compile.log -- --js app.js
  toolshim run-main builtin exit --out /dev/null --err /dev/null -- 3`,
	Args: cobra.MinimumNArgs(2),
	RunE: runRunMain,
}

func init() {
	rootCmd.AddCommand(runMainCmd)

	runMainCmd.Flags().StringVar(&runMainOut, "out", "", "file receiving the tool's stdout (required)")
	runMainCmd.Flags().StringVar(&runMainErr, "err", "", "file receiving the tool's stderr (required)")
	runMainCmd.MarkFlagRequired("out")
	runMainCmd.MarkFlagRequired("err")
}

func runRunMain(cmd *cobra.Command, args []string) error {
	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.Close()

	result, err := a.launcher.RunMain(cmd.Context(), wrapper.MainRequest{
		Bundle:  args[0],
		Entry:   args[1],
		OutPath: runMainOut,
		ErrPath: runMainErr,
		Args:    args[2:],
	})
	if err != nil {
		return err
	}
	if result.Outcome == report.OutcomeToolFailed {
		fmt.Fprintf(os.Stderr, "%s failed: %s (see %s)\n", result.Tool, result.Error, runMainErr)
		exitCode = 1
		return nil
	}
	return finishTool(result, nil)
}
